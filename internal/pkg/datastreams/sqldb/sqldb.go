package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/sldcore/internal/pkg/msg"
	"github.com/ohowland/sldcore/internal/pkg/topology"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// Handler journals store events into a SQL table.
type Handler struct {
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config config
	stop   chan bool
}

type config struct {
	Driver   string `json:"Driver"` // mysql or postgres
	Server   string `json:"Server"`
	Port     int    `json:"Port"`
	Username string `json:"Username"`
	Password string `json:"Password"`
	Database string `json:"Database"`
}

// dialect holds the statements that differ between drivers.
type dialect struct {
	createTable string
	insert      string
}

var dialects = map[string]dialect{
	"mysql": {
		createTable: `CREATE TABLE IF NOT EXISTS topology_events(
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			sender VARCHAR(36) NOT NULL,
			topic VARCHAR(32) NOT NULL,
			subject VARCHAR(64) NOT NULL,
			payload TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL)`,
		insert: `INSERT INTO topology_events (sender, topic, subject, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
	},
	"postgres": {
		createTable: `CREATE TABLE IF NOT EXISTS topology_events(
			id BIGSERIAL PRIMARY KEY,
			sender VARCHAR(36) NOT NULL,
			topic VARCHAR(32) NOT NULL,
			subject VARCHAR(64) NOT NULL,
			payload TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL)`,
		insert: `INSERT INTO topology_events (sender, topic, subject, payload, created_at) VALUES ($1, $2, $3, $4, $5)`,
	},
}

// row is one journal entry.
type row struct {
	sender  string
	topic   string
	subject string
	payload string
}

func (h Handler) PID() uuid.UUID {
	return h.pid
}

func redirectMsg(chIn <-chan msg.Msg, chOut chan<- msg.Msg) {
	for m := range chIn {
		chOut <- m
	}
}

func New(configPath string, system msg.Publisher) (Handler, error) {
	jsonConfig, err := ioutil.ReadFile(configPath)
	if err != nil {
		return Handler{}, err
	}
	cfg := config{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return Handler{}, err
	}
	if _, ok := dialects[cfg.Driver]; !ok {
		return Handler{}, errors.New(fmt.Sprintf("unsupported sql driver %q", cfg.Driver))
	}

	pid, err := uuid.NewUUID()
	if err != nil {
		return Handler{}, err
	}

	inbox := make(chan msg.Msg, 50)
	for _, topic := range msg.Topics() {
		ch, err := system.Subscribe(pid, topic)
		if err != nil {
			return Handler{}, err
		}
		go redirectMsg(ch, inbox)
	}

	return Handler{
		inbox:  inbox,
		pid:    pid,
		config: cfg,
		stop:   make(chan bool),
	}, nil
}

func (h *Handler) Stop() {
	close(h.stop)
}

func (h Handler) dsn() string {
	if h.config.Driver == "postgres" {
		return fmt.Sprintf("host=%v port=%v user=%v password=%v dbname=%v sslmode=disable",
			h.config.Server, h.config.Port, h.config.Username, h.config.Password, h.config.Database)
	}
	return fmt.Sprintf("%v:%v@tcp(%v:%v)/%v?parseTime=true",
		h.config.Username, h.config.Password, h.config.Server, h.config.Port, h.config.Database)
}

// DB opens a handle for the configured driver. No connection is made until
// the handle is first used.
func (h Handler) DB() (*sql.DB, error) {
	return sql.Open(h.config.Driver, h.dsn())
}

// journalRow maps a store event onto its journal entry. The subject is the
// element or wire id the event concerns.
func journalRow(m msg.Msg) (row, error) {
	var subject string
	switch p := m.Payload().(type) {
	case topology.Element:
		subject = p.ID
	case topology.Wire:
		subject = p.ID
	default:
		return row{}, errors.New(fmt.Sprintf("%v payload %T has no id", m.Topic(), m.Payload()))
	}
	payload, err := json.Marshal(m.Payload())
	if err != nil {
		return row{}, err
	}
	return row{
		sender:  m.PID().String(),
		topic:   m.Topic().String(),
		subject: subject,
		payload: string(payload),
	}, nil
}

func (h Handler) Process() {
	db, err := h.DB()
	if err != nil {
		log.Println("[SQL]", err)
		return
	}
	defer db.Close()

	d := dialects[h.config.Driver]
	if _, err := db.Exec(d.createTable); err != nil {
		log.Println("[SQL] unable to create journal table:", err)
		return
	}
	log.Println("[SQL] Process Started")

loop:
	for {
		select {
		case m := <-h.inbox:
			r, err := journalRow(m)
			if err != nil {
				log.Println("[SQL]", err)
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
			_, err = db.ExecContext(ctx, d.insert, r.sender, r.topic, r.subject, r.payload, time.Now().UTC())
			cancel()
			if err != nil {
				log.Printf("[SQL] error %s update db", err)
			}

		case <-h.stop:
			break loop
		}
	}
	log.Println("[SQL] Process Shutdown")
}
