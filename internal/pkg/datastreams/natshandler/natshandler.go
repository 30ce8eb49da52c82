package natshandler

import (
	"encoding/json"
	"io/ioutil"
	"log"

	"github.com/google/uuid"
	"github.com/ohowland/sldcore/internal/pkg/msg"

	nats "github.com/nats-io/nats.go"
)

// Handler republishes store events on a NATS server.
type Handler struct {
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config config
	stop   chan bool
}

type config struct {
	Server        string `json:"Server"`
	SubjectPrefix string `json:"SubjectPrefix"`
}

// event is the JSON body sent on each subject.
type event struct {
	Sender  string      `json:"sender"`
	Topic   string      `json:"topic"`
	Payload interface{} `json:"payload"`
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
	if cfg.Server == "" {
		cfg.Server = nats.DefaultURL
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "sldcore"
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

func (h Handler) subject(topic msg.Topic) string {
	return h.config.SubjectPrefix + "." + topic.String()
}

func encode(m msg.Msg) ([]byte, error) {
	return json.Marshal(event{
		Sender:  m.PID().String(),
		Topic:   m.Topic().String(),
		Payload: m.Payload(),
	})
}

func (h *Handler) Stop() {
	close(h.stop)
}

func (h Handler) Process() {
	log.Println("[NATS client] Process Started")
	nc, err := nats.Connect(h.config.Server)
	if err != nil {
		log.Println("[NATS client]", err)
		return
	}
	defer nc.Close()

loop:
	for {
		select {
		case m := <-h.inbox:
			data, err := encode(m)
			if err != nil {
				log.Printf("[NATS client] unable to encode %v: %v", m.Topic(), err)
				continue
			}
			if err = nc.Publish(h.subject(m.Topic()), data); err != nil {
				log.Printf("[NATS client] unable to publish to nats server: %v", err)
			}

		case <-h.stop:
			nc.Flush()
			break loop
		}
	}
	log.Println("[NATS client] Process Shutdown")
}
