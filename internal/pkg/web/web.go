package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/sldcore/internal/pkg/msg"
)

// Handler forwards store events to a webhook as JSON POSTs on
// <URL>/events/<topic>.
type Handler struct {
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config config
	client *http.Client
	stop   chan bool
}

type config struct {
	URL string `json:"URL"`
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
	if cfg.URL == "" {
		return Handler{}, errors.New("web handler config has no URL")
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
		client: &http.Client{Timeout: 5 * time.Second},
		stop:   make(chan bool),
	}, nil
}

func (h Handler) PID() uuid.UUID {
	return h.pid
}

func (h *Handler) Stop() {
	close(h.stop)
}

// post sends one event. Any non-2xx response is an error.
func (h Handler) post(m msg.Msg) error {
	data, err := json.Marshal(m.Payload())
	if err != nil {
		return err
	}
	targetURL := h.config.URL + "/events/" + m.Topic().String()
	resp, err := h.client.Post(targetURL, "application/json", bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.New(fmt.Sprintf("%s returned %s", targetURL, resp.Status))
	}
	return nil
}

func (h Handler) Process() {
	log.Println("[Webhook] Process Started")
loop:
	for {
		select {
		case m := <-h.inbox:
			if err := h.post(m); err != nil {
				log.Println("[Webhook]", err)
			}
		case <-h.stop:
			break loop
		}
	}
	log.Println("[Webhook] Process Shutdown")
}
