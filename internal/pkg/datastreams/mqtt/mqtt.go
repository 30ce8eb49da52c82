package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/sldcore/internal/pkg/msg"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Handler republishes store events on an MQTT broker.
type Handler struct {
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config config
	stop   chan bool
}

type config struct {
	Broker      string `json:"Broker"`
	TopicPrefix string `json:"TopicPrefix"`
	QoS         byte   `json:"QoS"`
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
	if cfg.Broker == "" {
		return Handler{}, errors.New("mqtt config has no Broker")
	}
	if cfg.QoS > 2 {
		return Handler{}, errors.New(fmt.Sprintf("mqtt QoS %d out of range", cfg.QoS))
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "sldcore"
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

// topic maps "wire.added" onto "<prefix>/wire/added".
func (h Handler) topic(t msg.Topic) string {
	return h.config.TopicPrefix + "/" + strings.Replace(t.String(), ".", "/", -1)
}

func (h *Handler) Stop() {
	close(h.stop)
}

func (h Handler) Process() {
	opts := mqtt.NewClientOptions().
		AddBroker(h.config.Broker).
		SetClientID("sldcore-" + h.pid.String())
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(10*time.Second) && token.Error() != nil {
		log.Println("[MQTT client]", token.Error())
		return
	}
	defer client.Disconnect(250)
	log.Println("[MQTT client] Process Started")

loop:
	for {
		select {
		case m := <-h.inbox:
			data, err := json.Marshal(m.Payload())
			if err != nil {
				log.Printf("[MQTT client] unable to encode %v: %v", m.Topic(), err)
				continue
			}
			token := client.Publish(h.topic(m.Topic()), h.config.QoS, false, data)
			if token.WaitTimeout(time.Second) && token.Error() != nil {
				log.Printf("[MQTT client] unable to publish: %v", token.Error())
			}

		case <-h.stop:
			break loop
		}
	}
	log.Println("[MQTT client] Process Shutdown")
}
