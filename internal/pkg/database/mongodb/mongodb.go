package mongodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/sldcore/internal/pkg/msg"
	"github.com/ohowland/sldcore/internal/pkg/topology"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	elementCollection = "elements"
	wireCollection    = "wires"
)

// Handler mirrors store events into MongoDB: one document per element, one
// per wire, keyed by id.
type Handler struct {
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config config
	stop   chan bool
}

type config struct {
	URI      string `json:"URI"`
	Database string `json:"Database"`
	Port     string `json:"Port"`
}

// write is one collection operation derived from a store event.
type write struct {
	collection string
	filter     bson.M
	update     bson.D // nil for a delete
}

func redirectMsg(chIn <-chan msg.Msg, chOut chan<- msg.Msg) {
	for m := range chIn {
		chOut <- m
	}
}

// New reads the handler config and subscribes to every topic of system.
func New(configPath string, system msg.Publisher) (Handler, error) {
	jsonConfig, err := ioutil.ReadFile(configPath)
	if err != nil {
		return Handler{}, err
	}
	cfg := config{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return Handler{}, err
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

// PID returns the handler's subscriber id.
func (h Handler) PID() uuid.UUID {
	return h.pid
}

func (h Handler) uri() string {
	if h.config.Port == "" {
		return h.config.URI
	}
	return h.config.URI + ":" + h.config.Port
}

func elementToBSON(e topology.Element) bson.D {
	attrs := bson.M{}
	for k, v := range e.Attributes {
		attrs[k] = v
	}
	return bson.D{
		{Key: "$set", Value: bson.M{
			"type":       e.Type.String(),
			"index":      e.Index,
			"attributes": attrs,
		}},
	}
}

func wireToBSON(w topology.Wire) bson.D {
	return bson.D{
		{Key: "$set", Value: bson.M{
			"source": bson.M{"element": w.Source.Element, "port": string(w.Source.Port)},
			"target": bson.M{"element": w.Target.Element, "port": string(w.Target.Port)},
		}},
	}
}

// writeFor maps a store event onto the collection operation that mirrors it.
func writeFor(m msg.Msg) (write, error) {
	switch m.Topic() {
	case msg.ElementChanged, msg.ElementRemoved:
		e, ok := m.Payload().(topology.Element)
		if !ok {
			return write{}, errors.New(fmt.Sprintf("%v payload is %T, not an element", m.Topic(), m.Payload()))
		}
		wr := write{collection: elementCollection, filter: bson.M{"_id": e.ID}}
		if m.Topic() == msg.ElementChanged {
			wr.update = elementToBSON(e)
		}
		return wr, nil

	case msg.WireAdded, msg.WireRemoved:
		w, ok := m.Payload().(topology.Wire)
		if !ok {
			return write{}, errors.New(fmt.Sprintf("%v payload is %T, not a wire", m.Topic(), m.Payload()))
		}
		wr := write{collection: wireCollection, filter: bson.M{"_id": w.ID}}
		if m.Topic() == msg.WireAdded {
			wr.update = wireToBSON(w)
		}
		return wr, nil
	}
	return write{}, errors.New(fmt.Sprintf("unhandled topic %v", m.Topic()))
}

// Stop ends a running Process loop.
func (h *Handler) Stop() {
	close(h.stop)
}

// Process connects to MongoDB, clears the mirrored collections and applies
// store events until stopped.
func (h Handler) Process() {
	client, err := mongo.NewClient(options.Client().ApplyURI(h.uri()))
	if err != nil {
		log.Println("[Mongo]", err)
		return
	}

	ctx := context.TODO()
	connectCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	err = client.Connect(connectCtx)
	cancel()
	if err != nil {
		log.Println("[Mongo]", err)
		return
	}
	defer client.Disconnect(ctx)

	db := client.Database(h.config.Database)
	db.Collection(elementCollection).Drop(ctx)
	db.Collection(wireCollection).Drop(ctx)
	log.Println("[Mongo] Process Started")

loop:
	for {
		select {
		case m := <-h.inbox:
			wr, err := writeFor(m)
			if err != nil {
				log.Println("[Mongo]", err)
				continue
			}
			coll := db.Collection(wr.collection)
			if wr.update == nil {
				_, err = coll.DeleteOne(ctx, wr.filter)
			} else {
				_, err = coll.UpdateOne(ctx, wr.filter, wr.update, options.Update().SetUpsert(true))
			}
			if err != nil {
				log.Printf("[Mongo] unable to write %v to %s: %v", m.Topic(), wr.collection, err)
			}
		case <-h.stop:
			break loop
		}
	}
	log.Println("[Mongo] Process Shutdown")
}
