package msg

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Topic enumerates the kinds of events a publisher broadcasts
type Topic int

const (
	// ElementChanged carries an element that was created or had attributes rewritten
	ElementChanged Topic = iota
	// WireAdded carries a committed wire
	WireAdded
	// WireRemoved carries a wire that left the diagram
	WireRemoved
	// ElementRemoved carries an element that left the diagram
	ElementRemoved
)

var topicNames = map[Topic]string{
	ElementChanged: "element.changed",
	WireAdded:      "wire.added",
	WireRemoved:    "wire.removed",
	ElementRemoved: "element.removed",
}

// Topics lists every topic a publisher can carry.
func Topics() []Topic {
	return []Topic{ElementChanged, WireAdded, WireRemoved, ElementRemoved}
}

func (t Topic) String() string {
	if name, ok := topicNames[t]; ok {
		return name
	}
	return fmt.Sprintf("topic(%d)", int(t))
}

// Publisher is an interface for objects that allow subscribtion to their events
type Publisher interface {
	Subscribe(uuid.UUID, Topic) (<-chan Msg, error)
	Unsubscribe(uuid.UUID)
}

// Msg is a single published event
type Msg struct {
	sender  uuid.UUID
	topic   Topic
	payload interface{}
}

// New is the Msg factory function
func New(sender uuid.UUID, topic Topic, payload interface{}) Msg {
	return Msg{sender, topic, payload}
}

// PID returns the sender's PID
func (v Msg) PID() uuid.UUID {
	return v.sender
}

// Topic returns the topic the message was published on
func (v Msg) Topic() Topic {
	return v.topic
}

// Payload returns the message data
func (v Msg) Payload() interface{} {
	return v.payload
}

// PubSub fans published messages out to per-subscriber channels.
type PubSub struct {
	mux         *sync.Mutex
	pid         uuid.UUID
	subscribers map[Topic]map[uuid.UUID]chan Msg
	buffer      int
}

// NewPublisher returns a PubSub that stamps every message with pid.
func NewPublisher(pid uuid.UUID) *PubSub {
	return &PubSub{
		mux:         &sync.Mutex{},
		pid:         pid,
		subscribers: make(map[Topic]map[uuid.UUID]chan Msg),
		buffer:      50,
	}
}

// Subscribe returns a channel receiving every message published on topic.
func (p *PubSub) Subscribe(pid uuid.UUID, topic Topic) (<-chan Msg, error) {
	if _, ok := topicNames[topic]; !ok {
		return nil, errors.New(fmt.Sprintf("unknown topic %v", topic))
	}
	p.mux.Lock()
	defer p.mux.Unlock()
	subs, ok := p.subscribers[topic]
	if !ok {
		subs = make(map[uuid.UUID]chan Msg)
		p.subscribers[topic] = subs
	}
	if ch, exists := subs[pid]; exists {
		return ch, nil
	}
	ch := make(chan Msg, p.buffer)
	subs[pid] = ch
	return ch, nil
}

// Unsubscribe pid from all topic broadcasts. Its channels are closed.
func (p *PubSub) Unsubscribe(pid uuid.UUID) {
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, subs := range p.subscribers {
		if ch, ok := subs[pid]; ok {
			close(ch)
			delete(subs, pid)
		}
	}
}

// Publish sends payload to every subscriber of topic. A subscriber whose
// buffer is full misses the message rather than stalling the publisher.
func (p *PubSub) Publish(topic Topic, payload interface{}) {
	p.mux.Lock()
	defer p.mux.Unlock()
	m := New(p.pid, topic, payload)
	for _, ch := range p.subscribers[topic] {
		select {
		case ch <- m:
		default:
		}
	}
}

// PID returns the publisher's PID
func (p *PubSub) PID() uuid.UUID {
	return p.pid
}
