/*
store.go In-memory graph store for a single-line diagram. It owns the element
and wire lists, runs every mutation through the topology engine and
broadcasts the result to subscribers.
*/

package store

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/ohowland/sldcore/internal/pkg/msg"
	"github.com/ohowland/sldcore/internal/pkg/topology"
)

var (
	// ErrNotFound is returned for an element or wire id the store does not hold.
	ErrNotFound = errors.New("not found")
	// ErrRejected is returned when the validator refuses a connection.
	ErrRejected = errors.New("connection rejected")
	// ErrDerivedAttribute is returned when a user edit names an engine-owned key.
	ErrDerivedAttribute = errors.New("attribute is derived from wiring")
)

// Store is a mutex-guarded single-writer diagram.
type Store struct {
	mux       *sync.Mutex
	pid       uuid.UUID
	publisher *msg.PubSub
	elements  []topology.Element
	wires     []topology.Wire
	next      map[topology.ElementType]int
}

// New returns an empty store.
func New() (*Store, error) {
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	return &Store{
		mux:       &sync.Mutex{},
		pid:       pid,
		publisher: msg.NewPublisher(pid),
		elements:  make([]topology.Element, 0),
		wires:     make([]topology.Wire, 0),
		next:      make(map[topology.ElementType]int),
	}, nil
}

// PID returns the store's PID, stamped on every published message.
func (s *Store) PID() uuid.UUID {
	return s.pid
}

// Subscribe pid to a store topic.
func (s *Store) Subscribe(pid uuid.UUID, topic msg.Topic) (<-chan msg.Msg, error) {
	return s.publisher.Subscribe(pid, topic)
}

// Unsubscribe pid from all store topics.
func (s *Store) Unsubscribe(pid uuid.UUID) {
	s.publisher.Unsubscribe(pid)
}

// AddElement places a new element of type t. The store assigns the per-type
// index and the id "<type>-<index>". Engine-owned keys in attrs are dropped.
func (s *Store) AddElement(t topology.ElementType, attrs topology.Attributes) (topology.Element, error) {
	if !t.Valid() {
		return topology.Element{}, fmt.Errorf("%w: %d", topology.ErrUnknownType, int(t))
	}
	s.mux.Lock()
	defer s.mux.Unlock()

	user := topology.Attributes{}
	for k, v := range attrs {
		if !topology.IsDerivedKey(k) {
			user[k] = v
		}
	}

	s.next[t]++
	e := topology.Element{
		ID:         fmt.Sprintf("%s-%d", t, s.next[t]),
		Type:       t,
		Index:      s.next[t],
		Attributes: user,
	}
	s.elements = append(s.elements, e)
	log.Printf("[Store] added %s", e.ID)

	s.publisher.Publish(msg.ElementChanged, copyElement(e))
	return copyElement(e), nil
}

// UpdateAttributes merges attrs into the user attributes of element id. A nil
// value removes the key.
func (s *Store) UpdateAttributes(id string, attrs topology.Attributes) (topology.Element, error) {
	for k := range attrs {
		if topology.IsDerivedKey(k) {
			return topology.Element{}, fmt.Errorf("%w: %s", ErrDerivedAttribute, k)
		}
	}
	s.mux.Lock()
	defer s.mux.Unlock()

	i, ok := s.elementIndex(id)
	if !ok {
		return topology.Element{}, fmt.Errorf("%w: element %s", ErrNotFound, id)
	}
	updated := s.elements[i].Attributes.Copy()
	for k, v := range attrs {
		if v == nil {
			delete(updated, k)
			continue
		}
		updated[k] = v
	}
	s.elements[i].Attributes = updated

	s.publisher.Publish(msg.ElementChanged, copyElement(s.elements[i]))
	return copyElement(s.elements[i]), nil
}

// Validate runs the connection validator without changing anything.
func (s *Store) Validate(source, target topology.Endpoint) (topology.Result, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	return topology.ValidateConnection(topology.Wire{Source: source, Target: target}, s.snapshot())
}

// Connect validates a wire from source to target, commits it, and applies the
// forward pass. A rejection returns the validator's result and ErrRejected.
func (s *Store) Connect(source, target topology.Endpoint) (topology.Wire, topology.Result, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	w := topology.Wire{ID: uuid.New().String(), Source: source, Target: target}
	result, err := topology.ValidateConnection(w, s.snapshot())
	if err != nil {
		return topology.Wire{}, result, err
	}
	if !result.Valid {
		log.Printf("[Store] rejected %s:%s -> %s:%s: %s", source.Element, source.Port, target.Element, target.Port, result.Reason)
		return topology.Wire{}, result, fmt.Errorf("%w: %s", ErrRejected, result.Reason)
	}
	if result.Warning != "" {
		log.Printf("[Store] warning: %s", result.Warning)
	}

	s.wires = append(s.wires, w)
	patches, err := topology.PropagateOnConnect(w, s.snapshot())
	if err != nil {
		s.wires = s.wires[:len(s.wires)-1]
		return topology.Wire{}, result, err
	}
	s.elements = topology.Apply(s.elements, patches)
	log.Printf("[Store] wire %s connected %s:%s -> %s:%s", w.ID, source.Element, source.Port, target.Element, target.Port)

	s.publisher.Publish(msg.WireAdded, w)
	s.publishPatched(patches)
	return w, result, nil
}

// Disconnect removes one wire and applies the reverse pass.
func (s *Store) Disconnect(wireID string) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	var w topology.Wire
	found := false
	for _, candidate := range s.wires {
		if candidate.ID == wireID {
			w, found = candidate, true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: wire %s", ErrNotFound, wireID)
	}

	patches, err := topology.PropagateOnDisconnect(w, s.snapshot())
	if err != nil {
		return err
	}
	s.elements = topology.Apply(s.elements, patches)
	remaining := make([]topology.Wire, 0, len(s.wires))
	for _, candidate := range s.wires {
		if candidate.ID != wireID {
			remaining = append(remaining, candidate)
		}
	}
	s.wires = remaining
	log.Printf("[Store] wire %s disconnected", wireID)

	s.publisher.Publish(msg.WireRemoved, w)
	s.publishPatched(patches)
	return nil
}

// Delete removes elements and wires as one batch. Ids the store does not
// hold are ignored.
func (s *Store) Delete(elementIDs, wireIDs []string) (topology.BatchResult, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	doomed := make([]topology.Element, 0, len(elementIDs))
	for _, id := range elementIDs {
		if i, ok := s.elementIndex(id); ok {
			doomed = append(doomed, s.elements[i])
		}
	}

	result, err := topology.DeleteBatch(elementIDs, wireIDs, s.snapshot())
	if err != nil {
		return topology.BatchResult{}, err
	}
	s.elements = result.Elements
	s.wires = result.Wires
	log.Printf("[Store] deleted %d elements and %d wires", len(doomed), len(result.Removed))

	for _, w := range result.Removed {
		s.publisher.Publish(msg.WireRemoved, w)
	}
	for _, e := range doomed {
		s.publisher.Publish(msg.ElementRemoved, copyElement(e))
	}
	s.publishPatched(result.Patches)
	return result, nil
}

// Element returns a copy of element id.
func (s *Store) Element(id string) (topology.Element, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	i, ok := s.elementIndex(id)
	if !ok {
		return topology.Element{}, fmt.Errorf("%w: element %s", ErrNotFound, id)
	}
	return copyElement(s.elements[i]), nil
}

// Snapshot returns a deep copy of the diagram.
func (s *Store) Snapshot() topology.Snapshot {
	s.mux.Lock()
	defer s.mux.Unlock()
	snap := s.snapshot()
	elements := make([]topology.Element, len(snap.Elements))
	for i, e := range snap.Elements {
		elements[i] = copyElement(e)
	}
	snap.Elements = elements
	return snap
}

// Audit checks the stored diagram against the topology invariants.
func (s *Store) Audit() []topology.Finding {
	s.mux.Lock()
	defer s.mux.Unlock()
	return topology.Audit(s.snapshot())
}

// snapshot is a shallow view for the engine, which never mutates it. Callers
// must hold the lock.
func (s *Store) snapshot() topology.Snapshot {
	return topology.Snapshot{
		Elements: append([]topology.Element(nil), s.elements...),
		Wires:    append([]topology.Wire(nil), s.wires...),
	}
}

func (s *Store) elementIndex(id string) (int, bool) {
	for i, e := range s.elements {
		if e.ID == id {
			return i, true
		}
	}
	return 0, false
}

func (s *Store) publishPatched(patches topology.PatchSet) {
	for _, p := range patches.Merge() {
		if i, ok := s.elementIndex(p.Element); ok {
			s.publisher.Publish(msg.ElementChanged, copyElement(s.elements[i]))
		}
	}
}

func copyElement(e topology.Element) topology.Element {
	e.Attributes = e.Attributes.Copy()
	return e
}
