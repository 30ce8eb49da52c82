package store

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/sldcore/internal/pkg/msg"
	"github.com/ohowland/sldcore/internal/pkg/topology"
	"gotest.tools/v3/assert"
)

func newStore(t *testing.T) *Store {
	s, err := New()
	assert.NilError(t, err)
	return s
}

func add(t *testing.T, s *Store, et topology.ElementType) topology.Element {
	e, err := s.AddElement(et, topology.Attributes{"name": et.String()})
	assert.NilError(t, err)
	return e
}

func ep(id string, port topology.PortID) topology.Endpoint {
	return topology.Endpoint{Element: id, Port: port}
}

func receive(t *testing.T, ch <-chan msg.Msg) msg.Msg {
	select {
	case m := <-ch:
		return m
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for store event")
	}
	return msg.Msg{}
}

// BEGIN --- Element Tests

func TestAddElementAssignsIndex(t *testing.T) {
	s := newStore(t)
	b1 := add(t, s, topology.Bus)
	b2 := add(t, s, topology.Bus)
	g1 := add(t, s, topology.Generator)

	assert.Equal(t, b1.ID, "bus-1")
	assert.Equal(t, b2.ID, "bus-2")
	assert.Equal(t, b2.Index, 2)
	assert.Equal(t, g1.ID, "generator-1")
	assert.Equal(t, g1.Index, 1)
}

func TestAddElementStripsDerivedKeys(t *testing.T) {
	s := newStore(t)
	e, err := s.AddElement(topology.Load, topology.Attributes{"p_mw": 0.5, topology.AttrBus: 3})
	assert.NilError(t, err)
	assert.DeepEqual(t, e.Attributes, topology.Attributes{"p_mw": 0.5})
}

func TestAddElementUnknownType(t *testing.T) {
	s := newStore(t)
	_, err := s.AddElement(topology.ElementType(50), nil)
	assert.Assert(t, errors.Is(err, topology.ErrUnknownType))
}

func TestUpdateAttributes(t *testing.T) {
	s := newStore(t)
	e := add(t, s, topology.Storage)

	updated, err := s.UpdateAttributes(e.ID, topology.Attributes{"max_e_mwh": 2.0, "name": nil})
	assert.NilError(t, err)
	assert.DeepEqual(t, updated.Attributes, topology.Attributes{"max_e_mwh": 2.0})

	_, err = s.UpdateAttributes(e.ID, topology.Attributes{topology.AttrBus: 1})
	assert.Assert(t, errors.Is(err, ErrDerivedAttribute))

	_, err = s.UpdateAttributes("storage-9", topology.Attributes{"name": "x"})
	assert.Assert(t, errors.Is(err, ErrNotFound))
}

// BEGIN --- Wiring Tests

func TestConnectDerivesAttributes(t *testing.T) {
	s := newStore(t)
	bus := add(t, s, topology.Bus)
	gen := add(t, s, topology.Generator)

	w, result, err := s.Connect(ep(gen.ID, topology.PortTop), ep(bus.ID, topology.PortCenter))
	assert.NilError(t, err)
	assert.Assert(t, result.Valid)
	_, err = uuid.Parse(w.ID)
	assert.NilError(t, err)

	got, err := s.Element(gen.ID)
	assert.NilError(t, err)
	assert.Equal(t, got.Attributes[topology.AttrBus], 1)
	assert.Equal(t, len(s.Audit()), 0)
}

func TestConnectRejected(t *testing.T) {
	s := newStore(t)
	b1 := add(t, s, topology.Bus)
	b2 := add(t, s, topology.Bus)

	_, result, err := s.Connect(ep(b1.ID, topology.PortCenter), ep(b2.ID, topology.PortCenter))
	assert.Assert(t, errors.Is(err, ErrRejected))
	assert.Assert(t, !result.Valid)
	assert.Equal(t, len(s.Snapshot().Wires), 0)
}

func TestValidateDoesNotCommit(t *testing.T) {
	s := newStore(t)
	bus := add(t, s, topology.Bus)
	load := add(t, s, topology.Load)

	result, err := s.Validate(ep(load.ID, topology.PortTop), ep(bus.ID, topology.PortCenter))
	assert.NilError(t, err)
	assert.Assert(t, result.Valid)
	assert.Equal(t, len(s.Snapshot().Wires), 0)
}

func TestDisconnectReversesAttributes(t *testing.T) {
	s := newStore(t)
	bus := add(t, s, topology.Bus)
	sw := add(t, s, topology.Switch)
	line := add(t, s, topology.Line)

	w1, _, err := s.Connect(ep(sw.ID, topology.PortTop), ep(bus.ID, topology.PortCenter))
	assert.NilError(t, err)
	_, _, err = s.Connect(ep(sw.ID, topology.PortBottom), ep(line.ID, topology.PortTop))
	assert.NilError(t, err)

	assert.NilError(t, s.Disconnect(w1.ID))
	got, _ := s.Element(sw.ID)
	assert.DeepEqual(t, got.Attributes, topology.Attributes{
		"name":                   "switch",
		topology.AttrElementType: "line",
		topology.AttrElement:     1,
	})
	got, _ = s.Element(line.ID)
	assert.DeepEqual(t, got.Attributes, topology.Attributes{"name": "line"})

	err = s.Disconnect(w1.ID)
	assert.Assert(t, errors.Is(err, ErrNotFound))
}

func TestDeleteBatch(t *testing.T) {
	s := newStore(t)
	bus := add(t, s, topology.Bus)
	gen := add(t, s, topology.Generator)
	meter := add(t, s, topology.Meter)

	_, _, err := s.Connect(ep(gen.ID, topology.PortTop), ep(bus.ID, topology.PortCenter))
	assert.NilError(t, err)
	_, _, err = s.Connect(ep(meter.ID, topology.PortTop), ep(bus.ID, topology.PortCenter))
	assert.NilError(t, err)

	result, err := s.Delete([]string{bus.ID}, nil)
	assert.NilError(t, err)
	assert.Equal(t, len(result.Removed), 2)

	snap := s.Snapshot()
	assert.Equal(t, len(snap.Wires), 0)
	assert.Equal(t, len(snap.Elements), 2)
	for _, e := range snap.Elements {
		for _, k := range topology.DerivedKeys() {
			_, ok := e.Attributes[k]
			assert.Assert(t, !ok, "%s kept %s", e.ID, k)
		}
	}
	_, err = s.Element(bus.ID)
	assert.Assert(t, errors.Is(err, ErrNotFound))
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := newStore(t)
	bus := add(t, s, topology.Bus)

	snap := s.Snapshot()
	snap.Elements[0].Attributes["name"] = "changed"

	got, _ := s.Element(bus.ID)
	assert.Equal(t, got.Attributes["name"], "bus")
}

// BEGIN --- Event Tests

func TestConnectPublishesEvents(t *testing.T) {
	s := newStore(t)
	bus := add(t, s, topology.Bus)
	gen := add(t, s, topology.Generator)

	sub := uuid.New()
	wires, err := s.Subscribe(sub, msg.WireAdded)
	assert.NilError(t, err)
	changed, err := s.Subscribe(sub, msg.ElementChanged)
	assert.NilError(t, err)

	w, _, err := s.Connect(ep(gen.ID, topology.PortTop), ep(bus.ID, topology.PortCenter))
	assert.NilError(t, err)

	m := receive(t, wires)
	assert.Equal(t, m.PID(), s.PID())
	assert.Equal(t, m.Payload().(topology.Wire).ID, w.ID)

	m = receive(t, changed)
	e := m.Payload().(topology.Element)
	assert.Equal(t, e.ID, gen.ID)
	assert.Equal(t, e.Attributes[topology.AttrBus], 1)

	s.Unsubscribe(sub)
	_, ok := <-wires
	assert.Assert(t, !ok)
}

func TestDeletePublishesRemovals(t *testing.T) {
	s := newStore(t)
	bus := add(t, s, topology.Bus)
	load := add(t, s, topology.Load)
	_, _, err := s.Connect(ep(load.ID, topology.PortTop), ep(bus.ID, topology.PortCenter))
	assert.NilError(t, err)

	sub := uuid.New()
	removedWires, err := s.Subscribe(sub, msg.WireRemoved)
	assert.NilError(t, err)
	removedElements, err := s.Subscribe(sub, msg.ElementRemoved)
	assert.NilError(t, err)

	_, err = s.Delete([]string{load.ID}, nil)
	assert.NilError(t, err)

	w := receive(t, removedWires).Payload().(topology.Wire)
	assert.Assert(t, w.Touches(load.ID))
	e := receive(t, removedElements).Payload().(topology.Element)
	assert.Equal(t, e.ID, load.ID)
}
