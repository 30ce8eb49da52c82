package topology

import (
	"fmt"
	"testing"

	"gotest.tools/v3/assert"
)

func newElement(id string, t ElementType, index int) Element {
	return Element{ID: id, Type: t, Index: index, Attributes: Attributes{}}
}

// diagram drives the engine the way a graph store would: validate, commit,
// propagate, apply.
type diagram struct {
	t     *testing.T
	snap  Snapshot
	wires int
}

func newDiagram(t *testing.T, elements ...Element) *diagram {
	return &diagram{t: t, snap: Snapshot{Elements: elements, Wires: []Wire{}}}
}

func (d *diagram) proposal(a string, ap PortID, b string, bp PortID) Wire {
	return Wire{
		ID:     fmt.Sprintf("w%d", d.wires+1),
		Source: Endpoint{Element: a, Port: ap},
		Target: Endpoint{Element: b, Port: bp},
	}
}

// connect wires a:ap to b:bp and fails the test if the wire is rejected.
func (d *diagram) connect(a string, ap PortID, b string, bp PortID) Wire {
	d.t.Helper()
	w := d.proposal(a, ap, b, bp)
	result, err := ValidateConnection(w, d.snap)
	assert.NilError(d.t, err)
	assert.Assert(d.t, result.Valid, result.Reason)

	d.wires++
	d.snap.Wires = append(d.snap.Wires, w)
	ps, err := PropagateOnConnect(w, d.snap)
	assert.NilError(d.t, err)
	d.snap.Elements = Apply(d.snap.Elements, ps)
	return w
}

// validate runs the validator on a proposal without committing it.
func (d *diagram) validate(a string, ap PortID, b string, bp PortID) Result {
	d.t.Helper()
	result, err := ValidateConnection(d.proposal(a, ap, b, bp), d.snap)
	assert.NilError(d.t, err)
	return result
}

// disconnect reverses and removes the wire with id.
func (d *diagram) disconnect(id string) {
	d.t.Helper()
	for _, w := range d.snap.Wires {
		if w.ID != id {
			continue
		}
		ps, err := PropagateOnDisconnect(w, d.snap)
		assert.NilError(d.t, err)
		d.snap.Elements = Apply(d.snap.Elements, ps)
		d.snap.Wires = dropWire(d.snap.Wires, id)
		return
	}
	d.t.Fatalf("wire %s not found", id)
}

func (d *diagram) attrs(id string) Attributes {
	d.t.Helper()
	for _, e := range d.snap.Elements {
		if e.ID == id {
			return e.Attributes
		}
	}
	d.t.Fatalf("element %s not found", id)
	return nil
}

func (d *diagram) clone() Snapshot {
	out := Snapshot{Wires: append([]Wire(nil), d.snap.Wires...)}
	for _, e := range d.snap.Elements {
		e.Attributes = e.Attributes.Copy()
		out.Elements = append(out.Elements, e)
	}
	return out
}

// derived projects the engine-owned attributes of every element.
func derived(snap Snapshot) map[string]Attributes {
	out := make(map[string]Attributes)
	for _, e := range snap.Elements {
		d := Attributes{}
		for _, k := range DerivedKeys() {
			if v, ok := e.Attributes[k]; ok {
				d[k] = v
			}
		}
		out[e.ID] = d
	}
	return out
}
