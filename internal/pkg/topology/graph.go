package topology

import (
	"errors"
	"fmt"
)

// Graph is a read-only adjacency view over a Snapshot, keyed by element id.
// It is rebuilt per call and never aliases the caller's slices.
type Graph struct {
	elements      map[string]Element
	adjacencyList map[string][]Wire
	wires         []Wire
}

// NewGraph indexes snap. When ids repeat, the first element wins.
func NewGraph(snap Snapshot) Graph {
	g := Graph{
		elements:      make(map[string]Element, len(snap.Elements)),
		adjacencyList: make(map[string][]Wire, len(snap.Elements)),
		wires:         make([]Wire, 0, len(snap.Wires)),
	}
	for _, e := range snap.Elements {
		_ = g.AddNode(e)
	}
	for _, w := range snap.Wires {
		g.AddEdge(w)
	}
	return g
}

// AddNode inserts an element.
func (g *Graph) AddNode(e Element) error {
	if _, exists := g.elements[e.ID]; exists {
		return errors.New(fmt.Sprintf("node %s already exists in graph.", e.ID))
	}
	g.elements[e.ID] = e
	return nil
}

// AddEdge records a wire on both of its endpoints. Endpoints missing from the
// element set are kept so that lookups on them simply fail later.
func (g *Graph) AddEdge(w Wire) {
	g.wires = append(g.wires, w)
	g.adjacencyList[w.Source.Element] = append(g.adjacencyList[w.Source.Element], w)
	if w.Target.Element != w.Source.Element {
		g.adjacencyList[w.Target.Element] = append(g.adjacencyList[w.Target.Element], w)
	}
}

// Element looks up an element by id.
func (g Graph) Element(id string) (Element, bool) {
	e, ok := g.elements[id]
	return e, ok
}

// Edges returns the wires touching id in snapshot order.
func (g Graph) Edges(id string) []Wire {
	if edges, exists := g.adjacencyList[id]; exists {
		return edges
	}
	return make([]Wire, 0)
}

// Wires returns every wire in snapshot order.
func (g Graph) Wires() []Wire {
	return g.wires
}

// Without returns a copy of the view minus the wire with id wireID.
func (g Graph) Without(wireID string) Graph {
	out := Graph{
		elements:      g.elements,
		adjacencyList: make(map[string][]Wire, len(g.adjacencyList)),
		wires:         make([]Wire, 0, len(g.wires)),
	}
	for _, w := range g.wires {
		if w.ID == wireID {
			continue
		}
		out.AddEdge(w)
	}
	return out
}

// link is one wire seen from one of its elements.
type link struct {
	wire  Wire
	port  PortID  // port on the near element
	peer  Element // far element
	pport PortID  // port on the far element
}

// links resolves the wires of id into near/far pairs, skipping wires whose far
// element is missing from the view.
func (g Graph) links(id string) []link {
	edges := g.Edges(id)
	out := make([]link, 0, len(edges))
	for _, w := range edges {
		near, far := w.Source, w.Target
		if w.Source.Element != id {
			near, far = w.Target, w.Source
		}
		peer, ok := g.elements[far.Element]
		if !ok {
			continue
		}
		out = append(out, link{wire: w, port: near.Port, peer: peer, pport: far.Port})
	}
	return out
}

// ends resolves both elements of w. ok is false if either is missing.
func (g Graph) ends(w Wire) (src Element, dst Element, ok bool) {
	src, ok1 := g.elements[w.Source.Element]
	dst, ok2 := g.elements[w.Target.Element]
	return src, dst, ok1 && ok2
}
