package topology

import "fmt"

// Result is the outcome of validating a proposed wire. A Warning never blocks
// the wire from being committed.
type Result struct {
	Valid   bool   `json:"valid"`
	Reason  string `json:"reason,omitempty"`
	Warning string `json:"warning,omitempty"`
}

func accept() Result {
	return Result{Valid: true}
}

func reject(format string, args ...interface{}) Result {
	return Result{Valid: false, Reason: fmt.Sprintf(format, args...)}
}

// proposal carries a wire through the check pipeline. The type check resolves
// src and dst; later checks rely on them.
type proposal struct {
	wire Wire
	src  Element
	dst  Element
}

type check func(Graph, *proposal) (Result, error)

// pipeline order only decides which reason gets reported.
var pipeline = []check{
	checkDuplicate,
	checkTypes,
	checkPorts,
	checkSteadyState,
}

// ValidateConnection decides whether proposed may be added to snap. The error
// is non-nil only for an unknown element type.
func ValidateConnection(proposed Wire, snap Snapshot) (Result, error) {
	g := NewGraph(snap)
	p := &proposal{wire: proposed}
	result := accept()
	for _, c := range pipeline {
		r, err := c(g, p)
		if err != nil {
			return Result{}, err
		}
		if !r.Valid {
			return r, nil
		}
		if r.Warning != "" {
			result.Warning = r.Warning
		}
	}
	return result, nil
}

func checkDuplicate(g Graph, p *proposal) (Result, error) {
	for _, w := range g.Edges(p.wire.Source.Element) {
		if w.SamePair(p.wire) {
			return reject("a connection between %s and %s already exists", p.wire.Source.Element, p.wire.Target.Element), nil
		}
	}
	return accept(), nil
}

func checkTypes(g Graph, p *proposal) (Result, error) {
	if p.wire.Source.Element == p.wire.Target.Element {
		return reject("element %s cannot connect to itself", p.wire.Source.Element), nil
	}
	src, srcOK := g.Element(p.wire.Source.Element)
	if !srcOK {
		return reject("element %s not found", p.wire.Source.Element), nil
	}
	dst, dstOK := g.Element(p.wire.Target.Element)
	if !dstOK {
		return reject("element %s not found", p.wire.Target.Element), nil
	}
	p.src, p.dst = src, dst

	ok, err := Compatible(src.Type, dst.Type)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		if src.Type == Bus && dst.Type == Bus {
			return reject("bus %s cannot connect directly to bus %s; use a line, transformer or switch", src.ID, dst.ID), nil
		}
		return reject("%s cannot connect to %s", src.Type, dst.Type), nil
	}
	return accept(), nil
}

func checkPorts(g Graph, p *proposal) (Result, error) {
	sides := []struct {
		self  Element
		port  PortID
		other Element
	}{
		{p.src, p.wire.Source.Port, p.dst},
		{p.dst, p.wire.Target.Port, p.src},
	}
	for _, s := range sides {
		declared, err := HasPort(s.self.Type, s.port)
		if err != nil {
			return Result{}, err
		}
		if !declared {
			return reject("%s %s has no port %q", s.self.Type, s.self.ID, s.port), nil
		}
	}
	for _, s := range sides {
		r, err := checkCardinality(g, s.self, s.port, s.other)
		if err != nil || !r.Valid {
			return r, err
		}
	}
	return accept(), nil
}

// checkCardinality applies the per-port limits of self against a new wire to
// other.
func checkCardinality(g Graph, self Element, port PortID, other Element) (Result, error) {
	links := g.links(self.ID)
	switch {
	case self.Type.IsPower() && other.Type == Bus:
		if countPeers(links, func(l link) bool { return l.peer.Type == Bus }) >= 1 {
			return reject("%s %s is already connected to a bus", self.Type, self.ID), nil
		}
	case self.Type.IsPower() && other.Type == Meter:
		if countPeers(links, func(l link) bool { return l.peer.Type == Meter }) >= 1 {
			return reject("%s %s already has a meter", self.Type, self.ID), nil
		}
	case self.Type.IsFeeder() && (other.Type == Bus || other.Type == Switch):
		limit, err := PortMultiplicity(self.Type, port)
		if err != nil {
			return Result{}, err
		}
		onPort := countPeers(links, func(l link) bool { return l.port == port && l.peer.Type != Meter })
		if limit != Unbounded && onPort >= limit {
			return reject("%s %s port %s is already connected", self.Type, self.ID, port), nil
		}
		// a feeder takes a switch on one end only
		if other.Type == Switch && countPeers(links, func(l link) bool { return l.peer.Type == Switch }) >= 1 {
			return reject("%s %s cannot connect to switches on both ends", self.Type, self.ID), nil
		}
	case self.Type.IsFeeder() && other.Type == Meter:
		if countPeers(links, func(l link) bool { return l.port == port && l.peer.Type == Meter }) >= 1 {
			return reject("%s %s port %s already has a meter", self.Type, self.ID, port), nil
		}
	case self.Type == Switch:
		limit, err := PortMultiplicity(self.Type, port)
		if err != nil {
			return Result{}, err
		}
		onPort := countPeers(links, func(l link) bool { return l.port == port })
		if limit != Unbounded && onPort >= limit {
			return reject("switch %s port %s is already connected", self.ID, port), nil
		}
	case self.Type == Meter:
		if len(g.Edges(self.ID)) >= 1 {
			return reject("meter %s can only have one connection", self.ID), nil
		}
	}
	return accept(), nil
}

// checkSteadyState warns when the wire leaves a switch with no bus on either
// end. Such a switch is allowed but has no solvable steady state yet.
func checkSteadyState(g Graph, p *proposal) (Result, error) {
	for _, pair := range [][2]Element{{p.src, p.dst}, {p.dst, p.src}} {
		sw, other := pair[0], pair[1]
		if sw.Type != Switch || other.Type == Bus {
			continue
		}
		buses := countPeers(g.links(sw.ID), func(l link) bool { return l.peer.Type == Bus })
		if buses == 0 {
			return Result{
				Valid:   true,
				Warning: fmt.Sprintf("switch %s is not attached to a bus; at least one end of a switch should reach a bus for a solvable steady state", sw.ID),
			}, nil
		}
	}
	return accept(), nil
}

func countPeers(links []link, match func(link) bool) int {
	n := 0
	for _, l := range links {
		if match(l) {
			n++
		}
	}
	return n
}
