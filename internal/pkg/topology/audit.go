package topology

import "fmt"

// Finding is one consistency violation found by Audit.
type Finding struct {
	Code    string `json:"code"`
	Element string `json:"element,omitempty"`
	Wire    string `json:"wire,omitempty"`
	Message string `json:"message"`
}

// Finding codes
const (
	FindingSelfWire      = "self_wire"
	FindingDuplicatePair = "duplicate_pair"
	FindingUnknownPort   = "unknown_port"
	FindingPortOverflow  = "port_overflow"
	FindingDangling      = "dangling_wire"
	FindingStale         = "stale_attribute"
)

// Audit checks snap against the topology invariants: no self wires, no
// repeated element pairs, no port over its limit, and no derived attribute
// that refers to something not currently wired. An empty result means the
// snapshot is consistent.
func Audit(snap Snapshot) []Finding {
	g := NewGraph(snap)
	findings := make([]Finding, 0)

	for i, w := range g.Wires() {
		if w.Source.Element == w.Target.Element {
			findings = append(findings, Finding{Code: FindingSelfWire, Wire: w.ID, Element: w.Source.Element,
				Message: fmt.Sprintf("wire %s connects %s to itself", w.ID, w.Source.Element)})
		}
		for _, o := range g.Wires()[:i] {
			if o.SamePair(w) {
				findings = append(findings, Finding{Code: FindingDuplicatePair, Wire: w.ID,
					Message: fmt.Sprintf("wire %s repeats the pair of wire %s", w.ID, o.ID)})
				break
			}
		}
		if _, _, ok := g.ends(w); !ok {
			findings = append(findings, Finding{Code: FindingDangling, Wire: w.ID,
				Message: fmt.Sprintf("wire %s references an element that does not exist", w.ID)})
		}
	}

	for _, e := range snap.Elements {
		if !e.Type.Valid() {
			continue
		}
		findings = append(findings, auditPorts(g, e)...)
		findings = append(findings, auditDerived(g, e)...)
	}
	return findings
}

func auditPorts(g Graph, e Element) []Finding {
	var out []Finding
	links := g.links(e.ID)
	counts := make(map[PortID]int)
	for _, l := range links {
		if declared, _ := HasPort(e.Type, l.port); !declared {
			out = append(out, Finding{Code: FindingUnknownPort, Element: e.ID, Wire: l.wire.ID,
				Message: fmt.Sprintf("%s %s has no port %q", e.Type, e.ID, l.port)})
			continue
		}
		if l.peer.Type == Meter && e.Type != Switch {
			continue
		}
		counts[l.port]++
	}
	switch {
	case e.Type == Meter:
		if len(links) > 1 {
			out = append(out, overflow(e, PortTop, len(links), 1))
		}
	case e.Type.IsPower():
		buses := countPeers(links, func(l link) bool { return l.peer.Type == Bus })
		if buses > 1 {
			out = append(out, overflow(e, PortTop, buses, 1))
		}
	default:
		for port, n := range counts {
			limit, err := PortMultiplicity(e.Type, port)
			if err == nil && limit != Unbounded && n > limit {
				out = append(out, overflow(e, port, n, limit))
			}
		}
	}
	return out
}

func overflow(e Element, port PortID, n, limit int) Finding {
	return Finding{Code: FindingPortOverflow, Element: e.ID,
		Message: fmt.Sprintf("%s %s port %s has %d wires, limit %d", e.Type, e.ID, port, n, limit)}
}

// auditDerived checks that every derived attribute of e names a counterpart
// that is wired right now.
func auditDerived(g Graph, e Element) []Finding {
	var out []Finding
	stale := func(key string) {
		out = append(out, Finding{Code: FindingStale, Element: e.ID,
			Message: fmt.Sprintf("%s %s attribute %s=%v has no wired counterpart", e.Type, e.ID, key, e.Attributes[key])})
	}
	links := g.links(e.ID)

	switch {
	case e.Type.IsPower():
		if idx, ok := intAttr(e.Attributes, AttrBus); ok && !hasPeer(links, "bus", idx) {
			stale(AttrBus)
		}

	case e.Type.IsFeeder():
		for _, port := range []PortID{PortTop, PortBottom} {
			key, _ := feederBusKey(e.Type, port)
			idx, ok := intAttr(e.Attributes, key)
			if ok && !feederReaches(g, links, port, idx) {
				stale(key)
			}
		}

	case e.Type == Switch:
		role := readSwitchRole(e.Attributes)
		if role.Bus != nil && !hasPeer(links, "bus", *role.Bus) {
			stale(AttrBus)
		}
		if role.Second != nil && !hasPeer(links, role.Second.Kind, role.Second.Index) {
			stale(AttrElement)
		}

	case e.Type == Meter:
		kind, _ := e.Attributes[AttrElementType].(string)
		if idx, ok := intAttr(e.Attributes, AttrElement); ok && !hasPeer(links, kind, idx) {
			stale(AttrElement)
		}
	}
	return out
}

func hasPeer(links []link, tag string, index int) bool {
	for _, l := range links {
		if t, err := l.peer.Type.Tag(); err == nil && t == tag && l.peer.Index == index {
			return true
		}
	}
	return false
}

// feederReaches reports whether port of a feeder reaches bus index, directly
// or through a switch.
func feederReaches(g Graph, links []link, port PortID, index int) bool {
	for _, l := range links {
		if l.port != port {
			continue
		}
		if l.peer.Type == Bus && l.peer.Index == index {
			return true
		}
		if l.peer.Type == Switch {
			buses, _ := switchPeers(g, l.peer.ID)
			if containsInt(buses, index) {
				return true
			}
		}
	}
	return false
}
