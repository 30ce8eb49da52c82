package topology

import "fmt"

// PropagateOnConnect computes the derived attribute patches caused by
// committing w. snap should already contain w; if it does not, w is added to
// the view. A wire whose elements are missing from snap yields no patches.
func PropagateOnConnect(w Wire, snap Snapshot) (PatchSet, error) {
	g := NewGraph(snap)
	if !containsWire(g.Wires(), w.ID) {
		g.AddEdge(w)
	}
	src, dst, ok := g.ends(w)
	if !ok {
		return nil, nil
	}
	if err := knownTypes(src, dst); err != nil {
		return nil, err
	}
	ps, err := connectRule(g, src, w.Source.Port, dst, w.Target.Port)
	if err != nil {
		return nil, err
	}
	if ps == nil {
		ps, err = connectRule(g, dst, w.Target.Port, src, w.Source.Port)
		if err != nil {
			return nil, err
		}
	}
	return ps.Merge(), nil
}

// connectRule matches the rule whose subject is x. It returns nil when no
// rule has x as its subject.
func connectRule(g Graph, x Element, xPort PortID, y Element, yPort PortID) (PatchSet, error) {
	switch {
	case x.Type == Meter:
		tag, err := y.Type.Tag()
		if err != nil {
			return nil, err
		}
		return PatchSet{{Element: x.ID, Set: Attributes{
			AttrElementType: tag,
			AttrElement:     y.Index,
			AttrSide:        Side(y.Type, yPort),
		}}}, nil

	case x.Type.IsPower() && y.Type == Bus:
		return PatchSet{{Element: x.ID, Set: Attributes{AttrBus: y.Index}}}, nil

	case x.Type.IsFeeder() && y.Type == Bus:
		key, ok := feederBusKey(x.Type, xPort)
		if !ok {
			return PatchSet{}, nil
		}
		return PatchSet{{Element: x.ID, Set: Attributes{key: y.Index}}}, nil

	case x.Type == Switch && y.Type == Bus:
		return connectSwitchBus(g, x), nil

	case x.Type == Switch && y.Type.IsFeeder():
		return connectSwitchFeeder(g, x, y)
	}
	return nil, nil
}

// connectSwitchBus re-derives the role of sw from all of its current wires.
func connectSwitchBus(g Graph, sw Element) PatchSet {
	role := readSwitchRole(sw.Attributes)
	buses, feeders := switchPeers(g, sw.ID)
	next := role

	switch {
	case len(buses) >= 2:
		primary := buses[0]
		if role.Bus != nil && containsInt(buses, *role.Bus) {
			primary = *role.Bus
		}
		for _, b := range buses {
			if b != primary {
				next.Bus = intPtr(primary)
				next.Second = &SwitchLink{Kind: "bus", Index: b}
				break
			}
		}

	case len(buses) == 1 && len(feeders) > 0:
		if role.Bus == nil {
			next.Bus = intPtr(buses[0])
		}
		next.Second = feeders[0].switchLink()

	case len(buses) == 1:
		if role.Bus == nil {
			next.Bus = intPtr(buses[0])
		} else if *role.Bus != buses[0] {
			next.Second = &SwitchLink{Kind: "bus", Index: buses[0]}
		}
	}

	ps := PatchSet{next.patch(sw.ID)}
	return append(ps, backfill(feeders, next)...)
}

// connectSwitchFeeder records feeder f on the second slot of sw.
func connectSwitchFeeder(g Graph, sw Element, f Element) (PatchSet, error) {
	kind, err := f.Type.Tag()
	if err != nil {
		return nil, err
	}
	role := readSwitchRole(sw.Attributes)
	buses, feeders := switchPeers(g, sw.ID)
	next := role
	next.Second = &SwitchLink{Kind: kind, Index: f.Index}
	if next.Bus == nil && len(buses) > 0 {
		next.Bus = intPtr(buses[0])
	}
	ps := PatchSet{next.patch(sw.ID)}
	return append(ps, backfill(feeders, next)...), nil
}

// feederPeer is a line or transformer wired to a switch, with the feeder-side
// port of that wire.
type feederPeer struct {
	element Element
	port    PortID
}

func (f feederPeer) switchLink() *SwitchLink {
	kind, _ := f.element.Type.Tag()
	return &SwitchLink{Kind: kind, Index: f.element.Index}
}

// switchPeers collects attached bus indices and feeders of a switch in wire
// order. Meters are ignored.
func switchPeers(g Graph, id string) ([]int, []feederPeer) {
	var buses []int
	var feeders []feederPeer
	for _, l := range g.links(id) {
		switch {
		case l.peer.Type == Bus:
			if !containsInt(buses, l.peer.Index) {
				buses = append(buses, l.peer.Index)
			}
		case l.peer.Type.IsFeeder():
			feeders = append(feeders, feederPeer{element: l.peer, port: l.pport})
		}
	}
	return buses, feeders
}

// backfill lets a switch-mediated bus populate the bus reference of every
// feeder wired to the switch whose reference on that port is still empty.
func backfill(feeders []feederPeer, role SwitchRole) PatchSet {
	if role.Bus == nil {
		return nil
	}
	var ps PatchSet
	for _, f := range feeders {
		key, ok := feederBusKey(f.element.Type, f.port)
		if !ok || hasAttr(f.element.Attributes, key) {
			continue
		}
		ps = append(ps, Patch{Element: f.element.ID, Set: Attributes{key: *role.Bus}})
	}
	return ps
}

func knownTypes(elements ...Element) error {
	for _, e := range elements {
		if !e.Type.Valid() {
			return fmt.Errorf("element %s: %w: %d", e.ID, ErrUnknownType, int(e.Type))
		}
	}
	return nil
}

func containsWire(wires []Wire, id string) bool {
	for _, w := range wires {
		if w.ID == id {
			return true
		}
	}
	return false
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
