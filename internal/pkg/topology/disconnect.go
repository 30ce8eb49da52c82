package topology

// PropagateOnDisconnect computes the patches that undo the derived state of w.
// snap must still contain w; the wires that remain are snap minus w. The
// result leaves every affected element as if w had never been wired.
func PropagateOnDisconnect(w Wire, snap Snapshot) (PatchSet, error) {
	g := NewGraph(snap)
	src, dst, ok := g.ends(w)
	if !ok {
		return nil, nil
	}
	if err := knownTypes(src, dst); err != nil {
		return nil, err
	}
	remaining := g.Without(w.ID)
	ps := disconnectRule(remaining, src, w.Source.Port, dst, w.Target.Port)
	if ps == nil {
		ps = disconnectRule(remaining, dst, w.Target.Port, src, w.Source.Port)
	}
	return ps.Merge(), nil
}

// disconnectRule matches the rule whose subject is x; nil when none does.
func disconnectRule(remaining Graph, x Element, xPort PortID, y Element, yPort PortID) PatchSet {
	switch {
	case x.Type == Meter:
		return PatchSet{{Element: x.ID, Clear: []string{AttrElementType, AttrElement, AttrSide}}}

	case x.Type.IsPower() && y.Type == Bus:
		return PatchSet{{Element: x.ID, Clear: []string{AttrBus}}}

	case x.Type.IsFeeder() && y.Type == Bus:
		key, ok := feederBusKey(x.Type, xPort)
		if !ok {
			return PatchSet{}
		}
		return PatchSet{{Element: x.ID, Clear: []string{key}}}

	case x.Type == Switch && y.Type == Bus:
		return disconnectSwitchBus(remaining, x, y.Index)

	case x.Type == Switch && y.Type.IsFeeder():
		return disconnectSwitchFeeder(remaining, x, y, yPort)
	}
	return nil
}

// disconnectSwitchBus demotes or promotes the bus slots of sw after losing
// the wire to bus index bus.
func disconnectSwitchBus(remaining Graph, sw Element, bus int) PatchSet {
	role := readSwitchRole(sw.Attributes)
	next := role
	second, parked := role.secondBus()

	switch {
	case parked && second == bus:
		next.Second = nil
	case role.Bus != nil && *role.Bus == bus:
		if parked {
			next.Bus = intPtr(second)
			next.Second = nil
		} else {
			next.Bus = nil
		}
	default:
		return PatchSet{}
	}

	ps := PatchSet{next.patch(sw.ID)}
	if next.Bus == nil {
		_, feeders := switchPeers(remaining, sw.ID)
		ps = append(ps, unfill(feeders, bus)...)
	}
	return ps
}

// disconnectSwitchFeeder drops feeder f from sw. The primary bus survives only
// if a bus wire remains; a feeder still wired to the other end takes the
// second slot back.
func disconnectSwitchFeeder(remaining Graph, sw Element, f Element, fPort PortID) PatchSet {
	role := readSwitchRole(sw.Attributes)
	buses, feeders := switchPeers(remaining, sw.ID)
	next := SwitchRole{}
	if len(buses) > 0 {
		next.Bus = intPtr(buses[0])
		if role.Bus != nil && containsInt(buses, *role.Bus) {
			next.Bus = intPtr(*role.Bus)
		}
	}
	if len(feeders) > 0 {
		next.Second = feeders[0].switchLink()
	}
	ps := PatchSet{next.patch(sw.ID)}

	// the feeder port was held by the switch, so its bus reference came from
	// backfill and goes with the wire
	if key, ok := feederBusKey(f.Type, fPort); ok && hasAttr(f.Attributes, key) {
		ps = append(ps, Patch{Element: f.ID, Clear: []string{key}})
	}
	return ps
}

// unfill clears the backfilled bus reference bus from feeders.
func unfill(feeders []feederPeer, bus int) PatchSet {
	var ps PatchSet
	for _, f := range feeders {
		key, ok := feederBusKey(f.element.Type, f.port)
		if !ok {
			continue
		}
		if v, set := intAttr(f.element.Attributes, key); set && v == bus {
			ps = append(ps, Patch{Element: f.element.ID, Clear: []string{key}})
		}
	}
	return ps
}
