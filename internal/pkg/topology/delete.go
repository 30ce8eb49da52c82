package topology

// BatchResult is the outcome of DeleteBatch.
type BatchResult struct {
	Elements []Element `json:"elements"` // remaining elements, patches applied
	Wires    []Wire    `json:"wires"`    // remaining wires
	Removed  []Wire    `json:"removed"`  // wires removed, in processing order
	Patches  PatchSet  `json:"patches"`  // merged patches for surviving elements
}

// DeleteBatch removes the given elements and wires from snap as one logical
// operation. Every wire touching a selected element is removed as well. Each
// wire is reversed against the running snapshot, so earlier removals in the
// batch are visible to later ones. Ids missing from snap are ignored.
func DeleteBatch(elementIDs, wireIDs []string, snap Snapshot) (BatchResult, error) {
	doomed := make(map[string]bool, len(elementIDs))
	for _, id := range elementIDs {
		doomed[id] = true
	}

	removal := removalSet(wireIDs, doomed, snap.Wires)

	running := Snapshot{
		Elements: append([]Element(nil), snap.Elements...),
		Wires:    append([]Wire(nil), snap.Wires...),
	}
	var all PatchSet
	removed := make([]Wire, 0, len(removal))
	for _, w := range removal {
		ps, err := PropagateOnDisconnect(w, running)
		if err != nil {
			return BatchResult{}, err
		}
		running.Elements = Apply(running.Elements, ps)
		running.Wires = dropWire(running.Wires, w.ID)
		removed = append(removed, w)
		all = append(all, ps...)
	}

	elements := make([]Element, 0, len(running.Elements))
	for _, e := range running.Elements {
		if !doomed[e.ID] {
			elements = append(elements, e)
		}
	}
	patches := make(PatchSet, 0, len(all))
	for _, p := range all.Merge() {
		if !doomed[p.Element] {
			patches = append(patches, p)
		}
	}

	return BatchResult{
		Elements: elements,
		Wires:    running.Wires,
		Removed:  removed,
		Patches:  patches,
	}, nil
}

// removalSet is the selected wires followed by every wire touching a doomed
// element, without repeats, in snapshot order within each group.
func removalSet(wireIDs []string, doomed map[string]bool, wires []Wire) []Wire {
	selected := make(map[string]bool, len(wireIDs))
	for _, id := range wireIDs {
		selected[id] = true
	}
	seen := make(map[string]bool)
	out := make([]Wire, 0)
	for _, w := range wires {
		if selected[w.ID] && !seen[w.ID] {
			seen[w.ID] = true
			out = append(out, w)
		}
	}
	for _, w := range wires {
		if seen[w.ID] {
			continue
		}
		if doomed[w.Source.Element] || doomed[w.Target.Element] {
			seen[w.ID] = true
			out = append(out, w)
		}
	}
	return out
}

func dropWire(wires []Wire, id string) []Wire {
	out := make([]Wire, 0, len(wires))
	for _, w := range wires {
		if w.ID != id {
			out = append(out, w)
		}
	}
	return out
}
