package topology

import "sort"

// Patch is a change to the derived attributes of one element. Keys in Clear
// are removed after the keys in Set are written.
type Patch struct {
	Element string     `json:"element"`
	Set     Attributes `json:"set,omitempty"`
	Clear   []string   `json:"clear,omitempty"`
}

// PatchSet is an ordered list of patches. Later patches win.
type PatchSet []Patch

// Empty reports whether the patch carries no change.
func (p Patch) Empty() bool {
	return len(p.Set) == 0 && len(p.Clear) == 0
}

// Merge folds the patches into at most one patch per element, keeping the
// order in which elements were first touched.
func (ps PatchSet) Merge() PatchSet {
	index := make(map[string]int)
	out := make(PatchSet, 0, len(ps))
	for _, p := range ps {
		i, ok := index[p.Element]
		if !ok {
			index[p.Element] = len(out)
			out = append(out, Patch{Element: p.Element, Set: Attributes{}})
			i = len(out) - 1
		}
		out[i] = fold(out[i], p)
	}
	merged := out[:0]
	for _, p := range out {
		if !p.Empty() {
			merged = append(merged, p)
		}
	}
	return merged
}

func fold(acc, p Patch) Patch {
	for k, v := range p.Set {
		acc.Set[k] = v
		acc.Clear = removeKey(acc.Clear, k)
	}
	for _, k := range p.Clear {
		delete(acc.Set, k)
		if !containsKey(acc.Clear, k) {
			acc.Clear = append(acc.Clear, k)
		}
	}
	sort.Strings(acc.Clear)
	return acc
}

// For returns the merged patch touching id, if any.
func (ps PatchSet) For(id string) (Patch, bool) {
	for _, p := range ps.Merge() {
		if p.Element == id {
			return p, true
		}
	}
	return Patch{}, false
}

// Apply returns a copy of elements with the patches applied. Patches naming
// an element that is not present are ignored. The input is not modified.
func Apply(elements []Element, patches PatchSet) []Element {
	out := make([]Element, len(elements))
	pos := make(map[string]int, len(elements))
	for i, e := range elements {
		out[i] = e
		if _, seen := pos[e.ID]; !seen {
			pos[e.ID] = i
		}
	}
	copied := make(map[int]bool)
	for _, p := range patches {
		i, ok := pos[p.Element]
		if !ok {
			continue
		}
		if !copied[i] {
			out[i].Attributes = out[i].Attributes.Copy()
			copied[i] = true
		}
		for k, v := range p.Set {
			out[i].Attributes[k] = v
		}
		for _, k := range p.Clear {
			delete(out[i].Attributes, k)
		}
	}
	return out
}

func containsKey(keys []string, k string) bool {
	for _, key := range keys {
		if key == k {
			return true
		}
	}
	return false
}

func removeKey(keys []string, k string) []string {
	out := keys[:0]
	for _, key := range keys {
		if key != k {
			out = append(out, key)
		}
	}
	return out
}
