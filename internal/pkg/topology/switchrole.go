package topology

import (
	"encoding/json"
	"math"
)

// SwitchLink is what the second slot of a switch points at: a bus it ties to,
// or the line/transformer it disconnects.
type SwitchLink struct {
	Kind  string // "bus", "line" or "trafo"
	Index int
}

// SwitchRole is the up-to-two attachments of a switch, ordered by arrival.
// Bus is the primary bus; Second is either a second bus or a feeder.
type SwitchRole struct {
	Bus    *int
	Second *SwitchLink
}

// readSwitchRole decodes the role from the bus/element_type/element attributes.
func readSwitchRole(attrs Attributes) SwitchRole {
	var r SwitchRole
	if idx, ok := intAttr(attrs, AttrBus); ok {
		r.Bus = &idx
	}
	kind, _ := attrs[AttrElementType].(string)
	if idx, ok := intAttr(attrs, AttrElement); ok && kind != "" {
		r.Second = &SwitchLink{Kind: kind, Index: idx}
	}
	return r
}

// secondBus returns the parked second bus, if the second slot holds one.
func (r SwitchRole) secondBus() (int, bool) {
	if r.Second != nil && r.Second.Kind == "bus" {
		return r.Second.Index, true
	}
	return 0, false
}

// patch writes the role onto element id, clearing absent slots.
func (r SwitchRole) patch(id string) Patch {
	p := Patch{Element: id, Set: Attributes{}}
	if r.Bus != nil {
		p.Set[AttrBus] = *r.Bus
	} else {
		p.Clear = append(p.Clear, AttrBus)
	}
	if r.Second != nil {
		p.Set[AttrElementType] = r.Second.Kind
		p.Set[AttrElement] = r.Second.Index
	} else {
		p.Clear = append(p.Clear, AttrElementType, AttrElement)
	}
	return p
}

func intPtr(i int) *int {
	return &i
}

const (
	maxInt = int(^uint(0) >> 1)
	minInt = -maxInt - 1
)

// intAttr reads an integer attribute. Values decoded from JSON or BSON arrive
// as float64, int32 or int64. Values that do not fit an int are rejected.
func intAttr(attrs Attributes, key string) (int, bool) {
	switch v := attrs[key].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int64ToInt(v)
	case float64:
		// -float64(minInt) is the first value past maxInt and is exact
		if v != math.Trunc(v) || v < float64(minInt) || v >= -float64(minInt) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int64ToInt(i)
	}
	return 0, false
}

func int64ToInt(v int64) (int, bool) {
	if v < int64(minInt) || v > int64(maxInt) {
		return 0, false
	}
	return int(v), true
}

// hasAttr reports whether key is present and non-nil.
func hasAttr(attrs Attributes, key string) bool {
	v, ok := attrs[key]
	return ok && v != nil
}
