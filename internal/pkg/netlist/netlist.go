/*
netlist.go Solver-facing export of a diagram. Each element becomes a row in the
table a power flow solver expects, keyed by the derived bus references the
topology engine maintains. Elements whose references are incomplete are
reported instead of exported.
*/

package netlist

import (
	"fmt"
	"sort"

	"github.com/ohowland/sldcore/internal/pkg/topology"
)

// Bus row
type Bus struct {
	Index      int                    `json:"index"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// Branch row, shared by lines (from/to) and transformers (hv/lv)
type Branch struct {
	Index      int                    `json:"index"`
	From       int                    `json:"from_bus"`
	To         int                    `json:"to_bus"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// Switch row. ET is "b", "l" or "t" for a bus, line or trafo counterpart.
type Switch struct {
	Index      int                    `json:"index"`
	Bus        int                    `json:"bus"`
	Element    int                    `json:"element"`
	ET         string                 `json:"et"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// Injection row for single-port power elements
type Injection struct {
	Kind       string                 `json:"kind"`
	Index      int                    `json:"index"`
	Bus        int                    `json:"bus"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// Measurement row
type Measurement struct {
	Index       int                    `json:"index"`
	ElementType string                 `json:"element_type"`
	Element     int                    `json:"element"`
	Side        string                 `json:"side"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// Skipped names an element left out of the export.
type Skipped struct {
	Element string `json:"element"`
	Reason  string `json:"reason"`
}

// Netlist is the complete export.
type Netlist struct {
	Buses        []Bus         `json:"bus"`
	Lines        []Branch      `json:"line"`
	Trafos       []Branch      `json:"trafo"`
	Switches     []Switch      `json:"switch"`
	Injections   []Injection   `json:"injection"`
	Measurements []Measurement `json:"measurement"`
	Skipped      []Skipped     `json:"skipped"`
}

var switchET = map[string]string{
	"bus":   "b",
	"line":  "l",
	"trafo": "t",
}

// Build exports snap. It never fails on incomplete wiring; such elements end
// up in Skipped.
func Build(snap topology.Snapshot) (Netlist, error) {
	n := Netlist{
		Buses:        make([]Bus, 0),
		Lines:        make([]Branch, 0),
		Trafos:       make([]Branch, 0),
		Switches:     make([]Switch, 0),
		Injections:   make([]Injection, 0),
		Measurements: make([]Measurement, 0),
		Skipped:      make([]Skipped, 0),
	}
	elements := append([]topology.Element(nil), snap.Elements...)
	sort.SliceStable(elements, func(i, j int) bool {
		if elements[i].Type != elements[j].Type {
			return elements[i].Type < elements[j].Type
		}
		return elements[i].Index < elements[j].Index
	})

	for _, e := range elements {
		params := parameters(e.Attributes)
		skip := func(format string, args ...interface{}) {
			n.Skipped = append(n.Skipped, Skipped{Element: e.ID, Reason: fmt.Sprintf(format, args...)})
		}

		switch {
		case e.Type == topology.Bus:
			n.Buses = append(n.Buses, Bus{Index: e.Index, Parameters: params})

		case e.Type == topology.Line || e.Type == topology.Transformer:
			fromKey, toKey := topology.AttrFromBus, topology.AttrToBus
			if e.Type == topology.Transformer {
				fromKey, toKey = topology.AttrHVBus, topology.AttrLVBus
			}
			from, ok1 := e.Attributes.Int(fromKey)
			to, ok2 := e.Attributes.Int(toKey)
			if !ok1 || !ok2 {
				skip("%s %s needs both %s and %s", e.Type, e.ID, fromKey, toKey)
				continue
			}
			row := Branch{Index: e.Index, From: from, To: to, Parameters: params}
			if e.Type == topology.Line {
				n.Lines = append(n.Lines, row)
			} else {
				n.Trafos = append(n.Trafos, row)
			}

		case e.Type == topology.Switch:
			bus, ok1 := e.Attributes.Int(topology.AttrBus)
			element, ok2 := e.Attributes.Int(topology.AttrElement)
			kind, _ := e.Attributes[topology.AttrElementType].(string)
			et, ok3 := switchET[kind]
			if !ok1 || !ok2 || !ok3 {
				skip("switch %s needs a bus and a counterpart", e.ID)
				continue
			}
			n.Switches = append(n.Switches, Switch{Index: e.Index, Bus: bus, Element: element, ET: et, Parameters: params})

		case e.Type.IsPower():
			kind, err := e.Type.Tag()
			if err != nil {
				return Netlist{}, err
			}
			bus, ok := e.Attributes.Int(topology.AttrBus)
			if !ok {
				skip("%s %s is not connected to a bus", e.Type, e.ID)
				continue
			}
			n.Injections = append(n.Injections, Injection{Kind: kind, Index: e.Index, Bus: bus, Parameters: params})

		case e.Type == topology.Meter:
			kind, _ := e.Attributes[topology.AttrElementType].(string)
			element, ok := e.Attributes.Int(topology.AttrElement)
			if kind == "" || !ok {
				skip("meter %s is not connected", e.ID)
				continue
			}
			side, _ := e.Attributes[topology.AttrSide].(string)
			n.Measurements = append(n.Measurements, Measurement{Index: e.Index, ElementType: kind, Element: element, Side: side, Parameters: params})

		default:
			return Netlist{}, fmt.Errorf("%w: %d", topology.ErrUnknownType, int(e.Type))
		}
	}
	return n, nil
}

// parameters is the user-owned part of attrs, or nil when there is none.
func parameters(attrs topology.Attributes) map[string]interface{} {
	var out map[string]interface{}
	for k, v := range attrs {
		if topology.IsDerivedKey(k) {
			continue
		}
		if out == nil {
			out = make(map[string]interface{})
		}
		out[k] = v
	}
	return out
}
