/*
element.go Data model of a single-line diagram: typed elements, their ports and
the wires between them. A Snapshot is the read-only view the engine works on.
*/

package topology

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ElementType is the closed set of placeable network components.
type ElementType int

// Constants of ElementType
const (
	Bus ElementType = iota + 1
	Line
	Transformer
	Switch
	Generator
	Storage
	Load
	Charger
	Meter
	ExternalGrid
)

// ErrUnknownType signals an element type outside the closed set. It indicates
// a schema mismatch between the caller and the engine.
var ErrUnknownType = errors.New("unknown element type")

var typeNames = map[ElementType]string{
	Bus:          "bus",
	Line:         "line",
	Transformer:  "transformer",
	Switch:       "switch",
	Generator:    "generator",
	Storage:      "storage",
	Load:         "load",
	Charger:      "charger",
	Meter:        "meter",
	ExternalGrid: "external_grid",
}

// solver kind tags written into element_type attributes
var typeTags = map[ElementType]string{
	Bus:          "bus",
	Line:         "line",
	Transformer:  "trafo",
	Switch:       "switch",
	Generator:    "sgen",
	Storage:      "storage",
	Load:         "load",
	Charger:      "charger",
	Meter:        "meter",
	ExternalGrid: "ext_grid",
}

// ElementTypes lists every known type in declaration order.
func ElementTypes() []ElementType {
	return []ElementType{Bus, Line, Transformer, Switch, Generator, Storage, Load, Charger, Meter, ExternalGrid}
}

// Valid reports whether t belongs to the closed set.
func (t ElementType) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

func (t ElementType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ElementType(%d)", int(t))
}

// Tag returns the element-kind tag the power-flow side uses for t.
func (t ElementType) Tag() (string, error) {
	tag, ok := typeTags[t]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownType, int(t))
	}
	return tag, nil
}

// IsPower reports whether t is a single-port power element.
func (t ElementType) IsPower() bool {
	switch t {
	case Generator, Storage, Load, Charger, ExternalGrid:
		return true
	}
	return false
}

// IsFeeder reports whether t is a two-port inline element (line or transformer).
func (t ElementType) IsFeeder() bool {
	return t == Line || t == Transformer
}

// ParseElementType maps a type name onto the enum.
func ParseElementType(name string) (ElementType, error) {
	for t, n := range typeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// MarshalJSON encodes the type as its name.
func (t ElementType) MarshalJSON() ([]byte, error) {
	name, ok := typeNames[t]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, int(t))
	}
	return json.Marshal(name)
}

// UnmarshalJSON decodes a type name.
func (t *ElementType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseElementType(name)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Attributes is the open attribute map of an element. It holds user fields
// (ratings, names) as well as the derived fields owned by the engine.
type Attributes map[string]interface{}

// Copy returns a shallow copy of the map.
func (a Attributes) Copy() Attributes {
	c := make(Attributes, len(a))
	for k, v := range a {
		c[k] = v
	}
	return c
}

// Int reads key as an integer, accepting the numeric forms JSON and BSON
// decoding produce.
func (a Attributes) Int(key string) (int, bool) {
	return intAttr(a, key)
}

// Element is a placed network component.
type Element struct {
	ID         string      `json:"id"`
	Type       ElementType `json:"type"`
	Index      int         `json:"index"`
	Attributes Attributes  `json:"attributes"`
}

// Endpoint is one side of a wire.
type Endpoint struct {
	Element string `json:"element"`
	Port    PortID `json:"port"`
}

// Wire connects two element ports. Validation treats it as undirected;
// attribute derivation uses the stored Source/Target orientation.
type Wire struct {
	ID     string   `json:"id"`
	Source Endpoint `json:"source"`
	Target Endpoint `json:"target"`
}

// Touches reports whether the wire ends on element id.
func (w Wire) Touches(id string) bool {
	return w.Source.Element == id || w.Target.Element == id
}

// SamePair reports whether both wires join the same unordered element pair.
func (w Wire) SamePair(o Wire) bool {
	return (w.Source.Element == o.Source.Element && w.Target.Element == o.Target.Element) ||
		(w.Source.Element == o.Target.Element && w.Target.Element == o.Source.Element)
}

// Snapshot is the caller-supplied view of all elements and wires. The engine
// never mutates it.
type Snapshot struct {
	Elements []Element `json:"elements"`
	Wires    []Wire    `json:"wires"`
}
