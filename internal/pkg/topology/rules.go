package topology

import (
	"errors"
	"fmt"
)

// Unbounded is the multiplicity of a port that accepts any number of wires.
const Unbounded = -1

type portSpec struct {
	id           PortID
	multiplicity int
}

var portTable = map[ElementType][]portSpec{
	Bus:          {{PortCenter, Unbounded}},
	Line:         {{PortTop, 1}, {PortBottom, 1}},
	Transformer:  {{PortTop, 1}, {PortBottom, 1}},
	Switch:       {{PortTop, 1}, {PortBottom, 1}},
	Generator:    {{PortTop, 1}},
	Storage:      {{PortTop, 1}},
	Load:         {{PortTop, 1}},
	Charger:      {{PortTop, 1}},
	Meter:        {{PortTop, 1}},
	ExternalGrid: {{PortTop, 1}},
}

// Ports returns the declared port ids of t.
func Ports(t ElementType) ([]PortID, error) {
	specs, ok := portTable[t]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, int(t))
	}
	ids := make([]PortID, len(specs))
	for i, s := range specs {
		ids[i] = s.id
	}
	return ids, nil
}

// HasPort reports whether t declares port.
func HasPort(t ElementType, port PortID) (bool, error) {
	_, err := PortMultiplicity(t, port)
	if errors.Is(err, ErrUndeclaredPort) {
		return false, nil
	}
	return err == nil, err
}

// ErrUndeclaredPort is returned for a port id the element type does not have.
var ErrUndeclaredPort = errors.New("port not declared")

// PortMultiplicity returns how many wires port of t accepts from its primary
// counterparts, or Unbounded. Meter attachments are limited separately.
func PortMultiplicity(t ElementType, port PortID) (int, error) {
	specs, ok := portTable[t]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownType, int(t))
	}
	for _, s := range specs {
		if s.id == port {
			return s.multiplicity, nil
		}
	}
	return 0, fmt.Errorf("%w: %s has no port %q", ErrUndeclaredPort, t, port)
}

// Compatible reports whether a wire may join an element of type a with one of
// type b. The relation is symmetric. A bus never wires directly to a bus.
func Compatible(a, b ElementType) (bool, error) {
	if !a.Valid() {
		return false, fmt.Errorf("%w: %d", ErrUnknownType, int(a))
	}
	if !b.Valid() {
		return false, fmt.Errorf("%w: %d", ErrUnknownType, int(b))
	}
	return compatible(a, b) || compatible(b, a), nil
}

func compatible(a, b ElementType) bool {
	switch {
	case a.IsPower():
		return b == Bus || b == Meter
	case a.IsFeeder():
		return b == Bus || b == Switch || b == Meter
	case a == Switch:
		return b == Bus || b.IsFeeder() || b == Meter
	case a == Meter:
		return b == Bus || b.IsFeeder() || b == Switch || b.IsPower()
	}
	return false
}
