package topology

import (
	"errors"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
)

func TestRejectSelfWire(t *testing.T) {
	for _, et := range ElementTypes() {
		d := newDiagram(t, newElement("x-1", et, 1))
		r := d.validate("x-1", PortTop, "x-1", PortBottom)
		assert.Assert(t, !r.Valid, "%s accepted a self wire", et)
		assert.Assert(t, strings.Contains(r.Reason, "itself"))
	}
}

func TestRejectBusToBus(t *testing.T) {
	d := newDiagram(t, newElement("bus-1", Bus, 1), newElement("bus-2", Bus, 2))
	r := d.validate("bus-1", PortCenter, "bus-2", PortCenter)
	assert.Assert(t, !r.Valid)
	assert.Assert(t, strings.Contains(r.Reason, "directly"))
}

func TestRejectDuplicatePair(t *testing.T) {
	d := newDiagram(t, newElement("bus-1", Bus, 1), newElement("line-1", Line, 1))
	d.connect("bus-1", PortCenter, "line-1", PortTop)

	// other orientation, other port: still the same element pair
	r := d.validate("line-1", PortBottom, "bus-1", PortCenter)
	assert.Assert(t, !r.Valid)
	assert.Assert(t, strings.Contains(r.Reason, "already exists"))
}

func TestRejectIncompatibleTypes(t *testing.T) {
	d := newDiagram(t, newElement("load-1", Load, 1), newElement("line-1", Line, 1))
	r := d.validate("load-1", PortTop, "line-1", PortTop)
	assert.Assert(t, !r.Valid)
	assert.Equal(t, r.Reason, "load cannot connect to line")
}

func TestRejectMissingElement(t *testing.T) {
	d := newDiagram(t, newElement("bus-1", Bus, 1))
	r := d.validate("gen-9", PortTop, "bus-1", PortCenter)
	assert.Assert(t, !r.Valid)
	assert.Equal(t, r.Reason, "element gen-9 not found")
}

func TestRejectUndeclaredPort(t *testing.T) {
	d := newDiagram(t, newElement("bus-1", Bus, 1), newElement("gen-1", Generator, 1))
	r := d.validate("gen-1", PortBottom, "bus-1", PortCenter)
	assert.Assert(t, !r.Valid)
	assert.Assert(t, strings.Contains(r.Reason, "has no port"))
}

func TestPowerElementSingleBus(t *testing.T) {
	d := newDiagram(t,
		newElement("bus-1", Bus, 1),
		newElement("bus-2", Bus, 2),
		newElement("gen-1", Generator, 1),
	)
	d.connect("gen-1", PortTop, "bus-1", PortCenter)

	r := d.validate("bus-2", PortCenter, "gen-1", PortTop)
	assert.Assert(t, !r.Valid)
	assert.Assert(t, strings.Contains(r.Reason, "already connected to a bus"))
}

func TestPowerElementSingleMeter(t *testing.T) {
	d := newDiagram(t,
		newElement("load-1", Load, 1),
		newElement("meter-1", Meter, 1),
		newElement("meter-2", Meter, 2),
	)
	d.connect("meter-1", PortTop, "load-1", PortTop)

	r := d.validate("meter-2", PortTop, "load-1", PortTop)
	assert.Assert(t, !r.Valid)
	assert.Assert(t, strings.Contains(r.Reason, "already has a meter"))
}

func TestMeterSingleConnection(t *testing.T) {
	d := newDiagram(t,
		newElement("bus-1", Bus, 1),
		newElement("bus-2", Bus, 2),
		newElement("load-1", Load, 1),
		newElement("meter-1", Meter, 1),
	)
	d.connect("meter-1", PortTop, "bus-1", PortCenter)

	for _, target := range []string{"bus-2", "load-1"} {
		port := PortCenter
		if target == "load-1" {
			port = PortTop
		}
		r := d.validate(target, port, "meter-1", PortTop)
		assert.Assert(t, !r.Valid, target)
		assert.Assert(t, strings.Contains(r.Reason, "only have one connection"), r.Reason)
	}
}

func TestFeederPortLimit(t *testing.T) {
	d := newDiagram(t,
		newElement("bus-1", Bus, 1),
		newElement("bus-2", Bus, 2),
		newElement("sw-1", Switch, 1),
		newElement("trafo-1", Transformer, 1),
	)
	d.connect("trafo-1", PortTop, "bus-1", PortCenter)

	r := d.validate("trafo-1", PortTop, "bus-2", PortCenter)
	assert.Assert(t, !r.Valid)
	assert.Assert(t, strings.Contains(r.Reason, "port top is already connected"))

	r = d.validate("sw-1", PortTop, "trafo-1", PortTop)
	assert.Assert(t, !r.Valid)

	r = d.validate("trafo-1", PortBottom, "bus-2", PortCenter)
	assert.Assert(t, r.Valid, r.Reason)
}

func TestFeederSwitchOnOneEndOnly(t *testing.T) {
	d := newDiagram(t,
		newElement("bus-1", Bus, 1),
		newElement("bus-2", Bus, 2),
		newElement("sw-1", Switch, 1),
		newElement("sw-2", Switch, 2),
		newElement("line-1", Line, 1),
		newElement("sw-3", Switch, 3),
		newElement("trafo-1", Transformer, 1),
	)
	d.connect("sw-1", PortTop, "bus-1", PortCenter)
	d.connect("sw-2", PortTop, "bus-2", PortCenter)
	d.connect("sw-1", PortBottom, "line-1", PortTop)

	r := d.validate("sw-2", PortBottom, "line-1", PortBottom)
	assert.Assert(t, !r.Valid)
	assert.Assert(t, strings.Contains(r.Reason, "line line-1 cannot connect to switches on both ends"), r.Reason)

	r = d.validate("line-1", PortBottom, "bus-2", PortCenter)
	assert.Assert(t, r.Valid, r.Reason)

	d.connect("trafo-1", PortTop, "sw-2", PortBottom)
	r = d.validate("trafo-1", PortBottom, "sw-3", PortTop)
	assert.Assert(t, !r.Valid)
}

func TestFeederPortAllowsOneMeter(t *testing.T) {
	d := newDiagram(t,
		newElement("bus-1", Bus, 1),
		newElement("line-1", Line, 1),
		newElement("meter-1", Meter, 1),
		newElement("meter-2", Meter, 2),
		newElement("meter-3", Meter, 3),
	)
	d.connect("line-1", PortTop, "bus-1", PortCenter)
	d.connect("meter-1", PortTop, "line-1", PortTop)

	r := d.validate("meter-2", PortTop, "line-1", PortTop)
	assert.Assert(t, !r.Valid)

	d.connect("meter-3", PortTop, "line-1", PortBottom)
}

func TestSwitchPortLimit(t *testing.T) {
	d := newDiagram(t,
		newElement("bus-1", Bus, 1),
		newElement("line-1", Line, 1),
		newElement("sw-1", Switch, 1),
	)
	d.connect("sw-1", PortTop, "bus-1", PortCenter)

	r := d.validate("sw-1", PortTop, "line-1", PortTop)
	assert.Assert(t, !r.Valid)
	assert.Assert(t, strings.Contains(r.Reason, "switch sw-1 port top"))

	r = d.validate("sw-1", PortBottom, "line-1", PortTop)
	assert.Assert(t, r.Valid, r.Reason)
}

func TestSteadyStateAdvisory(t *testing.T) {
	d := newDiagram(t,
		newElement("bus-1", Bus, 1),
		newElement("line-1", Line, 1),
		newElement("sw-1", Switch, 1),
	)
	r := d.validate("sw-1", PortTop, "line-1", PortBottom)
	assert.Assert(t, r.Valid)
	assert.Assert(t, strings.Contains(r.Warning, "should reach a bus"))

	r = d.validate("sw-1", PortTop, "bus-1", PortCenter)
	assert.Assert(t, r.Valid)
	assert.Equal(t, r.Warning, "")

	d.connect("sw-1", PortTop, "bus-1", PortCenter)
	r = d.validate("sw-1", PortBottom, "line-1", PortBottom)
	assert.Assert(t, r.Valid)
	assert.Equal(t, r.Warning, "")
}

func TestValidateUnknownType(t *testing.T) {
	d := newDiagram(t, newElement("bus-1", Bus, 1), newElement("x-1", ElementType(77), 1))
	_, err := ValidateConnection(d.proposal("x-1", PortTop, "bus-1", PortCenter), d.snap)
	assert.Assert(t, errors.Is(err, ErrUnknownType))
}
