package topology

// PortID names an attachment point on an element.
type PortID string

// Constants of PortID
const (
	PortCenter PortID = "center" // bus
	PortTop    PortID = "top"    // port A, and the only port of single-port elements
	PortBottom PortID = "bottom" // port B
)

// Derived attribute keys written by the engine.
const (
	AttrBus         = "bus"
	AttrFromBus     = "from_bus"
	AttrToBus       = "to_bus"
	AttrHVBus       = "hv_bus"
	AttrLVBus       = "lv_bus"
	AttrElementType = "element_type"
	AttrElement     = "element"
	AttrSide        = "side"
)

// DerivedKeys lists every attribute key owned by the engine.
func DerivedKeys() []string {
	return []string{AttrBus, AttrFromBus, AttrToBus, AttrHVBus, AttrLVBus, AttrElementType, AttrElement, AttrSide}
}

// IsDerivedKey reports whether key is owned by the engine.
func IsDerivedKey(key string) bool {
	for _, k := range DerivedKeys() {
		if k == key {
			return true
		}
	}
	return false
}

// feederBusKey returns the bus reference attribute a feeder stores for port.
func feederBusKey(t ElementType, port PortID) (string, bool) {
	switch {
	case t == Line && port == PortTop:
		return AttrFromBus, true
	case t == Line && port == PortBottom:
		return AttrToBus, true
	case t == Transformer && port == PortTop:
		return AttrHVBus, true
	case t == Transformer && port == PortBottom:
		return AttrLVBus, true
	}
	return "", false
}

// Side maps a wired port onto its canonical side name, as recorded by meters.
func Side(t ElementType, port PortID) string {
	if key, ok := feederBusKey(t, port); ok {
		return key
	}
	switch {
	case t == Switch && port == PortTop:
		return "left"
	case t == Switch && port == PortBottom:
		return "right"
	case t == Bus:
		return string(PortCenter)
	}
	return string(port)
}
