package topology

import (
	"testing"

	"gotest.tools/v3/assert"
)

func findingCodes(fs []Finding) []string {
	codes := make([]string, 0, len(fs))
	for _, f := range fs {
		codes = append(codes, f.Code)
	}
	return codes
}

func TestAuditFindsStaleAttributes(t *testing.T) {
	snap := Snapshot{
		Elements: []Element{
			newElement("bus-1", Bus, 1),
			{ID: "load-1", Type: Load, Index: 1, Attributes: Attributes{AttrBus: 1}},
		},
	}
	assert.DeepEqual(t, findingCodes(Audit(snap)), []string{FindingStale})
}

func TestAuditFindsWiringViolations(t *testing.T) {
	snap := Snapshot{
		Elements: []Element{
			newElement("bus-1", Bus, 1),
			newElement("bus-2", Bus, 2),
			newElement("line-1", Line, 1),
		},
		Wires: []Wire{
			{ID: "w1", Source: Endpoint{"bus-1", PortCenter}, Target: Endpoint{"bus-1", PortCenter}},
			{ID: "w2", Source: Endpoint{"line-1", PortTop}, Target: Endpoint{"bus-1", PortCenter}},
			{ID: "w3", Source: Endpoint{"bus-1", PortCenter}, Target: Endpoint{"line-1", PortTop}},
			{ID: "w4", Source: Endpoint{"line-1", PortTop}, Target: Endpoint{"bus-2", PortCenter}},
			{ID: "w5", Source: Endpoint{"line-1", "middle"}, Target: Endpoint{"gen-1", PortTop}},
		},
	}
	codes := findingCodes(Audit(snap))
	assert.DeepEqual(t, codes, []string{
		FindingSelfWire,
		FindingDuplicatePair,
		FindingDangling,
		FindingPortOverflow,
	})
}
