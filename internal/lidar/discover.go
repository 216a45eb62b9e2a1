package lidar

import (
	"go.bug.st/serial/enumerator"
)

// CandidatePort describes a serial port worth attempting a connection to.
type CandidatePort struct {
	Name    string
	VID     string
	PID     string
	Product string
}

// ListCandidates enumerates serial ports and returns those matching a
// vendor ID known to ship this device family. Mirrors flex/main.go's
// scanAndConnectSerial/isFlexLike heuristic: browse every port, keep the
// ones that look plausible, let the caller try them in order.
func ListCandidates(vendorIDs ...string) ([]CandidatePort, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]bool, len(vendorIDs))
	for _, v := range vendorIDs {
		allowed[v] = true
	}

	var candidates []CandidatePort
	for _, p := range ports {
		if len(allowed) > 0 && !allowed[p.VID] {
			continue
		}
		candidates = append(candidates, CandidatePort{
			Name:    p.Name,
			VID:     p.VID,
			PID:     p.PID,
			Product: p.Product,
		})
	}
	return candidates, nil
}
