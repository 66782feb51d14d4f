package model

import "fmt"

// ConnectionState describes the microgrid's relationship to the wider grid.
type ConnectionState int

const (
	// GridConnected means the microgrid operates tied to the wider grid.
	GridConnected ConnectionState = iota
	// IslandDetected means grid loss was detected but autonomy is unconfirmed.
	IslandDetected
	// IslandStable means the microgrid sustains itself autonomously.
	IslandStable
	// Resynchronizing means the grid returned and reconnection is being confirmed.
	Resynchronizing
	// Fault is terminal until cleared by a supervisory operator.
	Fault
)

// String returns the state name used in logs, metrics and gossip payloads.
func (s ConnectionState) String() string {
	switch s {
	case GridConnected:
		return "grid_connected"
	case IslandDetected:
		return "island_detected"
	case IslandStable:
		return "island_stable"
	case Resynchronizing:
		return "resynchronizing"
	case Fault:
		return "fault"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// MicrogridNode identifies a microgrid participating in the network.
type MicrogridNode struct {
	ID        string
	Region    string
	Latitude  float64
	Longitude float64
	Peers     []string // known peer node identities
	State     ConnectionState
}

// Validate checks that the node configuration is sound.
func (n MicrogridNode) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("node id is required")
	}
	return nil
}
