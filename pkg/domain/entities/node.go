package entities

import "fmt"

// NodeID identifies a location in the network
type NodeID string

// ProductID identifies a product
type ProductID string

// LegID identifies a route between two nodes
type LegID string

// TruckID identifies a truck schedule
type TruckID string

// NodeRole represents the echelon of a node
type NodeRole int

const (
	Manufacturing NodeRole = iota
	Hub
	Spoke
)

// String method for NodeRole enum
func (r NodeRole) String() string {
	switch r {
	case Manufacturing:
		return "Manufacturing"
	case Hub:
		return "Hub"
	case Spoke:
		return "Spoke"
	default:
		return "Unknown"
	}
}

// ParseNodeRole converts a role name into a NodeRole
func ParseNodeRole(s string) (NodeRole, error) {
	switch s {
	case "manufacturing", "Manufacturing":
		return Manufacturing, nil
	case "hub", "Hub":
		return Hub, nil
	case "spoke", "Spoke":
		return Spoke, nil
	default:
		return 0, fmt.Errorf("unknown node role %q", s)
	}
}

// StorageState represents how a cohort is being held
type StorageState int

const (
	Ambient StorageState = iota
	Frozen
	Thawed
)

// AllStorageStates lists every state in index order
var AllStorageStates = []StorageState{Ambient, Frozen, Thawed}

// String method for StorageState enum
func (s StorageState) String() string {
	switch s {
	case Ambient:
		return "Ambient"
	case Frozen:
		return "Frozen"
	case Thawed:
		return "Thawed"
	default:
		return "Unknown"
	}
}

// ParseStorageState converts a state name into a StorageState
func ParseStorageState(s string) (StorageState, error) {
	switch s {
	case "ambient", "Ambient":
		return Ambient, nil
	case "frozen", "Frozen":
		return Frozen, nil
	case "thawed", "Thawed":
		return Thawed, nil
	default:
		return 0, fmt.Errorf("unknown storage state %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler
func (s StorageState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *StorageState) UnmarshalText(b []byte) error {
	parsed, err := ParseStorageState(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Node represents a manufacturing site, hub or demand spoke
type Node struct {
	ID              NodeID
	Name            string
	Role            NodeRole
	SupportsFrozen  bool
	SupportsAmbient bool
	ProductionRate  float64 // units per labor hour, manufacturing site only
}

// NewNode creates a validated Node
func NewNode(id NodeID, name string, role NodeRole, supportsFrozen, supportsAmbient bool, productionRate float64) (*Node, error) {
	if id == "" {
		return nil, fmt.Errorf("node id cannot be empty")
	}
	if !supportsFrozen && !supportsAmbient {
		return nil, fmt.Errorf("node %s must support at least one storage state", id)
	}
	if productionRate < 0 {
		return nil, fmt.Errorf("production rate cannot be negative, got %g", productionRate)
	}
	if role == Manufacturing && productionRate == 0 {
		return nil, fmt.Errorf("manufacturing node %s requires a positive production rate", id)
	}
	if role == Manufacturing && !supportsAmbient {
		return nil, fmt.Errorf("manufacturing node %s must support ambient storage", id)
	}

	return &Node{
		ID:              id,
		Name:            name,
		Role:            role,
		SupportsFrozen:  supportsFrozen,
		SupportsAmbient: supportsAmbient,
		ProductionRate:  productionRate,
	}, nil
}

// Supports reports whether cohorts in state s may be held at the node
func (n *Node) Supports(s StorageState) bool {
	switch s {
	case Frozen:
		return n.SupportsFrozen
	case Ambient, Thawed:
		return n.SupportsAmbient
	default:
		return false
	}
}
