package entities

import (
	"fmt"
	"sort"
)

// Network is the validated topology of a planning run: nodes, legs and truck schedules
type Network struct {
	nodes         map[NodeID]*Node
	nodeOrder     []NodeID
	legs          []*Leg
	legsByID      map[LegID]*Leg
	legsFrom      map[NodeID][]*Leg
	legsInto      map[NodeID][]*Leg
	trucks        []*TruckSchedule
	trucksByLane  map[LaneKey][]*TruckSchedule
	manufacturing *Node
}

// NewNetwork validates references between nodes, legs and trucks and builds the lookup tables
func NewNetwork(nodes []*Node, legs []*Leg, trucks []*TruckSchedule) (*Network, error) {
	n := &Network{
		nodes:        make(map[NodeID]*Node, len(nodes)),
		legsByID:     make(map[LegID]*Leg, len(legs)),
		legsFrom:     make(map[NodeID][]*Leg),
		legsInto:     make(map[NodeID][]*Leg),
		trucksByLane: make(map[LaneKey][]*TruckSchedule),
	}

	for _, node := range nodes {
		if _, exists := n.nodes[node.ID]; exists {
			return nil, fmt.Errorf("duplicate node id %s", node.ID)
		}
		n.nodes[node.ID] = node
		n.nodeOrder = append(n.nodeOrder, node.ID)
		if node.Role == Manufacturing {
			if n.manufacturing != nil {
				return nil, fmt.Errorf("network has more than one manufacturing node: %s and %s", n.manufacturing.ID, node.ID)
			}
			n.manufacturing = node
		}
	}
	if n.manufacturing == nil {
		return nil, fmt.Errorf("network has no manufacturing node")
	}
	sort.Slice(n.nodeOrder, func(i, j int) bool { return n.nodeOrder[i] < n.nodeOrder[j] })

	for _, leg := range legs {
		if _, exists := n.legsByID[leg.ID]; exists {
			return nil, fmt.Errorf("duplicate leg id %s", leg.ID)
		}
		if _, ok := n.nodes[leg.Origin]; !ok {
			return nil, fmt.Errorf("leg %s references unknown origin %s", leg.ID, leg.Origin)
		}
		dest, ok := n.nodes[leg.Destination]
		if !ok {
			return nil, fmt.Errorf("leg %s references unknown destination %s", leg.ID, leg.Destination)
		}
		if leg.Mode == AmbientTransport && !dest.SupportsAmbient {
			return nil, fmt.Errorf("ambient leg %s ends at %s which has no ambient storage", leg.ID, dest.ID)
		}
		n.legs = append(n.legs, leg)
		n.legsByID[leg.ID] = leg
		n.legsFrom[leg.Origin] = append(n.legsFrom[leg.Origin], leg)
		n.legsInto[leg.Destination] = append(n.legsInto[leg.Destination], leg)
	}

	seenTrucks := make(map[TruckID]bool, len(trucks))
	for _, truck := range trucks {
		if seenTrucks[truck.ID] {
			return nil, fmt.Errorf("duplicate truck id %s", truck.ID)
		}
		seenTrucks[truck.ID] = true
		if _, ok := n.nodes[truck.Origin]; !ok {
			return nil, fmt.Errorf("truck %s references unknown origin %s", truck.ID, truck.Origin)
		}
		for _, dest := range truck.Destinations {
			if _, ok := n.nodes[dest]; !ok {
				return nil, fmt.Errorf("truck %s references unknown destination %s", truck.ID, dest)
			}
			if len(n.LegsBetween(truck.Origin, dest)) == 0 {
				return nil, fmt.Errorf("truck %s serves %s -> %s but no leg connects them", truck.ID, truck.Origin, dest)
			}
			lane := LaneKey{Origin: truck.Origin, Destination: dest}
			n.trucksByLane[lane] = append(n.trucksByLane[lane], truck)
		}
		n.trucks = append(n.trucks, truck)
	}
	sort.Slice(n.trucks, func(i, j int) bool { return n.trucks[i].ID < n.trucks[j].ID })
	for lane := range n.trucksByLane {
		ts := n.trucksByLane[lane]
		sort.Slice(ts, func(i, j int) bool { return ts[i].ID < ts[j].ID })
	}

	return n, nil
}

// Manufacturing returns the single manufacturing node
func (n *Network) Manufacturing() *Node {
	return n.manufacturing
}

// Node looks up a node by id
func (n *Network) Node(id NodeID) (*Node, bool) {
	node, ok := n.nodes[id]
	return node, ok
}

// Nodes returns all nodes ordered by id
func (n *Network) Nodes() []*Node {
	nodes := make([]*Node, 0, len(n.nodeOrder))
	for _, id := range n.nodeOrder {
		nodes = append(nodes, n.nodes[id])
	}
	return nodes
}

// Leg looks up a leg by id
func (n *Network) Leg(id LegID) (*Leg, bool) {
	leg, ok := n.legsByID[id]
	return leg, ok
}

// Legs returns all legs in declaration order
func (n *Network) Legs() []*Leg {
	return n.legs
}

// LegsFrom returns the legs departing a node
func (n *Network) LegsFrom(id NodeID) []*Leg {
	return n.legsFrom[id]
}

// LegsInto returns the legs arriving at a node
func (n *Network) LegsInto(id NodeID) []*Leg {
	return n.legsInto[id]
}

// LegsBetween returns the legs connecting origin to destination
func (n *Network) LegsBetween(origin, destination NodeID) []*Leg {
	var legs []*Leg
	for _, leg := range n.legsFrom[origin] {
		if leg.Destination == destination {
			legs = append(legs, leg)
		}
	}
	return legs
}

// Trucks returns all truck schedules ordered by id
func (n *Network) Trucks() []*TruckSchedule {
	return n.trucks
}

// TrucksOnLane returns the trucks serving an origin-destination pair, ordered by id
func (n *Network) TrucksOnLane(origin, destination NodeID) []*TruckSchedule {
	return n.trucksByLane[LaneKey{Origin: origin, Destination: destination}]
}

// Truck looks up a truck schedule by id
func (n *Network) Truck(id TruckID) (*TruckSchedule, bool) {
	for _, t := range n.trucks {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// TruckServed reports whether shipments between origin and destination must ride a truck
func (n *Network) TruckServed(origin, destination NodeID) bool {
	return len(n.trucksByLane[LaneKey{Origin: origin, Destination: destination}]) > 0
}
