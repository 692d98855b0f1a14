package entities

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func mustNode(id NodeID, role NodeRole, frozen, ambient bool, rate float64) *Node {
	n, err := NewNode(id, string(id), role, frozen, ambient, rate)
	if err != nil {
		panic(err)
	}
	return n
}

func mustLeg(id LegID, origin, dest NodeID, transit int, mode TransportMode) *Leg {
	l, err := NewLeg(id, origin, dest, transit, mode, 0, 0)
	if err != nil {
		panic(err)
	}
	return l
}

func TestNewNetwork(t *testing.T) {
	nodes := []*Node{
		mustNode("MFG", Manufacturing, false, true, 100),
		mustNode("HUB", Hub, true, true, 0),
		mustNode("SPOKE", Spoke, false, true, 0),
	}
	legs := []*Leg{
		mustLeg("MFG-HUB", "MFG", "HUB", 1, FrozenTransport),
		mustLeg("HUB-SPOKE", "HUB", "SPOKE", 1, AmbientTransport),
	}
	truck, err := NewTruckSchedule("T1", "MFG", []NodeID{"HUB"}, nil, 0, 0, 50)
	if err != nil {
		t.Fatalf("Expected valid truck: %v", err)
	}

	net, err := NewNetwork(nodes, legs, []*TruckSchedule{truck})
	if err != nil {
		t.Fatalf("Expected valid network: %v", err)
	}

	if net.Manufacturing().ID != "MFG" {
		t.Errorf("Expected manufacturing node MFG, got %s", net.Manufacturing().ID)
	}
	if len(net.LegsFrom("HUB")) != 1 || len(net.LegsInto("HUB")) != 1 {
		t.Errorf("Expected one leg in and out of HUB")
	}
	if !net.TruckServed("MFG", "HUB") || net.TruckServed("HUB", "SPOKE") {
		t.Errorf("Expected only MFG->HUB to be truck served")
	}

	t.Run("unknown leg destination", func(t *testing.T) {
		bad := append(legs, mustLeg("MFG-X", "MFG", "X", 1, AmbientTransport))
		if _, err := NewNetwork(nodes, bad, nil); err == nil {
			t.Fatal("Expected error for unknown destination")
		}
	})

	t.Run("two plants", func(t *testing.T) {
		extra := append(nodes, mustNode("MFG2", Manufacturing, false, true, 10))
		if _, err := NewNetwork(extra, legs, nil); err == nil {
			t.Fatal("Expected error for two manufacturing nodes")
		}
	})

	t.Run("truck without leg", func(t *testing.T) {
		orphan, _ := NewTruckSchedule("T2", "MFG", []NodeID{"SPOKE"}, nil, 0, 0, 0)
		if _, err := NewNetwork(nodes, legs, []*TruckSchedule{orphan}); err == nil {
			t.Fatal("Expected error for truck lane without leg")
		}
	})
}

func TestErrorKinds(t *testing.T) {
	w := Window{Index: 2, Start: NewDate(2025, time.March, 1), End: NewDate(2025, time.March, 7), CommitEnd: NewDate(2025, time.March, 4)}

	timeout := &SolverTimeoutError{Window: w}
	infeasible := &InfeasibleWindowError{Window: w, Cause: CauseTimeout, Err: timeout}

	var wrapped error = infeasible
	if !errors.Is(wrapped, ErrInfeasibleWindow) {
		t.Errorf("Expected infeasible error to match ErrInfeasibleWindow")
	}
	if !errors.Is(wrapped, ErrSolverTimeout) {
		t.Errorf("Expected timeout cause to match ErrSolverTimeout")
	}

	var target *InfeasibleWindowError
	if !errors.As(wrapped, &target) || target.Window.Index != 2 {
		t.Errorf("Expected errors.As to recover the window")
	}

	if !errors.Is(NewDataValidationError("x"), ErrDataValidation) {
		t.Errorf("Expected data validation kind")
	}
	if !errors.Is(&WindowCoverageGapError{}, ErrWindowCoverageGap) {
		t.Errorf("Expected coverage gap kind")
	}
	if !errors.Is(&ConservationViolationError{}, ErrConservationViolation) {
		t.Errorf("Expected conservation kind")
	}
}

func TestWindowDiagnostics_Classify(t *testing.T) {
	testCases := []struct {
		name     string
		diag     WindowDiagnostics
		expected InfeasibleCause
	}{
		{"unreachable demand", WindowDiagnostics{Demand: 10, UnreachableDemand: 5, ProductionCapacity: 100}, CauseNetworkPath},
		{"not enough supply", WindowDiagnostics{Demand: 100, ProductionCapacity: 40, OpeningInventory: 10}, CauseCapacity},
		{"transport bottleneck", WindowDiagnostics{Demand: 100, ProductionCapacity: 500, TransportBounded: true, TransportCapacity: 50}, CauseCapacity},
		{"stock ages out", WindowDiagnostics{Demand: 100, ProductionCapacity: 500, ExpiringInventory: 80}, CauseShelfLife},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.diag.Classify(); got != tc.expected {
				t.Errorf("Expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func TestSnapshot_JSONRoundTrip(t *testing.T) {
	prod := NewDate(2025, time.January, 1)
	s := NewSnapshot(prod.AddDays(3))
	s.Inventory[CohortKey{Node: "HUB", Product: "P", ProdDate: prod, State: Frozen, ThawDate: NoDate}] = 40
	s.Inventory[CohortKey{Node: "SPOKE", Product: "P", ProdDate: prod, State: Thawed, ThawDate: prod.AddDays(2)}] = 12.5
	s.InTransit = []InTransitRecord{{Leg: "L", Product: "P", ProdDate: prod, State: Ambient, ThawDate: NoDate, Arrival: prod.AddDays(5), Quantity: 7}}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Snapshot
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if back.AsOf != s.AsOf || len(back.Inventory) != 2 || back.TotalInventory() != 52.5 || back.TotalInTransit() != 7 {
		t.Errorf("snapshot did not survive round trip: %+v", back)
	}
	for k, v := range s.Inventory {
		if back.Inventory[k] != v {
			t.Errorf("cohort %s: expected %g, got %g", k, v, back.Inventory[k])
		}
	}
}
