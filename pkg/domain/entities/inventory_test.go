package entities

import (
	"strings"
	"testing"
)

func TestInventoryRecord_Validation(t *testing.T) {
	made := NewDate(2025, 1, 6)

	valid, err := NewInventoryRecord("HUB", "BREAD", made, Frozen, NoDate, 480)
	if err != nil {
		t.Fatalf("Expected valid record creation to succeed: %v", err)
	}
	if valid.Key() != (CohortKey{Node: "HUB", Product: "BREAD", ProdDate: made, State: Frozen, ThawDate: NoDate}) {
		t.Errorf("Unexpected cohort key %v", valid.Key())
	}

	testCases := []struct {
		name        string
		node        NodeID
		product     ProductID
		state       StorageState
		thawDate    Date
		quantity    float64
		expectError string
	}{
		{"empty node", "", "BREAD", Ambient, NoDate, 10, "cohort node cannot be empty"},
		{"empty product", "HUB", "", Ambient, NoDate, 10, "cohort product cannot be empty"},
		{"thawed without thaw date", "HUB", "BREAD", Thawed, NoDate, 10, "requires a thaw date"},
		{"frozen with thaw date", "HUB", "BREAD", Frozen, made.AddDays(1), 10, "cannot carry a thaw date"},
		{"thawed before made", "HUB", "BREAD", Thawed, made.AddDays(-1), 10, "before production"},
		{"negative quantity", "HUB", "BREAD", Ambient, NoDate, -5, "inventory quantity cannot be negative, got -5"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewInventoryRecord(tc.node, tc.product, made, tc.state, tc.thawDate, tc.quantity)
			if err == nil {
				t.Fatalf("Expected error for %s, but got none", tc.name)
			}
			if !strings.Contains(err.Error(), tc.expectError) {
				t.Errorf("Expected error containing '%s', got '%s'", tc.expectError, err.Error())
			}
		})
	}
}

func TestInTransitRecord_Validation(t *testing.T) {
	made := NewDate(2025, 1, 6)
	arrival := made.AddDays(2)

	testCases := []struct {
		name        string
		leg         LegID
		state       StorageState
		thawDate    Date
		quantity    float64
		expectError string
	}{
		{"empty leg", "", Frozen, NoDate, 10, "in-transit leg cannot be empty"},
		{"thawed without thaw date", "HUB-CAFE", Thawed, NoDate, 10, "require a thaw date"},
		{"ambient with thaw date", "HUB-CAFE", Ambient, made, 10, "cannot carry a thaw date"},
		{"negative quantity", "HUB-CAFE", Frozen, NoDate, -1, "in-transit quantity cannot be negative"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewInTransitRecord(tc.leg, "BREAD", made, tc.state, tc.thawDate, arrival, tc.quantity)
			if err == nil {
				t.Fatalf("Expected error for %s, but got none", tc.name)
			}
			if !strings.Contains(err.Error(), tc.expectError) {
				t.Errorf("Expected error containing '%s', got '%s'", tc.expectError, err.Error())
			}
		})
	}
}

func TestInTransitRecord_ArrivalKey(t *testing.T) {
	made := NewDate(2025, 1, 6)
	arrival := made.AddDays(1)
	leg := &Leg{ID: "HUB-CAFE", Origin: "HUB", Destination: "CAFE", TransitDays: 1, Mode: FrozenTransport}

	rec, err := NewInTransitRecord("HUB-CAFE", "BREAD", made, Frozen, NoDate, arrival, 50)
	if err != nil {
		t.Fatalf("NewInTransitRecord failed: %v", err)
	}

	t.Run("frozen into ambient-only node thaws on arrival", func(t *testing.T) {
		cafe := &Node{ID: "CAFE", Role: Spoke, SupportsAmbient: true}
		key, err := rec.ArrivalKey(leg, cafe)
		if err != nil {
			t.Fatalf("ArrivalKey failed: %v", err)
		}
		if key.State != Thawed || key.ThawDate != arrival || key.Node != "CAFE" {
			t.Errorf("Expected thawed cohort at CAFE thawed on %s, got %v", arrival, key)
		}
	})

	t.Run("frozen into frozen node stays frozen", func(t *testing.T) {
		store := &Node{ID: "CAFE", Role: Hub, SupportsFrozen: true}
		key, err := rec.ArrivalKey(leg, store)
		if err != nil {
			t.Fatalf("ArrivalKey failed: %v", err)
		}
		if key.State != Frozen || key.ThawDate != NoDate {
			t.Errorf("Expected frozen cohort, got %v", key)
		}
	})

	t.Run("thawed goods cannot ride a frozen leg", func(t *testing.T) {
		thawed := *rec
		thawed.State, thawed.ThawDate = Thawed, made
		if _, err := thawed.ArrivalKey(leg, &Node{ID: "CAFE", SupportsAmbient: true}); err == nil {
			t.Error("Expected error for thawed goods on a frozen leg")
		}
	})
}

func TestSnapshot_CloneAndTotals(t *testing.T) {
	s := NewSnapshot(NewDate(2025, 1, 5))
	k := CohortKey{Node: "HUB", Product: "BREAD", ProdDate: NewDate(2025, 1, 1), State: Frozen, ThawDate: NoDate}
	s.Inventory[k] = 100
	s.InTransit = []InTransitRecord{{Leg: "MFG-HUB", Product: "BREAD", Quantity: 40}}

	c := s.Clone()
	c.Inventory[k] = 10
	c.InTransit[0].Quantity = 1

	if s.TotalInventory() != 100 || s.TotalInTransit() != 40 {
		t.Errorf("Expected clone to leave the original untouched, got %g on hand and %g in transit",
			s.TotalInventory(), s.TotalInTransit())
	}
	if c.TotalInventory() != 10 {
		t.Errorf("Expected 10 on hand in clone, got %g", c.TotalInventory())
	}
}

func TestLaborDay_Validation(t *testing.T) {
	day := NewDate(2025, 1, 6)

	testCases := []struct {
		name        string
		fixed       bool
		fixedHours  float64
		maxNonFixed float64
		minPaid     float64
		expectError string
	}{
		{"fixed day without hours", true, 0, 0, 0, "fixed day requires fixed hours"},
		{"minimum above maximum", false, 0, 4, 6, "minimum paid hours 6 exceed max non-fixed hours 4"},
		{"negative hours", false, 0, -1, 0, "cannot be negative"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewLaborDay(day, tc.fixed, tc.fixedHours, 0, tc.maxNonFixed, tc.minPaid, 20, 30, 40)
			if err == nil || !strings.Contains(err.Error(), tc.expectError) {
				t.Errorf("Expected error containing '%s', got %v", tc.expectError, err)
			}
		})
	}

	fixed, err := NewLaborDay(day, true, 8, 3, 0, 0, 25, 37.5, 0)
	if err != nil {
		t.Fatalf("NewLaborDay failed: %v", err)
	}
	if fixed.MaxHours() != 11 || fixed.FixedCost() != 200 {
		t.Errorf("Expected 11 max hours and 200 fixed cost, got %g and %g", fixed.MaxHours(), fixed.FixedCost())
	}
}

func TestDate_TextRoundTrip(t *testing.T) {
	for _, d := range []Date{NewDate(2025, 2, 28), NoDate, AggregateDate} {
		text, err := d.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText failed: %v", err)
		}
		var back Date
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q) failed: %v", text, err)
		}
		if back != d {
			t.Errorf("Expected %v after round trip, got %v", d, back)
		}
	}

	if _, err := ParseDate("2025-13-01"); err == nil {
		t.Error("Expected error for month 13")
	}
	if got := NewDate(2025, 1, 31).AddDays(1); got != NewDate(2025, 2, 1) {
		t.Errorf("Expected 2025-02-01, got %s", got)
	}
}
