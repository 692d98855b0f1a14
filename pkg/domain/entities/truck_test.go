package entities

import (
	"math"
	"testing"
	"time"
)

func TestPalletsFor_Ceiling(t *testing.T) {
	loads := []int{0, 1, 10, 100, 160, 319, 320, 321, 640, 641, 1000, 14080, 14400}

	for _, load := range loads {
		expected := int(math.Ceil(float64(load) / 320))
		if got := PalletsFor(load, DefaultUnitsPerPallet); got != expected {
			t.Errorf("load %d: expected %d pallets, got %d", load, expected, got)
		}
	}

	spot := map[int]int{319: 1, 320: 1, 321: 2, 14080: 44, 14400: 45}
	for load, pallets := range spot {
		if got := PalletsFor(load, DefaultUnitsPerPallet); got != pallets {
			t.Errorf("load %d: expected %d pallets, got %d", load, pallets, got)
		}
	}
}

func TestTruckSchedule_RunsOn(t *testing.T) {
	monday := time.Monday
	weekly, err := NewTruckSchedule("T-MON", "MFG", []NodeID{"HUB"}, &monday, 0, 0, 100)
	if err != nil {
		t.Fatalf("Expected valid truck creation to succeed: %v", err)
	}
	daily, err := NewTruckSchedule("T-DAILY", "MFG", []NodeID{"HUB"}, nil, 0, 0, 100)
	if err != nil {
		t.Fatalf("Expected valid truck creation to succeed: %v", err)
	}

	if weekly.UnitsPerPallet != 320 || weekly.PalletCapacity != 44 {
		t.Errorf("Expected default 320 units x 44 pallets, got %d x %d", weekly.UnitsPerPallet, weekly.PalletCapacity)
	}
	if weekly.UnitCapacity() != 14080 {
		t.Errorf("Expected unit capacity 14080, got %d", weekly.UnitCapacity())
	}

	// 2025-01-06 is a Monday
	start := NewDate(2025, time.January, 6)
	for i := 0; i < 14; i++ {
		d := start.AddDays(i)
		if weekly.RunsOn(d) != (d.Weekday() == time.Monday) {
			t.Errorf("weekly truck RunsOn(%s %s) = %v", d, d.Weekday(), weekly.RunsOn(d))
		}
		if !daily.RunsOn(d) {
			t.Errorf("daily truck should run on %s", d)
		}
	}
}

func TestNewTruckSchedule_Validation(t *testing.T) {
	testCases := []struct {
		name        string
		dests       []NodeID
		expectError string
	}{
		{"no destinations", nil, "truck T1 must serve at least one destination"},
		{"origin as destination", []NodeID{"MFG"}, "truck T1 cannot deliver to its origin MFG"},
		{"duplicate destination", []NodeID{"A", "A"}, "truck T1 lists destination A twice"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTruckSchedule("T1", "MFG", tc.dests, nil, 0, 0, 0)
			if err == nil {
				t.Fatalf("Expected error for %s, but got none", tc.name)
			}
			if err.Error() != tc.expectError {
				t.Errorf("Expected error '%s', got '%s'", tc.expectError, err.Error())
			}
		})
	}
}
