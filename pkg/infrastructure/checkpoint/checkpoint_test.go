package checkpoint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/vsinha/freshplan/pkg/application/dto"
	"github.com/vsinha/freshplan/pkg/domain/entities"
)

func TestFileManager_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(Config{Enabled: true, Dir: dir})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	ctx := context.Background()

	if _, err := m.Load(ctx, "run-1"); !errors.Is(err, ErrNoCheckpoint) {
		t.Fatalf("Expected ErrNoCheckpoint before the first save, got %v", err)
	}

	asOf := entities.NewDate(2025, 1, 12)
	snap := entities.NewSnapshot(asOf)
	key := entities.CohortKey{Node: "SPOKE", Product: "BREAD", ProdDate: entities.NewDate(2025, 1, 10), State: entities.Ambient, ThawDate: entities.NoDate}
	snap.Inventory[key] = 218
	snap.InTransit = []entities.InTransitRecord{{Leg: "HUB-SPOKE", Product: "BREAD", ProdDate: asOf, State: entities.Ambient, ThawDate: entities.NoDate, Arrival: asOf.AddDays(1), Quantity: 40}}

	cp := &dto.Checkpoint{
		RunID:      "run-1",
		NextWindow: 2,
		Snapshot:   snap,
		Committed: entities.Schedule{
			Shortages: []entities.ShortageRecord{{Node: "SPOKE", Product: "BREAD", Date: asOf, Quantity: 82}},
		},
		Reports: []entities.WindowReport{{Window: entities.Window{Index: 0}, Status: "Optimal"}, {Window: entities.Window{Index: 1}, Status: "Optimal"}},
	}
	if err := m.Save(ctx, cp); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "checkpoint_run-1.json.zst")); err != nil {
		t.Fatalf("Expected checkpoint file: %v", err)
	}

	got, err := m.Load(ctx, "run-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.NextWindow != 2 || len(got.Reports) != 2 {
		t.Errorf("Expected next window 2 with 2 reports, got %d and %d", got.NextWindow, len(got.Reports))
	}
	if got.Snapshot.AsOf != asOf || got.Snapshot.Inventory[key] != 218 {
		t.Errorf("Expected 218 units as of %s, got %+v", asOf, got.Snapshot)
	}
	if got.Snapshot.TotalInTransit() != 40 {
		t.Errorf("Expected 40 units in transit, got %g", got.Snapshot.TotalInTransit())
	}
	if len(got.Committed.Shortages) != 1 || got.Committed.Shortages[0].Quantity != 82 {
		t.Errorf("Expected the committed shortage, got %+v", got.Committed.Shortages)
	}
	if got.SavedAt.IsZero() {
		t.Error("Expected SavedAt to be set")
	}
}

func TestNewManager(t *testing.T) {
	m, err := NewManager(Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if err := m.Save(context.Background(), &dto.Checkpoint{RunID: "x"}); err != nil {
		t.Errorf("Expected noop save, got %v", err)
	}
	if _, err := m.Load(context.Background(), "x"); !errors.Is(err, ErrNoCheckpoint) {
		t.Errorf("Expected ErrNoCheckpoint from noop manager, got %v", err)
	}

	if _, err := NewManager(Config{Enabled: true}); err == nil {
		t.Error("Expected error for an enabled manager without a directory")
	}
}
