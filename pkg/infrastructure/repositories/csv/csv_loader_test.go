package csv

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vsinha/freshplan/pkg/domain/entities"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoader_LoadForecast(t *testing.T) {
	path := writeFile(t, "forecast.csv", `node,product,date,quantity
SPOKE,BREAD,2025-01-06,120
SPOKE,BREAD,2025-01-07,80.5
`)

	demand, err := NewLoader().LoadForecast(path)
	if err != nil {
		t.Fatalf("LoadForecast failed: %v", err)
	}
	if len(demand) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(demand))
	}
	if demand[0].Date != entities.NewDate(2025, time.January, 6) {
		t.Errorf("Expected first date 2025-01-06, got %s", demand[0].Date)
	}
	if demand[1].Quantity != 80.5 {
		t.Errorf("Expected quantity 80.5, got %g", demand[1].Quantity)
	}
}

func TestLoader_LoadInventory(t *testing.T) {
	path := writeFile(t, "inventory.csv", `node,product,production_date,state,thaw_date,quantity
HUB,BREAD,2025-01-01,frozen,,300
SPOKE,BREAD,2025-01-01,Thawed,2025-01-04,40
`)

	stock, err := NewLoader().LoadInventory(path)
	if err != nil {
		t.Fatalf("LoadInventory failed: %v", err)
	}
	if len(stock) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(stock))
	}
	if stock[0].State != entities.Frozen || stock[0].ThawDate != entities.NoDate {
		t.Errorf("Expected frozen stock without thaw date, got %s %s", stock[0].State, stock[0].ThawDate)
	}
	if stock[1].ThawDate != entities.NewDate(2025, time.January, 4) {
		t.Errorf("Expected thaw date 2025-01-04, got %s", stock[1].ThawDate)
	}
}

func TestLoader_LoadInTransit(t *testing.T) {
	path := writeFile(t, "in_transit.csv", `leg,product,production_date,state,thaw_date,arrival,quantity
MFG-HUB,BREAD,2025-01-05,ambient,,2025-01-07,64
`)

	transit, err := NewLoader().LoadInTransit(path)
	if err != nil {
		t.Fatalf("LoadInTransit failed: %v", err)
	}
	if len(transit) != 1 || transit[0].Leg != "MFG-HUB" || transit[0].Quantity != 64 {
		t.Errorf("Unexpected in-transit records: %+v", transit)
	}
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "header mismatch",
			content: "product,node,date,quantity\n",
			want:    "header mismatch",
		},
		{
			name:    "bad date",
			content: "node,product,date,quantity\nSPOKE,BREAD,06/01/2025,10\n",
			want:    "row 2",
		},
		{
			name:    "negative quantity",
			content: "node,product,date,quantity\nSPOKE,BREAD,2025-01-06,-1\n",
			want:    "cannot be negative",
		},
		{
			name:    "short row",
			content: "node,product,date,quantity\nSPOKE,BREAD,2025-01-06\n",
			want:    "failed to read",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader().ReadForecast(strings.NewReader(tt.content))
			if err == nil {
				t.Fatal("Expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := NewLoader().LoadForecast(filepath.Join(t.TempDir(), "missing.csv"))
	if err == nil || !strings.Contains(err.Error(), "failed to open forecast file") {
		t.Errorf("Expected open error, got %v", err)
	}
}
