package dto

import (
	"time"

	"github.com/vsinha/freshplan/pkg/domain/entities"
)

// Checkpoint is the state of a run after its last committed window
type Checkpoint struct {
	RunID      string                  `json:"run_id"`
	NextWindow int                     `json:"next_window"`
	Snapshot   *entities.Snapshot      `json:"snapshot"`
	Committed  entities.Schedule       `json:"committed"`
	Reports    []entities.WindowReport `json:"reports"`
	SavedAt    time.Time               `json:"saved_at"`
}
