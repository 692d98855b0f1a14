// Package checkpoint persists the state of a planning run after each committed window.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/vsinha/freshplan/pkg/application/dto"
)

var (
	// ErrNoCheckpoint is returned when no checkpoint exists.
	ErrNoCheckpoint = errors.New("no checkpoint found")
)

// Manager handles checkpoint persistence and retrieval.
type Manager interface {
	// Load reads the checkpoint of a run.
	Load(ctx context.Context, runID string) (*dto.Checkpoint, error)

	// Save persists the checkpoint, replacing any earlier one of the same run.
	Save(ctx context.Context, cp *dto.Checkpoint) error
}

// Config configures the checkpoint manager.
type Config struct {
	Enabled bool
	Dir     string // Directory for checkpoint files
}

// NewManager creates a checkpoint manager based on configuration.
func NewManager(cfg Config) (Manager, error) {
	if !cfg.Enabled {
		return &noopManager{}, nil
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("checkpoint directory is required when checkpointing is enabled")
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory %s: %w", cfg.Dir, err)
	}
	return &fileManager{dir: cfg.Dir}, nil
}

// fileManager persists checkpoints as zstd-compressed JSON files.
type fileManager struct {
	dir string
}

func (m *fileManager) checkpointPath(runID string) string {
	return filepath.Join(m.dir, fmt.Sprintf("checkpoint_%s.json.zst", runID))
}

// Load reads the checkpoint from file.
func (m *fileManager) Load(ctx context.Context, runID string) (*dto.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	compressed, err := os.ReadFile(m.checkpointPath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCheckpoint
		}
		return nil, fmt.Errorf("read checkpoint file: %w", err)
	}

	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	data, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}

	var cp dto.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("parse checkpoint file: %w", err)
	}
	return &cp, nil
}

// Save persists the checkpoint to file.
func (m *fileManager) Save(ctx context.Context, cp *dto.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cp.RunID == "" {
		return fmt.Errorf("checkpoint requires a run id")
	}
	if cp.SavedAt.IsZero() {
		cp.SavedAt = time.Now().UTC()
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	compressed := enc.EncodeAll(data, nil)
	enc.Close()

	// Write atomically
	path := m.checkpointPath(cp.RunID)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, compressed, 0644); err != nil {
		return fmt.Errorf("write checkpoint temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename checkpoint file: %w", err)
	}
	return nil
}

// noopManager is used when checkpointing is disabled.
type noopManager struct{}

func (m *noopManager) Load(ctx context.Context, runID string) (*dto.Checkpoint, error) {
	return nil, ErrNoCheckpoint
}

func (m *noopManager) Save(ctx context.Context, cp *dto.Checkpoint) error {
	return nil
}
