// Package storage publishes run artifacts to a gocloud bucket: a local directory,
// memory, S3 or GCS depending on the bucket URL.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // gs:// driver
	_ "gocloud.dev/blob/memblob"  // mem:// driver
	_ "gocloud.dev/blob/s3blob"   // s3:// driver
	"gocloud.dev/gcerrors"
)

// ErrNotFound is returned when a key does not exist
var ErrNotFound = errors.New("object not found")

// Artifact is one rendered output file
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// Manifest lists what a run published
type Manifest struct {
	RunID     string         `json:"run_id"`
	Status    string         `json:"status"`
	Artifacts []ArtifactInfo `json:"artifacts"`
	CreatedAt time.Time      `json:"created_at"`
}

// ArtifactInfo describes a published artifact
type ArtifactInfo struct {
	Key      string `json:"key"`
	Checksum string `json:"checksum"`
	ByteSize int64  `json:"byte_size"`
}

// Store writes objects under a key prefix of one bucket
type Store struct {
	bucket *blob.Bucket
	url    string
	prefix string
}

// Open opens the bucket at url, e.g. file:///var/plans, mem://, s3://plans?region=eu-west-1
// or gs://plans.
func Open(ctx context.Context, url, prefix string) (*Store, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", url, err)
	}
	return &Store{bucket: bucket, url: url, prefix: prefix}, nil
}

// Key returns the full object key for name
func (s *Store) Key(name string) string {
	return path.Join(s.prefix, name)
}

// URI returns a printable location for name
func (s *Store) URI(name string) string {
	return fmt.Sprintf("%s/%s", s.url, s.Key(name))
}

// Write stores data under name
func (s *Store) Write(ctx context.Context, name, contentType string, data []byte) error {
	key := s.Key(name)
	w, err := s.bucket.NewWriter(ctx, key, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("create writer for %s: %w", key, err)
	}

	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write data to %s: %w", key, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", key, err)
	}
	return nil
}

// Read returns the object stored under name
func (s *Store) Read(ctx context.Context, name string) ([]byte, error) {
	key := s.Key(name)
	data, err := s.bucket.ReadAll(ctx, key)
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// List returns the names stored below prefix, relative to the store prefix
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	base := ""
	if s.prefix != "" {
		base = s.Key("") + "/"
	}

	iter := s.bucket.List(&blob.ListOptions{Prefix: base + prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		if obj.IsDir {
			continue
		}
		names = append(names, obj.Key[len(base):])
	}
	return names, nil
}

// Publish writes the artifacts of a run under runID/ followed by a manifest.
// The manifest is written last so readers never see it before its artifacts.
func (s *Store) Publish(ctx context.Context, runID, status string, artifacts []Artifact) (*Manifest, error) {
	manifest := &Manifest{RunID: runID, Status: status, CreatedAt: time.Now().UTC()}
	for _, a := range artifacts {
		name := path.Join(runID, a.Name)
		if err := s.Write(ctx, name, a.ContentType, a.Data); err != nil {
			return nil, err
		}
		sum := sha256.Sum256(a.Data)
		manifest.Artifacts = append(manifest.Artifacts, ArtifactInfo{
			Key:      s.Key(name),
			Checksum: "sha256:" + hex.EncodeToString(sum[:]),
			ByteSize: int64(len(a.Data)),
		})
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := s.Write(ctx, path.Join(runID, "manifest.json"), "application/json", data); err != nil {
		return nil, err
	}
	return manifest, nil
}

// Close releases the bucket connection
func (s *Store) Close() error {
	if s.bucket != nil {
		return s.bucket.Close()
	}
	return nil
}
