package storage

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

func TestStore_PublishWritesArtifactsAndManifest(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, "mem://", "plans")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	artifacts := []Artifact{
		{Name: "plan.json", ContentType: "application/json", Data: []byte(`{"status":"Optimal"}`)},
		{Name: "production.csv", ContentType: "text/csv", Data: []byte("node,product,date,quantity\n")},
	}
	manifest, err := store.Publish(ctx, "run-1", "Optimal", artifacts)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if len(manifest.Artifacts) != 2 {
		t.Fatalf("Expected 2 artifacts in manifest, got %d", len(manifest.Artifacts))
	}
	if manifest.Artifacts[0].Key != "plans/run-1/plan.json" {
		t.Errorf("Expected key plans/run-1/plan.json, got %s", manifest.Artifacts[0].Key)
	}
	if !strings.HasPrefix(manifest.Artifacts[0].Checksum, "sha256:") || manifest.Artifacts[0].ByteSize != 20 {
		t.Errorf("Unexpected artifact info: %+v", manifest.Artifacts[0])
	}

	names, err := store.List(ctx, "run-1/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	sort.Strings(names)
	want := []string{"run-1/manifest.json", "run-1/plan.json", "run-1/production.csv"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("Expected %v, got %v", want, names)
	}

	data, err := store.Read(ctx, "run-1/manifest.json")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	var stored Manifest
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatalf("Manifest is not JSON: %v", err)
	}
	if stored.RunID != "run-1" || stored.Status != "Optimal" {
		t.Errorf("Unexpected manifest: %+v", stored)
	}
}

func TestStore_ReadMissing(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, "mem://", "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	_, err = store.Read(ctx, "nope.json")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStore_FileBucket(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := Open(ctx, "file://"+filepath.ToSlash(dir), "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	if err := store.Write(ctx, "a/b.txt", "text/plain", []byte("hello")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := store.Read(ctx, "a/b.txt")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("Expected hello, got %q", got)
	}
}

func TestOpen_UnknownScheme(t *testing.T) {
	if _, err := Open(context.Background(), "ftp://example.com/bucket", ""); err == nil {
		t.Error("Expected an error for an unregistered scheme")
	}
}
