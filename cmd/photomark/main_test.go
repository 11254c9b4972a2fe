package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tstromberg/photomark/pkg/pipeline"
	"github.com/tstromberg/photomark/pkg/toolchain"
)

// closeTracker fails or passes Check and records Close. Other methods are never reached.
type closeTracker struct {
	toolchain.Toolchain
	checkErr error
	closed   int
}

func (c *closeTracker) Check(context.Context) error { return c.checkErr }
func (c *closeTracker) Close() error {
	c.closed++
	return nil
}

func testConfig(t *testing.T) *pipeline.Config {
	t.Helper()
	root := t.TempDir()
	c := &pipeline.Config{
		InDir:   filepath.Join(root, "in"),
		OutDir:  filepath.Join(root, "out"),
		TempDir: filepath.Join(root, "tmp"),
	}
	c.ApplyDefaults()
	if err := os.MkdirAll(c.InDir, 0o755); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestRunClosesToolchainOnFailure(t *testing.T) {
	tc := &closeTracker{checkErr: &toolchain.UnavailableError{Tool: "exiftool", Err: errors.New("not found")}}

	err := run(context.Background(), testConfig(t), tc)
	if !pipeline.IsUnavailable(err) {
		t.Fatalf("run() error = %v, want unavailable", err)
	}
	if tc.closed != 1 {
		t.Errorf("Close called %d times, want 1", tc.closed)
	}
}

func TestRunClosesToolchain(t *testing.T) {
	tc := &closeTracker{}

	if err := run(context.Background(), testConfig(t), tc); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if tc.closed != 1 {
		t.Errorf("Close called %d times, want 1", tc.closed)
	}
}

func TestRunOtherFailureIsNotUnavailable(t *testing.T) {
	tc := &closeTracker{}
	c := testConfig(t)
	c.InDir = filepath.Join(t.TempDir(), "missing")

	err := run(context.Background(), c, tc)
	if err == nil {
		t.Fatal("expected error for missing input directory")
	}
	if pipeline.IsUnavailable(err) {
		t.Errorf("run() error = %v, reported as unavailable", err)
	}
	if tc.closed != 1 {
		t.Errorf("Close called %d times, want 1", tc.closed)
	}
}
