package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger { return zerolog.Nop() }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestRunSkipsMissingSource(t *testing.T) {
	d := t.TempDir()
	target := filepath.Join(d, "models")
	r := New(filepath.Join(d, "absent"), target, testLogger())
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Skipped {
		t.Fatalf("expected skip, got %+v", res)
	}
	// zero mutations: target was never created
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatalf("target should not exist, stat err=%v", err)
	}
}

func TestRunSkipsEmptySource(t *testing.T) {
	d := t.TempDir()
	source := filepath.Join(d, "host-models")
	if err := os.Mkdir(source, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	target := filepath.Join(d, "models")
	res, err := New(source, target, testLogger()).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Skipped {
		t.Fatalf("expected skip, got %+v", res)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatalf("target should not exist, stat err=%v", err)
	}
}

func TestRunCopiesTree(t *testing.T) {
	d := t.TempDir()
	source := filepath.Join(d, "host-models")
	target := filepath.Join(d, "models")
	writeFile(t, filepath.Join(source, "a.bin"), "aaaa")
	writeFile(t, filepath.Join(source, "gguf", "b.gguf"), "bbbbbbbb")

	res, err := New(source, target, testLogger()).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Skipped || res.FilesCopied != 2 || res.FilesSeen != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	b, err := os.ReadFile(filepath.Join(target, "gguf", "b.gguf"))
	if err != nil || string(b) != "bbbbbbbb" {
		t.Fatalf("copied content mismatch: %q err=%v", b, err)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	d := t.TempDir()
	source := filepath.Join(d, "host-models")
	target := filepath.Join(d, "models")
	writeFile(t, filepath.Join(source, "a.bin"), "0123456789")

	if _, err := New(source, target, testLogger()).Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first, err := os.Stat(filepath.Join(target, "a.bin"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	res, err := New(source, target, testLogger()).Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.FilesCopied != 0 {
		t.Fatalf("second run copied %d files", res.FilesCopied)
	}
	second, err := os.Stat(filepath.Join(target, "a.bin"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if !first.ModTime().Equal(second.ModTime()) {
		t.Fatalf("target mtime changed: %v -> %v", first.ModTime(), second.ModTime())
	}
}

func TestRunCopiesChangedFile(t *testing.T) {
	d := t.TempDir()
	source := filepath.Join(d, "src")
	target := filepath.Join(d, "dst")
	writeFile(t, filepath.Join(source, "a.bin"), "v1")
	if _, err := New(source, target, testLogger()).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	// change content and mtime
	writeFile(t, filepath.Join(source, "a.bin"), "v2-longer")
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(filepath.Join(source, "a.bin"), future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	res, err := New(source, target, testLogger()).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.FilesCopied != 1 {
		t.Fatalf("expected 1 copy, got %+v", res)
	}
	b, _ := os.ReadFile(filepath.Join(target, "a.bin"))
	if string(b) != "v2-longer" {
		t.Fatalf("content not updated: %q", b)
	}
}

func TestRunIsAdditive(t *testing.T) {
	d := t.TempDir()
	source := filepath.Join(d, "src")
	target := filepath.Join(d, "dst")
	writeFile(t, filepath.Join(source, "a.bin"), "a")
	writeFile(t, filepath.Join(target, "keep.bin"), "local")
	if _, err := New(source, target, testLogger()).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(target, "keep.bin")); err != nil {
		t.Fatalf("extraneous target file deleted: %v", err)
	}
}

func TestRunPreservesMode(t *testing.T) {
	d := t.TempDir()
	source := filepath.Join(d, "src")
	target := filepath.Join(d, "dst")
	p := filepath.Join(source, "run.sh")
	writeFile(t, p, "#!/bin/sh\n")
	if err := os.Chmod(p, 0o755); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if _, err := New(source, target, testLogger()).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	info, err := os.Stat(filepath.Join(target, "run.sh"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Fatalf("mode not preserved: %v", info.Mode())
	}
}

func TestRunFailsOnUnreadableSourceFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	d := t.TempDir()
	source := filepath.Join(d, "src")
	target := filepath.Join(d, "dst")
	p := filepath.Join(source, "secret.bin")
	writeFile(t, p, "hidden")
	if err := os.Chmod(p, 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if _, err := New(source, target, testLogger()).Run(context.Background()); err == nil {
		t.Fatalf("expected error on unreadable source file")
	}
}

func TestRunHonorsContextCancel(t *testing.T) {
	d := t.TempDir()
	source := filepath.Join(d, "src")
	target := filepath.Join(d, "dst")
	writeFile(t, filepath.Join(source, "a.bin"), "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(source, target, testLogger()).Run(ctx); err == nil {
		t.Fatalf("expected context error")
	}
}
