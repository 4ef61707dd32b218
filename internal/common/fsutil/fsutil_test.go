package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
	// raw path unaffected
	if got, err := ExpandHome("/tmp"); err != nil || got != "/tmp" {
		t.Fatalf("got %q err=%v", got, err)
	}
	// empty path
	if got, err := ExpandHome(""); err != nil || got != "" {
		t.Fatalf("got %q err=%v", got, err)
	}
	// ~ expansion
	p, err := ExpandHome("~")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if p != home {
		t.Fatalf("expected %q, got %q", home, p)
	}
	// ~/subdir
	exp, err := ExpandHome("~/models")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if exp != filepath.Join(home, "models") {
		t.Fatalf("unexpected expanded path: %q", exp)
	}
}

func TestPathExists(t *testing.T) {
	d := t.TempDir()
	if !PathExists(d) {
		t.Fatalf("expected existing dir")
	}
	if PathExists(filepath.Join(d, "nope")) {
		t.Fatalf("expected missing path")
	}
}

func TestDirHasEntries(t *testing.T) {
	d := t.TempDir()
	// missing dir: not an error
	has, err := DirHasEntries(filepath.Join(d, "absent"))
	if err != nil || has {
		t.Fatalf("absent dir: has=%v err=%v", has, err)
	}
	// empty dir
	has, err = DirHasEntries(d)
	if err != nil || has {
		t.Fatalf("empty dir: has=%v err=%v", has, err)
	}
	// non-empty dir
	if err := os.WriteFile(filepath.Join(d, "a.bin"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	has, err = DirHasEntries(d)
	if err != nil || !has {
		t.Fatalf("non-empty dir: has=%v err=%v", has, err)
	}
}
