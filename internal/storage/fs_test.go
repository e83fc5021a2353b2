package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func tempArea(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempArea(t)
	content := []byte(`{"version":"1.0"}`)
	if err := s.Write("CR_Jane Roe/snapshot.json", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("CR_Jane Roe/snapshot.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempArea(t)
	if err := s.Write("a/b/c.txt", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.txt")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestWriteOverwritesAtomically(t *testing.T) {
	s := tempArea(t)
	if err := s.Write("f.json", []byte("v1")); err != nil {
		t.Fatalf("Write v1: %v", err)
	}
	if err := s.Write("f.json", []byte("v2")); err != nil {
		t.Fatalf("Write v2: %v", err)
	}
	got, _ := s.Read("f.json")
	if string(got) != "v2" {
		t.Errorf("content = %q, want v2", got)
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	s := tempArea(t)
	if err := s.Write("sub/f.json", []byte("data")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(s.Root(), "sub"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".casevault-tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestWriteRenameFailureCleansUp(t *testing.T) {
	s := tempArea(t)
	if err := s.Write("CR_X/snapshot.json", []byte("original")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Occupy the rename target with a directory so the write fails after
	// the temp file has been created and synced.
	blocked, err := s.Abs("CR_X/blocked.json")
	if err != nil {
		t.Fatalf("Abs: %v", err)
	}
	if err := os.MkdirAll(blocked, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := s.Write("CR_X/blocked.json", []byte("new")); err == nil {
		t.Fatal("Write onto a blocked target should fail")
	}

	// The interrupted write touches nothing else in the directory.
	got, err := s.Read("CR_X/snapshot.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "original" {
		t.Errorf("existing file disturbed: %q", got)
	}
	entries, err := os.ReadDir(filepath.Join(s.Root(), "CR_X"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".casevault-tmp-") {
			t.Errorf("temp file left behind after failed write: %s", e.Name())
		}
	}
}

func TestTraversalRejected(t *testing.T) {
	s := tempArea(t)
	for _, p := range []string{"../escape.txt", "a/../../escape.txt", "/etc/passwd"} {
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("Write(%q) should fail", p)
		}
		if _, err := s.Read(p); err == nil {
			t.Errorf("Read(%q) should fail", p)
		}
	}
}

func TestExists(t *testing.T) {
	s := tempArea(t)
	if s.Exists("nope.txt") {
		t.Error("Exists on missing file")
	}
	_ = s.Write("yes.txt", []byte("y"))
	if !s.Exists("yes.txt") {
		t.Error("Exists on present file")
	}
	// A directory is not a regular file.
	_ = s.Write("dir/f.txt", []byte("x"))
	if s.Exists("dir") {
		t.Error("Exists should be false for directories")
	}
}

func TestDelete(t *testing.T) {
	s := tempArea(t)
	_ = s.Write("del.txt", []byte("bye"))
	if err := s.Delete("del.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.txt"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestRemoveTree(t *testing.T) {
	s := tempArea(t)
	_ = s.Write("CR_gone/a.txt", []byte("a"))
	_ = s.Write("CR_gone/b.txt", []byte("b"))
	if err := s.RemoveTree("CR_gone"); err != nil {
		t.Fatalf("RemoveTree: %v", err)
	}
	if s.Exists("CR_gone/a.txt") {
		t.Error("tree content survived removal")
	}
}

func TestRemoveTreeRefusesRoot(t *testing.T) {
	s := tempArea(t)
	if err := s.RemoveTree(""); err == nil {
		t.Error("RemoveTree on root should fail")
	}
	if err := s.RemoveTree("."); err == nil {
		t.Error("RemoveTree on . should fail")
	}
}

func TestAbsStaysUnderRoot(t *testing.T) {
	s := tempArea(t)
	abs, err := s.Abs("CR_x/file.bin")
	if err != nil {
		t.Fatalf("Abs: %v", err)
	}
	if !strings.HasPrefix(abs, s.Root()) {
		t.Errorf("abs path %q not under root %q", abs, s.Root())
	}
}
