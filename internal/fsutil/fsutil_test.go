package fsutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labconfig.json")

	if err := WriteFileAtomic(path, []byte(`{"a":1}`), 0644); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	if err := WriteFileAtomic(path, []byte(`{"a":2}`), 0644); err != nil {
		t.Fatalf("second WriteFileAtomic failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != `{"a":2}` {
		t.Errorf("content = %q", data)
	}

	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0644 {
		t.Errorf("perm = %v, want 0644", info.Mode().Perm())
	}
	assertNoTemps(t, dir)
}

func TestWriteAtomic_RenameFailureKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labconfig.json")
	if err := os.WriteFile(path, []byte("original"), 0644); err != nil {
		t.Fatal(err)
	}

	rename = func(string, string) error { return errors.New("killed before rename") }
	t.Cleanup(func() { rename = os.Rename })

	if err := WriteFileAtomic(path, []byte("replacement"), 0644); err == nil {
		t.Fatal("expected error when rename fails")
	}

	data, _ := os.ReadFile(path)
	if string(data) != "original" {
		t.Errorf("original content changed: %q", data)
	}
	assertNoTemps(t, dir)
}

func TestWriteAtomic_FillErrorLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "upload.bin")

	n, err := WriteAtomic(path, 0644, func(w io.Writer) (int64, error) {
		_, _ = w.Write([]byte("partial"))
		return 7, errors.New("connection reset")
	})
	if err == nil || n != 7 {
		t.Fatalf("got n=%d err=%v", n, err)
	}
	if Exists(path) {
		t.Error("destination should not exist after failed fill")
	}
	assertNoTemps(t, dir)
}

func TestExistsAndIsDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	_ = os.WriteFile(file, nil, 0644)

	if !Exists(file) || IsDir(file) {
		t.Error("file checks wrong")
	}
	if !IsDir(dir) {
		t.Error("dir check wrong")
	}
	if Exists(filepath.Join(dir, "missing")) {
		t.Error("missing path reported as existing")
	}
}

func assertNoTemps(t *testing.T, dir string) {
	t.Helper()
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}
