package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestNewFSStore(t *testing.T) {
	baseDir := filepath.Join(t.TempDir(), "nested", "data")

	fs, err := NewFSStore(baseDir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	if fs.BaseDir() != baseDir {
		t.Errorf("Expected base dir %s, got %s", baseDir, fs.BaseDir())
	}
	if _, err := os.Stat(baseDir); err != nil {
		t.Errorf("Base directory was not created: %v", err)
	}
}

func TestSaveAndLoadRun(t *testing.T) {
	fs, _ := NewFSStore(t.TempDir())
	record := validRecord("run-a")

	if err := fs.SaveRun(record); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	path := filepath.Join(fs.BaseDir(), "runs", "run-a", "result.json")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Record file missing: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temp file was left behind")
	}

	loaded, err := fs.LoadRun("run-a")
	if err != nil {
		t.Fatalf("LoadRun failed: %v", err)
	}
	if loaded.Cost != record.Cost || loaded.Theta != record.Theta {
		t.Errorf("Loaded record differs: %+v", loaded)
	}
}

func TestSaveRun_Rejects(t *testing.T) {
	fs, _ := NewFSStore(t.TempDir())

	if err := fs.SaveRun(nil); err == nil {
		t.Error("Expected error for nil record")
	}

	invalid := validRecord("")
	err := fs.SaveRun(invalid)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("Expected ValidationError, got %v", err)
	}
}

func TestSaveRun_Overwrite(t *testing.T) {
	fs, _ := NewFSStore(t.TempDir())

	first := validRecord("same")
	if err := fs.SaveRun(first); err != nil {
		t.Fatalf("First save failed: %v", err)
	}
	second := validRecord("same")
	second.Cost = 0.001
	if err := fs.SaveRun(second); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	loaded, err := fs.LoadRun("same")
	if err != nil {
		t.Fatalf("LoadRun failed: %v", err)
	}
	if loaded.Cost != 0.001 {
		t.Errorf("Expected overwritten cost 0.001, got %g", loaded.Cost)
	}
}

func TestLoadRun_NotFound(t *testing.T) {
	fs, _ := NewFSStore(t.TempDir())

	_, err := fs.LoadRun("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	if err.Error() != "run not found: missing" {
		t.Errorf("Unexpected message: %s", err)
	}

	if _, err := fs.LoadRun(""); err == nil {
		t.Error("Expected error for empty run id")
	}
}

func TestListRuns_Empty(t *testing.T) {
	fs, _ := NewFSStore(t.TempDir())

	infos, err := fs.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("Expected no runs, got %d", len(infos))
	}
}

func TestListRuns_OrderedAndSkipsIncomplete(t *testing.T) {
	fs, _ := NewFSStore(t.TempDir())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"c", "a", "b"} {
		r := validRecord(id)
		r.Timestamp = base.Add(time.Duration(2-i) * time.Hour)
		if err := fs.SaveRun(r); err != nil {
			t.Fatalf("SaveRun(%s) failed: %v", id, err)
		}
	}

	// A trace with no result yet, a stray file and a corrupted record.
	tw, err := NewTraceWriter(fs.BaseDir(), "running")
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	tw.Close()
	os.WriteFile(filepath.Join(fs.BaseDir(), "runs", "stray.txt"), []byte("x"), 0644)
	os.MkdirAll(filepath.Join(fs.BaseDir(), "runs", "broken"), 0755)
	os.WriteFile(filepath.Join(fs.BaseDir(), "runs", "broken", "result.json"), []byte("{"), 0644)

	infos, err := fs.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	var got []string
	for _, info := range infos {
		got = append(got, info.RunID)
	}
	if fmt.Sprint(got) != "[b a c]" {
		t.Errorf("Expected runs [b a c], got %v", got)
	}
	for _, info := range infos {
		if info.Size <= 0 {
			t.Errorf("Run %s: expected a positive size, got %d", info.RunID, info.Size)
		}
	}
}

func TestLoadTrace(t *testing.T) {
	fs, _ := NewFSStore(t.TempDir())
	tw, _ := NewTraceWriter(fs.BaseDir(), "traced")
	tw.Write(TraceEntry{Iteration: 1, Cost: 2, Change: "theta-inc", Theta: 0.1})
	tw.Write(TraceEntry{Iteration: 2, Cost: 1, Change: "hoelder-p", Hoelder: 1, Theta: 0.1})
	tw.Close()

	var st Store = fs
	entries, err := st.LoadTrace("traced")
	if err != nil {
		t.Fatalf("LoadTrace failed: %v", err)
	}
	if len(entries) != 2 || entries[1].Change != "hoelder-p" {
		t.Errorf("Unexpected trace: %+v", entries)
	}
	if _, err := st.LoadTrace("untraced"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRunIDsStayInsideBaseDir(t *testing.T) {
	root := t.TempDir()
	fs, _ := NewFSStore(filepath.Join(root, "store"))

	// A record next to the store that a traversal would reach.
	outside := filepath.Join(root, "victim")
	os.MkdirAll(outside, 0755)
	os.WriteFile(filepath.Join(outside, "result.json"), []byte("{}"), 0644)

	for _, id := range []string{"", ".", "..", "../../victim", "../victim", "a/b", `a\b`} {
		if _, err := fs.LoadRun(id); !errors.Is(err, ErrInvalidRunID) {
			t.Errorf("LoadRun(%q): expected ErrInvalidRunID, got %v", id, err)
		}
		if err := fs.DeleteRun(id); !errors.Is(err, ErrInvalidRunID) {
			t.Errorf("DeleteRun(%q): expected ErrInvalidRunID, got %v", id, err)
		}
		if err := fs.SaveRun(validRecord(id)); err == nil {
			t.Errorf("SaveRun(%q): expected a validation error", id)
		}
	}
	if _, err := os.Stat(outside); err != nil {
		t.Errorf("Directory outside the store was touched: %v", err)
	}
}

func TestDeleteRun(t *testing.T) {
	fs, _ := NewFSStore(t.TempDir())
	if err := fs.SaveRun(validRecord("gone")); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	tw, _ := NewTraceWriter(fs.BaseDir(), "gone")
	tw.Write(TraceEntry{Iteration: 1, Cost: 1, Change: "theta-inc"})
	tw.Close()

	if err := fs.DeleteRun("gone"); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(fs.BaseDir(), "runs", "gone")); !os.IsNotExist(err) {
		t.Error("Run directory still exists")
	}
	if err := fs.DeleteRun("gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
	if err := fs.DeleteRun(""); err == nil {
		t.Error("Expected error for empty run id")
	}
}

func TestConcurrentSave(t *testing.T) {
	fs, _ := NewFSStore(t.TempDir())

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- fs.SaveRun(validRecord(fmt.Sprintf("run-%d", i)))
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Concurrent save failed: %v", err)
		}
	}
	infos, _ := fs.ListRuns()
	if len(infos) != 10 {
		t.Errorf("Expected 10 runs, got %d", len(infos))
	}
}

func TestDirSize(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a"), make([]byte, 1000), 0644)
	os.MkdirAll(filepath.Join(dir, "sub"), 0755)
	os.WriteFile(filepath.Join(dir, "sub", "b"), make([]byte, 1048), 0644)

	size, err := dirSize(dir)
	if err != nil {
		t.Fatalf("dirSize failed: %v", err)
	}
	if size != 2048 {
		t.Errorf("Expected 2048 bytes, got %d", size)
	}
}
