package store

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"testing"
	"time"
)

func TestTraceWriter_WriteAndRead(t *testing.T) {
	baseDir := t.TempDir()

	tw, err := NewTraceWriter(baseDir, "run")
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}

	now := time.Now().UTC()
	want := []TraceEntry{
		{Iteration: 1, Cost: 0.9, Change: "theta-inc", Theta: 0.02, Timestamp: now},
		{Iteration: 2, Cost: 0.7, Change: "hoelder-q", Hoelder: 3, Theta: 0.02,
			Params: []HoelderValue{{ID: 3, P: 2, Q: 2.01}}, Timestamp: now},
	}
	for _, e := range want {
		if err := tw.Write(e); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	tr, err := NewTraceReader(baseDir, "run")
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()

	got, err := tr.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(got))
	}
	if got[1].Change != "hoelder-q" || got[1].Hoelder != 3 || got[1].Params[0].Q != 2.01 {
		t.Errorf("Second entry mismatch: %+v", got[1])
	}
	if got[0].Hoelder != 0 || got[0].Params != nil {
		t.Errorf("Theta move carried Hölder data: %+v", got[0])
	}
}

func TestTraceWriter_Truncates(t *testing.T) {
	baseDir := t.TempDir()

	write := func(n int) {
		tw, err := NewTraceWriter(baseDir, "run")
		if err != nil {
			t.Fatalf("NewTraceWriter failed: %v", err)
		}
		for i := 0; i < n; i++ {
			tw.Write(TraceEntry{Iteration: i + 1, Cost: Float(i)})
		}
		if err := tw.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}

	write(3)
	write(1)

	tr, err := NewTraceReader(baseDir, "run")
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()
	entries, err := tr.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected 1 entry after rewrite, got %d", len(entries))
	}
}

func TestTraceWriter_NonFiniteCost(t *testing.T) {
	baseDir := t.TempDir()
	tw, _ := NewTraceWriter(baseDir, "run")
	tw.Write(TraceEntry{Iteration: 1, Cost: Float(math.Inf(1))})
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	tr, err := NewTraceReader(baseDir, "run")
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()

	entry, err := tr.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !math.IsInf(float64(entry.Cost), 1) {
		t.Errorf("Expected +Inf cost, got %g", entry.Cost)
	}
	if _, err := tr.Read(); err != io.EOF {
		t.Errorf("Expected io.EOF, got %v", err)
	}
}

func TestTrace_RejectsRunIDs(t *testing.T) {
	baseDir := t.TempDir()
	for _, id := range []string{"", ".", "..", "../escape", "a/b", `a\b`} {
		if _, err := NewTraceWriter(baseDir, id); !errors.Is(err, ErrInvalidRunID) {
			t.Errorf("NewTraceWriter(%q): expected ErrInvalidRunID, got %v", id, err)
		}
		if _, err := NewTraceReader(baseDir, id); !errors.Is(err, ErrInvalidRunID) {
			t.Errorf("NewTraceReader(%q): expected ErrInvalidRunID, got %v", id, err)
		}
	}
}

func TestTraceReader_NotFound(t *testing.T) {
	_, err := NewTraceReader(t.TempDir(), "absent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTraceWriter_ConcurrentWrites(t *testing.T) {
	baseDir := t.TempDir()
	tw, _ := NewTraceWriter(baseDir, "run")

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if err := tw.Write(TraceEntry{Iteration: g*50 + i, Change: fmt.Sprint(g)}); err != nil {
					t.Errorf("Write failed: %v", err)
				}
			}
		}(g)
	}
	wg.Wait()
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	tr, _ := NewTraceReader(baseDir, "run")
	defer tr.Close()
	entries, err := tr.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(entries) != 400 {
		t.Errorf("Expected 400 entries, got %d", len(entries))
	}
}
