package commands

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/pwscan/pwscan-go/pkg/log"
	"github.com/pwscan/pwscan-go/pkg/wire"
)

func TestParseFlags(t *testing.T) {
	if l, err := ParseLayerFlag("Session"); err != nil || l != log.LayerSession {
		t.Errorf("ParseLayerFlag(Session) = %v, %v", l, err)
	}
	if _, err := ParseLayerFlag("service"); err == nil {
		t.Error("expected error for unknown layer")
	}
	if d, err := ParseDirectionFlag("in"); err != nil || d != log.DirectionIn {
		t.Errorf("ParseDirectionFlag(in) = %v, %v", d, err)
	}
	if _, err := ParseDirectionFlag("up"); err == nil {
		t.Error("expected error for unknown direction")
	}
	if c, err := ParseCategoryFlag("STATE"); err != nil || c != log.CategoryState {
		t.Errorf("ParseCategoryFlag(STATE) = %v, %v", c, err)
	}
	if _, err := ParseCategoryFlag("control"); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestParseOpFlag(t *testing.T) {
	for name, want := range map[string]wire.Opcode{
		"sync":         wire.OpSync,
		"Done":         wire.OpDone,
		"globalremove": wire.OpGlobalRemove,
	} {
		got, err := ParseOpFlag(name)
		if err != nil || got != want {
			t.Errorf("ParseOpFlag(%q) = %v, %v; want %v", name, got, err, want)
		}
	}
	if _, err := ParseOpFlag("Unknown"); err == nil {
		t.Error("expected error for unknown opcode")
	}
}

func TestBuildFilterMessage(t *testing.T) {
	f, err := BuildFilter(FilterOptions{Op: "bind", Object: "1"})
	if err != nil {
		t.Fatalf("BuildFilter: %v", err)
	}
	if f.Op == nil || *f.Op != wire.OpBind {
		t.Errorf("Op = %v", f.Op)
	}
	if f.ObjectID == nil || *f.ObjectID != 1 {
		t.Errorf("ObjectID = %v", f.ObjectID)
	}
	if _, err := BuildFilter(FilterOptions{Object: "-1"}); err == nil {
		t.Error("expected error for bad object id")
	}
}

func TestBuildFilterTimes(t *testing.T) {
	f, err := BuildFilter(FilterOptions{
		TimeStart: "2026-01-28T10:00:00Z",
		TimeEnd:   "2026-01-28T11:00:00Z",
	})
	if err != nil {
		t.Fatalf("BuildFilter: %v", err)
	}
	if f.TimeStart == nil || f.TimeEnd == nil {
		t.Fatal("expected both time bounds")
	}

	if _, err := BuildFilter(FilterOptions{TimeStart: "yesterday"}); err == nil {
		t.Error("expected error for bad time")
	}
}

func TestRunFilterByConnection(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, []log.Event{
		syncEvent(ts, "keep", 1),
		syncEvent(ts, "drop", 1),
		doneEvent(ts, "keep", 1),
	})
	out := filepath.Join(t.TempDir(), "filtered.plog")

	n, err := RunFilter(path, out, FilterOptions{ConnID: "keep"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 events, got %d", n)
	}

	reader, err := log.NewReader(out)
	if err != nil {
		t.Fatalf("open filtered log: %v", err)
	}
	defer reader.Close()

	var count int
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if event.ConnectionID != "keep" {
			t.Errorf("unexpected connection %q", event.ConnectionID)
		}
		count++
	}
	if count != 2 {
		t.Errorf("expected 2 events in output, got %d", count)
	}
}
