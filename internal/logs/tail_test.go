package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"mediaflow/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mediaflow-daemon.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestLastReturnsTrailingLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	lines, offset, err := logs.Last(path, 2, "")
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if !slices.Equal(lines, []string{"b", "c"}) {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if offset != 6 {
		t.Fatalf("expected offset 6, got %d", offset)
	}
}

func TestLastFiltersByWorkflow(t *testing.T) {
	path := writeLog(t, "workflow_id=wf-1 start\nworkflow_id=wf-2 start\nworkflow_id=wf-1 done\npartial")

	lines, offset, err := logs.Last(path, 10, "wf-1")
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if !slices.Equal(lines, []string{"workflow_id=wf-1 start", "workflow_id=wf-1 done"}) {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	info, _ := os.Stat(path)
	if offset != info.Size()-int64(len("partial")) {
		t.Fatalf("partial line should not be consumed, offset %d", offset)
	}
}

func TestLastMissingFile(t *testing.T) {
	lines, offset, err := logs.Last(filepath.Join(t.TempDir(), "missing.log"), 5, "")
	if err != nil || lines != nil || offset != 0 {
		t.Fatalf("expected empty result, got %v %d %v", lines, offset, err)
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := writeLog(t, "old\n")
	_, offset, err := logs.Last(path, 0, "")
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu    sync.Mutex
		lines []string
	)
	got := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = logs.Follow(ctx, path, offset, "", 10*time.Millisecond, func(line string) {
			mu.Lock()
			lines = append(lines, line)
			mu.Unlock()
			if line == "new" {
				close(got)
			}
		})
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("new\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = f.Close()

	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not emit appended line")
	}
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(lines, []string{"new"}) {
		t.Fatalf("unexpected lines: %#v", lines)
	}
}
