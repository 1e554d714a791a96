package core

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type traceFile struct {
	TraceEvents []struct {
		Ph   string `json:"ph"`
		Tid  int    `json:"tid"`
		Ts   int64  `json:"ts"`
		Dur  int64  `json:"dur"`
		Name string `json:"name"`
		Args struct {
			Type int32 `json:"type"`
			ID   int32 `json:"id"`
		} `json:"args"`
	} `json:"traceEvents"`
}

func readTrace(t *testing.T, path string) traceFile {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	var tf traceFile
	if err := json.Unmarshal(data, &tf); err != nil {
		t.Fatalf("trace is not valid JSON: %v\n%s", err, data)
	}
	return tf
}

// TestTraceRecorder_RecordAndFlush tests the Chrome-tracing sink
// Main test items:
// 1. Recorded slices appear as complete events with worker and tags
// 2. Registered type names label the events
// 3. Flush writes valid JSON and resets the buffers
func TestTraceRecorder_RecordAndFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.json")
	tr := NewTraceRecorder(2, NewSystemAllocator(), path)
	tr.SetTypeName(7, "render")
	tr.Enable()

	start := time.Now()
	tr.Record(0, start, start.Add(200*time.Microsecond), Tags{Type: 7, ID: 1})
	tr.Record(1, start, start.Add(time.Millisecond), NoTags)

	if err := tr.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	tf := readTrace(t, path)
	if len(tf.TraceEvents) != 2 {
		t.Fatalf("expected 2 events, got %d", len(tf.TraceEvents))
	}
	for _, ev := range tf.TraceEvents {
		if ev.Ph != "X" {
			t.Errorf("expected complete events, got ph %q", ev.Ph)
		}
	}

	named := 0
	for _, ev := range tf.TraceEvents {
		if ev.Name == "render" && ev.Args.Type == 7 && ev.Args.ID == 1 {
			named++
			if ev.Dur != 200 {
				t.Errorf("expected 200us duration, got %d", ev.Dur)
			}
		}
	}
	if named != 1 {
		t.Errorf("expected exactly one named event, found %d", named)
	}

	// Buffers were reset: a second flush writes an empty trace.
	if err := tr.Flush(); err != nil {
		t.Fatalf("second flush: %v", err)
	}
	if tf := readTrace(t, path); len(tf.TraceEvents) != 0 {
		t.Errorf("expected empty trace after reset, got %d events", len(tf.TraceEvents))
	}
}

// TestTraceRecorder_DisabledByDefault tests the enable gate
// Main test items:
// 1. Record before Enable is dropped
// 2. Disable flushes and stops recording
func TestTraceRecorder_DisabledByDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.json")
	tr := NewTraceRecorder(1, NewSystemAllocator(), path)

	now := time.Now()
	tr.Record(0, now, now.Add(time.Millisecond), NoTags)

	tr.Enable()
	tr.Record(0, now, now.Add(time.Millisecond), NoTags)
	if err := tr.Disable(); err != nil {
		t.Fatalf("disable: %v", err)
	}

	if tf := readTrace(t, path); len(tf.TraceEvents) != 1 {
		t.Errorf("expected 1 event, got %d", len(tf.TraceEvents))
	}

	tr.Record(0, now, now.Add(time.Millisecond), NoTags)
	if tr.Enabled() {
		t.Error("recorder should be disabled")
	}

	// Disable again without anything recorded is a no-op.
	if err := tr.Disable(); err != nil {
		t.Fatalf("second disable: %v", err)
	}
}

// TestSystem_TraceIntegration tests recording through the scheduler
// Main test items:
// 1. Executed jobs land in the trace with their tags
// 2. The file is written at teardown while tracing is enabled
func TestSystem_TraceIntegration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.json")
	s := NewSystem(SystemOptions{
		Workers:   2,
		Logger:    NewNoOpLogger(),
		TracePath: path,
	})
	s.Trace().Enable()
	s.Trace().SetTypeName(3, "tagged")

	done := make(chan struct{})
	u := Fn(func(ctx context.Context) { close(done) }).With(AnyWorker, 3, 11)
	s.Schedule(context.Background(), u)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tagged job never ran")
	}

	s.Terminate()
	s.WaitForTermination()

	tf := readTrace(t, path)
	found := false
	for _, ev := range tf.TraceEvents {
		if ev.Name == "tagged" && ev.Args.ID == 11 {
			found = true
		}
	}
	if !found {
		t.Error("tagged execution missing from trace")
	}
}
