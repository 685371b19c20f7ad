package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTrackCountsOutcomes(t *testing.T) {
	r := NewRecorder(nil)

	_ = r.Track("insert_one", func() error { return nil })
	_ = r.Track("insert_one", func() error { return nil })
	boom := errors.New("boom")
	if err := r.Track("insert_one", func() error { return boom }); err != boom {
		t.Errorf("Track returned %v, want the fn error", err)
	}

	if got := testutil.ToFloat64(r.ops.WithLabelValues("insert_one", OutcomeOK)); got != 2 {
		t.Errorf("ok count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.ops.WithLabelValues("insert_one", OutcomeError)); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(r.duration); got != 1 {
		t.Errorf("histogram series = %d, want 1", got)
	}
}

func TestTrackNilRecorder(t *testing.T) {
	var r *Recorder
	called := false
	if err := r.Track("find", func() error { called = true; return nil }); err != nil || !called {
		t.Errorf("nil Recorder Track = %v, called %v; want nil, true", err, called)
	}
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder(nil)
	_ = r.Track("delete_many", func() error { return nil })

	path := filepath.Join(t.TempDir(), "mongocrud.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := `mongocrud_operations_total{operation="delete_many",outcome="ok"} 1`
	if !strings.Contains(string(b), want) {
		t.Errorf("textfile lacks %q:\n%s", want, b)
	}
}

func TestOperationLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "unknown"},
		{"find", "find"},
		{strings.Repeat("a", 70), strings.Repeat("a", 61) + "..."},
	}
	for _, tt := range tests {
		if got := operationLabel(tt.in); got != tt.want {
			t.Errorf("operationLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncateUTF8(t *testing.T) {
	// "é" is two bytes; cutting at 2 must not split it.
	if got := truncateUTF8("aéb", 2); got != "a" {
		t.Errorf("truncateUTF8 = %q, want %q", got, "a")
	}
	if got := truncateUTF8("abc", 0); got != "" {
		t.Errorf("truncateUTF8(0) = %q, want empty", got)
	}
}
