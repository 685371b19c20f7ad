package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestIsValidLogLevel(t *testing.T) {
	for _, lvl := range []string{"debug", "INFO", " warn ", "error", "fatal"} {
		if !IsValidLogLevel(lvl) {
			t.Errorf("IsValidLogLevel(%q) = false, want true", lvl)
		}
	}
	for _, lvl := range []string{"", "verbose", "trace"} {
		if IsValidLogLevel(lvl) {
			t.Errorf("IsValidLogLevel(%q) = true, want false", lvl)
		}
	}
}

func TestBuildLogger(t *testing.T) {
	tests := []struct {
		level, env string
	}{
		{"debug", "dev"},
		{"info", "prod"},
		{"nonsense", "dev"},
	}
	for _, tt := range tests {
		logger, err := BuildLogger(tt.level, tt.env)
		if err != nil {
			t.Fatalf("BuildLogger(%q, %q) error = %v", tt.level, tt.env, err)
		}
		if logger == nil {
			t.Fatalf("BuildLogger(%q, %q) returned nil logger", tt.level, tt.env)
		}
	}

	logger, _ := BuildLogger("nonsense", "dev")
	if logger.Core().Enabled(-1) { // debug
		t.Error("invalid level should fall back to info, but debug is enabled")
	}
}

func TestConsoleHeaders(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out, &out)

	c.Header("Menjalankan operasi Create")
	c.Linef("%d dokumen berhasil ditambahkan", 3)
	c.Header("Menjalankan operasi Read")

	want := "--- Menjalankan operasi Create ---\n" +
		"3 dokumen berhasil ditambahkan\n" +
		"\n--- Menjalankan operasi Read ---\n"
	if out.String() != want {
		t.Errorf("narration = %q, want %q", out.String(), want)
	}
}

func TestConsoleFailureGoesToErrWriter(t *testing.T) {
	var out, errOut bytes.Buffer
	c := NewConsole(&out, &errOut)

	c.Failure("Gagal menambahkan dokumen", errors.New("boom"))

	if out.Len() != 0 {
		t.Errorf("stdout = %q, want empty", out.String())
	}
	if errOut.String() != "Gagal menambahkan dokumen: boom\n" {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestConsoleIndonesianNumbers(t *testing.T) {
	c := NewConsole(&bytes.Buffer{}, nil)

	if got := c.Rupiah(8500000); got != "Rp8.500.000" {
		t.Errorf("Rupiah(8500000) = %q, want %q", got, "Rp8.500.000")
	}
	if got := c.Number(1234); got != "1.234" {
		t.Errorf("Number(1234) = %q, want %q", got, "1.234")
	}
	if got := c.Number(84.5); got != "84,50" {
		t.Errorf("Number(84.5) = %q, want %q", got, "84,50")
	}
}

func TestExtJSON(t *testing.T) {
	tests := []struct {
		name     string
		v        any
		contains []string
	}{
		{"nil", nil, []string{"null"}},
		{"nil pointer", (*bson.M)(nil), []string{"null"}},
		{"empty slice", []bson.M{}, []string{"[]"}},
		{"document", bson.D{{Key: "name", Value: "Andi"}, {Key: "age", Value: 25}}, []string{`"name": "Andi"`, `"age": 25`}},
		{"slice", []bson.D{{{Key: "name", Value: "Budi"}}, {{Key: "name", Value: "Deni"}}}, []string{"[\n", `"name": "Budi"`, "},\n", `"name": "Deni"`, "]"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtJSON(tt.v)
			if err != nil {
				t.Fatalf("ExtJSON error = %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("ExtJSON = %q, want it to contain %q", got, want)
				}
			}
		})
	}
}
