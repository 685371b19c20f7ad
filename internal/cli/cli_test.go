package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/mongocrud/app"
	"github.com/dalemusser/mongocrud/config"
	"github.com/dalemusser/mongocrud/internal/lessons"
	"github.com/dalemusser/mongocrud/internal/testkit"
	"github.com/dalemusser/mongocrud/internal/users"
	"github.com/dalemusser/mongocrud/logging"
	"github.com/dalemusser/mongocrud/pantry/export"
	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	chdir(t, t.TempDir())
	var out, errOut bytes.Buffer
	code := run(context.Background(), "mongocrud", args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		want      int
		wantOut   string
		wantError string
	}{
		{"help", []string{"help"}, ExitOK, "Commands:", ""},
		{"help flag", []string{"--help"}, ExitOK, "--mongo_uri", ""},
		{"lessons", []string{"lessons"}, ExitOK, "relationships", ""},
		{"version", []string{"version"}, ExitOK, "go.mongodb.org/mongo-driver", ""},
		{"flags before command", []string{"--log_level", "error", "version"}, ExitOK, "go.mongodb.org/mongo-driver", ""},
		{"flag=value before command", []string{"--log_level=error", "lessons"}, ExitOK, "relationships", ""},
		{"unknown command after flags", []string{"--log_level", "error", "migrate"}, ExitUsage, "", `unknown command: "migrate"`},
		{"lesson without name after flags", []string{"--log_level", "error", "lesson"}, ExitUsage, "", "lesson needs a name"},
		{"unknown command", []string{"migrate"}, ExitUsage, "", `unknown command: "migrate"`},
		{"unknown flag", []string{"demo", "--no_such_flag"}, ExitUsage, "", "unknown flag"},
		{"unknown lesson", []string{"lesson", "sharding"}, ExitUsage, "", "unknown lesson"},
		{"lesson without name", []string{"lesson"}, ExitUsage, "", "lesson needs a name"},
		{"stray argument", []string{"demo", "extra"}, ExitUsage, "", "unexpected arguments: extra"},
		{"invalid config", []string{"--mongo_uri", "http://localhost"}, ExitError, "", "invalid configuration"},
		{"bad seed file", []string{"--seed_file", "missing.yaml"}, ExitError, "", "Gagal membaca data awal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, errOut := runCLI(t, tt.args...)
			if code != tt.want {
				t.Errorf("run(%q) = %d, want %d\nstderr: %s", tt.args, code, tt.want, errOut)
			}
			if tt.wantOut != "" && !strings.Contains(out, tt.wantOut) {
				t.Errorf("stdout = %q, want it to contain %q", out, tt.wantOut)
			}
			if tt.wantError != "" && !strings.Contains(errOut, tt.wantError) {
				t.Errorf("stderr = %q, want it to contain %q", errOut, tt.wantError)
			}
		})
	}
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		args     []string
		wantName string
		wantArgs []string
	}{
		{nil, "demo", nil},
		{[]string{"lesson", "basic"}, "lesson", []string{"basic"}},
		{[]string{"--fresh"}, "demo", []string{"--fresh"}},
		{[]string{"--log_level", "error", "version"}, "version", []string{"--log_level", "error"}},
		{[]string{"--fresh", "export", "--export_format", "xlsx"}, "export", []string{"--fresh", "--export_format", "xlsx"}},
		// the database is named like the command; only the positional is removed
		{[]string{"--mongo_database", "lesson", "lesson", "basic"}, "lesson", []string{"--mongo_database", "lesson", "basic"}},
		{[]string{"--no_such_flag", "version"}, "demo", []string{"--no_such_flag", "version"}},
	}
	for _, tt := range tests {
		name, args := splitCommand(tt.args)
		if name != tt.wantName || !slices.Equal(args, tt.wantArgs) {
			t.Errorf("splitCommand(%q) = %q, %q, want %q, %q", tt.args, name, args, tt.wantName, tt.wantArgs)
		}
	}
}

func TestLessonsListsEveryLesson(t *testing.T) {
	code, out, _ := runCLI(t, "lessons")
	if code != ExitOK {
		t.Fatalf("exit = %d, want 0", code)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	names := lessons.Names()
	if len(lines) != len(names) {
		t.Fatalf("listed %d lessons, want %d:\n%s", len(lines), len(names), out)
	}
	for i, n := range names {
		if !strings.HasPrefix(lines[i], n+" ") {
			t.Errorf("line %d = %q, want it to start with %q", i, lines[i], n)
		}
	}
}

func TestDemoUnreachableServer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping in short mode")
	}
	code, out, errOut := runCLI(t, "--mongo_uri", "mongodb://127.0.0.1:1/?directConnection=true", "--db_connect_timeout", "1")
	if code != ExitError {
		t.Errorf("exit = %d, want %d", code, ExitError)
	}
	if want := "--- Menjalankan operasi Create ---\n"; out != want {
		t.Errorf("stdout = %q, want %q", out, want)
	}
	if !strings.Contains(errOut, "Gagal terhubung ke MongoDB") {
		t.Errorf("stderr = %q, want connect failure", errOut)
	}
}

func TestMetricsTextfileWrittenOnFailure(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping in short mode")
	}
	path := filepath.Join(t.TempDir(), "mongocrud.prom")
	code, _, _ := runCLI(t, "--mongo_uri", "mongodb://127.0.0.1:1/?directConnection=true",
		"--db_connect_timeout", "1", "--metrics_textfile", path)
	if code != ExitError {
		t.Errorf("exit = %d, want %d", code, ExitError)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("metrics textfile: %v", err)
	}
	if want := `mongocrud_operations_total{operation="connect",outcome="error"} 1`; !strings.Contains(string(b), want) {
		t.Errorf("metrics textfile missing %q", want)
	}
}

func testEnv(t *testing.T, format, path string) (*app.Env, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	return &app.Env{
		Config: &config.CoreConfig{
			Mongo:  config.MongoConfig{UsersCollection: "users"},
			Export: config.ExportConfig{Format: format, Path: path},
		},
		Logger:  testkit.TestLogger(),
		Console: logging.NewConsole(&out, &errOut),
	}, &out, &errOut
}

func TestWriteExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.csv")
	env, out, _ := testEnv(t, "csv", path)

	us := users.DefaultSeed().All()
	for i := range us {
		us[i].ID = primitive.NewObjectID()
		us[i].CreatedAt = time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)
	}
	if err := writeExport(env, us); err != nil {
		t.Fatalf("writeExport() error = %v", err)
	}
	if want := "4 dokumen diekspor ke " + path + " (csv)\n"; out.String() != want {
		t.Errorf("stdout = %q, want %q", out.String(), want)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := export.ReadCSV(f)
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("got %d rows, want header + 4", len(rows))
	}
	if rows[0][0] != "id" || rows[1][1] != "Andi" {
		t.Errorf("rows = %q, want id header and Andi first", rows[:2])
	}
}

func TestExportXLSXWithDefaultPath(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, _, err := config.Load(testkit.TestLogger(), []string{"--export_format", "xlsx"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Export.Path != "users.xlsx" {
		t.Fatalf("Export.Path = %q, want %q", cfg.Export.Path, "users.xlsx")
	}

	env, out, _ := testEnv(t, cfg.Export.Format, cfg.Export.Path)
	us := users.DefaultSeed().All()
	for i := range us {
		us[i].ID = primitive.NewObjectID()
	}
	if err := writeExport(env, us); err != nil {
		t.Fatalf("writeExport() error = %v", err)
	}
	if want := "4 dokumen diekspor ke users.xlsx (xlsx)\n"; out.String() != want {
		t.Errorf("stdout = %q, want %q", out.String(), want)
	}

	f, err := excelize.OpenFile("users.xlsx")
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("users")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 5 {
		t.Errorf("got %d rows, want header + 4", len(rows))
	}
}

func TestWriteExportEmpty(t *testing.T) {
	env, _, errOut := testEnv(t, "xlsx", filepath.Join(t.TempDir(), "users.xlsx"))
	err := writeExport(env, nil)
	if !errors.Is(err, export.ErrNoData) {
		t.Fatalf("writeExport(nil) error = %v, want ErrNoData", err)
	}
	if !strings.HasPrefix(errOut.String(), "Tidak ada data untuk diekspor") {
		t.Errorf("stderr = %q, want no-data narration", errOut.String())
	}
	if code := exitCode(err, "mongocrud", &bytes.Buffer{}, &bytes.Buffer{}); code != ExitError {
		t.Errorf("exitCode(ErrNoData) = %d, want %d", code, ExitError)
	}
}

// chdir changes the working directory for the duration of the test
// (stand-in for testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
