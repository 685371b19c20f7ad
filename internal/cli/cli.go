// internal/cli/cli.go
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/dalemusser/mongocrud/app"
	"github.com/dalemusser/mongocrud/config"
	"github.com/dalemusser/mongocrud/internal/crud"
	"github.com/dalemusser/mongocrud/internal/lessons"
	"github.com/dalemusser/mongocrud/internal/users"
	"github.com/dalemusser/mongocrud/pantry/export"
	"github.com/dalemusser/mongocrud/pantry/version"
	"github.com/dalemusser/mongocrud/toolkit/db/mongodb"
	"go.uber.org/zap"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1 // connection, configuration or data failure
	ExitUsage = 2
)

type command struct {
	summary string
	run     func(ctx context.Context, env *app.Env) error
}

var commands = map[string]command{
	"demo":    {"Jalankan demo CRUD pada collection users (default)", demoCmd},
	"lessons": {"Daftar pelajaran yang tersedia", lessonsCmd},
	"lesson":  {"Jalankan satu atau beberapa pelajaran: lesson <nama>... | lesson all", lessonCmd},
	"export":  {"Ekspor collection users ke CSV atau XLSX", exportCmd},
	"version": {"Tampilkan versi", versionCmd},
}

var order = []string{"demo", "lessons", "lesson", "export", "version"}

// Run is the entrypoint used by cmd/mongocrud.
//
// binName is the CLI name to show in help/usage text.
// args are the command-line arguments excluding the binary name (i.e. os.Args[1:]).
//
// It returns a process exit code; callers should os.Exit(Run(...)).
func Run(binName string, args []string) int {
	return run(context.Background(), binName, args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, binName string, args []string, stdout, stderr io.Writer) int {
	name, args := splitCommand(args)

	if name == "help" {
		usage(stdout, binName)
		return ExitOK
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command: %q\n\n", name)
		usage(stderr, binName)
		return ExitUsage
	}

	err := app.Run(ctx, app.Command{Name: name, Execute: cmd.run}, args, stdout, stderr)
	return exitCode(err, binName, stdout, stderr)
}

// splitCommand finds the command name: the first argument, or, when args
// start with flags, the first positional argument after them. No
// positional argument means "demo".
func splitCommand(args []string) (string, []string) {
	if len(args) == 0 {
		return "demo", args
	}
	if !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	pos := config.Positional(args)
	if len(pos) == 0 {
		return "demo", args
	}
	// drop the occurrence that is the positional, not a flag value
	for i, a := range args {
		if a != pos[0] {
			continue
		}
		rest := append(slices.Clone(args[:i]), args[i+1:]...)
		if slices.Equal(config.Positional(rest), pos[1:]) {
			return pos[0], rest
		}
	}
	return "demo", args
}

func exitCode(err error, binName string, stdout, stderr io.Writer) int {
	var ue *config.UsageError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, config.ErrHelp):
		usage(stdout, binName)
		return ExitOK
	case errors.As(err, &ue), errors.Is(err, lessons.ErrUnknownLesson):
		fmt.Fprintf(stderr, "error: %v\n\n", err)
		usage(stderr, binName)
		return ExitUsage
	case errors.Is(err, app.ErrConfig):
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ExitError
	}
	// connect and data failures were already narrated by the command
	return ExitError
}

func usage(w io.Writer, binName string) {
	fmt.Fprintf(w, "mongocrud (%s)\n", binName)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintf(w, "  %s [command] [flags]\n", binName)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags may also come before the command. Without a command, demo runs.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, n := range order {
		fmt.Fprintf(w, "  %-8s %s\n", n, commands[n].summary)
	}
	fmt.Fprintf(w, "  %-8s %s\n", "help", "Tampilkan bantuan ini")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprint(w, config.Usage())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Example:")
	fmt.Fprintf(w, "  %s lesson basic aggregation --mongo_uri mongodb://localhost:27017\n", binName)
}

func noArgs(env *app.Env) error {
	if len(env.Args) > 0 {
		return &config.UsageError{Err: fmt.Errorf("unexpected arguments: %s", strings.Join(env.Args, " "))}
	}
	return nil
}

func demoCmd(ctx context.Context, env *app.Env) error {
	if err := noArgs(env); err != nil {
		return err
	}
	cfg := env.Config
	seed, err := users.LoadSeed(cfg.SeedFile)
	if err != nil {
		env.Console.Failure("Gagal membaca data awal", err)
		return err
	}

	conn := crud.MongoConnector{
		URI:        cfg.Mongo.URI,
		Database:   cfg.Mongo.Database,
		Collection: cfg.Mongo.UsersCollection,
		Pool:       cfg.PoolConfig(),
	}
	r := crud.NewRunner(conn, env.Console, env.Logger, env.Metrics)
	r.Seed = seed
	r.Fresh = cfg.Fresh
	r.OpTimeout = cfg.OpTimeout

	env.Logger.Info("starting CRUD demo",
		zap.String("mongo_uri", mongodb.RedactURI(cfg.Mongo.URI)),
		zap.String("database", cfg.Mongo.Database),
		zap.String("collection", cfg.Mongo.UsersCollection))
	return r.Run(ctx)
}

func versionCmd(_ context.Context, env *app.Env) error {
	if err := noArgs(env); err != nil {
		return err
	}
	env.Console.Line(version.Get().Long())
	return nil
}

func lessonsCmd(_ context.Context, env *app.Env) error {
	if err := noArgs(env); err != nil {
		return err
	}
	for _, l := range lessons.All() {
		env.Console.Linef("%-14s %s", l.Name, l.Title)
	}
	return nil
}

func lessonCmd(ctx context.Context, env *app.Env) error {
	ls, err := lessons.Resolve(env.Args)
	if errors.Is(err, lessons.ErrNoLessons) {
		return &config.UsageError{Err: err}
	}
	if err != nil {
		return err
	}
	cfg := env.Config
	r := &lessons.Runner{
		Open: func(ctx context.Context) (*mongodb.Session, error) {
			return mongodb.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.PoolConfig())
		},
		Console: env.Console,
		Logger:  env.Logger,
		Metrics: env.Metrics,
	}
	return r.Run(ctx, ls)
}

func exportCmd(ctx context.Context, env *app.Env) error {
	if err := noArgs(env); err != nil {
		return err
	}
	cfg := env.Config

	var sess *mongodb.Session
	err := env.Metrics.Track("connect", func() (err error) {
		sess, err = mongodb.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.PoolConfig())
		return err
	})
	if err != nil {
		env.Console.Failure("Gagal terhubung ke MongoDB", err)
		return err
	}
	defer func() {
		if err := sess.Close(context.WithoutCancel(ctx)); err != nil {
			env.Logger.Warn("disconnect failed", zap.Error(err))
		}
	}()

	store := users.NewMongoStore(sess.Collection(cfg.Mongo.UsersCollection))
	var all []users.User
	if err := env.Metrics.Track("find_all", func() (err error) {
		all, err = store.FindAll(ctx)
		return err
	}); err != nil {
		env.Console.Failure("Gagal membaca dokumen", err)
		return err
	}

	return writeExport(env, all)
}

// writeExport saves us in the configured format and narrates the result.
func writeExport(env *app.Env, us []users.User) error {
	cfg := env.Config
	t := export.Table{Headers: users.Columns, Rows: make([][]string, len(us))}
	for i, u := range us {
		t.Rows[i] = u.Row()
	}
	if err := export.Save(cfg.Export.Format, cfg.Export.Path, cfg.Mongo.UsersCollection, t); err != nil {
		if errors.Is(err, export.ErrNoData) {
			env.Console.Failure("Tidak ada data untuk diekspor", err)
		} else {
			env.Console.Failure("Gagal mengekspor data", err)
		}
		return err
	}
	env.Logger.Debug("export written", zap.String("path", cfg.Export.Path), zap.Strings("names", users.Names(us)))
	env.Console.Linef("%d dokumen diekspor ke %s (%s)", len(us), cfg.Export.Path, cfg.Export.Format)
	return nil
}
