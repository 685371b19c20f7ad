// Package lessons runs the tutorial walk-throughs (basic operations,
// aggregation, indexing, relationships, schema validation) against a live
// database, narrating every step.
//
// Each lesson owns a handful of collections, drops them first and then
// runs a fixed list of steps. A step that fails is narrated and skipped;
// only a failed connection stops the run.
package lessons

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dalemusser/mongocrud/logging"
	"github.com/dalemusser/mongocrud/metrics"
	"github.com/dalemusser/mongocrud/toolkit/db/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Resolve errors.
var (
	ErrUnknownLesson = errors.New("lessons: unknown lesson")
	ErrNoLessons     = errors.New("lessons: lesson needs a name")
)

// Lesson is one walk-through.
type Lesson struct {
	Name        string
	Title       string   // Indonesian, shown by "lessons" and as the banner
	Collections []string // dropped before the first step
	run         func(ctx context.Context, e *Env)
}

var registry = []Lesson{
	basicLesson,
	aggregationLesson,
	indexingLesson,
	relationshipsLesson,
	validationLesson,
}

// All returns every lesson in run order.
func All() []Lesson { return slices.Clone(registry) }

// Names returns the lesson names in run order.
func Names() []string {
	out := make([]string, len(registry))
	for i, l := range registry {
		out[i] = l.Name
	}
	return out
}

// Resolve maps names to lessons, keeping the caller's order and dropping
// repeats. "all" expands to every lesson. At least one name is required.
func Resolve(names []string) ([]Lesson, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w (%s, all)", ErrNoLessons, strings.Join(Names(), ", "))
	}
	var out []Lesson
	seen := map[string]bool{}
	add := func(l Lesson) {
		if !seen[l.Name] {
			seen[l.Name] = true
			out = append(out, l)
		}
	}
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "all" {
			for _, l := range registry {
				add(l)
			}
			continue
		}
		i := slices.IndexFunc(registry, func(l Lesson) bool { return l.Name == n })
		if i < 0 {
			return nil, fmt.Errorf("%w %q (available: %s, all)", ErrUnknownLesson, n, strings.Join(Names(), ", "))
		}
		add(registry[i])
	}
	return out, nil
}

// Opener opens a database session. Run calls it once per lesson.
type Opener func(ctx context.Context) (*mongodb.Session, error)

// Runner runs lessons.
type Runner struct {
	Open    Opener
	Console *logging.Console
	Logger  *zap.Logger
	Metrics *metrics.Recorder
	Now     func() time.Time
}

// Run runs each lesson in order. It stops with an error wrapping
// mongodb.ErrConnect when a lesson cannot connect.
func (r *Runner) Run(ctx context.Context, ls []Lesson) error {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := r.Now
	if now == nil {
		now = time.Now
	}

	for _, l := range ls {
		r.Console.Banner(l.Title)

		var sess *mongodb.Session
		err := r.Metrics.Track("connect", func() (err error) {
			sess, err = r.Open(ctx)
			return err
		})
		if err != nil {
			r.Console.Failure("Gagal terhubung ke MongoDB", err)
			logger.Error("connect failed", zap.String("lesson", l.Name), zap.Error(err))
			if !errors.Is(err, mongodb.ErrConnect) {
				err = errors.Join(mongodb.ErrConnect, err)
			}
			return err
		}
		r.Console.Line("Terhubung dengan MongoDB")

		e := &Env{
			DB:      sess.DB,
			Console: r.Console,
			Logger:  logger.With(zap.String("lesson", l.Name)),
			Metrics: r.Metrics,
			Now:     now,
			lesson:  l.Name,
		}
		e.Step("Menyiapkan collection", func() error { return e.dropAll(ctx, l.Collections) })
		l.run(ctx, e)

		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := sess.Close(cctx); err != nil {
			logger.Warn("disconnect failed", zap.String("lesson", l.Name), zap.Error(err))
		}
		cancel()

		if e.failed > 0 {
			r.Console.Linef("Pelajaran %s selesai dengan %d langkah gagal", l.Name, e.failed)
		} else {
			r.Console.Linef("Pelajaran %s selesai", l.Name)
		}
	}
	return nil
}

// Env is what a lesson's steps share.
type Env struct {
	DB      *mongo.Database
	Console *logging.Console
	Logger  *zap.Logger
	Metrics *metrics.Recorder
	Now     func() time.Time

	lesson string
	failed int
}

// Step prints title as a header and runs fn. An error is narrated,
// logged and counted, never returned.
func (e *Env) Step(title string, fn func() error) {
	e.Console.Header(title)
	err := e.Metrics.Track("lesson_"+e.lesson, fn)
	if err == nil {
		return
	}
	e.failed++
	e.Console.Failure("Langkah gagal", err)
	if e.Logger != nil {
		e.Logger.Warn("step failed; continuing", zap.String("step", title), zap.Error(err))
	}
}

// Failed reports how many steps have failed so far.
func (e *Env) Failed() int { return e.failed }

func (e *Env) dropAll(ctx context.Context, names []string) error {
	var errs []error
	for _, n := range names {
		if err := e.DB.Collection(n).Drop(ctx); err != nil && !mongodb.IsNamespaceNotFound(err) {
			errs = append(errs, fmt.Errorf("drop %s: %w", n, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	e.Console.Linef("Collection dikosongkan: %s", strings.Join(names, ", "))
	return nil
}

// find runs a query and prints every result under label.
func (e *Env) find(ctx context.Context, coll string, filter any, label string, opts ...*options.FindOptions) error {
	docs, err := e.findDocs(ctx, coll, filter, opts...)
	if err != nil {
		return err
	}
	e.Console.JSON(label, docs)
	return nil
}

func (e *Env) findDocs(ctx context.Context, coll string, filter any, opts ...*options.FindOptions) ([]bson.D, error) {
	cur, err := e.DB.Collection(coll).Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", coll, err)
	}
	docs := []bson.D{}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("find %s: %w", coll, err)
	}
	return docs, nil
}

// aggregate runs pipeline on coll and prints the results under label.
func (e *Env) aggregate(ctx context.Context, coll string, pipeline mongo.Pipeline, label string) error {
	docs, err := e.aggregateDocs(ctx, coll, pipeline)
	if err != nil {
		return err
	}
	e.Console.JSON(label, docs)
	return nil
}

func (e *Env) aggregateDocs(ctx context.Context, coll string, pipeline mongo.Pipeline) ([]bson.D, error) {
	cur, err := e.DB.Collection(coll).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", coll, err)
	}
	docs := []bson.D{}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", coll, err)
	}
	return docs, nil
}

// insertOne inserts doc and narrates its new _id.
func (e *Env) insertOne(ctx context.Context, coll string, doc any) error {
	res, err := e.DB.Collection(coll).InsertOne(ctx, doc)
	if err != nil {
		return err
	}
	e.Console.JSON("Dokumen berhasil ditambahkan:", bson.M{"insertedId": res.InsertedID})
	return nil
}

// insertMany inserts docs and narrates the count.
func (e *Env) insertMany(ctx context.Context, coll string, docs []any) error {
	res, err := e.DB.Collection(coll).InsertMany(ctx, docs)
	if err != nil {
		return err
	}
	e.Console.Linef("%d dokumen berhasil ditambahkan ke %s", len(res.InsertedIDs), coll)
	return nil
}

// updated narrates an update result.
func (e *Env) updated(res *mongo.UpdateResult, err error) error {
	if err != nil {
		return err
	}
	e.Console.Linef("%d dokumen cocok, %d dokumen diubah", res.MatchedCount, res.ModifiedCount)
	return nil
}

// deleted narrates a delete result.
func (e *Env) deleted(res *mongo.DeleteResult, err error) error {
	if err != nil {
		return err
	}
	e.Console.Linef("%d dokumen dihapus", res.DeletedCount)
	return nil
}

// toAny converts typed fixtures for InsertMany.
func toAny[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
