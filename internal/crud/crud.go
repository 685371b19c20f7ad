// Package crud runs the create, read, update and delete walk-through
// against the users collection and narrates each step.
package crud

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/mongocrud/internal/users"
	"github.com/dalemusser/mongocrud/logging"
	"github.com/dalemusser/mongocrud/metrics"
	"github.com/dalemusser/mongocrud/toolkit/db/mongodb"
	"go.uber.org/zap"
)

// Plan holds the fixed values the stages query and write.
type Plan struct {
	LookupName   string // read: findOne by name
	UpdateName   string // update: updateOne by name
	NewAge       int
	AgeThreshold int // read, update and delete: age >= threshold
	City         string
	DeleteName   string
}

// DefaultPlan is the walk-through as published: Andi turns 26, everyone
// 30 or older moves to Jakarta, Citra and the 30+ group are deleted.
func DefaultPlan() Plan {
	return Plan{
		LookupName:   "Andi",
		UpdateName:   "Andi",
		NewAge:       26,
		AgeThreshold: 30,
		City:         "Jakarta",
		DeleteName:   "Citra",
	}
}

// Runner holds what the stages share. Only Connector and Console are
// required.
type Runner struct {
	Connector Connector
	Console   *logging.Console
	Logger    *zap.Logger
	Metrics   *metrics.Recorder

	Seed users.Seed
	Plan Plan

	// Now stamps created_at and updated_at.
	Now func() time.Time

	// OpTimeout bounds each stage, connect included. Zero means none.
	OpTimeout time.Duration

	// Fresh drops the collection before inserting.
	Fresh bool
}

// NewRunner returns a Runner with the embedded seed, DefaultPlan and the
// wall clock.
func NewRunner(conn Connector, console *logging.Console, logger *zap.Logger, rec *metrics.Recorder) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		Connector: conn,
		Console:   console,
		Logger:    logger,
		Metrics:   rec,
		Seed:      users.DefaultSeed(),
		Plan:      DefaultPlan(),
		Now:       time.Now,
	}
}

// Run is the driver: create, read, update, read, delete, read. A stage
// that cannot connect ends the run with its error; anything else a stage
// hits is narrated and the run moves on.
func (r *Runner) Run(ctx context.Context) error {
	steps := []struct {
		header string
		run    func(context.Context) error
	}{
		{"Menjalankan operasi Create", r.Create},
		{"Menjalankan operasi Read", r.Read},
		{"Menjalankan operasi Update", r.Update},
		{"Membaca data setelah update", r.Read},
		{"Menjalankan operasi Delete", r.Delete},
		{"Membaca data setelah delete", r.Read},
	}
	for _, s := range steps {
		r.Console.Header(s.header)
		if err := s.run(ctx); err != nil {
			return err
		}
	}
	r.Console.Line()
	r.Console.Line("Semua operasi CRUD selesai")
	return nil
}

// Create inserts the seed's single record, then its batch.
func (r *Runner) Create(ctx context.Context) error {
	return r.stage(ctx, "create", "Gagal menambahkan dokumen", func(ctx context.Context, st users.Store) error {
		if r.Fresh {
			if err := r.track("drop", func() error { return st.Drop(ctx) }); err != nil {
				return err
			}
			r.Console.Line("Collection dikosongkan untuk memulai dari awal")
		}

		now := r.now()
		single := r.Seed.Single
		single.CreatedAt = now
		var id string
		err := r.track("insert_one", func() error {
			oid, err := st.InsertOne(ctx, single)
			id = oid.Hex()
			return err
		})
		if err != nil {
			return err
		}
		r.Console.Linef("Dokumen berhasil ditambahkan: %s", id)

		batch := make([]users.User, len(r.Seed.Batch))
		for i, u := range r.Seed.Batch {
			u.CreatedAt = now
			batch[i] = u
		}
		var n int
		err = r.track("insert_many", func() error {
			var err error
			n, err = st.InsertMany(ctx, batch)
			return err
		})
		if err != nil {
			return err
		}
		r.Console.Linef("%d dokumen berhasil ditambahkan", n)
		return nil
	})
}

// Read runs the three fixed queries and prints each result.
func (r *Runner) Read(ctx context.Context) error {
	return r.stage(ctx, "read", "Gagal membaca dokumen", func(ctx context.Context, st users.Store) error {
		var all []users.User
		if err := r.track("find_all", func() (err error) {
			all, err = st.FindAll(ctx)
			return err
		}); err != nil {
			return err
		}
		r.Console.JSON("Semua pengguna:", all)

		var older []users.User
		if err := r.track("find_age_gte", func() (err error) {
			older, err = st.FindAgeAtLeast(ctx, r.Plan.AgeThreshold)
			return err
		}); err != nil {
			return err
		}
		r.Console.JSON(r.Console.Sprintf("Pengguna dengan umur >= %d:", r.Plan.AgeThreshold), older)

		var one *users.User
		if err := r.track("find_one", func() error {
			u, err := st.FindByName(ctx, r.Plan.LookupName)
			switch {
			case errors.Is(err, users.ErrNotFound):
				return nil
			case err != nil:
				return err
			}
			one = &u
			return nil
		}); err != nil {
			return err
		}
		r.Console.JSON(r.Console.Sprintf("Detail pengguna %s:", r.Plan.LookupName), one)
		return nil
	})
}

// Update sets a new age on one record, then a city on the older ones.
func (r *Runner) Update(ctx context.Context) error {
	return r.stage(ctx, "update", "Gagal mengubah dokumen", func(ctx context.Context, st users.Store) error {
		now := r.now()
		var n int64
		if err := r.track("update_one", func() (err error) {
			n, err = st.UpdateAgeByName(ctx, r.Plan.UpdateName, r.Plan.NewAge, now)
			return err
		}); err != nil {
			return err
		}
		r.Console.Linef("%d dokumen diubah", n)

		if err := r.track("update_many", func() (err error) {
			n, err = st.SetCityForAgeAtLeast(ctx, r.Plan.AgeThreshold, r.Plan.City, now)
			return err
		}); err != nil {
			return err
		}
		r.Console.Linef("%d dokumen diubah", n)
		return nil
	})
}

// Delete removes one record by name, then every older one.
func (r *Runner) Delete(ctx context.Context) error {
	return r.stage(ctx, "delete", "Gagal menghapus dokumen", func(ctx context.Context, st users.Store) error {
		var n int64
		if err := r.track("delete_one", func() (err error) {
			n, err = st.DeleteByName(ctx, r.Plan.DeleteName)
			return err
		}); err != nil {
			return err
		}
		r.Console.Linef("%d dokumen dihapus", n)

		if err := r.track("delete_many", func() (err error) {
			n, err = st.DeleteAgeAtLeast(ctx, r.Plan.AgeThreshold)
			return err
		}); err != nil {
			return err
		}
		r.Console.Linef("%d dokumen dihapus", n)
		return nil
	})
}

// stage connects, runs fn and closes the connection. A connect failure is
// returned; an error from fn is narrated under failMsg and swallowed.
func (r *Runner) stage(ctx context.Context, name, failMsg string, fn func(context.Context, users.Store) error) error {
	if r.OpTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.OpTimeout)
		defer cancel()
	}
	log := r.logger().With(zap.String("stage", name))

	var sess Session
	err := r.track("connect", func() (err error) {
		sess, err = r.Connector.Connect(ctx)
		return err
	})
	if err != nil {
		r.Console.Failure("Gagal terhubung ke MongoDB", err)
		log.Error("connect failed", zap.Error(err))
		if !errors.Is(err, mongodb.ErrConnect) {
			err = errors.Join(mongodb.ErrConnect, err)
		}
		return err
	}
	r.Console.Line("Terhubung dengan MongoDB")
	defer func() {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := sess.Close(cctx); err != nil {
			log.Warn("disconnect failed", zap.Error(err))
		}
	}()

	if err := fn(ctx, sess.Users()); err != nil {
		r.Console.Failure(failMsg, err)
		log.Warn("stage failed; continuing", zap.Error(err))
	}
	return nil
}

func (r *Runner) track(op string, fn func() error) error {
	return r.Metrics.Track(op, fn)
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
