// toolkit/db/mongodb/db.go
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const defaultConnectTimeout = 10 * time.Second

// ErrConnect marks a failure to reach the server (connect or ping).
// Callers treat it as fatal.
var ErrConnect = errors.New("mongodb: cannot connect")

// PoolConfig holds connection pool settings. Zero values keep the driver
// defaults.
type PoolConfig struct {
	// MaxPoolSize is the maximum number of connections in the pool.
	MaxPoolSize uint64

	// MinPoolSize is the minimum number of connections to keep open.
	MinPoolSize uint64

	// MaxConnIdleTime closes connections idle for longer than this.
	MaxConnIdleTime time.Duration

	// ConnectTimeout bounds connect + ping. Default: 10 seconds.
	ConnectTimeout time.Duration

	// ServerSelectionTimeout bounds server selection for every operation.
	ServerSelectionTimeout time.Duration
}

// DefaultPoolConfig returns settings suited to a short-lived CLI process:
// a small pool and a server selection timeout that fails fast when the
// server is down.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxPoolSize:            10,
		ConnectTimeout:         defaultConnectTimeout,
		ServerSelectionTimeout: 5 * time.Second,
	}
}

// Session is a connected client plus the selected database.
type Session struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// Collection returns a handle to the named collection of the session database.
func (s *Session) Collection(name string) *mongo.Collection {
	return s.DB.Collection(name)
}

// Close disconnects the client. It is safe to call on a nil session.
func (s *Session) Close(ctx context.Context) error {
	if s == nil || s.Client == nil {
		return nil
	}
	return s.Client.Disconnect(ctx)
}

// Connect opens a client for uri, pings the primary, and selects dbName.
// The connect + ping phase is bounded by pool.ConnectTimeout, derived from
// the parent context. Any failure is wrapped with ErrConnect.
//
// The caller is responsible for calling Session.Close when done.
func Connect(ctx context.Context, uri, dbName string, pool PoolConfig) (*Session, error) {
	timeout := pool.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(cctx, clientOptions(uri, pool))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	if err := client.Ping(cctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}

	return &Session{Client: client, DB: client.Database(dbName)}, nil
}

func clientOptions(uri string, pool PoolConfig) *options.ClientOptions {
	opts := options.Client().ApplyURI(uri)

	if pool.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(pool.MaxPoolSize)
	}
	if pool.MinPoolSize > 0 {
		opts.SetMinPoolSize(pool.MinPoolSize)
	}
	if pool.MaxConnIdleTime > 0 {
		opts.SetMaxConnIdleTime(pool.MaxConnIdleTime)
	}
	if pool.ConnectTimeout > 0 {
		opts.SetConnectTimeout(pool.ConnectTimeout)
	}
	if pool.ServerSelectionTimeout > 0 {
		opts.SetServerSelectionTimeout(pool.ServerSelectionTimeout)
	}
	return opts
}
