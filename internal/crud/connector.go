package crud

import (
	"context"

	"github.com/dalemusser/mongocrud/internal/users"
	"github.com/dalemusser/mongocrud/toolkit/db/mongodb"
)

// Session is one stage's connection.
type Session interface {
	Users() users.Store
	Close(ctx context.Context) error
}

// Connector opens a Session. Every stage calls it once.
type Connector interface {
	Connect(ctx context.Context) (Session, error)
}

// MongoConnector connects to a real server.
type MongoConnector struct {
	URI        string
	Database   string
	Collection string
	Pool       mongodb.PoolConfig
}

// Connect dials and pings the server. Failures wrap mongodb.ErrConnect.
func (c MongoConnector) Connect(ctx context.Context) (Session, error) {
	s, err := mongodb.Connect(ctx, c.URI, c.Database, c.Pool)
	if err != nil {
		return nil, err
	}
	return &mongoSession{s: s, store: users.NewMongoStore(s.Collection(c.Collection))}, nil
}

type mongoSession struct {
	s     *mongodb.Session
	store *users.MongoStore
}

func (m *mongoSession) Users() users.Store              { return m.store }
func (m *mongoSession) Close(ctx context.Context) error { return m.s.Close(ctx) }
