// Package testkit holds helpers shared by the package tests.
package testkit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dalemusser/mongocrud/toolkit/db/mongodb"
	"go.uber.org/zap"
)

// MongoURIEnv names the variable that enables the live MongoDB tests.
const MongoURIEnv = "MONGOCRUD_TEST_URI"

// TestLogger returns a no-op logger for tests.
func TestLogger() *zap.Logger {
	return zap.NewNop()
}

// Context returns a context with a reasonable timeout for tests.
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TempFile creates a file with the given content in a per-test directory.
func TempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	return path
}

// MongoURI returns the live test URI or skips the test.
func MongoURI(t testing.TB) string {
	t.Helper()
	uri := os.Getenv(MongoURIEnv)
	if uri == "" {
		t.Skipf("%s not set; skipping live MongoDB test", MongoURIEnv)
	}
	return uri
}

// MongoSession connects to the live test server with a throwaway database
// name and drops that database when the test ends.
func MongoSession(t testing.TB) (*mongodb.Session, string) {
	t.Helper()
	uri := MongoURI(t)
	db := fmt.Sprintf("mongocrud_test_%d", time.Now().UnixNano())

	pool := mongodb.DefaultPoolConfig()
	s, err := mongodb.Connect(context.Background(), uri, db, pool)
	if err != nil {
		t.Fatalf("connect %s: %v", mongodb.RedactURI(uri), err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.DB.Drop(ctx)
		_ = s.Close(ctx)
	})
	return s, db
}
