// Package users holds the record the CRUD demo works on and the store
// that persists it.
package users

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dalemusser/mongocrud/toolkit/validate"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is one document in the users collection. The collection has no
// validator; City and UpdatedAt only appear once an update sets them.
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id" yaml:"-"`
	Name      string             `bson:"name" json:"name" yaml:"name"`
	Age       int                `bson:"age" json:"age" yaml:"age"`
	Email     string             `bson:"email" json:"email" yaml:"email"`
	City      string             `bson:"city,omitempty" json:"city,omitempty" yaml:"city,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at" yaml:"-"`
	UpdatedAt *time.Time         `bson:"updated_at,omitempty" json:"updated_at,omitempty" yaml:"-"`
}

// Validate checks the fields a fixture must carry.
func (u User) Validate() error {
	var p validate.Problems
	p.Required("name", u.Name)
	if u.Age < 0 {
		p.Addf("age must be >= 0 (got %d)", u.Age)
	}
	if !validate.Email(u.Email) {
		p.Addf("email %q is not valid", u.Email)
	}
	return p.Err(fmt.Sprintf("user %q", u.Name))
}

// Columns are the export headers, in Row order.
var Columns = []string{"id", "name", "age", "email", "city", "created_at", "updated_at"}

// Row renders u as export cells matching Columns.
func (u User) Row() []string {
	id := ""
	if !u.ID.IsZero() {
		id = u.ID.Hex()
	}
	updated := ""
	if u.UpdatedAt != nil {
		updated = u.UpdatedAt.UTC().Format(time.RFC3339)
	}
	created := ""
	if !u.CreatedAt.IsZero() {
		created = u.CreatedAt.UTC().Format(time.RFC3339)
	}
	return []string{id, u.Name, strconv.Itoa(u.Age), u.Email, u.City, created, updated}
}

// Names returns the names of us, in order.
func Names(us []User) []string {
	out := make([]string, len(us))
	for i, u := range us {
		out[i] = u.Name
	}
	return out
}
