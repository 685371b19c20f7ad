package users

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed []byte

// ErrInvalidSeed is returned when a fixture cannot drive the create stage.
var ErrInvalidSeed = errors.New("users: invalid seed")

// Seed is the fixture for the create stage: one record inserted alone,
// then a batch.
type Seed struct {
	Single User
	Batch  []User
}

// All returns the single record followed by the batch.
func (s Seed) All() []User {
	return append([]User{s.Single}, s.Batch...)
}

type seedFile struct {
	Users []User `yaml:"users"`
}

// DefaultSeed returns the built-in fixture (Andi, then Budi, Citra, Deni).
func DefaultSeed() Seed {
	s, err := ParseSeed(defaultSeed)
	if err != nil {
		panic("users: embedded seed is broken: " + err.Error())
	}
	return s
}

// LoadSeed reads a YAML fixture from path; an empty path yields DefaultSeed.
func LoadSeed(path string) (Seed, error) {
	if path == "" {
		return DefaultSeed(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(b)
}

// ParseSeed decodes and validates a YAML fixture. It needs at least two
// users so both the single and the batch insert have work to do.
func ParseSeed(b []byte) (Seed, error) {
	var f seedFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return Seed{}, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	if len(f.Users) < 2 {
		return Seed{}, fmt.Errorf("%w: need at least 2 users, got %d", ErrInvalidSeed, len(f.Users))
	}
	var errs []error
	for _, u := range f.Users {
		if err := u.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return Seed{}, fmt.Errorf("%w: %w", ErrInvalidSeed, errors.Join(errs...))
	}
	return Seed{Single: f.Users[0], Batch: f.Users[1:]}, nil
}
