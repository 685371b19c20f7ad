package users

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is an in-process Store with the same matching rules as
// MongoStore. It backs tests and dry runs.
type MemoryStore struct {
	mu   sync.Mutex
	docs []User

	// Err, when set, is returned by every call. It simulates a server
	// that accepted the connection and then failed.
	Err error
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) InsertOne(_ context.Context, u User) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return primitive.NilObjectID, m.Err
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	m.docs = append(m.docs, u)
	return u.ID, nil
}

func (m *MemoryStore) InsertMany(ctx context.Context, us []User) (int, error) {
	for i, u := range us {
		if _, err := m.InsertOne(ctx, u); err != nil {
			return i, err
		}
	}
	return len(us), nil
}

func (m *MemoryStore) FindAll(context.Context) ([]User, error) {
	return m.filter(func(User) bool { return true })
}

func (m *MemoryStore) FindAgeAtLeast(_ context.Context, min int) ([]User, error) {
	return m.filter(func(u User) bool { return u.Age >= min })
}

func (m *MemoryStore) FindByName(_ context.Context, name string) (User, error) {
	found, err := m.filter(func(u User) bool { return u.Name == name })
	if err != nil {
		return User{}, err
	}
	if len(found) == 0 {
		return User{}, ErrNotFound
	}
	return found[0], nil
}

func (m *MemoryStore) UpdateAgeByName(_ context.Context, name string, age int, at time.Time) (int64, error) {
	return m.update(1, func(u User) bool { return u.Name == name }, func(u *User) bool {
		changed := u.Age != age || u.UpdatedAt == nil || !u.UpdatedAt.Equal(at)
		u.Age = age
		u.UpdatedAt = &at
		return changed
	})
}

func (m *MemoryStore) SetCityForAgeAtLeast(_ context.Context, min int, city string, at time.Time) (int64, error) {
	return m.update(-1, func(u User) bool { return u.Age >= min }, func(u *User) bool {
		changed := u.City != city || u.UpdatedAt == nil || !u.UpdatedAt.Equal(at)
		u.City = city
		u.UpdatedAt = &at
		return changed
	})
}

func (m *MemoryStore) DeleteByName(_ context.Context, name string) (int64, error) {
	return m.delete(1, func(u User) bool { return u.Name == name })
}

func (m *MemoryStore) DeleteAgeAtLeast(_ context.Context, min int) (int64, error) {
	return m.delete(-1, func(u User) bool { return u.Age >= min })
}

func (m *MemoryStore) Drop(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.docs = nil
	return nil
}

func (m *MemoryStore) filter(match func(User) bool) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := []User{}
	for _, u := range m.docs {
		if match(u) {
			out = append(out, u)
		}
	}
	return out, nil
}

// update applies set to at most limit matching records (all when limit < 0)
// and returns how many actually changed.
func (m *MemoryStore) update(limit int, match func(User) bool, set func(*User) bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	var matched, modified int64
	for i := range m.docs {
		if limit >= 0 && matched == int64(limit) {
			break
		}
		if !match(m.docs[i]) {
			continue
		}
		matched++
		if set(&m.docs[i]) {
			modified++
		}
	}
	return modified, nil
}

func (m *MemoryStore) delete(limit int, match func(User) bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	var deleted int64
	kept := m.docs[:0]
	for _, u := range m.docs {
		if match(u) && (limit < 0 || deleted < int64(limit)) {
			deleted++
			continue
		}
		kept = append(kept, u)
	}
	m.docs = kept
	return deleted, nil
}
