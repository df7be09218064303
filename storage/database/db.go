// Package database persists whole collections as JSON values in a synchronous
// key-value store with a finite quota, the way the original client kept them in
// browser-local storage. Repositories load a collection, mutate it in memory
// and write it back under a single mutex; engines (sqlite, inmem) only provide
// the raw Get/Set.
package database

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

// Collection keys.
const (
	keyUsers         = "lms_users"
	keyCourses       = "lms_courses"
	keyQuizzes       = "lms_quizzes"
	keyProgress      = "lms_student_progress"
	keyNotifications = "lms_notifications"
	keyChatMessages  = "lms_chat_messages"
	keyWebinars      = "lms_live_sessions"
	keyQuizScores    = "lms_live_session_progress"
	keySessions      = "lms_one_to_one_sessions"
)

// QuotaExceededError indicates a write would push the store past its capacity.
// The caller's in-memory state is intact but NOT durable; it must be surfaced
// to the user as a failure of the whole operation.
type QuotaExceededError struct {
	Key   string
	Size  int64
	Quota int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("storage quota exceeded writing %q (%d of %d bytes)", e.Key, e.Size, e.Quota)
}

func IsQuotaExceeded(err error) bool {
	_, ok := errors.Cause(err).(*QuotaExceededError)
	return ok
}

// Store is a synchronous key-value engine holding JSON-encoded collections.
type Store interface {
	// Get returns the raw value and whether the key exists.
	Get(key string) ([]byte, bool, error)
	// Set writes the value; it may fail with *QuotaExceededError.
	Set(key string, value []byte) error
	Close() error
}

// DB wraps a Store with the repo-level mutex. Every repository operation is a
// read-modify-write of a whole collection; the mutex makes each single
// operation atomic. Sequences that span repository calls (conflict check then
// write, the reminder latch) are serialized by the owning service's mutex.
type DB struct {
	store  Store
	logger core.Logger

	mu sync.Mutex
}

func New(store Store, logger core.Logger) *DB {
	return &DB{store: store, logger: logger}
}

func (db *DB) Close() error { return db.store.Close() }

// getCollection decodes the collection at key into v (a pointer to a slice).
// A missing key leaves v empty. A corrupt value is logged and treated as an
// empty collection rather than crashing the app.
func (db *DB) getCollection(key string, v interface{}) error {
	raw, ok, err := db.store.Get(key)
	if err != nil {
		return errors.Wrapf(err, "reading collection %q", key)
	}
	if !ok {
		return nil
	}
	if err = json.Unmarshal(raw, v); err != nil {
		db.logger.Error(fmt.Sprintf("corrupt collection %q, resetting to empty: %v", key, err), err)
		return nil
	}
	return nil
}

func (db *DB) setCollection(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encoding collection %q", key)
	}
	return db.store.Set(key, raw)
}
