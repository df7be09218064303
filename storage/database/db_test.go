package database_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/session"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/storage/database"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
)

func newSession(start time.Time) session.Session {
	now := time.Now().UTC()
	return session.Session{
		ID:            uuid.New().String(),
		StudentID:     uuid.New().String(),
		InstructorID:  uuid.New().String(),
		StartTime:     start,
		Status:        session.StatusPending,
		RequestedByID: uuid.New().String(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Timestamps must survive the JSON codec exactly: a stored start time compares
// equal to the original after a write/read cycle.
func Test_db_timeRoundTrip(t *testing.T) {
	db := database.New(inmemdb.Open(1<<20), core.NopLogger{})
	repo := database.NewSessionRepository(db)

	start := time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)
	s, err := repo.CreateSession(newSession(start))
	require.NoError(t, err)

	got, err := repo.GetSessionByID(s.ID)
	require.NoError(t, err)
	assert.True(t, got.StartTime.Equal(start), "StartTime = %v; want %v", got.StartTime, start)
	assert.True(t, got.CreatedAt.Equal(s.CreatedAt))

	// conflict math keeps working on the decoded value
	assert.Equal(t, time.Hour, got.StartTime.Sub(start.Add(-time.Hour)))
}

func Test_db_missingCollectionIsEmpty(t *testing.T) {
	db := database.New(inmemdb.Open(1<<20), core.NopLogger{})
	repo := database.NewSessionRepository(db)

	ss, err := repo.QueryAllSessions()
	require.NoError(t, err)
	assert.Empty(t, ss)

	_, err = repo.GetSessionByID(uuid.New().String())
	assert.Equal(t, session.ErrNotFound, err)
}

func Test_db_corruptCollectionIsReset(t *testing.T) {
	store := inmemdb.Open(1 << 20)
	require.NoError(t, store.Set("lms_one_to_one_sessions", []byte("{not json")))

	db := database.New(store, core.NopLogger{})
	repo := database.NewSessionRepository(db)

	// the corrupt value reads as an empty collection instead of failing
	ss, err := repo.QueryAllSessions()
	require.NoError(t, err)
	assert.Empty(t, ss)

	// and writes recover it
	s, err := repo.CreateSession(newSession(time.Now().UTC().Add(time.Hour)))
	require.NoError(t, err)
	got, err := repo.GetSessionByID(s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
}

func Test_db_quotaExceeded(t *testing.T) {
	db := database.New(inmemdb.Open(512), core.NopLogger{})
	repo := database.NewUserRepository(db)

	now := time.Now().UTC()
	big := user.User{
		ID:        uuid.New().String(),
		Name:      strings.Repeat("x", 1024),
		Email:     "big@test.cd",
		Role:      user.RoleStudent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := repo.CreateUser(big)
	require.Error(t, err)
	assert.True(t, database.IsQuotaExceeded(err), "want quota error, got %v", err)

	// the failed write left nothing behind
	users, err := repo.QueryAllUsers()
	require.NoError(t, err)
	assert.Empty(t, users)
}

func Test_db_updateReplacesInPlace(t *testing.T) {
	db := database.New(inmemdb.Open(1<<20), core.NopLogger{})
	repo := database.NewSessionRepository(db)

	a, err := repo.CreateSession(newSession(time.Now().UTC().Add(time.Hour)))
	require.NoError(t, err)
	b, err := repo.CreateSession(newSession(time.Now().UTC().Add(2 * time.Hour)))
	require.NoError(t, err)

	a.Status = session.StatusScheduled
	_, err = repo.UpdateSession(a)
	require.NoError(t, err)

	got, err := repo.GetSessionByID(a.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusScheduled, got.Status)

	// the sibling record is untouched
	got, err = repo.GetSessionByID(b.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusPending, got.Status)

	// updating an unknown id fails
	_, err = repo.UpdateSession(newSession(time.Now().UTC()))
	assert.Equal(t, session.ErrNotFound, err)
}
