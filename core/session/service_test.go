package session_test

import (
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/notification"
	"github.com/trezcool/darasa/core/session"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/storage/database"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
)

type fixture struct {
	svc      session.ServiceInterface
	repo     session.Repository
	notifSvc notification.ServiceInterface
	userRepo user.Repository

	student    user.User
	instructor user.User
}

// clockAt returns a fixed clock; mutate *now to advance time mid-test.
func clockAt(now *time.Time) func() time.Time {
	return func() time.Time { return *now }
}

func setup(t *testing.T, clock func() time.Time) *fixture {
	t.Helper()

	conf := &core.Config{
		Storage:  core.StorageConfig{Quota: 1 << 20},
		Reminder: core.ReminderConfig{Interval: time.Minute, SessionLead: 30 * time.Minute, WebinarLead: time.Hour},
	}
	db := database.New(inmemdb.Open(conf.Storage.Quota), core.NopLogger{})

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)

	userRepo := database.NewUserRepository(db)
	notifSvc := notification.NewService(database.NewNotificationRepository(db), clock)
	repo := database.NewSessionRepository(db)
	svc := session.NewService(repo, userRepo, notifSvc, validate, conf, clock)

	f := &fixture{
		svc:        svc,
		repo:       repo,
		notifSvc:   notifSvc,
		userRepo:   userRepo,
		student:    createUser(t, userRepo, "Alice", "alice@test.cd", user.RoleStudent),
		instructor: createUser(t, userRepo, "Charlie", "charlie@test.cd", user.RoleInstructor),
	}
	return f
}

func createUser(t *testing.T, repo user.Repository, name, email, role string) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr, err := repo.CreateUser(user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func (f *fixture) request(t *testing.T, start time.Time, requestedBy string) session.Session {
	t.Helper()
	s, err := f.svc.Request(session.NewSession{
		StudentID:     f.student.ID,
		InstructorID:  f.instructor.ID,
		StartTime:     start,
		RequestedByID: requestedBy,
	})
	if err != nil {
		t.Fatalf("Request() failed: %v", err)
	}
	return s
}

func (f *fixture) notifications(t *testing.T, recipientID string) []notification.Notification {
	t.Helper()
	ns, err := f.notifSvc.ForRecipient(recipientID)
	if err != nil {
		t.Fatalf("ForRecipient() failed: %v", err)
	}
	return ns
}

func Test_sessionService_Request(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	f := setup(t, clockAt(&now))

	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	s := f.request(t, start, f.student.ID)

	assert.Equal(t, session.StatusPending, s.Status)
	assert.Equal(t, start, s.StartTime)
	assert.False(t, s.ReminderSent)

	// the other party was notified
	ns := f.notifications(t, f.instructor.ID)
	require.Len(t, ns, 1)
	assert.Equal(t, "New 1-on-1 session request from Alice for Jun 1, 2024 10:00 UTC.", ns[0].Message)
	assert.Equal(t, notification.TypeSession, ns[0].Type)
	assert.Empty(t, f.notifications(t, f.student.ID))
}

func Test_sessionService_Request_validation(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	f := setup(t, clockAt(&now))

	tests := []struct {
		name string
		ns   session.NewSession
	}{
		{name: "missing fields", ns: session.NewSession{}},
		{
			name: "start in the past",
			ns: session.NewSession{
				StudentID:     f.student.ID,
				InstructorID:  f.instructor.ID,
				StartTime:     now.Add(-time.Minute),
				RequestedByID: f.student.ID,
			},
		},
		{
			name: "requester not a party",
			ns: session.NewSession{
				StudentID:     f.student.ID,
				InstructorID:  f.instructor.ID,
				StartTime:     now.Add(2 * time.Hour),
				RequestedByID: uuid.New().String(),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Request(tt.ns)
			require.Error(t, err)
			switch err.(type) {
			case validator.ValidationErrors, *core.ValidationError:
			default:
				t.Errorf("Request() error = %T; want a validation error", err)
			}
		})
	}
}

func Test_sessionService_conflictWindow(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	f := setup(t, clockAt(&now))

	// scheduled session at 10:00
	base := f.request(t, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), f.student.ID)
	_, err := f.svc.Accept(base.ID, f.instructor.ID)
	require.NoError(t, err)

	tests := []struct {
		name     string
		start    time.Time
		conflict bool
	}{
		{name: "30min after", start: time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC), conflict: true},
		{name: "59min after", start: time.Date(2024, 6, 1, 10, 59, 0, 0, time.UTC), conflict: true},
		{name: "30min before", start: time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC), conflict: true},
		{name: "exactly 60min after", start: time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC), conflict: false},
		{name: "65min after", start: time.Date(2024, 6, 1, 11, 5, 0, 0, time.UTC), conflict: false},
		{name: "exactly 60min before", start: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC), conflict: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Request(session.NewSession{
				StudentID:     f.student.ID,
				InstructorID:  f.instructor.ID,
				StartTime:     tt.start,
				RequestedByID: f.student.ID,
			})
			if tt.conflict {
				var conflictErr *session.ConflictError
				require.Error(t, err)
				require.IsType(t, conflictErr, err)
				assert.Equal(t, base.ID, err.(*session.ConflictError).With.ID)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// Two compatible pending requests may coexist, but only one of them may be
// accepted into the conflict window.
func Test_sessionService_acceptRechecksConflict(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	f := setup(t, clockAt(&now))

	first := f.request(t, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), f.student.ID)
	second := f.request(t, time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC), f.student.ID) // pending: allowed

	_, err := f.svc.Accept(first.ID, f.instructor.ID)
	require.NoError(t, err)

	_, err = f.svc.Accept(second.ID, f.instructor.ID)
	var conflictErr *session.ConflictError
	require.Error(t, err)
	require.IsType(t, conflictErr, err)

	// the second request is still pending and a compatible slot remains acceptable
	s, err := f.svc.GetByID(second.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusPending, s.Status)

	// 65 minutes out clears the window
	third := f.request(t, time.Date(2024, 6, 1, 11, 5, 0, 0, time.UTC), f.student.ID)
	_, err = f.svc.Accept(third.ID, f.instructor.ID)
	assert.NoError(t, err)
}

func Test_sessionService_transitions(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	type op struct {
		name string
		call func(f *fixture, id, actorID string) (session.Session, error)
	}
	accept := op{"accept", func(f *fixture, id, actorID string) (session.Session, error) { return f.svc.Accept(id, actorID) }}
	reject := op{"reject", func(f *fixture, id, actorID string) (session.Session, error) { return f.svc.Reject(id, actorID) }}
	withdraw := op{"withdraw", func(f *fixture, id, actorID string) (session.Session, error) { return f.svc.Withdraw(id, actorID) }}
	cancel := op{"cancel", func(f *fixture, id, actorID string) (session.Session, error) { return f.svc.Cancel(id, actorID) }}

	t.Run("accept by non-requester schedules", func(t *testing.T) {
		f := setup(t, clockAt(&now))
		s := f.request(t, now.Add(2*time.Hour), f.student.ID)
		s, err := f.svc.Accept(s.ID, f.instructor.ID)
		require.NoError(t, err)
		assert.Equal(t, session.StatusScheduled, s.Status)

		ns := f.notifications(t, f.student.ID)
		require.Len(t, ns, 1)
		assert.Equal(t, "Charlie has confirmed your session request for Jun 1, 2024 10:00 UTC.", ns[0].Message)
	})

	t.Run("reject by non-requester is terminal", func(t *testing.T) {
		f := setup(t, clockAt(&now))
		s := f.request(t, now.Add(2*time.Hour), f.student.ID)
		s, err := f.svc.Reject(s.ID, f.instructor.ID)
		require.NoError(t, err)
		assert.Equal(t, session.StatusRejected, s.Status)
		assert.True(t, s.Status.Terminal())

		_, err = f.svc.Accept(s.ID, f.instructor.ID)
		assert.IsType(t, &session.InvalidStateError{}, err)
	})

	t.Run("withdraw by requester cancels silently", func(t *testing.T) {
		f := setup(t, clockAt(&now))
		s := f.request(t, now.Add(2*time.Hour), f.student.ID)
		s, err := f.svc.Withdraw(s.ID, f.student.ID)
		require.NoError(t, err)
		assert.Equal(t, session.StatusCanceled, s.Status)
		// nobody is notified beyond the original request
		assert.Len(t, f.notifications(t, f.instructor.ID), 1)
		assert.Empty(t, f.notifications(t, f.student.ID))
	})

	t.Run("cancel scheduled notifies other party", func(t *testing.T) {
		clock := now
		f := setup(t, clockAt(&clock))
		s := f.request(t, now.Add(2*time.Hour), f.student.ID)
		_, err := f.svc.Accept(s.ID, f.instructor.ID)
		require.NoError(t, err)

		clock = now.Add(time.Minute)
		s, err = f.svc.Cancel(s.ID, f.student.ID)
		require.NoError(t, err)
		assert.Equal(t, session.StatusCanceled, s.Status)

		ns := f.notifications(t, f.instructor.ID)
		require.Len(t, ns, 2) // request + cancellation
		assert.Equal(t, "Your session with Alice for Jun 1, 2024 10:00 UTC has been canceled.", ns[0].Message)
	})

	t.Run("actor gating", func(t *testing.T) {
		f := setup(t, clockAt(&now))
		stranger := createUser(t, f.userRepo, "Mallory", "mallory@test.cd", user.RoleStudent)

		s := f.request(t, now.Add(2*time.Hour), f.student.ID)
		for _, o := range []op{accept, reject, withdraw, cancel} {
			if _, err := o.call(f, s.ID, stranger.ID); err != session.ErrNotAllowed {
				t.Errorf("%s by stranger: error = %v; want ErrNotAllowed", o.name, err)
			}
		}
		// the requester may not accept or reject their own request
		for _, o := range []op{accept, reject} {
			if _, err := o.call(f, s.ID, f.student.ID); err != session.ErrNotAllowed {
				t.Errorf("%s by requester: error = %v; want ErrNotAllowed", o.name, err)
			}
		}
		// the non-requester may not withdraw
		if _, err := withdraw.call(f, s.ID, f.instructor.ID); err != session.ErrNotAllowed {
			t.Errorf("withdraw by non-requester: error = %v; want ErrNotAllowed", err)
		}
	})

	t.Run("illegal transitions from terminal states", func(t *testing.T) {
		f := setup(t, clockAt(&now))
		s := f.request(t, now.Add(2*time.Hour), f.student.ID)
		_, err := f.svc.Reject(s.ID, f.instructor.ID)
		require.NoError(t, err)

		for _, o := range []op{accept, reject, withdraw, cancel} {
			actorID := f.instructor.ID
			if o.name == "withdraw" {
				actorID = f.student.ID
			}
			_, err := o.call(f, s.ID, actorID)
			assert.IsType(t, &session.InvalidStateError{}, err, o.name)
		}
	})

	t.Run("cancel pending is invalid", func(t *testing.T) {
		f := setup(t, clockAt(&now))
		s := f.request(t, now.Add(2*time.Hour), f.student.ID)
		_, err := f.svc.Cancel(s.ID, f.student.ID)
		assert.IsType(t, &session.InvalidStateError{}, err)
	})

	t.Run("cancel after start is invalid", func(t *testing.T) {
		clock := now
		f := setup(t, clockAt(&clock))
		s := f.request(t, now.Add(2*time.Hour), f.student.ID)
		_, err := f.svc.Accept(s.ID, f.instructor.ID)
		require.NoError(t, err)

		clock = now.Add(3 * time.Hour) // past the start
		_, err = f.svc.Cancel(s.ID, f.student.ID)
		assert.IsType(t, &session.InvalidStateError{}, err)
	})
}

func Test_sessionService_effectiveCompletion(t *testing.T) {
	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	clock := start.Add(-2 * time.Hour)
	f := setup(t, clockAt(&clock))

	s := f.request(t, start, f.student.ID)
	_, err := f.svc.Accept(s.ID, f.instructor.ID)
	require.NoError(t, err)

	tests := []struct {
		name string
		now  time.Time
		want session.Status
	}{
		{name: "before start", now: start.Add(-time.Minute), want: session.StatusScheduled},
		{name: "29min after start", now: start.Add(29 * time.Minute), want: session.StatusScheduled},
		{name: "exactly 30min after", now: start.Add(30 * time.Minute), want: session.StatusScheduled},
		{name: "31min after start", now: start.Add(31 * time.Minute), want: session.StatusCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.GetByID(s.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.EffectiveStatus(tt.now))
			// the stored status never changes
			assert.Equal(t, session.StatusScheduled, got.Status)
		})
	}
}

func Test_sessionService_LeaveFeedback(t *testing.T) {
	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	clock := start.Add(-2 * time.Hour)
	f := setup(t, clockAt(&clock))

	s := f.request(t, start, f.student.ID)
	_, err := f.svc.Accept(s.ID, f.instructor.ID)
	require.NoError(t, err)

	// not completed yet
	_, err = f.svc.LeaveFeedback(s.ID, f.student.ID, session.NewFeedback{Rating: 5})
	assert.IsType(t, &session.InvalidStateError{}, err)

	clock = start.Add(time.Hour) // effectively completed

	// instructor may not rate
	_, err = f.svc.LeaveFeedback(s.ID, f.instructor.ID, session.NewFeedback{Rating: 5})
	assert.Equal(t, session.ErrNotAllowed, err)

	// out-of-range rating
	_, err = f.svc.LeaveFeedback(s.ID, f.student.ID, session.NewFeedback{Rating: 6})
	require.Error(t, err)

	s, err = f.svc.LeaveFeedback(s.ID, f.student.ID, session.NewFeedback{Rating: 4, Comment: "  great "})
	require.NoError(t, err)
	assert.Equal(t, 4, s.Rating)
	assert.Equal(t, "great", s.Feedback)
	assert.True(t, s.IsRated())

	ns := f.notifications(t, f.instructor.ID)
	require.NotEmpty(t, ns)
	assert.Equal(t, "Alice left 4-star feedback for your 1-on-1 session.", ns[0].Message)

	// second rating is refused
	_, err = f.svc.LeaveFeedback(s.ID, f.student.ID, session.NewFeedback{Rating: 2})
	assert.Equal(t, session.ErrAlreadyRated, err)
}

func Test_sessionService_BucketsFor(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	clock := now
	f := setup(t, clockAt(&clock))

	pendingLate := f.request(t, now.Add(26*time.Hour), f.student.ID)
	pendingSoon := f.request(t, now.Add(25*time.Hour), f.student.ID)

	upcoming := f.request(t, now.Add(4*time.Hour), f.instructor.ID)
	_, err := f.svc.Accept(upcoming.ID, f.student.ID)
	require.NoError(t, err)

	rejected := f.request(t, now.Add(50*time.Hour), f.student.ID)
	_, err = f.svc.Reject(rejected.ID, f.instructor.ID)
	require.NoError(t, err)

	elapsed := f.request(t, now.Add(time.Hour), f.student.ID)
	_, err = f.svc.Accept(elapsed.ID, f.instructor.ID)
	require.NoError(t, err)

	clock = now.Add(3 * time.Hour) // `elapsed` has started, `upcoming` has not

	b, err := f.svc.BucketsFor(f.student.ID)
	require.NoError(t, err)

	ids := func(ss []session.Session) []string {
		out := make([]string, 0, len(ss))
		for _, s := range ss {
			out = append(out, s.ID)
		}
		return out
	}
	// pending: soonest first
	assert.Equal(t, []string{pendingSoon.ID, pendingLate.ID}, ids(b.Pending))
	assert.Equal(t, []string{upcoming.ID}, ids(b.Upcoming))
	// past: most recent first
	assert.Equal(t, []string{rejected.ID, elapsed.ID}, ids(b.Past))

	// a stranger has no buckets
	b, err = f.svc.BucketsFor(uuid.New().String())
	require.NoError(t, err)
	assert.Empty(t, b.Pending)
	assert.Empty(t, b.Upcoming)
	assert.Empty(t, b.Past)
}

func Test_sessionService_SendDueReminders(t *testing.T) {
	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	clock := start.Add(-2 * time.Hour)
	f := setup(t, clockAt(&clock))

	due := f.request(t, start, f.student.ID)
	_, err := f.svc.Accept(due.ID, f.instructor.ID)
	require.NoError(t, err)

	farOff := f.request(t, start.Add(6*time.Hour), f.student.ID)
	_, err = f.svc.Accept(farOff.ID, f.instructor.ID)
	require.NoError(t, err)

	stillPending := f.request(t, start.Add(12*time.Hour), f.student.ID)

	countReminders := func(recipientID string) int {
		n := 0
		for _, nf := range f.notifications(t, recipientID) {
			if nf.Message == "Your 1-on-1 session with Charlie is starting in 30 minutes." ||
				nf.Message == "Your 1-on-1 session with Alice is starting in 30 minutes." {
				n++
			}
		}
		return n
	}

	// outside the window: nothing fires
	require.NoError(t, f.svc.SendDueReminders(start.Add(-31*time.Minute)))
	assert.Zero(t, countReminders(f.student.ID))

	// inside the window: both parties notified
	require.NoError(t, f.svc.SendDueReminders(start.Add(-25*time.Minute)))
	assert.Equal(t, 1, countReminders(f.student.ID))
	assert.Equal(t, 1, countReminders(f.instructor.ID))

	s, err := f.svc.GetByID(due.ID)
	require.NoError(t, err)
	assert.True(t, s.ReminderSent)

	// repeated sweeps in the window stay silent
	require.NoError(t, f.svc.SendDueReminders(start.Add(-20*time.Minute)))
	require.NoError(t, f.svc.SendDueReminders(start.Add(-time.Minute)))
	assert.Equal(t, 1, countReminders(f.student.ID))

	// the far-off and pending sessions never latched
	s, err = f.svc.GetByID(farOff.ID)
	require.NoError(t, err)
	assert.False(t, s.ReminderSent)
	s, err = f.svc.GetByID(stillPending.ID)
	require.NoError(t, err)
	assert.False(t, s.ReminderSent)
}

// Two compatible pending requests accepted in parallel must not both schedule:
// the conflict recheck and the status write happen in one critical section.
func Test_sessionService_concurrentAccepts(t *testing.T) {
	for i := 0; i < 25; i++ {
		now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
		f := setup(t, clockAt(&now))

		first := f.request(t, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), f.student.ID)
		second := f.request(t, time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC), f.student.ID)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for j, id := range []string{first.ID, second.ID} {
			wg.Add(1)
			go func(j int, id string) {
				defer wg.Done()
				_, errs[j] = f.svc.Accept(id, f.instructor.ID)
			}(j, id)
		}
		wg.Wait()

		scheduled := 0
		for _, id := range []string{first.ID, second.ID} {
			s, err := f.svc.GetByID(id)
			require.NoError(t, err)
			if s.Status == session.StatusScheduled {
				scheduled++
			}
		}
		require.Equal(t, 1, scheduled, "exactly one of two conflicting accepts may schedule")

		var conflicts int
		for _, err := range errs {
			if err == nil {
				continue
			}
			var conflictErr *session.ConflictError
			require.IsType(t, conflictErr, err)
			conflicts++
		}
		require.Equal(t, 1, conflicts)
	}
}

// A cancellation racing the reminder sweep must never be overwritten back to
// scheduled by the sweep's latch write.
func Test_sessionService_concurrentCancelAndSweep(t *testing.T) {
	for i := 0; i < 25; i++ {
		now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
		f := setup(t, clockAt(&now))

		start := time.Date(2024, 6, 1, 8, 20, 0, 0, time.UTC) // inside the reminder window
		s := f.request(t, start, f.student.ID)
		_, err := f.svc.Accept(s.ID, f.instructor.ID)
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		var cancelErr, sweepErr error
		go func() {
			defer wg.Done()
			_, cancelErr = f.svc.Cancel(s.ID, f.student.ID)
		}()
		go func() {
			defer wg.Done()
			sweepErr = f.svc.SendDueReminders(now)
		}()
		wg.Wait()

		require.NoError(t, cancelErr)
		require.NoError(t, sweepErr)

		got, err := f.svc.GetByID(s.ID)
		require.NoError(t, err)
		assert.Equal(t, session.StatusCanceled, got.Status)
	}
}
