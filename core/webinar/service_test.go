package webinar_test

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
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/core/webinar"
	"github.com/trezcool/darasa/storage/database"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
)

type fixture struct {
	svc      webinar.ServiceInterface
	repo     webinar.Repository
	notifSvc notification.ServiceInterface

	instructor user.User
	student    user.User
	admin      user.User
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

	notifSvc := notification.NewService(database.NewNotificationRepository(db), clock)
	repo := database.NewWebinarRepository(db)
	svc := webinar.NewService(repo, notifSvc, validate, conf, clock)

	return &fixture{
		svc:        svc,
		repo:       repo,
		notifSvc:   notifSvc,
		instructor: user.User{ID: uuid.New().String(), Name: "Charlie", Role: user.RoleInstructor},
		student:    user.User{ID: uuid.New().String(), Name: "Alice", Role: user.RoleStudent},
		admin:      user.User{ID: uuid.New().String(), Name: "Diana", Role: user.RoleAdmin},
	}
}

func (f *fixture) create(t *testing.T, title string, start, end time.Time) webinar.Webinar {
	t.Helper()
	w, err := f.svc.Create(f.instructor, webinar.NewWebinar{
		Title:        title,
		InstructorID: f.instructor.ID,
		StartTime:    start,
		EndTime:      end,
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	return w
}

func (f *fixture) notifications(t *testing.T, recipientID string) []notification.Notification {
	t.Helper()
	ns, err := f.notifSvc.ForRecipient(recipientID)
	if err != nil {
		t.Fatalf("ForRecipient() failed: %v", err)
	}
	return ns
}

func Test_webinarService_Create(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	f := setup(t, func() time.Time { return now })

	start := now.Add(24 * time.Hour)
	w := f.create(t, "Go Concurrency", start, start.Add(time.Hour))
	assert.NotEmpty(t, w.ID)
	assert.Empty(t, w.AttendeeIDs)
	assert.False(t, w.ReminderSent)

	// students may not create
	_, err := f.svc.Create(f.student, webinar.NewWebinar{
		Title:        "Nope",
		InstructorID: f.student.ID,
		StartTime:    start,
		EndTime:      start.Add(time.Hour),
	})
	assert.Equal(t, webinar.ErrNotAllowed, err)

	// admins may
	_, err = f.svc.Create(f.admin, webinar.NewWebinar{
		Title:        "Admin hour",
		InstructorID: f.instructor.ID,
		StartTime:    start,
		EndTime:      start.Add(time.Hour),
	})
	assert.NoError(t, err)

	// end must be after start
	_, err = f.svc.Create(f.instructor, webinar.NewWebinar{
		Title:        "Backwards",
		InstructorID: f.instructor.ID,
		StartTime:    start,
		EndTime:      start,
	})
	require.Error(t, err)
	vErr, ok := err.(*core.ValidationError)
	require.True(t, ok, "want *core.ValidationError, got %T", err)
	require.Len(t, vErr.Fields, 1)
	assert.Equal(t, "end_time", vErr.Fields[0].Field)
}

func Test_webinarService_Register(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	f := setup(t, func() time.Time { return now })

	start := now.Add(24 * time.Hour)
	w := f.create(t, "Go Concurrency", start, start.Add(time.Hour))

	w, err := f.svc.Register(w.ID, f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{f.student.ID}, w.AttendeeIDs)

	ns := f.notifications(t, f.student.ID)
	require.Len(t, ns, 1)
	assert.Equal(t, `You have successfully registered for "Go Concurrency".`, ns[0].Message)

	// registering again is refused and does not duplicate
	_, err = f.svc.Register(w.ID, f.student.ID)
	assert.Equal(t, webinar.ErrAlreadyRegistered, err)

	w, err = f.svc.GetByID(w.ID)
	require.NoError(t, err)
	assert.Len(t, w.AttendeeIDs, 1)
	assert.Len(t, f.notifications(t, f.student.ID), 1)

	_, err = f.svc.Register(uuid.New().String(), f.student.ID)
	assert.Equal(t, webinar.ErrNotFound, err)
}

func Test_webinarService_Update_preservesRuntimeState(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	f := setup(t, func() time.Time { return now })

	start := now.Add(24 * time.Hour)
	w := f.create(t, "Go Concurrency", start, start.Add(time.Hour))

	_, err := f.svc.Register(w.ID, f.student.ID)
	require.NoError(t, err)
	_, err = f.svc.UploadRecording(f.instructor, w.ID, "blob://rec-1")
	require.NoError(t, err)
	require.NoError(t, f.svc.SendDueReminders(start.Add(-30*time.Minute)))

	w, err = f.svc.Update(f.instructor, w.ID, webinar.NewWebinar{
		Title:        "Go Concurrency, 2nd ed.",
		InstructorID: f.instructor.ID,
		StartTime:    start.Add(time.Hour),
		EndTime:      start.Add(2 * time.Hour),
		Price:        25,
	})
	require.NoError(t, err)

	assert.Equal(t, "Go Concurrency, 2nd ed.", w.Title)
	assert.Equal(t, []string{f.student.ID}, w.AttendeeIDs)
	assert.Equal(t, "blob://rec-1", w.RecordingURL)
	assert.True(t, w.ReminderSent)

	// students may not update
	_, err = f.svc.Update(f.student, w.ID, webinar.NewWebinar{
		Title:        "Hax",
		InstructorID: f.instructor.ID,
		StartTime:    start,
		EndTime:      start.Add(time.Hour),
	})
	assert.Equal(t, webinar.ErrNotAllowed, err)
}

func Test_webinarService_SubmitFeedback(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	f := setup(t, func() time.Time { return now })

	start := now.Add(24 * time.Hour)
	w := f.create(t, "Go Concurrency", start, start.Add(time.Hour))

	w, err := f.svc.SubmitFeedback(w.ID, f.student.ID, webinar.NewFeedback{Rating: 5, Comment: "superb"})
	require.NoError(t, err)
	require.Len(t, w.Feedback, 1)
	assert.Equal(t, f.student.ID, w.Feedback[0].StudentID)

	ns := f.notifications(t, f.instructor.ID)
	require.Len(t, ns, 1)
	assert.Equal(t, `A student left 5-star feedback for your webinar "Go Concurrency".`, ns[0].Message)

	// one entry per student
	_, err = f.svc.SubmitFeedback(w.ID, f.student.ID, webinar.NewFeedback{Rating: 1})
	assert.Equal(t, webinar.ErrAlreadyRated, err)

	w, err = f.svc.GetByID(w.ID)
	require.NoError(t, err)
	assert.Len(t, w.Feedback, 1)
}

func Test_webinarService_RecordQuizScore(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	f := setup(t, func() time.Time { return now })

	start := now.Add(24 * time.Hour)
	w := f.create(t, "Go Concurrency", start, start.Add(time.Hour))

	require.NoError(t, f.svc.RecordQuizScore(w.ID, f.student.ID, 80))
	// retakes overwrite
	require.NoError(t, f.svc.RecordQuizScore(w.ID, f.student.ID, 90))

	qs, err := f.repo.GetQuizScore(w.ID, f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, 90, qs.Score)

	ns := f.notifications(t, f.student.ID)
	require.Len(t, ns, 2)
	assert.Equal(t, `You scored 80% on the quiz for "Go Concurrency"!`, ns[0].Message)
	assert.Equal(t, `You scored 90% on the quiz for "Go Concurrency"!`, ns[1].Message)
}

func Test_webinarService_SendDueReminders(t *testing.T) {
	now := time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC)
	f := setup(t, func() time.Time { return now })

	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	w := f.create(t, "Go Concurrency", start, start.Add(time.Hour))
	far := f.create(t, "Later", start.Add(8*time.Hour), start.Add(9*time.Hour))

	_, err := f.svc.Register(w.ID, f.student.ID)
	require.NoError(t, err)

	countReminders := func(recipientID string) int {
		n := 0
		for _, nf := range f.notifications(t, recipientID) {
			if nf.Message == `The webinar "Go Concurrency" is starting in 1 hour.` {
				n++
			}
		}
		return n
	}

	// outside the window
	require.NoError(t, f.svc.SendDueReminders(start.Add(-2*time.Hour)))
	assert.Zero(t, countReminders(f.student.ID))

	// inside: attendees and the instructor are notified
	require.NoError(t, f.svc.SendDueReminders(start.Add(-55*time.Minute)))
	assert.Equal(t, 1, countReminders(f.student.ID))
	assert.Equal(t, 1, countReminders(f.instructor.ID))

	// the latch keeps repeats silent
	require.NoError(t, f.svc.SendDueReminders(start.Add(-50*time.Minute)))
	assert.Equal(t, 1, countReminders(f.student.ID))

	got, err := f.svc.GetByID(w.ID)
	require.NoError(t, err)
	assert.True(t, got.ReminderSent)

	got, err = f.svc.GetByID(far.ID)
	require.NoError(t, err)
	assert.False(t, got.ReminderSent)
}

// Registrations arriving in parallel must all land in the attendee set; the
// read-modify-write span is serialized by the service.
func Test_webinarService_concurrentRegister(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	f := setup(t, func() time.Time { return now })

	start := now.Add(24 * time.Hour)
	w := f.create(t, "Go Concurrency", start, start.Add(time.Hour))

	const attendees = 50
	userIDs := make([]string, attendees)
	for i := range userIDs {
		userIDs[i] = uuid.New().String()
	}

	var wg sync.WaitGroup
	errs := make([]error, attendees)
	for i, id := range userIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.svc.Register(w.ID, id)
		}(i, id)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "registration %d", i)
	}
	got, err := f.svc.GetByID(w.ID)
	require.NoError(t, err)
	assert.Len(t, got.AttendeeIDs, attendees)
}
