package webinar

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/notification"
	"github.com/trezcool/darasa/core/user"
)

type (
	Repository interface {
		CreateWebinar(w Webinar) (Webinar, error)
		GetWebinarByID(id string) (Webinar, error)
		QueryAllWebinars() ([]Webinar, error)
		UpdateWebinar(w Webinar) (Webinar, error)
		DeleteWebinar(id string) error

		GetQuizScore(webinarID, studentID string) (QuizScore, error)
		UpsertQuizScore(qs QuizScore) error
	}

	// ServiceInterface is the live-webinar registry. CRUD is restricted to
	// instructors/admins; registration and feedback are idempotency-guarded.
	ServiceInterface interface {
		Create(actor user.User, nw NewWebinar) (Webinar, error)
		Update(actor user.User, id string, nw NewWebinar) (Webinar, error)
		Delete(actor user.User, id string) error
		GetByID(id string) (Webinar, error)
		QueryAll() ([]Webinar, error)
		Register(id, userID string) (Webinar, error)
		UploadRecording(actor user.User, id, blobRef string) (Webinar, error)
		SubmitFeedback(id, studentID string, nf NewFeedback) (Webinar, error)
		RecordQuizScore(id, studentID string, score int) error
		SendDueReminders(now time.Time) error
	}

	service struct {
		repo     Repository
		notifSvc notification.ServiceInterface
		validate *validator.Validate
		conf     *core.Config
		now      func() time.Time

		// mu serializes the read-modify-write spans (attendee/feedback checks,
		// edits, the reminder latch) that cross multiple repository calls;
		// without it concurrent registrations lose updates.
		mu sync.Mutex
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(
	repo Repository,
	notifSvc notification.ServiceInterface,
	validate *validator.Validate,
	conf *core.Config,
	clock func() time.Time,
) ServiceInterface {
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:     repo,
		notifSvc: notifSvc,
		validate: validate,
		conf:     conf,
		now:      clock,
	}
}

func (svc *service) Create(actor user.User, nw NewWebinar) (Webinar, error) {
	if !actor.IsStaff() {
		return Webinar{}, ErrNotAllowed
	}
	if err := nw.Validate(svc.validate); err != nil {
		return Webinar{}, err
	}

	now := svc.now().UTC()
	w := Webinar{
		ID:           uuid.New().String(),
		Title:        nw.Title,
		Description:  nw.Description,
		InstructorID: nw.InstructorID,
		StartTime:    nw.StartTime.UTC(),
		EndTime:      nw.EndTime.UTC(),
		Price:        nw.Price,
		AttendeeIDs:  []string{},
		QuizID:       nw.QuizID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	w, err := svc.repo.CreateWebinar(w)
	return w, errors.Wrap(err, "creating webinar")
}

// Update edits title/description/times/price/quiz. Attendees, the reminder
// latch, the recording and collected feedback all survive the edit.
func (svc *service) Update(actor user.User, id string, nw NewWebinar) (Webinar, error) {
	if !actor.IsStaff() {
		return Webinar{}, ErrNotAllowed
	}
	if err := nw.Validate(svc.validate); err != nil {
		return Webinar{}, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	w, err := svc.repo.GetWebinarByID(id)
	if err != nil {
		return Webinar{}, err
	}

	w.Title = nw.Title
	w.Description = nw.Description
	w.InstructorID = nw.InstructorID
	w.StartTime = nw.StartTime.UTC()
	w.EndTime = nw.EndTime.UTC()
	w.Price = nw.Price
	w.QuizID = nw.QuizID
	w.UpdatedAt = svc.now().UTC()

	w, err = svc.repo.UpdateWebinar(w)
	return w, errors.Wrap(err, "updating webinar")
}

func (svc *service) Delete(actor user.User, id string) error {
	if !actor.IsStaff() {
		return ErrNotAllowed
	}
	return svc.repo.DeleteWebinar(id)
}

func (svc *service) GetByID(id string) (Webinar, error) {
	return svc.repo.GetWebinarByID(id)
}

func (svc *service) QueryAll() ([]Webinar, error) {
	ws, err := svc.repo.QueryAllWebinars()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(ws, func(i, j int) bool { return ws[i].StartTime.Before(ws[j].StartTime) })
	return ws, nil
}

// Register adds the user to the attendee set; registering twice is reported as
// ErrAlreadyRegistered, never a duplicate entry.
func (svc *service) Register(id, userID string) (Webinar, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	w, err := svc.repo.GetWebinarByID(id)
	if err != nil {
		return Webinar{}, err
	}
	if w.HasAttendee(userID) {
		return w, ErrAlreadyRegistered
	}

	w.AttendeeIDs = append(w.AttendeeIDs, userID)
	w.UpdatedAt = svc.now().UTC()
	if w, err = svc.repo.UpdateWebinar(w); err != nil {
		return Webinar{}, errors.Wrap(err, "registering attendee")
	}

	msg := fmt.Sprintf("You have successfully registered for %q.", w.Title)
	if err = svc.notifSvc.Notify(userID, msg, notification.TypeSession, notification.LinkLive); err != nil {
		return Webinar{}, err
	}
	return w, nil
}

// UploadRecording points the webinar at its recording blob; safe to call again
// (re-uploads overwrite).
func (svc *service) UploadRecording(actor user.User, id, blobRef string) (Webinar, error) {
	if !actor.IsStaff() {
		return Webinar{}, ErrNotAllowed
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	w, err := svc.repo.GetWebinarByID(id)
	if err != nil {
		return Webinar{}, err
	}
	w.RecordingURL = blobRef
	w.UpdatedAt = svc.now().UTC()
	w, err = svc.repo.UpdateWebinar(w)
	return w, errors.Wrap(err, "saving recording ref")
}

// SubmitFeedback appends the student's rating; one entry per student.
func (svc *service) SubmitFeedback(id, studentID string, nf NewFeedback) (Webinar, error) {
	if err := nf.Validate(svc.validate); err != nil {
		return Webinar{}, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	w, err := svc.repo.GetWebinarByID(id)
	if err != nil {
		return Webinar{}, err
	}
	if w.HasFeedbackFrom(studentID) {
		return w, ErrAlreadyRated
	}

	w.Feedback = append(w.Feedback, Feedback{StudentID: studentID, Rating: nf.Rating, Comment: nf.Comment})
	w.UpdatedAt = svc.now().UTC()
	if w, err = svc.repo.UpdateWebinar(w); err != nil {
		return Webinar{}, errors.Wrap(err, "saving feedback")
	}

	msg := fmt.Sprintf("A student left %d-star feedback for your webinar %q.", nf.Rating, w.Title)
	if err = svc.notifSvc.Notify(w.InstructorID, msg, notification.TypeSession, notification.LinkLive); err != nil {
		return Webinar{}, err
	}
	return w, nil
}

// RecordQuizScore upserts the student's score on the webinar quiz and notifies them.
func (svc *service) RecordQuizScore(id, studentID string, score int) error {
	w, err := svc.repo.GetWebinarByID(id)
	if err != nil {
		return err
	}
	if err = svc.repo.UpsertQuizScore(QuizScore{WebinarID: w.ID, StudentID: studentID, Score: score}); err != nil {
		return errors.Wrap(err, "saving quiz score")
	}
	msg := fmt.Sprintf("You scored %d%% on the quiz for %q!", score, w.Title)
	return svc.notifSvc.Notify(studentID, msg, notification.TypeSession, notification.LinkLive)
}

// SendDueReminders notifies every attendee plus the instructor of webinars
// starting within the reminder lead, then latches ReminderSent. Only webinars
// whose latch flipped are written back.
func (svc *service) SendDueReminders(now time.Time) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	all, err := svc.repo.QueryAllWebinars()
	if err != nil {
		return errors.Wrap(err, "loading webinars")
	}
	lead := svc.conf.Reminder.WebinarLead

	for _, w := range all {
		until := w.StartTime.Sub(now)
		if w.ReminderSent || until <= 0 || until > lead {
			continue
		}

		msg := fmt.Sprintf("The webinar %q is starting in %s.", w.Title, formatLead(lead))
		recipients := append(append([]string{}, w.AttendeeIDs...), w.InstructorID)
		if err = svc.notifSvc.NotifyMany(recipients, msg, notification.TypeSession, notification.LinkLive); err != nil {
			return err
		}

		w.ReminderSent = true
		w.UpdatedAt = now
		if _, err = svc.repo.UpdateWebinar(w); err != nil {
			return errors.Wrap(err, "latching webinar reminder")
		}
	}
	return nil
}

func formatLead(lead time.Duration) string {
	if lead%time.Hour == 0 {
		if h := int(lead.Hours()); h == 1 {
			return "1 hour"
		} else {
			return fmt.Sprintf("%d hours", h)
		}
	}
	return fmt.Sprintf("%d minutes", int(lead.Minutes()))
}
