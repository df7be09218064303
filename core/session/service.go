package session

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

const timeFmt = "Jan 2, 2006 15:04 MST"

type (
	Repository interface {
		CreateSession(s Session) (Session, error)
		GetSessionByID(id string) (Session, error)
		QueryAllSessions() ([]Session, error)
		UpdateSession(s Session) (Session, error)
	}

	// UserDirectory is the read-only view of users the registry needs.
	UserDirectory interface {
		GetUserByID(id string) (user.User, error)
	}

	// ServiceInterface is the 1-on-1 session registry. It exclusively owns
	// mutation of the session collection and enforces the scheduling invariants:
	// no two scheduled sessions sharing a party within ConflictWindow of each
	// other, legal status transitions only, and at most one feedback per session.
	ServiceInterface interface {
		Request(ns NewSession) (Session, error)
		Accept(id, actorID string) (Session, error)
		Reject(id, actorID string) (Session, error)
		Withdraw(id, actorID string) (Session, error)
		Cancel(id, actorID string) (Session, error)
		LeaveFeedback(id, studentID string, nf NewFeedback) (Session, error)
		GetByID(id string) (Session, error)
		QueryAll() ([]Session, error)
		BucketsFor(userID string) (Buckets, error)
		SendDueReminders(now time.Time) error
	}

	service struct {
		repo     Repository
		users    UserDirectory
		notifSvc notification.ServiceInterface
		validate *validator.Validate
		conf     *core.Config
		now      func() time.Time

		// mu serializes every mutation's full check-then-act span (conflict
		// check to write, status check to transition, reminder-latch sweep).
		// The repository mutex only covers single collection reads/writes.
		mu sync.Mutex
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(
	repo Repository,
	users UserDirectory,
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
		users:    users,
		notifSvc: notifSvc,
		validate: validate,
		conf:     conf,
		now:      clock,
	}
}

// Request creates a pending session after checking the conflict window against
// both parties' scheduled sessions, then notifies the other party.
// Pending requests do not block other pending requests.
func (svc *service) Request(ns NewSession) (Session, error) {
	now := svc.now().UTC()
	if err := ns.Validate(svc.validate, now); err != nil {
		return Session{}, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	if err := svc.checkConflict(ns.StudentID, ns.InstructorID, ns.StartTime, ""); err != nil {
		return Session{}, err
	}

	s := Session{
		ID:            uuid.New().String(),
		StudentID:     ns.StudentID,
		InstructorID:  ns.InstructorID,
		StartTime:     ns.StartTime.UTC(),
		Status:        StatusPending,
		RequestedByID: ns.RequestedByID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s, err := svc.repo.CreateSession(s)
	if err != nil {
		return Session{}, errors.Wrap(err, "creating session")
	}

	requester, err := svc.users.GetUserByID(ns.RequestedByID)
	if err != nil {
		return Session{}, errors.Wrap(err, "looking up requester")
	}
	msg := fmt.Sprintf("New 1-on-1 session request from %s for %s.", requester.Name, s.StartTime.Format(timeFmt))
	if err = svc.notifSvc.Notify(s.OtherParty(ns.RequestedByID), msg, notification.TypeSession, notification.LinkSessions); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Accept schedules a pending session. Only the party who did not request it may
// accept, and the conflict window is re-checked: two compatible pending requests
// must not both become scheduled.
func (svc *service) Accept(id, actorID string) (Session, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	s, err := svc.repo.GetSessionByID(id)
	if err != nil {
		return Session{}, err
	}
	if !s.HasParty(actorID) || actorID == s.RequestedByID {
		return Session{}, ErrNotAllowed
	}
	if s.Status != StatusPending {
		return Session{}, &InvalidStateError{Op: "accept", Status: s.Status}
	}
	if err = svc.checkConflict(s.StudentID, s.InstructorID, s.StartTime, s.ID); err != nil {
		return Session{}, err
	}

	s.Status = StatusScheduled
	s.UpdatedAt = svc.now().UTC()
	if s, err = svc.repo.UpdateSession(s); err != nil {
		return Session{}, errors.Wrap(err, "scheduling session")
	}

	actor, err := svc.users.GetUserByID(actorID)
	if err != nil {
		return Session{}, errors.Wrap(err, "looking up actor")
	}
	msg := fmt.Sprintf("%s has confirmed your session request for %s.", actor.Name, s.StartTime.Format(timeFmt))
	if err = svc.notifSvc.Notify(s.RequestedByID, msg, notification.TypeSession, notification.LinkSessions); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Reject declines a pending session; terminal. Only the non-requesting party may reject.
func (svc *service) Reject(id, actorID string) (Session, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	s, err := svc.repo.GetSessionByID(id)
	if err != nil {
		return Session{}, err
	}
	if !s.HasParty(actorID) || actorID == s.RequestedByID {
		return Session{}, ErrNotAllowed
	}
	if s.Status != StatusPending {
		return Session{}, &InvalidStateError{Op: "reject", Status: s.Status}
	}

	s.Status = StatusRejected
	s.UpdatedAt = svc.now().UTC()
	if s, err = svc.repo.UpdateSession(s); err != nil {
		return Session{}, errors.Wrap(err, "rejecting session")
	}

	actor, err := svc.users.GetUserByID(actorID)
	if err != nil {
		return Session{}, errors.Wrap(err, "looking up actor")
	}
	msg := fmt.Sprintf("%s has rejected your session request for %s.", actor.Name, s.StartTime.Format(timeFmt))
	if err = svc.notifSvc.Notify(s.RequestedByID, msg, notification.TypeSession, notification.LinkSessions); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Withdraw cancels a still-pending request; only the requester may withdraw.
// The other party never acted on it, so nobody is notified.
func (svc *service) Withdraw(id, actorID string) (Session, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	s, err := svc.repo.GetSessionByID(id)
	if err != nil {
		return Session{}, err
	}
	if !s.HasParty(actorID) || actorID != s.RequestedByID {
		return Session{}, ErrNotAllowed
	}
	if s.Status != StatusPending {
		return Session{}, &InvalidStateError{Op: "withdraw", Status: s.Status}
	}

	s.Status = StatusCanceled
	s.UpdatedAt = svc.now().UTC()
	if s, err = svc.repo.UpdateSession(s); err != nil {
		return Session{}, errors.Wrap(err, "withdrawing session")
	}
	return s, nil
}

// Cancel cancels a scheduled session before it starts; either party may cancel,
// and the other party is notified.
func (svc *service) Cancel(id, actorID string) (Session, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	s, err := svc.repo.GetSessionByID(id)
	if err != nil {
		return Session{}, err
	}
	if !s.HasParty(actorID) {
		return Session{}, ErrNotAllowed
	}
	now := svc.now().UTC()
	if s.Status != StatusScheduled || !s.StartTime.After(now) {
		return Session{}, &InvalidStateError{Op: "cancel", Status: s.EffectiveStatus(now)}
	}

	s.Status = StatusCanceled
	s.UpdatedAt = now
	if s, err = svc.repo.UpdateSession(s); err != nil {
		return Session{}, errors.Wrap(err, "canceling session")
	}

	actor, err := svc.users.GetUserByID(actorID)
	if err != nil {
		return Session{}, errors.Wrap(err, "looking up actor")
	}
	msg := fmt.Sprintf("Your session with %s for %s has been canceled.", actor.Name, s.StartTime.Format(timeFmt))
	if err = svc.notifSvc.Notify(s.OtherParty(actorID), msg, notification.TypeSession, notification.LinkSessions); err != nil {
		return Session{}, err
	}
	return s, nil
}

// LeaveFeedback records the student's one-off rating of an effectively
// completed session and notifies the instructor.
func (svc *service) LeaveFeedback(id, studentID string, nf NewFeedback) (Session, error) {
	if err := nf.Validate(svc.validate); err != nil {
		return Session{}, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	s, err := svc.repo.GetSessionByID(id)
	if err != nil {
		return Session{}, err
	}
	if studentID != s.StudentID {
		return Session{}, ErrNotAllowed
	}
	if st := s.EffectiveStatus(svc.now().UTC()); st != StatusCompleted {
		return Session{}, &InvalidStateError{Op: "leave feedback on", Status: st}
	}
	if s.IsRated() {
		return Session{}, ErrAlreadyRated
	}

	s.Rating = nf.Rating
	s.Feedback = nf.Comment
	s.UpdatedAt = svc.now().UTC()
	if s, err = svc.repo.UpdateSession(s); err != nil {
		return Session{}, errors.Wrap(err, "saving feedback")
	}

	student, err := svc.users.GetUserByID(studentID)
	if err != nil {
		return Session{}, errors.Wrap(err, "looking up student")
	}
	msg := fmt.Sprintf("%s left %d-star feedback for your 1-on-1 session.", student.Name, nf.Rating)
	if err = svc.notifSvc.Notify(s.InstructorID, msg, notification.TypeSession, notification.LinkSessions); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (svc *service) GetByID(id string) (Session, error) {
	return svc.repo.GetSessionByID(id)
}

func (svc *service) QueryAll() ([]Session, error) {
	return svc.repo.QueryAllSessions()
}

// BucketsFor splits the user's sessions into pending/upcoming/past for display.
func (svc *service) BucketsFor(userID string) (Buckets, error) {
	all, err := svc.repo.QueryAllSessions()
	if err != nil {
		return Buckets{}, err
	}
	now := svc.now().UTC()

	var b Buckets
	for _, s := range all {
		if !s.HasParty(userID) {
			continue
		}
		switch {
		case s.Status == StatusPending:
			b.Pending = append(b.Pending, s)
		case s.Status == StatusScheduled && s.StartTime.After(now):
			b.Upcoming = append(b.Upcoming, s)
		default:
			b.Past = append(b.Past, s)
		}
	}
	byStartAsc := func(ss []Session) func(i, j int) bool {
		return func(i, j int) bool { return ss[i].StartTime.Before(ss[j].StartTime) }
	}
	sort.SliceStable(b.Pending, byStartAsc(b.Pending))
	sort.SliceStable(b.Upcoming, byStartAsc(b.Upcoming))
	sort.SliceStable(b.Past, func(i, j int) bool { return b.Past[i].StartTime.After(b.Past[j].StartTime) })
	return b, nil
}

// SendDueReminders notifies both parties of every scheduled session starting
// within the reminder lead, then latches ReminderSent. The latch (not the time
// window) guarantees at-most-once delivery across repeated sweeps; only
// sessions whose latch flipped are written back.
func (svc *service) SendDueReminders(now time.Time) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	all, err := svc.repo.QueryAllSessions()
	if err != nil {
		return errors.Wrap(err, "loading sessions")
	}
	lead := svc.conf.Reminder.SessionLead

	for _, s := range all {
		until := s.StartTime.Sub(now)
		if s.Status != StatusScheduled || s.ReminderSent || until <= 0 || until > lead {
			continue
		}

		student, sErr := svc.users.GetUserByID(s.StudentID)
		instructor, iErr := svc.users.GetUserByID(s.InstructorID)
		if sErr == nil && iErr == nil {
			mins := int(lead.Minutes())
			studentMsg := fmt.Sprintf("Your 1-on-1 session with %s is starting in %d minutes.", instructor.Name, mins)
			instructorMsg := fmt.Sprintf("Your 1-on-1 session with %s is starting in %d minutes.", student.Name, mins)
			if err = svc.notifSvc.Notify(student.ID, studentMsg, notification.TypeSession, notification.LinkSessions); err != nil {
				return err
			}
			if err = svc.notifSvc.Notify(instructor.ID, instructorMsg, notification.TypeSession, notification.LinkSessions); err != nil {
				return err
			}
		}

		// latch even if a party has since been deleted: the window has passed its purpose
		s.ReminderSent = true
		s.UpdatedAt = now
		if _, err = svc.repo.UpdateSession(s); err != nil {
			return errors.Wrap(err, "latching session reminder")
		}
	}
	return nil
}

// checkConflict fails if either party already has a scheduled session strictly
// within ConflictWindow of start. Only scheduled sessions block; exclID skips
// the session being transitioned itself.
func (svc *service) checkConflict(studentID, instructorID string, start time.Time, exclID string) error {
	all, err := svc.repo.QueryAllSessions()
	if err != nil {
		return errors.Wrap(err, "loading sessions")
	}
	for _, s := range all {
		if s.ID == exclID || s.Status != StatusScheduled {
			continue
		}
		if s.StudentID != studentID && s.InstructorID != instructorID {
			continue
		}
		delta := s.StartTime.Sub(start)
		if delta < 0 {
			delta = -delta
		}
		if delta < ConflictWindow {
			return &ConflictError{With: s}
		}
	}
	return nil
}
