package course

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/notification"
	"github.com/trezcool/darasa/core/user"
)

var (
	ErrNotFound     = errors.New("course not found")
	ErrQuizNotFound = errors.New("quiz not found")
	ErrAlreadyRated = errors.New("you have already rated this course")
	ErrNotAllowed   = errors.New("operation not allowed for this user")
)

type (
	Repository interface {
		CreateCourse(c Course) (Course, error)
		GetCourseByID(id string) (Course, error)
		QueryAllCourses() ([]Course, error)
		UpdateCourse(c Course) (Course, error)
		DeleteCourse(id string) error

		UpsertQuiz(q Quiz) error
		GetQuizByID(id string) (Quiz, error)

		GetProgress(courseID, studentID string) (Progress, error)
		QueryProgressByStudent(studentID string) ([]Progress, error)
		QueryProgressByCourse(courseID string) ([]Progress, error)
		UpsertProgress(p Progress) error
	}

	// ContactUpdater persists enrollment contact details on the user record.
	ContactUpdater interface {
		UpdateContact(id, phoneNumber, address string) (user.User, error)
	}

	ServiceInterface interface {
		Save(actor user.User, nc NewCourse) (Course, error)
		Delete(actor user.User, id string) error
		GetByID(id string) (Course, error)
		QueryAll() ([]Course, error)
		GetQuiz(id string) (Quiz, error)
		Enroll(studentID, courseID string, ne NewEnrollment) (Progress, error)
		CompleteModule(studentID, courseID, moduleID string) (Progress, error)
		CompleteQuiz(studentID, courseID string, score int) (Progress, error)
		Rate(studentID, courseID string, rating int) (Course, error)
		NotifyCompletion(studentID, courseID string) error
		IssueCertificate(actor user.User, courseID, studentID string) error
		ProgressFor(studentID string) ([]Progress, error)
	}

	service struct {
		repo     Repository
		users    ContactUpdater
		notifSvc notification.ServiceInterface
		blobs    core.BlobStore
		validate *validator.Validate
		now      func() time.Time

		// mu serializes the read-modify-write spans (enrollment idempotence,
		// progress flags, the rating average) that cross repository calls.
		mu sync.Mutex
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(
	repo Repository,
	users ContactUpdater,
	notifSvc notification.ServiceInterface,
	blobs core.BlobStore,
	validate *validator.Validate,
	clock func() time.Time,
) ServiceInterface {
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:     repo,
		users:    users,
		notifSvc: notifSvc,
		blobs:    blobs,
		validate: validate,
		now:      clock,
	}
}

// Save creates or updates a course together with its quiz.
func (svc *service) Save(actor user.User, nc NewCourse) (Course, error) {
	if !actor.IsStaff() {
		return Course{}, ErrNotAllowed
	}
	if err := nc.Validate(svc.validate); err != nil {
		return Course{}, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	quizID := nc.Quiz.ID
	if quizID == "" {
		quizID = uuid.New().String()
	}
	if err := svc.repo.UpsertQuiz(Quiz{ID: quizID, Title: nc.Quiz.Title, Questions: nc.Quiz.Questions}); err != nil {
		return Course{}, errors.Wrap(err, "saving quiz")
	}

	now := svc.now().UTC()
	if nc.ID != "" { // edit in place
		c, err := svc.repo.GetCourseByID(nc.ID)
		if err != nil {
			return Course{}, err
		}
		c.Title = nc.Title
		c.Description = nc.Description
		c.InstructorID = nc.InstructorID
		c.ThumbnailURL = nc.ThumbnailURL
		c.QuizID = quizID
		c.Price = nc.Price
		c.Category = nc.Category
		c.Difficulty = nc.Difficulty
		c.Modules = mergeModules(c.Modules, nc.Modules)
		c.UpdatedAt = now
		c, err = svc.repo.UpdateCourse(c)
		return c, errors.Wrap(err, "updating course")
	}

	c := Course{
		ID:           uuid.New().String(),
		Title:        nc.Title,
		Description:  nc.Description,
		InstructorID: nc.InstructorID,
		ThumbnailURL: nc.ThumbnailURL,
		Modules:      mergeModules(nil, nc.Modules),
		QuizID:       quizID,
		Price:        nc.Price,
		Category:     nc.Category,
		Difficulty:   nc.Difficulty,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	c, err := svc.repo.CreateCourse(c)
	return c, errors.Wrap(err, "creating course")
}

// Delete removes the course and any video blobs its modules reference.
func (svc *service) Delete(actor user.User, id string) error {
	if !actor.IsStaff() {
		return ErrNotAllowed
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	c, err := svc.repo.GetCourseByID(id)
	if err != nil {
		return err
	}
	for _, m := range c.Modules {
		if m.Type == ModuleTypeVideo && strings.HasPrefix(m.Content, core.BlobRefScheme) {
			blobID := strings.TrimPrefix(m.Content, core.BlobRefScheme)
			if err := svc.blobs.DeleteBlob(blobID); err != nil {
				// a dangling blob is preferable to a half-deleted course
				continue
			}
		}
	}
	return svc.repo.DeleteCourse(id)
}

func (svc *service) GetByID(id string) (Course, error) {
	return svc.repo.GetCourseByID(id)
}

func (svc *service) QueryAll() ([]Course, error) {
	return svc.repo.QueryAllCourses()
}

func (svc *service) GetQuiz(id string) (Quiz, error) {
	return svc.repo.GetQuizByID(id)
}

// Enroll creates the student's progress record (idempotent) and persists their
// contact details on the user record.
func (svc *service) Enroll(studentID, courseID string, ne NewEnrollment) (Progress, error) {
	if err := ne.Validate(svc.validate); err != nil {
		return Progress{}, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	c, err := svc.repo.GetCourseByID(courseID)
	if err != nil {
		return Progress{}, err
	}
	if _, err = svc.users.UpdateContact(studentID, ne.PhoneNumber, ne.Address); err != nil {
		return Progress{}, errors.Wrap(err, "saving contact details")
	}

	if p, err := svc.repo.GetProgress(courseID, studentID); err == nil {
		return p, nil // already enrolled
	}

	p := Progress{
		CourseID:         courseID,
		StudentID:        studentID,
		CompletedModules: []string{},
		AssignmentStatus: AssignmentPending,
	}
	if err = svc.repo.UpsertProgress(p); err != nil {
		return Progress{}, errors.Wrap(err, "creating progress")
	}

	msg := fmt.Sprintf("You have successfully enrolled in %q!", c.Title)
	if err = svc.notifSvc.Notify(studentID, msg, notification.TypeCourse, notification.LinkCourses); err != nil {
		return Progress{}, err
	}
	return p, nil
}

func (svc *service) CompleteModule(studentID, courseID, moduleID string) (Progress, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	p, err := svc.repo.GetProgress(courseID, studentID)
	if err != nil {
		p = Progress{
			CourseID:         courseID,
			StudentID:        studentID,
			CompletedModules: []string{},
			AssignmentStatus: AssignmentPending,
		}
	}
	for _, id := range p.CompletedModules {
		if id == moduleID {
			return p, nil
		}
	}
	p.CompletedModules = append(p.CompletedModules, moduleID)
	err = svc.repo.UpsertProgress(p)
	return p, errors.Wrap(err, "saving progress")
}

func (svc *service) CompleteQuiz(studentID, courseID string, score int) (Progress, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	p, err := svc.repo.GetProgress(courseID, studentID)
	if err != nil {
		p = Progress{
			CourseID:         courseID,
			StudentID:        studentID,
			CompletedModules: []string{},
			AssignmentStatus: AssignmentPending,
		}
	}
	p.QuizScore = &score
	if err = svc.repo.UpsertProgress(p); err != nil {
		return Progress{}, errors.Wrap(err, "saving progress")
	}

	msg := fmt.Sprintf("You scored %d%% on the quiz!", score)
	if err = svc.notifSvc.Notify(studentID, msg, notification.TypeCourse, notification.LinkCourses); err != nil {
		return Progress{}, err
	}
	return p, nil
}

// Rate folds the student's rating into the course's running average; once per student.
func (svc *service) Rate(studentID, courseID string, rating int) (Course, error) {
	if rating < 1 || rating > 5 {
		return Course{}, core.NewValidationError(nil,
			core.FieldError{Field: "rating", Error: "rating must be between 1 and 5"})
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	p, err := svc.repo.GetProgress(courseID, studentID)
	if err != nil {
		return Course{}, err
	}
	if p.Rating != 0 {
		return Course{}, ErrAlreadyRated
	}
	c, err := svc.repo.GetCourseByID(courseID)
	if err != nil {
		return Course{}, err
	}

	p.Rating = rating
	if err = svc.repo.UpsertProgress(p); err != nil {
		return Course{}, errors.Wrap(err, "saving progress")
	}

	c.Rating = (c.Rating*float64(c.TotalRatings) + float64(rating)) / float64(c.TotalRatings+1)
	c.TotalRatings++
	c.UpdatedAt = svc.now().UTC()
	c, err = svc.repo.UpdateCourse(c)
	return c, errors.Wrap(err, "saving course rating")
}

// NotifyCompletion tells the instructor the student finished the course; once.
func (svc *service) NotifyCompletion(studentID, courseID string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	c, err := svc.repo.GetCourseByID(courseID)
	if err != nil {
		return err
	}
	p, err := svc.repo.GetProgress(courseID, studentID)
	if err != nil {
		return err
	}
	if p.CompletionNotified {
		return nil
	}
	p.CompletionNotified = true
	if err = svc.repo.UpsertProgress(p); err != nil {
		return errors.Wrap(err, "saving progress")
	}

	msg := fmt.Sprintf("A student has completed the course %q.", c.Title)
	return svc.notifSvc.Notify(c.InstructorID, msg, notification.TypeCourse, notification.LinkCourses)
}

func (svc *service) IssueCertificate(actor user.User, courseID, studentID string) error {
	if !actor.IsStaff() {
		return ErrNotAllowed
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	c, err := svc.repo.GetCourseByID(courseID)
	if err != nil {
		return err
	}
	p, err := svc.repo.GetProgress(courseID, studentID)
	if err != nil {
		return err
	}
	p.CertificateIssued = true
	if err = svc.repo.UpsertProgress(p); err != nil {
		return errors.Wrap(err, "saving progress")
	}

	msg := fmt.Sprintf("Congratulations! Your certificate for %q has been issued.", c.Title)
	return svc.notifSvc.Notify(studentID, msg, notification.TypeCertificate, notification.LinkCourses)
}

func (svc *service) ProgressFor(studentID string) ([]Progress, error) {
	return svc.repo.QueryProgressByStudent(studentID)
}

// mergeModules assigns ids to incoming modules, keeping existing ids positionally
// so student completion records survive edits.
func mergeModules(existing []Module, incoming []NewModule) []Module {
	out := make([]Module, 0, len(incoming))
	for i, nm := range incoming {
		id := uuid.New().String()
		if i < len(existing) {
			id = existing[i].ID
		}
		out = append(out, Module{
			ID:              id,
			Title:           nm.Title,
			Type:            nm.Type,
			Content:         nm.Content,
			DurationMinutes: nm.DurationMinutes,
		})
	}
	return out
}
