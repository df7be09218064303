package database

import (
	"github.com/trezcool/darasa/core/course"
)

type courseRepository struct {
	db *DB
}

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) load() ([]course.Course, error) {
	var cs []course.Course
	err := repo.db.getCollection(keyCourses, &cs)
	return cs, err
}

func (repo *courseRepository) loadQuizzes() ([]course.Quiz, error) {
	var qs []course.Quiz
	err := repo.db.getCollection(keyQuizzes, &qs)
	return qs, err
}

func (repo *courseRepository) loadProgress() ([]course.Progress, error) {
	var ps []course.Progress
	err := repo.db.getCollection(keyProgress, &ps)
	return ps, err
}

func (repo *courseRepository) CreateCourse(c course.Course) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	cs, err := repo.load()
	if err != nil {
		return course.Course{}, err
	}
	cs = append(cs, c)
	if err = repo.db.setCollection(keyCourses, cs); err != nil {
		return course.Course{}, err
	}
	return c, nil
}

func (repo *courseRepository) GetCourseByID(id string) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	cs, err := repo.load()
	if err != nil {
		return course.Course{}, err
	}
	for _, c := range cs {
		if c.ID == id {
			return c, nil
		}
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryAllCourses() ([]course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	return repo.load()
}

func (repo *courseRepository) UpdateCourse(c course.Course) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	cs, err := repo.load()
	if err != nil {
		return course.Course{}, err
	}
	for i := range cs {
		if cs[i].ID == c.ID {
			cs[i] = c
			if err = repo.db.setCollection(keyCourses, cs); err != nil {
				return course.Course{}, err
			}
			return c, nil
		}
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) DeleteCourse(id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	cs, err := repo.load()
	if err != nil {
		return err
	}
	kept := cs[:0]
	for _, c := range cs {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	return repo.db.setCollection(keyCourses, kept)
}

func (repo *courseRepository) UpsertQuiz(q course.Quiz) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	qs, err := repo.loadQuizzes()
	if err != nil {
		return err
	}
	for i := range qs {
		if qs[i].ID == q.ID {
			qs[i] = q
			return repo.db.setCollection(keyQuizzes, qs)
		}
	}
	qs = append(qs, q)
	return repo.db.setCollection(keyQuizzes, qs)
}

func (repo *courseRepository) GetQuizByID(id string) (course.Quiz, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	qs, err := repo.loadQuizzes()
	if err != nil {
		return course.Quiz{}, err
	}
	for _, q := range qs {
		if q.ID == id {
			return q, nil
		}
	}
	return course.Quiz{}, course.ErrQuizNotFound
}

func (repo *courseRepository) GetProgress(courseID, studentID string) (course.Progress, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	ps, err := repo.loadProgress()
	if err != nil {
		return course.Progress{}, err
	}
	for _, p := range ps {
		if p.CourseID == courseID && p.StudentID == studentID {
			return p, nil
		}
	}
	return course.Progress{}, course.ErrNotFound
}

func (repo *courseRepository) QueryProgressByStudent(studentID string) ([]course.Progress, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	ps, err := repo.loadProgress()
	if err != nil {
		return nil, err
	}
	matches := make([]course.Progress, 0, len(ps))
	for _, p := range ps {
		if p.StudentID == studentID {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

func (repo *courseRepository) QueryProgressByCourse(courseID string) ([]course.Progress, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	ps, err := repo.loadProgress()
	if err != nil {
		return nil, err
	}
	matches := make([]course.Progress, 0, len(ps))
	for _, p := range ps {
		if p.CourseID == courseID {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

func (repo *courseRepository) UpsertProgress(p course.Progress) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	ps, err := repo.loadProgress()
	if err != nil {
		return err
	}
	for i := range ps {
		if ps[i].CourseID == p.CourseID && ps[i].StudentID == p.StudentID {
			ps[i] = p
			return repo.db.setCollection(keyProgress, ps)
		}
	}
	ps = append(ps, p)
	return repo.db.setCollection(keyProgress, ps)
}
