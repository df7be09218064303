package database

import (
	"github.com/trezcool/darasa/core/webinar"
)

type webinarRepository struct {
	db *DB
}

func NewWebinarRepository(db *DB) webinar.Repository {
	return &webinarRepository{db: db}
}

func (repo *webinarRepository) load() ([]webinar.Webinar, error) {
	var ws []webinar.Webinar
	err := repo.db.getCollection(keyWebinars, &ws)
	return ws, err
}

func (repo *webinarRepository) loadScores() ([]webinar.QuizScore, error) {
	var qs []webinar.QuizScore
	err := repo.db.getCollection(keyQuizScores, &qs)
	return qs, err
}

func (repo *webinarRepository) CreateWebinar(w webinar.Webinar) (webinar.Webinar, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	ws, err := repo.load()
	if err != nil {
		return webinar.Webinar{}, err
	}
	ws = append(ws, w)
	if err = repo.db.setCollection(keyWebinars, ws); err != nil {
		return webinar.Webinar{}, err
	}
	return w, nil
}

func (repo *webinarRepository) GetWebinarByID(id string) (webinar.Webinar, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	ws, err := repo.load()
	if err != nil {
		return webinar.Webinar{}, err
	}
	for _, w := range ws {
		if w.ID == id {
			return w, nil
		}
	}
	return webinar.Webinar{}, webinar.ErrNotFound
}

func (repo *webinarRepository) QueryAllWebinars() ([]webinar.Webinar, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	return repo.load()
}

func (repo *webinarRepository) UpdateWebinar(w webinar.Webinar) (webinar.Webinar, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	ws, err := repo.load()
	if err != nil {
		return webinar.Webinar{}, err
	}
	for i := range ws {
		if ws[i].ID == w.ID {
			ws[i] = w
			if err = repo.db.setCollection(keyWebinars, ws); err != nil {
				return webinar.Webinar{}, err
			}
			return w, nil
		}
	}
	return webinar.Webinar{}, webinar.ErrNotFound
}

func (repo *webinarRepository) DeleteWebinar(id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	ws, err := repo.load()
	if err != nil {
		return err
	}
	kept := ws[:0]
	for _, w := range ws {
		if w.ID != id {
			kept = append(kept, w)
		}
	}
	return repo.db.setCollection(keyWebinars, kept)
}

func (repo *webinarRepository) GetQuizScore(webinarID, studentID string) (webinar.QuizScore, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	scores, err := repo.loadScores()
	if err != nil {
		return webinar.QuizScore{}, err
	}
	for _, qs := range scores {
		if qs.WebinarID == webinarID && qs.StudentID == studentID {
			return qs, nil
		}
	}
	return webinar.QuizScore{}, webinar.ErrNotFound
}

func (repo *webinarRepository) UpsertQuizScore(qs webinar.QuizScore) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	scores, err := repo.loadScores()
	if err != nil {
		return err
	}
	for i := range scores {
		if scores[i].WebinarID == qs.WebinarID && scores[i].StudentID == qs.StudentID {
			scores[i] = qs
			return repo.db.setCollection(keyQuizScores, scores)
		}
	}
	scores = append(scores, qs)
	return repo.db.setCollection(keyQuizScores, scores)
}
