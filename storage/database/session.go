package database

import (
	"github.com/trezcool/darasa/core/session"
)

type sessionRepository struct {
	db *DB
}

func NewSessionRepository(db *DB) session.Repository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) load() ([]session.Session, error) {
	var ss []session.Session
	err := repo.db.getCollection(keySessions, &ss)
	return ss, err
}

func (repo *sessionRepository) CreateSession(s session.Session) (session.Session, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	ss, err := repo.load()
	if err != nil {
		return session.Session{}, err
	}
	ss = append(ss, s)
	if err = repo.db.setCollection(keySessions, ss); err != nil {
		return session.Session{}, err
	}
	return s, nil
}

func (repo *sessionRepository) GetSessionByID(id string) (session.Session, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	ss, err := repo.load()
	if err != nil {
		return session.Session{}, err
	}
	for _, s := range ss {
		if s.ID == id {
			return s, nil
		}
	}
	return session.Session{}, session.ErrNotFound
}

func (repo *sessionRepository) QueryAllSessions() ([]session.Session, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	return repo.load()
}

func (repo *sessionRepository) UpdateSession(s session.Session) (session.Session, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	ss, err := repo.load()
	if err != nil {
		return session.Session{}, err
	}
	for i := range ss {
		if ss[i].ID == s.ID {
			ss[i] = s
			if err = repo.db.setCollection(keySessions, ss); err != nil {
				return session.Session{}, err
			}
			return s, nil
		}
	}
	return session.Session{}, session.ErrNotFound
}
