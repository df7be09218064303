package database

import (
	"github.com/trezcool/darasa/core/chat"
)

type chatRepository struct {
	db *DB
}

func NewChatRepository(db *DB) chat.Repository {
	return &chatRepository{db: db}
}

func (repo *chatRepository) load() ([]chat.Message, error) {
	var ms []chat.Message
	err := repo.db.getCollection(keyChatMessages, &ms)
	return ms, err
}

func (repo *chatRepository) CreateMessage(m chat.Message) (chat.Message, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	ms, err := repo.load()
	if err != nil {
		return chat.Message{}, err
	}
	ms = append(ms, m)
	if err = repo.db.setCollection(keyChatMessages, ms); err != nil {
		return chat.Message{}, err
	}
	return m, nil
}

func (repo *chatRepository) QueryAllMessages() ([]chat.Message, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	return repo.load()
}
