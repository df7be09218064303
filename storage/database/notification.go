package database

import (
	"github.com/trezcool/darasa/core/notification"
)

type notificationRepository struct {
	db *DB
}

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) load() ([]notification.Notification, error) {
	var ns []notification.Notification
	err := repo.db.getCollection(keyNotifications, &ns)
	return ns, err
}

func (repo *notificationRepository) CreateNotifications(ns ...notification.Notification) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	all, err := repo.load()
	if err != nil {
		return err
	}
	all = append(all, ns...)
	return repo.db.setCollection(keyNotifications, all)
}

func (repo *notificationRepository) QueryNotificationsByRecipient(recipientID string) ([]notification.Notification, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	all, err := repo.load()
	if err != nil {
		return nil, err
	}
	matches := make([]notification.Notification, 0, len(all))
	for _, n := range all {
		if n.RecipientID == recipientID {
			matches = append(matches, n)
		}
	}
	return matches, nil
}

func (repo *notificationRepository) MarkNotificationsRead(recipientID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	all, err := repo.load()
	if err != nil {
		return err
	}
	var changed bool
	for i := range all {
		if all[i].RecipientID == recipientID && !all[i].Read {
			all[i].Read = true
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return repo.db.setCollection(keyNotifications, all)
}
