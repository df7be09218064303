package notification

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type (
	Repository interface {
		CreateNotifications(ns ...Notification) error
		QueryNotificationsByRecipient(recipientID string) ([]Notification, error)
		MarkNotificationsRead(recipientID string) error
	}

	// ServiceInterface is the notification dispatcher. Notifications are append-only:
	// they are never deduplicated, merged or deleted; only the read flag ever changes.
	ServiceInterface interface {
		Notify(recipientID, message, typ, link string) error
		NotifyMany(recipientIDs []string, message, typ, link string) error
		ForRecipient(recipientID string) ([]Notification, error)
		MarkAllRead(recipientID string) error
	}

	service struct {
		repo Repository
		now  func() time.Time
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository, clock func() time.Time) ServiceInterface {
	if clock == nil {
		clock = time.Now
	}
	return &service{repo: repo, now: clock}
}

func (svc *service) Notify(recipientID, message, typ, link string) error {
	return svc.NotifyMany([]string{recipientID}, message, typ, link)
}

func (svc *service) NotifyMany(recipientIDs []string, message, typ, link string) error {
	if len(recipientIDs) == 0 {
		return nil
	}
	now := svc.now().UTC()
	ns := make([]Notification, 0, len(recipientIDs))
	for _, rid := range recipientIDs {
		ns = append(ns, Notification{
			ID:          uuid.New().String(),
			RecipientID: rid,
			Message:     message,
			CreatedAt:   now,
			Read:        false,
			Type:        typ,
			Link:        link,
		})
	}
	return errors.Wrap(svc.repo.CreateNotifications(ns...), "creating notifications")
}

// ForRecipient returns the recipient's notifications, newest first.
func (svc *service) ForRecipient(recipientID string) ([]Notification, error) {
	ns, err := svc.repo.QueryNotificationsByRecipient(recipientID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(ns, func(i, j int) bool { return ns[i].CreatedAt.After(ns[j].CreatedAt) })
	return ns, nil
}

func (svc *service) MarkAllRead(recipientID string) error {
	return svc.repo.MarkNotificationsRead(recipientID)
}
