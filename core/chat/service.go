package chat

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

var ErrEmptyMessage = errors.New("message text cannot be empty")

type (
	Repository interface {
		CreateMessage(m Message) (Message, error)
		QueryAllMessages() ([]Message, error)
	}

	ServiceInterface interface {
		Post(usr user.User, text string) (Message, error)
		List() ([]Message, error)
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

func (svc *service) Post(usr user.User, text string) (Message, error) {
	text = core.CleanString(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}
	m := Message{
		ID:        uuid.New().String(),
		UserID:    usr.ID,
		UserName:  usr.Name,
		Timestamp: svc.now().UTC(),
		Text:      text,
	}
	m, err := svc.repo.CreateMessage(m)
	return m, errors.Wrap(err, "posting message")
}

func (svc *service) List() ([]Message, error) {
	ms, err := svc.repo.QueryAllMessages()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].Timestamp.Before(ms[j].Timestamp) })
	return ms, nil
}
