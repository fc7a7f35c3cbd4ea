package feed

import (
	"context"
	"errors"

	"github.com/reedfamily/chatlog/internal/model"
)

//go:generate mockgen -source=feed.go -destination=mock_feed.go -package=feed

// Entry is one newly persisted record on the live feed.
type Entry struct {
	Server  string             `json:"server"`
	Chat    *model.ChatMessage `json:"chat,omitempty"`
	Command *model.CommandLog  `json:"command,omitempty"`
}

// Publisher delivers entries to live watchers. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, e Entry) error
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Entry) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
