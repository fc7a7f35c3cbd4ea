package feed

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestHub_FansOutAndDropsForSlowSubscribers(t *testing.T) {
	req := require.New(t)
	h := NewHub(1, logs.GetLoggerFromLevel(slog.LevelDebug))
	a := h.Subscribe()
	b := h.Subscribe()
	req.Equal(2, h.Subscribers())

	req.NoError(h.Publish(context.Background(), Entry{Server: "one"}))
	req.NoError(h.Publish(context.Background(), Entry{Server: "two"}))

	req.Equal("one", (<-a).Server)
	req.Equal("one", (<-b).Server)
	select {
	case e := <-a:
		req.Failf("unexpected entry", "%v", e)
	default:
	}

	h.Unsubscribe(a)
	h.Unsubscribe(a)
	_, open := <-a
	req.False(open)
	req.Equal(1, h.Subscribers())
}

func TestMulti_PublishesToAllAndJoinsErrors(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	first := NewMockPublisher(ctrl)
	second := NewMockPublisher(ctrl)
	boom := errors.New("boom")
	e := Entry{Server: "survival"}

	first.EXPECT().Publish(gomock.Any(), e).Return(boom).Times(1)
	second.EXPECT().Publish(gomock.Any(), e).Return(nil).Times(1)

	err := Multi{first, second}.Publish(context.Background(), e)
	req.ErrorIs(err, boom)
}
