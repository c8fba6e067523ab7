package listener

import (
	"context"
	"errors"

	"IntentEngine/internal/service"

	"github.com/sirupsen/logrus"
)

// Tracker 实时信号入库
type Tracker interface {
	Track(ctx context.Context, req service.TrackRequest) (*service.TrackResult, error)
}

// SignalListener 把消息队列里的原始行为事件交给 SignalIngestService
type SignalListener struct {
	tracker Tracker
	logger  *logrus.Logger
}

func NewSignalListener(tracker Tracker, logger *logrus.Logger) *SignalListener {
	return &SignalListener{tracker: tracker, logger: logger}
}

// OnSignal 处理单条事件。参数不合法的事件返回 errPoison，不再重试
func (l *SignalListener) OnSignal(ctx context.Context, req *service.TrackRequest) error {
	if req == nil {
		return nil
	}
	res, err := l.tracker.Track(ctx, *req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			return errors.Join(errPoison, err)
		}
		return err
	}
	if res.Outcome == service.TrackStored {
		l.logger.WithFields(logrus.Fields{
			"account_id": res.AccountID,
			"signal_id":  res.SignalID,
			"rescored":   res.Rescored,
		}).Debug("signal stored")
	}
	return nil
}
