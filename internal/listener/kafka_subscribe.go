package listener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"IntentEngine/internal/mq"
	"IntentEngine/internal/service"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// errPoison 消息本身有问题（无法解析或字段缺失），直接提交跳过
var errPoison = errors.New("poison message")

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = 500 * time.Millisecond
)

// MessageReader kafka.Reader 的最小子集，便于测试
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSubscriber 消费 signals 主题，逐条回调 SignalListener。
// 处理失败的消息重试有限次后提交，避免单条坏消息阻塞整个分区
type KafkaSubscriber struct {
	reader      MessageReader
	listener    *SignalListener
	maxAttempts int
	retryDelay  time.Duration
	logger      *logrus.Logger
}

func NewKafkaSubscriber(reader MessageReader, listener *SignalListener, logger *logrus.Logger) *KafkaSubscriber {
	return &KafkaSubscriber{
		reader:      reader,
		listener:    listener,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		logger:      logger,
	}
}

// Run 阻塞消费直到 ctx 取消
func (s *KafkaSubscriber) Run(ctx context.Context) error {
	defer func() {
		if err := s.reader.Close(); err != nil {
			s.logger.WithError(err).Warn("KafkaSubscriber close reader failed")
		}
	}()
	s.logger.Info("KafkaSubscriber started")

	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("FetchMessage: %w", err)
		}

		s.handleMessage(ctx, msg)

		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.WithError(err).WithField("offset", msg.Offset).Error("CommitMessages failed")
		}
	}
}

func (s *KafkaSubscriber) handleMessage(ctx context.Context, msg kafka.Message) {
	log := s.logger.WithFields(logrus.Fields{"partition": msg.Partition, "offset": msg.Offset})

	req, err := mq.ParseMessageJSON[service.TrackRequest](msg)
	if err != nil {
		log.WithError(err).Warn("signal message is not valid json, skipped")
		return
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.listener.OnSignal(ctx, &req)
		if err == nil {
			return
		}
		if errors.Is(err, errPoison) {
			log.WithError(err).Warn("signal message rejected, skipped")
			return
		}
		if attempt < s.maxAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.retryDelay * time.Duration(attempt)):
			}
		}
	}
	log.WithError(err).WithField("attempts", s.maxAttempts).Error("signal handling failed, giving up")
}
