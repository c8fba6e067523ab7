package mq

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// ScoredEvent 每次快照写入后推送到 intent.scored 的消息体，key 为账号域名
type ScoredEvent struct {
	AccountID   uint64    `json:"account_id"`
	Domain      string    `json:"domain"`
	Date        string    `json:"date"`
	IntentScore int       `json:"intent_score"`
	IntentStage string    `json:"intent_stage"`
	SurgeLevel  string    `json:"surge_level"`
	TopLane     string    `json:"top_lane"`
	Mode        string    `json:"mode"`
	ScoredAt    time.Time `json:"scored_at"`
}

// ScoredPublisher 打分结果推送
type ScoredPublisher struct {
	writer *kafka.Writer
}

func NewScoredPublisher(brokers []string, topic string) *ScoredPublisher {
	return &ScoredPublisher{writer: NewWriter(brokers, topic)}
}

func (p *ScoredPublisher) PublishScored(ctx context.Context, ev ScoredEvent) error {
	return PublishJSON(ctx, p.writer, ev.Domain, ev)
}

func (p *ScoredPublisher) Close() error {
	return p.writer.Close()
}
