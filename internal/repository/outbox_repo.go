package repository

import (
	"context"
	"errors"
	"time"

	"possystem/internal/model"
	"possystem/internal/store"
)

var ErrEventNotFound = errors.New("事件不存在")

type OutboxRepository struct {
	store *store.Store
}

func NewOutboxRepository(s *store.Store) *OutboxRepository {
	return &OutboxRepository{store: s}
}

// AppendEvent 在一次 Update 内部追加待发送事件
// 与业务变更同一次落盘，保证"账变了事件一定在"
func AppendEvent(d *store.Data, topic, key, payload string, now time.Time) {
	d.EventSeq++
	d.Outbox = append(d.Outbox, model.OutboxEvent{
		ID:        d.EventSeq,
		EventKey:  key,
		Topic:     topic,
		Payload:   payload,
		Status:    model.OutboxStatusPending,
		CreatedAt: now,
	})
}

// Pending 取待发送事件，按创建顺序
func (r *OutboxRepository) Pending(ctx context.Context, limit int) []model.OutboxEvent {
	var out []model.OutboxEvent
	r.store.View(func(d *store.Data) {
		for _, e := range d.Outbox {
			if e.Status != model.OutboxStatusPending {
				continue
			}
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	})
	return out
}

// MarkSent 标记事件已投递
func (r *OutboxRepository) MarkSent(ctx context.Context, id int64) error {
	return r.setStatus(id, func(e *model.OutboxEvent) {
		e.Status = model.OutboxStatusSent
	})
}

// IncrRetry 投递失败后累加重试次数
func (r *OutboxRepository) IncrRetry(ctx context.Context, id int64) error {
	return r.setStatus(id, func(e *model.OutboxEvent) {
		e.RetryCount++
	})
}

// MarkFailed 超过最大重试次数，标记为失败并停止投递
func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64) error {
	return r.setStatus(id, func(e *model.OutboxEvent) {
		e.Status = model.OutboxStatusFailed
		e.RetryCount++
	})
}

func (r *OutboxRepository) setStatus(id int64, mutate func(e *model.OutboxEvent)) error {
	return r.store.Update(func(d *store.Data) error {
		for i := range d.Outbox {
			if d.Outbox[i].ID == id {
				mutate(&d.Outbox[i])
				return nil
			}
		}
		return ErrEventNotFound
	})
}
