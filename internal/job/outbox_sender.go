package job

import (
	"context"
	"log"
	"time"

	"possystem/internal/config"
	"possystem/internal/infrastructure/mq"
	"possystem/internal/model"
	"possystem/internal/repository"
	"possystem/internal/store"
)

// OutboxSender 后台投递发件箱事件
// 账本变更和事件登记在同一次落盘里，这里只负责把 PENDING 的事件
// 送进 Kafka，失败重试，超限标记 FAILED
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	cfg        *config.Config
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewOutboxSender(s *store.Store, cfg *config.Config) *OutboxSender {
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(s),
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		interval:   time.Second,
		batchSize:  100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	log.Println("[OutboxSender] 事件投递任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[OutboxSender] 收到停止信号，任务退出")
			return
		case <-s.stopCh:
			log.Println("[OutboxSender] 任务停止")
			return
		case <-ticker.C:
			s.processPending(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

func (s *OutboxSender) processPending(ctx context.Context) {
	events := s.outboxRepo.Pending(ctx, s.batchSize)
	for _, event := range events {
		s.send(ctx, event)
	}
}

func (s *OutboxSender) send(ctx context.Context, event model.OutboxEvent) {
	err := mq.SendMessage(event.Topic, event.EventKey, event.Payload)

	if err == nil {
		if updateErr := s.outboxRepo.MarkSent(ctx, event.ID); updateErr != nil {
			log.Printf("[OutboxSender] 更新事件状态失败: id=%d, err=%v", event.ID, updateErr)
		} else {
			log.Printf("[OutboxSender] 事件投递成功: id=%d, topic=%s, key=%s", event.ID, event.Topic, event.EventKey)
		}
		return
	}

	log.Printf("[OutboxSender] 事件投递失败: id=%d, err=%v", event.ID, err)

	if event.RetryCount+1 >= s.cfg.Business.MaxRetryCount {
		if markErr := s.outboxRepo.MarkFailed(ctx, event.ID); markErr != nil {
			log.Printf("[OutboxSender] 标记事件失败状态失败: id=%d, err=%v", event.ID, markErr)
		} else {
			log.Printf("[OutboxSender] 事件超过最大重试次数，标记为失败: id=%d", event.ID)
		}
		return
	}

	if retryErr := s.outboxRepo.IncrRetry(ctx, event.ID); retryErr != nil {
		log.Printf("[OutboxSender] 增加重试次数失败: id=%d, err=%v", event.ID, retryErr)
	}
}
