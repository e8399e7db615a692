package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// 事件类型
const (
	EventTypePurchase     = "PURCHASE"      // 购买成交
	EventTypeCreditChange = "CREDIT_CHANGE" // 余额调整
)

// OutboxEvent 事务性发件箱条目
// 与账本变更写在同一次落盘里，由后台任务异步投递到 Kafka
type OutboxEvent struct {
	ID         int64     `json:"id"`
	EventKey   string    `json:"event_key"`
	Topic      string    `json:"topic"`
	Payload    string    `json:"payload"`
	Status     string    `json:"status"`
	RetryCount int       `json:"retry_count"`
	CreatedAt  time.Time `json:"created_at"`
}
