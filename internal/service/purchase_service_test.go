package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"possystem/internal/config"
	"possystem/internal/infrastructure/lock"
	"possystem/internal/model"
	"possystem/internal/repository"
	"possystem/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Business: config.BusinessConfig{
			CreditAdjustLimit:   100,
			LockRetryIntervalMs: 1,
			LockMaxRetries:      3,
			MaxRetryCount:       3,
		},
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				PurchaseResult: "pos.purchase.result",
				CreditChange:   "pos.credit.change",
			},
		},
	}
}

func testDeps(t *testing.T) (*store.Store, *lock.Provider, *config.Config) {
	t.Helper()
	s := store.Open(filepath.Join(t.TempDir(), "pos.json"))
	return s, lock.NewProvider(nil), testConfig()
}

func pendingEvents(s *store.Store) []model.OutboxEvent {
	var out []model.OutboxEvent
	s.View(func(d *store.Data) {
		out = append(out, d.Outbox...)
	})
	return out
}

func TestPurchaseDebitsAndAppendsHistory(t *testing.T) {
	s, locks, cfg := testDeps(t)
	svc := NewPurchaseService(s, locks, cfg)
	ctx := context.Background()

	// 默认客户 edu：编码 10，余额 100
	result, err := svc.Purchase(ctx, &PurchaseRequest{
		ClientCode: "10",
		Items:      map[string]int{"Espresso": 2, "Latte": 1},
	})
	require.NoError(t, err)
	require.True(t, result.TotalCost.Equal(decimal.NewFromInt(26)))
	require.True(t, result.Balance.Equal(decimal.NewFromInt(74)))

	// 每个商品一条记录，按商品名排序，同一笔购买共用流水号
	require.Len(t, result.Records, 2)
	require.Equal(t, "Espresso", result.Records[0].Product)
	require.Equal(t, 2, result.Records[0].Quantity)
	require.True(t, result.Records[0].TotalCost.Equal(decimal.NewFromInt(16)))
	require.Equal(t, "Latte", result.Records[1].Product)
	require.True(t, result.Records[1].TotalCost.Equal(decimal.NewFromInt(10)))
	require.Equal(t, result.Records[0].PurchaseNo, result.Records[1].PurchaseNo)

	_, err = time.Parse(model.TimestampLayout, result.Records[0].Timestamp)
	require.NoError(t, err)

	// 历史已入账，事件已登记
	clientRepo := repository.NewClientRepository(s)
	c, err := clientRepo.Get(ctx, "10")
	require.NoError(t, err)
	require.True(t, c.Credits.Equal(decimal.NewFromInt(74)))
	require.Len(t, c.History, 2)

	events := pendingEvents(s)
	require.Len(t, events, 1)
	require.Equal(t, cfg.Kafka.Topic.PurchaseResult, events[0].Topic)
	require.Equal(t, model.OutboxStatusPending, events[0].Status)
}

func TestPurchaseInsufficientCreditsRejectsWithoutMutation(t *testing.T) {
	s, locks, cfg := testDeps(t)
	svc := NewPurchaseService(s, locks, cfg)
	clientRepo := repository.NewClientRepository(s)
	ctx := context.Background()

	require.NoError(t, clientRepo.Add(ctx, &model.Client{
		Code: "p5", Name: "sarac", Credits: decimal.NewFromInt(5),
	}))

	_, err := svc.Purchase(ctx, &PurchaseRequest{
		ClientCode: "p5",
		Items:      map[string]int{"Mocha": 1},
	})

	var insufficient *InsufficientCreditsError
	require.ErrorAs(t, err, &insufficient)
	require.ErrorIs(t, err, repository.ErrCreditsNotEnough)
	require.True(t, insufficient.Required.Equal(decimal.NewFromInt(14)))
	require.True(t, insufficient.Available.Equal(decimal.NewFromInt(5)))
	require.True(t, insufficient.Shortfall().Equal(decimal.NewFromInt(9)))

	// 拒绝是幂等的：余额、历史、发件箱都原样
	c, err := clientRepo.Get(ctx, "p5")
	require.NoError(t, err)
	require.True(t, c.Credits.Equal(decimal.NewFromInt(5)))
	require.Empty(t, c.History)
	require.Empty(t, pendingEvents(s))
}

func TestPurchaseUnknownProductRejectsWholeOrder(t *testing.T) {
	s, locks, cfg := testDeps(t)
	svc := NewPurchaseService(s, locks, cfg)
	ctx := context.Background()

	_, err := svc.Purchase(ctx, &PurchaseRequest{
		ClientCode: "10",
		Items:      map[string]int{"Espresso": 1, "Necunoscut": 1},
	})
	require.ErrorIs(t, err, repository.ErrProductNotFound)

	// 不做部分成交
	c, err := repository.NewClientRepository(s).Get(ctx, "10")
	require.NoError(t, err)
	require.True(t, c.Credits.Equal(decimal.NewFromInt(100)))
	require.Empty(t, c.History)
}

func TestPurchaseIgnoresZeroQuantities(t *testing.T) {
	s, locks, cfg := testDeps(t)
	svc := NewPurchaseService(s, locks, cfg)

	result, err := svc.Purchase(context.Background(), &PurchaseRequest{
		ClientCode: "10",
		Items:      map[string]int{"Espresso": 1, "Latte": 0},
	})
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	require.Equal(t, "Espresso", result.Records[0].Product)
	require.True(t, result.TotalCost.Equal(decimal.NewFromInt(8)))
}

func TestPurchaseValidatesItems(t *testing.T) {
	s, locks, cfg := testDeps(t)
	svc := NewPurchaseService(s, locks, cfg)
	ctx := context.Background()

	_, err := svc.Purchase(ctx, &PurchaseRequest{ClientCode: "10", Items: map[string]int{"Espresso": -1}})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Purchase(ctx, &PurchaseRequest{ClientCode: "10", Items: map[string]int{}})
	require.ErrorIs(t, err, ErrNoItems)

	_, err = svc.Purchase(ctx, &PurchaseRequest{ClientCode: "10", Items: map[string]int{"Latte": 0}})
	require.ErrorIs(t, err, ErrNoItems)
}

func TestPurchaseUnknownClient(t *testing.T) {
	s, locks, cfg := testDeps(t)
	svc := NewPurchaseService(s, locks, cfg)

	_, err := svc.Purchase(context.Background(), &PurchaseRequest{
		ClientCode: "nimeni",
		Items:      map[string]int{"Espresso": 1},
	})
	require.ErrorIs(t, err, repository.ErrClientNotFound)
}

func TestPurchaseBusyWhenClientLockHeld(t *testing.T) {
	s, locks, cfg := testDeps(t)
	svc := NewPurchaseService(s, locks, cfg)
	ctx := context.Background()

	// 别的调用方占着同一个客户的锁
	held := locks.ForClient("10", "alt-token")
	ok, err := held.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	defer held.Unlock(ctx)

	_, err = svc.Purchase(ctx, &PurchaseRequest{
		ClientCode: "10",
		Items:      map[string]int{"Espresso": 1},
	})
	require.ErrorIs(t, err, lock.ErrLockFailed)
}
