package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"possystem/internal/config"
	"possystem/internal/infrastructure/lock"
	"possystem/internal/model"
	"possystem/internal/repository"
	"possystem/internal/store"
	"possystem/pkg/idgen"

	"github.com/shopspring/decimal"
)

var (
	ErrNoItems         = errors.New("购买清单为空")
	ErrInvalidQuantity = errors.New("购买数量不能为负")
)

// InsufficientCreditsError 余额不足：带上需要/可用金额，调用方直接展示差额
type InsufficientCreditsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("余额不足: 需要 %s, 可用 %s", e.Required, e.Available)
}

func (e *InsufficientCreditsError) Unwrap() error {
	return repository.ErrCreditsNotEnough
}

// Shortfall 差额
func (e *InsufficientCreditsError) Shortfall() decimal.Decimal {
	return e.Required.Sub(e.Available)
}

// PurchaseService 购买事务引擎
//
// 【关键点】购买是整个系统唯一的多字段变更，必须保证：
// 1. 整单处理：任何一个商品名解析不了就整单拒绝，不做部分成交
// 2. 原子性：扣款和历史追加要么都发生要么都不发生，外部看不到中间态
// 3. 并发安全：同一客户的读-算-写序列通过按客户的实体锁串行
type PurchaseService struct {
	store *store.Store
	locks *lock.Provider
	cfg   *config.Config
}

func NewPurchaseService(s *store.Store, locks *lock.Provider, cfg *config.Config) *PurchaseService {
	return &PurchaseService{
		store: s,
		locks: locks,
		cfg:   cfg,
	}
}

type PurchaseRequest struct {
	ClientCode string
	// Items 商品名 -> 数量；数量为 0 的条目忽略，为负整单拒绝
	Items map[string]int
}

type PurchaseResult struct {
	PurchaseNo string                 `json:"purchase_no"`
	TotalCost  decimal.Decimal        `json:"total_cost"`
	Balance    decimal.Decimal        `json:"balance"`
	Records    []model.PurchaseRecord `json:"records"`
}

// Purchase 执行一笔购买
//
// 流程：解析全部商品 → 合计金额 → 校验余额 → 扣款 + 逐商品追加
// 历史记录 + 登记发件箱事件，全部在同一次落盘里完成
func (s *PurchaseService) Purchase(ctx context.Context, req *PurchaseRequest) (*PurchaseResult, error) {
	names := make([]string, 0, len(req.Items))
	for name, qty := range req.Items {
		if qty < 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidQuantity, name)
		}
		if qty == 0 {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, ErrNoItems
	}
	// 历史追加顺序要稳定，按商品名排序
	sort.Strings(names)

	token := idgen.GenerateLockToken()
	l := s.locks.ForClient(model.NormalizeKey(req.ClientCode), token)
	if err := l.Lock(ctx, time.Duration(s.cfg.Business.LockRetryIntervalMs)*time.Millisecond, s.cfg.Business.LockMaxRetries); err != nil {
		return nil, err
	}
	defer l.Unlock(ctx)

	var result *PurchaseResult
	err := s.store.Update(func(d *store.Data) error {
		idx := repository.FirstClientIndexByCode(d, req.ClientCode)
		if idx < 0 {
			return repository.ErrClientNotFound
		}
		client := &d.Clients[idx]

		// 第一步：整单解析，任何一个名字查不到就整单拒绝
		total := decimal.Zero
		type line struct {
			name string
			qty  int
			cost decimal.Decimal
		}
		lines := make([]line, 0, len(names))
		for _, name := range names {
			product := repository.FindProduct(d, name)
			if product == nil {
				return fmt.Errorf("%w: %s", repository.ErrProductNotFound, name)
			}
			cost := product.Price.Mul(decimal.NewFromInt(int64(req.Items[name])))
			lines = append(lines, line{name: product.Name, qty: req.Items[name], cost: cost})
			total = total.Add(cost)
		}

		// 第二步：余额校验，不足则任何状态都不动
		if total.GreaterThan(client.Credits) {
			return &InsufficientCreditsError{Required: total, Available: client.Credits}
		}

		// 第三步：扣款 + 追加历史，同一笔购买共用一个流水号
		now := time.Now()
		purchaseNo := idgen.GeneratePurchaseNo()
		records := make([]model.PurchaseRecord, 0, len(lines))
		for _, ln := range lines {
			records = append(records, model.PurchaseRecord{
				PurchaseNo: purchaseNo,
				Timestamp:  now.Format(model.TimestampLayout),
				Product:    ln.name,
				Quantity:   ln.qty,
				TotalCost:  ln.cost,
			})
		}
		client.Credits = client.Credits.Sub(total)
		client.History = append(client.History, records...)

		payload, _ := json.Marshal(map[string]interface{}{
			"event_type":   model.EventTypePurchase,
			"purchase_no":  purchaseNo,
			"client_code":  client.Code,
			"total_cost":   total,
			"balance":      client.Credits,
			"records":      records,
			"purchased_at": now.Format(time.RFC3339),
		})
		repository.AppendEvent(d, s.cfg.Kafka.Topic.PurchaseResult, purchaseNo, string(payload), now)

		result = &PurchaseResult{
			PurchaseNo: purchaseNo,
			TotalCost:  total,
			Balance:    client.Credits,
			Records:    records,
		}
		return nil
	})
	if err != nil && !errors.Is(err, store.ErrPersistFailed) {
		return nil, err
	}
	if err != nil {
		log.Printf("[PurchaseService] 购买已成交但落盘失败: purchaseNo=%s, client=%s", result.PurchaseNo, req.ClientCode)
		return result, err
	}

	log.Printf("[PurchaseService] 购买成交: purchaseNo=%s, client=%s, total=%s, balance=%s",
		result.PurchaseNo, req.ClientCode, result.TotalCost, result.Balance)
	return result, nil
}
