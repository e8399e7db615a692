package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
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
	ErrEmptyCode      = errors.New("客户编码不能为空")
	ErrEmptyName      = errors.New("客户姓名不能为空")
	ErrNegativeCredit = errors.New("初始余额不能为负")
)

const (
	FindByCode = "code"
	FindByName = "name"
)

// ClientService 客户账本操作：查找、开户、调额、历史
type ClientService struct {
	store      *store.Store
	clientRepo *repository.ClientRepository
	locks      *lock.Provider
	cfg        *config.Config
}

func NewClientService(s *store.Store, locks *lock.Provider, cfg *config.Config) *ClientService {
	return &ClientService{
		store:      s,
		clientRepo: repository.NewClientRepository(s),
		locks:      locks,
		cfg:        cfg,
	}
}

func (s *ClientService) List(ctx context.Context) []model.Client {
	return s.clientRepo.List(ctx)
}

// Find 按编码或姓名查找，都不区分大小写
// 空结果就是"没找到"，不算错误
func (s *ClientService) Find(ctx context.Context, query, by string) ([]model.Client, error) {
	switch by {
	case FindByCode:
		return s.clientRepo.FindByCode(ctx, query), nil
	case FindByName:
		return s.clientRepo.FindByName(ctx, query), nil
	default:
		return nil, fmt.Errorf("不支持的查找方式: %s", by)
	}
}

type AddClientRequest struct {
	Code    string
	Name    string
	Email   string
	Phone   string
	Credits decimal.Decimal
}

// Add 开户：校验通过前不写任何数据
func (s *ClientService) Add(ctx context.Context, req *AddClientRequest) (*model.Client, error) {
	if model.NormalizeKey(req.Code) == "" {
		return nil, ErrEmptyCode
	}
	if model.NormalizeKey(req.Name) == "" {
		return nil, ErrEmptyName
	}
	if req.Credits.IsNegative() {
		return nil, ErrNegativeCredit
	}

	client := &model.Client{
		Code:    req.Code,
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Credits: req.Credits,
	}
	if err := s.clientRepo.Add(ctx, client); err != nil {
		return client, err
	}
	return client, nil
}

// AdjustCredits 调整余额：对每个编码匹配的客户加 delta，并在同一次
// 落盘里登记 CREDIT_CHANGE 事件
//
// 沿用既有口径：这条路径允许把余额调成负数（±限额属于表单策略，
// 由 handler 执行），购买扣款才做余额校验
func (s *ClientService) AdjustCredits(ctx context.Context, code string, delta decimal.Decimal) ([]model.Client, error) {
	l := s.locks.ForClient(model.NormalizeKey(code), idgen.GenerateLockToken())
	if err := l.Lock(ctx, s.lockRetryInterval(), s.cfg.Business.LockMaxRetries); err != nil {
		return nil, err
	}
	defer l.Unlock(ctx)

	var updated []model.Client
	err := s.store.Update(func(d *store.Data) error {
		updated = repository.AdjustCreditsAll(d, code, delta)
		if len(updated) == 0 {
			return repository.ErrClientNotFound
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"event_type":  model.EventTypeCreditChange,
			"client_code": model.NormalizeKey(code),
			"delta":       delta,
			"adjusted_at": time.Now().Format(time.RFC3339),
		})
		repository.AppendEvent(d, s.cfg.Kafka.Topic.CreditChange, idgen.GenerateEventKey(), string(payload), time.Now())
		return nil
	})
	if err != nil && !errors.Is(err, store.ErrPersistFailed) {
		return nil, err
	}
	if err != nil {
		log.Printf("[ClientService] 调额已生效但落盘失败: code=%s, delta=%s", code, delta)
	}
	return updated, err
}

type ClientHistory struct {
	Client     model.Client           `json:"client"`
	Records    []model.PurchaseRecord `json:"records"`
	TotalSpent decimal.Decimal        `json:"total_spent"`
}

// History 查询消费历史，附带累计消费额
func (s *ClientService) History(ctx context.Context, code string) (*ClientHistory, error) {
	client, err := s.clientRepo.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, rec := range client.History {
		total = total.Add(rec.TotalCost)
	}
	return &ClientHistory{
		Client:     *client,
		Records:    client.History,
		TotalSpent: total,
	}, nil
}

func (s *ClientService) lockRetryInterval() time.Duration {
	return time.Duration(s.cfg.Business.LockRetryIntervalMs) * time.Millisecond
}
