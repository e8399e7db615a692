package service

import (
	"context"
	"errors"
	"strings"
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
	ErrEmptyProductName = errors.New("商品名称不能为空")
	ErrNegativePrice    = errors.New("商品价格不能为负")
)

// CatalogService 商品目录操作：列表、上架、改名改价
type CatalogService struct {
	productRepo *repository.ProductRepository
	locks       *lock.Provider
	cfg         *config.Config
}

func NewCatalogService(s *store.Store, locks *lock.Provider, cfg *config.Config) *CatalogService {
	return &CatalogService{
		productRepo: repository.NewProductRepository(s),
		locks:       locks,
		cfg:         cfg,
	}
}

func (s *CatalogService) List(ctx context.Context) []model.Product {
	return s.productRepo.List(ctx)
}

// Add 上架商品
func (s *CatalogService) Add(ctx context.Context, name string, price decimal.Decimal) (*model.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyProductName
	}
	if price.IsNegative() {
		return nil, ErrNegativePrice
	}

	l := s.locks.ForCatalog(idgen.GenerateLockToken())
	if err := l.Lock(ctx, s.lockRetryInterval(), s.cfg.Business.LockMaxRetries); err != nil {
		return nil, err
	}
	defer l.Unlock(ctx)

	product := &model.Product{Name: name, Price: price}
	if err := s.productRepo.Add(ctx, product); err != nil {
		return product, err
	}
	return product, nil
}

// Update 改名/改价，ID 不变
// 历史记录存的是成交时刻的名称和金额快照，这里改什么都不会回溯
func (s *CatalogService) Update(ctx context.Context, id int64, name string, price decimal.Decimal) (*model.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyProductName
	}
	if price.IsNegative() {
		return nil, ErrNegativePrice
	}

	l := s.locks.ForCatalog(idgen.GenerateLockToken())
	if err := l.Lock(ctx, s.lockRetryInterval(), s.cfg.Business.LockMaxRetries); err != nil {
		return nil, err
	}
	defer l.Unlock(ctx)

	return s.productRepo.Update(ctx, id, name, price)
}

func (s *CatalogService) lockRetryInterval() time.Duration {
	return time.Duration(s.cfg.Business.LockRetryIntervalMs) * time.Millisecond
}
