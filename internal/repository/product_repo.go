package repository

import (
	"context"
	"errors"

	"possystem/internal/model"
	"possystem/internal/store"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound  = errors.New("商品不存在")
	ErrDuplicateProduct = errors.New("商品名称已存在")
)

type ProductRepository struct {
	store *store.Store
}

func NewProductRepository(s *store.Store) *ProductRepository {
	return &ProductRepository{store: s}
}

// List 返回全部商品，插入顺序
func (r *ProductRepository) List(ctx context.Context) []model.Product {
	var out []model.Product
	r.store.View(func(d *store.Data) {
		out = append(out, d.Products...)
	})
	return out
}

// FindByName 按名称精确查找（区分大小写，沿用既有口径）
func (r *ProductRepository) FindByName(ctx context.Context, name string) (*model.Product, error) {
	var found *model.Product
	r.store.View(func(d *store.Data) {
		if p := FindProduct(d, name); p != nil {
			cp := *p
			found = &cp
		}
	})
	if found == nil {
		return nil, ErrProductNotFound
	}
	return found, nil
}

// Add 新增商品：分配持久化自增 ID，名称重复直接拒绝
// 重名会让按名称的购买解析产生歧义，所以当作校验错误处理
func (r *ProductRepository) Add(ctx context.Context, product *model.Product) error {
	return r.store.Update(func(d *store.Data) error {
		for _, p := range d.Products {
			if p.Name == product.Name {
				return ErrDuplicateProduct
			}
		}
		d.ProductSeq++
		product.ID = d.ProductSeq
		d.Products = append(d.Products, *product)
		return nil
	})
}

// Update 原地改名/改价，ID 不变；找不到时不写任何数据
func (r *ProductRepository) Update(ctx context.Context, id int64, name string, price decimal.Decimal) (*model.Product, error) {
	var updated *model.Product
	err := r.store.Update(func(d *store.Data) error {
		for i := range d.Products {
			if d.Products[i].ID != id {
				continue
			}
			for j := range d.Products {
				if j != i && d.Products[j].Name == name {
					return ErrDuplicateProduct
				}
			}
			d.Products[i].Name = name
			d.Products[i].Price = price
			cp := d.Products[i]
			updated = &cp
			return nil
		}
		return ErrProductNotFound
	})
	if err != nil && !errors.Is(err, store.ErrPersistFailed) {
		return nil, err
	}
	return updated, err
}

// FindProduct 在一次 View/Update 内部按名称精确查找，返回指向快照的指针
func FindProduct(d *store.Data, name string) *model.Product {
	for i := range d.Products {
		if d.Products[i].Name == name {
			return &d.Products[i]
		}
	}
	return nil
}
