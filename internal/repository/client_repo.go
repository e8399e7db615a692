package repository

import (
	"context"
	"errors"

	"possystem/internal/model"
	"possystem/internal/store"

	"github.com/shopspring/decimal"
)

var (
	ErrClientNotFound   = errors.New("客户不存在")
	ErrDuplicateCode    = errors.New("客户编码已存在")
	ErrCreditsNotEnough = errors.New("余额不足")
)

type ClientRepository struct {
	store *store.Store
}

func NewClientRepository(s *store.Store) *ClientRepository {
	return &ClientRepository{store: s}
}

// List 返回全部客户，插入顺序
func (r *ClientRepository) List(ctx context.Context) []model.Client {
	var out []model.Client
	r.store.View(func(d *store.Data) {
		out = append(out, d.Clients...)
	})
	return out
}

// FindByCode 按编码查找（不区分大小写），返回全部匹配
// 查不到返回空切片，不是错误
func (r *ClientRepository) FindByCode(ctx context.Context, code string) []model.Client {
	key := model.NormalizeKey(code)
	var out []model.Client
	r.store.View(func(d *store.Data) {
		for _, c := range d.Clients {
			if c.Code == key {
				out = append(out, c)
			}
		}
	})
	return out
}

// FindByName 按姓名查找（不区分大小写），返回全部匹配
func (r *ClientRepository) FindByName(ctx context.Context, name string) []model.Client {
	key := model.NormalizeKey(name)
	var out []model.Client
	r.store.View(func(d *store.Data) {
		for _, c := range d.Clients {
			if c.Name == key {
				out = append(out, c)
			}
		}
	})
	return out
}

// Get 按编码取第一个匹配的客户
func (r *ClientRepository) Get(ctx context.Context, code string) (*model.Client, error) {
	matches := r.FindByCode(ctx, code)
	if len(matches) == 0 {
		return nil, ErrClientNotFound
	}
	return &matches[0], nil
}

// Add 新增客户：分配持久化自增 ID，编码与姓名统一小写入库
// 编码重复直接拒绝，不写入任何数据
func (r *ClientRepository) Add(ctx context.Context, client *model.Client) error {
	code := model.NormalizeKey(client.Code)
	name := model.NormalizeKey(client.Name)

	return r.store.Update(func(d *store.Data) error {
		for _, c := range d.Clients {
			if c.Code == code {
				return ErrDuplicateCode
			}
		}
		d.ClientSeq++
		client.ID = d.ClientSeq
		client.Code = code
		client.Name = name
		if client.History == nil {
			client.History = []model.PurchaseRecord{}
		}
		d.Clients = append(d.Clients, *client)
		return nil
	})
}

// FirstClientIndexByCode 在一次 View/Update 内部按编码找第一个匹配，找不到返回 -1
func FirstClientIndexByCode(d *store.Data, code string) int {
	key := model.NormalizeKey(code)
	for i := range d.Clients {
		if d.Clients[i].Code == key {
			return i
		}
	}
	return -1
}

// AdjustCreditsAll 在一次 Update 内部对每个编码匹配的客户加 delta，返回调整后的副本
func AdjustCreditsAll(d *store.Data, code string, delta decimal.Decimal) []model.Client {
	key := model.NormalizeKey(code)
	var updated []model.Client
	for i := range d.Clients {
		if d.Clients[i].Code == key {
			d.Clients[i].Credits = d.Clients[i].Credits.Add(delta)
			updated = append(updated, d.Clients[i])
		}
	}
	return updated
}
