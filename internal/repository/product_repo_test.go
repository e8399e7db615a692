package repository

import (
	"context"
	"testing"

	"possystem/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestProductAddAssignsIDAndKeepsOrder(t *testing.T) {
	repo := NewProductRepository(testStore(t))
	ctx := context.Background()

	p := &model.Product{Name: "Cappuccino", Price: decimal.NewFromFloat(9.5)}
	require.NoError(t, repo.Add(ctx, p))
	require.Equal(t, int64(4), p.ID)

	list := repo.List(ctx)
	require.Len(t, list, 4)
	require.Equal(t, "Espresso", list[0].Name)
	require.Equal(t, "Cappuccino", list[3].Name)
}

func TestProductAddRejectsDuplicateName(t *testing.T) {
	repo := NewProductRepository(testStore(t))
	ctx := context.Background()

	err := repo.Add(ctx, &model.Product{Name: "Espresso", Price: decimal.NewFromInt(9)})
	require.ErrorIs(t, err, ErrDuplicateProduct)
	require.Len(t, repo.List(ctx), 3)
}

func TestProductFindByNameIsExactMatch(t *testing.T) {
	repo := NewProductRepository(testStore(t))
	ctx := context.Background()

	p, err := repo.FindByName(ctx, "Espresso")
	require.NoError(t, err)
	require.True(t, p.Price.Equal(decimal.NewFromInt(8)))

	// 名称匹配区分大小写
	_, err = repo.FindByName(ctx, "espresso")
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductUpdateKeepsID(t *testing.T) {
	repo := NewProductRepository(testStore(t))
	ctx := context.Background()

	p, err := repo.Update(ctx, 2, "Mocha Mare", decimal.NewFromInt(16))
	require.NoError(t, err)
	require.Equal(t, int64(2), p.ID)
	require.Equal(t, "Mocha Mare", p.Name)
	require.True(t, p.Price.Equal(decimal.NewFromInt(16)))

	list := repo.List(ctx)
	require.Equal(t, "Mocha Mare", list[1].Name)
}

func TestProductUpdateMissingIDChangesNothing(t *testing.T) {
	repo := NewProductRepository(testStore(t))
	ctx := context.Background()

	_, err := repo.Update(ctx, 99, "Nimic", decimal.NewFromInt(1))
	require.ErrorIs(t, err, ErrProductNotFound)

	list := repo.List(ctx)
	require.Len(t, list, 3)
	require.Equal(t, "Espresso", list[0].Name)
	require.Equal(t, "Mocha", list[1].Name)
}

func TestProductUpdateRejectsNameCollision(t *testing.T) {
	repo := NewProductRepository(testStore(t))
	ctx := context.Background()

	_, err := repo.Update(ctx, 2, "Espresso", decimal.NewFromInt(9))
	require.ErrorIs(t, err, ErrDuplicateProduct)
}
