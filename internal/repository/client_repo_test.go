package repository

import (
	"context"
	"path/filepath"
	"testing"

	"possystem/internal/model"
	"possystem/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	return store.Open(filepath.Join(t.TempDir(), "pos.json"))
}

func TestClientAddAssignsIncreasingIDs(t *testing.T) {
	repo := NewClientRepository(testStore(t))
	ctx := context.Background()

	a := &model.Client{Code: "A1", Name: "Ana", Credits: decimal.NewFromInt(10)}
	b := &model.Client{Code: "B2", Name: "Bogdan", Credits: decimal.NewFromInt(20)}
	require.NoError(t, repo.Add(ctx, a))
	require.NoError(t, repo.Add(ctx, b))

	// 默认数据集已有一个客户，新增的 ID 必须严格递增
	require.Equal(t, int64(2), a.ID)
	require.Equal(t, int64(3), b.ID)

	list := repo.List(ctx)
	require.Len(t, list, 3)
	require.Equal(t, "edu", list[0].Name)
	require.Equal(t, "ana", list[1].Name)
	require.Equal(t, "bogdan", list[2].Name)
}

func TestClientAddNormalizesCodeAndName(t *testing.T) {
	repo := NewClientRepository(testStore(t))
	ctx := context.Background()

	c := &model.Client{Code: " AB ", Name: "Maria POPescu", Credits: decimal.Zero}
	require.NoError(t, repo.Add(ctx, c))
	require.Equal(t, "ab", c.Code)
	require.Equal(t, "maria popescu", c.Name)
	require.NotNil(t, c.History)
}

func TestClientAddRejectsDuplicateCode(t *testing.T) {
	s := testStore(t)
	repo := NewClientRepository(s)
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, &model.Client{Code: "ab", Name: "ana", Credits: decimal.Zero}))
	err := repo.Add(ctx, &model.Client{Code: "AB", Name: "alt", Credits: decimal.Zero})
	require.ErrorIs(t, err, ErrDuplicateCode)

	// 拒绝时不能写入任何数据
	require.Len(t, repo.FindByCode(ctx, "ab"), 1)
}

func TestFindByCodeCaseInsensitive(t *testing.T) {
	repo := NewClientRepository(testStore(t))
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, &model.Client{Code: "AB", Name: "Ana", Credits: decimal.Zero}))

	upper := repo.FindByCode(ctx, "AB")
	lower := repo.FindByCode(ctx, "ab")
	require.Len(t, upper, 1)
	require.Len(t, lower, 1)
	require.Equal(t, upper[0].ID, lower[0].ID)
}

func TestFindByNameCaseInsensitive(t *testing.T) {
	repo := NewClientRepository(testStore(t))
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, &model.Client{Code: "c1", Name: "Maria", Credits: decimal.Zero}))
	require.Len(t, repo.FindByName(ctx, "MARIA"), 1)
	require.Empty(t, repo.FindByName(ctx, "necunoscut"))
}

func TestGetReturnsFirstMatch(t *testing.T) {
	repo := NewClientRepository(testStore(t))
	ctx := context.Background()

	c, err := repo.Get(ctx, "10")
	require.NoError(t, err)
	require.Equal(t, "edu", c.Name)

	_, err = repo.Get(ctx, "nope")
	require.ErrorIs(t, err, ErrClientNotFound)
}

func TestAdjustCreditsAllAppliesToEveryMatch(t *testing.T) {
	s := testStore(t)
	repo := NewClientRepository(s)
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, &model.Client{Code: "x1", Name: "unu", Credits: decimal.NewFromInt(50)}))

	err := s.Update(func(d *store.Data) error {
		updated := AdjustCreditsAll(d, "X1", decimal.NewFromInt(-70))
		require.Len(t, updated, 1)
		return nil
	})
	require.NoError(t, err)

	// 该路径允许余额为负，沿用既有口径
	c, err := repo.Get(ctx, "x1")
	require.NoError(t, err)
	require.True(t, c.Credits.Equal(decimal.NewFromInt(-20)))
}
