package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/railzwaylabs/atelier/internal/clock"
	"github.com/railzwaylabs/atelier/internal/consultant/domain"
	"github.com/railzwaylabs/atelier/internal/consultant/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newDirectory(t *testing.T) (domain.Directory, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Consultant{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.Fixed{At: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		Repo:  repository.Provide(),
	}), db
}

func upsert(t *testing.T, dir domain.Directory, code string, status domain.Status, pct string) *domain.Consultant {
	c, err := dir.Upsert(context.Background(), domain.UpsertRequest{
		Code:                 code,
		Name:                 "Consultant " + code,
		Status:               status,
		CommissionPercentage: decimal.RequireFromString(pct),
	})
	require.NoError(t, err)
	return c
}

func TestResolveIsCaseInsensitive(t *testing.T) {
	dir, _ := newDirectory(t)
	created := upsert(t, dir, "anna10", domain.StatusActive, "10")
	assert.Equal(t, "ANNA10", created.Code)

	for _, code := range []string{"ANNA10", "anna10", " Anna10 "} {
		got, err := dir.Resolve(context.Background(), code)
		require.NoError(t, err)
		require.NotNil(t, got, code)
		assert.Equal(t, created.ID, got.ID)
	}
}

func TestResolveMisses(t *testing.T) {
	dir, _ := newDirectory(t)
	upsert(t, dir, "SUSP", domain.StatusSuspended, "10")
	upsert(t, dir, "GONE", domain.StatusInactive, "10")

	for _, code := range []string{"", "   ", "NOBODY", "SUSP", "susp", "GONE", "bad code"} {
		got, err := dir.Resolve(context.Background(), code)
		require.NoError(t, err)
		assert.Nil(t, got, code)
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	dir, _ := newDirectory(t)
	first := upsert(t, dir, "maria", domain.StatusActive, "10")
	second := upsert(t, dir, "MARIA", domain.StatusSuspended, "12.5")

	assert.Equal(t, first.ID, second.ID)
	got, err := dir.FindByID(context.Background(), first.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.StatusSuspended, got.Status)
	assert.True(t, decimal.RequireFromString("12.5").Equal(got.CommissionPercentage))
}

func TestUpsertValidation(t *testing.T) {
	dir, _ := newDirectory(t)
	ctx := context.Background()

	_, err := dir.Upsert(ctx, domain.UpsertRequest{Code: "", Name: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
	_, err = dir.Upsert(ctx, domain.UpsertRequest{Code: "A", Name: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)
	_, err = dir.Upsert(ctx, domain.UpsertRequest{Code: "A", Name: "x", Status: "retired"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	_, err = dir.Upsert(ctx, domain.UpsertRequest{Code: "A", Name: "x", CommissionPercentage: decimal.NewFromInt(101)})
	assert.ErrorIs(t, err, domain.ErrInvalidPercent)
}

func TestListReportable(t *testing.T) {
	dir, _ := newDirectory(t)
	off := false
	upsert(t, dir, "ONE", domain.StatusActive, "10")
	upsert(t, dir, "TWO", domain.StatusSuspended, "10")
	_, err := dir.Upsert(context.Background(), domain.UpsertRequest{
		Code: "THREE", Name: "Three", CommissionPercentage: decimal.NewFromInt(5), ReportsEnabled: &off,
	})
	require.NoError(t, err)

	items, err := dir.ListReportable(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "ONE", items[0].Code)
}
