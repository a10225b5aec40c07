package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/railzwaylabs/atelier/internal/client/domain"
	"github.com/railzwaylabs/atelier/internal/client/repository"
	"github.com/railzwaylabs/atelier/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type movableClock struct{ now time.Time }

func (c *movableClock) Now(context.Context) time.Time { return c.now }

func setup(t *testing.T, clk clock.Clock) (*gorm.DB, domain.Service, *snowflake.Node) {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Client{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{Log: zap.NewNop(), GenID: node, Clock: clk, Repo: repository.Provide()})
	return db, svc, node
}

func TestEnsureCreatesOnceByEmail(t *testing.T) {
	db, svc, _ := setup(t, clock.Fixed{At: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)})
	ctx := context.Background()

	first, err := svc.Ensure(ctx, db, domain.Contact{Name: "Lia", Email: "Lia@Example.com"}, nil)
	require.NoError(t, err)
	second, err := svc.Ensure(ctx, db, domain.Contact{Name: "Lia R.", Email: "lia@example.com "}, nil)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "lia@example.com", second.Email)
	assert.Nil(t, second.ConsultantID)

	var count int64
	require.NoError(t, db.Model(&domain.Client{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

// staleEmailLookup misses the next lookup by email, as a caller does when a
// concurrent insert lands right after its check.
type staleEmailLookup struct {
	domain.Repository
	mu   sync.Mutex
	skip int
}

func (r *staleEmailLookup) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Client, error) {
	r.mu.Lock()
	miss := r.skip > 0
	if miss {
		r.skip--
	}
	r.mu.Unlock()
	if miss {
		return nil, nil
	}
	return r.Repository.FindByEmail(ctx, db, email)
}

func TestEnsureLostInsertKeepsTransactionUsable(t *testing.T) {
	clk := clock.Fixed{At: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)}
	db, svc, node := setup(t, clk)
	ctx := context.Background()

	winner, err := svc.Ensure(ctx, db, domain.Contact{Name: "Lia", Email: "lia@example.com"}, nil)
	require.NoError(t, err)

	repo := &staleEmailLookup{Repository: repository.Provide(), skip: 1}
	racer := New(Params{Log: zap.NewNop(), GenID: node, Clock: clk, Repo: repo})
	anna := node.Generate()

	var loser *domain.Client
	err = db.Transaction(func(tx *gorm.DB) error {
		var err error
		loser, err = racer.Ensure(ctx, tx, domain.Contact{Name: "Lia", Email: "lia@example.com"}, &anna)
		if err != nil {
			return err
		}
		_, err = racer.Ensure(ctx, tx, domain.Contact{Name: "Rui", Email: "rui@example.com"}, nil)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, 0, repo.skip)
	assert.Equal(t, winner.ID, loser.ID)
	require.NotNil(t, loser.ConsultantID)
	assert.Equal(t, anna, *loser.ConsultantID)

	var count int64
	require.NoError(t, db.Model(&domain.Client{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestEnsureConsultantLinkIsSticky(t *testing.T) {
	clk := &movableClock{now: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)}
	db, svc, node := setup(t, clk)
	ctx := context.Background()
	anna, maria := node.Generate(), node.Generate()

	c, err := svc.Ensure(ctx, db, domain.Contact{Email: "a@example.com"}, nil)
	require.NoError(t, err)
	assert.Nil(t, c.ConsultantID)

	clk.now = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	c, err = svc.Ensure(ctx, db, domain.Contact{Email: "a@example.com"}, &anna)
	require.NoError(t, err)
	require.NotNil(t, c.ConsultantID)
	assert.Equal(t, anna, *c.ConsultantID)

	clk.now = time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	c, err = svc.Ensure(ctx, db, domain.Contact{Email: "a@example.com"}, &maria)
	require.NoError(t, err)
	assert.Equal(t, anna, *c.ConsultantID)
	assert.True(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC).Equal(*c.FirstAssociatedAt))
}

func TestEnsureRejectsInvalidEmail(t *testing.T) {
	db, svc, _ := setup(t, clock.SystemClock{})
	_, err := svc.Ensure(context.Background(), db, domain.Contact{Email: "not-an-email"}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
}

func TestListFirstAssociatedInRange(t *testing.T) {
	clk := &movableClock{}
	db, svc, node := setup(t, clk)
	ctx := context.Background()
	repo := repository.Provide()
	anna := node.Generate()

	for _, tc := range []struct {
		email string
		at    time.Time
	}{
		{"dec@example.com", time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC)},
		{"jan1@example.com", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"jan31@example.com", time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)},
		{"feb@example.com", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
	} {
		clk.now = tc.at
		_, err := svc.Ensure(ctx, db, domain.Contact{Email: tc.email}, &anna)
		require.NoError(t, err)
	}

	items, err := repo.ListFirstAssociatedInRange(ctx, db, anna,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "jan1@example.com", items[0].Email)
	assert.Equal(t, "jan31@example.com", items[1].Email)
}
