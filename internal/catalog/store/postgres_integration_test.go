//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"luwei/internal/catalog/models"
	"luwei/internal/catalog/store"
	id "luwei/pkg/domain"
	"luwei/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "order_items", "orders", "products"))
}

func (s *PostgresStoreSuite) TestUpsertFindList() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(s.store.Upsert(ctx, []*models.Product{
		{ID: "wing6", Name: "滷雞翅", Price: decimal.RequireFromString("120.50"), Image: "/w.jpg", IsAvailable: true, CreatedAt: now, UpdatedAt: now},
		{ID: "egg", Name: "滷蛋", Price: decimal.NewFromInt(15), Image: "/e.jpg", IsAvailable: false, CreatedAt: now, UpdatedAt: now},
	}))

	found, err := s.store.FindByIDs(ctx, []id.ProductID{"wing6", "egg", "ghost"})
	s.Require().NoError(err)
	s.Len(found, 2)
	s.True(decimal.RequireFromString("120.5").Equal(found["wing6"].Price))
	s.NotContains(found, id.ProductID("ghost"))

	available, err := s.store.List(ctx, false)
	s.Require().NoError(err)
	s.Len(available, 1)

	later := now.Add(time.Hour)
	s.Require().NoError(s.store.Upsert(ctx, []*models.Product{
		{ID: "egg", Name: "滷蛋", Price: decimal.NewFromInt(18), Image: "/e.jpg", IsAvailable: true, CreatedAt: later, UpdatedAt: later},
	}))
	found, err = s.store.FindByIDs(ctx, []id.ProductID{"egg"})
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(18).Equal(found["egg"].Price))
	s.WithinDuration(now, found["egg"].CreatedAt, time.Millisecond, "created_at survives an edit")
}
