//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"donorlink/internal/donor/cache"
	"donorlink/internal/donor/models"
	"donorlink/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestRoundTripAndExpiry() {
	ctx := context.Background()
	c := cache.NewRedis(s.redis.Client, time.Second)

	in := models.NewSearchPage([]models.DonorView{{ID: "d1", Name: "Donor"}}, 1, 1, 20)
	c.Set(ctx, "k", in)

	got, ok := c.Get(ctx, "k")
	s.Require().True(ok)
	s.Equal(in.Users[0].ID, got.Users[0].ID)
	s.Equal(1, got.TotalCount)

	s.Eventually(func() bool {
		_, ok := c.Get(ctx, "k")
		return !ok
	}, 5*time.Second, 100*time.Millisecond)
}

func (s *RedisCacheSuite) TestMissingKey() {
	_, ok := cache.NewRedis(s.redis.Client, time.Minute).Get(context.Background(), "absent")
	s.False(ok)
}
