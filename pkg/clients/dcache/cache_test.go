package dcache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/coocood/freecache"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/suite"
)

type memTestSuite struct {
	suite.Suite
	cache Cache
}

func (suite *memTestSuite) SetupTest() {
	c, err := NewMemCache("test", 1, NeverExpire.ToDuration())
	suite.Require().NoError(err)
	suite.cache = c
}

func (suite *memTestSuite) TearDownTest() {
	suite.cache.Close()
}

func (suite *memTestSuite) TestMissThenHit() {
	ctx := context.Background()
	d := DigestOf([]byte("int main() {}\n"))
	_, ok, err := suite.cache.Get(ctx, d)
	suite.Require().NoError(err)
	suite.False(ok)

	suite.Require().NoError(suite.cache.Set(ctx, d, NewVerdict(true, time.Second)))
	v, ok, err := suite.cache.Get(ctx, d)
	suite.Require().NoError(err)
	suite.True(ok)
	suite.True(v.Interesting)
	suite.Equal(time.Second, v.Elapsed)
}

func (suite *memTestSuite) TestNegativeVerdict() {
	ctx := context.Background()
	d := DigestOf([]byte("x"))
	suite.Require().NoError(suite.cache.Set(ctx, d, NewVerdict(false, 0)))
	v, ok, err := suite.cache.Get(ctx, d)
	suite.Require().NoError(err)
	suite.True(ok)
	suite.False(v.Interesting)
}

func (suite *memTestSuite) TestInvalidate() {
	ctx := context.Background()
	d := DigestOf([]byte("y"))
	suite.Require().NoError(suite.cache.Set(ctx, d, NewVerdict(true, 0)))
	suite.Require().NoError(suite.cache.Invalidate(ctx, d))
	_, ok, err := suite.cache.Get(ctx, d)
	suite.Require().NoError(err)
	suite.False(ok)
}

func (suite *memTestSuite) TestVerdictTimestamp() {
	SetNowFunc(func() time.Time { return time.Unix(1000, 0) })
	defer SetNowFunc(time.Now)
	suite.Equal(int64(1000), NewVerdict(true, 0).CheckedAt)
}

func TestMemTestSuite(t *testing.T) {
	suite.Run(t, new(memTestSuite))
}

func TestDigest(t *testing.T) {
	a := DigestOf([]byte("abc"))
	if a != DigestOf([]byte("abc")) {
		t.Fatal("digest not stable")
	}
	if a == DigestOf([]byte("abd")) {
		t.Fatal("digest collision")
	}
}

func TestNoBackingStore(t *testing.T) {
	if _, err := NewCache("test", nil, nil, 0); err == nil {
		t.Fatal("expected error")
	}
}

func TestExpireSeconds(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{-time.Second, 0},
		{time.Millisecond, 1},
		{90 * time.Second, 90},
		{Session.ToDuration(), 3600},
	}
	for _, c := range cases {
		if got := expireSeconds(c.d); got != c.want {
			t.Errorf("expireSeconds(%s) = %d, want %d", c.d, got, c.want)
		}
	}
}

func TestRetentionDecode(t *testing.T) {
	cases := []struct {
		in   string
		want Retention
		ok   bool
	}{
		{"session", Session, true},
		{" Week ", Week, true},
		{"forever", NeverExpire, true},
		{"36h", Retention(36 * time.Hour), true},
		{"-1h", 0, false},
		{"fortnight", 0, false},
	}
	for _, c := range cases {
		var r Retention
		err := r.Decode(c.in)
		if (err == nil) != c.ok {
			t.Errorf("Decode(%q) error = %v", c.in, err)
			continue
		}
		if c.ok && r != c.want {
			t.Errorf("Decode(%q) = %s, want %s", c.in, r.ToDuration(), c.want.ToDuration())
		}
	}
}

// redisTestSuite needs a redis server, address in WHITTLE_TEST_REDIS.
type redisTestSuite struct {
	suite.Suite
	redisConn   redis.UniversalClient
	inMemCache  *freecache.Cache
	cache       Cache
	inMemCache2 *freecache.Cache
	cache2      Cache
}

func TestRedisTestSuite(t *testing.T) {
	addr := os.Getenv("WHITTLE_TEST_REDIS")
	if addr == "" {
		t.Skip("WHITTLE_TEST_REDIS not set")
	}
	redisClient := redis.NewClient(&redis.Options{Addr: addr, DB: 10})
	s := &redisTestSuite{redisConn: redisClient}
	s.inMemCache = freecache.NewCache(1024 * 1024)
	s.inMemCache2 = freecache.NewCache(1024 * 1024)
	var err error
	if s.cache, err = NewCache("test", redisClient, s.inMemCache, Session.ToDuration()); err != nil {
		t.Fatal(err)
	}
	if s.cache2, err = NewCache("test", redisClient, s.inMemCache2, Session.ToDuration()); err != nil {
		t.Fatal(err)
	}
	suite.Run(t, s)
}

func (suite *redisTestSuite) BeforeTest(_, _ string) {
	suite.inMemCache.Clear()
	suite.inMemCache2.Clear()
	suite.Require().NoError(suite.redisConn.FlushDB(context.Background()).Err())
}

func (suite *redisTestSuite) TearDownSuite() {
	suite.cache.Close()
	suite.cache2.Close()
}

func (suite *redisTestSuite) TestSharedBetweenClients() {
	ctx := context.Background()
	d := DigestOf([]byte("shared"))
	suite.Require().NoError(suite.cache.Set(ctx, d, NewVerdict(true, 0)))

	v, ok, err := suite.cache2.Get(ctx, d)
	suite.Require().NoError(err)
	suite.True(ok)
	suite.True(v.Interesting)

	_, err = suite.inMemCache2.Get([]byte(store(d)))
	suite.NoError(err, "redis hit populates the local cache")
}

func (suite *redisTestSuite) TestInvalidateReachesOtherClients() {
	ctx := context.Background()
	d := DigestOf([]byte("stale"))
	suite.Require().NoError(suite.cache.Set(ctx, d, NewVerdict(true, 0)))
	_, ok, _ := suite.cache2.Get(ctx, d)
	suite.Require().True(ok)

	suite.Require().NoError(suite.cache.Invalidate(ctx, d))
	suite.Eventually(func() bool {
		_, err := suite.inMemCache2.Get([]byte(store(d)))
		return err == freecache.ErrNotFound
	}, 3*time.Second, 50*time.Millisecond)
}
