package dcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/coocood/freecache"
	redis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	uuid "github.com/satori/go.uuid"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	keyPrefix                 = "whittle:verdict:"
	redisCacheInvalidateTopic = "WhittleVerdictInvalidatePubSub"
	maxInvalidate             = 100
	delimiter                 = "~|~"
)

var (
	nowFunc = time.Now
)

var (
	// ErrInternal should never happen
	ErrInternal = errors.New("internal")
)

// SetNowFunc is a helper function to replace time.Now()
func SetNowFunc(f func() time.Time) { nowFunc = f }

// Digest identifies a candidate by content.
type Digest = string

// DigestOf returns the digest of a candidate content.
func DigestOf(data []byte) Digest {
	return strconv.FormatUint(xxhash.Sum64(data), 16) + "-" + strconv.Itoa(len(data))
}

// ScopedDigestOf returns the digest of a candidate content as judged by the
// test identified by scope. Verdicts of different tests never share a key.
func ScopedDigestOf(scope string, data []byte) Digest {
	return strconv.FormatUint(xxhash.Sum64String(scope), 16) + ":" + DigestOf(data)
}

// Verdict is the outcome of running the interestingness test on a candidate.
type Verdict struct {
	Interesting bool          `msgpack:"i"`
	CheckedAt   int64         `msgpack:"t"`
	Elapsed     time.Duration `msgpack:"e"`
}

// NewVerdict stamps a verdict with the current time.
func NewVerdict(interesting bool, elapsed time.Duration) Verdict {
	return Verdict{
		Interesting: interesting,
		CheckedAt:   nowFunc().UTC().Unix(),
		Elapsed:     elapsed,
	}
}

// Cache remembers interestingness verdicts so a candidate seen before does
// not run the test again.
type Cache interface {
	// Get returns the cached verdict of digest, ok == false on miss.
	Get(ctx context.Context, digest Digest) (v Verdict, ok bool, err error)

	// Set stores the verdict of digest.
	Set(ctx context.Context, digest Digest, v Verdict) error

	// Invalidate drops digest, locally and in the shared store.
	Invalidate(ctx context.Context, digest Digest) error

	// Close closes resources used by cache
	Close()
}

// Client keeps verdicts in an in-process freecache and, optionally, in redis
// so that several reducers working on the same input share them. In-process
// copies of invalidated keys are dropped on every client via redis pubsub.
type Client struct {
	primaryConn    redis.UniversalClient
	promCounter    *prometheus.CounterVec
	inMemCache     *freecache.Cache
	pubsub         *redis.PubSub
	id             string
	ttl            time.Duration
	invalidateKeys map[string]struct{}
	invalidateMu   *sync.Mutex
	invalidateCh   chan struct{}
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
}

// NewCache creates a verdict cache. Either primaryClient or inMemCache may be
// nil, not both. ttl 0 keeps verdicts forever.
func NewCache(
	appName string,
	primaryClient redis.UniversalClient,
	inMemCache *freecache.Cache,
	ttl time.Duration,
) (Cache, error) {
	if primaryClient == nil && inMemCache == nil {
		return nil, errors.New("dcache: no backing store")
	}
	id := uuid.NewV4()
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: fmt.Sprintf("%s_verdict_cache", appName),
		Help: "Verdict cache operations",
	}, []string{"name"})
	_ = prometheus.Register(counter)

	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		primaryConn:    primaryClient,
		promCounter:    counter,
		id:             id.String(),
		ttl:            ttl,
		invalidateKeys: make(map[string]struct{}),
		invalidateMu:   &sync.Mutex{},
		invalidateCh:   make(chan struct{}),
		inMemCache:     inMemCache,
		ctx:            ctx,
		cancel:         cancel,
	}
	if inMemCache != nil && primaryClient != nil {
		c.pubsub = c.primaryConn.Subscribe(ctx, redisCacheInvalidateTopic)
		c.wg.Add(2)
		go c.aggregateSend()
		go c.listenKeyInvalidate()
	}
	return c, nil
}

// NewMemCache - in-process only cache of sizeMB megabytes.
func NewMemCache(appName string, sizeMB int, ttl time.Duration) (Cache, error) {
	return NewCache(appName, nil, freecache.NewCache(sizeMB*1024*1024), ttl)
}

// Close terminates redis pubsub gracefully
func (c *Client) Close() {
	if c.pubsub != nil {
		_ = c.pubsub.Unsubscribe(c.ctx)
		_ = c.pubsub.Close()
	}
	c.cancel()
	c.wg.Wait()
}

func (c *Client) count(name string) {
	if c.promCounter != nil {
		c.promCounter.WithLabelValues(name).Inc()
	}
}

// Get implements Cache interface
func (c *Client) Get(ctx context.Context, digest Digest) (Verdict, bool, error) {
	c.count("TOTAL")
	var v Verdict
	if c.inMemCache != nil {
		if b, err := c.inMemCache.Get([]byte(store(digest))); err == nil {
			c.count("INMEMCACHE HIT")
			err = unmarshal(b, &v)
			return v, err == nil, err
		}
	}
	if c.primaryConn == nil {
		c.count("MISS")
		return v, false, nil
	}
	b, err := c.primaryConn.Get(ctx, store(digest)).Bytes()
	if err == redis.Nil {
		c.count("MISS")
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}
	c.count("REDIS HIT")
	if c.inMemCache != nil {
		ttl := c.ttl
		if remaining, err := c.primaryConn.TTL(ctx, store(digest)).Result(); err == nil && remaining > 0 {
			ttl = remaining
		}
		_ = c.inMemCache.Set([]byte(store(digest)), b, expireSeconds(ttl))
	}
	err = unmarshal(b, &v)
	return v, err == nil, err
}

// Set implements Cache interface
func (c *Client) Set(ctx context.Context, digest Digest, v Verdict) error {
	b, err := marshal(v)
	if err != nil {
		return err
	}
	if c.primaryConn != nil {
		if err := c.primaryConn.Set(ctx, store(digest), b, c.ttl).Err(); err != nil {
			return err
		}
	}
	if c.inMemCache != nil {
		value, err := c.inMemCache.Get([]byte(store(digest)))
		if err == nil && !bytes.Equal(value, b) {
			c.broadcastKeyInvalidate(digest)
		}
		// ignore inmem cache error
		_ = c.inMemCache.Set([]byte(store(digest)), b, expireSeconds(c.ttl))
	}
	return nil
}

// Invalidate implements Cache interface
func (c *Client) Invalidate(ctx context.Context, digest Digest) error {
	if c.primaryConn != nil {
		if err := c.primaryConn.Del(ctx, store(digest)).Err(); err != nil {
			return err
		}
	}
	if c.inMemCache != nil {
		c.inMemCache.Del([]byte(store(digest)))
		c.broadcastKeyInvalidate(digest)
	}
	return nil
}

// broadcastKeyInvalidate pushes key into a list and wait for broadcast
func (c *Client) broadcastKeyInvalidate(digest Digest) {
	if c.pubsub == nil {
		return
	}
	c.invalidateMu.Lock()
	c.invalidateKeys[store(digest)] = struct{}{}
	l := len(c.invalidateKeys)
	c.invalidateMu.Unlock()
	if l == maxInvalidate {
		select {
		case c.invalidateCh <- struct{}{}:
		case <-c.ctx.Done():
		}
	}
}

// aggregateSend waits for 1 seconds or list accumulating more than maxInvalidate
// to send to redis pubsub
func (c *Client) aggregateSend() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	defer c.wg.Done()

	for {
		select {
		case <-ticker.C:
		case <-c.invalidateCh:
		case <-c.ctx.Done():
			return
		}
		c.invalidateMu.Lock()
		if len(c.invalidateKeys) == 0 {
			c.invalidateMu.Unlock()
			continue
		}
		toSend := c.invalidateKeys
		c.invalidateKeys = make(map[string]struct{})
		c.invalidateMu.Unlock()
		keys := make([]string, 0, len(toSend))
		for key := range toSend {
			keys = append(keys, key)
		}
		msg := c.id + delimiter + strings.Join(keys, delimiter)
		c.primaryConn.Publish(c.ctx, redisCacheInvalidateTopic, msg)
	}
}

// listenKeyInvalidate subscribe to invalidate key requests and invalidates inmemcache
func (c *Client) listenKeyInvalidate() {
	ch := c.pubsub.Channel()
	defer c.wg.Done()

	for {
		var msg *redis.Message
		var ok bool
		select {
		case msg, ok = <-ch:
			if !ok {
				return
			}
		case <-c.ctx.Done():
			return
		}
		c.applyInvalidate(msg.Payload)
	}
}

func (c *Client) applyInvalidate(payload string) {
	l := strings.Split(payload, delimiter)
	if len(l) < 2 {
		log.Warn().Msgf("[dcache] received invalid invalidate payload %s", payload)
		return
	}
	if l[0] == c.id {
		// Receive message from self
		return
	}
	for _, key := range l[1:] {
		c.inMemCache.Del([]byte(key))
	}
}

func store(digest Digest) string {
	return keyPrefix + digest
}

func expireSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	s := int(d / time.Second)
	if s == 0 {
		return 1
	}
	return s
}

func marshal(v Verdict) ([]byte, error) {
	return msgpack.Marshal(&v)
}

func unmarshal(b []byte, v *Verdict) error {
	if len(b) == 0 {
		return ErrInternal
	}
	return msgpack.Unmarshal(b, v)
}
