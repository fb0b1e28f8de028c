package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"meshgate/internal/pkg/metrics"
)

type fakeStore struct {
	mu      sync.Mutex
	calls   []string
	rows    map[string]string
	err     error
	blockOn bool
}

func (f *fakeStore) LookupRoute(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.mu.Unlock()

	if f.blockOn {
		<-ctx.Done()
		return nil, false, ctx.Err()
	}
	if f.err != nil {
		return nil, false, f.err
	}
	row, ok := f.rows[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(row), true, nil
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func staticTable() *StaticTable {
	return NewStaticTable(map[string]RouteConfig{
		"v1/orders": {Type: RouteTypeREST, TargetURL: "https://orders.internal"},
	})
}

func TestResolveStaticHitSkipsStore(t *testing.T) {
	store := &fakeStore{rows: map[string]string{
		"v1/orders": `{"type":"REST","targetUrl":"https://shadow.internal"}`,
	}}
	r := NewResolver(staticTable(), WithStore(store, time.Second))

	cfg, ok := r.Resolve(context.Background(), "v1/orders")

	require.True(t, ok)
	assert.Equal(t, "https://orders.internal", cfg.TargetURL, "static entries cannot be shadowed")
	assert.Zero(t, store.callCount())
}

func TestResolveStoreFallback(t *testing.T) {
	store := &fakeStore{rows: map[string]string{
		"v1/events": `{"type":"EVENT_BUS","channelName":"events","authKeyEnvName":"BUS_KEY","table_name":"t1"}`,
	}}
	m := metrics.New()
	r := NewResolver(staticTable(), WithStore(store, time.Second), WithMetrics(m))

	cfg, ok := r.Resolve(context.Background(), "v1/events")

	require.True(t, ok)
	assert.Equal(t, RouteTypeEventBus, cfg.Type)
	assert.Equal(t, "events", cfg.ChannelName)
	assert.Equal(t, "BUS_KEY", cfg.AuthKeyEnvName)
	assert.Equal(t, "t1", cfg.TableName)
	assert.Equal(t, 1, store.callCount())
	assert.True(t, r.HasStore())
}

func TestResolveMissQueriesStoreOnce(t *testing.T) {
	testCases := []struct {
		name  string
		store *fakeStore
	}{
		{"no row", &fakeStore{}},
		{"store error", &fakeStore{err: errors.New("connection refused")}},
		{"bad payload", &fakeStore{rows: map[string]string{"v9/nope": `{not json`}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			core, logs := observer.New(zap.WarnLevel)
			r := NewResolver(staticTable(), WithStore(tc.store, time.Second), WithLogger(zap.New(core)))

			cfg, ok := r.Resolve(context.Background(), "v9/nope")

			assert.False(t, ok)
			assert.Nil(t, cfg)
			assert.Equal(t, 1, tc.store.callCount())
			if tc.name != "no row" {
				assert.Equal(t, 1, logs.Len(), "store failures are logged")
			}
		})
	}
}

func TestResolveStoreTimeoutIsMiss(t *testing.T) {
	store := &fakeStore{blockOn: true}
	r := NewResolver(staticTable(), WithStore(store, 20*time.Millisecond))

	start := time.Now()
	_, ok := r.Resolve(context.Background(), "v2/slow")

	assert.False(t, ok)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestResolveWithoutStore(t *testing.T) {
	r := NewResolver(staticTable())

	_, ok := r.Resolve(context.Background(), "v1/unknown")
	assert.False(t, ok)
	assert.False(t, r.HasStore())
	assert.Equal(t, 1, r.Static().Len())
}
