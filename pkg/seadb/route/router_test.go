package route

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noy/seadb/pkg/seadb/errcode"
)

// mockFetcher 暴露路由表，方便测试中先改路由再 Evict 验证缓存
type mockFetcher struct {
	routeTable *xsync.MapOf[string, Endpoint]
	fetches    atomic.Int32
	err        error
	extra      []Route // 额外返回的未请求条目
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{routeTable: xsync.NewMapOf[string, Endpoint]()}
}

func (m *mockFetcher) FetchRoutes(ctx context.Context, database string, tables []string, timeout time.Duration) ([]Route, error) {
	m.fetches.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	routes := make([]Route, 0, len(tables))
	for _, table := range tables {
		if ep, ok := m.routeTable.Load(table); ok {
			e := ep
			routes = append(routes, Route{Table: table, Endpoint: &e})
		} else {
			routes = append(routes, Route{Table: table})
		}
	}
	return append(routes, m.extra...), nil
}

var testCtx = &RouteContext{Database: "db"}

func TestBasicFlow(t *testing.T) {
	endpoint1 := NewEndpoint("192.168.0.1", 11)
	endpoint2 := NewEndpoint("192.168.0.2", 12)
	endpoint3 := NewEndpoint("192.168.0.3", 13)
	endpoint4 := NewEndpoint("192.168.0.4", 14)
	defaultEndpoint := NewEndpoint("192.168.0.5", 15)

	fetcher := newMockFetcher()
	fetcher.routeTable.Store("table1", endpoint1)
	fetcher.routeTable.Store("table2", endpoint2)

	// 按 路由 -> 改路由表 -> 再路由 的顺序验证缓存是否生效
	router := NewRouter(defaultEndpoint, fetcher)
	tables := []string{"table1", "table2"}

	res1, err := router.Route(context.Background(), tables, testCtx)
	require.NoError(t, err)
	assert.True(t, endpoint1.Equal(*res1[0]))
	assert.True(t, endpoint2.Equal(*res1[1]))

	fetcher.routeTable.Store("table1", endpoint3)
	fetcher.routeTable.Store("table2", endpoint4)

	res2, err := router.Route(context.Background(), tables, testCtx)
	require.NoError(t, err)
	assert.True(t, endpoint1.Equal(*res2[0]))
	assert.True(t, endpoint2.Equal(*res2[1]))

	router.Evict(tables)

	res3, err := router.Route(context.Background(), tables, testCtx)
	require.NoError(t, err)
	assert.True(t, endpoint3.Equal(*res3[0]))
	assert.True(t, endpoint4.Equal(*res3[1]))

	res4, err := router.Route(context.Background(), []string{"table3", "table4"}, testCtx)
	require.NoError(t, err)
	assert.True(t, defaultEndpoint.Equal(*res4[0]))
	assert.True(t, defaultEndpoint.Equal(*res4[1]))
}

func TestRouteRequiresDatabase(t *testing.T) {
	fetcher := newMockFetcher()
	router := NewRouter(NewEndpoint("127.0.0.1", 8831), fetcher)

	_, err := router.Route(context.Background(), []string{"t"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errcode.ErrInvalidContext)

	_, err = router.Route(context.Background(), []string{"t"}, &RouteContext{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errcode.ErrInvalidContext)

	assert.Equal(t, int32(0), fetcher.fetches.Load())
}

func TestRouteAllHitsIssuesNoFetch(t *testing.T) {
	endpoint1 := NewEndpoint("10.0.0.1", 8831)
	fetcher := newMockFetcher()
	fetcher.routeTable.Store("t1", endpoint1)
	router := NewRouter(NewEndpoint("10.0.0.9", 8831), fetcher)

	_, err := router.Route(context.Background(), []string{"t1"}, testCtx)
	require.NoError(t, err)
	require.Equal(t, int32(1), fetcher.fetches.Load())

	res, err := router.Route(context.Background(), []string{"t1"}, testCtx)
	require.NoError(t, err)
	assert.True(t, endpoint1.Equal(*res[0]))
	assert.Equal(t, int32(1), fetcher.fetches.Load())
}

func TestRouteKeepsOrderAndLength(t *testing.T) {
	endpoint1 := NewEndpoint("10.0.0.1", 8831)
	endpoint2 := NewEndpoint("10.0.0.2", 8831)
	fetcher := newMockFetcher()
	fetcher.routeTable.Store("t1", endpoint1)
	fetcher.routeTable.Store("t2", endpoint2)
	router := NewRouter(NewEndpoint("10.0.0.9", 8831), fetcher)

	// 重复的表名每个槽位都要有结果，且只拉取一次
	tables := []string{"t2", "t1", "t2", "t2"}
	res, err := router.Route(context.Background(), tables, testCtx)
	require.NoError(t, err)
	require.Len(t, res, len(tables))
	assert.True(t, endpoint2.Equal(*res[0]))
	assert.True(t, endpoint1.Equal(*res[1]))
	assert.True(t, endpoint2.Equal(*res[2]))
	assert.True(t, endpoint2.Equal(*res[3]))
	assert.Equal(t, int32(1), fetcher.fetches.Load())

	for _, ep := range res {
		assert.NotNil(t, ep)
	}
}

func TestRoutePartialHit(t *testing.T) {
	endpoint1 := NewEndpoint("10.0.0.1", 8831)
	endpoint3 := NewEndpoint("10.0.0.3", 8831)
	fetcher := newMockFetcher()
	fetcher.routeTable.Store("t1", endpoint1)
	fetcher.routeTable.Store("t3", endpoint3)
	router := NewRouter(NewEndpoint("10.0.0.9", 8831), fetcher).(*routerImpl)

	// 先缓存 t1
	_, err := router.Route(context.Background(), []string{"t1"}, testCtx)
	require.NoError(t, err)
	require.Equal(t, int32(1), fetcher.fetches.Load())

	// t1 命中缓存，t3 触发拉取
	res, err := router.Route(context.Background(), []string{"t1", "t3"}, testCtx)
	require.NoError(t, err)
	assert.True(t, endpoint1.Equal(*res[0]))
	assert.True(t, endpoint3.Equal(*res[1]))
	assert.Equal(t, int32(2), fetcher.fetches.Load())
}

func TestRouteMissingEndpointNotCached(t *testing.T) {
	defaultEndpoint := NewEndpoint("10.0.0.9", 8831)
	fetcher := newMockFetcher()
	router := NewRouter(defaultEndpoint, fetcher).(*routerImpl)

	res, err := router.Route(context.Background(), []string{"t4"}, testCtx)
	require.NoError(t, err)
	assert.True(t, defaultEndpoint.Equal(*res[0]))

	_, ok := router.cache.Get("t4")
	assert.False(t, ok)

	// 下一次仍然是 miss
	_, err = router.Route(context.Background(), []string{"t4"}, testCtx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetcher.fetches.Load())
}

func TestRouteUnexpectedEntry(t *testing.T) {
	endpoint1 := NewEndpoint("10.0.0.1", 8831)
	fetcher := newMockFetcher()
	fetcher.routeTable.Store("t1", endpoint1)
	fetcher.extra = []Route{{Table: "t999", Endpoint: &endpoint1}}
	router := NewRouter(NewEndpoint("10.0.0.9", 8831), fetcher)

	_, err := router.Route(context.Background(), []string{"t1"}, testCtx)
	require.Error(t, err)
	assert.ErrorIs(t, err, errcode.ErrUnexpectedRouteEntry)
}

func TestRouteFetchFailure(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.err = errcode.ErrTimeout
	router := NewRouter(NewEndpoint("10.0.0.9", 8831), fetcher).(*routerImpl)

	// 失败时整个调用失败，不返回部分结果也不更新缓存
	res, err := router.Route(context.Background(), []string{"t1"}, testCtx)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, errcode.ErrTimeout)

	_, ok := router.cache.Get("t1")
	assert.False(t, ok)
}

func TestEvictThenReroute(t *testing.T) {
	endpoint1 := NewEndpoint("10.0.0.1", 8831)
	endpoint5 := NewEndpoint("10.0.0.5", 8831)
	fetcher := newMockFetcher()
	fetcher.routeTable.Store("t1", endpoint1)
	router := NewRouter(NewEndpoint("10.0.0.9", 8831), fetcher).(*routerImpl)

	_, err := router.Route(context.Background(), []string{"t1"}, testCtx)
	require.NoError(t, err)

	fetcher.routeTable.Store("t1", endpoint5)
	router.Evict([]string{"t1"})

	res, err := router.Route(context.Background(), []string{"t1"}, testCtx)
	require.NoError(t, err)
	assert.True(t, endpoint5.Equal(*res[0]))

	cached, ok := router.cache.Get("t1")
	require.True(t, ok)
	assert.True(t, endpoint5.Equal(cached))
}

func TestEvictAbsentIsNoop(t *testing.T) {
	fetcher := newMockFetcher()
	router := NewRouter(NewEndpoint("10.0.0.9", 8831), fetcher)

	router.Evict([]string{"never-routed"})
	assert.Equal(t, int32(0), fetcher.fetches.Load())
}
