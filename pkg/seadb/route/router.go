package route

import (
	"context"
	"time"

	"noy/seadb/pkg/seadb/errcode"
	"noy/seadb/pkg/seadb/logger"
	"noy/seadb/pkg/seadb/metrics"
)

// Router 将表路由到端点
//
// 实现内部带缓存，优先返回缓存中的端点。缓存中的端点可能已过期，
// 调用方发现端点不再负责某张表时应调用 Evict 使其失效，
// 下一次 Route 会重新拉取。
type Router interface {
	Route(ctx context.Context, tables []string, rctx *RouteContext) ([]*Endpoint, error)

	Evict(tables []string)
}

type routerImpl struct {
	defaultEndpoint Endpoint
	cache           *EndpointCache
	fetcher         Fetcher
}

var _ Router = (*routerImpl)(nil)

func NewRouter(defaultEndpoint Endpoint, fetcher Fetcher) Router {
	return &routerImpl{
		defaultEndpoint: defaultEndpoint,
		cache:           NewEndpointCache(),
		fetcher:         fetcher,
	}
}

// Route 返回与 tables 等长同序的端点序列，每个槽位都不为 nil：
// 命中缓存的表返回缓存端点，远端没有路由的表返回默认端点。
// 拉取失败时整个调用失败，不返回部分结果。
func (r *routerImpl) Route(ctx context.Context, tables []string, rctx *RouteContext) ([]*Endpoint, error) {
	if rctx == nil || rctx.Database == "" {
		return nil, errcode.ErrInvalidContext
	}

	// 先填默认端点，未知的表也总有端点可用
	targets := make([]*Endpoint, len(tables))
	for i := range targets {
		ep := r.defaultEndpoint
		targets[i] = &ep
	}

	// 查缓存并收集未命中的表，重复的表名各自记录下标
	misses := make(map[string][]int)
	for idx, table := range tables {
		if ep, ok := r.cache.Get(table); ok {
			targets[idx] = &ep
			metrics.IncRouteCacheHit(rctx.Database)
		} else {
			misses[table] = append(misses[table], idx)
			metrics.IncRouteCacheMiss(rctx.Database)
		}
	}

	if len(misses) == 0 {
		return targets, nil
	}

	missTables := make([]string, 0, len(misses))
	for table := range misses {
		missTables = append(missTables, table)
	}

	start := time.Now()
	routes, err := r.fetcher.FetchRoutes(ctx, rctx.Database, missTables, rctx.Timeout)
	if err != nil {
		if e, ok := errcode.As(err); ok && e.Code == errcode.ErrTimeout.Code {
			metrics.IncFetchError("timeout")
		} else {
			metrics.IncFetchError("transport")
		}
		return nil, err
	}
	metrics.ObserveFetchDuration(time.Since(start).Seconds())

	// 回填结果并更新缓存
	for _, rt := range routes {
		// 端点可能为空，为空时不缓存
		if rt.Endpoint == nil {
			continue
		}

		idxes, ok := misses[rt.Table]
		if !ok {
			logger.Warnf("unrequested table %q in route response", rt.Table)
			return nil, errcode.WithData(errcode.ErrUnexpectedRouteEntry, map[string]string{"table": rt.Table})
		}
		r.cache.Insert(rt.Table, *rt.Endpoint)
		for _, idx := range idxes {
			ep := *rt.Endpoint
			targets[idx] = &ep
		}
	}

	return targets, nil
}

// Evict 将指定表的路由从缓存中移除，不存在的表为 no-op
func (r *routerImpl) Evict(tables []string) {
	for _, table := range tables {
		r.cache.Remove(table)
		metrics.IncRouteEvict()
	}
}
