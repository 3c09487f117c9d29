package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"noy/seadb/pkg/seadb/config"
	"noy/seadb/pkg/seadb/logger"
	"noy/seadb/pkg/seadb/route"
)

// RedisFetcher 从 redis 拉取路由，每个数据库一个 hash，
// key 为 route:<database>，field 为表名，value 为 json 编码的端点
type RedisFetcher struct {
	client *redis.Client
}

var _ route.Fetcher = (*RedisFetcher)(nil)

func NewRedisFetcher(cfg *config.RedisConfig) (*RedisFetcher, error) {
	options, err := redis.ParseURL(cfg.Url)
	if err != nil {
		return nil, err
	}
	return &RedisFetcher{client: redis.NewClient(options)}, nil
}

func routeHashKey(database string) string {
	return "route:" + database
}

func (f *RedisFetcher) FetchRoutes(ctx context.Context, database string, tables []string, timeout time.Duration) ([]route.Route, error) {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	values, err := f.client.HMGet(ctx, routeHashKey(database), tables...).Result()
	if err != nil {
		return nil, classify(err)
	}

	routes := make([]route.Route, 0, len(tables))
	for i, table := range tables {
		s, ok := values[i].(string)
		if !ok {
			// field 不存在
			routes = append(routes, route.Route{Table: table})
			continue
		}
		ep, err := decodeEndpoint([]byte(s))
		if err != nil {
			logger.Warnf("bad endpoint for table %s: %v", table, err)
			routes = append(routes, route.Route{Table: table})
			continue
		}
		routes = append(routes, route.Route{Table: table, Endpoint: ep})
	}
	return routes, nil
}

func (f *RedisFetcher) Close() error {
	return f.client.Close()
}
