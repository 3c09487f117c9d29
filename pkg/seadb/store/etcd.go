package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"noy/seadb/pkg/seadb/config"
	"noy/seadb/pkg/seadb/errcode"
	"noy/seadb/pkg/seadb/logger"
	"noy/seadb/pkg/seadb/route"
)

const defaultFetchTimeout = 5 * time.Second

// EtcdFetcher 从 etcd 拉取路由，key 格式为 route/<database>/<table>，
// value 为 json 编码的端点
type EtcdFetcher struct {
	client *clientv3.Client
}

var _ route.Fetcher = (*EtcdFetcher)(nil)

func NewEtcdFetcher(cfg *config.ETCDConfig) (*EtcdFetcher, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, err
	}
	return &EtcdFetcher{client: client}, nil
}

func routeKey(database, table string) string {
	return "route/" + database + "/" + table
}

func (f *EtcdFetcher) FetchRoutes(ctx context.Context, database string, tables []string, timeout time.Duration) ([]route.Route, error) {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	routes := make([]route.Route, 0, len(tables))
	for _, table := range tables {
		response, err := f.client.Get(ctx, routeKey(database, table))
		if err != nil {
			return nil, classify(err)
		}
		if len(response.Kvs) == 0 {
			// 无路由，交给上层用默认端点兜底
			routes = append(routes, route.Route{Table: table})
			continue
		}
		ep, err := decodeEndpoint(response.Kvs[0].Value)
		if err != nil {
			logger.Warnf("bad endpoint for table %s: %v", table, err)
			routes = append(routes, route.Route{Table: table})
			continue
		}
		routes = append(routes, route.Route{Table: table, Endpoint: ep})
	}
	return routes, nil
}

func (f *EtcdFetcher) Close() error {
	return f.client.Close()
}

func decodeEndpoint(value []byte) (*route.Endpoint, error) {
	var ep route.Endpoint
	if err := json.Unmarshal(value, &ep); err != nil {
		return nil, err
	}
	if ep.Host == "" || ep.Port == 0 {
		return nil, errcode.ErrBadEndpoint
	}
	return &ep, nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errcode.WithMsg(errcode.ErrTimeout, err.Error())
	}
	return errcode.WithMsg(errcode.ErrTransport, err.Error())
}
