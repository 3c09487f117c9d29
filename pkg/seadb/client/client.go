package client

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"

	"noy/seadb/pkg/seadb/config"
	"noy/seadb/pkg/seadb/errcode"
	"noy/seadb/pkg/seadb/logger"
	"noy/seadb/pkg/seadb/route"
	"noy/seadb/pkg/seadb/store"
)

var seadbClient *Client

// Client 封装路由层，负责默认数据库兜底和路由失效重试
type Client struct {
	id              string
	router          route.Router
	defaultDatabase string
	fetchTimeout    time.Duration
	maxRetries      int
}

// Init 从配置初始化客户端单例
func Init(configPath string) *Client {
	if seadbClient != nil {
		return seadbClient
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		panic(err)
	}

	var fetcher route.Fetcher
	switch {
	case cfg.Etcd != nil:
		fetcher, err = store.NewEtcdFetcher(cfg.Etcd)
	case cfg.Redis != nil:
		fetcher, err = store.NewRedisFetcher(cfg.Redis)
	default:
		panic("no route store configured")
	}
	if err != nil {
		panic(err)
	}

	defaultEndpoint, err := route.ParseEndpoint(cfg.Client.DefaultEndpoint)
	if err != nil {
		panic(err)
	}

	seadbClient = New(route.NewRouter(defaultEndpoint, fetcher), cfg.Client)
	return seadbClient
}

func MustInstance() *Client {
	if seadbClient == nil {
		panic("seadb client not initialized")
	}
	return seadbClient
}

func New(router route.Router, cfg *config.ClientConfig) *Client {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Client{
		id:              uuid.New().String(),
		router:          router,
		defaultDatabase: cfg.DefaultDatabase,
		fetchTimeout:    cfg.FetchTimeout,
		maxRetries:      maxRetries,
	}
}

func (c *Client) ID() string {
	return c.id
}

// RouteTables 解析表所在的端点，rctx 可以为 nil，
// 数据库未指定时使用默认数据库
func (c *Client) RouteTables(ctx context.Context, tables []string, rctx *route.RouteContext) ([]*route.Endpoint, error) {
	resolved, err := c.resolveContext(rctx)
	if err != nil {
		return nil, err
	}
	return c.router.Route(ctx, tables, resolved)
}

// EvictRoutes 使指定表的路由失效，失败重试前调用
func (c *Client) EvictRoutes(tables []string) {
	c.router.Evict(tables)
}

func (c *Client) resolveContext(rctx *route.RouteContext) (*route.RouteContext, error) {
	resolved := route.RouteContext{Timeout: c.fetchTimeout}
	if rctx != nil {
		resolved.Database = rctx.Database
		if rctx.Timeout > 0 {
			resolved.Timeout = rctx.Timeout
		}
	}
	if resolved.Database == "" {
		resolved.Database = c.defaultDatabase
	}
	if resolved.Database == "" {
		return nil, errcode.ErrDatabaseRequired
	}
	return &resolved, nil
}

// GRPCClientInterceptor 请求失败且服务端报告端点不负责相关表时，
// 使对应路由失效并重试
func (c *Client) GRPCClientInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	for i := 0; i < c.maxRetries; i++ {
		err := invoker(ctx, method, req, reply, cc, opts...)
		if err == nil {
			return nil
		}
		errWithCode := errcode.FromGRPCError(err)
		if errWithCode == nil || errWithCode.Code != errcode.ErrWrongEndpoint.Code {
			return err
		}

		logger.Warnf("wrong endpoint: %v", err)
		// 使缓存失效
		tables := strings.Split(errWithCode.Data["tables"], ",")
		c.EvictRoutes(tables)

		logger.Debugf("retry %d times", i+1)
	}
	return errcode.ErrMaxRetries
}
