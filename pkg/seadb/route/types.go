package route

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"noy/seadb/pkg/seadb/errcode"
)

// Endpoint 代表一个表所在的服务端地址
type Endpoint struct {
	Host string `yaml:"host" json:"host"` // 主机地址
	Port uint32 `yaml:"port" json:"port"` // 端口
}

func NewEndpoint(host string, port uint32) Endpoint {
	return Endpoint{Host: host, Port: port}
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

func (e Endpoint) Equal(e2 Endpoint) bool {
	return e.Host == e2.Host && e.Port == e2.Port
}

// ParseEndpoint 解析 host:port 格式的端点
func ParseEndpoint(s string) (Endpoint, error) {
	idx := strings.LastIndex(s, ":")
	if idx <= 0 || idx == len(s)-1 {
		return Endpoint{}, errcode.WithData(errcode.ErrBadEndpoint, map[string]string{"endpoint": s})
	}
	port, err := strconv.ParseUint(s[idx+1:], 10, 32)
	if err != nil {
		return Endpoint{}, errcode.WithData(errcode.ErrBadEndpoint, map[string]string{"endpoint": s})
	}
	return Endpoint{Host: s[:idx], Port: uint32(port)}, nil
}

// RouteContext 路由请求上下文，Database 必填
type RouteContext struct {
	Database string        // 路由所属的数据库
	Timeout  time.Duration // 拉取路由的超时时间，0 表示使用默认值
}

// Route 一条路由记录，Endpoint 为空表示该表暂无路由
type Route struct {
	Table    string
	Endpoint *Endpoint
}

// Fetcher 从远端批量拉取路由，实现必须支持并发调用
type Fetcher interface {
	FetchRoutes(ctx context.Context, database string, tables []string, timeout time.Duration) ([]Route, error)
}
