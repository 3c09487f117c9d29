package route

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// EndpointCache 表名到端点的并发映射，无 TTL，只能被覆盖或显式删除
type EndpointCache struct {
	m *xsync.MapOf[string, Endpoint]
}

func NewEndpointCache() *EndpointCache {
	return &EndpointCache{m: xsync.NewMapOf[string, Endpoint]()}
}

func (c *EndpointCache) Get(table string) (Endpoint, bool) {
	return c.m.Load(table)
}

// Insert 覆盖旧值
func (c *EndpointCache) Insert(table string, endpoint Endpoint) {
	c.m.Store(table, endpoint)
}

func (c *EndpointCache) Remove(table string) {
	c.m.Delete(table)
}

func (c *EndpointCache) Len() int {
	return c.m.Size()
}
