package cache

import (
	"strings"
	"time"

	clientdomain "github.com/smallbiznis/meridian/internal/client/domain"
)

const defaultClientTTL = 30 * time.Second

// ClientCache keeps registered client records hot for the token endpoint.
// The TTL is short so a deleted or changed client converges quickly.
type ClientCache interface {
	Get(clientID string) (*clientdomain.RegisteredClient, bool)
	Set(clientID string, client *clientdomain.RegisteredClient)
	Invalidate(clientID string)
}

type clientCache struct {
	clients Cache[string, *clientdomain.RegisteredClient]
	ttl     time.Duration
}

func NewClientCache() ClientCache {
	return &clientCache{
		clients: NewTTLCache[string, *clientdomain.RegisteredClient](),
		ttl:     defaultClientTTL,
	}
}

func (c *clientCache) Get(clientID string) (*clientdomain.RegisteredClient, bool) {
	return c.clients.Get(cacheKey(clientID))
}

func (c *clientCache) Set(clientID string, client *clientdomain.RegisteredClient) {
	if client == nil {
		return
	}
	c.clients.Set(cacheKey(clientID), client, c.ttl)
}

func (c *clientCache) Invalidate(clientID string) {
	c.clients.Delete(cacheKey(clientID))
}

func cacheKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
