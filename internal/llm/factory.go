package llm

import (
	"fmt"
	"sync"

	"github.com/nulzo/chat-relay/internal/config"
	"github.com/nulzo/chat-relay/internal/httpclient"
)

type Factory func(cfg config.ProviderConfig, client httpclient.HTTPClient) (Provider, error)

var (
	mu        sync.RWMutex
	factories = make(map[Family]Factory)
)

func Register(family Family, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[family]; exists {
		panic(fmt.Sprintf("provider factory %s already registered", family))
	}
	factories[family] = f
}

func Get(family Family) (Factory, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[family]
	if !ok {
		return nil, fmt.Errorf("provider factory not found for family: %s", family)
	}
	return f, nil
}

// New builds the provider for cfg using the factory registered for its family.
func New(cfg config.ProviderConfig, client httpclient.HTTPClient) (Provider, error) {
	factoryFunc, err := Get(Family(cfg.Family))
	if err != nil {
		return nil, fmt.Errorf("factory lookup failed for %s: %w", cfg.Name, err)
	}
	return factoryFunc(cfg, client)
}
