package embed

import (
	"sync"
)

// credPrefixLen is how many token characters key the pool. Enough to tell
// credentials apart without holding full secrets in map keys.
const credPrefixLen = 10

// Pool caches one client per (provider, credential prefix) so connection
// pools are reused across calls. The orchestrator constructs a Pool at sync
// start and drops it at sync end.
type Pool struct {
	mu      sync.Mutex
	clients map[string]*HTTPClient
	opts    []Option
}

// NewPool creates an empty client pool. The options apply to every client
// the pool creates.
func NewPool(opts ...Option) *Pool {
	return &Pool{
		clients: make(map[string]*HTTPClient),
		opts:    opts,
	}
}

// Get returns the cached client for the model's provider and credential,
// creating it on first use.
func (p *Pool) Get(model, token string) (*HTTPClient, error) {
	key := poolKey(model, token)

	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[key]; ok && c.Model() == model {
		return c, nil
	}

	c, err := NewClient(model, token, p.opts...)
	if err != nil {
		return nil, err
	}
	p.clients[key] = c
	return c, nil
}

// Close releases idle connections of all cached clients.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range p.clients {
		c.Close()
	}
	p.clients = make(map[string]*HTTPClient)
}

func poolKey(model, token string) string {
	prefix := token
	if len(prefix) > credPrefixLen {
		prefix = prefix[:credPrefixLen]
	}
	return string(ProviderFor(model)) + ":" + model + ":" + prefix
}
