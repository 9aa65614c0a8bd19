package genaiclient

import (
	"context"
	"sync"

	"google.golang.org/genai"

	"media-studio-server/modules/common/config"
	"media-studio-server/modules/common/provider"
)

// Source - hands out the shared genai client
type Source interface {
	Client(ctx context.Context) (*genai.Client, error)
}

// Lazy - builds the client on first use; a failed build is retried on the next call
type Lazy struct {
	cfg    *config.Config
	mu     sync.Mutex
	client *genai.Client
}

func NewLazy(cfg *config.Config) *Lazy {
	return &Lazy{cfg: cfg}
}

// Client - failures are reported as *provider.ConfigError so handlers answer 503
func (l *Lazy) Client(ctx context.Context) (*genai.Client, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client != nil {
		return l.client, nil
	}
	client, err := New(ctx, l.cfg)
	if err != nil {
		return nil, &provider.ConfigError{Provider: provider.Gemini, Reason: err.Error()}
	}
	l.client = client
	return client, nil
}
