package provider

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	OpenRouter = "openrouter"
	OpenAI     = "openai"
	Gemini     = "gemini"
)

// ErrNoResult - the upstream call failed; the cause is logged, not returned
var ErrNoResult = errors.New("provider returned no result")

// ConfigError - missing credential or unknown provider, raised before any network call
type ConfigError struct {
	Provider string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("provider %q misconfigured: %s", e.Provider, e.Reason)
}

// IsConfigError reports whether err is a *ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

// Message - one chat turn ("system", "user" or "assistant")
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options - optional generation parameters forwarded to the provider
type Options struct {
	Temperature *float64
	MaxTokens   int
}

// Choice - one completion candidate
type Choice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// ChatResponse - provider-neutral completion result
type ChatResponse struct {
	Provider string   `json:"provider"`
	Model    string   `json:"model"`
	Choices  []Choice `json:"choices"`
}

// Text - content of the first choice, empty when there is none
func (r *ChatResponse) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Caller - what consumers of the gateway depend on
type Caller interface {
	Call(ctx context.Context, model string, messages []Message, provider string, opts Options) (*ChatResponse, error)
}

type chatClient interface {
	Complete(ctx context.Context, model string, messages []Message, opts Options) (*ChatResponse, error)
}

type providerSpec struct {
	envKey  string
	baseURL string
	build   func(g *Gateway, spec providerSpec, apiKey string) (chatClient, error)
}

// Gateway - one lazily built client per provider, shared by every caller
type Gateway struct {
	mu      sync.Mutex
	clients map[string]chatClient
	specs   map[string]providerSpec
	getenv  func(string) string
	http    *http.Client
	seq     atomic.Uint64
}

// Option - Gateway construction option
type Option func(*Gateway)

// WithEnv - credential lookup used on first use of a provider (default os.Getenv)
func WithEnv(getenv func(string) string) Option {
	return func(g *Gateway) { g.getenv = getenv }
}

// WithHTTPClient - HTTP client for the OpenAI compatible providers
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.http = c }
}

// WithBaseURL - override the API base URL of an OpenAI compatible provider
func WithBaseURL(provider, baseURL string) Option {
	return func(g *Gateway) {
		if spec, ok := g.specs[provider]; ok {
			spec.baseURL = strings.TrimRight(baseURL, "/")
			g.specs[provider] = spec
		}
	}
}

// NewGateway - gateway with the openrouter, openai and gemini providers registered
func NewGateway(opts ...Option) *Gateway {
	g := &Gateway{
		clients: make(map[string]chatClient),
		specs: map[string]providerSpec{
			OpenRouter: {envKey: "OPENROUTER_API_KEY", baseURL: "https://openrouter.ai/api/v1", build: buildOpenAICompatible},
			OpenAI:     {envKey: "OPENAI_API_KEY", baseURL: "https://api.openai.com/v1", build: buildOpenAICompatible},
			Gemini:     {envKey: "GEMINI_API_KEY", build: buildGemini},
		},
		getenv: os.Getenv,
		http:   &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Call - one chat completion through the named provider
//
// Configuration problems return a *ConfigError. Any transport or API failure
// is logged and collapsed into ErrNoResult; there are no retries.
func (g *Gateway) Call(ctx context.Context, model string, messages []Message, provider string, opts Options) (*ChatResponse, error) {
	name := strings.ToLower(strings.TrimSpace(provider))
	client, err := g.client(name)
	if err != nil {
		return nil, err
	}

	requestID := fmt.Sprintf("%s#%d", model, g.seq.Add(1))
	log.Printf("🤖 [Gateway] [%s] Making %s API call", requestID, strings.ToUpper(name))

	resp, err := client.Complete(ctx, model, messages, opts)
	if err != nil {
		log.Printf("❌ [Gateway] [%s] Error making %s API call: %v", requestID, strings.ToUpper(name), err)
		return nil, ErrNoResult
	}
	resp.Provider = name
	if resp.Model == "" {
		resp.Model = model
	}
	log.Printf("✅ [Gateway] [%s] %s API call completed", requestID, strings.ToUpper(name))
	return resp, nil
}

func (g *Gateway) client(name string) (chatClient, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.clients[name]; ok {
		return c, nil
	}
	spec, ok := g.specs[name]
	if !ok {
		return nil, &ConfigError{Provider: name, Reason: fmt.Sprintf("unsupported provider (use %s)", strings.Join(g.providerNames(), ", "))}
	}
	apiKey := strings.TrimSpace(g.getenv(spec.envKey))
	if apiKey == "" {
		return nil, &ConfigError{Provider: name, Reason: spec.envKey + " environment variable is required"}
	}
	c, err := spec.build(g, spec, apiKey)
	if err != nil {
		return nil, &ConfigError{Provider: name, Reason: err.Error()}
	}
	g.clients[name] = c
	log.Printf("🔧 [Gateway] Initialized %s client", name)
	return c, nil
}

// Providers - every registered provider name
func (g *Gateway) Providers() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.providerNames()
}

func (g *Gateway) providerNames() []string {
	names := make([]string, 0, len(g.specs))
	for name := range g.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Cached - providers whose client has been initialized
func (g *Gateway) Cached() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, 0, len(g.clients))
	for name := range g.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
