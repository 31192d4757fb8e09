package router

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/teilomillet/gollm"
)

// gollmProviders maps backends to gollm provider names. Backends missing
// here have no gollm-backed client.
var gollmProviders = map[Backend]string{
	OpenAI:   "openai",
	Claude:   "anthropic",
	DeepSeek: "deepseek",
	Ollama:   "ollama",
	Gemini:   "google-openai",
	LMStudio: "lmstudio",
}

// gollm has no endpoint option for LM Studio and always talks to its
// default local server.
const lmStudioBaseURL = "http://localhost:1234"

// Used when a chat request names a backend explicitly but no model.
var gollmDefaultModels = map[Backend]string{
	OpenAI:   "gpt-4o-mini",
	Claude:   "claude-3-5-haiku-20241022",
	DeepSeek: "deepseek-chat",
	Ollama:   "llama3",
	Gemini:   "gemini-2.0-flash",
	LMStudio: "local-model",
}

const jsonInstruction = "Respond only with a single valid JSON object."

type generateFunc func(ctx context.Context, prompt *gollm.Prompt) (string, error)

// GollmClient is a chat-only Client backed by github.com/teilomillet/gollm.
// One gollm.LLM is created per model on first use and reused afterwards.
type GollmClient struct {
	backend     Backend
	provider    string
	credential  string
	maxTokens   int
	temperature float64
	retry       RetryPolicy

	newLLM func(model string) (generateFunc, error)

	mu   sync.Mutex
	llms map[string]generateFunc
}

// GollmOption configures a GollmClient.
type GollmOption func(*GollmClient)

// WithMaxTokens sets the completion token limit.
func WithMaxTokens(n int) GollmOption {
	return func(c *GollmClient) {
		c.maxTokens = n
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) GollmOption {
	return func(c *GollmClient) {
		c.temperature = t
	}
}

// WithRetry retries transient provider failures. The default is no retries.
func WithRetry(p RetryPolicy) GollmOption {
	return func(c *GollmClient) {
		c.retry = p
	}
}

// NewGollmClient creates a client for backend. credential is an API key,
// except for Ollama and LM Studio where it is the server URL.
func NewGollmClient(backend Backend, credential string, opts ...GollmOption) (*GollmClient, error) {
	provider, ok := gollmProviders[backend]
	if !ok {
		return nil, fmt.Errorf("backend %s has no gollm provider", backend)
	}
	switch backend {
	case Ollama:
		credential = strings.TrimRight(credential, "/")
	case LMStudio:
		base := strings.TrimSuffix(strings.TrimRight(credential, "/"), "/v1")
		if base != lmStudioBaseURL {
			return nil, fmt.Errorf("gollm only reaches LM Studio at %s, got %s", lmStudioBaseURL, credential)
		}
	}
	c := &GollmClient{
		backend:     backend,
		provider:    provider,
		credential:  credential,
		maxTokens:   4096,
		temperature: 0.7,
		llms:        make(map[string]generateFunc),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.newLLM = c.buildLLM
	return c, nil
}

// GollmFactory is a ClientFactory producing GollmClients.
func GollmFactory(backend Backend, credential string) (Client, error) {
	c, err := NewGollmClient(backend, credential)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Name returns the gollm provider name.
func (c *GollmClient) Name() string {
	return c.provider
}

// Chat implements Client.
func (c *GollmClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = gollmDefaultModels[c.backend]
	}
	generate, err := c.llm(model)
	if err != nil {
		return NoContent, err
	}

	var promptOpts []gollm.PromptOption
	if sys := systemPrompt(req); sys != "" {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(sys, gollm.CacheTypeEphemeral))
	}
	prompt := gollm.NewPrompt(req.Prompt, promptOpts...)
	text, err := retry(ctx, c.retry, func(ctx context.Context) (string, error) {
		return generate(ctx, prompt)
	})
	if err != nil {
		return NoContent, fmt.Errorf("%s generate: %w", c.provider, err)
	}
	return strings.TrimSpace(text), nil
}

func (c *GollmClient) llm(model string) (generateFunc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if g, ok := c.llms[model]; ok {
		return g, nil
	}
	g, err := c.newLLM(model)
	if err != nil {
		return nil, err
	}
	c.llms[model] = g
	return g, nil
}

func (c *GollmClient) buildLLM(model string) (generateFunc, error) {
	opts := []gollm.ConfigOption{
		gollm.SetProvider(c.provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(c.maxTokens),
		gollm.SetTemperature(c.temperature),
		gollm.SetMaxRetries(0),
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	switch c.backend {
	case Ollama:
		opts = append(opts, gollm.SetOllamaEndpoint(c.credential), gollm.SetAPIKey("ollama-local"))
	case LMStudio:
		opts = append(opts, gollm.SetAPIKey("lmstudio-local"))
	default:
		opts = append(opts, gollm.SetAPIKey(c.credential))
	}

	llm, err := gollm.NewLLM(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gollm LLM for provider %s: %w", c.provider, err)
	}
	return func(ctx context.Context, p *gollm.Prompt) (string, error) {
		return llm.Generate(ctx, p)
	}, nil
}

// systemPrompt composes the system prompt, adding a JSON-only instruction
// when the request asks for a JSON object.
func systemPrompt(req ChatRequest) string {
	sys := strings.TrimSpace(req.SystemPrompt)
	if req.Format != FormatJSONObject {
		return sys
	}
	if sys == "" {
		return jsonInstruction
	}
	return sys + "\n" + jsonInstruction
}
