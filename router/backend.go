package router

import (
	"context"
	"sort"
)

// Backend identifies one external generation provider.
type Backend string

const (
	OpenAI     Backend = "openai"
	Ollama     Backend = "ollama"
	DeepSeek   Backend = "deepseek"
	LMStudio   Backend = "lmstudio"
	Perplexity Backend = "perplexity"
	Grok       Backend = "grok"
	Claude     Backend = "claude"
	Gemini     Backend = "gemini"
)

// Backends lists every known backend tag.
var Backends = []Backend{OpenAI, Ollama, DeepSeek, LMStudio, Perplexity, Grok, Claude, Gemini}

// Capability is one operation a backend may support. Capabilities double as
// the operation names recorded in telemetry and errors.
type Capability string

const (
	CapabilityChat       Capability = "chat"
	CapabilityEmbedding  Capability = "embedding"
	CapabilityVision     Capability = "vision"
	CapabilityTranscribe Capability = "audio-transcribe"
	CapabilitySynthesize Capability = "audio-synthesize"
)

// CapabilitySet is the set of operations attached to a backend registration.
type CapabilitySet map[Capability]struct{}

// NewCapabilitySet builds a set from caps.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// Has reports whether c is in the set.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Add inserts c.
func (s CapabilitySet) Add(c Capability) {
	s[c] = struct{}{}
}

// List returns the capabilities in sorted order.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Client is the interface every backend client must implement.
// Returning NoContent with a nil error means the model produced no text.
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// Optional extension interfaces. The capability set of a registration is
// derived from which of these the client implements.

// EmbeddingClient is implemented by backends that produce embeddings.
type EmbeddingClient interface {
	Embedding(ctx context.Context, req EmbeddingRequest) ([]float64, error)
}

// VisionClient is implemented by backends that accept images.
type VisionClient interface {
	Vision(ctx context.Context, req VisionRequest) (string, error)
}

// TranscriptionClient is implemented by backends that transcribe audio.
type TranscriptionClient interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (string, error)
}

// SpeechClient is implemented by backends that synthesize speech.
type SpeechClient interface {
	Speech(ctx context.Context, req SpeechRequest) ([]byte, error)
}

// Closer is implemented by clients that hold resources.
type Closer interface {
	Close() error
}

// capabilitiesOf inspects a client once, at registration time.
func capabilitiesOf(c Client) CapabilitySet {
	caps := NewCapabilitySet(CapabilityChat)
	if _, ok := c.(EmbeddingClient); ok {
		caps.Add(CapabilityEmbedding)
	}
	if _, ok := c.(VisionClient); ok {
		caps.Add(CapabilityVision)
	}
	if _, ok := c.(TranscriptionClient); ok {
		caps.Add(CapabilityTranscribe)
	}
	if _, ok := c.(SpeechClient); ok {
		caps.Add(CapabilitySynthesize)
	}
	return caps
}

// Credentials holds the optional API key or base URL per backend.
// A backend without an entry (or with an empty one) is not configured.
type Credentials map[Backend]string

// ClientFactory builds the client for a configured backend.
type ClientFactory func(backend Backend, credential string) (Client, error)
