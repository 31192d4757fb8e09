package router

import (
	"context"
	"fmt"
	"sort"

	"github.com/martinemde/aimux/logging"
)

// Tracker records the lifecycle of dispatched requests. perfmon.Monitor
// satisfies it.
type Tracker interface {
	StartRequest(service, operation, model, userID string) string
	EndRequest(requestID string, success bool, err error)
}

// Rejecter is optionally implemented by a Tracker to count requests refused
// before reaching a backend. kind is the ErrorKind of the refusal.
type Rejecter interface {
	RejectRequest(service, operation, model, kind string)
}

type nopTracker struct{}

func (nopTracker) StartRequest(string, string, string, string) string { return "" }
func (nopTracker) EndRequest(string, bool, error)                     {}

type registration struct {
	client Client
	caps   CapabilitySet
}

// Dispatcher is the single entry point for every generation operation. It
// owns one client per configured backend, resolves the target backend of
// each call, enforces capability checks, and wraps telemetry and errors
// around the delegated call.
//
// The set of clients is fixed at construction, so a Dispatcher is safe for
// concurrent use.
type Dispatcher struct {
	registry *Registry
	tracker  Tracker
	log      *logging.Logger
	clients  map[Backend]registration
	injected map[Backend]Client
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRegistry sets the model registry. The default is NewDefaultRegistry().
func WithRegistry(r *Registry) Option {
	return func(d *Dispatcher) {
		d.registry = r
	}
}

// WithTracker sets the request tracker.
func WithTracker(t Tracker) Option {
	return func(d *Dispatcher) {
		d.tracker = t
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Dispatcher) {
		d.log = l
	}
}

// WithClient registers a pre-built client for backend, taking precedence
// over the factory.
func WithClient(backend Backend, c Client) Option {
	return func(d *Dispatcher) {
		d.injected[backend] = c
	}
}

// NewDispatcher builds a client for every backend with a non-empty
// credential. A backend whose factory call fails is logged and left
// unavailable.
func NewDispatcher(creds Credentials, factory ClientFactory, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		tracker:  nopTracker{},
		log:      logging.Nop(),
		clients:  make(map[Backend]registration),
		injected: make(map[Backend]Client),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.registry == nil {
		d.registry = NewDefaultRegistry()
	}
	d.log = d.log.WithComponent("dispatcher")

	backends := make([]Backend, 0, len(creds))
	for b, cred := range creds {
		if cred != "" {
			backends = append(backends, b)
		}
	}
	sort.Slice(backends, func(i, j int) bool { return backends[i] < backends[j] })

	for _, b := range backends {
		if _, ok := d.injected[b]; ok || factory == nil {
			continue
		}
		c, err := factory(b, creds[b])
		if err != nil {
			d.log.Error("service failed to initialize", logging.Fields(
				logging.FieldService, string(b),
				logging.FieldError, err,
			))
			continue
		}
		d.register(b, c)
	}
	for b, c := range d.injected {
		d.register(b, c)
	}
	d.injected = nil
	return d
}

func (d *Dispatcher) register(b Backend, c Client) {
	if c == nil {
		return
	}
	caps := capabilitiesOf(c)
	d.clients[b] = registration{client: c, caps: caps}
	d.log.Info("service initialized", logging.Fields(
		logging.FieldService, string(b),
		"capabilities", caps.List(),
	))
}

// Registry returns the registry used for model resolution.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Available returns the configured backends, sorted.
func (d *Dispatcher) Available() []Backend {
	out := make([]Backend, 0, len(d.clients))
	for b := range d.clients {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Capabilities returns the capability set of a configured backend, or nil.
func (d *Dispatcher) Capabilities(b Backend) CapabilitySet {
	reg, ok := d.clients[b]
	if !ok {
		return nil
	}
	out := make(CapabilitySet, len(reg.caps))
	for c := range reg.caps {
		out.Add(c)
	}
	return out
}

// Close releases resources held by every client that implements Closer.
func (d *Dispatcher) Close() error {
	var firstErr error
	for _, reg := range d.clients {
		if closer, ok := reg.client.(Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Chat sends a prompt to the backend owning req.Model (or req.Backend).
// A NoContent result is a successful empty answer.
func (d *Dispatcher) Chat(ctx context.Context, req ChatRequest) (string, error) {
	return invoke(ctx, d, CapabilityChat, req.Model, req.Backend, req.UserID,
		func(ctx context.Context, c Client) (string, error) {
			return c.Chat(ctx, req)
		})
}

// Embedding returns the embedding vector of req.Text.
func (d *Dispatcher) Embedding(ctx context.Context, req EmbeddingRequest) ([]float64, error) {
	return invoke(ctx, d, CapabilityEmbedding, req.Model, req.Backend, req.UserID,
		func(ctx context.Context, c Client) ([]float64, error) {
			return c.(EmbeddingClient).Embedding(ctx, req)
		})
}

// Vision sends a prompt with an optional image. A NoContent result is a
// successful empty answer.
func (d *Dispatcher) Vision(ctx context.Context, req VisionRequest) (string, error) {
	return invoke(ctx, d, CapabilityVision, req.Model, req.Backend, req.UserID,
		func(ctx context.Context, c Client) (string, error) {
			return c.(VisionClient).Vision(ctx, req)
		})
}

// Transcribe converts req.Audio to text.
func (d *Dispatcher) Transcribe(ctx context.Context, req TranscriptionRequest) (string, error) {
	return invoke(ctx, d, CapabilityTranscribe, req.Model, req.Backend, req.UserID,
		func(ctx context.Context, c Client) (string, error) {
			return c.(TranscriptionClient).Transcribe(ctx, req)
		})
}

// Speech synthesizes req.Text and returns the encoded audio.
func (d *Dispatcher) Speech(ctx context.Context, req SpeechRequest) ([]byte, error) {
	return invoke(ctx, d, CapabilitySynthesize, req.Model, req.Backend, req.UserID,
		func(ctx context.Context, c Client) ([]byte, error) {
			return c.(SpeechClient).Speech(ctx, req)
		})
}

// resolve picks the target backend and validates it can serve op.
func (d *Dispatcher) resolve(op Capability, model string, explicit Backend) (Backend, Client, error) {
	target := explicit
	if target == "" {
		target, _ = d.registry.ServiceForModel(model)
	}
	if target == "" {
		return "", nil, errModelNotSupported(model, op)
	}

	reg, ok := d.clients[target]
	if !ok {
		return "", nil, errServiceUnavailable(target, op)
	}
	// Every client chats.
	if op != CapabilityChat && !reg.caps.Has(op) {
		return "", nil, errCapabilityUnsupported(target, op)
	}
	return target, reg.client, nil
}

// invoke runs one tracked backend call. EndRequest is called exactly once
// per StartRequest, including when the backend panics.
func invoke[T any](ctx context.Context, d *Dispatcher, op Capability, model string, explicit Backend, userID string,
	call func(context.Context, Client) (T, error)) (result T, err error) {
	target, client, err := d.resolve(op, model, explicit)
	if err != nil {
		d.log.Warn("request rejected", logging.Fields(
			logging.FieldOperation, string(op),
			logging.FieldModel, model,
			logging.FieldError, err,
		))
		if r, ok := d.tracker.(Rejecter); ok {
			e, _ := AsError(err)
			r.RejectRequest(e.Service, string(op), model, string(e.Kind))
		}
		return result, err
	}

	id := d.tracker.StartRequest(string(target), string(op), model, userID)

	var callErr error
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			callErr = fmt.Errorf("backend panic: %v", r)
		}
		d.tracker.EndRequest(id, callErr == nil, callErr)
		if callErr != nil {
			err = wrapBackendError(target, op, callErr)
		}
	}()

	result, callErr = call(ctx, client)
	if callErr != nil {
		var zero T
		result = zero
	}
	return result, nil
}

// wrapBackendError passes dispatch errors through and wraps anything else.
func wrapBackendError(target Backend, op Capability, err error) error {
	if e, ok := err.(*Error); ok {
		return e
	}
	return errUnexpected(target, op, err)
}
