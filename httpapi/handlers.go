// Package httpapi exposes a Dispatcher and Monitor over HTTP with gin.
package httpapi

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/martinemde/aimux/logging"
	"github.com/martinemde/aimux/perfmon"
	"github.com/martinemde/aimux/router"
)

// maxAudioBytes bounds uploaded audio for transcription.
const maxAudioBytes = 25 << 20

// Dispatcher is the subset of router.Dispatcher the handlers use.
type Dispatcher interface {
	Chat(ctx context.Context, req router.ChatRequest) (string, error)
	Embedding(ctx context.Context, req router.EmbeddingRequest) ([]float64, error)
	Vision(ctx context.Context, req router.VisionRequest) (string, error)
	Transcribe(ctx context.Context, req router.TranscriptionRequest) (string, error)
	Speech(ctx context.Context, req router.SpeechRequest) ([]byte, error)
	Available() []router.Backend
	Capabilities(b router.Backend) router.CapabilitySet
	Registry() *router.Registry
}

// MetricsSource provides the monitor snapshot.
type MetricsSource interface {
	Summary() perfmon.Summary
}

// Service provides the HTTP handlers.
type Service struct {
	dispatcher Dispatcher
	metrics    MetricsSource
	log        *logging.Logger
}

// NewService creates a Service. log may be nil.
func NewService(d Dispatcher, m MetricsSource, log *logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	return &Service{dispatcher: d, metrics: m, log: log.WithComponent("httpapi")}
}

// SetupRoutes registers every route on r.
func (s *Service) SetupRoutes(r *gin.RouterGroup) {
	r.GET("/healthz", s.HealthHandler())

	v1 := r.Group("/v1")
	v1.GET("/models", s.ModelsHandler())
	v1.GET("/metrics", s.MetricsHandler())
	v1.POST("/chat", s.ChatHandler())
	v1.POST("/embeddings", s.EmbeddingHandler())
	v1.POST("/vision", s.VisionHandler())
	v1.POST("/audio/transcriptions", s.TranscriptionHandler())
	v1.POST("/audio/speech", s.SpeechHandler())
}

// NewRouter returns a gin engine with recovery, request logging and every
// route registered.
func NewRouter(s *Service) *gin.Engine {
	engine := gin.New()
	engine.Use(Recovery(s.log), RequestLogger(s.log))
	s.SetupRoutes(&engine.RouterGroup)
	return engine
}

// HealthHandler reports liveness.
func (s *Service) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

type backendInfo struct {
	Backend      router.Backend      `json:"backend"`
	Available    bool                `json:"available"`
	Capabilities []router.Capability `json:"capabilities"`
	Models       []string            `json:"models"`
}

// ModelsHandler lists every backend with its availability and catalog.
func (s *Service) ModelsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		available := make(map[router.Backend]bool)
		for _, b := range s.dispatcher.Available() {
			available[b] = true
		}

		reg := s.dispatcher.Registry()
		infos := make([]backendInfo, 0, len(router.Backends))
		for _, b := range router.Backends {
			info := backendInfo{
				Backend:      b,
				Available:    available[b],
				Capabilities: []router.Capability{},
				Models:       reg.ModelsForService(b),
			}
			if caps := s.dispatcher.Capabilities(b); caps != nil {
				info.Capabilities = caps.List()
			}
			infos = append(infos, info)
		}
		c.JSON(http.StatusOK, gin.H{"backends": infos})
	}
}

// MetricsHandler returns the monitor summary.
func (s *Service) MetricsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, s.metrics.Summary())
	}
}

type chatBody struct {
	Prompt       string                `json:"prompt" binding:"required"`
	SystemPrompt string                `json:"system_prompt"`
	Model        string                `json:"model" binding:"required"`
	Format       router.ResponseFormat `json:"format"`
	Backend      router.Backend        `json:"backend"`
	UserID       string                `json:"user_id"`
}

// ChatHandler handles POST /v1/chat.
func (s *Service) ChatHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body chatBody
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBadRequest(c, err)
			return
		}

		text, err := s.dispatcher.Chat(c.Request.Context(), router.ChatRequest{
			Prompt:       body.Prompt,
			SystemPrompt: body.SystemPrompt,
			Model:        body.Model,
			Format:       body.Format,
			Backend:      body.Backend,
			UserID:       body.UserID,
		})
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"model": body.Model, "content": text})
	}
}

type embeddingBody struct {
	Text    string         `json:"text" binding:"required"`
	Model   string         `json:"model" binding:"required"`
	Backend router.Backend `json:"backend"`
	UserID  string         `json:"user_id"`
}

// EmbeddingHandler handles POST /v1/embeddings.
func (s *Service) EmbeddingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body embeddingBody
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBadRequest(c, err)
			return
		}

		vec, err := s.dispatcher.Embedding(c.Request.Context(), router.EmbeddingRequest{
			Text:    body.Text,
			Model:   body.Model,
			Backend: body.Backend,
			UserID:  body.UserID,
		})
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"model": body.Model, "embedding": vec})
	}
}

type visionBody struct {
	Prompt       string         `json:"prompt" binding:"required"`
	Image        string         `json:"image"`
	SystemPrompt string         `json:"system_prompt"`
	Model        string         `json:"model" binding:"required"`
	Backend      router.Backend `json:"backend"`
	UserID       string         `json:"user_id"`
}

// VisionHandler handles POST /v1/vision. Image is base64 encoded.
func (s *Service) VisionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body visionBody
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBadRequest(c, err)
			return
		}

		text, err := s.dispatcher.Vision(c.Request.Context(), router.VisionRequest{
			Prompt:       body.Prompt,
			Image:        body.Image,
			SystemPrompt: body.SystemPrompt,
			Model:        body.Model,
			Backend:      body.Backend,
			UserID:       body.UserID,
		})
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"model": body.Model, "content": text})
	}
}

// TranscriptionHandler handles multipart POST /v1/audio/transcriptions with
// an audio "file" part and a "model" field.
func (s *Service) TranscriptionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		model := c.PostForm("model")
		fh, err := c.FormFile("file")
		if err != nil || model == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "model and file are required"}})
			return
		}
		if fh.Size > maxAudioBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": gin.H{"message": "audio file too large"}})
			return
		}
		f, err := fh.Open()
		if err != nil {
			respondBadRequest(c, err)
			return
		}
		defer f.Close()
		audio, err := io.ReadAll(f)
		if err != nil {
			respondBadRequest(c, err)
			return
		}

		text, err := s.dispatcher.Transcribe(c.Request.Context(), router.TranscriptionRequest{
			Audio:    audio,
			FileName: fh.Filename,
			Model:    model,
			Backend:  router.Backend(c.PostForm("backend")),
			UserID:   c.PostForm("user_id"),
		})
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"model": model, "text": text})
	}
}

type speechBody struct {
	Text    string         `json:"text" binding:"required"`
	Voice   string         `json:"voice"`
	Model   string         `json:"model" binding:"required"`
	Backend router.Backend `json:"backend"`
	UserID  string         `json:"user_id"`
}

// SpeechHandler handles POST /v1/audio/speech and returns the audio bytes.
func (s *Service) SpeechHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body speechBody
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBadRequest(c, err)
			return
		}

		audio, err := s.dispatcher.Speech(c.Request.Context(), router.SpeechRequest{
			Text:    body.Text,
			Voice:   body.Voice,
			Model:   body.Model,
			Backend: body.Backend,
			UserID:  body.UserID,
		})
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.Data(http.StatusOK, "audio/mpeg", audio)
	}
}
