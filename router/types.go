package router

// NoContent is what text-producing operations return when the backend
// answered without content. It is a successful outcome, not an error.
const NoContent = ""

// ResponseFormat selects the shape of a chat answer.
type ResponseFormat string

const (
	FormatText       ResponseFormat = "text"
	FormatJSONObject ResponseFormat = "json_object"
)

// ChatRequest is the input of Dispatcher.Chat and Client.Chat.
type ChatRequest struct {
	Prompt       string         `json:"prompt"`
	SystemPrompt string         `json:"system_prompt,omitempty"`
	Model        string         `json:"model"`
	Format       ResponseFormat `json:"format,omitempty"`

	// Backend overrides registry resolution when set.
	Backend Backend `json:"backend,omitempty"`
	UserID  string  `json:"user_id,omitempty"`
}

// EmbeddingRequest is the input of Dispatcher.Embedding.
type EmbeddingRequest struct {
	Text    string  `json:"text"`
	Model   string  `json:"model"`
	Backend Backend `json:"backend,omitempty"`
	UserID  string  `json:"user_id,omitempty"`
}

// VisionRequest is the input of Dispatcher.Vision. Image is base64 encoded
// and may be empty.
type VisionRequest struct {
	Prompt       string  `json:"prompt"`
	Image        string  `json:"image,omitempty"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	Model        string  `json:"model"`
	Backend      Backend `json:"backend,omitempty"`
	UserID       string  `json:"user_id,omitempty"`
}

// TranscriptionRequest is the input of Dispatcher.Transcribe.
type TranscriptionRequest struct {
	Audio    []byte  `json:"-"`
	FileName string  `json:"file_name,omitempty"`
	Model    string  `json:"model"`
	Backend  Backend `json:"backend,omitempty"`
	UserID   string  `json:"user_id,omitempty"`
}

// SpeechRequest is the input of Dispatcher.Speech.
type SpeechRequest struct {
	Text    string  `json:"text"`
	Voice   string  `json:"voice,omitempty"`
	Model   string  `json:"model"`
	Backend Backend `json:"backend,omitempty"`
	UserID  string  `json:"user_id,omitempty"`
}
