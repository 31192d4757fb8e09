package router

// ModelKind groups catalog entries by the operation they are meant for.
type ModelKind string

const (
	KindChat       ModelKind = "chat"
	KindEmbedding  ModelKind = "embedding"
	KindVision     ModelKind = "vision"
	KindSpeech     ModelKind = "speech"
	KindTranscript ModelKind = "transcription"
)

// ModelInfo describes a known model in a backend's fixed catalog.
type ModelInfo struct {
	ID      string    `json:"id"`
	Backend Backend   `json:"backend"`
	Kind    ModelKind `json:"kind"`
}

func models(backend Backend, kind ModelKind, ids ...string) []ModelInfo {
	out := make([]ModelInfo, len(ids))
	for i, id := range ids {
		out[i] = ModelInfo{ID: id, Backend: backend, Kind: kind}
	}
	return out
}

func concat(groups ...[]ModelInfo) []ModelInfo {
	var out []ModelInfo
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// Catalogs is the built-in fixed catalog of each backend. Ollama and LM Studio
// serve whatever is installed locally, so they have no fixed catalog and are
// reached only through an explicit backend.
var Catalogs = map[Backend][]ModelInfo{
	OpenAI: concat(
		models(OpenAI, KindChat,
			"gpt-4o-mini", "gpt-4o", "gpt-3.5-turbo", "gpt-4.5-preview", "gpt-4",
			"gpt-4-turbo", "gpt-4-turbo-preview", "o1", "o1-mini", "o1-preview",
			"o3-mini", "chatgpt-4o-latest", "chatgpt-4o-mini",
		),
		models(OpenAI, KindVision, "gpt-4-vision-preview"),
		models(OpenAI, KindEmbedding,
			"text-embedding-3-large", "text-embedding-3-small", "text-embedding-ada-002",
		),
		models(OpenAI, KindSpeech,
			"gpt-4o-mini-tts", "tts-1", "tts-1-1106", "tts-1-hd", "tts-1-hd-1106",
		),
		models(OpenAI, KindTranscript, "whisper-1"),
	),
	DeepSeek: models(DeepSeek, KindChat, "deepseek-chat", "deepseek-reasoner"),
	Perplexity: models(Perplexity, KindChat,
		"sonar-deep-research", "sonar-reasoning-pro", "sonar-reasoning",
		"sonar-pro", "sonar", "r1-1776",
	),
	Grok: concat(
		models(Grok, KindChat, "grok-1", "grok-1-mini", "grok-2-1212"),
		models(Grok, KindVision, "grok-1-vision", "grok-2-vision-1212"),
	),
	Claude: models(Claude, KindChat,
		"claude-2.0", "claude-2.1",
		"claude-3-5-haiku-20241022", "claude-3-5-sonnet-20240620", "claude-3-5-sonnet-20241022",
		"claude-3-7-sonnet-20250219", "claude-3-haiku-20240307", "claude-3-opus-20240229",
		"claude-3-sonnet-20240229", "claude-opus-4-20250514", "claude-sonnet-4-20250514",
	),
	Gemini: concat(
		models(Gemini, KindChat,
			"gemini-1.5-flash", "gemini-1.5-flash-001", "gemini-1.5-flash-001-tuning",
			"gemini-1.5-flash-002", "gemini-1.5-flash-8b", "gemini-1.5-flash-8b-001",
			"gemini-1.5-pro", "gemini-1.5-pro-001", "gemini-1.5-pro-002",
			"gemini-2.0-flash", "gemini-2.0-flash-001", "gemini-2.0-flash-lite",
			"gemini-2.0-flash-lite-001",
		),
		models(Gemini, KindVision, "gemini-1.0-pro-vision-latest", "gemini-pro-vision"),
		models(Gemini, KindEmbedding, "embedding-001", "text-embedding-004"),
	),
}

// GetModelInfo returns the catalog entry for a model, or nil if unknown.
func GetModelInfo(modelID string) *ModelInfo {
	for _, backend := range Backends {
		entries := Catalogs[backend]
		for i := range entries {
			if entries[i].ID == modelID {
				return &entries[i]
			}
		}
	}
	return nil
}

// ListModels returns the catalog of a backend, or every entry when backend
// is empty.
func ListModels(backend Backend) []ModelInfo {
	if backend != "" {
		result := make([]ModelInfo, len(Catalogs[backend]))
		copy(result, Catalogs[backend])
		return result
	}
	var result []ModelInfo
	for _, b := range Backends {
		result = append(result, Catalogs[b]...)
	}
	return result
}
