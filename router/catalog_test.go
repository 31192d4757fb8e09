package router

import "testing"

func TestGetModelInfo(t *testing.T) {
	tests := []struct {
		id      string
		backend Backend
		kind    ModelKind
	}{
		{"gpt-4o-mini", OpenAI, KindChat},
		{"text-embedding-3-small", OpenAI, KindEmbedding},
		{"whisper-1", OpenAI, KindTranscript},
		{"deepseek-reasoner", DeepSeek, KindChat},
		{"sonar-pro", Perplexity, KindChat},
		{"grok-2-vision-1212", Grok, KindVision},
		{"claude-3-7-sonnet-20250219", Claude, KindChat},
		{"text-embedding-004", Gemini, KindEmbedding},
	}
	for _, tt := range tests {
		info := GetModelInfo(tt.id)
		if info == nil {
			t.Fatalf("expected model info for %s", tt.id)
		}
		if info.Backend != tt.backend {
			t.Errorf("%s: expected backend %s, got %s", tt.id, tt.backend, info.Backend)
		}
		if info.Kind != tt.kind {
			t.Errorf("%s: expected kind %s, got %s", tt.id, tt.kind, info.Kind)
		}
	}

	if GetModelInfo("nonexistent-model") != nil {
		t.Error("expected nil for unknown model")
	}
}

func TestListModels(t *testing.T) {
	all := ListModels("")
	total := 0
	for _, entries := range Catalogs {
		total += len(entries)
	}
	if len(all) != total {
		t.Errorf("expected %d models, got %d", total, len(all))
	}

	for _, m := range ListModels(Claude) {
		if m.Backend != Claude {
			t.Errorf("expected claude model, got %s from %s", m.ID, m.Backend)
		}
	}

	if len(ListModels(Ollama)) != 0 {
		t.Error("expected no fixed catalog for ollama")
	}
}

func TestCatalogsAreDisjoint(t *testing.T) {
	seen := make(map[string]Backend)
	for backend, entries := range Catalogs {
		for _, m := range entries {
			if prev, ok := seen[m.ID]; ok {
				t.Errorf("model %s listed by both %s and %s", m.ID, prev, backend)
			}
			seen[m.ID] = backend
			if m.Backend != backend {
				t.Errorf("model %s filed under %s but tagged %s", m.ID, backend, m.Backend)
			}
		}
	}
}
