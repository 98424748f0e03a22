package profile

import (
	"os"
	"testing"
)

func TestFromEnvDefaults(t *testing.T) {
	clearEnvVars()

	p := &Profile{}
	p.FromEnv()

	tests := []struct {
		name     string
		expected string
		actual   string
	}{
		{"LLMProvider default", "vllm", p.LLMProvider},
		{"LLMBaseURL default", "http://localhost:8000/v1", p.LLMBaseURL},
		{"LLMModel default", "gpt-oss-20b", p.LLMModel},
		{"VisionModel default", "qwen2.5-vl-32b", p.VisionModel},
		{"ImageEmbeddingModel default", "clip-vit-l-14", p.ImageEmbeddingModel},
		{"StorageBucket default", "tsudoi-media", p.StorageBucket},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.actual != tt.expected {
				t.Errorf("%s: expected %q, got %q", tt.name, tt.expected, tt.actual)
			}
		})
	}

	if p.LLMTimeout != 45 {
		t.Errorf("LLMTimeout default: expected 45, got %d", p.LLMTimeout)
	}
	if p.FaceMatchLimit != 5 {
		t.Errorf("FaceMatchLimit default: expected 5, got %d", p.FaceMatchLimit)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnvVars()
	t.Setenv("TSUDOI_AI_LLM_PROVIDER", "deepseek")
	t.Setenv("TSUDOI_AI_LLM_API_KEY", "test-key")
	t.Setenv("TSUDOI_STORAGE_BUCKET", "test-bucket")
	t.Setenv("TSUDOI_AI_FACE_MATCH_LIMIT", "10")

	p := &Profile{}
	p.FromEnv()

	if p.LLMProvider != "deepseek" {
		t.Errorf("LLMProvider: expected deepseek, got %q", p.LLMProvider)
	}
	// Provider defaults fill in unset base URL and model.
	if p.LLMBaseURL != "https://api.deepseek.com" {
		t.Errorf("LLMBaseURL: expected deepseek default, got %q", p.LLMBaseURL)
	}
	if p.LLMModel != "deepseek-chat" {
		t.Errorf("LLMModel: expected deepseek-chat, got %q", p.LLMModel)
	}
	if p.StorageBucket != "test-bucket" {
		t.Errorf("StorageBucket: expected test-bucket, got %q", p.StorageBucket)
	}
	if p.FaceMatchLimit != 10 {
		t.Errorf("FaceMatchLimit: expected 10, got %d", p.FaceMatchLimit)
	}
}

func TestFromEnvUnknownProviderFallsBack(t *testing.T) {
	clearEnvVars()
	t.Setenv("TSUDOI_AI_LLM_PROVIDER", "unknown-provider")

	p := &Profile{}
	p.FromEnv()

	if p.LLMProvider != "vllm" {
		t.Errorf("unknown provider should fall back to vllm, got %q", p.LLMProvider)
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()

	t.Run("sqlite gets default DSN", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "sqlite", Data: dir}
		if err := p.Validate(); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if p.DSN == "" {
			t.Error("expected sqlite DSN to be derived from data dir")
		}
	})

	t.Run("postgres requires DSN", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "postgres", Data: dir}
		if err := p.Validate(); err == nil {
			t.Error("expected error for postgres without DSN")
		}
	})

	t.Run("unsupported driver rejected", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "mysql", Data: dir}
		if err := p.Validate(); err == nil {
			t.Error("expected error for unsupported driver")
		}
	})

	t.Run("invalid mode coerced to demo", func(t *testing.T) {
		p := &Profile{Mode: "bogus", Driver: "sqlite", Data: dir}
		if err := p.Validate(); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if p.Mode != "demo" {
			t.Errorf("expected mode demo, got %q", p.Mode)
		}
	})
}

func clearEnvVars() {
	for _, key := range []string{
		"TSUDOI_AI_LLM_PROVIDER",
		"TSUDOI_AI_LLM_API_KEY",
		"TSUDOI_AI_LLM_BASE_URL",
		"TSUDOI_AI_LLM_MODEL",
		"TSUDOI_AI_LLM_TIMEOUT_SECONDS",
		"TSUDOI_AI_VISION_BASE_URL",
		"TSUDOI_AI_VISION_MODEL",
		"TSUDOI_AI_IMAGE_EMBEDDING_BASE_URL",
		"TSUDOI_AI_IMAGE_EMBEDDING_MODEL",
		"TSUDOI_AI_FACE_EMBEDDING_BASE_URL",
		"TSUDOI_STORAGE_BUCKET",
		"TSUDOI_AI_FACE_MATCH_LIMIT",
	} {
		os.Unsetenv(key)
	}
}
