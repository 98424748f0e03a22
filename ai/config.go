// Package ai orchestrates the model adapters: image and face embeddings,
// vision description, text generation, and the neighbor-search-backed
// operations composed from them.
package ai

import (
	"github.com/tsudoi-io/tsudoi/internal/profile"
)

// LLMConfig configures the text generation client.
type LLMConfig struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int     // default: 1024
	Temperature float32 // default: 0.7
	Timeout     int     // request timeout in seconds (default: 45)
}

// VisionConfig configures the vision-language client.
type VisionConfig struct {
	Model   string
	APIKey  string
	BaseURL string
	Timeout int // request timeout in seconds (default: 60)
}

// ModelServerConfig configures a bespoke embedding model server.
type ModelServerConfig struct {
	BaseURL string
	Model   string
	Timeout int // request timeout in seconds (default: 30)
}

// Config is the aggregate AI configuration.
type Config struct {
	LLM            LLMConfig
	Vision         VisionConfig
	ImageEmbedding ModelServerConfig
	FaceDetection  ModelServerConfig

	// ProposalTemperature is used for proposal drafts, which need tighter
	// adherence to the output contract than theme brainstorming.
	ProposalTemperature float32

	// FaceMatchLimit is the default candidate count per detected face.
	FaceMatchLimit int
}

// NewConfigFromProfile builds the AI configuration from a server profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{
		LLM: LLMConfig{
			Provider:    p.LLMProvider,
			Model:       p.LLMModel,
			APIKey:      p.LLMAPIKey,
			BaseURL:     p.LLMBaseURL,
			MaxTokens:   1024,
			Temperature: 0.7,
			Timeout:     p.LLMTimeout,
		},
		Vision: VisionConfig{
			Model:   p.VisionModel,
			APIKey:  p.VisionAPIKey,
			BaseURL: p.VisionBaseURL,
			Timeout: p.VisionTimeout,
		},
		ImageEmbedding: ModelServerConfig{
			BaseURL: p.ImageEmbeddingBaseURL,
			Model:   p.ImageEmbeddingModel,
			Timeout: p.ModelServerTimeout,
		},
		FaceDetection: ModelServerConfig{
			BaseURL: p.FaceEmbeddingBaseURL,
			Timeout: p.ModelServerTimeout,
		},
		ProposalTemperature: 0.3,
		FaceMatchLimit:      p.FaceMatchLimit,
	}

	if cfg.LLM.Timeout <= 0 {
		cfg.LLM.Timeout = 45
	}
	if cfg.Vision.Timeout <= 0 {
		cfg.Vision.Timeout = 60
	}
	if cfg.ImageEmbedding.Timeout <= 0 {
		cfg.ImageEmbedding.Timeout = 30
	}
	if cfg.FaceDetection.Timeout <= 0 {
		cfg.FaceDetection.Timeout = 30
	}
	if cfg.FaceMatchLimit <= 0 {
		cfg.FaceMatchLimit = 5
	}

	return cfg
}
