package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the main server.
type Profile struct {
	// Text generation configuration (OpenAI-compatible protocol).
	LLMProvider string // Provider identifier: openai, deepseek, siliconflow, ollama, vllm
	LLMAPIKey   string
	LLMBaseURL  string
	LLMModel    string
	LLMTimeout  int // request timeout in seconds (default: 45)

	// Vision-language model configuration (OpenAI-compatible protocol).
	VisionAPIKey  string
	VisionBaseURL string
	VisionModel   string
	VisionTimeout int // request timeout in seconds (default: 60)

	// Image/face embedding model servers (bespoke JSON APIs).
	ImageEmbeddingBaseURL string
	ImageEmbeddingModel   string
	FaceEmbeddingBaseURL  string
	ModelServerTimeout    int // request timeout in seconds (default: 30)

	// Object storage configuration.
	StorageBucket       string
	StorageRegion       string
	StorageEndpoint     string // optional, for MinIO and other S3-compatible services
	StorageUsePathStyle bool

	Mode        string
	Addr        string
	Data        string
	Driver      string
	DSN         string
	Version     string
	InstanceURL string
	Port        int

	// Orchestration tunables.
	FaceMatchLimit int // default candidates per detected face
}

// Provider default configurations for the text LLM.
// Used when LLM_BASE_URL is not explicitly set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-72B-Instruct",
	},
	"ollama": {
		BaseURL: "http://localhost:11434/v1",
		Model:   "gpt-oss:20b",
	},
	"vllm": {
		BaseURL: "http://localhost:8000/v1",
		Model:   "gpt-oss-20b",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if the text model endpoint is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.LLMBaseURL != ""
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.LLMProvider = getEnvOrDefault("TSUDOI_AI_LLM_PROVIDER", "vllm")
	p.LLMAPIKey = getEnvOrDefault("TSUDOI_AI_LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("TSUDOI_AI_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("TSUDOI_AI_LLM_MODEL", "")
	p.LLMTimeout = getEnvOrDefaultInt("TSUDOI_AI_LLM_TIMEOUT_SECONDS", 45)

	if p.LLMProvider != "" {
		if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
			slog.Warn("Unknown LLM provider, using default: vllm", "provider", p.LLMProvider)
			p.LLMProvider = "vllm"
		}
	}
	if p.LLMBaseURL == "" || p.LLMModel == "" {
		if defaults, ok := llmProviderDefaults[p.LLMProvider]; ok {
			if p.LLMBaseURL == "" {
				p.LLMBaseURL = defaults.BaseURL
			}
			if p.LLMModel == "" {
				p.LLMModel = defaults.Model
			}
		}
	}

	p.VisionAPIKey = getEnvOrDefault("TSUDOI_AI_VISION_API_KEY", "")
	p.VisionBaseURL = getEnvOrDefault("TSUDOI_AI_VISION_BASE_URL", "http://localhost:8001/v1")
	p.VisionModel = getEnvOrDefault("TSUDOI_AI_VISION_MODEL", "qwen2.5-vl-32b")
	p.VisionTimeout = getEnvOrDefaultInt("TSUDOI_AI_VISION_TIMEOUT_SECONDS", 60)

	p.ImageEmbeddingBaseURL = getEnvOrDefault("TSUDOI_AI_IMAGE_EMBEDDING_BASE_URL", "http://localhost:8002")
	p.ImageEmbeddingModel = getEnvOrDefault("TSUDOI_AI_IMAGE_EMBEDDING_MODEL", "clip-vit-l-14")
	p.FaceEmbeddingBaseURL = getEnvOrDefault("TSUDOI_AI_FACE_EMBEDDING_BASE_URL", "http://localhost:8003")
	p.ModelServerTimeout = getEnvOrDefaultInt("TSUDOI_AI_MODEL_SERVER_TIMEOUT_SECONDS", 30)

	p.StorageBucket = getEnvOrDefault("TSUDOI_STORAGE_BUCKET", "tsudoi-media")
	p.StorageRegion = getEnvOrDefault("TSUDOI_STORAGE_REGION", "ap-northeast-1")
	p.StorageEndpoint = getEnvOrDefault("TSUDOI_STORAGE_ENDPOINT", "")
	p.StorageUsePathStyle = getEnvOrDefault("TSUDOI_STORAGE_USE_PATH_STYLE", "false") == "true"

	p.FaceMatchLimit = getEnvOrDefaultInt("TSUDOI_AI_FACE_MATCH_LIMIT", 5)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "postgres" && p.Driver != "sqlite" {
		return errors.Errorf("unsupported database driver %q", p.Driver)
	}

	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn is required for the postgres driver")
	}

	if p.Mode == "prod" && p.Data == "" {
		p.Data = "/var/opt/tsudoi"
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("tsudoi_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	if p.FaceMatchLimit <= 0 {
		p.FaceMatchLimit = 5
	}

	return nil
}
