package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/tsudoi-io/tsudoi/asset"
)

// ImageEmbedder produces a whole-image embedding for an asset.
type ImageEmbedder interface {
	EmbedAsset(ctx context.Context, info *asset.Info) ([]float32, error)
	ModelName() string
}

type imageEmbedder struct {
	endpoint   string
	model      string
	httpClient *http.Client
}

// NewImageEmbedder creates an ImageEmbedder talking to a CLIP-style model
// server over its JSON API.
func NewImageEmbedder(cfg ModelServerConfig) (ImageEmbedder, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("image embedding base url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30
	}

	return &imageEmbedder{
		endpoint: strings.TrimRight(cfg.BaseURL, "/"),
		model:    cfg.Model,
		httpClient: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
	}, nil
}

type embedRequest struct {
	Model       string `json:"model"`
	AssetURI    string `json:"assetUri"`
	ContentType string `json:"contentType"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (e *imageEmbedder) EmbedAsset(ctx context.Context, info *asset.Info) ([]float32, error) {
	payload, err := json.Marshal(embedRequest{
		Model:       e.model,
		AssetURI:    info.StorageURI,
		ContentType: info.Asset.ContentType,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal embed request")
	}

	startTime := time.Now()
	var parsed embedResponse
	if err := postJSON(ctx, e.httpClient, e.endpoint+"/v1/embeddings/image", payload, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Embedding) == 0 {
		return nil, errors.Wrap(ErrModelInvocation, "image embedding server returned an empty vector")
	}

	slog.Debug("embedding: image embedded",
		slog.String("asset", info.Asset.ID),
		slog.Int("dimensions", len(parsed.Embedding)),
		slog.Int64("duration_ms", time.Since(startTime).Milliseconds()),
	)

	return parsed.Embedding, nil
}

func (e *imageEmbedder) ModelName() string {
	return e.model
}

// postJSON posts the payload and decodes the JSON response body into out.
// Non-2xx responses and transport failures wrap ErrModelInvocation.
func postJSON(ctx context.Context, client *http.Client, url string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "failed to build model server request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(ErrModelInvocation, "model server request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(ErrModelInvocation, "model server response: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Wrapf(ErrModelInvocation, "model server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(ErrModelInvocation, "model server returned malformed JSON: %v", err)
	}

	return nil
}
