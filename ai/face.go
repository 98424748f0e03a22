package ai

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/tsudoi-io/tsudoi/asset"
	"github.com/tsudoi-io/tsudoi/store"
)

// DetectedFace is one face found in an asset, with its location and
// embedding.
type DetectedFace struct {
	BBox      store.BoundingBox `json:"bbox"`
	Embedding []float32         `json:"embedding"`
}

// FaceDetector finds faces in an asset and embeds each one.
type FaceDetector interface {
	DetectAndEmbed(ctx context.Context, info *asset.Info) ([]DetectedFace, error)
}

type faceDetector struct {
	endpoint   string
	httpClient *http.Client
}

// NewFaceDetector creates a FaceDetector talking to an ArcFace-style model
// server over its JSON API.
func NewFaceDetector(cfg ModelServerConfig) (FaceDetector, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("face detection base url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30
	}

	return &faceDetector{
		endpoint: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
	}, nil
}

type detectRequest struct {
	AssetURI    string `json:"assetUri"`
	ContentType string `json:"contentType"`
}

type detectResponse struct {
	Faces []DetectedFace `json:"faces"`
}

func (f *faceDetector) DetectAndEmbed(ctx context.Context, info *asset.Info) ([]DetectedFace, error) {
	payload, err := json.Marshal(detectRequest{
		AssetURI:    info.StorageURI,
		ContentType: info.Asset.ContentType,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal detect request")
	}

	startTime := time.Now()
	var parsed detectResponse
	if err := postJSON(ctx, f.httpClient, f.endpoint+"/v1/faces/detect", payload, &parsed); err != nil {
		return nil, err
	}

	slog.Debug("embedding: faces detected",
		slog.String("asset", info.Asset.ID),
		slog.Int("faces", len(parsed.Faces)),
		slog.Int64("duration_ms", time.Since(startTime).Milliseconds()),
	)

	return parsed.Faces, nil
}
