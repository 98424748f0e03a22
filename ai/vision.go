package ai

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/tsudoi-io/tsudoi/asset"
)

// VisionDescriber produces a textual description of an image asset.
type VisionDescriber interface {
	DescribeAsset(ctx context.Context, info *asset.Info) (string, error)
	ModelName() string
}

const visionPrompt = "この画像に写っている場面を日本語で簡潔に説明してください。場所、人数、雰囲気、活動内容に触れてください。"

type visionDescriber struct {
	client  *openai.Client
	model   string
	timeout int
}

// NewVisionDescriber creates a VisionDescriber backed by an OpenAI-compatible
// multimodal endpoint such as a vLLM-served Qwen VL deployment.
func NewVisionDescriber(cfg VisionConfig) (VisionDescriber, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("vision base url is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.BaseURL
	clientConfig.HTTPClient = newHTTPClient()

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60
	}

	return &visionDescriber{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		timeout: timeout,
	}, nil
}

func (v *visionDescriber) DescribeAsset(ctx context.Context, info *asset.Info) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(v.timeout)*time.Second)
	defer cancel()

	startTime := time.Now()

	resp, err := v.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: v.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: visionPrompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: info.StorageURI},
					},
				},
			},
		},
	})
	if err != nil {
		slog.Error("VLM: describe request failed",
			slog.String("asset", info.Asset.ID),
			slog.Any("error", err))
		return "", errors.Wrapf(ErrModelInvocation, "vision describe: %v", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.Wrap(ErrModelInvocation, "empty response from vision model")
	}

	slog.Debug("VLM: asset described",
		slog.String("asset", info.Asset.ID),
		slog.Int64("duration_ms", time.Since(startTime).Milliseconds()),
	)

	return resp.Choices[0].Message.Content, nil
}

func (v *visionDescriber) ModelName() string {
	return v.model
}
