package insights

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/medibots/ml-platform/pkg/common/config"
	"github.com/medibots/ml-platform/pkg/gateway/httpclient"
	"github.com/sashabaranov/go-openai"
)

var errNoChoices = errors.New("completion has no choices")

// Prompt is one system plus user message exchange.
type Prompt struct {
	System string
	User   string
}

// Generator produces insight text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt) Result
}

// RemoteGenerator calls an OpenAI compatible chat completions endpoint.
type RemoteGenerator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	attempts    int
	retryBase   time.Duration
}

func NewRemoteGenerator(cfg config.Config) *RemoteGenerator {
	oc := openai.DefaultConfig(cfg.LLMAPIKey)
	oc.BaseURL = strings.TrimRight(cfg.LLMBaseURL, "/")
	oc.HTTPClient = httpclient.New(cfg.InsightTimeout)

	return &RemoteGenerator{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.LLMModelName,
		maxTokens:   cfg.LLMMaxTokens,
		temperature: float32(cfg.LLMTemperature),
		attempts:    cfg.InsightMaxRetries + 1,
		retryBase:   cfg.InsightRetryBase,
	}
}

func (g *RemoteGenerator) Generate(ctx context.Context, prompt Prompt) Result {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.System},
			{Role: openai.ChatMessageRoleUser, Content: prompt.User},
		},
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	}

	var text string
	err := httpclient.Retry(ctx, g.attempts, g.retryBase, func() error {
		resp, err := g.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errNoChoices
		}
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		return failed(classify(ctx, err), err)
	}
	if text == "" {
		return failed(ReasonEmpty, nil)
	}
	return Result{Text: text}
}

func classify(ctx context.Context, err error) Reason {
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, errNoChoices):
		return ReasonEmpty
	case ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.As(err, &apiErr), errors.As(err, &reqErr):
		return ReasonBadStatus
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return ReasonMalformed
	case httpclient.IsRetriable(err):
		return ReasonNetwork
	default:
		return ReasonMalformed
	}
}
