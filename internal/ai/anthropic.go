package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const anthropicDefaultMaxTokens = 1024

// AnthropicClient runs chat requests through the Anthropic Messages API.
// System messages are sent as the request's system blocks.
type AnthropicClient struct {
	client  sdk.Client
	limiter *rate.Limiter
}

// NewAnthropicClient builds a client. An empty apiKey falls back to the
// SDK's ANTHROPIC_API_KEY lookup. Retries are left to the SDK.
func NewAnthropicClient(apiKey string, httpTimeout time.Duration, retryMax int, opts ...option.RequestOption) *AnthropicClient {
	base := []option.RequestOption{option.WithMaxRetries(max(retryMax-1, 0))}
	if apiKey != "" {
		base = append(base, option.WithAPIKey(apiKey))
	}
	if httpTimeout > 0 {
		base = append(base, option.WithRequestTimeout(httpTimeout))
	}
	return &AnthropicClient{client: sdk.NewClient(append(base, opts...)...)}
}

// SetRateLimit paces outgoing requests. rps <= 0 disables pacing.
func (c *AnthropicClient) SetRateLimit(rps float64) { c.limiter = newLimiter(rps) }

func (c *AnthropicClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(strings.TrimPrefix(req.Model, "anthropic/")),
		MaxTokens: int64(req.MaxTokens),
	}
	if params.MaxTokens <= 0 {
		params.MaxTokens = anthropicDefaultMaxTokens
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}
	var system []string
	for _, m := range req.Messages {
		block := sdk.NewTextBlock(m.Content)
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(block))
		default:
			params.Messages = append(params.Messages, sdk.NewUserMessage(block))
		}
	}
	if len(params.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	if len(system) > 0 {
		params.System = []sdk.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}

	if err := waitLimiter(ctx, c.limiter); err != nil {
		return nil, err
	}
	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyAnthropicError(err)
	}

	var text strings.Builder
	for _, b := range msg.Content {
		if b.Type == "text" {
			text.WriteString(b.Text)
		}
	}
	in, out := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	return &GenerateResponse{
		ID:      msg.ID,
		Choices: []Choice{{Message: Message{Role: RoleAssistant, Content: text.String()}}},
		Usage:   Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
	}, nil
}

// classifyAnthropicError maps SDK errors onto the package's typed errors.
func classifyAnthropicError(err error) error {
	var sdkErr *sdk.Error
	if !errors.As(err, &sdkErr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return eris.Wrap(err, "anthropic: create message")
		}
		return &UnreachableError{Host: "api.anthropic.com", Err: err}
	}
	apiErr := &APIError{StatusCode: sdkErr.StatusCode}
	var body struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal([]byte(sdkErr.RawJSON()), &body) == nil {
		apiErr.Code = body.Error.Type
		apiErr.Message = body.Error.Message
	}
	h := http.Header{}
	if sdkErr.Response != nil {
		h = sdkErr.Response.Header
		apiErr.RequestID = extractRequestID(h)
	}
	if apiErr.Message == "" {
		apiErr.Message = sdkErr.Error()
	}
	if apiErr.Code == "not_found_error" {
		return &ModelNotFoundError{APIError: apiErr}
	}
	return classifyAPIError(apiErr, h)
}
