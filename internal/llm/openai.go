package llm

import (
	"context"
	"fmt"
	"iter"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"voxchat/internal/session"
)

// OpenAI streams replies with the official openai-go client.
type OpenAI struct {
	client openai.Client
	model  string
	system string
}

func NewOpenAI(cfg Config) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		system: cfg.SystemPrompt,
	}
}

func (o *OpenAI) StreamChat(ctx context.Context, turns []session.Turn, p session.Params) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		params := openai.ChatCompletionNewParams{
			Model:       openai.ChatModel(o.model),
			Messages:    o.messages(turns),
			Temperature: openai.Float(p.Temperature),
		}
		if p.MaxTokens > 0 {
			params.MaxTokens = openai.Int(int64(p.MaxTokens))
		}

		stream := o.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				if !yield(delta, nil) {
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			yield("", fmt.Errorf("chat stream: %w", err))
		}
	}
}

func (o *OpenAI) messages(turns []session.Turn) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns)+1)
	if o.system != "" {
		msgs = append(msgs, openai.SystemMessage(o.system))
	}
	for _, t := range turns {
		switch t.Role {
		case session.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(t.Content))
		default:
			msgs = append(msgs, openai.UserMessage(t.Content))
		}
	}
	return msgs
}
