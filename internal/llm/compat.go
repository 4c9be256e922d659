package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	goopenai "github.com/sashabaranov/go-openai"

	"voxchat/internal/session"
)

// Compat streams replies with go-openai. Some local servers only implement
// the subset of the API this client speaks.
type Compat struct {
	client *goopenai.Client
	model  string
	system string
}

func NewCompat(cfg Config) *Compat {
	c := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		c.HTTPClient = cfg.HTTPClient
	}

	return &Compat{
		client: goopenai.NewClientWithConfig(c),
		model:  cfg.Model,
		system: cfg.SystemPrompt,
	}
}

func (c *Compat) StreamChat(ctx context.Context, turns []session.Turn, p session.Params) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stream, err := c.client.CreateChatCompletionStream(ctx, goopenai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    c.messages(turns),
			MaxTokens:   p.MaxTokens,
			Temperature: float32(p.Temperature),
			Stream:      true,
		})
		if err != nil {
			yield("", fmt.Errorf("open chat stream: %w", err))
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", fmt.Errorf("chat stream: %w", err))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if delta := resp.Choices[0].Delta.Content; delta != "" {
				if !yield(delta, nil) {
					return
				}
			}
		}
	}
}

func (c *Compat) messages(turns []session.Turn) []goopenai.ChatCompletionMessage {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(turns)+1)
	if c.system != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: c.system})
	}
	for _, t := range turns {
		role := goopenai.ChatMessageRoleUser
		if t.Role == session.RoleAssistant {
			role = goopenai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: role, Content: t.Content})
	}
	return msgs
}
