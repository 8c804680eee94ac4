// Package llmtest provides a scripted chat model for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Responder answers one rendered prompt.
type Responder func(prompt string) (string, error)

// ChatModel replies through Respond and records every prompt it saw.
type ChatModel struct {
	Respond Responder
	Delay   time.Duration

	mu      sync.Mutex
	prompts []string
}

var _ model.ChatModel = (*ChatModel)(nil)

// Reply answers every prompt with text.
func Reply(text string) *ChatModel {
	return &ChatModel{Respond: func(string) (string, error) { return text, nil }}
}

// ByKeyword answers with the first reply whose key occurs in the prompt.
func ByKeyword(replies map[string]string, fallback string) *ChatModel {
	return &ChatModel{Respond: func(prompt string) (string, error) {
		for key, reply := range replies {
			if strings.Contains(prompt, key) {
				return reply, nil
			}
		}
		return fallback, nil
	}}
}

func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	var b strings.Builder
	for _, msg := range input {
		b.WriteString(msg.Content)
	}
	prompt := b.String()

	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	text, err := m.Respond(prompt)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(text, nil), nil
}

func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *ChatModel) BindTools(_ []*schema.ToolInfo) error { return nil }

func (m *ChatModel) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
