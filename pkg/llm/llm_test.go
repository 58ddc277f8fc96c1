package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type mockModel struct {
	response string
	err      error
	delay    time.Duration
	jsonMode bool
}

func (m *mockModel) GenerateContent(ctx context.Context, _ []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}
	m.jsonMode = opts.JSONMode

	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.delay):
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.response}}}, nil
}

func (m *mockModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestGenerateJSON(t *testing.T) {
	model := &mockModel{response: "```json\n{\"ok\":true}\n```"}
	c := New(model, time.Second)

	out, err := c.GenerateJSON(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.True(t, model.jsonMode)
}

func TestGenerateError(t *testing.T) {
	c := New(&mockModel{err: errors.New("boom")}, time.Second)

	_, err := c.Generate(context.Background(), "prompt")
	assert.ErrorContains(t, err, "boom")
}

func TestGenerateTimeout(t *testing.T) {
	c := New(&mockModel{response: "late", delay: time.Second}, 20*time.Millisecond)

	_, err := c.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
