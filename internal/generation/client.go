// Package generation calls the external completion backend that produces
// answer text.
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"

	"github.com/ragkit/ragserver/internal/prompt"
	"github.com/ragkit/ragserver/internal/session"
)

var (
	// ErrUnavailable marks a transient backend failure or timeout; the
	// request may be retried.
	ErrUnavailable = errors.New("generation backend unavailable")
	// ErrProtocol marks a malformed backend response; retrying will not
	// help.
	ErrProtocol = errors.New("malformed generation response")
)

// Client sends assembled prompts to a chat-completion backend. The backend
// is treated as untrusted and possibly slow: every call carries a timeout,
// transient failures are retried a bounded number of times, and malformed
// responses fail fast.
type Client struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	retries int
}

// New creates a Client. retries is the number of additional attempts after
// the first; timeout applies per attempt.
func New(client *openai.Client, model string, timeout time.Duration, retries int) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &Client{
		client:  client,
		model:   model,
		timeout: timeout,
		retries: retries,
	}
}

// Complete generates the answer text for the prompt. Exceeding the per-call
// timeout counts as a transient failure, not a hang.
func (c *Client) Complete(ctx context.Context, p prompt.Prompt) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(p.Turns)+2)
	messages = append(messages, openai.SystemMessage(p.System))
	for _, turn := range p.Turns {
		if turn.Role == session.RoleAnswer {
			messages = append(messages, openai.AssistantMessage(turn.Text))
		} else {
			messages = append(messages, openai.UserMessage(turn.Text))
		}
	}
	messages = append(messages, openai.UserMessage(p.Question))

	var answer string
	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.client.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
			Messages: messages,
			Model:    openai.ChatModel(c.model),
		})
		if err != nil {
			if isRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			return backoff.Permanent(fmt.Errorf("%w: empty choices", ErrProtocol))
		}
		answer = resp.Choices[0].Message.Content
		return nil
	}

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.retries))
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		if errors.Is(err, ErrProtocol) {
			return "", err
		}
		if isRetryable(err) {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return "", err
	}
	return answer, nil
}

// Health verifies the backend is reachable without side effects.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// isRetryable reports whether the error is transient: rate limiting, server
// errors, timeouts, or network failures.
func isRetryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return !errors.Is(err, context.Canceled)
}
