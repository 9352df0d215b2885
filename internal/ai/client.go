// Package ai wraps the OpenRouter chat-completions API. The service treats
// the model as an opaque, slow, fallible black box: callers bound every call
// with a context deadline and decide what a failure means for billing.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/happyypeet/vibe-guide-demo-total/internal/models"
)

const (
	maxRetries   = 3
	initialDelay = 1 * time.Second

	questionsMaxTokens = 1000
	documentMaxTokens  = 3000
	temperature        = 0.7
)

type Client struct {
	apiKey  string
	baseURL string
	model   string
	siteURL string
	client  *http.Client
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func NewClient(apiKey, baseURL, model, siteURL string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		siteURL: siteURL,
		client:  &http.Client{},
	}
}

// Complete sends a single-turn prompt and returns the model's text. Retries
// with exponential backoff on 429 and 5xx; the caller's context bounds the
// whole exchange including retries.
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("completion API key not set")
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * initialDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, retryable, err := c.doRequest(ctx, body)
		if err == nil {
			return text, nil
		}
		if !retryable {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("completion failed after %d attempts: %w", maxRetries, lastErr)
}

func (c *Client) doRequest(ctx context.Context, body []byte) (text string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", c.siteURL)
	req.Header.Set("X-Title", "VibeGuide")

	resp, err := c.client.Do(req)
	if err != nil {
		// Transport errors include context cancellation; let the caller's
		// deadline stop the retry loop.
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		return "", true, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, err
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		msg := string(data)
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retryable, fmt.Errorf("completion API status %d: %s", resp.StatusCode, msg)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", false, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", false, fmt.Errorf("completion API returned no choices")
	}
	return parsed.Choices[0].Message.Content, false, nil
}

// GenerateQuestions asks for 3-5 clarifying questions about a project
// description and parses them out of the free-form response.
func (c *Client) GenerateQuestions(ctx context.Context, description string) ([]string, error) {
	text, err := c.Complete(ctx, questionsPrompt(description), questionsMaxTokens)
	if err != nil {
		return nil, err
	}
	questions := ParseQuestions(text)
	if len(questions) == 0 {
		return nil, fmt.Errorf("no questions found in model output")
	}
	return questions, nil
}

// GenerateDocuments produces all five development documents concurrently.
// Any single failure cancels the remaining calls and fails the whole run,
// so a partial set is never returned.
func (c *Client) GenerateDocuments(ctx context.Context, description, requirements string) (*models.DocumentSet, error) {
	var docs models.DocumentSet

	targets := []struct {
		out    *string
		prompt string
	}{
		{&docs.UserJourneyMap, userJourneyPrompt(description, requirements)},
		{&docs.ProductRequirements, prdPrompt(description, requirements)},
		{&docs.FrontendDesign, frontendPrompt(description, requirements)},
		{&docs.BackendDesign, backendPrompt(description, requirements)},
		{&docs.DatabaseDesign, databasePrompt(description, requirements)},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range targets {
		t := t
		g.Go(func() error {
			text, err := c.Complete(gctx, t.prompt, documentMaxTokens)
			if err != nil {
				return err
			}
			*t.out = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &docs, nil
}
