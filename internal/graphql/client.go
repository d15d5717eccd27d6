package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

// ErrNoData is returned when a response carries neither data nor errors, and wrapped
// by ResponseError when it carries only errors.
var ErrNoData = errors.New("graphql response has no data")

type Options struct {
	Endpoint         string
	UserAgent        string
	Timeout          time.Duration
	CloudflareBypass bool
}

type Client struct {
	http     *resty.Client
	endpoint string
	logger   *slog.Logger
}

type Error struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// ResponseError is a GraphQL response that returned errors and no data.
type ResponseError struct {
	Operation string
	Errors    []Error
}

func (e *ResponseError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Message)
	}
	return fmt.Sprintf("graphql %s: %s", e.Operation, strings.Join(msgs, "; "))
}

func (e *ResponseError) Unwrap() error {
	return ErrNoData
}

type request struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []Error         `json:"errors"`
}

func New(opts Options, logger *slog.Logger) *Client {
	client := resty.New()
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("Accept", "application/json")
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	return &Client{
		http:     client,
		endpoint: opts.Endpoint,
		logger:   logger.With("component", "graphql"),
	}
}

// Query posts one named operation and decodes the data member into out.
// Partial errors alongside data are logged and the data is used.
func (c *Client) Query(ctx context.Context, name, query string, variables map[string]any, out any) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(request{OperationName: name, Query: query, Variables: variables}).
		Post(c.endpoint)
	if err != nil {
		return fmt.Errorf("graphql %s: %w", name, err)
	}
	if res.IsError() {
		return fmt.Errorf("graphql %s: unexpected status %d", name, res.StatusCode())
	}

	var env envelope
	if err := json.Unmarshal(res.Body(), &env); err != nil {
		return fmt.Errorf("graphql %s: failed to decode response: %w", name, err)
	}

	hasData := len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null"))

	if len(env.Errors) > 0 {
		if !hasData {
			return &ResponseError{Operation: name, Errors: env.Errors}
		}
		c.logger.Warn("partial graphql errors", "operation", name, "errors", len(env.Errors), "first", env.Errors[0].Message)
	}

	if !hasData {
		return fmt.Errorf("graphql %s: %w", name, ErrNoData)
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("graphql %s: failed to decode data: %w", name, err)
	}

	return nil
}
