// Package assist turns a free-text layout description into surface records
// through an OpenAI-compatible chat completion endpoint.
package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/inamate/projmap/internal/geom"
	"github.com/inamate/projmap/internal/surface"
	"github.com/inamate/projmap/internal/typeid"
)

var (
	ErrNoCredentials     = errors.New("assistant api key is not configured")
	ErrMalformedResponse = errors.New("assistant returned an unusable layout")
	ErrEmptyPrompt       = errors.New("layout description is empty")
)

const (
	DefaultBaseURL = "https://api.openai.com"
	DefaultModel   = "gpt-4o-mini"
	maxCount       = 32
	maxResponse    = 1 << 20
)

const systemPrompt = `You design projection-mapping layouts. Reply with a single JSON object and nothing else:
{"shapes":[{"name":string,"points":[{"x":number,"y":number}],"color":"#rrggbb"}]}
Coordinates are normalized: x and y run from 0 to 1, origin top-left. Every shape needs at least 3 points, listed in drawing order.`

// Client calls the chat completion endpoint. The zero value is unusable
// only for want of an APIKey.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client
}

type Request struct {
	Prompt string
	// Count is a hint for how many shapes to produce; 0 leaves it to the
	// model.
	Count int
}

// Result holds the validated records, ready for project.ApplyLayout.
// ID tags the generated layout in logs and responses.
type Result struct {
	ID     string
	Shapes []surface.Surface
	Model  string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Temperature    float64         `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type layoutRecord struct {
	Name   string       `json:"name"`
	Points []geom.Point `json:"points"`
	Color  string       `json:"color"`
}

// Generate asks the model for a layout. Any failure means no records: the
// caller adds nothing.
func (c *Client) Generate(ctx context.Context, req Request) (Result, error) {
	if c.APIKey == "" {
		return Result{}, ErrNoCredentials
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return Result{}, ErrEmptyPrompt
	}
	if req.Count > 0 {
		prompt = fmt.Sprintf("%s\n\nProduce exactly %d shapes.", prompt, min(req.Count, maxCount))
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model(),
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
		Temperature:    0.4,
	})
	if err != nil {
		return Result{}, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL()+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("assistant request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return Result{}, fmt.Errorf("read assistant response: %w", err)
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		if resp.StatusCode != http.StatusOK {
			return Result{}, fmt.Errorf("assistant returned %s", resp.Status)
		}
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.StatusCode != http.StatusOK {
		if cr.Error != nil && cr.Error.Message != "" {
			return Result{}, fmt.Errorf("assistant returned %s: %s", resp.Status, cr.Error.Message)
		}
		return Result{}, fmt.Errorf("assistant returned %s", resp.Status)
	}
	if len(cr.Choices) == 0 {
		return Result{}, fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}

	shapes, err := ParseLayout(cr.Choices[0].Message.Content)
	if err != nil {
		return Result{}, err
	}
	id := typeid.NewLayoutID()
	slog.Info("assistant layout generated", "layout", id, "model", cr.Model, "shapes", len(shapes), "duration", time.Since(start))
	return Result{ID: id, Shapes: shapes, Model: cr.Model}, nil
}

// ParseLayout reads model output: a {"shapes":[...]} object or a bare
// array, optionally inside a markdown code fence. Every record must have
// at least 3 points; coordinates are clamped into [0,1].
func ParseLayout(content string) ([]surface.Surface, error) {
	content = stripFence(content)

	var records []layoutRecord
	if strings.HasPrefix(content, "[") {
		if err := json.Unmarshal([]byte(content), &records); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	} else {
		var wrapped struct {
			Shapes *[]layoutRecord `json:"shapes"`
		}
		if err := json.Unmarshal([]byte(content), &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if wrapped.Shapes == nil {
			return nil, fmt.Errorf("%w: missing shapes", ErrMalformedResponse)
		}
		records = *wrapped.Shapes
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no shapes", ErrMalformedResponse)
	}

	out := make([]surface.Surface, 0, len(records))
	for i, r := range records {
		if len(r.Points) < 3 {
			return nil, fmt.Errorf("%w: shape %d has %d points", ErrMalformedResponse, i, len(r.Points))
		}
		pts := make([]geom.Point, len(r.Points))
		for j, p := range r.Points {
			pts[j] = geom.ClampPoint(p)
		}
		sf := surface.Surface{Name: strings.TrimSpace(r.Name), Points: pts}
		if strings.HasPrefix(r.Color, "#") {
			sf.Style.Color = r.Color
		}
		out = append(out, sf)
	}
	return out, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the info string, e.g. ```json
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func (c *Client) baseURL() string {
	if c.BaseURL == "" {
		return DefaultBaseURL
	}
	return strings.TrimSuffix(c.BaseURL, "/")
}

func (c *Client) model() string {
	if c.Model == "" {
		return DefaultModel
	}
	return c.Model
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP == nil {
		return &http.Client{Timeout: 2 * time.Minute}
	}
	return c.HTTP
}
