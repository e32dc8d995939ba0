package imagegen

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"reelsmith/internal/services/apiclient"
)

const defaultHTTPTimeout = 120 * time.Second

// ErrNoImage reports a response that carried no usable image part.
var ErrNoImage = errors.New("imagegen: response contained no image")

// Config holds the image generation endpoint settings.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Size           string
	TimeoutSeconds int
}

// Image is one generated picture.
type Image struct {
	Data     []byte
	MimeType string
}

// Client calls an OpenAI-compatible image generation endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retry      apiclient.Retrier
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetrier overrides the retry policy.
func WithRetrier(r apiclient.Retrier) Option {
	return func(c *Client) { c.retry = r }
}

// NewClient constructs an image generation client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Size = strings.TrimSpace(cfg.Size)
	client := &Client{
		cfg:        cfg,
		httpClient: apiclient.NewHTTPClient(cfg.TimeoutSeconds, defaultHTTPTimeout),
		retry:      apiclient.NewRetrier(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type generateRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt"`
	Size   string `json:"size,omitempty"`
	N      int    `json:"n"`
}

type generateResponse struct {
	Data []struct {
		B64JSON  string `json:"b64_json"`
		MimeType string `json:"mime_type"`
	} `json:"data"`
	OutputFormat string `json:"output_format"`
	Error        *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate renders prompt and returns the first base64 image part.
func (c *Client) Generate(ctx context.Context, prompt string) (Image, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Image{}, errors.New("imagegen: prompt required")
	}
	if c.cfg.APIKey == "" {
		return Image{}, errors.New("imagegen: api key required")
	}
	req, err := apiclient.JSONRequest(c.cfg.BaseURL, c.cfg.APIKey, generateRequest{
		Model:  c.cfg.Model,
		Prompt: prompt,
		Size:   c.cfg.Size,
		N:      1,
	})
	if err != nil {
		return Image{}, fmt.Errorf("imagegen: %w", err)
	}

	var body []byte
	err = c.retry.Do(ctx, "imagegen", func(ctx context.Context) error {
		resp, err := apiclient.Post(ctx, c.httpClient, req)
		if err != nil {
			return fmt.Errorf("imagegen: %w", err)
		}
		body = resp.Body
		return nil
	})
	if err != nil {
		return Image{}, err
	}
	return decodeImage(body)
}

func decodeImage(body []byte) (Image, error) {
	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Image{}, fmt.Errorf("imagegen: decode response: %w", err)
	}
	if parsed.Error != nil {
		return Image{}, fmt.Errorf("imagegen: api error: %s", strings.TrimSpace(parsed.Error.Message))
	}
	for _, part := range parsed.Data {
		encoded := strings.TrimSpace(part.B64JSON)
		if encoded == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return Image{}, fmt.Errorf("imagegen: decode image part: %w", err)
		}
		if len(data) == 0 {
			continue
		}
		mime := strings.TrimSpace(part.MimeType)
		if mime == "" {
			mime = mimeForFormat(parsed.OutputFormat, data)
		}
		return Image{Data: data, MimeType: mime}, nil
	}
	return Image{}, ErrNoImage
}

func mimeForFormat(format string, data []byte) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	case "png":
		return "image/png"
	}
	return http.DetectContentType(data)
}

// Extension returns a file extension for the image's MIME type.
func (img Image) Extension() string {
	switch img.MimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
