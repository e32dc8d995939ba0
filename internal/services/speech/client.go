package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"reelsmith/internal/services/apiclient"
)

const defaultHTTPTimeout = 120 * time.Second

// ErrEmptyAudio reports a synthesis response without audio bytes.
var ErrEmptyAudio = errors.New("speech: response contained no audio")

// Config holds the speech endpoints.
type Config struct {
	APIKey             string
	SynthesisURL       string
	TranscriptionURL   string
	Model              string
	TranscriptionModel string
	Voice              string
	ResponseFormat     string
	TimeoutSeconds     int
}

// Client synthesizes narration and transcribes reference media.
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

// NewClient constructs a speech client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.ResponseFormat = strings.ToLower(strings.TrimSpace(cfg.ResponseFormat))
	if cfg.ResponseFormat == "" {
		cfg.ResponseFormat = "pcm"
	}
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

// SynthesisRequest describes one narration to voice.
type SynthesisRequest struct {
	Text string
	// Instructions carries the voice profile (pace, tone, accent).
	Instructions string
	// Reference is an optional voice sample the provider may clone.
	Reference []byte
}

// Audio is a synthesized payload; Format is the requested response format
// ("pcm" means raw signed 16-bit little-endian mono at 24 kHz).
type Audio struct {
	Data   []byte
	Format string
}

type synthesisBody struct {
	Model          string `json:"model,omitempty"`
	Input          string `json:"input"`
	Voice          string `json:"voice,omitempty"`
	Instructions   string `json:"instructions,omitempty"`
	ResponseFormat string `json:"response_format"`
	VoiceReference string `json:"voice_reference,omitempty"`
}

// Synthesize voices req.Text. Providers answer either with raw audio bytes
// or with a JSON envelope holding base64 audio; both are accepted.
func (c *Client) Synthesize(ctx context.Context, req SynthesisRequest) (Audio, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Audio{}, errors.New("speech synthesize: text required")
	}
	if c.cfg.APIKey == "" {
		return Audio{}, errors.New("speech synthesize: api key required")
	}
	body := synthesisBody{
		Model:          c.cfg.Model,
		Input:          text,
		Voice:          c.cfg.Voice,
		Instructions:   strings.TrimSpace(req.Instructions),
		ResponseFormat: c.cfg.ResponseFormat,
	}
	if len(req.Reference) > 0 {
		body.VoiceReference = base64.StdEncoding.EncodeToString(req.Reference)
	}
	httpReq, err := apiclient.JSONRequest(c.cfg.SynthesisURL, c.cfg.APIKey, body)
	if err != nil {
		return Audio{}, fmt.Errorf("speech synthesize: %w", err)
	}

	var resp apiclient.Response
	err = c.retry.Do(ctx, "speech synthesize", func(ctx context.Context) error {
		var postErr error
		resp, postErr = apiclient.Post(ctx, c.httpClient, httpReq)
		if postErr != nil {
			return fmt.Errorf("speech synthesize: %w", postErr)
		}
		return nil
	})
	if err != nil {
		return Audio{}, err
	}
	data, err := audioFromResponse(resp)
	if err != nil {
		return Audio{}, err
	}
	return Audio{Data: data, Format: c.cfg.ResponseFormat}, nil
}

func audioFromResponse(resp apiclient.Response) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(resp.ContentType)
	if mediaType != "application/json" {
		if len(resp.Body) == 0 {
			return nil, ErrEmptyAudio
		}
		return resp.Body, nil
	}
	var envelope struct {
		Audio string `json:"audio"`
		Data  string `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return nil, fmt.Errorf("speech synthesize: decode envelope: %w", err)
	}
	encoded := strings.TrimSpace(envelope.Audio)
	if encoded == "" {
		encoded = strings.TrimSpace(envelope.Data)
	}
	if encoded == "" {
		return nil, ErrEmptyAudio
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("speech synthesize: decode audio: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}
	return data, nil
}

// Transcribe uploads media as multipart form data and returns its text.
func (c *Client) Transcribe(ctx context.Context, payload []byte, mimeType, filename string) (string, error) {
	if len(payload) == 0 {
		return "", errors.New("speech transcribe: payload required")
	}
	if c.cfg.APIKey == "" {
		return "", errors.New("speech transcribe: api key required")
	}
	if strings.TrimSpace(filename) == "" {
		filename = "reference"
	}
	if strings.TrimSpace(mimeType) == "" {
		mimeType = "application/octet-stream"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("model", c.cfg.TranscriptionModel); err != nil {
		return "", fmt.Errorf("speech transcribe: %w", err)
	}
	if err := writer.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("speech transcribe: %w", err)
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("speech transcribe: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return "", fmt.Errorf("speech transcribe: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("speech transcribe: %w", err)
	}
	req := apiclient.Request{
		URL:         c.cfg.TranscriptionURL,
		APIKey:      c.cfg.APIKey,
		ContentType: writer.FormDataContentType(),
		Body:        buf.Bytes(),
	}

	var text string
	err = c.retry.Do(ctx, "speech transcribe", func(ctx context.Context) error {
		resp, err := apiclient.Post(ctx, c.httpClient, req)
		if err != nil {
			return fmt.Errorf("speech transcribe: %w", err)
		}
		var parsed struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(resp.Body, &parsed); err != nil {
			return fmt.Errorf("speech transcribe: decode response: %w", err)
		}
		text = strings.TrimSpace(parsed.Text)
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}
