// Package caption asks a Gemini model for a short title and description of
// an image. Every failure degrades to models.FallbackMetadata.
package caption

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/krishkalaria12/snap-gallery/metrics"
	"github.com/krishkalaria12/snap-gallery/models"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	DefaultModel = "gemini-1.5-flash"

	defaultMIMEType = "image/jpeg"
	requestTimeout  = 30 * time.Second
)

const prompt = "Please provide a short title (5-10 words) and a brief description (1-2 sentences) for this image. " +
	"Format your response as: Title: [title] Description: [description]"

// Describer produces display metadata for image bytes.
type Describer interface {
	Describe(ctx context.Context, data []byte, contentType string) models.ImageMetadata
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string

	HTTPClient *http.Client
}

type Client struct {
	genai   *genai.Client
	model   string
	log     *zap.Logger
	metrics *metrics.Metrics
}

func New(ctx context.Context, cfg Config, log *zap.Logger, m *metrics.Metrics) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("caption: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("caption: create genai client: %w", err)
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Client{genai: client, model: cfg.Model, log: log, metrics: m}, nil
}

func mimeTypeFor(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	return defaultMIMEType
}

// Describe sends the image to the model once and parses its answer.
func (c *Client) Describe(ctx context.Context, data []byte, contentType string) models.ImageMetadata {
	text, err := c.generate(ctx, data, mimeTypeFor(contentType))
	if err != nil {
		c.log.Warn("caption request failed, using fallback", zap.Error(err))
		c.metrics.CaptionFallback("request")
		return models.FallbackMetadata()
	}

	meta, ok := ParseCaption(text)
	if !ok {
		c.log.Warn("caption answer not in expected format, using fallback", zap.String("text", text))
		c.metrics.CaptionFallback("unparsable")
		return models.FallbackMetadata()
	}
	return meta
}

func (c *Client) generate(ctx context.Context, data []byte, mimeType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	defer c.metrics.ObserveStage("caption", time.Now())

	contents := []*genai.Content{{
		Role: string(genai.RoleUser),
		Parts: []*genai.Part{
			{Text: prompt},
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
		},
	}}

	resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", err
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 || content.Parts[0] == nil {
		return "", fmt.Errorf("no parts in first candidate")
	}
	return content.Parts[0].Text, nil
}

// Nop always returns the fallback metadata. It stands in for Client when
// no API key is configured.
type Nop struct{}

func (Nop) Describe(context.Context, []byte, string) models.ImageMetadata {
	return models.FallbackMetadata()
}
