package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// Cloud API defaults.
const (
	DefaultGraphVersion   = "v18.0"
	DefaultRequestTimeout = 10 * time.Second
	DefaultMaxAttempts    = 3
)

// graphBaseURL is the Facebook Graph API endpoint root.
const graphBaseURL = "https://graph.facebook.com"

// CloudAPIOpts holds configuration options for the WhatsApp Cloud API
// client.
type CloudAPIOpts struct {
	Token        string
	PhoneID      string
	GraphVersion string
	BaseURL      string
	HTTPClient   *http.Client
	MaxAttempts  int
}

// CloudAPIOption defines a configuration option for the Cloud API
// client.
type CloudAPIOption func(*CloudAPIOpts)

// WithToken sets the Cloud API bearer token.
func WithToken(token string) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.Token = token }
}

// WithPhoneID sets the sending phone number ID.
func WithPhoneID(id string) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.PhoneID = id }
}

// WithGraphVersion overrides the Graph API version.
func WithGraphVersion(v string) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.GraphVersion = v }
}

// WithBaseURL overrides the Graph API endpoint, used in tests.
func WithBaseURL(url string) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.BaseURL = url }
}

// WithHTTPClient injects the HTTP client.
func WithHTTPClient(c *http.Client) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.HTTPClient = c }
}

// WithMaxAttempts sets how many delivery attempts are made before
// giving up.
func WithMaxAttempts(n int) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.MaxAttempts = n }
}

// CloudAPIService implements Service against the WhatsApp Cloud API.
type CloudAPIService struct {
	client      *http.Client
	baseURL     string
	token       string
	maxAttempts int
}

// textPayload is the Cloud API text-message request body.
type textPayload struct {
	MessagingProduct string      `json:"messaging_product"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Text             textContent `json:"text"`
}

type textContent struct {
	Body string `json:"body"`
}

// NewCloudAPIService creates a Cloud API client. Options fall back to
// the WHATSAPP_TOKEN, WHATSAPP_PHONE_ID and FB_GRAPH_VERSION
// environment variables.
func NewCloudAPIService(opts ...CloudAPIOption) (*CloudAPIService, error) {
	var cfg CloudAPIOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv("WHATSAPP_TOKEN")
	}
	if cfg.PhoneID == "" {
		cfg.PhoneID = os.Getenv("WHATSAPP_PHONE_ID")
	}
	if cfg.GraphVersion == "" {
		cfg.GraphVersion = os.Getenv("FB_GRAPH_VERSION")
	}
	if cfg.GraphVersion == "" {
		cfg.GraphVersion = DefaultGraphVersion
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = graphBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}

	if cfg.Token == "" {
		return nil, fmt.Errorf("whatsapp token must be provided")
	}
	if cfg.PhoneID == "" {
		return nil, fmt.Errorf("whatsapp phone number ID must be provided")
	}

	return &CloudAPIService{
		client:      cfg.HTTPClient,
		baseURL:     fmt.Sprintf("%s/%s/%s", cfg.BaseURL, cfg.GraphVersion, cfg.PhoneID),
		token:       cfg.Token,
		maxAttempts: cfg.MaxAttempts,
	}, nil
}

// ValidateAndCanonicalizeRecipient validates a WhatsApp phone number by
// removing all non-numeric characters.
func (s *CloudAPIService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

// SendMessage sends a text message, retrying on rate limiting and
// server errors with exponential backoff.
func (s *CloudAPIService) SendMessage(ctx context.Context, to string, body string) error {
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("CloudAPIService.SendMessage validation error", "error", err, "to", to)
		return err
	}

	payload, err := json.Marshal(textPayload{
		MessagingProduct: "whatsapp",
		To:               canonicalTo,
		Type:             "text",
		Text:             textContent{Body: body},
	})
	if err != nil {
		return fmt.Errorf("marshaling message payload: %w", err)
	}

	url := s.baseURL + "/messages"
	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(1<<(attempt-1)) * time.Second):
			}
		}

		status, respBody, err := s.post(ctx, url, payload)
		if err != nil {
			lastErr = err
			slog.Warn("CloudAPIService.SendMessage request failed", "error", err, "attempt", attempt+1)
			continue
		}
		if status == http.StatusTooManyRequests || status >= 500 {
			lastErr = fmt.Errorf("whatsapp API transient error: status=%d body=%s", status, respBody)
			slog.Warn("CloudAPIService.SendMessage transient error", "status", status, "attempt", attempt+1)
			continue
		}
		if status < 200 || status >= 300 {
			slog.Error("CloudAPIService.SendMessage non-OK response", "status", status, "body", respBody)
			return fmt.Errorf("whatsapp API error: status=%d body=%s", status, respBody)
		}

		slog.Debug("CloudAPIService.SendMessage succeeded", "to", canonicalTo)
		return nil
	}

	return fmt.Errorf("whatsapp API failed after %d attempts: %w", s.maxAttempts, lastErr)
}

func (s *CloudAPIService) post(ctx context.Context, url string, payload []byte) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, string(respBody), nil
}
