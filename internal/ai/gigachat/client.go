package gigachat

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gromoveveryday/essay-grader/internal/ai"
	"go.uber.org/zap"
)

const (
	defaultOAuthURL = "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"
	defaultAPIURL   = "https://gigachat.devices.sberbank.ru/api/v1"
	defaultModel    = "GigaChat-2"
	defaultScope    = "GIGACHAT_API_PERS"

	// Tokens live ~30 minutes; refresh slightly early to avoid racing expiry.
	tokenExpirySlack = time.Minute
)

// Config describes a GigaChat API client.
type Config struct {
	// Credentials is the base64 authorization key issued by the Sber developer portal.
	Credentials string
	Scope       string
	Model       string
	Temperature float32
	MaxRetries  int
	// InsecureSkipVerify disables TLS certificate verification. The Sber
	// endpoints are signed by the Russian trusted root CA, which is absent
	// from most system stores.
	InsecureSkipVerify bool

	// OAuthURL and APIURL override the production endpoints, primarily for tests.
	OAuthURL string
	APIURL   string
}

// Client talks to the GigaChat chat-completions API and implements ai.Generator.
type Client struct {
	httpClient  *http.Client
	credentials string
	scope       string
	modelName   string
	temperature float32
	maxRetries  int
	oauthURL    string
	apiURL      string
	logger      *zap.Logger

	mu             sync.Mutex
	token          string
	tokenExpiresAt time.Time
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	// ExpiresAt is a unix timestamp in milliseconds.
	ExpiresAt int64 `json:"expires_at"`
}

type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("gigachat api: status %d: %s", e.StatusCode, e.Body)
}

// New creates a GigaChat client. The credentials are required; everything
// else falls back to production defaults.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	credentials := strings.TrimSpace(cfg.Credentials)
	if credentials == "" {
		return nil, errors.New("gigachat credentials are required")
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	transport := http.DefaultTransport
	if cfg.InsecureSkipVerify {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	scope := strings.TrimSpace(cfg.Scope)
	if scope == "" {
		scope = defaultScope
	}

	oauthURL := strings.TrimSpace(cfg.OAuthURL)
	if oauthURL == "" {
		oauthURL = defaultOAuthURL
	}

	apiURL := strings.TrimSpace(strings.TrimSuffix(cfg.APIURL, "/"))
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	return &Client{
		httpClient:  &http.Client{Transport: transport},
		credentials: credentials,
		scope:       scope,
		modelName:   model,
		temperature: cfg.Temperature,
		maxRetries:  cfg.MaxRetries,
		oauthURL:    oauthURL,
		apiURL:      apiURL,
		logger:      logger,
	}, nil
}

// Generate sends the two-part prompt to GigaChat and returns the completion text.
// Temporary API errors (rate limits, 5xx, expired tokens) are retried with backoff.
func (c *Client) Generate(ctx context.Context, system, user string) (string, error) {
	if c == nil {
		return "", errors.New("gigachat client is not initialized")
	}

	user = strings.TrimSpace(user)
	if user == "" {
		return "", errors.New("prompt must not be empty")
	}

	return ai.WithRetries(ctx, c.logger, c.maxRetries, c.retryable, func() (string, error) {
		token, err := c.accessToken(ctx)
		if err != nil {
			return "", err
		}
		return c.complete(ctx, token, system, user)
	})
}

func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.modelName
}

// retryable reports whether the call should be repeated. An unauthorized
// response invalidates the cached token so the next attempt fetches a fresh one.
func (c *Client) retryable(err error) bool {
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		return false
	}

	if apiErr.StatusCode == http.StatusUnauthorized {
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		return true
	}

	return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiresAt.Add(-tokenExpirySlack)) {
		return c.token, nil
	}

	form := url.Values{"scope": {c.scope}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.oauthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build oauth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+c.credentials)
	req.Header.Set("RqUID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("oauth request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read oauth response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &apiError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("parse oauth response: %w", err)
	}
	if token.AccessToken == "" {
		return "", errors.New("oauth response contains no access token")
	}

	c.token = token.AccessToken
	c.tokenExpiresAt = time.UnixMilli(token.ExpiresAt)
	c.logger.Debug("obtained gigachat access token", zap.Time("expires_at", c.tokenExpiresAt))

	return c.token, nil
}

func (c *Client) complete(ctx context.Context, token, system, user string) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if system = strings.TrimSpace(system); system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	payload, err := json.Marshal(chatRequest{
		Model:       c.modelName,
		Messages:    messages,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &apiError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return "", fmt.Errorf("parse chat response: %w", err)
	}

	if len(chat.Choices) == 0 {
		return "", errors.New("gigachat returned no choices")
	}

	output := strings.TrimSpace(chat.Choices[0].Message.Content)
	if output == "" {
		return "", errors.New("gigachat returned empty completion")
	}

	return output, nil
}
