// Package backend implements the HTTP client for the Reperto
// clinical-decision-support backend: one typed method per backend
// capability, bearer-token attachment from local storage, and a fixed
// request timeout. The backend owns all clinical reasoning; this client
// only shapes requests and decodes responses.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/reperto-cdss-client/internal/domain"
)

// TokenSource supplies the bearer token for outgoing requests. It is
// consulted on every request rather than cached, so a logged-out client
// immediately sends unauthenticated requests and the backend rejects them.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Config represents configuration for the backend API client.
type Config struct {
	BaseURL   string        `json:"base_url"`
	Timeout   time.Duration `json:"timeout"`
	RateLimit int           `json:"rate_limit"` // requests per second
}

// Client handles interactions with the Reperto backend REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	tokens     TokenSource
	logger     *logrus.Logger
}

// NewClient creates a new backend API client.
func NewClient(config Config, tokens TokenSource, logger *logrus.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8000"
	}
	if config.Timeout == 0 {
		config.Timeout = 8 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 10
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		tokens:    tokens,
		logger:    logger,
	}
}

// LoginResult is the decoded response of a successful login.
type LoginResult struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	User        domain.Profile `json:"user"`
}

// Signup registers a new practitioner account. Missing fields, a malformed
// email and a short password are rejected locally without a network call.
func (c *Client) Signup(ctx context.Context, name, email, password string) error {
	if err := validateSignup(name, email, password); err != nil {
		return err
	}

	body := map[string]string{"name": name, "email": email, "password": password}
	return c.do(ctx, http.MethodPost, "/auth/signup", body, nil)
}

// Login authenticates with email and password and returns the issued token
// together with the account profile. Storing the token is the caller's job.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if err := validateLogin(email, password); err != nil {
		return nil, err
	}

	var result LoginResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Me fetches the authenticated practitioner's profile.
func (c *Client) Me(ctx context.Context) (*domain.Profile, error) {
	var profile domain.Profile
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListCases fetches the practitioner's saved cases.
func (c *Client) ListCases(ctx context.Context) ([]domain.Case, error) {
	var cases []domain.Case
	if err := c.do(ctx, http.MethodGet, "/cases", nil, &cases); err != nil {
		return nil, err
	}
	return cases, nil
}

// SaveCase persists a case and returns the stored copy with its assigned id.
func (c *Client) SaveCase(ctx context.Context, cs domain.Case) (*domain.Case, error) {
	cs.ID = ""
	var saved domain.Case
	if err := c.do(ctx, http.MethodPost, "/cases", cs, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// parseTextResponse is the wire shape of POST /ai/parse-text.
type parseTextResponse struct {
	Summary string `json:"summary"`
	Risk    string `json:"risk"`
	Rubrics []struct {
		Path       string  `json:"path"`
		Confidence float64 `json:"confidence"`
		Evidence   string  `json:"evidence"`
	} `json:"rubrics"`
}

// ParseText submits a narrative to the lightweight analysis endpoint and
// returns the suggested rubrics with all entries default-selected.
func (c *Client) ParseText(ctx context.Context, text string) (*domain.AnalysisResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyNarrative
	}

	var resp parseTextResponse
	if err := c.do(ctx, http.MethodPost, "/ai/parse-text", map[string]string{"text": text}, &resp); err != nil {
		return nil, err
	}

	result := &domain.AnalysisResult{
		Summary: resp.Summary,
		Risk:    domain.ParseRisk(resp.Risk),
		Rubrics: make([]domain.RubricSuggestion, 0, len(resp.Rubrics)),
	}
	for _, r := range resp.Rubrics {
		result.Rubrics = append(result.Rubrics, domain.RubricSuggestion{
			RubricPath: r.Path,
			Confidence: r.Confidence,
			Rationale:  r.Evidence,
			Selected:   true,
		})
	}
	return result, nil
}

// analyzeResponse is the wire shape of POST /cdss/analyze.
type analyzeResponse struct {
	Result struct {
		Summary string   `json:"summary"`
		Risk    string   `json:"risk"`
		Tokens  []string `json:"tokens"`
		Rubrics []struct {
			Rubric     string   `json:"rubric"`
			Confidence float64  `json:"confidence"`
			Matched    []string `json:"matched"`
			Rationale  string   `json:"rationale"`
		} `json:"rubrics"`
	} `json:"result"`
}

// Analyze submits a narrative to the full CDSS analysis endpoint and
// returns the suggested rubrics with all entries default-selected.
func (c *Client) Analyze(ctx context.Context, text string) (*domain.AnalysisResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyNarrative
	}

	var resp analyzeResponse
	if err := c.do(ctx, http.MethodPost, "/cdss/analyze", map[string]string{"text": text}, &resp); err != nil {
		return nil, err
	}

	result := &domain.AnalysisResult{
		Summary: resp.Result.Summary,
		Risk:    domain.ParseRisk(resp.Result.Risk),
		Tokens:  resp.Result.Tokens,
		Rubrics: make([]domain.RubricSuggestion, 0, len(resp.Result.Rubrics)),
	}
	for _, r := range resp.Result.Rubrics {
		result.Rubrics = append(result.Rubrics, domain.RubricSuggestion{
			RubricPath:    r.Rubric,
			Confidence:    r.Confidence,
			MatchedTokens: r.Matched,
			Rationale:     r.Rationale,
			Selected:      true,
		})
	}
	return result, nil
}

// scoreResponse is the wire shape of POST /cdss/score.
type scoreResponse struct {
	Remedies []domain.ScoredRemedy `json:"remedies"`
}

// Score submits confirmed rubric paths for repertory scoring. The returned
// remedies keep the backend's ranking order. An empty selection is rejected
// locally without a network call.
func (c *Client) Score(ctx context.Context, rubricPaths []string) ([]domain.ScoredRemedy, error) {
	if len(rubricPaths) == 0 {
		return nil, domain.ErrEmptySelection
	}

	var resp scoreResponse
	body := map[string][]string{"rubrics": rubricPaths}
	if err := c.do(ctx, http.MethodPost, "/cdss/score", body, &resp); err != nil {
		return nil, err
	}
	return resp.Remedies, nil
}

// do performs a single request against the backend. No retries: a transport
// failure or timeout surfaces directly to the caller.
func (c *Client) do(ctx context.Context, method, path string, reqBody, out interface{}) error {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait failed: %w", err)
	}

	var body io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Reperto-Client/1.0")
	req.Header.Set("X-Request-ID", requestID)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// Token is re-read from storage for every request.
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to read auth token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.WithFields(logrus.Fields{
		"method":     method,
		"path":       path,
		"request_id": requestID,
	}).Debug("Sending backend request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &domain.APIError{StatusCode: resp.StatusCode, RequestID: requestID}
		var detail struct {
			Detail string `json:"detail"`
		}
		if err := json.Unmarshal(respBody, &detail); err == nil {
			apiErr.Detail = detail.Detail
		}
		c.logger.WithFields(logrus.Fields{
			"status":     resp.StatusCode,
			"path":       path,
			"request_id": requestID,
		}).Debug("Backend request failed")
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse JSON response: %w", err)
		}
	}
	return nil
}

func validateSignup(name, email, password string) error {
	if strings.TrimSpace(name) == "" {
		return domain.ErrMissingName
	}
	if err := validateLogin(email, password); err != nil {
		return err
	}
	if len(password) < 6 {
		return domain.ErrPasswordTooShort
	}
	return nil
}

func validateLogin(email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.ErrMissingEmail
	}
	if !strings.Contains(email, "@") {
		return domain.ErrInvalidEmail
	}
	if password == "" {
		return domain.ErrMissingPassword
	}
	return nil
}
