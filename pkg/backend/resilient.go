package backend

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/reperto-cdss-client/internal/domain"
)

// ResilientClient wraps the backend client with circuit breakers so a
// backend outage fails fast instead of stacking up timed-out requests.
// Auth/case traffic and CDSS traffic trip independently: a broken analysis
// pipeline should not block logins or the case list. Nothing is retried.
type ResilientClient struct {
	client *Client

	coreBreaker *gobreaker.CircuitBreaker
	cdssBreaker *gobreaker.CircuitBreaker
}

// NewResilientClient creates a backend client with circuit breakers.
func NewResilientClient(config Config, tokens TokenSource, logger *logrus.Logger) *ResilientClient {
	if logger == nil {
		logger = logrus.New()
	}

	settings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:        name,
			MaxRequests: 3,
			Interval:    30 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			// Backend 4xx responses are the caller's problem, not a service
			// outage; only transport failures and 5xx count against the breaker.
			IsSuccessful: func(err error) bool {
				if err == nil {
					return true
				}
				var apiErr *domain.APIError
				if errors.As(err, &apiErr) {
					return apiErr.StatusCode < http.StatusInternalServerError
				}
				return domain.IsValidation(err)
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Circuit breaker state changed")
			},
		}
	}

	return &ResilientClient{
		client:      NewClient(config, tokens, logger),
		coreBreaker: gobreaker.NewCircuitBreaker(settings("reperto-core")),
		cdssBreaker: gobreaker.NewCircuitBreaker(settings("reperto-cdss")),
	}
}

// Signup registers a new practitioner account.
func (rc *ResilientClient) Signup(ctx context.Context, name, email, password string) error {
	if err := validateSignup(name, email, password); err != nil {
		return err
	}
	_, err := rc.coreBreaker.Execute(func() (interface{}, error) {
		return nil, rc.client.Signup(ctx, name, email, password)
	})
	return err
}

// Login authenticates and returns the issued token and profile.
func (rc *ResilientClient) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if err := validateLogin(email, password); err != nil {
		return nil, err
	}
	result, err := rc.coreBreaker.Execute(func() (interface{}, error) {
		return rc.client.Login(ctx, email, password)
	})
	if err != nil {
		return nil, err
	}
	return result.(*LoginResult), nil
}

// Me fetches the authenticated practitioner's profile.
func (rc *ResilientClient) Me(ctx context.Context) (*domain.Profile, error) {
	result, err := rc.coreBreaker.Execute(func() (interface{}, error) {
		return rc.client.Me(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.Profile), nil
}

// ListCases fetches the practitioner's saved cases.
func (rc *ResilientClient) ListCases(ctx context.Context) ([]domain.Case, error) {
	result, err := rc.coreBreaker.Execute(func() (interface{}, error) {
		return rc.client.ListCases(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Case), nil
}

// SaveCase persists a case.
func (rc *ResilientClient) SaveCase(ctx context.Context, cs domain.Case) (*domain.Case, error) {
	result, err := rc.coreBreaker.Execute(func() (interface{}, error) {
		return rc.client.SaveCase(ctx, cs)
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.Case), nil
}

// ParseText submits a narrative to the lightweight analysis endpoint.
func (rc *ResilientClient) ParseText(ctx context.Context, text string) (*domain.AnalysisResult, error) {
	return rc.analyzeThrough(ctx, text, rc.client.ParseText)
}

// Analyze submits a narrative to the full CDSS analysis endpoint.
func (rc *ResilientClient) Analyze(ctx context.Context, text string) (*domain.AnalysisResult, error) {
	return rc.analyzeThrough(ctx, text, rc.client.Analyze)
}

func (rc *ResilientClient) analyzeThrough(ctx context.Context, text string, call func(context.Context, string) (*domain.AnalysisResult, error)) (*domain.AnalysisResult, error) {
	result, err := rc.cdssBreaker.Execute(func() (interface{}, error) {
		return call(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.AnalysisResult), nil
}

// Score submits confirmed rubric paths for repertory scoring. An empty
// selection is rejected before touching the breaker.
func (rc *ResilientClient) Score(ctx context.Context, rubricPaths []string) ([]domain.ScoredRemedy, error) {
	if len(rubricPaths) == 0 {
		return nil, domain.ErrEmptySelection
	}
	result, err := rc.cdssBreaker.Execute(func() (interface{}, error) {
		return rc.client.Score(ctx, rubricPaths)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.ScoredRemedy), nil
}
