package backend

import (
	"context"

	"github.com/reperto-cdss-client/internal/domain"
)

// API is the full backend capability surface. Both the plain Client and the
// circuit-breaker wrapped ResilientClient satisfy it.
type API interface {
	Signup(ctx context.Context, name, email, password string) error
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Me(ctx context.Context) (*domain.Profile, error)
	ListCases(ctx context.Context) ([]domain.Case, error)
	SaveCase(ctx context.Context, cs domain.Case) (*domain.Case, error)
	ParseText(ctx context.Context, text string) (*domain.AnalysisResult, error)
	Analyze(ctx context.Context, text string) (*domain.AnalysisResult, error)
	Score(ctx context.Context, rubricPaths []string) ([]domain.ScoredRemedy, error)
}

var (
	_ API = (*Client)(nil)
	_ API = (*ResilientClient)(nil)
)
