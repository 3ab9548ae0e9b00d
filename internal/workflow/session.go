// Package workflow drives the rubric review pipeline: a narrative is
// analyzed, the suggested rubrics are reviewed and confirmed, the confirmed
// subset is scored, and the ranked remedies are presented and optionally
// saved as a case. The pipeline is a small deterministic state machine; all
// clinical logic lives in the backend.
package workflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/reperto-cdss-client/internal/domain"
	"github.com/reperto-cdss-client/pkg/backend"
)

// State identifies where a session is in the pipeline.
type State string

const (
	StateDrafting  State = "drafting"
	StateAnalyzing State = "analyzing"
	StateReviewing State = "reviewing"
	StateScoring   State = "scoring"
	StateResults   State = "results"
)

// StateError reports an operation attempted in the wrong state. Requests in
// flight are represented as states (Analyzing, Scoring), so this is also the
// single-flight guard: a second submission is refused by state, not by a
// disabled control.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s while session is %s", e.Op, e.State)
}

// Session is one pass through the pipeline. It is driven from a single
// goroutine (UI events and network completions interleave sequentially) and
// is not safe for concurrent use.
type Session struct {
	api    backend.API
	logger *logrus.Logger
	cache  *lru.Cache[string, *domain.AnalysisResult]

	state     State
	narrative string
	analysis  *domain.AnalysisResult
	working   []domain.RubricSuggestion
	confirmed []string
	remedies  []domain.ScoredRemedy
	saving    bool
}

// NewSession creates a session in the Drafting state. cacheSize bounds the
// in-memory cache of analysis results keyed by narrative, so re-analyzing
// identical text is served locally.
func NewSession(api backend.API, logger *logrus.Logger, cacheSize int) (*Session, error) {
	if cacheSize <= 0 {
		cacheSize = 32
	}
	cache, err := lru.New[string, *domain.AnalysisResult](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis cache: %w", err)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Session{
		api:    api,
		logger: logger,
		cache:  cache,
		state:  StateDrafting,
	}, nil
}

// State returns the current pipeline state.
func (s *Session) State() State {
	return s.state
}

// Narrative returns the text submitted for the current analysis.
func (s *Session) Narrative() string {
	return s.narrative
}

// Analysis returns the backend result the review step is working from.
func (s *Session) Analysis() *domain.AnalysisResult {
	return s.analysis
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

// Analyze submits the narrative and, on success, moves the session to
// Reviewing with every suggested rubric selected. On failure the session
// returns to Drafting with nothing retained.
func (s *Session) Analyze(ctx context.Context, text string) error {
	if s.state != StateDrafting {
		return &StateError{Op: "analyze", State: s.state}
	}
	if strings.TrimSpace(text) == "" {
		return domain.ErrEmptyNarrative
	}

	if cached, ok := s.cache.Get(cacheKey(text)); ok {
		s.logger.WithField("rubrics", len(cached.Rubrics)).Debug("Analysis served from cache")
		s.enterReview(text, cached)
		return nil
	}

	s.state = StateAnalyzing
	result, err := s.api.Analyze(ctx, text)
	if err != nil {
		s.state = StateDrafting
		return fmt.Errorf("analysis failed: %w", err)
	}

	s.cache.Add(cacheKey(text), result)
	s.logger.WithFields(logrus.Fields{
		"rubrics": len(result.Rubrics),
		"risk":    result.Risk,
	}).Info("Narrative analyzed")

	s.enterReview(text, result)
	return nil
}

func (s *Session) enterReview(text string, result *domain.AnalysisResult) {
	s.narrative = text
	s.analysis = result
	s.working = make([]domain.RubricSuggestion, len(result.Rubrics))
	copy(s.working, result.Rubrics)
	for i := range s.working {
		s.working[i].Selected = true
	}
	s.state = StateReviewing
}

// Rubrics returns the review step's working list.
func (s *Session) Rubrics() []domain.RubricSuggestion {
	out := make([]domain.RubricSuggestion, len(s.working))
	copy(out, s.working)
	return out
}

// Toggle flips the selection of the rubric at index. Toggling twice
// restores the original selection.
func (s *Session) Toggle(index int) error {
	if s.state != StateReviewing {
		return &StateError{Op: "toggle", State: s.state}
	}
	if index < 0 || index >= len(s.working) {
		return fmt.Errorf("rubric index %d out of range", index)
	}
	s.working[index].Selected = !s.working[index].Selected
	return nil
}

// Remove deletes the rubric at index from the working list entirely. Unlike
// deselection this cannot be undone without re-running the analysis.
func (s *Session) Remove(index int) error {
	if s.state != StateReviewing {
		return &StateError{Op: "remove", State: s.state}
	}
	if index < 0 || index >= len(s.working) {
		return fmt.Errorf("rubric index %d out of range", index)
	}
	s.working = append(s.working[:index], s.working[index+1:]...)
	return nil
}

// Confirmed returns the rubric paths currently selected, in working-list
// order. Removed and deselected rubrics are equally absent.
func (s *Session) Confirmed() []string {
	var paths []string
	for _, r := range s.working {
		if r.Selected {
			paths = append(paths, r.RubricPath)
		}
	}
	return paths
}

// Proceed submits the confirmed selection for scoring and, on success,
// moves the session to Results. An empty selection is refused locally with
// no network call. On failure the session stays in Reviewing with the
// selection intact.
func (s *Session) Proceed(ctx context.Context) error {
	if s.state != StateReviewing {
		return &StateError{Op: "proceed", State: s.state}
	}

	confirmed := s.Confirmed()
	if len(confirmed) == 0 {
		return domain.ErrEmptySelection
	}

	s.state = StateScoring
	remedies, err := s.api.Score(ctx, confirmed)
	if err != nil {
		s.state = StateReviewing
		return fmt.Errorf("scoring failed: %w", err)
	}

	s.confirmed = confirmed
	s.remedies = remedies
	s.state = StateResults

	s.logger.WithFields(logrus.Fields{
		"confirmed": len(confirmed),
		"remedies":  len(remedies),
	}).Info("Rubrics scored")
	return nil
}

// Remedies returns the scored remedies in the backend's ranking order.
func (s *Session) Remedies() []domain.ScoredRemedy {
	out := make([]domain.ScoredRemedy, len(s.remedies))
	copy(out, s.remedies)
	return out
}

// ConfirmedPaths returns the selection that produced the current results.
func (s *Session) ConfirmedPaths() []string {
	out := make([]string, len(s.confirmed))
	copy(out, s.confirmed)
	return out
}

// PatientInfo identifies the patient for a saved case.
type PatientInfo struct {
	Name      string
	Initials  string
	Specialty string
	Time      string
}

// Save persists the current results as a case. The save action is
// single-flight; a failure leaves the results untouched so the save can be
// attempted again.
func (s *Session) Save(ctx context.Context, patient PatientInfo) (*domain.Case, error) {
	if s.state != StateResults {
		return nil, &StateError{Op: "save", State: s.state}
	}
	if s.saving {
		return nil, &StateError{Op: "save", State: s.state}
	}

	s.saving = true
	defer func() { s.saving = false }()

	cs := domain.Case{
		PatientName:      patient.Name,
		Initials:         patient.Initials,
		Specialty:        patient.Specialty,
		Time:             patient.Time,
		Summary:          s.analysis.Summary,
		ConfirmedRubrics: s.confirmed,
		SavedRemedies:    s.remedies,
	}

	saved, err := s.api.SaveCase(ctx, cs)
	if err != nil {
		return nil, fmt.Errorf("failed to save case: %w", err)
	}

	s.logger.WithField("case_id", saved.ID).Info("Case saved")
	return saved, nil
}

// Reset returns the session to Drafting, discarding any analysis, selection
// and results. The analysis cache survives.
func (s *Session) Reset() {
	s.state = StateDrafting
	s.narrative = ""
	s.analysis = nil
	s.working = nil
	s.confirmed = nil
	s.remedies = nil
	s.saving = false
}
