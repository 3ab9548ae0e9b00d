// Package caselist implements the saved-case list and detail screens: a
// parallel profile+cases refresh on every activation, a locally cached
// display name shown while the fresh fetch is in flight, and client-side
// case lookup for the detail view.
package caselist

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/reperto-cdss-client/internal/domain"
	"github.com/reperto-cdss-client/pkg/backend"
)

// NameCache caches the practitioner display name between activations so
// the list can render a name before the fresh profile fetch resolves.
type NameCache interface {
	DisplayName(ctx context.Context) (string, error)
	SetDisplayName(ctx context.Context, name string) error
}

// Snapshot is the state of one completed refresh. The profile and case
// fetches fail independently; either error leaves the other result intact.
type Snapshot struct {
	DisplayName string
	Cases       []domain.Case
	ProfileErr  error
	CasesErr    error
}

// Service fetches and holds the case list for the active screen.
type Service struct {
	api    backend.API
	cache  NameCache
	logger *logrus.Logger

	mu         sync.Mutex
	generation uint64
	current    Snapshot
}

// NewService creates a case list service.
func NewService(api backend.API, cache NameCache, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{api: api, cache: cache, logger: logger}
}

// CachedName returns the locally cached display name, shown immediately on
// activation to avoid a loading flash. Empty when nothing is cached.
func (s *Service) CachedName(ctx context.Context) string {
	name, err := s.cache.DisplayName(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to read cached display name")
		return ""
	}
	return name
}

// Refresh runs on every screen activation, fetching the profile and the
// case list in parallel. There is no ordering dependency between the two and
// each may fail on its own. The boolean reports whether the result was
// applied: when a newer activation started while this one was in flight,
// the stale result is discarded instead of overwriting current state.
func (s *Service) Refresh(ctx context.Context) (Snapshot, bool) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	var (
		wg      sync.WaitGroup
		profile *domain.Profile
		cases   []domain.Case
		snap    Snapshot
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		profile, snap.ProfileErr = s.api.Me(ctx)
	}()
	go func() {
		defer wg.Done()
		cases, snap.CasesErr = s.api.ListCases(ctx)
	}()
	wg.Wait()

	if snap.ProfileErr == nil && profile != nil {
		snap.DisplayName = profile.Name
		if err := s.cache.SetDisplayName(ctx, profile.Name); err != nil {
			s.logger.WithError(err).Warn("Failed to cache display name")
		}
	} else {
		// Fall back to the cached name so the header keeps a value.
		snap.DisplayName = s.CachedName(ctx)
	}
	if snap.CasesErr == nil {
		snap.Cases = cases
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.logger.Debug("Discarding stale case list refresh")
		return snap, false
	}
	s.current = snap
	return snap, true
}

// Current returns the most recently applied snapshot.
func (s *Service) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Lookup finds a case by id within the already-fetched list. The detail
// view never issues a per-case fetch; a miss is the not-found state.
func (s *Service) Lookup(id string) (domain.Case, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cs := range s.current.Cases {
		if cs.ID == id {
			return cs, true
		}
	}
	return domain.Case{}, false
}
