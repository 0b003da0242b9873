package state

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ETAnderson/grader/internal/domain"
	"github.com/ETAnderson/grader/internal/errors"
)

type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]domain.Run
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[string]domain.Run),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) CreateRun(ctx context.Context, email string, repositoryURL string) (domain.Run, error) {
	email = strings.TrimSpace(email)
	repositoryURL = strings.TrimSpace(repositoryURL)
	if email == "" || repositoryURL == "" {
		return domain.Run{}, errors.New(errors.EInvalidInput, "email and repository_url required")
	}

	now := s.now()
	r := domain.Run{
		ID:            NewRunID(),
		Email:         email,
		RepositoryURL: repositoryURL,
		Status:        domain.RunStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[r.ID] = r
	return cloneRun(r), nil
}

func (s *MemoryStore) GetRun(ctx context.Context, runID string) (domain.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[runID]
	if !ok {
		return domain.Run{}, false, nil
	}
	return cloneRun(r), true, nil
}

func (s *MemoryStore) UpdateRun(ctx context.Context, runID string, u RunUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[runID]
	if !ok {
		return errors.Newf(errors.ERunNotFound, "run %s not found", runID)
	}
	applyUpdate(&r, u, s.now())
	s.runs[runID] = r
	return nil
}

func (s *MemoryStore) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Run, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, cloneRun(r))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit <= 0 || limit > len(out) {
		return out, nil
	}
	return out[:limit], nil
}

func (s *MemoryStore) ListStaleRunning(ctx context.Context, before time.Time) ([]domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Run
	for _, r := range s.runs {
		if r.Status.InFlight() && r.UpdatedAt.Before(before) {
			out = append(out, cloneRun(r))
		}
	}

	// Oldest first (stable-ish order for consistent processing)
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	return out, nil
}

func cloneRun(r domain.Run) domain.Run {
	if r.AnalysisJSON != nil {
		r.AnalysisJSON = append(json.RawMessage(nil), r.AnalysisJSON...)
	}
	if r.ScoringJSON != nil {
		r.ScoringJSON = append(json.RawMessage(nil), r.ScoringJSON...)
	}
	if r.OverallScore != nil {
		v := *r.OverallScore
		r.OverallScore = &v
	}
	if r.AnalysisJudgeLog != nil {
		r.AnalysisJudgeLog = append(json.RawMessage(nil), r.AnalysisJudgeLog...)
	}
	if r.ScoringJudgeLog != nil {
		r.ScoringJudgeLog = append(json.RawMessage(nil), r.ScoringJudgeLog...)
	}
	if r.AnalysisStartedAt != nil {
		t := *r.AnalysisStartedAt
		r.AnalysisStartedAt = &t
	}
	return r
}
