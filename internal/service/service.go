// Package service is the caller-facing surface of the grader: submit a
// repository, enqueue it, and read run snapshots.
package service

import (
	"context"
	"net/mail"
	"net/url"
	"strings"

	"github.com/ETAnderson/grader/internal/domain"
	"github.com/ETAnderson/grader/internal/errors"
	"github.com/ETAnderson/grader/internal/logging"
	"github.com/ETAnderson/grader/internal/state"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Enqueuer hands a run id to the worker.
type Enqueuer interface {
	Enqueue(runID string)
}

type Service struct {
	store state.Store
	queue Enqueuer
	log   logging.Logger
}

func New(store state.Store, queue Enqueuer, log logging.Logger) *Service {
	return &Service{store: store, queue: queue, log: logging.OrDiscard(log)}
}

// Submit validates the input and creates a PENDING run. It does not
// enqueue it.
func (s *Service) Submit(ctx context.Context, email string, repositoryURL string) (domain.Run, error) {
	email = strings.TrimSpace(email)
	repositoryURL = strings.TrimSpace(repositoryURL)

	if email == "" {
		return domain.Run{}, errors.New(errors.EInvalidInput, "email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.Run{}, errors.Newf(errors.EInvalidInput, "invalid email %q", email)
	}
	if err := validateRepositoryURL(repositoryURL); err != nil {
		return domain.Run{}, err
	}

	run, err := s.store.CreateRun(ctx, email, repositoryURL)
	if err != nil {
		return domain.Run{}, err
	}
	s.log.Printf("run_id=%s submitted repo=%s", run.ID, run.RepositoryURL)
	return run, nil
}

// Enqueue schedules an existing run. Whether it is actually processed is
// decided by the worker from the run's status at dequeue time.
func (s *Service) Enqueue(ctx context.Context, runID string) error {
	if s.queue == nil {
		return errors.New(errors.EMisconfigured, "no worker queue configured")
	}
	if _, err := s.Status(ctx, runID); err != nil {
		return err
	}
	s.queue.Enqueue(runID)
	s.log.Printf("run_id=%s enqueued", runID)
	return nil
}

func (s *Service) Status(ctx context.Context, runID string) (domain.Run, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return domain.Run{}, errors.New(errors.EInvalidInput, "run id is required")
	}
	run, ok, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return domain.Run{}, err
	}
	if !ok {
		return domain.Run{}, errors.Newf(errors.ERunNotFound, "run %s not found", runID)
	}
	return run, nil
}

// ListRecent returns runs newest first. limit is clamped to
// [1, MaxListLimit]; non-positive means DefaultListLimit.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.store.ListRuns(ctx, limit)
}

func validateRepositoryURL(raw string) error {
	if raw == "" {
		return errors.New(errors.EInvalidInput, "repository_url is required")
	}
	// scp-style ssh remotes: git@host:owner/repo.git
	if strings.HasPrefix(raw, "git@") && strings.Contains(raw, ":") {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return errors.Newf(errors.EInvalidInput, "invalid repository_url %q", raw)
	}
	switch u.Scheme {
	case "http", "https", "ssh", "git":
		return nil
	}
	return errors.Newf(errors.EInvalidInput, "unsupported repository_url scheme %q", u.Scheme)
}
