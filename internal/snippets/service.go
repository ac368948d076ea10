// internal/snippets/service.go
package snippets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"printhub/internal/analysis"
	"printhub/internal/assets"
	"printhub/internal/pipeline"
	"printhub/internal/permissions"
	"printhub/pkg/middleware"
)

var (
	ErrNotFound  = errors.New("snippets: not found")
	ErrForbidden = errors.New("snippets: forbidden")
)

// ValidationError carries the structured outcome of a failed validation.
type ValidationError struct {
	Outcome analysis.ValidationOutcome
}

func (e *ValidationError) Error() string {
	if e.Outcome.Code != "" {
		return "snippets: validation failed: " + e.Outcome.Code
	}
	return fmt.Sprintf("snippets: validation failed with %d errors", len(e.Outcome.Errors))
}

// Authority is the slice of the permission gateway the service needs.
type Authority interface {
	CheckOwnership(ctx context.Context, resourceID, userID string) (permissions.Decision, error)
	HasReadAccess(ctx context.Context, resourceID, userID string) bool
	HasWriteAccess(ctx context.Context, resourceID, userID string) bool
	ListForUser(ctx context.Context, userID string) []permissions.Record
	ListOwnedResourceIDs(ctx context.Context, userID string) []string
	Create(ctx context.Context, resourceID, userID string, role permissions.Role) error
	DeleteAllFor(ctx context.Context, resourceID string) error
}

// Store is the slice of the asset gateway the service needs.
type Store interface {
	Get(ctx context.Context, id string) (string, error)
	Put(ctx context.Context, id, content string) error
	Delete(ctx context.Context, id string) error
	Update(ctx context.Context, id, content string) error
}

// Analyzer is the slice of the analysis client the service needs.
type Analyzer interface {
	Validate(ctx context.Context, content, language, version string) analysis.ValidationOutcome
	Format(ctx context.Context, r analysis.Request) (string, error)
	Lint(ctx context.Context, r analysis.Request) ([]analysis.Issue, error)
	NotifyLint(ctx context.Context, resourceID, userID, content string)
	NotifyFormat(ctx context.Context, resourceID, userID, content string)
	NotifyTest(ctx context.Context, resourceID, userID, content string)
}

// Repository is the metadata persistence the service needs.
type Repository interface {
	Insert(ctx context.Context, s Snippet) error
	Get(ctx context.Context, id string) (Snippet, error)
	ListByIDs(ctx context.Context, ids []string) ([]Snippet, error)
	Touch(ctx context.Context, id string, compliance Compliance, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// Service orchestrates snippet operations across the permission authority,
// the asset store, and the analysis service.
type Service struct {
	repo    Repository
	perms   Authority
	store   Store
	analyze Analyzer
	log     *zap.SugaredLogger
	now     func() time.Time
}

func NewService(repo Repository, perms Authority, store Store, analyze Analyzer, log *zap.SugaredLogger) *Service {
	return &Service{repo: repo, perms: perms, store: store, analyze: analyze, log: log, now: time.Now}
}

type CreateInput struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	Version  string `json:"version"`
	Content  string `json:"content"`
}

// Create validates the content, persists metadata, stores the source text,
// registers ownership, and queues a background lint. The async queueing is
// fire-and-forget: creation succeeds even if it cannot be delivered.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (Snippet, error) {
	outcome := s.analyze.Validate(ctx, in.Content, in.Language, in.Version)
	if !outcome.Valid {
		return Snippet{}, &ValidationError{Outcome: outcome}
	}
	sn := Snippet{
		ID:         uuid.NewString(),
		Name:       in.Name,
		Language:   in.Language,
		Version:    in.Version,
		Owner:      userID,
		Compliance: CompliancePending,
		CreatedAt:  s.now(),
		UpdatedAt:  s.now(),
	}
	if err := s.repo.Insert(ctx, sn); err != nil {
		return Snippet{}, fmt.Errorf("snippets: insert: %w", err)
	}
	if err := s.store.Put(ctx, sn.ID, in.Content); err != nil {
		return Snippet{}, err
	}
	if err := s.perms.Create(ctx, sn.ID, userID, permissions.RoleOwner); err != nil {
		// Without an owner row the snippet is unreachable; undo the partial
		// write rather than leave it orphaned.
		if derr := s.store.Delete(ctx, sn.ID); derr != nil {
			s.log.Warnw("rollback of snippet content failed", "snippet", sn.ID, "err", derr)
		}
		if derr := s.repo.Delete(ctx, sn.ID); derr != nil {
			s.log.Warnw("rollback of snippet row failed", "snippet", sn.ID, "err", derr)
		}
		return Snippet{}, err
	}
	s.analyze.NotifyLint(ctx, sn.ID, userID, in.Content)
	return sn, nil
}

// Get returns metadata plus content. The read check fails open when the
// authority is unreachable.
func (s *Service) Get(ctx context.Context, userID, id string) (SnippetWithContent, error) {
	if !s.perms.HasReadAccess(ctx, id, userID) {
		return SnippetWithContent{}, ErrForbidden
	}
	sn, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNoRow) {
		return SnippetWithContent{}, ErrNotFound
	}
	if err != nil {
		return SnippetWithContent{}, err
	}
	content, err := s.store.Get(ctx, id)
	if errors.Is(err, assets.ErrNotFound) {
		return SnippetWithContent{}, ErrNotFound
	}
	if err != nil {
		return SnippetWithContent{}, err
	}
	return SnippetWithContent{Snippet: sn, Content: content}, nil
}

// Update replaces a snippet's content. The write check fails closed.
func (s *Service) Update(ctx context.Context, userID, id, content string) (Snippet, error) {
	if !s.perms.HasWriteAccess(ctx, id, userID) {
		return Snippet{}, ErrForbidden
	}
	sn, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNoRow) {
		return Snippet{}, ErrNotFound
	}
	if err != nil {
		return Snippet{}, err
	}
	outcome := s.analyze.Validate(ctx, content, sn.Language, sn.Version)
	if !outcome.Valid {
		return Snippet{}, &ValidationError{Outcome: outcome}
	}
	if err := s.store.Update(ctx, id, content); err != nil {
		return Snippet{}, err
	}
	sn.Compliance = CompliancePending
	sn.UpdatedAt = s.now()
	if err := s.repo.Touch(ctx, id, CompliancePending, sn.UpdatedAt); err != nil {
		return Snippet{}, err
	}
	// New content invalidates previous lint results and test runs.
	s.analyze.NotifyLint(ctx, id, userID, content)
	s.analyze.NotifyTest(ctx, id, userID, content)
	return sn, nil
}

// Delete removes the snippet: content first, then permissions best-effort,
// then the metadata row. Permission cleanup failures are logged, not fatal.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if !s.perms.HasWriteAccess(ctx, id, userID) {
		return ErrForbidden
	}
	if _, err := s.repo.Get(ctx, id); errors.Is(err, ErrNoRow) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.perms.DeleteAllFor(ctx, id); err != nil {
		s.log.Warnw("permission cleanup incomplete", "snippet", id, "err", err)
	}
	return s.repo.Delete(ctx, id)
}

// Share grants another user read access. Ownership is checked strictly:
// an unreachable authority is an error here, never a silent grant.
func (s *Service) Share(ctx context.Context, ownerID, id, targetUserID string) error {
	d, err := s.perms.CheckOwnership(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if !d.Granted {
		return ErrForbidden
	}
	return s.perms.Create(ctx, id, targetUserID, permissions.RoleReader)
}

// List returns the metadata of every snippet the user can see, owned and
// shared alike, in the authority's order.
func (s *Service) List(ctx context.Context, userID string) ([]Snippet, error) {
	recs := s.perms.ListForUser(ctx, userID)
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ResourceID)
	}
	return s.repo.ListByIDs(ctx, ids)
}

// FormatAll formats every owned snippet and stores the result back. One
// snippet's failure never aborts the batch; it is recorded in the report.
func (s *Service) FormatAll(ctx context.Context, userID string) pipeline.Report[string] {
	items := s.ownedItems(ctx, userID)
	return pipeline.Run(ctx, s.log, items, func(ctx context.Context, it pipeline.Item) (string, error) {
		sn, err := s.repo.Get(ctx, it.ID)
		if err != nil {
			return "", err
		}
		content, err := s.store.Get(ctx, it.ID)
		if err != nil {
			return "", err
		}
		formatted, err := s.analyze.Format(ctx, analysis.Request{
			ResourceID:    it.ID,
			CorrelationID: middleware.CorrelationFrom(ctx),
			Language:      sn.Language,
			Version:       sn.Version,
			Content:       content,
			UserID:        userID,
		})
		if err != nil {
			return "", err
		}
		if err := s.store.Put(ctx, it.ID, formatted); err != nil {
			return "", err
		}
		return formatted, nil
	})
}

// LintAll lints every owned snippet and records the resulting compliance.
func (s *Service) LintAll(ctx context.Context, userID string) pipeline.Report[[]analysis.Issue] {
	items := s.ownedItems(ctx, userID)
	return pipeline.Run(ctx, s.log, items, func(ctx context.Context, it pipeline.Item) ([]analysis.Issue, error) {
		sn, err := s.repo.Get(ctx, it.ID)
		if err != nil {
			return nil, err
		}
		content, err := s.store.Get(ctx, it.ID)
		if err != nil {
			s.setCompliance(ctx, it.ID, ComplianceFailed)
			return nil, err
		}
		issues, err := s.analyze.Lint(ctx, analysis.Request{
			ResourceID:    it.ID,
			CorrelationID: middleware.CorrelationFrom(ctx),
			Language:      sn.Language,
			Version:       sn.Version,
			Content:       content,
			UserID:        userID,
		})
		if err != nil {
			s.setCompliance(ctx, it.ID, ComplianceFailed)
			return nil, err
		}
		if len(issues) == 0 {
			s.setCompliance(ctx, it.ID, ComplianceCompliant)
		} else {
			s.setCompliance(ctx, it.ID, ComplianceNotCompliant)
		}
		return issues, nil
	})
}

// Reanalyze queues background analysis of every owned snippet. Saved rule
// changes invalidate previous results, so the rules endpoints fan out here.
// Queueing is fire-and-forget; an unreadable snippet is skipped, not fatal.
func (s *Service) Reanalyze(ctx context.Context, userID string, kind analysis.RuleKind) {
	for _, it := range s.ownedItems(ctx, userID) {
		content, err := s.store.Get(ctx, it.ID)
		if err != nil {
			s.log.Warnw("reanalysis skipped", "snippet", it.ID, "err", err)
			continue
		}
		switch kind {
		case analysis.RuleKindFormat:
			s.analyze.NotifyFormat(ctx, it.ID, userID, content)
		case analysis.RuleKindLint:
			s.setCompliance(ctx, it.ID, CompliancePending)
			s.analyze.NotifyLint(ctx, it.ID, userID, content)
		}
	}
}

// ownedItems resolves the batch in the authority's iteration order; names
// come from metadata when a row exists.
func (s *Service) ownedItems(ctx context.Context, userID string) []pipeline.Item {
	ids := s.perms.ListOwnedResourceIDs(ctx, userID)
	names := map[string]string{}
	if rows, err := s.repo.ListByIDs(ctx, ids); err == nil {
		for _, sn := range rows {
			names[sn.ID] = sn.Name
		}
	}
	items := make([]pipeline.Item, 0, len(ids))
	for _, id := range ids {
		name := names[id]
		if name == "" {
			name = id
		}
		items = append(items, pipeline.Item{ID: id, Name: name})
	}
	return items
}

func (s *Service) setCompliance(ctx context.Context, id string, c Compliance) {
	if err := s.repo.Touch(ctx, id, c, s.now()); err != nil {
		s.log.Warnw("compliance update failed", "snippet", id, "compliance", c, "err", err)
	}
}
