package emailtemplates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nulzo/misan-console/internal/audit"
	"github.com/nulzo/misan-console/internal/listing"
	"github.com/nulzo/misan-console/internal/store"
	"github.com/nulzo/misan-console/internal/templating"
)

// ErrNotFound matches store.ErrNotFound with errors.Is.
var ErrNotFound = fmt.Errorf("email template %w", store.ErrNotFound)

const auditTarget = "email_templates"

type Service struct {
	repo   store.Repository
	logger *zap.Logger
	audit  audit.Recorder
	now    func() time.Time
}

func NewService(repo store.Repository, logger *zap.Logger, recorder audit.Recorder) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Service{repo: repo, logger: logger, audit: recorder, now: time.Now}
}

// Fetch returns every template sorted by name.
func (s *Service) Fetch(ctx context.Context) ([]Template, error) {
	rows, err := s.repo.EmailTemplates().List(ctx)
	if err != nil {
		s.logger.Error("failed to list email templates", zap.Error(err))
		return nil, fmt.Errorf("list email templates: %w", err)
	}
	out := make([]Template, 0, len(rows))
	for _, row := range rows {
		out = append(out, MapRow(row))
	}
	SortTemplates(out)
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (Template, error) {
	row, err := s.repo.EmailTemplates().Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return Template{}, ErrNotFound
	}
	if err != nil {
		return Template{}, fmt.Errorf("get email template: %w", err)
	}
	return MapRow(*row), nil
}

func (s *Service) Create(ctx context.Context, f FormState) (Template, error) {
	in, err := ValidateForm(f)
	if err != nil {
		return Template{}, err
	}
	now := s.now().UTC()
	row, err := ToRow(uuid.NewString(), in, now, now)
	if err != nil {
		return Template{}, fmt.Errorf("encode email template: %w", err)
	}
	if err := s.repo.EmailTemplates().Create(ctx, &row); err != nil {
		s.logger.Error("failed to create email template", zap.Error(err))
		return Template{}, fmt.Errorf("create email template: %w", err)
	}
	s.audit.Record(ctx, auditTarget, "create", map[string]string{"id": row.ID, "name": row.Name})
	return MapRow(row), nil
}

func (s *Service) Update(ctx context.Context, id string, f FormState) (Template, error) {
	in, err := ValidateForm(f)
	if err != nil {
		return Template{}, err
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return Template{}, err
	}
	return s.write(ctx, current, in, "update")
}

func (s *Service) write(ctx context.Context, current Template, in Input, action string) (Template, error) {
	row, err := ToRow(current.ID, in, current.CreatedAt, s.now().UTC())
	if err != nil {
		return Template{}, fmt.Errorf("encode email template: %w", err)
	}
	if err := s.repo.EmailTemplates().Update(ctx, &row); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Template{}, ErrNotFound
		}
		s.logger.Error("failed to update email template", zap.String("id", current.ID), zap.Error(err))
		return Template{}, fmt.Errorf("update email template: %w", err)
	}
	s.audit.Record(ctx, auditTarget, action, map[string]string{"id": row.ID, "name": row.Name})
	return MapRow(row), nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.repo.EmailTemplates().Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		s.logger.Error("failed to delete email template", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("delete email template: %w", err)
	}
	s.audit.Record(ctx, auditTarget, "delete", map[string]string{"id": id})
	return nil
}

// SetActive toggles a template by writing it back whole.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (Template, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Template{}, err
	}
	form := ToFormState(current)
	form.IsActive = &active
	in, err := ValidateForm(form)
	if err != nil {
		return Template{}, err
	}
	action := "deactivate"
	if active {
		action = "activate"
	}
	return s.write(ctx, current, in, action)
}

// Search matches name, subject, body, cc/bcc and the recipients label.
func Search(ts []Template, term string) []Template {
	return listing.Filter(ts, term, func(t Template) []string {
		return []string{
			t.Name,
			t.Subject,
			t.Body,
			strings.Join(t.CC, ", "),
			strings.Join(t.BCC, ", "),
			t.Recipients.Label(),
		}
	})
}

func (s *Service) Query(ctx context.Context, term string, page, size int) (listing.Page[Template], error) {
	ts, err := s.Fetch(ctx)
	if err != nil {
		return listing.Page[Template]{}, err
	}
	return listing.Paginate(Search(ts, term), page, size), nil
}

// Preview renders subject and body with vars; the signature is appended to the body.
func Preview(t Template, vars map[string]string) (subject, body string) {
	subject = templating.Render(t.Subject, vars)
	body = templating.Render(t.Body, vars)
	if t.Signature != "" {
		body += "\n\n" + t.Signature
	}
	return subject, body
}
