package alerts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nulzo/misan-console/internal/audit"
	"github.com/nulzo/misan-console/internal/listing"
	"github.com/nulzo/misan-console/internal/store"
	"github.com/nulzo/misan-console/internal/templating"
)

// ErrNotFound matches store.ErrNotFound with errors.Is.
var ErrNotFound = fmt.Errorf("alert rule %w", store.ErrNotFound)

const auditTarget = "alert_rules"

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

// Fetch returns every rule sorted by target, threshold and name.
func (s *Service) Fetch(ctx context.Context) ([]Rule, error) {
	rows, err := s.repo.AlertRules().List(ctx)
	if err != nil {
		s.logger.Error("failed to list alert rules", zap.Error(err))
		return nil, fmt.Errorf("list alert rules: %w", err)
	}
	rules := make([]Rule, 0, len(rows))
	for _, row := range rows {
		rules = append(rules, MapRow(row))
	}
	SortRules(rules)
	return rules, nil
}

func (s *Service) Get(ctx context.Context, id string) (Rule, error) {
	row, err := s.repo.AlertRules().Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return Rule{}, ErrNotFound
	}
	if err != nil {
		return Rule{}, fmt.Errorf("get alert rule: %w", err)
	}
	return MapRow(*row), nil
}

// Create validates f before touching the store.
func (s *Service) Create(ctx context.Context, f FormState) (Rule, error) {
	in, err := ValidateForm(f)
	if err != nil {
		return Rule{}, err
	}
	now := s.now().UTC()
	row, err := ToRow(uuid.NewString(), in, now, now)
	if err != nil {
		return Rule{}, fmt.Errorf("encode alert rule: %w", err)
	}
	if err := s.repo.AlertRules().Create(ctx, &row); err != nil {
		s.logger.Error("failed to create alert rule", zap.Error(err))
		return Rule{}, fmt.Errorf("create alert rule: %w", err)
	}
	s.audit.Record(ctx, auditTarget, "create", map[string]string{"id": row.ID, "name": row.Name})
	return MapRow(row), nil
}

// Update replaces every field of rule id.
func (s *Service) Update(ctx context.Context, id string, f FormState) (Rule, error) {
	in, err := ValidateForm(f)
	if err != nil {
		return Rule{}, err
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return Rule{}, err
	}
	return s.write(ctx, current, in, "update")
}

func (s *Service) write(ctx context.Context, current Rule, in Input, action string) (Rule, error) {
	row, err := ToRow(current.ID, in, current.CreatedAt, s.now().UTC())
	if err != nil {
		return Rule{}, fmt.Errorf("encode alert rule: %w", err)
	}
	if err := s.repo.AlertRules().Update(ctx, &row); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Rule{}, ErrNotFound
		}
		s.logger.Error("failed to update alert rule", zap.String("id", current.ID), zap.Error(err))
		return Rule{}, fmt.Errorf("update alert rule: %w", err)
	}
	s.audit.Record(ctx, auditTarget, action, map[string]string{"id": row.ID, "name": row.Name})
	return MapRow(row), nil
}

// Delete removes rule id permanently.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.repo.AlertRules().Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		s.logger.Error("failed to delete alert rule", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("delete alert rule: %w", err)
	}
	s.audit.Record(ctx, auditTarget, "delete", map[string]string{"id": id})
	return nil
}

// SetActive toggles a rule. The whole rule is written back, not just the flag.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (Rule, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Rule{}, err
	}
	form := ToFormState(current)
	form.IsActive = &active
	in, err := ValidateForm(form)
	if err != nil {
		return Rule{}, err
	}
	action := "deactivate"
	if active {
		action = "activate"
	}
	return s.write(ctx, current, in, action)
}

// Search filters rules on name, description, message template and severity label.
func Search(rules []Rule, term string) []Rule {
	return listing.Filter(rules, term, func(r Rule) []string {
		return []string{r.Name, r.Description, r.MessageTemplate, r.Severity.Label()}
	})
}

// Query fetches, filters and paginates.
func (s *Service) Query(ctx context.Context, term string, page, size int) (listing.Page[Rule], error) {
	rules, err := s.Fetch(ctx)
	if err != nil {
		return listing.Page[Rule]{}, err
	}
	return listing.Paginate(Search(rules, term), page, size), nil
}

// SampleVariables are used by the preview when the caller leaves a placeholder unset.
var SampleVariables = map[string]string{
	"days":      "7",
	"tokens":    "50000",
	"user_name": "Amina",
}

// PreviewMessage renders the rule's message with vars over SampleVariables.
// The threshold stands in for days or tokens when the rule targets them.
func PreviewMessage(r Rule, vars map[string]string) string {
	merged := make(map[string]string, len(SampleVariables)+len(vars))
	for k, v := range SampleVariables {
		merged[k] = v
	}
	threshold := strconv.FormatFloat(r.Threshold, 'f', -1, 64)
	switch r.Target {
	case TargetSubscription:
		merged["days"] = threshold
	case TargetTokens:
		merged["tokens"] = threshold
	}
	for k, v := range vars {
		merged[k] = v
	}
	return templating.Render(r.MessageTemplate, merged)
}
