// Package support stores messages sent through the public contact form.
package support

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nulzo/misan-console/internal/store"
	"github.com/nulzo/misan-console/internal/store/model"
	"github.com/nulzo/misan-console/internal/validation"
)

// MaxBodyLength is the longest accepted message body, in characters.
const MaxBodyLength = 5000

// Message is the body of support-contact.
type Message struct {
	Name    string `json:"name" validate:"required,max=120"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required,max=200"`
	Body    string `json:"message" validate:"required"`
}

// Receipt is returned to the sender.
type Receipt struct {
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"receivedAt"`
}

type Service struct {
	repo   store.Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo store.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Validate trims m and checks it.
func Validate(m Message) (Message, error) {
	m.Name = strings.TrimSpace(m.Name)
	m.Email = strings.TrimSpace(m.Email)
	m.Subject = strings.TrimSpace(m.Subject)
	m.Body = strings.TrimSpace(m.Body)

	verr := &validation.Error{}
	if err := validation.Struct(m); err != nil {
		fe, ok := validation.As(err)
		if !ok {
			return m, err
		}
		for k, v := range fe.Fields {
			verr.Add(k, v)
		}
	}
	if utf8.RuneCountInString(m.Body) > MaxBodyLength {
		verr.Add("message", fmt.Sprintf("must be at most %d characters", MaxBodyLength))
	}
	return m, verr.OrNil()
}

// Submit validates and stores m. ip may be empty.
func (s *Service) Submit(ctx context.Context, m Message, ip string) (Receipt, error) {
	m, err := Validate(m)
	if err != nil {
		return Receipt{}, err
	}

	row := model.SupportMessage{
		ID:        uuid.NewString(),
		Name:      m.Name,
		Email:     m.Email,
		Subject:   m.Subject,
		Body:      m.Body,
		IPAddress: ip,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.SupportMessages().Create(ctx, &row); err != nil {
		s.logger.Error("failed to store support message", zap.Error(err))
		return Receipt{}, fmt.Errorf("store support message: %w", err)
	}

	s.logger.Info("support message received", zap.String("id", row.ID), zap.String("subject", row.Subject))
	return Receipt{ID: row.ID, ReceivedAt: row.CreatedAt}, nil
}

// Recent lists the latest messages, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]model.SupportMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	msgs, err := s.repo.SupportMessages().ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list support messages: %w", err)
	}
	return msgs, nil
}
