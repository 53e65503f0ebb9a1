package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/nulzo/misan-console/internal/assistant"
	"github.com/nulzo/misan-console/internal/audit"
	"github.com/nulzo/misan-console/internal/store"
	"github.com/nulzo/misan-console/internal/validation"
)

// Service loads and saves the four settings kinds. Loads never fail: missing,
// malformed or unreadable data degrades to defaults with a warning.
type Service struct {
	repo   store.Repository
	memo   *Memo
	logger *zap.Logger
	audit  audit.Recorder

	publicPricing PricingSource
	adminPricing  PricingSource
}

type Option func(*Service)

// WithAudit records every successful save.
func WithAudit(r audit.Recorder) Option {
	return func(s *Service) { s.audit = r }
}

// WithPublicPricingSource puts src at the head of the pricing chain.
func WithPublicPricingSource(src PricingSource) Option {
	return func(s *Service) { s.publicPricing = src }
}

// WithAdminPricingSource adds src right before the defaults in the pricing chain.
func WithAdminPricingSource(src PricingSource) Option {
	return func(s *Service) { s.adminPricing = src }
}

func NewService(repo store.Repository, memo *Memo, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if memo == nil {
		memo = NewMemo(nil, 0, logger)
	}
	s := &Service{
		repo:   repo,
		memo:   memo,
		logger: logger,
		audit:  audit.Nop{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// pricingChain lists the sources in the order they are tried.
func (s *Service) pricingChain() []PricingSource {
	var chain []PricingSource
	if s.publicPricing != nil {
		chain = append(chain, s.publicPricing)
	}
	chain = append(chain, tableSource{repo: s.repo}, documentSource{repo: s.repo})
	if s.adminPricing != nil {
		chain = append(chain, s.adminPricing)
	}
	return chain
}

// loadDocument reads a JSON document. The bool is false when the store could
// not be read, in which case the result must not be cached.
func (s *Service) loadDocument(ctx context.Context, key string) ([]byte, bool) {
	row, err := s.repo.Settings().Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, true
	}
	if err != nil {
		s.logger.Warn("failed to read settings document", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	data, ok := documentBytes(row.Value, key)
	if !ok {
		s.logger.Warn("settings document is not an object, using defaults", zap.String("key", key))
		return nil, true
	}
	return data, true
}

func (s *Service) LoadSiteSettings(ctx context.Context) SiteSettings {
	v, _ := remember(ctx, s.memo, memoSite, func(ctx context.Context) (SiteSettings, bool, error) {
		data, ok := s.loadDocument(ctx, KeySiteDocument)
		if data == nil {
			return DefaultSiteSettings(), ok, nil
		}
		site, err := DecodeSiteSettings(data)
		if err != nil {
			s.logger.Warn("malformed site settings, using defaults", zap.Error(err))
		}
		return site, true, nil
	})
	return v
}

// LoadPricingSettings walks the pricing chain and returns the first valid
// result, or the defaults.
func (s *Service) LoadPricingSettings(ctx context.Context) PricingSettings {
	v, _ := remember(ctx, s.memo, memoPricing, func(ctx context.Context) (PricingSettings, bool, error) {
		failed := false
		for _, src := range s.pricingChain() {
			p, err := src.Pricing(ctx)
			if err == nil {
				return p, true, nil
			}
			if !errors.Is(err, ErrNoPricing) {
				failed = true
				s.logger.Warn("pricing source failed", zap.String("source", src.Name()), zap.Error(err))
			}
		}
		return DefaultPricingSettings(), !failed, nil
	})
	return v
}

func (s *Service) LoadPaymentSettings(ctx context.Context) PaymentSettings {
	v, _ := remember(ctx, s.memo, memoPayment, func(ctx context.Context) (PaymentSettings, bool, error) {
		data, ok := s.loadDocument(ctx, KeyPaymentDocument)
		if data == nil {
			return DefaultPaymentSettings(), ok, nil
		}
		p, err := DecodePaymentSettings(data)
		if err != nil {
			s.logger.Warn("malformed payment settings, using defaults", zap.Error(err))
		}
		return p, true, nil
	})
	return v
}

func (s *Service) LoadLLMSettings(ctx context.Context) LLMSettings {
	v, _ := remember(ctx, s.memo, memoLLM, func(ctx context.Context) (LLMSettings, bool, error) {
		data, ok := s.loadDocument(ctx, KeyLLMDocument)
		if data == nil {
			return DefaultLLMSettings(), ok, nil
		}
		l, err := DecodeLLMSettings(data)
		if err != nil {
			s.logger.Warn("malformed llm settings, using defaults", zap.Error(err))
		}
		return l, true, nil
	})
	return v
}

// PublicLLMSettings serves public-get-llm-settings.
func (s *Service) PublicLLMSettings(ctx context.Context) PublicLLMSettings {
	return s.LoadLLMSettings(ctx).Public()
}

// AdminSettings serves admin-get-settings.
func (s *Service) AdminSettings(ctx context.Context) AdminSettings {
	return AdminSettings{
		Settings: s.LoadSiteSettings(ctx),
		Pricing:  s.LoadPricingSettings(ctx),
		Payment:  s.LoadPaymentSettings(ctx),
		LLM:      s.LoadLLMSettings(ctx),
	}
}

// pendingWrite is a validated, encoded settings change.
type pendingWrite struct {
	target  string
	memoKey string
	rows    map[string]string
}

func (s *Service) SaveSiteSettings(ctx context.Context, site SiteSettings) error {
	w, err := prepareSite(site)
	if err != nil {
		return err
	}
	return s.commit(ctx, w)
}

func (s *Service) SavePricingSettings(ctx context.Context, p PricingSettings) error {
	w, err := preparePricing(p)
	if err != nil {
		return err
	}
	return s.commit(ctx, w)
}

func (s *Service) SavePaymentSettings(ctx context.Context, p PaymentSettings) error {
	w, err := preparePayment(p)
	if err != nil {
		return err
	}
	return s.commit(ctx, w)
}

func (s *Service) SaveLLMSettings(ctx context.Context, l LLMSettings) error {
	w, err := prepareLLM(l)
	if err != nil {
		return err
	}
	return s.commit(ctx, w)
}

// UpdateAdminSettings serves admin-update-settings. Every present part is
// validated before anything is written; the writes share one transaction.
func (s *Service) UpdateAdminSettings(ctx context.Context, patch AdminSettingsPatch) error {
	var writes []pendingWrite
	verr := &validation.Error{}

	collect := func(section string, w pendingWrite, err error) {
		if err == nil {
			writes = append(writes, w)
			return
		}
		if fe, ok := validation.As(err); ok {
			for k, v := range fe.Fields {
				verr.Add(section+"."+k, v)
			}
			return
		}
		verr.Add(section, err.Error())
	}

	if patch.Settings != nil {
		w, err := prepareSite(*patch.Settings)
		collect("settings", w, err)
	}
	if patch.Pricing != nil {
		w, err := preparePricing(*patch.Pricing)
		collect("pricing", w, err)
	}
	if patch.Payment != nil {
		w, err := preparePayment(patch.Payment)
		collect("payment", w, err)
	}
	if patch.LLM != nil {
		w, err := prepareLLM(*patch.LLM)
		collect("llm", w, err)
	}

	if err := verr.OrNil(); err != nil {
		return err
	}
	if len(writes) == 0 {
		return validation.NewError("body", "no settings to update")
	}
	return s.commit(ctx, writes...)
}

func (s *Service) commit(ctx context.Context, writes ...pendingWrite) error {
	err := s.repo.WithTx(ctx, func(tx store.Repository) error {
		for _, w := range writes {
			keys := make([]string, 0, len(w.rows))
			for k := range w.rows {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if err := tx.Settings().Upsert(ctx, k, w.rows[k]); err != nil {
					return fmt.Errorf("write %s: %w", k, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	memoKeys := make([]string, 0, len(writes))
	for _, w := range writes {
		memoKeys = append(memoKeys, w.memoKey)
	}
	s.memo.Invalidate(ctx, memoKeys...)

	for _, w := range writes {
		keys := make([]string, 0, len(w.rows))
		for k := range w.rows {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		s.audit.Record(ctx, w.target, "update", map[string]any{"keys": keys})
	}
	return nil
}

func prepareSite(site SiteSettings) (pendingWrite, error) {
	if err := validation.Struct(site); err != nil {
		return pendingWrite{}, err
	}
	doc, err := json.Marshal(site)
	if err != nil {
		return pendingWrite{}, fmt.Errorf("encode site settings: %w", err)
	}
	return pendingWrite{
		target:  "settings.site",
		memoKey: memoSite,
		rows:    map[string]string{KeySiteDocument: string(doc)},
	}, nil
}

// preparePricing writes both the flat rows and the aggregate document so
// either source of the chain sees the same data.
func preparePricing(p PricingSettings) (pendingWrite, error) {
	p.Discounts = append([]DiscountTier(nil), p.Discounts...)
	sort.SliceStable(p.Discounts, func(i, j int) bool {
		if p.Discounts[i].Kind != p.Discounts[j].Kind {
			return p.Discounts[i].Kind < p.Discounts[j].Kind
		}
		return p.Discounts[i].Threshold < p.Discounts[j].Threshold
	})
	if p.Discounts == nil {
		p.Discounts = []DiscountTier{}
	}

	if err := validation.Struct(p); err != nil {
		return pendingWrite{}, err
	}
	rows, err := EncodePricingRows(p)
	if err != nil {
		return pendingWrite{}, err
	}
	doc, err := json.Marshal(p)
	if err != nil {
		return pendingWrite{}, fmt.Errorf("encode pricing settings: %w", err)
	}
	rows[KeyPricingDocument] = string(doc)
	return pendingWrite{target: "settings.pricing", memoKey: memoPricing, rows: rows}, nil
}

func preparePayment(p PaymentSettings) (pendingWrite, error) {
	if len(p) == 0 {
		return pendingWrite{}, validation.NewError("payment", "at least one payment method is required")
	}
	if err := ValidatePaymentSettings(p); err != nil {
		return pendingWrite{}, err
	}
	doc, err := json.Marshal(p)
	if err != nil {
		return pendingWrite{}, fmt.Errorf("encode payment settings: %w", err)
	}
	return pendingWrite{
		target:  "settings.payment",
		memoKey: memoPayment,
		rows:    map[string]string{KeyPaymentDocument: string(doc)},
	}, nil
}

func prepareLLM(l LLMSettings) (pendingWrite, error) {
	l.AssistantFunctions = assistant.SanitizeFunctions(l.AssistantFunctions)
	l.SchemaVersion = assistant.CurrentSchemaVersion
	if l.APIKeys == nil {
		l.APIKeys = map[string]string{}
	}
	if err := ValidateLLMSettings(l); err != nil {
		return pendingWrite{}, err
	}
	doc, err := json.Marshal(l)
	if err != nil {
		return pendingWrite{}, fmt.Errorf("encode llm settings: %w", err)
	}
	return pendingWrite{
		target:  "settings.llm",
		memoKey: memoLLM,
		rows:    map[string]string{KeyLLMDocument: string(doc)},
	}, nil
}
