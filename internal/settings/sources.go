package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nulzo/misan-console/internal/store"
)

// ErrNoPricing is returned by a source that holds no pricing at all. The chain
// moves on without logging it.
var ErrNoPricing = errors.New("no pricing stored")

// PricingSource is one step of the pricing fallback chain.
type PricingSource interface {
	Name() string
	Pricing(ctx context.Context) (PricingSettings, error)
}

// FetchFunc returns a raw pricing-bearing JSON document.
type FetchFunc func(ctx context.Context) (json.RawMessage, error)

// RemotePricingSource decodes pricing out of a remote aggregate response. Both
// {"pricing": {...}} envelopes and bare pricing objects are accepted.
type RemotePricingSource struct {
	name  string
	fetch FetchFunc
}

func NewRemotePricingSource(name string, fetch FetchFunc) *RemotePricingSource {
	return &RemotePricingSource{name: name, fetch: fetch}
}

func (r *RemotePricingSource) Name() string { return r.name }

func (r *RemotePricingSource) Pricing(ctx context.Context) (PricingSettings, error) {
	raw, err := r.fetch(ctx)
	if err != nil {
		return DefaultPricingSettings(), err
	}
	return DecodePricingDocument(raw)
}

// tableSource reads the flat pricing rows.
type tableSource struct {
	repo store.Repository
}

func (t tableSource) Name() string { return "system_settings" }

func (t tableSource) Pricing(ctx context.Context) (PricingSettings, error) {
	rows, err := t.repo.Settings().GetMany(ctx, PricingKeys)
	if err != nil {
		return DefaultPricingSettings(), fmt.Errorf("read pricing rows: %w", err)
	}
	return DecodePricingRows(rows)
}

// documentSource reads the aggregate pricing document kept next to the rows.
type documentSource struct {
	repo store.Repository
}

func (d documentSource) Name() string { return KeyPricingDocument }

func (d documentSource) Pricing(ctx context.Context) (PricingSettings, error) {
	row, err := d.repo.Settings().Get(ctx, KeyPricingDocument)
	if errors.Is(err, store.ErrNotFound) {
		return DefaultPricingSettings(), ErrNoPricing
	}
	if err != nil {
		return DefaultPricingSettings(), fmt.Errorf("read pricing document: %w", err)
	}
	data, ok := documentBytes(row.Value, KeyPricingDocument)
	if !ok {
		return DefaultPricingSettings(), ErrMalformed
	}
	return DecodePricingDocument(data)
}

// documentBytes peels value wrappers off a stored document and returns the
// inner object as JSON.
func documentBytes(value, key string) ([]byte, bool) {
	v, ok := ExtractValue(parseStored(value), key)
	if !ok {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, false
	}
	return data, true
}
