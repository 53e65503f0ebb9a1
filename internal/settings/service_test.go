package settings

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nulzo/misan-console/internal/store"
	"github.com/nulzo/misan-console/internal/store/sqlite"
	"github.com/nulzo/misan-console/internal/validation"
)

func newTestRepo(t *testing.T) store.Repository {
	t.Helper()
	repo, err := sqlite.NewSQLiteStorage(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

type stubSource struct {
	name    string
	pricing PricingSettings
	err     error
	calls   atomic.Int32
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Pricing(context.Context) (PricingSettings, error) {
	s.calls.Add(1)
	return s.pricing, s.err
}

func TestLoad_EmptyStoreReturnsDefaults(t *testing.T) {
	svc := NewService(newTestRepo(t), nil, nil)
	ctx := context.Background()

	assert.Equal(t, DefaultSiteSettings(), svc.LoadSiteSettings(ctx))
	assert.Equal(t, DefaultPricingSettings(), svc.LoadPricingSettings(ctx))
	assert.Equal(t, DefaultPaymentSettings(), svc.LoadPaymentSettings(ctx))
	assert.Equal(t, DefaultLLMSettings(), svc.LoadLLMSettings(ctx))
}

func TestLoad_MalformedDocumentsReturnDefaults(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Settings().Upsert(ctx, KeySiteDocument, `"just a string"`))
	require.NoError(t, repo.Settings().Upsert(ctx, KeyPricingDocument, `{"subscription": 1}`))
	require.NoError(t, repo.Settings().Upsert(ctx, KeyLLMDocument, `not even json`))

	svc := NewService(repo, nil, nil)
	assert.Equal(t, DefaultSiteSettings(), svc.LoadSiteSettings(ctx))
	assert.Equal(t, DefaultPricingSettings(), svc.LoadPricingSettings(ctx))
	assert.Equal(t, DefaultLLMSettings(), svc.LoadLLMSettings(ctx))
}

func TestSaveSiteSettings_InvalidatesMemo(t *testing.T) {
	svc := NewService(newTestRepo(t), nil, nil)
	ctx := context.Background()

	assert.Equal(t, "Misan", svc.LoadSiteSettings(ctx).SiteName)

	site := DefaultSiteSettings()
	site.SiteName = "Misan Pro"
	require.NoError(t, svc.SaveSiteSettings(ctx, site))

	assert.Equal(t, "Misan Pro", svc.LoadSiteSettings(ctx).SiteName)
}

func TestSaveSiteSettings_Validation(t *testing.T) {
	svc := NewService(newTestRepo(t), nil, nil)
	site := DefaultSiteSettings()
	site.SiteName = ""
	site.SupportEmail = "nope"

	err := svc.SaveSiteSettings(context.Background(), site)
	verr, ok := validation.As(err)
	require.True(t, ok)
	assert.Contains(t, verr.Fields, "siteName")
	assert.Contains(t, verr.Fields, "supportEmail")
}

func TestSavePricingSettings_WritesRowsAndDocument(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	p := DefaultPricingSettings()
	p.Subscription.MonthlyPrice = 3200
	p.Discounts = []DiscountTier{
		{Kind: DiscountVolume, Threshold: 12, Percentage: 2},
		{Kind: DiscountDuration, Threshold: 6, Percentage: 10},
	}
	require.NoError(t, svc.SavePricingSettings(ctx, p))

	got := svc.LoadPricingSettings(ctx)
	assert.Equal(t, 3200.0, got.Subscription.MonthlyPrice)
	assert.Equal(t, []DiscountTier{{Kind: DiscountVolume, Threshold: 12, Percentage: 2}}, got.VolumeDiscounts())

	row, err := repo.Settings().Get(ctx, KeySubscriptionMonthlyPrice)
	require.NoError(t, err)
	assert.JSONEq(t, `{"value": 3200}`, row.Value)

	doc, err := repo.Settings().Get(ctx, KeyPricingDocument)
	require.NoError(t, err)
	var stored PricingSettings
	require.NoError(t, json.Unmarshal([]byte(doc.Value), &stored))
	assert.Equal(t, 3200.0, stored.Subscription.MonthlyPrice)
}

func TestSavePricingSettings_RejectsUnknownKind(t *testing.T) {
	svc := NewService(newTestRepo(t), nil, nil)
	p := DefaultPricingSettings()
	p.Discounts = []DiscountTier{{Kind: "loyalty", Threshold: 3, Percentage: 5}}

	err := svc.SavePricingSettings(context.Background(), p)
	verr, ok := validation.As(err)
	require.True(t, ok)
	assert.Contains(t, verr.Fields, "discounts[0].kind")
}

func TestPricingChain_FirstValidSourceWins(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	remote := DefaultPricingSettings()
	remote.Subscription.MonthlyPrice = 9999
	public := &stubSource{name: "public", err: errors.New("unreachable")}
	admin := &stubSource{name: "admin", pricing: remote}

	svc := NewService(repo, nil, nil, WithPublicPricingSource(public), WithAdminPricingSource(admin))

	// no rows and no document: admin source is reached
	assert.Equal(t, 9999.0, svc.LoadPricingSettings(ctx).Subscription.MonthlyPrice)
	assert.Equal(t, int32(1), public.calls.Load())
	assert.Equal(t, int32(1), admin.calls.Load())

	// rows now exist and come before the admin source
	require.NoError(t, repo.Settings().Upsert(ctx, KeySubscriptionMonthlyPrice, `{"value": 1234}`))
	svc.memo.Invalidate(ctx, memoPricing)
	assert.Equal(t, 1234.0, svc.LoadPricingSettings(ctx).Subscription.MonthlyPrice)
	assert.Equal(t, int32(1), admin.calls.Load())
}

func TestPricingChain_DefaultsAfterFailuresAreNotCached(t *testing.T) {
	public := &stubSource{name: "public", err: errors.New("timeout")}
	svc := NewService(newTestRepo(t), nil, nil, WithPublicPricingSource(public))
	ctx := context.Background()

	assert.Equal(t, DefaultPricingSettings(), svc.LoadPricingSettings(ctx))
	assert.Equal(t, DefaultPricingSettings(), svc.LoadPricingSettings(ctx))
	assert.Equal(t, int32(2), public.calls.Load())
}

func TestPricingChain_SuccessIsCached(t *testing.T) {
	public := &stubSource{name: "public", pricing: DefaultPricingSettings()}
	svc := NewService(newTestRepo(t), nil, nil, WithPublicPricingSource(public))
	ctx := context.Background()

	svc.LoadPricingSettings(ctx)
	svc.LoadPricingSettings(ctx)
	assert.Equal(t, int32(1), public.calls.Load())
}

func TestSaveLLMSettings_PublicProjection(t *testing.T) {
	svc := NewService(newTestRepo(t), nil, nil)
	ctx := context.Background()

	s := DefaultLLMSettings()
	s.APIKeys = map[string]string{"legal": "sk-secret"}
	f := s.AssistantFunctions["summary"]
	f.Enabled = false
	s.AssistantFunctions["summary"] = f
	c := s.AssistantFunctions["conversation"]
	c.APIKeyName = "legal"
	s.AssistantFunctions["conversation"] = c
	require.NoError(t, svc.SaveLLMSettings(ctx, s))

	pub := svc.PublicLLMSettings(ctx)
	assert.NotContains(t, pub.AssistantFunctions, "summary")
	require.Contains(t, pub.AssistantFunctions, "conversation")

	data, err := json.Marshal(pub)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-secret")
	assert.NotContains(t, string(data), "apiKeyName")
}

func TestUpdateAdminSettings_AllOrNothing(t *testing.T) {
	svc := NewService(newTestRepo(t), nil, nil)
	ctx := context.Background()

	site := DefaultSiteSettings()
	site.SiteName = "Renamed"
	bad := DefaultPricingSettings()
	bad.VAT.Rate = 150

	err := svc.UpdateAdminSettings(ctx, AdminSettingsPatch{Settings: &site, Pricing: &bad})
	verr, ok := validation.As(err)
	require.True(t, ok)
	assert.Contains(t, verr.Fields, "pricing.vat.rate")
	assert.Equal(t, "Misan", svc.LoadSiteSettings(ctx).SiteName)

	good := DefaultPricingSettings()
	require.NoError(t, svc.UpdateAdminSettings(ctx, AdminSettingsPatch{Settings: &site, Pricing: &good}))

	all := svc.AdminSettings(ctx)
	assert.Equal(t, "Renamed", all.Settings.SiteName)
	assert.Equal(t, good, all.Pricing)
}

func TestUpdateAdminSettings_EmptyPatch(t *testing.T) {
	svc := NewService(newTestRepo(t), nil, nil)
	err := svc.UpdateAdminSettings(context.Background(), AdminSettingsPatch{})
	_, ok := validation.As(err)
	assert.True(t, ok)
}
