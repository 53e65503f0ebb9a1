package settings

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nulzo/misan-console/internal/assistant"
	"github.com/nulzo/misan-console/internal/store/model"
)

func rows(kv map[string]string) []model.Setting {
	out := make([]model.Setting, 0, len(kv))
	for k, v := range kv {
		out = append(out, model.Setting{Key: k, Value: v})
	}
	return out
}

func TestDecodePricingRows_NoRows(t *testing.T) {
	p, err := DecodePricingRows(nil)
	assert.ErrorIs(t, err, ErrNoPricing)
	assert.Equal(t, DefaultPricingSettings(), p)
}

func TestDecodePricingRows_MalformedRowsYieldDefaults(t *testing.T) {
	p, err := DecodePricingRows(rows(map[string]string{
		KeySubscriptionMonthlyPrice:  `"not a number"`,
		KeySubscriptionMonthlyTokens: `{"unexpected": true}`,
		KeySubscriptionCurrency:      `""`,
		KeyTokenPackPricePerMillion:  `null`,
		KeyPricingDiscounts:          `{"value": "garbage"}`,
		KeyVATEnabled:                `"perhaps"`,
		KeyVATRate:                   `[]`,
	}))
	require.NoError(t, err)
	assert.Equal(t, DefaultPricingSettings(), p)
}

func TestDecodePricingRows_MixedShapes(t *testing.T) {
	p, err := DecodePricingRows(rows(map[string]string{
		KeySubscriptionMonthlyPrice:  `{"value": 3000}`,
		KeySubscriptionMonthlyTokens: `"2000000"`,
		KeySubscriptionCurrency:      `DZD`,
		KeyVATRate:                   `{"vat_rate": 9}`,
		KeyVATEnabled:                `"{\"value\": false}"`,
		KeyPricingDiscounts:          `{"value": [{"threshold": 3, "percentage": 5}, {"threshold": 5000000, "percentage": 7}]}`,
	}))
	require.NoError(t, err)
	assert.Equal(t, 3000.0, p.Subscription.MonthlyPrice)
	assert.Equal(t, int64(2000000), p.Subscription.MonthlyTokens)
	assert.Equal(t, "DZD", p.Subscription.Currency)
	assert.Equal(t, 9.0, p.VAT.Rate)
	assert.False(t, p.VAT.Enabled)
	assert.Equal(t, DefaultPricingSettings().TokenPack, p.TokenPack)
	assert.Equal(t, []DiscountTier{{Kind: DiscountDuration, Threshold: 3, Percentage: 5}}, p.DurationDiscounts())
	assert.Equal(t, []DiscountTier{{Kind: DiscountVolume, Threshold: 5000000, Percentage: 7}}, p.VolumeDiscounts())
}

func TestEncodeDecodePricingRows(t *testing.T) {
	in := DefaultPricingSettings()
	in.VAT.Rate = 9

	encoded, err := EncodePricingRows(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"value": 9}`, encoded[KeyVATRate])

	out, err := DecodePricingRows(rows(encoded))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeDiscounts_TaggedTiersKeepTheirKind(t *testing.T) {
	tiers, ok := decodeDiscounts([]any{
		map[string]any{"kind": "volume", "threshold": 12.0, "percentage": 3.0},
		map[string]any{"kind": "duration", "threshold": 24.0, "percentage": 25.0},
		map[string]any{"threshold": 12.0, "percentage": 20.0},
		map[string]any{"threshold": 13.0, "percentage": 1.0},
		map[string]any{"threshold": "x", "percentage": 1.0},
	})
	require.True(t, ok)
	assert.Equal(t, []DiscountTier{
		{Kind: DiscountVolume, Threshold: 12, Percentage: 3},
		{Kind: DiscountDuration, Threshold: 24, Percentage: 25},
		{Kind: DiscountDuration, Threshold: 12, Percentage: 20},
		{Kind: DiscountVolume, Threshold: 13, Percentage: 1},
	}, tiers)
}

func TestDiscountTier_UnmarshalJSON(t *testing.T) {
	var tiers []DiscountTier
	require.NoError(t, json.Unmarshal([]byte(`[
		{"threshold": 6, "percentage": 10},
		{"kind": "volume", "threshold": 12, "percentage": 2}
	]`), &tiers))
	assert.Equal(t, DiscountDuration, tiers[0].Kind)
	assert.Equal(t, DiscountVolume, tiers[1].Kind)
}

func TestDecodePricingDocument(t *testing.T) {
	doc := `{"pricing": {
		"subscription": {"monthlyPrice": 4000, "monthlyTokens": 1500000, "currency": "DZD"},
		"tokenPack": {"pricePerMillion": 900, "currency": "DZD"},
		"discounts": [{"kind": "duration", "threshold": 6, "percentage": 12}],
		"vat": {"enabled": false, "rate": 0}
	}}`
	p, err := DecodePricingDocument([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 4000.0, p.Subscription.MonthlyPrice)
	assert.Equal(t, 900.0, p.TokenPack.PricePerMillion)
	assert.False(t, p.VAT.Enabled)
	assert.Len(t, p.Discounts, 1)

	_, err = DecodePricingDocument([]byte(`{"subscription": {}}`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = DecodePricingDocument([]byte(`{"subscription": {"monthlyPrice": "x"}, "tokenPack": {}}`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = DecodePricingDocument([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodePaymentSettings_MergesDefaults(t *testing.T) {
	p, err := DecodePaymentSettings([]byte(`{
		"paypal": {"enabled": true},
		"crypto": {"enabled": true, "label": "Crypto"}
	}`))
	require.NoError(t, err)

	def := DefaultPaymentSettings()
	assert.True(t, p[PaymentPayPal].Enabled)
	assert.Equal(t, def[PaymentPayPal].Label, p[PaymentPayPal].Label)
	assert.Equal(t, def[PaymentCardCIB], p[PaymentCardCIB])
	assert.Equal(t, PaymentMethodConfig{Enabled: true, Label: "Crypto"}, p["crypto"])
	assert.Len(t, p, len(def)+1)
}

func TestDecodeLLMSettings_LegacyDocumentIsUpgraded(t *testing.T) {
	doc := `{
		"schemaVersion": "1.4.0",
		"models": {"gpt4": {"name": "GPT-4o", "provider": "openai"}},
		"defaultModels": ["gpt4", "missing", "gpt4"],
		"globalSettings": {"defaultModelId": "missing", "defaultTimeout": "45"},
		"assistantFunctions": {
			"contracts": {"name": "Contracts", "modelConfigId": "gpt4", "openaiAssistantId": "asst_1", "openaiAssistantVersion": "3"}
		}
	}`
	s, err := DecodeLLMSettings([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, assistant.CurrentSchemaVersion, s.SchemaVersion)
	assert.Equal(t, []string{"gpt4"}, s.DefaultModels)
	assert.Equal(t, "gpt4", s.Global.DefaultModelID)
	assert.Equal(t, 45, s.Global.DefaultTimeout)
	require.Contains(t, s.AssistantFunctions, "contracts")
	f := s.AssistantFunctions["contracts"]
	assert.Equal(t, assistant.PromptOpenAIAssistant, f.Prompt.Type)
	assert.Equal(t, "asst_1", f.Prompt.AssistantID)
	assert.Equal(t, "3", f.Prompt.Version)
}

func TestDecodeLLMSettings_Malformed(t *testing.T) {
	s, err := DecodeLLMSettings([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Equal(t, DefaultLLMSettings(), s)
}

func TestValidateLLMSettings(t *testing.T) {
	s := DefaultLLMSettings()
	assert.NoError(t, ValidateLLMSettings(s))

	temp := 3.0
	f := s.AssistantFunctions["conversation"]
	f.Temperature = &temp
	f.ModelConfigID = "unknown"
	s.AssistantFunctions["conversation"] = f
	s.DefaultModels = []string{"nope"}

	err := ValidateLLMSettings(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assistantFunctions.conversation.temperature")
	assert.Contains(t, err.Error(), "assistantFunctions.conversation.modelConfigId")
	assert.Contains(t, err.Error(), "defaultModels")
}

func TestDecodeSiteSettings(t *testing.T) {
	site, err := DecodeSiteSettings([]byte(`{"siteName":{"value":" Misan Pro "},"freeTrialDays":"14","maintenanceMode":"on"}`))
	require.NoError(t, err)
	assert.Equal(t, "Misan Pro", site.SiteName)
	assert.Equal(t, 14, site.FreeTrialDays)
	assert.True(t, site.MaintenanceMode)
	assert.Equal(t, DefaultSiteSettings().FreeTrialTokens, site.FreeTrialTokens)

	_, err = DecodeSiteSettings([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeSiteSettings_OutOfRangeFallsBackPerField(t *testing.T) {
	def := DefaultSiteSettings()

	site, err := DecodeSiteSettings([]byte(`{"siteName":"Misan","freeTrialTokens":1e30,"freeTrialDays":-5,"supportEmail":"not-an-email"}`))
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Equal(t, def.FreeTrialTokens, site.FreeTrialTokens)
	assert.Equal(t, def.FreeTrialDays, site.FreeTrialDays)
	assert.Equal(t, def.SupportEmail, site.SupportEmail)
	assert.Equal(t, "Misan", site.SiteName)

	site, _ = DecodeSiteSettings([]byte(`{"freeTrialDays":400,"freeTrialTokens":-1}`))
	assert.Equal(t, def.FreeTrialDays, site.FreeTrialDays)
	assert.Equal(t, def.FreeTrialTokens, site.FreeTrialTokens)
}
