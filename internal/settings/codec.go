package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nulzo/misan-console/internal/assistant"
	"github.com/nulzo/misan-console/internal/store/model"
	"github.com/nulzo/misan-console/internal/validation"
)

// ErrMalformed marks a stored document that could not be decoded.
var ErrMalformed = errors.New("malformed settings document")

// Keys of the system_settings table.
const (
	KeySiteDocument    = "site_settings"
	KeyPaymentDocument = "payment_settings"
	KeyLLMDocument     = "llm_settings"
	KeyPricingDocument = "pricing_settings"

	KeySubscriptionMonthlyPrice  = "subscription_monthly_price"
	KeySubscriptionMonthlyTokens = "subscription_monthly_tokens"
	KeySubscriptionCurrency      = "subscription_currency"
	KeyTokenPackPricePerMillion  = "token_pack_price_per_million"
	KeyTokenPackCurrency         = "token_pack_currency"
	KeyPricingDiscounts          = "pricing_discounts"
	KeyVATEnabled                = "vat_enabled"
	KeyVATRate                   = "vat_rate"
)

// PricingKeys are the flat rows that together make up PricingSettings.
var PricingKeys = []string{
	KeySubscriptionMonthlyPrice,
	KeySubscriptionMonthlyTokens,
	KeySubscriptionCurrency,
	KeyTokenPackPricePerMillion,
	KeyTokenPackCurrency,
	KeyPricingDiscounts,
	KeyVATEnabled,
	KeyVATRate,
}

// DecodeSiteSettings reads a site document. Each field falls back to its default
// independently, both when it cannot be parsed and when it fails validation.
// The error reports fields that were replaced by defaults.
func DecodeSiteSettings(data []byte) (SiteSettings, error) {
	def := DefaultSiteSettings()
	obj, ok := decodeObject(data)
	if !ok {
		return def, ErrMalformed
	}
	site := SiteSettings{
		SiteName:            ParseStringSetting(obj["siteName"], "siteName", def.SiteName),
		SiteDescription:     ParseStringSetting(obj["siteDescription"], "siteDescription", def.SiteDescription),
		SupportEmail:        ParseStringSetting(obj["supportEmail"], "supportEmail", def.SupportEmail),
		MailAPIKey:          ParseStringSetting(obj["mailApiKey"], "mailApiKey", def.MailAPIKey),
		MaintenanceMode:     ParseBooleanSetting(obj["maintenanceMode"], "maintenanceMode", def.MaintenanceMode),
		RegistrationEnabled: ParseBooleanSetting(obj["registrationEnabled"], "registrationEnabled", def.RegistrationEnabled),
		FreeTrialDays:       int(ParseIntSetting(obj["freeTrialDays"], "freeTrialDays", int64(def.FreeTrialDays))),
		FreeTrialTokens:     ParseIntSetting(obj["freeTrialTokens"], "freeTrialTokens", def.FreeTrialTokens),
	}

	err := validation.Struct(site)
	if err == nil {
		return site, nil
	}
	verr, ok := validation.As(err)
	if !ok {
		return def, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for field := range verr.Fields {
		switch field {
		case "siteName":
			site.SiteName = def.SiteName
		case "siteDescription":
			site.SiteDescription = def.SiteDescription
		case "supportEmail":
			site.SupportEmail = def.SupportEmail
		case "freeTrialDays":
			site.FreeTrialDays = def.FreeTrialDays
		case "freeTrialTokens":
			site.FreeTrialTokens = def.FreeTrialTokens
		default:
			return def, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	return site, fmt.Errorf("%w: %v", ErrMalformed, err)
}

// DecodePricingRows assembles pricing from flat rows. It fails only when none
// of PricingKeys is present; malformed individual rows fall back to defaults.
func DecodePricingRows(rows []model.Setting) (PricingSettings, error) {
	byKey := make(map[string]any, len(rows))
	for _, r := range rows {
		byKey[r.Key] = parseStored(r.Value)
	}

	found := false
	for _, k := range PricingKeys {
		if _, ok := byKey[k]; ok {
			found = true
			break
		}
	}
	if !found {
		return DefaultPricingSettings(), ErrNoPricing
	}

	def := DefaultPricingSettings()
	p := PricingSettings{
		Subscription: SubscriptionPricing{
			MonthlyPrice:  ParseNumberSetting(byKey[KeySubscriptionMonthlyPrice], KeySubscriptionMonthlyPrice, def.Subscription.MonthlyPrice),
			MonthlyTokens: ParseIntSetting(byKey[KeySubscriptionMonthlyTokens], KeySubscriptionMonthlyTokens, def.Subscription.MonthlyTokens),
			Currency:      ParseStringSetting(byKey[KeySubscriptionCurrency], KeySubscriptionCurrency, def.Subscription.Currency),
		},
		TokenPack: TokenPackPricing{
			PricePerMillion: ParseNumberSetting(byKey[KeyTokenPackPricePerMillion], KeyTokenPackPricePerMillion, def.TokenPack.PricePerMillion),
			Currency:        ParseStringSetting(byKey[KeyTokenPackCurrency], KeyTokenPackCurrency, def.TokenPack.Currency),
		},
		Discounts: def.Discounts,
		VAT: VATSettings{
			Enabled: ParseBooleanSetting(byKey[KeyVATEnabled], KeyVATEnabled, def.VAT.Enabled),
			Rate:    ParseNumberSetting(byKey[KeyVATRate], KeyVATRate, def.VAT.Rate),
		},
	}

	if raw, ok := ExtractValue(byKey[KeyPricingDiscounts], KeyPricingDiscounts); ok {
		if tiers, ok := decodeDiscounts(raw); ok {
			p.Discounts = tiers
		}
	}

	if err := validation.Struct(p); err != nil {
		return def, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return p, nil
}

// EncodePricingRows is the inverse of DecodePricingRows. Values use the
// {"value": x} wrapper.
func EncodePricingRows(p PricingSettings) (map[string]string, error) {
	values := map[string]any{
		KeySubscriptionMonthlyPrice:  p.Subscription.MonthlyPrice,
		KeySubscriptionMonthlyTokens: p.Subscription.MonthlyTokens,
		KeySubscriptionCurrency:      p.Subscription.Currency,
		KeyTokenPackPricePerMillion:  p.TokenPack.PricePerMillion,
		KeyTokenPackCurrency:         p.TokenPack.Currency,
		KeyPricingDiscounts:          p.Discounts,
		KeyVATEnabled:                p.VAT.Enabled,
		KeyVATRate:                   p.VAT.Rate,
	}
	rows := make(map[string]string, len(values))
	for k, v := range values {
		s, err := wrapValue(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", k, err)
		}
		rows[k] = s
	}
	return rows, nil
}

// DecodePricingDocument reads pricing from an aggregate document, either bare
// or wrapped as {"pricing": {...}}. Unlike the row decoder it is strict: a
// document missing a section, or failing validation, is malformed.
func DecodePricingDocument(data []byte) (PricingSettings, error) {
	obj, ok := decodeObject(data)
	if !ok {
		return DefaultPricingSettings(), ErrMalformed
	}
	if inner, ok := obj["pricing"].(map[string]any); ok {
		obj = inner
	}

	sub, okSub := obj["subscription"].(map[string]any)
	pack, okPack := obj["tokenPack"].(map[string]any)
	if !okSub || !okPack {
		return DefaultPricingSettings(), fmt.Errorf("%w: missing subscription or tokenPack", ErrMalformed)
	}

	def := DefaultPricingSettings()
	p := PricingSettings{
		Subscription: SubscriptionPricing{
			MonthlyPrice:  ParseNumberSetting(sub["monthlyPrice"], "monthlyPrice", -1),
			MonthlyTokens: ParseIntSetting(sub["monthlyTokens"], "monthlyTokens", -1),
			Currency:      ParseStringSetting(sub["currency"], "currency", def.Subscription.Currency),
		},
		TokenPack: TokenPackPricing{
			PricePerMillion: ParseNumberSetting(pack["pricePerMillion"], "pricePerMillion", -1),
			Currency:        ParseStringSetting(pack["currency"], "currency", def.TokenPack.Currency),
		},
		Discounts: def.Discounts,
		VAT:       def.VAT,
	}
	if raw, present := obj["discounts"]; present {
		tiers, ok := decodeDiscounts(raw)
		if !ok {
			return def, fmt.Errorf("%w: discounts", ErrMalformed)
		}
		p.Discounts = tiers
	}
	if vat, ok := obj["vat"].(map[string]any); ok {
		p.VAT = VATSettings{
			Enabled: ParseBooleanSetting(vat["enabled"], "enabled", def.VAT.Enabled),
			Rate:    ParseNumberSetting(vat["rate"], "rate", def.VAT.Rate),
		}
	}

	if err := validation.Struct(p); err != nil {
		return def, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return p, nil
}

// decodeDiscounts reads a list of tiers. Tiers lacking a valid kind are
// classified here, once, by the legacy magnitude rule; entries without a
// usable threshold or percentage are dropped.
func decodeDiscounts(raw any) ([]DiscountTier, bool) {
	list, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	tiers := make([]DiscountTier, 0, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		threshold, okT := toFloatValue(entry["threshold"])
		percentage, okP := toFloatValue(entry["percentage"])
		if !okT || !okP {
			continue
		}
		kind := DiscountKind(strings.ToLower(ParseStringSetting(entry["kind"], "kind", "")))
		if kind != DiscountDuration && kind != DiscountVolume {
			kind = classifyLegacyDiscount(threshold)
		}
		tiers = append(tiers, DiscountTier{Kind: kind, Threshold: threshold, Percentage: percentage})
	}
	return tiers, true
}

func classifyLegacyDiscount(threshold float64) DiscountKind {
	if threshold <= legacyDurationMax {
		return DiscountDuration
	}
	return DiscountVolume
}

func toFloatValue(raw any) (float64, bool) {
	v, ok := ExtractPrimitive(raw, "")
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// DecodePaymentSettings merges a stored payment document over the defaults.
// Built-in methods missing from the document keep their defaults; unknown
// methods are added.
func DecodePaymentSettings(data []byte) (PaymentSettings, error) {
	out := DefaultPaymentSettings()
	obj, ok := decodeObject(data)
	if !ok {
		return out, ErrMalformed
	}
	for id, v := range obj {
		entry, ok := v.(map[string]any)
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			continue
		}
		method := PaymentMethod(id)
		base, known := out[method]
		if !known {
			base = PaymentMethodConfig{Label: id}
		}
		out[method] = PaymentMethodConfig{
			Enabled:     ParseBooleanSetting(entry["enabled"], "enabled", base.Enabled),
			Label:       ParseStringSetting(entry["label"], "label", base.Label),
			Description: ParseStringSetting(entry["description"], "description", base.Description),
		}
	}
	return out, nil
}

// DecodeLLMSettings reads the LLM document. Sections that are missing or
// unusable fall back to their defaults; assistant functions are sanitized.
func DecodeLLMSettings(data []byte) (LLMSettings, error) {
	def := DefaultLLMSettings()
	obj, ok := decodeObject(data)
	if !ok {
		return def, ErrMalformed
	}

	s := LLMSettings{
		SchemaVersion: ParseStringSetting(obj["schemaVersion"], "schemaVersion", ""),
		Models:        decodeModels(obj["models"]),
		APIKeys:       decodeStringMap(obj["apiKeys"]),
	}
	if len(s.Models) == 0 {
		s.Models = def.Models
	}

	s.DefaultModels = decodeDefaultModels(obj["defaultModels"], s.Models)
	if len(s.DefaultModels) == 0 {
		s.DefaultModels = decodeDefaultModels(toAnySlice(def.DefaultModels), s.Models)
	}

	s.MaxSimultaneousModels = int(ParseIntSetting(obj["maxSimultaneousModels"], "maxSimultaneousModels", int64(def.MaxSimultaneousModels)))
	if s.MaxSimultaneousModels < 1 {
		s.MaxSimultaneousModels = def.MaxSimultaneousModels
	}

	g, _ := obj["globalSettings"].(map[string]any)
	s.Global = GlobalLLMSettings{
		AllowUserOverrides:  ParseBooleanSetting(g["allowUserOverrides"], "allowUserOverrides", def.Global.AllowUserOverrides),
		DefaultTimeout:      int(ParseIntSetting(g["defaultTimeout"], "defaultTimeout", int64(def.Global.DefaultTimeout))),
		MaxRetries:          int(ParseIntSetting(g["maxRetries"], "maxRetries", int64(def.Global.MaxRetries))),
		EnableCaching:       ParseBooleanSetting(g["enableCaching"], "enableCaching", def.Global.EnableCaching),
		AllowModelSelection: ParseBooleanSetting(g["allowModelSelection"], "allowModelSelection", def.Global.AllowModelSelection),
		DefaultModelID:      ParseStringSetting(g["defaultModelId"], "defaultModelId", def.Global.DefaultModelID),
	}
	if _, ok := s.Models[s.Global.DefaultModelID]; !ok && len(s.DefaultModels) > 0 {
		s.Global.DefaultModelID = s.DefaultModels[0]
	}

	s.AssistantFunctions = assistant.SanitizeLegacyFunctions(obj["assistantFunctions"], s.SchemaVersion)
	s.SchemaVersion = assistant.CurrentSchemaVersion
	return s, nil
}

func decodeModels(raw any) map[string]ModelInfo {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]ModelInfo, len(obj))
	for id, v := range obj {
		entry, ok := v.(map[string]any)
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			continue
		}
		out[id] = ModelInfo{
			Name:        ParseStringSetting(entry["name"], "name", id),
			Provider:    ParseStringSetting(entry["provider"], "provider", assistant.DefaultProvider),
			Description: ParseStringSetting(entry["description"], "description", ""),
			Color:       ParseStringSetting(entry["color"], "color", ""),
			IsPremium:   ParseBooleanSetting(entry["isPremium"], "isPremium", false),
		}
	}
	return out
}

func decodeDefaultModels(raw any, models map[string]ModelInfo) []string {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, v := range list {
		id, ok := v.(string)
		id = strings.TrimSpace(id)
		if !ok || id == "" || seen[id] {
			continue
		}
		if _, exists := models[id]; !exists {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func decodeStringMap(raw any) map[string]string {
	out := map[string]string{}
	obj, ok := raw.(map[string]any)
	if !ok {
		return out
	}
	for k, v := range obj {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func decodeObject(data []byte) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// ValidateLLMSettings checks cross-field references that struct tags cannot express.
func ValidateLLMSettings(s LLMSettings) error {
	verr := &validation.Error{}
	if err := validation.Struct(s); err != nil {
		if fe, ok := validation.As(err); ok {
			for k, v := range fe.Fields {
				verr.Add(k, v)
			}
		}
	}
	for _, id := range s.DefaultModels {
		if _, ok := s.Models[id]; !ok {
			verr.Add("defaultModels", fmt.Sprintf("unknown model %q", id))
		}
	}
	if id := s.Global.DefaultModelID; id != "" {
		if _, ok := s.Models[id]; !ok {
			verr.Add("globalSettings.defaultModelId", fmt.Sprintf("unknown model %q", id))
		}
	}

	ids := make([]string, 0, len(s.AssistantFunctions))
	for id := range s.AssistantFunctions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		f := s.AssistantFunctions[id]
		prefix := "assistantFunctions." + id
		if _, ok := s.Models[f.ModelConfigID]; !ok {
			verr.Add(prefix+".modelConfigId", fmt.Sprintf("unknown model %q", f.ModelConfigID))
		}
		if f.Temperature != nil && (*f.Temperature < 0 || *f.Temperature > 2) {
			verr.Add(prefix+".temperature", "must be between 0 and 2")
		}
		if f.TopP != nil && (*f.TopP < 0 || *f.TopP > 1) {
			verr.Add(prefix+".topP", "must be between 0 and 1")
		}
		if f.MaxTokens != nil && *f.MaxTokens <= 0 {
			verr.Add(prefix+".maxTokens", "must be greater than 0")
		}
		if f.APIKeyName != "" {
			if _, ok := s.APIKeys[f.APIKeyName]; !ok {
				verr.Add(prefix+".apiKeyName", fmt.Sprintf("unknown API key %q", f.APIKeyName))
			}
		}
	}
	return verr.OrNil()
}

// ValidatePaymentSettings validates every method entry.
func ValidatePaymentSettings(p PaymentSettings) error {
	verr := &validation.Error{}
	for id, cfg := range p {
		if strings.TrimSpace(string(id)) == "" {
			verr.Add("payment", "method id must not be blank")
			continue
		}
		if err := validation.Struct(cfg); err != nil {
			if fe, ok := validation.As(err); ok {
				for k, v := range fe.Fields {
					verr.Add(string(id)+"."+k, v)
				}
			}
		}
	}
	return verr.OrNil()
}
