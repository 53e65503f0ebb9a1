package settings

import (
	"encoding/json"
	"sort"

	"github.com/nulzo/misan-console/internal/assistant"
)

// SiteSettings is the flat site configuration record.
type SiteSettings struct {
	SiteName            string `json:"siteName" validate:"required,max=120"`
	SiteDescription     string `json:"siteDescription" validate:"max=500"`
	SupportEmail        string `json:"supportEmail" validate:"omitempty,email"`
	MailAPIKey          string `json:"mailApiKey"`
	MaintenanceMode     bool   `json:"maintenanceMode"`
	RegistrationEnabled bool   `json:"registrationEnabled"`
	FreeTrialDays       int    `json:"freeTrialDays" validate:"gte=0,lte=365"`
	FreeTrialTokens     int64  `json:"freeTrialTokens" validate:"gte=0"`
}

// DefaultSiteSettings is returned when nothing usable is stored.
func DefaultSiteSettings() SiteSettings {
	return SiteSettings{
		SiteName:            "Misan",
		SiteDescription:     "AI legal assistant",
		SupportEmail:        "support@misan.dz",
		RegistrationEnabled: true,
		FreeTrialDays:       7,
		FreeTrialTokens:     100000,
	}
}

type SubscriptionPricing struct {
	MonthlyPrice  float64 `json:"monthlyPrice" validate:"gte=0"`
	MonthlyTokens int64   `json:"monthlyTokens" validate:"gte=0"`
	Currency      string  `json:"currency" validate:"required,len=3"`
}

type TokenPackPricing struct {
	PricePerMillion float64 `json:"pricePerMillion" validate:"gte=0"`
	Currency        string  `json:"currency" validate:"required,len=3"`
}

// DiscountKind says what a discount threshold measures.
type DiscountKind string

const (
	// DiscountDuration thresholds are subscription lengths in months.
	DiscountDuration DiscountKind = "duration"
	// DiscountVolume thresholds are token counts.
	DiscountVolume DiscountKind = "volume"
)

// legacyDurationMax is the largest threshold that untagged legacy tiers
// treat as a number of months.
const legacyDurationMax = 12

type DiscountTier struct {
	Kind       DiscountKind `json:"kind" validate:"required,oneof=duration volume"`
	Threshold  float64      `json:"threshold" validate:"gt=0"`
	Percentage float64      `json:"percentage" validate:"gte=0,lte=100"`
}

// UnmarshalJSON classifies tiers written without a kind by the legacy rule.
// An explicit kind is kept as sent, even when it is not a known one.
func (d *DiscountTier) UnmarshalJSON(data []byte) error {
	type plain DiscountTier
	var t plain
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	if t.Kind == "" {
		t.Kind = classifyLegacyDiscount(t.Threshold)
	}
	*d = DiscountTier(t)
	return nil
}

type VATSettings struct {
	Enabled bool    `json:"enabled"`
	Rate    float64 `json:"rate" validate:"gte=0,lte=100"`
}

type PricingSettings struct {
	Subscription SubscriptionPricing `json:"subscription"`
	TokenPack    TokenPackPricing    `json:"tokenPack"`
	Discounts    []DiscountTier      `json:"discounts" validate:"dive"`
	VAT          VATSettings         `json:"vat"`
}

// DurationDiscounts returns the duration tiers sorted by threshold.
func (p PricingSettings) DurationDiscounts() []DiscountTier {
	return p.discountsOf(DiscountDuration)
}

// VolumeDiscounts returns the volume tiers sorted by threshold.
func (p PricingSettings) VolumeDiscounts() []DiscountTier {
	return p.discountsOf(DiscountVolume)
}

func (p PricingSettings) discountsOf(kind DiscountKind) []DiscountTier {
	var out []DiscountTier
	for _, d := range p.Discounts {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Threshold < out[j].Threshold })
	return out
}

// DefaultPricingSettings is returned when no pricing source yields data.
func DefaultPricingSettings() PricingSettings {
	return PricingSettings{
		Subscription: SubscriptionPricing{MonthlyPrice: 2500, MonthlyTokens: 1000000, Currency: "DZD"},
		TokenPack:    TokenPackPricing{PricePerMillion: 1000, Currency: "DZD"},
		Discounts: []DiscountTier{
			{Kind: DiscountDuration, Threshold: 3, Percentage: 5},
			{Kind: DiscountDuration, Threshold: 6, Percentage: 10},
			{Kind: DiscountDuration, Threshold: 12, Percentage: 20},
			{Kind: DiscountVolume, Threshold: 5000000, Percentage: 5},
			{Kind: DiscountVolume, Threshold: 10000000, Percentage: 10},
		},
		VAT: VATSettings{Enabled: true, Rate: 19},
	}
}

// PaymentMethod identifies a payment option offered at checkout.
type PaymentMethod string

const (
	PaymentCardCIB           PaymentMethod = "card_cib"
	PaymentMobile            PaymentMethod = "mobile_payment"
	PaymentBankTransfer      PaymentMethod = "bank_transfer"
	PaymentCardInternational PaymentMethod = "card_international"
	PaymentPayPal            PaymentMethod = "paypal"
)

type PaymentMethodConfig struct {
	Enabled     bool   `json:"enabled"`
	Label       string `json:"label" validate:"required,max=80"`
	Description string `json:"description" validate:"max=500"`
}

// PaymentSettings maps method ids to their configuration. Methods outside the
// built-in set are allowed and preserved.
type PaymentSettings map[PaymentMethod]PaymentMethodConfig

// DefaultPaymentSettings covers the built-in methods.
func DefaultPaymentSettings() PaymentSettings {
	return PaymentSettings{
		PaymentCardCIB:           {Enabled: true, Label: "CIB card", Description: "Pay with a CIB or Edahabia card."},
		PaymentMobile:            {Enabled: false, Label: "Mobile payment", Description: "Pay from your mobile wallet."},
		PaymentBankTransfer:      {Enabled: true, Label: "Bank transfer", Description: "Transfer to our bank account; activation after receipt."},
		PaymentCardInternational: {Enabled: false, Label: "International card", Description: "Visa or Mastercard."},
		PaymentPayPal:            {Enabled: false, Label: "PayPal", Description: "Pay with your PayPal account."},
	}
}

type ModelInfo struct {
	Name        string `json:"name" validate:"required"`
	Provider    string `json:"provider" validate:"required"`
	Description string `json:"description"`
	Color       string `json:"color"`
	IsPremium   bool   `json:"isPremium"`
}

type GlobalLLMSettings struct {
	AllowUserOverrides  bool   `json:"allowUserOverrides"`
	DefaultTimeout      int    `json:"defaultTimeout" validate:"gte=1,lte=600"` // seconds
	MaxRetries          int    `json:"maxRetries" validate:"gte=0,lte=10"`
	EnableCaching       bool   `json:"enableCaching"`
	AllowModelSelection bool   `json:"allowModelSelection"`
	DefaultModelID      string `json:"defaultModelId"`
}

type LLMSettings struct {
	SchemaVersion         string                              `json:"schemaVersion"`
	Models                map[string]ModelInfo                `json:"models" validate:"required,min=1,dive"`
	DefaultModels         []string                            `json:"defaultModels"`
	MaxSimultaneousModels int                                 `json:"maxSimultaneousModels" validate:"gte=1,lte=10"`
	APIKeys               map[string]string                   `json:"apiKeys"`
	Global                GlobalLLMSettings                   `json:"globalSettings"`
	AssistantFunctions    map[string]assistant.FunctionConfig `json:"assistantFunctions"`
}

// DefaultLLMSettings is returned when the stored document is absent or unreadable.
func DefaultLLMSettings() LLMSettings {
	return LLMSettings{
		SchemaVersion: assistant.CurrentSchemaVersion,
		Models: map[string]ModelInfo{
			"gpt35": {Name: "GPT-3.5 Turbo", Provider: "openai", Description: "Fast general purpose model.", Color: "#10a37f"},
			"gpt4":  {Name: "GPT-4o", Provider: "openai", Description: "Most capable model for complex legal analysis.", Color: "#7c3aed", IsPremium: true},
		},
		DefaultModels:         []string{"gpt35"},
		MaxSimultaneousModels: 3,
		APIKeys:               map[string]string{},
		Global: GlobalLLMSettings{
			DefaultTimeout:      30,
			MaxRetries:          2,
			EnableCaching:       true,
			AllowModelSelection: true,
			DefaultModelID:      "gpt35",
		},
		AssistantFunctions: assistant.Defaults(),
	}
}

// PublicLLMSettings is the client-safe view of LLMSettings: no API keys and
// only enabled assistant functions.
type PublicLLMSettings struct {
	Models                map[string]ModelInfo                      `json:"models"`
	DefaultModels         []string                                  `json:"defaultModels"`
	MaxSimultaneousModels int                                       `json:"maxSimultaneousModels"`
	AllowModelSelection   bool                                      `json:"allowModelSelection"`
	DefaultModelID        string                                    `json:"defaultModelId"`
	AssistantFunctions    map[string]assistant.PublicFunctionConfig `json:"assistantFunctions"`
}

// Public derives the client-safe projection.
func (s LLMSettings) Public() PublicLLMSettings {
	return PublicLLMSettings{
		Models:                s.Models,
		DefaultModels:         s.DefaultModels,
		MaxSimultaneousModels: s.MaxSimultaneousModels,
		AllowModelSelection:   s.Global.AllowModelSelection,
		DefaultModelID:        s.Global.DefaultModelID,
		AssistantFunctions:    assistant.ToPublicFunctions(s.AssistantFunctions),
	}
}

// AdminSettings is the aggregate returned by admin-get-settings.
type AdminSettings struct {
	Settings SiteSettings    `json:"settings"`
	Pricing  PricingSettings `json:"pricing"`
	Payment  PaymentSettings `json:"payment"`
	LLM      LLMSettings     `json:"llm"`
}

// AdminSettingsPatch is the body of admin-update-settings. Absent parts are left alone.
type AdminSettingsPatch struct {
	Settings *SiteSettings    `json:"settings,omitempty"`
	Pricing  *PricingSettings `json:"pricing,omitempty"`
	Payment  PaymentSettings  `json:"payment,omitempty"`
	LLM      *LLMSettings     `json:"llm,omitempty"`
}
