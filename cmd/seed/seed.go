package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/nulzo/misan-console/internal/alerts"
	"github.com/nulzo/misan-console/internal/cli"
	"github.com/nulzo/misan-console/internal/config"
	"github.com/nulzo/misan-console/internal/emailtemplates"
	"github.com/nulzo/misan-console/internal/platform/logger"
	"github.com/nulzo/misan-console/internal/settings"
	"github.com/nulzo/misan-console/internal/store/sqlite"
	"github.com/nulzo/misan-console/internal/validation"
)

func boolPtr(b bool) *bool { return &b }

var seedRules = []alerts.FormState{
	{
		Name:            "Subscription expires soon",
		Description:     "Reminds subscribers a few days before the end of their plan.",
		TriggerType:     alerts.TriggerLogin,
		Target:          alerts.TargetSubscription,
		Comparator:      alerts.ComparatorLE,
		Threshold:       "3",
		Severity:        alerts.SeverityWarning,
		MessageTemplate: "Hello {{user_name}}, your subscription ends in {{days}} days.",
		AppliesToRole:   alerts.RoleAny,
	},
	{
		Name:            "Token balance low",
		TriggerType:     alerts.TriggerAssistantAccess,
		Target:          alerts.TargetTokens,
		Comparator:      alerts.ComparatorLT,
		Threshold:       "10000",
		Severity:        alerts.SeverityError,
		MessageTemplate: "Only {{tokens}} tokens left. Top up to keep using the assistant.",
		AppliesToRole:   alerts.RoleAny,
		IsBlocking:      boolPtr(false),
	},
	{
		Name:            "Scheduled maintenance",
		TriggerType:     alerts.TriggerScheduled,
		Target:          alerts.TargetGeneral,
		Severity:        alerts.SeverityInfo,
		MessageTemplate: "Misan will be briefly unavailable tonight for maintenance.",
		AppliesToRole:   alerts.RoleAny,
		StatusFilter:    []string{"active", "expired"},
		IsActive:        boolPtr(false),
	},
}

var seedTemplates = []emailtemplates.FormState{
	{
		Name:       "Welcome",
		Subject:    "Welcome to Misan, {{user_name}}",
		Recipients: emailtemplates.RecipientsUser,
		Body:       "Hello {{user_name}},\n\nYour account is ready. Your free trial lasts {{days}} days.",
	},
	{
		Name:       "Payment received",
		Subject:    "Payment received",
		Recipients: emailtemplates.RecipientsBoth,
		BCC:        "billing@misan.dz",
		Body:       "Hello {{user_name}},\n\nWe received your payment. {{tokens}} tokens were added to your account.",
	},
}

func main() {
	withSettings := flag.Bool("settings", false, "also write the default settings documents")
	verbose := flag.Bool("v", false, "print every created record")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s config: %v\n", cli.CrossMark(), err)
		os.Exit(1)
	}
	logger.Initialize(logger.ConfigFrom(cfg.Log.Level, cfg.Log.Format))
	defer logger.Sync()
	log := logger.Named("seed")

	repo, err := sqlite.NewSQLiteStorage(cfg.Database.DSN, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s database: %v\n", cli.CrossMark(), err)
		os.Exit(1)
	}
	defer repo.Close()

	ctx := context.Background()
	failed := 0

	ruleSvc := alerts.NewService(repo, log, nil)
	existingRules, err := ruleSvc.Fetch(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s list alert rules: %v\n", cli.CrossMark(), err)
		os.Exit(1)
	}
	ruleNames := map[string]bool{}
	for _, r := range existingRules {
		ruleNames[r.Name] = true
	}
	for _, f := range seedRules {
		if ruleNames[f.Name] {
			fmt.Printf("%s alert rule %q exists, skipped\n", cli.Arrow(), f.Name)
			continue
		}
		rule, err := ruleSvc.Create(ctx, f)
		if err != nil {
			failed++
			report("alert rule", f.Name, err)
			continue
		}
		fmt.Printf("%s alert rule %q\n", cli.CheckMark(), f.Name)
		if *verbose {
			fmt.Println(cli.PrettyFormat(rule))
		}
	}

	tmplSvc := emailtemplates.NewService(repo, log, nil)
	existingTemplates, err := tmplSvc.Fetch(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s list email templates: %v\n", cli.CrossMark(), err)
		os.Exit(1)
	}
	tmplNames := map[string]bool{}
	for _, t := range existingTemplates {
		tmplNames[t.Name] = true
	}
	for _, f := range seedTemplates {
		if tmplNames[f.Name] {
			fmt.Printf("%s email template %q exists, skipped\n", cli.Arrow(), f.Name)
			continue
		}
		tmpl, err := tmplSvc.Create(ctx, f)
		if err != nil {
			failed++
			report("email template", f.Name, err)
			continue
		}
		fmt.Printf("%s email template %q\n", cli.CheckMark(), f.Name)
		if *verbose {
			fmt.Println(cli.PrettyFormat(tmpl))
		}
	}

	if *withSettings {
		svc := settings.NewService(repo, nil, log)
		err := svc.UpdateAdminSettings(ctx, settings.AdminSettingsPatch{
			Settings: ptr(settings.DefaultSiteSettings()),
			Pricing:  ptr(settings.DefaultPricingSettings()),
			Payment:  settings.DefaultPaymentSettings(),
			LLM:      ptr(settings.DefaultLLMSettings()),
		})
		if err != nil {
			failed++
			report("settings", "defaults", err)
		} else {
			fmt.Printf("%s default settings\n", cli.CheckMark())
		}
	}

	if failed > 0 {
		fmt.Printf("\n%s %d item(s) failed\n", cli.WarningSign(), failed)
		os.Exit(1)
	}
	fmt.Printf("\n%s\n", cli.Style("Database seeded.", cli.Green))
}

func ptr[T any](v T) *T { return &v }

func report(kind, name string, err error) {
	if verr, ok := validation.As(err); ok {
		fmt.Printf("%s %s %q: %s\n", cli.CrossMark(), kind, name, verr.Error())
		return
	}
	logger.Error("seed failed", zap.String("kind", kind), zap.String("name", name), zap.Error(err))
	fmt.Printf("%s %s %q: %v\n", cli.CrossMark(), kind, name, err)
}
