package alerts

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nulzo/misan-console/internal/listing"
	"github.com/nulzo/misan-console/internal/store"
	"github.com/nulzo/misan-console/internal/store/model"
	"github.com/nulzo/misan-console/internal/store/sqlite"
)

var fixedTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func rowWithoutFlags() model.AlertRuleRow {
	return model.AlertRuleRow{
		ID:              "legacy",
		Name:            "Legacy",
		TriggerType:     "login",
		Target:          "tokens",
		Comparator:      "<",
		Threshold:       10,
		Severity:        "info",
		MessageTemplate: "hi",
		AppliesToRole:   "any",
	}
}

func newTestService(t *testing.T) (*Service, store.Repository) {
	t.Helper()
	repo, err := sqlite.NewSQLiteStorage(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	svc := NewService(repo, nil, nil)
	svc.now = func() time.Time { return fixedTime }
	return svc, repo
}

func TestCreate_ExpiringSoonScenario(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	rule, err := svc.Create(ctx, expiringSoon())
	require.NoError(t, err)

	row, err := repo.AlertRules().Get(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 7.0, row.Threshold)
	assert.True(t, row.IsActive.Valid && row.IsActive.Bool)
	assert.True(t, row.IsBlocking.Valid && !row.IsBlocking.Bool)
	assert.Equal(t, "<=", row.Comparator)
}

func TestCreate_InvalidNeverReachesStore(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	f := expiringSoon()
	f.Threshold = "abc"
	_, err := svc.Create(ctx, f)
	require.Error(t, err)

	rows, err := repo.AlertRules().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestFetch_SortedByTargetThresholdName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mk := func(name string, target Target, threshold string) {
		f := expiringSoon()
		f.Name, f.Target, f.Threshold = name, target, NumberText(threshold)
		_, err := svc.Create(ctx, f)
		require.NoError(t, err)
	}
	mk("b", TargetTokens, "100")
	mk("a", TargetTokens, "100")
	mk("z", TargetSubscription, "3")
	mk("y", TargetSubscription, "30")
	mk("news", TargetGeneral, "")

	rules, err := svc.Fetch(ctx)
	require.NoError(t, err)
	var names []string
	for _, r := range rules {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"news", "z", "y", "a", "b"}, names)
}

func TestUpdateAndDelete_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, "missing", expiringSoon())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, "missing"), ErrNotFound)
	_, err = svc.SetActive(ctx, "missing", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetActive_PreservesOtherFields(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	f := FormState{
		Name:            "Announcement",
		Description:     "Spring update",
		Target:          TargetGeneral,
		Severity:        SeverityInfo,
		MessageTemplate: "Hello {{user_name}}",
		AppliesToRole:   RolePro,
		StatusFilter:    []string{"expired"},
		Metadata:        map[string]any{"campaign": "spring"},
	}
	created, err := svc.Create(ctx, f)
	require.NoError(t, err)

	toggled, err := svc.SetActive(ctx, created.ID, false)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, created.Description, got.Description)
	assert.Equal(t, created.AppliesToRole, got.AppliesToRole)
	assert.Equal(t, []AccountStatus{StatusExpired}, got.Metadata.StatusFilter)
	assert.Equal(t, "spring", got.Metadata.Extra["campaign"])
}

func TestDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, expiringSoon())
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearch_CaseInsensitiveSubset(t *testing.T) {
	rules := []Rule{
		{Name: "Expiring soon", Severity: SeverityWarning, MessageTemplate: "x"},
		{Name: "Low tokens", Description: "Balance ALERT", Severity: SeverityInfo},
		{Name: "Blocked", Severity: SeverityError, MessageTemplate: "Access suspended"},
	}
	for _, term := range []string{"alert", "WARN", "error", "soon", "zzz", ""} {
		got := Search(rules, term)
		assert.LessOrEqual(t, len(got), len(rules))
		needle := strings.ToLower(term)
		for _, r := range got {
			hay := strings.ToLower(strings.Join([]string{r.Name, r.Description, r.MessageTemplate, r.Severity.Label()}, "\n"))
			assert.Contains(t, hay, needle)
		}
	}
	assert.Len(t, Search(rules, "WARN"), 1)
	assert.Len(t, Search(rules, "error"), 1)
}

func TestQuery_PaginatesAndClamps(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 23; i++ {
		f := expiringSoon()
		f.Name = "rule " + string(rune('a'+i))
		_, err := svc.Create(ctx, f)
		require.NoError(t, err)
	}

	page, err := svc.Query(ctx, "rule", 99, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 3, page.TotalPages)
	assert.Len(t, page.Items, 3)

	page, err = svc.Query(ctx, "", 1, 7)
	require.NoError(t, err)
	assert.Equal(t, listing.DefaultPageSize, page.PageSize)
}

func TestPreviewMessage(t *testing.T) {
	r := Rule{Target: TargetSubscription, Threshold: 3, MessageTemplate: "Hi {{user_name}}, {{days}} days left. {{unknown}}"}
	assert.Equal(t, "Hi Amina, 3 days left. {{unknown}}", PreviewMessage(r, nil))
	assert.Equal(t, "Hi Karim, 1 days left. {{unknown}}", PreviewMessage(r, map[string]string{"user_name": "Karim", "days": "1"}))
}
