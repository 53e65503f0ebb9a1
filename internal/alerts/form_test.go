package alerts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nulzo/misan-console/internal/validation"
)

func expiringSoon() FormState {
	return FormState{
		Name:            "Expiring soon",
		Target:          TargetSubscription,
		Comparator:      ComparatorLE,
		Threshold:       "7",
		Severity:        SeverityWarning,
		MessageTemplate: "Your plan expires in {{days}} days",
		AppliesToRole:   RoleAny,
	}
}

func TestValidateForm_NonNumericThreshold(t *testing.T) {
	for _, th := range []NumberText{"abc", "", "  ", "NaN", "Inf", "7 days", "1_000", "0x10", "1e", "."} {
		f := expiringSoon()
		f.Threshold = th
		_, err := ValidateForm(f)
		verr, ok := validation.As(err)
		require.True(t, ok, "threshold %q", th)
		assert.Contains(t, verr.Fields, "threshold")
	}
}

func TestValidateForm_NumericThresholdSpellings(t *testing.T) {
	for th, want := range map[NumberText]float64{"7": 7, " 2.5 ": 2.5, "-3": -3, "1e3": 1000, ".5": 0.5, "10.": 10} {
		f := expiringSoon()
		f.Threshold = th
		in, err := ValidateForm(f)
		require.NoError(t, err, "threshold %q", th)
		assert.Equal(t, want, in.Threshold)
	}
}

func TestValidateForm_UnknownPlaceholder(t *testing.T) {
	f := expiringSoon()
	f.MessageTemplate = "Hi {{user_name}}, your {{plan}} ends soon"
	_, err := ValidateForm(f)
	verr, ok := validation.As(err)
	require.True(t, ok)
	assert.Contains(t, verr.Fields["messageTemplate"], "{{plan}}")

	f.MessageTemplate = "Hi {{ USER_NAME }}, {{days}} days"
	_, err = ValidateForm(f)
	assert.NoError(t, err)
}

func TestValidateForm_RequiredFields(t *testing.T) {
	f := expiringSoon()
	f.Name = "   "
	f.MessageTemplate = ""
	f.Severity = "fatal"

	_, err := ValidateForm(f)
	verr, ok := validation.As(err)
	require.True(t, ok)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "messageTemplate")
	assert.Equal(t, "must be one of [info, warning, error]", verr.Fields["severity"])
}

func TestValidateForm_Defaults(t *testing.T) {
	in, err := ValidateForm(expiringSoon())
	require.NoError(t, err)
	assert.Equal(t, 7.0, in.Threshold)
	assert.True(t, in.IsActive)
	assert.False(t, in.IsBlocking)
	assert.Equal(t, TriggerScheduled, in.TriggerType)
}

func TestValidateForm_GeneralAnnouncement(t *testing.T) {
	f := FormState{
		Name:            "Come back",
		Target:          TargetGeneral,
		Comparator:      ComparatorGT,
		Threshold:       "not used",
		Severity:        SeverityInfo,
		MessageTemplate: "We miss you, {{user_name}}",
		AppliesToRole:   RoleAny,
		StatusFilter:    []string{"inactive", "INACTIVE", "banned"},
	}
	in, err := ValidateForm(f)
	require.NoError(t, err)
	assert.Equal(t, ComparatorEQ, in.Comparator)
	assert.Equal(t, 0.0, in.Threshold)
	assert.Equal(t, []AccountStatus{StatusInactive}, in.Metadata.StatusFilter)

	row, err := ToRow("id", in, fixedTime, fixedTime)
	require.NoError(t, err)
	assert.JSONEq(t, `{"statusFilter": ["inactive"]}`, row.Metadata.String)
	assert.Equal(t, "=", row.Comparator)
	assert.Equal(t, 0.0, row.Threshold)
}

func TestValidateForm_StatusFilterDroppedForOtherTargets(t *testing.T) {
	f := expiringSoon()
	f.StatusFilter = []string{"active"}
	f.Metadata = map[string]any{"statusFilter": []any{"expired"}, "campaign": "spring"}

	in, err := ValidateForm(f)
	require.NoError(t, err)
	assert.Nil(t, in.Metadata.StatusFilter)
	assert.Equal(t, map[string]any{"campaign": "spring"}, in.Metadata.Extra)
}

func TestNumberText_AcceptsNumbersAndStrings(t *testing.T) {
	var f FormState
	require.NoError(t, json.Unmarshal([]byte(`{"threshold": 12.5}`), &f))
	assert.Equal(t, NumberText("12.5"), f.Threshold)
	require.NoError(t, json.Unmarshal([]byte(`{"threshold": "30"}`), &f))
	assert.Equal(t, NumberText("30"), f.Threshold)
	require.NoError(t, json.Unmarshal([]byte(`{"threshold": null}`), &f))
	assert.Equal(t, NumberText(""), f.Threshold)
}

func TestFormRoundTrip(t *testing.T) {
	original := Rule{
		ID:              "r1",
		Name:            "Low balance",
		TriggerType:     TriggerAssistantAccess,
		Target:          TargetTokens,
		Comparator:      ComparatorLT,
		Threshold:       1500.5,
		Severity:        SeverityError,
		MessageTemplate: "Only {{tokens}} tokens left",
		AppliesToRole:   RolePremium,
		IsBlocking:      true,
		IsActive:        false,
		CreatedAt:       fixedTime,
		UpdatedAt:       fixedTime,
	}

	in, err := ValidateForm(ToFormState(original))
	require.NoError(t, err)
	row, err := ToRow(original.ID, in, original.CreatedAt, original.UpdatedAt)
	require.NoError(t, err)
	got := MapRow(row)

	assert.Equal(t, original.Name, got.Name)
	assert.Equal(t, original.TriggerType, got.TriggerType)
	assert.Equal(t, original.Target, got.Target)
	assert.Equal(t, original.Comparator, got.Comparator)
	assert.Equal(t, original.Threshold, got.Threshold)
	assert.Equal(t, original.Severity, got.Severity)
	assert.Equal(t, original.AppliesToRole, got.AppliesToRole)
	assert.Equal(t, original.IsBlocking, got.IsBlocking)
	assert.Equal(t, original.IsActive, got.IsActive)
}

func TestMapRow_Defaults(t *testing.T) {
	r := MapRow(rowWithoutFlags())
	assert.False(t, r.IsBlocking)
	assert.True(t, r.IsActive)
	assert.Nil(t, r.Metadata.StatusFilter)
	assert.Nil(t, r.Metadata.Extra)

	data, err := json.Marshal(r.Metadata)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}
