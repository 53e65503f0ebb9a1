package emailtemplates

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nulzo/misan-console/internal/store"
	"github.com/nulzo/misan-console/internal/store/sqlite"
	"github.com/nulzo/misan-console/internal/validation"
)

var fixedTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func welcome() FormState {
	return FormState{
		Name:       "Welcome",
		Subject:    "Welcome to Misan, {{user_name}}",
		Recipients: RecipientsUser,
		CC:         "a@x.com, b@x.com ,, c@x.com",
		Body:       "Hello {{user_name}}, your trial starts today.",
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

func TestParseAddressList(t *testing.T) {
	assert.Equal(t, []string{"a@x.com", "b@x.com", "c@x.com"}, ParseAddressList("a@x.com, b@x.com ,, c@x.com"))
	assert.Equal(t, []string{}, ParseAddressList(" , ,"))
	assert.Equal(t, []string{}, ParseAddressList(""))
}

func TestValidateForm(t *testing.T) {
	in, err := ValidateForm(welcome())
	require.NoError(t, err)
	assert.Equal(t, DefaultSignature, in.Signature)
	assert.True(t, in.IsActive)
	assert.Equal(t, []string{}, in.BCC)

	f := welcome()
	f.Name = " "
	f.Subject = ""
	f.Body = "\n"
	f.BCC = "ok@x.com, not-an-email"
	_, err = ValidateForm(f)
	verr, ok := validation.As(err)
	require.True(t, ok)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "subject")
	assert.Contains(t, verr.Fields, "body")
	assert.Equal(t, "not-an-email is not a valid email address", verr.Fields["bcc"])
}

func TestValidateForm_BodyKeptAsWritten(t *testing.T) {
	f := welcome()
	f.Body = "\n  Hello {{user_name}},\n\n  indented line\n"
	in, err := ValidateForm(f)
	require.NoError(t, err)
	assert.Equal(t, f.Body, in.Body)

	f.Body = " \t\n "
	_, err = ValidateForm(f)
	verr, ok := validation.As(err)
	require.True(t, ok)
	assert.Contains(t, verr.Fields, "body")
}

func TestCreate_PersistsParsedCC(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, welcome())
	require.NoError(t, err)

	row, err := repo.EmailTemplates().Get(ctx, created.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `["a@x.com", "b@x.com", "c@x.com"]`, row.CC)
	assert.JSONEq(t, `[]`, row.BCC)
	assert.Equal(t, DefaultSignature, row.Signature.String)
}

func TestFetch_SortedByName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for _, name := range []string{"Renewal", "Alert digest", "Welcome"} {
		f := welcome()
		f.Name = name
		_, err := svc.Create(ctx, f)
		require.NoError(t, err)
	}

	ts, err := svc.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, ts, 3)
	assert.Equal(t, "Alert digest", ts[0].Name)
	assert.Equal(t, "Welcome", ts[2].Name)
}

func TestSetActiveAndDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, welcome())
	require.NoError(t, err)

	off, err := svc.SetActive(ctx, created.ID, false)
	require.NoError(t, err)
	assert.False(t, off.IsActive)
	assert.Equal(t, created.CC, off.CC)
	assert.Equal(t, created.Subject, off.Subject)

	require.NoError(t, svc.Delete(ctx, created.ID))
	assert.ErrorIs(t, svc.Delete(ctx, created.ID), ErrNotFound)
	_, err = svc.Update(ctx, created.ID, welcome())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSearch(t *testing.T) {
	ts := []Template{
		{Name: "Welcome", Recipients: RecipientsUser, CC: []string{"ops@misan.dz"}},
		{Name: "Payment received", Recipients: RecipientsAdmin},
		{Name: "Digest", Recipients: RecipientsBoth, BCC: []string{"archive@misan.dz"}},
	}
	assert.Len(t, Search(ts, "OPS@"), 1)
	assert.Len(t, Search(ts, "administrator"), 2)
	assert.Len(t, Search(ts, "archive"), 1)
	assert.Len(t, Search(ts, ""), 3)
}

func TestPreview(t *testing.T) {
	tpl := Template{Subject: "Hi {{user_name}}", Body: "You have {{tokens}} tokens.", Signature: "The Misan Team"}
	subject, body := Preview(tpl, map[string]string{"user_name": "Amina", "tokens": "100"})
	assert.Equal(t, "Hi Amina", subject)
	assert.Equal(t, "You have 100 tokens.\n\nThe Misan Team", body)
}
