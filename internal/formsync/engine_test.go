package formsync_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pilab-dev/airform/domain"
	"github.com/pilab-dev/airform/internal/airtable"
	mock_airtable "github.com/pilab-dev/airform/internal/airtable/mock"
	"github.com/pilab-dev/airform/internal/credentials"
	"github.com/pilab-dev/airform/internal/formsync"
	"github.com/pilab-dev/airform/internal/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	client      *mock_airtable.MockClient
	users       *memstore.Users
	submissions *memstore.Submissions
	engine      *formsync.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := mock_airtable.NewMockClient(ctrl)
	users := memstore.NewUsers()
	submissions := memstore.NewSubmissions()
	store := credentials.NewStore(users, client)

	return &fixture{
		client:      client,
		users:       users,
		submissions: submissions,
		engine:      formsync.NewEngine(client, store, submissions),
	}
}

func (f *fixture) seedOwner(expiresIn time.Duration) {
	f.users.Put(&domain.User{
		ID:                "owner-1",
		ExternalAccountID: "usrOwner",
		AccessToken:       "at-old",
		RefreshToken:      "rt-old",
		TokenExpiresAt:    time.Now().Add(expiresIn),
	})
}

func testForm() *domain.Form {
	return &domain.Form{
		ID:      "form-1",
		OwnerID: "owner-1",
		BaseID:  "appBase",
		TableID: "tblTable",
		Fields: []domain.FieldBinding{
			{ExternalFieldID: "fldName", ExternalFieldName: "Name", Required: true},
			{ExternalFieldID: "fldColor", ExternalFieldName: "Favourite colour"},
		},
	}
}

func refreshed() *airtable.TokenSet {
	return &airtable.TokenSet{AccessToken: "at-new", RefreshToken: "rt-new", ExpiresIn: 3600}
}

func TestSubmit_ValidationHappensBeforeAnyCall(t *testing.T) {
	cases := map[string]map[string]any{
		"missing":     {"fldColor": "blue"},
		"nil":         {"fldName": nil},
		"empty":       {"fldName": ""},
		"whitespace":  {"fldName": "   "},
		"empty list":  {"fldName": []any{}},
		"wrong field": {"Name": "Ann"},
	}
	for name, answers := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.seedOwner(time.Hour)

			_, err := f.engine.Submit(context.Background(), testForm(), answers)

			var verr *formsync.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "fldName", verr.FieldID)
			assert.Equal(t, "Name", verr.FieldName)
			assert.Zero(t, f.submissions.Len())
		})
	}
}

func TestSubmit_FreshToken(t *testing.T) {
	f := newFixture(t)
	f.seedOwner(time.Hour)
	answers := map[string]any{"fldName": "Ann", "fldColor": "", "extra": "kept locally"}

	f.client.EXPECT().
		CreateRecord(gomock.Any(), "at-old", "appBase", "tblTable", map[string]any{"Name": "Ann"}).
		Return(&airtable.Record{ID: "rec1"}, nil)

	out, err := f.engine.Submit(context.Background(), testForm(), answers)
	require.NoError(t, err)
	assert.Equal(t, "rec1", out.Submission.ExternalRecordID)
	assert.Equal(t, "form-1", out.Submission.FormID)
	assert.Equal(t, answers, out.Submission.Answers, "answers are stored verbatim")
	assert.Equal(t, 1, f.submissions.Len())
}

func TestSubmit_ExpiredTokenRefreshedOnceBeforeCall(t *testing.T) {
	f := newFixture(t)
	f.seedOwner(30 * time.Second) // inside the default skew

	gomock.InOrder(
		f.client.EXPECT().RefreshToken(gomock.Any(), "rt-old").Return(refreshed(), nil).Times(1),
		f.client.EXPECT().CreateRecord(gomock.Any(), "at-new", "appBase", "tblTable", gomock.Any()).
			Return(&airtable.Record{ID: "rec2"}, nil).Times(1),
	)

	out, err := f.engine.Submit(context.Background(), testForm(), map[string]any{"fldName": "Bo"})
	require.NoError(t, err)
	assert.Equal(t, "rec2", out.Submission.ExternalRecordID)

	stored := f.users.Snapshot("owner-1")
	assert.Equal(t, "at-new", stored.AccessToken)
	assert.Equal(t, "rt-new", stored.RefreshToken)
}

func TestSubmit_AuthExpiredRetriesExactlyOnce(t *testing.T) {
	f := newFixture(t)
	f.seedOwner(time.Hour)

	gomock.InOrder(
		f.client.EXPECT().CreateRecord(gomock.Any(), "at-old", gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, airtable.ErrAuthExpired),
		f.client.EXPECT().RefreshToken(gomock.Any(), "rt-old").Return(refreshed(), nil),
		f.client.EXPECT().CreateRecord(gomock.Any(), "at-new", gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&airtable.Record{ID: "rec3"}, nil),
	)

	out, err := f.engine.Submit(context.Background(), testForm(), map[string]any{"fldName": "Cy"})
	require.NoError(t, err)
	assert.Equal(t, "rec3", out.Submission.ExternalRecordID)
	assert.Equal(t, 1, f.submissions.Len(), "one retry yields one record")
}

func TestSubmit_SecondAuthExpiredIsTerminal(t *testing.T) {
	f := newFixture(t)
	f.seedOwner(time.Hour)

	gomock.InOrder(
		f.client.EXPECT().CreateRecord(gomock.Any(), "at-old", gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, airtable.ErrAuthExpired),
		f.client.EXPECT().RefreshToken(gomock.Any(), "rt-old").Return(refreshed(), nil),
		f.client.EXPECT().CreateRecord(gomock.Any(), "at-new", gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, airtable.ErrAuthExpired),
	)

	_, err := f.engine.Submit(context.Background(), testForm(), map[string]any{"fldName": "Di"})
	assert.ErrorIs(t, err, formsync.ErrOwnerUnauthenticated)
	assert.Zero(t, f.submissions.Len())
}

func TestSubmit_OwnerWithoutCredential(t *testing.T) {
	t.Run("unknown owner", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.Submit(context.Background(), testForm(), map[string]any{"fldName": "Ed"})
		assert.ErrorIs(t, err, formsync.ErrOwnerUnauthenticated)
		assert.Zero(t, f.submissions.Len())
	})

	t.Run("tokens cleared", func(t *testing.T) {
		f := newFixture(t)
		f.users.Put(&domain.User{ID: "owner-1", ExternalAccountID: "usrOwner"})
		_, err := f.engine.Submit(context.Background(), testForm(), map[string]any{"fldName": "Ed"})
		assert.ErrorIs(t, err, formsync.ErrOwnerUnauthenticated)
	})

	t.Run("refresh rejected", func(t *testing.T) {
		f := newFixture(t)
		f.seedOwner(-time.Minute)
		f.client.EXPECT().RefreshToken(gomock.Any(), "rt-old").Return(nil, airtable.ErrAuthRefresh)

		_, err := f.engine.Submit(context.Background(), testForm(), map[string]any{"fldName": "Ed"})
		assert.ErrorIs(t, err, formsync.ErrOwnerUnauthenticated)
		assert.ErrorIs(t, err, credentials.ErrReauthorizationRequired)
		owner := f.users.Snapshot("owner-1")
		assert.False(t, owner.HasCredentials())
		assert.Zero(t, f.submissions.Len())
	})
}

func TestSubmit_ExternalFailuresAreHardFailures(t *testing.T) {
	for name, cause := range map[string]error{
		"validation": airtable.ErrExternalValidation,
		"service":    airtable.ErrExternalService,
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.seedOwner(time.Hour)
			f.client.EXPECT().CreateRecord(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
				Return(nil, cause).Times(1)

			_, err := f.engine.Submit(context.Background(), testForm(), map[string]any{"fldName": "Fi"})
			assert.ErrorIs(t, err, formsync.ErrSyncFailed)
			assert.ErrorIs(t, err, cause)
			assert.Zero(t, f.submissions.Len())
		})
	}
}

func TestSubmit_RefreshOutageIsSyncFailure(t *testing.T) {
	f := newFixture(t)
	f.seedOwner(-time.Minute)
	f.client.EXPECT().RefreshToken(gomock.Any(), "rt-old").Return(nil, airtable.ErrExternalService)

	_, err := f.engine.Submit(context.Background(), testForm(), map[string]any{"fldName": "Gus"})
	assert.ErrorIs(t, err, formsync.ErrSyncFailed)
	assert.Equal(t, "rt-old", f.users.Snapshot("owner-1").RefreshToken, "an outage keeps the credential")
}

func TestSubmit_PersistFailure(t *testing.T) {
	f := newFixture(t)
	f.seedOwner(time.Hour)
	f.submissions.Err = errors.New("disk full")
	f.client.EXPECT().CreateRecord(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&airtable.Record{ID: "rec4"}, nil)

	_, err := f.engine.Submit(context.Background(), testForm(), map[string]any{"fldName": "Hal"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, formsync.ErrSyncFailed)
}

func TestListBases_RetriesAfterForcedRefresh(t *testing.T) {
	f := newFixture(t)
	f.seedOwner(time.Hour)

	gomock.InOrder(
		f.client.EXPECT().ListBases(gomock.Any(), "at-old").Return(nil, airtable.ErrAuthExpired),
		f.client.EXPECT().RefreshToken(gomock.Any(), "rt-old").Return(refreshed(), nil),
		f.client.EXPECT().ListBases(gomock.Any(), "at-new").Return([]airtable.Base{{ID: "app1", Name: "CRM"}}, nil),
	)

	bases, err := f.engine.ListBases(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, []airtable.Base{{ID: "app1", Name: "CRM"}}, bases)
}

func TestListTables(t *testing.T) {
	f := newFixture(t)
	f.seedOwner(time.Hour)
	tables := []airtable.Table{{ID: "tbl1", Name: "Leads", Fields: []airtable.Field{{ID: "fld1", Name: "Name", Type: "singleLineText"}}}}
	f.client.EXPECT().ListTables(gomock.Any(), "at-old", "app1").Return(tables, nil)

	got, err := f.engine.ListTables(context.Background(), "owner-1", "app1")
	require.NoError(t, err)
	assert.Equal(t, tables, got)

	_, err = f.engine.ListTables(context.Background(), "nobody", "app1")
	assert.ErrorIs(t, err, formsync.ErrOwnerUnauthenticated)
}
