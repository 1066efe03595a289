// Package formsync writes public form submissions to Airtable on behalf of
// the form owner.
package formsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pilab-dev/airform/domain"
	"github.com/pilab-dev/airform/internal/airtable"
	"github.com/pilab-dev/airform/internal/audit"
	"github.com/pilab-dev/airform/internal/credentials"
	"github.com/pilab-dev/airform/internal/metrics"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/pilab-dev/airform/internal/formsync")

// API is the part of the Airtable client the engine calls.
type API interface {
	ListBases(ctx context.Context, accessToken string) ([]airtable.Base, error)
	ListTables(ctx context.Context, accessToken, baseID string) ([]airtable.Table, error)
	CreateRecord(ctx context.Context, accessToken, baseID, tableID string, fields map[string]any) (*airtable.Record, error)
}

// Credentials resolves and refreshes owner credentials.
type Credentials interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	IsExpired(user *domain.User) bool
	Refresh(ctx context.Context, userID, stale string, force bool) (*domain.User, error)
}

// Outcome is the result of a successful submission.
type Outcome struct {
	Submission *domain.Submission
}

type Engine struct {
	api         API
	creds       Credentials
	submissions domain.SubmissionRepository
	now         func() time.Time
}

func NewEngine(api API, creds Credentials, submissions domain.SubmissionRepository) *Engine {
	return &Engine{
		api:         api,
		creds:       creds,
		submissions: submissions,
		now:         time.Now,
	}
}

// Submit validates answers, creates the Airtable record with the owner's
// credential and stores the submission. Nothing is stored when Airtable
// does not accept the record.
func (e *Engine) Submit(ctx context.Context, form *domain.Form, answers map[string]any) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "formsync.Submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("form.id", form.ID),
		attribute.String("airtable.base_id", form.BaseID),
		attribute.String("airtable.table_id", form.TableID),
	)

	logger := log.Ctx(ctx).With().Str("form_id", form.ID).Logger()
	started := e.now()

	if err := Validate(form, answers); err != nil {
		metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		span.SetStatus(codes.Error, "validation failed")
		return nil, err
	}

	fields := MapAnswers(form, answers)

	var record *airtable.Record
	err := e.withCredential(ctx, form.OwnerID, func(accessToken string) error {
		var err error
		record, err = e.api.CreateRecord(ctx, accessToken, form.BaseID, form.TableID, fields)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrOwnerUnauthenticated) {
			err = fmt.Errorf("%w: %w", ErrSyncFailed, err)
		}
		metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "sync failed")
		logger.Warn().Err(err).Msg("Submission was not synced to Airtable")
		audit.Log(audit.ActionSubmission, form.OwnerID, form.ID, "", false, err)
		return nil, err
	}
	metrics.SubmissionDuration.Observe(e.now().Sub(started).Seconds())

	submission := &domain.Submission{
		FormID:           form.ID,
		ExternalRecordID: record.ID,
		Answers:          answers,
		SubmittedAt:      e.now().UTC(),
	}
	if err := e.submissions.CreateSubmission(ctx, submission); err != nil {
		// The record exists in Airtable; keep its id in the logs for
		// reconciliation.
		logger.Error().Err(err).Str("record_id", record.ID).Msg("Failed to store synced submission")
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return nil, fmt.Errorf("store submission: %w", err)
	}

	metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	span.SetAttributes(attribute.String("airtable.record_id", record.ID))
	logger.Info().Str("record_id", record.ID).Str("submission_id", submission.ID).Msg("Submission synced")
	audit.Log(audit.ActionSubmission, form.OwnerID, form.ID, "record="+record.ID, true, nil)

	return &Outcome{Submission: submission}, nil
}

// ListBases lists the bases visible to the user's Airtable account.
func (e *Engine) ListBases(ctx context.Context, userID string) ([]airtable.Base, error) {
	var bases []airtable.Base
	err := e.withCredential(ctx, userID, func(accessToken string) error {
		var err error
		bases, err = e.api.ListBases(ctx, accessToken)
		return err
	})
	return bases, err
}

// ListTables lists the tables and fields of baseID.
func (e *Engine) ListTables(ctx context.Context, userID, baseID string) ([]airtable.Table, error) {
	var tables []airtable.Table
	err := e.withCredential(ctx, userID, func(accessToken string) error {
		var err error
		tables, err = e.api.ListTables(ctx, accessToken, baseID)
		return err
	})
	return tables, err
}

// withCredential runs call with a fresh access token of ownerID. A call
// rejected with ErrAuthExpired is retried exactly once after a forced
// refresh.
func (e *Engine) withCredential(ctx context.Context, ownerID string, call func(accessToken string) error) error {
	user, err := e.resolve(ctx, ownerID)
	if err != nil {
		return err
	}

	err = call(user.AccessToken)
	if !errors.Is(err, airtable.ErrAuthExpired) {
		return err
	}

	log.Ctx(ctx).Info().Str("user_id", ownerID).Msg("Access token rejected, forcing refresh and retrying once")
	metrics.SyncRetriesTotal.Inc()

	user, err = e.creds.Refresh(ctx, ownerID, user.AccessToken, true)
	if err != nil {
		return credentialError(err)
	}

	err = call(user.AccessToken)
	if errors.Is(err, airtable.ErrAuthExpired) {
		return fmt.Errorf("%w: %w", ErrOwnerUnauthenticated, err)
	}
	return err
}

func (e *Engine) resolve(ctx context.Context, ownerID string) (*domain.User, error) {
	user, err := e.creds.Get(ctx, ownerID)
	if err != nil {
		return nil, credentialError(err)
	}
	if !user.HasCredentials() {
		return nil, fmt.Errorf("%w: no stored tokens", ErrOwnerUnauthenticated)
	}
	if e.creds.IsExpired(user) {
		user, err = e.creds.Refresh(ctx, ownerID, user.AccessToken, false)
		if err != nil {
			return nil, credentialError(err)
		}
	}
	return user, nil
}

func credentialError(err error) error {
	if errors.Is(err, credentials.ErrNotFound) || errors.Is(err, credentials.ErrReauthorizationRequired) {
		return fmt.Errorf("%w: %w", ErrOwnerUnauthenticated, err)
	}
	return err
}
