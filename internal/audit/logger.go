package audit

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Event represents an audit log event.
type Event struct {
	Timestamp time.Time
	Action    string
	User      string // local user id
	Target    string // form, base or account id
	Details   string
	Success   bool
	Err       error
}

// Actions recorded by the service.
const (
	ActionLogin          = "airtable.login"
	ActionTokenRefresh   = "airtable.token_refresh"
	ActionCredentialLost = "airtable.credential_revoked"
	ActionSubmission     = "form.submission"
	ActionFormCreate     = "form.create"
	ActionFormUpdate     = "form.update"
)

const service = "airform"

var auditLogger = zerolog.New(os.Stdout).With().Timestamp().Str("log", "audit").Logger()

// SetOutput replaces the audit logger, mainly for tests.
func SetOutput(l zerolog.Logger) {
	auditLogger = l
}

// Log records an audit event. Callers must never put secrets in Details.
func Log(action, user, target, details string, success bool, err error) {
	Record(Event{
		Timestamp: time.Now().UTC(),
		Action:    action,
		User:      user,
		Target:    target,
		Details:   details,
		Success:   success,
		Err:       err,
	})
}

func Record(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	entry := auditLogger.Log().
		Time("event_time", e.Timestamp).
		Str("service", service).
		Str("action", e.Action).
		Bool("success", e.Success)
	if e.User != "" {
		entry = entry.Str("user", e.User)
	}
	if e.Target != "" {
		entry = entry.Str("target", e.Target)
	}
	if e.Details != "" {
		entry = entry.Str("details", e.Details)
	}
	if e.Err != nil {
		entry = entry.Str("error", e.Err.Error())
	}
	entry.Msg("audit")
}
