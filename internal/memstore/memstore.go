// Package memstore holds map-backed implementations of the domain
// repositories, used by tests and local experiments.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pilab-dev/airform/domain"
)

// Users implements domain.UserRepository.
type Users struct {
	mu    sync.Mutex
	users map[string]domain.User

	// BeforeConditionalUpdate, when set, runs at the start of
	// UpdateTokensIfUnchanged. Tests use it to simulate a concurrent writer.
	BeforeConditionalUpdate func()
}

func NewUsers() *Users {
	return &Users{users: map[string]domain.User{}}
}

// Put stores a copy of u, replacing any user with the same id.
func (m *Users) Put(u *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = *u
}

// Snapshot returns a copy of the stored user, or the zero value.
func (m *Users) Snapshot(id string) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

func (m *Users) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

func (m *Users) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (m *Users) UpsertByExternalAccountID(_ context.Context, user *domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for id, u := range m.users {
		if u.ExternalAccountID == user.ExternalAccountID {
			u.ApplyGrant(user.Grant())
			u.UpdatedAt = now
			u.LastLoginAt = &now
			m.users[id] = u
			return &u, nil
		}
	}
	u := *user
	u.ID = uuid.NewString()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.LastLoginAt = &now
	m.users[u.ID] = u
	return &u, nil
}

func (m *Users) UpdateTokens(_ context.Context, userID string, grant domain.TokenGrant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.ApplyGrant(grant)
	m.users[userID] = u
	return nil
}

func (m *Users) UpdateTokensIfUnchanged(_ context.Context, userID, prev string, grant domain.TokenGrant) (bool, error) {
	if m.BeforeConditionalUpdate != nil {
		m.BeforeConditionalUpdate()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || u.RefreshToken != prev {
		return false, nil
	}
	u.ApplyGrant(grant)
	m.users[userID] = u
	return true, nil
}

// Forms implements domain.FormRepository.
type Forms struct {
	mu    sync.Mutex
	forms map[string]domain.Form
}

func NewForms() *Forms {
	return &Forms{forms: map[string]domain.Form{}}
}

func (m *Forms) CreateForm(_ context.Context, form *domain.Form) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if form.ID == "" {
		form.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if form.CreatedAt.IsZero() {
		form.CreatedAt = now
	}
	form.UpdatedAt = now
	form.Normalize()
	m.forms[form.ID] = *form
	return nil
}

func (m *Forms) GetFormByID(_ context.Context, id string) (*domain.Form, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.forms[id]
	if !ok {
		return nil, domain.ErrFormNotFound
	}
	return &f, nil
}

func (m *Forms) ListFormsByOwner(_ context.Context, ownerID string) ([]*domain.Form, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Form{}
	for _, f := range m.forms {
		if f.OwnerID == ownerID {
			f := f
			out = append(out, &f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Forms) UpdateForm(_ context.Context, form *domain.Form) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.forms[form.ID]
	if !ok {
		return domain.ErrFormNotFound
	}
	form.OwnerID = existing.OwnerID
	form.CreatedAt = existing.CreatedAt
	form.UpdatedAt = time.Now().UTC()
	form.Normalize()
	m.forms[form.ID] = *form
	return nil
}

// Submissions implements domain.SubmissionRepository.
type Submissions struct {
	mu          sync.Mutex
	submissions []domain.Submission

	// Err, when set, is returned by CreateSubmission.
	Err error
}

func NewSubmissions() *Submissions {
	return &Submissions{}
}

func (m *Submissions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.submissions)
}

func (m *Submissions) CreateSubmission(_ context.Context, s *domain.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if s.SubmittedAt.IsZero() {
		s.SubmittedAt = now
	}
	s.CreatedAt = now
	m.submissions = append(m.submissions, *s)
	return nil
}

func (m *Submissions) ListSubmissionsByForm(_ context.Context, formID string) ([]*domain.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Submission{}
	for i := len(m.submissions) - 1; i >= 0; i-- {
		if s := m.submissions[i]; s.FormID == formID {
			out = append(out, &s)
		}
	}
	return out, nil
}

func (m *Submissions) MarkExternalRecordDeleted(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.submissions {
		if m.submissions[i].ID == id {
			m.submissions[i].ExternalRecordDeleted = true
			return nil
		}
	}
	return domain.ErrSubmissionNotFound
}

var (
	_ domain.UserRepository       = (*Users)(nil)
	_ domain.FormRepository       = (*Forms)(nil)
	_ domain.SubmissionRepository = (*Submissions)(nil)
)
