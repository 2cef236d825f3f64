package service

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/regidesk/be-deed-forms/internal/errors"
	"github.com/regidesk/be-deed-forms/internal/logger"
	"github.com/regidesk/be-deed-forms/internal/model"
)

// fakeStore is an in-memory FormStore honoring the conditional-version write
// contract, so the services' read-transition-write cycle is exercised for
// real, including lost-update detection.
type fakeStore struct {
	mu    sync.Mutex
	seq   int
	forms map[string]*model.Form
}

func newFakeStore() *fakeStore {
	return &fakeStore{forms: make(map[string]*model.Form)}
}

func cloneForm(f *model.Form) *model.Form {
	data, err := json.Marshal(f)
	if err != nil {
		panic(err)
	}
	var out model.Form
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return &out
}

func (s *fakeStore) Create(_ context.Context, f *model.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	f.ID = "form-" + strconv.Itoa(s.seq)
	f.Version = 1
	s.forms[f.ID] = cloneForm(f)
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id string) (*model.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.forms[id]
	if !ok {
		return nil, errors.NotFound("form", id)
	}
	return cloneForm(f), nil
}

func (s *fakeStore) List(_ context.Context, serviceType, status, applicantID *string, _, _ int) ([]*model.Form, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Form
	for _, f := range s.forms {
		if serviceType != nil && string(f.ServiceType) != *serviceType {
			continue
		}
		if status != nil && string(f.Status) != *status {
			continue
		}
		if applicantID != nil && f.ApplicantID != *applicantID {
			continue
		}
		out = append(out, cloneForm(f))
	}
	return out, len(out), nil
}

func (s *fakeStore) UpdateState(_ context.Context, f *model.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.forms[f.ID]
	if !ok {
		return errors.NotFound("form", f.ID)
	}
	if cur.Version != f.Version {
		return errors.Newf(errors.ErrCodeConcurrentModification,
			"form %s was modified concurrently (stale version %d)", f.ID, f.Version)
	}
	f.Version++
	s.forms[f.ID] = cloneForm(f)
	return nil
}

// fakeAudit collects audit entries in memory.
type fakeAudit struct {
	mu      sync.Mutex
	entries []*model.AuditEntry
}

func (a *fakeAudit) Append(_ context.Context, entry *model.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

func (a *fakeAudit) GetByFormID(_ context.Context, formID string) ([]*model.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*model.AuditEntry
	for _, e := range a.entries {
		if e.FormID == formID {
			out = append(out, e)
		}
	}
	return out, nil
}

type testEnv struct {
	store    *fakeStore
	audit    *fakeAudit
	forms    *FormService
	review   *ReviewService
	delivery *DeliveryService
}

func newTestEnv() *testEnv {
	store := newFakeStore()
	audit := &fakeAudit{}
	log := logger.New(logger.Config{Level: "error", ServiceName: "test"})
	return &testEnv{
		store:    store,
		audit:    audit,
		forms:    NewFormService(store, audit, NopNotifier{}, log),
		review:   NewReviewService(store, audit, NopNotifier{}, log),
		delivery: NewDeliveryService(store, audit, NopNotifier{}, log),
	}
}

// createSubmitted creates a form and submits it for review.
func createSubmitted(t *testing.T, env *testEnv) *model.Form {
	t.Helper()
	ctx := context.Background()
	f, err := env.forms.CreateForm(ctx, &CreateFormRequest{
		ServiceType: string(model.ServiceTrustDeed),
		ApplicantID: "user-9",
		Fields:      map[string]any{"trustee": "R. Sharma", "district": "Pune"},
	})
	require.NoError(t, err)
	f, err = env.forms.SubmitForm(ctx, f.ID, "user-9")
	require.NoError(t, err)
	return f
}

// reviewToApproval drives a submitted form through all five stages.
func reviewToApproval(t *testing.T, env *testEnv, formID string) *model.Form {
	t.Helper()
	ctx := context.Background()
	for _, stage := range model.Stages[:3] {
		_, err := env.review.Verify(ctx, formID, string(stage), "checked", string(stage)+"-user")
		require.NoError(t, err)
	}
	_, _, err := env.review.CrossVerify(ctx, &CrossVerifyRequest{
		FormID: formID, Approved: true, Notes: "consistent", ActorID: "staff4-user",
	})
	require.NoError(t, err)
	f, err := env.review.FinalApprove(ctx, formID, "approved", "registered", "staff5-user")
	require.NoError(t, err)
	return f
}
