package intake

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/platform/metrics"
)

// ── Mock Repository ──

type mockFormRepo struct {
	mu   sync.Mutex
	data map[uuid.UUID]*FormVersion
}

func newMockFormRepo() *mockFormRepo {
	return &mockFormRepo{data: make(map[uuid.UUID]*FormVersion)}
}

func (m *mockFormRepo) Create(_ context.Context, f *FormVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	version := 0
	for _, existing := range m.data {
		if existing.Name == f.Name && existing.Version > version {
			version = existing.Version
		}
	}
	f.ID = uuid.New()
	f.Version = version + 1
	f.CreatedAt = time.Now()
	f.UpdatedAt = f.CreatedAt
	m.data[f.ID] = f
	return nil
}

func (m *mockFormRepo) GetByID(_ context.Context, id uuid.UUID) (*FormVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.data[id]; ok {
		return f, nil
	}
	return nil, ErrFormNotFound
}

func (m *mockFormRepo) GetActive(_ context.Context, name string) (*FormVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.data {
		if f.Name == name && f.Status == FormStatusActive {
			return f, nil
		}
	}
	return nil, ErrFormNotFound
}

func (m *mockFormRepo) List(_ context.Context, name string, limit, offset int) ([]*FormVersion, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*FormVersion
	for _, f := range m.data {
		if name == "" || f.Name == name {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version > out[j].Version
	})
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *mockFormRepo) Activate(_ context.Context, id uuid.UUID) (*FormVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.data[id]
	if !ok {
		return nil, ErrFormNotFound
	}
	for _, other := range m.data {
		if other.Name == f.Name && other.Status == FormStatusActive {
			other.Status = FormStatusRetired
		}
	}
	f.Status = FormStatusActive
	return f, nil
}

func newTestService(t *testing.T, forms FormRepository) *Service {
	t.Helper()
	return NewService(defaultEngine(t), forms, zerolog.Nop())
}

// ── Evaluation ──

func TestService_Validate(t *testing.T) {
	svc := newTestService(t, nil)
	values := completePatient()
	delete(values, "patient-phone")

	res, err := svc.Validate(context.Background(), values, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Errors) != 1 || res.Errors["patient-phone"].Type != ErrorRequired {
		t.Errorf("errors = %v", res.Errors)
	}
}

func TestService_SectionVisibility(t *testing.T) {
	svc := newTestService(t, nil)
	commercial := FormValues{"payment-method": "Commercial"}
	selfPay := FormValues{"payment-method": "Self-pay"}

	hidden, err := svc.SectionVisibility("insurance", selfPay, nil)
	if err != nil || !hidden {
		t.Errorf("insurance self-pay: hidden=%v err=%v", hidden, err)
	}
	hidden, err = svc.SectionVisibility("insurance-section-2", commercial, nil)
	if err != nil || hidden {
		t.Errorf("insurance-section-2 commercial: hidden=%v err=%v", hidden, err)
	}
	hidden, err = svc.SectionVisibility("legacy-pharmacy", commercial, nil)
	if err != nil || !hidden {
		t.Errorf("legacy pharmacy: hidden=%v err=%v", hidden, err)
	}

	one := 1
	if _, err := svc.SectionVisibility("insurance-section-1", commercial, &one); !errors.Is(err, ErrSectionShape) {
		t.Errorf("mismatched index: %v", err)
	}
	if _, err := svc.SectionVisibility("billing", commercial, nil); !errors.Is(err, ErrSectionNotFound) {
		t.Errorf("unknown section: %v", err)
	}
}

func TestService_SectionRules(t *testing.T) {
	svc := newTestService(t, nil)

	rules, err := svc.SectionRules("patient-demographics", FormValues{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !rules["patient-first-name"].Required {
		t.Error("expected first name to be required")
	}
	if rules["patient-zip"].Pattern == nil {
		t.Error("expected the ZIP pattern")
	}

	if _, err := svc.SectionRules("insurance", FormValues{}, nil); !errors.Is(err, ErrSectionShape) {
		t.Errorf("array section without index: %v", err)
	}

	one := 1
	rules, err = svc.SectionRules("insurance", FormValues{}, &one)
	if err != nil {
		t.Fatal(err)
	}
	if !rules["insurance-member-id-2"].Required {
		t.Error("expected the secondary member id to be required")
	}
	if _, ok := rules["insurance-member-id"]; ok {
		t.Error("primary fields belong to repetition 0")
	}

	rules, err = svc.SectionRules("insurance-section-1", FormValues{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !rules["insurance-member-id"].Required {
		t.Error("expected the primary member id to be required via its linkId")
	}

	rules, err = svc.SectionRules("guarantor", FormValues{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := rules["guarantor-intro"]; ok {
		t.Error("display fields carry no rules")
	}
}

func TestService_Lint(t *testing.T) {
	if res := newTestService(t, nil).Lint(); !res.Valid {
		t.Errorf("default form lint: %+v", res.Issues)
	}
}

// ── Form Versions ──

func TestService_FormsUnavailable(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.PublishForm(ctx, "patient-record", []byte(minimalFormJSON), nil); !errors.Is(err, ErrFormsUnavailable) {
		t.Errorf("publish: %v", err)
	}
	if _, err := svc.ActivateForm(ctx, uuid.New()); !errors.Is(err, ErrFormsUnavailable) {
		t.Errorf("activate: %v", err)
	}
	if _, err := svc.GetForm(ctx, uuid.New()); !errors.Is(err, ErrFormsUnavailable) {
		t.Errorf("get: %v", err)
	}
	if _, _, err := svc.ListForms(ctx, "", 20, 0); !errors.Is(err, ErrFormsUnavailable) {
		t.Errorf("list: %v", err)
	}
}

func TestService_PublishForm(t *testing.T) {
	repo := newMockFormRepo()
	svc := newTestService(t, repo)
	reg := prometheus.NewRegistry()
	m := metrics.NewCollector("test", reg)
	svc.SetMetrics(m)
	ctx := context.Background()

	note := "first cut"
	v1, err := svc.PublishForm(ctx, "  patient-record ", []byte(minimalFormJSON), &note)
	if err != nil {
		t.Fatal(err)
	}
	if v1.Name != "patient-record" || v1.Version != 1 || v1.Status != FormStatusDraft {
		t.Errorf("v1 = %+v", v1)
	}
	v2, err := svc.PublishForm(ctx, "patient-record", []byte(minimalFormJSON), nil)
	if err != nil {
		t.Fatal(err)
	}
	if v2.Version != 2 {
		t.Errorf("expected version 2, got %d", v2.Version)
	}
	if got := testutil.ToFloat64(m.FormsPublished); got != 2 {
		t.Errorf("published = %v", got)
	}

	list, total, err := svc.ListForms(ctx, "patient-record", 20, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(list) != 2 || list[0].Version != 2 {
		t.Errorf("list = %d %v", total, list)
	}
}

func TestService_PublishForm_Invalid(t *testing.T) {
	svc := newTestService(t, newMockFormRepo())
	ctx := context.Background()

	duplicateKeys := `{"sections": {
		"a": {"title": "A", "linkId": "a", "items": {"x": {"kind": "input"}}},
		"b": {"title": "B", "linkId": "b", "items": {"x": {"kind": "input"}}}
	}}`
	tests := map[string]struct {
		name string
		def  string
	}{
		"empty name":     {"", minimalFormJSON},
		"blank name":     {"   ", minimalFormJSON},
		"schema failure": {"f", `{"sections": {"a": {"title": "A"}}}`},
		"bad json":       {"f", `{`},
		"lint error":     {"f", duplicateKeys},
	}
	for label, tt := range tests {
		t.Run(label, func(t *testing.T) {
			if _, err := svc.PublishForm(ctx, tt.name, []byte(tt.def), nil); !errors.Is(err, ErrInvalidFormConfig) {
				t.Errorf("expected ErrInvalidFormConfig, got %v", err)
			}
		})
	}

	_, err := svc.PublishForm(ctx, "f", []byte(duplicateKeys), nil)
	if err == nil || !strings.Contains(err.Error(), "declared 2 times") {
		t.Errorf("expected the lint error in the message, got %v", err)
	}
}

func TestService_ActivateForm(t *testing.T) {
	repo := newMockFormRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	v1, err := svc.PublishForm(ctx, "patient-record", []byte(minimalFormJSON), nil)
	if err != nil {
		t.Fatal(err)
	}
	v2, err := svc.PublishForm(ctx, "patient-record", []byte(minimalFormJSON), nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ActivateForm(ctx, v1.ID); err != nil {
		t.Fatal(err)
	}
	active, err := svc.ActivateForm(ctx, v2.ID)
	if err != nil {
		t.Fatal(err)
	}
	if active.Status != FormStatusActive {
		t.Errorf("status = %s", active.Status)
	}
	old, err := svc.GetForm(ctx, v1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if old.Status != FormStatusRetired {
		t.Errorf("expected the previous version to be retired, got %s", old.Status)
	}

	if _, err := svc.ActivateForm(ctx, uuid.New()); !errors.Is(err, ErrFormNotFound) {
		t.Errorf("unknown id: %v", err)
	}
}

func TestActiveConfig(t *testing.T) {
	repo := newMockFormRepo()
	ctx := context.Background()

	if _, _, err := ActiveConfig(ctx, repo, "patient-record"); !errors.Is(err, ErrFormNotFound) {
		t.Errorf("no active version: %v", err)
	}

	f := &FormVersion{Name: "patient-record", Status: FormStatusDraft, Definition: []byte(minimalFormJSON)}
	if err := repo.Create(ctx, f); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Activate(ctx, f.ID); err != nil {
		t.Fatal(err)
	}

	cfg, version, err := ActiveConfig(ctx, repo, "patient-record")
	if err != nil {
		t.Fatal(err)
	}
	if version.ID != f.ID {
		t.Errorf("version = %v", version.ID)
	}
	if _, ok := cfg.Section("visit"); !ok {
		t.Error("expected the stored definition to be parsed")
	}

	broken := &FormVersion{Name: "broken", Status: FormStatusActive, Definition: []byte(`{"sections": {}}`)}
	if err := repo.Create(ctx, broken); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ActiveConfig(ctx, repo, "broken"); !errors.Is(err, ErrInvalidFormConfig) {
		t.Errorf("broken definition: %v", err)
	}
}
