package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/ronyzarom/SecureWatch-sub001/internal/domain"
)

// fakeEmployeeStore implements employeeFinder and employeeWriter.
type fakeEmployeeStore struct {
	byEmail map[string]domain.Employee
	findErr error
}

func newFakeEmployeeStore() *fakeEmployeeStore {
	return &fakeEmployeeStore{byEmail: make(map[string]domain.Employee)}
}

func (f *fakeEmployeeStore) FindEmployeeByEmail(ctx context.Context, email string) (*domain.Employee, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	e, ok := f.byEmail[email]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (f *fakeEmployeeStore) UpsertEmployee(ctx context.Context, e domain.Employee) (string, error) {
	if existing, ok := f.byEmail[e.Email]; ok {
		existing.DisplayName = e.DisplayName
		existing.Active = e.Active
		f.byEmail[e.Email] = existing
		return existing.ID, nil
	}
	f.byEmail[e.Email] = e
	return e.ID, nil
}

// --- Resolver ---

func TestResolve_Match(t *testing.T) {
	s := newFakeEmployeeStore()
	s.byEmail["alice@co.com"] = domain.Employee{ID: "emp-1", Email: "alice@co.com"}
	r := NewResolver(s, nil)

	id, err := r.Resolve(context.Background(), "alice@co.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !id.Resolved() || id.EmployeeID != "emp-1" {
		t.Fatalf("expected emp-1, got %+v", id)
	}
}

func TestResolve_MixedCaseAfterReconcile(t *testing.T) {
	s := newFakeEmployeeStore()
	rec := NewReconciler(s, "co.com", nil)
	principals := []domain.Principal{
		{ID: "u1", PrimaryEmail: "Alice@Co.com", DisplayName: "Alice", Enabled: true},
	}
	if _, err := rec.Reconcile(context.Background(), principals); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	// Providers report casing inconsistently; the lookup must hit the
	// lowercased record either way.
	r := NewResolver(s, nil)
	for _, email := range []string{"Alice@Co.com", "alice@co.com", "ALICE@CO.COM"} {
		id, err := r.Resolve(context.Background(), email)
		if err != nil {
			t.Fatalf("resolve %s: %v", email, err)
		}
		if !id.Resolved() {
			t.Errorf("resolve %s: expected a match", email)
		}
	}
}

func TestResolve_MissIsNotAnError(t *testing.T) {
	r := NewResolver(newFakeEmployeeStore(), nil)
	id, err := r.Resolve(context.Background(), "stranger@elsewhere.io")
	if err != nil {
		t.Fatalf("a miss must not error: %v", err)
	}
	if id.Resolved() {
		t.Fatal("expected unresolved identity")
	}
}

func TestResolve_EmptyEmail(t *testing.T) {
	r := NewResolver(newFakeEmployeeStore(), nil)
	id, err := r.Resolve(context.Background(), "")
	if err != nil || id.Resolved() {
		t.Fatalf("empty email must resolve to nothing: %+v, %v", id, err)
	}
}

func TestResolve_StoreErrorPropagates(t *testing.T) {
	s := newFakeEmployeeStore()
	s.findErr = errors.New("db locked")
	r := NewResolver(s, nil)
	if _, err := r.Resolve(context.Background(), "alice@co.com"); err == nil {
		t.Fatal("expected store error to propagate")
	}
}

// --- Reconciler ---

func TestReconcile_UpsertsDomainPrincipalsOnly(t *testing.T) {
	s := newFakeEmployeeStore()
	r := NewReconciler(s, "co.com", nil)

	principals := []domain.Principal{
		{ID: "1", PrimaryEmail: "alice@co.com", DisplayName: "Alice", Enabled: true},
		{ID: "2", PrimaryEmail: "bot@vendor.io", DisplayName: "Vendor Bot", Enabled: true},
		{ID: "3", PrimaryEmail: "bob@co.com", DisplayName: "Bob", Enabled: false},
		{ID: "4", Enabled: true}, // channel principal, no email
	}
	n, err := r.Reconcile(context.Background(), principals)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 reconciled employee, got %d", n)
	}
	if _, ok := s.byEmail["alice@co.com"]; !ok {
		t.Fatal("alice not reconciled")
	}
	if _, ok := s.byEmail["bot@vendor.io"]; ok {
		t.Fatal("out-of-domain principal must be skipped")
	}
}

func TestReconcile_EmptyDomainFailsClosed(t *testing.T) {
	r := NewReconciler(newFakeEmployeeStore(), "", nil)
	_, err := r.Reconcile(context.Background(), []domain.Principal{
		{ID: "1", PrimaryEmail: "alice@co.com", Enabled: true},
	})
	if err == nil {
		t.Fatal("expected error when primary domain is unset")
	}
}

func TestReconcile_DomainIsCaseAndPrefixTolerant(t *testing.T) {
	s := newFakeEmployeeStore()
	r := NewReconciler(s, "@Co.Com", nil)
	n, err := r.Reconcile(context.Background(), []domain.Principal{
		{ID: "1", PrimaryEmail: "Alice@CO.com", DisplayName: "Alice", Enabled: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1, got %d", n)
	}
}
