package registry

import (
	"errors"
	"reflect"
	"testing"

	"mercator-hq/conduit/pkg/config"
)

func testProviders() []Provider {
	return []Provider{
		{ID: "low", CostPerToken: 0.1, RateLimit: 10, IsActive: true, Priority: 1},
		{ID: "high", CostPerToken: 0.2, RateLimit: 10, IsActive: true, Priority: 5, Specialties: []string{"seo"}},
		{ID: "mid-a", CostPerToken: 0.3, RateLimit: 10, IsActive: true, Priority: 3},
		{ID: "mid-b", CostPerToken: 0.4, RateLimit: 10, IsActive: false, Priority: 3},
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name      string
		providers []Provider
		want      error
	}{
		{"missing id", []Provider{{RateLimit: 1}}, ErrInvalidProvider},
		{"zero rate limit", []Provider{{ID: "a"}}, ErrInvalidProvider},
		{"duplicate", []Provider{{ID: "a", RateLimit: 1}, {ID: "a", RateLimit: 2}}, ErrDuplicateProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.providers)
			if !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestList_PriorityOrderStable(t *testing.T) {
	r, err := New(testProviders())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	want := []string{"high", "mid-a", "mid-b", "low"}
	if got := r.IDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("IDs() = %v, want %v", got, want)
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	r, _ := New(testProviders())

	p, ok := r.Get("high")
	if !ok {
		t.Fatal("Get(high) not found")
	}
	p.Specialties[0] = "mutated"
	p.CostPerToken = 99

	again, _ := r.Get("high")
	if again.Specialties[0] != "seo" || again.CostPerToken != 0.2 {
		t.Errorf("registry state leaked through Get: %+v", again)
	}

	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) should report false")
	}
}

func TestUpdate(t *testing.T) {
	r, _ := New(testProviders())

	active := false
	priority := 10
	limit := 42
	tags := []string{"creative"}

	got, ok := r.Update("low", Patch{IsActive: &active, Priority: &priority, RateLimit: &limit, Specialties: &tags})
	if !ok {
		t.Fatal("Update(low) reported unknown provider")
	}
	if got.IsActive || got.Priority != 10 || got.RateLimit != 42 || !got.HasSpecialty("creative") {
		t.Errorf("patch not applied: %+v", got)
	}
	if got.CostPerToken != 0.1 {
		t.Errorf("unpatched field changed: CostPerToken = %v", got.CostPerToken)
	}
	if r.IDs()[0] != "low" {
		t.Errorf("priority change not reflected in order: %v", r.IDs())
	}

	if _, ok := r.Update("missing", Patch{IsActive: &active}); ok {
		t.Error("Update(missing) should report false")
	}
	if r.Len() != 4 {
		t.Errorf("Len() = %d, want 4", r.Len())
	}
}

func TestPatchValidate(t *testing.T) {
	neg := -1.0
	zero := 0
	if err := (Patch{CostPerToken: &neg}).Validate(); !errors.Is(err, ErrInvalidProvider) {
		t.Errorf("negative cost: err = %v", err)
	}
	if err := (Patch{RateLimit: &zero}).Validate(); !errors.Is(err, ErrInvalidProvider) {
		t.Errorf("zero rate limit: err = %v", err)
	}
	if err := (Patch{}).Validate(); err != nil {
		t.Errorf("empty patch: err = %v", err)
	}
}

func TestFromConfig(t *testing.T) {
	inactive := false
	r, err := FromConfig([]config.ProviderConfig{
		{ID: "a", CostPerToken: 0.1, RateLimit: 5, Active: &inactive},
		{ID: "b", CostPerToken: 0.2, RateLimit: 5},
	})
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}

	a, _ := r.Get("a")
	b, _ := r.Get("b")
	if a.IsActive {
		t.Error("a should be inactive")
	}
	if !b.IsActive {
		t.Error("b should default to active")
	}
	if !r.Has("b") || r.Has("c") {
		t.Error("Has() mismatch")
	}
}
