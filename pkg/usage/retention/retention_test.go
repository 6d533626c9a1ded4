package retention

import (
	"context"
	"fmt"
	"testing"
	"time"

	"mercator-hq/conduit/internal/testutil"
	"mercator-hq/conduit/pkg/usage"
	"mercator-hq/conduit/pkg/usage/storage"
)

var epoch = time.Date(2026, 4, 1, 3, 0, 0, 0, time.UTC)

func seed(t *testing.T, b storage.Backend, ages ...time.Duration) {
	t.Helper()
	for i, age := range ages {
		ev := usage.Event{RequestID: fmt.Sprintf("r%d", i), ProviderID: "p", Timestamp: epoch.Add(-age)}
		if err := b.Save(context.Background(), ev); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}
}

func TestPruner_Prune(t *testing.T) {
	day := 24 * time.Hour

	tests := []struct {
		name        string
		days        int
		wantDeleted int64
		wantLeft    int64
	}{
		{"thirty days", 30, 2, 2},
		{"one day", 1, 3, 1},
		{"keep forever", -1, 0, 4},
		{"zero days prunes everything older than now", 0, 4, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := storage.NewMemoryBackend()
			seed(t, b, time.Hour, 2*day, 31*day, 90*day)

			clock := testutil.NewClock(epoch)
			p := NewPruner(b, Config{RetentionDays: tt.days}, clock.Now)

			deleted, err := p.Prune(context.Background())
			if err != nil {
				t.Fatalf("Prune() error = %v", err)
			}
			if deleted != tt.wantDeleted {
				t.Errorf("deleted = %d, want %d", deleted, tt.wantDeleted)
			}
			if n, _ := b.Count(context.Background()); n != tt.wantLeft {
				t.Errorf("Count() = %d, want %d", n, tt.wantLeft)
			}
		})
	}
}

func TestPruner_BackendError(t *testing.T) {
	b := storage.NewMemoryBackend()
	b.Close()

	p := NewPruner(b, Config{RetentionDays: 1}, nil)
	if _, err := p.Prune(context.Background()); err == nil {
		t.Error("Prune() on closed backend should fail")
	}
}

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		wantRunning bool
		wantError   bool
	}{
		{"valid daily schedule", "0 3 * * *", true, false},
		{"valid hourly schedule", "0 * * * *", true, false},
		{"empty schedule - no error, not running", "", false, false},
		{"invalid schedule", "invalid cron", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPruner(storage.NewMemoryBackend(), Config{RetentionDays: 30, PruneSchedule: tt.schedule}, nil)
			s := NewScheduler(p)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := s.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Fatalf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			if s.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", s.IsRunning(), tt.wantRunning)
			}
			if tt.wantRunning && s.NextRun() == nil {
				t.Error("NextRun() = nil for a running scheduler")
			}
			s.Stop()
		})
	}
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	p := NewPruner(storage.NewMemoryBackend(), Config{RetentionDays: 30, PruneSchedule: "0 3 * * *"}, nil)
	s := NewScheduler(p)

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	testutil.WaitForCondition(t, time.Second, func() bool {
		return !s.IsRunning()
	}, "scheduler still running after cancel")

	if s.NextRun() != nil {
		t.Error("NextRun() should be nil after stop")
	}
}
