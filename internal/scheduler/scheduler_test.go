package scheduler

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestAddJobInvalidExpression(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	if err := s.AddJob("not a cron expr", func() {}); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestAddJobValidExpression(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	if err := s.AddJob("* * * * *", func() {}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAddEveryRunsTask(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var runs int32
	s.AddEvery(time.Second, func() {
		atomic.AddInt32(&runs, 1)
	})

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&runs) > 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Error("interval task never ran")
}
