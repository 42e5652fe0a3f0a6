package scheduler

import (
	"sync"
	"testing"
	"time"
)

func TestTimers_Schedule(t *testing.T) {
	tm := NewTimers()
	tm.Start()
	defer tm.Stop()

	executed := false
	var mu sync.Mutex

	err := tm.Schedule("job1", time.Now().Add(100*time.Millisecond), func() {
		mu.Lock()
		executed = true
		mu.Unlock()
	})

	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	if !executed {
		t.Error("Job was not executed")
	}
	mu.Unlock()
}

func TestTimers_Cancel(t *testing.T) {
	tm := NewTimers()
	tm.Start()
	defer tm.Stop()

	executed := false
	var mu sync.Mutex

	err := tm.Schedule("job1", time.Now().Add(100*time.Millisecond), func() {
		mu.Lock()
		executed = true
		mu.Unlock()
	})

	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	cancelled := tm.Cancel("job1")
	if !cancelled {
		t.Error("Cancel returned false")
	}

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	if executed {
		t.Error("Job was executed despite being cancelled")
	}
	mu.Unlock()
}

func TestTimers_MultipleJobsOrdering(t *testing.T) {
	tm := NewTimers()
	tm.Start()
	defer tm.Stop()

	var results []int
	var mu sync.Mutex

	// Schedule jobs in reverse order
	tm.Schedule("job3", time.Now().Add(150*time.Millisecond), func() {
		mu.Lock()
		results = append(results, 3)
		mu.Unlock()
	})

	tm.Schedule("job1", time.Now().Add(50*time.Millisecond), func() {
		mu.Lock()
		results = append(results, 1)
		mu.Unlock()
	})

	tm.Schedule("job2", time.Now().Add(100*time.Millisecond), func() {
		mu.Lock()
		results = append(results, 2)
		mu.Unlock()
	})

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	if len(results) != 3 {
		t.Errorf("Expected 3 results, got %d", len(results))
	}
	if results[0] != 1 || results[1] != 2 || results[2] != 3 {
		t.Errorf("Jobs executed in wrong order: %v", results)
	}
	mu.Unlock()
}

func TestTimers_RescheduleExisting(t *testing.T) {
	tm := NewTimers()
	tm.Start()
	defer tm.Stop()

	count := 0
	var mu sync.Mutex

	tm.Schedule("job1", time.Now().Add(100*time.Millisecond), func() {
		mu.Lock()
		count++
		mu.Unlock()
	})

	// Reschedule with same ID (should replace)
	tm.Schedule("job1", time.Now().Add(50*time.Millisecond), func() {
		mu.Lock()
		count += 10
		mu.Unlock()
	})

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	if count != 10 {
		t.Errorf("Expected count=10 (only second job), got %d", count)
	}
	mu.Unlock()
}

func TestTimers_Pending(t *testing.T) {
	tm := NewTimers()
	tm.Start()
	defer tm.Stop()

	tm.Schedule("job1", time.Now().Add(1*time.Hour), func() {})
	tm.Schedule("job2", time.Now().Add(2*time.Hour), func() {})
	tm.Schedule("job3", time.Now().Add(3*time.Hour), func() {})

	if got := tm.Pending(); got != 3 {
		t.Errorf("Expected 3 pending jobs, got %d", got)
	}
}

func TestTimers_ScheduleAfterStop(t *testing.T) {
	tm := NewTimers()
	tm.Start()
	tm.Stop()

	if err := tm.Schedule("job1", time.Now(), func() {}); err != ErrTimersStopped {
		t.Errorf("Expected ErrTimersStopped, got %v", err)
	}
}

func TestNextRun(t *testing.T) {
	now := time.Date(2026, 1, 25, 10, 0, 0, 0, time.UTC)

	// 09:00 local at UTC+3 is 06:00 UTC; already past, so tomorrow
	run, err := NextRun("09:00", 3, now)
	if err != nil {
		t.Fatalf("NextRun failed: %v", err)
	}
	want := time.Date(2026, 1, 26, 6, 0, 0, 0, time.UTC)
	if !run.Equal(want) {
		t.Errorf("Expected %v, got %v", want, run)
	}

	// 18:30 local at UTC+3 is 15:30 UTC today
	run, err = NextRun("18:30", 3, now)
	if err != nil {
		t.Fatalf("NextRun failed: %v", err)
	}
	want = time.Date(2026, 1, 25, 15, 30, 0, 0, time.UTC)
	if !run.Equal(want) {
		t.Errorf("Expected %v, got %v", want, run)
	}

	// negative offset: 07:00 local at UTC-5 is 12:00 UTC today
	run, err = NextRun("07:00", -5, now)
	if err != nil {
		t.Fatalf("NextRun failed: %v", err)
	}
	want = time.Date(2026, 1, 25, 12, 0, 0, 0, time.UTC)
	if !run.Equal(want) {
		t.Errorf("Expected %v, got %v", want, run)
	}

	if _, err := NextRun("25:99", 0, now); err == nil {
		t.Error("Expected error for invalid send time")
	}
}
