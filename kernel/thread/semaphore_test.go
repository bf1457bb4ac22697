package thread

import "testing"

func TestSemaphore(t *testing.T) {
	h := newHarness(t, 32)
	sem := h.s.NewSemaphore(1)

	var inside, finished, minCount int
	checkInvariant := func(step string) {
		count := sem.Count()
		if count < minCount {
			minCount = count
		}

		switch {
		case count < 0 && -count != sem.Waiters():
			t.Errorf("[%s] count %d but %d waiters", step, count, sem.Waiters())
		case count >= 0 && sem.Waiters() != 0:
			t.Errorf("[%s] count %d but %d waiters", step, count, sem.Waiters())
		}
	}

	worker := func(interface{}) {
		for round := 0; round < 3; round++ {
			sem.Wait()
			inside++
			if inside > 1 {
				t.Errorf("expected at most one thread inside the critical section; got %d", inside)
			}
			checkInvariant("acquired")

			h.s.Yield()
			h.s.Yield()

			inside--
			sem.Post()
			checkInvariant("released")
			h.s.Yield()
		}
		finished++
	}

	monitor := func(interface{}) {
		for finished < 3 {
			checkInvariant("monitor")
			h.s.Yield()
		}
		h.stop()
	}

	for _, name := range []string{"w1", "w2", "w3"} {
		h.create(worker, nil, name)
	}
	h.create(monitor, nil, "monitor")

	h.run()

	if minCount != -2 {
		t.Errorf("expected the count to drop to -2 with two blocked waiters; lowest count was %d", minCount)
	}

	if exp, got := 1, sem.Count(); got != exp {
		t.Errorf("expected final count %d; got %d", exp, got)
	}
}

func TestSemaphoreTryWait(t *testing.T) {
	h := newHarness(t, 4)
	sem := h.s.NewSemaphore(1)

	if !sem.TryWait() {
		t.Fatal("expected TryWait to succeed when the count is positive")
	}

	if sem.TryWait() {
		t.Fatal("expected TryWait to fail when the count is 0")
	}

	// Post without waiters only bumps the count
	sem.Post()
	if exp, got := 1, sem.Count(); got != exp {
		t.Fatalf("expected count %d; got %d", exp, got)
	}
}
