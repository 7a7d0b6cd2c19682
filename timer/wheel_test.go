package timer

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/wippyai/jsbridge/handle"
)

type trace struct {
	fired []string
}

func newWheel(t *testing.T, cfg Config) *Wheel[*trace] {
	t.Helper()
	w, err := New[*trace](cfg)
	if err != nil {
		t.Fatalf("new wheel: %v", err)
	}
	return w
}

func note(name string) Func[*trace] {
	return func(l *trace, _ handle.ID) error {
		l.fired = append(l.fired, name)
		return nil
	}
}

func TestNew_InvalidGeometry(t *testing.T) {
	for _, cfg := range []Config{
		{Granularity: -1},
		{Slots: 1},
		{Levels: -1},
		{Slots: 1 << 20, Levels: 8},
	} {
		if _, err := New[*trace](cfg); err == nil {
			t.Errorf("config %+v accepted", cfg)
		}
	}
}

func TestOneShot_FiresOnceAtDelay(t *testing.T) {
	for _, delay := range []time.Duration{
		1 * time.Millisecond,
		16 * time.Millisecond,
		64 * time.Millisecond,
		1000 * time.Millisecond,
		5 * time.Minute,
	} {
		w := newWheel(t, Config{Granularity: time.Millisecond, Slots: 8, Levels: 3})
		l := &trace{}
		w.Schedule(delay, 0, note("a"))

		w.Tick(delay - time.Millisecond)
		w.Invoke(l, nil)
		if len(l.fired) != 0 {
			t.Fatalf("delay %v: fired early", delay)
		}
		w.Tick(time.Millisecond)
		w.Invoke(l, nil)
		if len(l.fired) != 1 {
			t.Fatalf("delay %v: fired %d times, want 1", delay, len(l.fired))
		}
		w.Tick(10 * delay)
		w.Invoke(l, nil)
		if len(l.fired) != 1 || w.Len() != 0 {
			t.Fatalf("delay %v: one-shot fired again or left pending", delay)
		}
	}
}

func TestOneShot_SingleTickOfExactDelay(t *testing.T) {
	w := newWheel(t, Config{Granularity: time.Millisecond, Slots: 4, Levels: 3})
	l := &trace{}
	w.Schedule(37*time.Millisecond, 0, note("a"))
	w.Tick(37 * time.Millisecond)
	if n := w.Invoke(l, nil); n != 1 {
		t.Fatalf("fired %d, want 1", n)
	}
}

func TestPeriodic_FiresKTimes(t *testing.T) {
	w := newWheel(t, Config{})
	l := &trace{}
	period := 16 * time.Millisecond
	w.Schedule(period, period, note("p"))

	for k := 1; k <= 10; k++ {
		w.Tick(period)
		w.Invoke(l, nil)
		if len(l.fired) != k {
			t.Fatalf("after %d periods fired %d", k, len(l.fired))
		}
	}
}

func TestPeriodic_CatchUpInOneTick(t *testing.T) {
	w := newWheel(t, Config{})
	l := &trace{}
	w.Schedule(10*time.Millisecond, 10*time.Millisecond, note("p"))
	w.Tick(50 * time.Millisecond)
	if n := w.Invoke(l, nil); n != 5 {
		t.Fatalf("fired %d, want 5", n)
	}
	w.Tick(10 * time.Millisecond)
	if n := w.Invoke(l, nil); n != 1 {
		t.Fatalf("fired %d after catch-up, want 1", n)
	}
}

func TestCancelBeforeExpiry(t *testing.T) {
	w := newWheel(t, Config{Slots: 4, Levels: 2})
	l := &trace{}
	a := w.Schedule(5*time.Millisecond, 0, note("a"))
	b := w.Schedule(40*time.Millisecond, 0, note("b"))
	if !w.Cancel(a) || !w.Cancel(b) {
		t.Fatal("cancel failed")
	}
	if w.Cancel(a) {
		t.Error("double cancel reported success")
	}
	w.Tick(time.Second)
	w.Invoke(l, nil)
	if len(l.fired) != 0 {
		t.Fatalf("cancelled timers fired: %v", l.fired)
	}
	if w.Pending(a) || w.Len() != 0 {
		t.Error("cancelled timer still pending")
	}
}

func TestCancelAfterActivation(t *testing.T) {
	w := newWheel(t, Config{})
	l := &trace{}
	id := w.Schedule(time.Millisecond, 0, note("a"))
	w.Tick(time.Millisecond)
	w.Cancel(id)
	if n := w.Invoke(l, nil); n != 0 {
		t.Fatalf("activated then cancelled timer fired")
	}
}

func TestCallbackCancelsPeer(t *testing.T) {
	w := newWheel(t, Config{})
	l := &trace{}
	var second handle.ID
	w.Schedule(time.Millisecond, 0, func(l *trace, _ handle.ID) error {
		l.fired = append(l.fired, "first")
		w.Cancel(second)
		return nil
	})
	second = w.Schedule(time.Millisecond, 0, note("second"))
	w.Tick(time.Millisecond)
	w.Invoke(l, nil)
	if len(l.fired) != 1 || l.fired[0] != "first" {
		t.Fatalf("fired = %v", l.fired)
	}
}

func TestIntervalCancelsItself(t *testing.T) {
	w := newWheel(t, Config{})
	l := &trace{}
	count := 0
	w.Schedule(time.Millisecond, time.Millisecond, func(_ *trace, id handle.ID) error {
		count++
		if count == 3 {
			w.Cancel(id)
		}
		return nil
	})
	for i := 0; i < 10; i++ {
		w.Tick(time.Millisecond)
		w.Invoke(l, nil)
	}
	if count != 3 || w.Len() != 0 {
		t.Fatalf("count = %d, len = %d", count, w.Len())
	}
}

func TestImmediateScheduledFromCallback(t *testing.T) {
	w := newWheel(t, Config{})
	l := &trace{}
	w.Schedule(0, 0, func(l *trace, _ handle.ID) error {
		l.fired = append(l.fired, "outer")
		w.Schedule(0, 0, note("inner"))
		return nil
	})
	w.Invoke(l, nil)
	if len(l.fired) != 1 {
		t.Fatalf("inner should wait for the next invoke: %v", l.fired)
	}
	w.Invoke(l, nil)
	if len(l.fired) != 2 || l.fired[1] != "inner" {
		t.Fatalf("fired = %v", l.fired)
	}
}

func TestCallbackErrorsDoNotStopBatch(t *testing.T) {
	w := newWheel(t, Config{})
	l := &trace{}
	boom := errors.New("boom")
	w.Schedule(0, 0, func(*trace, handle.ID) error { return boom })
	w.Schedule(0, 0, note("after"))

	var errs []error
	w.Invoke(l, func(_ handle.ID, err error) { errs = append(errs, err) })
	if len(errs) != 1 || !errors.Is(errs[0], boom) {
		t.Errorf("errs = %v", errs)
	}
	if len(l.fired) != 1 {
		t.Errorf("second timer did not run")
	}
}

func TestOrderWithinTick(t *testing.T) {
	w := newWheel(t, Config{})
	l := &trace{}
	w.Schedule(3*time.Millisecond, 0, note("c"))
	w.Schedule(1*time.Millisecond, 0, note("a"))
	w.Schedule(2*time.Millisecond, 0, note("b"))
	w.Tick(5 * time.Millisecond)
	w.Invoke(l, nil)
	if got := l.fired; len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("order = %v", got)
	}
}

func TestFractionalTicksCarry(t *testing.T) {
	w := newWheel(t, Config{Granularity: 10 * time.Millisecond})
	l := &trace{}
	w.Schedule(20*time.Millisecond, 0, note("a"))
	for i := 0; i < 3; i++ {
		w.Tick(6 * time.Millisecond)
		w.Invoke(l, nil)
	}
	if len(l.fired) != 0 {
		t.Fatal("fired before 20ms elapsed")
	}
	w.Tick(2 * time.Millisecond)
	w.Invoke(l, nil)
	if len(l.fired) != 1 {
		t.Fatal("did not fire at 20ms")
	}
	if w.Elapsed() != 20*time.Millisecond {
		t.Errorf("elapsed = %v", w.Elapsed())
	}
}

func TestBeyondTopLevel(t *testing.T) {
	// 4 slots, 2 levels: spans 16 ticks before clamping
	w := newWheel(t, Config{Slots: 4, Levels: 2})
	l := &trace{}
	w.Schedule(100*time.Millisecond, 0, note("far"))
	w.Tick(99 * time.Millisecond)
	w.Invoke(l, nil)
	if len(l.fired) != 0 {
		t.Fatal("clamped timer fired early")
	}
	w.Tick(time.Millisecond)
	w.Invoke(l, nil)
	if len(l.fired) != 1 {
		t.Fatal("clamped timer did not fire at its expiry")
	}
}

func TestClear(t *testing.T) {
	w := newWheel(t, Config{})
	l := &trace{}
	id := w.Schedule(time.Millisecond, time.Millisecond, note("a"))
	w.Schedule(0, 0, note("b"))
	w.Clear()
	if w.Pending(id) || w.Len() != 0 {
		t.Fatal("clear left timers")
	}
	w.Tick(time.Second)
	if n := w.Invoke(l, nil); n != 0 {
		t.Fatalf("fired %d after clear", n)
	}
}

// every one-shot fires exactly once, at its own tick
func TestRandomSchedule(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	w := newWheel(t, Config{Slots: 8, Levels: 3})
	due := make(map[handle.ID]uint64)
	hits := make(map[handle.ID]int)
	cancelled := make(map[handle.ID]bool)

	var now uint64
	for step := 0; step < 2000; step++ {
		switch rng.Intn(4) {
		case 0, 1:
			d := uint64(rng.Intn(700))
			id := w.Schedule(time.Duration(d)*time.Millisecond, 0, func(_ *trace, got handle.ID) error {
				if now < due[got] {
					t.Errorf("timer %v fired at %d, due %d", got, now, due[got])
				}
				hits[got]++
				return nil
			})
			due[id] = now + d
		case 2:
			for id := range due {
				if hits[id] == 0 && !cancelled[id] && rng.Intn(2) == 0 {
					if w.Cancel(id) {
						cancelled[id] = true
					}
					break
				}
			}
		case 3:
			n := rng.Intn(40)
			for i := 0; i < n; i++ {
				now++
				w.Tick(time.Millisecond)
				w.Invoke(&trace{}, nil)
			}
		}
	}
	now += 1000
	w.Tick(1000 * time.Millisecond)
	w.Invoke(&trace{}, nil)

	for id := range due {
		want := 1
		if cancelled[id] {
			want = 0
		}
		if hits[id] != want {
			t.Errorf("timer %v fired %d times, want %d", id, hits[id], want)
		}
	}
	if w.Len() != 0 {
		t.Errorf("%d timers left", w.Len())
	}
}
