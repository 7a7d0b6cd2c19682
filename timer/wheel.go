package timer

import (
	"math"
	"time"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/handle"
)

// Func is a timer callback. ctx is the value passed to Invoke.
type Func[C any] func(ctx C, id handle.ID) error

// Config describes the wheel geometry.
type Config struct {
	Granularity time.Duration `yaml:"granularity"`
	Slots       int           `yaml:"slots"`
	Levels      int           `yaml:"levels"`
}

// DefaultConfig spans 1ms..~4.6h before clamping.
func DefaultConfig() Config {
	return Config{Granularity: time.Millisecond, Slots: 64, Levels: 4}
}

type record[C any] struct {
	fn         Func[C]
	prev, next *record[C]
	list       *list[C]
	id         handle.ID
	expire     uint64
	period     uint64
}

type list[C any] struct {
	head, tail *record[C]
}

func (l *list[C]) push(r *record[C]) {
	r.list = l
	r.prev, r.next = l.tail, nil
	if l.tail != nil {
		l.tail.next = r
	} else {
		l.head = r
	}
	l.tail = r
}

func (l *list[C]) unlink(r *record[C]) {
	if r.prev != nil {
		r.prev.next = r.next
	} else {
		l.head = r.next
	}
	if r.next != nil {
		r.next.prev = r.prev
	} else {
		l.tail = r.prev
	}
	r.prev, r.next, r.list = nil, nil, nil
}

// detach empties l and returns its former head.
func (l *list[C]) detach() *record[C] {
	h := l.head
	l.head, l.tail = nil, nil
	return h
}

// Wheel schedules callbacks against a tick counter.
type Wheel[C any] struct {
	records   *handle.Table[*record[C]]
	levels    [][]list[C]
	span      []uint64
	activated []*record[C]
	gran      time.Duration
	acc       time.Duration
	now       uint64
	limit     uint64
	slots     uint64
	slotted   int
}

// New creates a wheel. Zero fields of cfg take their defaults.
func New[C any](cfg Config) (*Wheel[C], error) {
	def := DefaultConfig()
	if cfg.Granularity == 0 {
		cfg.Granularity = def.Granularity
	}
	if cfg.Slots == 0 {
		cfg.Slots = def.Slots
	}
	if cfg.Levels == 0 {
		cfg.Levels = def.Levels
	}
	if cfg.Granularity < 0 || cfg.Slots < 2 || cfg.Levels < 1 {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Detail("invalid wheel geometry: granularity %v, slots %d, levels %d",
				cfg.Granularity, cfg.Slots, cfg.Levels).
			Build()
	}

	w := &Wheel[C]{
		records: handle.NewScriptTable[*record[C]](),
		levels:  make([][]list[C], cfg.Levels),
		span:    make([]uint64, cfg.Levels+1),
		gran:    cfg.Granularity,
		slots:   uint64(cfg.Slots),
	}
	w.span[0] = 1
	for l := 1; l <= cfg.Levels; l++ {
		if w.span[l-1] > math.MaxUint64/4/w.slots {
			return nil, errors.New(errors.PhaseConfig, errors.KindOverflow).
				Detail("wheel span overflows at level %d", l).
				Build()
		}
		w.span[l] = w.span[l-1] * w.slots
	}
	for l := range w.levels {
		w.levels[l] = make([]list[C], cfg.Slots)
	}
	w.limit = w.span[cfg.Levels]
	return w, nil
}

// Schedule registers fn to run after delay, then every period if period
// is positive. A non-positive delay fires on the next Invoke.
func (w *Wheel[C]) Schedule(delay, period time.Duration, fn Func[C]) handle.ID {
	r := &record[C]{fn: fn, expire: w.now + w.ticks(delay)}
	if period > 0 {
		r.period = max(w.ticks(period), 1)
	}
	r.id = w.records.Add(r)
	w.place(r)
	return r.id
}

// Cancel removes a timer. It reports false for unknown or already
// finished timers.
func (w *Wheel[C]) Cancel(id handle.ID) bool {
	r, ok := w.records.Take(id)
	if !ok {
		return false
	}
	if r.list != nil {
		r.list.unlink(r)
		w.slotted--
	}
	return true
}

// Pending reports whether id is scheduled or activated.
func (w *Wheel[C]) Pending(id handle.ID) bool {
	return w.records.Valid(id)
}

// Len returns the number of live timers.
func (w *Wheel[C]) Len() int {
	return w.records.Len()
}

// Elapsed returns the total time consumed by whole ticks.
func (w *Wheel[C]) Elapsed() time.Duration {
	return time.Duration(w.now) * w.gran
}

// Tick advances the wheel by elapsed. Fractions of a tick carry over.
func (w *Wheel[C]) Tick(elapsed time.Duration) {
	if elapsed <= 0 {
		return
	}
	w.acc += elapsed
	n := uint64(w.acc / w.gran)
	w.acc -= time.Duration(n) * w.gran
	for i := uint64(0); i < n; i++ {
		if w.slotted == 0 {
			w.now += n - i
			return
		}
		w.advance()
	}
}

// Invoke runs every activated timer with ctx. Periodic timers that are
// still live afterwards are rescheduled, catching up on periods missed by
// a long tick. Callback errors go to onErr and do not stop the batch. It
// returns the number of callbacks run.
func (w *Wheel[C]) Invoke(ctx C, onErr func(handle.ID, error)) int {
	batch := w.activated
	w.activated = nil
	fired := 0
	for _, r := range batch {
		if cur, err := w.records.Get(r.id); err != nil || cur != r {
			continue
		}
		for {
			fired++
			if err := r.fn(ctx, r.id); err != nil && onErr != nil {
				onErr(r.id, err)
			}
			if !w.records.Valid(r.id) {
				break
			}
			if r.period == 0 {
				w.records.Take(r.id)
				break
			}
			r.expire += r.period
			if r.expire > w.now {
				w.place(r)
				break
			}
		}
	}
	return fired
}

// Clear cancels every timer. Outstanding ids become stale.
func (w *Wheel[C]) Clear() {
	w.records.Clear()
	for _, lvl := range w.levels {
		for i := range lvl {
			lvl[i] = list[C]{}
		}
	}
	w.activated = nil
	w.slotted = 0
}

func (w *Wheel[C]) ticks(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64((d + w.gran - 1) / w.gran)
}

func (w *Wheel[C]) place(r *record[C]) {
	if r.expire <= w.now {
		w.activated = append(w.activated, r)
		return
	}
	target := r.expire
	delta := target - w.now
	if delta >= w.limit {
		// re-placed from the real expiry when the top level cascades
		delta = w.limit - 1
		target = w.now + delta
	}
	level := 0
	for level < len(w.levels)-1 && delta >= w.span[level+1] {
		level++
	}
	slot := (target / w.span[level]) % w.slots
	w.levels[level][slot].push(r)
	w.slotted++
}

func (w *Wheel[C]) advance() {
	w.now++
	top := 0
	for top+1 < len(w.levels) && w.now%w.span[top+1] == 0 {
		top++
	}
	for l := top; l >= 1; l-- {
		w.cascade(&w.levels[l][(w.now/w.span[l])%w.slots])
	}
	for r := w.levels[0][w.now%w.slots].detach(); r != nil; {
		next := r.next
		r.prev, r.next, r.list = nil, nil, nil
		w.slotted--
		w.activated = append(w.activated, r)
		r = next
	}
}

func (w *Wheel[C]) cascade(l *list[C]) {
	for r := l.detach(); r != nil; {
		next := r.next
		r.prev, r.next, r.list = nil, nil, nil
		w.slotted--
		w.place(r)
		r = next
	}
}
