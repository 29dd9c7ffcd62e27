// Package timer holds the respawn timers of a session and drives their
// countdown.
package timer

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/ayoisaiah/respawn/internal/models"
)

// Registry is the in-memory collection of timers keyed by id. It is not safe
// for concurrent use: all calls must come from the session loop.
type Registry struct {
	clock  clockwork.Clock
	timers map[string]*models.Timer
	owner  string
	seq    uint64
}

// TickResult describes the outcome of re-evaluating a timer.
type TickResult struct {
	Timer models.Timer
	// Changed is true when the remaining seconds or the state moved.
	Changed bool
	// Finished is true only on the evaluation that completed the timer.
	Finished bool
	// BecameImminent is true on the first evaluation inside the imminent
	// window.
	BecameImminent bool
}

// NewRegistry returns an empty registry whose local timers belong to owner.
func NewRegistry(clock clockwork.Clock, owner string) *Registry {
	return &Registry{
		clock:  clock,
		owner:  owner,
		timers: make(map[string]*models.Timer),
	}
}

// Owner returns the participant id that owns local timers.
func (r *Registry) Owner() string {
	return r.owner
}

// AddLocal starts a new local countdown for key.
func (r *Registry) AddLocal(
	key models.LocationKey,
	totalSeconds int,
) (models.Timer, error) {
	return r.ImportLocal(key, totalSeconds, totalSeconds, false)
}

// ImportLocal creates a local timer that has remaining seconds left of
// totalSeconds, optionally paused. It is used for timers decoded from share
// links. A timer with nothing remaining is created already finished.
func (r *Registry) ImportLocal(
	key models.LocationKey,
	totalSeconds, remaining int,
	paused bool,
) (models.Timer, error) {
	if totalSeconds < 1 {
		return models.Timer{}, errInvalidDuration.Fmt(totalSeconds)
	}

	if remaining < 0 || remaining > totalSeconds {
		return models.Timer{}, errInvalidRemaining.Fmt(remaining, totalSeconds)
	}

	if existing := r.activeLocal(key); existing != nil {
		return models.Timer{}, &DuplicateError{
			ExistingID: existing.ID,
			Location:   key,
		}
	}

	now := r.clock.Now()

	t := &models.Timer{
		ID:               uuid.NewString(),
		Owner:            r.owner,
		Origin:           models.Local,
		Location:         key,
		TotalSeconds:     totalSeconds,
		RemainingSeconds: remaining,
		StartedAt:        now.Add(-time.Duration(totalSeconds-remaining) * time.Second),
		State:            models.Running,
	}

	switch {
	case remaining == 0:
		t.State = models.Finished
	case paused:
		p := now
		t.PauseStartedAt = &p
		t.State = models.Paused
	}

	r.insert(t)

	return t.Clone(), nil
}

// Restore rebuilds local timers from persisted records. The remaining
// seconds are recomputed from the saved instants, so a timer that ran out
// while the process was gone comes back Finished. Records that clash with an
// existing id or with an active timer at the same location are skipped and
// returned.
func (r *Registry) Restore(records []models.Record) (skipped []models.Record) {
	now := r.clock.Now()

	for _, rec := range records {
		t := rec.Timer(r.owner)

		if _, ok := r.timers[t.ID]; ok || t.TotalSeconds < 1 {
			skipped = append(skipped, rec)
			continue
		}

		if t.State != models.Finished {
			t.RemainingSeconds = t.RemainingAt(now)
			if t.RemainingSeconds == 0 {
				r.finish(&t)
			}
		}

		if t.State != models.Finished && r.activeLocal(t.Location) != nil {
			skipped = append(skipped, rec)
			continue
		}

		r.insert(&t)
	}

	return skipped
}

// PauseOrResume toggles a local timer between Running and Paused. Pausing
// freezes the remaining seconds. Resuming folds the pause into the
// accumulated pause time.
func (r *Registry) PauseOrResume(id string) (models.Timer, error) {
	t, ok := r.timers[id]
	if !ok {
		return models.Timer{}, ErrTimerNotFound
	}

	if t.Origin == models.Remote {
		return t.Clone(), ErrRemoteTimer
	}

	now := r.clock.Now()

	switch t.State {
	case models.Finished:
		return t.Clone(), ErrTimerFinished
	case models.Running:
		remaining := t.RemainingAt(now)
		if remaining == 0 {
			// the next evaluation completes it
			return t.Clone(), ErrTimerFinished
		}

		p := now
		t.PauseStartedAt = &p
		t.RemainingSeconds = remaining
		t.State = models.Paused
	case models.Paused:
		t.AccumulatedPauseMs += now.Sub(*t.PauseStartedAt).Milliseconds()
		t.PauseStartedAt = nil
		t.State = models.Running
	}

	return t.Clone(), nil
}

// Tick re-evaluates a timer against the clock. Only running timers move.
// A timer that reaches zero becomes Finished exactly once.
func (r *Registry) Tick(id string, imminentWithin int) (TickResult, error) {
	t, ok := r.timers[id]
	if !ok {
		return TickResult{}, ErrTimerNotFound
	}

	if t.State != models.Running {
		return TickResult{Timer: t.Clone()}, nil
	}

	remaining := t.RemainingAt(r.clock.Now())

	var res TickResult

	if remaining != t.RemainingSeconds {
		res.Changed = true
		t.RemainingSeconds = remaining
	}

	if remaining == 0 {
		r.finish(t)

		res.Changed = true
		res.Finished = true
	} else if remaining <= imminentWithin && !t.Imminent {
		t.Imminent = true

		res.Changed = true
		res.BecameImminent = true
	}

	res.Timer = t.Clone()

	return res, nil
}

// Finish completes a timer immediately. It reports false if the timer does
// not exist or was already finished.
func (r *Registry) Finish(id string) (models.Timer, bool) {
	t, ok := r.timers[id]
	if !ok || t.State == models.Finished {
		return models.Timer{}, false
	}

	r.finish(t)

	return t.Clone(), true
}

func (r *Registry) finish(t *models.Timer) {
	t.State = models.Finished
	t.RemainingSeconds = 0
	t.Imminent = false
	t.PauseStartedAt = nil
}

// Remove deletes a timer.
func (r *Registry) Remove(id string) (models.Timer, error) {
	t, ok := r.timers[id]
	if !ok {
		return models.Timer{}, ErrTimerNotFound
	}

	delete(r.timers, id)

	return t.Clone(), nil
}

// ClearAll removes every timer and returns the ids that were removed.
func (r *Registry) ClearAll() []string {
	ids := make([]string, 0, len(r.timers))

	for id := range r.timers {
		ids = append(ids, id)
	}

	clear(r.timers)

	return ids
}

// ReplaceRemote swaps the whole set of remote timers for timers. Local
// timers are untouched. A remote timer that this registry already saw
// finish stays finished, and an id seen before keeps its insertion order.
// It returns the ids of remote timers that are running afterwards and the
// ids of remote timers that disappeared.
func (r *Registry) ReplaceRemote(timers []models.Timer) (running, removed []string) {
	previous := make(map[string]*models.Timer)

	for id, t := range r.timers {
		if t.Origin == models.Remote {
			previous[id] = t
			delete(r.timers, id)
		}
	}

	now := r.clock.Now()

	for i := range timers {
		t := timers[i].Clone()
		t.Origin = models.Remote

		if _, ok := r.timers[t.ID]; ok {
			// never let a remote entry shadow a local timer
			continue
		}

		if old, ok := previous[t.ID]; ok {
			t.Seq = old.Seq
			t.Imminent = old.Imminent

			if old.State == models.Finished {
				r.finish(&t)
			}

			delete(previous, t.ID)
			r.timers[t.ID] = &t
		} else {
			r.insert(&t)
		}

		if t.State == models.Running {
			// keep a non-zero value until the first evaluation finishes it
			if rem := t.RemainingAt(now); rem > 0 {
				t.RemainingSeconds = rem
			}

			running = append(running, t.ID)
		}
	}

	for id := range previous {
		removed = append(removed, id)
	}

	slices.Sort(removed)

	return running, removed
}

// ClearRemote removes every remote timer and returns their ids.
func (r *Registry) ClearRemote() []string {
	_, removed := r.ReplaceRemote(nil)
	return removed
}

// Get returns a copy of a timer.
func (r *Registry) Get(id string) (models.Timer, bool) {
	t, ok := r.timers[id]
	if !ok {
		return models.Timer{}, false
	}

	return t.Clone(), true
}

// Local returns local timers in insertion order.
func (r *Registry) Local() []models.Timer {
	return r.filter(models.Local)
}

// Remote returns remote timers in insertion order.
func (r *Registry) Remote() []models.Timer {
	return r.filter(models.Remote)
}

// All returns every timer in insertion order.
func (r *Registry) All() []models.Timer {
	return r.filter("")
}

// ListSortedByRemaining returns every timer ordered by ascending remaining
// seconds, ties broken by insertion order.
func (r *Registry) ListSortedByRemaining() []models.Timer {
	all := r.All()

	slices.SortStableFunc(all, func(a, b models.Timer) int {
		return cmp.Or(
			cmp.Compare(a.RemainingSeconds, b.RemainingSeconds),
			cmp.Compare(a.Seq, b.Seq),
		)
	})

	return all
}

// Len returns the number of timers.
func (r *Registry) Len() int {
	return len(r.timers)
}

func (r *Registry) filter(origin models.Origin) []models.Timer {
	out := make([]models.Timer, 0, len(r.timers))

	for _, t := range r.timers {
		if origin == "" || t.Origin == origin {
			out = append(out, t.Clone())
		}
	}

	slices.SortFunc(out, func(a, b models.Timer) int {
		return cmp.Compare(a.Seq, b.Seq)
	})

	return out
}

func (r *Registry) activeLocal(key models.LocationKey) *models.Timer {
	for _, t := range r.timers {
		if t.Origin == models.Local &&
			t.State != models.Finished &&
			t.Location == key {
			return t
		}
	}

	return nil
}

func (r *Registry) insert(t *models.Timer) {
	r.seq++
	t.Seq = r.seq
	r.timers[t.ID] = t
}
