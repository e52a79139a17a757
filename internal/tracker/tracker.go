// Package tracker maintains the lifecycle status of every in-flight
// wallet operation.
package tracker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/the-ledger-must-settle/internal/common"
	"github.com/Veraticus/the-ledger-must-settle/internal/model"
)

// DefaultDisplayWindow is how long a terminal status stays visible before
// its slot is cleared back to idle.
const DefaultDisplayWindow = 3 * time.Second

// Tracker is the single shared holder of operation state. Donation and
// swap each reuse one slot; opt-ins get one slot per asset id, so
// concurrent opt-ins for different assets never interfere. All updates
// are per-key merges under one mutex: a completion for one key can never
// clobber a concurrent update to another.
type Tracker struct {
	ops           map[model.OperationKey]*slot
	logger        *slog.Logger
	subs          []chan struct{}
	displayWindow time.Duration
	mu            sync.Mutex
	closed        bool
}

// slot pairs a record with the timer that clears it after the display
// window. generation guards a stale timer against a superseding Begin.
type slot struct {
	resetTimer *time.Timer
	record     model.OperationRecord
	generation uint64
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithDisplayWindow overrides how long terminal statuses stay visible.
func WithDisplayWindow(d time.Duration) Option {
	return func(t *Tracker) {
		t.displayWindow = d
	}
}

// New creates an empty tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		ops:           make(map[model.OperationKey]*slot),
		displayWindow: DefaultDisplayWindow,
		logger:        slog.Default().With("component", "tracker"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Begin claims the slot for a new operation, moving it to creating. It
// fails with ErrAlreadyInFlight while the key holds a non-terminal
// record. A terminal record still inside its display window is superseded
// immediately and its pending reset canceled.
func (t *Tracker) Begin(key model.OperationKey, kind model.OperationKind, assetID uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.ops[key]; ok {
		if !existing.record.Status.Terminal() {
			return fmt.Errorf("%w: %s", common.ErrAlreadyInFlight, key)
		}
		if existing.resetTimer != nil {
			existing.resetTimer.Stop()
		}
	}

	now := time.Now()
	var generation uint64
	if existing, ok := t.ops[key]; ok {
		generation = existing.generation + 1
	}

	t.ops[key] = &slot{
		record: model.OperationRecord{
			Key:       key,
			Kind:      kind,
			AssetID:   assetID,
			Status:    model.StatusCreating,
			StartedAt: now,
			UpdatedAt: now,
		},
		generation: generation,
	}

	t.notifyLocked()
	return nil
}

// Advance moves the key to a later non-terminal status. Transitions are
// monotonic: moving backwards (or to an unknown status) is an error.
func (t *Tracker) Advance(key model.OperationKey, status model.OperationStatus) error {
	if status.Terminal() || status.Step() < 0 {
		return fmt.Errorf("cannot advance %s to %s", key, status)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.ops[key]
	if !ok {
		return fmt.Errorf("no operation in flight for %s", key)
	}
	if status.Step() <= s.record.Status.Step() {
		return fmt.Errorf("cannot move %s backwards from %s to %s", key, s.record.Status, status)
	}

	s.record.Status = status
	s.record.UpdatedAt = time.Now()
	t.notifyLocked()
	return nil
}

// SetTxID records the transaction id obtained at submission so it stays
// retrievable even if confirmation is never observed.
func (t *Tracker) SetTxID(key model.OperationKey, txID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.ops[key]; ok {
		s.record.TxID = txID
		s.record.UpdatedAt = time.Now()
		t.notifyLocked()
	}
}

// Confirm marks the operation confirmed and schedules the display-window
// reset.
func (t *Tracker) Confirm(key model.OperationKey) {
	t.finish(key, model.StatusConfirmed, "")
}

// Fail marks the operation failed with a human-readable message and
// schedules the display-window reset.
func (t *Tracker) Fail(key model.OperationKey, err error) {
	msg := "operation failed"
	if err != nil {
		msg = err.Error()
	}
	t.finish(key, model.StatusFailed, msg)
}

func (t *Tracker) finish(key model.OperationKey, status model.OperationStatus, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.ops[key]
	if !ok || s.record.Status.Terminal() {
		return
	}

	s.record.Status = status
	s.record.Err = msg
	s.record.UpdatedAt = time.Now()

	generation := s.generation
	s.resetTimer = time.AfterFunc(t.displayWindow, func() {
		t.clearAfterWindow(key, generation)
	})

	t.notifyLocked()
}

// clearAfterWindow removes a terminal record once its display window has
// elapsed, unless a newer operation superseded the slot in the meantime.
func (t *Tracker) clearAfterWindow(key model.OperationKey, generation uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.ops[key]
	if !ok || s.generation != generation || !s.record.Status.Terminal() {
		return
	}

	delete(t.ops, key)
	t.notifyLocked()
}

// Get returns the record for a key, if one exists.
func (t *Tracker) Get(key model.OperationKey) (model.OperationRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.ops[key]
	if !ok {
		return model.OperationRecord{}, false
	}
	return s.record, true
}

// Status returns the key's status, or idle when no record exists.
func (t *Tracker) Status(key model.OperationKey) model.OperationStatus {
	record, ok := t.Get(key)
	if !ok {
		return model.StatusIdle
	}
	return record.Status
}

// Snapshot returns a copy of every tracked record.
func (t *Tracker) Snapshot() map[model.OperationKey]model.OperationRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := make(map[model.OperationKey]model.OperationRecord, len(t.ops))
	for key, s := range t.ops {
		snapshot[key] = s.record
	}
	return snapshot
}

// OptIns returns the per-asset status map for opt-in operations.
func (t *Tracker) OptIns() map[uint64]model.OperationStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	statuses := make(map[uint64]model.OperationStatus)
	for _, s := range t.ops {
		if s.record.Kind == model.OpOptIn {
			statuses[s.record.AssetID] = s.record.Status
		}
	}
	return statuses
}

// ResetAll drops every tracked operation, canceling pending resets. Used
// on wallet disconnect and network switch.
func (t *Tracker) ResetAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, s := range t.ops {
		if s.resetTimer != nil {
			s.resetTimer.Stop()
		}
	}
	t.ops = make(map[model.OperationKey]*slot)
	t.notifyLocked()
}

// Subscribe returns a channel that receives a value after every state
// change. Notifications are coalesced; slow consumers never block the
// tracker.
func (t *Tracker) Subscribe() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan struct{}, 1)
	t.subs = append(t.subs, ch)
	return ch
}

// Close stops all timers and closes subscriber channels.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true

	for _, s := range t.ops {
		if s.resetTimer != nil {
			s.resetTimer.Stop()
		}
	}
	for _, ch := range t.subs {
		close(ch)
	}
	t.subs = nil
}

func (t *Tracker) notifyLocked() {
	if t.closed {
		return
	}
	for _, ch := range t.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
