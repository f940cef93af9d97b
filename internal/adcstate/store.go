package adcstate

import (
	"os"

	"github.com/charmbracelet/log"
)

// tryMutex is a non-blocking mutex: TryLock reports false immediately on
// contention instead of waiting. Grounded on state.c's
// "osMutexWait(..., 0)" best-effort save — a concurrent writer is skipped
// rather than queued, since the next update will persist anyway.
type tryMutex chan struct{}

func newTryMutex() tryMutex {
	m := make(tryMutex, 1)
	m <- struct{}{}
	return m
}

func (m tryMutex) TryLock() bool {
	select {
	case <-m:
		return true
	default:
		return false
	}
}

func (m tryMutex) Unlock() { m <- struct{}{} }

// Store persists CompleteState to a file path standing in for the
// original firmware's "0:/state" SD path, and reloads it on boot,
// applying the §7 validation rules before trusting the result.
type Store struct {
	path   string
	lock   tryMutex
	logger *log.Logger
}

// NewStore returns a Store backed by path.
func NewStore(path string, logger *log.Logger) *Store {
	return &Store{path: path, lock: newTryMutex(), logger: logger}
}

// Save writes cs to disk, best-effort: if a save is already in progress
// it returns immediately without blocking, matching spec §5's "writers
// that can't acquire immediately return silently" contract.
func (s *Store) Save(cs CompleteState) {
	if !s.lock.TryLock() {
		s.logger.Debug("state save skipped, writer busy")
		return
	}
	defer s.lock.Unlock()

	buf, _ := cs.MarshalBinary()
	if err := os.WriteFile(s.path, buf, 0o644); err != nil {
		s.logger.Warn("state save failed", "path", s.path, "err", err)
	}
}

// Load reads and validates the persisted state. On any error (missing
// file, corrupt bytes, failed validation) it returns a clean default
// state and ok=false — the caller should overwrite the file with that
// default, per spec §4.6's "otherwise it reinitializes defaults and
// overwrites the file."
func (s *Store) Load() (CompleteState, bool) {
	buf, err := os.ReadFile(s.path)
	if err != nil {
		s.logger.Info("no persisted state, using defaults", "path", s.path)
		return Default(), false
	}
	var cs CompleteState
	if err := cs.UnmarshalBinary(buf); err != nil {
		s.logger.Warn("persisted state corrupt, using defaults", "err", err)
		return Default(), false
	}
	if err := Validate(cs, len(buf)); err != nil {
		s.logger.Warn("persisted state failed validation, using defaults", "err", err)
		return Default(), false
	}
	return cs, true
}

// Default returns a clean, valid CompleteState with no measurements and
// the ADC idle, used whenever boot reload fails.
func Default() CompleteState {
	return CompleteState{
		ADC: ADCState{
			Gain:             0,
			SamplerateFilter: 0,
			ReferenceVoltage: CanonicalInternalRefVoltage10nV,
		},
	}
}
