package service

import (
	"context"
	"time"

	"github.com/alanyoungcy/localoracle/internal/domain"
)

// Notifier is the alerting surface the pipelines use; *notify.Notifier
// satisfies it.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Sinks groups the optional backends a cycle reports to. Nil fields are
// replaced with no-ops, so a bare Sinks{} runs the pipelines with logging
// only.
type Sinks struct {
	Decisions domain.DecisionStore
	Audit     domain.AuditStore
	Bus       domain.DecisionBus
	Archive   domain.CycleArchiver
	Locks     domain.LockManager
	Notifier  Notifier
	Tracker   *CycleTracker
}

func (s Sinks) withDefaults() Sinks {
	if s.Decisions == nil {
		s.Decisions = nopStore{}
	}
	if s.Audit == nil {
		s.Audit = nopStore{}
	}
	if s.Bus == nil {
		s.Bus = nopBus{}
	}
	if s.Archive == nil {
		s.Archive = nopArchive{}
	}
	if s.Locks == nil {
		s.Locks = localLocks{}
	}
	if s.Notifier == nil {
		s.Notifier = nopNotifier{}
	}
	if s.Tracker == nil {
		s.Tracker = NewCycleTracker()
	}
	return s
}

type nopStore struct{}

func (nopStore) Insert(context.Context, domain.DecisionRecord) error { return nil }
func (nopStore) ListRecent(context.Context, domain.ListOpts) ([]domain.DecisionRecord, error) {
	return nil, nil
}
func (nopStore) Log(context.Context, string, map[string]any) error { return nil }
func (nopStore) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type nopBus struct{}

func (nopBus) Publish(context.Context, string, []byte) error { return nil }
func (nopBus) Subscribe(ctx context.Context, _ string) (<-chan []byte, error) {
	ch := make(chan []byte)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}
func (nopBus) StreamAppend(context.Context, string, []byte) error { return nil }
func (nopBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type nopArchive struct{}

func (nopArchive) ArchiveCycle(context.Context, domain.CycleReport) error { return nil }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, string, string) error { return nil }

// localLocks always grants the lock. The scheduler already prevents a job
// from overlapping itself within one process.
type localLocks struct{}

func (localLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}
