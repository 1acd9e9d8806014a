package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"crm/internal/amqp"
	"crm/internal/core"
	"crm/internal/metrics"
	"crm/internal/ports"
)

const (
	opUpsert = "upsert"
	opDelete = "delete"
)

// CalendarSync mirrors appointments into an external calendar. It reacts to
// appointment events and periodically reconciles appointments that have no
// mirrored event yet, which covers events lost while the broker was down.
type CalendarSync struct {
	store     ports.Store
	mirror    ports.CalendarMirror
	batchSize int
	locks     idLocks
}

func NewCalendarSync(store ports.Store, mirror ports.CalendarMirror, batchSize int) *CalendarSync {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &CalendarSync{
		store:     store,
		mirror:    mirror,
		batchSize: batchSize,
		locks:     idLocks{held: make(map[int64]*idLock)},
	}
}

// HandleEvent applies one appointment event. A returned error requeues the
// message.
func (w *CalendarSync) HandleEvent(ctx context.Context, msg *amqp.AppointmentEvent) error {
	slog.InfoContext(ctx, "Processing appointment event", "id", msg.ID, "action", msg.Action)

	if msg.Action == amqp.ActionDeleted {
		unlock := w.locks.lock(msg.ID)
		defer unlock()
		return w.deleteEvent(ctx, msg.ID, msg.ExternalID)
	}
	_, err := w.syncByID(ctx, msg.ID, false)
	return err
}

// ReconcileUnsynced mirrors up to one batch of appointments that have no
// external event id.
func (w *CalendarSync) ReconcileUnsynced(ctx context.Context) (synced int, err error) {
	pending, err := w.store.ListAppointments(ctx, ports.AppointmentFilter{UnsyncedOnly: true, Limit: w.batchSize})
	if err != nil {
		return 0, fmt.Errorf("list unsynced appointments: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Reconciling unsynced appointments", "count", len(pending))
	failed := 0
	for _, a := range pending {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		done, err := w.syncByID(ctx, a.ID, true)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to sync appointment", "id", a.ID, "error", err)
			failed++
			continue
		}
		if done {
			synced++
		}
	}
	slog.InfoContext(ctx, "Reconciliation completed",
		"total", len(pending),
		"synced", synced,
		"errors", failed)
	return synced, nil
}

// Run reconciles immediately and then on every tick until ctx is done.
func (w *CalendarSync) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.ReconcileUnsynced(ctx); err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "Reconciliation failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// syncByID mirrors one appointment while holding its lock. The appointment
// is re-read under the lock, so a sync that lost a race sees the event id
// recorded by the winner. With unsyncedOnly set, an appointment that already
// has an event is left alone. It reports whether the mirror was written.
func (w *CalendarSync) syncByID(ctx context.Context, id int64, unsyncedOnly bool) (bool, error) {
	unlock := w.locks.lock(id)
	defer unlock()

	a, err := w.store.GetAppointment(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted before we got here; the delete event handles the mirror.
		slog.InfoContext(ctx, "Appointment no longer exists, skipping", "id", id)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get appointment from storage: %w", err)
	}
	if unsyncedOnly && a.ExternalID != "" {
		slog.DebugContext(ctx, "Appointment already mirrored, skipping", "id", id, "external_id", a.ExternalID)
		return false, nil
	}
	return true, w.syncAppointment(ctx, a)
}

func (w *CalendarSync) syncAppointment(ctx context.Context, a core.Appointment) (err error) {
	defer func() { metrics.CalendarSyncs.WithLabelValues(opUpsert, metrics.Outcome(err)).Inc() }()

	details, err := w.details(ctx, a)
	if err != nil {
		return err
	}
	externalID, err := w.mirror.UpsertEvent(ctx, a, details)
	if err != nil {
		return fmt.Errorf("mirror appointment %d: %w", a.ID, err)
	}
	if externalID != a.ExternalID {
		if err := w.store.SetExternalID(ctx, a.ID, externalID); err != nil {
			if errors.Is(err, core.ErrNotFound) && a.ExternalID == "" {
				// Deleted while the event was being created.
				return w.deleteEvent(ctx, a.ID, externalID)
			}
			return fmt.Errorf("record external id: %w", err)
		}
	}
	slog.InfoContext(ctx, "Successfully synced appointment", "id", a.ID, "external_id", externalID)
	return nil
}

func (w *CalendarSync) deleteEvent(ctx context.Context, id int64, externalID string) (err error) {
	if externalID == "" {
		slog.DebugContext(ctx, "Deleted appointment was never mirrored", "id", id)
		return nil
	}
	defer func() { metrics.CalendarSyncs.WithLabelValues(opDelete, metrics.Outcome(err)).Inc() }()

	if err := w.mirror.DeleteEvent(ctx, externalID); err != nil {
		return fmt.Errorf("delete mirrored event: %w", err)
	}
	slog.InfoContext(ctx, "Successfully deleted mirrored event", "id", id, "external_id", externalID)
	return nil
}

func (w *CalendarSync) details(ctx context.Context, a core.Appointment) (ports.EventDetails, error) {
	p, err := w.store.GetProject(ctx, a.ProjectID)
	if err != nil {
		return ports.EventDetails{}, fmt.Errorf("project of appointment %d: %w", a.ID, err)
	}
	c, err := w.store.GetCustomer(ctx, p.CustomerID)
	if err != nil {
		return ports.EventDetails{}, fmt.Errorf("customer of appointment %d: %w", a.ID, err)
	}
	return ports.EventDetails{ProjectName: p.Name, CustomerName: c.Name, Address: c.Address}, nil
}

// idLocks hands out one mutex per appointment id. Entries are dropped once
// no goroutine holds or waits for them.
type idLocks struct {
	mu   sync.Mutex
	held map[int64]*idLock
}

type idLock struct {
	sync.Mutex
	refs int
}

func (l *idLocks) lock(id int64) (unlock func()) {
	l.mu.Lock()
	m, ok := l.held[id]
	if !ok {
		m = &idLock{}
		l.held[id] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.held, id)
		}
		l.mu.Unlock()
	}
}
