// Package memory is the in-process implementation of storage.UnitOfWork.
//
// A single RWMutex guards every table. RunInTx holds the write lock for the
// whole callback and restores a snapshot of the maps if the callback fails, so
// multi-entity writes are atomic and serialized. Store calls made with the
// transaction context skip their own locking.
package memory

import (
	"context"
	"maps"
	"sync"

	"donorlink/internal/admission"
	donationModels "donorlink/internal/donation/models"
	donorModels "donorlink/internal/donor/models"
	notificationModels "donorlink/internal/notification/models"
	requestModels "donorlink/internal/request/models"
	"donorlink/internal/storage"
	dErrors "donorlink/pkg/domain-errors"
)

type tables struct {
	donors        map[string]donorModels.Donor
	phones        map[string]string
	throttles     map[string]admission.ThrottleState
	requests      map[string]requestModels.BloodRequest
	notifications map[string]notificationModels.Notification
	pairs         map[string]string
	donations     map[string][]donationModels.Donation
	subscriptions map[string]notificationModels.PushSubscription
}

func (t tables) clone() tables {
	return tables{
		donors:        maps.Clone(t.donors),
		phones:        maps.Clone(t.phones),
		throttles:     maps.Clone(t.throttles),
		requests:      maps.Clone(t.requests),
		notifications: maps.Clone(t.notifications),
		pairs:         maps.Clone(t.pairs),
		donations:     maps.Clone(t.donations),
		subscriptions: maps.Clone(t.subscriptions),
	}
}

// DB holds all in-memory tables.
type DB struct {
	mu sync.RWMutex
	t  tables
}

type txKey struct{}

// New returns an empty database.
func New() *DB {
	return &DB{t: tables{
		donors:        make(map[string]donorModels.Donor),
		phones:        make(map[string]string),
		throttles:     make(map[string]admission.ThrottleState),
		requests:      make(map[string]requestModels.BloodRequest),
		notifications: make(map[string]notificationModels.Notification),
		pairs:         make(map[string]string),
		donations:     make(map[string][]donationModels.Donation),
		subscriptions: make(map[string]notificationModels.PushSubscription),
	}}
}

func (db *DB) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*DB)
	return owner == db
}

func (db *DB) rlock(ctx context.Context) func() {
	if db.inTx(ctx) {
		return func() {}
	}
	db.mu.RLock()
	return db.mu.RUnlock
}

func (db *DB) lock(ctx context.Context) func() {
	if db.inTx(ctx) {
		return func() {}
	}
	db.mu.Lock()
	return db.mu.Unlock
}

// Stores returns repositories that lock per call.
func (db *DB) Stores() storage.Stores {
	return storage.Stores{
		Donors:        &DonorStore{db: db},
		Throttles:     &ThrottleStore{db: db},
		Requests:      &RequestStore{db: db},
		Notifications: &NotificationStore{db: db},
		Donations:     &DonationStore{db: db},
		Subscriptions: &SubscriptionStore{db: db},
	}
}

// RunInTx serializes fn against every other writer and rolls back on error
// or panic.
func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, s storage.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if db.inTx(ctx) {
		return fn(ctx, db.Stores())
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	snapshot := db.t.clone()
	committed := false
	defer func() {
		if !committed {
			db.t = snapshot
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, db), db.Stores()); err != nil {
		return err
	}
	committed = true
	return nil
}
