// Package store persists fleet entities, optimization jobs and webhook
// subscriptions. The memory implementation backs tests and single-node runs;
// Postgres backs everything else.
package store

import (
	"context"
	"errors"

	"routeplan/internal/model"
)

var ErrNotFound = errors.New("not found")

// Store is the persistence surface. All reads are tenant-scoped.
type Store interface {
	CreateOrder(ctx context.Context, o model.Order) (model.Order, error)
	ListPendingOrders(ctx context.Context, tenantID string) ([]model.Order, error)
	MarkOrdersAssigned(ctx context.Context, tenantID string, orderIDs []string) error

	CreateVehicle(ctx context.Context, v model.Vehicle) (model.Vehicle, error)
	ListVehicles(ctx context.Context, tenantID string, ids []string) ([]model.Vehicle, error)

	CreateDriver(ctx context.Context, d model.Driver) (model.Driver, error)
	ListDrivers(ctx context.Context, tenantID string, ids []string) ([]model.Driver, error)

	CreateZone(ctx context.Context, z model.Zone) (model.Zone, error)
	ListZones(ctx context.Context, tenantID string) ([]model.Zone, error)

	CreateConfiguration(ctx context.Context, c model.Configuration) (model.Configuration, error)
	GetConfiguration(ctx context.Context, tenantID, id string) (model.Configuration, error)

	CreateJob(ctx context.Context, j model.Job) (model.Job, error)
	GetJob(ctx context.Context, tenantID, id string) (model.Job, error)
	UpdateJob(ctx context.Context, j model.Job) error
	// FindJobByFingerprint returns the most recent non-failed job with this
	// input fingerprint, if any.
	FindJobByFingerprint(ctx context.Context, tenantID, fingerprint string) (model.Job, bool, error)

	CreateSubscription(ctx context.Context, s model.Subscription) (model.Subscription, error)
	ListSubscriptions(ctx context.Context, tenantID, event string) ([]model.Subscription, error)
	DeleteSubscription(ctx context.Context, tenantID, id string) error

	Ping(ctx context.Context) error
}
