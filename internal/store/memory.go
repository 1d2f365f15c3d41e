package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"routeplan/internal/model"
)

// Memory is a mutex-guarded map store.
type Memory struct {
	mu       sync.RWMutex
	orders   map[string]model.Order
	vehicles map[string]model.Vehicle
	drivers  map[string]model.Driver
	zones    map[string]model.Zone
	configs  map[string]model.Configuration
	jobs     map[string]model.Job
	subs     map[string]model.Subscription
}

func NewMemory() *Memory {
	return &Memory{
		orders:   map[string]model.Order{},
		vehicles: map[string]model.Vehicle{},
		drivers:  map[string]model.Driver{},
		zones:    map[string]model.Zone{},
		configs:  map[string]model.Configuration{},
		jobs:     map[string]model.Job{},
		subs:     map[string]model.Subscription{},
	}
}

func (m *Memory) CreateOrder(ctx context.Context, o model.Order) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = "pending"
	}
	m.orders[o.ID] = o
	return o, nil
}

func (m *Memory) ListPendingOrders(ctx context.Context, tenantID string) ([]model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Order
	for _, o := range m.orders {
		if o.TenantID == tenantID && o.Status == "pending" {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *Memory) MarkOrdersAssigned(ctx context.Context, tenantID string, orderIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range orderIDs {
		o, ok := m.orders[id]
		if ok && o.TenantID == tenantID {
			o.Status = "assigned"
			m.orders[id] = o
		}
	}
	return nil
}

func (m *Memory) CreateVehicle(ctx context.Context, v model.Vehicle) (model.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	m.vehicles[v.ID] = v
	return v, nil
}

func (m *Memory) ListVehicles(ctx context.Context, tenantID string, ids []string) ([]model.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := idSet(ids)
	var out []model.Vehicle
	for _, v := range m.vehicles {
		if v.TenantID != tenantID {
			continue
		}
		if want != nil && !want[v.ID] {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (m *Memory) CreateDriver(ctx context.Context, d model.Driver) (model.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = "AVAILABLE"
	}
	m.drivers[d.ID] = d
	return d, nil
}

func (m *Memory) ListDrivers(ctx context.Context, tenantID string, ids []string) ([]model.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := idSet(ids)
	var out []model.Driver
	for _, d := range m.drivers {
		if d.TenantID != tenantID {
			continue
		}
		if want != nil && !want[d.ID] {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *Memory) CreateZone(ctx context.Context, z model.Zone) (model.Zone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if z.ID == "" {
		z.ID = uuid.NewString()
	}
	m.zones[z.ID] = z
	return z, nil
}

func (m *Memory) ListZones(ctx context.Context, tenantID string) ([]model.Zone, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Zone
	for _, z := range m.zones {
		if z.TenantID == tenantID {
			out = append(out, z)
		}
	}
	return out, nil
}

func (m *Memory) CreateConfiguration(ctx context.Context, c model.Configuration) (model.Configuration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	m.configs[c.ID] = c
	return c, nil
}

func (m *Memory) GetConfiguration(ctx context.Context, tenantID, id string) (model.Configuration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.configs[id]
	if !ok || c.TenantID != tenantID {
		return model.Configuration{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) CreateJob(ctx context.Context, j model.Job) (model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	m.jobs[j.ID] = j
	return j, nil
}

func (m *Memory) GetJob(ctx context.Context, tenantID, id string) (model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok || j.TenantID != tenantID {
		return model.Job{}, ErrNotFound
	}
	return j, nil
}

func (m *Memory) UpdateJob(ctx context.Context, j model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[j.ID]; !ok {
		return ErrNotFound
	}
	m.jobs[j.ID] = j
	return nil
}

func (m *Memory) FindJobByFingerprint(ctx context.Context, tenantID, fingerprint string) (model.Job, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best model.Job
	found := false
	for _, j := range m.jobs {
		if j.TenantID != tenantID || j.Fingerprint != fingerprint {
			continue
		}
		if j.Status == model.JobFailed || j.Status == model.JobCancelled {
			continue
		}
		if !found || j.CreatedAt.After(best.CreatedAt) {
			best = j
			found = true
		}
	}
	return best, found, nil
}

func (m *Memory) CreateSubscription(ctx context.Context, s model.Subscription) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	m.subs[s.ID] = s
	return s, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, event string) ([]model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Subscription
	for _, s := range m.subs {
		if s.TenantID != tenantID {
			continue
		}
		if event != "" && !contains(s.Events, event) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok || s.TenantID != tenantID {
		return ErrNotFound
	}
	delete(m.subs, id)
	return nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func idSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	s := make(map[string]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
