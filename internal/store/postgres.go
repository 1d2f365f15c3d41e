package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"routeplan/internal/model"
)

// Postgres stores entities in relational tables with JSONB for nested
// structures (polygons, zone assignments, job results).
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) CreateOrder(ctx context.Context, o model.Order) (model.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = "pending"
	}
	_, err := p.db.ExecContext(ctx, `INSERT INTO orders (id, tenant_id, tracking_id, address, lat, lng, weight, volume, value, units, priority, time_window, service_sec, skills, zone_id, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		o.ID, o.TenantID, o.TrackingID, o.Address, o.Location.Lat, o.Location.Lng,
		o.Weight, o.Volume, o.Value, o.Units, o.Priority, toJSON(o.TimeWindow), o.ServiceSec, toJSON(o.Skills), nullIfEmpty(o.ZoneID), o.Status)
	return o, err
}

func (p *Postgres) ListPendingOrders(ctx context.Context, tenantID string) ([]model.Order, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, tracking_id, COALESCE(address,''), lat, lng, weight, volume, value, units, priority, time_window, service_sec, skills, COALESCE(zone_id,''), status
		FROM orders WHERE tenant_id=$1 AND status='pending' ORDER BY id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Order
	for rows.Next() {
		o := model.Order{TenantID: tenantID}
		var tw, skills []byte
		if err := rows.Scan(&o.ID, &o.TrackingID, &o.Address, &o.Location.Lat, &o.Location.Lng,
			&o.Weight, &o.Volume, &o.Value, &o.Units, &o.Priority, &tw, &o.ServiceSec, &skills, &o.ZoneID, &o.Status); err != nil {
			return nil, err
		}
		fromJSON(tw, &o.TimeWindow)
		fromJSON(skills, &o.Skills)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkOrdersAssigned(ctx context.Context, tenantID string, orderIDs []string) error {
	if len(orderIDs) == 0 {
		return nil
	}
	_, err := p.db.ExecContext(ctx, `UPDATE orders SET status='assigned' WHERE tenant_id=$1 AND id = ANY($2)`, tenantID, orderIDs)
	return err
}

func (p *Postgres) CreateVehicle(ctx context.Context, v model.Vehicle) (model.Vehicle, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	_, err := p.db.ExecContext(ctx, `INSERT INTO vehicles (id, tenant_id, plate, max_weight, max_volume, max_value, max_units, max_stops, origin, skills, speed_factor, fleet_id, zones)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		v.ID, v.TenantID, v.Plate, v.MaxWeight, v.MaxVolume, v.MaxValue, v.MaxUnits, v.MaxStops,
		toJSON(v.Origin), toJSON(v.Skills), v.SpeedFactor, nullIfEmpty(v.FleetID), toJSON(v.Zones))
	return v, err
}

func (p *Postgres) ListVehicles(ctx context.Context, tenantID string, ids []string) ([]model.Vehicle, error) {
	q := `SELECT id, plate, max_weight, max_volume, max_value, max_units, max_stops, origin, skills, speed_factor, COALESCE(fleet_id,''), zones
		FROM vehicles WHERE tenant_id=$1`
	args := []any{tenantID}
	if len(ids) > 0 {
		q += ` AND id = ANY($2)`
		args = append(args, ids)
	}
	rows, err := p.db.QueryContext(ctx, q+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Vehicle
	for rows.Next() {
		v := model.Vehicle{TenantID: tenantID}
		var origin, skills, zones []byte
		if err := rows.Scan(&v.ID, &v.Plate, &v.MaxWeight, &v.MaxVolume, &v.MaxValue, &v.MaxUnits, &v.MaxStops,
			&origin, &skills, &v.SpeedFactor, &v.FleetID, &zones); err != nil {
			return nil, err
		}
		fromJSON(origin, &v.Origin)
		fromJSON(skills, &v.Skills)
		fromJSON(zones, &v.Zones)
		out = append(out, v)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateDriver(ctx context.Context, d model.Driver) (model.Driver, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = "AVAILABLE"
	}
	_, err := p.db.ExecContext(ctx, `INSERT INTO drivers (id, tenant_id, name, skills, license_expires, fleet_id, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		d.ID, d.TenantID, d.Name, toJSON(d.Skills), nullIfEmpty(d.LicenseExpires), nullIfEmpty(d.FleetID), d.Status)
	return d, err
}

func (p *Postgres) ListDrivers(ctx context.Context, tenantID string, ids []string) ([]model.Driver, error) {
	q := `SELECT id, name, skills, COALESCE(license_expires,''), COALESCE(fleet_id,''), status FROM drivers WHERE tenant_id=$1`
	args := []any{tenantID}
	if len(ids) > 0 {
		q += ` AND id = ANY($2)`
		args = append(args, ids)
	}
	rows, err := p.db.QueryContext(ctx, q+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Driver
	for rows.Next() {
		d := model.Driver{TenantID: tenantID}
		var skills []byte
		if err := rows.Scan(&d.ID, &d.Name, &skills, &d.LicenseExpires, &d.FleetID, &d.Status); err != nil {
			return nil, err
		}
		fromJSON(skills, &d.Skills)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateZone(ctx context.Context, z model.Zone) (model.Zone, error) {
	if z.ID == "" {
		z.ID = uuid.NewString()
	}
	_, err := p.db.ExecContext(ctx, `INSERT INTO zones (id, tenant_id, name, polygon, active) VALUES ($1,$2,$3,$4,$5)`,
		z.ID, z.TenantID, z.Name, toJSON(z.Polygon), z.Active)
	return z, err
}

func (p *Postgres) ListZones(ctx context.Context, tenantID string) ([]model.Zone, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, name, polygon, active FROM zones WHERE tenant_id=$1 ORDER BY id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Zone
	for rows.Next() {
		z := model.Zone{TenantID: tenantID}
		var poly []byte
		if err := rows.Scan(&z.ID, &z.Name, &poly, &z.Active); err != nil {
			return nil, err
		}
		fromJSON(poly, &z.Polygon)
		out = append(out, z)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateConfiguration(ctx context.Context, c model.Configuration) (model.Configuration, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := p.db.ExecContext(ctx, `INSERT INTO configurations (id, tenant_id, body) VALUES ($1,$2,$3)`,
		c.ID, c.TenantID, toJSON(c))
	return c, err
}

func (p *Postgres) GetConfiguration(ctx context.Context, tenantID, id string) (model.Configuration, error) {
	var body []byte
	err := p.db.QueryRowContext(ctx, `SELECT body FROM configurations WHERE tenant_id=$1 AND id=$2`, tenantID, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Configuration{}, ErrNotFound
	}
	if err != nil {
		return model.Configuration{}, err
	}
	var c model.Configuration
	fromJSON(body, &c)
	c.ID, c.TenantID = id, tenantID
	return c, nil
}

func (p *Postgres) CreateJob(ctx context.Context, j model.Job) (model.Job, error) {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	_, err := p.db.ExecContext(ctx, `INSERT INTO jobs (id, tenant_id, configuration_id, status, progress, fingerprint, timeout_sec, result, error, created_at, started_at, completed_at, cancelled_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		j.ID, j.TenantID, j.ConfigurationID, j.Status, j.Progress, nullIfEmpty(j.Fingerprint), j.TimeoutSec,
		toJSON(j.Result), nullIfEmpty(j.Error), j.CreatedAt, j.StartedAt, j.CompletedAt, j.CancelledAt)
	return j, err
}

func (p *Postgres) GetJob(ctx context.Context, tenantID, id string) (model.Job, error) {
	j := model.Job{ID: id, TenantID: tenantID}
	var result []byte
	err := p.db.QueryRowContext(ctx, `SELECT configuration_id, status, progress, COALESCE(fingerprint,''), timeout_sec, result, COALESCE(error,''), created_at, started_at, completed_at, cancelled_at
		FROM jobs WHERE tenant_id=$1 AND id=$2`, tenantID, id).
		Scan(&j.ConfigurationID, &j.Status, &j.Progress, &j.Fingerprint, &j.TimeoutSec, &result, &j.Error,
			&j.CreatedAt, &j.StartedAt, &j.CompletedAt, &j.CancelledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Job{}, ErrNotFound
	}
	if err != nil {
		return model.Job{}, err
	}
	fromJSON(result, &j.Result)
	return j, nil
}

func (p *Postgres) UpdateJob(ctx context.Context, j model.Job) error {
	res, err := p.db.ExecContext(ctx, `UPDATE jobs SET status=$3, progress=$4, result=$5, error=$6, started_at=$7, completed_at=$8, cancelled_at=$9
		WHERE tenant_id=$1 AND id=$2`,
		j.TenantID, j.ID, j.Status, j.Progress, toJSON(j.Result), nullIfEmpty(j.Error), j.StartedAt, j.CompletedAt, j.CancelledAt)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) FindJobByFingerprint(ctx context.Context, tenantID, fingerprint string) (model.Job, bool, error) {
	var id string
	err := p.db.QueryRowContext(ctx, `SELECT id FROM jobs WHERE tenant_id=$1 AND fingerprint=$2 AND status NOT IN ('FAILED','CANCELLED')
		ORDER BY created_at DESC LIMIT 1`, tenantID, fingerprint).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Job{}, false, nil
	}
	if err != nil {
		return model.Job{}, false, err
	}
	j, err := p.GetJob(ctx, tenantID, id)
	return j, err == nil, err
}

func (p *Postgres) CreateSubscription(ctx context.Context, s model.Subscription) (model.Subscription, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`,
		s.ID, s.TenantID, s.URL, toJSON(s.Events), s.Secret)
	return s, err
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, event string) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, url, events, secret FROM subscriptions WHERE tenant_id=$1 ORDER BY id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Subscription
	for rows.Next() {
		s := model.Subscription{TenantID: tenantID}
		var events []byte
		if err := rows.Scan(&s.ID, &s.URL, &events, &s.Secret); err != nil {
			return nil, err
		}
		fromJSON(events, &s.Events)
		if event != "" && !contains(s.Events, event) {
			continue
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func toJSON(v any) []byte {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

func fromJSON(b []byte, v any) {
	if len(b) == 0 {
		return
	}
	_ = json.Unmarshal(b, v)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
