package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"crm/internal/core"
	"crm/internal/ports"

	_ "modernc.org/sqlite"
)

var _ ports.Store = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; serialising through one connection
	// avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

// WithClock replaces the clock used for CreatedAt/UpdatedAt stamps.
func (r *SQLiteRepository) WithClock(now func() time.Time) *SQLiteRepository {
	r.now = now
	return r
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

func nullMoney(m *core.Money) sql.NullInt64 {
	if m == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: m.Cents, Valid: true}
}

func moneyPtr(n sql.NullInt64) *core.Money {
	if !n.Valid {
		return nil
	}
	return &core.Money{Cents: n.Int64}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullID(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

// stamp returns created (or now, when created is zero) and now.
func (r *SQLiteRepository) stamp(created time.Time) (time.Time, time.Time) {
	now := r.now()
	if created.IsZero() {
		created = now
	}
	return created, now
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	return err
}

func (r *SQLiteRepository) exists(ctx context.Context, q queryer, table string, id int64) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE id = ?", id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check %s %d: %w", table, id, err)
	}
	return n > 0, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// --- customers ---

const customerColumns = "id, name, email, phone, address, type, created_at, updated_at"

func scanCustomer(s scanner) (core.Customer, error) {
	var (
		c                  core.Customer
		typ                string
		created, updatedAt int64
	)
	if err := s.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &typ, &created, &updatedAt); err != nil {
		return core.Customer{}, err
	}
	c.Type = core.CustomerType(typ)
	c.CreatedAt = fromMillis(created)
	c.UpdatedAt = fromMillis(updatedAt)
	return c, nil
}

// ListCustomers implements ports.CustomerStore
func (r *SQLiteRepository) ListCustomers(ctx context.Context, f ports.CustomerFilter) ([]core.Customer, int, error) {
	var (
		where []string
		args  []any
	)
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		where = append(where, "(lower(name) LIKE ? OR lower(email) LIKE ? OR lower(phone) LIKE ?)")
		args = append(args, like, like, like)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM customers"+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count customers: %w", err)
	}

	dir := "DESC"
	if f.Asc {
		dir = "ASC"
	}
	order := fmt.Sprintf(" ORDER BY updated_at %s, id %s", dir, dir)
	if f.SortBy == "name" {
		order = fmt.Sprintf(" ORDER BY name %s, id %s", dir, dir)
	}

	q := "SELECT " + customerColumns + " FROM customers" + clause + order + limitClause(f.Offset, f.Limit)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	out := []core.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func limitClause(offset, limit int) string {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		if offset == 0 {
			return ""
		}
		return fmt.Sprintf(" LIMIT -1 OFFSET %d", offset)
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
}

func (r *SQLiteRepository) GetCustomer(ctx context.Context, id int64) (core.Customer, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+customerColumns+" FROM customers WHERE id = ?", id)
	c, err := scanCustomer(row)
	if err != nil {
		return core.Customer{}, fmt.Errorf("get customer %d: %w", id, notFound(err))
	}
	return c, nil
}

func (r *SQLiteRepository) CreateCustomer(ctx context.Context, c core.Customer) (core.Customer, error) {
	c.CreatedAt, c.UpdatedAt = r.stamp(c.CreatedAt)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO customers (name, email, phone, address, type, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Email, c.Phone, c.Address, string(c.Type), millis(c.CreatedAt), millis(c.UpdatedAt))
	if err != nil {
		return core.Customer{}, fmt.Errorf("create customer: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return core.Customer{}, fmt.Errorf("customer id: %w", err)
	}
	slog.DebugContext(ctx, "Customer saved to SQLite", "id", c.ID)
	return c, nil
}

func (r *SQLiteRepository) UpdateCustomer(ctx context.Context, c core.Customer) (core.Customer, error) {
	c.UpdatedAt = r.now()
	res, err := r.db.ExecContext(ctx,
		`UPDATE customers SET name = ?, email = ?, phone = ?, address = ?, type = ?, updated_at = ?
		 WHERE id = ?`,
		c.Name, c.Email, c.Phone, c.Address, string(c.Type), millis(c.UpdatedAt), c.ID)
	if err != nil {
		return core.Customer{}, fmt.Errorf("update customer %d: %w", c.ID, err)
	}
	if err := checkAffected(res); err != nil {
		return core.Customer{}, fmt.Errorf("update customer %d: %w", c.ID, err)
	}
	return r.GetCustomer(ctx, c.ID)
}

// DeleteCustomer refuses to delete a customer that still owns projects or leads.
func (r *SQLiteRepository) DeleteCustomer(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var related int
	err = tx.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM projects WHERE customer_id = ?) +
		        (SELECT COUNT(*) FROM leads WHERE customer_id = ?)`, id, id).Scan(&related)
	if err != nil {
		return fmt.Errorf("count customer relations: %w", err)
	}

	ok, err := r.exists(ctx, tx, "customers", id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("delete customer %d: %w", id, core.ErrNotFound)
	}
	if related > 0 {
		return fmt.Errorf("delete customer %d: %w", id, core.ErrCustomerHasRelations)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM customers WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete customer %d: %w", id, err)
	}
	return tx.Commit()
}

// --- leads ---

const leadColumns = "id, name, email, phone, address, status, source, notes, lead_score, customer_id, created_at, updated_at"

func scanLead(s scanner) (core.Lead, error) {
	var (
		l                  core.Lead
		status             string
		score, customer    sql.NullInt64
		created, updatedAt int64
	)
	if err := s.Scan(&l.ID, &l.Name, &l.Email, &l.Phone, &l.Address, &status, &l.Source, &l.Notes,
		&score, &customer, &created, &updatedAt); err != nil {
		return core.Lead{}, err
	}
	l.Status = core.LeadStatus(status)
	if score.Valid {
		v := int(score.Int64)
		l.LeadScore = &v
	}
	if customer.Valid {
		v := customer.Int64
		l.CustomerID = &v
	}
	l.CreatedAt = fromMillis(created)
	l.UpdatedAt = fromMillis(updatedAt)
	return l, nil
}

// ListLeads implements ports.LeadStore
func (r *SQLiteRepository) ListLeads(ctx context.Context, f ports.LeadFilter) ([]core.Lead, int, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.CustomerID != 0 {
		where = append(where, "customer_id = ?")
		args = append(args, f.CustomerID)
	}
	if !f.CreatedFrom.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, millis(f.CreatedFrom))
	}
	if !f.CreatedTo.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, millis(f.CreatedTo))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM leads"+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count leads: %w", err)
	}

	var order string
	switch f.Sort {
	case "name":
		order = " ORDER BY name ASC, id ASC"
	case "leadScore":
		order = " ORDER BY lead_score IS NULL, lead_score DESC, id ASC"
	default:
		order = " ORDER BY created_at DESC, id DESC"
	}

	rows, err := r.db.QueryContext(ctx, "SELECT "+leadColumns+" FROM leads"+clause+order+limitClause(f.Offset, f.Limit), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	out := []core.Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan lead: %w", err)
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

func (r *SQLiteRepository) GetLead(ctx context.Context, id int64) (core.Lead, error) {
	l, err := scanLead(r.db.QueryRowContext(ctx, "SELECT "+leadColumns+" FROM leads WHERE id = ?", id))
	if err != nil {
		return core.Lead{}, fmt.Errorf("get lead %d: %w", id, notFound(err))
	}
	return l, nil
}

func (r *SQLiteRepository) checkCustomer(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}
	ok, err := r.exists(ctx, r.db, "customers", *id)
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrMissingCustomer
	}
	return nil
}

func (r *SQLiteRepository) CreateLead(ctx context.Context, l core.Lead) (core.Lead, error) {
	if err := r.checkCustomer(ctx, l.CustomerID); err != nil {
		return core.Lead{}, fmt.Errorf("create lead: %w", err)
	}
	l.CreatedAt, l.UpdatedAt = r.stamp(l.CreatedAt)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO leads (name, email, phone, address, status, source, notes, lead_score, customer_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.Name, l.Email, l.Phone, l.Address, string(l.Status), l.Source, l.Notes,
		nullInt(l.LeadScore), nullID(l.CustomerID), millis(l.CreatedAt), millis(l.UpdatedAt))
	if err != nil {
		return core.Lead{}, fmt.Errorf("create lead: %w", err)
	}
	if l.ID, err = res.LastInsertId(); err != nil {
		return core.Lead{}, fmt.Errorf("lead id: %w", err)
	}
	return l, nil
}

func (r *SQLiteRepository) UpdateLead(ctx context.Context, l core.Lead) (core.Lead, error) {
	if err := r.checkCustomer(ctx, l.CustomerID); err != nil {
		return core.Lead{}, fmt.Errorf("update lead %d: %w", l.ID, err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE leads SET name = ?, email = ?, phone = ?, address = ?, status = ?, source = ?, notes = ?,
		 lead_score = ?, customer_id = ?, updated_at = ? WHERE id = ?`,
		l.Name, l.Email, l.Phone, l.Address, string(l.Status), l.Source, l.Notes,
		nullInt(l.LeadScore), nullID(l.CustomerID), millis(r.now()), l.ID)
	if err != nil {
		return core.Lead{}, fmt.Errorf("update lead %d: %w", l.ID, err)
	}
	if err := checkAffected(res); err != nil {
		return core.Lead{}, fmt.Errorf("update lead %d: %w", l.ID, err)
	}
	return r.GetLead(ctx, l.ID)
}

func (r *SQLiteRepository) DeleteLead(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM leads WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete lead %d: %w", id, err)
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("delete lead %d: %w", id, err)
	}
	return nil
}

// --- projects ---

const projectColumns = "id, name, description, budget_cents, cost_cents, status, start_date, deadline, completion_date, priority, customer_id, created_at, updated_at"

func scanProject(s scanner) (core.Project, error) {
	var (
		p                          core.Project
		status, priority           string
		budget, cost               sql.NullInt64
		start, deadline, completed sql.NullInt64
		created, updatedAt         int64
	)
	if err := s.Scan(&p.ID, &p.Name, &p.Description, &budget, &cost, &status, &start, &deadline, &completed,
		&priority, &p.CustomerID, &created, &updatedAt); err != nil {
		return core.Project{}, err
	}
	p.Status = core.ProjectStatus(status)
	p.Priority = core.Priority(priority)
	p.Budget = moneyPtr(budget)
	p.Cost = moneyPtr(cost)
	p.StartDate = timePtr(start)
	p.Deadline = timePtr(deadline)
	p.CompletionDate = timePtr(completed)
	p.CreatedAt = fromMillis(created)
	p.UpdatedAt = fromMillis(updatedAt)
	return p, nil
}

// ListProjects implements ports.ProjectStore
func (r *SQLiteRepository) ListProjects(ctx context.Context, f ports.ProjectFilter) ([]core.Project, error) {
	var (
		where []string
		args  []any
	)
	if f.CustomerID != 0 {
		where = append(where, "customer_id = ?")
		args = append(args, f.CustomerID)
	}
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			marks[i] = "?"
			args = append(args, string(s))
		}
		where = append(where, "status IN ("+strings.Join(marks, ", ")+")")
	}
	q := "SELECT " + projectColumns + " FROM projects"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	rows, err := r.db.QueryContext(ctx, q+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	out := []core.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetProject(ctx context.Context, id int64) (core.Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx, "SELECT "+projectColumns+" FROM projects WHERE id = ?", id))
	if err != nil {
		return core.Project{}, fmt.Errorf("get project %d: %w", id, notFound(err))
	}
	return p, nil
}

func (r *SQLiteRepository) CreateProject(ctx context.Context, p core.Project) (core.Project, error) {
	if err := r.checkCustomer(ctx, &p.CustomerID); err != nil {
		return core.Project{}, fmt.Errorf("create project: %w", err)
	}
	p.CreatedAt, p.UpdatedAt = r.stamp(p.CreatedAt)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (name, description, budget_cents, cost_cents, status, start_date, deadline,
		 completion_date, priority, customer_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Description, nullMoney(p.Budget), nullMoney(p.Cost), string(p.Status),
		nullMillis(p.StartDate), nullMillis(p.Deadline), nullMillis(p.CompletionDate),
		string(p.Priority), p.CustomerID, millis(p.CreatedAt), millis(p.UpdatedAt))
	if err != nil {
		return core.Project{}, fmt.Errorf("create project: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return core.Project{}, fmt.Errorf("project id: %w", err)
	}
	return r.GetProject(ctx, p.ID)
}

func (r *SQLiteRepository) UpdateProject(ctx context.Context, p core.Project) (core.Project, error) {
	if err := r.checkCustomer(ctx, &p.CustomerID); err != nil {
		return core.Project{}, fmt.Errorf("update project %d: %w", p.ID, err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, description = ?, budget_cents = ?, cost_cents = ?, status = ?,
		 start_date = ?, deadline = ?, completion_date = ?, priority = ?, customer_id = ?, updated_at = ?
		 WHERE id = ?`,
		p.Name, p.Description, nullMoney(p.Budget), nullMoney(p.Cost), string(p.Status),
		nullMillis(p.StartDate), nullMillis(p.Deadline), nullMillis(p.CompletionDate),
		string(p.Priority), p.CustomerID, millis(r.now()), p.ID)
	if err != nil {
		return core.Project{}, fmt.Errorf("update project %d: %w", p.ID, err)
	}
	if err := checkAffected(res); err != nil {
		return core.Project{}, fmt.Errorf("update project %d: %w", p.ID, err)
	}
	return r.GetProject(ctx, p.ID)
}

// DeleteProject removes the project together with its appointments.
func (r *SQLiteRepository) DeleteProject(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM appointments WHERE project_id = ?", id); err != nil {
		return fmt.Errorf("delete project %d appointments: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project %d: %w", id, err)
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("delete project %d: %w", id, err)
	}
	return tx.Commit()
}

// --- appointments ---

const appointmentColumns = "id, type, date, notes, project_id, external_id, created_at, updated_at"

func scanAppointment(s scanner) (core.Appointment, error) {
	var (
		a                        core.Appointment
		typ                      string
		date, created, updatedAt int64
	)
	if err := s.Scan(&a.ID, &typ, &date, &a.Notes, &a.ProjectID, &a.ExternalID, &created, &updatedAt); err != nil {
		return core.Appointment{}, err
	}
	a.Type = core.AppointmentType(typ)
	a.Date = fromMillis(date)
	a.CreatedAt = fromMillis(created)
	a.UpdatedAt = fromMillis(updatedAt)
	return a, nil
}

// ListAppointments implements ports.AppointmentStore
func (r *SQLiteRepository) ListAppointments(ctx context.Context, f ports.AppointmentFilter) ([]core.Appointment, error) {
	var (
		where []string
		args  []any
	)
	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, millis(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "date < ?")
		args = append(args, millis(f.To))
	}
	if f.ProjectID != 0 {
		where = append(where, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	if f.UnsyncedOnly {
		where = append(where, "external_id = ''")
	}
	q := "SELECT " + appointmentColumns + " FROM appointments"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY date ASC, id ASC" + limitClause(0, f.Limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	out := []core.Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetAppointment(ctx context.Context, id int64) (core.Appointment, error) {
	a, err := scanAppointment(r.db.QueryRowContext(ctx, "SELECT "+appointmentColumns+" FROM appointments WHERE id = ?", id))
	if err != nil {
		return core.Appointment{}, fmt.Errorf("get appointment %d: %w", id, notFound(err))
	}
	return a, nil
}

func (r *SQLiteRepository) checkProject(ctx context.Context, id int64) error {
	ok, err := r.exists(ctx, r.db, "projects", id)
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrMissingProject
	}
	return nil
}

func (r *SQLiteRepository) CreateAppointment(ctx context.Context, a core.Appointment) (core.Appointment, error) {
	if err := r.checkProject(ctx, a.ProjectID); err != nil {
		return core.Appointment{}, fmt.Errorf("create appointment: %w", err)
	}
	a.CreatedAt, a.UpdatedAt = r.stamp(a.CreatedAt)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO appointments (type, date, notes, project_id, external_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(a.Type), millis(a.Date), a.Notes, a.ProjectID, a.ExternalID, millis(a.CreatedAt), millis(a.UpdatedAt))
	if err != nil {
		return core.Appointment{}, fmt.Errorf("create appointment: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return core.Appointment{}, fmt.Errorf("appointment id: %w", err)
	}
	return r.GetAppointment(ctx, a.ID)
}

// UpdateAppointment leaves external_id untouched; SetExternalID owns it.
func (r *SQLiteRepository) UpdateAppointment(ctx context.Context, a core.Appointment) (core.Appointment, error) {
	if err := r.checkProject(ctx, a.ProjectID); err != nil {
		return core.Appointment{}, fmt.Errorf("update appointment %d: %w", a.ID, err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE appointments SET type = ?, date = ?, notes = ?, project_id = ?, updated_at = ? WHERE id = ?`,
		string(a.Type), millis(a.Date), a.Notes, a.ProjectID, millis(r.now()), a.ID)
	if err != nil {
		return core.Appointment{}, fmt.Errorf("update appointment %d: %w", a.ID, err)
	}
	if err := checkAffected(res); err != nil {
		return core.Appointment{}, fmt.Errorf("update appointment %d: %w", a.ID, err)
	}
	return r.GetAppointment(ctx, a.ID)
}

func (r *SQLiteRepository) DeleteAppointment(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM appointments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete appointment %d: %w", id, err)
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("delete appointment %d: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) SetExternalID(ctx context.Context, id int64, externalID string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE appointments SET external_id = ? WHERE id = ?", externalID, id)
	if err != nil {
		return fmt.Errorf("set external id for appointment %d: %w", id, err)
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("set external id for appointment %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Appointment linked to calendar event", "id", id, "external_id", externalID)
	return nil
}
