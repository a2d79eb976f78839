/*
Package sqlite provides a SQLite-backed implementation of the storage ports.

PURPOSE:
  Implements compensation.TxStore (shifts, schemes, directory, ledger)
  using SQLite. The same schema carries over to PostgreSQL with only minor
  dialect differences.

APPEND-ONLY ENFORCEMENT:
  - finance_transactions: no UPDATE or DELETE statements exist
  - scheme_versions: INSERT only, UNIQUE(scheme_id, version)

KEY CONSTRAINTS:
  - idx_finance_tx_shift_channel: UNIQUE(related_shift_report_id, payment_method)
    This is the authoritative guard against posting a shift twice. The
    ledger package checks first for a friendly error; this index wins races.
  - idx_assignments_active: at most one active assignment per (employee, club)

CONCURRENCY:
  The pool is limited to one connection, so SQLite sees a single writer and
  ":memory:" databases are shared by every caller. Inside WithTx every
  operation goes through the *sql.Tx.

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clubops/payroll-engine/compensation"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements compensation.TxStore using SQLite.
type Store struct {
	queries
	db *sql.DB
}

var _ compensation.TxStore = (*Store)(nil)

// queries holds every statement. In a transaction db is nil and q is the *sql.Tx.
type queries struct {
	q   querier
	db  *sql.DB
	now func() time.Time
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, queries: queries{q: db, db: db, now: time.Now}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema and seeds the global revenue category.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		club_id TEXT NOT NULL,
		name TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	-- Compensation schemes; period bonuses are part of the scheme row
	CREATE TABLE IF NOT EXISTS schemes (
		id TEXT PRIMARY KEY,
		club_id TEXT NOT NULL,
		name TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		standard_monthly_shifts INTEGER NOT NULL DEFAULT 0,
		bonuses_json TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL
	);

	-- Formula snapshots (append-only)
	CREATE TABLE IF NOT EXISTS scheme_versions (
		scheme_id TEXT NOT NULL REFERENCES schemes(id),
		version INTEGER NOT NULL,
		formula_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (scheme_id, version)
	);

	CREATE TABLE IF NOT EXISTS scheme_assignments (
		employee_id TEXT NOT NULL,
		club_id TEXT NOT NULL,
		scheme_id TEXT NOT NULL REFERENCES schemes(id),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		assigned_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_active
		ON scheme_assignments(employee_id, club_id) WHERE is_active;

	CREATE TABLE IF NOT EXISTS planned_shifts (
		employee_id TEXT NOT NULL,
		club_id TEXT NOT NULL,
		month TEXT NOT NULL,
		planned INTEGER NOT NULL,
		PRIMARY KEY (employee_id, club_id, month)
	);

	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		club_id TEXT NOT NULL,
		check_in TEXT NOT NULL,
		check_out TEXT,
		total_hours TEXT NOT NULL DEFAULT '0',
		cash_income TEXT NOT NULL DEFAULT '0',
		card_income TEXT NOT NULL DEFAULT '0',
		expenses TEXT NOT NULL DEFAULT '0',
		report_data_json TEXT NOT NULL DEFAULT '{}',
		status TEXT NOT NULL,
		shift_type TEXT NOT NULL DEFAULT '',
		calculated_salary TEXT NOT NULL DEFAULT '0',
		salary_breakdown_json TEXT NOT NULL DEFAULT '[]',
		scheme_id TEXT,
		scheme_version INTEGER NOT NULL DEFAULT 0,
		has_owner_corrections BOOLEAN NOT NULL DEFAULT FALSE,
		verified_by TEXT,
		verified_at TEXT,
		paid_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_shifts_club_check_in
		ON shifts(club_id, check_in);
	CREATE INDEX IF NOT EXISTS idx_shifts_employee_check_in
		ON shifts(employee_id, club_id, check_in);

	CREATE TABLE IF NOT EXISTS finance_categories (
		id TEXT PRIMARY KEY,
		club_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		type TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_finance_categories_club_name
		ON finance_categories(club_id, name);

	-- Ledger (append-only)
	CREATE TABLE IF NOT EXISTS finance_transactions (
		id TEXT PRIMARY KEY,
		club_id TEXT NOT NULL,
		category_id TEXT,
		amount TEXT NOT NULL,
		type TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		status TEXT NOT NULL,
		transaction_date TEXT NOT NULL,
		related_shift_report_id TEXT,
		description TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: one transaction per income channel per shift, ever
	CREATE UNIQUE INDEX IF NOT EXISTS idx_finance_tx_shift_channel
		ON finance_transactions(related_shift_report_id, payment_method)
		WHERE related_shift_report_id IS NOT NULL;

	CREATE INDEX IF NOT EXISTS idx_finance_tx_club_date
		ON finance_transactions(club_id, transaction_date);

	-- Collaborator-owned configuration
	CREATE TABLE IF NOT EXISTS report_templates (
		club_id TEXT PRIMARY KEY,
		fields_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS club_settings (
		club_id TEXT PRIMARY KEY,
		day_start_hour INTEGER NOT NULL,
		night_start_hour INTEGER NOT NULL,
		timezone TEXT NOT NULL
	);

	INSERT OR IGNORE INTO finance_categories (id, club_id, name, type)
		VALUES ('club-revenue', '', 'Club revenue', 'income');
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (compensation.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store compensation.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{q: sqlTx, now: s.now}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// atomically runs fn in a transaction unless one is already open.
func (qs *queries) atomically(ctx context.Context, fn func(q querier) error) error {
	if qs.db == nil {
		return fn(qs.q)
	}
	tx, err := qs.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// SHIFT STORE
// =============================================================================

const shiftColumns = `id, employee_id, club_id, check_in, check_out, total_hours,
	cash_income, card_income, expenses, report_data_json, status, shift_type,
	calculated_salary, salary_breakdown_json, scheme_id, scheme_version,
	has_owner_corrections, verified_by, verified_at, paid_at, created_at, updated_at`

// InsertShift persists a new shift.
func (qs *queries) InsertShift(ctx context.Context, sh *compensation.ShiftRecord) error {
	now := qs.now().UTC()
	if sh.CreatedAt.IsZero() {
		sh.CreatedAt = now
	}
	sh.UpdatedAt = now

	args, err := shiftArgs(sh)
	if err != nil {
		return err
	}
	query := `INSERT INTO shifts (` + shiftColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := qs.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert shift: %w", err)
	}
	return nil
}

// UpdateShift overwrites every mutable column of a shift.
func (qs *queries) UpdateShift(ctx context.Context, sh *compensation.ShiftRecord) error {
	sh.UpdatedAt = qs.now().UTC()
	args, err := shiftArgs(sh)
	if err != nil {
		return err
	}
	query := `
		UPDATE shifts SET
			employee_id = ?, club_id = ?, check_in = ?, check_out = ?, total_hours = ?,
			cash_income = ?, card_income = ?, expenses = ?, report_data_json = ?,
			status = ?, shift_type = ?, calculated_salary = ?, salary_breakdown_json = ?,
			scheme_id = ?, scheme_version = ?, has_owner_corrections = ?,
			verified_by = ?, verified_at = ?, paid_at = ?, created_at = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := qs.q.ExecContext(ctx, query, append(args[1:], sh.ID)...)
	if err != nil {
		return fmt.Errorf("failed to update shift: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update shift %s: %w", sh.ID, compensation.ErrShiftNotFound)
	}
	return nil
}

// GetShift retrieves a shift by ID.
func (qs *queries) GetShift(ctx context.Context, id string) (*compensation.ShiftRecord, error) {
	rows, err := qs.q.QueryContext(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query shift: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("shift %s: %w", id, compensation.ErrShiftNotFound)
	}
	sh, err := scanShift(rows)
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

// DeleteShift removes a shift. Ledger rows are untouched.
func (qs *queries) DeleteShift(ctx context.Context, id string) error {
	res, err := qs.q.ExecContext(ctx, "DELETE FROM shifts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete shift: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete shift %s: %w", id, compensation.ErrShiftNotFound)
	}
	return nil
}

// ListShifts returns shifts matching the filter, ordered by check-in.
func (qs *queries) ListShifts(ctx context.Context, f compensation.ShiftFilter) ([]compensation.ShiftRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.ClubID != "" {
		where = append(where, "club_id = ?")
		args = append(args, f.ClubID)
	}
	if f.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		where = append(where, "status IN ("+strings.Join(marks, ", ")+")")
	}
	if f.From != nil {
		where = append(where, "check_in >= ?")
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		where = append(where, "check_in < ?")
		args = append(args, formatTime(*f.To))
	}

	query := `SELECT ` + shiftColumns + ` FROM shifts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY check_in ASC, id ASC"

	rows, err := qs.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var shifts []compensation.ShiftRecord
	for rows.Next() {
		sh, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, sh)
	}
	return shifts, rows.Err()
}

func shiftArgs(sh *compensation.ShiftRecord) ([]any, error) {
	reportJSON, err := json.Marshal(nonNilReport(sh.ReportData))
	if err != nil {
		return nil, fmt.Errorf("encode report data: %w", err)
	}
	breakdown := sh.SalaryBreakdown
	if breakdown == nil {
		breakdown = []compensation.BreakdownLine{}
	}
	breakdownJSON, err := json.Marshal(breakdown)
	if err != nil {
		return nil, fmt.Errorf("encode salary breakdown: %w", err)
	}
	return []any{
		sh.ID,
		sh.EmployeeID,
		sh.ClubID,
		formatTime(sh.CheckIn),
		formatTimePtr(sh.CheckOut),
		sh.TotalHours.String(),
		sh.CashIncome.String(),
		sh.CardIncome.String(),
		sh.Expenses.String(),
		string(reportJSON),
		string(sh.Status),
		string(sh.ShiftType),
		sh.CalculatedSalary.String(),
		string(breakdownJSON),
		nullString(sh.SchemeID),
		sh.SchemeVersion,
		sh.HasOwnerCorrections,
		nullString(sh.VerifiedBy),
		formatTimePtr(sh.VerifiedAt),
		formatTimePtr(sh.PaidAt),
		formatTime(sh.CreatedAt),
		formatTime(sh.UpdatedAt),
	}, nil
}

func scanShift(rows *sql.Rows) (compensation.ShiftRecord, error) {
	var (
		sh                                      compensation.ShiftRecord
		checkIn, createdAt, updatedAt           string
		checkOut, verifiedAt, paidAt            sql.NullString
		schemeID, verifiedBy                    sql.NullString
		hours, cash, card, expenses, salary     string
		reportJSON, breakdownJSON, status, kind string
	)
	err := rows.Scan(
		&sh.ID, &sh.EmployeeID, &sh.ClubID, &checkIn, &checkOut, &hours,
		&cash, &card, &expenses, &reportJSON, &status, &kind,
		&salary, &breakdownJSON, &schemeID, &sh.SchemeVersion,
		&sh.HasOwnerCorrections, &verifiedBy, &verifiedAt, &paidAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return sh, fmt.Errorf("failed to scan shift: %w", err)
	}

	sh.CheckIn = parseTime(checkIn)
	sh.CheckOut = parseTimePtr(checkOut)
	sh.TotalHours = parseDecimal(hours)
	sh.CashIncome = parseDecimal(cash)
	sh.CardIncome = parseDecimal(card)
	sh.Expenses = parseDecimal(expenses)
	sh.Status = compensation.ShiftStatus(status)
	sh.ShiftType = compensation.ShiftType(kind)
	sh.CalculatedSalary = parseDecimal(salary)
	sh.SchemeID = schemeID.String
	sh.VerifiedBy = verifiedBy.String
	sh.VerifiedAt = parseTimePtr(verifiedAt)
	sh.PaidAt = parseTimePtr(paidAt)
	sh.CreatedAt = parseTime(createdAt)
	sh.UpdatedAt = parseTime(updatedAt)

	if err := json.Unmarshal([]byte(reportJSON), &sh.ReportData); err != nil {
		return sh, fmt.Errorf("decode report data for shift %s: %w", sh.ID, err)
	}
	if err := json.Unmarshal([]byte(breakdownJSON), &sh.SalaryBreakdown); err != nil {
		return sh, fmt.Errorf("decode breakdown for shift %s: %w", sh.ID, err)
	}
	return sh, nil
}

// =============================================================================
// SCHEME STORE
// =============================================================================

// SaveScheme inserts or updates a scheme. Versions are not touched.
func (qs *queries) SaveScheme(ctx context.Context, sc compensation.Scheme) error {
	bonuses := sc.PeriodBonuses
	if bonuses == nil {
		bonuses = []compensation.PeriodBonus{}
	}
	bonusesJSON, err := json.Marshal(bonuses)
	if err != nil {
		return fmt.Errorf("encode period bonuses: %w", err)
	}
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = qs.now()
	}

	query := `
		INSERT INTO schemes (id, club_id, name, is_active, standard_monthly_shifts, bonuses_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			club_id = excluded.club_id,
			name = excluded.name,
			is_active = excluded.is_active,
			standard_monthly_shifts = excluded.standard_monthly_shifts,
			bonuses_json = excluded.bonuses_json
	`
	_, err = qs.q.ExecContext(ctx, query,
		sc.ID, sc.ClubID, sc.Name, sc.IsActive, sc.StandardMonthlyShifts,
		string(bonusesJSON), formatTime(sc.CreatedAt),
	)
	return err
}

// GetScheme retrieves a scheme by ID.
func (qs *queries) GetScheme(ctx context.Context, id string) (*compensation.Scheme, error) {
	var (
		sc                     compensation.Scheme
		bonusesJSON, createdAt string
	)
	err := qs.q.QueryRowContext(ctx,
		`SELECT id, club_id, name, is_active, standard_monthly_shifts, bonuses_json, created_at
		 FROM schemes WHERE id = ?`, id,
	).Scan(&sc.ID, &sc.ClubID, &sc.Name, &sc.IsActive, &sc.StandardMonthlyShifts, &bonusesJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(bonusesJSON), &sc.PeriodBonuses); err != nil {
		return nil, fmt.Errorf("decode period bonuses for scheme %s: %w", id, err)
	}
	sc.CreatedAt = parseTime(createdAt)
	return &sc, nil
}

// PublishVersion appends the next formula version. The version number is
// computed inside the INSERT so concurrent publishers cannot collide silently.
func (qs *queries) PublishVersion(ctx context.Context, schemeID string, f compensation.Formula) (*compensation.SchemeVersion, error) {
	formulaJSON, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode formula: %w", err)
	}
	now := qs.now().UTC()

	var version int
	err = qs.atomically(ctx, func(q querier) error {
		var exists int
		if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM schemes WHERE id = ?", schemeID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("publish version for %s: %w", schemeID, compensation.ErrSchemeNotFound)
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO scheme_versions (scheme_id, version, formula_json, created_at)
			SELECT ?, COALESCE(MAX(version), 0) + 1, ?, ?
			FROM scheme_versions WHERE scheme_id = ?`,
			schemeID, string(formulaJSON), formatTime(now), schemeID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert scheme version: %w", err)
		}
		return q.QueryRowContext(ctx,
			"SELECT MAX(version) FROM scheme_versions WHERE scheme_id = ?", schemeID,
		).Scan(&version)
	})
	if err != nil {
		return nil, err
	}
	return &compensation.SchemeVersion{SchemeID: schemeID, Version: version, Formula: f, CreatedAt: now}, nil
}

// GetSchemeVersion retrieves one version.
func (qs *queries) GetSchemeVersion(ctx context.Context, schemeID string, version int) (*compensation.SchemeVersion, error) {
	return qs.oneVersion(ctx,
		`SELECT scheme_id, version, formula_json, created_at FROM scheme_versions
		 WHERE scheme_id = ? AND version = ?`, schemeID, version)
}

// LatestSchemeVersion retrieves the highest version.
func (qs *queries) LatestSchemeVersion(ctx context.Context, schemeID string) (*compensation.SchemeVersion, error) {
	return qs.oneVersion(ctx,
		`SELECT scheme_id, version, formula_json, created_at FROM scheme_versions
		 WHERE scheme_id = ? ORDER BY version DESC LIMIT 1`, schemeID)
}

func (qs *queries) oneVersion(ctx context.Context, query string, args ...any) (*compensation.SchemeVersion, error) {
	versions, err := qs.queryVersions(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, nil
	}
	return &versions[0], nil
}

// ListSchemeVersions returns all versions, oldest first.
func (qs *queries) ListSchemeVersions(ctx context.Context, schemeID string) ([]compensation.SchemeVersion, error) {
	return qs.queryVersions(ctx,
		`SELECT scheme_id, version, formula_json, created_at FROM scheme_versions
		 WHERE scheme_id = ? ORDER BY version ASC`, schemeID)
}

func (qs *queries) queryVersions(ctx context.Context, query string, args ...any) ([]compensation.SchemeVersion, error) {
	rows, err := qs.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []compensation.SchemeVersion
	for rows.Next() {
		var (
			v                      compensation.SchemeVersion
			formulaJSON, createdAt string
		)
		if err := rows.Scan(&v.SchemeID, &v.Version, &formulaJSON, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(formulaJSON), &v.Formula); err != nil {
			return nil, fmt.Errorf("decode formula %s v%d: %w", v.SchemeID, v.Version, err)
		}
		v.CreatedAt = parseTime(createdAt)
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// AssignScheme deactivates any current assignment and inserts the new one.
func (qs *queries) AssignScheme(ctx context.Context, a compensation.Assignment) error {
	if a.AssignedAt.IsZero() {
		a.AssignedAt = qs.now()
	}
	return qs.atomically(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx,
			`UPDATE scheme_assignments SET is_active = FALSE
			 WHERE employee_id = ? AND club_id = ? AND is_active`,
			a.EmployeeID, a.ClubID,
		); err != nil {
			return fmt.Errorf("failed to deactivate assignment: %w", err)
		}
		_, err := q.ExecContext(ctx,
			`INSERT INTO scheme_assignments (employee_id, club_id, scheme_id, is_active, assigned_at)
			 VALUES (?, ?, ?, TRUE, ?)`,
			a.EmployeeID, a.ClubID, a.SchemeID, formatTime(a.AssignedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert assignment: %w", err)
		}
		return nil
	})
}

// ActiveAssignment returns the active assignment for (employee, club).
func (qs *queries) ActiveAssignment(ctx context.Context, employeeID, clubID string) (*compensation.Assignment, error) {
	var (
		a          compensation.Assignment
		assignedAt string
	)
	err := qs.q.QueryRowContext(ctx,
		`SELECT employee_id, club_id, scheme_id, is_active, assigned_at
		 FROM scheme_assignments WHERE employee_id = ? AND club_id = ? AND is_active`,
		employeeID, clubID,
	).Scan(&a.EmployeeID, &a.ClubID, &a.SchemeID, &a.IsActive, &assignedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.AssignedAt = parseTime(assignedAt)
	return &a, nil
}

// SetPlannedShifts records the planned shift count for a month ("YYYY-MM").
func (qs *queries) SetPlannedShifts(ctx context.Context, employeeID, clubID, month string, planned int) error {
	_, err := qs.q.ExecContext(ctx, `
		INSERT INTO planned_shifts (employee_id, club_id, month, planned) VALUES (?, ?, ?, ?)
		ON CONFLICT(employee_id, club_id, month) DO UPDATE SET planned = excluded.planned`,
		employeeID, clubID, month, planned,
	)
	return err
}

// PlannedShifts returns the planned count and whether one is recorded.
func (qs *queries) PlannedShifts(ctx context.Context, employeeID, clubID, month string) (int, bool, error) {
	var planned int
	err := qs.q.QueryRowContext(ctx,
		`SELECT planned FROM planned_shifts WHERE employee_id = ? AND club_id = ? AND month = ?`,
		employeeID, clubID, month,
	).Scan(&planned)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return planned, true, nil
}

// =============================================================================
// DIRECTORY STORE
// =============================================================================

// SaveEmployee saves an employee.
func (qs *queries) SaveEmployee(ctx context.Context, e compensation.Employee) error {
	_, err := qs.q.ExecContext(ctx, `
		INSERT INTO employees (id, club_id, name, is_active) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			club_id = excluded.club_id,
			name = excluded.name,
			is_active = excluded.is_active`,
		e.ID, e.ClubID, e.Name, e.IsActive,
	)
	return err
}

// GetEmployee retrieves an employee by ID.
func (qs *queries) GetEmployee(ctx context.Context, id string) (*compensation.Employee, error) {
	var e compensation.Employee
	err := qs.q.QueryRowContext(ctx,
		"SELECT id, club_id, name, is_active FROM employees WHERE id = ?", id,
	).Scan(&e.ID, &e.ClubID, &e.Name, &e.IsActive)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("employee %s: %w", id, compensation.ErrEmployeeNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ReportTemplate retrieves the club's report template.
func (qs *queries) ReportTemplate(ctx context.Context, clubID string) (*compensation.ReportTemplate, error) {
	var fieldsJSON string
	err := qs.q.QueryRowContext(ctx,
		"SELECT fields_json FROM report_templates WHERE club_id = ?", clubID,
	).Scan(&fieldsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t := compensation.ReportTemplate{ClubID: clubID}
	if err := json.Unmarshal([]byte(fieldsJSON), &t.Fields); err != nil {
		return nil, fmt.Errorf("decode report template for %s: %w", clubID, err)
	}
	return &t, nil
}

// SaveReportTemplate replaces the club's report template.
func (qs *queries) SaveReportTemplate(ctx context.Context, t compensation.ReportTemplate) error {
	fieldsJSON, err := json.Marshal(t.Fields)
	if err != nil {
		return fmt.Errorf("encode report template: %w", err)
	}
	_, err = qs.q.ExecContext(ctx, `
		INSERT INTO report_templates (club_id, fields_json) VALUES (?, ?)
		ON CONFLICT(club_id) DO UPDATE SET fields_json = excluded.fields_json`,
		t.ClubID, string(fieldsJSON),
	)
	return err
}

// ClubSettings retrieves the club's shift boundary settings.
func (qs *queries) ClubSettings(ctx context.Context, clubID string) (*compensation.ClubSettings, error) {
	cs := compensation.ClubSettings{ClubID: clubID}
	err := qs.q.QueryRowContext(ctx,
		"SELECT day_start_hour, night_start_hour, timezone FROM club_settings WHERE club_id = ?", clubID,
	).Scan(&cs.DayStartHour, &cs.NightStartHour, &cs.Timezone)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cs, nil
}

// SaveClubSettings replaces the club's settings.
func (qs *queries) SaveClubSettings(ctx context.Context, cs compensation.ClubSettings) error {
	_, err := qs.q.ExecContext(ctx, `
		INSERT INTO club_settings (club_id, day_start_hour, night_start_hour, timezone) VALUES (?, ?, ?, ?)
		ON CONFLICT(club_id) DO UPDATE SET
			day_start_hour = excluded.day_start_hour,
			night_start_hour = excluded.night_start_hour,
			timezone = excluded.timezone`,
		cs.ClubID, cs.DayStartHour, cs.NightStartHour, cs.Timezone,
	)
	return err
}

// =============================================================================
// LEDGER STORE
// =============================================================================

const txColumns = `id, club_id, category_id, amount, type, payment_method, status,
	transaction_date, related_shift_report_id, description, created_by, created_at`

// AppendTransactions inserts all rows atomically.
func (qs *queries) AppendTransactions(ctx context.Context, txs []compensation.FinanceTransaction) error {
	return qs.atomically(ctx, func(q querier) error {
		for _, tx := range txs {
			if err := qs.appendTx(ctx, q, tx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (qs *queries) appendTx(ctx context.Context, q querier, tx compensation.FinanceTransaction) error {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = qs.now()
	}
	query := `INSERT INTO finance_transactions (` + txColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := q.ExecContext(ctx, query,
		tx.ID,
		tx.ClubID,
		nullString(tx.CategoryID),
		tx.Amount.String(),
		string(tx.Type),
		tx.PaymentMethod,
		tx.Status,
		formatTime(tx.TransactionDate),
		nullString(tx.RelatedShiftID),
		nullString(tx.Description),
		nullString(tx.CreatedBy),
		formatTime(tx.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) && tx.RelatedShiftID != "" {
			return &compensation.StorageConflictError{
				ShiftID:       tx.RelatedShiftID,
				PaymentMethod: tx.PaymentMethod,
				Err:           err,
			}
		}
		return fmt.Errorf("failed to append finance transaction: %w", err)
	}
	return nil
}

// TransactionsByShift returns every ledger row referencing the shift.
func (qs *queries) TransactionsByShift(ctx context.Context, shiftID string) ([]compensation.FinanceTransaction, error) {
	return qs.ListTransactions(ctx, compensation.TransactionFilter{RelatedShiftID: shiftID})
}

// ListTransactions returns ledger rows ordered by transaction date.
func (qs *queries) ListTransactions(ctx context.Context, f compensation.TransactionFilter) ([]compensation.FinanceTransaction, error) {
	var (
		where []string
		args  []any
	)
	if f.ClubID != "" {
		where = append(where, "club_id = ?")
		args = append(args, f.ClubID)
	}
	if f.RelatedShiftID != "" {
		where = append(where, "related_shift_report_id = ?")
		args = append(args, f.RelatedShiftID)
	}
	if f.From != nil {
		where = append(where, "transaction_date >= ?")
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		where = append(where, "transaction_date < ?")
		args = append(args, formatTime(*f.To))
	}

	query := `SELECT ` + txColumns + ` FROM finance_transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY transaction_date ASC, payment_method ASC, id ASC"

	rows, err := qs.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query finance transactions: %w", err)
	}
	defer rows.Close()

	var txs []compensation.FinanceTransaction
	for rows.Next() {
		var (
			tx                                            compensation.FinanceTransaction
			categoryID, related, description, createdBy   sql.NullString
			amount, txType, transactionDate, createdAtStr string
		)
		if err := rows.Scan(&tx.ID, &tx.ClubID, &categoryID, &amount, &txType, &tx.PaymentMethod,
			&tx.Status, &transactionDate, &related, &description, &createdBy, &createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan finance transaction: %w", err)
		}
		tx.CategoryID = categoryID.String
		tx.Amount = parseDecimal(amount)
		tx.Type = compensation.TransactionType(txType)
		tx.TransactionDate = parseTime(transactionDate)
		tx.RelatedShiftID = related.String
		tx.Description = description.String
		tx.CreatedBy = createdBy.String
		tx.CreatedAt = parseTime(createdAtStr)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// ResolveCategory returns the club's category with this name, else the global one.
func (qs *queries) ResolveCategory(ctx context.Context, clubID, name string) (*compensation.FinanceCategory, error) {
	var (
		c      compensation.FinanceCategory
		txType string
	)
	err := qs.q.QueryRowContext(ctx, `
		SELECT id, club_id, name, type FROM finance_categories
		WHERE name = ? AND (club_id = ? OR club_id = '')
		ORDER BY CASE WHEN club_id = ? THEN 0 ELSE 1 END
		LIMIT 1`,
		name, clubID, clubID,
	).Scan(&c.ID, &c.ClubID, &c.Name, &txType)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Type = compensation.TransactionType(txType)
	return &c, nil
}

// SaveCategory inserts or updates a category.
func (qs *queries) SaveCategory(ctx context.Context, c compensation.FinanceCategory) error {
	_, err := qs.q.ExecContext(ctx, `
		INSERT INTO finance_categories (id, club_id, name, type) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			club_id = excluded.club_id,
			name = excluded.name,
			type = excluded.type`,
		c.ID, c.ClubID, c.Name, string(c.Type),
	)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func parseDecimal(s string) decimal.Decimal {
	return compensation.MustDecimal(s)
}

func nonNilReport(m map[string]decimal.Decimal) map[string]decimal.Decimal {
	if m == nil {
		return map[string]decimal.Decimal{}
	}
	return m
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
