/*
store.go - Persistence ports for the payroll engine

PURPOSE:
  Defines the narrow interface between the calculation core and the
  database. Services receive a Store per process; nothing here is global.

KEY INTERFACES:
  ShiftStore:     shift records (the only mutable entity in the core)
  SchemeStore:    schemes, append-only versions, assignments, planned shifts
  DirectoryStore: employees and the external collaborators' configuration
  LedgerStore:    append-only finance transactions and categories
  TxStore:        all of the above inside one database transaction

APPEND-ONLY CONTRACT:
  LedgerStore has no Update or Delete. SchemeStore.PublishVersion appends a
  new version and never rewrites an earlier one.

UNIQUENESS:
  AppendTransactions MUST be backed by a storage-level unique constraint on
  (related shift, payment method) and report violations as
  *StorageConflictError. The application-level existence check in the
  ledger package is only a fast path.

IMPLEMENTATIONS:
  - store/sqlite: SQLite (also used with ":memory:" in tests)
*/
package compensation

import (
	"context"
	"time"
)

// ShiftFilter narrows ListShifts. Zero fields are ignored. The time range
// applies to CheckIn and is half-open.
type ShiftFilter struct {
	ClubID     string
	EmployeeID string
	Statuses   []ShiftStatus
	From       *time.Time
	To         *time.Time
}

// TransactionFilter narrows ListTransactions.
type TransactionFilter struct {
	ClubID         string
	RelatedShiftID string
	From           *time.Time
	To             *time.Time
}

// ShiftStore persists shift records.
type ShiftStore interface {
	// GetShift returns ErrShiftNotFound when id is unknown.
	GetShift(ctx context.Context, id string) (*ShiftRecord, error)
	InsertShift(ctx context.Context, s *ShiftRecord) error
	// UpdateShift returns ErrShiftNotFound when id is unknown.
	UpdateShift(ctx context.Context, s *ShiftRecord) error
	DeleteShift(ctx context.Context, id string) error
	// ListShifts returns matches ordered by CheckIn, then ID.
	ListShifts(ctx context.Context, f ShiftFilter) ([]ShiftRecord, error)
}

// SchemeStore persists compensation schemes and their versions.
type SchemeStore interface {
	SaveScheme(ctx context.Context, s Scheme) error
	// GetScheme returns nil when id is unknown.
	GetScheme(ctx context.Context, id string) (*Scheme, error)

	// PublishVersion appends the next version for schemeID.
	PublishVersion(ctx context.Context, schemeID string, f Formula) (*SchemeVersion, error)
	// GetSchemeVersion and LatestSchemeVersion return nil when absent.
	GetSchemeVersion(ctx context.Context, schemeID string, version int) (*SchemeVersion, error)
	LatestSchemeVersion(ctx context.Context, schemeID string) (*SchemeVersion, error)
	ListSchemeVersions(ctx context.Context, schemeID string) ([]SchemeVersion, error)

	// AssignScheme makes a the only active assignment for (employee, club).
	AssignScheme(ctx context.Context, a Assignment) error
	// ActiveAssignment returns nil when the employee has none at the club.
	ActiveAssignment(ctx context.Context, employeeID, clubID string) (*Assignment, error)

	SetPlannedShifts(ctx context.Context, employeeID, clubID, month string, planned int) error
	PlannedShifts(ctx context.Context, employeeID, clubID, month string) (int, bool, error)
}

// DirectoryStore holds employees and collaborator-owned configuration.
type DirectoryStore interface {
	SaveEmployee(ctx context.Context, e Employee) error
	// GetEmployee returns ErrEmployeeNotFound when id is unknown.
	GetEmployee(ctx context.Context, id string) (*Employee, error)

	// ReportTemplate and ClubSettings return nil when the club has none.
	ReportTemplate(ctx context.Context, clubID string) (*ReportTemplate, error)
	SaveReportTemplate(ctx context.Context, t ReportTemplate) error
	ClubSettings(ctx context.Context, clubID string) (*ClubSettings, error)
	SaveClubSettings(ctx context.Context, cs ClubSettings) error
}

// LedgerStore is the append-only finance ledger.
type LedgerStore interface {
	// AppendTransactions writes all rows or none.
	AppendTransactions(ctx context.Context, txs []FinanceTransaction) error
	TransactionsByShift(ctx context.Context, shiftID string) ([]FinanceTransaction, error)
	ListTransactions(ctx context.Context, f TransactionFilter) ([]FinanceTransaction, error)

	// ResolveCategory prefers a club-specific category over the global one
	// with the same name. Returns nil when neither exists.
	ResolveCategory(ctx context.Context, clubID, name string) (*FinanceCategory, error)
	SaveCategory(ctx context.Context, c FinanceCategory) error
}

// Store is every port together.
type Store interface {
	ShiftStore
	SchemeStore
	DirectoryStore
	LedgerStore
}

// TxStore runs fn inside one database transaction. If fn returns an error
// the transaction is rolled back.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
