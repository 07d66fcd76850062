package history

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/fapiao-client/internal/models"
	"github.com/garyjia/fapiao-client/pkg/database"
)

// Submission is one locally recorded claim
type Submission struct {
	ID             int64
	ReceiptID      string
	FormType       string
	TotalAmount    string
	Reason         string
	Region         string
	CostDepartment string
	InvoiceCount   int
	SubmittedAt    time.Time
}

// Repository keeps a local log of submitted claims and their invoice keys,
// used by the history command and by the pre-submit duplicate check.
type Repository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewRepository creates the repository and its schema
func NewRepository(db *database.DB, logger *zap.Logger) (*Repository, error) {
	r := &Repository{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		receipt_id TEXT NOT NULL,
		form_type TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		region TEXT NOT NULL DEFAULT '',
		cost_department TEXT NOT NULL DEFAULT '',
		invoice_count INTEGER NOT NULL DEFAULT 0,
		submitted_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS submitted_invoices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		submission_id INTEGER NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
		invoice_no TEXT NOT NULL,
		invoice_date TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_submitted_invoices_key
		ON submitted_invoices(invoice_no, invoice_date);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}
	return nil
}

// Record logs a submitted claim with its invoice keys
func (r *Repository) Record(sub *Submission, invoices []models.InvoiceInfo) error {
	err := r.db.WithTransaction(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			INSERT INTO submissions (
				receipt_id, form_type, total_amount, reason, region,
				cost_department, invoice_count, submitted_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sub.ReceiptID,
			sub.FormType,
			sub.TotalAmount,
			sub.Reason,
			sub.Region,
			sub.CostDepartment,
			len(invoices),
			sub.SubmittedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert submission: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read submission id: %w", err)
		}

		for _, invoice := range invoices {
			// blank number+date pairs are special tickets; they are not
			// useful duplicate keys
			if invoice.InvoiceNo == "" && invoice.InvoiceDate == "" {
				continue
			}
			if _, err := tx.Exec(`
				INSERT INTO submitted_invoices (submission_id, invoice_no, invoice_date)
				VALUES (?, ?, ?)`,
				id, invoice.InvoiceNo, invoice.InvoiceDate,
			); err != nil {
				return fmt.Errorf("failed to insert invoice key: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Debug("Submission recorded",
		zap.String("receipt_id", sub.ReceiptID),
		zap.Int("invoices", len(invoices)))
	return nil
}

// MirrorRemote folds server-side history records into the local log so the
// history command works offline. Records already present (by receipt id) are
// left alone; mirrored rows carry no invoice keys.
func (r *Repository) MirrorRemote(subs []*Submission) error {
	for _, sub := range subs {
		var count int
		err := r.db.QueryRow(`SELECT COUNT(1) FROM submissions WHERE receipt_id = ?`, sub.ReceiptID).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to check mirrored submission: %w", err)
		}
		if count > 0 {
			continue
		}
		if _, err := r.db.Exec(`
			INSERT INTO submissions (
				receipt_id, form_type, total_amount, reason, region,
				cost_department, invoice_count, submitted_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sub.ReceiptID,
			sub.FormType,
			sub.TotalAmount,
			sub.Reason,
			sub.Region,
			sub.CostDepartment,
			sub.InvoiceCount,
			sub.SubmittedAt,
		); err != nil {
			return fmt.Errorf("failed to mirror submission: %w", err)
		}
	}
	return nil
}

// List returns the most recent submissions, newest first
func (r *Repository) List(limit int) ([]*Submission, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(`
		SELECT id, receipt_id, form_type, total_amount, reason, region,
		       cost_department, invoice_count, submitted_at
		FROM submissions
		ORDER BY submitted_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var subs []*Submission
	for rows.Next() {
		var sub Submission
		if err := rows.Scan(
			&sub.ID,
			&sub.ReceiptID,
			&sub.FormType,
			&sub.TotalAmount,
			&sub.Reason,
			&sub.Region,
			&sub.CostDepartment,
			&sub.InvoiceCount,
			&sub.SubmittedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, &sub)
	}
	return subs, rows.Err()
}

// SeenInvoice reports whether the (invoice number, invoice date) pair was
// already part of a recorded submission.
func (r *Repository) SeenInvoice(invoiceNo, invoiceDate string) (bool, error) {
	if invoiceNo == "" && invoiceDate == "" {
		return false, nil
	}
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(1) FROM submitted_invoices
		WHERE invoice_no = ? AND invoice_date = ?`,
		invoiceNo, invoiceDate,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check invoice key: %w", err)
	}
	return count > 0, nil
}

// LocalDuplicates returns the positions of invoices already seen locally
func (r *Repository) LocalDuplicates(invoices []models.InvoiceInfo) ([]int, error) {
	var dupes []int
	for i, invoice := range invoices {
		seen, err := r.SeenInvoice(invoice.InvoiceNo, invoice.InvoiceDate)
		if err != nil {
			return nil, err
		}
		if seen {
			dupes = append(dupes, i)
		}
	}
	return dupes, nil
}
