package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"equb_tracker/internal/domain/equb"

	"github.com/lib/pq"
)

const equbColumns = `id, user_id, name, contribution_amount, frequency, start_date, total_cycles, payout_cycle, created_at`

const contributionSelect = `SELECT c.id, c.equb_id, c.cycle_number, c.amount, c.due_date, c.status, c.transaction_id, c.created_at, e.name, e.user_id
               FROM equb_contributions c JOIN equbs e ON e.id = c.equb_id`

const payoutSelect = `SELECT p.id, p.equb_id, p.amount, p.due_date, p.status, p.transaction_id, p.created_at, e.name, e.user_id
               FROM equb_payouts p JOIN equbs e ON e.id = p.equb_id`

type PostgresEqubRepository struct {
	db dbtx
}

func NewPostgresEqubRepository(db dbtx) *PostgresEqubRepository {
	return &PostgresEqubRepository{db: db}
}

// Create must run inside a transaction (Store.WithinTx) for the three inserts to be atomic.
func (r *PostgresEqubRepository) Create(ctx context.Context, e *equb.Equb) error {
	query := `INSERT INTO equbs (` + equbColumns + `)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(ctx, query, e.ID, e.UserID, e.Name, e.ContributionAmount, e.Frequency, e.StartDate, e.TotalCycles, e.PayoutCycle, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating equb: %w", err)
	}

	stmt, err := r.db.PrepareContext(ctx, `INSERT INTO equb_contributions (id, equb_id, cycle_number, amount, due_date, status, created_at)
                                         VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for contributions: %w", err)
	}
	defer stmt.Close()

	for _, c := range e.Contributions {
		if _, err := stmt.ExecContext(ctx, c.ID, e.ID, c.CycleNumber, c.Amount, c.DueDate, c.Status, c.CreatedAt); err != nil {
			return fmt.Errorf("error creating contribution (equb %s, cycle %d): %w", e.ID, c.CycleNumber, err)
		}
	}

	if e.Payout != nil {
		query = `INSERT INTO equb_payouts (id, equb_id, amount, due_date, status, created_at)
               VALUES ($1, $2, $3, $4, $5, $6)`
		p := e.Payout
		if _, err := r.db.ExecContext(ctx, query, p.ID, e.ID, p.Amount, p.DueDate, p.Status, p.CreatedAt); err != nil {
			return fmt.Errorf("error creating payout for equb %s: %w", e.ID, err)
		}
	}
	return nil
}

func (r *PostgresEqubRepository) GetByID(ctx context.Context, id, userID string) (*equb.Equb, error) {
	query := `SELECT ` + equbColumns + ` FROM equbs WHERE id = $1 AND user_id = $2`
	e, err := scanEqub(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, equb.ErrEqubNotFound
		}
		return nil, fmt.Errorf("error getting equb by ID: %w", err)
	}
	if err := r.attachSchedules(ctx, []*equb.Equb{e}); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *PostgresEqubRepository) ListByUser(ctx context.Context, userID string) ([]*equb.Equb, error) {
	query := `SELECT ` + equbColumns + ` FROM equbs WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing equbs: %w", err)
	}
	defer rows.Close()

	equbs := make([]*equb.Equb, 0)
	for rows.Next() {
		e, err := scanEqub(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning equb: %w", err)
		}
		equbs = append(equbs, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating equbs: %w", err)
	}

	if err := r.attachSchedules(ctx, equbs); err != nil {
		return nil, err
	}
	return equbs, nil
}

// attachSchedules loads contributions and payouts for all given Equbs in two queries.
func (r *PostgresEqubRepository) attachSchedules(ctx context.Context, equbs []*equb.Equb) error {
	if len(equbs) == 0 {
		return nil
	}
	byID := make(map[string]*equb.Equb, len(equbs))
	ids := make([]string, 0, len(equbs))
	for _, e := range equbs {
		byID[e.ID] = e
		ids = append(ids, e.ID)
	}

	rows, err := r.db.QueryContext(ctx, contributionSelect+` WHERE c.equb_id = ANY($1) ORDER BY c.equb_id, c.cycle_number`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("error querying contributions: %w", err)
	}
	contributions, err := scanContributions(rows)
	rows.Close()
	if err != nil {
		return err
	}
	for _, c := range contributions {
		if e, ok := byID[c.EqubID]; ok {
			e.Contributions = append(e.Contributions, c)
		}
	}

	rows, err = r.db.QueryContext(ctx, payoutSelect+` WHERE p.equb_id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("error querying payouts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return fmt.Errorf("error scanning payout: %w", err)
		}
		if e, ok := byID[p.EqubID]; ok {
			e.Payout = p
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating payouts: %w", err)
	}
	return nil
}

// Delete removes the Equb; contributions and payout go with it through ON DELETE CASCADE.
func (r *PostgresEqubRepository) Delete(ctx context.Context, id, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM equbs WHERE id = $1 AND user_id = $2`, id, userID); err != nil {
		return fmt.Errorf("error deleting equb: %w", err)
	}
	return nil
}

// LockSchedule takes row locks on the schedule. A settle running concurrently either committed
// before the lock (and is seen here) or waits and then finds its row gone.
func (r *PostgresEqubRepository) LockSchedule(ctx context.Context, equbID string) (bool, error) {
	var settled bool
	queries := []struct {
		query   string
		pending string
	}{
		{`SELECT status FROM equb_contributions WHERE equb_id = $1 FOR UPDATE`, string(equb.ContributionPending)},
		{`SELECT status FROM equb_payouts WHERE equb_id = $1 FOR UPDATE`, string(equb.PayoutPending)},
	}
	for _, q := range queries {
		rows, err := r.db.QueryContext(ctx, q.query, equbID)
		if err != nil {
			return false, fmt.Errorf("error locking equb schedule: %w", err)
		}
		for rows.Next() {
			var status string
			if err := rows.Scan(&status); err != nil {
				rows.Close()
				return false, fmt.Errorf("error scanning equb schedule status: %w", err)
			}
			if status != q.pending {
				settled = true
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return false, fmt.Errorf("error iterating equb schedule: %w", err)
		}
	}
	return settled, nil
}

func (r *PostgresEqubRepository) GetContribution(ctx context.Context, id, userID string) (*equb.Contribution, error) {
	c, err := scanContribution(r.db.QueryRowContext(ctx, contributionSelect+` WHERE c.id = $1 AND e.user_id = $2`, id, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, equb.ErrContributionNotFound
		}
		return nil, fmt.Errorf("error getting contribution by ID: %w", err)
	}
	return c, nil
}

func (r *PostgresEqubRepository) SettleContribution(ctx context.Context, id, transactionID string) error {
	query := `UPDATE equb_contributions
               SET status = $1, transaction_id = $2
               WHERE id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, equb.ContributionPaid, transactionID, id, equb.ContributionPending)
	if err != nil {
		return fmt.Errorf("error settling contribution: %w", err)
	}
	return expectOneRow(res, equb.ErrNotPending)
}

func (r *PostgresEqubRepository) GetPayout(ctx context.Context, id, userID string) (*equb.Payout, error) {
	p, err := scanPayout(r.db.QueryRowContext(ctx, payoutSelect+` WHERE p.id = $1 AND e.user_id = $2`, id, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, equb.ErrPayoutNotFound
		}
		return nil, fmt.Errorf("error getting payout by ID: %w", err)
	}
	return p, nil
}

func (r *PostgresEqubRepository) SettlePayout(ctx context.Context, id, transactionID string) error {
	query := `UPDATE equb_payouts
               SET status = $1, transaction_id = $2
               WHERE id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, equb.PayoutReceived, transactionID, id, equb.PayoutPending)
	if err != nil {
		return fmt.Errorf("error settling payout: %w", err)
	}
	return expectOneRow(res, equb.ErrNotPending)
}

func (r *PostgresEqubRepository) ListDueContributions(ctx context.Context, userID string, dueBy time.Time) ([]*equb.Contribution, error) {
	query := contributionSelect + `
               WHERE e.user_id = $1 AND c.status = $2 AND c.due_date <= $3
               ORDER BY c.due_date ASC, c.cycle_number ASC` // Oldest first
	rows, err := r.db.QueryContext(ctx, query, userID, equb.ContributionPending, dueBy)
	if err != nil {
		return nil, fmt.Errorf("error querying due contributions: %w", err)
	}
	defer rows.Close()
	return scanContributions(rows)
}

func (r *PostgresEqubRepository) ListUsersWithDueContributions(ctx context.Context, dueBy time.Time) ([]string, error) {
	query := `SELECT DISTINCT e.user_id
               FROM equb_contributions c JOIN equbs e ON e.id = c.equb_id
               WHERE c.status = $1 AND c.due_date <= $2
               ORDER BY e.user_id`
	rows, err := r.db.QueryContext(ctx, query, equb.ContributionPending, dueBy)
	if err != nil {
		return nil, fmt.Errorf("error querying users with due contributions: %w", err)
	}
	defer rows.Close()

	userIDs := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning user id: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users with due contributions: %w", err)
	}
	return userIDs, nil
}

func (r *PostgresEqubRepository) ListUpcomingContributions(ctx context.Context, userID string, limit int) ([]*equb.Contribution, error) {
	query := contributionSelect + `
               WHERE e.user_id = $1 AND c.status = $2
               ORDER BY c.due_date ASC
               LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, userID, equb.ContributionPending, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying upcoming contributions: %w", err)
	}
	defer rows.Close()
	return scanContributions(rows)
}

func scanEqub(row rowScanner) (*equb.Equb, error) {
	e := &equb.Equb{}
	err := row.Scan(&e.ID, &e.UserID, &e.Name, &e.ContributionAmount, &e.Frequency, &e.StartDate, &e.TotalCycles, &e.PayoutCycle, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func scanContribution(row rowScanner) (*equb.Contribution, error) {
	c := &equb.Contribution{}
	err := row.Scan(&c.ID, &c.EqubID, &c.CycleNumber, &c.Amount, &c.DueDate, &c.Status, &c.TransactionID, &c.CreatedAt, &c.EqubName, &c.UserID)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Helper to scan multiple rows
func scanContributions(rows *sql.Rows) ([]*equb.Contribution, error) {
	contributions := make([]*equb.Contribution, 0)
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning contribution row: %w", err)
		}
		contributions = append(contributions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contribution rows: %w", err)
	}
	return contributions, nil
}

func scanPayout(row rowScanner) (*equb.Payout, error) {
	p := &equb.Payout{}
	err := row.Scan(&p.ID, &p.EqubID, &p.Amount, &p.DueDate, &p.Status, &p.TransactionID, &p.CreatedAt, &p.EqubName, &p.UserID)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func expectOneRow(res sql.Result, none error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 0 {
		return none
	}
	return nil
}

var _ equb.Repository = (*PostgresEqubRepository)(nil)
