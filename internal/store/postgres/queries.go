package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alfredjeanlab/vesting/internal/model"
	"github.com/alfredjeanlab/vesting/internal/store"
)

// scheduleColumns is the column list used for SELECT statements on vesting_schedules.
const scheduleColumns = `beneficiary, total_amount, start_time, vesting_duration,
	released_amount, is_active, created_at, updated_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func scanSchedule(row scannable) (*model.Schedule, error) {
	var s model.Schedule
	var beneficiary string
	err := row.Scan(
		&beneficiary,
		&s.TotalAmount,
		&s.StartTime,
		&s.VestingDuration,
		&s.ReleasedAmount,
		&s.IsActive,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Beneficiary = model.Address(beneficiary)
	return &s, nil
}

func queryGetSchedule(ctx context.Context, db executor, beneficiary model.Address) (*model.Schedule, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM vesting_schedules WHERE beneficiary = $1`,
		beneficiary.String())
	s, err := scanSchedule(row)
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// queryPutSchedule upserts a schedule. created_at is kept from the first
// insert unless the caller supplies a newer one (schedule replacement).
func queryPutSchedule(ctx context.Context, db executor, s *model.Schedule) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO vesting_schedules (
			beneficiary, total_amount, start_time, vesting_duration,
			released_amount, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (beneficiary) DO UPDATE SET
			total_amount = $2,
			start_time = $3,
			vesting_duration = $4,
			released_amount = $5,
			is_active = $6,
			created_at = $7,
			updated_at = NOW()
		RETURNING updated_at`,
		s.Beneficiary.String(),
		s.TotalAmount,
		s.StartTime,
		s.VestingDuration,
		s.ReleasedAmount,
		s.IsActive,
		s.CreatedAt,
	).Scan(&s.UpdatedAt)
}

func queryListSchedules(ctx context.Context, db executor, filter model.ScheduleFilter) ([]*model.Schedule, error) {
	var args []any
	argIdx := 0
	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	q := `SELECT ` + scheduleColumns + ` FROM vesting_schedules`
	if filter.ActiveOnly {
		q += ` WHERE is_active`
	}
	q += ` ORDER BY created_at ASC, beneficiary ASC`
	if filter.Limit > 0 {
		q += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		q += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var out []*model.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedules: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan schedules: %w", err)
	}
	return out, nil
}

func scanAgreement(row scannable) (*model.Agreement, error) {
	var a model.Agreement
	var signer string
	if err := row.Scan(&signer, &a.IPFSHash, &a.Timestamp, &a.IsSigned); err != nil {
		return nil, err
	}
	a.Signer = model.Address(signer)
	return &a, nil
}

func queryGetAgreement(ctx context.Context, db executor, signer model.Address) (*model.Agreement, error) {
	row := db.QueryRowContext(ctx,
		`SELECT signer, ipfs_hash, signed_at, is_signed FROM agreements WHERE signer = $1`,
		signer.String())
	a, err := scanAgreement(row)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func queryPutAgreement(ctx context.Context, db executor, a *model.Agreement) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO agreements (signer, ipfs_hash, signed_at, is_signed)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (signer) DO UPDATE SET ipfs_hash = $2, signed_at = $3, is_signed = $4`,
		a.Signer.String(), a.IPFSHash, a.Timestamp, a.IsSigned,
	)
	return err
}

func queryListAgreements(ctx context.Context, db executor) ([]*model.Agreement, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT signer, ipfs_hash, signed_at, is_signed FROM agreements ORDER BY signer ASC`)
	if err != nil {
		return nil, fmt.Errorf("list agreements: %w", err)
	}
	defer rows.Close()

	var out []*model.Agreement
	for rows.Next() {
		a, err := scanAgreement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agreements: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan agreements: %w", err)
	}
	return out, nil
}

func queryGetBalance(ctx context.Context, db executor, addr model.Address) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := db.QueryRowContext(ctx,
		`SELECT amount FROM balances WHERE address = $1`, addr.String()).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// querySetBalance writes the balance for addr. A zero balance removes the row.
func querySetBalance(ctx context.Context, db executor, addr model.Address, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("set balance %s: negative amount %s", addr, amount)
	}
	if amount.IsZero() {
		_, err := db.ExecContext(ctx, `DELETE FROM balances WHERE address = $1`, addr.String())
		return err
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO balances (address, amount) VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE SET amount = $2`,
		addr.String(), amount,
	)
	return err
}

func queryListBalances(ctx context.Context, db executor) ([]*model.Balance, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT address, amount FROM balances WHERE amount > 0 ORDER BY address ASC`)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	defer rows.Close()

	var out []*model.Balance
	for rows.Next() {
		var b model.Balance
		var addr string
		if err := rows.Scan(&addr, &b.Amount); err != nil {
			return nil, fmt.Errorf("scan balances: %w", err)
		}
		b.Address = model.Address(addr)
		out = append(out, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan balances: %w", err)
	}
	return out, nil
}

func queryTotalSupply(ctx context.Context, db executor) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM balances`).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("total supply: %w", err)
	}
	return total, nil
}

func queryGetAllowance(ctx context.Context, db executor, owner, spender model.Address) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := db.QueryRowContext(ctx,
		`SELECT amount FROM allowances WHERE owner = $1 AND spender = $2`,
		owner.String(), spender.String()).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

func querySetAllowance(ctx context.Context, db executor, owner, spender model.Address, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("set allowance %s->%s: negative amount %s", owner, spender, amount)
	}
	if amount.IsZero() {
		_, err := db.ExecContext(ctx,
			`DELETE FROM allowances WHERE owner = $1 AND spender = $2`,
			owner.String(), spender.String())
		return err
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO allowances (owner, spender, amount) VALUES ($1, $2, $3)
		ON CONFLICT (owner, spender) DO UPDATE SET amount = $3`,
		owner.String(), spender.String(), amount,
	)
	return err
}

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO events (topic, subject, actor, op_id, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		e.Topic, e.Subject.String(), e.Actor.String(), e.OpID, []byte(e.Payload),
	).Scan(&e.ID, &e.CreatedAt)
}

func queryListEvents(ctx context.Context, db executor, filter model.EventFilter) ([]*model.Event, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if len(filter.Topics) > 0 {
		placeholders := make([]string, len(filter.Topics))
		for i, t := range filter.Topics {
			placeholders[i] = nextArg()
			args = append(args, t)
		}
		whereClauses = append(whereClauses, "topic IN ("+strings.Join(placeholders, ", ")+")")
	}

	if filter.Subject != "" {
		whereClauses = append(whereClauses, "subject = "+nextArg())
		args = append(args, filter.Subject.String())
	}

	if filter.AfterID > 0 {
		whereClauses = append(whereClauses, "id > "+nextArg())
		args = append(args, filter.AfterID)
	}

	q := `SELECT id, topic, subject, actor, op_id, payload, created_at FROM events`
	if len(whereClauses) > 0 {
		q += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	q += " ORDER BY id ASC"
	if filter.Limit > 0 {
		q += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []*model.Event
	for rows.Next() {
		var (
			e                    model.Event
			subject, actor, opID string
			payload              []byte
		)
		if err := rows.Scan(&e.ID, &e.Topic, &subject, &actor, &opID, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan events: %w", err)
		}
		e.Subject = model.Address(subject)
		e.Actor = model.Address(actor)
		e.OpID = opID
		e.Payload = payload
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return out, nil
}
