// Package removalpg keeps the history of background removals in Postgres
package removalpg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/UnendingLoop/BgRemover/internal/model"
	"github.com/wb-go/wbf/dbpg"
)

type PostgresRepo struct {
	DB *dbpg.DB
}

const columns = `uid, source_ref, tolerance, status, fail_reason, result_ref, background, erased, notes, created_at, updated_at`

func (p PostgresRepo) Create(ctx context.Context, r *model.Removal) error {
	query := `INSERT INTO removals (uid, source_ref, tolerance, status, notes, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := p.DB.Master.ExecContext(ctx, query, r.UID, r.SourceRef, r.Tolerance, r.Status, r.Notes, r.CreatedAt, r.CreatedAt)
	return err
}

func (p PostgresRepo) Get(ctx context.Context, id string) (*model.Removal, error) {
	query := `SELECT ` + columns + ` FROM removals WHERE uid = $1`

	r, err := scanRemoval(p.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrRemovalNotFound
		}
		return nil, err
	}
	return r, nil
}

func (p PostgresRepo) GetList(ctx context.Context, req *model.ListRequest) ([]model.Removal, error) {
	// Sort и Order уже провалидированы сервисом
	query := fmt.Sprintf(`SELECT %s
	FROM removals
	ORDER BY %s %s
	LIMIT $1
	OFFSET $2`, columns, req.Sort, req.Order)

	offset := (req.Page - 1) * req.Limit

	rows, err := p.DB.QueryContext(ctx, query, req.Limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	list := make([]model.Removal, 0, req.Limit)
	for rows.Next() {
		r, err := scanRemoval(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (p PostgresRepo) Delete(ctx context.Context, id string) error {
	res, err := p.DB.Master.ExecContext(ctx, `DELETE FROM removals WHERE uid = $1`, id)
	return affectedOne(res, err)
}

func (p PostgresRepo) UpdateStatus(ctx context.Context, id string, newStat model.Status) error {
	query := `UPDATE removals SET status = $1, updated_at = now() WHERE uid = $2`
	res, err := p.DB.Master.ExecContext(ctx, query, newStat, id)
	return affectedOne(res, err)
}

// SaveResult stores the final state of a removal: done with a result, or failed with a reason
func (p PostgresRepo) SaveResult(ctx context.Context, r *model.Removal) error {
	query := `UPDATE removals
	SET status = $1, fail_reason = $2, result_ref = $3, background = $4, erased = $5, notes = $6, updated_at = $7
	WHERE uid = $8`
	res, err := p.DB.Master.ExecContext(ctx, query,
		r.Status, r.FailReason, r.ResultRef, r.Background, r.Erased, r.Notes, r.UpdatedAt, r.UID)
	return affectedOne(res, err)
}

// FailStale marks removals stuck in created/in_progress for longer than olderThan as failed
func (p PostgresRepo) FailStale(ctx context.Context, olderThan time.Duration, reason string, limit int) ([]string, error) {
	query := `UPDATE removals
	SET status = $1, fail_reason = $2, updated_at = now()
	WHERE uid IN (
		SELECT uid FROM removals
		WHERE status IN ($3, $4)
		AND updated_at < now() - make_interval(secs => $5)
		LIMIT $6
	)
	RETURNING uid`

	rows, err := p.DB.QueryContext(ctx, query,
		model.StatusFailed, reason, model.StatusCreated, model.StatusInProgress, olderThan.Seconds(), limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	failed := make([]string, 0, limit)
	for rows.Next() {
		uid := ""
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		failed = append(failed, uid)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return failed, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRemoval(s scanner) (*model.Removal, error) {
	var (
		r          model.Removal
		failReason sql.NullString
		resultRef  sql.NullString
		background sql.NullString
		erased     sql.NullInt64
	)

	if err := s.Scan(&r.UID,
		&r.SourceRef,
		&r.Tolerance,
		&r.Status,
		&failReason,
		&resultRef,
		&background,
		&erased,
		&r.Notes,
		&r.CreatedAt,
		&r.UpdatedAt); err != nil {
		return nil, err
	}

	r.FailReason = failReason.String
	r.ResultRef = resultRef.String
	r.Background = background.String
	r.Erased = int(erased.Int64)
	return &r, nil
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrRemovalNotFound
	}
	return nil
}
