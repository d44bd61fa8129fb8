// Package repo package repo
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/yunseong-dev/madang/internal/usecases/entity"
	"github.com/yunseong-dev/madang/internal/usecases/modules/pgclient"
)

type BasicRepo interface {
	InsertInstrument(ctx context.Context, t []*entity.Instrument) error
	SelectInstrumentByCode(ctx context.Context, code string) (*entity.Instrument, error)
	SelectAllInstrument(ctx context.Context) ([]*entity.Instrument, error)
	UpdateInstrumentLastClose(ctx context.Context, code string, lastClose int64, closeDate time.Time) error
}

type basic struct {
	pgclient.PGClient
}

func NewBasic(pg pgclient.PGClient) BasicRepo {
	return &basic{pg}
}

// CREATE TABLE basic_instrument(
//     "code" varchar PRIMARY KEY,
//     "name" varchar NOT NULL,
//     "market" varchar NOT NULL,
//     "last_close" DECIMAL NOT NULL,
//     "last_close_date" timestamptz NOT NULL,
//     "update_date" timestamptz NOT NULL
// );

func (r *basic) InsertInstrument(ctx context.Context, t []*entity.Instrument) error {
	if len(t) == 0 {
		return nil
	}
	builder := r.Builder().
		Insert(tableNameBasicInstrument).
		Columns(
			"code", "name", "market", "last_close", "last_close_date", "update_date",
		)

	for _, item := range t {
		closeDate, err := time.ParseInLocation(entity.ShortSlashTimeLayout, item.LastCloseDate, time.Local)
		if err != nil {
			return err
		}
		updateTime, err := time.ParseInLocation(entity.ShortSlashTimeLayout, item.UpdateDate, time.Local)
		if err != nil {
			return err
		}
		builder = builder.Values(
			item.Code,
			item.Name,
			item.Market,
			item.LastClose,
			closeDate,
			updateTime,
		)
	}
	builder = builder.Suffix(`ON CONFLICT (code) DO UPDATE SET
            name = EXCLUDED.name,
            market = EXCLUDED.market,
            last_close = EXCLUDED.last_close,
            last_close_date = EXCLUDED.last_close_date,
            update_date = EXCLUDED.update_date
        `)

	sql, args, err := builder.ToSql()
	if err != nil {
		return err
	}

	tx, err := r.Pool().Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	if _, err = tx.Exec(ctx, sql, args...); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *basic) SelectInstrumentByCode(ctx context.Context, code string) (*entity.Instrument, error) {
	builder := r.Builder().
		Select(
			"code", "name", "market", "last_close", "last_close_date", "update_date",
		).
		From(tableNameBasicInstrument).
		Where(squirrel.Eq{"code": code})

	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	tx, err := r.Pool().Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Rollback(ctx, tx)

	row := tx.QueryRow(ctx, sql, args...)
	var item entity.Instrument
	var closeDate, updateDate time.Time
	if err = row.Scan(
		&item.Code,
		&item.Name,
		&item.Market,
		&item.LastClose,
		&closeDate,
		&updateDate,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInstrumentNotFound
		}
		return nil, err
	}
	item.LastCloseDate = closeDate.Format(entity.ShortSlashTimeLayout)
	item.UpdateDate = updateDate.Format(entity.ShortSlashTimeLayout)
	return &item, tx.Commit(ctx)
}

func (r *basic) SelectAllInstrument(ctx context.Context) ([]*entity.Instrument, error) {
	builder := r.Builder().
		Select(
			"code", "name", "market", "last_close", "last_close_date", "update_date",
		).
		From(tableNameBasicInstrument).
		OrderBy("code ASC")

	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	tx, err := r.Pool().Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Rollback(ctx, tx)

	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instruments []*entity.Instrument
	for rows.Next() {
		var item entity.Instrument
		var closeDate, updateDate time.Time
		if err = rows.Scan(
			&item.Code,
			&item.Name,
			&item.Market,
			&item.LastClose,
			&closeDate,
			&updateDate,
		); err != nil {
			return nil, err
		}
		item.LastCloseDate = closeDate.Format(entity.ShortSlashTimeLayout)
		item.UpdateDate = updateDate.Format(entity.ShortSlashTimeLayout)
		instruments = append(instruments, &item)
	}
	return instruments, tx.Commit(ctx)
}

func (r *basic) UpdateInstrumentLastClose(ctx context.Context, code string, lastClose int64, closeDate time.Time) error {
	builder := r.Builder().
		Update(tableNameBasicInstrument).
		Set("last_close", lastClose).
		Set("last_close_date", closeDate).
		Set("update_date", time.Now()).
		Where(squirrel.Eq{"code": code})

	sql, args, err := builder.ToSql()
	if err != nil {
		return err
	}

	tx, err := r.Pool().Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	if _, err = tx.Exec(ctx, sql, args...); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
