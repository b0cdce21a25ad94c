package derivpostgres

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/wb-go/wbf/dbpg"

	"github.com/imagemill/imagemill/internal/model"
)

type PostgresRepo struct {
	DB *dbpg.DB
}

func (p PostgresRepo) Create(ctx context.Context, rec *model.DerivationRecord) error {
	query := `INSERT INTO derivations (derivation_uid, original_name, master_path, thumbnail_path, altformat_path, remote_id, savings_percent, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	return p.DB.QueryRowContext(ctx, query,
		rec.UID,
		rec.OriginalName,
		rec.MasterPath,
		rec.ThumbnailPath,
		rec.AltFormatPath,
		rec.RemoteID,
		rec.SavingsPercent,
		rec.CreatedAt,
	).Err()
}

func (p PostgresRepo) Get(ctx context.Context, id string) (*model.DerivationRecord, error) {
	query := `SELECT derivation_uid, original_name, master_path, thumbnail_path, altformat_path, remote_id, savings_percent, created_at
	FROM derivations
	WHERE derivation_uid = $1`
	var rec model.DerivationRecord

	err := p.DB.QueryRowContext(ctx, query, id).Scan(&rec.UID,
		&rec.OriginalName,
		&rec.MasterPath,
		&rec.ThumbnailPath,
		&rec.AltFormatPath,
		&rec.RemoteID,
		&rec.SavingsPercent,
		&rec.CreatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrRecordNotFound
		default:
			return nil, err
		}
	}
	return &rec, nil
}

func (p PostgresRepo) GetList(ctx context.Context, req *model.ListRequest) ([]model.DerivationRecord, error) {
	query := `SELECT derivation_uid, original_name, remote_id, savings_percent, created_at
	FROM derivations
	ORDER BY created_at DESC
	LIMIT $1
	OFFSET $2`

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

	records := make([]model.DerivationRecord, 0, req.Limit)
	for rows.Next() {
		var rec model.DerivationRecord
		if err := rows.Scan(&rec.UID,
			&rec.OriginalName,
			&rec.RemoteID,
			&rec.SavingsPercent,
			&rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return records, nil
}

func (p PostgresRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM derivations
	WHERE derivation_uid = $1`

	row := p.DB.QueryRowContext(ctx, query, id)
	if row.Err() != nil {
		switch {
		case errors.Is(row.Err(), sql.ErrNoRows):
			return model.ErrRecordNotFound
		default:
			return row.Err()
		}
	}
	return nil
}
