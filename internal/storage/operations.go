package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/the-ledger-must-settle/internal/common"
	"github.com/Veraticus/the-ledger-must-settle/internal/model"
	"github.com/Veraticus/the-ledger-must-settle/internal/service"
)

// SaveOperation appends a terminal operation snapshot to the ledger.
func (s *SQLiteStorage) SaveOperation(ctx context.Context, record *model.OperationRecord) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if record.Key == "" {
		return fmt.Errorf("record key cannot be empty")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operations (op_key, kind, asset_id, status, tx_id, error, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(record.Key),
		string(record.Kind),
		record.AssetID,
		string(record.Status),
		record.TxID,
		record.Err,
		record.StartedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save operation: %w", err)
	}
	return nil
}

// GetOperations returns recorded operations, newest first.
func (s *SQLiteStorage) GetOperations(ctx context.Context, filter service.OperationFilter) ([]model.OperationRecord, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT op_key, kind, asset_id, status, tx_id, error, started_at, updated_at
		FROM operations`)

	var conditions []string
	var args []any

	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.Since != nil {
		conditions = append(conditions, "recorded_at >= ?")
		args = append(args, *filter.Since)
	}
	if len(conditions) > 0 {
		query.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}

	query.WriteString(" ORDER BY id DESC")

	if filter.Limit > 0 {
		query.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	var records []model.OperationRecord
	for rows.Next() {
		record, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate operations: %w", err)
	}

	return records, nil
}

// GetOperationByTxID finds the recorded operation for a transaction id.
func (s *SQLiteStorage) GetOperationByTxID(ctx context.Context, txID string) (*model.OperationRecord, error) {
	if txID == "" {
		return nil, fmt.Errorf("txID cannot be empty")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT op_key, kind, asset_id, status, tx_id, error, started_at, updated_at
		FROM operations
		WHERE tx_id = ?
		ORDER BY id DESC
		LIMIT 1`, txID)

	record, err := scanOperation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: operation with tx id %s", common.ErrNotFound, txID)
		}
		return nil, err
	}

	return &record, nil
}

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanOperation(row scanner) (model.OperationRecord, error) {
	var record model.OperationRecord
	var key, kind, status string
	var txID, errMsg sql.NullString

	err := row.Scan(&key, &kind, &record.AssetID, &status, &txID, &errMsg, &record.StartedAt, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.OperationRecord{}, err
		}
		return model.OperationRecord{}, fmt.Errorf("failed to scan operation: %w", err)
	}

	record.Key = model.OperationKey(key)
	record.Kind = model.OperationKind(kind)
	record.Status = model.OperationStatus(status)
	record.TxID = txID.String
	record.Err = errMsg.String

	return record, nil
}
