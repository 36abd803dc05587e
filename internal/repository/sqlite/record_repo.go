package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kesrow/constable/internal/domain"
	"github.com/kesrow/constable/internal/repository"
)

// recordRepository implements repository.RecordRepository and
// repository.RecordWriter for SQLite.
type recordRepository struct {
	db *DB
}

// NewRecordRepository creates a new SQLite record repository.
func NewRecordRepository(db *DB) *recordRepository {
	return &recordRepository{db: db}
}

// Search returns records matching the plan plus the total match count.
// Dimensions are ANDed together; values within a dimension are ORed via IN.
// Results are ordered by record ID ascending so repeated identical queries
// paginate without skipping or duplicating rows.
func (r *recordRepository) Search(ctx context.Context, plan *domain.QueryPlan) ([]*domain.Record, int64, error) {
	where, args := buildWhere(plan)

	var total int64
	countQuery := `SELECT COUNT(*) FROM records` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count records: %w", err)
	}

	query := `
		SELECT id, offence, area, age, gender, year, payload
		FROM records` + where + `
		ORDER BY id ASC
		LIMIT ? OFFSET ?
	`
	pageArgs := append(append([]interface{}{}, args...), plan.Limit, plan.Offset)

	rows, err := r.db.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []*domain.Record
	for rows.Next() {
		record := &domain.Record{}
		var payload sql.NullString

		err := rows.Scan(
			&record.ID,
			&record.Offence,
			&record.Area,
			&record.Age,
			&record.Gender,
			&record.Year,
			&payload,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan record: %w", err)
		}

		if payload.Valid && payload.String != "" {
			if err := json.Unmarshal([]byte(payload.String), &record.Payload); err != nil {
				return nil, 0, fmt.Errorf("failed to decode record payload: %w", err)
			}
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating records: %w", err)
	}

	return records, total, nil
}

// buildWhere compiles the plan's filters into a WHERE clause.
// Constrained dimensions are visited in canonical order so the generated
// SQL is identical for identical plans.
func buildWhere(plan *domain.QueryPlan) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	for _, dim := range plan.ConstrainedDimensions() {
		values := plan.Filters[dim]

		if dim == domain.DimensionYear {
			years := make([]interface{}, 0, len(values))
			for _, v := range values {
				if y, err := strconv.Atoi(v); err == nil {
					years = append(years, y)
				}
			}
			if len(years) == 0 {
				// Year tokens that aren't numeric can't match the
				// integer column; the constraint still has to hold.
				clauses = append(clauses, "1 = 0")
				continue
			}
			clauses = append(clauses, "year IN ("+placeholders(len(years))+")")
			args = append(args, years...)
			continue
		}

		clauses = append(clauses, string(dim)+" IN ("+placeholders(len(values))+")")
		for _, v := range values {
			args = append(args, v)
		}
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// placeholders returns n comma-separated ? placeholders.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// InsertBatch inserts records in a single transaction. Importer-side only;
// the search path never writes records.
func (r *recordRepository) InsertBatch(ctx context.Context, records []*domain.Record) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO records (offence, area, age, gender, year, payload)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, record := range records {
			var payload interface{}
			if record.Payload != nil {
				data, err := json.Marshal(record.Payload)
				if err != nil {
					return fmt.Errorf("failed to encode record payload: %w", err)
				}
				payload = string(data)
			}

			result, err := stmt.ExecContext(ctx,
				record.Offence,
				record.Area,
				record.Age,
				record.Gender,
				record.Year,
				payload,
			)
			if err != nil {
				return fmt.Errorf("failed to insert record: %w", err)
			}

			if id, err := result.LastInsertId(); err == nil {
				record.ID = id
			}
		}

		return nil
	})
}

// Ensure recordRepository implements the repository interfaces.
var (
	_ repository.RecordRepository = (*recordRepository)(nil)
	_ repository.RecordWriter     = (*recordRepository)(nil)
)
