package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/kesrow/constable/internal/domain"
	"github.com/kesrow/constable/internal/repository"
)

// recordRepository implements repository.RecordRepository and
// repository.RecordWriter for PostgreSQL.
type recordRepository struct {
	db *DB
}

// NewRecordRepository creates a new PostgreSQL record repository.
func NewRecordRepository(db *DB) *recordRepository {
	return &recordRepository{db: db}
}

// Search returns records matching the plan plus the total match count.
// Same AND/OR composition as the SQLite backend, with $n placeholders.
func (r *recordRepository) Search(ctx context.Context, plan *domain.QueryPlan) ([]*domain.Record, int64, error) {
	where, args := buildWhere(plan)

	var total int64
	countQuery := `SELECT COUNT(*) FROM records` + where
	if err := r.db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count records: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, offence, area, age, gender, year, payload
		FROM records%s
		ORDER BY id ASC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	pageArgs := append(append([]interface{}{}, args...), plan.Limit, plan.Offset)

	rows, err := r.db.Pool.Query(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []*domain.Record
	for rows.Next() {
		record := &domain.Record{}
		var payload []byte

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

		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &record.Payload); err != nil {
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

// buildWhere compiles the plan's filters into a WHERE clause with $n
// placeholders. Dimensions are visited in canonical order so identical
// plans generate identical SQL.
func buildWhere(plan *domain.QueryPlan) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	for _, dim := range plan.ConstrainedDimensions() {
		values := plan.Filters[dim]

		if dim == domain.DimensionYear {
			years := make([]int, 0, len(values))
			for _, v := range values {
				if y, err := strconv.Atoi(v); err == nil {
					years = append(years, y)
				}
			}
			if len(years) == 0 {
				clauses = append(clauses, "FALSE")
				continue
			}
			args = append(args, years)
			clauses = append(clauses, fmt.Sprintf("year = ANY($%d)", len(args)))
			continue
		}

		args = append(args, values)
		clauses = append(clauses, fmt.Sprintf("%s = ANY($%d)", dim, len(args)))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// InsertBatch inserts records in a single transaction using a batch.
func (r *recordRepository) InsertBatch(ctx context.Context, records []*domain.Record) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}

		for _, record := range records {
			var payload []byte
			if record.Payload != nil {
				data, err := json.Marshal(record.Payload)
				if err != nil {
					return fmt.Errorf("failed to encode record payload: %w", err)
				}
				payload = data
			}

			batch.Queue(`
				INSERT INTO records (offence, area, age, gender, year, payload)
				VALUES ($1, $2, $3, $4, $5, $6)
			`,
				record.Offence,
				record.Area,
				record.Age,
				record.Gender,
				record.Year,
				payload,
			)
		}

		results := tx.SendBatch(ctx, batch)
		defer results.Close()

		for range records {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("failed to insert record: %w", err)
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
