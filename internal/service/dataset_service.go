package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kesrow/constable/internal/domain"
	"github.com/kesrow/constable/internal/lock"
	"github.com/kesrow/constable/internal/repository"
	"github.com/kesrow/constable/internal/vocab"
)

// importLockTTL bounds how long a crashed import can block the next one.
const importLockTTL = 15 * time.Minute

// importBatchSize is the number of records inserted per transaction.
const importBatchSize = 500

// DatasetService imports record datasets from CSV into the record store.
// Imports are guarded by a lock so two concurrent runs cannot duplicate
// rows.
type DatasetService struct {
	writer   repository.RecordWriter
	registry *vocab.Registry
	locker   lock.Locker
	logger   zerolog.Logger
}

// NewDatasetService creates a new DatasetService.
func NewDatasetService(writer repository.RecordWriter, registry *vocab.Registry, locker lock.Locker, logger zerolog.Logger) *DatasetService {
	return &DatasetService{
		writer:   writer,
		registry: registry,
		locker:   locker,
		logger:   logger.With().Str("service", "dataset").Logger(),
	}
}

// ImportStats summarizes a completed import.
type ImportStats struct {
	Imported int64
	Skipped  int64
}

// Import reads a CSV dataset and inserts its rows into the record store.
//
// The header must contain the five dimension columns (offence, area, age,
// gender, year); any additional columns are preserved in the record payload.
// Rows whose dimension values are not in the configured vocabulary are
// skipped and counted, not fatal: real-world extracts routinely carry a few
// malformed lines and one bad row should not abort a large import.
func (s *DatasetService) Import(ctx context.Context, r io.Reader) (*ImportStats, error) {
	acquired, err := s.locker.Acquire(ctx, lock.Keys.DatasetImport(), importLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire import lock: %w", err)
	}
	if !acquired {
		return nil, ErrImportInProgress
	}
	defer func() {
		if _, err := s.locker.Release(context.WithoutCancel(ctx), lock.Keys.DatasetImport()); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to release import lock")
		}
	}()

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	// Ragged rows are handled (and skipped) by parseRow, not treated as a
	// fatal read error.
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset header: %w", err)
	}
	columns, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	stats := &ImportStats{}
	batch := make([]*domain.Record, 0, importBatchSize)
	line := 1

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read dataset row: %w", err)
		}
		line++

		record, err := s.parseRow(columns, header, row)
		if err != nil {
			stats.Skipped++
			s.logger.Debug().
				Int("line", line).
				Err(err).
				Msg("Skipping dataset row")
			continue
		}

		batch = append(batch, record)
		if len(batch) >= importBatchSize {
			if err := s.flush(ctx, batch, stats); err != nil {
				return nil, err
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := s.flush(ctx, batch, stats); err != nil {
			return nil, err
		}
	}

	s.logger.Info().
		Int64("imported", stats.Imported).
		Int64("skipped", stats.Skipped).
		Msg("Dataset import complete")

	return stats, nil
}

func (s *DatasetService) flush(ctx context.Context, batch []*domain.Record, stats *ImportStats) error {
	if err := s.writer.InsertBatch(ctx, batch); err != nil {
		return fmt.Errorf("failed to insert record batch: %w", err)
	}
	stats.Imported += int64(len(batch))
	return nil
}

// columnIndexes locates the five dimension columns within a CSV header.
type columnIndexes struct {
	offence int
	area    int
	age     int
	gender  int
	year    int
	// extras maps payload column index to its header name.
	extras map[int]string
}

func mapColumns(header []string) (*columnIndexes, error) {
	cols := &columnIndexes{
		offence: -1, area: -1, age: -1, gender: -1, year: -1,
		extras: make(map[int]string),
	}

	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case string(domain.DimensionOffence):
			cols.offence = i
		case string(domain.DimensionArea):
			cols.area = i
		case string(domain.DimensionAge):
			cols.age = i
		case string(domain.DimensionGender):
			cols.gender = i
		case string(domain.DimensionYear):
			cols.year = i
		default:
			cols.extras[i] = strings.TrimSpace(name)
		}
	}

	var missing []string
	for _, dim := range domain.Dimensions() {
		idx := cols.index(dim)
		if idx < 0 {
			missing = append(missing, string(dim))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("dataset header is missing required columns: %s", strings.Join(missing, ", "))
	}

	return cols, nil
}

func (c *columnIndexes) index(dim domain.Dimension) int {
	switch dim {
	case domain.DimensionOffence:
		return c.offence
	case domain.DimensionArea:
		return c.area
	case domain.DimensionAge:
		return c.age
	case domain.DimensionGender:
		return c.gender
	case domain.DimensionYear:
		return c.year
	}
	return -1
}

func (s *DatasetService) parseRow(cols *columnIndexes, header, row []string) (*domain.Record, error) {
	if len(row) != len(header) {
		return nil, fmt.Errorf("row has %d fields, header has %d", len(row), len(header))
	}

	record := &domain.Record{
		Offence: strings.TrimSpace(row[cols.offence]),
		Area:    strings.TrimSpace(row[cols.area]),
		Age:     strings.TrimSpace(row[cols.age]),
		Gender:  strings.TrimSpace(row[cols.gender]),
	}

	yearToken := strings.TrimSpace(row[cols.year])
	year, err := strconv.Atoi(yearToken)
	if err != nil {
		return nil, fmt.Errorf("year %q is not numeric", yearToken)
	}
	record.Year = year

	for _, dim := range domain.Dimensions() {
		value := record.DimensionValue(dim)
		if !s.registry.IsValid(dim, value) {
			return nil, fmt.Errorf("value %q is not in the %s vocabulary", value, dim)
		}
	}

	if len(cols.extras) > 0 {
		record.Payload = make(map[string]any, len(cols.extras))
		for i, name := range cols.extras {
			record.Payload[name] = strings.TrimSpace(row[i])
		}
	}

	return record, nil
}
