package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kesrow/constable/internal/lock"
	"github.com/kesrow/constable/internal/vocab"
)

func newTestDatasetService(t *testing.T, writer *mockRecordWriter, locker lock.Locker) *DatasetService {
	t.Helper()

	registry, err := vocab.New(testVocabulary())
	if err != nil {
		t.Fatalf("failed to build vocabulary registry: %v", err)
	}
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	return NewDatasetService(writer, registry, locker, zerolog.Nop())
}

func TestDatasetService_Import(t *testing.T) {
	csv := strings.Join([]string{
		"offence,area,age,gender,year,source_ref",
		"theft,north,18-34,female,2020,A-100",
		"assault,south,35-54,male,2021,A-101",
		"burglary,east,0-17,unknown,2019,A-102",
	}, "\n")

	writer := &mockRecordWriter{}
	svc := newTestDatasetService(t, writer, nil)

	stats, err := svc.Import(context.Background(), strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if stats.Imported != 3 || stats.Skipped != 0 {
		t.Fatalf("Import() stats = %+v, want 3 imported, 0 skipped", stats)
	}
	if len(writer.inserted) != 3 {
		t.Fatalf("writer received %d records, want 3", len(writer.inserted))
	}

	first := writer.inserted[0]
	if first.Offence != "theft" || first.Area != "north" || first.Year != 2020 {
		t.Errorf("first record = %+v, want theft/north/2020", first)
	}
	if got := first.Payload["source_ref"]; got != "A-100" {
		t.Errorf("payload source_ref = %v, want A-100", got)
	}
}

func TestDatasetService_Import_SkipsInvalidRows(t *testing.T) {
	csv := strings.Join([]string{
		"offence,area,age,gender,year",
		"theft,north,18-34,female,2020",
		"arson,north,18-34,female,2020",
		"theft,north,18-34,female,not-a-year",
		"theft,north,18-34,female",
	}, "\n")

	writer := &mockRecordWriter{}
	svc := newTestDatasetService(t, writer, nil)

	stats, err := svc.Import(context.Background(), strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if stats.Imported != 1 {
		t.Errorf("Import() imported = %d, want 1", stats.Imported)
	}
	if stats.Skipped != 3 {
		t.Errorf("Import() skipped = %d, want 3", stats.Skipped)
	}
}

func TestDatasetService_Import_MissingColumn(t *testing.T) {
	csv := "offence,area,age,gender\ntheft,north,18-34,female\n"

	svc := newTestDatasetService(t, &mockRecordWriter{}, nil)

	_, err := svc.Import(context.Background(), strings.NewReader(csv))
	if err == nil {
		t.Fatal("Import() succeeded with a header missing the year column")
	}
	if !strings.Contains(err.Error(), "year") {
		t.Errorf("error %q does not name the missing column", err)
	}
}

func TestDatasetService_Import_LockHeld(t *testing.T) {
	locker := lock.NewMemoryLocker()
	acquired, err := locker.Acquire(context.Background(), lock.Keys.DatasetImport(), time.Minute)
	if err != nil || !acquired {
		t.Fatalf("failed to pre-acquire import lock: acquired=%v err=%v", acquired, err)
	}

	svc := newTestDatasetService(t, &mockRecordWriter{}, locker)

	_, err = svc.Import(context.Background(), strings.NewReader("offence,area,age,gender,year\n"))
	if !errors.Is(err, ErrImportInProgress) {
		t.Fatalf("Import() error = %v, want ErrImportInProgress", err)
	}
}

func TestDatasetService_Import_ReleasesLock(t *testing.T) {
	locker := lock.NewMemoryLocker()
	svc := newTestDatasetService(t, &mockRecordWriter{}, locker)

	csv := "offence,area,age,gender,year\ntheft,north,18-34,female,2020\n"
	if _, err := svc.Import(context.Background(), strings.NewReader(csv)); err != nil {
		t.Fatalf("Import() failed: %v", err)
	}

	// A second import must be able to take the lock again.
	if _, err := svc.Import(context.Background(), strings.NewReader(csv)); err != nil {
		t.Fatalf("second Import() failed: %v", err)
	}
}
