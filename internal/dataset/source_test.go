package dataset

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSource_Open(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.csv")
	if err := os.WriteFile(path, []byte("offence,area\n"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	rc, err := FileSource{}.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if string(data) != "offence,area\n" {
		t.Errorf("read %q, want the fixture content", data)
	}
}

func TestFileSource_Open_Missing(t *testing.T) {
	_, err := FileSource{}.Open(context.Background(), filepath.Join(t.TempDir(), "absent.csv"))
	if err == nil {
		t.Fatal("Open() succeeded for a missing file")
	}
}

func TestSplitS3URI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{"s3://datasets/records/2024.csv", "datasets", "records/2024.csv", false},
		{"s3://datasets", "", "", true},
		{"s3://datasets/", "", "", true},
		{"s3:///key", "", "", true},
	}

	for _, tt := range tests {
		bucket, key, err := splitS3URI(tt.uri)
		if tt.wantErr {
			if err == nil {
				t.Errorf("splitS3URI(%q) succeeded, want error", tt.uri)
			}
			continue
		}
		if err != nil {
			t.Errorf("splitS3URI(%q) failed: %v", tt.uri, err)
			continue
		}
		if bucket != tt.wantBucket || key != tt.wantKey {
			t.Errorf("splitS3URI(%q) = %q/%q, want %q/%q", tt.uri, bucket, key, tt.wantBucket, tt.wantKey)
		}
	}
}
