package repository

import (
	"fmt"
	"testing"

	"go.uber.org/zap"

	"anonbox/internal/models"
)

func TestAppendAndCountToday(t *testing.T) {
	repo := NewSubmissionRepository(setupTestDB(t), 1000, zap.NewNop())

	rec := &models.Submission{UserID: 1, Username: "alice", Content: "hello", MediaType: models.MediaText}
	if err := repo.Append(rec); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if rec.ID == 0 {
		t.Fatal("record ID not set by Append")
	}

	count, err := repo.CountToday()
	if err != nil {
		t.Fatalf("CountToday: %v", err)
	}
	if count != 1 {
		t.Errorf("CountToday = %d, want 1", count)
	}

	total, err := repo.CountTotal()
	if err != nil {
		t.Fatalf("CountTotal: %v", err)
	}
	if total != 1 {
		t.Errorf("CountTotal = %d, want 1", total)
	}
}

func TestCapEvictsOldestFirst(t *testing.T) {
	const maxEntries = 5
	repo := NewSubmissionRepository(setupTestDB(t), maxEntries, zap.NewNop())

	for i := 1; i <= maxEntries+3; i++ {
		rec := &models.Submission{
			UserID:    int64(i),
			Content:   fmt.Sprintf("msg-%d", i),
			MediaType: models.MediaText,
		}
		if err := repo.Append(rec); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}

	total, err := repo.CountTotal()
	if err != nil {
		t.Fatalf("CountTotal: %v", err)
	}
	if total != maxEntries {
		t.Fatalf("CountTotal = %d, want %d", total, maxEntries)
	}

	// Oldest entries are gone.
	for i := 1; i <= 3; i++ {
		rec, err := repo.LatestBySender(int64(i))
		if err != nil {
			t.Fatalf("LatestBySender(%d): %v", i, err)
		}
		if rec != nil {
			t.Errorf("entry %d should have been evicted, got %+v", i, rec)
		}
	}

	// The newest cap entries survive, newest first.
	records, err := repo.ListRecent(maxEntries)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(records) != maxEntries {
		t.Fatalf("ListRecent returned %d records, want %d", len(records), maxEntries)
	}
	for i, rec := range records {
		want := fmt.Sprintf("msg-%d", maxEntries+3-i)
		if rec.Content != want {
			t.Errorf("records[%d].Content = %q, want %q", i, rec.Content, want)
		}
	}
}

func TestLatestBySender(t *testing.T) {
	repo := NewSubmissionRepository(setupTestDB(t), 1000, zap.NewNop())

	for _, content := range []string{"first", "second"} {
		if err := repo.Append(&models.Submission{UserID: 9, Content: content, MediaType: models.MediaText}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	rec, err := repo.LatestBySender(9)
	if err != nil {
		t.Fatalf("LatestBySender: %v", err)
	}
	if rec == nil || rec.Content != "second" {
		t.Fatalf("LatestBySender = %+v, want content %q", rec, "second")
	}

	rec, err = repo.LatestBySender(404)
	if err != nil {
		t.Fatalf("LatestBySender: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil for unknown sender, got %+v", rec)
	}
}
