package history

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestSnapshotLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	initial := Snapshot{
		Slug:         "tax-cuts-growth",
		Title:        "Do tax cuts pay for themselves?",
		OverviewHTML: "<p>Initial framing.</p>",
		Status:       "draft",
	}

	if err := svc.EnsureRepo("inv-1", initial, "Avery"); err != nil {
		t.Fatalf("EnsureRepo() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "inv-1")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}

	// Second call is a no-op.
	if err := svc.EnsureRepo("inv-1", initial, "Avery"); err != nil {
		t.Fatalf("EnsureRepo() second call error = %v", err)
	}

	updated := initial
	updated.OverviewHTML = "<p>Sharper framing.</p>"
	commit, err := svc.CommitSnapshot("inv-1", updated, "Avery", "Revise overview")
	if err != nil {
		t.Fatalf("CommitSnapshot() error = %v", err)
	}
	if commit.Hash == "" {
		t.Fatal("expected commit hash")
	}

	entries, err := svc.History("inv-1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(entries))
	}
	if !strings.HasPrefix(entries[0].Message, "Revise overview") {
		t.Fatalf("unexpected newest entry: %+v", entries[0])
	}

	snap, err := svc.GetSnapshotByHash("inv-1", commit.Hash)
	if err != nil {
		t.Fatalf("GetSnapshotByHash() error = %v", err)
	}
	if snap.OverviewHTML != "<p>Sharper framing.</p>" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestCommitSnapshotSkipsUnchanged(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	snap := Snapshot{Slug: "inv", Title: "T", OverviewHTML: "<p>Same.</p>", Status: "draft"}
	if err := svc.EnsureRepo("inv-1", snap, "Avery"); err != nil {
		t.Fatalf("EnsureRepo() error = %v", err)
	}

	if _, err := svc.CommitSnapshot("inv-1", snap, "Avery", "No change"); err != nil {
		t.Fatalf("CommitSnapshot() error = %v", err)
	}

	entries, err := svc.History("inv-1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected unchanged snapshot to be skipped, got %d entries", len(entries))
	}
}

func TestConcurrentCommitSnapshot(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	initial := Snapshot{Slug: "inv", Title: "T", OverviewHTML: "<p>0</p>", Status: "draft"}
	if err := svc.EnsureRepo("inv-1", initial, "Avery"); err != nil {
		t.Fatalf("EnsureRepo() error = %v", err)
	}

	const writers = 12
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			next := initial
			next.OverviewHTML = fmt.Sprintf("<p>revision-%02d</p>", idx)
			if _, err := svc.CommitSnapshot("inv-1", next, "Avery", fmt.Sprintf("Commit %02d", idx)); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			t.Fatalf("CommitSnapshot() concurrent error = %v", err)
		}
	}

	entries, err := svc.History("inv-1", 100)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) < writers+1 {
		t.Fatalf("expected at least %d commits, got %d", writers+1, len(entries))
	}
}

func TestRemove(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	snap := Snapshot{Slug: "inv", Title: "T"}
	if err := svc.EnsureRepo("inv-1", snap, "Avery"); err != nil {
		t.Fatalf("EnsureRepo() error = %v", err)
	}
	if err := svc.Remove("inv-1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "inv-1")); !os.IsNotExist(err) {
		t.Fatalf("expected repo to be gone, stat err = %v", err)
	}
}
