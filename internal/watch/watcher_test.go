package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mutagen-io/mutagen/pkg/logging"
)

func TestWatcherDeliversBatchOnChange(t *testing.T) {
	dir := t.TempDir()

	w, err := New(logging.RootLogger)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		t.Fatal(err)
	}

	batches := make(chan []string, 4)
	go w.Run(func(batch []string) {
		batches <- batch
	})

	path := filepath.Join(dir, "new-file.txt")
	if err := os.WriteFile(path, []byte("hi"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case batch := <-batches:
		if len(batch) == 0 {
			t.Error("expected a non-empty batch")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("did not receive a batch after file creation")
	}
}
