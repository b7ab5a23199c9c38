package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sungwon/scheduled-mailer/internal/scheduling"
	"github.com/sungwon/scheduled-mailer/internal/storage/storetest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "mailer.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) scheduling.Store { return openTestStore(t) })
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestOpen_SchemaIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mailer.db")
	for range 2 {
		s, err := Open(context.Background(), path)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		s.Close()
	}
}

func TestTimeLayoutSortsLexically(t *testing.T) {
	a := formatTime(mustParse(t, "2026-06-01T09:00:00.5Z"))
	b := formatTime(mustParse(t, "2026-06-01T09:00:00.25Z"))
	if !(b < a) {
		t.Errorf("expected %q < %q", b, a)
	}
}

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}
