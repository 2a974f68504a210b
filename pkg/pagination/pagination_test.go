package pagination

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCursorIsQuerySafeAndParses(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 123, time.UTC), ID: uuid.New()}
	encoded := EncodeCursor(in)
	if strings.ContainsAny(encoded, "+/=") {
		t.Fatalf("cursor %q is not query safe", encoded)
	}
	out, err := ParseCursor(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !out.CreatedAt.Equal(in.CreatedAt) || out.ID != in.ID {
		t.Fatalf("round trip mismatch: %+v vs %+v", out, in)
	}
}

func TestParseCursorRejectsForeignValues(t *testing.T) {
	if c, err := ParseCursor("  "); c != nil || err != nil {
		t.Fatalf("blank cursor should mean first page, got %v %v", c, err)
	}
	for _, raw := range []string{"%%%", "bm8tc2VwYXJhdG9y", EncodeCursor(Cursor{})[:4]} {
		if _, err := ParseCursor(raw); !errors.Is(err, ErrInvalidCursor) {
			t.Fatalf("expected ErrInvalidCursor for %q, got %v", raw, err)
		}
	}
}

func TestTrim(t *testing.T) {
	pos := func(n int) Cursor { return Cursor{CreatedAt: time.Unix(int64(n), 0)} }

	rows, next := Trim([]int{5, 4, 3}, 2, pos)
	if len(rows) != 2 || next == "" {
		t.Fatalf("expected a trimmed page with a cursor, got %v %q", rows, next)
	}
	c, err := ParseCursor(next)
	if err != nil || c.CreatedAt.Unix() != 4 {
		t.Fatalf("cursor should point at the last kept row, got %v %v", c, err)
	}

	rows, next = Trim([]int{2, 1}, 2, pos)
	if len(rows) != 2 || next != "" {
		t.Fatalf("last page must not carry a cursor, got %v %q", rows, next)
	}
	if NormalizeLimit(0) != DefaultLimit || NormalizeLimit(1000) != MaxLimit {
		t.Fatal("limit normalization broken")
	}
}
