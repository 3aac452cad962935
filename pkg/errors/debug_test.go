package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpTypedErrorChain(t *testing.T) {
	cause := &pgconn.PgError{Code: "40001", TableName: "episodes", Message: "serialization failure"}
	err := fmt.Errorf("cascade: %w", Wrap(CodeCascadeIncomplete, cause, "episode update failed").
		WithDetails(map[string]int{"updated": 3, "total": 6}))

	d := Dump(err)
	if d.Code != CodeCascadeIncomplete {
		t.Fatalf("expected cascade incomplete code, got %s", d.Code)
	}
	if !d.Retryable {
		t.Fatalf("expected retryable dump")
	}
	if d.PGCode != "40001" || d.PGTable != "episodes" {
		t.Fatalf("expected pg diagnostics, got %+v", d)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d: %v", len(d.Chain), d.Chain)
	}
	if d.Details == nil {
		t.Fatalf("expected details to be carried")
	}
}

func TestDumpPQError(t *testing.T) {
	err := Wrap(CodeUpstreamUnavailable, &pq.Error{Code: "57P01", Message: "terminating connection"}, "load rental")
	d := Dump(err)
	if d.PGCode != "57P01" || d.PGMessage != "terminating connection" {
		t.Fatalf("unexpected dump %+v", d)
	}
}

func TestDumpNil(t *testing.T) {
	if d := Dump(nil); d.TopMessage != "" || d.Chain != nil {
		t.Fatalf("expected empty dump, got %+v", d)
	}
}
