package migrations

import (
	"strings"
	"testing"
)

func TestStatementsIncludeProofJobs(t *testing.T) {
	stmts, err := Statements()
	if err != nil {
		t.Fatalf("load statements: %v", err)
	}
	if len(stmts) == 0 {
		t.Fatalf("expected at least one statement")
	}
	if !strings.Contains(stmts[0], "CREATE TABLE IF NOT EXISTS proof_jobs") {
		t.Fatalf("unexpected first statement: %s", stmts[0])
	}
	for _, stmt := range stmts {
		if strings.HasSuffix(stmt, ";") {
			t.Fatalf("statement keeps terminator: %q", stmt)
		}
	}
}
