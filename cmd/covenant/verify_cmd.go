package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	_ "modernc.org/sqlite"

	"github.com/covenant-ai/covenant/core/pkg/audit"
	"github.com/covenant-ai/covenant/core/pkg/proofchain"
)

// runVerifyCmd implements `covenant verify`.
//
// Loads a persisted proof chain, re-verifies every hash link, and
// prints an export manifest.
//
// Exit codes:
//
//	0 = chain verified
//	1 = chain failed verification
//	2 = runtime error
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		dbPath     string
		actionID   string
		jsonOutput bool
	)
	cmd.StringVar(&dbPath, "db", "", "Path to proof chain sqlite database (REQUIRED)")
	cmd.StringVar(&actionID, "action-id", "", "Action id whose chain to verify (REQUIRED)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the manifest as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if dbPath == "" || actionID == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --db and --action-id are required")
		return 2
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: open proof db: %v\n", err)
		return 2
	}
	defer db.Close()

	store, err := proofchain.NewSQLiteStore(db)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: init proof db: %v\n", err)
		return 2
	}

	manifest, err := audit.NewExporter(store).ExportProofChain(context.Background(), actionID)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Chain verification FAILED: %v\n", err)
		return 1
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(manifest, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		_, _ = fmt.Fprintf(stdout, "Chain verification PASSED\n")
		_, _ = fmt.Fprintf(stdout, "Action:   %s\n", manifest.ActionID)
		_, _ = fmt.Fprintf(stdout, "Entries:  %d\n", manifest.EntryCount)
		_, _ = fmt.Fprintf(stdout, "Head:     %s\n", manifest.HeadHash)
		_, _ = fmt.Fprintf(stdout, "Checksum: %s\n", manifest.Checksum)
	}
	return 0
}
