package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Dispatcher
func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "evaluate", "eval":
		return runEvaluateCmd(args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "metrics":
		return runMetricsCmd(args[2:], stdout, stderr)
	case "version":
		return runVersionCmd(stdout)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "covenant - constitutional evaluation engine")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  covenant evaluate --action <file.json> [--profile <file.yaml>] [--json]")
	fmt.Fprintln(w, "  covenant verify --db <proofs.db> --action-id <id> [--json]")
	fmt.Fprintln(w, "  covenant metrics")
	fmt.Fprintln(w, "  covenant version")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  COVENANT_LOG_LEVEL            DEBUG | INFO | WARN | ERROR (default INFO)")
	fmt.Fprintln(w, "  COVENANT_APPROVAL_THRESHOLD   consensus approval threshold (default 0.66)")
	fmt.Fprintln(w, "  COVENANT_DEFAULT_LEVEL        starting verification level (default STANDARD)")
	fmt.Fprintln(w, "  COVENANT_POOL_SIZE            agent worker pool size (default 16)")
	fmt.Fprintln(w, "  COVENANT_PRIVACY_EPSILON      total privacy budget (0 disables)")
	fmt.Fprintln(w, "  COVENANT_RATE_PER_SECOND      admission rate limit (0 disables)")
	fmt.Fprintln(w, "  COVENANT_PROOF_DB             sqlite path for proof chain persistence")
	fmt.Fprintln(w, "")
}

func setupLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}
