package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"github.com/covenant-ai/covenant/core/pkg/agents"
	"github.com/covenant-ai/covenant/core/pkg/budget"
	"github.com/covenant-ai/covenant/core/pkg/config"
	"github.com/covenant-ai/covenant/core/pkg/consensus"
	"github.com/covenant-ai/covenant/core/pkg/contracts"
	"github.com/covenant-ai/covenant/core/pkg/dispatch"
	"github.com/covenant-ai/covenant/core/pkg/engine"
	"github.com/covenant-ai/covenant/core/pkg/observability"
	"github.com/covenant-ai/covenant/core/pkg/proofchain"
)

// runEvaluateCmd implements `covenant evaluate`.
//
// Reads an action from a JSON file (or stdin with --action -), runs it
// through the full evaluation pipeline, and prints the decision.
//
// Exit codes:
//
//	0 = allow
//	1 = deny
//	2 = runtime or validation error
func runEvaluateCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		actionFile  string
		profileFile string
		jsonOutput  bool
	)
	cmd.StringVar(&actionFile, "action", "", "Path to action JSON file, or - for stdin (REQUIRED)")
	cmd.StringVar(&profileFile, "profile", "", "Path to policy profile YAML")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the full result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if actionFile == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --action is required")
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	setupLogger(cfg.LogLevel, stderr)

	raw, err := readAction(actionFile)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	eng, cleanup, err := buildEngine(cfg, profileFile)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer cleanup()

	ctx := context.Background()
	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:    "covenant-core",
		ServiceVersion: engine.Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		Enabled:        cfg.OTLPEndpoint != "",
		Insecure:       true,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() { _ = obs.Shutdown(ctx) }()

	result, err := eng.Submit(ctx, raw)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	obs.RecordEvaluation(ctx, result)

	if jsonOutput {
		data, _ := json.MarshalIndent(result, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		printResult(stdout, result)
	}

	if result.Decision == contracts.DecisionAllow {
		return 0
	}
	return 1
}

func readAction(path string) (map[string]any, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read action: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse action: %w", err)
	}
	return raw, nil
}

// buildEngine assembles the full pipeline from configuration. The
// returned cleanup closes the proof database if one was opened.
func buildEngine(cfg *config.Config, profileFile string) (*engine.Engine, func(), error) {
	cleanup := func() {}

	registry := agents.NewRegistry()
	if err := agents.RegisterDefaults(registry); err != nil {
		return nil, cleanup, err
	}

	eng, err := engine.New(registry)
	if err != nil {
		return nil, cleanup, err
	}
	eng.SetDispatcher(dispatch.New(cfg.PoolSize))
	eng.SetConsensusConfig(consensus.Config{ApprovalThreshold: cfg.ApprovalThreshold})

	if profileFile != "" {
		profile, err := config.LoadProfile(profileFile)
		if err != nil {
			return nil, cleanup, err
		}
		ladder, err := profile.Ladder()
		if err != nil {
			return nil, cleanup, err
		}
		if err := eng.SetLadder(ladder); err != nil {
			return nil, cleanup, err
		}
		if profile.DefaultLevel != "" {
			level, err := contracts.ParseLevel(profile.DefaultLevel)
			if err != nil {
				return nil, cleanup, err
			}
			if err := eng.SetDefaultLevel(level); err != nil {
				return nil, cleanup, err
			}
		}
	}
	if cfg.DefaultLevel != "" && profileFile == "" {
		level, err := contracts.ParseLevel(cfg.DefaultLevel)
		if err != nil {
			return nil, cleanup, err
		}
		if err := eng.SetDefaultLevel(level); err != nil {
			return nil, cleanup, err
		}
	}

	var privacy *budget.PrivacyBudget
	if cfg.PrivacyEpsilon > 0 {
		privacy = budget.NewPrivacyBudget(cfg.PrivacyEpsilon)
	}
	var rateBudget *budget.RateBudget
	if cfg.RatePerSecond > 0 {
		rateBudget = budget.NewRateBudget(cfg.RatePerSecond, cfg.RateBurst)
	}
	if privacy != nil || rateBudget != nil {
		eng.SetBudgetEnforcer(budget.NewEnforcer(privacy, rateBudget, cfg.EpsilonPerAction))
	}

	if cfg.ProofDBPath != "" {
		db, err := sql.Open("sqlite", cfg.ProofDBPath)
		if err != nil {
			return nil, cleanup, fmt.Errorf("open proof db: %w", err)
		}
		store, err := proofchain.NewSQLiteStore(db)
		if err != nil {
			db.Close()
			return nil, cleanup, fmt.Errorf("init proof db: %w", err)
		}
		eng.SetProofStore(store)
		cleanup = func() { db.Close() }
	}

	return eng, cleanup, nil
}

func printResult(w io.Writer, result *contracts.EvaluationResult) {
	_, _ = fmt.Fprintf(w, "Action:     %s\n", result.ActionID)
	_, _ = fmt.Fprintf(w, "Decision:   %s\n", result.Decision)
	_, _ = fmt.Fprintf(w, "Score:      %.3f\n", result.Score)
	_, _ = fmt.Fprintf(w, "Confidence: %.3f\n", result.Confidence)
	_, _ = fmt.Fprintf(w, "Level:      %s\n", result.LevelReached)
	if result.Undetermined {
		_, _ = fmt.Fprintln(w, "Status:     UNDETERMINED")
	}
	for _, v := range result.Violations {
		_, _ = fmt.Fprintf(w, "Violation:  %s\n", v)
	}
	for _, warn := range result.Warnings {
		_, _ = fmt.Fprintf(w, "Warning:    %s\n", warn)
	}
	_, _ = fmt.Fprintf(w, "Proof:      %d entries, head %s\n",
		len(result.ProofChain), chainHead(result.ProofChain))
}

func chainHead(chain []contracts.ProofEntry) string {
	if len(chain) == 0 {
		return contracts.GenesisHash
	}
	return chain[len(chain)-1].ContentHash
}
