package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/covenant-ai/covenant/core/pkg/agents"
	"github.com/covenant-ai/covenant/core/pkg/engine"
)

// runMetricsCmd implements `covenant metrics`: prints the zeroed
// metrics schema and engine health for a fresh process. Long-running
// deployments read the same snapshot through the engine API.
func runMetricsCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("metrics", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	registry := agents.NewRegistry()
	if err := agents.RegisterDefaults(registry); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	eng, err := engine.New(registry)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	out := struct {
		Health  engine.Health `json:"health"`
		Metrics any           `json:"metrics"`
	}{
		Health:  eng.Health(),
		Metrics: eng.Metrics(),
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	_, _ = fmt.Fprintln(stdout, string(data))
	return 0
}

// runVersionCmd implements `covenant version`.
func runVersionCmd(stdout io.Writer) int {
	_, _ = fmt.Fprintf(stdout, "covenant %s\n", engine.Version)
	return 0
}
