package agents

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/covenant-ai/covenant/core/pkg/contracts"
)

// Rule is a named CEL expression over an action. The expression must
// evaluate to a bool; false means the rule is violated.
type Rule struct {
	Name string
	Expr string
}

// DefaultComplianceRules is the engine's baseline policy set.
func DefaultComplianceRules() []Rule {
	return []Rule{
		{Name: "actor-required", Expr: `action.actor != ""`},
		{Name: "no-restricted-parameters", Expr: `!("restricted" in params)`},
		{Name: "privileged-requires-approval",
			Expr: `!(("privileged" in params) && params["privileged"] == true) || ("approved_by" in context)`},
	}
}

// ComplianceAgent evaluates configurable CEL policy rules against an
// action. Compilation happens once at construction; programs are
// cached for the agent's lifetime.
type ComplianceAgent struct {
	mu       sync.RWMutex
	env      *cel.Env
	rules    []Rule
	programs map[string]cel.Program
}

// NewComplianceAgent compiles the given rules (DefaultComplianceRules
// when nil) into a ready evaluator.
func NewComplianceAgent(rules []Rule) (*ComplianceAgent, error) {
	env, err := cel.NewEnv(
		cel.Variable("action", cel.DynType),
		cel.Variable("params", cel.DynType),
		cel.Variable("context", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("compliance: cel environment failed: %w", err)
	}
	if rules == nil {
		rules = DefaultComplianceRules()
	}

	a := &ComplianceAgent{env: env, rules: rules, programs: make(map[string]cel.Program, len(rules))}
	for _, r := range rules {
		prg, err := a.compile(r.Expr)
		if err != nil {
			return nil, fmt.Errorf("compliance: rule %q: %w", r.Name, err)
		}
		a.programs[r.Name] = prg
	}
	return a, nil
}

// Evaluate checks every rule. Any violated rule yields a deny vote;
// evaluation errors surface as agent errors and exclude the agent
// from the round (fail-soft per the dispatch protocol).
func (a *ComplianceAgent) Evaluate(ctx context.Context, action *contracts.Action) (*contracts.AgentVote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input := map[string]any{
		"action": map[string]any{
			"id":          action.ID,
			"type":        action.Type,
			"description": action.Description,
			"actor":       action.Actor,
		},
		"params":  nonNil(action.Parameters),
		"context": nonNil(action.Context),
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	var violations []string
	for _, r := range a.rules {
		ok, err := a.evalRule(r.Name, input)
		if err != nil {
			return nil, fmt.Errorf("compliance: rule %q evaluation failed: %w", r.Name, err)
		}
		if !ok {
			violations = append(violations, "compliance: rule violated: "+r.Name)
		}
	}

	if len(violations) > 0 {
		return deny(0.9, fmt.Sprintf("%d policy rule(s) violated", len(violations)), violations...), nil
	}
	return allow(0.9, "all policy rules satisfied"), nil
}

func (a *ComplianceAgent) compile(expr string) (cel.Program, error) {
	ast, issues := a.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	return a.env.Program(ast)
}

func (a *ComplianceAgent) evalRule(name string, input map[string]any) (bool, error) {
	prg, ok := a.programs[name]
	if !ok {
		return false, fmt.Errorf("rule not compiled")
	}
	out, _, err := prg.Eval(input)
	if err != nil {
		return false, err
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not evaluate to bool")
	}
	return result, nil
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
