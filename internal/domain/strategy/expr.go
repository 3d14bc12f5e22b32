package strategy

import (
	"fmt"
	"log/slog"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/permkit-dev/permkit/internal/domain/capabilities"
	"github.com/permkit-dev/permkit/internal/domain/hosts"
)

// ResultEnv defines the variables available to a decision expression.
type ResultEnv struct {
	Host      string   `expr:"host"`
	HostKind  string   `expr:"host_kind"`
	Requested []string `expr:"requested"`
	Granted   []string `expr:"granted"`
	Denied    []string `expr:"denied"`
}

// Expr is a strategy whose proceed decision is a compiled boolean expression
// over the request outcome. It lets scenario files register named decision
// policies without writing Go, e.g. `"CAMERA" in granted && len(denied) <= 1`.
type Expr struct {
	name    string
	kind    hosts.Kind
	source  string
	program *vm.Program
}

// NewExpr compiles a decision expression into a strategy. Compilation errors
// surface here, at registration time, not at dispatch time.
func NewExpr(name string, kind hosts.Kind, expression string) (*Expr, error) {
	if name == "" {
		return nil, fmt.Errorf("expression strategy needs a name")
	}

	program, err := expr.Compile(expression,
		expr.Env(ResultEnv{}),
		expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("failed to compile decision expression for %q: %w", name, err)
	}

	return &Expr{
		name:    name,
		kind:    kind,
		source:  expression,
		program: program,
	}, nil
}

// Name implements RequestStrategy.
func (s *Expr) Name() string {
	return s.name
}

// HostKind implements RequestStrategy.
func (s *Expr) HostKind() hosts.Kind {
	return s.kind
}

// Source returns the expression text the strategy was compiled from.
func (s *Expr) Source() string {
	return s.source
}

// OnPermissionsResult evaluates the expression. Evaluation failures suppress
// the invocation; proceeding on a broken policy would defeat the gate.
func (s *Expr) OnPermissionsResult(h hosts.Host, res capabilities.Result) bool {
	env := ResultEnv{
		Host:     h.ID(),
		HostKind: h.Kind().String(),
		Granted:  idStrings(res.Granted()),
		Denied:   idStrings(res.Denied()),
	}
	env.Requested = append(append([]string{}, env.Granted...), env.Denied...)

	out, err := expr.Run(s.program, env)
	if err != nil {
		slog.Warn("decision expression failed, suppressing invocation",
			"strategy", s.name, "host", h.ID(), "error", err)
		return false
	}

	proceed, ok := out.(bool)
	if !ok {
		slog.Warn("decision expression returned non-boolean, suppressing invocation",
			"strategy", s.name, "host", h.ID())
		return false
	}
	return proceed
}

func idStrings(ids []capabilities.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
