package oracle

import (
	"context"
	"fmt"
	"math"

	"github.com/rmax-ai/causalmr/pkg/graph"
	"github.com/rmax-ai/causalmr/pkg/relation"
	"github.com/rmax-ai/causalmr/pkg/sampler"
)

// Mode selects how evaluation errors are handled.
type Mode int

const (
	// FailFast aborts the relation on the first evaluation error and
	// returns it.
	FailFast Mode = iota
	// Tolerant records evaluation errors as failed tests and continues.
	Tolerant
)

func (m Mode) String() string {
	if m == Tolerant {
		return "tolerant"
	}
	return "fail-fast"
}

// ParseMode accepts "fail-fast" and "tolerant".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "fail-fast", "failfast":
		return FailFast, nil
	case "tolerant":
		return Tolerant, nil
	default:
		return FailFast, fmt.Errorf("unknown execution mode %q", s)
	}
}

// Failure is one failed test with its full input and output context.
// Control and Treatment are NaN when that run did not produce a value.
type Failure struct {
	Test      sampler.TestCase
	Control   float64
	Treatment float64
	Err       error
}

// Execute runs every test of rel against prog: once with the source value
// (control) and once with the follow-up value (treatment). A ShouldCause
// test passes iff the outputs differ, a ShouldNotCause test passes iff they
// are equal. Failed tests are returned, none dropped.
//
// A run that errors, omits the output or yields a non-finite value is an
// evaluation error. In FailFast mode it is returned as *EvaluationError
// together with the failures gathered so far; in Tolerant mode it becomes
// a Failure.
func Execute(ctx context.Context, rel relation.Relation, tests []sampler.TestCase, prog Program, mode Mode) ([]Failure, error) {
	var failures []Failure
	for _, tc := range tests {
		if err := ctx.Err(); err != nil {
			return failures, err
		}

		control, cerr := evaluate(ctx, prog, tc.SourceInputs(), tc.Output)
		treatment, terr := evaluate(ctx, prog, tc.FollowUpInputs(), tc.Output)
		if err := firstErr(cerr, terr); err != nil {
			if mode == FailFast {
				return failures, &EvaluationError{Relation: rel.ID(), Test: tc, Err: err}
			}
			failures = append(failures, Failure{Test: tc, Control: control, Treatment: treatment, Err: err})
			continue
		}

		if !passes(rel.Kind, control, treatment) {
			failures = append(failures, Failure{Test: tc, Control: control, Treatment: treatment})
		}
	}
	return failures, nil
}

func passes(kind relation.Kind, control, treatment float64) bool {
	if kind == relation.ShouldCause {
		return control != treatment
	}
	return control == treatment
}

func evaluate(ctx context.Context, prog Program, inputs map[graph.Node]int, output graph.Node) (float64, error) {
	out, err := prog.Run(ctx, inputs)
	if err != nil {
		return math.NaN(), err
	}
	v, ok := out[output]
	if !ok {
		return math.NaN(), fmt.Errorf("output %s missing from program result", output)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v, fmt.Errorf("output %s is undefined (%v)", output, v)
	}
	return v, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Verdict applies the relation-level policy. A ShouldCause relation fails
// only if every test failed, since one discriminating pair shows the link
// is exercised. A ShouldNotCause relation fails if any test failed. With
// no tests at all a ShouldCause relation has no witness and fails, while a
// ShouldNotCause relation passes. A failed relation yields a
// *RelationFailure.
func Verdict(rel relation.Relation, failures []Failure, total int) error {
	failed := len(failures)
	var ok bool
	if rel.Kind == relation.ShouldCause {
		ok = failed < total
	} else {
		ok = failed == 0
	}
	if ok {
		return nil
	}
	return &RelationFailure{Relation: rel, Failed: failed, Total: total, Failures: failures}
}
