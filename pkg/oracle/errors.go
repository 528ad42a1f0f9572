package oracle

import (
	"errors"
	"fmt"

	"github.com/rmax-ai/causalmr/pkg/relation"
	"github.com/rmax-ai/causalmr/pkg/sampler"
)

var (
	// ErrEvaluation marks a program run that raised or produced an
	// undefined value.
	ErrEvaluation = errors.New("program evaluation error")
	// ErrRelationFailed marks a relation-level oracle failure.
	ErrRelationFailed = errors.New("relation failed")
)

// EvaluationError is returned in FailFast mode when a program run fails.
type EvaluationError struct {
	Relation string
	Test     sampler.TestCase
	Err      error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("%s: %s: %v (cause %s=%d/%d, others %v)",
		ErrEvaluation, e.Relation, e.Err, e.Test.Cause, e.Test.SourceValue, e.Test.FollowUpValue, e.Test.Others)
}

func (e *EvaluationError) Unwrap() []error { return []error{ErrEvaluation, e.Err} }

// RelationFailure is the relation-level verdict when the oracle rejects
// the sampled behaviour.
type RelationFailure struct {
	Relation relation.Relation
	Failed   int
	Total    int
	Failures []Failure
}

func (e *RelationFailure) Error() string {
	policy := "any test failed"
	if e.Relation.Kind == relation.ShouldCause {
		policy = "no test discriminated"
	}
	return fmt.Sprintf("relation %s failed: %s (%d/%d tests failed)", e.Relation.ID(), policy, e.Failed, e.Total)
}

func (e *RelationFailure) Unwrap() error { return ErrRelationFailed }
