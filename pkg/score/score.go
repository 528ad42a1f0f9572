package score

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rmax-ai/causalmr/pkg/store"
)

// ErrIntegrity marks result records that cannot be compared because their
// relation sets differ.
var ErrIntegrity = errors.New("result integrity error")

// IntegrityError lists the relations present in only one of two records.
type IntegrityError struct {
	Job             store.JobID
	MissingInMutant []string
	MissingInBase   []string
}

func (e *IntegrityError) Error() string {
	var parts []string
	if len(e.MissingInMutant) > 0 {
		parts = append(parts, fmt.Sprintf("absent from mutant: %s", strings.Join(e.MissingInMutant, "; ")))
	}
	if len(e.MissingInBase) > 0 {
		parts = append(parts, fmt.Sprintf("absent from baseline: %s", strings.Join(e.MissingInBase, "; ")))
	}
	return fmt.Sprintf("%s: job %s: %s", ErrIntegrity, e.Job, strings.Join(parts, ", "))
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

// Classification counts relation outcomes of one mutant against the
// baseline.
type Classification struct {
	Job store.JobID `json:"job_id"`
	TP  int         `json:"true_positive"`
	FP  int         `json:"false_positive"`
	TN  int         `json:"true_negative"`
	FN  int         `json:"false_negative"`

	// Detected lists the relations that newly failed on the mutant.
	Detected []string `json:"detected,omitempty"`
	// Contradictions lists the relations that failed on baseline but
	// passed on the mutant.
	Contradictions []string `json:"contradictions,omitempty"`
}

// Killed reports whether at least one relation newly failed.
func (c Classification) Killed() bool { return c.TP > 0 }

// Classify compares a mutant record with the baseline record, relation by
// relation:
//
//	pass -> fail  true positive
//	fail -> fail  false positive
//	pass -> pass  true negative
//	fail -> pass  false negative
//
// Both records must cover the same relations; otherwise an
// *IntegrityError is returned.
func Classify(baseline, mutant *store.JobResult) (Classification, error) {
	base := baseline.Outcomes()
	mut := mutant.Outcomes()
	c := Classification{Job: mutant.JobID}

	var missingInMutant, missingInBase []string
	for id := range base {
		if _, ok := mut[id]; !ok {
			missingInMutant = append(missingInMutant, id)
		}
	}
	for id := range mut {
		if _, ok := base[id]; !ok {
			missingInBase = append(missingInBase, id)
		}
	}
	if len(missingInMutant) > 0 || len(missingInBase) > 0 {
		sort.Strings(missingInMutant)
		sort.Strings(missingInBase)
		return c, &IntegrityError{Job: mutant.JobID, MissingInMutant: missingInMutant, MissingInBase: missingInBase}
	}

	ids := make([]string, 0, len(base))
	for id := range base {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		b, m := base[id].Failed, mut[id].Failed
		switch {
		case !b && m:
			c.TP++
			c.Detected = append(c.Detected, id)
		case b && m:
			c.FP++
		case !b && !m:
			c.TN++
		default:
			c.FN++
			c.Contradictions = append(c.Contradictions, id)
		}
	}
	return c, nil
}

// MutationScore is killed mutants over total mutants.
type MutationScore struct {
	Killed int `json:"killed"`
	Total  int `json:"total"`
}

// Value returns the score, or false when there are no mutants.
func (s MutationScore) Value() (float64, bool) {
	if s.Total == 0 {
		return 0, false
	}
	return float64(s.Killed) / float64(s.Total), true
}

func (s MutationScore) String() string {
	v, ok := s.Value()
	if !ok {
		return "N/A"
	}
	return fmt.Sprintf("%.4f (%d/%d)", v, s.Killed, s.Total)
}

// Summary is the scored result of a campaign.
type Summary struct {
	Score          MutationScore    `json:"score"`
	Jobs           []Classification `json:"jobs"`
	BaselineFailed int              `json:"baseline_failed"`
	TruePositives  int              `json:"true_positives"`
	FalsePositives int              `json:"false_positives"`
	TrueNegatives  int              `json:"true_negatives"`
	FalseNegatives int              `json:"false_negatives"`
	Contradictory  int              `json:"contradictory_jobs"`
}

// Score classifies every mutant against the baseline. The first integrity
// error aborts scoring.
func Score(baseline *store.JobResult, mutants []*store.JobResult) (Summary, error) {
	if baseline == nil {
		return Summary{}, fmt.Errorf("%w: no baseline record", ErrIntegrity)
	}
	s := Summary{
		Jobs:           make([]Classification, 0, len(mutants)),
		BaselineFailed: baseline.FailedCount(),
	}
	for _, m := range mutants {
		c, err := Classify(baseline, m)
		if err != nil {
			return s, err
		}
		s.Jobs = append(s.Jobs, c)
		s.Score.Total++
		if c.Killed() {
			s.Score.Killed++
		}
		s.TruePositives += c.TP
		s.FalsePositives += c.FP
		s.TrueNegatives += c.TN
		s.FalseNegatives += c.FN
		if c.FN > 0 {
			s.Contradictory++
		}
	}
	return s, nil
}

// Split separates the baseline record from mutant records.
func Split(jobs []*store.JobResult) (*store.JobResult, []*store.JobResult) {
	var baseline *store.JobResult
	var mutants []*store.JobResult
	for _, j := range jobs {
		if j.Kind == store.JobKindBaseline {
			baseline = j
			continue
		}
		mutants = append(mutants, j)
	}
	return baseline, mutants
}
