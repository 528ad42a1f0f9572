package sampler

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/rmax-ai/causalmr/pkg/graph"
	"github.com/rmax-ai/causalmr/pkg/relation"
)

var (
	// ErrSamplingExhausted is returned when more tests are requested than
	// there are distinct value pairs in the range.
	ErrSamplingExhausted = errors.New("not enough distinct value pairs")
	// ErrInvalidRange is returned for an empty or inverted range.
	ErrInvalidRange = errors.New("invalid value range")
)

// Range is an inclusive integer interval.
type Range struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max" validate:"gtefield=Min"`
}

// DefaultRange is -10..10 inclusive.
var DefaultRange = Range{Min: -10, Max: 10}

// Width is the number of integers in the range.
func (r Range) Width() int { return r.Max - r.Min + 1 }

// Pairs is the number of unordered pairs of distinct values in the range.
func (r Range) Pairs() int {
	w := r.Width()
	if w < 2 {
		return 0
	}
	return w * (w - 1) / 2
}

func (r Range) String() string { return fmt.Sprintf("[%d, %d]", r.Min, r.Max) }

func (r Range) draw(rng *rand.Rand) int { return r.Min + rng.Intn(r.Width()) }

// TestCase is one concrete check of a relation: the program is run once
// with Cause=SourceValue and once with Cause=FollowUpValue, all other
// inputs fixed to Others, and Output is compared.
type TestCase struct {
	Cause         graph.Node         `json:"cause"`
	SourceValue   int                `json:"source_value"`
	FollowUpValue int                `json:"follow_up_value"`
	Others        map[graph.Node]int `json:"others"`
	Output        graph.Node         `json:"output"`
}

// SourceInputs is the control run's input assignment.
func (tc TestCase) SourceInputs() map[graph.Node]int {
	return tc.with(tc.SourceValue)
}

// FollowUpInputs is the treatment run's input assignment.
func (tc TestCase) FollowUpInputs() map[graph.Node]int {
	return tc.with(tc.FollowUpValue)
}

func (tc TestCase) with(v int) map[graph.Node]int {
	in := make(map[graph.Node]int, len(tc.Others)+1)
	for n, x := range tc.Others {
		in[n] = x
	}
	in[tc.Cause] = v
	return in
}

// Fixed lists the variables held constant by every test of rel on g: every
// source other than the cause, then every adjustment node not already
// listed.
func Fixed(rel relation.Relation, g *graph.Graph) []graph.Node {
	seen := map[graph.Node]bool{rel.Cause: true}
	var out []graph.Node
	for _, s := range g.NodesByRole(graph.RoleSource) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, a := range rel.Adjustment {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}

// Sample draws n test cases for rel. The (source, follow-up) value pairs
// are drawn without replacement from the unordered pairs of distinct
// values in r, so every test varies the cause, and each pair is presented
// in a random orientation. The remaining inputs are
// drawn uniformly and independently from r.
//
// Requesting more tests than r has pairs fails with ErrSamplingExhausted
// before anything is drawn.
func Sample(rng *rand.Rand, rel relation.Relation, g *graph.Graph, n int, r Range) ([]TestCase, error) {
	if r.Width() < 1 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRange, r)
	}
	if n < 0 {
		return nil, fmt.Errorf("negative test count %d", n)
	}
	if avail := r.Pairs(); n > avail {
		return nil, fmt.Errorf("%w: %d tests requested for %s, range %s has %d",
			ErrSamplingExhausted, n, rel.ID(), r, avail)
	}

	pairs := drawPairs(rng, n, r)

	fixed := Fixed(rel, g)
	out := make([]TestCase, n)
	for i := 0; i < n; i++ {
		others := make(map[graph.Node]int, len(fixed))
		for _, f := range fixed {
			others[f] = r.draw(rng)
		}
		out[i] = TestCase{
			Cause:         rel.Cause,
			SourceValue:   pairs[i][0],
			FollowUpValue: pairs[i][1],
			Others:        others,
			Output:        rel.Effect,
		}
	}
	return out, nil
}

// drawPairs samples n distinct unordered pairs of r without replacement.
// Small ranges, or requests for most of the pairs, enumerate the pairs and
// shuffle; otherwise pairs are drawn and duplicates rejected, so memory
// stays proportional to n.
func drawPairs(rng *rand.Rand, n int, r Range) [][2]int {
	out := make([][2]int, 0, n)
	if total := r.Pairs(); total <= enumerateLimit || n > total/2 {
		pairs := make([][2]int, 0, total)
		for a := r.Min; a <= r.Max; a++ {
			for b := a + 1; b <= r.Max; b++ {
				pairs = append(pairs, [2]int{a, b})
			}
		}
		// Partial Fisher-Yates: the first n entries are a uniform sample
		// without replacement.
		for i := 0; i < n; i++ {
			j := i + rng.Intn(len(pairs)-i)
			pairs[i], pairs[j] = pairs[j], pairs[i]
			out = append(out, orient(rng, pairs[i]))
		}
		return out
	}

	seen := make(map[[2]int]bool, n)
	for len(out) < n {
		a, b := r.draw(rng), r.draw(rng)
		if a == b {
			continue
		}
		key := [2]int{min(a, b), max(a, b)}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, orient(rng, key))
	}
	return out
}

// enumerateLimit bounds the pair count below which drawPairs enumerates.
const enumerateLimit = 1 << 12

func orient(rng *rand.Rand, p [2]int) [2]int {
	if rng.Intn(2) == 1 {
		return [2]int{p[1], p[0]}
	}
	return p
}
