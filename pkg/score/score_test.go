package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/causalmr/pkg/store"
)

var relations = []string{
	"X1 --> Y1 | [X2]",
	"X1 _||_ Y2",
	"X2 --> Y1 | [X1]",
	"X2 _||_ Y2",
	"Y1 _||_ Y2 | [X1, X2]",
}

func record(id store.JobID, failed ...string) *store.JobResult {
	kind := store.JobKindMutant
	if id == store.BaselineJobID {
		kind = store.JobKindBaseline
	}
	f := make(map[string]bool)
	for _, r := range failed {
		f[r] = true
	}
	job := &store.JobResult{JobID: id, Kind: kind}
	for _, r := range relations {
		job.Relations = append(job.Relations, store.RelationResult{Relation: r, Total: 10, Failed: f[r]})
	}
	return job
}

func TestClassify_OneFlip(t *testing.T) {
	c, err := Classify(record(store.BaselineJobID), record("m1", "X1 _||_ Y2"))
	require.NoError(t, err)

	assert.Equal(t, 1, c.TP)
	assert.Equal(t, 0, c.FP)
	assert.Equal(t, 4, c.TN)
	assert.Equal(t, 0, c.FN)
	assert.True(t, c.Killed())
	assert.Equal(t, []string{"X1 _||_ Y2"}, c.Detected)

	s, err := Score(record(store.BaselineJobID), []*store.JobResult{record("m1", "X1 _||_ Y2")})
	require.NoError(t, err)
	assert.Equal(t, MutationScore{Killed: 1, Total: 1}, s.Score)
	assert.Equal(t, 1, s.TruePositives)
	assert.Equal(t, 0, s.FalsePositives)
}

func TestClassify_AllCategories(t *testing.T) {
	base := record(store.BaselineJobID, relations[0], relations[1])
	mut := record("m", relations[1], relations[2])

	c, err := Classify(base, mut)
	require.NoError(t, err)
	assert.Equal(t, 1, c.TP, "pass -> fail")
	assert.Equal(t, 1, c.FP, "fail -> fail")
	assert.Equal(t, 2, c.TN, "pass -> pass")
	assert.Equal(t, 1, c.FN, "fail -> pass")
	assert.Equal(t, []string{relations[0]}, c.Contradictions)
}

func TestClassify_IntegrityError(t *testing.T) {
	base := record(store.BaselineJobID)
	mut := record("m")
	mut.Relations = mut.Relations[1:]
	mut.Relations = append(mut.Relations, store.RelationResult{Relation: "Y1 --> Y2 | [X1]"})

	_, err := Classify(base, mut)
	require.ErrorIs(t, err, ErrIntegrity)

	var ie *IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, []string{relations[0]}, ie.MissingInMutant)
	assert.Equal(t, []string{"Y1 --> Y2 | [X1]"}, ie.MissingInBase)

	_, err = Score(base, []*store.JobResult{mut})
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestScore(t *testing.T) {
	base := record(store.BaselineJobID)
	mutants := []*store.JobResult{
		record("a", relations[0]),
		record("b"),
		record("c", relations[3], relations[4]),
	}
	s, err := Score(base, mutants)
	require.NoError(t, err)

	assert.Equal(t, MutationScore{Killed: 2, Total: 3}, s.Score)
	v, ok := s.Score.Value()
	require.True(t, ok)
	assert.InDelta(t, 2.0/3.0, v, 1e-9)
	assert.Equal(t, 3, s.TruePositives)
	assert.Len(t, s.Jobs, 3)
	assert.False(t, s.Jobs[1].Killed())
}

func TestMutationScore_NoMutants(t *testing.T) {
	s, err := Score(record(store.BaselineJobID), nil)
	require.NoError(t, err)

	_, ok := s.Score.Value()
	assert.False(t, ok)
	assert.Equal(t, "N/A", s.Score.String())
	assert.Equal(t, "0.5000 (1/2)", MutationScore{Killed: 1, Total: 2}.String())

	_, err = Score(nil, nil)
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestSplit(t *testing.T) {
	base, mutants := Split([]*store.JobResult{record("a"), record(store.BaselineJobID), record("b")})
	require.NotNil(t, base)
	assert.Equal(t, store.BaselineJobID, base.JobID)
	assert.Len(t, mutants, 2)
}
