package integration_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rmax-ai/causalmr/pkg/blob"
	"github.com/rmax-ai/causalmr/pkg/experiment"
	"github.com/rmax-ai/causalmr/pkg/generator"
	"github.com/rmax-ai/causalmr/pkg/oracle"
	"github.com/rmax-ai/causalmr/pkg/store"
	storeredis "github.com/rmax-ai/causalmr/pkg/store/redis"
)

func runExperiment(t *testing.T, results store.ResultStore) *experiment.Result {
	t.Helper()
	res, err := experiment.New(blob.NewLocalStore(t.TempDir()), results, nil).Run(context.Background(), experiment.Options{
		Seed:         31337,
		DAGs:         2,
		Generator:    generator.Options{Nodes: 6, PEdge: 0.35, PConditional: 0.25},
		Tests:        5,
		Levels:       []float64{0.5},
		Mode:         oracle.Tolerant,
		Workers:      2,
		RunCampaigns: true,
	})
	if err != nil {
		t.Fatalf("experiment failed: %v", err)
	}
	return res
}

// TestStoresAgree checks that scoring only depends on the stored records,
// not on the backend holding them.
func TestStoresAgree(t *testing.T) {
	sqlite, err := store.NewStore(filepath.Join(t.TempDir(), "agree.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer sqlite.Close()

	mr := miniredis.RunT(t)
	rdb := storeredis.NewResultStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer rdb.Close()

	a := runExperiment(t, sqlite)
	b := runExperiment(t, rdb)

	if len(a.DAGs) != len(b.DAGs) {
		t.Fatalf("dag count differs: %d vs %d", len(a.DAGs), len(b.DAGs))
	}
	for i := range a.DAGs {
		da, db := a.DAGs[i], b.DAGs[i]
		if da.Seed != db.Seed {
			t.Fatalf("seed %d differs from %d", da.Seed, db.Seed)
		}
		for j := range da.Variants {
			va, vb := da.Variants[j], db.Variants[j]
			if va.Digest == "" || va.Digest != vb.Digest {
				t.Errorf("seed %d %s: digest %q (sqlite) vs %q (redis)", da.Seed, va.Name, va.Digest, vb.Digest)
			}
			if *va.Score != *vb.Score {
				t.Errorf("seed %d %s: score %s vs %s", da.Seed, va.Name, va.Score, vb.Score)
			}
		}
	}
}
