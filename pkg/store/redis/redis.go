package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rmax-ai/causalmr/pkg/store"
)

const (
	keyPrefix    = "causalmr"
	campaignsSet = keyPrefix + ":campaigns"
)

// ResultStore keeps result records in Redis: one JSON string value per job,
// a set of job keys per campaign and a set of campaign names. Campaign names
// are query-escaped inside keys so a ':' in a name cannot collide with the
// key separator.
type ResultStore struct {
	client *redis.Client
}

var _ store.ResultStore = (*ResultStore)(nil)

func NewResultStore(client *redis.Client) *ResultStore {
	return &ResultStore{client: client}
}

func (s *ResultStore) jobKey(campaign string, id store.JobID) string {
	return fmt.Sprintf("%s:job:%s:%s", keyPrefix, url.QueryEscape(campaign), url.QueryEscape(string(id)))
}

func (s *ResultStore) jobsSet(campaign string) string {
	return fmt.Sprintf("%s:jobs:%s", keyPrefix, url.QueryEscape(campaign))
}

func (s *ResultStore) specKey(campaign string) string {
	return fmt.Sprintf("%s:spec:%s", keyPrefix, url.QueryEscape(campaign))
}

func (s *ResultStore) SaveJob(ctx context.Context, job *store.JobResult) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.JobID, err)
	}
	key := s.jobKey(job.Campaign, job.JobID)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, 0)
		pipe.SAdd(ctx, s.jobsSet(job.Campaign), key)
		pipe.SAdd(ctx, campaignsSet, job.Campaign)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save job %s: %w", key, err)
	}
	return nil
}

func (s *ResultStore) GetJob(ctx context.Context, campaign string, id store.JobID) (*store.JobResult, error) {
	key := s.jobKey(campaign, id)
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("job %s/%s: %w", campaign, id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to GET key %s: %w", key, err)
	}
	var job store.JobResult
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job from key %s: %w", key, err)
	}
	return &job, nil
}

func (s *ResultStore) ListJobs(ctx context.Context, filter store.JobFilter) ([]*store.JobResult, error) {
	campaigns := []string{filter.Campaign}
	if filter.Campaign == "" {
		var err error
		campaigns, err = s.client.SMembers(ctx, campaignsSet).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to SMEMBERS %s: %w", campaignsSet, err)
		}
	}

	var jobs []*store.JobResult
	for _, c := range campaigns {
		keys, err := s.client.SMembers(ctx, s.jobsSet(c)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to SMEMBERS %s: %w", s.jobsSet(c), err)
		}
		if len(keys) == 0 {
			continue
		}
		values, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to MGET jobs of %s: %w", c, err)
		}
		for i, val := range values {
			if val == nil {
				continue
			}
			str, ok := val.(string)
			if !ok {
				return nil, fmt.Errorf("MGET returned non-string for key %s", keys[i])
			}
			var job store.JobResult
			if err := json.Unmarshal([]byte(str), &job); err != nil {
				return nil, fmt.Errorf("failed to unmarshal job for key %s: %w", keys[i], err)
			}
			if filter.Kind != "" && job.Kind != filter.Kind {
				continue
			}
			jobs = append(jobs, &job)
		}
	}

	store.SortJobs(jobs)
	if filter.Limit > 0 && len(jobs) > filter.Limit {
		jobs = jobs[:filter.Limit]
	}
	return jobs, nil
}

func (s *ResultStore) SaveMutationSpec(ctx context.Context, spec *store.MutationSpecRecord) error {
	rec := *spec
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal mutation spec: %w", err)
	}
	if err := s.client.Set(ctx, s.specKey(spec.Campaign), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to SET mutation spec: %w", err)
	}
	return nil
}

func (s *ResultStore) GetMutationSpec(ctx context.Context, campaign string) (*store.MutationSpecRecord, error) {
	data, err := s.client.Get(ctx, s.specKey(campaign)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("mutation spec %s: %w", campaign, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to GET mutation spec: %w", err)
	}
	var spec store.MutationSpecRecord
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal mutation spec: %w", err)
	}
	return &spec, nil
}

// DeleteCampaign removes the jobs, job set and mutation spec of campaign.
func (s *ResultStore) DeleteCampaign(ctx context.Context, campaign string) error {
	keys, err := s.client.SMembers(ctx, s.jobsSet(campaign)).Result()
	if err != nil {
		return fmt.Errorf("failed to SMEMBERS %s: %w", s.jobsSet(campaign), err)
	}
	keys = append(keys, s.jobsSet(campaign), s.specKey(campaign))
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.SRem(ctx, campaignsSet, campaign)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete campaign %s: %w", campaign, err)
	}
	return nil
}

// Clear removes every campaign written by the store.
func (s *ResultStore) Clear(ctx context.Context) error {
	campaigns, err := s.client.SMembers(ctx, campaignsSet).Result()
	if err != nil {
		return fmt.Errorf("failed to SMEMBERS %s during clear: %w", campaignsSet, err)
	}
	for _, c := range campaigns {
		if err := s.DeleteCampaign(ctx, c); err != nil {
			return err
		}
	}
	return s.client.Del(ctx, campaignsSet).Err()
}

// Close closes the underlying client.
func (s *ResultStore) Close() error {
	return s.client.Close()
}
