package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/rmax-ai/causalmr/pkg/graph"
	"github.com/rmax-ai/causalmr/pkg/store"
	storeredis "github.com/rmax-ai/causalmr/pkg/store/redis"
)

// writeOutput writes data to path, or to the command's stdout when path is
// empty.
func writeOutput(cmd *cobra.Command, data []byte, path string) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Written to %s\n", path)
	return nil
}

func writeJSON(cmd *cobra.Command, v any, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	return writeOutput(cmd, append(data, '\n'), path)
}

// readDAG loads and validates a graph description file.
func readDAG(path string) (*graph.Graph, graph.Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read DAG: %w", err)
	}
	g, meta, err := graph.UnmarshalDOT(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := g.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, meta, nil
}

// openStore opens the configured result store.
func (a *app) openStore(ctx context.Context) (store.ResultStore, error) {
	if a.cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: a.cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", a.cfg.RedisAddr, err)
		}
		a.logger.Debug("store_opened", "backend", "redis", "addr", a.cfg.RedisAddr)
		return storeredis.NewResultStore(client), nil
	}

	if err := os.MkdirAll(filepath.Dir(a.cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	st, err := store.NewStore(a.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("store_opened", "backend", "sqlite", "path", a.cfg.DBPath)
	return st, nil
}
