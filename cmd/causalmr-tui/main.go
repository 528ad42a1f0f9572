package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/rmax-ai/causalmr/pkg/config"
	"github.com/rmax-ai/causalmr/pkg/store"
	storeredis "github.com/rmax-ai/causalmr/pkg/store/redis"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, dbPath, redisAddr string
	cmd := &cobra.Command{
		Use:          "causalmr-tui --campaign NAME",
		Short:        "Watch a mutation campaign's result records",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			campaign, _ := cmd.Flags().GetString("campaign")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			if redisAddr != "" {
				cfg.RedisAddr = redisAddr
			}

			st, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			p := tea.NewProgram(initialModel(campaign, st), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
	cmd.Flags().StringVar(&configPath, "config", os.Getenv("CAUSALMR_CONFIG"), "path to YAML config")
	cmd.Flags().String("campaign", "", "campaign to watch")
	cmd.Flags().StringVar(&dbPath, "db", "", "path to the SQLite result store")
	cmd.Flags().StringVar(&redisAddr, "redis", "", "Redis address; used instead of SQLite when set")
	_ = cmd.MarkFlagRequired("campaign")
	return cmd
}

// openStore opens the store read by the TUI. Unlike the CLI it never
// creates a SQLite database directory.
func openStore(ctx context.Context, cfg config.Config) (store.ResultStore, error) {
	if cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		return storeredis.NewResultStore(client), nil
	}
	if _, err := os.Stat(cfg.DBPath); err != nil {
		return nil, fmt.Errorf("result store %s: %w", cfg.DBPath, err)
	}
	return store.NewStore(cfg.DBPath)
}
