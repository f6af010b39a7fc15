// Command app-activate-report prints launch counts from the audit database
// without starting the launcher.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"app-activate/internal/audit"
	"app-activate/internal/config"
)

var version = "dev"

func main() {
	var configPath, dbPath string
	rootCmd := &cobra.Command{
		Use:          "app-activate-report",
		Short:        "Show app-activate launch counts",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveDB(configPath, dbPath)
			if err != nil {
				return err
			}
			store, err := audit.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()
			return audit.WriteReport(cmd.Context(), cmd.OutOrStdout(), store, time.Now())
		},
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (default $APP_ACTIVATE_CONFIG or the XDG config dir)")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "Audit database (default: db from the config file)")

	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

func resolveDB(configPath, dbPath string) (string, error) {
	if p := strings.TrimSpace(dbPath); p != "" {
		return config.ExpandPath(p)
	}
	path := config.DefaultPath()
	if p := strings.TrimSpace(configPath); p != "" {
		expanded, err := config.ExpandPath(p)
		if err != nil {
			return "", err
		}
		path = expanded
	}
	cfg, err := config.Load(path)
	if err != nil {
		return "", err
	}
	db, err := cfg.ResolveDB(path)
	if err != nil {
		return "", err
	}
	if db == "" {
		return "", fmt.Errorf("auditing is disabled: set db in %s or pass --db", path)
	}
	return db, nil
}
