package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/cloudsec/internal/app"
	"github.com/bryanwahyu/cloudsec/internal/config"
	"github.com/bryanwahyu/cloudsec/internal/logging"
	"github.com/bryanwahyu/cloudsec/internal/middleware"
)

type cli struct {
	configPath string
	out        io.Writer
	logOut     io.Writer
}

func newRootCmd(out, logOut io.Writer) *cobra.Command {
	c := &cli{out: out, logOut: logOut}

	root := &cobra.Command{
		Use:          "cloudsec",
		Short:        "Scan mock cloud resources for misconfigurations and remediate them",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to config.yaml (default $CONFIG_PATH or ./config.yaml)")

	root.AddCommand(
		c.scanCmd(),
		c.risksCmd(),
		c.riskCmd(),
		c.statsCmd(),
		c.remediateCmd(),
		c.statusCmd(),
		c.historyCmd(),
		c.resourcesCmd(),
		c.migrateCmd(),
	)
	return root
}

// loadConfig falls back to defaults only when no path was asked for
// explicitly and ./config.yaml is missing.
func (c *cli) loadConfig() (*config.Config, error) {
	path, explicit := c.configPath, c.configPath != ""
	if !explicit {
		if v := os.Getenv("CONFIG_PATH"); v != "" {
			path, explicit = v, true
		} else {
			path = "config.yaml"
		}
	}
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return config.Default(), nil
	}
	return cfg, err
}

// run opens the app, hands it to fn and closes it again.
func (c *cli) run(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) (any, error)) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	logger := logging.NewWithWriter(c.logOut, cfg.Log.Level, "console")
	ctx := logger.WithContext(cmd.Context())

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	v, err := fn(ctx, a)
	if err != nil {
		return err
	}
	return c.print(v)
}

func (c *cli) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run one detection scan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, a *app.App) (any, error) {
				res, err := a.Risks.PerformScan(ctx)
				if err != nil {
					return nil, err
				}
				return res, nil
			})
		},
	}
}

func (c *cli) risksCmd() *cobra.Command {
	var severity string
	cmd := &cobra.Command{
		Use:   "risks",
		Short: "List detected risks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, a *app.App) (any, error) {
				return a.Risks.List(ctx, severity)
			})
		},
	}
	cmd.Flags().StringVar(&severity, "severity", "", "filter by severity (HIGH, MEDIUM, LOW)")
	return cmd
}

func (c *cli) riskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "risk <id>",
		Short: "Show one risk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := middleware.ParseID(args[0])
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, a *app.App) (any, error) {
				return a.Risks.Get(ctx, id)
			})
		},
	}
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show risk counts by severity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, a *app.App) (any, error) {
				return a.Risks.Stats(ctx)
			})
		},
	}
}

type remediationResult struct {
	Status  string `json:"status"`
	RiskID  int64  `json:"riskId"`
	Message string `json:"message"`
}

func (c *cli) remediateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remediate <riskId>",
		Short: "Remediate one risk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := middleware.ParseID(args[0])
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, a *app.App) (any, error) {
				if a.Remediation.Remediate(ctx, id) {
					return remediationResult{Status: "success", RiskID: id, Message: "Remediation completed successfully"}, nil
				}
				if err := c.print(remediationResult{Status: "failed", RiskID: id, Message: "Remediation failed"}); err != nil {
					return nil, err
				}
				return nil, fmt.Errorf("remediation of risk %d failed", id)
			})
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <riskId>",
		Short: "Show the remediation status of a risk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := middleware.ParseID(args[0])
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, a *app.App) (any, error) {
				return a.Remediation.Status(ctx, id)
			})
		},
	}
}

func (c *cli) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <riskId>",
		Short: "List remediation attempts for a risk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := middleware.ParseID(args[0])
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, a *app.App) (any, error) {
				return a.Remediation.History(ctx, id)
			})
		},
	}
}

func (c *cli) resourcesCmd() *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "resources",
		Short: "List scanned resources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, a *app.App) (any, error) {
				return a.Risks.Resources(ctx, typ)
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "filter by type (BUCKET, NETWORK_RULE, ACCESS_POLICY)")
	return cmd
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, a *app.App) (any, error) {
				if err := a.Store.Migrate(ctx); err != nil {
					return nil, err
				}
				return map[string]string{"status": "migrated", "driver": a.Config.Database.Driver}, nil
			})
		},
	}
}
