package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/DukeRupert/streamtosite/internal/domain"
	"github.com/DukeRupert/streamtosite/internal/plan"
)

type opener func(ctx context.Context) (*workspace, error)

// cli carries state shared by every subcommand.
type cli struct {
	open   opener
	ws     *workspace
	asJSON bool
}

func newRootCommand(open opener) *cobra.Command {
	c := &cli{open: open}

	root := &cobra.Command{
		Use:   "stsctl",
		Short: "StreamToSite operator tool",
		Long: `stsctl inspects and adjusts a StreamToSite workspace: the active plan,
entitlements, usage and site traffic. It reads the same environment as the
server, so point it at the same storage backend.`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ws, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			c.ws = ws
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.ws != nil && c.ws.close != nil {
				return c.ws.close()
			}
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&c.asJSON, "json", false, "print JSON instead of a table")

	root.AddCommand(
		c.plansCommand(),
		c.entitlementsCommand(),
		c.usageCommand(),
		c.setPlanCommand(),
		c.overrideCommand(),
		c.trafficCommand(),
		c.resetCommand(),
	)
	return root
}

func (c *cli) plansCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List the plan catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plans := plan.All()
			current := c.ws.store.Plan(cmd.Context())
			if c.asJSON {
				return writeJSON(cmd.OutOrStdout(), plans)
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tNAME\tPRICE\tSITES\tPOSTS/MONTH\t")
			for _, p := range plans {
				id := string(p.ID)
				if p.ID == current {
					id += " *"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n", id, p.Name, price(p),
					limit(p.Limits.MaxSites), limit(p.Limits.MaxPostsPerMonth))
			}
			return tw.Flush()
		},
	}
}

func (c *cli) entitlementsCommand() *cobra.Command {
	var features []string
	cmd := &cobra.Command{
		Use:   "entitlements",
		Short: "Show what the active plan allows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := make([]domain.FeatureKey, 0, len(features))
			for _, f := range features {
				keys = append(keys, domain.FeatureKey(f))
			}
			res, err := c.ws.gate.Evaluate(cmd.Context(), keys...)
			if err != nil {
				return err
			}
			if c.asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Plan: %s (%s)\n", res.PlanName, res.PlanID)
			if len(keys) > 0 {
				fmt.Fprintf(out, "Access to %s: %s\n", strings.Join(features, ", "), yesNo(res.HasAccess))
				return nil
			}
			tw := newTable(out)
			fmt.Fprintln(tw, "FEATURE\tINCLUDED\t")
			for _, key := range domain.FeatureKeys {
				fmt.Fprintf(tw, "%s\t%s\t\n", key, yesNo(res.Can(key)))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringSliceVar(&features, "feature", nil, "check access to specific features")
	return cmd
}

func (c *cli) usageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show usage for the current billing period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.ws.gate.Evaluate(cmd.Context())
			if err != nil {
				return err
			}
			if c.asJSON {
				return writeJSON(cmd.OutOrStdout(), res.Usage)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Period: %s to %s\n",
				res.Usage.PeriodStart.Format("2006-01-02"), res.Usage.PeriodEnd.Format("2006-01-02"))
			tw := newTable(out)
			fmt.Fprintln(tw, "COUNTER\tUSED\tLIMIT\tREMAINING\t")
			for _, key := range []domain.LimitKey{domain.LimitMaxSites, domain.LimitMaxPostsPerMonth} {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t\n", key, res.Usage.Value(key),
					limit(res.Limits[key]), limit(res.Remaining[key]))
			}
			return tw.Flush()
		},
	}
}

func (c *cli) setPlanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-plan <plan-id>",
		Short: "Switch the workspace to a plan without billing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, ok := plan.ParseID(args[0])
			if !ok {
				return fmt.Errorf("unknown plan %q", args[0])
			}
			if err := c.ws.store.SetPlan(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Plan set to %s\n", id)
			return nil
		},
	}
}

func (c *cli) overrideCommand() *cobra.Command {
	var posts, sites int64
	var remove bool
	cmd := &cobra.Command{
		Use:   "usage-override",
		Short: "Store server-reported usage, or clear it with --clear",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if remove {
				if err := c.ws.store.ClearUsageOverride(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Usage override cleared")
				return nil
			}
			if posts < 0 || sites < 0 {
				return errors.New("usage counts must not be negative")
			}
			u := domain.Usage{PostsThisPeriod: posts, SitesCreated: sites}
			if err := c.ws.store.SetUsageOverride(ctx, u); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Usage override set: %d posts, %d sites\n", posts, sites)
			return nil
		},
	}
	cmd.Flags().Int64Var(&posts, "posts", 0, "posts this period")
	cmd.Flags().Int64Var(&sites, "sites", 0, "sites created")
	cmd.Flags().BoolVar(&remove, "clear", false, "remove the override")
	return cmd
}

func (c *cli) trafficCommand() *cobra.Command {
	var views, revenue int64
	cmd := &cobra.Command{
		Use:   "traffic <site-id>",
		Short: "Record views and revenue (cents) for a site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid site id: %w", err)
			}
			if views < 0 || revenue < 0 {
				return errors.New("--views and --revenue must not be negative")
			}
			site, err := c.ws.store.RecordTraffic(cmd.Context(), id, views, revenue)
			if err != nil {
				return err
			}
			if site == nil {
				return fmt.Errorf("site %s not found", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d views, %d cents\n", site.DisplayName(), site.Stats.Views, site.Stats.Revenue)
			return nil
		},
	}
	cmd.Flags().Int64Var(&views, "views", 0, "views to add")
	cmd.Flags().Int64Var(&revenue, "revenue", 0, "revenue to add, in cents")
	return cmd
}

func (c *cli) resetCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all workspace state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to reset without --yes")
			}
			if err := c.ws.store.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Workspace reset")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

// =============================================================================
// Output helpers
// =============================================================================

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func limit(v int64) string {
	if v == domain.Unlimited {
		return "unlimited"
	}
	return fmt.Sprintf("%d", v)
}

func price(p domain.Plan) string {
	if p.IsFree() {
		return "free"
	}
	return fmt.Sprintf("$%d.%02d/%s", p.Price/100, p.Price%100, p.Period)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
