package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rewired-gh/curio/internal/logger"
	"github.com/rewired-gh/curio/internal/models"
	"github.com/rewired-gh/curio/internal/revalue"
	"github.com/rewired-gh/curio/internal/storage"
)

func collectionCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:     "collection",
		Aliases: []string{"col"},
		Short:   "Manage a collection",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(userID) == "" {
				return errors.New("--user is required")
			}
			return initConfig(cmd, args)
		},
	}
	cmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "owner of the collection")

	cmd.AddCommand(collectionAddCmd(&userID))
	cmd.AddCommand(collectionListCmd(&userID))
	cmd.AddCommand(collectionGetCmd(&userID))
	cmd.AddCommand(collectionUpdateCmd(&userID))
	cmd.AddCommand(collectionDeleteCmd(&userID))
	cmd.AddCommand(collectionRevalueCmd(&userID))
	return cmd
}

func collectionAddCmd(userID *string) *cobra.Command {
	var (
		c        models.Collectible
		id       models.Identity
		estimate bool
	)

	cmd := &cobra.Command{
		Use:   "add <name...>",
		Short: "Add a collectible",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			c.UserID = *userID
			c.Name = strings.TrimSpace(strings.Join(args, " "))
			c.Category, c.Type, c.Manufacturer = id.Category, id.Type, id.Manufacturer
			c.YearProduced, c.Condition = id.YearProduced, id.Condition
			if err := store.Create(cmd.Context(), &c); err != nil {
				return err
			}

			if estimate {
				est, err := newEstimator(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				pe := models.NewPriceEstimate(est.GetPriceEstimate(cmd.Context(), c.Identity()), time.Now().UTC())
				if err := store.SetPriceEstimate(cmd.Context(), c.UserID, c.ID, pe); err != nil {
					return err
				}
				c.Estimate = &pe
			}
			return printJSON(&c)
		},
	}
	identityFlags(cmd, &id)
	cmd.Flags().StringVar(&c.Notes, "notes", "", "free-form notes")
	cmd.Flags().BoolVar(&estimate, "estimate", false, "estimate the market value right away")
	return cmd
}

func collectionListCmd(userID *string) *cobra.Command {
	var (
		f        storage.Filter
		minValue float64
		maxValue float64
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List collectibles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("min-value") {
				f.MinValue = &minValue
			}
			if cmd.Flags().Changed("max-value") {
				f.MaxValue = &maxValue
			}

			store, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			items, err := store.List(cmd.Context(), *userID, f)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(items)
			}

			total, valued, err := store.TotalValue(cmd.Context(), *userID)
			if err != nil {
				return err
			}
			return writeTable(cmd.OutOrStdout(), items, total, valued)
		},
	}
	cmd.Flags().StringVar(&f.Category, "category", "", "filter by category")
	cmd.Flags().StringVar(&f.Condition, "condition", "", "filter by condition")
	cmd.Flags().StringVarP(&f.Query, "query", "q", "", "match name or manufacturer")
	cmd.Flags().Float64Var(&minValue, "min-value", 0, "minimum market value")
	cmd.Flags().Float64Var(&maxValue, "max-value", 0, "maximum market value")
	cmd.Flags().StringVar(&f.SortBy, "sort", storage.SortByCreated, "sort by name, created or value")
	cmd.Flags().BoolVar(&f.Descending, "desc", false, "sort descending")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "maximum rows (0 = all)")
	cmd.Flags().IntVar(&f.Offset, "offset", 0, "rows to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func writeTable(out io.Writer, items []*models.Collectible, total float64, valued int) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tCONDITION\tVALUE\tCONFIDENCE\tESTIMATED")
	for _, c := range items {
		value, confidence, when := "-", "-", "never"
		if c.Estimate != nil {
			if v := c.MarketValue(); v != nil {
				value = "$" + humanize.FormatFloat("#,###.##", *v)
			}
			confidence = fmt.Sprintf("%d (%s)", c.Estimate.Confidence, c.Estimate.Level)
			when = humanize.Time(c.Estimate.EstimatedAt)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Category, c.Condition, value, confidence, when)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "\n%s items, %d valued, total $%s\n",
		humanize.Comma(int64(len(items))), valued, humanize.FormatFloat("#,###.##", total))
	return err
}

func collectionGetCmd(userID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a collectible",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			c, err := store.Get(cmd.Context(), *userID, args[0])
			if err != nil {
				return err
			}
			return printJSON(c)
		},
	}
}

func collectionUpdateCmd(userID *string) *cobra.Command {
	var (
		name  string
		notes string
		id    models.Identity
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update the fields of a collectible that are given as flags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			c, err := store.Get(cmd.Context(), *userID, args[0])
			if err != nil {
				return err
			}

			set := func(flag string, dst *string, v string) {
				if cmd.Flags().Changed(flag) {
					*dst = strings.TrimSpace(v)
				}
			}
			set("name", &c.Name, name)
			set("category", &c.Category, id.Category)
			set("type", &c.Type, id.Type)
			set("manufacturer", &c.Manufacturer, id.Manufacturer)
			set("year", &c.YearProduced, id.YearProduced)
			set("condition", &c.Condition, id.Condition)
			set("notes", &c.Notes, notes)

			if err := store.Update(cmd.Context(), c); err != nil {
				return err
			}
			return printJSON(c)
		},
	}
	identityFlags(cmd, &id)
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	return cmd
}

func collectionDeleteCmd(userID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a collectible",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.Delete(cmd.Context(), *userID, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func collectionRevalueCmd(userID *string) *cobra.Command {
	var every time.Duration

	cmd := &cobra.Command{
		Use:   "revalue",
		Short: "Re-estimate every collectible and report notable value changes",
		Long: `Re-estimates every collectible in the collection and writes the new
estimates back. Changes of at least revalue.min_change_pct are printed and,
when Telegram is enabled, sent as a digest.

With --every the revaluation repeats on that interval until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			est, err := newEstimator(ctx, cfg)
			if err != nil {
				return err
			}
			notifier, err := newNotifier(cfg)
			if err != nil {
				return err
			}

			r := revalue.New(est, store, revalue.Config{
				Workers:      cfg.Revalue.Workers,
				TopK:         cfg.Revalue.TopK,
				MinChangePct: cfg.Revalue.MinChangePct,
			})

			runOnce := func() error {
				res, err := r.Run(ctx, *userID)
				if err != nil {
					return err
				}
				for _, e := range res.Errors {
					logger.Warn("%v", e)
				}
				if notifier != nil && len(res.Changes) > 0 {
					if err := notifier.Send(ctx, res.Changes); err != nil {
						logger.Error("Failed to send Telegram notification: %v", err)
					}
				}
				return printJSON(res)
			}

			if every <= 0 {
				return runOnce()
			}

			logger.Info("Revaluing collection of %s every %v", *userID, every)
			if err := runOnce(); err != nil {
				logger.Error("Revaluation failed: %v", err)
			}
			ticker := time.NewTicker(every)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					logger.Info("Revaluation stopped")
					return nil
				case <-ticker.C:
					if err := runOnce(); err != nil {
						logger.Error("Revaluation failed: %v", err)
					}
				}
			}
		},
	}
	cmd.Flags().DurationVar(&every, "every", 0, "repeat on this interval (e.g. 24h); 0 runs once")
	return cmd
}
