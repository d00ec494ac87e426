package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/curio/internal/models"
)

func identityFlags(cmd *cobra.Command, id *models.Identity) {
	cmd.Flags().StringVar(&id.Category, "category", "", "category, e.g. \"coins\"")
	cmd.Flags().StringVar(&id.Type, "type", "", "item type, e.g. \"silver dollar\"")
	cmd.Flags().StringVar(&id.Manufacturer, "manufacturer", "", "manufacturer or maker")
	cmd.Flags().StringVar(&id.YearProduced, "year", "", "year produced")
	cmd.Flags().StringVar(&id.Condition, "condition", "", "condition or grade, e.g. \"PSA 9\"")
}

func estimateCmd() *cobra.Command {
	var id models.Identity

	cmd := &cobra.Command{
		Use:   "estimate [name...]",
		Short: "Estimate the market value of a collectible",
		Example: `  curio estimate "Morgan Silver Dollar" --year 1881 --condition MS-63
  curio estimate --category "trading cards" "Charizard Base Set"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			id.Name = strings.TrimSpace(strings.Join(args, " "))
			if id.IsEmpty() {
				return errors.New("a name or at least one of --category, --type, --manufacturer, --year is required")
			}

			est, err := newEstimator(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return printJSON(est.GetPriceEstimate(cmd.Context(), id))
		},
	}
	identityFlags(cmd, &id)
	return cmd
}
