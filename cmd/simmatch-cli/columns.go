package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"yashubustudio/simmatch/simmatch"
)

func newColumnsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "columns FILE",
		Short: "List the header of a spreadsheet and the columns that would be picked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			meta, err := simmatch.ReadTableMetadata(args[0], cfg.Columns)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%d rows)\n", args[0], meta.Rows)
			for i, col := range meta.Columns {
				name := strings.Join(strings.Fields(col), " ")
				marker := "  "
				switch {
				case name != "" && name == meta.SuggestedText:
					marker = color.GreenString("T ")
				case lo.Contains(meta.SuggestedIDs, name):
					marker = color.CyanString("I ")
				}
				fmt.Fprintf(out, "%s#%d %s\n", marker, i+1, name)
			}
			if meta.SuggestedText == "" {
				fmt.Fprintln(out, color.YellowString("no text column detected; pass --left-column or --right-column"))
			}
			return nil
		},
	}
}
