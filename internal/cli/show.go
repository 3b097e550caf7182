package cli

import (
	"github.com/spf13/cobra"

	"fund-nav-monitor/internal/app"
)

var (
	showFund  string
	showLimit int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the tail of a fund's cached NAV series",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Show(cmd.Context(), app.ShowOptions{
			Fund:  showFund,
			Limit: showLimit,
		})
	},
}

func init() {
	showCmd.Flags().StringVar(&showFund, "fund", "", "Fund code to show")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of most recent records to print")
}
