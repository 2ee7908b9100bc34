package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/warranty-intake/internal/model"
	"github.com/sells-group/warranty-intake/internal/store"
)

var (
	callsUnverified bool
	callsIntent     string
	callsLimit      int
)

var callsCmd = &cobra.Command{
	Use:   "calls",
	Short: "List recent call records (review queue)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck

		filter := model.CallFilter{Intent: callsIntent, Limit: callsLimit}
		if callsUnverified {
			verified := false
			filter.Verified = &verified
		}

		records, err := s.ListCallRecords(ctx, filter)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CALL ID\tCALLER\tINTENT\tVERIFIED\tURGENT\tCLAIM\tCREATED")
		for _, rec := range records {
			claim := rec.ClaimID
			if claim == "" {
				claim = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\t%s\t%s\n",
				rec.ExternalCallID,
				rec.CallerPhone,
				rec.Extracted.Intent,
				rec.IsVerified,
				rec.IsUrgent,
				claim,
				rec.CreatedAt.Format("2006-01-02 15:04"),
			)
		}
		return w.Flush()
	},
}

func init() {
	callsCmd.Flags().BoolVar(&callsUnverified, "unverified", false, "only calls pending manual review")
	callsCmd.Flags().StringVar(&callsIntent, "intent", "", "filter by call intent")
	callsCmd.Flags().IntVar(&callsLimit, "limit", 50, "max records to list")
	rootCmd.AddCommand(callsCmd)
}
