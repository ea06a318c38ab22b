package cmd

import (
	"github.com/spf13/cobra"

	ferrors "github.com/Aman-CERP/folio/internal/errors"
	"github.com/Aman-CERP/folio/internal/ledger"
	"github.com/Aman-CERP/folio/internal/output"
)

func newRunsCmd() *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent ingest runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return ferrors.ValidationError(err.Error(), err)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			led, err := ledger.Open(cfg.Ledger.Path)
			if err != nil {
				return err
			}
			defer func() { _ = led.Close() }()

			runs, err := led.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return output.NewWithFormat(cmd.OutOrStdout(), f).Runs(runs)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}
