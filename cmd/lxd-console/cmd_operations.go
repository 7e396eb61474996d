package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/battlewithbytes/lxd-console/internal/config"
	"github.com/battlewithbytes/lxd-console/internal/store"
	"github.com/battlewithbytes/lxd-console/internal/ui"
)

var (
	operationsConfigPath string
	operationsLimit      int
)

func init() {
	operationsCmd.PersistentFlags().StringVar(&operationsConfigPath, "config", config.DefaultConfigPath, "path to config file")
	operationsCmd.Flags().IntVarP(&operationsLimit, "limit", "n", 20, "number of operations to show")
	operationsCmd.AddCommand(operationsClearCmd)
	rootCmd.AddCommand(operationsCmd)
}

func openHistory() (*store.Store, error) {
	cfg, err := config.Load(operationsConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	st, err := store.NewStore(cfg.HistoryPath())
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	return st, nil
}

var operationsCmd = &cobra.Command{
	Use:     "operations",
	Aliases: []string{"ops"},
	Short:   "List recent daemon operations and their outcome",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openHistory()
		if err != nil {
			return err
		}
		defer st.Close()

		ops, err := st.ListOperations(operationsLimit)
		if err != nil {
			return fmt.Errorf("listing operations: %w", err)
		}
		printOperations(cmd.OutOrStdout(), ops)
		return nil
	},
}

var operationsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete finished operations from the history",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openHistory()
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.ClearCompletedOperations()
		if err != nil {
			return fmt.Errorf("clearing operations: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d finished operations.\n", n)
		return nil
	},
}

func printOperations(w io.Writer, ops []*store.OperationRecord) {
	if len(ops) == 0 {
		fmt.Fprintln(w, ui.Dim.Render("No operations recorded."))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tACTION\tRESOURCE\tPROJECT\tMESSAGE\tSTATUS")
	for _, op := range ops {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			op.CreatedAt.Local().Format(time.DateTime),
			op.Action, op.Resource, op.Project,
			op.Message, ui.Status(op.Status))
	}
	tw.Flush()
}
