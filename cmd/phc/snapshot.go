package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/cache"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain"
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Work with cache snapshots",
	}

	var (
		prefix string
		asJSON bool
	)
	inspectCmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show statistics of a file-backed cache snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filepath.Clean(args[0]))
			if err != nil {
				return fmt.Errorf("read snapshot: %w", err)
			}
			info, err := cache.Inspect(data, prefix, time.Now())
			if err != nil {
				return fmt.Errorf("inspect %s: %w", args[0], err)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			return printSnapshotInfo(cmd, info)
		},
	}
	inspectCmd.Flags().StringVar(&prefix, "prefix", domain.KeyPrefix, "key prefix stripped before grouping")
	inspectCmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")

	cmd.AddCommand(inspectCmd)
	return cmd
}

func printSnapshotInfo(cmd *cobra.Command, info cache.SnapshotInfo) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Version:\t%d\n", info.Version)
	fmt.Fprintf(w, "Saved at:\t%s\n", info.SavedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Entries:\t%d\n", info.Entries)
	fmt.Fprintf(w, "Expired:\t%d\n", info.Expired)
	fmt.Fprintf(w, "Total hits:\t%d\n", info.TotalHits)

	names := make([]string, 0, len(info.Namespaces))
	for ns := range info.Namespaces {
		names = append(names, ns)
	}
	sort.Strings(names)
	for _, ns := range names {
		fmt.Fprintf(w, "  %s\t%d\n", ns, info.Namespaces[ns])
	}
	return w.Flush()
}
