package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "truerank",
		Short: "Percentile-normalized anime rankings across rating eras",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(fetchCmd())
	root.AddCommand(rankCmd())
	root.AddCommand(reportCmd())
	root.AddCommand(topCmd())
	root.AddCommand(newsCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func fetchCmd() *cobra.Command {
	var providers []string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Pull top lists from the rating sites",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(providers)
		},
	}

	cmd.Flags().StringSliceVar(&providers, "provider", nil, "specific providers to fetch (mal,anilist)")
	return cmd
}

func rankCmd() *cobra.Command {
	var allowDegenerate bool

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Re-rank the stored catalog against the baseline era",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRank(allowDegenerate)
		},
	}

	cmd.Flags().BoolVar(&allowDegenerate, "allow-degenerate", false, "proceed with the fallback distribution when the baseline era matches nothing")
	return cmd
}

func reportCmd() *cobra.Command {
	var (
		format string
		runID  string
		limit  int
		out    string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a saved run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(format, runID, limit, out)
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json or html")
	cmd.Flags().StringVar(&runID, "run", "", "run id (default: latest)")
	cmd.Flags().IntVar(&limit, "limit", 0, "max rows (default: all)")
	cmd.Flags().StringVar(&out, "out", "", "write to file instead of stdout")
	return cmd
}

func topCmd() *cobra.Command {
	var (
		jsonOutput bool
		limit      int
		year       int
	)

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show the stored site standings, unadjusted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTop(jsonOutput, limit, year)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 20, "max shows to list")
	cmd.Flags().IntVar(&year, "year", 0, "filter by release year")
	return cmd
}

func newsCmd() *cobra.Command {
	var topN int

	cmd := &cobra.Command{
		Use:   "news",
		Short: "Show news headlines for the top-ranked titles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNews(topN)
		},
	}

	cmd.Flags().IntVar(&topN, "top", 20, "ranked titles to match headlines against")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
