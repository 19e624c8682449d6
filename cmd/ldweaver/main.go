package main

import (
	"fmt"
	"os"

	"github.com/alvmarrod/ld-weaver/internal/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	// Configure logging
	logrus.SetLevel(logrus.InfoLevel)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ldweaver",
		Short:         "Crawl pages, merge their JSON-LD into one RDF graph and save it as OWL",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(newCrawlCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newRunsCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ldweaver v%s\n", version.Version)
		},
	})

	return root
}
