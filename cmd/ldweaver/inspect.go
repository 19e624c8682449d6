package main

import (
	"fmt"
	"sort"

	"github.com/alvmarrod/ld-weaver/internal/rdfxml"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.owl>",
		Short: "Summarize a written RDF/XML graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			triples, err := rdfxml.ReadFile(args[0])
			if err != nil {
				return err
			}

			subjects := make(map[string]bool)
			predicates := make(map[string]int)
			for _, t := range triples {
				subjects[t.Subject.String()] = true
				predicates[t.Predicate.Value]++
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d triples, %d subjects\n", args[0], len(triples), len(subjects))
			for _, p := range sortByCount(predicates) {
				fmt.Fprintf(out, "  %6d  %s\n", predicates[p], p)
			}
			return nil
		},
	}
}

func sortByCount(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
