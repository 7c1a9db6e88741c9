package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/xraph/jobrepo/schema"
	"github.com/xraph/jobrepo/sequence"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create collections, indexes and sequence counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.repo.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(stdout(cmd), "initialised %s backend\n", a.cfg.Backend.Driver)
			return nil
		},
	}
}

func newSequencesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sequences",
		Short: "Show the last issued value of every counter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			seqs, err := a.repo.Sequences(cmd.Context())
			if err != nil {
				return err
			}
			out := stdout(cmd)
			for _, k := range sequence.Kinds() {
				v, ok := seqs[k]
				if !ok {
					fmt.Fprintf(out, "%-16s missing\n", k)
					continue
				}
				fmt.Fprintf(out, "%-16s %d\n", k, v)
			}
			return nil
		},
	}
}

func newIndexesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "List the indexes present per collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			idx, err := a.repo.Indexes(cmd.Context())
			if err != nil {
				return err
			}
			collections := make([]schema.Collection, 0, len(idx))
			for c := range idx {
				collections = append(collections, c)
			}
			sort.Slice(collections, func(i, k int) bool { return collections[i] < collections[k] })

			out := stdout(cmd)
			for _, c := range collections {
				fmt.Fprintf(out, "%s:\n", c)
				for _, name := range idx[c] {
					fmt.Fprintf(out, "  %s\n", name)
				}
			}
			return nil
		},
	}
}
