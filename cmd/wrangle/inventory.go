package main

import (
	"fmt"
	"slices"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/justapithecus/wrangle/wrangle"
	wrangles3 "github.com/justapithecus/wrangle/wrangle/s3"
)

// sourceFrom turns positional arguments into a Source: a single prefix
// when byPrefix is set, otherwise the listed locators.
func sourceFrom(args []string, byPrefix bool) (wrangles3.Source, error) {
	if byPrefix {
		if len(args) != 1 {
			return wrangles3.Source{}, fmt.Errorf("%w: --prefix takes exactly one argument, got %d",
				wrangle.ErrInvalidArgumentCombination, len(args))
		}
		return wrangles3.Prefix(args[0]), nil
	}
	return wrangles3.Paths(args...), nil
}

func newRegionCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "region <bucket>",
		Short: "Print the region a bucket lives in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			region, err := s.client.BucketRegion(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), region)
			return nil
		},
	}
}

func newExistsCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "exists <s3://bucket/key>",
		Short: "Print whether an object exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := s.client.Exists(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			return nil
		},
	}
}

func newListCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:     "ls <s3://bucket/prefix>",
		Aliases: []string{"list"},
		Short:   "List every object under a prefix",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			locators, err := s.client.ListObjects(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, loc := range locators {
				fmt.Fprintln(cmd.OutOrStdout(), loc)
			}
			return nil
		},
	}
}

func newDeleteCmd(s *session) *cobra.Command {
	var byPrefix bool
	cmd := &cobra.Command{
		Use:     "rm <s3://bucket/key>... | --prefix <s3://bucket/prefix>",
		Aliases: []string{"delete"},
		Short:   "Delete objects in batches",
		Long: `Deletes the listed objects, or every object under a prefix, in batches of
up to 1000 keys per request. Deletion is not transactional.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := sourceFrom(args, byPrefix)
			if err != nil {
				return err
			}
			if err := s.client.Delete(cmd.Context(), src, s.useConcurrency()); err != nil {
				return err
			}
			printSuccess(cmd.ErrOrStderr(), "Deleted %s", src)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&byPrefix, "prefix", "p", false, "Treat the argument as a prefix")
	return cmd
}

func newDescribeCmd(s *session) *cobra.Command {
	var (
		byPrefix bool
		wait     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "describe <s3://bucket/key>... | --prefix <s3://bucket/prefix>",
		Short: "Print object attributes as JSON",
		Long: `Prints the HeadObject attributes of each object as a JSON document keyed by
locator. Objects not found within --wait are reported as {}.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := sourceFrom(args, byPrefix)
			if err != nil {
				return err
			}
			descs, err := s.client.Describe(cmd.Context(), src, wait, s.useConcurrency())
			if err != nil {
				return err
			}
			out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(descs, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding attributes: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&byPrefix, "prefix", "p", false, "Treat the argument as a prefix")
	cmd.Flags().DurationVar(&wait, "wait", 0, "How long to retry objects that are not found yet")
	return cmd
}

func newSizeCmd(s *session) *cobra.Command {
	var (
		byPrefix bool
		wait     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "size <s3://bucket/key>... | --prefix <s3://bucket/prefix>",
		Short: "Print object sizes in bytes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := sourceFrom(args, byPrefix)
			if err != nil {
				return err
			}
			sizes, err := s.client.Size(cmd.Context(), src, wait, s.useConcurrency())
			if err != nil {
				return err
			}
			locators := make([]string, 0, len(sizes))
			for loc := range sizes {
				locators = append(locators, loc)
			}
			slices.Sort(locators)
			for _, loc := range locators {
				if n := sizes[loc]; n != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", loc, *n)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t-\n", loc)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&byPrefix, "prefix", "p", false, "Treat the argument as a prefix")
	cmd.Flags().DurationVar(&wait, "wait", 0, "How long to retry objects that are not found yet")
	return cmd
}
