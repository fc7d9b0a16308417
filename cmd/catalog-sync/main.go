package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/recollect/recollect/syncjob"
)

func main() {
	var opts syncjob.Options
	rootCmd := &cobra.Command{
		Use:   "catalog-sync",
		Short: "Mirror a directory of recordings into the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Out = cmd.OutOrStdout()
			return syncjob.Run(opts)
		},
		SilenceUsage: true,
	}
	rootCmd.Flags().StringVarP(&opts.Dir, "dir", "d", "", "Recordings directory (overrides RECOLLECT_RECORDINGS_DIR)")
	rootCmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Keep running and re-sync on directory changes")
	rootCmd.Flags().BoolVar(&opts.Checksums, "checksums", false, "Compute sha256 for recordings missing one")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
