package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/recollect/recollect/internal/client"
	"github.com/recollect/recollect/internal/playback"
)

var (
	apiFlag     string
	timeoutFlag time.Duration
	debugFlag   bool
	rootCmd     = &cobra.Command{
		Use:          "recollectctl",
		Short:        "CLI client for the recollect REST API",
		SilenceUsage: true,
	}
)

func newClient() (*client.Client, error) {
	return client.New(apiFlag,
		client.WithTimeout(timeoutFlag),
		client.WithDebug(debugFlag),
		client.WithRetries(2),
	)
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:8000", "Recollect service base URL")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 2*time.Minute, "Request timeout, including audio streams")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Log HTTP requests and responses")

	// search subcommand
	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Interactively bisect the archive for a moment",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := searchOptionsFromFlags(cmd)
			if err != nil {
				return err
			}
			cli, err := newClient()
			if err != nil {
				return err
			}
			ffplay, _ := cmd.Flags().GetString("ffplay")
			player := newStreamPlayer(cli, playback.FFplay{Bin: ffplay})
			return runSearch(cmd.Context(), cli, player, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	searchCmd.Flags().String("lower", "", "Lower bound (RFC 3339)")
	searchCmd.Flags().String("upper", "", "Upper bound (RFC 3339)")
	searchCmd.Flags().Duration("duration", 0, "Approximate length of the moment being searched")
	searchCmd.Flags().Duration("snippet", defaultSnippet, "Length of each played snippet")
	searchCmd.Flags().String("strategy", "", "Probe strategy: midpoint or coverage")
	searchCmd.Flags().String("ffplay", "ffplay", "ffplay binary")
	rootCmd.AddCommand(searchCmd)

	// searches subcommand
	searchesCmd := &cobra.Command{
		Use:   "searches",
		Short: "List searches",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			cli, err := newClient()
			if err != nil {
				return err
			}
			return runSearches(cmd.Context(), cli, status, cmd.OutOrStdout())
		},
	}
	searchesCmd.Flags().String("status", "", "Filter by status: active or completed")
	rootCmd.AddCommand(searchesCmd)

	// recordings subcommand
	recordingsCmd := &cobra.Command{
		Use:   "recordings [id]",
		Short: "List recordings, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := newClient()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				return runRecording(cmd.Context(), cli, args[0], cmd.OutOrStdout())
			}
			start, _ := cmd.Flags().GetString("start")
			end, _ := cmd.Flags().GetString("end")
			return runRecordings(cmd.Context(), cli, start, end, cmd.OutOrStdout())
		},
	}
	recordingsCmd.Flags().String("start", "", "Only recordings beginning at or after (RFC 3339)")
	recordingsCmd.Flags().String("end", "", "Only recordings beginning at or before (RFC 3339)")
	rootCmd.AddCommand(recordingsCmd)

	// stats subcommand
	rootCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show catalog statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := newClient()
			if err != nil {
				return err
			}
			return runStats(cmd.Context(), cli, cmd.OutOrStdout())
		},
	})

	// play subcommand
	playCmd := &cobra.Command{
		Use:   "play <recording-id>",
		Short: "Play a clip of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			offset, _ := cmd.Flags().GetDuration("offset")
			duration, _ := cmd.Flags().GetDuration("duration")
			ffplay, _ := cmd.Flags().GetString("ffplay")
			cli, err := newClient()
			if err != nil {
				return err
			}
			player := newStreamPlayer(cli, playback.FFplay{Bin: ffplay})
			return player.Play(cmd.Context(), args[0], offset, duration)
		},
	}
	playCmd.Flags().Duration("offset", 0, "Start offset into the recording")
	playCmd.Flags().Duration("duration", 0, "Clip length; zero plays to the end")
	playCmd.Flags().String("ffplay", "ffplay", "ffplay binary")
	rootCmd.AddCommand(playCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
