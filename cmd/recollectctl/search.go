package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/recollect/recollect/internal/api/validate"
	"github.com/recollect/recollect/internal/client"
	"github.com/recollect/recollect/internal/model"
	"github.com/recollect/recollect/internal/playback"
)

const defaultSnippet = 5 * time.Second

// searchAPI is the part of the client the interactive loop drives.
type searchAPI interface {
	CreateSearch(ctx context.Context, req client.CreateSearchRequest) (*model.Search, error)
	NextPrompt(ctx context.Context, id, strategy string) (*model.SearchPrompt, error)
	Submit(ctx context.Context, id string, prompt model.SearchPrompt, result model.Result) (*model.Search, error)
}

type clipPlayer interface {
	Play(ctx context.Context, recordingID string, offset, duration time.Duration) error
}

// streamPlayer fetches a clip from the service and pipes it into ffplay.
type streamPlayer struct {
	cli    *client.Client
	ffplay playback.FFplay
}

func newStreamPlayer(cli *client.Client, ffplay playback.FFplay) streamPlayer {
	return streamPlayer{cli: cli, ffplay: ffplay}
}

func (p streamPlayer) Play(ctx context.Context, recordingID string, offset, duration time.Duration) error {
	var off, dur *model.Seconds
	if offset > 0 {
		o := model.Seconds(offset)
		off = &o
	}
	if duration > 0 {
		d := model.Seconds(duration)
		dur = &d
	}
	stream, err := p.cli.Play(ctx, recordingID, off, dur)
	if err != nil {
		return err
	}
	defer func() { _ = stream.Close() }()
	return p.ffplay.Play(ctx, stream)
}

type searchOptions struct {
	Lower    *time.Time
	Upper    *time.Time
	Duration time.Duration
	Snippet  time.Duration
	Strategy string
}

func searchOptionsFromFlags(cmd *cobra.Command) (searchOptions, error) {
	var opts searchOptions
	lower, _ := cmd.Flags().GetString("lower")
	upper, _ := cmd.Flags().GetString("upper")
	opts.Duration, _ = cmd.Flags().GetDuration("duration")
	opts.Snippet, _ = cmd.Flags().GetDuration("snippet")
	opts.Strategy, _ = cmd.Flags().GetString("strategy")

	var err error
	if opts.Lower, err = validate.OptionalTimestamp("lower", lower); err != nil {
		return opts, err
	}
	if opts.Upper, err = validate.OptionalTimestamp("upper", upper); err != nil {
		return opts, err
	}
	if err := validate.Bounds(opts.Lower, opts.Upper); err != nil {
		return opts, err
	}
	if opts.Duration < 0 {
		return opts, fmt.Errorf("--duration must not be negative")
	}
	if opts.Snippet <= 0 {
		return opts, fmt.Errorf("--snippet must be positive")
	}
	return opts, nil
}

type answer string

const (
	answerBefore answer = "before"
	answerAfter  answer = "after"
	answerExact  answer = "exact"
	answerLonger answer = "longer"
	answerExit   answer = "exit"
)

func parseAnswer(s string) (answer, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "b", "before":
		return answerBefore, nil
	case "a", "after":
		return answerAfter, nil
	case "e", "exact":
		return answerExact, nil
	case "l", "longer":
		return answerLonger, nil
	case "q", "exit", "quit":
		return answerExit, nil
	}
	return "", fmt.Errorf("invalid response %q", s)
}

// errInputClosed is returned when stdin ends before the search does.
var errInputClosed = errors.New("input closed before the search completed")

func ask(sc *bufio.Scanner, out io.Writer) (answer, error) {
	for {
		fmt.Fprint(out, "Was the moment before/after/exact, or play longer/exit? ")
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", errInputClosed
		}
		a, err := parseAnswer(sc.Text())
		if err == nil {
			return a, nil
		}
		fmt.Fprintln(out, "Invalid response.")
	}
}

// runSearch creates a search and loops prompt, play, answer until the user
// finds the moment, gives up, or no recording covers the probe. "longer"
// replays the same probe with a doubled snippet and records nothing.
func runSearch(ctx context.Context, api searchAPI, player clipPlayer, opts searchOptions, in io.Reader, out io.Writer) error {
	req := client.CreateSearchRequest{Lower: opts.Lower, Upper: opts.Upper}
	if opts.Duration > 0 {
		d := model.Seconds(opts.Duration)
		req.Duration = &d
	}
	s, err := api.CreateSearch(ctx, req)
	if err != nil {
		return fmt.Errorf("create search: %w", err)
	}
	fmt.Fprintf(out, "Search %s created\n", s.ID)

	sc := bufio.NewScanner(in)
	snippet := opts.Snippet
	for {
		prompt, err := api.NextPrompt(ctx, s.ID, opts.Strategy)
		if err != nil {
			return fmt.Errorf("next prompt: %w", err)
		}
		fmt.Fprintf(out, "Probe %s (between %s and %s)\n",
			formatInstant(prompt.Timestamp),
			formatInstant(prompt.CurrentLowerBound),
			formatInstant(prompt.CurrentUpperBound))
		if prompt.PlayRequest == nil {
			fmt.Fprintln(out, "No recording covers this probe; the search cannot continue.")
			return nil
		}

		var offset time.Duration
		if prompt.PlayRequest.Offset != nil {
			offset = prompt.PlayRequest.Offset.Duration()
		}
		if err := player.Play(ctx, prompt.PlayRequest.RecordingID, offset, snippet); err != nil {
			return fmt.Errorf("play %s: %w", prompt.PlayRequest.RecordingID, err)
		}

		a, err := ask(sc, out)
		if err != nil {
			return err
		}
		switch a {
		case answerExit:
			fmt.Fprintln(out, "Exiting search.")
			return nil
		case answerLonger:
			snippet *= 2
			continue
		}
		snippet = opts.Snippet

		s, err = api.Submit(ctx, s.ID, *prompt, model.Result(a))
		if err != nil {
			return fmt.Errorf("submit: %w", err)
		}
		if s.Status() == model.StatusCompleted {
			fmt.Fprintf(out, "Search completed: %s\n", formatInstant(prompt.Timestamp))
			return nil
		}
	}
}

func formatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
