package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/recollect/recollect/internal/api/validate"
	"github.com/recollect/recollect/internal/client"
)

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runSearches(ctx context.Context, cli *client.Client, status string, out io.Writer) error {
	list, err := cli.ListSearches(ctx, status)
	if err != nil {
		return err
	}
	return printJSON(out, list)
}

func runRecordings(ctx context.Context, cli *client.Client, start, end string, out io.Writer) error {
	s, err := validate.OptionalTimestamp("start", start)
	if err != nil {
		return err
	}
	e, err := validate.OptionalTimestamp("end", end)
	if err != nil {
		return err
	}
	if err := validate.Range(s, e); err != nil {
		return err
	}
	recs, err := cli.ListRecordings(ctx, s, e)
	if err != nil {
		return err
	}
	return printJSON(out, recs)
}

func runRecording(ctx context.Context, cli *client.Client, id string, out io.Writer) error {
	rec, err := cli.GetRecording(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(out, rec)
}

func runStats(ctx context.Context, cli *client.Client, out io.Writer) error {
	sum, err := cli.Statistics(ctx)
	if err != nil {
		return err
	}
	return printJSON(out, sum)
}
