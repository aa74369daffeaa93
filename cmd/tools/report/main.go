// report prints the filtered, sorted opportunity list and the progress
// projection for a filter query string, the same view the dashboard shows.
//
//	report --data data/applications.json --query 'naics=541512&sortBy=fitScore&sortDir=desc'
package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/pflag"

	"github.com/david/gsa-finder/internal/export"
	"github.com/david/gsa-finder/internal/filtering"
	"github.com/david/gsa-finder/internal/models"
	"github.com/david/gsa-finder/internal/query"
	"github.com/david/gsa-finder/internal/source"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var dataPath, rawQuery, csvPath string
	var progressOnly bool

	flagSet := pflag.NewFlagSet("report", pflag.ContinueOnError)
	flagSet.StringVar(&dataPath, "data", "data/applications.json", "data document path or http(s) URL")
	flagSet.StringVarP(&rawQuery, "query", "q", "", "filter query string, as in the dashboard address bar")
	flagSet.StringVar(&csvPath, "csv", "", "also write the results to this CSV file")
	flagSet.BoolVar(&progressOnly, "progress-only", false, "print only the progress table")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	values, err := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))
	if err != nil {
		return fmt.Errorf("parse query: %w", err)
	}
	filters := query.Decode(values)
	if err := filters.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	data := source.NewDataset(dataPath, nil)
	if err := data.Load(ctx); err != nil {
		return err
	}
	opps, err := data.Opportunities()
	if err != nil {
		return err
	}

	now := time.Now()
	results := filtering.Sort(filtering.FilterAt(opps, filters, now), filters.SortBy, filters.SortDir)

	if !progressOnly {
		printResults(results, filters, now)
	}
	printProgress(filtering.Project(results))

	if csvPath != "" {
		f, err := os.Create(csvPath)
		if err != nil {
			return fmt.Errorf("create csv: %w", err)
		}
		defer f.Close()
		if err := export.WriteCSV(f, results); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		fmt.Printf("Wrote %d rows to %s\n", len(results), csvPath)
	}
	return nil
}

func printResults(results []models.Opportunity, filters models.Filters, now time.Time) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Results (" + query.String(filters) + ")")
	t.AppendHeader(table.Row{"ID", "Title", "Agency", "NAICS", "Vehicle", "Due", "Status", "Pct", "Fit", "Ceiling"})

	for _, o := range results {
		t.AppendRow(table.Row{
			o.ID,
			markTitle(o.Title, filters.Keywords),
			o.Agency,
			o.NAICS,
			o.Vehicle,
			filtering.DueLabel(o.DueDate.Time, now),
			o.Status,
			fmt.Sprintf("%d%%", o.PercentComplete),
			o.FitScore,
			o.Ceiling,
		})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d results", len(results))})
	t.Render()
}

// markTitle brackets keyword matches for terminal output.
func markTitle(title string, keywords []string) string {
	var b strings.Builder
	for _, s := range filtering.Highlight(title, keywords) {
		if s.Matched {
			b.WriteString("[" + s.Text + "]")
			continue
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

func printProgress(p filtering.Progress) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Progress")
	t.AppendHeader(table.Row{"Status", "Count", "Share"})
	for _, c := range p.Statuses {
		t.AppendRow(table.Row{c.Status, c.Count, fmt.Sprintf("%.0f%%", c.Share)})
	}
	t.AppendFooter(table.Row{"Avg complete", p.Total, fmt.Sprintf("%d%%", p.AverageComplete)})
	t.Render()
}
