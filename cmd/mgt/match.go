package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/franz/genre-tagger/internal/policy"
	"github.com/franz/genre-tagger/internal/util"
)

var matchCmd = &cobra.Command{
	Use:   "match <artist> <album>",
	Short: "Look up one album and explain the genre decision",
	Long: `Run the match and aggregation pipeline for a single album without
touching any file. Prints the candidate releases per source, the genres each
source returned, the aggregated genres, the confidence and the action a
batch run would take.`,
	Args: cobra.ExactArgs(2),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	e, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	artist, album := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
	res, err := e.aggregator.FetchAndAggregate(ctx, artist, album)
	if err != nil {
		return err
	}

	if len(res.Candidates) > 0 {
		rows := make([][]string, 0, len(res.Candidates))
		for _, c := range res.Candidates {
			marker := ""
			if res.Match != nil && c.Source == res.Match.Source {
				marker = "*"
			}
			rows = append(rows, []string{marker, c.Source.DisplayName(), c.Artist, c.Album, fmt.Sprintf("%.2f", c.Score)})
		}
		printTable([]string{"", "Source", "Artist", "Album", "Score"}, rows, alignLeft, alignLeft, alignLeft, alignLeft, alignRight)
	} else {
		util.WarnLog("No source found %s - %s", artist, album)
	}

	if len(res.Sources) > 0 {
		rows := make([][]string, 0, len(res.Sources))
		for _, s := range res.Sources {
			rows = append(rows, []string{
				s.Source.DisplayName(),
				joinGenres(s.Genres),
				fmt.Sprintf("%.2f", s.MatchQuality),
				fmt.Sprintf("%.0f", s.APIConfidence),
				fmt.Sprintf("%.2f", s.Weight),
			})
		}
		printTable([]string{"Source", "Genres", "Match", "API conf.", "Weight"}, rows,
			alignLeft, alignLeft, alignRight, alignRight, alignRight)
	}

	decision := policy.Classify(res.Confidence, cfg.Thresholds())
	rows := [][]string{
		{"Genres", joinGenres(res.FinalGenres)},
		{"Tags to write", joinGenres(e.standardizer.Merge(nil, res.FinalGenres, cfg.MaxGenres))},
		{"Confidence", util.FormatPercent(res.Confidence)},
		{"Status", string(decision.Status)},
		{"Reasoning", res.Reasoning},
	}
	if decision.Reason != "" {
		rows = append(rows, []string{"Policy", decision.Reason})
	}
	printTable([]string{"Result", ""}, rows)
	return nil
}
