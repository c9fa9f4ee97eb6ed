package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/iksnae/chat-session/internal"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show service usage statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.client.Stats(cmd.Context())
		if err != nil {
			return err
		}
		printStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

func printStats(out io.Writer, stats *internal.Stats) {
	fmt.Fprintln(out, headerStyle.Render("📊 Service statistics"))
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Users\t%s\n", humanize.Comma(int64(stats.TotalUsers)))
	_, _ = fmt.Fprintf(w, "Questions\t%s\n", humanize.Comma(int64(stats.TotalQuestions)))
	_, _ = fmt.Fprintf(w, "Avg. processing\t%.2fs\n", stats.AverageProcessingTime)
	if len(stats.TopInterests) > 0 {
		_, _ = fmt.Fprintf(w, "Top interests\t%s\n", strings.Join(stats.TopInterests, ", "))
	}
	_ = w.Flush()

	if len(stats.TopStates) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, groupStyle.Render("States"))
		states := make([]string, 0, len(stats.TopStates))
		for state := range stats.TopStates {
			states = append(states, state)
		}
		sort.Slice(states, func(i, j int) bool {
			if stats.TopStates[states[i]] != stats.TopStates[states[j]] {
				return stats.TopStates[states[i]] > stats.TopStates[states[j]]
			}
			return states[i] < states[j]
		})
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, state := range states {
			_, _ = fmt.Fprintf(w, "  %s\t%s\n", state, countStyle.Render(humanize.Comma(int64(stats.TopStates[state]))))
		}
		_ = w.Flush()
	}
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
