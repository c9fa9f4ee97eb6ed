package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/iksnae/chat-session/internal"
	"github.com/spf13/cobra"
)

var (
	listOffline    bool
	listClearCache bool
)

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	groupStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	previewStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Italic(true)
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List your sessions",
	Long: `List your chat sessions grouped by recency (Today, Yesterday,
Previous 7 days, Older), most recently updated first.

With --offline the last listing saved locally is shown without contacting
the service.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(!listOffline)
		if err != nil {
			return err
		}
		defer a.Close()

		userID := a.settings.Get().UserID
		if listClearCache {
			if err := a.cache.ClearCache(userID); err != nil {
				internal.LogWarn("Failed to clear cache: %v", err)
			} else {
				internal.LogInfo("Cache cleared")
			}
		}

		var sessions []internal.Session
		if listOffline {
			index, err := a.cache.LoadSnapshot(userID)
			if err != nil {
				return fmt.Errorf("no saved session list for %s: %w", userID, err)
			}
			sessions = index.ToSessions()
		} else {
			err := internal.ShowProgress(cmd.Context(), "Loading sessions", func() error {
				var err error
				sessions, err = a.assistant.Directory().List(cmd.Context())
				return err
			})
			if err != nil {
				return err
			}
		}

		displaySessionGroups(cmd.OutOrStdout(), internal.GroupByRecency(sessions, time.Now()), len(sessions))
		return nil
	},
}

func displaySessionGroups(out io.Writer, groups []internal.SessionGroup, total int) {
	if total == 0 {
		fmt.Fprintln(out, headerStyle.Render("📋 No sessions found"))
		return
	}

	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("📋 Found %d session(s)", total)))
	fmt.Fprintln(out)

	for _, group := range groups {
		fmt.Fprintln(out, groupStyle.Render(group.Key.Label()))

		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		for _, s := range group.Sessions {
			title := s.Title
			if len(title) > 50 {
				title = title[:47] + "..."
			}
			preview := s.Preview
			if len(preview) > 40 {
				preview = preview[:37] + "..."
			}
			_, _ = fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n",
				idStyle.Render(shortID(s.ID)),
				title,
				countStyle.Render(strconv.Itoa(s.TurnsCount)),
				dateStyle.Render(humanize.Time(s.UpdatedAt)),
				previewStyle.Render(preview))
		}
		_ = w.Flush()
		fmt.Fprintln(out)
	}

	first := groups[0].Sessions[0]
	fmt.Fprintln(out, idStyle.Render("💡 Tip: Use the ID (e.g., ")+
		lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Render(first.ID)+
		idStyle.Render(") with `chat-session show <id>`"))
}

// shortID keeps ids readable in tables; any unique prefix resolves
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return strings.TrimSpace(id)
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listOffline, "offline", false, "Show the last saved listing without contacting the service")
	listCmd.Flags().BoolVar(&listClearCache, "clear-cache", false, "Clear the saved listing before running")
}
