package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/chat-session/internal"
	"github.com/spf13/cobra"
)

var healthDetails bool

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

// healthCmd represents the health command
var healthCmd = &cobra.Command{
	Use:     "health",
	Aliases: []string{"healthcheck"},
	Short:   "Check that the service and local storage are reachable",
	Long: `Check the health of chat-session by verifying:
  • Settings and API key
  • Service availability and its modules
  • Session store access for your user
  • Local transcript storage

This command is useful for debugging connection and configuration issues.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		ctx := cmd.Context()

		fmt.Fprintln(out, sectionStyle.Render("🔍 Chat Session Health Check"))
		fmt.Fprintln(out)

		// Step 1: Settings
		fmt.Fprintln(out, infoStyle.Render("Step 1: Loading settings..."))
		a, err := newApp(false)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("❌ Failed to load settings:"), err)
			return err
		}
		defer a.Close()
		st := a.settings.Get()
		fmt.Fprintln(out, successStyle.Render("✅ Settings loaded"))
		if healthDetails {
			fmt.Fprintf(out, "   File: %s\n", a.settings.Path())
			fmt.Fprintf(out, "   Service: %s\n", st.BaseURL)
			fmt.Fprintf(out, "   User: %s\n", st.UserID)
		}
		fmt.Fprintln(out)

		// Step 2: API key
		fmt.Fprintln(out, infoStyle.Render("Step 2: Checking API key..."))
		hasKey := st.HasCredential()
		if hasKey {
			fmt.Fprintln(out, successStyle.Render("✅ API key configured"), maskKey(st.APIKey))
		} else {
			fmt.Fprintln(out, warningStyle.Render("⚠️  No API key configured"))
			fmt.Fprintln(out, "   Set one with: chat-session config set api_key <key>")
		}
		fmt.Fprintln(out)

		// Step 3: Service
		fmt.Fprintln(out, infoStyle.Render("Step 3: Contacting the service..."))
		serviceUp := checkService(ctx, out, a)
		fmt.Fprintln(out)

		// Step 4: Session store
		fmt.Fprintln(out, infoStyle.Render("Step 4: Listing sessions..."))
		sessionCount := -1
		switch {
		case !hasKey:
			fmt.Fprintln(out, warningStyle.Render("⚠️  Skipped, no API key"))
		case !serviceUp:
			fmt.Fprintln(out, warningStyle.Render("⚠️  Skipped, service unreachable"))
		default:
			sessions, err := a.assistant.Directory().List(ctx)
			if err != nil {
				fmt.Fprintln(out, errorStyle.Render("❌ Failed to list sessions:"), err)
				if errors.Is(err, internal.ErrInvalidCredential) {
					fmt.Fprintln(out, "   The API key was rejected and has been cleared")
				}
				break
			}
			sessionCount = len(sessions)
			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ Found %d session(s)", sessionCount)))
			if healthDetails {
				for i, s := range sessions {
					if i == 5 {
						fmt.Fprintf(out, "   ... and %d more\n", len(sessions)-5)
						break
					}
					fmt.Fprintf(out, "   [%d] %s (ID: %s)\n", i+1, s.Title, shortID(s.ID))
				}
			}
		}
		fmt.Fprintln(out)

		// Step 5: Local storage
		fmt.Fprintln(out, infoStyle.Render("Step 5: Checking local transcript storage..."))
		localOK := checkLocalStorage(ctx, out, a)
		fmt.Fprintln(out)

		// Summary
		fmt.Fprintln(out, sectionStyle.Render("📊 Summary"))
		fmt.Fprintln(out)

		switch {
		case serviceUp && sessionCount >= 0 && localOK:
			fmt.Fprintln(out, successStyle.Render("✅ Health check passed!"))
			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("   • Sessions: %d found", sessionCount)))
			return nil
		case serviceUp:
			fmt.Fprintln(out, warningStyle.Render("⚠️  Service reachable but not fully usable"))
			if !hasKey {
				fmt.Fprintln(out, "   • No API key configured")
			}
			if !localOK {
				fmt.Fprintln(out, "   • Local transcripts unavailable")
			}
			return nil
		default:
			fmt.Fprintln(out, errorStyle.Render("❌ Health check failed"))
			fmt.Fprintln(out, "   • The service is unreachable")
			return fmt.Errorf("health check failed: service unavailable at %s", st.BaseURL)
		}
	},
}

func checkService(ctx context.Context, out io.Writer, a *app) bool {
	health, err := a.client.Health(ctx)
	if err != nil {
		fmt.Fprintln(out, errorStyle.Render("❌ Service unreachable:"), err)
		return false
	}
	if health.Status != "healthy" {
		fmt.Fprintln(out, warningStyle.Render(fmt.Sprintf("⚠️  Service status: %s", health.Status)))
	} else {
		fmt.Fprintln(out, successStyle.Render("✅ Service healthy"))
	}

	if healthDetails {
		names := make([]string, 0, len(health.Modules))
		for name := range health.Modules {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			mark := "✓"
			if !health.Modules[name] {
				mark = "✗"
			}
			fmt.Fprintf(out, "   %s %s\n", mark, name)
		}
	}
	return true
}

func checkLocalStorage(ctx context.Context, out io.Writer, a *app) bool {
	if a.transcripts == nil {
		fmt.Fprintln(out, warningStyle.Render("⚠️  Transcript database could not be opened"))
		return false
	}
	ids, err := a.transcripts.SessionIDs(ctx)
	if err != nil {
		fmt.Fprintln(out, errorStyle.Render("❌ Failed to read transcripts:"), err)
		return false
	}
	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ %d transcript(s) stored locally", len(ids))))
	if healthDetails {
		fmt.Fprintf(out, "   Directory: %s\n", dataDir(a.settings))
	}
	return true
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().BoolVarP(&healthDetails, "details", "d", false, "Show detailed diagnostic information")
}
