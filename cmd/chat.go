package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iksnae/chat-session/internal"
	"github.com/spf13/cobra"
)

var chatSession string

const chatHelp = `Commands:
  /new [title]                         start a new session
  /list                                list sessions
  /switch <id>                         switch to a session
  /delete [id]                         delete a session (default: current)
  /clear                               replace the current session with an empty one
  /history                             print the current transcript
  /feedback <id|last> <kind> [rating]  rate an answer (positive, negative, neutral)
  /help                                show this help
  /quit                                leave
Anything else is sent as a question.`

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat",
	Long: `Chat with the assistant. Questions are answered in the background, so you
can switch sessions while waiting: an answer always lands in the session it
was asked in.

` + chatHelp,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := startSession(cmd, a, chatSession); err != nil {
			return err
		}

		r := newRepl(cmd, a)
		r.banner()
		return r.run(cmd.InOrStdin())
	},
}

// repl is one interactive chat. Output is serialized because answers arrive
// from background goroutines.
type repl struct {
	cmd *cobra.Command
	a   *app

	mu  sync.Mutex
	out io.Writer

	pending sync.WaitGroup
}

func newRepl(cmd *cobra.Command, a *app) *repl {
	return &repl{cmd: cmd, a: a, out: cmd.OutOrStdout()}
}

func (r *repl) printf(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func (r *repl) locked(fn func(w io.Writer)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.out)
}

func (r *repl) banner() {
	s, _ := r.a.assistant.Directory().Get(r.active())
	r.locked(func(w io.Writer) {
		fmt.Fprintln(w, headerStyle.Render("💬 "+s.Title))
		fmt.Fprintln(w, idStyle.Render("Type /help for commands"))
	})
	r.printHistory()
}

func (r *repl) active() string {
	return r.a.assistant.Engine().ActiveSession()
}

// run reads lines until /quit or end of input, then waits for outstanding answers
func (r *repl) run(in io.Reader) error {
	defer r.pending.Wait()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			r.ask(line)
			continue
		}
		if quit := r.command(line); quit {
			return nil
		}
	}
	return scanner.Err()
}

// ask sends a question in the background
func (r *repl) ask(query string) {
	sessionID := r.active()
	ctx := r.cmd.Context()

	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		err := r.a.assistant.SendIn(ctx, sessionID, query)

		var verr *internal.ValidationError
		switch {
		case errors.As(err, &verr), errors.Is(err, internal.ErrRequestInFlight):
			r.locked(func(w io.Writer) { internal.PrintWarning(w, err.Error()) })
			return
		case errors.Is(err, internal.ErrMissingCredential), errors.Is(err, internal.ErrInvalidCredential):
			r.locked(func(w io.Writer) {
				internal.PrintError(w, "The API key was rejected. Set a new one with `chat-session config set api_key <key>`")
			})
			return
		}

		if sessionID != r.active() {
			title := sessionID
			if s, ok := r.a.assistant.Directory().Get(sessionID); ok {
				title = s.Title
			}
			r.locked(func(w io.Writer) {
				internal.PrintInfo(w, fmt.Sprintf("Answer arrived in %q (/switch %s)", title, sessionID))
			})
			return
		}
		r.printLast()
	}()
}

func (r *repl) printLast() {
	messages := r.a.assistant.Engine().Messages()
	if len(messages) == 0 {
		return
	}
	msg := messages[len(messages)-1]
	display := r.a.settings.Get().Display
	r.locked(func(w io.Writer) { displayMessage(w, len(messages), msg, len(messages), display) })
}

func (r *repl) printHistory() {
	messages := r.a.assistant.Engine().Messages()
	display := r.a.settings.Get().Display
	r.locked(func(w io.Writer) {
		for i, msg := range messages {
			displayMessage(w, i+1, msg, len(messages), display)
		}
	})
}

// command runs a slash command and reports whether the chat should end
func (r *repl) command(line string) bool {
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]
	ctx := r.cmd.Context()
	assistant := r.a.assistant

	var err error
	switch name {
	case "/quit", "/exit":
		return true
	case "/help":
		r.printf("%s\n", chatHelp)
	case "/new":
		var created internal.Session
		if created, err = assistant.NewChat(ctx, strings.Join(args, " ")); err == nil {
			r.locked(func(w io.Writer) { internal.PrintSuccess(w, fmt.Sprintf("Started %q (%s)", created.Title, created.ID)) })
		}
	case "/list":
		sessions := assistant.Directory().Sessions()
		r.locked(func(w io.Writer) {
			displaySessionGroups(w, internal.GroupByRecency(sessions, time.Now()), len(sessions))
		})
	case "/switch":
		if len(args) != 1 {
			err = errors.New("usage: /switch <id>")
			break
		}
		err = r.switchTo(args[0])
	case "/delete":
		target := r.active()
		if len(args) > 0 {
			var s internal.Session
			if s, err = assistant.Directory().Resolve(args[0]); err != nil {
				break
			}
			target = s.ID
		}
		if err = assistant.DeleteChat(ctx, target); err == nil {
			r.locked(func(w io.Writer) { internal.PrintSuccess(w, "Deleted "+target) })
			r.printHistory()
		}
	case "/clear":
		var created internal.Session
		if created, err = assistant.ClearChat(ctx); err == nil {
			r.locked(func(w io.Writer) { internal.PrintSuccess(w, "Cleared, now in "+created.ID) })
		}
	case "/history":
		r.printHistory()
	case "/feedback":
		err = r.feedback(args)
	default:
		err = fmt.Errorf("unknown command %s, try /help", name)
	}

	if err != nil {
		r.locked(func(w io.Writer) { internal.PrintError(w, err.Error()) })
	}
	return false
}

func (r *repl) switchTo(ref string) error {
	s, err := r.a.assistant.Directory().Resolve(ref)
	if err != nil {
		return err
	}
	err = r.a.assistant.Select(r.cmd.Context(), s.ID)
	var dirErr *internal.DirectoryError
	if errors.As(err, &dirErr) && dirErr.Op == "history" {
		r.locked(func(w io.Writer) { internal.PrintWarning(w, "History unavailable, showing the local copy") })
		err = nil
	}
	if err != nil {
		return err
	}
	r.locked(func(w io.Writer) { fmt.Fprintln(w, headerStyle.Render("💬 "+s.Title)) })
	r.printHistory()
	return nil
}

func (r *repl) feedback(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: /feedback <id|last> <positive|negative|neutral> [rating]")
	}
	kind, err := internal.ParseFeedbackKind(args[1])
	if err != nil {
		return err
	}

	var rating *int
	if len(args) > 2 {
		n, err := strconv.Atoi(args[2])
		if err != nil || n < internal.MinRating || n > internal.MaxRating {
			return &internal.ValidationError{Field: "rating", Reason: fmt.Sprintf("must be between %d and %d", internal.MinRating, internal.MaxRating)}
		}
		rating = &n
	}

	messageID := args[0]
	if messageID == "last" {
		messageID = ""
		messages := r.a.assistant.Engine().Messages()
		for i := len(messages) - 1; i >= 0; i-- {
			if messages[i].Role == internal.RoleAssistant {
				messageID = messages[i].ID
				break
			}
		}
		if messageID == "" {
			return internal.ErrMessageNotFound
		}
	}

	if err := r.a.assistant.SubmitFeedback(r.cmd.Context(), messageID, kind, rating, ""); err != nil {
		return err
	}
	r.locked(func(w io.Writer) { internal.PrintSuccess(w, "Thanks for the feedback") })
	return nil
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "", "Session to open (id or unique prefix)")
}
