package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	termutil "github.com/andrew-d/go-termutil"
	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"personabot/config"
	"personabot/model"
	"personabot/session"
)

var chatPersona string

// chatCmd runs a terminal chat session
var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Chat with a persona in the terminal",
	Long: `Start an interactive chat. Lines starting with "/" are commands:

  /personas        list the personas
  /persona <name>  switch persona (takes effect after /clear once a chat has started)
  /clear           forget the conversation
  /quit            leave

With a message argument or piped stdin, a single turn is run and printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		r := newREPL(cmd.OutOrStdout())
		a, err := buildApp(ctx, config.Config, session.WithProgress(r.progress))
		if err != nil {
			return err
		}
		defer a.Close()

		r.controller = a.controller
		r.session = a.store.Create()
		if chatPersona != "" {
			if err := r.controller.SelectPersona(r.session, chatPersona); err != nil {
				return err
			}
		}

		message := ""
		if len(args) > 0 {
			message = args[0]
		}
		if !termutil.Isatty(os.Stdin.Fd()) {
			piped, err := io.ReadAll(bufio.NewReader(os.Stdin))
			if err == nil {
				message = strings.TrimSpace(message + "\n\n" + string(piped))
			}
		}
		if message != "" {
			return r.turn(ctx, message)
		}

		return r.run(ctx, os.Stdin)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatPersona, "persona", "", "persona to start with")
}

var (
	botColor    = color.New(color.FgCyan).SprintFunc()
	userColor   = color.New(color.FgGreen).SprintFunc()
	infoColor   = color.New(color.FgBlue).SprintFunc()
	warnColor   = color.New(color.FgYellow).SprintFunc()
	errorColor  = color.New(color.FgRed).SprintFunc()
	accentColor = color.New(color.FgMagenta, color.Bold).SprintFunc()
)

type repl struct {
	controller *session.Controller
	session    *session.Session
	out        io.Writer
	spin       *spinner.Spinner
}

func newREPL(out io.Writer) *repl {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	s.Prefix = "╰─ "
	return &repl{out: out, spin: s}
}

func (r *repl) progress(stage session.Stage, detail string) {
	switch stage {
	case session.StageThinking:
		r.spin.Suffix = " Thinking..."
		r.spin.Start()
	case session.StageFinding:
		r.spin.Suffix = fmt.Sprintf(" Finding '%s'... 🎶", detail)
		r.spin.Restart()
	case session.StageDone:
		r.spin.Stop()
	}
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintf(r.out, "chatting with %s! type /personas to see who else is around\n", accentColor(r.session.Persona()))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "\n≫ ")
		if !scanner.Scan() {
			break
		}
		if quit := r.handleLine(ctx, scanner.Text()); quit {
			fmt.Fprintln(r.out, "chat ended!")
			return nil
		}
	}
	return scanner.Err()
}

// handleLine runs one line of input and reports whether the user asked to quit.
func (r *repl) handleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	command, arg, isCommand := parseCommand(line)
	if !isCommand {
		if err := r.turn(ctx, line); err != nil {
			fmt.Fprintln(r.out, errorColor(err.Error()))
		}
		return false
	}

	switch command {
	case "quit", "exit":
		return true
	case "personas":
		current := r.session.Persona()
		for _, p := range r.controller.Catalog().List() {
			marker := "  "
			if p.Name == current {
				marker = "* "
			}
			fmt.Fprintf(r.out, "%s%s (%s)\n", marker, p.Name, p.Title)
		}
	case "persona":
		if err := r.controller.SelectPersona(r.session, arg); err != nil {
			fmt.Fprintln(r.out, errorColor(err.Error()))
			return false
		}
		fmt.Fprintf(r.out, "persona set to %s\n", accentColor(arg))
		if r.session.Snapshot().Active {
			fmt.Fprintln(r.out, infoColor(session.MsgPersonaDeferred))
		}
	case "clear":
		r.controller.Clear(r.session)
		fmt.Fprintln(r.out, "conversation cleared")
	default:
		fmt.Fprintln(r.out, warnColor("unknown command /"+command))
	}
	return false
}

func (r *repl) turn(ctx context.Context, text string) error {
	result, err := r.controller.Turn(ctx, r.session, text)
	if err != nil {
		var genErr *model.GenerationError
		if errors.As(err, &genErr) {
			return fmt.Errorf("the model could not answer: %w", genErr.Err)
		}
		return err
	}
	r.printTurn(result)
	return nil
}

func (r *repl) printTurn(result *session.TurnResult) {
	fmt.Fprintf(r.out, "╰─ %s %s\n", botColor(result.Speaker+":"), result.Assistant.Content)

	if result.Audio != nil {
		fmt.Fprintf(r.out, "%s %s\n   %s (%s)\n", userColor("🎵"), result.Audio.Caption, result.Audio.URL, result.Audio.Format)
	}

	for _, n := range result.Notices {
		switch n.Level {
		case session.NoticeError:
			fmt.Fprintln(r.out, errorColor(n.Text))
		case session.NoticeWarning:
			fmt.Fprintln(r.out, warnColor(n.Text))
		default:
			fmt.Fprintln(r.out, infoColor(n.Text))
		}
	}
}

// parseCommand splits "/name arg" lines. Plain "quit" and "exit" count too.
func parseCommand(line string) (command, arg string, ok bool) {
	if line == "quit" || line == "exit" {
		return line, "", true
	}
	if !strings.HasPrefix(line, "/") {
		return "", "", false
	}
	command, arg, _ = strings.Cut(strings.TrimPrefix(line, "/"), " ")
	return strings.ToLower(command), strings.TrimSpace(arg), true
}
