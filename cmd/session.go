package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	sessionrender "github.com/bnema/taskdump/internal/adapters/render/session"
	"github.com/bnema/taskdump/internal/application"
	"github.com/bnema/taskdump/internal/domain"
	"github.com/spf13/cobra"
)

const maxStdinBytes = 1 << 20

func newOrganizeCmd(app *app, who *identity) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "organize [text...]",
		Aliases: []string{"dump"},
		Short:   "Split text into tasks and stage them for review",
		Long:    "Split text into tasks and stage them for review. Without arguments the text is read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(cmd, args)
			if err != nil {
				return err
			}

			var result application.OrganizeResult
			organize := func(ctx context.Context) error {
				var runErr error
				result, runErr = app.orchestrator.Organize(ctx, application.OrganizeCommand{
					Text:      text,
					UserID:    who.userID(),
					ChannelID: who.channelID(),
				})
				return runErr
			}

			if asJSON {
				if err := organize(cmd.Context()); err != nil {
					return err
				}
				return sessionrender.OrganizedJSON(cmd.OutOrStdout(), result)
			}

			if err := withSpinner(cmd.Context(), cmd.ErrOrStderr(), "Organizing...", organize); err != nil {
				return err
			}

			output, err := sessionrender.Organized(result)
			if err != nil {
				return err
			}
			return writeLine(cmd.OutOrStdout(), output)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func newAcceptCmd(app *app, who *identity) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "accept",
		Short: "Push the staged tasks to the tracker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var result application.AcceptResult
			err := withSpinner(cmd.Context(), cmd.ErrOrStderr(), "Creating tasks...", func(ctx context.Context) error {
				var runErr error
				result, runErr = app.orchestrator.Accept(ctx, application.AcceptCommand{
					UserID:    who.userID(),
					ChannelID: who.channelID(),
					SessionID: domain.SessionID(sessionID),
				})
				return runErr
			})
			if err != nil {
				return err
			}

			output, err := sessionrender.Accepted(result)
			if err != nil {
				return err
			}
			if err := writeLine(cmd.OutOrStdout(), output); err != nil {
				return err
			}
			if result.Offline {
				return domain.ErrTrackerOffline
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID (default: last pending session)")

	return cmd
}

func newBreakdownCmd(app *app, who *identity) *cobra.Command {
	return &cobra.Command{
		Use:   "breakdown [task-number]",
		Short: "Split one staged task into smaller steps",
		Long:  "Split one staged task into smaller steps. Without a number the task last discussed in this channel is used.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index := 0
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("task number must be a positive integer, got %q", args[0])
				}
				index = n
			}

			var result application.BreakdownResult
			err := withSpinner(cmd.Context(), cmd.ErrOrStderr(), "Breaking down...", func(ctx context.Context) error {
				var runErr error
				result, runErr = app.orchestrator.Breakdown(ctx, application.BreakdownCommand{
					UserID:    who.userID(),
					ChannelID: who.channelID(),
					TaskIndex: index,
				})
				return runErr
			})
			if err != nil {
				return err
			}

			output, err := sessionrender.BrokenDown(result)
			if err != nil {
				return err
			}
			return writeLine(cmd.OutOrStdout(), output)
		},
	}
}

func newResumeCmd(app *app, who *identity) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Show the last pending session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			exportFormat, err := sessionrender.ParseFormat(format)
			if err != nil {
				return err
			}

			session, err := app.orchestrator.Resume(cmd.Context(), who.userID(), who.channelID())
			if err != nil {
				if errors.Is(err, domain.ErrSessionNotFound) {
					return errors.New("no pending session, run td organize first")
				}
				return err
			}

			if exportFormat != sessionrender.FormatText {
				return sessionrender.Export(cmd.OutOrStdout(), session, exportFormat)
			}
			output, err := sessionrender.Session(session)
			if err != nil {
				return err
			}
			return writeLine(cmd.OutOrStdout(), output)
		},
	}

	cmd.Flags().StringVar(&format, "format", string(sessionrender.FormatText), "Output format: text, json or yaml")

	return cmd
}

func newDiscardCmd(app *app, who *identity) *cobra.Command {
	return &cobra.Command{
		Use:   "discard",
		Short: "Drop the last pending session without creating anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := app.orchestrator.Discard(cmd.Context(), who.userID(), who.channelID())
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Discarded session %s.\n", session.ID)
			return err
		},
	}
}

func newFixTimeCmd(app *app, who *identity) *cobra.Command {
	return &cobra.Command{
		Use:     "fix-time <text...>",
		Aliases: []string{"retime"},
		Short:   "Correct the duration of the task you last touched",
		Example: "  td fix-time actually that takes 5 min",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result application.CorrectTimeResult
			err := withSpinner(cmd.Context(), cmd.ErrOrStderr(), "Updating...", func(ctx context.Context) error {
				var runErr error
				result, runErr = app.orchestrator.CorrectLastTaskTime(ctx, application.CorrectTimeCommand{
					Text:      strings.Join(args, " "),
					UserID:    who.userID(),
					ChannelID: who.channelID(),
				})
				return runErr
			})
			if err != nil {
				return err
			}

			output, err := sessionrender.TimeCorrected(result)
			if err != nil {
				return err
			}
			return writeLine(cmd.OutOrStdout(), output)
		},
	}
}

func newSessionsCmd(app *app, who *identity) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recent sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessions, err := app.orchestrator.ListSessions(cmd.Context(), who.userID(), limit)
			if err != nil {
				return err
			}

			output, err := sessionrender.Sessions(sessions)
			if err != nil {
				return err
			}
			return writeLine(cmd.OutOrStdout(), output)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", application.DefaultSessionListLimit, "Maximum number of sessions")

	return cmd
}

func newContextCmd(app *app, who *identity) *cobra.Command {
	return &cobra.Command{
		Use:   "context",
		Short: "Show what td remembers about this conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conversation, err := app.orchestrator.Context(cmd.Context(), who.userID(), who.channelID())
			if err != nil {
				if errors.Is(err, domain.ErrContextNotFound) {
					_, err = fmt.Fprintln(cmd.OutOrStdout(), "Nothing remembered for this channel.")
				}
				return err
			}

			output, err := sessionrender.Context(conversation, app.now(), app.cfg.Context.TTL)
			if err != nil {
				return err
			}
			return writeLine(cmd.OutOrStdout(), output)
		},
	}
}

func inputText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), maxStdinBytes))
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("%w: pass text as arguments or on stdin", domain.ErrEmptyInput)
	}
	return string(data), nil
}

func writeLine(w io.Writer, output string) error {
	_, err := fmt.Fprintln(w, output)
	return err
}
