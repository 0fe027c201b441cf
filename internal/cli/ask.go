// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/chatdesk/internal/attach"
	"github.com/jeranaias/chatdesk/internal/session"
	"github.com/jeranaias/chatdesk/internal/ui/styles"
)

// Command: ask [question]
//
// Examples:
//   chatdesk ask "What is the capital of France?"
//   chatdesk ask -a report.pdf "Summarize this"
//   git diff | chatdesk ask --new "Review this change"
//   chatdesk ask -c 2 "And what about Spain?"
//
// The question is added to the active conversation unless --new or
// --conversation says otherwise. Text piped on stdin is appended.

type askFlags struct {
	attachments  []string
	newChat      bool
	conversation string
}

func newAskCommand(e *env) *cobra.Command {
	var f askFlags
	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask a single question and print the reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := questionText(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return e.withApp(func(app *App) error {
				return e.ask(cmd, app, text, f)
			})
		},
	}
	cmd.Flags().StringSliceVarP(&f.attachments, "attach", "a", nil, "attach a file (repeatable)")
	cmd.Flags().BoolVar(&f.newChat, "new", false, "start a new conversation")
	cmd.Flags().StringVarP(&f.conversation, "conversation", "c", "", "conversation to continue (index, id or id prefix)")
	return cmd
}

// questionText joins the arguments and any piped stdin.
func questionText(args []string, stdin io.Reader) (string, error) {
	text := strings.Join(args, " ")
	if isTerminal(stdin) {
		return text, nil
	}
	piped, err := io.ReadAll(io.LimitReader(stdin, attach.MaxFileSize))
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	if p := strings.TrimSpace(string(piped)); p != "" {
		if text == "" {
			return p, nil
		}
		return text + "\n\n" + p, nil
	}
	return text, nil
}

func (e *env) ask(cmd *cobra.Command, app *App, text string, f askFlags) error {
	draft := session.Draft{Text: text}

	switch {
	case f.newChat && f.conversation != "":
		return &ValidationError{Field: "flags", Reason: "--new and --conversation are exclusive"}
	case f.newChat:
		conv, err := app.Store.CreateConversation(app.Controller.Model())
		if err != nil {
			app.Logger.Warn("new conversation not saved", zap.Error(err))
		}
		draft.ConversationID = conv.ID
	case f.conversation != "":
		conv, err := resolveConversation(app.Store, f.conversation)
		if err != nil {
			return err
		}
		draft.ConversationID = conv.ID
	}

	if len(f.attachments) > 0 {
		set := attach.NewSet(
			attach.WithLimit(app.Config.Chat.MaxAttachments),
			attach.WithLogger(app.Logger.Named("attach")),
		)
		defer set.Close()
		if _, err := set.Add(f.attachments...); err != nil {
			return err
		}
		if dropped := len(f.attachments) - set.Len(); dropped > 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), styles.RenderWarning(fmt.Sprintf(
				"%d file(s) over the limit of %d were not attached", dropped, app.Config.Chat.MaxAttachments)))
		}
		draft.Attachments = set
	}

	res, err := app.Controller.Send(cmd.Context(), draft)
	out := cmd.OutOrStdout()
	if err != nil {
		if res.Reply.Failed && !e.jsonMode {
			writeMessage(cmd.ErrOrStderr(), res.Reply)
		}
		return err
	}

	conv, _ := app.Store.Get(res.ConversationID)
	if e.jsonMode {
		return e.writeJSON(out, "ask", AskData{
			ConversationID: res.ConversationID,
			Model:          conv.Model,
			Reply:          res.Reply.Content,
			DurationMs:     res.Elapsed.Milliseconds(),
		})
	}
	displayReply(out, res.Reply.Content, e.renderMarkdown(out))
	return nil
}

// renderMarkdown reports whether replies written to out should go
// through glamour.
func (e *env) renderMarkdown(out io.Writer) bool {
	return isTerminal(out)
}
