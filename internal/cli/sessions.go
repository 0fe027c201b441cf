// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatdesk/internal/export"
	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/ui/styles"
)

// Command: sessions [list|show|select|rename|delete|export|search|clear]
//
// Examples:
//   chatdesk sessions                       List conversations, newest first
//   chatdesk sessions show 2                Print the second conversation
//   chatdesk sessions rename 1 Trip plans   Retitle a conversation
//   chatdesk sessions export 1 -f json      Write a conversation to a file
//   chatdesk sessions clear --yes           Delete every conversation

func newSessionsCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session", "history"},
		Short:   "List and manage saved conversations",
		Long: `Conversations can be referenced by their position in the listing
(1 is the most recent), by full id or by a unique id prefix.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(func(app *App) error {
				return e.listSessions(cmd.OutOrStdout(), app)
			})
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List conversations, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return e.withApp(func(app *App) error {
					return e.listSessions(cmd.OutOrStdout(), app)
				})
			},
		},
		&cobra.Command{
			Use:   "show <ref>",
			Short: "Print a conversation",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return e.withApp(func(app *App) error {
					conv, err := resolveConversation(app.Store, args[0])
					if err != nil {
						return err
					}
					out := cmd.OutOrStdout()
					if e.jsonMode {
						return e.writeJSON(out, "sessions show", conv)
					}
					writeTranscript(out, conv)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "select <ref>",
			Short: "Make a conversation the active one",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return e.withApp(func(app *App) error {
					conv, err := resolveConversation(app.Store, args[0])
					if err != nil {
						return err
					}
					if err := app.Store.SelectConversation(conv.ID); err != nil {
						return err
					}
					return e.done(cmd.OutOrStdout(), "sessions select", conv.ID, "Active: "+conv.Title)
				})
			},
		},
		&cobra.Command{
			Use:   "rename <ref> <title...>",
			Short: "Retitle a conversation",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return e.withApp(func(app *App) error {
					conv, err := resolveConversation(app.Store, args[0])
					if err != nil {
						return err
					}
					title := strings.Join(args[1:], " ")
					if err := app.Store.RenameConversation(conv.ID, title); err != nil {
						return err
					}
					return e.done(cmd.OutOrStdout(), "sessions rename", conv.ID, "Renamed to "+strings.TrimSpace(title))
				})
			},
		},
		&cobra.Command{
			Use:     "delete <ref>",
			Aliases: []string{"rm"},
			Short:   "Delete a conversation",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return e.withApp(func(app *App) error {
					conv, err := resolveConversation(app.Store, args[0])
					if err != nil {
						return err
					}
					if err := app.Store.DeleteConversation(conv.ID); err != nil {
						return err
					}
					return e.done(cmd.OutOrStdout(), "sessions delete", conv.ID, "Deleted "+conv.Title)
				})
			},
		},
		newSessionsExportCommand(e),
		newSessionsSearchCommand(e),
		newSessionsClearCommand(e),
	)
	return cmd
}

func newSessionsExportCommand(e *env) *cobra.Command {
	var format, dir string
	var open bool
	cmd := &cobra.Command{
		Use:   "export <ref>",
		Short: "Write a conversation to a Markdown or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := export.DefaultOptions()
			opts.OutputDir = dir
			opts.OpenAfterExport = open
			exporter, err := export.New(format, opts)
			if err != nil {
				if errors.Is(err, export.ErrUnknownFormat) {
					return ErrInvalidFormat("format", format, "md or json")
				}
				return err
			}
			return e.withApp(func(app *App) error {
				conv, err := resolveConversation(app.Store, args[0])
				if err != nil {
					return err
				}
				path, err := export.ExportToFile(&conv, exporter, opts)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if e.jsonMode {
					return e.writeJSON(out, "sessions export", map[string]string{"id": conv.ID, "path": path})
				}
				fmt.Fprintln(out, styles.RenderSuccess("Exported "+path))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "md", "md or json")
	cmd.Flags().StringVarP(&dir, "output", "o", ".", "output directory")
	cmd.Flags().BoolVar(&open, "open", false, "open the file afterwards")
	return cmd
}

func newSessionsSearchCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query...>",
		Short: "Find conversations by title or message text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(func(app *App) error {
				matches := app.Store.Search(strings.Join(args, " "))
				ids := make(map[string]bool, len(matches))
				for _, c := range matches {
					ids[c.ID] = true
				}
				var rows []SessionInfo
				for _, r := range sessionRows(app.Store) {
					if ids[r.ID] {
						rows = append(rows, r)
					}
				}
				out := cmd.OutOrStdout()
				if e.jsonMode {
					return e.writeJSON(out, "sessions search", SessionListOutput{Sessions: rows, Count: len(rows)})
				}
				if len(rows) == 0 {
					fmt.Fprintln(out, "No matching conversations.")
					return nil
				}
				writeSessionTable(out, rows, time.Now())
				return nil
			})
		},
	}
}

func newSessionsClearCommand(e *env) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return &ValidationError{
					Field:   "confirmation",
					Reason:  "clearing all conversations cannot be undone",
					Example: "chatdesk sessions clear --yes",
				}
			}
			return e.withApp(func(app *App) error {
				n := app.Store.Len()
				if err := app.Store.ClearAllConversations(); err != nil {
					return err
				}
				return e.done(cmd.OutOrStdout(), "sessions clear", fmt.Sprint(n), fmt.Sprintf("Deleted %d conversation(s)", n))
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm")
	return cmd
}

// listSessions prints the conversation table or its JSON form.
func (e *env) listSessions(out io.Writer, app *App) error {
	rows := sessionRows(app.Store)
	if e.jsonMode {
		return e.writeJSON(out, "sessions list", SessionListOutput{Sessions: rows, Count: len(rows)})
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, "No conversations yet. Start one with: chatdesk chat")
		return nil
	}
	writeSessionTable(out, rows, time.Now())
	fmt.Fprintf(out, "\nTotal: %d conversation(s), * marks the active one\n", len(rows))
	return nil
}

// done reports a successful mutation.
func (e *env) done(out io.Writer, command, id, message string) error {
	if e.jsonMode {
		return e.writeJSON(out, command, map[string]string{"id": id})
	}
	fmt.Fprintln(out, SuccessStyle.Render(message))
	return nil
}

// writeTranscript prints a conversation as plain labelled turns.
func writeTranscript(out io.Writer, conv model.Conversation) {
	fmt.Fprintln(out, TitleStyle.Render(conv.Title))
	fmt.Fprintf(out, "%s%s\n", RenderLabel("Model"), conv.Model)
	fmt.Fprintf(out, "%s%s\n", RenderLabel("Created"), conv.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(out, "%s%d\n\n", RenderLabel("Messages"), len(conv.Messages))
	for _, msg := range conv.Messages {
		writeMessage(out, msg)
	}
}

// writeMessage prints one labelled turn with its attachments.
func writeMessage(out io.Writer, msg model.Message) {
	switch {
	case msg.Failed:
		fmt.Fprintln(out, ErrorStyle.Render("⚠ "+msg.Content))
		fmt.Fprintln(out)
		return
	case msg.Role == model.RoleUser:
		fmt.Fprintln(out, UserStyle.Render("You"))
	default:
		fmt.Fprintln(out, AssistantStyle.Render("Assistant"))
	}
	if msg.Content != "" {
		fmt.Fprintln(out, msg.Content)
	}
	for _, ref := range msg.Attachments {
		fmt.Fprintln(out, DimStyle.Render(fmt.Sprintf("📎 %s (%s, %s)", ref.Name, ref.MIMEType, formatBytes(ref.Size))))
	}
	fmt.Fprintln(out)
}
