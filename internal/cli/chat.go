// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/chatdesk/internal/attach"
	"github.com/jeranaias/chatdesk/internal/completion"
	"github.com/jeranaias/chatdesk/internal/config"
	"github.com/jeranaias/chatdesk/internal/export"
	"github.com/jeranaias/chatdesk/internal/history"
	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/session"
	"github.com/jeranaias/chatdesk/internal/ui/styles"
)

// Command: chat
//
// Examples:
//   chatdesk chat           Continue the active conversation
//   chatdesk chat --new     Start a fresh one
//
// Interactive commands are listed by /help.

func newChatCommand(e *env) *cobra.Command {
	var newChat bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat in line mode with input history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.runChat(cmd, newChat)
		},
	}
	cmd.Flags().BoolVar(&newChat, "new", false, "start a new conversation")
	return cmd
}

func (e *env) runChat(cmd *cobra.Command, newChat bool) error {
	return e.withApp(func(app *App) error {
		r := newREPL(cmd.Context(), app, cmd.OutOrStdout())
		r.render = e.renderMarkdown(r.out)
		defer r.close()

		if newChat {
			r.handle("/new")
		}

		input := newLineReader(cmd.InOrStdin())
		defer input.Close()

		r.printWelcome()
		return r.run(input)
	})
}

// =============================================================================
// INPUT
// =============================================================================

// lineReader yields one line of user input per call.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close()
}

// newLineReader uses liner on a terminal and a plain scanner otherwise.
func newLineReader(in io.Reader) lineReader {
	if in == io.Reader(os.Stdin) && isTerminal(in) {
		return NewChatCLI()
	}
	return &scanReader{scanner: bufio.NewScanner(in)}
}

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads the saved input history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(completeCommand)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
	return c
}

// ReadLine reads a line of input with the given prompt.
func (c *ChatCLI) ReadLine(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history (0600) and restores the terminal.
func (c *ChatCLI) Close() {
	if err := config.EnsureConfigDir(); err == nil {
		if f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			c.line.WriteHistory(f)
			f.Close()
		}
	}
	c.line.Close()
}

type scanReader struct {
	scanner *bufio.Scanner
}

func (s *scanReader) ReadLine(string) (string, error) {
	if s.scanner.Scan() {
		return s.scanner.Text(), nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *scanReader) Close() {}

// =============================================================================
// REPL
// =============================================================================

type replCommand struct {
	name  string
	args  string
	help  string
	alias []string
	run   func(r *repl, arg string) (quit bool, err error)
}

var replCommands []replCommand

func init() {
	replCommands = []replCommand{
		{name: "/new", help: "start a new conversation", alias: []string{"/n"}, run: (*repl).cmdNew},
		{name: "/list", help: "list conversations", alias: []string{"/ls"}, run: (*repl).cmdList},
		{name: "/switch", args: "<n>", help: "continue conversation n from /list", alias: []string{"/s"}, run: (*repl).cmdSwitch},
		{name: "/rename", args: "<title>", help: "retitle this conversation", run: (*repl).cmdRename},
		{name: "/delete", help: "delete this conversation", run: (*repl).cmdDelete},
		{name: "/clear", help: "remove every message from this conversation", alias: []string{"/c"}, run: (*repl).cmdClear},
		{name: "/history", help: "print this conversation", run: (*repl).cmdHistory},
		{name: "/search", args: "<text>", help: "find conversations", run: (*repl).cmdSearch},
		{name: "/model", args: "[id]", help: "show or change the model", alias: []string{"/m"}, run: (*repl).cmdModel},
		{name: "/models", args: "[more]", help: "browse the model catalog", run: (*repl).cmdModels},
		{name: "/attach", args: "<path...>", help: "attach files to the next message", alias: []string{"/a"}, run: (*repl).cmdAttach},
		{name: "/detach", args: "[n]", help: "list or remove pending attachments", run: (*repl).cmdDetach},
		{name: "/export", args: "[md|json]", help: "write this conversation to a file", run: (*repl).cmdExport},
		{name: "/help", help: "show this help", alias: []string{"/h", "/?"}, run: (*repl).cmdHelp},
		{name: "/quit", help: "leave chat", alias: []string{"/q", "/exit"}, run: (*repl).cmdQuit},
	}
}

// completeCommand completes slash command names for liner.
func completeCommand(line string) []string {
	if !strings.HasPrefix(line, "/") || strings.Contains(line, " ") {
		return nil
	}
	var out []string
	for _, c := range replCommands {
		if strings.HasPrefix(c.name, line) {
			out = append(out, c.name+" ")
		}
	}
	return out
}

// repl is one line-mode chat session.
type repl struct {
	ctx    context.Context
	app    *App
	out    io.Writer
	render bool

	attachments *attach.Set
	models      *completion.Pager[ModelRow]
	now         func() time.Time
}

func newREPL(ctx context.Context, app *App, out io.Writer) *repl {
	return &repl{
		ctx: ctx,
		app: app,
		out: out,
		attachments: attach.NewSet(
			attach.WithLimit(app.Config.Chat.MaxAttachments),
			attach.WithLogger(app.Logger.Named("attach")),
		),
		now: time.Now,
	}
}

func (r *repl) close() {
	r.attachments.Close()
}

// run reads and handles lines until /quit or end of input.
func (r *repl) run(input lineReader) error {
	for {
		line, err := input.ReadLine(PromptStyle.Render(r.prompt()))
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(r.out)
				return nil
			}
			return err
		}
		quit, err := r.handle(line)
		if err != nil {
			fmt.Fprintf(r.out, "%s %v\n", ErrorStyle.Render("[Error]"), err)
		}
		if quit {
			return nil
		}
	}
}

func (r *repl) prompt() string {
	if n := r.attachments.Len(); n > 0 {
		return fmt.Sprintf("chatdesk [%d📎]> ", n)
	}
	return "chatdesk> "
}

// handle processes one line of input.
func (r *repl) handle(line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	switch {
	case line == "" && r.attachments.Len() == 0:
		return false, nil
	case strings.EqualFold(line, "exit"), strings.EqualFold(line, "quit"):
		return true, nil
	case strings.HasPrefix(line, "/"):
		name, arg, _ := strings.Cut(line, " ")
		name = strings.ToLower(name)
		for _, c := range replCommands {
			if c.name == name || slices.Contains(c.alias, name) {
				return c.run(r, strings.TrimSpace(arg))
			}
		}
		return false, fmt.Errorf("unknown command %s (try /help)", name)
	}
	return false, r.send(line)
}

// send runs one send cycle. Ctrl+C cancels the wait.
func (r *repl) send(text string) error {
	ctx, stop := signal.NotifyContext(r.ctx, os.Interrupt)
	defer stop()

	pending, err := r.app.Controller.Begin(ctx, session.Draft{
		Text:        text,
		Attachments: r.attachments,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(r.out, DimStyle.Render("Assistant is typing…"))
	res, err := pending.Wait()
	switch {
	case res.Reply.Failed:
		writeMessage(r.out, res.Reply)
		return nil
	case err != nil:
		return err
	}

	fmt.Fprintln(r.out, AssistantStyle.Render("Assistant")+DimStyle.Render(" · "+formatDurationShort(res.Elapsed)))
	displayReply(r.out, res.Reply.Content, r.render)
	fmt.Fprintln(r.out)
	return nil
}

// active returns the active conversation or an error naming /new.
func (r *repl) active() (model.Conversation, error) {
	conv, ok := r.app.Store.Active()
	if !ok {
		return model.Conversation{}, errors.New("no active conversation (start one with /new or just type)")
	}
	return conv, nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

func (r *repl) cmdNew(string) (bool, error) {
	conv, err := r.app.Store.CreateConversation(r.app.Controller.Model())
	if conv.ID == "" {
		return false, err
	}
	fmt.Fprintf(r.out, "%s (%s)\n", SuccessStyle.Render("New conversation"), conv.Model)
	return false, err
}

func (r *repl) cmdList(string) (bool, error) {
	rows := sessionRows(r.app.Store)
	if len(rows) == 0 {
		fmt.Fprintln(r.out, "No conversations yet.")
		return false, nil
	}
	for _, g := range r.app.Store.Groups(r.now()) {
		fmt.Fprintln(r.out, DimStyle.Render(g.Label))
		for _, c := range g.Conversations {
			for _, row := range rows {
				if row.ID != c.ID {
					continue
				}
				marker := " "
				if row.Active {
					marker = "*"
				}
				fmt.Fprintf(r.out, "  %2d%s %s %s\n", row.Index, marker, row.Title,
					DimStyle.Render(fmt.Sprintf("(%s, %d msgs)", row.Model, row.MessageCount)))
			}
		}
	}
	return false, nil
}

func (r *repl) cmdSwitch(arg string) (bool, error) {
	if arg == "" {
		return false, &ValidationError{Field: "conversation", Reason: "missing", Example: "/switch 2"}
	}
	conv, err := resolveConversation(r.app.Store, arg)
	if err != nil {
		return false, err
	}
	if err := r.app.Store.SelectConversation(conv.ID); err != nil {
		return false, err
	}
	r.app.Controller.SetModel(conv.Model)
	fmt.Fprintf(r.out, "%s %s (%s, %d messages)\n", SuccessStyle.Render("Switched to"), conv.Title, conv.Model, len(conv.Messages))
	return false, nil
}

func (r *repl) cmdRename(arg string) (bool, error) {
	conv, err := r.active()
	if err != nil {
		return false, err
	}
	if err := r.app.Store.RenameConversation(conv.ID, arg); err != nil {
		return false, err
	}
	fmt.Fprintln(r.out, SuccessStyle.Render("Renamed to "+strings.TrimSpace(arg)))
	return false, nil
}

func (r *repl) cmdDelete(string) (bool, error) {
	conv, err := r.active()
	if err != nil {
		return false, err
	}
	r.app.Controller.Cancel(conv.ID)
	if err := r.app.Store.DeleteConversation(conv.ID); err != nil {
		return false, err
	}
	fmt.Fprintln(r.out, SuccessStyle.Render("Deleted "+conv.Title))
	if next, ok := r.app.Store.Active(); ok {
		r.app.Controller.SetModel(next.Model)
		fmt.Fprintf(r.out, "Now in: %s\n", next.Title)
	}
	return false, nil
}

func (r *repl) cmdClear(string) (bool, error) {
	conv, err := r.active()
	if err != nil {
		return false, err
	}
	r.app.Controller.Cancel(conv.ID)
	if err := r.app.Store.ClearMessages(conv.ID); err != nil {
		return false, err
	}
	fmt.Fprintln(r.out, SuccessStyle.Render("Conversation cleared"))
	return false, nil
}

func (r *repl) cmdHistory(string) (bool, error) {
	conv, err := r.active()
	if err != nil {
		return false, err
	}
	writeTranscript(r.out, conv)
	return false, nil
}

func (r *repl) cmdSearch(arg string) (bool, error) {
	if arg == "" {
		return false, &ValidationError{Field: "query", Reason: "missing", Example: "/search python"}
	}
	matches := r.app.Store.Search(arg)
	if len(matches) == 0 {
		fmt.Fprintln(r.out, "No matching conversations.")
		return false, nil
	}
	for _, row := range sessionRows(r.app.Store) {
		for _, m := range matches {
			if m.ID == row.ID {
				fmt.Fprintf(r.out, "  %2d %s\n", row.Index, row.Title)
			}
		}
	}
	return false, nil
}

func (r *repl) cmdModel(arg string) (bool, error) {
	if arg == "" {
		fmt.Fprintf(r.out, "%s%s\n", RenderLabel("New chats"), r.app.Controller.Model())
		if conv, ok := r.app.Store.Active(); ok {
			fmt.Fprintf(r.out, "%s%s\n", RenderLabel("This chat"), conv.Model)
		}
		return false, nil
	}

	id := arg
	if m, ok := r.app.Router.Catalog().Find(arg); ok {
		id = m.ID
	}
	r.app.Controller.SetModel(id)

	conv, ok := r.app.Store.Active()
	if !ok {
		fmt.Fprintf(r.out, "Model set to %s\n", id)
		return false, nil
	}
	err := r.app.Store.UpdateConversation(conv.ID, model.ConversationPatch{Model: &id})
	switch {
	case errors.Is(err, history.ErrModelLocked):
		fmt.Fprintf(r.out, "%s this conversation already has messages and stays on %s; new conversations will use %s\n",
			WarningStyle.Render("[Note]"), conv.Model, id)
		return false, nil
	case err != nil:
		return false, err
	}
	fmt.Fprintf(r.out, "Model set to %s\n", id)
	return false, nil
}

func (r *repl) cmdModels(arg string) (bool, error) {
	switch {
	case r.models == nil || arg == "":
		r.models = completion.NewPager(modelRows(r.app.Router, ""), r.app.Config.UI.ModelPageSize)
	case arg == "more":
		if r.models.More() == 0 {
			fmt.Fprintln(r.out, "No more models.")
			return false, nil
		}
	default:
		return false, ErrInvalidFormat("argument", arg, "/models or /models more")
	}

	current := r.app.Controller.Model()
	for _, m := range r.models.Visible() {
		marker := " "
		if m.ID == current {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s %-26s %s\n", marker, m.ID, DimStyle.Render(m.Name+" · "+m.Description))
	}
	if n := r.models.Remaining(); n > 0 {
		fmt.Fprintln(r.out, DimStyle.Render(fmt.Sprintf("%d more (/models more)", n)))
	}
	return false, nil
}

func (r *repl) cmdAttach(arg string) (bool, error) {
	paths := strings.Fields(arg)
	if len(paths) == 0 {
		return false, &ValidationError{Field: "path", Reason: "missing", Example: "/attach notes.txt photo.png"}
	}
	before := r.attachments.Len()
	added, err := r.attachments.Add(paths...)
	for _, a := range added {
		fmt.Fprintf(r.out, "📎 %s (%s, %s)\n", a.Name, a.Kind, formatBytes(a.Size))
	}
	if dropped := len(paths) - (r.attachments.Len() - before); err == nil && dropped > 0 {
		fmt.Fprintf(r.out, "%s %d file(s) dropped, limit is %d\n",
			WarningStyle.Render("[Note]"), dropped, r.app.Config.Chat.MaxAttachments)
	}
	return false, err
}

func (r *repl) cmdDetach(arg string) (bool, error) {
	if arg == "" {
		files := r.attachments.Files()
		if len(files) == 0 {
			fmt.Fprintln(r.out, "No pending attachments.")
		}
		for i, a := range files {
			fmt.Fprintf(r.out, "  %d. %s\n", i+1, a.Name)
		}
		return false, nil
	}
	n, err := strconv.Atoi(arg)
	if err != nil || !r.attachments.RemoveAt(n-1) {
		return false, ErrInvalidFormat("attachment", arg, "/detach 1")
	}
	fmt.Fprintln(r.out, "Attachment removed")
	return false, nil
}

func (r *repl) cmdExport(arg string) (bool, error) {
	conv, err := r.active()
	if err != nil {
		return false, err
	}
	if arg == "" {
		arg = "md"
	}
	opts := export.DefaultOptions()
	exporter, err := export.New(arg, opts)
	if err != nil {
		return false, ErrInvalidFormat("format", arg, "/export md or /export json")
	}
	path, err := export.ExportToFile(&conv, exporter, opts)
	if err != nil {
		return false, err
	}
	fmt.Fprintln(r.out, styles.RenderSuccess("Exported "+path))
	return false, nil
}

func (r *repl) cmdHelp(string) (bool, error) {
	fmt.Fprintln(r.out, TitleStyle.Render("Commands"))
	for _, c := range replCommands {
		usage := c.name
		if c.args != "" {
			usage += " " + c.args
		}
		fmt.Fprintf(r.out, "  %s %s\n", CommandStyle.Render(padRunes(usage, 20)), c.help)
	}
	fmt.Fprintln(r.out, DimStyle.Render("Anything else is sent as a message. Ctrl+C cancels a pending reply."))
	return false, nil
}

func (r *repl) cmdQuit(string) (bool, error) {
	return true, nil
}

// printWelcome shows where the session starts.
func (r *repl) printWelcome() {
	fmt.Fprintln(r.out, TitleStyle.Render("chatdesk"))
	if conv, ok := r.app.Store.Active(); ok {
		fmt.Fprintf(r.out, "Continuing %q (%s, %d messages)\n", conv.Title, conv.Model, len(conv.Messages))
	} else {
		fmt.Fprintf(r.out, "New chats use %s\n", r.app.Controller.Model())
	}
	if r.app.Config.Chat.TestMode {
		fmt.Fprintln(r.out, styles.RenderInfo("Test mode: replies are canned, nothing leaves this machine"))
	}
	r.app.Logger.Debug("chat started", zap.Int("conversations", r.app.Store.Len()))
	fmt.Fprintln(r.out, DimStyle.Render("Type /help for commands."))
	fmt.Fprintln(r.out)
}
