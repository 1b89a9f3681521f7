// ABOUTME: Slash-command parsing and handlers for the coven-chat terminal client
// ABOUTME: Plain lines become queries; commands drive sessions, the index and HTML export

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/2389/coven-chat/internal/chat"
	"github.com/2389/coven-chat/internal/engine"
	"github.com/2389/coven-chat/internal/index"
	"github.com/2389/coven-chat/internal/render"
)

// command is one parsed input line.
type command struct {
	name string // empty for a plain query
	arg  string
	text string
}

// parseCommand splits a trimmed input line into a command name and argument.
func parseCommand(line string) command {
	if !strings.HasPrefix(line, "/") {
		return command{text: line}
	}
	name, arg, _ := strings.Cut(line[1:], " ")
	return command{name: strings.ToLower(name), arg: strings.TrimSpace(arg), text: line}
}

// errQuit ends the input loop.
var errQuit = errors.New("quit")

// app ties the engine, the conversation index and the terminal together.
type app struct {
	eng      *engine.Engine
	indexer  *index.Indexer
	ui       *ui
	lastList []chat.Conversation
}

// exec runs one input line. It returns errQuit when the user asks to leave.
func (a *app) exec(ctx context.Context, line string) error {
	cmd := parseCommand(line)

	switch cmd.name {
	case "":
		a.send(ctx, cmd.text)
	case "quit", "exit", "q":
		return errQuit
	case "help":
		a.ui.help()
	case "new":
		id := a.eng.NewSession()
		a.ui.info("Started session %s", id)
	case "list":
		a.list(ctx)
	case "open":
		a.open(ctx, cmd.arg)
	case "export":
		a.export(cmd.arg)
	case "session":
		a.ui.info("Session %s: %s (%d messages)", a.eng.Current(), a.eng.Title(), len(a.eng.Snapshot()))
	default:
		a.ui.errorf("unknown command /%s (try /help)", cmd.name)
	}
	return nil
}

func (a *app) send(ctx context.Context, text string) {
	_, err := a.eng.Send(ctx, text)

	var dispatchErr *chat.DispatchError
	switch {
	case err == nil:
	case errors.Is(err, chat.ErrBusy):
		a.ui.errorf("still waiting for the last reply")
	case errors.As(err, &dispatchErr):
		// Already reported through the update stream.
	default:
		a.ui.errorf("%v", err)
	}
}

func (a *app) list(ctx context.Context) {
	convs, err := a.indexer.Load(ctx)
	if err != nil {
		a.ui.errorf("%v", err)
		return
	}
	a.lastList = convs
	a.ui.conversations(convs, a.eng.Current())
}

// open switches to a conversation by its number in the last /list or by id.
func (a *app) open(ctx context.Context, arg string) {
	if arg == "" {
		a.ui.errorf("usage: /open <number|session-id>")
		return
	}

	id := arg
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(a.lastList) {
			a.ui.errorf("no conversation %d (run /list first)", n)
			return
		}
		id = a.lastList[n-1].SessionID
	}

	err := a.eng.SwitchTo(ctx, id)
	var loadErr *chat.HistoryLoadError
	if err != nil && !errors.As(err, &loadErr) {
		a.ui.errorf("%v", err)
	}
}

func (a *app) export(path string) {
	if path == "" {
		a.ui.errorf("usage: /export <file.html>")
		return
	}
	if err := writeTranscript(path, a.eng.Current(), a.eng.Snapshot()); err != nil {
		a.ui.errorf("%v", err)
		return
	}
	a.ui.info("Exported %s", path)
}

func writeTranscript(path, sessionID string, msgs []chat.Message) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()

	return render.WriteHTML(f, render.Transcript{SessionID: sessionID, Messages: msgs})
}
