// ABOUTME: Terminal rendering for coven-chat: messages, notices, conversation list and spinner
// ABOUTME: All writes go through one mutex so engine updates and the spinner never interleave

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"

	"github.com/2389/coven-chat/internal/chat"
	"github.com/2389/coven-chat/internal/engine"
)

const spinnerInterval = 100 * time.Millisecond

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// ui writes everything the user sees.
type ui struct {
	mu  sync.Mutex
	out io.Writer

	// markdown formats message bodies for the terminal.
	markdown func(string) string

	spinnerStop chan struct{}
	spinnerDone chan struct{}

	userColor   *color.Color
	agentColor  *color.Color
	errorColor  *color.Color
	mutedColor  *color.Color
	headerColor *color.Color
}

func newUI(out io.Writer) *ui {
	return &ui{
		out:         out,
		markdown:    stripMarkdown,
		userColor:   color.New(color.FgBlue, color.Bold),
		agentColor:  color.New(color.FgGreen, color.Bold),
		errorColor:  color.New(color.FgRed),
		mutedColor:  color.New(color.FgHiBlack),
		headerColor: color.New(color.FgCyan, color.Bold),
	}
}

// printf writes under the output lock.
func (u *ui) printf(format string, args ...any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprintf(u.out, format, args...)
}

func (u *ui) prompt(p string) {
	u.printf("%s", p)
}

func (u *ui) info(format string, args ...any) {
	u.printf("%s\n", u.mutedColor.Sprintf(format, args...))
}

func (u *ui) errorf(format string, args ...any) {
	u.printf("%s\n", u.errorColor.Sprintf("[error] "+format, args...))
}

// handle renders one engine update. After dropped updates the whole
// timeline is redrawn, since appends in the gap were never printed.
func (u *ui) handle(upd engine.Update, eng *engine.Engine) {
	if upd.Missed > 0 && upd.Kind != engine.UpdateReplaced {
		u.clearSpinnerLine()
		u.timeline(eng.Title(), eng.Snapshot())
		if upd.Kind == engine.UpdateAppended {
			return
		}
	}

	switch upd.Kind {
	case engine.UpdateAppended:
		// The user's own line is already on screen.
		if !upd.Local {
			u.message(upd.Message)
		}

	case engine.UpdateReplaced:
		u.timeline(eng.Title(), eng.Snapshot())

	case engine.UpdateLoading:
		if upd.Loading {
			u.startSpinner()
		} else {
			u.stopSpinner()
		}

	case engine.UpdateNotice:
		u.notice(upd.Err)
	}
}

// message prints one message with its role label.
func (u *ui) message(m chat.Message) {
	label := u.userColor.Sprint("you")
	if m.Role == chat.RoleAgent {
		label = u.agentColor.Sprint("agent")
	}
	u.clearSpinnerLine()
	u.printf("%s: %s\n", label, u.markdown(m.Content))
}

// timeline prints a header and every message.
func (u *ui) timeline(title string, msgs []chat.Message) {
	u.printf("%s\n", u.headerColor.Sprintf("── %s ──", title))
	for _, m := range msgs {
		u.message(m)
	}
}

// notice prints a non-fatal engine error in words the user can act on.
func (u *ui) notice(err error) {
	if err == nil {
		return
	}

	var dispatchErr *chat.DispatchError
	var loadErr *chat.HistoryLoadError
	switch {
	case errors.Is(err, chat.ErrResponseTimeout):
		u.errorf("no reply from the agent yet; you can send again")
	case errors.As(err, &dispatchErr) && dispatchErr.StatusCode == 429:
		u.errorf("rate limited by the gateway, try again shortly")
	case errors.As(err, &dispatchErr):
		u.errorf("message not sent: %v", dispatchErr.Err)
	case errors.As(err, &loadErr):
		u.errorf("could not load history: %v", loadErr.Err)
	default:
		u.errorf("%v", err)
	}
}

// conversations prints the numbered index.
func (u *ui) conversations(convs []chat.Conversation, current string) {
	if len(convs) == 0 {
		u.info("No conversations yet")
		return
	}
	u.printf("%s\n", u.headerColor.Sprint("Conversations:"))
	for i, c := range convs {
		marker := " "
		if c.SessionID == current {
			marker = "*"
		}
		u.printf("%s %2d. %s %s\n",
			marker, i+1, c.Title,
			u.mutedColor.Sprintf("(%s)", c.CreatedAt.Local().Format("Jan 2 15:04")))
	}
}

func (u *ui) help() {
	u.printf("Commands:\n")
	u.printf("  /new               Start a new conversation\n")
	u.printf("  /list              List conversations, newest first\n")
	u.printf("  /open <n|id>       Open a conversation by list number or session id\n")
	u.printf("  /export <file>     Save the current conversation as HTML\n")
	u.printf("  /session           Show the current session\n")
	u.printf("  /help              Show this help\n")
	u.printf("  /quit              Exit\n")
	u.printf("Anything else is sent to the agent.\n")
}

// startSpinner shows an animated waiting line until stopSpinner.
func (u *ui) startSpinner() {
	u.mu.Lock()
	if u.spinnerStop != nil {
		u.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	u.spinnerStop, u.spinnerDone = stop, done
	u.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(spinnerInterval)
		defer ticker.Stop()

		for i := 0; ; i++ {
			u.printf("\r%s", u.mutedColor.Sprintf("%s waiting for agent...", spinnerFrames[i%len(spinnerFrames)]))
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}()
}

func (u *ui) stopSpinner() {
	u.mu.Lock()
	stop, done := u.spinnerStop, u.spinnerDone
	u.spinnerStop, u.spinnerDone = nil, nil
	u.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	u.clearSpinnerLine()
}

// clearSpinnerLine erases the current line so a message can take its place.
func (u *ui) clearSpinnerLine() {
	u.printf("\r\033[K")
}

// glamourMarkdown renders markdown with terminal styling, wrapped at width.
// Rendering failures fall back to stripMarkdown.
func glamourMarkdown(width int) func(string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return stripMarkdown
	}
	return func(s string) string {
		out, err := r.Render(s)
		if err != nil {
			return stripMarkdown(s)
		}
		return strings.Trim(out, "\n")
	}
}

// stripMarkdown removes common markdown formatting from text.
func stripMarkdown(s string) string {
	// Remove bold/italic markers (order matters: ** before *)
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")
	// Don't remove single * as it's often used for lists
	return s
}
