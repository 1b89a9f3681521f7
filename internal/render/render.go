// ABOUTME: Renders a conversation timeline as a standalone HTML transcript
// ABOUTME: Message bodies are markdown converted with goldmark; raw HTML in messages is escaped

package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/coven-chat/internal/chat"
)

//go:embed templates/*.html
var templateFS embed.FS

var transcriptTmpl = template.Must(template.ParseFS(templateFS, "templates/transcript.html"))

// markdown is GitHub-flavored, without the unsafe renderer option, so HTML
// embedded in a message is dropped rather than passed through.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Transcript is the data needed to export one conversation.
type Transcript struct {
	SessionID  string
	Title      string
	Messages   []chat.Message
	ExportedAt time.Time
}

// renderedMessage is a message with its body already converted.
type renderedMessage struct {
	chat.Message
	HTML template.HTML
}

// Markdown converts one message body to HTML.
func Markdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// WriteHTML writes t as a complete HTML document. An empty Title uses the
// header title of the messages; a zero ExportedAt uses the current time.
func WriteHTML(w io.Writer, t Transcript) error {
	if t.Title == "" {
		t.Title = chat.HeaderTitle(t.Messages)
	}
	if t.ExportedAt.IsZero() {
		t.ExportedAt = time.Now()
	}

	msgs := make([]renderedMessage, 0, len(t.Messages))
	for _, m := range t.Messages {
		body, err := Markdown(m.Content)
		if err != nil {
			return fmt.Errorf("message %s: %w", m.ID, err)
		}
		msgs = append(msgs, renderedMessage{Message: m, HTML: body})
	}

	data := struct {
		SessionID  string
		Title      string
		ExportedAt time.Time
		Messages   []renderedMessage
	}{
		SessionID:  t.SessionID,
		Title:      t.Title,
		ExportedAt: t.ExportedAt,
		Messages:   msgs,
	}

	if err := transcriptTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("rendering transcript: %w", err)
	}
	return nil
}
