// ABOUTME: Line input for coven-chat: readline-style editing with history on terminals
// ABOUTME: Falls back to a plain scanner when stdin is a pipe or file

package main

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
)

// lineReader reads one line of user input after showing prompt.
// It returns io.EOF when input ends or the user aborts.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// scanReader reads lines from a non-interactive source.
type scanReader struct {
	scanner *bufio.Scanner
	prompt  func(string)
}

func newScanReader(in io.Reader, prompt func(string)) *scanReader {
	return &scanReader{scanner: bufio.NewScanner(in), prompt: prompt}
}

func (r *scanReader) ReadLine(prompt string) (string, error) {
	if r.prompt != nil {
		r.prompt(prompt)
	}
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *scanReader) Close() error { return nil }

// historyReader provides line editing and arrow-key history on a terminal.
type historyReader struct {
	line        *liner.State
	historyFile string
}

func newHistoryReader(historyFile string) *historyReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	r := &historyReader{line: line, historyFile: historyFile}
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return r
}

func (r *historyReader) ReadLine(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with owner-only permissions and restores the terminal.
func (r *historyReader) Close() error {
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = r.line.WriteHistory(f)
			f.Close()
		}
	}
	return r.line.Close()
}

// getHistoryPath returns $XDG_STATE_HOME/coven-chat/history, falling back to
// ~/.local/state/coven-chat/history.
func getHistoryPath() string {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "coven-chat-history")
		}
		stateDir = filepath.Join(homeDir, ".local", "state")
	}
	return filepath.Join(stateDir, "coven-chat", "history")
}
