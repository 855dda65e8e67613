// Package notify defines the error surfaces the manager presents alerts on:
// a foreground session that can show a dismissable modal alert, and a
// transient notifier used as the always-available fallback.
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// Alert is a handle to a presented modal alert.
type Alert interface {
	// Dismiss removes the alert. Dismissing an already dismissed alert is a
	// no-op.
	Dismiss()
}

// Session is a foreground UI surface. While a session is attached to the
// manager, errors are presented as modal alerts on it; otherwise they fall
// back to a transient Notifier.
type Session interface {
	// ShowAlert presents a modal alert and returns its handle.
	ShowAlert(title, message string) Alert
}

// Notifier presents a transient, non-modal notification.
type Notifier interface {
	Notify(title, message string)
}

// LogNotifier is the fallback Notifier: it surfaces the message through the
// logger and nothing else.
type LogNotifier struct {
	Logger *logrus.Logger
}

// Notify logs the notification at warning level.
func (n *LogNotifier) Notify(title, message string) {
	logger := n.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithField("title", title).Warn(message)
}

// TerminalSession renders modal alerts on an interactive terminal.
type TerminalSession struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminalSession creates a Session writing to w. fd must refer to a real
// terminal; a piped or redirected stream is not a foreground surface and the
// caller should fall back to a transient Notifier instead.
func NewTerminalSession(w io.Writer, fd int) (*TerminalSession, error) {
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("fd %d is not a terminal", fd)
	}
	return &TerminalSession{w: w}, nil
}

// ShowAlert prints a highlighted alert block and returns its handle.
func (s *TerminalSession) ShowAlert(title, message string) Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	header := color.New(color.FgRed, color.Bold)
	_, _ = header.Fprintf(s.w, "!! %s\n", title)
	_, _ = fmt.Fprintf(s.w, "   %s\n", message)

	return &terminalAlert{session: s, title: title}
}

type terminalAlert struct {
	session   *TerminalSession
	title     string
	dismissed bool
	mu        sync.Mutex
}

func (a *terminalAlert) Dismiss() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dismissed {
		return
	}
	a.dismissed = true

	a.session.mu.Lock()
	defer a.session.mu.Unlock()
	dim := color.New(color.Faint)
	_, _ = dim.Fprintf(a.session.w, "   (%s dismissed)\n", a.title)
}
