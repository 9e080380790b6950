// Package notify tells the user an import finished.
package notify

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/gen2brain/beeep"
)

type Notifier interface {
	Notify(title, message string) error
}

// Desktop raises an OS notification.
type Desktop struct {
	send func(title, message string) error
}

func NewDesktop() *Desktop {
	return &Desktop{send: func(title, message string) error {
		return beeep.Notify(title, message, "")
	}}
}

func (d *Desktop) Notify(title, message string) error {
	if err := d.send(title, message); err != nil {
		return fmt.Errorf("sending desktop notification: %w", err)
	}
	return nil
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
)

// Terminal prints the notification as a styled line.
type Terminal struct {
	w io.Writer
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (t *Terminal) Notify(title, message string) error {
	_, err := fmt.Fprintf(t.w, "%s %s\n", titleStyle.Render(title), messageStyle.Render(message))
	return err
}

// Multi fans out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(title, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(title, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Imported is the confirmation shown after a successful commit.
func Imported(count int) string {
	return fmt.Sprintf("Successfully imported %d records", count)
}
