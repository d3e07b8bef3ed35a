package notifier

import (
	"context"
	"fmt"
	"io"
	"os"
	"unicode/utf8"
)

// DryRun prints what would be posted without posting it.
type DryRun struct {
	w io.Writer
}

// NewDryRun creates a dry-run notifier writing to w, or stdout when w is nil.
func NewDryRun(w io.Writer) *DryRun {
	if w == nil {
		w = os.Stdout
	}
	return &DryRun{w: w}
}

// Notify prints the message.
func (n *DryRun) Notify(_ context.Context, msg Message) error {
	fmt.Fprintf(n.w, "--- %s (as %s) ---\n", msg.Site, msg.Username)
	fmt.Fprintln(n.w, msg.Text)
	fmt.Fprintf(n.w, "\n(Length: %d characters)\n\n", utf8.RuneCountInString(msg.Text))
	return nil
}
