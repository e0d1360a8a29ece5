package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
)

// ErrClipboardUnsupported is returned when the host has no clipboard
// utility (xclip, xsel, wl-copy, pbcopy, clip.exe).
var ErrClipboardUnsupported = errors.New("clipboard not supported on this system")

// Clipboard copies the payload to the system clipboard as text. The key
// and content type are ignored; every write replaces the previous one.
type Clipboard struct {
	write       func(string) error
	unsupported bool
}

func NewClipboard() *Clipboard {
	return &Clipboard{write: clipboard.WriteAll, unsupported: clipboard.Unsupported}
}

func (c *Clipboard) Target() string { return "clipboard" }

func (c *Clipboard) Write(ctx context.Context, req WriteRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.unsupported {
		return ErrClipboardUnsupported
	}
	if err := c.write(string(req.Data)); err != nil {
		return fmt.Errorf("copy %q to clipboard: %w", req.Key, err)
	}
	return nil
}
