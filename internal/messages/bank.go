// Package messages holds the flavor lines shown to an actor after respawning.
package messages

import (
	"bufio"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
)

// Fallback is returned by an empty bank.
const Fallback = "Reconstruction complete."

// DefaultFile is the embedded message file.
const DefaultFile = "lang/en_US.lang"

//go:embed lang/*.lang
var embedded embed.FS

// Bank is an immutable list of messages.
type Bank struct {
	messages []string
	intn     func(n int) int
}

// NewBank returns a bank over messages. Blank entries are dropped.
func NewBank(messages []string) *Bank {
	kept := make([]string, 0, len(messages))
	for _, m := range messages {
		if m = strings.TrimSpace(m); m != "" {
			kept = append(kept, m)
		}
	}
	return &Bank{messages: kept, intn: rand.IntN}
}

// Load reads one message per non-blank line of name in fsys.
func Load(fsys fs.FS, name string) ([]string, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("reading %s: %w", name, err)
	}
	return out, nil
}

// LoadBank builds the bank from path, or from the embedded file when path
// is empty. Failures are logged and never fatal: a bad override falls back
// to the embedded file, and a bad embedded file yields an empty bank.
func LoadBank(path string) *Bank {
	if path != "" {
		msgs, err := Load(os.DirFS(filepath.Dir(path)), filepath.Base(path))
		if err == nil && len(msgs) > 0 {
			slog.Info("respawn messages loaded", "path", path, "count", len(msgs))
			return NewBank(msgs)
		}
		slog.Warn("failed to load respawn messages, using built-in set", "path", path, "error", err)
	}

	msgs, err := Load(embedded, DefaultFile)
	if err != nil {
		slog.Error("failed to load built-in respawn messages", "error", err)
		return NewBank(nil)
	}
	return NewBank(msgs)
}

// Random returns a uniformly chosen message, or Fallback when the bank is empty.
func (b *Bank) Random() string {
	if len(b.messages) == 0 {
		return Fallback
	}
	return b.messages[b.intn(len(b.messages))]
}

// Len returns the number of messages.
func (b *Bank) Len() int {
	return len(b.messages)
}
