// Package command dispatches the /newu chat command and its subcommands.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/Visual-Illusions/NewU/internal/model"
)

// Root is the top-level command name.
const Root = "newu"

// Usage is shown for unknown subcommands.
const Usage = "/newu [set|del|list]"

// Command is one /newu subcommand.
type Command interface {
	// Names returns the subcommand names. An empty name handles bare /newu.
	Names() []string
	// Permission returns the node required to run the command, or "" for everyone.
	Permission() string
	// Handle runs the command. args holds the subcommand name at [0] when
	// one was given and, at [1], the rest of the line with its inner
	// whitespace kept.
	Handle(ctx context.Context, actor model.Actor, args []string) ([]model.Message, error)
}

// Handler routes /newu lines to registered subcommands.
// Commands are registered once at startup, then read-only.
type Handler struct {
	mu   sync.RWMutex
	cmds map[string]Command // lowercase name → Command
}

// NewHandler creates an empty handler.
func NewHandler() *Handler {
	return &Handler{cmds: make(map[string]Command, 4)}
}

// Register adds cmd under all of its names.
func (h *Handler) Register(cmd Command) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, name := range cmd.Names() {
		h.cmds[strings.ToLower(name)] = cmd
	}
}

// Count returns the number of registered names.
func (h *Handler) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.cmds)
}

// Handle runs a chat line such as "/newu set Home". ok is false when the
// line is not a /newu command.
func (h *Handler) Handle(ctx context.Context, actor model.Actor, line string) (msgs []model.Message, ok bool) {
	root, rest := splitWord(strings.TrimPrefix(strings.TrimSpace(line), "/"))
	if !strings.EqualFold(root, Root) {
		return nil, false
	}
	var args []string
	if sub, tail := splitWord(rest); sub != "" {
		args = append(args, sub)
		if tail != "" {
			args = append(args, tail)
		}
	}

	name := ""
	if len(args) > 0 {
		name = strings.ToLower(args[0])
	}

	h.mu.RLock()
	cmd, found := h.cmds[name]
	h.mu.RUnlock()

	if !found {
		return []model.Message{model.Notice(fmt.Sprintf("Unknown subcommand %q. Usage: %s", name, Usage))}, true
	}

	if perm := cmd.Permission(); !actor.HasPermission(perm) {
		slog.Warn("command permission denied",
			"actor", actor.ID,
			"command", line,
			"permission", perm)
		return []model.Message{model.Notice("You do not have permission to use that command.")}, true
	}

	slog.Info("command", "actor", actor.ID, "command", line)

	msgs, err := cmd.Handle(ctx, actor, args)
	if err != nil {
		slog.Error("command failed",
			"actor", actor.ID,
			"command", line,
			"error", err)
		return append(msgs, model.Notice(fmt.Sprintf("Command error: %s", err))), true
	}
	return msgs, true
}

// splitWord returns the first whitespace-delimited word of s and the
// trimmed remainder.
func splitWord(s string) (word, rest string) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}
