package model

import "strings"

// Actor is a connected player as reported by the host engine.
type Actor struct {
	ID          string   `json:"id"`
	Pose        Pose     `json:"pose"`
	Permissions []string `json:"permissions,omitempty"`
}

// HasPermission checks for an exact node, a "*" grant, or a parent wildcard
// such as "newu.*".
func (a Actor) HasPermission(node string) bool {
	if node == "" {
		return true
	}
	for _, p := range a.Permissions {
		if p == "*" || strings.EqualFold(p, node) {
			return true
		}
		if prefix, ok := strings.CutSuffix(p, ".*"); ok && strings.HasPrefix(strings.ToLower(node), strings.ToLower(prefix)+".") {
			return true
		}
	}
	return false
}
