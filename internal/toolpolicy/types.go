// Package toolpolicy resolves which tools a subagent may use: expanding
// named tool groups, normalizing aliases, and applying the allow/deny/
// privilege-narrowing rules the Subagent Manager enforces before spawn.
package toolpolicy

import "strings"

// DefaultGroups are the built-in named tool bundles a Policy.Allow/Deny
// entry may reference as "group:<name>".
var DefaultGroups = map[string][]string{
	"group:fs":      {"read", "write", "edit", "exec"},
	"group:web":     {"websearch", "webfetch"},
	"group:runtime": {"sandbox"},
	"group:spawn":   {"spawn_subagent"},
}

// ToolAliases maps alternative tool spellings to their canonical name.
var ToolAliases = map[string]string{
	"bash":        "exec",
	"shell":       "exec",
	"apply-patch": "edit",
	"apply_patch": "edit",
	"websearch":   "web_search",
	"webfetch":    "web_fetch",
}

// NormalizeTool lowercases and resolves a tool name through ToolAliases.
func NormalizeTool(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if canon, ok := ToolAliases[n]; ok {
		return canon
	}
	return n
}

// NormalizeTools applies NormalizeTool to every entry, dropping empties.
func NormalizeTools(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if norm := NormalizeTool(n); norm != "" {
			out = append(out, norm)
		}
	}
	return out
}

// Policy is an allow/deny tool list a caller may attach to a spawn config.
// Deny always takes precedence over Allow.
type Policy struct {
	Allow []string `json:"allow,omitempty" yaml:"allow"`
	Deny  []string `json:"deny,omitempty" yaml:"deny"`
}
