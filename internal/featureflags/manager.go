// Package featureflags evaluates on/off and percentage-rollout flags from a config string.
package featureflags

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Flags consulted by the service.
const (
	// CommentNotifications gates notifier messages for new comments and replies.
	CommentNotifications = "comment_notifications"
	// PostCache gates the rendered-post read cache.
	PostCache = "post_cache"
)

// Known describes every flag the service reads.
var Known = map[string]string{
	CommentNotifications: "Publish comment and reply notifications to the recipient's channel",
	PostCache:            "Serve rendered posts through the Redis cache",
}

// setting is one parsed flag value. A percentage of -1 means the value did not parse.
type setting struct {
	raw     string
	percent int
}

func parseSetting(value string) setting {
	switch value {
	case "on", "true", "1":
		return setting{raw: value, percent: 100}
	case "off", "false", "0":
		return setting{raw: value, percent: 0}
	}
	if pct, ok := strings.CutSuffix(value, "%"); ok {
		if n, err := strconv.Atoi(pct); err == nil {
			return setting{raw: value, percent: min(max(n, 0), 100)}
		}
	}
	return setting{raw: value, percent: -1}
}

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "comment_notifications=on,post_cache=off,new_embed=25%"
type Manager struct {
	flags map[string]setting
}

// NewManager creates a feature-flag manager from a comma-separated config string. Entries
// without a key or value are ignored.
func NewManager(raw string) *Manager {
	out := make(map[string]setting)

	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = parseSetting(value)
	}

	return &Manager{flags: out}
}

// Enabled returns whether a flag is enabled for a subject (an e-mail address, or "" for
// process-wide checks).
// Supported values:
// - on/true/1
// - off/false/0
// - N% (deterministic rollout by subject, e.g. 25%)
//
// Unset and unparseable flags are off. A partial rollout is off for an empty subject.
func (m *Manager) Enabled(name, subject string) bool {
	if m == nil {
		return false
	}

	s, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch {
	case s.percent <= 0:
		return false
	case s.percent >= 100:
		return true
	}

	subject = normalize(subject)
	if subject == "" {
		return false
	}
	return rolloutBucket(name, subject) < s.percent
}

// Raw returns a copy of configured flags.
func (m *Manager) Raw() map[string]string {
	if m == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(m.flags))
	for k, s := range m.flags {
		out[k] = s.raw
	}
	return out
}

// Snapshot returns evaluated flag status for one subject.
func (m *Manager) Snapshot(subject string) map[string]bool {
	if m == nil {
		return map[string]bool{}
	}
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, subject)
	}
	return out
}

// Problems lists configured flags that are not in Known or whose value did not parse.
func (m *Manager) Problems() []string {
	if m == nil {
		return nil
	}
	var out []string
	for name, s := range m.flags {
		if _, ok := Known[name]; !ok {
			out = append(out, name+": unknown flag")
		}
		if s.percent < 0 {
			out = append(out, name+": invalid value "+strconv.Quote(s.raw))
		}
	}
	sort.Strings(out)
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name, subject string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(name) + ":" + subject))
	return int(h.Sum32() % 100)
}
