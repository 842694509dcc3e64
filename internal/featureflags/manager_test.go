package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled_BooleanValues(t *testing.T) {
	t.Parallel()
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	for _, name := range []string{"a", "c", "e"} {
		assert.True(t, m.Enabled(name, ""), name)
	}
	for _, name := range []string{"b", "d", "f", "missing"} {
		assert.False(t, m.Enabled(name, ""), name)
	}
}

func TestEnabled_PercentageValues(t *testing.T) {
	t.Parallel()
	m := NewManager("always=100%,never=0%,canary=25%,broken=abc%")

	assert.True(t, m.Enabled("always", ""))
	assert.False(t, m.Enabled("never", "ada@example.com"))
	assert.False(t, m.Enabled("broken", "ada@example.com"))

	first := m.Enabled("canary", "ada@example.com")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled("canary", " ADA@example.com "), "rollout must be deterministic per subject")
	}
	assert.False(t, m.Enabled("canary", ""), "percentage rollout requires a subject")
}

func TestParseAndSnapshot(t *testing.T) {
	t.Parallel()
	m := NewManager(" bad ,x=on, y = 20% ,z=off ")

	raw := m.Raw()
	assert.Len(t, raw, 3)
	assert.Equal(t, map[string]string{"x": "on", "y": "20%", "z": "off"}, raw)

	snap := m.Snapshot("ada@example.com")
	assert.Len(t, snap, 3)
	assert.True(t, snap["x"])
	assert.False(t, snap["z"])
}

func TestNilManager(t *testing.T) {
	t.Parallel()
	var m *Manager
	assert.False(t, m.Enabled(CommentNotifications, "a@b.c"))
	assert.Empty(t, m.Raw())
	assert.Empty(t, m.Snapshot(""))
}

func TestParseSetting_ClampsPercentages(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 100, parseSetting("150%").percent)
	assert.Equal(t, 0, parseSetting("-5%").percent)
	assert.Equal(t, -1, parseSetting("maybe").percent)
	assert.Equal(t, "maybe", parseSetting("maybe").raw)
}

func TestProblems(t *testing.T) {
	t.Parallel()

	m := NewManager("comment_notifications=on,post_cache=sometimes,dark_mode=on")
	assert.Equal(t, []string{
		"dark_mode: unknown flag",
		`post_cache: invalid value "sometimes"`,
	}, m.Problems())

	assert.Empty(t, NewManager("post_cache=50%").Problems())
}
