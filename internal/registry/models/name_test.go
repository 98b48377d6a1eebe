package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "registrar/pkg/domain-errors"
)

func TestParseNameAccepts(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"alice", "alice"},
		{"Alice", "alice"},
		{"  BOB.ALICE  ", "bob.alice"},
		{"a", "a"},
		{"0", "0"},
		{"a-b-c", "a-b-c"},
		{"x1.y2.z3", "x1.y2.z3"},
		{strings.Repeat("a", 63), strings.Repeat("a", 63)},
		{"sub-domain.parent-name", "sub-domain.parent-name"},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			name, err := ParseName(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, name.String())
		})
	}
}

func TestParseNameRejects(t *testing.T) {
	cases := []struct {
		label string
		raw   string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"too long", strings.Repeat("a", 64)},
		{"leading hyphen", "-abc"},
		{"trailing hyphen", "abc-"},
		{"consecutive hyphens", "ab--c"},
		{"label starts with hyphen", "sub.-parent"},
		{"label ends with hyphen", "sub-.parent"},
		{"leading separator", ".alice"},
		{"trailing separator", "alice."},
		{"empty label", "a..b"},
		{"underscore", "a_b"},
		{"space inside", "a b"},
		{"unicode", "ålice"},
	}
	for _, tc := range cases {
		t.Run(tc.label, func(t *testing.T) {
			_, err := ParseName(tc.raw)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
			assert.False(t, IsValid(tc.raw))
		})
	}
}

// Hyphen runs reset at the label separator: each side of the dot is a clean
// label, so adjacency across labels is fine.
func TestHyphenRunResetsAcrossLabels(t *testing.T) {
	name, err := ParseName("a-a.b-b")
	require.NoError(t, err)
	assert.Equal(t, 2, name.Level())
}

func TestLabelsAndLevel(t *testing.T) {
	name, err := ParseName("bob.alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "alice"}, name.Labels())
	assert.Equal(t, 2, name.Level())

	top, err := ParseName("alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, top.Labels())
	assert.Equal(t, 1, top.Level())
}

func TestParent(t *testing.T) {
	top, err := ParseName("alice")
	require.NoError(t, err)
	_, ok := top.Parent()
	assert.False(t, ok, "top-level names have no parent")

	sub, err := ParseName("c.b.a")
	require.NoError(t, err)
	parent, ok := sub.Parent()
	require.True(t, ok)
	assert.Equal(t, "b.a", parent.String())

	grandparent, ok := parent.Parent()
	require.True(t, ok)
	assert.Equal(t, "a", grandparent.String())
}

func TestCaseVariantsCollapse(t *testing.T) {
	lower, err := ParseName("alice")
	require.NoError(t, err)
	upper, err := ParseName("ALICE")
	require.NoError(t, err)
	assert.Equal(t, lower, upper)
}
