package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripPrefix(t *testing.T) {
	assert.Equal(t, "123", StripPrefix("qq:123"))
	assert.Equal(t, "group:9", StripPrefix("QQ:group:9"))
	assert.Equal(t, "123", StripPrefix(" 123 "))
	assert.Equal(t, "qq", StripPrefix("qq"))
}

func TestParseTarget(t *testing.T) {
	cases := []struct {
		raw  string
		want Target
		ok   bool
	}{
		{"group:123", Target{Kind: TargetGroup, ID: "123"}, true},
		{"g:123", Target{Kind: TargetGroup, ID: "123"}, true},
		{"GROUP:123", Target{Kind: TargetGroup, ID: "123"}, true},
		{"user:456", Target{Kind: TargetPrivate, ID: "456"}, true},
		{"456", Target{Kind: TargetPrivate, ID: "456"}, true},
		{"qq:group:123", Target{Kind: TargetGroup, ID: "123"}, true},
		{"qq:456", Target{Kind: TargetPrivate, ID: "456"}, true},
		{"", Target{}, false},
		{"qq:", Target{}, false},
		{"group:", Target{}, false},
		{"g:", Target{}, false},
		{"user:", Target{}, false},
	}
	for _, tc := range cases {
		got, ok := ParseTarget(tc.raw)
		assert.Equal(t, tc.ok, ok, "raw=%q", tc.raw)
		assert.Equal(t, tc.want, got, "raw=%q", tc.raw)
	}
}

func TestFormatTarget(t *testing.T) {
	assert.Equal(t, "group:9", FormatTarget(Target{Kind: TargetGroup, ID: "9"}))
	assert.Equal(t, "42", FormatTarget(Target{Kind: TargetPrivate, ID: "42"}))
}

func TestNormalizeAllowEntry(t *testing.T) {
	assert.Equal(t, "group:9", NormalizeAllowEntry("g:9"))
	assert.Equal(t, "group:9", NormalizeAllowEntry("qq:group:9"))
	assert.Equal(t, "42", NormalizeAllowEntry("user:42"))
	assert.Equal(t, "42", NormalizeAllowEntry("42"))
}

func TestNormalizeAllowList(t *testing.T) {
	list := NormalizeAllowList([]string{" ", "*", "g:9", "user:42", "7"})
	assert.True(t, list.HasWildcard)
	assert.Equal(t, []string{"group:9", "42", "7"}, list.Entries)
	assert.True(t, list.Configured())

	empty := NormalizeAllowList(nil)
	assert.False(t, empty.Configured())
}

func TestAllowListAllows(t *testing.T) {
	list := NormalizeAllowList([]string{"group:9", "42"})
	assert.True(t, list.Allows("group:9"))
	assert.True(t, list.Allows("42"))
	assert.False(t, list.Allows("9"))
	assert.False(t, list.Allows("group:42"))

	wild := NormalizeAllowList([]string{"*"})
	assert.True(t, wild.Allows("anything"))
}

func TestMergeAllowLists(t *testing.T) {
	merged := MergeAllowLists([]string{"42", "g:9"}, []string{"user:42", "*", "7"})
	require.True(t, merged.HasWildcard)
	assert.Equal(t, []string{"42", "group:9", "7"}, merged.Entries)
}
