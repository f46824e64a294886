package sync

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_Identity(t *testing.T) {
	for _, content := range []string{"", "same\n", "a\nb\nc\n", "no trailing newline"} {
		merged, hasConflicts := Merge(content, content, content)
		assert.False(t, hasConflicts)
		assert.Equal(t, content, merged)
	}
}

func TestMerge_LocalOnlyChange(t *testing.T) {
	merged, hasConflicts := Merge("old\n", "new\n", "old\n")
	assert.False(t, hasConflicts)
	assert.Equal(t, "new\n", merged)
}

func TestMerge_RemoteOnlyChange(t *testing.T) {
	merged, hasConflicts := Merge("old\n", "old\n", "new\n")
	assert.False(t, hasConflicts)
	assert.Equal(t, "new\n", merged)
}

func TestMerge_DisjointEditsApplyCleanly(t *testing.T) {
	base := "aaa\nbbb\nccc\n"
	local := "aaa\nBBB\nccc\n"
	remote := "aaa\nbbb\nCCC\n"

	merged, hasConflicts := Merge(base, local, remote)

	assert.False(t, hasConflicts)
	assert.Contains(t, merged, "BBB")
	assert.Contains(t, merged, "CCC")
}

func TestMerge_NonOverlappingAdditions(t *testing.T) {
	base := "header\n\nmiddle\n\nfooter\n"
	local := "header\n\nlocal section\n\nmiddle\n\nfooter\n"
	remote := "header\n\nmiddle\n\nremote section\n\nfooter\n"

	merged, hasConflicts := Merge(base, local, remote)

	assert.False(t, hasConflicts)
	assert.Contains(t, merged, "local section")
	assert.Contains(t, merged, "remote section")
}

func TestMerge_BothSidesSameEdit(t *testing.T) {
	base := "one\ntwo\nthree\n"
	edited := "one\nTWO\nthree\n"

	merged, hasConflicts := Merge(base, edited, edited)

	assert.False(t, hasConflicts)
	assert.Equal(t, edited, merged)
}

func TestMerge_ConflictSameLine(t *testing.T) {
	merged, hasConflicts := Merge("line 1\n", "LOCAL change\n", "REMOTE change\n")

	assert.True(t, hasConflicts)

	startIdx := strings.Index(merged, MarkerStart)
	midIdx := strings.Index(merged, MarkerMid+"\n")
	endIdx := strings.Index(merged, MarkerEnd)
	require.GreaterOrEqual(t, startIdx, 0)
	require.Greater(t, midIdx, startIdx)
	require.Greater(t, endIdx, midIdx)

	assert.Contains(t, merged, "LOCAL change\n")
	assert.Contains(t, merged, "REMOTE change\n")
	// exactly one conflict block
	assert.Equal(t, 1, strings.Count(merged, MarkerStart))
	assert.Equal(t, 1, strings.Count(merged, MarkerEnd))
}

func TestMerge_ConflictKeepsSurroundingContext(t *testing.T) {
	base := "intro\nbody\noutro\n"
	local := "intro\nlocal body\noutro\n"
	remote := "intro\nremote body\noutro\n"

	merged, hasConflicts := Merge(base, local, remote)

	assert.True(t, hasConflicts)
	assert.True(t, strings.HasPrefix(merged, "intro\n"))
	assert.True(t, strings.HasSuffix(merged, "outro\n"))
}

func TestMerge_EmptyInputsNeverFail(t *testing.T) {
	merged, hasConflicts := Merge("", "", "")
	assert.False(t, hasConflicts)
	assert.Equal(t, "", merged)

	merged, _ = Merge("", "local content\n", "remote content\n")
	assert.Contains(t, merged, "local content")
	assert.Contains(t, merged, "remote content")
}

func TestUnifiedDiff_IdenticalInputsEmpty(t *testing.T) {
	assert.Empty(t, UnifiedDiff("same\n", "same\n", "a", "b"))
	assert.Empty(t, UnifiedDiff("", "", "a", "b"))
}

func TestUnifiedDiff_Labels(t *testing.T) {
	diff := UnifiedDiff("old line\n", "new line\n", "local/doc.md", "remote/Wiki/Doc")

	assert.Contains(t, diff, "--- local/doc.md")
	assert.Contains(t, diff, "+++ remote/Wiki/Doc")
	assert.Contains(t, diff, "-old line")
	assert.Contains(t, diff, "+new line")
}
