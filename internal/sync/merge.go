package sync

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Git-style conflict markers, emitted verbatim.
const (
	MarkerStart = "<<<<<<< LOCAL"
	MarkerMid   = "======="
	MarkerEnd   = ">>>>>>> REMOTE"
)

// edit is one changed hunk relative to the base: base lines [i1,i2) were
// replaced by side lines [j1,j2). Insertions have i1 == i2.
type edit struct {
	i1, i2 int
	j1, j2 int
}

// Merge performs a three-way line merge of local and remote changes against
// a common ancestor. Hunks are aligned on the ancestor: hunks that touch only
// one side apply cleanly, hunks where both sides edited the same ancestor
// lines emit a Git-style conflict block unless both made the identical edit.
// hasConflicts is true iff the start marker literal appears in the output.
// Merge never fails, empty inputs included.
func Merge(base, local, remote string) (merged string, hasConflicts bool) {
	baseLines := splitLines(base)
	localLines := splitLines(local)
	remoteLines := splitLines(remote)

	localEdits := diffEdits(baseLines, localLines)
	remoteEdits := diffEdits(baseLines, remoteLines)

	var out strings.Builder
	basePos := 0
	li, ri := 0, 0

	for li < len(localEdits) || ri < len(remoteEdits) {
		group := nextGroup(localEdits, remoteEdits, &li, &ri)

		writeLines(&out, baseLines[basePos:group.start])

		baseSeg := baseLines[group.start:group.end]
		localSeg := sideSegment(baseSeg, localLines, group.local, group.start, group.end)
		remoteSeg := sideSegment(baseSeg, remoteLines, group.remote, group.start, group.end)

		switch {
		case linesEqual(localSeg, remoteSeg):
			writeLines(&out, localSeg)
		case linesEqual(localSeg, baseSeg):
			writeLines(&out, remoteSeg)
		case linesEqual(remoteSeg, baseSeg):
			writeLines(&out, localSeg)
		default:
			out.WriteString(MarkerStart + "\n")
			writeLines(&out, localSeg)
			out.WriteString(MarkerMid + "\n")
			writeLines(&out, remoteSeg)
			out.WriteString(MarkerEnd + "\n")
		}

		basePos = group.end
	}

	writeLines(&out, baseLines[basePos:])

	merged = out.String()
	return merged, strings.Contains(merged, MarkerStart)
}

// UnifiedDiff produces a human-readable unified diff between two texts for
// display in reports and conflict review. Returns "" for identical inputs.
func UnifiedDiff(oldText, newText, fromLabel, toLabel string) string {
	if oldText == newText {
		return ""
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldText),
		B:        difflib.SplitLines(newText),
		FromFile: fromLabel,
		ToFile:   toLabel,
		Context:  3,
	}

	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return text
}

// hunkGroup is a maximal run of overlapping hunks, with its union base
// range and the contributing edits per side.
type hunkGroup struct {
	start, end    int
	local, remote []edit
}

// nextGroup consumes the earliest remaining hunk and every hunk from either
// side that transitively overlaps it on the base. li and ri are advanced past
// the consumed hunks.
func nextGroup(localEdits, remoteEdits []edit, li, ri *int) hunkGroup {
	first := pickEdit(localEdits, remoteEdits, li, ri)
	g := hunkGroup{start: first.e.i1, end: first.e.i2}
	g.add(first)

	for *li < len(localEdits) || *ri < len(remoteEdits) {
		var cand edit
		fromLocal := false
		switch {
		case *li >= len(localEdits):
			cand = remoteEdits[*ri]
		case *ri >= len(remoteEdits):
			cand = localEdits[*li]
			fromLocal = true
		case localEdits[*li].i1 <= remoteEdits[*ri].i1:
			cand = localEdits[*li]
			fromLocal = true
		default:
			cand = remoteEdits[*ri]
		}

		// A hunk joins the group when it starts inside the union range,
		// or when both are pure insertions at the same point.
		if cand.i1 >= g.end && !(g.start == g.end && cand.i1 == g.start) {
			break
		}

		if fromLocal {
			*li++
			g.add(taggedEdit{e: cand, local: true})
		} else {
			*ri++
			g.add(taggedEdit{e: cand, local: false})
		}
		if cand.i2 > g.end {
			g.end = cand.i2
		}
	}

	return g
}

type taggedEdit struct {
	e     edit
	local bool
}

func (g *hunkGroup) add(t taggedEdit) {
	if t.local {
		g.local = append(g.local, t.e)
	} else {
		g.remote = append(g.remote, t.e)
	}
}

func pickEdit(localEdits, remoteEdits []edit, li, ri *int) taggedEdit {
	if *li < len(localEdits) && (*ri >= len(remoteEdits) || localEdits[*li].i1 <= remoteEdits[*ri].i1) {
		e := localEdits[*li]
		*li++
		return taggedEdit{e: e, local: true}
	}
	e := remoteEdits[*ri]
	*ri++
	return taggedEdit{e: e, local: false}
}

// sideSegment returns the side's lines corresponding to the base range
// [start,end). A side with no edits in the group mirrors the base segment.
// The group boundaries never fall inside a side edit, so the stretches
// outside the first/last edit map linearly.
func sideSegment(baseSeg, side []string, edits []edit, start, end int) []string {
	if len(edits) == 0 {
		return baseSeg
	}
	first, last := edits[0], edits[len(edits)-1]
	from := first.j1 - (first.i1 - start)
	to := last.j2 + (end - last.i2)
	return side[from:to]
}

// diffEdits returns the non-equal hunks of a base->side diff in base order.
func diffEdits(base, side []string) []edit {
	matcher := difflib.NewMatcher(base, side)

	var edits []edit
	for _, op := range matcher.GetOpCodes() {
		if op.Tag == 'e' {
			continue
		}
		edits = append(edits, edit{i1: op.I1, i2: op.I2, j1: op.J1, j2: op.J2})
	}
	return edits
}

// splitLines splits text into lines keeping their endings. A final line
// without a trailing newline is preserved as-is.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func writeLines(b *strings.Builder, lines []string) {
	for _, line := range lines {
		b.WriteString(line)
	}
}
