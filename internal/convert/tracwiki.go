// Package convert translates page content between the local markdown
// representation and Trac wiki markup. Conversion happens at the sync
// boundary only: local files stay markdown, remote pages stay wiki markup.
package convert

import (
	"fmt"
	"regexp"
	"strings"
)

// macroPlaceholder brackets unknown macros while link patterns run, so
// [[PageOutline]] is not mangled into a markdown link.
const macroPlaceholder = "\x00"

var (
	reProcessorCell = regexp.MustCompile(`(?s)\{\{\{#!(t[dh])\s*(.*?)\s*\}\}\}`)
	reCodeWithLang  = regexp.MustCompile(`(?s)\{\{\{#!(\w+)\n(.*?)\n\}\}\}`)
	reCodePlain     = regexp.MustCompile(`(?s)\{\{\{\n(.*?)\n\}\}\}`)
	reImageMacro    = regexp.MustCompile(`(?i)\[\[Image\(([^)]+)\)\]\]`)
	reBreakMacro    = regexp.MustCompile(`(?i)\[\[BR\]\]`)
	reUnknownMacro  = regexp.MustCompile(`\[\[(\w+)(\([^)]*\))?\]\]`)
	reBoldItalic    = regexp.MustCompile(`'''''(.*?)'''''`)
	reBold          = regexp.MustCompile(`'''(.*?)'''`)
	reItalic        = regexp.MustCompile(`''(.*?)''`)
	reLinkWithText  = regexp.MustCompile(`\[(\S+)\s+([^\]]+)\]`)
	reLinkBare      = regexp.MustCompile(`\[([^\[\]\s]+)\](\()?`)
	reListMarker    = regexp.MustCompile(`(?m)^( +)(\* )+`)
	reHorizRule     = regexp.MustCompile(`(?m)^----+\s*$`)
	reDefinition    = regexp.MustCompile(`(?m)^(\s*)(\S.*?)::\s*(\S.*)$`)
	reTableRow      = regexp.MustCompile(`^\s*\|\|.*\|\|\s*$`)
	reRowContinue   = regexp.MustCompile(`\\\s*\n\s*\|\|`)
	reHeaderCell    = regexp.MustCompile(`^=(.*)=$`)
	rePlaceholder   = regexp.MustCompile("\x00MACRO:([^\x00]+)\x00")
)

// reHeadings is indexed deepest-first so ====== never matches inside =.
var reHeadings = func() []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, 6)
	for level := 6; level >= 1; level-- {
		marker := strings.Repeat("=", level)
		res = append(res, regexp.MustCompile(
			`(?m)^`+marker+`\s+(.*?)(?:\s+`+marker+`)?\s*$`))
	}
	return res
}()

// TracWikiToMarkdown converts Trac wiki markup to markdown, best effort.
// Unknown macros survive as a visible [MACRO: ...] note and TracLinks like
// ticket:12 pass through untouched. The output always ends in one newline.
func TracWikiToMarkdown(text string) string {
	text = convertProcessorCells(text)
	text = convertCodeBlocks(text)
	text = convertMacros(text)
	text = convertHeadings(text)
	text = convertInlineStyles(text)
	text = convertLinks(text)
	text = convertLists(text)
	text = convertBlockElements(text)
	text = convertTables(text)
	text = restoreMacros(text)
	return strings.TrimRight(text, "\n") + "\n"
}

// convertProcessorCells rewrites {{{#!td ...}}} cells into || rows before
// the code block patterns can swallow them.
func convertProcessorCells(text string) string {
	return reProcessorCell.ReplaceAllStringFunc(text, func(m string) string {
		parts := reProcessorCell.FindStringSubmatch(m)
		content := strings.Join(strings.Fields(parts[2]), " ")
		if parts[1] == "th" {
			return "||=" + content + "=||"
		}
		return "||" + content + "||"
	})
}

func convertCodeBlocks(text string) string {
	text = reCodeWithLang.ReplaceAllStringFunc(text, func(m string) string {
		parts := reCodeWithLang.FindStringSubmatch(m)
		return "```" + wikiProcessorToFenceLang(parts[1]) + "\n" + parts[2] + "\n```"
	})
	return reCodePlain.ReplaceAllString(text, "```\n$1\n```")
}

func convertMacros(text string) string {
	text = reImageMacro.ReplaceAllString(text, "![]($1)")
	text = reBreakMacro.ReplaceAllString(text, "\n")
	return reUnknownMacro.ReplaceAllStringFunc(text, func(m string) string {
		parts := reUnknownMacro.FindStringSubmatch(m)
		return macroPlaceholder + "MACRO:" + parts[1] + parts[2] + macroPlaceholder
	})
}

func convertHeadings(text string) string {
	for i, re := range reHeadings {
		level := 6 - i
		text = re.ReplaceAllString(text, strings.Repeat("#", level)+" $1")
	}
	return text
}

// bold before italic, ''' nests inside '''''
func convertInlineStyles(text string) string {
	text = reBoldItalic.ReplaceAllString(text, "***$1***")
	text = reBold.ReplaceAllString(text, "**$1**")
	return reItalic.ReplaceAllString(text, "*$1*")
}

// convertLinks rewrites [url text] then [url]. The bare form captures a
// trailing paren so markdown links produced by the first pass survive.
func convertLinks(text string) string {
	text = reLinkWithText.ReplaceAllString(text, "[$2]($1)")
	return reLinkBare.ReplaceAllStringFunc(text, func(m string) string {
		parts := reLinkBare.FindStringSubmatch(m)
		if parts[2] == "(" {
			return m
		}
		return "<" + parts[1] + ">"
	})
}

func convertLists(text string) string {
	return reListMarker.ReplaceAllStringFunc(text, func(m string) string {
		indent := m[:strings.Index(m, "*")]
		count := strings.Count(m, "* ")
		return indent + strings.Repeat("- ", count)
	})
}

func convertBlockElements(text string) string {
	text = reHorizRule.ReplaceAllString(text, "---")
	return reDefinition.ReplaceAllString(text, "$1**$2**: $3")
}

// convertTables turns contiguous ||cell|| rows into a markdown table. The
// first row always becomes the header line since markdown requires one;
// alignment separators come from the whitespace convention of that row.
func convertTables(text string) string {
	// joins rows split over multiple source lines
	text = reRowContinue.ReplaceAllString(text, "||")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	var rows [][]string
	var aligns []string

	flush := func() {
		if len(rows) == 0 {
			return
		}
		out = append(out, "| "+strings.Join(rows[0], " | ")+" |")
		seps := make([]string, len(rows[0]))
		for i := range seps {
			seps[i] = "---"
			if i < len(aligns) {
				seps[i] = alignSeparator(aligns[i])
			}
		}
		out = append(out, "|"+strings.Join(seps, "|")+"|")
		for _, row := range rows[1:] {
			out = append(out, "| "+strings.Join(row, " | ")+" |")
		}
		rows = nil
		aligns = nil
	}

	for _, line := range lines {
		if reTableRow.MatchString(line) {
			cells, rowAligns := parseWikiRow(line)
			rows = append(rows, cells)
			if aligns == nil {
				aligns = rowAligns
			}
			continue
		}
		flush()
		out = append(out, line)
	}
	flush()
	return strings.Join(out, "\n")
}

// parseWikiRow splits one ||...|| row into cell contents and per-cell
// alignment. Empty cells mark spanning, which markdown cannot express, so
// the span collapses into the next cell with a visible note.
func parseWikiRow(row string) (cells, aligns []string) {
	row = strings.TrimSpace(row)
	row = strings.TrimPrefix(row, "||")
	row = strings.TrimSuffix(row, "||")

	span := 0
	for _, raw := range strings.Split(row, "||") {
		if raw == "" {
			span++
			continue
		}
		cell := raw
		if m := reHeaderCell.FindStringSubmatch(strings.TrimSpace(cell)); m != nil {
			cell = m[1]
		}
		align := cellAlignment(cell)
		cell = strings.TrimSpace(cell)
		if span > 0 {
			note := fmt.Sprintf("[span:%d]", span+1)
			if cell == "" {
				cell = note
			} else {
				cell = note + " " + cell
			}
			span = 0
		}
		cells = append(cells, cell)
		aligns = append(aligns, align)
	}
	if span > 0 && len(cells) > 0 {
		cells[len(cells)-1] += fmt.Sprintf(" [span:%d]", span+1)
	}
	return cells, aligns
}

// cellAlignment reads the wiki whitespace convention: leading space means
// right aligned, trailing means left, both means centered.
func cellAlignment(cell string) string {
	if len(cell) < 2 {
		return ""
	}
	leading := strings.HasPrefix(cell, " ")
	trailing := strings.HasSuffix(cell, " ")
	switch {
	case leading && trailing:
		return "center"
	case leading:
		return "right"
	case trailing:
		return "left"
	}
	return ""
}

func alignSeparator(align string) string {
	switch align {
	case "left":
		return ":---"
	case "right":
		return "---:"
	case "center":
		return ":---:"
	}
	return "---"
}

func restoreMacros(text string) string {
	return rePlaceholder.ReplaceAllString(text, "[MACRO: $1]")
}
