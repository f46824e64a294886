package convert

import "strings"

// Code fence language identifiers and Trac processor directives mostly
// agree (python, go, sql, ...). Only the divergent names are mapped;
// anything unknown passes through unchanged.
var fenceToProcessor = map[string]string{
	"bash":      "sh",
	"shell":     "sh",
	"zsh":       "sh",
	"js":        "javascript",
	"ts":        "typescript",
	"c++":       "cpp",
	"plaintext": "text",
	"plain":     "text",
}

var processorToFence = map[string]string{
	"sh": "bash",
}

func fenceLangToWikiProcessor(lang string) string {
	if mapped, ok := fenceToProcessor[strings.ToLower(lang)]; ok {
		return mapped
	}
	return lang
}

func wikiProcessorToFenceLang(processor string) string {
	if mapped, ok := processorToFence[strings.ToLower(processor)]; ok {
		return mapped
	}
	return processor
}
