package ai

import (
	_ "embed"
	"strings"
	"text/template"
)

var (
	//go:embed prompts/extract.md
	extractPromptRaw string
	//go:embed prompts/score.md
	scorePromptRaw string
	//go:embed prompts/prefilter.md
	prefilterPromptRaw string
)

var promptFuncs = template.FuncMap{
	"join": func(items []string) string { return strings.Join(items, ", ") },
}

// Templates are parsed once at package init and reused on every call.
var (
	ExtractTemplate   = template.Must(template.New("extract").Funcs(promptFuncs).Parse(extractPromptRaw))
	ScoreTemplate     = template.Must(template.New("score").Funcs(promptFuncs).Parse(scorePromptRaw))
	PrefilterTemplate = template.Must(template.New("prefilter").Funcs(promptFuncs).Parse(prefilterPromptRaw))
)
