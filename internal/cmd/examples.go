package cmd

import (
	"math/rand"
	"regexp"

	"github.com/dotcommander/agentgraph/internal/present"
)

var examples = map[string]string{
	"Stream a workflow answer to the terminal": `agentgraph run -f weather.yaml -q "Will it rain in Lisbon tomorrow?"`,
	"Pipe raw frames into jq":                  `agentgraph run -f weather.json -q "hi" --raw | jq -r .content`,
	"Check dependencies before deploying":      `agentgraph validate -f weather.yaml && agentgraph check -f weather.yaml`,
}

func randomExample() string {
	keys := make([]string, 0, len(examples))
	for k := range examples {
		keys = append(keys, k)
	}
	desc := keys[rand.Intn(len(keys))] //nolint:gosec
	return desc
}

var (
	quotedRe = regexp.MustCompile(`"([^"\\]|\\.)*"`)
	pipeRe   = regexp.MustCompile(`\||&&`)
)

func cheapHighlighting(s present.Styles, code string) string {
	code = quotedRe.ReplaceAllStringFunc(code, func(x string) string {
		return s.Quote.Render(x)
	})
	code = pipeRe.ReplaceAllStringFunc(code, func(x string) string {
		return s.Pipe.Render(x)
	})
	return code
}
