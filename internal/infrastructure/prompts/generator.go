package prompts

import (
	"bytes"
	"sort"
	"strings"
	"text/template"

	"voice-navigator/internal/application/port/output"
)

type ToolInfo struct {
	Name    string
	Summary string
}

type GreetingPromptData struct {
	Tools []ToolInfo
}

// GenerateGreeting renders the instructions of the first response.create,
// listing every registered tool by the first line of its description.
func GenerateGreeting(baseTemplate string, tools output.ToolRegistry) (string, error) {
	defs := tools.DescribeAll()
	infos := make([]ToolInfo, 0, len(defs))

	for _, def := range defs {
		summary := strings.TrimSpace(def.Description)
		if i := strings.IndexByte(summary, '\n'); i >= 0 {
			summary = strings.TrimSpace(summary[:i])
		}
		infos = append(infos, ToolInfo{
			Name:    def.Name.String(),
			Summary: summary,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})

	tmpl, err := template.New("greeting").Parse(baseTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, GreetingPromptData{Tools: infos}); err != nil {
		return "", err
	}

	return strings.TrimSpace(buf.String()), nil
}
