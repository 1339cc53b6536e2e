package scheduler

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rowhpc/row/pkg/jsonvalue"
)

// ExpandCommand substitutes a single directory's placeholders into a
// command template: {directory}, {workspace_path}, {} (the directory's
// whole value as JSON), and {<json-pointer>} (a value looked up within
// it). {directories} is left untouched — it is only valid in the
// whole-group command mode handled by the caller.
func ExpandCommand(template, directory, workspacePath string, value any) (string, error) {
	out := template
	out = strings.ReplaceAll(out, "{directory}", directory)
	out = strings.ReplaceAll(out, "{workspace_path}", workspacePath)

	var err error
	out, err = expandBraces(out, value)
	return out, err
}

// expandBraces substitutes every remaining "{...}" placeholder (the whole
// value, or a JSON pointer into it) with its JSON-text rendering.
func expandBraces(template string, value any) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(template) {
		open := strings.IndexByte(template[i:], '{')
		if open == -1 {
			b.WriteString(template[i:])
			break
		}
		open += i
		close := strings.IndexByte(template[open:], '}')
		if close == -1 {
			b.WriteString(template[i:])
			break
		}
		close += open

		b.WriteString(template[i:open])
		pointer := template[open+1 : close]

		if pointer == "directories" {
			b.WriteString("{directories}")
			i = close + 1
			continue
		}

		resolved, err := jsonvalue.Lookup(value, pointer)
		if err != nil {
			return "", fmt.Errorf("expand %q: %w", template[open:close+1], err)
		}
		rendered, err := renderValue(resolved)
		if err != nil {
			return "", err
		}
		b.WriteString(rendered)

		i = close + 1
	}
	return b.String(), nil
}

func renderValue(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("render value for command expansion: %w", err)
	}
	return string(data), nil
}

// UsesDirectories reports whether template's whole-array placeholder is
// present.
func UsesDirectories(template string) bool {
	return strings.Contains(template, "{directories}")
}

// UsesDirectory reports whether template's per-directory placeholder is
// present.
func UsesDirectory(template string) bool {
	return strings.Contains(template, "{directory}")
}
