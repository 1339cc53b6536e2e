package cmd

import "path/filepath"

// matchActionNames expands --action patterns (filepath.Match globs, e.g.
// "convert_*") against the workflow's action names, in workflow
// declaration order. No patterns means every action.
func matchActionNames(patterns []string, all []string) ([]string, error) {
	if len(patterns) == 0 {
		return all, nil
	}
	var out []string
	for _, name := range all {
		for _, pattern := range patterns {
			ok, err := filepath.Match(pattern, name)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, name)
				break
			}
		}
	}
	return out, nil
}
