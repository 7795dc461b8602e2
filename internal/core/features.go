package core

import (
	"sort"
	"strings"
)

// missingFeatures returns the server features the client did not announce,
// sorted, and whether any of them is required.
func missingFeatures(server, required, client []string) ([]string, bool) {
	have := make(map[string]struct{}, len(client))
	for _, f := range client {
		have[strings.TrimSpace(f)] = struct{}{}
	}

	seen := make(map[string]struct{})
	var missing []string
	requiredMissing := false
	check := func(f string, isRequired bool) {
		if _, ok := have[f]; ok {
			return
		}
		if isRequired {
			requiredMissing = true
		}
		if _, dup := seen[f]; dup {
			return
		}
		seen[f] = struct{}{}
		missing = append(missing, f)
	}
	for _, f := range required {
		check(f, true)
	}
	for _, f := range server {
		check(f, false)
	}
	sort.Strings(missing)
	return missing, requiredMissing
}
