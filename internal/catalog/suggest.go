package catalog

import (
	"strings"

	"github.com/samber/lo"
	"github.com/texttheater/golang-levenshtein/levenshtein"

	"vision-gateway/internal/types"
)

// SuggestTask returns the task id closest to input, or "" when nothing is
// close enough to be a plausible typo.
func SuggestTask(input string) string {
	return closest(input, lo.Map(types.AllTasks, func(t types.TaskID, _ int) string { return string(t) }))
}

// SuggestBackend is SuggestTask for backend ids.
func SuggestBackend(input string) string {
	return closest(input, lo.Map(types.AllBackends, func(b types.BackendID, _ int) string { return string(b) }))
}

func closest(input string, candidates []string) string {
	needle := []rune(strings.ToLower(strings.TrimSpace(input)))
	if len(needle) == 0 {
		return ""
	}

	best, bestDist := "", -1
	for _, candidate := range candidates {
		dist := levenshtein.DistanceForStrings(needle, []rune(candidate), levenshtein.DefaultOptions)
		if bestDist < 0 || dist < bestDist {
			best, bestDist = candidate, dist
		}
	}

	limit := len([]rune(best)) / 3
	if limit < 2 {
		limit = 2
	}
	if bestDist > limit {
		return ""
	}
	return best
}
