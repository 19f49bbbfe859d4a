package usecase

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	// Accepts [c1] and grouped forms such as [c1, c2] or [c1; c3].
	citationMarkerPattern = regexp.MustCompile(`(?i)\[\s*c\d+(?:\s*[,;]\s*c\d+)*\s*\]`)
	citationIDPattern     = regexp.MustCompile(`(?i)c\d+`)
)

// extractCitedIDs returns ids cited inline, lower-cased, deduplicated, in
// order of first appearance.
func extractCitedIDs(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, marker := range citationMarkerPattern.FindAllString(text, -1) {
		for _, id := range citationIDPattern.FindAllString(marker, -1) {
			id = normalizeEvidenceID(id)
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// stripUnknownCitations rewrites every marker so it only names known ids.
// Markers left empty are removed along with the space before them.
func stripUnknownCitations(text string, known map[string]struct{}) string {
	rewritten := citationMarkerPattern.ReplaceAllStringFunc(text, func(marker string) string {
		var keep []string
		for _, id := range citationIDPattern.FindAllString(marker, -1) {
			id = normalizeEvidenceID(id)
			if _, ok := known[id]; ok && !contains(keep, id) {
				keep = append(keep, id)
			}
		}
		if len(keep) == 0 {
			return "\x00"
		}
		return "[" + strings.Join(keep, ", ") + "]"
	})
	rewritten = strings.ReplaceAll(rewritten, " \x00", "")
	rewritten = strings.ReplaceAll(rewritten, "\x00", "")
	return strings.TrimSpace(rewritten)
}

func normalizeEvidenceID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// sortEvidenceIDs orders ids as c1, c2, ..., c10 rather than lexically.
func sortEvidenceIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		return evidenceOrdinal(ids[i]) < evidenceOrdinal(ids[j])
	})
}

func evidenceOrdinal(id string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(id, "c"))
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}
