package usecase

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/prism-answer/internal/core/domain"
)

var (
	answerFieldPattern = regexp.MustCompile(`"answer"\s*:\s*"((?:[^"\\]|\\.)*)`)
	verdictLinePattern = regexp.MustCompile(`(?im)^\s*(?:sentence\s*)?(\d+)\s*[:.)\-]\s*(SUPPORTED|UNSUPPORTED|NOT SUPPORTED)\b\s*[-:–]?\s*(.*)$`)
	codeFencePattern   = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

// parseDraft reads the drafting output. The second return value reports
// whether the structured form was usable; when it is not, the raw text is
// taken as the answer and citations are recovered from inline markers.
func parseDraft(raw string) (domain.DraftAnswer, bool) {
	raw = stripCodeFence(strings.TrimSpace(raw))

	var payload struct {
		Answer     string `json:"answer"`
		UsedChunks []any  `json:"used_chunks"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err == nil && strings.TrimSpace(payload.Answer) != "" {
		ids := make([]string, 0, len(payload.UsedChunks))
		for _, v := range payload.UsedChunks {
			if id, ok := coerceEvidenceID(v); ok {
				ids = append(ids, id)
			}
		}
		return domain.DraftAnswer{Answer: strings.TrimSpace(payload.Answer), CitedIDs: ids}, true
	}

	text := raw
	if m := answerFieldPattern.FindStringSubmatch(raw); m != nil {
		// Truncated or otherwise broken JSON: salvage the answer string.
		if unquoted, err := strconv.Unquote(`"` + m[1] + `"`); err == nil {
			text = unquoted
		} else {
			text = m[1]
		}
	}
	text = strings.TrimSpace(text)
	return domain.DraftAnswer{Answer: text, CitedIDs: extractCitedIDs(text)}, false
}

func coerceEvidenceID(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		id := normalizeEvidenceID(strings.Trim(t, "[] "))
		if id == "" {
			return "", false
		}
		if _, err := strconv.Atoi(id); err == nil {
			id = "c" + id
		}
		return id, true
	case float64:
		if t < 1 || t != float64(int(t)) {
			return "", false
		}
		return fmt.Sprintf("c%d", int(t)), true
	default:
		return "", false
	}
}

type sentenceVerdict struct {
	Supported bool
	Reason    string
}

// parseVerdicts maps 1-based sentence numbers to verdicts. Numbers outside
// 1..sentences are ignored. ok is false when nothing usable was found.
func parseVerdicts(raw string, sentences int) (map[int]sentenceVerdict, bool) {
	raw = stripCodeFence(strings.TrimSpace(raw))
	out := make(map[int]sentenceVerdict)

	var payload struct {
		Verdicts []struct {
			Sentence  any    `json:"sentence"`
			Supported any    `json:"supported"`
			Reason    string `json:"reason"`
		} `json:"verdicts"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err == nil {
		for _, v := range payload.Verdicts {
			n, ok := coerceSentenceNumber(v.Sentence)
			if !ok || n < 1 || n > sentences {
				continue
			}
			supported, ok := coerceSupported(v.Supported)
			if !ok {
				continue
			}
			out[n] = sentenceVerdict{Supported: supported, Reason: strings.TrimSpace(v.Reason)}
		}
		if len(out) > 0 {
			return out, true
		}
	}

	for _, m := range verdictLinePattern.FindAllStringSubmatch(raw, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > sentences {
			continue
		}
		out[n] = sentenceVerdict{
			Supported: strings.EqualFold(m[2], "SUPPORTED"),
			Reason:    strings.TrimSpace(m[3]),
		}
	}
	return out, len(out) > 0
}

// coerceSentenceNumber accepts 1, 1.0, "1" and "#1".
func coerceSentenceNumber(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		if t != float64(int(t)) {
			return 0, false
		}
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(t), "#"))
		return n, err == nil
	}
	return 0, false
}

func coerceSupported(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "supported":
			return true, true
		case "false", "no", "unsupported", "not supported":
			return false, true
		}
	}
	return false, false
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func stripCodeFence(raw string) string {
	if m := codeFencePattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return raw
}
