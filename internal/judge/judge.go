// Package judge extracts a structured verdict from the judge model's
// free-form response and builds the judging prompts.
//
// Parsing never fails: a malformed judge response must not abort a debate
// that has already consumed both contestants' rounds, so decode failures
// degrade to a deterministic fallback verdict tagged VerdictDefaulted.
package judge

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/agora-arena/agora/internal/model"
)

var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// verdictWire is the JSON shape the judge prompt asks the model to return.
type verdictWire struct {
	Winner    int              `json:"winner"`
	Reasoning string           `json:"reasoning"`
	Agent1    model.AxisScores `json:"agent1"`
	Agent2    model.AxisScores `json:"agent2"`
}

// Parse extracts a verdict from raw judge output. It tries, in order:
// a direct JSON decode, a fenced code block, and the first-{ to last-}
// substring. Any failure yields the fallback verdict: slot 1 wins, the raw
// text becomes the reasoning, and the sub-scores are fixed placeholders.
func Parse(raw string) model.Verdict {
	trimmed := strings.TrimSpace(raw)

	if v, ok := decode(trimmed); ok {
		return v
	}
	if matches := codeBlockRe.FindStringSubmatch(raw); len(matches) > 1 {
		if v, ok := decode(strings.TrimSpace(matches[1])); ok {
			return v
		}
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		if v, ok := decode(raw[start : end+1]); ok {
			return v
		}
	}

	return model.Verdict{
		Winner:    1,
		Reasoning: raw,
		ScoresA:   model.AxisScores{Logic: 7, Evidence: 7, Persuasion: 7},
		ScoresB:   model.AxisScores{Logic: 6, Evidence: 6, Persuasion: 6},
		Source:    model.VerdictDefaulted,
	}
}

func decode(s string) (model.Verdict, bool) {
	var w verdictWire
	if err := json.Unmarshal([]byte(s), &w); err != nil {
		return model.Verdict{}, false
	}
	if w.Winner != 1 && w.Winner != 2 {
		return model.Verdict{}, false
	}
	return model.Verdict{
		Winner:    w.Winner,
		Reasoning: w.Reasoning,
		ScoresA:   clampScores(w.Agent1),
		ScoresB:   clampScores(w.Agent2),
		Source:    model.VerdictParsed,
	}, true
}

func clampScores(s model.AxisScores) model.AxisScores {
	return model.AxisScores{
		Logic:      clamp(s.Logic),
		Evidence:   clamp(s.Evidence),
		Persuasion: clamp(s.Persuasion),
	}
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > 10 {
		return 10
	}
	return n
}
