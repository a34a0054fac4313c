package judge

import (
	"fmt"
	"strings"

	"github.com/agora-arena/agora/internal/model"
)

// SystemPrompt is the judge's system instruction. It pins the exact JSON
// shape Parse expects; anything else falls back to the defaulted verdict.
const SystemPrompt = `You are an impartial debate judge. Score each debater 0-10 on logic, evidence, and persuasion, pick a winner, and return ONLY valid JSON in this exact format:
{"winner": 1, "reasoning": "...", "agent1": {"logic": 0, "evidence": 0, "persuasion": 0}, "agent2": {"logic": 0, "evidence": 0, "persuasion": 0}}
"winner" must be 1 or 2. There are no ties. Do NOT include any other text, explanation, or markdown formatting.`

// UserPrompt renders the full transcript for judging.
func UserPrompt(topic string, a, b model.Agent, rounds []model.Round) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\n\nDebater 1: %s\nDebater 2: %s\n", topic, a.Name, b.Name)
	for _, r := range rounds {
		fmt.Fprintf(&sb, "\n--- Round %d (%s) ---\n", r.Index, model.StageForRound(r.Index))
		fmt.Fprintf(&sb, "%s: %s\n", a.Name, r.ArgumentA)
		fmt.Fprintf(&sb, "%s: %s\n", b.Name, r.ArgumentB)
	}
	sb.WriteString("\nJudge the debate now.")
	return sb.String()
}
