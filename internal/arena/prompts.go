package arena

import (
	"fmt"
	"strings"

	"github.com/agora-arena/agora/internal/model"
)

// defaultTopics stands in when the caller supplies no topic. Topic
// curation belongs to the quest collaborator; this list only keeps
// auto-matched debates runnable without it.
var defaultTopics = []string{
	"Is ambition a virtue or a flaw?",
	"Should tradition constrain progress?",
	"Does competition bring out the best in us?",
	"Is certainty ever justified?",
	"Can ends justify means?",
}

// debaterSystemPrompt scopes the model to one agent's persona.
func debaterSystemPrompt(a model.Agent) string {
	return fmt.Sprintf(
		"You are %s, a debater of the %s faction.\nPersona: %s\nPhilosophy: %s\nStay in character. Argue to win. Be vivid but rigorous, and keep each argument under 200 words.",
		a.Name, a.Faction, a.Persona, a.Philosophy,
	)
}

// debaterUserPrompt builds the per-turn instruction for the contestant in
// the given slot (1 = agent A, 2 = agent B). Rounds before the current one
// appear verbatim as context; for the second speaker the opponent's
// just-produced argument for this round is appended.
func debaterUserPrompt(topic string, roundIndex, slot int, agentA, agentB model.Agent, prior []model.Round, opponentArgument string) string {
	opponent := agentB
	if slot == 2 {
		opponent = agentA
	}
	stage := model.StageForRound(roundIndex)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Debate topic: %s\n", topic)
	fmt.Fprintf(&sb, "You are debating against %s.\n", opponent.Name)
	fmt.Fprintf(&sb, "This is round %d of %d: your %s.\n", roundIndex, model.RoundsPerDebate, stage)

	if len(prior) > 0 {
		sb.WriteString("\nThe debate so far:\n")
		sb.WriteString(renderTranscript(agentA, agentB, prior))
	}
	if opponentArgument != "" {
		fmt.Fprintf(&sb, "\n%s just argued:\n%s\n", opponent.Name, opponentArgument)
	}

	fmt.Fprintf(&sb, "\nDeliver your %s now.", stage)
	return sb.String()
}

// renderTranscript lays out prior rounds in speaking order.
func renderTranscript(agentA, agentB model.Agent, rounds []model.Round) string {
	var sb strings.Builder
	for _, r := range rounds {
		fmt.Fprintf(&sb, "--- Round %d (%s) ---\n", r.Index, model.StageForRound(r.Index))
		fmt.Fprintf(&sb, "%s: %s\n", agentA.Name, r.ArgumentA)
		fmt.Fprintf(&sb, "%s: %s\n", agentB.Name, r.ArgumentB)
	}
	return sb.String()
}
