package tui

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"medgame/internal/content"
	"medgame/internal/engine"
)

// command is a parsed line of player input
type command struct {
	name string
	arg  string
}

// parseCommand splits "/name arg..." input. Plain text is a chat message and
// yields ok == false.
func parseCommand(input string) (command, bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return command{}, false
	}
	name, arg, _ := strings.Cut(input[1:], " ")
	return command{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}, true
}

// ancillaryCommands maps French command names to ancillary kinds
var ancillaryCommands = map[string]engine.AncillaryKind{
	"labo":         engine.KindLab,
	"imagerie":     engine.KindImaging,
	"photo":        engine.KindPhoto,
	"indice":       engine.KindHint,
	"antecedents":  engine.KindHistory,
	"dossier":      engine.KindDifferential,
	"traitement":   engine.KindTrialTreatment,
}

var kindLabels = map[engine.AncillaryKind]string{
	engine.KindLab:            "Analyses",
	engine.KindImaging:        "Imagerie",
	engine.KindPhoto:          "Photo",
	engine.KindHint:           "Indice",
	engine.KindHistory:        "Antécédents",
	engine.KindDifferential:   "Dossier partagé",
	engine.KindTrialTreatment: "Traitement d'épreuve",
}

func commandFor(kind engine.AncillaryKind) string {
	for name, k := range ancillaryCommands {
		if k == kind {
			return "/" + name
		}
	}
	return ""
}

// resolveGuess turns a typed diagnosis into a condition. It accepts ids
// ("common_cold") and French names ("Rhume"), ignoring case. On failure the
// error names the closest known condition.
func resolveGuess(catalog *content.Catalog, input string) (content.ConditionID, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("indiquez un diagnostic, par exemple /diagnostic rhume")
	}
	if id, err := content.ParseConditionID(input); err == nil {
		return id, nil
	}

	needle := strings.ToLower(input)
	var best *content.Card
	bestDistance := -1
	for _, card := range catalog.Cards() {
		name := strings.ToLower(card.Name)
		if name == needle {
			return card.ID, nil
		}
		d := min(
			levenshtein.ComputeDistance(needle, name),
			levenshtein.ComputeDistance(needle, string(card.ID)),
		)
		if bestDistance < 0 || d < bestDistance {
			best = card
			bestDistance = d
		}
	}

	if best != nil && bestDistance <= max(2, len([]rune(needle))/3) {
		return "", fmt.Errorf("diagnostic inconnu %q, vouliez-vous dire %q (%s) ?", input, best.Name, best.ID)
	}
	return "", fmt.Errorf("diagnostic inconnu %q", input)
}

const helpText = `Tapez une question pour le patient, ou une commande :
  /labo /imagerie /photo /indice /antecedents /dossier
  /traitement <médicament>   /symptomes   /cartes
  /diagnostic <maladie>      /abandon     /quit`
