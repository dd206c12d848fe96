package tui

import (
	"strings"
	"testing"

	"medgame/internal/content"
	"medgame/internal/engine"
	"medgame/internal/session"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input   string
		want    command
		wantCmd bool
	}{
		{"Bonjour docteur", command{}, false},
		{"  /labo ", command{name: "labo"}, true},
		{"/Diagnostic  Grippe", command{name: "diagnostic", arg: "Grippe"}, true},
		{"/traitement paracétamol 1g", command{name: "traitement", arg: "paracétamol 1g"}, true},
		{"/", command{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseCommand(tt.input)
			if ok != tt.wantCmd {
				t.Fatalf("parseCommand(%q) ok = %v, want %v", tt.input, ok, tt.wantCmd)
			}
			if got != tt.want {
				t.Errorf("parseCommand(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolveGuess(t *testing.T) {
	catalog := content.MustLoad()

	tests := []struct {
		name    string
		input   string
		want    content.ConditionID
		wantErr string
	}{
		{"id", "common_cold", content.CommonCold, ""},
		{"french name", "rhume", content.CommonCold, ""},
		{"mixed case", "GRIPPE", "influenza", ""},
		{"typo suggests", "rhumm", "", "Rhume"},
		{"nonsense", "zzzzzzzzzzzzzzzz", "", "diagnostic inconnu"},
		{"empty", "  ", "", "indiquez un diagnostic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveGuess(catalog, tt.input)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("resolveGuess(%q) error = %v, want it to mention %q", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveGuess(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("resolveGuess(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEveryKindHasACommand(t *testing.T) {
	for _, kind := range engine.AncillaryKinds {
		if commandFor(kind) == "" {
			t.Errorf("no command for %s", kind)
		}
		if kindLabels[kind] == "" {
			t.Errorf("no label for %s", kind)
		}
	}
}

func TestHandleEventRetractsDoctorTurn(t *testing.T) {
	m := model{}
	m.handleEvent(engine.MessageAppended{Turn: session.Turn{Role: session.RoleDoctor, Text: "Bonjour"}, Count: 1})
	m.handleEvent(engine.MessageAppended{Turn: session.Turn{Role: session.RolePatient, Text: "Bonjour docteur"}, Count: 2})
	m.handleEvent(engine.MessageAppended{Turn: session.Turn{Role: session.RoleDoctor, Text: "Parlons foot"}, Count: 3})
	m.handleEvent(engine.GuardrailRejected{Text: "Parlons foot", Reason: "hors sujet"})

	if len(m.entries) != 3 {
		t.Fatalf("entries = %+v, want 3", m.entries)
	}
	if m.entries[1].kind != entryPatient {
		t.Errorf("entries[1] = %+v, want the patient reply", m.entries[1])
	}
	if last := m.entries[2]; last.kind != entryWarning || !strings.Contains(last.text, "hors sujet") {
		t.Errorf("last entry = %+v, want the rejection notice", last)
	}

	m.handleEvent(engine.MessageAppended{Turn: session.Turn{Role: session.RoleDoctor, Text: "Et la fièvre ?"}, Count: 3})
	m.handleEvent(engine.ErrorOccurred{Op: "chat", Retracted: true})
	for _, e := range m.entries {
		if e.text == "Et la fièvre ?" {
			t.Error("failed doctor turn still in the log")
		}
	}
}

func TestRunInputLocalCommands(t *testing.T) {
	catalog := content.MustLoad()
	m := model{catalog: catalog, engine: engine.New(catalog, nil, nil)}

	tests := []struct {
		input string
		want  string
	}{
		{"/aide", "/diagnostic"},
		{"/traitement", "Précisez le médicament"},
		{"/inconnue", "Commande inconnue /inconnue"},
		{"/diagnostic rhume", "Échangez au moins"},
		{"/cartes", "Fiches débloquées"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if cmd := m.runInput(tt.input); cmd != nil {
				t.Fatalf("runInput(%q) returned a command", tt.input)
			}
			last := m.entries[len(m.entries)-1]
			if !strings.Contains(last.text, tt.want) {
				t.Errorf("runInput(%q) noted %q, want it to contain %q", tt.input, last.text, tt.want)
			}
		})
	}
}
