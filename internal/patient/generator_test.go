package patient

import (
	"errors"
	"strings"
	"testing"

	"medgame/internal/content"
)

func TestGenerateRespectsLevel(t *testing.T) {
	catalog := content.MustLoad()
	gen := NewSeeded(catalog, 42)

	for _, level := range catalog.Levels() {
		t.Run(level.Name, func(t *testing.T) {
			for i := 0; i < 25; i++ {
				p, err := gen.Generate(level)
				if err != nil {
					t.Fatalf("Generate() error = %v", err)
				}

				member := false
				for _, id := range level.Conditions {
					if id == p.Condition {
						member = true
					}
				}
				if !member {
					t.Fatalf("condition %q not in level pool %v", p.Condition, level.Conditions)
				}

				if len(p.Modifiers) != level.ModifierCount {
					t.Fatalf("got %d modifiers, want %d", len(p.Modifiers), level.ModifierCount)
				}
				seen := map[string]bool{}
				for _, m := range p.Modifiers {
					if seen[m.Category] {
						t.Fatalf("category %q picked twice", m.Category)
					}
					seen[m.Category] = true
				}

				if p.Identity.Age < minAge || p.Identity.Age > maxAge {
					t.Fatalf("age %d out of range", p.Identity.Age)
				}
			}
		})
	}
}

func TestGenerateIsDeterministicForSeed(t *testing.T) {
	catalog := content.MustLoad()
	level, _ := catalog.Level(20)

	a, err := NewSeeded(catalog, 7).Generate(level)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	b, err := NewSeeded(catalog, 7).Generate(level)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if a.Instruction != b.Instruction || a.Condition != b.Condition || a.Description != b.Description {
		t.Error("same seed should produce the same patient")
	}
}

func TestRestartProducesDifferentPatients(t *testing.T) {
	catalog := content.MustLoad()
	level, _ := catalog.Level(20)
	gen := NewSeeded(catalog, 99)

	instructions := map[string]bool{}
	for i := 0; i < 10; i++ {
		p, err := gen.Generate(level)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		instructions[p.Instruction] = true
	}
	if len(instructions) < 2 {
		t.Error("ten generations on the same generator should not all be identical")
	}
}

func TestInstructionNeverNamesCondition(t *testing.T) {
	catalog := content.MustLoad()
	gen := NewSeeded(catalog, 3)

	for _, level := range catalog.Levels() {
		p, err := gen.Generate(level)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		card, _ := catalog.Card(p.Condition)

		if strings.Contains(p.Instruction, card.Name) && !symptomMentions(card, card.Name) {
			t.Errorf("level %d: instruction mentions condition name %q", level.ID, card.Name)
		}
		if !strings.Contains(p.Instruction, p.Identity.FullName) {
			t.Errorf("level %d: instruction lacks the patient name", level.ID)
		}
		for _, s := range card.Symptoms {
			if !strings.Contains(p.Instruction, s) {
				t.Errorf("level %d: instruction lacks symptom %q", level.ID, s)
			}
		}
		for _, m := range p.Modifiers {
			if !strings.Contains(p.Instruction, m.Prompt) {
				t.Errorf("level %d: instruction lacks modifier %q", level.ID, m.ID)
			}
		}
		if !strings.Contains(p.Instruction, DifficultyRules(level.Difficulty)) {
			t.Errorf("level %d: instruction lacks difficulty rules", level.ID)
		}
	}
}

func symptomMentions(card *content.Card, s string) bool {
	for _, symptom := range card.Symptoms {
		if strings.Contains(symptom, s) {
			return true
		}
	}
	return false
}

func TestGenerateConfigurationErrors(t *testing.T) {
	catalog := content.MustLoad()
	gen := NewSeeded(catalog, 1)

	tests := []struct {
		name  string
		level content.Level
	}{
		{
			name:  "empty pool",
			level: content.Level{ID: 1, Difficulty: content.Debutant, ModifierCount: 1},
		},
		{
			name:  "unknown condition",
			level: content.Level{ID: 1, Difficulty: content.Debutant, Conditions: []content.ConditionID{"scurvy"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gen.Generate(tt.level)
			var cfgErr *content.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Generate() error = %v, want *content.ConfigurationError", err)
			}
		})
	}
}

func TestSeededRNGDeterministic(t *testing.T) {
	a := seededRNG(12345)
	b := seededRNG(12345)
	for i := 0; i < 10; i++ {
		if a.IntN(1000) != b.IntN(1000) {
			t.Fatal("same seed should produce the same sequence")
		}
	}
}
