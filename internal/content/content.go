package content

import (
	"embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var dataFS embed.FS

// Difficulty is the ordered difficulty tier of a level
type Difficulty string

const (
	Debutant  Difficulty = "debutant"
	Facile    Difficulty = "facile"
	Moyen     Difficulty = "moyen"
	Difficile Difficulty = "difficile"
	Expert    Difficulty = "expert"
	Maitre    Difficulty = "maitre"
)

var difficultyOrder = []Difficulty{Debutant, Facile, Moyen, Difficile, Expert, Maitre}

var difficultyLabels = map[Difficulty]string{
	Debutant:  "Débutant",
	Facile:    "Facile",
	Moyen:     "Moyen",
	Difficile: "Difficile",
	Expert:    "Expert",
	Maitre:    "Maître",
}

// Rank returns the position of the tier in the ladder, or -1 if unknown
func (d Difficulty) Rank() int {
	for i, tier := range difficultyOrder {
		if tier == d {
			return i
		}
	}
	return -1
}

// Label returns the display label of the tier
func (d Difficulty) Label() string {
	if label, ok := difficultyLabels[d]; ok {
		return label
	}
	return difficultyLabels[Debutant]
}

// Card is the reference content for one condition
type Card struct {
	ID            ConditionID `yaml:"id"`
	Name          string      `yaml:"name"`
	Category      string      `yaml:"category"`
	Symptoms      []string    `yaml:"symptoms"`
	Lab           string      `yaml:"lab"`
	Imaging       string      `yaml:"imaging"`
	PhysicalSigns string      `yaml:"physical_signs"`
	Treatment     string      `yaml:"treatment"`
	RedFlags      []string    `yaml:"red_flags"`
	Questions     []string    `yaml:"questions"`
}

// Level is one rung of the progression ladder
type Level struct {
	ID            int           `yaml:"id"`
	Name          string        `yaml:"name"`
	Description   string        `yaml:"description"`
	Difficulty    Difficulty    `yaml:"difficulty"`
	Conditions    []ConditionID `yaml:"conditions"`
	ModifierCount int           `yaml:"modifier_count"`
	Perk          string        `yaml:"perk"`
}

// ModifierVariant is one behavioural trait a patient can carry
type ModifierVariant struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Prompt string `yaml:"prompt"`
}

// ModifierCategory groups mutually exclusive variants
type ModifierCategory struct {
	ID    string            `yaml:"id"`
	Label string            `yaml:"label"`
	Icon  string            `yaml:"icon"`
	Pool  []ModifierVariant `yaml:"pool"`
}

// Perk is a player ability unlocked at a given level
type Perk struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Icon        string `yaml:"icon"`
	Description string `yaml:"description"`
	UnlockLevel int    `yaml:"unlock_level"`
	Action      string `yaml:"action"`
}

// Catalog holds the validated content tables
type Catalog struct {
	cards     map[ConditionID]*Card
	cardOrder []ConditionID
	levels    []Level
	modifiers []ModifierCategory
	perks     []Perk
}

// Load parses and validates the embedded content tables
func Load() (*Catalog, error) {
	var cards struct {
		Cards []Card `yaml:"cards"`
	}
	var levels struct {
		Levels []Level `yaml:"levels"`
	}
	var modifiers struct {
		Categories []ModifierCategory `yaml:"categories"`
	}
	var perks struct {
		Perks []Perk `yaml:"perks"`
	}

	files := []struct {
		name string
		out  interface{}
	}{
		{"data/cards.yaml", &cards},
		{"data/levels.yaml", &levels},
		{"data/modifiers.yaml", &modifiers},
		{"data/perks.yaml", &perks},
	}
	for _, f := range files {
		raw, err := dataFS.ReadFile(f.name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.name, err)
		}
		if err := yaml.Unmarshal(raw, f.out); err != nil {
			return nil, &ConfigurationError{Field: f.name, Message: err.Error()}
		}
	}

	return NewCatalog(cards.Cards, levels.Levels, modifiers.Categories, perks.Perks)
}

// MustLoad is Load for program start-up, where bad content is fatal
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// NewCatalog validates the given tables and builds a catalog from them
func NewCatalog(cards []Card, levels []Level, modifiers []ModifierCategory, perks []Perk) (*Catalog, error) {
	c := &Catalog{
		cards:     make(map[ConditionID]*Card, len(cards)),
		levels:    append([]Level(nil), levels...),
		modifiers: append([]ModifierCategory(nil), modifiers...),
		perks:     append([]Perk(nil), perks...),
	}

	for i := range cards {
		card := cards[i]
		if !card.ID.Valid() {
			return nil, &ConfigurationError{Field: "cards", Message: fmt.Sprintf("unknown condition id %q", card.ID)}
		}
		if _, dup := c.cards[card.ID]; dup {
			return nil, &ConfigurationError{Field: "cards", Message: fmt.Sprintf("duplicate card %q", card.ID)}
		}
		if card.Name == "" || len(card.Symptoms) == 0 {
			return nil, &ConfigurationError{Field: "cards", Message: fmt.Sprintf("card %q needs a name and symptoms", card.ID)}
		}
		c.cards[card.ID] = &card
		c.cardOrder = append(c.cardOrder, card.ID)
	}

	sort.Slice(c.levels, func(i, j int) bool { return c.levels[i].ID < c.levels[j].ID })
	sort.Slice(c.perks, func(i, j int) bool { return c.perks[i].UnlockLevel < c.perks[j].UnlockLevel })

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) validate() error {
	if len(c.levels) == 0 {
		return &ConfigurationError{Field: "levels", Message: "no levels defined"}
	}

	perkIDs := make(map[string]bool, len(c.perks))
	for _, p := range c.perks {
		if p.ID == "" || p.UnlockLevel < 1 {
			return &ConfigurationError{Field: "perks", Message: fmt.Sprintf("perk %q needs an id and an unlock level", p.ID)}
		}
		perkIDs[p.ID] = true
	}

	for i, level := range c.levels {
		if level.ID != i+1 {
			return &ConfigurationError{Field: "levels", Message: fmt.Sprintf("level ids must be dense from 1, found %d at position %d", level.ID, i+1)}
		}
		if level.Difficulty.Rank() < 0 {
			return &ConfigurationError{Field: "levels", Message: fmt.Sprintf("level %d has unknown difficulty %q", level.ID, level.Difficulty)}
		}
		if err := c.ValidateLevel(level); err != nil {
			return err
		}
		if level.ModifierCount < 0 || level.ModifierCount > len(c.modifiers) {
			return &ConfigurationError{Field: "levels", Message: fmt.Sprintf("level %d asks for %d modifiers, only %d categories exist", level.ID, level.ModifierCount, len(c.modifiers))}
		}
		if level.Perk != "" && !perkIDs[level.Perk] {
			return &ConfigurationError{Field: "levels", Message: fmt.Sprintf("level %d unlocks unknown perk %q", level.ID, level.Perk)}
		}
		if i > 0 {
			prev := c.levels[i-1]
			if level.Difficulty.Rank() < prev.Difficulty.Rank() || level.ModifierCount < prev.ModifierCount {
				return &ConfigurationError{Field: "levels", Message: fmt.Sprintf("level %d is easier than level %d", level.ID, prev.ID)}
			}
		}
	}

	seen := make(map[string]bool, len(c.modifiers))
	for _, cat := range c.modifiers {
		if seen[cat.ID] {
			return &ConfigurationError{Field: "modifiers", Message: fmt.Sprintf("duplicate category %q", cat.ID)}
		}
		seen[cat.ID] = true
		if len(cat.Pool) == 0 {
			return &ConfigurationError{Field: "modifiers", Message: fmt.Sprintf("category %q has an empty pool", cat.ID)}
		}
	}

	return nil
}

// ValidateLevel checks that a level's condition pool is usable
func (c *Catalog) ValidateLevel(level Level) error {
	if len(level.Conditions) == 0 {
		return &ConfigurationError{Field: "levels", Message: fmt.Sprintf("level %d has an empty condition pool", level.ID)}
	}
	for _, id := range level.Conditions {
		if _, ok := c.cards[id]; !ok {
			return &ConfigurationError{Field: "levels", Message: fmt.Sprintf("level %d references unknown condition %q", level.ID, id)}
		}
	}
	return nil
}

// Card returns the card for id
func (c *Catalog) Card(id ConditionID) (*Card, bool) {
	card, ok := c.cards[id]
	return card, ok
}

// Cards returns all cards in table order
func (c *Catalog) Cards() []*Card {
	out := make([]*Card, 0, len(c.cardOrder))
	for _, id := range c.cardOrder {
		out = append(out, c.cards[id])
	}
	return out
}

// Level returns the level with the given id
func (c *Catalog) Level(id int) (Level, bool) {
	if id < 1 || id > len(c.levels) {
		return Level{}, false
	}
	return c.levels[id-1], true
}

// Levels returns the whole ladder
func (c *Catalog) Levels() []Level {
	return append([]Level(nil), c.levels...)
}

// MaxLevel returns the id of the last level
func (c *Catalog) MaxLevel() int {
	return len(c.levels)
}

// ModifierCategories returns categories in their fixed order
func (c *Catalog) ModifierCategories() []ModifierCategory {
	return c.modifiers
}

// Perks returns the perk catalog ordered by unlock level
func (c *Catalog) Perks() []Perk {
	return append([]Perk(nil), c.perks...)
}

// UnlockedPerks returns every perk available once level has been reached
func (c *Catalog) UnlockedPerks(level int) []Perk {
	var out []Perk
	for _, p := range c.perks {
		if p.UnlockLevel <= level {
			out = append(out, p)
		}
	}
	return out
}

// PerkUnlockedAt returns the perk that unlocks exactly at level, if any
func (c *Catalog) PerkUnlockedAt(level int) (Perk, bool) {
	for _, p := range c.perks {
		if p.UnlockLevel == level {
			return p, true
		}
	}
	return Perk{}, false
}

// PerkForAction returns the perk gating an ancillary action kind
func (c *Catalog) PerkForAction(action string) (Perk, bool) {
	for _, p := range c.perks {
		if p.Action == action {
			return p, true
		}
	}
	return Perk{}, false
}
