package patient

import (
	"bytes"
	_ "embed"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"text/template"

	"medgame/internal/content"
)

//go:embed templates/patient.tmpl
var patientTemplate string

var instructionTmpl = template.Must(template.New("patient").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(patientTemplate))

// Identity is the generated civil identity of a patient
type Identity struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	FullName  string `json:"fullName"`
	Age       int    `json:"age"`
	Gender    string `json:"gender"`
	Male      bool   `json:"isMale"`
}

// Modifier is a variant chosen from one modifier category
type Modifier struct {
	Category      string `json:"category"`
	CategoryLabel string `json:"categoryLabel"`
	CategoryIcon  string `json:"categoryIcon"`
	ID            string `json:"id"`
	Name          string `json:"name"`
	Prompt        string `json:"-"`
}

// Patient is one generated persona. Condition and Instruction are server-only.
type Patient struct {
	Identity    Identity
	Modifiers   []Modifier
	Condition   content.ConditionID
	Instruction string
	Description string
}

// Generator builds patients from the content catalog
type Generator struct {
	catalog *content.Catalog

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a generator seeded from the clock
func NewGenerator(catalog *content.Catalog) *Generator {
	return NewSeeded(catalog, clockSeed())
}

// NewSeeded creates a generator whose output is a pure function of seed
func NewSeeded(catalog *content.Catalog, seed int64) *Generator {
	return &Generator{catalog: catalog, rng: seededRNG(seed)}
}

// Generate picks a condition, an identity and modifiers for level and
// renders the simulator instruction.
func (g *Generator) Generate(level content.Level) (*Patient, error) {
	if err := g.catalog.ValidateLevel(level); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	conditionID := level.Conditions[g.rng.IntN(len(level.Conditions))]
	card, _ := g.catalog.Card(conditionID)

	identity := g.identity()
	modifiers := g.modifiers(level.ModifierCount)

	instruction, err := renderInstruction(identity, card, modifiers, level.Difficulty)
	if err != nil {
		return nil, err
	}

	return &Patient{
		Identity:    identity,
		Modifiers:   modifiers,
		Condition:   conditionID,
		Instruction: instruction,
		Description: g.description(identity),
	}, nil
}

func (g *Generator) identity() Identity {
	male := g.rng.IntN(2) == 0
	firstNames := femaleFirstNames
	gender := "Femme"
	if male {
		firstNames = maleFirstNames
		gender = "Homme"
	}

	first := firstNames[g.rng.IntN(len(firstNames))]
	last := lastNames[g.rng.IntN(len(lastNames))]

	return Identity{
		FirstName: first,
		LastName:  last,
		FullName:  first + " " + last,
		Age:       minAge + g.rng.IntN(maxAge-minAge+1),
		Gender:    gender,
		Male:      male,
	}
}

// modifiers picks count distinct categories, then one variant in each.
func (g *Generator) modifiers(count int) []Modifier {
	categories := g.catalog.ModifierCategories()
	if count > len(categories) {
		count = len(categories)
	}
	if count <= 0 {
		return nil
	}

	out := make([]Modifier, 0, count)
	for _, idx := range g.rng.Perm(len(categories))[:count] {
		cat := categories[idx]
		v := cat.Pool[g.rng.IntN(len(cat.Pool))]
		out = append(out, Modifier{
			Category:      cat.ID,
			CategoryLabel: cat.Label,
			CategoryIcon:  cat.Icon,
			ID:            v.ID,
			Name:          v.Name,
			Prompt:        v.Prompt,
		})
	}
	return out
}

func (g *Generator) description(id Identity) string {
	builds := femaleBuilds
	if id.Male {
		builds = maleBuilds
	}
	hair := append([]string(nil), hairColors...)
	if id.Age > 60 {
		hair = append(hair, "cheveux blancs")
	}

	first := g.rng.IntN(len(features))
	second := g.rng.IntN(len(features) - 1)
	if second >= first {
		second++
	}

	return fmt.Sprintf("%s, %d ans, %s, %s, %s, %s.",
		id.Gender, id.Age,
		builds[g.rng.IntN(len(builds))],
		hair[g.rng.IntN(len(hair))],
		features[first], features[second])
}

func renderInstruction(id Identity, card *content.Card, modifiers []Modifier, difficulty content.Difficulty) (string, error) {
	data := struct {
		Identity        Identity
		Symptoms        []string
		Modifiers       []Modifier
		DifficultyRules string
	}{
		Identity:        id,
		Symptoms:        card.Symptoms,
		Modifiers:       modifiers,
		DifficultyRules: DifficultyRules(difficulty),
	}

	var buf bytes.Buffer
	if err := instructionTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render patient instruction: %w", err)
	}
	return buf.String(), nil
}
