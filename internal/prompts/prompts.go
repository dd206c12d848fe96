// Package prompts renders the French instructions sent to the language model.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.tmpl"))

// NoSymptoms is the exact reply expected when nothing has been disclosed yet
const NoSymptoms = "Aucun symptôme verbalisé pour l'instant."

// ExamKind selects the report produced by Exam
type ExamKind string

const (
	ExamLab     ExamKind = "lab"
	ExamImaging ExamKind = "imaging"
)

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name+".tmpl", data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", name, err)
	}
	return buf.String(), nil
}

// Guardrail returns the content filter instruction
func Guardrail() (string, error) {
	return render("guardrail", nil)
}

// Antecedents asks for a short, compatible medical history
func Antecedents(fullName string, age int, condition string) (string, error) {
	return render("antecedents", struct {
		FullName  string
		Age       int
		Condition string
	}{fullName, age, condition})
}

// Exam asks for a lab or imaging report. reference holds the card's usual findings.
func Exam(kind ExamKind, condition, reference string) (string, error) {
	label := "laboratoire (biologie sanguine, urinaire)"
	if kind == ExamImaging {
		label = "radiologie / imagerie"
	}
	return render("exam", struct {
		Kind      string
		Condition string
		Reference string
	}{label, condition, reference})
}

func Hint(condition string) (string, error) {
	return render("hint", struct{ Condition string }{condition})
}

// Photo builds the English image prompt for a patient portrait
func Photo(age int, male bool, signs string) (string, error) {
	sex := "woman"
	if male {
		sex = "man"
	}
	return render("photo", struct {
		Age   int
		Sex   string
		Signs string
	}{age, sex, signs})
}

func Symptoms() (string, error) {
	return render("symptoms", struct{ Empty string }{NoSymptoms})
}

func Differential() (string, error) {
	return render("differential", nil)
}

func TrialTreatment(medication, condition string) (string, error) {
	return render("trial_treatment", struct {
		Medication string
		Condition  string
	}{medication, condition})
}

// Feedback asks for a JSON {"feedback"} evaluation of the consultation
func Feedback(condition string) (string, error) {
	return render("feedback", struct{ Condition string }{condition})
}
