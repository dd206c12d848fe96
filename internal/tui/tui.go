// Package tui is the terminal front end of the game.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"medgame/internal/content"
	"medgame/internal/engine"
	"medgame/internal/progress"
	"medgame/internal/session"
	"medgame/internal/validation"
)

type screen int

const (
	screenMenu screen = iota
	screenLoading
	screenConsultation
	screenResult
	screenError
)

type entryKind int

const (
	entryDoctor entryKind = iota
	entryPatient
	entrySystem
	entryWarning
)

type logEntry struct {
	kind entryKind
	text string
}

type model struct {
	ctx      context.Context
	engine   *engine.Engine
	catalog  *content.Catalog
	progress *progress.Store
	events   <-chan engine.Event

	screen     screen
	cursor     int
	save       progress.SaveRecord
	settings   progress.Settings
	start      *engine.StartInfo
	result     *engine.Result
	entries    []logEntry
	typing     bool
	evaluating bool
	err        error

	textInput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	width     int
	height    int
}

type eventMsg struct{ ev engine.Event }

type eventsClosedMsg struct{}

type startedMsg struct {
	info *engine.StartInfo
	err  error
}

type chatDoneMsg struct{ err error }

type ancillaryMsg struct {
	result engine.Ancillary
	err    error
}

type symptomsMsg struct {
	text string
	err  error
}

type finishedMsg struct {
	result *engine.Result
	err    error
}

func newModel(ctx context.Context, eng *engine.Engine, catalog *content.Catalog, store *progress.Store) model {
	ti := textinput.New()
	ti.Placeholder = "Posez une question au patient..."
	ti.CharLimit = validation.MaxMessageLength
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := model{
		ctx:       ctx,
		engine:    eng,
		catalog:   catalog,
		progress:  store,
		events:    eng.Subscribe(),
		textInput: ti,
		spinner:   sp,
	}
	m.refreshSave()
	return m
}

func (m *model) refreshSave() {
	m.save = m.progress.Load()
	m.settings = m.progress.LoadSettings()
	if m.cursor == 0 && m.save.CurrentLevel > 0 {
		m.cursor = m.save.CurrentLevel - 1
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForEvent(m.events))
}

func waitForEvent(ch <-chan engine.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{ev}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.screen {
		case screenMenu:
			return m.updateMenu(msg)
		case screenConsultation:
			return m.updateConsultation(msg)
		case screenResult, screenError:
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "enter", "esc":
				m.refreshSave()
				m.screen = screenMenu
			}
			return m, nil
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = m.logWidth()
		m.viewport.Height = max(msg.Height-7, 3)
		m.syncLog()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventsClosedMsg:
		return m, nil

	case eventMsg:
		m.handleEvent(msg.ev)
		return m, waitForEvent(m.events)

	case startedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.screen = screenError
			return m, nil
		}
		m.start = msg.info
		m.entries = nil
		m.screen = screenConsultation
		m.textInput.Reset()
		m.textInput.Focus()
		m.introduce(msg.info)
		m.syncLog()
		return m, nil

	case chatDoneMsg:
		var vErr *validation.ValidationError
		switch {
		case msg.err == nil:
		case errors.Is(msg.err, session.ErrTranscriptFull):
			m.note(entryWarning, "La consultation est trop longue. Posez votre diagnostic avec /diagnostic.")
		case errors.Is(msg.err, engine.ErrBusy):
			m.note(entryWarning, "Patientez, une requête est en cours.")
		case errors.As(msg.err, &vErr):
			m.note(entryWarning, vErr.Message)
		}
		m.syncLog()
		return m, nil

	case ancillaryMsg:
		m.showAncillary(msg.result, msg.err)
		m.syncLog()
		return m, nil

	case symptomsMsg:
		if msg.err != nil {
			m.note(entryWarning, "Symptômes indisponibles : "+msg.err.Error())
		} else {
			m.note(entrySystem, "Symptômes observés :\n"+msg.text)
		}
		m.syncLog()
		return m, nil

	case finishedMsg:
		if msg.err != nil {
			var vErr *validation.ValidationError
			if errors.As(msg.err, &vErr) {
				m.note(entryWarning, vErr.Message)
			} else {
				m.note(entryWarning, "Impossible de valider le diagnostic : "+msg.err.Error())
			}
			m.syncLog()
			return m, nil
		}
		m.result = msg.result
		m.save = msg.result.Save
		m.screen = screenResult
		m.textInput.Blur()
		return m, nil
	}

	if m.screen == screenConsultation {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	levels := m.catalog.Levels()
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(levels)-1 {
			m.cursor++
		}
	case "a":
		anim := !m.settings.AnimationsEnabled
		if s, err := m.progress.SaveSettings(progress.SettingsPatch{AnimationsEnabled: &anim}); err != nil {
			log.Printf("Error saving settings: %v", err)
		} else {
			m.settings = s
		}
	case "enter":
		level := levels[m.cursor]
		if level.ID > m.save.MaxUnlockedLevel {
			return m, nil
		}
		m.screen = screenLoading
		return m, m.startLevel(level.ID)
	}
	return m, nil
}

func (m model) updateConsultation(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case tea.KeyEnter:
		input := strings.TrimSpace(m.textInput.Value())
		if input == "" {
			return m, nil
		}
		m.textInput.Reset()
		cmd := m.runInput(input)
		m.syncLog()
		return m, cmd
	}
	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

// runInput dispatches a submitted line. It may add notes to the log.
func (m *model) runInput(input string) tea.Cmd {
	cmd, ok := parseCommand(input)
	if !ok {
		return m.sendMessage(input)
	}

	if kind, ok := ancillaryCommands[cmd.name]; ok {
		if kind == engine.KindTrialTreatment && cmd.arg == "" {
			m.note(entryWarning, "Précisez le médicament : /traitement paracétamol")
			return nil
		}
		return m.requestAncillary(kind, cmd.arg)
	}

	switch cmd.name {
	case "aide", "help":
		m.note(entrySystem, helpText)
	case "symptomes", "symptômes":
		return m.refreshSymptoms()
	case "cartes":
		m.note(entrySystem, m.cardList())
	case "diagnostic":
		if !m.engine.CanFinish() {
			m.note(entryWarning, fmt.Sprintf("Échangez au moins %d messages avec le patient avant de conclure.", engine.MinTranscriptEntries))
			return nil
		}
		id, err := resolveGuess(m.catalog, cmd.arg)
		if err != nil {
			m.note(entryWarning, err.Error())
			return nil
		}
		return m.finish(id)
	case "abandon":
		if err := m.engine.Abandon(); err != nil {
			m.note(entryWarning, "Patientez, une requête est en cours.")
			return nil
		}
		m.refreshSave()
		m.screen = screenMenu
	case "quit", "quitter":
		return tea.Quit
	default:
		m.note(entryWarning, fmt.Sprintf("Commande inconnue /%s. Tapez /aide.", cmd.name))
	}
	return nil
}

func (m *model) handleEvent(ev engine.Event) {
	switch ev := ev.(type) {
	case engine.MessageAppended:
		kind := entryPatient
		if ev.Turn.Role == session.RoleDoctor {
			kind = entryDoctor
		}
		m.entries = append(m.entries, logEntry{kind: kind, text: ev.Turn.Text})
	case engine.TypingChanged:
		m.typing = ev.Typing
	case engine.EvaluatingChanged:
		m.evaluating = ev.Evaluating
	case engine.GuardrailRejected:
		m.dropDoctorEntry(ev.Text)
		m.note(entryWarning, "Message refusé : "+ev.Reason)
	case engine.ErrorOccurred:
		if ev.Retracted {
			m.dropLastDoctorEntry()
			m.note(entryWarning, "Le patient n'a pas pu répondre. Réessayez.")
		}
		log.Printf("Engine %s error: %v", ev.Op, ev.Err)
	}
	m.syncLog()
}

func (m *model) dropDoctorEntry(text string) {
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].kind == entryDoctor && m.entries[i].text == text {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return
		}
	}
}

func (m *model) dropLastDoctorEntry() {
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].kind == entryDoctor {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return
		}
	}
}

func (m *model) note(kind entryKind, text string) {
	m.entries = append(m.entries, logEntry{kind: kind, text: text})
}

func (m *model) introduce(info *engine.StartInfo) {
	m.note(entrySystem, fmt.Sprintf("Niveau %d : %s", info.Level.ID, info.Level.Name))
	m.note(entrySystem, info.Patient.Description)
	if info.NewPerk != nil {
		m.note(entrySystem, fmt.Sprintf("Nouvel outil débloqué : %s %s (%s)",
			info.NewPerk.Icon, info.NewPerk.Name, commandFor(engine.AncillaryKind(info.NewPerk.Action))))
	}
	if len(info.NewCards) > 0 {
		names := make([]string, 0, len(info.NewCards))
		for _, id := range info.NewCards {
			if card, ok := m.catalog.Card(id); ok {
				names = append(names, card.Name)
			}
		}
		m.note(entrySystem, "Nouvelles fiches : "+strings.Join(names, ", "))
	}
	m.note(entrySystem, "Tapez /aide pour la liste des commandes.")
}

func (m *model) showAncillary(a engine.Ancillary, err error) {
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrPerkLocked):
			m.note(entryWarning, "Cet outil n'est pas encore débloqué à ce niveau.")
		case errors.Is(err, engine.ErrBusy):
			m.note(entryWarning, "Patientez, une requête est en cours.")
		default:
			var vErr *validation.ValidationError
			if errors.As(err, &vErr) {
				m.note(entryWarning, vErr.Message)
			} else {
				m.note(entryWarning, err.Error())
			}
		}
		return
	}

	label := kindLabels[a.Kind]
	switch {
	case a.Failed:
		m.note(entryWarning, label+" : "+a.Content)
	case a.AlreadyUsed:
		m.note(entrySystem, label+" (déjà consulté) :\n"+a.Content)
	case a.ImageURL != "":
		m.note(entrySystem, label+" : "+a.ImageURL)
	default:
		m.note(entrySystem, label+" :\n"+a.Content)
	}
}

func (m model) cardList() string {
	var b strings.Builder
	b.WriteString("Fiches débloquées :")
	if len(m.save.UnlockedCards) == 0 {
		b.WriteString(" aucune")
	}
	for _, id := range m.save.UnlockedCards {
		if card, ok := m.catalog.Card(id); ok {
			fmt.Fprintf(&b, "\n  %s (%s)", card.Name, card.ID)
		}
	}
	return b.String()
}

func (m model) logWidth() int {
	return max(int(float64(m.width)*0.70), 20)
}

func (m *model) syncLog() {
	if m.viewport.Width == 0 {
		m.viewport = viewport.New(m.logWidth(), max(m.height-7, 3))
	}
	m.viewport.SetContent(m.renderLog())
	m.viewport.GotoBottom()
}

func (m model) renderLog() string {
	width := m.logWidth()
	parts := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		switch e.kind {
		case entryDoctor:
			parts = append(parts, doctorStyle.Width(width).Render("> "+e.text))
		case entryPatient:
			parts = append(parts, patientStyle.Width(width).Render(e.text))
		case entrySystem:
			parts = append(parts, systemStyle.Width(width).Render(e.text))
		case entryWarning:
			parts = append(parts, warningStyle.Width(width).Render(e.text))
		}
	}
	return strings.Join(parts, "\n\n")
}

func (m model) View() string {
	var s string
	switch m.screen {
	case screenMenu:
		s = m.viewMenu()
	case screenLoading:
		s = "\n  " + m.spinner.View() + " Le patient arrive..."
	case screenConsultation:
		s = m.viewConsultation()
	case screenResult:
		s = m.viewResult()
	case screenError:
		s = fmt.Sprintf("\n  Erreur : %v\n\n%s", m.err, helpStyle.Render("Entrée pour revenir au menu, q pour quitter."))
	}
	return "\n" + s + "\n"
}

func (m model) viewMenu() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("MEDGAME") + "\n\n")
	for i, level := range m.catalog.Levels() {
		line := fmt.Sprintf("%2d. %s", level.ID, level.Name)
		if score, ok := m.save.Scores[level.ID]; ok {
			line += "  " + strings.Repeat("★", score.Stars) + strings.Repeat("☆", 3-score.Stars)
		}
		switch {
		case level.ID > m.save.MaxUnlockedLevel:
			line = lockedStyle.Render(line + "  🔒")
		case i == m.cursor:
			line = selectedStyle.Render("> " + line)
		default:
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	anim := "activées"
	if !m.settings.AnimationsEnabled {
		anim = "désactivées"
	}
	b.WriteString("\n" + helpStyle.Render(fmt.Sprintf("↑/↓ choisir, Entrée jouer, a animations (%s), q quitter", anim)))
	return b.String()
}

func (m model) viewConsultation() string {
	main := lipgloss.JoinHorizontal(lipgloss.Top, m.viewport.View(), m.renderPanel())

	status := ""
	switch {
	case m.evaluating:
		status = m.activity("Évaluation du diagnostic...")
	case m.typing:
		status = m.activity("Le patient réfléchit...")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		main,
		status,
		m.textInput.View(),
		helpStyle.Render("/aide pour les commandes, /diagnostic <maladie> pour conclure"),
	)
}

func (m model) activity(label string) string {
	if m.settings.AnimationsEnabled {
		return m.spinner.View() + " " + helpStyle.Render(label)
	}
	return helpStyle.Render(label)
}

func (m model) renderPanel() string {
	p := m.engine.Patient()
	var b strings.Builder

	b.WriteString(titleStyle.Render("PATIENT") + "\n")
	fmt.Fprintf(&b, "%s\n%d ans, %s\n\n", p.Name, p.Age, p.Gender)

	if len(p.Modifiers) > 0 {
		b.WriteString(titleStyle.Render("PROFIL") + "\n")
		for _, mod := range p.Modifiers {
			fmt.Fprintf(&b, "%s %s\n", mod.CategoryIcon, mod.Name)
		}
		b.WriteString("\n")
	}

	b.WriteString(titleStyle.Render("OUTILS") + "\n")
	for _, kind := range engine.AncillaryKinds {
		line := fmt.Sprintf("%s %s", commandFor(kind), kindLabels[kind])
		switch {
		case !m.engine.Available(kind):
			line = lockedStyle.Render(line)
		case m.engine.Used(kind):
			line += " ✓"
		}
		b.WriteString(line + "\n")
	}

	if symptoms := m.engine.Symptoms(); symptoms != "" {
		b.WriteString("\n" + titleStyle.Render("SYMPTÔMES") + "\n" + symptoms + "\n")
	}

	width := max(m.width-m.logWidth()-4, 10)
	return panelStyle.Width(width).Height(m.viewport.Height).Render(b.String())
}

func (m model) viewResult() string {
	r := m.result
	var b strings.Builder
	if r.Correct {
		b.WriteString(successStyle.Render("Diagnostic correct !") + "\n\n")
	} else {
		b.WriteString(failureStyle.Render("Diagnostic incorrect.") + "\n\n")
	}
	fmt.Fprintf(&b, "Réponse attendue : %s\n", r.CorrectConditionName)
	fmt.Fprintf(&b, "Score : %d/100  %s\n\n", r.Score, strings.Repeat("★", r.Stars)+strings.Repeat("☆", 3-r.Stars))
	b.WriteString(titleStyle.Render("FEEDBACK") + "\n")
	b.WriteString(lipgloss.NewStyle().Width(max(m.width-4, 20)).Render(r.Feedback) + "\n\n")
	if r.LevelUnlocked {
		b.WriteString(successStyle.Render("Niveau suivant débloqué !") + "\n\n")
	}
	b.WriteString(helpStyle.Render("Entrée pour revenir au menu, q pour quitter."))
	return b.String()
}

func (m model) startLevel(levelID int) tea.Cmd {
	return func() tea.Msg {
		info, err := m.engine.StartLevel(m.ctx, levelID)
		return startedMsg{info, err}
	}
}

func (m model) sendMessage(text string) tea.Cmd {
	return func() tea.Msg {
		return chatDoneMsg{m.engine.SendDoctorMessage(m.ctx, text)}
	}
}

func (m model) requestAncillary(kind engine.AncillaryKind, arg string) tea.Cmd {
	return func() tea.Msg {
		a, err := m.engine.RequestAncillary(m.ctx, kind, arg)
		return ancillaryMsg{a, err}
	}
}

func (m model) refreshSymptoms() tea.Cmd {
	return func() tea.Msg {
		text, err := m.engine.RefreshSymptoms(m.ctx)
		return symptomsMsg{text, err}
	}
}

func (m model) finish(id content.ConditionID) tea.Cmd {
	return func() tea.Msg {
		r, err := m.engine.FinishConsultation(m.ctx, id)
		return finishedMsg{r, err}
	}
}

// Run starts the interactive program and blocks until the player quits
func Run(ctx context.Context, eng *engine.Engine, catalog *content.Catalog, store *progress.Store) error {
	p := tea.NewProgram(newModel(ctx, eng, catalog, store), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
