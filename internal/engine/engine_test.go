package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"medgame/internal/content"
	"medgame/internal/guardrail"
	"medgame/internal/llm/llmtest"
	"medgame/internal/models"
	"medgame/internal/patient"
	"medgame/internal/progress"
	"medgame/internal/service"
	"medgame/internal/session"
	"medgame/internal/validation"
)

const (
	keyGuardrail    = "filtre de contenu"
	keyPatient      = "patient RÉALISTE"
	keyExam         = "automate d'analyses"
	keyHint         = "chef de clinique"
	keySymptoms     = "assistant du médecin"
	keyDifferential = "diagnostics différentiels"
	keyTrial        = "traitement d'épreuve"
	keyFeedback     = "évaluateur médical"
)

func scriptedClient() *llmtest.Client {
	client := llmtest.New().
		On(keyGuardrail, `{"valid": true}`).
		On(keyPatient, "J'ai le nez bouché et je tousse un peu.").
		On(keyExam, "- Leucocytes 7 G/L (4-10)").
		On(keyHint, "Interrogez-le sur la durée des symptômes.").
		On(keySymptoms, "🤧 Nez bouché\n😷 Toux").
		On(keyDifferential, "1. Rhume\n2. Grippe\n3. Rhinite allergique").
		On(keyTrial, "Le patient se sent un peu mieux.").
		On(keyFeedback, `{"feedback": "Interrogatoire efficace."}`)
	client.Default = llmtest.Reply{Text: "• Aucun antécédent notable."}
	client.ImageURL = "https://images.example/patient.png"
	return client
}

type fixture struct {
	engine  *Engine
	service *service.ConsultationService
	client  *llmtest.Client
	save    *progress.Store
}

func newFixture(t *testing.T, withProgress bool) *fixture {
	t.Helper()
	catalog := content.MustLoad()
	client := scriptedClient()
	svc := service.NewConsultationService(catalog, patient.NewSeeded(catalog, 21), session.NewStore(),
		client, guardrail.New(client, time.Second), nil)

	var store *progress.Store
	if withProgress {
		backend, err := progress.NewFileBackend(t.TempDir())
		if err != nil {
			t.Fatalf("NewFileBackend() error = %v", err)
		}
		store = progress.NewStore(backend, catalog.MaxLevel())
	}

	eng := New(catalog, svc, store)
	t.Cleanup(eng.Close)
	return &fixture{engine: eng, service: svc, client: client, save: store}
}

func (f *fixture) start(t *testing.T, level int) *StartInfo {
	t.Helper()
	info, err := f.engine.StartLevel(context.Background(), level)
	if err != nil {
		t.Fatalf("StartLevel(%d) error = %v", level, err)
	}
	return info
}

func (f *fixture) say(t *testing.T, text string) {
	t.Helper()
	if err := f.engine.SendDoctorMessage(context.Background(), text); err != nil {
		t.Fatalf("SendDoctorMessage(%q) error = %v", text, err)
	}
}

func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestLevelOneScenario(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	info := f.start(t, 1)
	if f.engine.State() != StateActive {
		t.Fatalf("state = %s, want active", f.engine.State())
	}
	if len(f.engine.Transcript()) != 0 {
		t.Fatal("transcript should start empty")
	}
	for _, kind := range AncillaryKinds {
		if f.engine.Used(kind) {
			t.Fatalf("%s already used at start", kind)
		}
	}
	if len(info.NewCards) != 1 || info.NewCards[0] != content.CommonCold {
		t.Errorf("NewCards = %v, want [common_cold]", info.NewCards)
	}

	f.say(t, "Bonjour, que ressentez-vous ?")
	if n := len(f.engine.Transcript()); n != 2 {
		t.Fatalf("transcript has %d entries, want 2", n)
	}

	_, err := f.engine.FinishConsultation(ctx, content.CommonCold)
	var vErr *validation.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("early finish error = %v, want ValidationError", err)
	}
	if f.engine.State() != StateActive {
		t.Fatalf("early finish changed state to %s", f.engine.State())
	}

	f.say(t, "Depuis combien de temps ?")
	if !f.engine.CanFinish() {
		t.Fatal("CanFinish() = false after two exchanges")
	}

	sessionID := f.engine.SessionID()
	result, err := f.engine.FinishConsultation(ctx, content.CommonCold)
	if err != nil {
		t.Fatalf("FinishConsultation() error = %v", err)
	}
	if !result.Correct || result.Score != 100 || result.Stars != 3 {
		t.Errorf("result = %+v, want correct 100/3", result)
	}
	if result.Feedback != "Interrogatoire efficace." {
		t.Errorf("feedback = %q", result.Feedback)
	}
	if !result.LevelUnlocked || result.Save.MaxUnlockedLevel != 2 {
		t.Errorf("level 2 should be unlocked, save = %+v", result.Save)
	}
	if f.engine.State() != StateFinished {
		t.Errorf("state = %s, want finished", f.engine.State())
	}

	if _, err := f.service.Chat(ctx, sessionID, "Encore là ?"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("chat after finish error = %v, want ErrNotFound", err)
	}
}

func TestStartLevelErrors(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	if _, err := f.engine.StartLevel(ctx, 999); !errors.Is(err, ErrLevelNotFound) {
		t.Errorf("unknown level error = %v, want ErrLevelNotFound", err)
	}
	if _, err := f.engine.StartLevel(ctx, 2); !errors.Is(err, ErrLevelLocked) {
		t.Errorf("locked level error = %v, want ErrLevelLocked", err)
	}
	if len(f.client.Requests) != 0 {
		t.Errorf("rejected starts made %d generation calls", len(f.client.Requests))
	}

	f.start(t, 1)
	if _, err := f.engine.StartLevel(ctx, 1); !errors.Is(err, ErrInvalidState) {
		t.Errorf("start while active error = %v, want ErrInvalidState", err)
	}
}

func TestSendDoctorMessageEvents(t *testing.T) {
	f := newFixture(t, false)
	events := f.engine.Subscribe()
	f.start(t, 1)
	drain(events)

	f.say(t, "  Bonjour  ")

	var appended []MessageAppended
	typing := 0
	for _, ev := range drain(events) {
		switch ev := ev.(type) {
		case MessageAppended:
			appended = append(appended, ev)
		case TypingChanged:
			typing++
		}
	}
	if len(appended) != 2 {
		t.Fatalf("got %d MessageAppended events, want 2", len(appended))
	}
	if appended[0].Turn.Role != session.RoleDoctor || appended[0].Turn.Text != "Bonjour" {
		t.Errorf("first event = %+v, want trimmed doctor turn", appended[0])
	}
	if appended[1].Turn.Role != session.RolePatient || appended[1].Count != 2 {
		t.Errorf("second event = %+v", appended[1])
	}
	if typing != 2 {
		t.Errorf("got %d typing events, want 2", typing)
	}
}

func TestSendDoctorMessageRollback(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(*llmtest.Client)
		wantErr   bool
		wantEvent func(Event) bool
	}{
		{
			name: "guardrail rejection",
			setup: func(c *llmtest.Client) {
				c.On(keyGuardrail, `{"valid": false, "reason": "Restez courtois."}`)
			},
			wantEvent: func(ev Event) bool {
				r, ok := ev.(GuardrailRejected)
				return ok && r.Reason == "Restez courtois."
			},
		},
		{
			name:    "transport failure",
			setup:   func(c *llmtest.Client) { c.Fail(keyPatient) },
			wantErr: true,
			wantEvent: func(ev Event) bool {
				r, ok := ev.(ErrorOccurred)
				return ok && r.Retracted
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			f.start(t, 1)
			f.say(t, "Bonjour")
			events := f.engine.Subscribe()

			tt.setup(f.client)
			err := f.engine.SendDoctorMessage(context.Background(), "Et maintenant ?")
			if (err != nil) != tt.wantErr {
				t.Fatalf("SendDoctorMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if n := len(f.engine.Transcript()); n != 2 {
				t.Errorf("transcript has %d entries, want 2", n)
			}

			found := false
			for _, ev := range drain(events) {
				if tt.wantEvent(ev) {
					found = true
				}
			}
			if !found {
				t.Error("expected event not emitted")
			}
		})
	}
}

func TestSendDoctorMessageRejectsEmpty(t *testing.T) {
	f := newFixture(t, false)
	f.start(t, 1)

	err := f.engine.SendDoctorMessage(context.Background(), "   ")
	var vErr *validation.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if len(f.client.Requests) != 1 {
		t.Errorf("empty message reached the server")
	}
}

func TestSendRequiresActive(t *testing.T) {
	f := newFixture(t, false)
	if err := f.engine.SendDoctorMessage(context.Background(), "Bonjour"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("error = %v, want ErrInvalidState", err)
	}
}

type gatedBackend struct {
	Backend
	entered chan struct{}
	release chan struct{}
}

func (g *gatedBackend) Chat(ctx context.Context, sessionID, message string) (*models.ChatResponse, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.Backend.Chat(ctx, sessionID, message)
}

func TestSingleFlight(t *testing.T) {
	f := newFixture(t, false)
	gated := &gatedBackend{Backend: f.service, entered: make(chan struct{}), release: make(chan struct{})}
	f.engine.backend = gated
	f.start(t, 20)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := f.engine.SendDoctorMessage(context.Background(), "Bonjour"); err != nil {
			t.Errorf("first send error = %v", err)
		}
	}()
	<-gated.entered

	if err := f.engine.SendDoctorMessage(context.Background(), "Vous m'entendez ?"); !errors.Is(err, ErrBusy) {
		t.Errorf("concurrent send error = %v, want ErrBusy", err)
	}
	if _, err := f.engine.RequestAncillary(context.Background(), KindHistory, ""); !errors.Is(err, ErrBusy) {
		t.Errorf("ancillary during a chat error = %v, want ErrBusy", err)
	}

	close(gated.release)
	wg.Wait()

	if n := len(f.engine.Transcript()); n != 2 {
		t.Errorf("transcript has %d entries, want 2 (rejected send must not queue)", n)
	}
}

func TestRequestAncillaryOneShot(t *testing.T) {
	f := newFixture(t, false)
	f.start(t, 20)
	ctx := context.Background()

	tests := []struct {
		kind AncillaryKind
		arg  string
		key  string
		want string
	}{
		{KindLab, "", keyExam, "- Leucocytes 7 G/L (4-10)"},
		{KindHint, "", keyHint, "Interrogez-le sur la durée des symptômes."},
		{KindDifferential, "", keyDifferential, "1. Rhume\n2. Grippe\n3. Rhinite allergique"},
		{KindTrialTreatment, "paracétamol", keyTrial, "Le patient se sent un peu mieux."},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			first, err := f.engine.RequestAncillary(ctx, tt.kind, tt.arg)
			if err != nil {
				t.Fatalf("RequestAncillary() error = %v", err)
			}
			if first.Content != tt.want || first.AlreadyUsed || first.Failed {
				t.Errorf("first = %+v", first)
			}

			second, err := f.engine.RequestAncillary(ctx, tt.kind, tt.arg)
			if err != nil {
				t.Fatalf("second RequestAncillary() error = %v", err)
			}
			if !second.AlreadyUsed || second.Content != tt.want {
				t.Errorf("second = %+v, want cached content", second)
			}
			if n := f.client.Calls(tt.key); n != 1 {
				t.Errorf("generator called %d times, want 1", n)
			}
		})
	}
}

func TestRequestAncillaryLocalKinds(t *testing.T) {
	f := newFixture(t, false)
	info := f.start(t, 20)
	ctx := context.Background()

	history, err := f.engine.RequestAncillary(ctx, KindHistory, "")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if history.Content != info.Patient.Antecedents {
		t.Errorf("history = %q, want antecedents %q", history.Content, info.Patient.Antecedents)
	}

	photo, err := f.engine.RequestAncillary(ctx, KindPhoto, "")
	if err != nil {
		t.Fatalf("photo error = %v", err)
	}
	if photo.ImageURL != "https://images.example/patient.png" {
		t.Errorf("photo = %+v", photo)
	}
}

func TestRequestAncillaryFailureIsRetryable(t *testing.T) {
	f := newFixture(t, false)
	f.start(t, 20)
	ctx := context.Background()

	f.client.Fail(keyExam)
	failed, err := f.engine.RequestAncillary(ctx, KindImaging, "")
	if err != nil {
		t.Fatalf("RequestAncillary() error = %v", err)
	}
	if !failed.Failed || failed.Content == "" {
		t.Errorf("failed outcome = %+v", failed)
	}
	if f.engine.Used(KindImaging) {
		t.Fatal("a failed request should not spend the aid")
	}

	f.client.On(keyExam, "Radiographie thoracique normale.")
	ok, err := f.engine.RequestAncillary(ctx, KindImaging, "")
	if err != nil {
		t.Fatalf("retry error = %v", err)
	}
	if ok.Failed || ok.Content != "Radiographie thoracique normale." {
		t.Errorf("retry outcome = %+v", ok)
	}
}

func TestRequestAncillaryGating(t *testing.T) {
	f := newFixture(t, false)
	f.start(t, 1)
	ctx := context.Background()

	if _, err := f.engine.RequestAncillary(ctx, KindLab, ""); !errors.Is(err, ErrPerkLocked) {
		t.Errorf("lab at level 1 error = %v, want ErrPerkLocked", err)
	}
	if _, err := f.engine.RequestAncillary(ctx, AncillaryKind("xray"), ""); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("unknown kind error = %v, want ErrUnknownKind", err)
	}
}

func TestRefreshSymptoms(t *testing.T) {
	f := newFixture(t, false)
	f.start(t, 1)
	f.say(t, "Bonjour")

	for i := 0; i < 2; i++ {
		got, err := f.engine.RefreshSymptoms(context.Background())
		if err != nil {
			t.Fatalf("RefreshSymptoms() error = %v", err)
		}
		if got != "🤧 Nez bouché\n😷 Toux" {
			t.Errorf("symptoms = %q", got)
		}
	}
	if n := f.client.Calls(keySymptoms); n != 2 {
		t.Errorf("symptoms extracted %d times, want 2 (not one-shot)", n)
	}
}

type failingGuess struct {
	Backend
}

func (failingGuess) Guess(context.Context, string, string) (*models.GuessResponse, error) {
	return nil, errors.New("connection reset")
}

func TestFinishWhenGuessFails(t *testing.T) {
	f := newFixture(t, true)
	f.start(t, 1)
	f.say(t, "Bonjour")
	f.say(t, "Avez-vous de la fièvre ?")

	f.engine.backend = failingGuess{Backend: f.service}
	events := f.engine.Subscribe()

	result, err := f.engine.FinishConsultation(context.Background(), content.CommonCold)
	if err != nil {
		t.Fatalf("FinishConsultation() error = %v", err)
	}
	if result.Correct || result.Score != 0 || result.Feedback != FallbackFeedback {
		t.Errorf("result = %+v, want fallback", result)
	}
	if f.engine.State() != StateFinished {
		t.Errorf("state = %s, want finished", f.engine.State())
	}
	if result.Save.Scores[1].Attempts != 1 || result.LevelUnlocked {
		t.Errorf("save = %+v", result.Save)
	}

	var evaluating, finished int
	for _, ev := range drain(events) {
		switch ev.(type) {
		case EvaluatingChanged:
			evaluating++
		case Finished:
			finished++
		}
	}
	if evaluating != 2 || finished != 1 {
		t.Errorf("events: %d evaluating, %d finished", evaluating, finished)
	}
}

func TestSubscribeAfterClose(t *testing.T) {
	f := newFixture(t, false)
	f.engine.Close()

	if _, ok := <-f.engine.Subscribe(); ok {
		t.Error("subscribing to a closed engine should yield a closed channel")
	}
}
