package progress

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"medgame/internal/content"
	"medgame/internal/models"
)

type memoryBackend struct {
	data map[string][]byte
	err  error
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{data: map[string][]byte{}}
}

func (m *memoryBackend) Read(key string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.data[key], nil
}

func (m *memoryBackend) Write(key string, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *memoryBackend) Delete(key string) error {
	delete(m.data, key)
	return nil
}

func TestLoadDefaults(t *testing.T) {
	tests := []struct {
		name    string
		backend *memoryBackend
	}{
		{"missing", newMemoryBackend()},
		{"corrupt", &memoryBackend{data: map[string][]byte{saveKey: []byte("{{{ not yaml")}}},
		{"read error", &memoryBackend{data: map[string][]byte{}, err: errors.New("disk gone")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewStore(tt.backend, 20).Load()
			if !reflect.DeepEqual(got, DefaultSave()) {
				t.Errorf("Load() = %+v, want defaults", got)
			}
		})
	}
}

func TestUpdate(t *testing.T) {
	store := NewStore(newMemoryBackend(), 20)

	// reach level 3
	if _, err := store.Update(1, 100, 3); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if _, err := store.Update(2, 100, 3); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	rec, err := store.Update(3, 100, 3)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if rec.MaxUnlockedLevel != 4 {
		t.Errorf("MaxUnlockedLevel = %d, want 4", rec.MaxUnlockedLevel)
	}
	if rec.Scores[3] != (LevelScore{Score: 100, Stars: 3, Attempts: 1}) {
		t.Errorf("Scores[3] = %+v", rec.Scores[3])
	}

	t.Run("failed attempt keeps best score", func(t *testing.T) {
		rec, _ := store.Update(3, 0, 0)
		if rec.Scores[3] != (LevelScore{Score: 100, Stars: 3, Attempts: 2}) {
			t.Errorf("Scores[3] = %+v", rec.Scores[3])
		}
		if rec.MaxUnlockedLevel != 4 {
			t.Errorf("MaxUnlockedLevel = %d, want 4", rec.MaxUnlockedLevel)
		}
	})

	t.Run("replaying an old level unlocks nothing", func(t *testing.T) {
		rec, _ := store.Update(1, 100, 3)
		if rec.MaxUnlockedLevel != 4 {
			t.Errorf("MaxUnlockedLevel = %d, want 4", rec.MaxUnlockedLevel)
		}
		if rec.Scores[1].Attempts != 2 {
			t.Errorf("Scores[1].Attempts = %d, want 2", rec.Scores[1].Attempts)
		}
	})

	t.Run("failing the frontier level unlocks nothing", func(t *testing.T) {
		rec, _ := store.Update(4, 0, 0)
		if rec.MaxUnlockedLevel != 4 {
			t.Errorf("MaxUnlockedLevel = %d, want 4", rec.MaxUnlockedLevel)
		}
	})

	if got := store.Load(); got.MaxUnlockedLevel != 4 {
		t.Errorf("reloaded MaxUnlockedLevel = %d", got.MaxUnlockedLevel)
	}
}

func TestUpdateCapsAtMaxLevel(t *testing.T) {
	store := NewStore(newMemoryBackend(), 2)
	store.Update(1, 100, 3)
	rec, _ := store.Update(2, 100, 3)
	if rec.MaxUnlockedLevel != 2 {
		t.Errorf("MaxUnlockedLevel = %d, want 2", rec.MaxUnlockedLevel)
	}
}

func TestUnlockContent(t *testing.T) {
	store := NewStore(newMemoryBackend(), 20)

	added, err := store.UnlockContent([]content.ConditionID{content.CommonCold, content.Influenza, content.CommonCold})
	if err != nil {
		t.Fatalf("UnlockContent() error = %v", err)
	}
	if !reflect.DeepEqual(added, []content.ConditionID{content.CommonCold, content.Influenza}) {
		t.Errorf("added = %v", added)
	}

	added, _ = store.UnlockContent([]content.ConditionID{content.Influenza, content.Asthma})
	if !reflect.DeepEqual(added, []content.ConditionID{content.Asthma}) {
		t.Errorf("second added = %v", added)
	}

	rec := store.Load()
	want := []content.ConditionID{content.CommonCold, content.Influenza, content.Asthma}
	if !reflect.DeepEqual(rec.UnlockedCards, want) {
		t.Errorf("UnlockedCards = %v, want %v", rec.UnlockedCards, want)
	}
}

func TestSettingsMerge(t *testing.T) {
	backend := newMemoryBackend()
	store := NewStore(backend, 20)

	if got := store.LoadSettings(); got != DefaultSettings() {
		t.Fatalf("LoadSettings() = %+v, want defaults", got)
	}

	volume := 0.8
	saved, err := store.SaveSettings(SettingsPatch{Volume: &volume})
	if err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}
	want := Settings{Volume: 0.8, SoundEnabled: true, AnimationsEnabled: true}
	if saved != want {
		t.Errorf("SaveSettings() = %+v, want %+v", saved, want)
	}

	transcription := true
	store.SaveSettings(SettingsPatch{TranscriptionEnabled: &transcription})
	want.TranscriptionEnabled = true
	if got := store.LoadSettings(); got != want {
		t.Errorf("LoadSettings() = %+v, want %+v", got, want)
	}

	// a stored document missing keys falls back per field
	backend.data[settingsKey] = []byte("sound_enabled: false\n")
	if got := store.LoadSettings(); got != (Settings{Volume: 0.5, SoundEnabled: false, AnimationsEnabled: true}) {
		t.Errorf("partial document = %+v", got)
	}

	loud := 3.0
	if got, _ := store.SaveSettings(SettingsPatch{Volume: &loud}); got.Volume != 1 {
		t.Errorf("volume should clamp to 1, got %v", got.Volume)
	}
}

func TestResetAndFlags(t *testing.T) {
	store := NewStore(newMemoryBackend(), 20)

	if err := store.MarkPlayed(); err != nil {
		t.Fatalf("MarkPlayed() error = %v", err)
	}
	if err := store.UnlockAllLevels(); err != nil {
		t.Fatalf("UnlockAllLevels() error = %v", err)
	}
	if err := store.SetCurrentLevel(12); err != nil {
		t.Fatalf("SetCurrentLevel() error = %v", err)
	}

	rec := store.Load()
	if rec.FirstTime || rec.MaxUnlockedLevel != 20 || rec.CurrentLevel != 12 {
		t.Errorf("Load() = %+v", rec)
	}

	if err := store.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if !reflect.DeepEqual(store.Load(), DefaultSave()) {
		t.Error("Reset() should restore defaults")
	}
}

func TestSetCurrentLevelCapped(t *testing.T) {
	store := NewStore(newMemoryBackend(), 20)
	store.SetCurrentLevel(9)
	if got := store.Load().CurrentLevel; got != 1 {
		t.Errorf("CurrentLevel = %d, want 1", got)
	}
}

func TestFileBackend(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "saves")
	backend, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("NewFileBackend() error = %v", err)
	}

	data, err := backend.Read("save")
	if err != nil || data != nil {
		t.Fatalf("Read() on missing key = %q, %v", data, err)
	}

	store := NewStore(backend, 20)
	store.Update(1, 100, 3)

	if _, err := os.Stat(filepath.Join(dir, "save.yaml")); err != nil {
		t.Fatalf("save file not written: %v", err)
	}
	if got := NewStore(backend, 20).Load(); got.MaxUnlockedLevel != 2 {
		t.Errorf("reloaded MaxUnlockedLevel = %d", got.MaxUnlockedLevel)
	}

	if _, err := backend.Read("../escape"); err == nil {
		t.Error("Read() should reject path-like keys")
	}
	if err := backend.Delete("missing"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
}

type fakeSaveRepo struct {
	entries map[string]string
}

func (f *fakeSaveRepo) Get(key string) (*models.SaveEntry, error) {
	payload, ok := f.entries[key]
	if !ok {
		return nil, nil
	}
	return &models.SaveEntry{Key: key, Payload: payload}, nil
}

func (f *fakeSaveRepo) Put(key, payload string) error {
	f.entries[key] = payload
	return nil
}

func (f *fakeSaveRepo) Delete(key string) error {
	delete(f.entries, key)
	return nil
}

func TestRepositoryBackend(t *testing.T) {
	repo := &fakeSaveRepo{entries: map[string]string{}}
	store := NewStore(NewRepositoryBackend(repo), 20)

	if _, err := store.UnlockContent([]content.ConditionID{content.Migraine}); err != nil {
		t.Fatalf("UnlockContent() error = %v", err)
	}
	if _, ok := repo.entries[saveKey]; !ok {
		t.Fatal("save was not written to the repository")
	}
	if got := store.Load().UnlockedCards; len(got) != 1 || got[0] != content.Migraine {
		t.Errorf("UnlockedCards = %v", got)
	}
}
