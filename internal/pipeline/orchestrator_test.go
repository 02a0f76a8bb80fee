package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shotforge/internal/fingerprint"
	"shotforge/internal/script"
	"shotforge/internal/services"
)

type stubGenerator struct {
	mu    sync.Mutex
	calls map[Stage]int
	fail  map[Stage]error
	// hook runs inside the stage call before it returns.
	hook func(Stage)
}

func newStubGenerator() *stubGenerator {
	return &stubGenerator{calls: map[Stage]int{}, fail: map[Stage]error{}}
}

func (g *stubGenerator) record(stage Stage) error {
	g.mu.Lock()
	g.calls[stage]++
	err := g.fail[stage]
	hook := g.hook
	g.mu.Unlock()
	if hook != nil {
		hook(stage)
	}
	return err
}

func (g *stubGenerator) count(stage Stage) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[stage]
}

func (g *stubGenerator) GenerateStructure(_ context.Context, draft script.Draft) (*script.ScriptData, error) {
	if err := g.record(StageStructure); err != nil {
		return nil, err
	}
	return &script.ScriptData{
		Title:      draft.Title,
		Characters: []script.Character{{ID: "char-1", Name: "Anna"}},
		Scenes:     []script.Scene{{ID: "scene-1", Location: "Harbor"}},
		Props:      []script.Prop{{ID: "prop-1", Name: "Lantern"}},
	}, nil
}

func (g *stubGenerator) GenerateVisuals(_ context.Context, draft script.Draft, data *script.ScriptData) (*script.ScriptData, error) {
	if err := g.record(StageVisuals); err != nil {
		return nil, err
	}
	for i := range data.Characters {
		if data.Characters[i].VisualPrompt == "" {
			data.Characters[i].VisualPrompt = draft.VisualStyle + " portrait of " + data.Characters[i].Name
		}
	}
	return data, nil
}

func (g *stubGenerator) GenerateShots(_ context.Context, draft script.Draft, data *script.ScriptData) ([]script.Shot, error) {
	if err := g.record(StageShots); err != nil {
		return nil, err
	}
	return []script.Shot{
		{ID: "shot-1", SceneID: data.Scenes[0].ID, CharacterIDs: []string{"char-1"}, Camera: draft.VideoModel},
		{ID: "shot-2", SceneID: data.Scenes[0].ID},
	}, nil
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testDraft() script.Draft {
	return script.Draft{
		ProjectID:      "proj-1",
		EpisodeID:      "ep-1",
		Title:          "Harbor Lights",
		RawText:        "Anna walks the harbor at dusk.",
		Language:       "en",
		VisualStyle:    "noir",
		TargetDuration: 60,
		Model:          "model-a",
		VideoModel:     "veo-3",
	}
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) has(t EventType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Type == t {
			return true
		}
	}
	return false
}

func newTestOrchestrator(gen Generator, store CheckpointStore, obs Observer) *Orchestrator {
	return New(gen, store, Options{Observer: obs, Clock: func() time.Time { return fixedNow }})
}

func sessionOf(d script.Draft) SessionKey {
	return SessionKey{ProjectID: d.ProjectID, EpisodeID: d.EpisodeID}
}

func TestRunFromScratchExecutesEveryStage(t *testing.T) {
	gen := newStubGenerator()
	store := NewMemoryStore()
	draft := testDraft()

	res, err := newTestOrchestrator(gen, store, nil).Run(context.Background(), Request{Draft: draft})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []Stage{StageStructure, StageVisuals, StageShots}
	if len(res.Executed) != len(want) {
		t.Fatalf("executed = %v, want %v", res.Executed, want)
	}
	for i := range want {
		if res.Executed[i] != want[i] {
			t.Fatalf("executed = %v, want %v", res.Executed, want)
		}
	}
	keys, _ := fingerprint.ForDraft(draft)
	meta := res.Script.GenerationMeta
	if meta.StructureKey != keys.Structure || meta.VisualsKey != keys.Visuals || meta.ShotsKey != keys.Shots {
		t.Fatalf("unexpected meta %+v for keys %+v", meta, keys)
	}
	if !meta.GeneratedAt.Equal(fixedNow) {
		t.Fatalf("GeneratedAt = %v", meta.GeneratedAt)
	}
	if len(res.Shots) != 2 {
		t.Fatalf("shots = %d, want 2", len(res.Shots))
	}
	cp, err := store.Load(context.Background(), sessionOf(draft))
	if err != nil || cp != nil {
		t.Fatalf("checkpoint should be cleared after completion, got %+v err=%v", cp, err)
	}
}

func TestRunIsNoOpWhenNothingChanged(t *testing.T) {
	gen := newStubGenerator()
	orch := newTestOrchestrator(gen, NewMemoryStore(), nil)
	draft := testDraft()
	first, err := orch.Run(context.Background(), Request{Draft: draft})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}

	obs := &recorder{}
	orch = newTestOrchestrator(gen, NewMemoryStore(), obs)
	second, err := orch.Run(context.Background(), Request{Draft: draft, Previous: first.Script, PreviousShots: first.Shots})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !second.NoChanges || len(second.Executed) != 0 {
		t.Fatalf("expected no-op, got %+v", second)
	}
	if len(second.Shots) != 2 {
		t.Fatalf("no-op should return previous shots, got %d", len(second.Shots))
	}
	for _, stage := range []Stage{StageStructure, StageVisuals, StageShots} {
		if gen.count(stage) != 1 {
			t.Fatalf("%s called %d times, want 1", stage, gen.count(stage))
		}
	}
	if !obs.has(EventNoChanges) {
		t.Fatal("expected no_changes event")
	}
}

func TestRunStartsAtFirstChangedStage(t *testing.T) {
	tests := []struct {
		name   string
		edit   func(*script.Draft)
		start  Stage
		skips  []Stage
		reruns []Stage
	}{
		{
			name:   "visual style",
			edit:   func(d *script.Draft) { d.VisualStyle = "watercolor" },
			start:  StageVisuals,
			skips:  []Stage{StageStructure},
			reruns: []Stage{StageVisuals, StageShots},
		},
		{
			name:   "video model",
			edit:   func(d *script.Draft) { d.VideoModel = "kling-2" },
			start:  StageShots,
			skips:  []Stage{StageStructure, StageVisuals},
			reruns: []Stage{StageShots},
		},
		{
			name:   "raw text",
			edit:   func(d *script.Draft) { d.RawText += " A storm rolls in." },
			start:  StageStructure,
			reruns: []Stage{StageStructure, StageVisuals, StageShots},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := newStubGenerator()
			orch := newTestOrchestrator(gen, NewMemoryStore(), nil)
			draft := testDraft()
			first, err := orch.Run(context.Background(), Request{Draft: draft})
			if err != nil {
				t.Fatalf("first run: %v", err)
			}
			tt.edit(&draft)
			res, err := orch.Run(context.Background(), Request{Draft: draft, Previous: first.Script, PreviousShots: first.Shots})
			if err != nil {
				t.Fatalf("second run: %v", err)
			}
			if res.Start != tt.start {
				t.Fatalf("start = %s, want %s", res.Start, tt.start)
			}
			for _, stage := range tt.skips {
				if gen.count(stage) != 1 {
					t.Fatalf("%s should not rerun, called %d times", stage, gen.count(stage))
				}
			}
			for _, stage := range tt.reruns {
				if gen.count(stage) != 2 {
					t.Fatalf("%s should rerun, called %d times", stage, gen.count(stage))
				}
			}
		})
	}
}

func TestRunFailureKeepsCheckpointForResume(t *testing.T) {
	gen := newStubGenerator()
	gen.fail[StageShots] = errors.New("upstream 502")
	store := NewMemoryStore()
	obs := &recorder{}
	orch := newTestOrchestrator(gen, store, obs)
	draft := testDraft()

	_, err := orch.Run(context.Background(), Request{Draft: draft})
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected *StageError, got %v", err)
	}
	if stageErr.Stage != StageShots || stageErr.Canceled {
		t.Fatalf("unexpected stage error %+v", stageErr)
	}
	if !obs.has(EventStageFailed) {
		t.Fatal("expected stage_failed event")
	}
	cp, err := store.Load(context.Background(), sessionOf(draft))
	if err != nil || cp == nil {
		t.Fatalf("expected checkpoint, got %v err=%v", cp, err)
	}
	if cp.Step != StageShots {
		t.Fatalf("checkpoint step = %s, want shots", cp.Step)
	}

	delete(gen.fail, StageShots)
	res, err := orch.Run(context.Background(), Request{Draft: draft})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !res.Resumed || res.Start != StageShots {
		t.Fatalf("expected resume at shots, got start=%s resumed=%v", res.Start, res.Resumed)
	}
	if gen.count(StageStructure) != 1 || gen.count(StageVisuals) != 1 {
		t.Fatalf("resume reran earlier stages: %v", gen.calls)
	}
	if res.Script.CharacterByID("char-1").VisualPrompt == "" {
		t.Fatal("resumed script lost visuals from checkpoint")
	}
}

func TestRunCancellationDiscardsLateOutput(t *testing.T) {
	gen := newStubGenerator()
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gen.hook = func(stage Stage) {
		if stage == StageVisuals {
			cancel()
		}
	}
	obs := &recorder{}
	draft := testDraft()

	_, err := newTestOrchestrator(gen, store, obs).Run(ctx, Request{Draft: draft})
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected *StageError, got %v", err)
	}
	if !stageErr.Canceled || stageErr.Stage != StageVisuals {
		t.Fatalf("unexpected stage error %+v", stageErr)
	}
	if !errors.Is(err, context.Canceled) || !errors.Is(err, services.ErrCanceled) {
		t.Fatalf("cancellation not recognizable: %v", err)
	}
	if gen.count(StageShots) != 0 {
		t.Fatal("shots stage ran after cancellation")
	}
	if !obs.has(EventStageCanceled) {
		t.Fatal("expected stage_canceled event")
	}
	cp, _ := store.Load(context.Background(), sessionOf(draft))
	if cp == nil || cp.Step != StageVisuals {
		t.Fatalf("checkpoint should point at visuals, got %+v", cp)
	}
	if cp.Script.CharacterByID("char-1").VisualPrompt != "" {
		t.Fatal("output returned after cancellation was persisted")
	}
}

func TestRunDiscardsCheckpointFromOtherConfig(t *testing.T) {
	gen := newStubGenerator()
	store := NewMemoryStore()
	draft := testDraft()
	stale := Checkpoint{
		Step:      StageShots,
		ConfigKey: "v1-deadbeef-10",
		Script:    &script.ScriptData{Title: "stale"},
	}
	if err := store.Save(context.Background(), sessionOf(draft), stale); err != nil {
		t.Fatalf("Save: %v", err)
	}
	obs := &recorder{}

	res, err := newTestOrchestrator(gen, store, obs).Run(context.Background(), Request{Draft: draft})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Resumed || res.Start != StageStructure {
		t.Fatalf("stale checkpoint was used: start=%s resumed=%v", res.Start, res.Resumed)
	}
	if !obs.has(EventCheckpointDiscarded) {
		t.Fatal("expected checkpoint_discarded event")
	}
	if res.Script.Title != draft.Title {
		t.Fatalf("title = %q", res.Script.Title)
	}
}

func TestRunReusesVisualsWhenOnlyStructureChanged(t *testing.T) {
	gen := newStubGenerator()
	orch := newTestOrchestrator(gen, NewMemoryStore(), nil)
	draft := testDraft()
	first, err := orch.Run(context.Background(), Request{Draft: draft})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	previous := first.Script.Clone()
	previous.Characters[0].ReferenceImage = "anna.png"
	previous.Characters[0].VisualPrompt = "hand tuned prompt"

	draft.RawText = "Anna waits at the harbor until dawn."
	res, err := orch.Run(context.Background(), Request{Draft: draft, Previous: previous, PreviousShots: first.Shots})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	anna := res.Script.CharacterByID("char-1")
	if anna.ReferenceImage != "anna.png" || anna.VisualPrompt != "hand tuned prompt" {
		t.Fatalf("visual data not carried over: %+v", anna.Visual)
	}
}

func TestRunRegeneratesVisualsAfterStyleChange(t *testing.T) {
	gen := newStubGenerator()
	orch := newTestOrchestrator(gen, NewMemoryStore(), nil)
	draft := testDraft()
	first, err := orch.Run(context.Background(), Request{Draft: draft})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	previous := first.Script.Clone()
	previous.Characters[0].ReferenceImage = "noir-anna.png"

	draft.VisualStyle = "watercolor"
	res, err := orch.Run(context.Background(), Request{Draft: draft, Previous: previous, PreviousShots: first.Shots})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	anna := res.Script.CharacterByID("char-1")
	if anna.VisualPrompt != "watercolor portrait of Anna" || anna.ReferenceImage != "" {
		t.Fatalf("stale visuals kept after style change: %+v", anna.Visual)
	}
	if res.Script.GenerationMeta.VisualsKey != res.Keys.Visuals {
		t.Fatalf("visuals key = %q, want %q", res.Script.GenerationMeta.VisualsKey, res.Keys.Visuals)
	}
}

func TestRunRejectsMissingSession(t *testing.T) {
	draft := testDraft()
	draft.EpisodeID = " "
	_, err := newTestOrchestrator(newStubGenerator(), nil, nil).Run(context.Background(), Request{Draft: draft})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

type failingStore struct{ *MemoryStore }

func (f *failingStore) Load(context.Context, SessionKey) (*Checkpoint, error) {
	return nil, errors.New("disk on fire")
}

func (f *failingStore) Save(context.Context, SessionKey, Checkpoint) error {
	return errors.New("disk on fire")
}

func TestRunSurvivesCheckpointStoreErrors(t *testing.T) {
	gen := newStubGenerator()
	res, err := newTestOrchestrator(gen, &failingStore{MemoryStore: NewMemoryStore()}, nil).
		Run(context.Background(), Request{Draft: testDraft()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Executed) != 3 {
		t.Fatalf("executed = %v", res.Executed)
	}
}

// detachedSaveStore records whether each Save could still be canceled.
type detachedSaveStore struct {
	*MemoryStore
	mu         sync.Mutex
	saves      int
	cancelable int
}

func (s *detachedSaveStore) Save(ctx context.Context, key SessionKey, cp Checkpoint) error {
	s.mu.Lock()
	s.saves++
	if ctx.Done() != nil {
		s.cancelable++
	}
	s.mu.Unlock()
	return s.MemoryStore.Save(ctx, key, cp)
}

func TestRunSavesCompletedStageDespiteLaterCancel(t *testing.T) {
	store := &detachedSaveStore{MemoryStore: NewMemoryStore()}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := newTestOrchestrator(newStubGenerator(), store, nil).Run(ctx, Request{Draft: testDraft()}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if store.saves != 3 {
		t.Fatalf("saves = %d, want one per stage", store.saves)
	}
	if store.cancelable != 0 {
		t.Fatalf("%d checkpoint saves were bound to the run's cancellation", store.cancelable)
	}
}
