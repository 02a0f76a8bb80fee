package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"shotforge/internal/fingerprint"
	"shotforge/internal/logging"
	"shotforge/internal/reuse"
	"shotforge/internal/script"
	"shotforge/internal/services"
)

// Generator produces each stage's output. Implementations must honour ctx
// cancellation at their network boundaries.
type Generator interface {
	GenerateStructure(ctx context.Context, draft script.Draft) (*script.ScriptData, error)
	GenerateVisuals(ctx context.Context, draft script.Draft, data *script.ScriptData) (*script.ScriptData, error)
	GenerateShots(ctx context.Context, draft script.Draft, data *script.ScriptData) ([]script.Shot, error)
}

// Options configures an Orchestrator.
type Options struct {
	Logger   *slog.Logger
	Observer Observer
	// Clock stamps checkpoints and generation metadata. Defaults to time.Now.
	Clock func() time.Time
}

// Orchestrator runs the staged pipeline for one request at a time. Callers
// that may start overlapping runs for a session should go through Sessions.
type Orchestrator struct {
	gen      Generator
	store    CheckpointStore
	logger   *slog.Logger
	observer Observer
	clock    func() time.Time
}

// New constructs an Orchestrator.
func New(gen Generator, store CheckpointStore, opts Options) *Orchestrator {
	o := &Orchestrator{
		gen:      gen,
		store:    store,
		logger:   logging.NewComponentLogger(opts.Logger, "pipeline"),
		observer: opts.Observer,
		clock:    opts.Clock,
	}
	if o.observer == nil {
		o.observer = NopObserver{}
	}
	if o.clock == nil {
		o.clock = time.Now
	}
	if o.store == nil {
		o.store = NewMemoryStore()
	}
	return o
}

// Request is the input of one run. Previous and PreviousShots are the output
// of the last completed run, if any.
type Request struct {
	Draft         script.Draft
	Previous      *script.ScriptData
	PreviousShots []script.Shot
}

// Result is the output of a completed or no-op run.
type Result struct {
	Script    *script.ScriptData
	Shots     []script.Shot
	Keys      fingerprint.Keys
	Start     Stage
	Executed  []Stage
	NoChanges bool
	Resumed   bool
	Message   string
}

// Run executes every stage from the planned start through done. On error the
// returned *StageError names the stage, and the last saved checkpoint is left
// for a later resume.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	session := SessionKey{ProjectID: req.Draft.ProjectID, EpisodeID: req.Draft.EpisodeID}
	if err := session.Validate(); err != nil {
		return nil, err
	}
	ctx = services.WithProjectID(ctx, session.ProjectID)
	ctx = services.WithEpisodeID(ctx, session.EpisodeID)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, o.logger)

	keys, err := fingerprint.ForDraft(req.Draft)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "", "fingerprint", "draft could not be serialized", err)
	}

	cp, err := o.store.Load(ctx, session)
	if err != nil {
		if ctx.Err() != nil {
			return nil, newStageError(StageStructure, ctx.Err())
		}
		logging.WarnWithContext(logger, "checkpoint load failed", "checkpoint_load_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "resume unavailable; planning from previous script"),
			logging.String(logging.FieldErrorHint, "inspect the checkpoint database"),
		)
		cp = nil
	}

	decision := Plan(keys, req.Previous, req.PreviousShots, cp)
	logger.Info("run planned",
		logging.String(logging.FieldEventType, "run_planned"),
		logging.String("start_stage", string(decision.Start)),
		logging.Bool("resumed", decision.Resumed),
		logging.String("reason", decision.Reason),
	)
	o.notify(Event{Type: EventRunStarted, Session: session, Stage: decision.Start, Message: decision.Reason})

	if decision.DiscardCheckpoint {
		o.clear(ctx, logger, session)
		logger.Info("stale checkpoint discarded",
			logging.String(logging.FieldEventType, "checkpoint_discarded"),
			logging.String("checkpoint_step", string(cp.Step)),
		)
		o.notify(Event{Type: EventCheckpointDiscarded, Session: session, Stage: cp.Step})
	}

	result := &Result{Keys: keys, Start: decision.Start, Resumed: decision.Resumed}
	if decision.Start == StageDone {
		result.Script = decision.Seed
		result.Shots = decision.SeedShots
		result.NoChanges = !decision.Resumed
		result.Message = decision.Reason
		o.clear(ctx, logger, session)
		eventType := EventRunCompleted
		if result.NoChanges {
			eventType = EventNoChanges
			logger.Info("no changes detected", logging.String(logging.FieldEventType, "run_noop"))
		}
		o.notify(Event{Type: eventType, Session: session, Stage: StageDone, Message: result.Message})
		return result, nil
	}

	current := decision.Seed
	var shots []script.Shot
	for stage := decision.Start; stage != StageDone; stage = stage.Next() {
		stageCtx := services.WithStage(ctx, string(stage))
		stageLogger := logging.WithContext(stageCtx, o.logger)
		if err := stageCtx.Err(); err != nil {
			return nil, o.fail(stageLogger, session, stage, err)
		}

		started := o.clock()
		stageLogger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
		o.notify(Event{Type: EventStageStarted, Session: session, Stage: stage})

		next, nextShots, err := o.runStage(stageCtx, stageLogger, stage, req, keys, current)
		if err == nil && stageCtx.Err() != nil {
			// The call returned after cancellation was requested; its output
			// is abandoned.
			err = stageCtx.Err()
		}
		if err != nil {
			return nil, o.fail(stageLogger, session, stage, err)
		}
		current = next
		if nextShots != nil {
			shots = nextShots
		}

		// The stage output is complete; a cancel arriving now must not drop it.
		o.save(context.WithoutCancel(stageCtx), stageLogger, session, Checkpoint{
			Step:      stage.Next(),
			ConfigKey: keys.Config,
			Script:    current,
			Shots:     shots,
			UpdatedAt: o.clock(),
		})

		result.Executed = append(result.Executed, stage)
		stageLogger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.String("next_stage", string(stage.Next())),
			logging.Duration("stage_duration", o.clock().Sub(started)),
		)
		o.notify(Event{Type: EventStageCompleted, Session: session, Stage: stage})
	}

	o.clear(ctx, logger, session)
	result.Script = current
	result.Shots = shots
	result.Message = fmt.Sprintf("generated %d characters, %d scenes, %d props, %d shots",
		len(current.Characters), len(current.Scenes), len(current.Props), len(shots))
	logger.Info("run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("stages_executed", len(result.Executed)),
		logging.Int("shots", len(shots)),
	)
	o.notify(Event{Type: EventRunCompleted, Session: session, Stage: StageDone, Message: result.Message})
	return result, nil
}

func (o *Orchestrator) runStage(ctx context.Context, logger *slog.Logger, stage Stage, req Request, keys fingerprint.Keys, current *script.ScriptData) (*script.ScriptData, []script.Shot, error) {
	switch stage {
	case StageStructure:
		fresh, err := o.gen.GenerateStructure(ctx, req.Draft)
		if err != nil {
			return nil, nil, err
		}
		if fresh == nil {
			return nil, nil, services.Wrap(services.ErrMalformedResponse, string(stage), "generate", "empty structure", nil)
		}
		fresh = fresh.Clone()
		if req.Previous != nil && req.Previous.GenerationMeta.VisualsKey == keys.Visuals {
			merged, stats := reuse.Apply(fresh, req.Previous)
			fresh = merged
			logger.Info("visual data reused",
				logging.Args(append(logging.DecisionAttrs("reuse_visuals", "applied", "visual inputs unchanged"),
					logging.Int("characters", stats[script.KindCharacter]),
					logging.Int("scenes", stats[script.KindScene]),
					logging.Int("props", stats[script.KindProp]),
				)...)...,
			)
		}
		fresh.GenerationMeta = script.GenerationMeta{
			StructureKey: keys.Structure,
			GeneratedAt:  o.clock(),
		}
		if req.Previous != nil && req.Previous.GenerationMeta.VisualsKey == keys.Visuals {
			// Reused visuals were made under the current visual inputs.
			fresh.GenerationMeta.VisualsKey = keys.Visuals
		}
		return fresh, nil, nil

	case StageVisuals:
		if current == nil {
			return nil, nil, services.Wrap(services.ErrValidation, string(stage), "seed", "no script to build visuals on", nil)
		}
		seed := current.Clone()
		if current.GenerationMeta.VisualsKey != keys.Visuals {
			var stats reuse.Stats
			seed, stats = reuse.Invalidate(current)
			if stats.Total() > 0 {
				logger.Info("stale visuals cleared",
					logging.Args(append(logging.DecisionAttrs("reuse_visuals", "invalidated", "visual inputs changed"),
						logging.Int("characters", stats[script.KindCharacter]),
						logging.Int("scenes", stats[script.KindScene]),
						logging.Int("props", stats[script.KindProp]),
					)...)...,
				)
			}
		}
		updated, err := o.gen.GenerateVisuals(ctx, req.Draft, seed)
		if err != nil {
			return nil, nil, err
		}
		if updated == nil {
			return nil, nil, services.Wrap(services.ErrMalformedResponse, string(stage), "generate", "empty visuals", nil)
		}
		updated = updated.Clone()
		updated.GenerationMeta = current.GenerationMeta
		updated.GenerationMeta.VisualsKey = keys.Visuals
		updated.GenerationMeta.GeneratedAt = o.clock()
		return updated, nil, nil

	case StageShots:
		if current == nil {
			return nil, nil, services.Wrap(services.ErrValidation, string(stage), "seed", "no script to build shots on", nil)
		}
		shots, err := o.gen.GenerateShots(ctx, req.Draft, current.Clone())
		if err != nil {
			return nil, nil, err
		}
		if shots == nil {
			shots = []script.Shot{}
		}
		updated := current.Clone()
		updated.GenerationMeta.ShotsKey = keys.Shots
		updated.GenerationMeta.GeneratedAt = o.clock()
		return updated, script.CloneShots(shots), nil
	}
	return nil, nil, fmt.Errorf("unknown stage %q", stage)
}

func (o *Orchestrator) fail(logger *slog.Logger, session SessionKey, stage Stage, err error) error {
	stageErr := newStageError(stage, err)
	if stageErr.Canceled {
		logger.Info("stage canceled",
			logging.String(logging.FieldEventType, "stage_canceled"),
			logging.String("resume_from", string(stage)),
		)
		o.notify(Event{Type: EventStageCanceled, Session: session, Stage: stage, Err: stageErr, Message: stageErr.UserMessage()})
		return stageErr
	}
	logging.ErrorWithContext(logger, "stage failed", "stage_failure",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "rerun generate to retry from the last checkpoint"),
	)
	o.notify(Event{Type: EventStageFailed, Session: session, Stage: stage, Err: stageErr, Message: stageErr.UserMessage()})
	return stageErr
}

func (o *Orchestrator) save(ctx context.Context, logger *slog.Logger, session SessionKey, cp Checkpoint) {
	if err := o.store.Save(ctx, session, cp); err != nil {
		logging.WarnWithContext(logger, "checkpoint save failed", "checkpoint_save_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "an interruption before the next save repeats this stage"),
			logging.String(logging.FieldErrorHint, "check state_dir permissions and free space"),
		)
		return
	}
	logger.Debug("checkpoint saved",
		logging.String(logging.FieldEventType, "checkpoint_saved"),
		logging.String("checkpoint_step", string(cp.Step)),
	)
	o.notify(Event{Type: EventCheckpointSaved, Session: session, Stage: cp.Step})
}

func (o *Orchestrator) clear(ctx context.Context, logger *slog.Logger, session SessionKey) {
	if err := o.store.Clear(context.WithoutCancel(ctx), session); err != nil {
		logging.WarnWithContext(logger, "checkpoint clear failed", "checkpoint_clear_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "a stale checkpoint is discarded on the next run"),
		)
	}
}

func (o *Orchestrator) notify(e Event) {
	if e.Time.IsZero() {
		e.Time = o.clock()
	}
	o.observer.Notify(e)
}
