package pipeline

import (
	"shotforge/internal/fingerprint"
	"shotforge/internal/script"
)

// Decision is the outcome of Plan.
type Decision struct {
	Start Stage
	// Seed is the script the start stage builds on. Nil when starting at
	// structure from scratch.
	Seed *script.ScriptData
	// SeedShots carries shots forward when the run resumes at done.
	SeedShots []script.Shot
	Resumed   bool
	// DiscardCheckpoint is set when a stored checkpoint belongs to another
	// configuration and must be cleared.
	DiscardCheckpoint bool
	Reason            string
}

// Plan applies the stage transition rule. A checkpoint is trusted only when
// its config key matches the current draft exactly; otherwise the previous
// script's stage keys are compared in order and the first mismatch wins.
func Plan(keys fingerprint.Keys, previous *script.ScriptData, previousShots []script.Shot, cp *Checkpoint) Decision {
	var discard bool
	if cp != nil {
		if usable(cp, keys) {
			return Decision{
				Start:     cp.Step,
				Seed:      cp.Script.Clone(),
				SeedShots: script.CloneShots(cp.Shots),
				Resumed:   true,
				Reason:    "resuming from checkpoint at " + string(cp.Step),
			}
		}
		discard = true
	}

	decision := Decision{DiscardCheckpoint: discard}
	switch {
	case previous == nil:
		decision.Start = StageStructure
		decision.Reason = "no previous script"
		return decision
	case previous.GenerationMeta.StructureKey != keys.Structure:
		decision.Start = StageStructure
		decision.Reason = "structure inputs changed"
		return decision
	}

	decision.Seed = previous.Clone()
	switch {
	case previous.GenerationMeta.VisualsKey != keys.Visuals:
		decision.Start = StageVisuals
		decision.Reason = "visual inputs changed"
	case previous.GenerationMeta.ShotsKey != keys.Shots:
		decision.Start = StageShots
		decision.Reason = "shot inputs changed"
	case len(previousShots) == 0:
		decision.Start = StageShots
		decision.Reason = "no shots generated yet"
	default:
		decision.Start = StageDone
		decision.SeedShots = script.CloneShots(previousShots)
		decision.Reason = "no changes detected"
	}
	return decision
}

func usable(cp *Checkpoint, keys fingerprint.Keys) bool {
	if cp.ConfigKey == "" || cp.ConfigKey != keys.Config || !cp.Step.Valid() {
		return false
	}
	// Every stage after structure builds on the checkpointed script.
	return cp.Step == StageStructure || cp.Script != nil
}
