// Package pipeline drives the staged script-to-shot generation run.
//
// A run moves through structure, visuals, and shots before reaching done.
// Plan decides where a run starts: a checkpoint saved for the exact same
// draft configuration resumes where it stopped; otherwise the stage
// fingerprints recorded on the previous script pick the first stage whose
// inputs changed, and a run with nothing changed is a no-op.
//
// The Orchestrator persists a checkpoint for the next stage after every
// successful stage, so an interrupted run repeats at most one stage. Failures
// surface as *StageError; cancellation is reported separately from failure
// and both leave the last checkpoint in place. Sessions guarantees a single
// live run per project session.
package pipeline
