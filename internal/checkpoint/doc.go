// Package checkpoint persists pipeline checkpoints in SQLite and guards each
// project episode with a file lock so only one process runs it at a time.
//
// Store implements pipeline.CheckpointStore. Each session owns one row that
// is overwritten after every stage and removed when a run completes. Writes
// retry briefly on SQLITE_BUSY since the CLI and tests may share a database.
package checkpoint
