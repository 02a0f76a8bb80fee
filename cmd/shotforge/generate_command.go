package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"shotforge/internal/checkpoint"
	"shotforge/internal/generation"
	"shotforge/internal/logging"
	"shotforge/internal/pipeline"
	"shotforge/internal/preflight"
	"shotforge/internal/project"
	"shotforge/internal/services/llm"
)

// lockPollInterval paces both the running process's check for a cancel
// request and the new process's wait for the lock.
const lockPollInterval = 100 * time.Millisecond

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var projectPath string
	var runPreflight bool
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run the staged pipeline for a project episode",
		Long: `Run structure, visuals, and shots generation for the project document.

Only the stages affected by draft changes are re-run. An interrupted run
(Ctrl+C or a failed stage) resumes from its last checkpoint next time.

Starting generate while another shotforge process is generating the same
episode asks that process to stop at once and waits for it; its finished
stages stay checkpointed and this run resumes from them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireLLM(); err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			doc, err := project.LoadDocument(projectPath)
			if err != nil {
				return err
			}
			key := pipeline.SessionKey{ProjectID: doc.Draft.ProjectID, EpisodeID: doc.Draft.EpisodeID}

			lock, err := acquireGenerateLock(cmd, cfg.LockDir(), key, wait)
			if err != nil {
				return err
			}
			defer lock.Release()

			if runPreflight {
				if check := preflight.CheckLLM(cmd.Context(), "Generation LLM", cfg.GetLLM()); !check.Passed {
					return fmt.Errorf("preflight: %s: %s", check.Name, check.Detail)
				}
			}

			store, err := checkpoint.Open(cfg.CheckpointDBPath())
			if err != nil {
				return err
			}
			defer store.Close()

			client := newLLMClient(cfg.GetLLM(),
				llm.WithRetryMaxAttempts(cfg.Generation.RetryAttempts),
				llm.WithRetryBackoff(time.Duration(cfg.Generation.RetryBackoffMS)*time.Millisecond, 0),
				llm.WithTemperature(cfg.Generation.Temperature),
			)
			gen := generation.New(client, generation.Options{Logger: logger})
			orch := pipeline.New(gen, store, pipeline.Options{
				Logger:   logger,
				Observer: progressObserver(cmd.ErrOrStderr()),
			})

			sessions := pipeline.NewSessions()
			var result *pipeline.Result
			err = sessions.Run(cmd.Context(), key, func(runCtx context.Context) error {
				lock.WatchCancel(runCtx, lockPollInterval, func() {
					logger.Info("newer generate run requested this session",
						logging.String(logging.FieldEventType, "session_superseded"),
						logging.String("session", key.String()),
					)
					sessions.Cancel(key)
				})
				var runErr error
				result, runErr = orch.Run(runCtx, pipeline.Request{
					Draft:         doc.Draft,
					Previous:      doc.Script,
					PreviousShots: doc.Shots,
				})
				return runErr
			})
			if err != nil {
				var stageErr *pipeline.StageError
				if errors.As(err, &stageErr) {
					logger.Debug("generation stopped", logging.Error(err))
					return errors.New(stageErr.UserMessage())
				}
				return err
			}

			out := cmd.OutOrStdout()
			if result.NoChanges {
				fmt.Fprintln(out, "No changes detected; project is up to date.")
				return nil
			}
			doc.Script = result.Script
			doc.Shots = result.Shots
			if err := project.SaveDocument(projectPath, doc); err != nil {
				return err
			}
			fmt.Fprintf(out, "Stages run: %s\n", stageList(result.Executed))
			if result.Resumed {
				fmt.Fprintln(out, "Resumed from checkpoint")
			}
			fmt.Fprintf(out, "Done: %s\n", result.Message)
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectPath, "project", "p", "", "Project document (.json, .yaml, .yml)")
	cmd.Flags().BoolVar(&runPreflight, "preflight", false, "Check LLM reachability before generating")
	cmd.Flags().DurationVar(&wait, "wait", 2*time.Minute, "How long to wait for a running generation of the same episode to stop")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

// acquireGenerateLock takes the episode lock. When another process holds it,
// that process is asked to cancel and the lock is awaited for up to wait.
func acquireGenerateLock(cmd *cobra.Command, dir string, key pipeline.SessionKey, wait time.Duration) (*checkpoint.SessionLock, error) {
	lock, err := checkpoint.AcquireSessionLock(dir, key)
	if !errors.Is(err, checkpoint.ErrSessionBusy) {
		return lock, err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Stopping the generation already running for %s\n", key)
	if err := checkpoint.RequestCancel(dir, key); err != nil {
		return nil, err
	}
	waitCtx, cancel := context.WithTimeout(cmd.Context(), wait)
	defer cancel()
	lock, err = checkpoint.AcquireSessionLockContext(waitCtx, dir, key, lockPollInterval)
	if errors.Is(err, checkpoint.ErrSessionBusy) {
		return nil, fmt.Errorf("episode %s is still generating in another shotforge process after %s", key, wait)
	}
	return lock, err
}

func progressObserver(w io.Writer) pipeline.Observer {
	return pipeline.ObserverFunc(func(e pipeline.Event) {
		switch e.Type {
		case pipeline.EventStageStarted:
			fmt.Fprintf(w, "→ %s\n", e.Stage)
		case pipeline.EventCheckpointDiscarded:
			fmt.Fprintf(w, "Discarded stale checkpoint at %s (draft changed)\n", e.Stage)
		case pipeline.EventRunStarted:
			if e.Stage != pipeline.StageDone {
				fmt.Fprintf(w, "Starting at %s: %s\n", e.Stage, e.Message)
			}
		}
	})
}

func stageList(stages []pipeline.Stage) string {
	if len(stages) == 0 {
		return "none"
	}
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
