package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"shotforge/internal/checkpoint"
	"shotforge/internal/pipeline"
	"shotforge/internal/project"
)

func newCheckpointCommand(ctx *commandContext) *cobra.Command {
	checkpointCmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect or discard saved pipeline progress",
	}

	checkpointCmd.AddCommand(newCheckpointShowCommand(ctx))
	checkpointCmd.AddCommand(newCheckpointClearCommand(ctx))
	checkpointCmd.AddCommand(newCheckpointListCommand(ctx))

	return checkpointCmd
}

func sessionFromProject(path string) (pipeline.SessionKey, error) {
	doc, err := project.LoadDocument(path)
	if err != nil {
		return pipeline.SessionKey{}, err
	}
	key := pipeline.SessionKey{ProjectID: doc.Draft.ProjectID, EpisodeID: doc.Draft.EpisodeID}
	return key, key.Validate()
}

func openCheckpointStore(ctx *commandContext) (*checkpoint.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return checkpoint.Open(cfg.CheckpointDBPath())
}

func newCheckpointShowCommand(ctx *commandContext) *cobra.Command {
	var projectPath string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the saved checkpoint for a project episode",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := sessionFromProject(projectPath)
			if err != nil {
				return err
			}
			store, err := openCheckpointStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			cp, err := store.Load(cmd.Context(), key)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if cp == nil {
				if jsonOutput {
					return writeJSON(cmd, nil)
				}
				fmt.Fprintf(out, "No checkpoint for %s\n", key)
				return nil
			}
			if jsonOutput {
				return writeJSON(cmd, cp)
			}
			characters, scenes, props := 0, 0, 0
			if cp.Script != nil {
				characters, scenes, props = len(cp.Script.Characters), len(cp.Script.Scenes), len(cp.Script.Props)
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Session", "Next stage", "Config key", "Characters", "Scenes", "Props", "Shots", "Updated"},
				[][]string{{
					key.String(),
					string(cp.Step),
					cp.ConfigKey,
					fmt.Sprint(characters),
					fmt.Sprint(scenes),
					fmt.Sprint(props),
					fmt.Sprint(len(cp.Shots)),
					cp.UpdatedAt.Local().Format(time.DateTime),
				}},
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectPath, "project", "p", "", "Project document (.json, .yaml, .yml)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the checkpoint as JSON")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func newCheckpointClearCommand(ctx *commandContext) *cobra.Command {
	var projectPath string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Discard the saved checkpoint so the next run plans from scratch",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := sessionFromProject(projectPath)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			lock, err := checkpoint.AcquireSessionLock(cfg.LockDir(), key)
			if err != nil {
				if errors.Is(err, checkpoint.ErrSessionBusy) {
					return fmt.Errorf("episode %s is generating; stop that run before clearing its checkpoint", key)
				}
				return err
			}
			defer lock.Release()

			store, err := openCheckpointStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Clear(cmd.Context(), key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared checkpoint for %s\n", key)
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectPath, "project", "p", "", "Project document (.json, .yaml, .yml)")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func newCheckpointListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every saved checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCheckpointStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			summaries, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No checkpoints")
				return nil
			}
			rows := make([][]string, 0, len(summaries))
			for _, s := range summaries {
				rows = append(rows, []string{s.Session.String(), string(s.Step), s.ConfigKey, s.UpdatedAt.Local().Format(time.DateTime)})
			}
			fmt.Fprintln(out, renderTable([]string{"Session", "Next stage", "Config key", "Updated"}, rows, nil))
			return nil
		},
	}
}
