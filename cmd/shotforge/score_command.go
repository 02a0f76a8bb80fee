package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"shotforge/internal/config"
	"shotforge/internal/project"
	"shotforge/internal/quality"
	"shotforge/internal/script"
	"shotforge/internal/services/llm"
)

type shotScore struct {
	ShotID     string                   `json:"shotId"`
	Assessment script.QualityAssessment `json:"assessment"`
}

func newScoreCommand(ctx *commandContext) *cobra.Command {
	var projectPath string
	var shotID string
	var useModel bool
	var write bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score shots for production readiness",
		Long: `Score every shot (or one with --shot) on prompt readiness, asset coverage,
keyframe and video execution, and continuity risk.

The rule scorer is used unless --model is set or quality.mode is "model";
the model scorer falls back to the rules when the model is unavailable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
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
			if len(doc.Shots) == 0 {
				return errors.New("project has no shots; run 'shotforge generate' first")
			}

			var assessor quality.Assessor = quality.RuleAssessor{}
			if useModel || cfg.Quality.Mode == config.QualityModeModel {
				if err := cfg.RequireLLM(); err != nil {
					return err
				}
				llmCfg := cfg.QualityLLM()
				assessor = quality.NewModelAssessor(newLLMClient(llmCfg, llm.WithRetryMaxAttempts(1), llm.WithTemperature(0)), quality.ModelOptions{
					Attempts: cfg.Quality.RetryAttempts,
					Backoff:  time.Duration(cfg.Quality.RetryBackoffMS) * time.Millisecond,
					Timeout:  time.Duration(llmCfg.TimeoutSeconds) * time.Second,
					Logger:   logger,
				})
			}

			var scores []shotScore
			for i := range doc.Shots {
				shot := &doc.Shots[i]
				if shotID != "" && shot.ID != shotID {
					continue
				}
				in := quality.InputFor(doc.Script, *shot, doc.Draft.VideoModel, cfg.Quality.EndFrameModels)
				assessment := assessor.Assess(cmd.Context(), in)
				assessment.CheckedAt = time.Now().UTC()
				if write {
					shot.QualityAssessment = &assessment
				}
				scores = append(scores, shotScore{ShotID: shot.ID, Assessment: assessment})
			}
			if len(scores) == 0 {
				return fmt.Errorf("shot %q not found", shotID)
			}
			if err := cmd.Context().Err(); err != nil {
				return err
			}

			if write {
				if err := project.SaveDocument(projectPath, doc); err != nil {
					return err
				}
			}
			if jsonOutput {
				return writeJSON(cmd, scores)
			}
			renderScores(cmd, scores, shotID != "")
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectPath, "project", "p", "", "Project document (.json, .yaml, .yml)")
	cmd.Flags().StringVar(&shotID, "shot", "", "Score a single shot and list its checks")
	cmd.Flags().BoolVar(&useModel, "model", false, "Use the model scorer regardless of quality.mode")
	cmd.Flags().BoolVar(&write, "write", false, "Store the assessments in the project document")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print assessments as JSON")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func renderScores(cmd *cobra.Command, scores []shotScore, detailed bool) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	rows := make([][]string, 0, len(scores))
	for _, s := range scores {
		a := s.Assessment
		rows = append(rows, []string{s.ShotID, strconv.Itoa(a.Score), gradeLabel(a.Grade, colorize), a.Source, a.Summary})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Shot", "Score", "Grade", "Source", "Summary"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
	))
	if !detailed {
		return
	}

	checks := scores[0].Assessment.Checks
	checkRows := make([][]string, 0, len(checks))
	for _, c := range checks {
		checkRows = append(checkRows, []string{c.Label, strconv.Itoa(c.Score), strconv.Itoa(c.Weight), passLabel(c.Passed, colorize), c.Details})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Check", "Score", "Weight", "Passed", "Details"},
		checkRows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignLeft},
	))
}
