package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"shotforge/internal/assetmatch"
	"shotforge/internal/project"
	"shotforge/internal/script"
	"shotforge/internal/services"
)

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var projectPath string
	var libraryPath string
	var outputPath string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match generated characters, scenes, and props against an asset library",
		Long: `Compare the project's generated entities with the asset library and
record the best library candidate for each. Review the output file, then
commit it with 'shotforge apply'.`,
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
			if doc.Script == nil {
				return errors.New("project has no generated script; run 'shotforge generate' first")
			}
			lib, err := project.LoadLibrary(libraryPath)
			if err != nil {
				return err
			}

			matcher := assetmatch.NewMatcher(assetmatch.PolicyFromConfig(cfg.Matching), logger)
			result := matcher.Match(doc.Script, lib)

			if outputPath != "" {
				if err := project.WriteFile(outputPath, result); err != nil {
					return err
				}
			}
			if jsonOutput {
				return writeJSON(cmd, result)
			}

			out := cmd.OutOrStdout()
			var rows [][]string
			rows = appendMatchRows(rows, result.Characters)
			rows = appendMatchRows(rows, result.Scenes)
			rows = appendMatchRows(rows, result.Props)
			if len(rows) == 0 {
				fmt.Fprintln(out, "Script has no entities to match.")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Kind", "ID", "Generated", "Library", "Score", "Reuse"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			total := result.Matched(script.KindCharacter) + result.Matched(script.KindScene) + result.Matched(script.KindProp)
			fmt.Fprintf(out, "%d of %d entities have a library match\n", total, len(rows))
			if outputPath != "" {
				fmt.Fprintf(out, "Wrote matches to %s\n", outputPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectPath, "project", "p", "", "Project document (.json, .yaml, .yml)")
	cmd.Flags().StringVarP(&libraryPath, "library", "l", "", "Asset library (.json, .yaml, .yml)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write match results for review")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print match results as JSON")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("library")
	return cmd
}

func appendMatchRows[T script.Asset](rows [][]string, matches []assetmatch.Match[T]) [][]string {
	for _, m := range matches {
		library, score := "-", "-"
		if m.Found() {
			library = fmt.Sprintf("%s (%s)", m.Library.AssetName(), m.Library.AssetID())
			score = strconv.FormatFloat(m.Score, 'f', 3, 64)
		}
		rows = append(rows, []string{
			string(m.AI.Kind()),
			m.AI.AssetID(),
			m.AI.AssetName(),
			library,
			score,
			yesNo(m.Reuse),
		})
	}
	return rows
}

// declineMatch clears reuse for the generated entity with aiID, whatever its kind.
func declineMatch(result *assetmatch.Result, aiID string) error {
	for _, kind := range []script.Kind{script.KindCharacter, script.KindScene, script.KindProp} {
		err := result.SetReuse(kind, aiID, false)
		if err == nil {
			return nil
		}
		if !errors.Is(err, services.ErrNotFound) {
			return err
		}
	}
	return fmt.Errorf("decline %q: no generated entity with that id in the match results", aiID)
}
