package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"shotforge/internal/assetapply"
	"shotforge/internal/assetmatch"
	"shotforge/internal/project"
	"shotforge/internal/script"
)

func newApplyCommand(ctx *commandContext) *cobra.Command {
	var projectPath string
	var matchesPath string
	var declined []string
	var declineAll bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Commit reviewed library matches into the project",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			var result assetmatch.Result
			if err := project.ReadFile(matchesPath, &result); err != nil {
				return err
			}
			if declineAll {
				result.DeclineAll()
			}
			for _, id := range declined {
				if err := declineMatch(&result, id); err != nil {
					return err
				}
			}

			out, err := assetapply.Apply(doc.Script, doc.Shots, result, assetapply.Options{Logger: logger})
			if err != nil {
				return err
			}
			doc.Script = out.Script
			doc.Shots = out.Shots
			doc.CharacterRefs = mergeRefs(doc.CharacterRefs, out.CharacterRefs)
			doc.SceneRefs = mergeRefs(doc.SceneRefs, out.SceneRefs)
			doc.PropRefs = mergeRefs(doc.PropRefs, out.PropRefs)
			if err := project.SaveDocument(projectPath, doc); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Reused %d characters, %d scenes, %d props\n",
				len(out.Remapped[script.KindCharacter]),
				len(out.Remapped[script.KindScene]),
				len(out.Remapped[script.KindProp]),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectPath, "project", "p", "", "Project document (.json, .yaml, .yml)")
	cmd.Flags().StringVarP(&matchesPath, "matches", "m", "", "Match results written by 'shotforge match'")
	cmd.Flags().StringSliceVar(&declined, "decline", nil, "Generated entity IDs to keep instead of reusing the library asset")
	cmd.Flags().BoolVar(&declineAll, "decline-all", false, "Keep every generated entity")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("matches")
	return cmd
}

// mergeRefs keeps references from earlier applies; a newer ref for the same
// library asset replaces the older one in place.
func mergeRefs(existing, added []assetapply.Ref) []assetapply.Ref {
	merged := append([]assetapply.Ref(nil), existing...)
	index := make(map[string]int, len(merged))
	for i, ref := range merged {
		index[ref.EntityID] = i
	}
	for _, ref := range added {
		if i, ok := index[ref.EntityID]; ok {
			merged[i] = ref
			continue
		}
		index[ref.EntityID] = len(merged)
		merged = append(merged, ref)
	}
	return merged
}
