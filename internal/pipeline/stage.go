package pipeline

import (
	"fmt"
	"strings"
)

// Stage names one step of the generation run.
type Stage string

const (
	StageStructure Stage = "structure"
	StageVisuals   Stage = "visuals"
	StageShots     Stage = "shots"
	StageDone      Stage = "done"
)

var stageOrder = []Stage{StageStructure, StageVisuals, StageShots, StageDone}

// Next returns the stage that follows s. Done is terminal.
func (s Stage) Next() Stage {
	for i, candidate := range stageOrder {
		if candidate == s && i+1 < len(stageOrder) {
			return stageOrder[i+1]
		}
	}
	return StageDone
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	for _, candidate := range stageOrder {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStage converts user input to a Stage.
func ParseStage(value string) (Stage, error) {
	stage := Stage(strings.ToLower(strings.TrimSpace(value)))
	if !stage.Valid() {
		return "", fmt.Errorf("unknown stage %q", value)
	}
	return stage, nil
}
