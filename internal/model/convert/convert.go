// Package convert maps core episode records onto GORM models
package convert

import (
	"encoding/json"

	"github.com/wlsgn1217/MARBLER/internal/geo"
	"github.com/wlsgn1217/MARBLER/internal/model"
	"github.com/wlsgn1217/MARBLER/pkg/core"
	"gorm.io/datatypes"
)

// toJSON marshals v for a jsonb column, storing "[]" for empty input.
func toJSON(v any) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(data)
}

// CoreToEpisode converts a core.Episode to a GORM model.Episode.
// core.Episode.ID maps to model.Episode.UUID.
func CoreToEpisode(e *core.Episode, ref geo.Georef) model.Episode {
	return model.Episode{
		UUID:       e.ID,
		StartTime:  e.StartTime,
		Seed:       e.Seed,
		NumAgents:  e.NumAgents,
		ArenaLeft:  e.Arena.Left,
		ArenaRight: e.Arena.Right,
		ArenaUp:    e.Arena.Up,
		ArenaDown:  e.Arena.Down,
		Origin:     ref.Origin(),
		Obstacles:  toJSON(e.Obstacles),
		Zones:      toJSON(e.Zones),
		Spawns:     toJSON(e.Spawns),
		Sampled:    e.Sampled,
	}
}

// ApplySummary copies end-of-episode totals onto the stored episode.
func ApplySummary(m *model.Episode, s *core.EpisodeSummary) {
	m.EndTime = s.EndTime
	m.Steps = s.Steps
	m.TotalReward = s.TotalReward
	m.Loads = s.Loads
	m.Unloads = s.Unloads
	m.Distance = s.Distance
	m.Message = s.Message
}

// CoreToStep converts a core.StepRecord to a step row and one row per agent.
func CoreToStep(episodeID uint, r *core.StepRecord, ref geo.Georef) (model.Step, []model.AgentState) {
	step := model.Step{
		EpisodeID:  episodeID,
		Number:     r.Step,
		Time:       r.Time,
		Message:    r.Message,
		Terminated: r.Terminated,
		Reward:     r.TotalReward(),
	}

	states := make([]model.AgentState, len(r.Agents))
	for i, a := range r.Agents {
		states[i] = model.AgentState{
			EpisodeID:  episodeID,
			StepNumber: r.Step,
			AgentIndex: a.Index,
			X:          a.Pose.X,
			Y:          a.Pose.Y,
			Theta:      a.Pose.Theta,
			Position:   ref.Point(a.Pose),
			GoalX:      a.Goal.X,
			GoalY:      a.Goal.Y,
			Action:     a.Action.String(),
			Loaded:     a.Loaded,
			Reward:     a.Reward,
			Distance:   a.Distance,
		}
	}
	return step, states
}
