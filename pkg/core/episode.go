// pkg/core/episode.go
package core

import "time"

// Episode describes a recorded episode at reset time
type Episode struct {
	ID         string
	StartTime  time.Time
	Seed       int64
	NumAgents  int
	Arena      Arena
	Obstacles  []Obstacle
	Zones      []Zone
	Spawns     Poses
	Sampled    int // spawns that came from random sampling, the rest are corner fallbacks
	OriginLong float64
	OriginLat  float64
}

// AgentStep is one agent's state after a step
type AgentStep struct {
	Index    int
	Pose     Pose
	Goal     Pose
	Action   Action
	Loaded   bool
	Reward   float64
	Distance float64
}

// StepRecord is a single environment step as seen by recorders
type StepRecord struct {
	EpisodeID  string
	Step       int
	Time       time.Time
	Message    string
	Terminated bool
	Agents     []AgentStep
}

// TotalReward sums all agents' rewards for the step.
func (s *StepRecord) TotalReward() float64 {
	var total float64
	for _, a := range s.Agents {
		total += a.Reward
	}
	return total
}

// EpisodeSummary is produced when an episode ends
type EpisodeSummary struct {
	EpisodeID   string
	EndTime     time.Time
	Steps       int
	TotalReward float64
	Loads       int
	Unloads     int
	Distance    float64
	Message     string
}
