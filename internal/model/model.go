package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Episode{},
	&Step{},
	&AgentState{},
}

// Episode is one reset-to-termination run of the warehouse
type Episode struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	UUID      string    `json:"uuid" gorm:"size:36;uniqueIndex:idx_episode_uuid"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Seed      int64     `json:"seed"`
	NumAgents int       `json:"numAgents"`

	ArenaLeft  float64 `json:"arenaLeft"`
	ArenaRight float64 `json:"arenaRight"`
	ArenaUp    float64 `json:"arenaUp"`
	ArenaDown  float64 `json:"arenaDown"`

	// Origin is the floor origin in EPSG:3857
	Origin    geom.Point     `json:"origin"`
	Obstacles datatypes.JSON `json:"obstacles" gorm:"default:'[]'"`
	Zones     datatypes.JSON `json:"zones" gorm:"default:'[]'"`
	// Spawns are the sampled poses before the frame shift
	Spawns  datatypes.JSON `json:"spawns" gorm:"default:'[]'"`
	Sampled int            `json:"sampled"`

	Steps       int     `json:"steps"`
	TotalReward float64 `json:"totalReward"`
	Loads       int     `json:"loads"`
	Unloads     int     `json:"unloads"`
	Distance    float64 `json:"distance"`
	Message     string  `json:"message" gorm:"size:255"`
}

func (*Episode) TableName() string {
	return "episodes"
}

// Step is one environment step
type Step struct {
	ID         uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	EpisodeID  uint      `json:"episodeId" gorm:"index:idx_step_episode_id"`
	Episode    Episode   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:EpisodeID;"`
	Number     int       `json:"number" gorm:"index:idx_step_number"`
	Time       time.Time `json:"time"`
	Message    string    `json:"message" gorm:"size:255"`
	Terminated bool      `json:"terminated" gorm:"default:false"`
	Reward     float64   `json:"reward"` // sum over agents
}

func (*Step) TableName() string {
	return "steps"
}

// AgentState is one agent's state after a step
type AgentState struct {
	ID         uint    `json:"id" gorm:"primarykey;autoIncrement;"`
	EpisodeID  uint    `json:"episodeId" gorm:"index:idx_agentstate_episode_id"`
	Episode    Episode `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:EpisodeID;"`
	StepNumber int     `json:"step" gorm:"index:idx_agentstate_step"`
	AgentIndex int     `json:"agent" gorm:"index:idx_agentstate_agent"`

	X        float64    `json:"x"`
	Y        float64    `json:"y"`
	Theta    float64    `json:"theta"`
	Position geom.Point `json:"position"` // georeferenced X/Y
	GoalX    float64    `json:"goalX"`
	GoalY    float64    `json:"goalY"`
	Action   string     `json:"action" gorm:"size:16"`
	Loaded   bool       `json:"loaded" gorm:"default:false"`
	Reward   float64    `json:"reward"`
	Distance float64    `json:"distance"`
}

func (*AgentState) TableName() string {
	return "agent_states"
}
