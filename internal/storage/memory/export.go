// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/wlsgn1217/MARBLER/pkg/core"
)

// EpisodeExport is the root JSON structure
type EpisodeExport struct {
	ID        string          `json:"id"`
	Seed      int64           `json:"seed"`
	StartTime time.Time       `json:"startTime"`
	EndTime   time.Time       `json:"endTime"`
	NumAgents int             `json:"numAgents"`
	Arena     core.Arena      `json:"arena"`
	Obstacles []core.Obstacle `json:"obstacles"`
	Zones     []ZoneJSON      `json:"zones"`
	Spawns    core.Poses      `json:"spawns"`
	Sampled   int             `json:"sampled"`
	Steps     []StepJSON      `json:"steps"`
	Summary   SummaryJSON     `json:"summary"`
}

// ZoneJSON is a zone with its display label
type ZoneJSON struct {
	core.Zone
	Label string `json:"label"`
}

// StepJSON is one step. Agents rows are
// [x, y, theta, goalX, goalY, action, loaded, reward, distance].
type StepJSON struct {
	Step       int     `json:"step"`
	Time       string  `json:"time"`
	Message    string  `json:"message,omitempty"`
	Terminated bool    `json:"terminated"`
	Agents     [][]any `json:"agents"`
}

// SummaryJSON holds the episode totals
type SummaryJSON struct {
	Steps       int     `json:"steps"`
	TotalReward float64 `json:"totalReward"`
	Loads       int     `json:"loads"`
	Unloads     int     `json:"unloads"`
	Distance    float64 `json:"distance"`
	Message     string  `json:"message,omitempty"`
}

// exportJSON writes the episode data to a (optionally gzipped) JSON file
func (b *Backend) exportJSON(s *core.EpisodeSummary) error {
	export := b.buildExport(s)

	timestamp := b.episode.StartTime.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s.json.gz", b.episode.ID, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", b.episode.ID, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport(s *core.EpisodeSummary) EpisodeExport {
	ep := b.episode
	export := EpisodeExport{
		ID:        ep.ID,
		Seed:      ep.Seed,
		StartTime: ep.StartTime.UTC(),
		EndTime:   s.EndTime.UTC(),
		NumAgents: ep.NumAgents,
		Arena:     ep.Arena,
		Obstacles: ep.Obstacles,
		Zones:     make([]ZoneJSON, len(ep.Zones)),
		Spawns:    ep.Spawns,
		Sampled:   ep.Sampled,
		Steps:     make([]StepJSON, 0, len(b.steps)),
		Summary: SummaryJSON{
			Steps:       s.Steps,
			TotalReward: s.TotalReward,
			Loads:       s.Loads,
			Unloads:     s.Unloads,
			Distance:    s.Distance,
			Message:     s.Message,
		},
	}
	if export.Obstacles == nil {
		export.Obstacles = []core.Obstacle{}
	}

	labels := core.ZoneLabels(ep.Zones)
	for i, z := range ep.Zones {
		export.Zones[i] = ZoneJSON{Zone: z, Label: labels[i]}
	}

	for _, rec := range b.steps {
		step := StepJSON{
			Step:       rec.Step,
			Time:       rec.Time.UTC().Format(time.RFC3339Nano),
			Message:    rec.Message,
			Terminated: rec.Terminated,
			Agents:     make([][]any, len(rec.Agents)),
		}
		for i, a := range rec.Agents {
			step.Agents[i] = []any{
				a.Pose.X,
				a.Pose.Y,
				a.Pose.Theta,
				a.Goal.X,
				a.Goal.Y,
				a.Action.String(),
				boolToInt(a.Loaded),
				a.Reward,
				a.Distance,
			}
		}
		export.Steps = append(export.Steps, step)
	}

	return export
}

func writeJSON(path string, data EpisodeExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data EpisodeExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := encodeGzipJSON(f, data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// encodeGzipJSON reports the gzip trailer flush, which is where a full disk
// usually shows up.
func encodeGzipJSON(w io.Writer, data EpisodeExport) error {
	gzWriter := gzip.NewWriter(w)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		_ = gzWriter.Close()
		return fmt.Errorf("failed to encode export: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return fmt.Errorf("failed to flush gzip stream: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
