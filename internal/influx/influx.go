package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/wlsgn1217/MARBLER/internal/config"
	"github.com/wlsgn1217/MARBLER/pkg/core"
)

// Measurement names
const (
	MeasurementAgentStep = "agent_step"
	MeasurementEpisode   = "episode"
)

// ErrDisabled is returned by Connect when influx.enabled is false
var ErrDisabled = errors.New("influxdb is disabled")

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client       influxdb2.Client
	Writer       influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	Logger       zerolog.Logger

	cfg        config.InfluxConfig
	backupFile *os.File
	mu         sync.Mutex
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger, cfg config.InfluxConfig) *Manager {
	return &Manager{
		Logger: log,
		cfg:    cfg,
	}
}

// Connect establishes a connection to InfluxDB. When the server cannot be
// reached, points are appended to a gzip line-protocol backup file instead.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		m.cfg.URL,
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.Client.Ping(ctx)

	if err != nil || !running {
		m.IsValid = false
		m.Logger.Info().Str("backupPath", m.cfg.BackupPath).
			Msg("Failed to initialize InfluxDB client, writing to backup file")
		if err := m.openBackup(); err != nil {
			return err
		}
		return nil
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.createWriter()
	m.IsValid = true
	m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.BackupWriter != nil {
		return nil
	}
	if dir := filepath.Dir(m.cfg.BackupPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating backup directory: %w", err)
		}
	}
	file, err := os.OpenFile(m.cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgName := m.cfg.Org

	// ensure org exists
	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	// ensure bucket exists with 90 day retention
	if _, err = m.Client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err != nil {
		m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 90, // 90 days
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", m.cfg.Bucket).Msg("Error creating bucket")
			return err
		}
	}

	return nil
}

func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(m.cfg.Org, m.cfg.Bucket)

	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}(m.Writer.Errors())
}

// WritePoint writes a point to InfluxDB or backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.IsValid {
		m.Writer.WritePoint(point)
		return nil
	}
	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Duration(1*time.Nanosecond))
	if _, err := m.BackupWriter.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %s", err)
	}
	return nil
}

// WriteStep writes one point per agent for the step.
func (m *Manager) WriteStep(rec *core.StepRecord) error {
	for _, p := range StepPoints(rec) {
		if err := m.WritePoint(p); err != nil {
			return err
		}
	}
	return nil
}

// WriteSummary writes the episode totals.
func (m *Manager) WriteSummary(s *core.EpisodeSummary) error {
	return m.WritePoint(SummaryPoint(s))
}

// StartEpisode is a no-op; episodes appear in Influx through their steps.
func (m *Manager) StartEpisode(*core.Episode) error { return nil }

// RecordStep implements recorder.Sink.
func (m *Manager) RecordStep(rec *core.StepRecord) error { return m.WriteStep(rec) }

// EndEpisode implements recorder.Sink.
func (m *Manager) EndEpisode(s *core.EpisodeSummary) error { return m.WriteSummary(s) }

// Close flushes pending writes and releases the client and backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}
	var err error
	if m.BackupWriter != nil {
		err = m.BackupWriter.Close()
		if cerr := m.backupFile.Close(); err == nil {
			err = cerr
		}
		m.BackupWriter = nil
		m.backupFile = nil
	}
	m.IsValid = false
	return err
}

// StepPoints converts a step into one agent_step point per agent.
func StepPoints(rec *core.StepRecord) []*influxdb2_write.Point {
	points := make([]*influxdb2_write.Point, 0, len(rec.Agents))
	for _, a := range rec.Agents {
		p := influxdb2_write.NewPointWithMeasurement(MeasurementAgentStep).
			AddTag("episode", rec.EpisodeID).
			AddTag("agent", strconv.Itoa(a.Index)).
			AddTag("action", a.Action.String()).
			AddField("step", rec.Step).
			AddField("x", a.Pose.X).
			AddField("y", a.Pose.Y).
			AddField("theta", a.Pose.Theta).
			AddField("loaded", a.Loaded).
			AddField("reward", a.Reward).
			AddField("distance", a.Distance).
			SetTime(rec.Time).
			SortTags()
		points = append(points, p)
	}
	return points
}

// SummaryPoint converts the episode totals into an episode point.
func SummaryPoint(s *core.EpisodeSummary) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(MeasurementEpisode).
		AddTag("episode", s.EpisodeID).
		AddField("steps", s.Steps).
		AddField("total_reward", s.TotalReward).
		AddField("loads", s.Loads).
		AddField("unloads", s.Unloads).
		AddField("distance", s.Distance).
		SetTime(s.EndTime)
	if s.Message != "" {
		p.AddTag("message", s.Message)
	}
	return p.SortTags()
}
