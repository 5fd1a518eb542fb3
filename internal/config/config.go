package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"github.com/wlsgn1217/MARBLER/internal/env"
	"github.com/wlsgn1217/MARBLER/internal/executor"
	"github.com/wlsgn1217/MARBLER/internal/geo"
	"github.com/wlsgn1217/MARBLER/pkg/core"
)

// FileName is the config file looked up in the config directory
const FileName = "marbler.cfg.yaml"

// EnvPrefix prefixes environment variable overrides, e.g. MARBLER_ENV_NAGENTS
const EnvPrefix = "MARBLER"

// ErrInvalidEntry is returned for malformed obstacle or zone entries
var ErrInvalidEntry = errors.New("invalid layout entry")

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	Path     string `json:"path" mapstructure:"path"`         // empty keeps the database in memory
	DumpPath string `json:"dumpPath" mapstructure:"dumpPath"` // in-memory databases are vacuumed here
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// DSN renders the connection string for the gorm postgres driver.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		p.Host, p.Port, p.Username, p.Password, p.Database)
}

// StorageConfig selects and configures the episode store
type StorageConfig struct {
	Type     string         `json:"type" mapstructure:"type"`
	Memory   MemoryConfig   `json:"memory" mapstructure:"memory"`
	SQLite   SQLiteConfig   `json:"sqlite" mapstructure:"sqlite"`
	Postgres PostgresConfig `json:"postgres" mapstructure:"postgres"`
}

// InfluxConfig holds InfluxDB settings
type InfluxConfig struct {
	Enabled    bool
	URL        string
	Token      string
	Org        string
	Bucket     string
	BackupPath string
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	ServiceName string `json:"serviceName" mapstructure:"serviceName"`
}

// GeoConfig anchors the warehouse floor on the globe
type GeoConfig struct {
	OriginLongitude float64 `json:"originLongitude" mapstructure:"originLongitude"`
	OriginLatitude  float64 `json:"originLatitude" mapstructure:"originLatitude"`
}

// ExecutorConfig selects the motion executor
type ExecutorConfig struct {
	Type     string  `json:"type" mapstructure:"type"` // direct or kinematic
	MaxSpeed float64 `json:"maxSpeed" mapstructure:"maxSpeed"`
	Substeps int     `json:"substeps" mapstructure:"substeps"`
}

// Load reads configuration from the YAML file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// LoadDefaults registers defaults and environment overrides without a config file.
func LoadDefaults() {
	setDefaults()
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	d := env.DefaultConfig()
	viper.SetDefault("env.nAgents", d.NumAgents)
	viper.SetDefault("env.left", d.Arena.Left)
	viper.SetDefault("env.right", d.Arena.Right)
	viper.SetDefault("env.up", d.Arena.Up)
	viper.SetDefault("env.down", d.Arena.Down)
	viper.SetDefault("env.stepDist", d.StepDist)
	viper.SetDefault("env.startDist", d.StartDist)
	viper.SetDefault("env.numNeighbors", d.NumNeighbors)
	viper.SetDefault("env.loadReward", d.LoadReward)
	viper.SetDefault("env.unloadReward", d.UnloadReward)
	viper.SetDefault("env.goalWidth", d.GoalWidth)
	viper.SetDefault("env.maxEpisodeSteps", d.MaxEpisodeSteps)
	viper.SetDefault("env.episodes", 1)
	viper.SetDefault("env.seed", d.Seed)
	viper.SetDefault("env.saveFrames", false)
	viper.SetDefault("env.spawnAttempts", d.SpawnAttempts)
	viper.SetDefault("env.obstacles", []any{})
	viper.SetDefault("env.goalZones", []any{})

	viper.SetDefault("executor.type", "direct")
	viper.SetDefault("executor.maxSpeed", 0.2)
	viper.SetDefault("executor.substeps", 5)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.dumpPath", "./recordings/marbler.db")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "marbler")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "marbler")
	viper.SetDefault("influx.bucket", "marbler")
	viper.SetDefault("influx.backupPath", "./recordings/influx_backup.lp.gz")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("metrics.addr", "")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "marbler")

	viper.SetDefault("geo.originLongitude", 0.0)
	viper.SetDefault("geo.originLatitude", 0.0)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetEnvConfig assembles the warehouse configuration.
func GetEnvConfig() (env.Config, error) {
	cfg := env.Config{
		NumAgents: viper.GetInt("env.nAgents"),
		Arena: core.Arena{
			Left:  viper.GetFloat64("env.left"),
			Right: viper.GetFloat64("env.right"),
			Up:    viper.GetFloat64("env.up"),
			Down:  viper.GetFloat64("env.down"),
		},
		StepDist:        viper.GetFloat64("env.stepDist"),
		StartDist:       viper.GetFloat64("env.startDist"),
		NumNeighbors:    viper.GetInt("env.numNeighbors"),
		LoadReward:      viper.GetFloat64("env.loadReward"),
		UnloadReward:    viper.GetFloat64("env.unloadReward"),
		GoalWidth:       viper.GetFloat64("env.goalWidth"),
		MaxEpisodeSteps: viper.GetInt("env.maxEpisodeSteps"),
		Seed:            viper.GetInt64("env.seed"),
		SaveFrames:      viper.GetBool("env.saveFrames"),
		SpawnAttempts:   viper.GetInt("env.spawnAttempts"),
	}

	var err error
	cfg.Obstacles, err = ParseObstacles(viper.Get("env.obstacles"))
	if err != nil {
		return env.Config{}, err
	}
	cfg.Zones, err = ParseZones(viper.Get("env.goalZones"))
	if err != nil {
		return env.Config{}, err
	}
	return cfg, nil
}

// GetEpisodes returns how many episodes the driver should run.
func GetEpisodes() int {
	return viper.GetInt("env.episodes")
}

// GetExecutorConfig returns the executor settings.
func GetExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		Type:     viper.GetString("executor.type"),
		MaxSpeed: viper.GetFloat64("executor.maxSpeed"),
		Substeps: viper.GetInt("executor.substeps"),
	}
}

// NewExecutor builds the configured motion executor.
func NewExecutor(cfg ExecutorConfig, captureFrames bool) (executor.Executor, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "direct":
		return executor.Direct{}, nil
	case "kinematic":
		return executor.NewKinematic(executor.KinematicConfig{
			MaxSpeed:     cfg.MaxSpeed,
			Substeps:     cfg.Substeps,
			CaptureFrame: captureFrames,
		}), nil
	default:
		return nil, fmt.Errorf("unknown executor type: %s", cfg.Type)
	}
}

// GetStorageConfig returns the storage backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:     viper.GetString("storage.sqlite.path"),
			DumpPath: viper.GetString("storage.sqlite.dumpPath"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled: viper.GetBool("influx.enabled"),
		URL: fmt.Sprintf("%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		Bucket:     viper.GetString("influx.bucket"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:     viper.GetBool("otel.enabled"),
		ServiceName: viper.GetString("otel.serviceName"),
	}
}

// GetGeoConfig returns the floor origin.
func GetGeoConfig() GeoConfig {
	return GeoConfig{
		OriginLongitude: viper.GetFloat64("geo.originLongitude"),
		OriginLatitude:  viper.GetFloat64("geo.originLatitude"),
	}
}

// ParseObstacles converts the raw env.obstacles value. Each entry is either
// a list [x, y, w, h] or a string "x,y,w,h".
func ParseObstacles(raw any) ([]core.Obstacle, error) {
	if raw == nil {
		return nil, nil
	}
	entries, err := cast.ToSliceE(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: obstacles: %v", ErrInvalidEntry, err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	out := make([]core.Obstacle, 0, len(entries))
	for i, e := range entries {
		if s, ok := e.(string); ok {
			r, err := geo.RectFromString(s)
			if err != nil {
				return nil, fmt.Errorf("%w: obstacle %d: %w", ErrInvalidEntry, i, err)
			}
			out = append(out, r)
			continue
		}
		fields, err := cast.ToSliceE(e)
		if err != nil || len(fields) != 4 {
			return nil, fmt.Errorf("%w: obstacle %d must be [x, y, w, h]", ErrInvalidEntry, i)
		}
		r, err := rect(fields)
		if err != nil {
			return nil, fmt.Errorf("%w: obstacle %d: %v", ErrInvalidEntry, i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// ParseZones converts the raw env.goalZones value. Each entry is
// [x, y, w, h, kind] with an optional trailing color; extra fields are ignored.
func ParseZones(raw any) ([]core.Zone, error) {
	if raw == nil {
		return nil, nil
	}
	entries, err := cast.ToSliceE(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: zones: %v", ErrInvalidEntry, err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	out := make([]core.Zone, 0, len(entries))
	for i, e := range entries {
		fields, err := cast.ToSliceE(e)
		if err != nil || len(fields) < 5 {
			return nil, fmt.Errorf("%w: zone %d must be [x, y, w, h, kind, color?]", ErrInvalidEntry, i)
		}
		r, err := rect(fields[:4])
		if err != nil {
			return nil, fmt.Errorf("%w: zone %d: %v", ErrInvalidEntry, i, err)
		}
		kind, err := core.ParseZoneKind(cast.ToString(fields[4]))
		if err != nil {
			return nil, fmt.Errorf("%w: zone %d: %w", ErrInvalidEntry, i, err)
		}
		z := core.Zone{Rect: r, Kind: kind}
		if len(fields) > 5 {
			z.Color = cast.ToString(fields[5])
		}
		out = append(out, z)
	}
	return out, nil
}

func rect(fields []any) (core.Rect, error) {
	var v [4]float64
	for i, f := range fields {
		n, err := cast.ToFloat64E(f)
		if err != nil {
			return core.Rect{}, err
		}
		v[i] = n
	}
	return core.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, nil
}
