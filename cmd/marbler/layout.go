package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wlsgn1217/MARBLER/internal/config"
	"github.com/wlsgn1217/MARBLER/internal/env"
	"github.com/wlsgn1217/MARBLER/internal/geo"
	"github.com/wlsgn1217/MARBLER/pkg/core"
)

type labeledZone struct {
	Label     string `yaml:"label"`
	core.Zone `yaml:",inline"`
}

type overlapReport struct {
	Zone     string `yaml:"zone"`
	Obstacle int    `yaml:"obstacle"`
}

type layoutReport struct {
	Arena     core.Arena      `yaml:"arena"`
	Obstacles []core.Obstacle `yaml:"obstacles"`
	Zones     []labeledZone   `yaml:"zones"`
	Overlaps  []overlapReport `yaml:"overlaps,omitempty"`
}

func newLayoutCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "layout",
		Short: "Print the effective arena, obstacles and zones as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(*configDir); err != nil {
				return err
			}
			cfg, err := config.GetEnvConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return writeLayout(cmd.OutOrStdout(), cfg)
		},
	}
}

func buildLayout(cfg env.Config) layoutReport {
	obstacles, zones := cfg.Layout()
	labels := core.ZoneLabels(zones)

	report := layoutReport{
		Arena:     cfg.Arena,
		Obstacles: obstacles,
		Zones:     make([]labeledZone, len(zones)),
	}
	for i, z := range zones {
		report.Zones[i] = labeledZone{Label: labels[i], Zone: z}
	}
	for _, o := range geo.Overlaps(zones, obstacles, geo.RobotRadius) {
		report.Overlaps = append(report.Overlaps, overlapReport{Zone: labels[o.Zone], Obstacle: o.Obstacle})
	}
	return report
}

func writeLayout(w io.Writer, cfg env.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(buildLayout(cfg)); err != nil {
		return fmt.Errorf("encoding layout: %w", err)
	}
	return enc.Close()
}
