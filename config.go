package ligament

import (
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"gopkg.in/yaml.v3"
)

const (
	DefaultWorkers             = 1
	DefaultSubSteps            = 4
	DefaultSolverIterations    = 4
	DefaultInnerIterations     = 4
	DefaultInnerTolerance      = 0.125
	DefaultFreezeSpeed         = 0.05
	DefaultFreezeAccel         = 0.1
	DefaultSleepFrames         = 8
	DefaultPreconditionerRatio = 25.0
	DefaultMinRegularizer      = 1.0e-5
	DefaultJointStiffness      = 0.2
	DefaultContactStiffness    = 0.2
)

// Config holds every tunable of the solver. It is copied into the world on creation.
type Config struct {
	Workers          int     `yaml:"workers"`
	SubSteps         int     `yaml:"sub_steps"`
	SolverIterations int     `yaml:"solver_iterations"`
	InnerIterations  int     `yaml:"inner_iterations"`
	InnerTolerance   float64 `yaml:"inner_tolerance"`

	// Sleep thresholds: speeds in m/s (rad/s), accelerations in m/s² (rad/s²)
	FreezeSpeed float64 `yaml:"freeze_speed"`
	FreezeAccel float64 `yaml:"freeze_accel"`
	SleepFrames int     `yaml:"sleep_frames"`

	// PreconditionerRatio is the mass ratio above which joint rows are preconditioned
	PreconditionerRatio float64 `yaml:"preconditioner_ratio"`
	MinRegularizer      float64 `yaml:"min_regularizer"`

	// Fraction of the position error recovered per step
	JointStiffness   float64 `yaml:"joint_stiffness"`
	ContactStiffness float64 `yaml:"contact_stiffness"`

	Logger logr.Logger `yaml:"-"`
}

func DefaultConfig() *Config {
	return &Config{
		Workers:             DefaultWorkers,
		SubSteps:            DefaultSubSteps,
		SolverIterations:    DefaultSolverIterations,
		InnerIterations:     DefaultInnerIterations,
		InnerTolerance:      DefaultInnerTolerance,
		FreezeSpeed:         DefaultFreezeSpeed,
		FreezeAccel:         DefaultFreezeAccel,
		SleepFrames:         DefaultSleepFrames,
		PreconditionerRatio: DefaultPreconditionerRatio,
		MinRegularizer:      DefaultMinRegularizer,
		JointStiffness:      DefaultJointStiffness,
		ContactStiffness:    DefaultContactStiffness,
		Logger:              logr.Discard(),
	}
}

// LoadConfig reads a yaml file over the default configuration
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	switch {
	case c.Workers < 1:
		return fmt.Errorf("%w: workers %d", ErrInvalidConfig, c.Workers)
	case c.SubSteps < 1:
		return fmt.Errorf("%w: sub_steps %d", ErrInvalidConfig, c.SubSteps)
	case c.SolverIterations < 0:
		return fmt.Errorf("%w: solver_iterations %d", ErrInvalidConfig, c.SolverIterations)
	case c.InnerIterations < 0:
		return fmt.Errorf("%w: inner_iterations %d", ErrInvalidConfig, c.InnerIterations)
	case !(c.InnerTolerance >= 0):
		return fmt.Errorf("%w: inner_tolerance %v", ErrInvalidConfig, c.InnerTolerance)
	case !(c.FreezeSpeed >= 0) || !(c.FreezeAccel >= 0):
		return fmt.Errorf("%w: freeze thresholds %v, %v", ErrInvalidConfig, c.FreezeSpeed, c.FreezeAccel)
	case c.SleepFrames < 1:
		return fmt.Errorf("%w: sleep_frames %d", ErrInvalidConfig, c.SleepFrames)
	case !(c.PreconditionerRatio >= 1):
		return fmt.Errorf("%w: preconditioner_ratio %v", ErrInvalidConfig, c.PreconditionerRatio)
	case !(c.MinRegularizer > 0):
		return fmt.Errorf("%w: min_regularizer %v", ErrInvalidConfig, c.MinRegularizer)
	case !(c.JointStiffness >= 0 && c.JointStiffness <= 1):
		return fmt.Errorf("%w: joint_stiffness %v", ErrInvalidConfig, c.JointStiffness)
	case !(c.ContactStiffness >= 0 && c.ContactStiffness <= 1):
		return fmt.Errorf("%w: contact_stiffness %v", ErrInvalidConfig, c.ContactStiffness)
	}

	return nil
}
