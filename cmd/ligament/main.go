package main

import (
	"fmt"
	"math"
	"os"

	"github.com/akmonengine/ligament"
	"github.com/akmonengine/ligament/scenario"
	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	dt         float64
	duration   float64
	configFile string
	workers    int
	verbosity  int
	plot       bool
	output     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "ligament",
		Short:         "rigid body constraint solver",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().IntVarP(&verbosity, "verbose", "v", 0, "log verbosity (1 logs every step)")

	runCmd := &cobra.Command{
		Use:   "run [scene]",
		Short: "step a reference scene and report its energy and joint forces",
		Args:  cobra.ExactArgs(1),
		RunE:  runScene,
	}
	runCmd.Flags().Float64Var(&dt, "dt", 1.0/60.0, "timestep")
	runCmd.Flags().Float64Var(&duration, "time", 5.0, "duration")
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	runCmd.Flags().IntVar(&workers, "workers", 0, "worker count, overrides the config")
	runCmd.Flags().BoolVar(&plot, "plot", true, "plot energy and joint force")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list scenes",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range scenario.Names() {
				fmt.Printf("%-10s %s\n", name, dimStyle.Render(scenario.Describe(name)))
			}
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "print or write the default configuration",
		RunE:  writeConfig,
	}
	configCmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")

	rootCmd.AddCommand(runCmd, listCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, warnStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func newLogger() logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, args)
		} else {
			fmt.Fprintln(os.Stderr, args)
		}
	}, funcr.Options{Verbosity: verbosity})
}

func loadConfig() (*ligament.Config, error) {
	cfg := ligament.DefaultConfig()
	if configFile != "" {
		loaded, err := ligament.LoadConfig(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	cfg.Logger = newLogger()

	return cfg, nil
}

func runScene(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !(dt > 0) || !(duration > 0) {
		return fmt.Errorf("dt and time must be positive")
	}

	scene, err := scenario.Build(args[0], cfg)
	if err != nil {
		return err
	}

	steps := int(math.Ceil(duration / dt))
	energy := make([]float64, 0, steps)
	force := make([]float64, 0, steps)
	e0 := scene.Energy()
	var drift float64
	var sleepSteps int

	for range steps {
		if err := scene.Step(dt); err != nil {
			return fmt.Errorf("step %d: %w", len(energy), err)
		}
		e := scene.Energy()
		energy = append(energy, e)
		force = append(force, scene.ProbeForce())
		drift = max(drift, math.Abs(e-e0))
		if scene.World.Stats().ActiveBodies == 0 {
			sleepSteps++
		}
	}

	stats := scene.World.Stats()
	relative := drift
	if scene.Scale > 0 {
		relative = drift / scene.Scale
	}

	fmt.Println(renderPanel(scene.Name, []field{
		{"description", scene.Description},
		{"steps", fmt.Sprintf("%d × %.4fs", steps, dt)},
		{"bodies", fmt.Sprintf("%d (%d active, %d resting)", stats.Bodies, stats.ActiveBodies, stats.RestingBodies)},
		{"joints", fmt.Sprintf("%d (%d active, %d rows)", stats.Joints, stats.ActiveJoints, stats.Rows)},
		{"batches", fmt.Sprintf("%d (%d uniform)", stats.Batches, stats.UniformBatches)},
		{"passes", stats.Passes},
		{"skeletons", stats.Skeletons},
		{"energy drift", fmt.Sprintf("%.3e (%.2f%% of scale)", drift, 100*relative)},
		{"probe force", fmt.Sprintf("%.4f", scene.ProbeForce())},
		{"resting steps", sleepSteps},
	}))
	fmt.Println(renderStatus(relative < 0.05, "energy within 5% of the scene scale"))

	if plot && len(energy) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(energy,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption("total energy (J)"),
		))
		fmt.Println()
		fmt.Println(asciigraph.Plot(force,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption("probe joint force"),
		))
	}

	return nil
}

func writeConfig(cmd *cobra.Command, args []string) error {
	cfg := ligament.DefaultConfig()
	if output != "" {
		if err := ligament.SaveConfig(output, cfg); err != nil {
			return err
		}
		fmt.Println(renderStatus(true, "wrote "+output))
		return nil
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(data))

	return nil
}
