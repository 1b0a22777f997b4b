package main

import (
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/ravik-dev/kinetiq/internal/config"
	"github.com/ravik-dev/kinetiq/internal/dispatch"
	"github.com/ravik-dev/kinetiq/internal/mirror"
	"github.com/ravik-dev/kinetiq/internal/scene"
	"github.com/ravik-dev/kinetiq/internal/tui"
	"github.com/spf13/cobra"
)

var (
	configFile  string
	preset      string
	workers     int
	dt          float64
	steps       int
	actors      int
	seed        int64
	diagnostics bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "kinetiq",
		Short: "parallel scene stepping engine",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "use preset configuration")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "worker count (0 = GOMAXPROCS)")
	rootCmd.PersistentFlags().BoolVar(&diagnostics, "diagnostics", false, "enable concurrency diagnostics")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "step a scene headless and report timings",
		RunE:  runScene,
	}
	runCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	runCmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "number of steps")
	runCmd.Flags().IntVar(&actors, "actors", config.DefaultActors, "number of actors")
	runCmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "step a scene with a live terminal monitor",
		RunE:  runLive,
	}
	liveCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	liveCmd.Flags().IntVar(&actors, "actors", config.DefaultActors, "number of actors")
	liveCmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "sweep worker counts and compare step latency",
		RunE:  runBench,
	}
	benchCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	benchCmd.Flags().IntVar(&steps, "steps", 60, "steps per worker count")
	benchCmd.Flags().IntVar(&actors, "actors", config.DefaultActors, "number of actors")
	benchCmd.Flags().Int64Var(&seed, "seed", 1, "random seed")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "check a configuration without running it",
		RunE:  validateConfig,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range config.ListPresets() {
				fmt.Println(p)
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, liveCmd, benchCmd, validateCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfig merges preset, config file and CLI flags, in that order of
// increasing precedence.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("workers") {
		cfg.Workers = workers
	}
	if cmd.Flags().Changed("diagnostics") {
		cfg.Diagnostics = diagnostics
	}
	if cmd.Flags().Changed("dt") {
		cfg.Dt = dt
	}
	if f := cmd.Flags().Lookup("steps"); f != nil && f.Changed {
		cfg.Steps = steps
	}
	if f := cmd.Flags().Lookup("actors"); f != nil && f.Changed {
		cfg.Scene.Actors = actors
	}
	if f := cmd.Flags().Lookup("seed"); f != nil && f.Changed {
		cfg.Scene.Seed = seed
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildScene creates the pool and scene described by cfg and populates the
// scene with randomly placed actors.
func buildScene(cfg *config.Config) (*scene.Scene, *dispatch.Pool, error) {
	pool := dispatch.NewPool(cfg.Workers)
	s := scene.New(scene.Config{
		Gravity:     scene.Vec3{cfg.Scene.Gravity[0], cfg.Scene.Gravity[1], cfg.Scene.Gravity[2]},
		Damping:     cfg.Scene.Damping,
		SleepSpeed:  cfg.Scene.SleepSpeed,
		ChunkSize:   cfg.Scene.ChunkSize,
		Diagnostics: cfg.Diagnostics,
	}, pool)

	rng := rand.New(rand.NewSource(cfg.Scene.Seed))
	spread := cfg.Scene.Spread
	for i := 0; i < cfg.Scene.Actors; i++ {
		pos := scene.Vec3{
			(rng.Float64() - 0.5) * spread,
			rng.Float64() * spread,
			(rng.Float64() - 0.5) * spread,
		}
		a, err := s.AddActor(fmt.Sprintf("actor-%d", i), pos, cfg.Scene.Radius)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		if err := a.SetVelocity(scene.Vec3{
			(rng.Float64() - 0.5) * 2,
			(rng.Float64() - 0.5) * 2,
			(rng.Float64() - 0.5) * 2,
		}); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	return s, pool, nil
}

func runScene(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	s, pool, err := buildScene(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	defer s.Close()

	counts := make(map[mirror.EventKind]int)
	s.RegisterListener(scene.ListenerFunc(func(ev mirror.Event) {
		counts[ev.Kind]++
	}))

	start := time.Now()
	if err := s.Run(cmd.Context(), cfg.Dt, cfg.Steps); err != nil {
		return err
	}
	elapsed := time.Since(start)

	history := s.Stats().History()
	var minMs, maxMs, sumMs float64
	for i, v := range history {
		if i == 0 || v < minMs {
			minMs = v
		}
		if v > maxMs {
			maxMs = v
		}
		sumMs += v
	}
	avgMs := 0.0
	if len(history) > 0 {
		avgMs = sumMs / float64(len(history))
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "steps\t%d\n", cfg.Steps)
	fmt.Fprintf(w, "actors\t%d\n", cfg.Scene.Actors)
	fmt.Fprintf(w, "workers\t%d\n", pool.Workers())
	fmt.Fprintf(w, "units run\t%d\n", pool.Executed())
	fmt.Fprintf(w, "total\t%v\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "step avg\t%.3f ms\n", avgMs)
	fmt.Fprintf(w, "step min\t%.3f ms\n", minMs)
	fmt.Fprintf(w, "step max\t%.3f ms\n", maxMs)
	for kind, n := range counts {
		fmt.Fprintf(w, "events %s\t%d\n", kind, n)
	}
	w.Flush()

	if len(history) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(history,
			asciigraph.Height(10),
			asciigraph.Caption("step latency (ms)")))
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	s, pool, err := buildScene(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	defer s.Close()

	p := tea.NewProgram(tui.NewModel(s, pool, cfg.Dt))
	_, err = p.Run()
	return err
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	var sweep []int
	for n := 1; n <= runtime.GOMAXPROCS(0); n *= 2 {
		sweep = append(sweep, n)
	}
	if last := sweep[len(sweep)-1]; last != runtime.GOMAXPROCS(0) {
		sweep = append(sweep, runtime.GOMAXPROCS(0))
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "workers\tavg step\tspeedup\n")
	var baseline float64
	for _, n := range sweep {
		benchCfg := *cfg
		benchCfg.Workers = n
		s, pool, err := buildScene(&benchCfg)
		if err != nil {
			return err
		}

		start := time.Now()
		for i := 0; i < benchCfg.Steps; i++ {
			if err := s.Step(benchCfg.Dt); err != nil {
				s.Close()
				pool.Close()
				return fmt.Errorf("workers=%d step %d: %w", n, i, err)
			}
		}
		avg := time.Since(start) / time.Duration(benchCfg.Steps)

		s.Close()
		pool.Close()

		ms := float64(avg.Microseconds()) / 1000.0
		if baseline == 0 {
			baseline = ms
		}
		speedup := 0.0
		if ms > 0 {
			speedup = baseline / ms
		}
		fmt.Fprintf(w, "%d\t%.3f ms\t%.2fx\n", n, ms, speedup)
	}
	return w.Flush()
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	data := [][2]string{
		{"workers", fmt.Sprintf("%d", cfg.Workers)},
		{"dt", fmt.Sprintf("%g", cfg.Dt)},
		{"steps", fmt.Sprintf("%d", cfg.Steps)},
		{"actors", fmt.Sprintf("%d", cfg.Scene.Actors)},
		{"chunk size", fmt.Sprintf("%d", cfg.Scene.ChunkSize)},
		{"diagnostics", fmt.Sprintf("%v", cfg.Diagnostics)},
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, row := range data {
		fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	w.Flush()
	fmt.Println("config ok")
	return nil
}
