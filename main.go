package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"spiritual-shorts-pipeline/audio"
	"spiritual-shorts-pipeline/authenticity"
	"spiritual-shorts-pipeline/command"
	"spiritual-shorts-pipeline/config"
	"spiritual-shorts-pipeline/content"
	"spiritual-shorts-pipeline/engine"
	"spiritual-shorts-pipeline/notify"
	"spiritual-shorts-pipeline/render"
	"spiritual-shorts-pipeline/server"
	"spiritual-shorts-pipeline/store"
	"spiritual-shorts-pipeline/subtitles"
	"spiritual-shorts-pipeline/upload"
	"spiritual-shorts-pipeline/visuals"
)

var (
	configPath  string
	captionText string
	captionSecs float64
)

var rootCmd = &cobra.Command{
	Use:   "spiritual-shorts",
	Short: "Generates and publishes spiritual short videos on a schedule",
	Long: `Generates a spiritual script, checks it against the authenticity gate,
renders a captioned vertical video and publishes it, repeating on a schedule.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a cycle now and then one per schedule trigger until interrupted",
	RunE:  runScheduler,
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single cycle and exit",
	RunE:  runOnce,
}

var captionsCmd = &cobra.Command{
	Use:   "captions",
	Short: "Print the SRT captions for a narration and duration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if captionSecs <= 0 {
			return fmt.Errorf("--duration must be positive")
		}
		cues := subtitles.Segment(captionText, time.Duration(captionSecs*float64(time.Second)))
		fmt.Print(subtitles.RenderSRT(cues))
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cycle stats and a content log summary",
	RunE:  showStats,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML config file")
	captionsCmd.Flags().StringVar(&captionText, "text", "", "Narration text")
	captionsCmd.Flags().Float64Var(&captionSecs, "duration", 0, "Narration duration in seconds")
	captionsCmd.MarkFlagRequired("text")

	rootCmd.AddCommand(runCmd, onceCmd, captionsCmd, statsCmd)
}

func main() {
	// Load .env (local dev only; CI passes secrets as env)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireSecrets(); err != nil {
		return nil, err
	}
	for _, dir := range []string{cfg.Paths.Output, cfg.Paths.Logs} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return cfg, nil
}

// pipeline holds what a running process needs to close on exit
type pipeline struct {
	engine   *engine.Engine
	store    store.Store
	notifier notify.Notifier
}

func (p *pipeline) Close() {
	p.notifier.Close()
	if err := p.store.Close(); err != nil {
		log.Printf("[main] Closing store: %v", err)
	}
}

// build wires every stage from the config
func build(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	runner := command.Exec{}

	gen, err := content.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("content generator: %w", err)
	}
	var trends content.TrendSource
	if cfg.Content.Trends.Enabled {
		rt, err := content.NewRedditTrends(cfg.Content.Trends)
		if err != nil {
			return nil, fmt.Errorf("trends: %w", err)
		}
		trends = rt
	}

	src, err := visuals.NewSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("visual source: %w", err)
	}
	speaker, err := audio.NewSpeaker(cfg.Audio, runner)
	if err != nil {
		return nil, fmt.Errorf("speaker: %w", err)
	}
	music, err := audio.NewMusicLibrary(cfg.Audio.MusicDir, cfg.Audio.MusicPath)
	if err != nil {
		return nil, fmt.Errorf("music: %w", err)
	}
	synth := render.NewSynthesizer(cfg, src, speaker,
		audio.NewDurationResolver(cfg.Audio, cfg.Render.FFprobe, runner), music, runner)

	publisher, err := upload.New(ctx, cfg.Upload)
	if err != nil {
		return nil, fmt.Errorf("publisher: %w", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	notifier, err := notify.New(cfg.Notify)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("notifier: %w", err)
	}

	eng := engine.New(cfg, engine.Deps{
		Picker:      content.NewThemePicker(cfg.Content.Themes, trends),
		Generator:   gen,
		Fallback:    content.NewFallbackGenerator(),
		Gate:        authenticity.New(cfg.Quality.Threshold),
		Synthesizer: synth,
		Publisher:   publisher,
		Store:       st,
		Notifier:    notifier,
	})
	p := &pipeline{engine: eng, store: st, notifier: notifier}
	if err := eng.Restore(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	schedule, err := cfg.Schedule.Parse()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	p, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	log.Printf("🕉️  Spiritual shorts pipeline starting (provider %s, visuals %s, threshold %.0f)",
		cfg.Content.Provider, cfg.Visuals.Source, cfg.Quality.Threshold)

	if cfg.Server.Addr != "" {
		srv := server.New(p.engine.State(), p.store)
		go func() {
			if err := srv.Run(ctx, cfg.Server.Addr); err != nil {
				log.Printf("[server] ❌ %v", err)
			}
		}()
	}

	sched := engine.NewScheduler(p.engine, schedule, cfg.Schedule.Poll, engine.RealClock{}, p.engine.State())
	if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	log.Println("👋 Stopped")
	return nil
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	p, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	report, err := p.engine.RunCycle(ctx)
	data, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(data))
	return err
}

func showStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stats, err := st.LoadStats(ctx)
	if err != nil {
		return err
	}
	pieces, err := st.ListContent(ctx, 0)
	if err != nil {
		return err
	}

	data, _ := json.MarshalIndent(map[string]interface{}{
		"cycles":  stats,
		"content": store.Summarize(pieces),
	}, "", "  ")
	fmt.Println(string(data))
	return nil
}
