package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Content   ContentConfig   `yaml:"content"`
	Quality   QualityConfig   `yaml:"quality"`
	Video     VideoConfig     `yaml:"video"`
	Visuals   VisualsConfig   `yaml:"visuals"`
	Audio     AudioConfig     `yaml:"audio"`
	Subtitles SubtitlesConfig `yaml:"subtitles"`
	Render    RenderConfig    `yaml:"render"`
	Upload    UploadConfig    `yaml:"upload"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Store     StoreConfig     `yaml:"store"`
	Notify    NotifyConfig    `yaml:"notify"`
	Server    ServerConfig    `yaml:"server"`
	Paths     PathsConfig     `yaml:"paths"`
}

type ContentConfig struct {
	Provider    string        `yaml:"provider"` // openai | anthropic | groq | fallback
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Themes      []string      `yaml:"themes"`
	Timeout     time.Duration `yaml:"timeout"`
	Trends      TrendsConfig  `yaml:"trends"`
}

type TrendsConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Subreddits []string `yaml:"subreddits"`
	Limit      int      `yaml:"limit"`
	MinScore   int      `yaml:"min_score"`
}

type QualityConfig struct {
	Threshold   float64 `yaml:"threshold"`
	MaxAttempts int     `yaml:"max_attempts"`
}

type VideoConfig struct {
	Width          int           `yaml:"width"`
	Height         int           `yaml:"height"`
	FPS            int           `yaml:"fps"`
	TargetDuration time.Duration `yaml:"target_duration"`
}

type VisualsConfig struct {
	Source       string        `yaml:"source"`        // image | procedural
	ImageBackend string        `yaml:"image_backend"` // openai | pollinations
	ImageModel   string        `yaml:"image_model"`
	KenBurns     bool          `yaml:"ken_burns"`
	MaxZoom      float64       `yaml:"max_zoom"`
	LoopSeconds  float64       `yaml:"loop_seconds"`
	Timeout      time.Duration `yaml:"timeout"`
}

type AudioConfig struct {
	Speaker      string        `yaml:"speaker"` // openai | command
	Voice        string        `yaml:"voice"`
	Command      string        `yaml:"command"`
	Format       string        `yaml:"format"`   // mp3 | wav
	Duration     string        `yaml:"duration"` // probe | wav
	MusicPath    string        `yaml:"music_path"`
	MusicDir     string        `yaml:"music_dir"`
	MusicVolume  float64       `yaml:"music_volume"`
	Timeout      time.Duration `yaml:"timeout"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

type SubtitlesConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Font         string `yaml:"font"`
	FontSize     int    `yaml:"font_size"`
	Bold         bool   `yaml:"bold"`
	Outline      int    `yaml:"outline"`
	MarginBottom int    `yaml:"margin_bottom"`
}

type RenderConfig struct {
	FFmpeg       string        `yaml:"ffmpeg"`
	FFprobe      string        `yaml:"ffprobe"`
	Preset       string        `yaml:"preset"`
	CRF          int           `yaml:"crf"`
	AudioBitrate string        `yaml:"audio_bitrate"`
	OutputName   string        `yaml:"output_name"`
	Timeout      time.Duration `yaml:"timeout"`
}

type UploadConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Visibility      string        `yaml:"visibility"`
	CategoryID      string        `yaml:"category_id"`
	MadeForKids     bool          `yaml:"made_for_kids"`
	DefaultLanguage string        `yaml:"default_language"`
	Tags            []string      `yaml:"tags"`
	Timeout         time.Duration `yaml:"timeout"`
}

type ScheduleConfig struct {
	Interval time.Duration `yaml:"interval"`
	Cron     string        `yaml:"cron"`
	Poll     time.Duration `yaml:"poll"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"` // file | sqlite | postgres
	DSN    string `yaml:"dsn"`
}

type NotifyConfig struct {
	RedisURL string `yaml:"redis_url"`
	Channel  string `yaml:"channel"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type PathsConfig struct {
	Output     string `yaml:"output"`
	ContentLog string `yaml:"content_log"`
	Stats      string `yaml:"stats"`
	Logs       string `yaml:"logs"`
}

// Error is a fatal startup problem with the configuration
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

// IsConfigError reports whether err is (or wraps) a config Error
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// Default returns the configuration used when no file overrides a value
func Default() *Config {
	cfg := preset()
	cfg.ApplyDefaults()
	return cfg
}

// preset holds the defaults whose zero value is a valid setting, so they are
// set before decoding and only an explicit key overrides them
func preset() *Config {
	cfg := &Config{}
	cfg.Content.Temperature = 0.8
	cfg.Quality.Threshold = 85
	cfg.Visuals.KenBurns = true
	cfg.Audio.MusicVolume = 0.2
	cfg.Subtitles.Enabled = true
	cfg.Subtitles.Bold = true
	cfg.Subtitles.Outline = 2
	cfg.Render.CRF = 23
	return cfg
}

// Load reads a YAML config file, fills in defaults and validates it.
// Every failure is returned as a *Error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Problems: []string{fmt.Sprintf("read %s: %v", path, err)}}
	}
	return Parse(data)
}

// Parse decodes YAML bytes, fills in defaults and validates
func Parse(data []byte) (*Config, error) {
	cfg := preset()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &Error{Problems: []string{fmt.Sprintf("parse yaml: %v", err)}}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultThemes are the themes rotated through when none are configured
var DefaultThemes = []string{
	"sacred geometry and divine patterns",
	"meditation and inner peace",
	"manifestation and conscious creation",
	"chakra alignment and energy healing",
	"ancient wisdom and modern spirituality",
}

// DefaultModels is the model used per content provider when content.model is unset
var DefaultModels = map[string]string{
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-3-5-haiku-latest",
	"groq":      "llama-3.3-70b-versatile",
}

// ApplyDefaults fills every zero value that has a sensible default. Values
// that depend on another key (model, voice, duration reader) are derived
// here, after decoding.
func (c *Config) ApplyDefaults() {
	setString(&c.Content.Provider, "openai")
	setString(&c.Content.Model, DefaultModels[c.Content.Provider])
	setInt(&c.Content.MaxTokens, 800)
	if len(c.Content.Themes) == 0 {
		c.Content.Themes = append([]string(nil), DefaultThemes...)
	}
	setDuration(&c.Content.Timeout, 60*time.Second)
	if len(c.Content.Trends.Subreddits) == 0 {
		c.Content.Trends.Subreddits = []string{"spirituality", "Meditation", "awakened"}
	}
	setInt(&c.Content.Trends.Limit, 25)

	setInt(&c.Quality.MaxAttempts, 5)

	setInt(&c.Video.Width, 1080)
	setInt(&c.Video.Height, 1920)
	setInt(&c.Video.FPS, 30)
	setDuration(&c.Video.TargetDuration, 30*time.Second)

	setString(&c.Visuals.Source, "image")
	setString(&c.Visuals.ImageBackend, "openai")
	setString(&c.Visuals.ImageModel, "dall-e-3")
	setFloat(&c.Visuals.MaxZoom, 1.1)
	setFloat(&c.Visuals.LoopSeconds, 4)
	setDuration(&c.Visuals.Timeout, 90*time.Second)

	setString(&c.Audio.Speaker, "openai")
	if c.Audio.Speaker == "command" {
		setString(&c.Audio.Voice, "en-US-AriaNeural")
	}
	setString(&c.Audio.Voice, "nova")
	setString(&c.Audio.Command, "edge-tts")
	setString(&c.Audio.Format, "mp3")
	if c.Audio.Duration == "" {
		c.Audio.Duration = "probe"
		if c.Audio.Format == "wav" {
			c.Audio.Duration = "wav"
		}
	}
	setString(&c.Audio.MusicPath, "assets/background_music.mp3")
	setDuration(&c.Audio.Timeout, 60*time.Second)
	setDuration(&c.Audio.ProbeTimeout, 15*time.Second)

	setString(&c.Subtitles.Font, "Arial")
	setInt(&c.Subtitles.FontSize, 24)
	setInt(&c.Subtitles.MarginBottom, 80)

	setString(&c.Render.FFmpeg, "ffmpeg")
	setString(&c.Render.FFprobe, "ffprobe")
	setString(&c.Render.Preset, "medium")
	setString(&c.Render.AudioBitrate, "192k")
	setString(&c.Render.OutputName, "spiritual_short.mp4")
	setDuration(&c.Render.Timeout, 10*time.Minute)

	setString(&c.Upload.Visibility, "public")
	setString(&c.Upload.CategoryID, "22")
	setString(&c.Upload.DefaultLanguage, "en")
	if len(c.Upload.Tags) == 0 {
		c.Upload.Tags = []string{"spirituality", "meditation", "shorts"}
	}
	setDuration(&c.Upload.Timeout, 5*time.Minute)

	if c.Schedule.Cron == "" {
		setDuration(&c.Schedule.Interval, 8*time.Hour)
	}
	setDuration(&c.Schedule.Poll, time.Minute)

	setString(&c.Store.Driver, "file")
	setString(&c.Notify.Channel, "spiritual_cycles")

	setString(&c.Paths.Output, "output")
	setString(&c.Paths.ContentLog, "content_library.json")
	setString(&c.Paths.Stats, "cycle_stats.json")
	setString(&c.Paths.Logs, "logs")
}

// Validate checks every value the pipeline relies on and reports all problems at once
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if !oneOf(c.Content.Provider, "openai", "anthropic", "groq", "fallback") {
		add("content.provider %q must be openai, anthropic, groq or fallback", c.Content.Provider)
	}
	if len(c.Content.Themes) == 0 {
		add("content.themes must not be empty")
	}
	for i, theme := range c.Content.Themes {
		if strings.TrimSpace(theme) == "" {
			add("content.themes[%d] is blank", i)
		}
	}
	if c.Content.Trends.Enabled && len(c.Content.Trends.Subreddits) == 0 {
		add("content.trends.subreddits required when trends are enabled")
	}
	if c.Quality.Threshold < 0 || c.Quality.Threshold > 100 {
		add("quality.threshold %.1f must be within [0,100]", c.Quality.Threshold)
	}
	if c.Quality.MaxAttempts < 1 {
		add("quality.max_attempts must be at least 1")
	}
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		add("video resolution %dx%d must be positive", c.Video.Width, c.Video.Height)
	}
	if c.Video.Width%2 != 0 || c.Video.Height%2 != 0 {
		add("video resolution %dx%d must be even for yuv420p", c.Video.Width, c.Video.Height)
	}
	if c.Video.FPS <= 0 || c.Video.FPS > 120 {
		add("video.fps %d must be within (0,120]", c.Video.FPS)
	}
	if c.Video.TargetDuration <= 0 {
		add("video.target_duration must be positive")
	}
	if !oneOf(c.Visuals.Source, "image", "procedural") {
		add("visuals.source %q must be image or procedural", c.Visuals.Source)
	}
	if c.Visuals.Source == "image" && !oneOf(c.Visuals.ImageBackend, "openai", "pollinations") {
		add("visuals.image_backend %q must be openai or pollinations", c.Visuals.ImageBackend)
	}
	if c.Visuals.MaxZoom < 1 || c.Visuals.MaxZoom > 2 {
		add("visuals.max_zoom %.2f must be within [1,2]", c.Visuals.MaxZoom)
	}
	if c.Visuals.LoopSeconds <= 0 {
		add("visuals.loop_seconds must be positive")
	}
	if !oneOf(c.Audio.Speaker, "openai", "command") {
		add("audio.speaker %q must be openai or command", c.Audio.Speaker)
	}
	if !oneOf(c.Audio.Format, "mp3", "wav") {
		add("audio.format %q must be mp3 or wav", c.Audio.Format)
	}
	if !oneOf(c.Audio.Duration, "probe", "wav") {
		add("audio.duration %q must be probe or wav", c.Audio.Duration)
	}
	if c.Audio.Duration == "wav" && c.Audio.Format != "wav" {
		add("audio.duration wav requires audio.format wav")
	}
	if c.Audio.MusicVolume < 0 || c.Audio.MusicVolume > 1 {
		add("audio.music_volume %.2f must be within [0,1]", c.Audio.MusicVolume)
	}
	if c.Subtitles.FontSize <= 0 {
		add("subtitles.font_size must be positive")
	}
	if c.Render.CRF < 0 || c.Render.CRF > 51 {
		add("render.crf %d must be within [0,51]", c.Render.CRF)
	}
	if !oneOf(c.Upload.Visibility, "public", "private", "unlisted") {
		add("upload.visibility %q must be public, private or unlisted", c.Upload.Visibility)
	}
	if _, err := c.Schedule.Parse(); err != nil {
		add("schedule: %v", err)
	}
	if c.Schedule.Poll <= 0 {
		add("schedule.poll must be positive")
	}
	if c.Schedule.Cron == "" && c.Schedule.Interval > 0 && c.Schedule.Poll > c.Schedule.Interval {
		add("schedule.poll %s must not exceed schedule.interval %s", c.Schedule.Poll, c.Schedule.Interval)
	}
	if !oneOf(c.Store.Driver, "file", "sqlite", "postgres") {
		add("store.driver %q must be file, sqlite or postgres", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.DSN == "" && os.Getenv("DATABASE_URL") == "" {
		add("store.dsn or DATABASE_URL required for postgres")
	}
	for name, timeout := range map[string]time.Duration{
		"content.timeout":     c.Content.Timeout,
		"visuals.timeout":     c.Visuals.Timeout,
		"audio.timeout":       c.Audio.Timeout,
		"audio.probe_timeout": c.Audio.ProbeTimeout,
		"render.timeout":      c.Render.Timeout,
		"upload.timeout":      c.Upload.Timeout,
	} {
		if timeout <= 0 {
			add("%s must be positive", name)
		}
	}

	if len(problems) > 0 {
		return &Error{Problems: problems}
	}
	return nil
}

// Parse builds the trigger schedule: a cron expression when set, otherwise a fixed interval
func (s ScheduleConfig) Parse() (cron.Schedule, error) {
	if s.Cron != "" {
		sched, err := cron.ParseStandard(s.Cron)
		if err != nil {
			return nil, fmt.Errorf("cron %q: %w", s.Cron, err)
		}
		return sched, nil
	}
	if s.Interval < time.Second {
		return nil, fmt.Errorf("interval %s must be at least 1s", s.Interval)
	}
	return cron.Every(s.Interval), nil
}

// RequireSecrets checks the env variables the selected backends need.
// Called at startup so a missing key is fatal instead of failing every cycle.
func (c *Config) RequireSecrets() error {
	var problems []string
	need := func(key string) {
		if os.Getenv(key) == "" {
			problems = append(problems, key+" not set")
		}
	}
	if c.Content.Provider == "openai" || (c.Visuals.Source == "image" && c.Visuals.ImageBackend == "openai") || c.Audio.Speaker == "openai" {
		need("OPENAI_API_KEY")
	}
	switch c.Content.Provider {
	case "anthropic":
		need("ANTHROPIC_API_KEY")
	case "groq":
		need("GROQ_API_KEY")
	}
	if c.Upload.Enabled {
		need("YOUTUBE_CLIENT_ID")
		need("YOUTUBE_CLIENT_SECRET")
		need("YOUTUBE_REFRESH_TOKEN")
	}
	if len(problems) > 0 {
		return &Error{Problems: problems}
	}
	return nil
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

func setString(p *string, v string) {
	if *p == "" {
		*p = v
	}
}

func setInt(p *int, v int) {
	if *p == 0 {
		*p = v
	}
}

func setFloat(p *float64, v float64) {
	if *p == 0 {
		*p = v
	}
}

func setDuration(p *time.Duration, v time.Duration) {
	if *p == 0 {
		*p = v
	}
}
