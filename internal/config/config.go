// Package config reads voxchat settings from flags, an optional .env file
// and the environment. Flags win over the environment, which wins over
// defaults.
package config

import (
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"voxchat/internal/ipc"
	"voxchat/internal/llm"
	"voxchat/internal/session"
	"voxchat/pkg/stt"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

type Config struct {
	EnvFile  string
	LogLevel log.Level
	Proxy    string

	Backend      string
	BaseURL      string
	APIKey       string
	Model        string
	SystemPrompt string

	// HeaderTimeout bounds the wait for a reply to start; 0 disables it.
	HeaderTimeout time.Duration

	Window      int
	MaxTokens   int
	Temperature float64

	WhisperModel string
	Language     string
	Threads      int
	Translate    bool
	Prompt       string
	BeamSize     int
	SpeechTemp   float64
	AudioFile    string
	MaxUtterance time.Duration

	BusURL string
	Socket string

	Speak    bool
	BeepPath string
	Duck     bool
}

// envBindings maps flag names to the variables that may fill them when the
// flag is not given.
var envBindings = map[string]string{
	"base-url":      "VOXCHAT_BASE_URL",
	"model":         "VOXCHAT_MODEL",
	"backend":       "VOXCHAT_BACKEND",
	"system-prompt": "VOXCHAT_SYSTEM_PROMPT",
	"whisper-model": "WHISPER_MODEL",
	"bus":           "BUS_URL",
	"proxy":         "VOXCHAT_PROXY",
}

func Parse(args []string) (Config, error) {
	var (
		cfg      Config
		logLevel string
	)

	fs := cli.NewFlagSet("voxchat", cli.ContinueOnError)
	fs.StringVarP(&cfg.EnvFile, "env", "e", ".env", "Env file path")
	fs.StringVarP(&logLevel, "log", "l", "info", "Log level")
	fs.StringVarP(&cfg.Proxy, "proxy", "p", "", "Socks proxy address for the LLM endpoint")

	fs.StringVarP(&cfg.Backend, "backend", "b", llm.BackendOpenAI, "LLM client: openai or compat")
	fs.StringVarP(&cfg.BaseURL, "base-url", "u", "http://127.0.0.1:8080/v1", "OpenAI-compatible endpoint")
	fs.StringVarP(&cfg.Model, "model", "m", "local", "Model name sent to the endpoint")
	fs.StringVar(&cfg.SystemPrompt, "system-prompt", "", "Optional system prompt")
	fs.DurationVar(&cfg.HeaderTimeout, "header-timeout", 120*time.Second, "Wait for the endpoint to start replying (0 = forever)")

	fs.IntVar(&cfg.Window, "window", session.DefaultWindow, "Turns of history sent to the model")
	fs.IntVar(&cfg.MaxTokens, "max-tokens", session.DefaultMaxTokens, "Reply token limit")
	fs.Float64Var(&cfg.Temperature, "temperature", session.DefaultTemperature, "Sampling temperature")

	fs.StringVarP(&cfg.WhisperModel, "whisper-model", "w", "", "whisper.cpp model; empty disables voice input")
	fs.StringVar(&cfg.Language, "lang", "auto", "Speech language")
	fs.IntVar(&cfg.Threads, "threads", 0, "Whisper threads (0 = all CPUs)")
	fs.BoolVar(&cfg.Translate, "translate", false, "Translate speech to English")
	fs.StringVar(&cfg.Prompt, "whisper-prompt", "", "Initial prompt for whisper")
	fs.IntVar(&cfg.BeamSize, "beam-size", 0, "Whisper beam size (0 = greedy)")
	fs.Float64Var(&cfg.SpeechTemp, "whisper-temperature", 0, "Whisper sampling temperature")
	fs.StringVarP(&cfg.AudioFile, "audio-file", "a", "", "Read speech from this file instead of the microphone")
	fs.DurationVar(&cfg.MaxUtterance, "max-utterance", 15*time.Second, "Longest recording")

	fs.StringVar(&cfg.BusURL, "bus", "", "Websocket URL of a UI shell")
	fs.StringVar(&cfg.Socket, "socket", ipc.DefaultSocketPath, "Control socket path")

	fs.BoolVar(&cfg.Speak, "speak", false, "Speak replies with espeak-ng")
	fs.StringVar(&cfg.BeepPath, "beep", "", "mp3 played when listening starts")
	fs.BoolVar(&cfg.Duck, "duck", false, "Lower other audio while listening")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := godotenv.Load(cfg.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", cfg.EnvFile, err)
	}

	for name, env := range envBindings {
		v := os.Getenv(env)
		if v == "" || fs.Changed(name) {
			continue
		}
		if err := fs.Set(name, v); err != nil {
			return Config{}, fmt.Errorf("%s: %w", env, err)
		}
	}

	cfg.APIKey = os.Getenv("OPENAI_API_KEY")

	level, ok := logLevelMap[logLevel]
	if !ok {
		return Config{}, fmt.Errorf("unknown log level %q", logLevel)
	}
	cfg.LogLevel = level

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Backend != llm.BackendOpenAI && c.Backend != llm.BackendCompat {
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Window <= 0 {
		return fmt.Errorf("window must be positive, got %d", c.Window)
	}
	if c.HeaderTimeout < 0 {
		return fmt.Errorf("header-timeout must not be negative, got %s", c.HeaderTimeout)
	}
	if c.BeamSize < 0 {
		return fmt.Errorf("beam-size must not be negative, got %d", c.BeamSize)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max-tokens must be positive, got %d", c.MaxTokens)
	}
	return nil
}

func (c Config) SessionOptions() session.Options {
	return session.Options{
		Window: c.Window,
		Params: session.Params{
			MaxTokens:   c.MaxTokens,
			Temperature: c.Temperature,
		},
	}
}

func (c Config) SpeechOptions() stt.Options {
	return stt.Options{
		Language:      c.Language,
		TranslateToEn: c.Translate,
		Threads:       c.Threads,
		InitialPrompt: c.Prompt,
		BeamSize:      c.BeamSize,
		Temperature:   float32(c.SpeechTemp),
	}
}

// MaxUtteranceSamples is the longest utterance in samples at the decoder rate.
func (c Config) MaxUtteranceSamples() int {
	return int(c.MaxUtterance.Seconds() * stt.DefaultSampleRate)
}

// VoiceEnabled reports whether a speech model was configured.
func (c Config) VoiceEnabled() bool {
	return c.WhisperModel != ""
}
