package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	log "log/slog"

	"voxchat/internal/audio"
	"voxchat/internal/config"
	"voxchat/internal/ipc"
	"voxchat/internal/llm"
	"voxchat/internal/notify"
	"voxchat/internal/proxy"
	"voxchat/internal/session"
	"voxchat/internal/tts"
	"voxchat/internal/ui"
	"voxchat/pkg/stt"
)

const busName = "voxchat"

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "voxchat:", err)
		os.Exit(1)
	}

	log.SetDefault(log.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      cfg.LogLevel,
		TimeFormat: time.TimeOnly,
	})))

	log.Info("Booting up")

	if err := run(cfg); err != nil {
		log.Error("Exiting", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient, err := proxy.NewClient(cfg.Proxy, cfg.HeaderTimeout)
	if err != nil {
		return fmt.Errorf("proxy: %w", err)
	}

	engine, err := llm.New(llm.Config{
		Backend:      cfg.Backend,
		BaseURL:      cfg.BaseURL,
		APIKey:       cfg.APIKey,
		Model:        cfg.Model,
		SystemPrompt: cfg.SystemPrompt,
		HTTPClient:   httpClient,
	})
	if err != nil {
		return err
	}

	log.Debug("Loaded engine", "backend", cfg.Backend, "model", cfg.Model, "url", cfg.BaseURL)

	var bus *ui.Bus
	if cfg.BusURL != "" {
		bus, err = ui.DialBus(cfg.BusURL, busName, time.Second)
		if err != nil {
			return err
		}
		defer bus.Close()
	}

	listener := ui.Fanout{
		ui.NewPresenter(ui.NewTerminalSink(os.Stdout), func(status string) {
			log.Info(status)
		}),
		newFeedback(ctx, cfg),
	}
	if bus != nil {
		listener = append(listener, ui.NewBusSink(bus, ""))
	}

	s := session.New(engine, listener, cfg.SessionOptions())
	defer s.Close()

	log.Info("Session started", "session", s.ID(), "window", cfg.Window)

	dec, cleanup, err := newDecoder(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	// Runs before cleanup: a recording may still be inside whisper or portaudio.
	ctrl := ui.NewController(ctx, s, dec)
	defer ctrl.Close()

	srv, err := ipc.Listen(cfg.Socket, ctrl.Handle)
	if err != nil {
		return fmt.Errorf("control socket: %w", err)
	}
	defer srv.Close()

	if bus != nil {
		go func() {
			if err := bus.Run(ctx, ctrl.Handle); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Bus stopped", "err", err)
			}
		}()
	}

	log.Info("Boot up - successful", "socket", cfg.Socket, "voice", dec != nil)

	go readTerminal(ctx, stop, ctrl)

	<-ctx.Done()
	log.Info("Shutting down")

	return nil
}

// newDecoder wires the speech path. It returns a nil decoder when no whisper
// model is configured.
func newDecoder(cfg config.Config) (session.Decoder, func(), error) {
	if !cfg.VoiceEnabled() {
		return nil, func() {}, nil
	}

	var (
		source  stt.AudioSource
		closers []func()
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.AudioFile != "" {
		source = &audio.FileSource{Path: cfg.AudioFile, MaxSamples: cfg.MaxUtteranceSamples()}
	} else {
		mic := audio.NewMicrophone()
		if err := mic.Init(); err != nil {
			return nil, nil, fmt.Errorf("init audio: %w", err)
		}
		closers = append(closers, mic.Close)
		source = mic
	}

	log.Debug("Loaded audio source", "file", cfg.AudioFile)

	tr, err := stt.NewTranscriber(cfg.WhisperModel)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("init whisper: %w", err)
	}
	closers = append(closers, func() { tr.Close() })

	log.Debug("Loaded whisper", "model", cfg.WhisperModel)

	engine := stt.NewWhisperEngine(tr, cfg.SpeechOptions(), stt.Endpointer{SampleRate: stt.DefaultSampleRate})

	return ui.NewSpeechDecoder(&stt.Decoder{
		Source:      source,
		Engine:      engine,
		MaxDuration: cfg.MaxUtterance,
	}), cleanup, nil
}

func newFeedback(ctx context.Context, cfg config.Config) *ui.Feedback {
	fb := &ui.Feedback{}

	var ducker *audio.Ducker
	if cfg.Duck {
		ducker = audio.NewDucker([]string{busName, "PortAudio"}, 10)
	}

	fb.OnListen = func() {
		if cfg.BeepPath != "" {
			go func() {
				if err := notify.Beep(cfg.BeepPath); err != nil {
					log.Warn("Failed to beep", "err", err)
				}
			}()
		}
		if ducker != nil {
			if err := ducker.Duck(ctx, 0.3, 150*time.Millisecond); err != nil {
				log.Warn("Failed to duck", "err", err)
			}
		}
	}

	fb.OnIdle = func() {
		if ducker == nil {
			return
		}
		// ctx may already be cancelled on shutdown; volumes still need restoring.
		if err := ducker.Unduck(context.WithoutCancel(ctx), 300*time.Millisecond); err != nil {
			log.Warn("Failed to unduck", "err", err)
		}
	}

	if cfg.Speak {
		lang := cfg.Language
		if lang == "auto" {
			lang = ""
		}
		fb.Speak = func(text string) {
			go func() {
				if err := tts.Speak(text, lang); err != nil {
					log.Error("Failed to voice out", "err", err)
				}
			}()
		}
	}

	return fb
}

func readTerminal(ctx context.Context, quit func(), ctrl *ui.Controller) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "/quit":
			quit()
			return
		case "/rec":
			ctrl.Handle(ipc.ControlMessage{Cmd: ipc.CmdRecord})
		case "/clear":
			ctrl.Handle(ipc.ControlMessage{Cmd: ipc.CmdClear})
		case "/stop":
			ctrl.Handle(ipc.ControlMessage{Cmd: ipc.CmdCancel})
		default:
			ctrl.Handle(ipc.ControlMessage{Cmd: ipc.CmdSend, Text: line})
		}
	}
	if err := sc.Err(); err != nil {
		log.Warn("Terminal input failed", "err", err)
	}
}
