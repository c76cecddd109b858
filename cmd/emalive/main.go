// Command emalive is a terminal client for real-time spoken dialog with a
// Gemini Live model, with a grounded text chat next to it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	orchestration "github.com/koscakluka/ema-live/core"
	"github.com/koscakluka/ema-live/core/chat"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/live/gemini"
	"github.com/koscakluka/ema-live/internal/config"
	"github.com/koscakluka/ema-live/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const eventBuffer = 256

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "emalive: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.Init(ctx, telemetry.Config{ServiceVersion: "dev"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "emalive: failed to initialize telemetry: %v\n", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	device, err := openAudio(cfg.Audio)
	if err != nil {
		fmt.Fprintf(os.Stderr, "emalive: %v\n", err)
		return 1
	}
	defer device.Close()

	eventsCh := make(chan events.Event, eventBuffer)
	client := orchestration.NewClient(clientOptions(cfg, device, eventsCh)...)
	defer client.Close()

	program := tea.NewProgram(newModel(ctx, client, eventsCh), tea.WithAltScreen(), tea.WithContext(ctx))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop()
		_, err := program.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})
	if addr := cfg.Telemetry.MetricsAddr; addr != "" {
		server := &http.Server{Addr: addr, Handler: metricsMux(provider)}
		g.Go(func() error {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "emalive: %v\n", err)
		return 1
	}
	return 0
}

func clientOptions(cfg *config.Config, device audioDevice, eventsCh chan<- events.Event) []orchestration.ClientOption {
	chatOpts := []chat.Option{
		chat.WithModel(cfg.Chat.Model),
		chat.WithGoogleSearch(*cfg.Chat.GoogleSearch),
	}
	if cfg.Chat.SystemInstruction != "" {
		chatOpts = append(chatOpts, chat.WithSystemInstruction(cfg.Chat.SystemInstruction))
	}
	if cfg.Chat.Greeting != "" {
		chatOpts = append(chatOpts, chat.WithGreeting(cfg.Chat.Greeting))
	}

	opts := []orchestration.ClientOption{
		orchestration.WithAPIKey(cfg.APIKey),
		orchestration.WithLiveConfig(cfg.LiveSessionConfig()),
		orchestration.WithCaptureDevice(device.CaptureDevice()),
		orchestration.WithMixer(device.Mixer()),
		orchestration.WithInputGain(*cfg.Audio.InputGain),
		orchestration.WithFrameSize(cfg.Audio.FrameSize),
		orchestration.WithChatOptions(chatOpts...),
		orchestration.WithEventHandler(forwardEvents(eventsCh)),
	}
	if cfg.Live.BaseURL != "" {
		opts = append(opts, orchestration.WithLiveOptions(gemini.WithBaseURL(cfg.Live.BaseURL)))
	}
	return opts
}

// forwardEvents hands events to the UI without ever blocking the audio and
// session goroutines that emit them.
func forwardEvents(eventsCh chan<- events.Event) orchestration.EventHandler {
	return func(event events.Event) {
		select {
		case eventsCh <- event:
		default:
		}
	}
}

func metricsMux(provider *telemetry.Provider) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", provider.Handler())
	return mux
}
