package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/pkg/agent"
	"github.com/parleyhq/parley/pkg/brain"
	"github.com/parleyhq/parley/pkg/config"
	"github.com/parleyhq/parley/pkg/convo"
	"github.com/parleyhq/parley/pkg/gateway"
	"github.com/parleyhq/parley/pkg/logger"
	"github.com/parleyhq/parley/pkg/orchestrator"
	"github.com/parleyhq/parley/pkg/translog"
	"github.com/parleyhq/parley/pkg/voice"
)

func newServeCommand() *cobra.Command {
	var configPath string
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the conversation gateway",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return serve(configPath, debug)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "parley.json", "Path to config file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func serve(configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if debug {
		logger.SetLevel(logger.DEBUG)
	} else {
		logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	}
	if cfg.Log.File != "" {
		if err := logger.EnableFileLogging(cfg.Log.File); err != nil {
			return fmt.Errorf("log file: %w", err)
		}
		defer logger.DisableFileLogging()
	}

	registry, err := agent.LoadRegistry(cfg.Conversation.AgentsFile)
	if err != nil {
		return fmt.Errorf("agent roster: %w", err)
	}
	for _, a := range registry.All() {
		if a.Voice == "" {
			a.Voice = cfg.Voice.TTS.DefaultVoice
		}
	}
	logger.Info("main", "Agent roster loaded", map[string]any{
		"path":   cfg.Conversation.AgentsFile,
		"agents": len(registry.All()),
	})

	var sink orchestrator.TranscriptSink
	if cfg.Store.TranscriptDB != "" {
		tlog, err := translog.Open(cfg.Store.TranscriptDB)
		if err != nil {
			return fmt.Errorf("transcript log: %w", err)
		}
		defer tlog.Close()
		sink = tlog
	}

	primary := brain.NewPrimaryProvider(cfg.Backends)
	secondary := brain.NewSecondaryProvider(cfg.Backends)
	gen := brain.NewGenerator(primary, secondary, func(id string) string {
		if a := registry.Get(id); a != nil {
			return a.FirstName()
		}
		return id
	})
	scorer := brain.NewScorer(secondary, cfg.Backends.ScoreRPS)

	stt := voice.NewWhisperTranscriber(cfg.Voice.STT.APIKey, cfg.Voice.STT.BaseURL, cfg.Voice.STT.Model)
	tts := voice.NewSpeechSynthesizer(cfg.Voice.TTS.BaseURL, cfg.Voice.TTS.Model, "")
	if !tts.IsAvailable() {
		logger.Warn("main", "Speech synthesis backend unreachable at startup", map[string]any{
			"base_url": cfg.Voice.TTS.BaseURL,
		})
	}

	orch := orchestrator.New(convo.NewStore(), registry, gen, scorer, tts, stt, sink, cfg.Conversation)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := gateway.NewServer(cfg.Gateway, orch)
	if err := gw.Start(ctx); err != nil {
		return err
	}

	fmt.Printf("parley %s listening on %s:%d\n", formatVersion(), cfg.Gateway.Host, cfg.Gateway.Port)
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	cancel()
	orch.EndAll()
	if err := gw.Stop(context.Background()); err != nil {
		logger.Error("main", "Gateway stop failed", map[string]any{"error": err.Error()})
	}
	return nil
}
