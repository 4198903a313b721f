// Package main is the webbot-voice CLI: a terminal client for live voice
// conversations with a persona agent.
//
// Usage:
//
//	webbot-voice -agent Ava -voice Kore
//	webbot-voice -voice Nova -preview
//
// Environment variables:
//
//	GEMINI_API_KEY  - Required (GOOGLE_API_KEY also accepted)
//	DATABASE_URL    - Optional; enables transcript and usage persistence
//	METRICS_ADDR    - Optional; exposes Prometheus metrics
//
// Press Ctrl-C to end the conversation.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/joho/godotenv"

	"github.com/fk219/webbot-voice/internal/config"
	"github.com/fk219/webbot-voice/internal/metrics"
	"github.com/fk219/webbot-voice/internal/store"
	"github.com/fk219/webbot-voice/pkg/gemini"
	"github.com/fk219/webbot-voice/pkg/live"
	"github.com/fk219/webbot-voice/pkg/preview"
)

func main() {
	_ = godotenv.Load()

	var (
		agentName   = flag.String("agent", "Ava", "agent display name")
		persona     = flag.String("persona", "", "system persona text for the agent")
		voice       = flag.String("voice", live.DefaultVoice, "voice name (Puck, Charon, Kore, Fenrir, Aoede, or a known alias)")
		language    = flag.String("language", "en-US", "BCP-47 language tag")
		userID      = flag.String("user", "", "user id for usage attribution")
		projectID   = flag.String("project", "", "project id for usage attribution")
		isTest      = flag.Bool("test", false, "mark this session as a test (does not count against quota)")
		previewOnly = flag.Bool("preview", false, "play a short voice sample and exit")
		previewText = flag.String("preview-text", "", "custom text for -preview")
		debug       = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *debug {
		cfg.Debug = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	var db *store.Store
	if cfg.DatabaseURL != "" {
		db, err = store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("store: %v", err)
		}
		defer db.Close()
	}

	if *previewOnly {
		if err := playPreview(ctx, cfg, db, m, *voice, *previewText, *userID, *projectID, *isTest); err != nil {
			log.Fatalf("preview: %v", err)
		}
		return
	}

	speaker, err := live.NewSpeaker(live.OutputAudioConfig())
	if err != nil {
		log.Fatalf("speaker: %v", err)
	}
	defer speaker.Close()

	// Pre-flight: refuse to open a session for users over their allowance.
	if db != nil && *userID != "" {
		status, err := db.CheckUsageAvailability(ctx, *userID)
		if err != nil {
			log.Fatalf("usage check: %v", err)
		}
		if !status.Allowed {
			log.Fatalf("monthly voice allowance reached (%d/%d tokens); upgrade to continue", status.TokensUsed, status.Limit)
		}
	}

	sessionID := ""
	if db != nil {
		sessionID, err = db.CreateSession(ctx, store.NewSession{
			UserID:    *userID,
			ProjectID: *projectID,
			AgentName: *agentName,
			Voice:     live.ResolveVoice(*voice),
		})
		if err != nil {
			log.Fatalf("create session: %v", err)
		}
	}

	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{ThreadPriority: malgo.ThreadPriorityRealtime}, nil)
	if err != nil {
		log.Fatalf("audio context: %v", err)
	}
	defer malgoCtx.Uninit()

	var dialer live.Dialer = gemini.NewClient(cfg.GeminiAPIKey)
	dialer = m.WrapDialer(dialer)

	session := live.NewSession(live.SessionConfig{
		Model:         cfg.Model,
		AgentName:     *agentName,
		SystemPersona: *persona,
		Voice:         *voice,
		Language:      *language,
		SessionID:     sessionID,
		UserID:        *userID,
		ProjectID:     *projectID,
		IsTest:        *isTest,
	}, dialer, func() (live.Microphone, error) {
		return live.OpenCapture(malgoCtx.Context, live.InputAudioConfig())
	}, speaker)
	if db != nil {
		session.SetUsageRecorder(db)
		session.SetTranscriptSink(db)
	}
	if cfg.Debug {
		session.EnableDebug()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nEnding conversation...")
		session.Disconnect()
	}()

	fmt.Printf("Connecting to %s (voice %s)...\n", *agentName, live.ResolveVoice(*voice))
	started := time.Now()
	m.RecordSessionStarted()
	if err := session.Connect(ctx); err != nil {
		reportEnd(m, session, started, err)
		if serr, ok := err.(*live.SessionError); ok {
			log.Fatal(serr.Message)
		}
		log.Fatalf("connect: %v", err)
	}
	fmt.Println("Connected. Speak naturally; press Ctrl-C to hang up.")

	var finalErr *live.SessionError
	for ev := range session.Events() {
		switch e := ev.(type) {
		case *live.TranscriptEvent:
			m.RecordTranscriptFlush(e.Role)
			if e.Role == live.RoleUser {
				fmt.Printf("You:  %s\n", e.Text)
			} else {
				fmt.Printf("%s:  %s\n", *agentName, e.Text)
			}
		case *live.InterruptedEvent:
			if cfg.Debug {
				fmt.Println("[interrupted]")
			}
		case *live.DisconnectedEvent:
			finalErr = e.Err
		}
	}

	reportEnd(m, session, started, nil)
	if finalErr != nil {
		log.Fatal(finalErr.Message)
	}
	fmt.Println("Conversation ended.")
}

// reportEnd records session outcome metrics once the session is over.
func reportEnd(m *metrics.Metrics, session *live.Session, started time.Time, connectErr error) {
	outcome := "closed"
	if serr, ok := connectErr.(*live.SessionError); ok {
		outcome = serr.Kind.String()
	} else if session.State() == live.StateFailed {
		outcome = "failed"
	}
	elapsed := time.Since(started)
	m.RecordSessionEnded(outcome, elapsed.Seconds())
	m.RecordFrameCounts(session.FrameCounts())
	if connectErr == nil {
		m.RecordUsage(live.EstimateTokens(elapsed))
	}
}

// playPreview synthesizes a short sample in the chosen voice and plays it.
// The output device is opened at the sample rate the service actually
// returned, which is not always the live-session rate.
func playPreview(ctx context.Context, cfg *config.Config, db *store.Store, m *metrics.Metrics, voice, text, userID, projectID string, isTest bool) error {
	svc, err := preview.New(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return err
	}

	fmt.Printf("Generating a sample of the %s voice...\n", live.ResolveVoice(voice))
	buf, err := svc.Synthesize(ctx, voice, text)
	if err != nil {
		return err
	}

	speaker, err := live.NewSpeaker(live.AudioConfig{
		SampleRate:    buf.SampleRate,
		Channels:      len(buf.Channels),
		BitsPerSample: 16,
	})
	if err != nil {
		return err
	}
	defer speaker.Close()

	if err := speaker.Play(buf.PCM16()); err != nil {
		return err
	}
	// Let the sample drain before tearing the device down.
	select {
	case <-time.After(buf.Duration() + 500*time.Millisecond):
	case <-ctx.Done():
	}

	if db != nil && userID != "" {
		rec := live.UsageRecord{
			UserID:          userID,
			ProjectID:       projectID,
			EstimatedTokens: preview.Tokens,
			IsTest:          isTest,
		}
		if err := db.RecordUsage(ctx, rec); err != nil {
			log.Printf("record preview usage: %v", err)
		}
		m.RecordUsage(preview.Tokens)
	}
	return nil
}
