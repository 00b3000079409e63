package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/voicebridge-ai/voicebridge/pkg/aistream"
	"github.com/voicebridge-ai/voicebridge/pkg/audio"
	"github.com/voicebridge-ai/voicebridge/pkg/logger"
	"github.com/voicebridge-ai/voicebridge/pkg/recording"
	"github.com/voicebridge-ai/voicebridge/pkg/session"
	"github.com/voicebridge-ai/voicebridge/pkg/tools"
	"github.com/voicebridge-ai/voicebridge/pkg/trace"
	"github.com/voicebridge-ai/voicebridge/pkg/transport"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func parseEncoding(s string) audio.Encoding {
	if strings.EqualFold(s, "ulaw") {
		return audio.EncodingULaw
	}
	return audio.EncodingPCM16
}

// buildSink picks the recording destination: an S3 bucket when configured,
// a local directory otherwise, or nothing at all.
func buildSink(ctx context.Context) (recording.Sink, error) {
	if bucket := os.Getenv("RECORDING_S3_BUCKET"); bucket != "" {
		return recording.NewS3Sink(ctx, bucket, os.Getenv("AWS_REGION"))
	}
	if dir := os.Getenv("RECORDING_DIR"); dir != "" {
		return recording.DirSink{Dir: dir}, nil
	}
	return nil, nil
}

func main() {
	godotenv.Load()

	mode := getEnv("RUN_MODE", "dev")
	if err := logger.Init(logger.Config{
		Level:    getEnv("LOG_LEVEL", "info"),
		Filename: os.Getenv("LOG_FILE"),
	}, mode); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.L()

	ctx := context.Background()
	traceCfg := trace.DefaultConfig()
	if err := trace.Initialize(ctx, traceCfg); err != nil {
		log.Fatal("tracing init failed", zap.Error(err))
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = trace.Shutdown(sctx)
	}()

	sink, err := buildSink(ctx)
	if err != nil {
		log.Fatal("recording sink init failed", zap.Error(err))
	}

	toolFactory := &tools.Factory{
		Timeout: 10 * time.Second,
	}
	if names := os.Getenv("ENABLED_TOOLS"); names != "" {
		toolFactory.Enabled = strings.Split(names, ",")
	}

	manager := session.NewManager(session.Config{
		SystemPrompt:  getEnv("SYSTEM_PROMPT", "You are a helpful voice assistant on a phone call. Keep responses short and conversational."),
		VoiceID:       os.Getenv("VOICE_ID"),
		Dialer:        &aistream.EchoDialer{},
		Tools:         toolFactory,
		RecordingSink: sink,
		InboundGain:   getEnvFloat("RECORDING_INBOUND_GAIN", 1.0),
		OutboundGain:  getEnvFloat("RECORDING_OUTBOUND_GAIN", 1.0),
	})

	// Local mode bridges the machine's own microphone and speaker through
	// one session, which is handy for trying tools and prompts without a
	// telephony stack in front.
	if v := os.Getenv("LOCAL_AUDIO"); v == "1" || strings.EqualFold(v, "true") {
		local, err := transport.NewLocalTransport()
		if err != nil {
			log.Fatal("local audio init failed", zap.Error(err))
		}
		go func() {
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig
			_ = local.Close()
		}()
		manager.HandleTransport(local)
		_ = manager.ShutdownTimeout(5 * time.Second)
		return
	}

	tcpServer := transport.NewTCPServer(transport.TCPServerConfig{
		Addr:     getEnv("AUDIO_LISTEN_ADDR", ":8085"),
		Encoding: parseEncoding(getEnv("AUDIO_ENCODING", "pcm16")),
	}, manager.HandleTransport, log)
	if err := tcpServer.Start(); err != nil {
		log.Fatal("tcp server start failed", zap.Error(err))
	}

	var wsServer *transport.WSServer
	if addr := os.Getenv("WS_LISTEN_ADDR"); addr != "" {
		wsServer = transport.NewWSServer(transport.WSServerConfig{
			Addr: addr,
		}, manager.HandleTransport, log)
		if err := wsServer.Start(); err != nil {
			log.Fatal("websocket server start failed", zap.Error(err))
		}
	}

	log.Info("voicebridge running", zap.String("mode", mode))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutdown signal received")

	_ = tcpServer.Close()
	if wsServer != nil {
		_ = wsServer.Close()
	}
	if err := manager.ShutdownTimeout(15 * time.Second); err != nil {
		log.Warn("shutdown incomplete", zap.Error(err))
	}
	log.Info("voicebridge stopped")
}
