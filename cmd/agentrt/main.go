// Command agentrt runs the message-bus agent runtime: one or more gateways
// feed inbound messages onto a bounded bus, a single consumer goroutine
// drains it through the orchestrator pipeline, and responses are sent back
// through whichever gateway the message arrived on.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alvesfc/openbotx/internal/agentbrain"
	"github.com/alvesfc/openbotx/internal/attachments"
	"github.com/alvesfc/openbotx/internal/bus"
	"github.com/alvesfc/openbotx/internal/channelstore"
	"github.com/alvesfc/openbotx/internal/compactor"
	"github.com/alvesfc/openbotx/internal/config"
	"github.com/alvesfc/openbotx/internal/embedder"
	"github.com/alvesfc/openbotx/internal/llmclient"
	"github.com/alvesfc/openbotx/internal/memoryindex"
	"github.com/alvesfc/openbotx/internal/model"
	"github.com/alvesfc/openbotx/internal/obs"
	"github.com/alvesfc/openbotx/internal/orchestrator"
	"github.com/alvesfc/openbotx/internal/relay"
	"github.com/alvesfc/openbotx/internal/security"
	"github.com/alvesfc/openbotx/internal/skills"
	"github.com/alvesfc/openbotx/internal/summarizer"
	"github.com/alvesfc/openbotx/internal/supervisor"
	"github.com/alvesfc/openbotx/internal/toolpolicy"
	"github.com/alvesfc/openbotx/internal/transcribe"
	"github.com/alvesfc/openbotx/internal/validator"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const shutdownResourceTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	gatewayFlag := flag.String("gateway", "cli", "which gateway(s) to run: cli, socket, or all")
	configPath := flag.String("config", "", "path to an optional YAML config file")
	port := flag.Int("port", 8765, "socket gateway listen port")
	host := flag.String("host", "0.0.0.0", "socket gateway listen host")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("agentrt: load config: %w", err)
	}
	if *port != 0 {
		cfg.Socket.Port = *port
	}
	if *host != "" {
		cfg.Socket.Host = *host
	}

	obs.Init(cfg.LogPath, cfg.LogLevel)

	baseCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	memEngine, memCloser, err := buildMemoryIndex(baseCtx, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("agentrt_memory_index_unavailable")
	}
	if memCloser != nil {
		defer memCloser()
	}

	store := channelstore.NewStore(
		channelDataDir(),
		summarizer.New(llmclient.NewAnthropicClient(cfg.Anthropic.APIKey, 1024), cfg.Anthropic.Model),
		channelstore.CompactorOptions{
			Strategy:          compactor.StrategyAdaptive,
			MinMessagesToKeep: cfg.Compactor.MinMessagesToKeep,
		},
	)

	brain := agentbrain.NewBrain(
		llmclient.NewAnthropicClient(cfg.Anthropic.APIKey, 4096),
		buildToolPolicy(),
		newMemorySearchInvoker(memEngine, noBackendInvoker{}),
	)
	brain.Init()

	skillRegistry := skills.NewRegistry()

	attachmentProcessor, closeAttachments := buildAttachmentsProcessor(cfg)
	if closeAttachments != nil {
		defer closeAttachments()
	}

	orch := &orchestrator.Orchestrator{
		Validator:   buildValidator(),
		Attachments: attachmentProcessor,
		Security:    buildSecurityFilter(),
		Store:       store,
		ToolCatalog: nil,
		Brain:       brain,
		Sections:    buildSectionBuilder(skillRegistry),
		Skills: &orchestrator.SkillRegistryAdapter{
			Find: func(text string, limit int) []string {
				var ids []string
				for _, d := range skillRegistry.FindMatchingSkills(text, limit) {
					ids = append(ids, d.ID)
				}
				return ids
			},
		},
		TokenBudget: cfg.Compactor.TokenBudget,
		Model:       cfg.Anthropic.Model,
		LogPayloads: cfg.LogPayloads,
	}

	messageBus := bus.New(256)

	sup := supervisor.New(func(msg model.InboundMessage) {
		if _, err := messageBus.Enqueue(msg); err != nil {
			log.Error().Err(err).Str("channel_id", msg.ChannelID).Msg("agentrt_bus_enqueue_rejected")
		}
	})

	senders := newSenderRegistry()

	switch *gatewayFlag {
	case "cli":
		registerTerminal(sup, senders)
	case "socket":
		registerSocket(sup, senders, cfg)
	case "all":
		registerTerminal(sup, senders)
		registerSocket(sup, senders, cfg)
	default:
		return fmt.Errorf("agentrt: unknown --gateway %q (want cli, socket, or all)", *gatewayFlag)
	}

	browserRelay := relay.New(cfg.Relay.Host, cfg.Relay.Port)
	if err := browserRelay.Initialize(baseCtx); err != nil {
		log.Warn().Err(err).Msg("agentrt_relay_init_failed")
	} else if err := browserRelay.Start(baseCtx); err != nil {
		log.Warn().Err(err).Msg("agentrt_relay_start_failed")
	}

	if errs := sup.StartAll(baseCtx); len(errs) > 0 {
		for name, err := range errs {
			log.Error().Err(err).Str("gateway", name).Msg("agentrt_gateway_start_failed")
		}
	}

	consumerDone := make(chan struct{})
	go runConsumer(baseCtx, messageBus, orch, senders, consumerDone)

	<-baseCtx.Done()
	log.Info().Msg("agentrt_shutdown_begin")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownResourceTimeout)
	defer cancel()

	if errs := sup.StopAll(shutdownCtx, shutdownResourceTimeout); len(errs) > 0 {
		for name, err := range errs {
			log.Warn().Err(err).Str("gateway", name).Msg("agentrt_gateway_stop_failed")
		}
	}

	select {
	case <-consumerDone:
	case <-time.After(shutdownResourceTimeout):
		log.Warn().Msg("agentrt_consumer_drain_timeout")
	}

	if err := browserRelay.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("agentrt_relay_stop_failed")
	}

	log.Info().Msg("agentrt_shutdown_complete")
	return nil
}

// runConsumer polls the bus until ctx is cancelled, since Bus.ProcessOne is
// non-blocking by design (§4.M: reject-on-full, never drop, no blocking
// consumer API). It backs off briefly when the queue is empty to avoid a
// busy loop.
func runConsumer(ctx context.Context, b *bus.Bus, orch *orchestrator.Orchestrator, senders *senderRegistry, done chan struct{}) {
	defer close(done)
	idle := time.NewTicker(10 * time.Millisecond)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		processed := b.ProcessOne(func(msg model.InboundMessage) {
			send, caps, ok := senders.lookup(msg.ChannelID)
			if !ok {
				log.Error().Str("channel_id", msg.ChannelID).Msg("agentrt_no_sender_for_channel")
				return
			}
			if err := orch.Process(ctx, msg, caps, send); err != nil {
				log.Error().Err(err).Str("channel_id", msg.ChannelID).Msg("agentrt_orchestrator_process_failed")
			}
		})
		if processed {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-idle.C:
		}
	}
}

func buildValidator() validator.Policy {
	return validator.Policy{
		MaxTextLength:      16000,
		MaxAttachments:     10,
		MaxAttachmentBytes: 20 * 1024 * 1024,
		AllowedMediaTypes:  []string{"text/*", "image/*", "audio/*", "application/pdf"},
		UserBlocklist:      map[string]bool{},
		RequireText:        false,
	}
}

// buildAttachmentsProcessor wires the "audio" converter category to a local
// whisper.cpp model when one is configured; left unconfigured, audio
// attachments pass through unconverted and their metadata is left untouched
// (internal/attachments.Processor skips any category with no registered
// converter).
func buildAttachmentsProcessor(cfg config.Config) (*attachments.Processor, func()) {
	converters := map[string]attachments.Converter{}

	if cfg.Transcription.WhisperModelPath != "" {
		wc, err := transcribe.NewWhisperConverter(cfg.Transcription.WhisperModelPath)
		if err != nil {
			log.Warn().Err(err).Msg("agentrt_whisper_model_load_failed")
		} else {
			converters["audio"] = wc
			return attachments.NewProcessor(converters), func() {
				if cerr := wc.Close(); cerr != nil {
					log.Warn().Err(cerr).Msg("agentrt_whisper_model_close_failed")
				}
			}
		}
	}

	return attachments.NewProcessor(converters), nil
}

func buildSecurityFilter() security.Filter {
	return security.Filter{
		Rules: []security.Rule{
			{Kind: security.ViolationPromptInjection, Label: "ignore_instructions", Contains: "ignore all previous instructions"},
			{Kind: security.ViolationForbiddenAction, Label: "system_prompt_exfil", Contains: "reveal your system prompt"},
		},
	}
}

func buildToolPolicy() toolpolicy.Policy {
	return toolpolicy.Policy{
		Denylist:        map[string]bool{},
		Allowlist:       map[string]bool{},
		DangerousGroups: map[string]bool{},
		GroupOverrides:  map[model.ToolProfile][]string{},
	}
}

func buildSectionBuilder(registry *skills.Registry) orchestrator.SectionBuilder {
	return func(msg model.InboundMessage, matchedSkills []string) []agentbrain.Section {
		sections := []agentbrain.Section{
			{Name: "directives", Content: "", MinVerbosity: model.VerbosityMinimal, Priority: 0},
		}
		for i, id := range matchedSkills {
			if d, ok := registry.Get(id); ok {
				sections = append(sections, agentbrain.Section{
					Name:         "skill:" + d.ID,
					Content:      d.Body,
					MinVerbosity: model.VerbosityMinimal,
					Priority:     10 + i,
				})
			}
		}
		return sections
	}
}

func channelDataDir() string {
	dir := os.Getenv("CHANNEL_DATA_DIR")
	if dir == "" {
		dir = "data/channels"
	}
	return dir
}

func buildMemoryIndex(ctx context.Context, cfg config.Config) (*memoryindex.Engine, func(), error) {
	if cfg.Memory.DBPath == "" {
		return nil, nil, fmt.Errorf("agentrt: no memory database configured")
	}
	pool, err := pgxpool.New(ctx, cfg.Memory.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("agentrt: connect memory database: %w", err)
	}

	emb := embedder.New(cfg.Memory.Embedding, cfg.Memory.EmbeddingModel)
	engine := memoryindex.NewEngine(pool, emb, memoryindex.ChunkOptions{
		ChunkSizeTokens:    cfg.Memory.ChunkSize,
		ChunkOverlapTokens: cfg.Memory.ChunkOverlap,
	})

	if err := engine.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("agentrt: ensure memory schema: %w", err)
	}

	if len(cfg.Memory.Paths) > 0 {
		if n, err := engine.Sync(ctx, cfg.Memory.Paths, model.SourceMemory); err != nil {
			log.Warn().Err(err).Msg("agentrt_memory_sync_failed")
		} else {
			log.Info().Int("files_indexed", n).Msg("agentrt_memory_sync_complete")
		}
	}

	return engine, pool.Close, nil
}
