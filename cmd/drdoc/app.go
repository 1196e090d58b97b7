package main

import (
	"fmt"
	"os"
	"time"

	"drdoc/internal/config"
	"drdoc/internal/ingest"
	"drdoc/internal/logging"
	"drdoc/internal/router"
	"drdoc/internal/semantic"
	"drdoc/internal/symbolic"
)

// app holds the wired subsystems behind one command invocation. All
// construction happens here; commands only call methods.
type app struct {
	cfg      *config.Config
	store    *semantic.ChunkStore
	kb       *symbolic.KnowledgeBase
	pipeline *ingest.Pipeline
	router   *router.Router
}

func buildApp() (*app, error) {
	if err := cfg.EnsureStoreDir(); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	store, err := semantic.OpenChunkStore(cfg.Store.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open chunk store: %w", err)
	}

	embedder, err := semantic.NewEmbeddingEngine(semantic.EmbeddingConfig{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
		OpenAIAPIKey:   cfg.Embedding.OpenAIAPIKey,
		OpenAIModel:    cfg.Embedding.OpenAIModel,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build embedding engine: %w", err)
	}

	var kb *symbolic.KnowledgeBase
	if cfg.Symbolic.Enabled {
		timeout, err := time.ParseDuration(cfg.Symbolic.QueryTimeout)
		if err != nil {
			timeout = 30 * time.Second
		}
		kb, err = symbolic.NewKnowledgeBase(symbolic.Config{
			FactLimit:    cfg.Symbolic.FactLimit,
			QueryTimeout: timeout,
		})
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("build knowledge base: %w", err)
		}
		if cfg.Symbolic.SchemaPath != "" {
			schema, err := os.ReadFile(cfg.Symbolic.SchemaPath)
			if err != nil {
				store.Close()
				return nil, fmt.Errorf("read schema %s: %w", cfg.Symbolic.SchemaPath, err)
			}
			if err := kb.Engine().LoadSchemaString(string(schema)); err != nil {
				store.Close()
				return nil, fmt.Errorf("load schema %s: %w", cfg.Symbolic.SchemaPath, err)
			}
		}
	}

	var synth semantic.Synthesizer
	if cfg.LLM.Enabled && cfg.LLM.APIKey != "" {
		chat, err := semantic.NewChatClient(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("build chat client: %w", err)
		}
		synth = chat
	}

	retriever := semantic.NewRetriever(store, embedder, synth, cfg.Router.MaxSemanticCitations)

	var symSource router.SymbolicSource
	var factSink ingest.FactSink
	if kb != nil {
		symSource = kb
		factSink = kb
	}

	rt, err := router.New(cfg.Router, retriever, symSource)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build router: %w", err)
	}

	logging.Get(logging.CategoryBoot).Info("wired app: symbolic=%v llm=%v embedder=%s",
		kb != nil, synth != nil, embedder.Name())

	return &app{
		cfg:      cfg,
		store:    store,
		kb:       kb,
		pipeline: ingest.NewPipeline(store, embedder, factSink, cfg.Ingest),
		router:   rt,
	}, nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logging.Get(logging.CategoryStore).Error("close chunk store: %v", err)
		}
	}
}
