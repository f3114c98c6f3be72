package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/decoynet/honeypot/pkg/callback"
	"github.com/decoynet/honeypot/pkg/config"
	"github.com/decoynet/honeypot/pkg/llm"
	"github.com/decoynet/honeypot/pkg/persona"
	"github.com/decoynet/honeypot/pkg/safety"
	"github.com/decoynet/honeypot/pkg/server"
	"github.com/decoynet/honeypot/pkg/session"
)

const version = "1.0.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := config.NewDefaultConfig()
	cfg.MustValidate()

	queue := callback.NewQueue(cfg.RetryQueuePath)
	dispatcher := callback.NewDispatcher(cfg.CallbackURL, cfg.CallbackTimeout, queue)
	dispatcher.Recover()

	store := session.NewStore(session.WithMaxAge(cfg.SessionMaxAge))
	fabric := safety.NewFabric()
	templates := persona.NewEngine(time.Now().UnixNano())

	var model *llm.Client
	var backend session.LLMBackend
	if cfg.LLMEnabled {
		model = llm.NewClient(cfg)
		backend = model
		log.Printf("[STARTUP] LLM enabled (provider: %s, model: %s)", cfg.LLMProvider, cfg.LLMModel)
	} else {
		log.Println("[STARTUP] LLM disabled, running template-only")
	}

	engine := session.NewEngine(store, fabric, backend, templates, dispatcher, cfg.IdleTimeout)
	stopReaper := engine.StartReaper(cfg.ReaperInterval)

	srv := server.New(cfg, engine, fabric, model)

	go func() {
		log.Printf("[STARTUP] honeypot v%s listening on :%s", version, cfg.Port)
		if err := srv.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("[STARTUP] FATAL: server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Println("[SHUTDOWN] draining")
	if err := srv.Shutdown(); err != nil {
		log.Printf("[SHUTDOWN] server shutdown: %v", err)
	}
	stopReaper()
	dispatcher.Wait()
	store.Close()
	log.Println("[SHUTDOWN] complete")
}
