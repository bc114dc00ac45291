package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Ubastic/notemind/internal/ai"
	"github.com/Ubastic/notemind/internal/config"
	"github.com/Ubastic/notemind/internal/handlers"
	"github.com/Ubastic/notemind/internal/middleware"
	"github.com/Ubastic/notemind/internal/repo"
	"github.com/Ubastic/notemind/internal/service"
)

func main() {
	cfg := config.NewConfig()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	sugar := logger.Sugar()
	middleware.SetLogger(sugar)
	defer func() {
		_ = logger.Sync()
	}()

	if err := cfg.Validate(); err != nil {
		sugar.Fatalw("invalid configuration", "error", err)
	}

	db, err := repo.InitDB(cfg.DatabaseDSN)
	if err != nil {
		sugar.Fatalw("failed to initialize database", "error", err)
	}

	userRepo := repo.NewUserRepository(db)
	noteRepo := repo.NewNoteRepository(db)
	attachmentRepo := repo.NewAttachmentRepository(db)
	shareRepo := repo.NewShareRepository(db)
	trackerRepo := repo.NewTrackerRepository(db)

	files := service.NewFileStore(cfg.UploadDir)
	analyzer := ai.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMChatModel, cfg.LLMEmbedModel, cfg.AITimeout)

	users := service.NewUserService(userRepo, cfg.AIEnabled)
	notes := service.NewNoteService(noteRepo, attachmentRepo, shareRepo, users, analyzer, files, cfg.SemanticThreshold, sugar)
	shares := service.NewShareService(shareRepo, userRepo, notes)
	attachments := service.NewAttachmentService(attachmentRepo, noteRepo, shareRepo, files, int64(cfg.MaxUploadMB)<<20, sugar)
	tracker := service.NewTrackerService(trackerRepo)

	h := handlers.NewHandler(users, notes, attachments, shares, tracker, db, sugar, cfg)

	server := &http.Server{
		Addr:    cfg.RunAddr,
		Handler: h.Router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sugar.Infow("starting server",
		"addr", cfg.RunAddr,
		"ai_enabled", cfg.AIEnabled,
		"upload_dir", cfg.UploadDir,
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("server failed", "error", err)
	}
	sugar.Infow("server stopped")
}
