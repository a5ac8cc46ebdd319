package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Usman11801/qetemplate-sub000/internal/app"
	"github.com/Usman11801/qetemplate-sub000/internal/config"
	"github.com/Usman11801/qetemplate-sub000/internal/domain"
	"github.com/Usman11801/qetemplate-sub000/internal/infra/memory"
	pgstore "github.com/Usman11801/qetemplate-sub000/internal/infra/postgres"
	redisstore "github.com/Usman11801/qetemplate-sub000/internal/infra/redis"
	"github.com/Usman11801/qetemplate-sub000/internal/notify"
	transport "github.com/Usman11801/qetemplate-sub000/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 30*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.SessionLoader = memory.NewStaticSessionLoader(sampleSessions())
	if pool != nil {
		loader = pgstore.NewSessionLoader(pool)
	}

	cacheTTL := config.TTLDuration(cfg.Session.CacheTTL, 5*time.Minute)
	var sessions app.SessionRepository
	if redisClient != nil {
		sessions = redisstore.NewSessionRepository(redisClient, loader, cacheTTL)
	} else {
		sessions = memory.NewSessionRepository(loader, cacheTTL)
	}

	var responses app.ResponseStore = memory.NewResponseStore()
	if pool != nil {
		responses = pgstore.NewResponseStore(pool)
	}

	var ephemeral app.EphemeralStore = memory.NewEphemeralStore()
	var slots app.AwardSlots = memory.NewAwardSlots()
	var runs app.RunRepository = memory.NewRunStore()
	if redisClient != nil {
		ephemeral = redisstore.NewEphemeralStore(redisClient, redisTTL)
		slots = redisstore.NewAwardSlots(redisClient)
		runs = redisstore.NewRunStore(redisClient, redisTTL)
	}

	var notifier app.Notifier
	if cfg.Notify.URL != "" {
		notifier = notify.NewCallableEmailSender(cfg.Notify.URL, config.TTLDuration(cfg.Notify.Timeout, 10*time.Second))
	}

	service := app.NewQuizService(app.Deps{
		Sessions:  sessions,
		Responses: responses,
		Ephemeral: ephemeral,
		Slots:     slots,
		Notifier:  notifier,
		Runs:      runs,
		Boards:    memory.NewBoardStore(),
	})
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz session service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleSessions provides a minimal published session; swap the loader with
// the Postgres-backed one in production.
func sampleSessions() map[string]domain.Session {
	correct := 1
	isTrue := true
	return map[string]domain.Session{
		"sess-1": {
			ID:     "sess-1",
			FormID: "form-1",
			Questions: []domain.Question{
				{
					ID: 1,
					Components: []domain.Component{
						{
							ID:            10,
							Kind:          domain.KindMultipleChoice,
							Prompt:        "What is 2 + 2?",
							Options:       []string{"3", "4", "5"},
							CorrectOption: &correct,
						},
					},
					Points:      1,
					MaxAttempts: 2,
				},
				{
					ID: 2,
					Components: []domain.Component{
						{
							ID:          20,
							Kind:        domain.KindTrueFalse,
							Prompt:      "The sky is blue.",
							CorrectBool: &isTrue,
						},
					},
					Points:      2,
					MaxAttempts: 1,
				},
			},
			Settings: domain.Settings{
				LeaderboardEnabled: true,
			},
		},
	}
}
