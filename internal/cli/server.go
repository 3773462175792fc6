package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classroom-service/internal/app"
	"classroom-service/internal/config"
	"classroom-service/internal/domain"
	"classroom-service/internal/infra/local"
	"classroom-service/internal/infra/memory"
	"classroom-service/internal/infra/postgres"
	rediscache "classroom-service/internal/infra/redis"
	"classroom-service/internal/persist"
	"classroom-service/internal/remote"
	transport "classroom-service/internal/transport/http"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const defaultPollSchedule = "@every 5m"

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the classroom server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	rules, err := cfg.SessionRules()
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			// the remote store is optional; run local-only
			log.WithError(err).Warn("remote migrations failed")
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	kv, closeKV, err := openLocalStore(cfg)
	if err != nil {
		return err
	}
	defer closeKV()

	remoteClient := remote.NewClient(postgres.Dial, config.TTLDuration(cfg.Remote.Timeout, 10*time.Second))
	defer remoteClient.Close()
	connectRemote(ctx, cfg, kv, remoteClient)

	ledger := persist.NewLedger(kv, remoteClient)
	activityLog := persist.NewActivityLog(kv, remoteClient)
	curriculumStore := persist.NewCurriculumStore(kv, remoteClient)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Hour)
	rosterTTL := config.TTLDuration(cfg.Classroom.RosterTTL, 10*time.Minute)

	var rosters app.RosterRepository
	var sessions app.SessionRepository
	if redisClient != nil {
		rosters = rediscache.NewRosterRepository(redisClient, curriculumStore, rosterTTL)
		sessions = rediscache.NewSessionStore(redisClient, redisTTL)
	} else {
		rosters = memory.NewRosterRepository(curriculumStore, rosterTTL)
		sessions = memory.NewSessionStore()
	}

	classroom := app.NewClassroomService(sessions, rosters, ledger, rules, cfg.PickerConfig())
	curriculum := app.NewCurriculumService(curriculumStore, rosters, rules)
	activities := app.NewActivityService(activityLog, rules)

	auth, err := transport.NewAuthenticator(cfg.Admin.PassphraseHash, cfg.Admin.Passphrase, cfg.Admin.TokenSecret,
		config.TTLDuration(cfg.Admin.TokenTTL, 12*time.Hour))
	if err != nil {
		return err
	}
	api := transport.NewAPI(classroom, curriculum, activities, remoteClient, kv, auth)
	wsHandler := transport.NewWSHandler(classroom)

	mux := http.NewServeMux()
	api.Register(mux)
	mux.HandleFunc("GET /ws/console", auth.RequireAdmin(wsHandler.ServeWS))

	poller, err := startCurriculumPoll(cfg, curriculum)
	if err != nil {
		return err
	}
	defer poller.Stop()

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting classroom service on :%s", finalPort)
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

// openLocalStore opens the sqlite store, or an in-memory one when no path is configured.
func openLocalStore(cfg config.Config) (persist.KV, func(), error) {
	if cfg.Storage.Path == "" {
		log.Warn("storage.path not set; local data will not survive a restart")
		return memory.NewKV(), func() {}, nil
	}
	kv, err := local.Open(cfg.Storage.Path)
	if err != nil {
		return nil, nil, err
	}
	return kv, func() {
		if err := kv.Close(); err != nil {
			log.WithError(err).Warn("close local store")
		}
	}, nil
}

// connectRemote uses the configured postgres URL, else the blob saved from the console.
// Failure leaves the service local-only.
func connectRemote(ctx context.Context, cfg config.Config, kv persist.KV, client *remote.Client) {
	var rc remote.Config
	switch {
	case cfg.Postgres.URL != "":
		rc = remote.Config{URL: cfg.Postgres.URL}
	default:
		saved, ok, err := persist.LoadRemoteConfig(ctx, kv)
		if err != nil {
			log.WithError(err).Warn("saved remote config rejected")
			return
		}
		if !ok {
			log.Println("no remote store configured; running local-only")
			return
		}
		rc = saved
	}
	if err := client.Connect(ctx, rc); err != nil {
		log.WithError(err).Warn("remote connect failed; running local-only")
	}
}

// startCurriculumPoll pulls newer remote curriculum documents on a schedule.
func startCurriculumPoll(cfg config.Config, curriculum *app.CurriculumService) (*cron.Cron, error) {
	schedule := cfg.Remote.PollSchedule
	if schedule == "" {
		schedule = defaultPollSchedule
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := curriculum.Sync(ctx); err != nil && !errors.Is(err, domain.ErrRemoteNotConnected) {
			log.WithError(err).Warn("curriculum poll failed")
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	log.WithField("schedule", schedule).Info("curriculum poll started")
	return c, nil
}
