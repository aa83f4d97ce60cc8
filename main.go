package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/getship/shipd/internal/config"
	"github.com/getship/shipd/internal/logger"
	"github.com/getship/shipd/internal/utils"
	"github.com/getship/shipd/pkg/api/middlewares"
	"github.com/getship/shipd/pkg/api/routes"
	"github.com/getship/shipd/pkg/api/servers"
	"github.com/getship/shipd/pkg/domain/entities"
	"github.com/getship/shipd/pkg/infrastructure/archive"
	"github.com/getship/shipd/pkg/infrastructure/compose"
	"github.com/getship/shipd/pkg/infrastructure/docker"
	"github.com/getship/shipd/pkg/infrastructure/execx"
	"github.com/getship/shipd/pkg/infrastructure/store"
	"github.com/getship/shipd/pkg/scheduler"
	"github.com/getship/shipd/pkg/services"
	"github.com/getship/shipd/pkg/taskmanager"
	"github.com/getship/shipd/pkg/ws"
)

func main() {
	logger.Init()
	defer logger.Sync()

	// Load .env file if it exists (optional for Docker runtime)
	if err := godotenv.Load(".env"); err != nil {
		logger.Infof("No .env file found, using environment variables: %s", err)
	}

	cfg := config.Load()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Fatal("failed to create data dir", zap.String("dir", cfg.DataDir), zap.Error(err))
	}

	deployments, err := store.NewDeploymentStore(utils.RegistryFile(cfg.DataDir), entities.Defaults{
		Image:         cfg.Image,
		SourcePath:    cfg.SourcePath,
		DomainSuffix:  cfg.DomainSuffix,
		PostgresImage: cfg.PostgresImage,
	})
	if err != nil {
		logger.Fatal("failed to open deployment registry", zap.Error(err))
	}
	history, err := store.NewHistoryLog(utils.HistoryFile(cfg.DataDir))
	if err != nil {
		logger.Fatal("failed to open build history", zap.Error(err))
	}
	tokenStore, err := store.NewTokenStore(utils.TokensFile(cfg.DataDir))
	if err != nil {
		logger.Fatal("failed to open token store", zap.Error(err))
	}

	dockerClient, err := docker.New()
	if err != nil {
		logger.Fatal("failed to create docker client", zap.Error(err))
	}
	if err := dockerClient.Ping(context.Background()); err != nil {
		logger.Warn("docker daemon unreachable at startup", zap.Error(err))
	}

	runner := execx.LocalRunner{}
	stacks := compose.NewManager(runner, cfg.DataDir)

	tasks := taskmanager.NewTaskManager(2, 16)
	tasks.Start()
	defer tasks.Stop()

	hub := ws.NewHub()

	var uploader *archive.Uploader
	if cfg.Archive.Configured() {
		uploader = archive.NewUploader(cfg.Archive)
	}

	tokens := services.NewTokenService(tokenStore, cfg.AdminToken)
	if err := tokens.EnsureBootstrap(); err != nil {
		logger.Fatal("failed to migrate bootstrap token", zap.Error(err))
	}
	if tokens.OpenMode() {
		logger.Warn("starting in OPEN mode: every request is granted admin until a token is created")
	}

	instances := services.NewInstanceService(deployments, dockerClient, stacks)
	builds := services.NewBuildService(deployments, history, dockerClient, stacks, runner, tasks, hub)
	backups := services.NewBackupService(deployments, stacks, dockerClient, uploader, cfg.DataDir)

	server := servers.NewServer(dockerClient, instances, builds, backups, tokens, hub)

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"*"}
	server.Use(cors.New(corsConfig))
	server.Use(middlewares.Metrics())

	routes.SetupRoutes(server)

	if cfg.RetentionSchedule != "" {
		sched := scheduler.New(builds)
		if err := sched.Schedule(cfg.RetentionSchedule); err != nil {
			logger.Fatal("invalid retention schedule", zap.String("schedule", cfg.RetentionSchedule), zap.Error(err))
		}
		defer sched.Stop()
		logger.Info("scheduled retention sweep", zap.String("schedule", cfg.RetentionSchedule))
	}

	logger.Info("shipd listening", zap.String("port", cfg.Port))
	if err := server.Start(cfg.Port); err != nil {
		logger.Error("failed to start server", zap.Error(err))
		log.Fatal(err)
	}
}
