package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/diwise/json-commands/internal/pkg/application/commands"
	app "github.com/diwise/json-commands/internal/pkg/application/jsoncommands"
	"github.com/diwise/json-commands/internal/pkg/application/schema"
	"github.com/diwise/json-commands/internal/pkg/infrastructure/database/memory"
	"github.com/diwise/json-commands/internal/pkg/infrastructure/database/postgres"
	"github.com/diwise/json-commands/internal/pkg/infrastructure/router"
	api "github.com/diwise/json-commands/internal/pkg/presentation/api/jsoncommands"
	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
)

const serviceName string = "json-commands"

func DefaultFlags() FlagMap {
	return FlagMap{
		listenAddress: "",
		servicePort:   "8080",

		configPath: "/opt/diwise/config/json-commands.yaml",
		opaPath:    "/opt/diwise/config/authz.rego",

		logFormat: "json",
	}
}

func main() {
	serviceVersion := buildinfo.SourceVersion()

	ctx, flags := parseExternalConfig(context.Background(), DefaultFlags())

	ctx, logger, cleanup := o11y.Init(ctx, serviceName, serviceVersion, flags[logFormat])
	defer cleanup()

	cfg := &AppConfig{
		database: postgres.LoadConfiguration(ctx),
	}

	var err error

	cfg.configFile, err = os.Open(flags[configPath])
	if err != nil {
		logger.Error("failed to open configuration file", "path", flags[configPath], "err", err.Error())
		os.Exit(1)
	}

	cfg.opaConfig, err = os.Open(flags[opaPath])
	if err != nil {
		logger.Error("failed to open policy file", "path", flags[opaPath], "err", err.Error())
		os.Exit(1)
	}

	svc, err := initialize(ctx, flags, cfg)
	if err != nil {
		logger.Error("failed to initialize service", "err", err.Error())
		os.Exit(1)
	}
	defer svc.Stop()

	address := net.JoinHostPort(flags[listenAddress], flags[servicePort])
	logger.Info("starting to listen for connections", "address", address)

	err = http.ListenAndServe(address, svc.handler)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("failed to listen for connections", "err", err.Error())
		os.Exit(1)
	}
}

type service struct {
	handler http.Handler
	app     app.JSONCommands
	closers []func()
}

// Stop releases everything that was acquired by initialize, in reverse order
func (s *service) Stop() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func initialize(ctx context.Context, flags FlagMap, cfg *AppConfig) (*service, error) {
	log := logging.GetFromContext(ctx)

	defer cfg.configFile.Close()
	defer cfg.opaConfig.Close()

	appConfig, err := app.LoadConfiguration(cfg.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	registry, err := schema.NewRegistry(appConfig.RecordTypes)
	if err != nil {
		return nil, fmt.Errorf("invalid record type configuration: %w", err)
	}

	svc := &service{}

	var executor commands.Executor

	if cfg.database.Enabled() {
		db, err := postgres.Connect(ctx, cfg.database, registry)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		svc.closers = append(svc.closers, db.Close)
		executor = db
	} else {
		log.Warn("no database configured, records will only be kept in memory")
		executor = memory.New(registry)
	}

	svc.app, err = app.NewWithRegistry(ctx, *appConfig, registry, executor)
	if err != nil {
		svc.Stop()
		return nil, err
	}

	if err = svc.app.Start(); err != nil {
		svc.Stop()
		return nil, err
	}
	svc.closers = append(svc.closers, func() { svc.app.Stop() })

	r := router.New(serviceName)

	err = api.RegisterHandlers(ctx, r, appConfig.API, cfg.opaConfig, svc.app)
	if err != nil {
		svc.Stop()
		return nil, err
	}

	svc.handler = r

	return svc, nil
}

func parseExternalConfig(ctx context.Context, flags FlagMap) (context.Context, FlagMap) {

	// Allow environment variables to override certain defaults
	envOrDef := env.GetVariableOrDefault
	flags[listenAddress] = envOrDef(ctx, "LISTEN_ADDRESS", flags[listenAddress])
	flags[servicePort] = envOrDef(ctx, "SERVICE_PORT", flags[servicePort])
	flags[configPath] = envOrDef(ctx, "JSONCOMMANDS_CONFIG_PATH", flags[configPath])
	flags[opaPath] = envOrDef(ctx, "JSONCOMMANDS_POLICIES_PATH", flags[opaPath])
	flags[logFormat] = envOrDef(ctx, "LOG_FORMAT", flags[logFormat])

	apply := func(f FlagType) func(string) error {
		return func(value string) error {
			flags[f] = value
			return nil
		}
	}

	// Allow command line arguments to override defaults and environment variables
	flag.Func("config", "path to the record type configuration file", apply(configPath))
	flag.Func("policies", "an authorization policy file", apply(opaPath))
	flag.Parse()

	return ctx, flags
}
