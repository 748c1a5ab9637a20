package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"google.golang.org/grpc"

	"careslot/backend/internal/config"
	"careslot/backend/internal/logging"
	"careslot/backend/internal/observability/metrics"
	"careslot/backend/internal/service/appointments"
	"careslot/backend/internal/store"
	"careslot/backend/internal/store/memory"
	"careslot/backend/internal/store/postgres"
	grpcTransport "careslot/backend/internal/transport/grpc"
	"careslot/backend/internal/transport/httpapi"
)

const healthProbeInterval = 15 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:          "careslot-server",
		Short:        "Doctor availability and appointment booking server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and gRPC health servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx)
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator) error {
				if err := m.Up(ctx); err != nil {
					return err
				}
				version, err := m.Version(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Database is at version %d.\n", version)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator) error {
				return m.Status(ctx)
			})
		},
	})

	return cmd
}

func withMigrator(ctx context.Context, fn func(ctx context.Context, m *postgres.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	m, err := postgres.NewMigrator(db, log)
	if err != nil {
		return err
	}
	return fn(ctx, m)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type backend struct {
	appointments store.AppointmentRepository
	schedules    store.ScheduleRepository
	health       pinger
	close        func()
}

func openBackend(ctx context.Context, cfg config.Config, log zerolog.Logger) (backend, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		st := memory.New(memory.WithDoctors(cfg.SeedDoctorIDs...), memory.WithPatients(cfg.SeedPatientIDs...))
		log.Warn().
			Int("seed_doctors", len(cfg.SeedDoctorIDs)).
			Int("seed_patients", len(cfg.SeedPatientIDs)).
			Msg("using in-memory store; data is lost on restart")
		return backend{appointments: st, schedules: st, health: st, close: func() {}}, nil
	}

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return backend{}, err
	}
	if cfg.MigrateOnStart {
		m, err := postgres.NewMigrator(db, log)
		if err == nil {
			err = m.Up(ctx)
		}
		if err != nil {
			closeDatabase(db, log)
			return backend{}, fmt.Errorf("migrate on start: %w", err)
		}
	}
	return backend{
		appointments: postgres.NewAppointmentRepo(db),
		schedules:    postgres.NewScheduleRepo(db),
		health:       postgres.NewPinger(db),
		close:        func() { closeDatabase(db, log) },
	}, nil
}

func openDatabase(ctx context.Context, cfg config.Config, log zerolog.Logger) (*bun.DB, error) {
	log.Info().Fields(databaseLogFields(cfg.DatabaseURL)).Msg("connecting to database")
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		log.Error().Err(err).Fields(databaseLogFields(cfg.DatabaseURL)).Msg("database connection failed")
		return nil, err
	}
	postgres.LogQueries(db, log, cfg.DBSlowQuery)
	return db, nil
}

func closeDatabase(db *bun.DB, log zerolog.Logger) {
	if err := postgres.Close(db); err != nil {
		log.Warn().Err(err).Msg("database close failed")
	}
}

func runServer(ctx context.Context) error {
	cfg, err := config.Load()
	if err == nil {
		err = cfg.ValidateServe()
	}
	if err != nil {
		bootLog := logging.New("info", "json")
		bootLog.Error().Err(err).Msg("config load failed")
		return err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("http_addr", cfg.HTTPAddr).
		Str("grpc_addr", cfg.GRPCAddr()).
		Str("store_driver", cfg.StoreDriver).
		Str("time_zone", cfg.TimeZone.String()).
		Str("log_level", cfg.LogLevel).
		Msg("starting")

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer be.close()

	svc := appointments.NewService(be.appointments,
		appointments.WithLocation(cfg.TimeZone),
		appointments.WithMetrics(metrics.NewBookingMetrics(prometheus.DefaultRegisterer)),
		appointments.WithMaxOccurrences(cfg.MaxOccurrences),
		appointments.WithSlotStep(cfg.SlotStep),
	)

	e := httpapi.New(httpapi.Config{
		Appointments:   svc,
		Schedules:      appointments.NewScheduleService(be.schedules),
		Health:         be.health,
		Gatherer:       prometheus.DefaultGatherer,
		Logger:         logging.Component(log, "http"),
		Auth:           httpapi.AuthConfig{SigningKey: []byte(cfg.JWTSecret), Disabled: cfg.AuthDisabled},
		RequestTimeout: cfg.HTTPRequestTimeout,
	})
	if cfg.AuthDisabled {
		log.Warn().Msg("authentication disabled; every request is treated as admin")
	}

	grpcServer := grpcTransport.NewServer(cfg.GRPCRequestTimeout)
	health := grpcTransport.NewHealthReporter(be.health, healthProbeInterval, logging.Component(log, "grpc.health"))
	health.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error().Err(err).Str("grpc_addr", cfg.GRPCAddr()).Msg("grpc listen failed")
		return err
	}

	probeCtx, stopProbe := context.WithCancel(ctx)
	defer stopProbe()
	go health.Run(probeCtx)

	errCh := make(chan error, 2)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		errCh <- e.Start(cfg.HTTPAddr)
	}()
	log.Info().Str("http_addr", cfg.HTTPAddr).Str("grpc_addr", cfg.GRPCAddr()).Msg("servers started")

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error().Err(err).Msg("server stopped with error")
			runErr = err
		}
	}

	stopProbe()
	health.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http graceful shutdown failed")
	}
	grpcTransport.Shutdown(log, grpcServer, cfg.ShutdownTimeout)

	return runErr
}

func databaseLogFields(databaseURL string) map[string]any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return map[string]any{"db_url": "invalid"}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return map[string]any{
		"db_host": host,
		"db_port": port,
		"db_name": name,
	}
}
