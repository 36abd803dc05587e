// Package main is the entry point for the Constable admin CLI.
// It provides user management, token management, migrations and dataset
// imports against the same database the server uses.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kesrow/constable/internal/cache/redis"
	"github.com/kesrow/constable/internal/config"
	"github.com/kesrow/constable/internal/dataset"
	"github.com/kesrow/constable/internal/lock"
	"github.com/kesrow/constable/internal/repository"
	"github.com/kesrow/constable/internal/repository/postgres"
	"github.com/kesrow/constable/internal/repository/sqlite"
	"github.com/kesrow/constable/internal/service"
	"github.com/kesrow/constable/internal/vocab"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "version" {
		fmt.Printf("Constable Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		return
	}
	if args[0] == "help" {
		printUsage()
		return
	}

	cfg := config.MustLoad(*configPath)
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.WarnLevel)
	ctx := context.Background()

	app, err := newAdminApp(ctx, cfg, logger)
	if err != nil {
		fatal(err)
	}
	defer app.Close()

	if err := app.dispatch(ctx, args); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// adminApp bundles the wiring shared by every admin command.
type adminApp struct {
	cfg      *config.Config
	logger   zerolog.Logger
	health   repository.DatabaseHealth
	users    repository.UserRepository
	tokens   repository.TokenRepository
	writer   repository.RecordWriter
	registry *vocab.Registry

	redisCache *redis.Cache
}

func newAdminApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*adminApp, error) {
	registry, err := vocab.New(cfg.Vocabulary.Values())
	if err != nil {
		return nil, fmt.Errorf("invalid vocabulary configuration: %w", err)
	}

	app := &adminApp{cfg: cfg, logger: logger, registry: registry}

	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.Config{
			Path:            cfg.Database.Path,
			BusyTimeout:     cfg.Database.BusyTimeout,
			JournalMode:     cfg.Database.JournalMode,
			SynchronousMode: cfg.Database.SynchronousMode,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		app.health = db
		app.users = sqlite.NewUserRepository(db)
		app.tokens = sqlite.NewTokenRepository(db)
		app.writer = sqlite.NewRecordRepository(db)

	case "postgres":
		db, err := postgres.NewDB(ctx, postgres.Config{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.Database,
			SSLMode:         cfg.Database.SSLMode,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		app.health = db
		app.users = postgres.NewUserRepository(db)
		app.tokens = postgres.NewTokenRepository(db)
		app.writer = postgres.NewRecordRepository(db)

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	return app, nil
}

func (a *adminApp) Close() {
	if a.redisCache != nil {
		a.redisCache.Close()
	}
	if a.health != nil {
		a.health.Close()
	}
}

// locker returns the dataset import lock. Redis guards across processes
// when enabled; otherwise only this process is protected. Operators
// running one-off imports against a private database can opt out with
// dataset.lock_disabled.
func (a *adminApp) locker(ctx context.Context) (lock.Locker, error) {
	if a.cfg.Dataset.LockDisabled {
		return lock.NewNoopLocker(), nil
	}
	if !a.cfg.Redis.Enabled {
		return lock.NewMemoryLocker(), nil
	}

	cache, err := redis.NewCache(ctx, redis.Config{
		Addr:        a.cfg.Redis.Addr(),
		Password:    a.cfg.Redis.Password,
		DB:          a.cfg.Redis.DB,
		PoolSize:    a.cfg.Redis.PoolSize,
		DialTimeout: a.cfg.Redis.DialTimeout,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	a.redisCache = cache

	hostname, _ := os.Hostname()
	owner := fmt.Sprintf("%s-%d", hostname, os.Getpid())
	return lock.NewRedisLocker(cache.Client(), owner), nil
}

func (a *adminApp) dispatch(ctx context.Context, args []string) error {
	switch args[0] {
	case "user":
		return a.userCommand(ctx, args[1:])
	case "token":
		return a.tokenCommand(ctx, args[1:])
	case "migrate":
		// Migrations already ran during wiring.
		fmt.Println("Migrations applied.")
		return nil
	case "dataset":
		return a.datasetCommand(ctx, args[1:])
	}
	printUsage()
	return fmt.Errorf("unknown command %q", args[0])
}

// =============================================================================
// User Commands
// =============================================================================

func (a *adminApp) userCommand(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: user <create|list|activate|deactivate> ...")
	}

	userService := service.NewUserService(a.users, a.cfg.Auth.BcryptCost, a.logger)

	switch args[0] {
	case "create":
		if len(args) != 2 {
			return fmt.Errorf("usage: user create <username>")
		}
		password, err := readPassword()
		if err != nil {
			return err
		}
		user, err := userService.Register(ctx, service.RegisterInput{
			Username: args[1],
			Password: password,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created user %q (id %d)\n", user.Username, user.ID)
		return nil

	case "list":
		result, err := userService.List(ctx, repository.ListOptions{Limit: 1000})
		if err != nil {
			return err
		}
		fmt.Printf("%-6s %-32s %-8s %s\n", "ID", "USERNAME", "ACTIVE", "CREATED")
		for _, u := range result.Items {
			fmt.Printf("%-6d %-32s %-8t %s\n", u.ID, u.Username, u.IsActive, u.CreatedAt.Format(time.RFC3339))
		}
		return nil

	case "activate", "deactivate":
		if len(args) != 2 {
			return fmt.Errorf("usage: user %s <id>", args[0])
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user id %q", args[1])
		}
		active := args[0] == "activate"
		if err := userService.SetActive(ctx, id, active); err != nil {
			return err
		}
		fmt.Printf("User %d is now active=%t\n", id, active)
		return nil
	}
	return fmt.Errorf("unknown user command %q", args[0])
}

// readPassword takes the password from CONSTABLE_ADMIN_PASSWORD or prompts
// on stdin.
func readPassword() (string, error) {
	if password := os.Getenv("CONSTABLE_ADMIN_PASSWORD"); password != "" {
		return password, nil
	}

	fmt.Print("Password: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// =============================================================================
// Token Commands
// =============================================================================

func (a *adminApp) tokenCommand(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: token <revoke|purge> ...")
	}

	sessionService := service.NewSessionService(a.tokens, a.users, nil, a.cfg.Auth.SessionTTL, a.logger)

	switch args[0] {
	case "revoke":
		if len(args) != 2 {
			return fmt.Errorf("usage: token revoke <token>")
		}
		if err := sessionService.Revoke(ctx, args[1]); err != nil {
			return err
		}
		fmt.Println("Token revoked.")
		return nil

	case "purge":
		n, err := sessionService.PurgeExpired(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Purged %d expired tokens.\n", n)
		return nil
	}
	return fmt.Errorf("unknown token command %q", args[0])
}

// =============================================================================
// Dataset Commands
// =============================================================================

func (a *adminApp) datasetCommand(ctx context.Context, args []string) error {
	if len(args) != 2 || args[0] != "import" {
		return fmt.Errorf("usage: dataset import <path|s3://bucket/key>")
	}
	uri := args[1]

	locker, err := a.locker(ctx)
	if err != nil {
		return err
	}

	resolver := &dataset.Resolver{S3: dataset.S3Options{
		Region:    a.cfg.Dataset.S3Region,
		Endpoint:  a.cfg.Dataset.S3Endpoint,
		AccessKey: a.cfg.Dataset.S3AccessKey,
		SecretKey: a.cfg.Dataset.S3SecretKey,
	}}
	source, err := resolver.Open(ctx, uri)
	if err != nil {
		return err
	}
	defer source.Close()

	datasetService := service.NewDatasetService(a.writer, a.registry, locker, a.logger)
	stats, err := datasetService.Import(ctx, source)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d records (%d rows skipped) from %s\n", stats.Imported, stats.Skipped, uri)
	return nil
}

func printUsage() {
	fmt.Println(`Constable Admin CLI

Usage:
  constable-admin [-config path] <command> [arguments]

Commands:
  user create <username>          Create a user (password via prompt or
                                  CONSTABLE_ADMIN_PASSWORD)
  user list                       List user accounts
  user activate <id>              Enable a user account
  user deactivate <id>            Disable a user account
  token revoke <token>            Revoke a session token
  token purge                     Delete expired session tokens
  dataset import <uri>            Import a CSV dataset (local path or s3://)
  migrate                         Apply database migrations
  version                         Print version information
  help                            Show this help`)
}
