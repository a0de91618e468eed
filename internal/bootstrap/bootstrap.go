package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	appControllers "github.com/schoollib/library/internal/app/controllers"
	appMigrations "github.com/schoollib/library/internal/app/migrations"
	"github.com/schoollib/library/internal/app/models"
	appRepos "github.com/schoollib/library/internal/app/repositories"
	appRoutes "github.com/schoollib/library/internal/app/routes"
	appServices "github.com/schoollib/library/internal/app/services"
	"github.com/schoollib/library/internal/config"
	"github.com/schoollib/library/internal/db"
	appMiddleware "github.com/schoollib/library/internal/middleware"
	pkgAuth "github.com/schoollib/library/internal/pkg/auth"
	"github.com/schoollib/library/internal/pkg/helpers"
	"github.com/schoollib/library/internal/pkg/logger"
	"github.com/schoollib/library/internal/seed"
)

// Dependencies holds all the application dependencies
type Dependencies struct {
	AuthService    appServices.AuthService
	SchoolService  appServices.SchoolService
	CatalogService appServices.CatalogService
	StudentService appServices.StudentService
	LedgerService  appServices.LedgerService
	ImportService  appServices.ImportService
	ReportService  appServices.ReportService
	Controllers    appRoutes.Controllers
	AuthMiddleware *appMiddleware.AuthMiddleware
	Repos          *appRepos.Repositories
	JWTService     *pkgAuth.JWTService
	Logger         zerolog.Logger
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger() (*config.Config, zerolog.Logger, error) {
	configPath := filepath.Join("configs", "config.yaml")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logLevel := logger.ParseLevel(cfg.Logging.Level)
	prettyLog := strings.ToLower(cfg.Logging.Format) == "text"

	logger.Configure(logger.Config{
		Level:  logLevel,
		Pretty: prettyLog,
	})

	lgr := log.Logger
	lgr.Info().Str("logLevel", string(logLevel)).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupDatabase establishes the database connection, runs migrations and seeds default data.
func SetupDatabase(cfg *config.Config, lgr zerolog.Logger) (*db.PostgresDB, error) {
	lgr.Info().Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}
	lgr.Info().Msg("Database connection successfully established.")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	migrationsDir := cfg.Database.MigrationsDir
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		lgr.Error().Str("path", migrationsDir).Msg("Migrations directory not found")
		database.Close()
		return nil, fmt.Errorf("migrations directory not found at %s: %w", migrationsDir, err)
	}

	lgr.Info().Msg("Running database migrations...")
	migrator := appMigrations.NewMigrator(database.Pool, logger.Component("migrator"))
	if err := migrator.MigrateFromDirectory(ctx, migrationsDir); err != nil {
		lgr.Error().Err(err).Msg("Database migration error")
		database.Close()
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}
	lgr.Info().Msg("Database migrations successfully applied.")

	admin := seed.AdminAccount{Username: cfg.Seed.AdminUsername, Password: cfg.Seed.AdminPassword}
	if err := seed.CreateDefaultData(ctx, appRepos.NewRepositories(database), admin, lgr); err != nil {
		lgr.Error().Err(err).Msg("Failed to create default data, proceeding anyway...")
	}

	return database, nil
}

// LendingPolicy builds the ledger rules from the library config section.
func LendingPolicy(cfg *config.Config) models.LendingPolicy {
	return models.LendingPolicy{
		DailyFineRate:  cfg.Library.DailyFineRate,
		LoanPeriodDays: cfg.Library.LoanPeriodDays,
		RenewalDays:    cfg.Library.RenewalDays,
		MaxRenewals:    cfg.Library.MaxRenewals,
	}
}

// BuildDependencies initializes application repositories, services, and controllers.
func BuildDependencies(cfg *config.Config, database *db.PostgresDB, lgr zerolog.Logger) *Dependencies {
	deps := &Dependencies{Logger: lgr}
	deps.Repos = appRepos.NewRepositories(database)
	repos := deps.Repos
	policy := LendingPolicy(cfg)

	deps.JWTService = pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:      cfg.JWT.Secret,
		AccessTokenExp: helpers.ParseDuration(cfg.JWT.AccessTokenExpiration, 12*time.Hour),
		TokenIssuer:    cfg.JWT.Issuer,
	})

	deps.AuthService = appServices.NewAuthService(repos.UserRepository, deps.JWTService, logger.Component("auth"))
	deps.SchoolService = appServices.NewSchoolService(repos.SchoolRepository, repos.UserRepository, logger.Component("schools"))
	deps.CatalogService = appServices.NewCatalogService(repos.CategoryRepository, repos.BookRepository, logger.Component("catalog"))
	deps.StudentService = appServices.NewStudentService(repos.ClassGroupRepository, repos.StudentRepository, logger.Component("students"))
	deps.LedgerService = appServices.NewLedgerService(
		repos.TransactionRepository,
		repos.BookRepository,
		repos.StudentRepository,
		policy,
		logger.Component("ledger"),
	)
	deps.ImportService = appServices.NewImportService(
		repos.SchoolRepository,
		repos.ClassGroupRepository,
		repos.StudentRepository,
		repos.CategoryRepository,
		repos.BookRepository,
		cfg.Library.ImportMessageLimit,
		logger.Component("imports"),
	)
	deps.ReportService = appServices.NewReportService(appServices.ReportDeps{
		Reports:      repos.ReportRepository,
		Schools:      repos.SchoolRepository,
		Books:        repos.BookRepository,
		ClassGroups:  repos.ClassGroupRepository,
		Students:     repos.StudentRepository,
		Transactions: repos.TransactionRepository,
	}, policy, cfg.Library.LowStockThreshold, logger.Component("reports"))

	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(deps.AuthService)

	deps.Controllers = appRoutes.Controllers{
		Auth:    appControllers.NewAuthController(deps.AuthService, deps.SchoolService),
		School:  appControllers.NewSchoolController(deps.SchoolService),
		User:    appControllers.NewUserController(deps.SchoolService),
		Catalog: appControllers.NewCatalogController(deps.CatalogService),
		Student: appControllers.NewStudentController(deps.StudentService),
		Ledger:  appControllers.NewLedgerController(deps.LedgerService),
		Import:  appControllers.NewImportController(deps.ImportService, cfg.Library.ImportMaxBytes),
		Report:  appControllers.NewReportController(deps.ReportService),
	}

	return deps
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	if strings.ToLower(cfg.Server.Mode) == "production" {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	} else {
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	router := gin.New()
	router.Use(gin.Recovery(), appMiddleware.RequestLogger(logger.Component("http")))
	if cfg.Library.ImportMaxBytes > 0 {
		router.MaxMultipartMemory = cfg.Library.ImportMaxBytes
	}

	appRoutes.SetupRouter(router, deps.Controllers, deps.AuthMiddleware)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong", "status": "success"})
	})

	return router
}
