package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/adamscao/permitserver/internal/approval"
	"github.com/adamscao/permitserver/internal/checkpoint"
	"github.com/adamscao/permitserver/internal/config"
	"github.com/adamscao/permitserver/internal/credential"
	"github.com/adamscao/permitserver/internal/db"
	"github.com/adamscao/permitserver/internal/db/repository"
	"github.com/adamscao/permitserver/internal/identity"
	"github.com/adamscao/permitserver/internal/models"
	"github.com/adamscao/permitserver/internal/permit"
	"github.com/adamscao/permitserver/internal/policy"
	"github.com/adamscao/permitserver/internal/render"
)

var (
	// Version information (set via ldflags)
	Version = "dev"
	Commit  = "unknown"
)

var (
	configPath string
	actorName  string

	cfg      *config.Config
	database *db.DB

	requestRepo    *repository.RequestRepository
	credentialRepo *repository.CredentialRepository
	auditRepo      *repository.AuditRepository
	userRepo       *repository.UserRepository

	permitSvc   *permit.Service
	identitySvc *identity.Service
	checkpointV *checkpoint.Validator
)

var rootCmd = &cobra.Command{
	Use:   "permitctl",
	Short: "Vehicle permit server administration tool",
	Long:  "Administrative tool for managing vehicle access requests, credentials, users, and the audit ledger",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/permitserver/config.yaml", "Config file path")
	rootCmd.PersistentFlags().StringVar(&actorName, "actor", "", "Username of the acting user (required for state-changing commands)")

	rootCmd.AddCommand(versionCmd)
	addUserCommands()
	addRequestCommands()
	addCredentialCommands()
	addScanCommand()
	addAuditCommands()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("permitctl %s (commit: %s)\n", Version, Commit)
	},
}

// initServices loads the configuration, opens the database, and wires the
// repositories and services.
func initServices() error {
	var err error
	cfg, err = config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	database, err = db.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.RunMigrations(database); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	requestRepo = repository.NewRequestRepository(database.DB)
	credentialRepo = repository.NewCredentialRepository(database.DB)
	auditRepo = repository.NewAuditRepository(database.DB)
	userRepo = repository.NewUserRepository(database.DB)

	validator := policy.NewValidator(cfg, requestRepo)
	renderer := render.NewFileRenderer(cfg.Credential.ArtifactDir, cfg.Credential.QRSize)
	issuer := credential.NewIssuer(credentialRepo, renderer, validator)

	permitSvc = permit.NewService(requestRepo, credentialRepo, issuer, auditRepo, validator, logger)
	identitySvc = identity.NewService(userRepo, auditRepo, logger)
	checkpointV = checkpoint.NewValidator(credentialRepo, requestRepo, auditRepo, logger)

	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// resolveActor resolves the --actor flag into the identity the state
// machine trusts.
func resolveActor() (approval.Actor, error) {
	if actorName == "" {
		return approval.Actor{}, fmt.Errorf("--actor is required")
	}

	user, err := identitySvc.GetByUsername(actorName)
	if err != nil {
		return approval.Actor{}, fmt.Errorf("failed to resolve actor %q: %w", actorName, err)
	}
	if !user.Enabled {
		return approval.Actor{}, fmt.Errorf("actor account %q is disabled", actorName)
	}

	return approval.Actor{ID: user.ID, Name: user.Name, Authority: user.Authority()}, nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func statusArgs(names []string) ([]models.RequestStatus, error) {
	var statuses []models.RequestStatus
	for _, name := range names {
		s := models.RequestStatus(name)
		switch s {
		case models.StatusPending, models.StatusLevel1Approved, models.StatusLevel2Approved,
			models.StatusApproved, models.StatusRejected:
			statuses = append(statuses, s)
		default:
			return nil, fmt.Errorf("unknown status %q", name)
		}
	}
	return statuses, nil
}
