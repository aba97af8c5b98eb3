// Command catalogctl runs maintenance tasks against the storefront database:
// schema migrations and administrator bootstrap.
package main

import (
	"context"
	"fmt"
	"os"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/logger"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/token"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd(&cliApp{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cliApp connects to the configured database on demand.
type cliApp struct {
	verbose bool
}

func (a *cliApp) logger() *zap.Logger {
	return logger.NewCLI(a.verbose)
}

func (a *cliApp) connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	pool, err := database.Connect(ctx, cfg.Database, a.logger())
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func (a *cliApp) openPool(ctx context.Context) (*pgxpool.Pool, func(), error) {
	_, pool, err := a.connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	return pool, pool.Close, nil
}

func (a *cliApp) openIdentities(ctx context.Context) (identityCreator, func(), error) {
	cfg, pool, err := a.connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	repo := repository.NewIdentityRepository(repository.NewDB(pool))
	tokens := token.NewManager(cfg.JWT.Secret, cfg.JWT.TTL)
	return service.NewIdentityService(repo, tokens, cfg.Auth.SignupCode, a.logger()), pool.Close, nil
}

func newRootCmd(app *cliApp) *cobra.Command {
	root := &cobra.Command{
		Use:   "catalogctl",
		Short: "Maintenance tool for the storefront back office",
		Long: `catalogctl applies database migrations and bootstraps administrator accounts.

It reads the same .env file and environment variables as the API server.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newMigrateCmd(app.openPool, app.logger))
	root.AddCommand(newAdminCmd(app.openIdentities))
	root.AddCommand(newVersionCmd())
	return root
}
