// Package cli provides the command-line interface for kitchenloop.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/kitchenloop-go/internal/agent"
	"github.com/raphaelgruber/kitchenloop-go/internal/config"
	"github.com/raphaelgruber/kitchenloop-go/internal/db"
	"github.com/raphaelgruber/kitchenloop-go/internal/llm"
	"github.com/raphaelgruber/kitchenloop-go/internal/service"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool
	userID  string

	// Global config and db client
	cfg      config.Config
	dbClient *db.Client

	// Lazy-initialized services
	logger    *slog.Logger
	inventory *service.Inventory
	chatAgent *agent.Agent
)

// getLogger returns a logger writing JSON to the configured log file. The
// terminal stays reserved for command output; a broken log file only costs
// the logs.
func getLogger() *slog.Logger {
	if logger == nil {
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			logger = slog.New(slog.DiscardHandler)
		} else {
			logger = slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{Level: cfg.LogLevel}))
		}
	}
	return logger
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "kitchenloop",
	Short: "Conversational kitchen inventory tracker",
	Long: `Kitchenloop tracks groceries as batches with expiry dates and
consumes them smartly: open packages and soonest-expiring batches drain
first, cascading across batches when one is not enough.

Talk to it ("bought 2L of milk", "喝了500ml牛奶") or use the direct
subcommands for scripted access.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip DB connection for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()

		ctx := context.Background()
		dbCfg := db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}

		var err error
		dbClient, err = db.NewClient(ctx, dbCfg, nil)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}

		if err := dbClient.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
	},
}

// getInventory creates the inventory service on first use.
func getInventory() *service.Inventory {
	if inventory == nil {
		inventory = service.NewInventory(dbClient, dbClient, getLogger())
	}
	return inventory
}

// getAgent creates the conversation agent, initializing the LLM on first
// use. Only the chat command needs it; direct subcommands stay usable when
// no model is reachable.
func getAgent() (*agent.Agent, error) {
	if chatAgent == nil {
		model, err := llm.NewModel(cfg)
		if err != nil {
			return nil, fmt.Errorf("init model: %w", err)
		}
		extractor := llm.NewExtractor(model, getLogger())
		chatAgent = agent.New(extractor, getInventory(), dbClient, getLogger())
	}
	return chatAgent, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "default", "inventory owner id")

	// Add subcommands
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(inventoryCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(consumeCmd)
	rootCmd.AddCommand(discardCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(logsCmd)
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
