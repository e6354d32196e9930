// Command returnsctl is the operator console for the returns service. It
// opens the same database as the server and works on it directly.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/marketplace-returns/internal/config"
	"github.com/garyjia/marketplace-returns/internal/container"
	"github.com/garyjia/marketplace-returns/internal/domain/entity"
	"github.com/garyjia/marketplace-returns/pkg/utils"
)

var Version = "dev"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "returnsctl",
		Short:         "Operator console for marketplace returns",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to the configuration file")

	rootCmd.AddCommand(trackingCmd())
	rootCmd.AddCommand(failuresCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(orderLinesCmd())
	rootCmd.AddCommand(transitionsCmd())
	rootCmd.AddCommand(resendCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withContainer starts a container for the duration of fn
func withContainer(ctx context.Context, fn func(c *container.Container) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      "warn",
		OutputPath: "stderr",
		Format:     "console",
	})
	if err != nil {
		return err
	}
	defer logger.Sync()

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	}()

	return fn(c)
}

// resolveCase accepts a numeric id or a return number
func resolveCase(ctx context.Context, c *container.Container, ref string) (*entity.ReturnCase, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return c.Engine().GetCase(ctx, id)
	}
	return c.Engine().GetCaseByNumber(ctx, ref)
}
