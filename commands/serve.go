package commands

import (
	"github.com/spf13/cobra"
	"github.com/zeu5/driving-rl/trainer"
)

func ServeCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the latest checkpoint of an experiment to agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.ServeAddr = addr
			}

			ctx, stop := signalContext()
			defer stop()
			server := trainer.NewServer(trainer.ServerConfig{
				Addr:           cfg.ServeAddr,
				CheckpointRoot: cfg.CheckpointDir,
				Experiment:     cfg.ExperimentName,
				StatsPath:      cfg.StatsPath,
			}, logger)
			return server.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address")
	return cmd
}
