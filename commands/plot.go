package commands

import (
	"encoding/json"
	"path"

	"github.com/spf13/cobra"
	"github.com/zeu5/driving-rl/stats"
	"github.com/zeu5/driving-rl/util"
)

func PlotCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Chart reward, epsilon and frames per epoch from the statistics log",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			all, err := stats.ReadAll(cfg.StatsPath)
			if err != nil {
				return err
			}
			files, err := stats.Plot(all, out)
			if err != nil {
				return err
			}
			bs, err := json.MarshalIndent(stats.Summarize(all), "", "  ")
			if err != nil {
				return err
			}
			summary := path.Join(out, "summary.json")
			if err := util.WriteToFile(summary, string(bs)); err != nil {
				return err
			}
			logger.Info().Strs("charts", files).Str("summary", summary).Int("records", len(all)).Msg("plotted statistics")
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "plots", "Output directory for the charts")
	return cmd
}
