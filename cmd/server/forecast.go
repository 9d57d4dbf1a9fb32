package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"weatherfav/internal/config"
)

func newForecastCmd(cfg *config.Config) *cobra.Command {
	var lat, lon float64

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Print the hourly and daily forecast for a coordinate pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := newForecastService(*cfg, prometheus.NewRegistry())
			fc, err := svc.Load(cmd.Context(), lat, lon, nil)
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "%s  now %d°C %s\n\n", fc.City.Name, fc.Current.Temperature, fc.Current.ConditionName)
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tTEMP\tCONDITION")
			for _, h := range fc.Hourly {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", h.Time.Format("Mon 15:04"), h.Report.Temperature, h.Report.ConditionName)
			}
			fmt.Fprintln(tw, "\nDAY\tMIN/MAX\tCONDITION")
			for _, d := range fc.Daily {
				rng := "-"
				if d.Report.Range != nil {
					rng = fmt.Sprintf("%d/%d", d.Report.Range.Min, d.Report.Range.Max)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Date.Format("2006-01-02"), rng, d.Report.ConditionName)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude")
	cmd.MarkFlagRequired("lat")
	cmd.MarkFlagRequired("lon")
	return cmd
}
