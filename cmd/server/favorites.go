package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"weatherfav/internal/config"
	"weatherfav/internal/favorites"
)

func newFavoritesCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "favorites",
		Short: "Inspect saved favorites",
	}
	cmd.AddCommand(newFavoritesListCmd(cfg), newFavoritesWatchCmd(cfg))
	return cmd
}

func newFavoritesListCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List favorites in display order",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			recs, err := a.favorites.Fetch(cmd.Context())
			if err != nil {
				return err
			}
			return printFavorites(recs)
		},
	}
}

// newFavoritesWatchCmd follows the Redis change channel written by serve.
func newFavoritesWatchCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream favorite changes published by a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.RedisURL == "" {
				return fmt.Errorf("watch needs REDIS_URL")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			envelopes, err := a.events.Subscribe(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			for env := range envelopes {
				if err := enc.Encode(env); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newRefreshCmd(cfg *config.Config) *cobra.Command {
	var partial bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the weather of every favorite once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if !partial {
				recs, err := a.fetcher.Refresh(cmd.Context())
				if err != nil {
					return err
				}
				return printFavorites(recs)
			}
			return refreshPartial(cmd, a)
		},
	}
	cmd.Flags().BoolVar(&partial, "partial", false, "save the favorites that refreshed even when others fail")
	return cmd
}

func refreshPartial(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	recs, err := a.favorites.Fetch(ctx)
	if err != nil {
		return err
	}

	results := a.refresher.RefreshEach(ctx, recs)
	refreshed := make([]favorites.Record, 0, len(results))
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", res.Record.ID, res.Err)
			continue
		}
		refreshed = append(refreshed, res.Record)
	}

	if _, err := a.favorites.SaveWeather(ctx, refreshed); err != nil {
		return err
	}
	if err := printFavorites(refreshed); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d favorites failed to refresh", failed, len(results))
	}
	return nil
}

func printFavorites(recs []favorites.Record) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tNAME\tTEMP\tMIN/MAX\tCONDITION")
	for _, r := range recs {
		order, temp, rng, cond := "-", "-", "-", "-"
		if r.SortOrder != nil {
			order = fmt.Sprint(*r.SortOrder)
		}
		if w := r.Weather; w != nil {
			temp = fmt.Sprint(w.Temperature)
			cond = w.ConditionName
			if w.Range != nil {
				rng = fmt.Sprintf("%d/%d", w.Range.Min, w.Range.Max)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", order, r.ID, r.Name, temp, rng, cond)
	}
	return tw.Flush()
}
