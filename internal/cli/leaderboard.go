package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"classroom-service/internal/app"
	"classroom-service/internal/config"
	"classroom-service/internal/domain"
	"classroom-service/internal/infra/local"
	"classroom-service/internal/infra/postgres"
	"classroom-service/internal/persist"
	"classroom-service/internal/remote"
	"github.com/jackc/pgx/v4/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewLeaderboardCmd prints a session leaderboard from the local ledger or the remote mirror.
func NewLeaderboardCmd(configPath *string) *cobra.Command {
	var (
		scope      domain.SessionScope
		fromRemote bool
	)
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the leaderboard of one class session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			var records []domain.ParticipationRecord
			if fromRemote {
				records, err = remoteRecords(cmd.Context(), cfg)
			} else {
				records, err = localRecords(cmd.Context(), cfg)
			}
			if err != nil {
				return err
			}
			return printLeaderboard(cmd.OutOrStdout(), app.BuildLeaderboard(records, scope))
		},
	}
	cmd.Flags().StringVar(&scope.Date, "date", "", "session date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&scope.Grade, "grade", "", "grade roster identifier")
	cmd.Flags().IntVar(&scope.Period, "period", 0, "teaching period")
	cmd.Flags().BoolVar(&fromRemote, "remote", false, "read the remote participation collection instead of local storage")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("grade")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

func localRecords(ctx context.Context, cfg config.Config) ([]domain.ParticipationRecord, error) {
	if cfg.Storage.Path == "" {
		return nil, fmt.Errorf("storage.path not configured")
	}
	kv, err := local.Open(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	defer kv.Close()
	return persist.NewLedger(kv, nil).Records(ctx)
}

func remoteRecords(ctx context.Context, cfg config.Config) ([]domain.ParticipationRecord, error) {
	if cfg.Postgres.URL == "" {
		return nil, fmt.Errorf("postgres url not configured")
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return nil, err
	}
	store := postgres.NewDocumentStore(pool)
	defer store.Close()

	docs, err := store.List(ctx, remote.CollectionParticipation)
	if err != nil {
		return nil, err
	}
	records := make([]domain.ParticipationRecord, 0, len(docs))
	for _, d := range docs {
		var rec domain.ParticipationRecord
		if err := json.Unmarshal(d.Data, &rec); err != nil {
			log.WithError(err).WithField("id", d.ID).Warn("skipping malformed remote record")
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func printLeaderboard(w io.Writer, lb domain.Leaderboard) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s  %s  period %d\n", lb.Session.Date, lb.Session.Grade, lb.Session.Period)
	fmt.Fprintln(tw, "RANK\tSTUDENT\tSCORE")
	for i, e := range lb.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%d\n", i+1, e.StudentName, e.Score)
	}
	if len(lb.Entries) == 0 {
		fmt.Fprintln(tw, "-\tno correct answers yet\t-")
	}
	return tw.Flush()
}
