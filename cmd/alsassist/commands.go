package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hrygo/alsassist/ai/core/retrieval"
	"github.com/hrygo/alsassist/internal/errclass"
	"github.com/hrygo/alsassist/store"
)

var indexCmd = &cobra.Command{
	Use:   "index <dir>",
	Short: "Chunk, embed and store the .md/.txt resources found in dir",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProfile()
		if err != nil {
			return err
		}
		if !p.IsSearchEnabled() {
			return errclass.MissingConfig("embedding", "ALSASSIST_EMBEDDING_API_KEY")
		}

		ctx := cmd.Context()
		st, err := openStore(ctx, p)
		if err != nil {
			return err
		}
		defer st.Close()

		embedder, err := newEmbedder(p)
		if err != nil {
			return err
		}

		docs, err := retrieval.LoadDocuments(os.DirFS(args[0]))
		if err != nil {
			return errors.Wrapf(err, "failed to read %s", args[0])
		}
		n, err := retrieval.NewIndexer(st, embedder).Index(ctx, docs)
		if err != nil {
			return errors.Wrapf(err, "indexed %d chunks before failing", n)
		}
		fmt.Printf("Indexed %d chunks from %d documents\n", n, len(docs))
		return nil
	},
}

var recordMetricsCmd = &cobra.Command{
	Use:   "record-metrics",
	Short: "Store a functional health assessment used for stage estimation",
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, err := loadProfile()
		if err != nil {
			return err
		}
		create, err := healthMetricsFromFlags(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		st, err := openStore(ctx, p)
		if err != nil {
			return err
		}
		defer st.Close()

		created, err := st.RecordHealthMetrics(ctx, create)
		if err != nil {
			return err
		}
		fmt.Printf("Recorded assessment %d for %s\n", created.ID, created.UserID)
		return nil
	},
}

func init() {
	flags := recordMetricsCmd.Flags()
	flags.String("user", "", "user id")
	flags.Float64("mobility", 0, "mobility score in [0,1]")
	flags.Float64("speech", 0, "speech clarity score in [0,1]")
	flags.Float64("breathing", 0, "breathing difficulty score in [0,1]")
	flags.Float64("daily", 0, "daily activity score in [0,1]")
	flags.Int("days", 0, "days since diagnosis")
}

func healthMetricsFromFlags(cmd *cobra.Command) (*store.HealthMetrics, error) {
	flags := cmd.Flags()
	user, _ := flags.GetString("user")
	if user == "" {
		return nil, errclass.Validation("--user is required")
	}

	hm := &store.HealthMetrics{UserID: user}
	for name, dst := range map[string]*float64{
		"mobility":  &hm.Mobility,
		"speech":    &hm.SpeechClarity,
		"breathing": &hm.BreathingDifficulty,
		"daily":     &hm.DailyActivityScore,
	} {
		v, err := flags.GetFloat64(name)
		if err != nil {
			return nil, err
		}
		if v < 0 || v > 1 {
			return nil, errclass.Validation("--%s must be in [0,1], got %g", name, v)
		}
		*dst = v
	}
	days, err := flags.GetInt("days")
	if err != nil {
		return nil, err
	}
	if days < 0 {
		return nil, errclass.Validation("--days must not be negative")
	}
	hm.DaysSinceDiagnosis = days
	return hm, nil
}
