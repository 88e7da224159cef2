package cli

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mind-engage/mindengage-cat/internal/grading"
	"github.com/mind-engage/mindengage-cat/internal/irt"
	"github.com/mind-engage/mindengage-cat/internal/marking"
	"github.com/mind-engage/mindengage-cat/internal/pool"
	"github.com/mind-engage/mindengage-cat/internal/selection"
	"github.com/mind-engage/mindengage-cat/internal/session"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a session against a simulated candidate of known ability",
	Long: "simulate answers each item correctly with the model probability at --theta, " +
		"so a run is reproducible for a given --seed. Without --pool a synthetic pool is used.",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		var opts simOptions
		opts.theta, _ = f.GetFloat64("theta")
		opts.seed, _ = f.GetInt64("seed")
		opts.poolFile, _ = f.GetString("pool")
		opts.cfg.MinItems, _ = f.GetInt("min-items")
		opts.cfg.MaxItems, _ = f.GetInt("max-items")
		opts.cfg.SEThreshold, _ = f.GetFloat64("se")

		model, _ := f.GetString("model")
		m, err := irt.ParseModel(model)
		if err != nil {
			return err
		}
		opts.cfg.Algorithm = m
		method, _ := f.GetString("method")
		sm, err := selection.ParseMethod(method)
		if err != nil {
			return err
		}
		opts.cfg.ItemSelectionMethod = sm
		scoring, _ := f.GetString("scoring")
		if opts.scoring, err = marking.ParseScoringMethod(scoring); err != nil {
			return err
		}
		return simulate(cmd.Context(), cmd.OutOrStdout(), opts)
	},
}

func init() {
	f := simulateCmd.Flags()
	f.Float64("theta", 0, "True ability of the simulated candidate")
	f.Int64("seed", 1, "Random seed")
	f.String("pool", "", "YAML item pool file")
	f.String("model", "2pl", "IRT model: rasch, 2pl or 3pl")
	f.String("method", "max-information", "Item selection: max-information or nearest-difficulty")
	f.String("scoring", "percentile", "Headline score: percentile or raw")
	f.Int("min-items", 5, "Minimum items")
	f.Int("max-items", 20, "Maximum items")
	f.Float64("se", 0.3, "Standard error threshold")
}

type simOptions struct {
	theta    float64
	seed     int64
	poolFile string
	scoring  marking.ScoringMethod
	cfg      session.Config
}

// oracleGrader trusts the simulated candidate's own verdict.
type oracleGrader struct{}

func (oracleGrader) Grade(_ context.Context, _ pool.Item, response any) (grading.Result, error) {
	return grading.Result{Correct: response == "correct"}, nil
}

func simulate(ctx context.Context, w io.Writer, opts simOptions) error {
	items := syntheticPool(41)
	if opts.poolFile != "" {
		var err error
		if items, err = pool.LoadFile(opts.poolFile); err != nil {
			return err
		}
	}

	mk := marking.DefaultConfig()
	if opts.scoring != "" {
		mk.ScoringMethod = opts.scoring
	}
	mgr := session.NewManager(session.NewMemoryStore(), session.WithGrader(oracleGrader{}))
	started, err := mgr.StartSession(ctx, pool.NewStatic(items), session.StartRequest{
		CandidateID: "simulated",
		Marking:     mk,
		Config:      opts.cfg,
	})
	if err != nil {
		return err
	}
	st, err := mgr.GetSession(ctx, started.SessionID)
	if err != nil {
		return err
	}
	byID := make(map[string]pool.Item, len(st.Pool))
	for _, it := range st.Pool {
		byID[it.ID] = it
	}

	rng := rand.New(rand.NewSource(opts.seed))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\titem\tb\tp(true)\tcorrect\ttheta\tse\tpoints")

	itemID := started.FirstItemID
	var out session.Outcome
	for n := 1; itemID != ""; n++ {
		it := byID[itemID]
		p := st.Config.Algorithm.Probability(opts.theta, it.Params)
		verdict := "incorrect"
		if rng.Float64() < p {
			verdict = "correct"
		}
		out, err = mgr.SubmitAnswer(ctx, started.SessionID, itemID, verdict)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.3f\t%v\t%.3f\t%.3f\t%+g\n",
			n, itemID, it.Params.Difficulty, p, verdict == "correct", out.Turn.ThetaAfter, out.Turn.SEAfter, out.Turn.ScoreAwarded)
		itemID = out.NextItemID
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	res := out.Result
	if res == nil {
		return fmt.Errorf("session %s ended without a result", started.SessionID)
	}
	fmt.Fprintf(w, "\ntrue theta %.3f  estimate %.3f  se %.3f  percentile %d  score %g/%g  headline %s=%g  (%s after %d items)\n",
		opts.theta, res.FinalAbilityEstimate, res.FinalStandardError, res.Percentile,
		res.RawScore, res.MaxPossibleScore, res.ScoringMethod, res.Score, res.TerminationReason, res.ItemsAsked)
	return nil
}

// syntheticPool spreads n single-response items over difficulty [-3, 3]
// with discriminations cycling through 0.8..1.6.
func syntheticPool(n int) []pool.Item {
	items := make([]pool.Item, n)
	for i := range items {
		b := -3 + 6*float64(i)/float64(n-1)
		band := pool.Medium
		switch {
		case b < -1:
			band = pool.Easy
		case b > 1:
			band = pool.Hard
		}
		items[i] = pool.Item{
			ID:     fmt.Sprintf("sim-%03d", i+1),
			Type:   pool.SingleResponse,
			Band:   band,
			Params: irt.Params{Discrimination: 0.8 + 0.2*float64(i%5), Difficulty: b, Guessing: 0.2},
		}
	}
	return items
}
