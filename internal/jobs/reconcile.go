package jobs

import (
	"context"
	"time"

	"github.com/jasonlvhit/gocron"
	"go.uber.org/zap"

	"github.com/bartime/bartime-api/internal/domain"
)

const reconcileTimeout = 2 * time.Minute

type Reconciler interface {
	ReconcileAll(ctx context.Context) ([]domain.Reconciliation, error)
}

// ReconcileJob periodically replays every live badge's transaction log and
// reports accounts whose cached balance drifted from it.
type ReconcileJob struct {
	ledger       Reconciler
	everyMinutes uint64
	stopped      chan bool
}

func NewReconcileJob(ledger Reconciler, everyMinutes uint64) *ReconcileJob {
	return &ReconcileJob{
		ledger:       ledger,
		everyMinutes: everyMinutes,
	}
}

// Start schedules the job. A zero interval leaves it disabled.
func (j *ReconcileJob) Start() {
	if j.everyMinutes == 0 {
		zap.L().Info("reconciliation job disabled")
		return
	}

	s := gocron.NewScheduler()
	s.Every(j.everyMinutes).Minutes().Do(j.tick)
	j.stopped = s.Start()

	zap.L().Info("reconciliation job scheduled", zap.Uint64("every_minutes", j.everyMinutes))
}

func (j *ReconcileJob) Stop() {
	if j.stopped != nil {
		j.stopped <- true
		j.stopped = nil
	}
}

func (j *ReconcileJob) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	if _, err := j.Run(ctx); err != nil {
		zap.L().Error("reconciliation failed", zap.Error(err))
	}
}

// Run checks every account once and returns the inconsistent ones.
func (j *ReconcileJob) Run(ctx context.Context) ([]domain.Reconciliation, error) {
	recs, err := j.ledger.ReconcileAll(ctx)
	if err != nil {
		return nil, err
	}

	var drifted []domain.Reconciliation
	for _, rec := range recs {
		if rec.Consistent {
			continue
		}
		drifted = append(drifted, rec)
		zap.L().Warn("badge account drifted from its log",
			zap.Uint("badge_id", rec.BadgeID),
			zap.String("cached_balance", rec.CachedBalance.StringFixed(2)),
			zap.String("replayed_balance", rec.ReplayedBalance.StringFixed(2)),
			zap.Int64("cached_version", rec.CachedVersion),
			zap.Int64("log_length", rec.LogLength),
		)
	}

	zap.L().Info("reconciliation finished",
		zap.Int("accounts", len(recs)),
		zap.Int("drifted", len(drifted)),
	)

	return drifted, nil
}
