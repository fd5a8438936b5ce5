// Package reconcile repairs divergence between the scalar store and the
// vector store: memos whose vector record went missing, or whose stored
// vector no longer matches a freshly computed one.
package reconcile

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/viterin/vek/vek32"

	"github.com/inkstonehq/inkstone/service/memo"
	"github.com/inkstonehq/inkstone/store"
	"github.com/inkstonehq/inkstone/vecstore"
)

const (
	defaultInterval  = 10 * time.Minute
	defaultBatchSize = 64

	// driftSampleSize bounds the number of existing vectors re-embedded per
	// pass; re-embedding everything every pass would hammer the provider.
	driftSampleSize = 8

	// driftThreshold is the cosine distance above which a stored vector is
	// considered stale and replaced.
	driftThreshold = 0.01
)

// Runner is the periodic repair pass over the memo collection.
type Runner struct {
	store    *store.Store
	vec      *vecstore.Store
	embedder memo.Embedder

	interval  time.Duration
	batchSize int

	// cursor rotates the drift sample window across passes.
	cursor int
}

func NewRunner(st *store.Store, vec *vecstore.Store, embedder memo.Embedder) *Runner {
	return &Runner{
		store:     st,
		vec:       vec,
		embedder:  embedder,
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
	}
}

// Run starts the background task.
func (r *Runner) Run(ctx context.Context) {
	// Process once on startup.
	r.reconcile(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.reconcile(ctx)
		case <-ctx.Done():
			slog.Info("reconcile runner stopped")
			return
		}
	}
}

// RunOnce processes one pass (for manual trigger and tests).
func (r *Runner) RunOnce(ctx context.Context) {
	r.reconcile(ctx)
}

func (r *Runner) reconcile(ctx context.Context) {
	repaired, drifted := 0, 0
	offset := 0
	var sampled []*store.Memo

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		batch, err := r.store.ListMemos(ctx, &store.FindMemo{
			OrderBy: store.MemoOrderByCreatedTs,
			Offset:  &offset,
			Limit:   &r.batchSize,
		})
		if err != nil {
			slog.Error("reconcile: failed to list memos", slog.String("error", err.Error()))
			return
		}
		if len(batch) == 0 {
			break
		}
		offset += len(batch)

		for _, m := range batch {
			_, found, err := r.vec.Get(ctx, memo.Collection, m.ID)
			if err != nil {
				slog.Warn("reconcile: failed to read vector",
					slog.String("memoId", m.ID),
					slog.String("error", err.Error()))
				continue
			}
			if !found {
				if err := r.repair(ctx, m); err != nil {
					slog.Warn("reconcile: failed to repair missing vector",
						slog.String("memoId", m.ID),
						slog.String("error", err.Error()))
					continue
				}
				repaired++
				continue
			}
			sampled = append(sampled, m)
		}
	}

	drifted = r.checkDrift(ctx, sampled)

	if repaired > 0 || drifted > 0 {
		slog.Info("reconcile pass completed",
			slog.Int("repaired", repaired),
			slog.Int("drifted", drifted))
	}
}

// checkDrift re-embeds a rotating sample of memos with intact vector records
// and replaces any vector that drifted past the threshold.
func (r *Runner) checkDrift(ctx context.Context, memos []*store.Memo) int {
	if len(memos) == 0 {
		return 0
	}

	drifted := 0
	for i := 0; i < driftSampleSize && i < len(memos); i++ {
		m := memos[(r.cursor+i)%len(memos)]

		rec, found, err := r.vec.Get(ctx, memo.Collection, m.ID)
		if err != nil || !found {
			continue
		}
		fresh, err := r.embedder.GetOrCreate(ctx, m.Content)
		if err != nil {
			slog.Warn("reconcile: failed to embed for drift check",
				slog.String("memoId", m.ID),
				slog.String("error", err.Error()))
			continue
		}
		if len(fresh) != len(rec.Vector) {
			// Dimension change means the model changed; always replace.
			if err := r.repair(ctx, m); err == nil {
				drifted++
			}
			continue
		}

		distance := 1 - vek32.CosineSimilarity(rec.Vector, fresh)
		if float64(distance) > driftThreshold {
			slog.Warn("reconcile: vector drift detected",
				slog.String("memoId", m.ID),
				slog.String("distance", strconv.FormatFloat(float64(distance), 'f', 6, 64)))
			if err := r.repair(ctx, m); err == nil {
				drifted++
			}
		}
	}
	r.cursor = (r.cursor + driftSampleSize) % len(memos)
	return drifted
}

// repair recomputes the memo's vector and rewrites the full record.
func (r *Runner) repair(ctx context.Context, m *store.Memo) error {
	vector, err := r.embedder.GetOrCreate(ctx, m.Content)
	if err != nil {
		return err
	}
	fields := map[string]string{
		"uid":        m.UID,
		"type":       string(m.Type),
		"created_ts": strconv.FormatInt(m.CreatedTs, 10),
	}
	if m.CategoryID != nil {
		fields["category_id"] = *m.CategoryID
	}
	return r.vec.Upsert(ctx, memo.Collection, vecstore.Record{
		ID:      m.ID,
		Vector:  vector,
		Content: m.Content,
		Fields:  fields,
	})
}
