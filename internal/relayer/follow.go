package relayer

import (
	"context"
	"time"

	"commitvault/internal/vault"
)

// CreatedSource lists vault creation events by block range.
type CreatedSource interface {
	Head(ctx context.Context) (uint64, error)
	VaultsCreated(ctx context.Context, from, to uint64) ([]vault.Created, error)
}

// Follow polls src from block `from` and watches every vault it reports.
// Errors are logged and the range is retried on the next tick.
func (r *Relayer) Follow(ctx context.Context, src CreatedSource, from uint64, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	next := from
	for {
		next = r.followOnce(ctx, src, next)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Relayer) followOnce(ctx context.Context, src CreatedSource, next uint64) uint64 {
	head, err := src.Head(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("read chain head")
		return next
	}
	if head < next {
		return next
	}
	created, err := src.VaultsCreated(ctx, next, head)
	if err != nil {
		r.log.Warn().Err(err).Uint64("from", next).Uint64("to", head).Msg("read VaultCreated")
		return next
	}
	for _, c := range created {
		r.log.Info().Str("vault", c.VaultID.Hex()).Uint64("match_id", c.MatchID).Msg("watching vault")
		r.Watch(c.VaultID)
	}
	return head + 1
}
