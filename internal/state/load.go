package state

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/danhigham/tgcore/internal/domain"
)

// Caller issues a correlated request and waits for its result.
type Caller interface {
	Call(ctx context.Context, req domain.Request) (domain.Result, error)
}

// Load fetches the first pageSize chats and inserts them. A chat that fails
// to load is skipped. It returns the number of chats added.
func (r *Registry) Load(ctx context.Context, c Caller, pageSize int) (int, error) {
	res, err := c.Call(ctx, domain.LoadChats{Limit: pageSize})
	if err != nil {
		return 0, fmt.Errorf("load chats: %w", err)
	}
	ids, ok := res.(domain.ChatIDs)
	if !ok {
		return 0, fmt.Errorf("load chats: unexpected result %T", res)
	}

	added := 0
	for _, id := range ids.IDs {
		res, err := c.Call(ctx, domain.GetChat{ChatID: id})
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, domain.ErrCancelled) {
				return added, fmt.Errorf("get chat %d: %w", id, err)
			}
			r.logger.Warn("skip chat", zap.Int64("chat_id", id), zap.Error(err))
			continue
		}
		cr, ok := res.(domain.ChatResult)
		if !ok {
			r.logger.Warn("skip chat", zap.Int64("chat_id", id), zap.String("result", fmt.Sprintf("%T", res)))
			continue
		}
		if r.Apply(domain.NewChat{Chat: cr.Chat}) {
			added++
		}
	}

	r.logger.Info("chats loaded", zap.Int("requested", len(ids.IDs)), zap.Int("added", added))
	return added, nil
}
