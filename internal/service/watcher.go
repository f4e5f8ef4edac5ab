package service

import (
	"context"

	"github.com/edirooss/smokers/internal/domain/factory"
	"github.com/edirooss/smokers/internal/infrastructure/gateset"
	"go.uber.org/zap"
)

// Watcher waits for its ingredient to be stocked and runs the matcher on
// behalf of the smokers.
type Watcher struct {
	id   int
	conn *Conn
	log  *zap.Logger
}

func NewWatcher(log *zap.Logger, conn *Conn, id int) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{id: id, conn: conn, log: log.Named(WatcherName(id))}
}

// Run handles stock events until the factory closes.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		closed, err := w.WaitAndNotify(ctx)
		if err != nil {
			return err
		}
		if closed {
			w.log.Debug("watcher closed")
			return nil
		}
	}
}

// WaitAndNotify handles one ingredientReady token. It credits at most one
// smoker with a pair and wakes it. closed is true once the watcher has seen
// the factory closing and moved to its final phase.
func (w *Watcher) WaitAndNotify(ctx context.Context) (closed bool, err error) {
	if err := w.conn.Wait(ctx, gateset.IngredientReady(w.id)); err != nil {
		return false, err
	}

	matched := -1
	err = w.conn.Critical(ctx, func(st *factory.State) (string, error) {
		if st.Closing() {
			st.Watchers[w.id] = factory.WatcherClosed
			closed = true
			return EventWatcherClosed, nil
		}
		st.Watchers[w.id] = factory.WatcherNotifying
		if k, ok := st.Match(); ok {
			if err := st.Claim(k); err != nil {
				return "", err
			}
			matched = k
		}
		return EventNotify, nil
	})
	if err != nil || closed {
		return closed, err
	}

	if matched >= 0 {
		w.log.Debug("pair ready", zap.Int("smoker", matched))
		if err := w.conn.Signal(ctx, gateset.PairReady(matched)); err != nil {
			return false, err
		}
	}

	err = w.conn.Critical(ctx, func(st *factory.State) (string, error) {
		if st.Watchers[w.id] == factory.WatcherNotifying {
			st.Watchers[w.id] = factory.WatcherWaitingIngredient
		}
		return EventNotified, nil
	})
	return false, err
}
