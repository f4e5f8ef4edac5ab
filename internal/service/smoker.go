package service

import (
	"context"

	"github.com/edirooss/smokers/internal/domain/factory"
	"github.com/edirooss/smokers/internal/infrastructure/gateset"
	"go.uber.org/zap"
)

// Smoker owns an infinite supply of one ingredient. It waits for a pair of
// the others, rolls a cigarette, reports it to the agent and smokes it.
type Smoker struct {
	id      int
	conn    *Conn
	log     *zap.Logger
	rolling DurationSource
	smoking DurationSource
}

// NewSmoker builds smoker id. Nil duration sources take no time.
func NewSmoker(log *zap.Logger, conn *Conn, id int, rolling, smoking DurationSource) *Smoker {
	if log == nil {
		log = zap.NewNop()
	}
	if rolling == nil {
		rolling = Fixed(0)
	}
	if smoking == nil {
		smoking = Fixed(0)
	}
	return &Smoker{id: id, conn: conn, log: log.Named(SmokerName(id)), rolling: rolling, smoking: smoking}
}

// Run smokes until the closing token arrives.
func (s *Smoker) Run(ctx context.Context) error {
	for {
		ok, err := s.WaitForIngredients(ctx)
		if err != nil {
			return err
		}
		if !ok {
			s.log.Debug("smoker closed")
			return nil
		}
		if err := s.RollCigarette(ctx); err != nil {
			return err
		}
		if err := s.Smoke(ctx); err != nil {
			return err
		}
	}
}

// WaitForIngredients publishes the waiting phase, blocks on pairReady and
// takes the earmarked pair, moving to Rolling in the same critical section.
// It returns false when woken by the closing token.
// A wake-up with neither a pair nor a closing factory is a protocol violation.
func (s *Smoker) WaitForIngredients(ctx context.Context) (bool, error) {
	err := s.conn.Critical(ctx, func(st *factory.State) (string, error) {
		st.Smokers[s.id] = factory.SmokerWaitingPair
		return EventWaitPair, nil
	})
	if err != nil {
		return false, err
	}

	if err := s.conn.Wait(ctx, gateset.PairReady(s.id)); err != nil {
		return false, err
	}

	got := false
	err = s.conn.Critical(ctx, func(st *factory.State) (string, error) {
		switch {
		case st.Matched[s.id]:
			if err := st.Consume(s.id); err != nil {
				return "", err
			}
			st.Smokers[s.id] = factory.SmokerRolling
			got = true
			return EventConsume, nil
		case st.Closing() && st.CloseSent[s.id]:
			st.Smokers[s.id] = factory.SmokerClosed
			return EventSmokerClosed, nil
		default:
			return "", factory.Violatef(st, "pair_ready", "smoker %d woken without a pair or a closing token", s.id)
		}
	})
	return got, err
}

// RollCigarette takes the rolling time and reports the cigarette to the agent.
func (s *Smoker) RollCigarette(ctx context.Context) error {
	if err := pause(ctx, s.rolling()); err != nil {
		return err
	}
	return s.conn.Signal(ctx, gateset.CigaretteDone)
}

// Smoke counts the cigarette and takes the smoking time.
func (s *Smoker) Smoke(ctx context.Context) error {
	err := s.conn.Critical(ctx, func(st *factory.State) (string, error) {
		st.Smokers[s.id] = factory.SmokerSmoking
		st.Cigarettes[s.id]++
		return EventSmoking, nil
	})
	if err != nil {
		return err
	}
	d := s.smoking()
	s.log.Debug("smoking", zap.Duration("for", d))
	return pause(ctx, d)
}
