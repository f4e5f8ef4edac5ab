package service

import (
	"context"
	"fmt"

	"github.com/edirooss/smokers/internal/domain/factory"
	"github.com/edirooss/smokers/internal/infrastructure/gateset"
	"go.uber.org/zap"
)

// Agent stocks one pack per order, waits for the cigarette it paid for and
// finally closes the factory.
type Agent struct {
	conn    *Conn
	log     *zap.Logger
	chooser Chooser
}

func NewAgent(log *zap.Logger, conn *Conn, chooser Chooser) *Agent {
	if log == nil {
		log = zap.NewNop()
	}
	if chooser == nil {
		chooser = NewRandomChooser(0)
	}
	return &Agent{conn: conn, log: log.Named(AgentName), chooser: chooser}
}

// Run serves every remaining order, then closes the factory.
func (a *Agent) Run(ctx context.Context) error {
	st, err := a.conn.View(ctx)
	if err != nil {
		return err
	}
	orders := st.OrdersRemaining
	a.log.Info("agent started", zap.Int("orders", orders), zap.Int("ingredients", st.N()))

	for i := 0; i < orders; i++ {
		if err := a.PrepareIngredients(ctx); err != nil {
			return err
		}
		if err := a.WaitForCigarette(ctx); err != nil {
			return err
		}
	}
	if err := a.CloseFactory(ctx); err != nil {
		return err
	}
	a.log.Info("agent done", zap.Int("orders", orders))
	return nil
}

// PrepareIngredients stocks one pack and signals the watcher of every
// ingredient in it.
func (a *Agent) PrepareIngredients(ctx context.Context) error {
	var pack []int
	err := a.conn.Critical(ctx, func(st *factory.State) (string, error) {
		if st.Closing() {
			return "", factory.Violatef(st, "stock", "stocking with no orders remaining")
		}
		p, err := a.chooser.Choose(st.N())
		if err != nil {
			return "", fmt.Errorf("%s: choose pack: %w", AgentName, err)
		}
		if err := st.Stock(p); err != nil {
			return "", err
		}
		st.Agent = factory.AgentPreparing
		pack = p
		return EventStock, nil
	})
	if err != nil {
		return err
	}

	a.log.Debug("stocked", zap.Ints("pack", pack))
	ready := make([]gateset.Gate, len(pack))
	for i, ing := range pack {
		ready[i] = gateset.IngredientReady(ing)
	}
	return a.conn.Signal(ctx, ready...)
}

// WaitForCigarette blocks until a smoker reports a rolled cigarette and
// books the order as served. The last order moves the agent to closing.
func (a *Agent) WaitForCigarette(ctx context.Context) error {
	if err := a.conn.Wait(ctx, gateset.CigaretteDone); err != nil {
		return err
	}
	return a.conn.Critical(ctx, func(st *factory.State) (string, error) {
		if st.OrdersRemaining == 0 {
			return "", factory.Violatef(st, "cigarette_done", "cigarette reported with no order outstanding")
		}
		st.OrdersRemaining--
		if st.OrdersRemaining == 0 {
			st.Agent = factory.AgentClosing
		}
		return EventCigaretteDone, nil
	})
}

// CloseFactory sends the closing token to every smoker and watcher that has
// neither closed nor been sent one already. Calling it again sends nothing.
func (a *Agent) CloseFactory(ctx context.Context) error {
	var wake []gateset.Gate
	err := a.conn.Critical(ctx, func(st *factory.State) (string, error) {
		if !st.Closing() {
			return "", factory.Violatef(st, "close", "closing with %d orders remaining", st.OrdersRemaining)
		}
		for k, ph := range st.Smokers {
			if ph != factory.SmokerClosed && !st.CloseSent[k] {
				st.CloseSent[k] = true
				wake = append(wake, gateset.PairReady(k))
			}
		}
		for i, ph := range st.Watchers {
			if ph != factory.WatcherClosed && !st.WatcherCloseSent[i] {
				st.WatcherCloseSent[i] = true
				wake = append(wake, gateset.IngredientReady(i))
			}
		}
		return EventClose, nil
	})
	if err != nil {
		return err
	}
	a.log.Debug("closing", zap.Int("tokens", len(wake)))
	return a.conn.Signal(ctx, wake...)
}
