package poller

import (
	"context"
	"sync"
	"time"

	"comandero/internal/kitchen/alert"
	"comandero/internal/order/domain/dto"
	"comandero/internal/xpkg/logger"
)

// TicketClient is the kitchen surface's view of the order service.
type TicketClient interface {
	Tickets(ctx context.Context) ([]dto.OrderView, error)
	MarkReady(ctx context.Context, id int64) error
}

// Poller re-fetches the pending ticket list on a fixed interval and diffs it
// locally. previousIds holds the ids of the prior successful poll; hiddenIds
// masks tickets dismissed locally until a server-visible status change
// propagates. Neither set is persisted server-side.
type Poller struct {
	client   TicketClient
	alerter  alert.Alerter
	mylog    logger.Logger
	interval time.Duration

	mu       sync.Mutex
	previous map[int64]struct{}
	hidden   map[int64]struct{}
	seeded   bool
	tickets  []dto.OrderView
}

func New(client TicketClient, alerter alert.Alerter, interval time.Duration, mylog logger.Logger) *Poller {
	return &Poller{
		client:   client,
		alerter:  alerter,
		mylog:    mylog,
		interval: interval,
		previous: make(map[int64]struct{}),
		hidden:   make(map[int64]struct{}),
	}
}

// Run polls until ctx is cancelled. The first poll seeds previousIds without
// sounding the cue.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	if err := p.Tick(ctx); err != nil {
		p.mylog.Action("poll_failed").Error("Initial ticket poll failed", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.Tick(ctx); err != nil {
				p.mylog.Action("poll_failed").Error("Ticket poll failed", err)
			}
		}
	}
}

// Tick performs one poll cycle: fetch, mask hidden tickets, diff against the
// previous id set, and sound exactly one cue for the whole batch of new
// tickets.
func (p *Poller) Tick(ctx context.Context) error {
	fetched, err := p.client.Tickets(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	visible := make([]dto.OrderView, 0, len(fetched))
	current := make(map[int64]struct{}, len(fetched))
	newCount := 0
	for _, t := range fetched {
		if _, dismissed := p.hidden[t.ID]; dismissed {
			continue
		}
		visible = append(visible, t)
		current[t.ID] = struct{}{}
		if _, known := p.previous[t.ID]; !known {
			newCount++
		}
	}

	if p.seeded && newCount > 0 {
		p.alerter.Ring()
		p.mylog.Action("new_tickets").Info("New kitchen tickets", "count", newCount)
	}

	p.previous = current
	p.tickets = visible
	p.seeded = true
	return nil
}

// MarkReady transitions one ticket and hides it locally on success without
// waiting for the next poll to confirm.
func (p *Poller) MarkReady(ctx context.Context, id int64) error {
	if err := p.client.MarkReady(ctx, id); err != nil {
		return err
	}

	p.mu.Lock()
	p.hidden[id] = struct{}{}
	delete(p.previous, id)
	for i, t := range p.tickets {
		if t.ID == id {
			p.tickets = append(p.tickets[:i], p.tickets[i+1:]...)
			break
		}
	}
	p.mu.Unlock()

	p.mylog.Action("ticket_ready").Info("Ticket marked ready", "order_id", id)
	return nil
}

// Hide dismisses a ticket locally without completing it. It reappears only
// after a restart clears the hidden set.
func (p *Poller) Hide(id int64) {
	p.mu.Lock()
	p.hidden[id] = struct{}{}
	delete(p.previous, id)
	for i, t := range p.tickets {
		if t.ID == id {
			p.tickets = append(p.tickets[:i], p.tickets[i+1:]...)
			break
		}
	}
	p.mu.Unlock()
}

// Tickets returns the currently visible ticket list.
func (p *Poller) Tickets() []dto.OrderView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]dto.OrderView(nil), p.tickets...)
}
