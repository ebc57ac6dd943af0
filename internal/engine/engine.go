package engine

import (
	"context"

	"github.com/emirpasic/gods/v2/maps/linkedhashmap"
	"github.com/rs/zerolog/log"

	"valkyrie/internal/book"
	"valkyrie/internal/common"
)

// Engine owns one Book per security and serializes all book mutation on a
// single command-consuming goroutine (Run): no book is ever mutated
// outside this loop. Snapshot and LogBook read books on the caller's
// goroutine and take no lock against Run.
//
// Books is a linkedhashmap rather than a plain map so diagnostic dumps
// enumerate securities deterministically, in first-referenced order,
// instead of random map iteration order.
type Engine struct {
	books   *linkedhashmap.Map[string, *book.Book]
	cmdCh   chan Command
	eventCh chan Event
}

// New creates an Engine with the given command/event channel capacities.
// Go has no unbounded channel primitive, so a generously sized buffer
// stands in for one; callers size it to the load they expect rather than
// relying on a bespoke unbounded queue.
func New(cmdBuffer, eventBuffer int) *Engine {
	return &Engine{
		books:   linkedhashmap.New[string, *book.Book](),
		cmdCh:   make(chan Command, cmdBuffer),
		eventCh: make(chan Event, eventBuffer),
	}
}

// Commands returns the send side of the command channel, used by session
// readers to submit NewOrder/CancelOrder commands.
func (e *Engine) Commands() chan<- Command { return e.cmdCh }

// Events returns the receive side of the event channel, drained by the
// transport's demultiplexer and routed to the owning session.
func (e *Engine) Events() <-chan Event { return e.eventCh }

// Run is the engine's single-consumer driver loop. It exits, closing the
// event channel, when ctx is cancelled or the command channel is closed.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.eventCh)
	log.Info().Msg("match engine running")
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-e.cmdCh:
			if !ok {
				return
			}
			e.dispatch(ctx, cmd)
		}
	}
}

// dispatch routes one command to its book and forwards every event the
// book appended, in generation order, before processing the next command —
// this is what gives spec's "contiguous, in generation order" guarantee.
func (e *Engine) dispatch(ctx context.Context, cmd Command) {
	bk := e.bookFor(cmd.Cmd.SecurityID)

	var result common.CmdResultCode
	switch cmd.Kind {
	case NewOrderCmd:
		result = bk.NewOrder(cmd.Cmd)
	case CancelOrderCmd:
		result = bk.CancelOrder(cmd.Cmd)
	}

	if result != common.Success {
		log.Debug().
			Str("security", cmd.Cmd.SecurityID).
			Int64("oid", cmd.Cmd.OID).
			Str("result", result.String()).
			Msg("command produced no book mutation")
	}

	for _, ev := range cmd.Cmd.MatchEventList {
		select {
		case e.eventCh <- Event{SecurityID: cmd.Cmd.SecurityID, MatchEvent: ev}:
		case <-ctx.Done():
			return
		}
	}
}

// bookFor returns the book for securityID, creating it lazily on first
// reference.
func (e *Engine) bookFor(securityID string) *book.Book {
	if bk, ok := e.books.Get(securityID); ok {
		return bk
	}
	bk := book.NewBook(securityID)
	e.books.Put(securityID, bk)
	return bk
}

// Snapshot fills an L1 snapshot for securityID up to levels price points
// per side. ok is false if no book has been referenced for securityID yet.
func (e *Engine) Snapshot(securityID string, levels int) (data book.L1MarketData, ok bool) {
	bk, found := e.books.Get(securityID)
	if !found {
		return book.L1MarketData{}, false
	}
	bk.FillCode(&data)
	bk.FillBuys(bk.LimitBuyBucketSize(levels), &data)
	bk.FillSells(bk.LimitSellBucketSize(levels), &data)
	return data, true
}

// LogBook emits one diagnostic log line per tracked security, in
// first-referenced order.
func (e *Engine) LogBook() {
	e.books.Each(func(securityID string, bk *book.Book) {
		log.Info().
			Str("security", securityID).
			Int("sellLevels", bk.LimitSellBucketSize(1<<30)).
			Int("buyLevels", bk.LimitBuyBucketSize(1<<30)).
			Msg("book")
	})
}
