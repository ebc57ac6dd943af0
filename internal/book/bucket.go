// Package book implements the price-level bucket and per-security order
// book that make up the matching core.
package book

import (
	"container/list"
	"time"

	"valkyrie/internal/common"
)

// Bucket aggregates all resting orders at one price, on one side, of one
// security. Entries are held in a doubly-linked list so that FIFO (time
// priority) order survives mid-queue cancellation in O(1) — a
// hashmap+doubly-linked-list price level, the standard FIFO structure for
// this problem.
type Bucket struct {
	price       int64
	totalVolume int64
	entries     *list.List
	index       map[int64]*list.Element
}

// NewBucket creates an empty bucket at price.
func NewBucket(price int64) *Bucket {
	return &Bucket{
		price:   price,
		entries: list.New(),
		index:   make(map[int64]*list.Element),
	}
}

// Price returns the bucket's price level.
func (b *Bucket) Price() int64 { return b.price }

// TotalVolume returns the sum of remaining volume across all entries.
func (b *Bucket) TotalVolume() int64 { return b.totalVolume }

// Len reports the number of resting orders in the bucket.
func (b *Bucket) Len() int { return b.entries.Len() }

// Put appends order to the tail of the queue and adds its remaining volume
// to the bucket's total.
func (b *Bucket) Put(order *common.Order) {
	elem := b.entries.PushBack(order)
	b.index[order.OID] = elem
	b.totalVolume += order.Remaining()
}

// Remove removes the order identified by oid, preserving the relative
// order of the rest, and returns it (nil if not present).
func (b *Bucket) Remove(oid int64) *common.Order {
	elem, ok := b.index[oid]
	if !ok {
		return nil
	}
	order := elem.Value.(*common.Order)
	b.entries.Remove(elem)
	delete(b.index, oid)
	b.totalVolume -= order.Remaining()
	return order
}

// MatchOrders crosses a taker against this bucket in strict FIFO order.
// volumeLeft is the taker's remaining unfilled quantity on arrival at this
// bucket; trigger carries cmd fields used to build the taker leg of each
// fill and accumulates the emitted events. onRemoved is invoked for every
// maker that becomes fully filled, before it is unlinked from the bucket,
// so the caller can drop it from its own order index. Returns the total
// volume matched against this bucket.
func (b *Bucket) MatchOrders(volumeLeft int64, trigger *common.RbCmd, onRemoved func(*common.Order)) int64 {
	var volumeMatch int64

	elem := b.entries.Front()
	for elem != nil && volumeLeft > 0 {
		next := elem.Next()
		maker := elem.Value.(*common.Order)

		canTrade := maker.Remaining()
		if canTrade <= 0 {
			elem = next
			continue
		}

		traded := min(volumeLeft, canTrade)
		maker.TVolume += traded
		b.totalVolume -= traded
		volumeLeft -= traded
		volumeMatch += traded

		makerFull := maker.TVolume == maker.Volume
		takerFull := volumeLeft == 0
		b.emitFill(trigger, maker, traded, makerFull, takerFull)

		if makerFull {
			if onRemoved != nil {
				onRemoved(maker)
			}
			b.entries.Remove(elem)
			delete(b.index, maker.OID)
		}

		elem = next
	}

	return volumeMatch
}

// emitFill appends the two legs of one fill, sharing a single freshly
// allocated trade id, to trigger's match event list.
func (b *Bucket) emitFill(trigger *common.RbCmd, maker *common.Order, traded int64, makerFull, takerFull bool) {
	tid := common.NextTradeID()
	now := time.Now().UnixMilli()

	takerStatus := common.PartTrade
	if takerFull {
		takerStatus = common.TradeEd
	}
	makerStatus := common.PartTrade
	if makerFull {
		makerStatus = common.TradeEd
	}

	trigger.AppendEvent(common.MatchEvent{
		Timestamp: now,
		MID:       trigger.MID,
		OID:       trigger.OID,
		SessionID: maker.SessionID,
		TID:       tid,
		Status:    takerStatus,
		Volume:    traded,
		Price:     maker.Price,
	})
	trigger.AppendEvent(common.MatchEvent{
		Timestamp: now,
		MID:       maker.MID,
		OID:       maker.OID,
		SessionID: trigger.SessionID,
		TID:       tid,
		Status:    makerStatus,
		Volume:    traded,
		Price:     maker.Price,
	})
}
