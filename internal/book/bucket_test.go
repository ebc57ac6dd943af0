package book

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"valkyrie/internal/common"
)

func newRestingOrder(oid, price, volume int64, side common.Side) *common.Order {
	return &common.Order{
		OID:        oid,
		SecurityID: "AAPL",
		Side:       side,
		Price:      price,
		Volume:     volume,
	}
}

func TestBucket_PutAndRemove(t *testing.T) {
	b := NewBucket(100)

	b.Put(newRestingOrder(1, 100, 10, common.Buy))
	b.Put(newRestingOrder(2, 100, 20, common.Buy))
	assert.Equal(t, int64(30), b.TotalVolume())
	assert.Equal(t, 2, b.Len())

	removed := b.Remove(1)
	assert.NotNil(t, removed)
	assert.Equal(t, int64(1), removed.OID)
	assert.Equal(t, int64(20), b.TotalVolume())
	assert.Equal(t, 1, b.Len())

	assert.Nil(t, b.Remove(1), "removing an already-removed oid is a no-op")
}

func TestBucket_MatchOrders_FIFO(t *testing.T) {
	b := NewBucket(100)
	b.Put(newRestingOrder(1, 100, 10, common.Sell))
	b.Put(newRestingOrder(2, 100, 10, common.Sell))

	trigger := &common.RbCmd{OID: 99, SessionID: 7, Price: 100, Volume: 15}
	var removedOIDs []int64
	matched := b.MatchOrders(15, trigger, func(o *common.Order) {
		removedOIDs = append(removedOIDs, o.OID)
	})

	assert.Equal(t, int64(15), matched)
	assert.Equal(t, []int64{1}, removedOIDs, "the first resting order fills completely before the second is touched")
	assert.Equal(t, int64(5), b.TotalVolume(), "second order has 5 remaining")
	assert.Equal(t, 1, b.Len(), "second order is still in the bucket, now partially filled")

	assert.Len(t, trigger.MatchEventList, 4, "two legs per partial crossing, one crossing per resting order consumed")
}

func TestBucket_MatchOrders_MakerFullyConsumed(t *testing.T) {
	b := NewBucket(100)
	b.Put(newRestingOrder(1, 100, 10, common.Sell))

	trigger := &common.RbCmd{OID: 99, SessionID: 7, Price: 100, Volume: 10}
	var removed []int64
	matched := b.MatchOrders(10, trigger, func(o *common.Order) { removed = append(removed, o.OID) })

	assert.Equal(t, int64(10), matched)
	assert.Equal(t, []int64{1}, removed)
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, int64(0), b.TotalVolume())

	assert.Len(t, trigger.MatchEventList, 2)
	takerLeg, makerLeg := trigger.MatchEventList[0], trigger.MatchEventList[1]
	assert.Equal(t, common.TradeEd, takerLeg.Status)
	assert.Equal(t, common.TradeEd, makerLeg.Status)
	assert.Equal(t, takerLeg.TID, makerLeg.TID, "both legs of one fill share a trade id")
	assert.Equal(t, int64(10), takerLeg.Volume, "taker leg volume is the traded quantity")
	assert.Equal(t, int64(10), makerLeg.Volume, "maker leg volume is the traded quantity, not order.Volume")
}

func TestBucket_MatchOrders_TakerPartialAcrossMultipleMakers(t *testing.T) {
	b := NewBucket(100)
	b.Put(newRestingOrder(1, 100, 5, common.Sell))
	b.Put(newRestingOrder(2, 100, 5, common.Sell))
	b.Put(newRestingOrder(3, 100, 5, common.Sell))

	trigger := &common.RbCmd{OID: 99, SessionID: 7, Price: 100, Volume: 8}
	matched := b.MatchOrders(8, trigger, func(o *common.Order) {})

	assert.Equal(t, int64(8), matched)
	assert.Equal(t, 2, b.Len(), "order 1 fully consumed, order 2 partially, order 3 untouched")
	assert.Equal(t, int64(7), b.TotalVolume())
}
