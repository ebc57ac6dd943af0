package book

import (
	"time"

	"github.com/tidwall/btree"

	"valkyrie/internal/common"
)

// Book is the per-security two-sided structure: a bucket per resting price
// level on each side, plus an oid index for O(1) cancellation lookup.
//
// sellBuckets iterates ascending by price (best ask first); buyBuckets
// iterates descending by price (best bid first) via its own inverted Less
// comparator, so both sides expose "best price first" iteration without a
// reverse-key wrapper type.
type Book struct {
	securityID string

	sellBuckets *btree.BTreeG[*Bucket]
	buyBuckets  *btree.BTreeG[*Bucket]

	orderMap map[int64]*common.Order
}

// NewBook creates an empty book for securityID.
func NewBook(securityID string) *Book {
	return &Book{
		securityID:  securityID,
		sellBuckets: btree.NewBTreeG(func(a, b *Bucket) bool { return a.price < b.price }),
		buyBuckets:  btree.NewBTreeG(func(a, b *Bucket) bool { return a.price > b.price }),
		orderMap:    make(map[int64]*common.Order),
	}
}

// SecurityID returns the security this book is keyed on.
func (bk *Book) SecurityID() string { return bk.securityID }

// NewOrder attempts to cross cmd against resting liquidity and, if it
// isn't fully filled, books the residual. Appends every event it
// generates to cmd.MatchEventList.
func (bk *Book) NewOrder(cmd *common.RbCmd) common.CmdResultCode {
	if _, exists := bk.orderMap[cmd.OID]; exists {
		return common.DuplicateOrderID
	}

	opposing, same := bk.sidesFor(cmd.Side)

	eligible := bk.eligibleBuckets(opposing, cmd.Side, cmd.Price)

	var tVolume int64
	for _, bucket := range eligible {
		if tVolume == cmd.Volume {
			break
		}
		matched := bucket.MatchOrders(cmd.Volume-tVolume, cmd, func(o *common.Order) {
			delete(bk.orderMap, o.OID)
		})
		tVolume += matched
		if bucket.TotalVolume() == 0 {
			opposing.Delete(&Bucket{price: bucket.Price()})
		}
	}

	if tVolume == cmd.Volume {
		return common.Success
	}

	if tVolume == 0 {
		cmd.AppendEvent(common.MatchEvent{
			Timestamp: time.Now().UnixMilli(),
			MID:       cmd.MID,
			OID:       cmd.OID,
			SessionID: cmd.SessionID,
			Status:    common.OrderEd,
			Volume:    0,
			Price:     cmd.Price,
		})
	}

	order := &common.Order{
		OID:        cmd.OID,
		MID:        cmd.MID,
		UID:        cmd.UID,
		SessionID:  cmd.SessionID,
		SecurityID: bk.securityID,
		Side:       cmd.Side,
		Price:      cmd.Price,
		Volume:     cmd.Volume,
		TVolume:    tVolume,
		Timestamp:  time.Now().UnixMilli(),
	}

	bucket, ok := same.Get(&Bucket{price: cmd.Price})
	if !ok {
		bucket = NewBucket(cmd.Price)
		same.Set(bucket)
	}
	bucket.Put(order)
	bk.orderMap[order.OID] = order

	return common.Success
}

// CancelOrder removes a resting order identified by cmd.OID and emits a
// cancellation event.
func (bk *Book) CancelOrder(cmd *common.RbCmd) common.CmdResultCode {
	order, ok := bk.orderMap[cmd.OID]
	if !ok {
		return common.InvalidOrderID
	}

	_, same := bk.sidesFor(order.Side)
	if bucket, ok := same.Get(&Bucket{price: order.Price}); ok {
		bucket.Remove(order.OID)
		if bucket.TotalVolume() == 0 {
			same.Delete(&Bucket{price: order.Price})
		}
	}

	status := common.CancelEd
	if order.TVolume != 0 {
		status = common.PartCancel
	}

	cmd.AppendEvent(common.MatchEvent{
		Timestamp: time.Now().UnixMilli(),
		MID:       order.MID,
		OID:       order.OID,
		SessionID: order.SessionID,
		Status:    status,
		Volume:    order.Remaining(),
		Price:     order.Price,
	})

	delete(bk.orderMap, cmd.OID)
	return common.Success
}

// sidesFor returns (opposing, same) bucket trees for a command of the
// given side: a Sell crosses buyBuckets and rests in sellBuckets; a Buy
// crosses sellBuckets and rests in buyBuckets.
func (bk *Book) sidesFor(side common.Side) (opposing, same *btree.BTreeG[*Bucket]) {
	if side == common.Sell {
		return bk.buyBuckets, bk.sellBuckets
	}
	return bk.sellBuckets, bk.buyBuckets
}

// eligibleBuckets walks the opposing side from its most aggressive price
// toward the limit, collecting every bucket that crosses. Buckets are
// collected up front so the caller can mutate (and delete from) the tree
// while iterating the slice, rather than holding iterator state across a
// mutation of the same map.
func (bk *Book) eligibleBuckets(opposing *btree.BTreeG[*Bucket], side common.Side, price int64) []*Bucket {
	var eligible []*Bucket
	opposing.Scan(func(b *Bucket) bool {
		if side == common.Sell {
			if b.Price() < price {
				return false
			}
		} else {
			if b.Price() > price {
				return false
			}
		}
		eligible = append(eligible, b)
		return true
	})
	return eligible
}

// L1MarketData is a top-of-book snapshot: the best N prices on each side
// with aggregate resting volume.
type L1MarketData struct {
	SecurityID string
	SellPrices []int64
	SellVols   []int64
	SellSize   int
	BuyPrices  []int64
	BuyVols    []int64
	BuySize    int
}

// FillCode stamps the security id into data.
func (bk *Book) FillCode(data *L1MarketData) {
	data.SecurityID = bk.securityID
}

// FillSells walks sellBuckets from best (lowest) price up to size levels.
func (bk *Book) FillSells(size int, data *L1MarketData) {
	data.SellPrices = make([]int64, 0, size)
	data.SellVols = make([]int64, 0, size)
	if size == 0 {
		data.SellSize = 0
		return
	}
	n := 0
	bk.sellBuckets.Scan(func(b *Bucket) bool {
		data.SellPrices = append(data.SellPrices, b.Price())
		data.SellVols = append(data.SellVols, b.TotalVolume())
		n++
		return n < size
	})
	data.SellSize = n
}

// FillBuys walks buyBuckets from best (highest) price down for up to size
// levels.
func (bk *Book) FillBuys(size int, data *L1MarketData) {
	data.BuyPrices = make([]int64, 0, size)
	data.BuyVols = make([]int64, 0, size)
	if size == 0 {
		data.BuySize = 0
		return
	}
	n := 0
	bk.buyBuckets.Scan(func(b *Bucket) bool {
		data.BuyPrices = append(data.BuyPrices, b.Price())
		data.BuyVols = append(data.BuyVols, b.TotalVolume())
		n++
		return n < size
	})
	data.BuySize = n
}

// LimitBuyBucketSize returns min(max, live buy bucket count).
func (bk *Book) LimitBuyBucketSize(max int) int {
	if n := bk.buyBuckets.Len(); n < max {
		return n
	}
	return max
}

// LimitSellBucketSize returns min(max, live sell bucket count).
func (bk *Book) LimitSellBucketSize(max int) int {
	if n := bk.sellBuckets.Len(); n < max {
		return n
	}
	return max
}
