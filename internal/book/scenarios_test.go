package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valkyrie/internal/common"
)

// These mirror the end-to-end scenarios worked through by hand below,
// with exact expected prices, volumes, and event ordering.

func TestScenario_S1_ExactCross(t *testing.T) {
	bk := NewBook("X")

	c1 := cmd(1, common.Sell, 100, 10)
	require.Equal(t, common.Success, bk.NewOrder(c1))
	require.Len(t, c1.MatchEventList, 1)
	assert.Equal(t, common.OrderEd, c1.MatchEventList[0].Status)
	assert.Equal(t, int64(0), c1.MatchEventList[0].Volume)

	c2 := cmd(2, common.Buy, 100, 10)
	require.Equal(t, common.Success, bk.NewOrder(c2))
	require.Len(t, c2.MatchEventList, 2)
	taker, maker := c2.MatchEventList[0], c2.MatchEventList[1]
	assert.Equal(t, taker.TID, maker.TID)
	assert.Equal(t, int64(100), taker.Price)
	assert.Equal(t, int64(100), maker.Price)
	assert.Equal(t, int64(10), taker.Volume)
	assert.Equal(t, int64(10), maker.Volume)
	assert.Equal(t, common.TradeEd, taker.Status)
	assert.Equal(t, common.TradeEd, maker.Status)

	var data L1MarketData
	bk.FillSells(bk.LimitSellBucketSize(10), &data)
	assert.Empty(t, data.SellPrices)
	bk.FillBuys(bk.LimitBuyBucketSize(10), &data)
	assert.Empty(t, data.BuyPrices)
}

func TestScenario_S2_PartialTaker(t *testing.T) {
	bk := NewBook("X")
	require.Equal(t, common.Success, bk.NewOrder(cmd(1, common.Sell, 100, 5)))

	c2 := cmd(2, common.Buy, 100, 10)
	require.Equal(t, common.Success, bk.NewOrder(c2))

	require.Len(t, c2.MatchEventList, 2)
	taker, maker := c2.MatchEventList[0], c2.MatchEventList[1]
	assert.Equal(t, int64(5), taker.Volume)
	assert.Equal(t, common.PartTrade, taker.Status, "volume_left drops to 5, not 0, so the taker leg is PartTrade")
	assert.Equal(t, common.TradeEd, maker.Status)

	var data L1MarketData
	bk.FillBuys(bk.LimitBuyBucketSize(10), &data)
	assert.Equal(t, []int64{100}, data.BuyPrices)
	assert.Equal(t, []int64{5}, data.BuyVols)
}

func TestScenario_S3_PricePriorityMultiLevel(t *testing.T) {
	bk := NewBook("X")
	require.Equal(t, common.Success, bk.NewOrder(cmd(1, common.Sell, 101, 3)))
	require.Equal(t, common.Success, bk.NewOrder(cmd(2, common.Sell, 100, 4)))

	c3 := cmd(3, common.Buy, 101, 5)
	require.Equal(t, common.Success, bk.NewOrder(c3))

	require.Len(t, c3.MatchEventList, 4)
	var makerPrices []int64
	for i := 0; i < len(c3.MatchEventList); i += 2 {
		makerPrices = append(makerPrices, c3.MatchEventList[i].Price)
	}
	assert.Equal(t, []int64{100, 101}, makerPrices, "best price (100) fills before 101")

	var data L1MarketData
	bk.FillSells(bk.LimitSellBucketSize(10), &data)
	assert.Equal(t, []int64{101}, data.SellPrices)
	assert.Equal(t, []int64{2}, data.SellVols)
}

func TestScenario_S4_TimePriorityWithinLevel(t *testing.T) {
	bk := NewBook("X")
	require.Equal(t, common.Success, bk.NewOrder(cmd(1, common.Sell, 100, 6)))
	require.Equal(t, common.Success, bk.NewOrder(cmd(2, common.Sell, 100, 6)))

	c3 := cmd(3, common.Buy, 100, 8)
	require.Equal(t, common.Success, bk.NewOrder(c3))

	require.Len(t, c3.MatchEventList, 4)
	firstMakerLeg, secondMakerLeg := c3.MatchEventList[1], c3.MatchEventList[3]
	assert.Equal(t, int64(1), firstMakerLeg.OID)
	assert.Equal(t, common.TradeEd, firstMakerLeg.Status)
	assert.Equal(t, int64(2), secondMakerLeg.OID)
	assert.Equal(t, common.PartTrade, secondMakerLeg.Status)

	var data L1MarketData
	bk.FillSells(bk.LimitSellBucketSize(10), &data)
	assert.Equal(t, []int64{100}, data.SellPrices)
	assert.Equal(t, []int64{4}, data.SellVols)
}

func TestScenario_S5_CancelMidQueuePreservesPriority(t *testing.T) {
	bk := NewBook("X")
	require.Equal(t, common.Success, bk.NewOrder(cmd(1, common.Buy, 100, 5)))
	require.Equal(t, common.Success, bk.NewOrder(cmd(2, common.Buy, 100, 5)))
	require.Equal(t, common.Success, bk.NewOrder(cmd(3, common.Buy, 100, 5)))

	cancel := &common.RbCmd{OID: 2, SecurityID: "X"}
	require.Equal(t, common.Success, bk.CancelOrder(cancel))
	assert.Equal(t, common.CancelEd, cancel.MatchEventList[0].Status)

	c4 := cmd(4, common.Sell, 100, 10)
	require.Equal(t, common.Success, bk.NewOrder(c4))

	require.Len(t, c4.MatchEventList, 4)
	makerLeg1, makerLeg2 := c4.MatchEventList[1], c4.MatchEventList[3]
	assert.Equal(t, int64(1), makerLeg1.OID)
	assert.Equal(t, int64(3), makerLeg2.OID, "oid 2 was cancelled and is skipped")
}

func TestScenario_S6_DuplicateOIDRejected(t *testing.T) {
	bk := NewBook("X")
	require.Equal(t, common.Success, bk.NewOrder(cmd(1, common.Buy, 99, 10)))

	dup := cmd(1, common.Buy, 99, 10)
	assert.Equal(t, common.DuplicateOrderID, bk.NewOrder(dup))
	assert.Empty(t, dup.MatchEventList)

	var data L1MarketData
	bk.FillBuys(bk.LimitBuyBucketSize(10), &data)
	assert.Equal(t, []int64{99}, data.BuyPrices)
	assert.Equal(t, []int64{10}, data.BuyVols)
}
