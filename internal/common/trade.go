package common

import (
	"fmt"
	"sync/atomic"
)

// tradeIDGen is the process-wide monotonic trade id counter. Both legs of a
// single fill share one id drawn from here. The zero value starts the
// sequence at 1 on the first Add.
var tradeIDGen atomic.Int64

// NextTradeID returns a strictly increasing trade id, starting at 1.
func NextTradeID() int64 {
	return tradeIDGen.Add(1)
}

// MatchEvent is emitted by a Bucket or Book for every order acceptance,
// fill, or cancellation. Two events emitted for the same fill share TID.
type MatchEvent struct {
	Timestamp int64
	MID       int64
	OID       int64
	SessionID uint64
	TID       int64
	Status    OrderStatus
	Volume    int64
	Price     int64
}

func (e MatchEvent) String() string {
	return fmt.Sprintf(
		"MatchEvent{oid:%d mid:%d session:%d tid:%d status:%s volume:%d price:%d}",
		e.OID, e.MID, e.SessionID, e.TID, e.Status, e.Volume, e.Price,
	)
}

// RbCmd is a mutable, in-flight submission attempt. The book appends to
// MatchEventList as it processes the command; ownership of that list
// passes to whoever drains it into the event channel afterward.
type RbCmd struct {
	OID        int64
	MID        int64
	UID        uint64
	SessionID  uint64
	SecurityID string
	Side       Side
	Price      int64
	Volume     int64

	MatchEventList []MatchEvent
}

// AppendEvent appends an event to this command's match event list.
func (c *RbCmd) AppendEvent(ev MatchEvent) {
	c.MatchEventList = append(c.MatchEventList, ev)
}
