package common

import "fmt"

// Order is a resting, booked record. It is created when a NewOrder command
// cannot be fully matched on arrival and is mutated only by the Book that
// holds it (partial fills increase TVolume in place).
type Order struct {
	OID       int64  // unique for the lifetime of the book
	MID       int64  // member/firm id, opaque routing tag
	UID       uint64 // user id, opaque
	SessionID uint64 // originating session, for routing reports

	SecurityID string
	Side       Side
	Price      int64 // integer ticks, always > 0
	Volume     int64 // original quantity
	TVolume    int64 // cumulative traded quantity, 0 <= TVolume <= Volume
	Timestamp  int64 // millisecond epoch at booking
}

// Remaining returns the quantity still open on this order.
func (o *Order) Remaining() int64 {
	return o.Volume - o.TVolume
}

func (o *Order) String() string {
	return fmt.Sprintf(
		"Order{oid:%d mid:%d uid:%d session:%d security:%s side:%s price:%d volume:%d tvolume:%d}",
		o.OID, o.MID, o.UID, o.SessionID, o.SecurityID, o.Side, o.Price, o.Volume, o.TVolume,
	)
}
