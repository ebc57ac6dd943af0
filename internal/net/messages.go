package net

import (
	"encoding/binary"
	"errors"
	"fmt"

	"valkyrie/internal/common"
)

var ErrMessageTooShort = errors.New("message too short for its type")

// MessageType is the frame-header msg_type discriminator.
type MessageType uint32

const (
	MsgLogon          MessageType = 1
	MsgCancelOrder    MessageType = 2
	MsgHeartbeat      MessageType = 3
	MsgNewOrderSingle MessageType = 4
	MsgReport         MessageType = 103
)

// securityIDLen is the fixed width a security id is packed into on the
// wire. Longer identifiers are truncated; shorter ones are zero-padded.
const securityIDLen = 8

// LogonMessage and HeartbeatMessage carry no body; their arrival is logged
// and acknowledged implicitly.
type LogonMessage struct{}
type HeartbeatMessage struct{}

// NewOrderSingleMessage is the inbound order-entry message. Field mapping
// to RbCmd: cl_ord_id→OID, security_id→SecurityID, side→Side, price→Price,
// order_qty→Volume. session_id is filled in by the transport, not carried
// on the wire.
type NewOrderSingleMessage struct {
	OID        int64
	SecurityID string
	Side       common.Side
	Price      int64
	Volume     int64
}

// CancelOrderMessage is the inbound cancel message: security_id ‖ oid, no
// side — Book.CancelOrder looks the order up by oid alone.
type CancelOrderMessage struct {
	SecurityID string
	OID        int64
}

// MessageDecoder is the one ProtocolDecoder this repository ships, turning
// a frame body into one of the typed messages above.
type MessageDecoder struct{}

func (MessageDecoder) Decode(msgType uint32, body []byte) (any, bool) {
	switch MessageType(msgType) {
	case MsgLogon:
		return LogonMessage{}, true
	case MsgHeartbeat:
		return HeartbeatMessage{}, true
	case MsgNewOrderSingle:
		return parseNewOrderSingle(body)
	case MsgCancelOrder:
		return parseCancelOrder(body)
	default:
		return nil, false
	}
}

func parseNewOrderSingle(body []byte) (NewOrderSingleMessage, bool) {
	const wantLen = securityIDLen + 8 + 1 + 8 + 8
	if len(body) < wantLen {
		return NewOrderSingleMessage{}, false
	}
	securityID := decodeSecurityID(body[0:securityIDLen])
	oid := int64(binary.BigEndian.Uint64(body[securityIDLen : securityIDLen+8]))
	side := common.Side(body[securityIDLen+8])
	price := int64(binary.BigEndian.Uint64(body[securityIDLen+9 : securityIDLen+17]))
	volume := int64(binary.BigEndian.Uint64(body[securityIDLen+17 : securityIDLen+25]))

	return NewOrderSingleMessage{
		OID:        oid,
		SecurityID: securityID,
		Side:       side,
		Price:      price,
		Volume:     volume,
	}, true
}

func parseCancelOrder(body []byte) (CancelOrderMessage, bool) {
	const wantLen = securityIDLen + 8
	if len(body) < wantLen {
		return CancelOrderMessage{}, false
	}
	securityID := decodeSecurityID(body[0:securityIDLen])
	oid := int64(binary.BigEndian.Uint64(body[securityIDLen : securityIDLen+8]))
	return CancelOrderMessage{SecurityID: securityID, OID: oid}, true
}

// Encode packs the message into its wire body (without the frame header),
// the inverse of parseNewOrderSingle.
func (m NewOrderSingleMessage) Encode() []byte {
	buf := make([]byte, securityIDLen+8+1+8+8)
	copy(buf[0:securityIDLen], encodeSecurityID(m.SecurityID))
	binary.BigEndian.PutUint64(buf[securityIDLen:securityIDLen+8], uint64(m.OID))
	buf[securityIDLen+8] = byte(m.Side)
	binary.BigEndian.PutUint64(buf[securityIDLen+9:securityIDLen+17], uint64(m.Price))
	binary.BigEndian.PutUint64(buf[securityIDLen+17:securityIDLen+25], uint64(m.Volume))
	return buf
}

// Encode packs the message into its wire body, the inverse of
// parseCancelOrder.
func (m CancelOrderMessage) Encode() []byte {
	buf := make([]byte, securityIDLen+8)
	copy(buf[0:securityIDLen], encodeSecurityID(m.SecurityID))
	binary.BigEndian.PutUint64(buf[securityIDLen:securityIDLen+8], uint64(m.OID))
	return buf
}

func decodeSecurityID(b []byte) string {
	i := len(b)
	for i > 0 && b[i-1] == 0 {
		i--
	}
	return string(b[:i])
}

func encodeSecurityID(id string) []byte {
	buf := make([]byte, securityIDLen)
	copy(buf, id)
	return buf
}

// CommandFromNewOrderSingle builds the RbCmd the engine expects from a
// decoded NewOrderSingleMessage plus the session it arrived on. mid/uid
// are left at zero; the wire message carries no richer fields to fill
// them from.
func CommandFromNewOrderSingle(m NewOrderSingleMessage, sessionID uint64) *common.RbCmd {
	return &common.RbCmd{
		OID:        m.OID,
		SessionID:  sessionID,
		SecurityID: m.SecurityID,
		Side:       m.Side,
		Price:      m.Price,
		Volume:     m.Volume,
	}
}

// CommandFromCancelOrder builds the cancel RbCmd for a decoded
// CancelOrderMessage.
func CommandFromCancelOrder(m CancelOrderMessage, sessionID uint64) *common.RbCmd {
	return &common.RbCmd{
		OID:        m.OID,
		SessionID:  sessionID,
		SecurityID: m.SecurityID,
	}
}

// Report is the outbound execution report, serialized as the body of a
// msg_type=103 frame. Field mapping: cl_ord_id←oid, last_px←price,
// last_qty←volume, gross_trade_amt←price*volume, ord_cnfm_id←tid,
// order_entry_time and transact_time←event.timestamp.
type Report struct {
	ClOrdID        int64
	SecurityID     string
	Status         common.OrderStatus
	LastPx         int64
	LastQty        int64
	GrossTradeAmt  int64
	OrdCnfmID      int64
	OrderEntryTime int64
	TransactTime   int64
}

const reportBodyLen = 8 + securityIDLen + 1 + 8 + 8 + 8 + 8 + 8 + 8

// ReportFromEvent maps a MatchEvent emitted for a security into its wire
// report.
func ReportFromEvent(securityID string, ev common.MatchEvent) Report {
	return Report{
		ClOrdID:        ev.OID,
		SecurityID:     securityID,
		Status:         ev.Status,
		LastPx:         ev.Price,
		LastQty:        ev.Volume,
		GrossTradeAmt:  ev.Price * ev.Volume,
		OrdCnfmID:      ev.TID,
		OrderEntryTime: ev.Timestamp,
		TransactTime:   ev.Timestamp,
	}
}

// Serialize packs the report into its fixed-width body, ready to be
// wrapped in a msg_type=103 frame by EncodeFrame.
func (r Report) Serialize() []byte {
	buf := make([]byte, reportBodyLen)
	off := 0
	binary.BigEndian.PutUint64(buf[off:], uint64(r.ClOrdID))
	off += 8
	copy(buf[off:off+securityIDLen], encodeSecurityID(r.SecurityID))
	off += securityIDLen
	buf[off] = byte(r.Status)
	off++
	binary.BigEndian.PutUint64(buf[off:], uint64(r.LastPx))
	off += 8
	binary.BigEndian.PutUint64(buf[off:], uint64(r.LastQty))
	off += 8
	binary.BigEndian.PutUint64(buf[off:], uint64(r.GrossTradeAmt))
	off += 8
	binary.BigEndian.PutUint64(buf[off:], uint64(r.OrdCnfmID))
	off += 8
	binary.BigEndian.PutUint64(buf[off:], uint64(r.OrderEntryTime))
	off += 8
	binary.BigEndian.PutUint64(buf[off:], uint64(r.TransactTime))
	return buf
}

// ParseReport decodes a report body, used by the CLI client and tests.
func ParseReport(body []byte) (Report, error) {
	if len(body) < reportBodyLen {
		return Report{}, fmt.Errorf("%w: report body", ErrMessageTooShort)
	}
	off := 0
	r := Report{}
	r.ClOrdID = int64(binary.BigEndian.Uint64(body[off:]))
	off += 8
	r.SecurityID = decodeSecurityID(body[off : off+securityIDLen])
	off += securityIDLen
	r.Status = common.OrderStatus(body[off])
	off++
	r.LastPx = int64(binary.BigEndian.Uint64(body[off:]))
	off += 8
	r.LastQty = int64(binary.BigEndian.Uint64(body[off:]))
	off += 8
	r.GrossTradeAmt = int64(binary.BigEndian.Uint64(body[off:]))
	off += 8
	r.OrdCnfmID = int64(binary.BigEndian.Uint64(body[off:]))
	off += 8
	r.OrderEntryTime = int64(binary.BigEndian.Uint64(body[off:]))
	off += 8
	r.TransactTime = int64(binary.BigEndian.Uint64(body[off:]))
	return r, nil
}
