package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	valknet "valkyrie/internal/net"

	"valkyrie/internal/common"
)

var seqNum atomic.Uint64

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9010", "address of the exchange session transport")
	action := flag.String("action", "place", "action to perform: ['place', 'cancel']")

	securityID := flag.String("security", "AAPL", "security id (max 8 chars)")
	sideStr := flag.String("side", "buy", "order side: 'buy' or 'sell'")
	price := flag.Int64("price", 100, "limit price (integer ticks)")
	qtyStr := flag.String("qty", "10", "quantity, or comma-separated list (e.g. 10,20,50)")
	oid := flag.Int64("oid", 0, "client order id (required)")

	flag.Parse()

	if *oid == 0 {
		fmt.Println("Error: -oid is required and must be nonzero.")
		flag.Usage()
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("connected to %s\n", *serverAddr)

	go readReports(conn)

	side := common.Buy
	if strings.ToLower(*sideStr) == "sell" {
		side = common.Sell
	}

	switch strings.ToLower(*action) {
	case "place":
		for i, q := range parseQuantities(*qtyStr) {
			msg := valknet.NewOrderSingleMessage{
				OID:        *oid + int64(i),
				SecurityID: *securityID,
				Side:       side,
				Price:      *price,
				Volume:     q,
			}
			if err := send(conn, uint32(valknet.MsgNewOrderSingle), msg.Encode()); err != nil {
				log.Printf("failed to place order (qty %d): %v", q, err)
				continue
			}
			fmt.Printf("-> sent %s %s oid=%d qty=%d @ %d\n", strings.ToUpper(*sideStr), *securityID, *oid+int64(i), q, *price)
			time.Sleep(5 * time.Millisecond)
		}
	case "cancel":
		msg := valknet.CancelOrderMessage{SecurityID: *securityID, OID: *oid}
		if err := send(conn, uint32(valknet.MsgCancelOrder), msg.Encode()); err != nil {
			log.Printf("failed to send cancel: %v", err)
		} else {
			fmt.Printf("-> sent cancel for oid=%d\n", *oid)
		}
	default:
		log.Fatalf("unknown action: %s", *action)
	}

	fmt.Println("\nlistening for reports... (press Ctrl+C to exit)")
	select {}
}

func send(conn net.Conn, msgType uint32, body []byte) error {
	frame := valknet.EncodeFrame(msgType, seqNum.Add(1), body)
	_, err := conn.Write(frame)
	return err
}

func parseQuantities(input string) []int64 {
	parts := strings.Split(input, ",")
	var result []int64
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if val, err := strconv.ParseInt(p, 10, 64); err == nil {
			result = append(result, val)
		} else {
			log.Printf("warning: invalid quantity %q, skipping", p)
		}
	}
	return result
}

// readReports reads frames off conn and prints any execution report it
// decodes, until the connection closes.
func readReports(conn net.Conn) {
	decoder := valknet.NewFrameDecoder()
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if err != io.EOF {
				log.Printf("connection lost: %v", err)
			}
			os.Exit(0)
		}
		decoder.Feed(buf[:n])
		for {
			frame, ok := decoder.NextFrame()
			if !ok {
				break
			}
			if frame.MsgType != uint32(valknet.MsgReport) {
				continue
			}
			report, err := valknet.ParseReport(frame.Body)
			if err != nil {
				log.Printf("error parsing report: %v", err)
				continue
			}
			fmt.Printf("\n[REPORT] security=%s oid=%d status=%s qty=%d px=%d tid=%d\n",
				report.SecurityID, report.ClOrdID, report.Status, report.LastQty, report.LastPx, report.OrdCnfmID)
		}
	}
}
