// Command mocknode serves a fake Ethereum JSON-RPC node for local testing.
// It answers eth_blockNumber, eth_chainId, eth_getBlockByNumber and
// eth_getLogs with deterministic data derived from the block number, over
// plain HTTP POST or a WebSocket endpoint.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

type serverMode string

const (
	modeHTTP      serverMode = "http"
	modeWebSocket serverMode = "websocket"
)

func main() {
	mode := flag.String("mode", "http", "Server mode: http, websocket")
	port := flag.Int("port", 0, "Listening port")
	latency := flag.Duration("latency", 0, "Simulated per-call latency")
	errorRate := flag.Float64("error-rate", 0, "Fraction of calls answered with a 500 (0..1)")
	flag.Parse()

	if *port <= 0 {
		log.Fatalf("port must be > 0")
	}

	node := &mockNode{latency: *latency, errorRate: *errorRate}

	switch serverMode(*mode) {
	case modeHTTP:
		log.Fatal(runHTTPNode(*port, node))
	case modeWebSocket:
		log.Fatal(runWebSocketNode(*port, node))
	default:
		log.Fatalf("unknown mode %q", *mode)
	}
}

type mockNode struct {
	latency   time.Duration
	errorRate float64
}

// respond builds the JSON-RPC response for one request payload. The bool
// reports whether the caller should instead fail the transport (HTTP 500,
// websocket close).
func (n *mockNode) respond(payload []byte) ([]byte, bool) {
	if n.latency > 0 {
		time.Sleep(n.latency)
	}
	if n.errorRate > 0 && rand.Float64() < n.errorRate {
		return nil, false
	}

	id := gjson.GetBytes(payload, "id").Int()
	method := gjson.GetBytes(payload, "method").String()

	var result any
	switch method {
	case "eth_blockNumber":
		result = "0x112a880"
	case "eth_chainId":
		result = "0x1"
	case "eth_getBlockByNumber":
		block := gjson.GetBytes(payload, "params.0").String()
		fullTxs := gjson.GetBytes(payload, "params.1").Bool()
		result = fakeBlock(block, fullTxs)
	case "eth_getLogs":
		from := gjson.GetBytes(payload, "params.0.fromBlock").String()
		result = []any{
			map[string]any{"blockNumber": from, "logIndex": "0x0", "data": "0x"},
			map[string]any{"blockNumber": from, "logIndex": "0x1", "data": "0x"},
		}
	default:
		reply, _ := json.Marshal(map[string]any{
			"jsonrpc": "2.0",
			"id":      id,
			"error":   map[string]any{"code": -32601, "message": "method not found"},
		})
		return reply, true
	}

	reply, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	})
	return reply, true
}

func fakeBlock(number string, fullTxs bool) map[string]any {
	block := map[string]any{
		"number":     number,
		"hash":       fmt.Sprintf("0xhash%s", number),
		"parentHash": "0x0",
		"gasUsed":    "0x5208",
		"timestamp":  "0x64000000",
	}
	if fullTxs {
		block["transactions"] = []any{
			map[string]any{"hash": fmt.Sprintf("0xtx0-%s", number), "value": "0x0"},
			map[string]any{"hash": fmt.Sprintf("0xtx1-%s", number), "value": "0xde0b6b3a7640000"},
		}
	} else {
		block["transactions"] = []any{fmt.Sprintf("0xtx0-%s", number)}
	}
	return block
}

func runHTTPNode(port int, node *mockNode) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		payload, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		reply, ok := node.respond(payload)
		if !ok {
			http.Error(w, "injected failure", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(reply)
	})

	addr := fmt.Sprintf(":%d", port)
	log.Printf("mock node HTTP server listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

func runWebSocketNode(port int, node *mockNode) error {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket upgrade failed: %v", err)
			return
		}
		go handleWebSocketConn(conn, node)
	})

	addr := fmt.Sprintf(":%d", port)
	log.Printf("mock node WebSocket server listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

func handleWebSocketConn(conn *websocket.Conn, node *mockNode) {
	defer conn.Close()
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		reply, ok := node.respond(payload)
		if !ok {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
			return
		}
	}
}
