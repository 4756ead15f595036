package dispatch

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// pingWait is how long the worker waits for a coordinator ping before
// treating the connection as dead.
const pingWait = 90 * time.Second

// writeWait is time allowed to write a control message
const writeWait = 10 * time.Second

// ShardRunFunc builds one shard and returns its outcome
type ShardRunFunc func(shardIndex, shardCount int, testOnly bool) ShardResult

// WorkerConfig configures the worker client
type WorkerConfig struct {
	ServerURL string
	WorkerID  string
}

// Validate checks the config is valid
func (c *WorkerConfig) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	if c.WorkerID == "" {
		return fmt.Errorf("worker_id is required")
	}
	return nil
}

// Worker connects to a coordinator, requests shards one at a time and
// builds each via the supplied run function.
type Worker struct {
	config WorkerConfig
	conn   *websocket.Conn
	mu     sync.Mutex
}

// NewWorker creates a worker client
func NewWorker(config WorkerConfig) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Worker{config: config}, nil
}

// Connect dials the coordinator and registers
func (w *Worker) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(w.config.ServerURL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(pingWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pingWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()

	return w.send(TypeRegister, RegisterMessage{WorkerID: w.config.WorkerID})
}

// Run requests shards until the coordinator has nothing left. Shards
// are built one at a time; the build runs in a goroutine so the read
// loop keeps answering coordinator pings during long builds.
func (w *Worker) Run(runFunc ShardRunFunc) error {
	if err := w.send(TypeRequest, RequestMessage{WorkerID: w.config.WorkerID}); err != nil {
		return err
	}

	for {
		_, message, err := w.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read failed: %w", err)
		}
		w.conn.SetReadDeadline(time.Now().Add(pingWait))

		var env EnvelopeRaw
		if err := json.Unmarshal(message, &env); err != nil {
			log.Printf("[dispatch] invalid message: %v", err)
			continue
		}

		switch env.Type {
		case TypeAssign:
			var assign AssignMessage
			if err := json.Unmarshal(env.Payload, &assign); err != nil {
				log.Printf("[dispatch] invalid assign message: %v", err)
				continue
			}
			go w.runShard(assign, runFunc)

		case TypeNothing:
			log.Printf("[dispatch] no shards left, worker done")
			return nil
		}
	}
}

func (w *Worker) runShard(assign AssignMessage, runFunc ShardRunFunc) {
	log.Printf("[dispatch] building shard %d/%d", assign.ShardIndex, assign.ShardCount)
	start := time.Now()
	res := runFunc(assign.ShardIndex, assign.ShardCount, assign.TestOnly)

	if err := w.send(TypeDone, DoneMessage{
		WorkerID:   w.config.WorkerID,
		ShardIndex: assign.ShardIndex,
		Success:    res.Success,
		Built:      res.Built,
		Failed:     res.Failed,
		Skipped:    res.Skipped,
		DurationMs: time.Since(start).Milliseconds(),
	}); err != nil {
		log.Printf("[dispatch] reporting shard %d failed: %v", assign.ShardIndex, err)
		return
	}

	// Ask for the next shard once this one is reported.
	if err := w.send(TypeRequest, RequestMessage{WorkerID: w.config.WorkerID}); err != nil {
		log.Printf("[dispatch] requesting next shard failed: %v", err)
	}
}

func (w *Worker) send(msgType string, payload interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := MarshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// Close shuts down the connection
func (w *Worker) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
}
