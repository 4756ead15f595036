package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// CoordinatorConfig configures the shard coordinator
type CoordinatorConfig struct {
	Port             int
	ShardCount       int
	TestOnly         bool
	HeartbeatTimeout time.Duration
}

// Coordinator hands out build shards to connected workers and collects
// their verdicts. It exits once every shard has been completed.
type Coordinator struct {
	config   CoordinatorConfig
	shards   *assignments
	upgrader websocket.Upgrader

	server *http.Server

	mu      sync.Mutex
	workers map[string]*websocket.Conn

	doneCh chan struct{}
	once   sync.Once
}

// NewCoordinator creates a coordinator for the given shard count
func NewCoordinator(config CoordinatorConfig) *Coordinator {
	if config.HeartbeatTimeout == 0 {
		config.HeartbeatTimeout = 90 * time.Second
	}
	return &Coordinator{
		config: config,
		shards: newAssignments(config.ShardCount),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		workers: make(map[string]*websocket.Conn),
		doneCh:  make(chan struct{}),
	}
}

// Done is closed once all shards have reported results
func (c *Coordinator) Done() <-chan struct{} {
	return c.doneCh
}

// Results returns the collected shard results
func (c *Coordinator) Results() map[int]ShardResult {
	return c.shards.Results()
}

// Start runs the coordinator server until ctx is cancelled or all
// shards are complete.
func (c *Coordinator) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", c.HandleWebSocket)
	mux.HandleFunc("/status", c.HandleStatus)

	addr := fmt.Sprintf(":%d", c.config.Port)
	c.server = &http.Server{Addr: addr, Handler: mux}

	go func() {
		select {
		case <-ctx.Done():
		case <-c.doneCh:
			// let workers drain their final request before closing
			time.Sleep(2 * time.Second)
		}
		c.server.Close()
	}()

	log.Printf("[dispatch] coordinator listening on %s (%d shards)", addr, c.config.ShardCount)
	err := c.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop stops the coordinator server
func (c *Coordinator) Stop() error {
	if c.server != nil {
		return c.server.Close()
	}
	return nil
}

// HandleWebSocket handles incoming WebSocket connections from workers
func (c *Coordinator) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[dispatch] upgrade failed: %v", err)
		return
	}
	go c.handleWorker(conn)
}

func (c *Coordinator) handleWorker(conn *websocket.Conn) {
	var workerID string
	defer func() {
		conn.Close()
		if workerID != "" {
			c.mu.Lock()
			delete(c.workers, workerID)
			c.mu.Unlock()

			released := c.shards.Release(workerID)
			if len(released) > 0 {
				log.Printf("[dispatch] worker %s disconnected, requeued shards %v", workerID, released)
			} else {
				log.Printf("[dispatch] worker %s disconnected", workerID)
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(c.config.HeartbeatTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.config.HeartbeatTimeout))
		return nil
	})

	// Ping the worker so both sides keep their read deadlines alive
	// across long shard builds. WriteControl is safe to call
	// concurrently with WriteMessage.
	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		ticker := time.NewTicker(c.config.HeartbeatTimeout / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stopPing:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[dispatch] read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(c.config.HeartbeatTimeout))

		var env EnvelopeRaw
		if err := json.Unmarshal(message, &env); err != nil {
			log.Printf("[dispatch] invalid message: %v", err)
			continue
		}

		switch env.Type {
		case TypeRegister:
			var reg RegisterMessage
			if err := json.Unmarshal(env.Payload, &reg); err != nil {
				log.Printf("[dispatch] invalid register: %v", err)
				continue
			}
			workerID = reg.WorkerID
			c.mu.Lock()
			c.workers[workerID] = conn
			c.mu.Unlock()
			log.Printf("[dispatch] worker %s registered", workerID)

		case TypeRequest:
			idx, ok := c.shards.Take(workerID)
			if !ok {
				c.sendTo(conn, TypeNothing, NothingMessage{})
				continue
			}
			log.Printf("[dispatch] assigning shard %d/%d to worker %s", idx, c.config.ShardCount, workerID)
			c.sendTo(conn, TypeAssign, AssignMessage{
				ShardIndex: idx,
				ShardCount: c.config.ShardCount,
				TestOnly:   c.config.TestOnly,
			})

		case TypeDone:
			var done DoneMessage
			if err := json.Unmarshal(env.Payload, &done); err != nil {
				log.Printf("[dispatch] invalid done message: %v", err)
				continue
			}
			log.Printf("[dispatch] shard %d finished by %s: success=%v built=%d failed=%d skipped=%d",
				done.ShardIndex, done.WorkerID, done.Success, done.Built, done.Failed, done.Skipped)
			c.shards.Complete(ShardResult{
				ShardIndex: done.ShardIndex,
				WorkerID:   done.WorkerID,
				Success:    done.Success,
				Built:      done.Built,
				Failed:     done.Failed,
				Skipped:    done.Skipped,
			})
			if c.shards.Finished() {
				c.once.Do(func() { close(c.doneCh) })
			}
		}
	}
}

func (c *Coordinator) sendTo(conn *websocket.Conn, msgType string, payload interface{}) {
	data, err := MarshalEnvelope(msgType, payload)
	if err != nil {
		log.Printf("[dispatch] marshal failed: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[dispatch] write failed: %v", err)
	}
}

// HandleStatus returns the current shard and worker state
func (c *Coordinator) HandleStatus(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	workers := make([]string, 0, len(c.workers))
	for id := range c.workers {
		workers = append(workers, id)
	}
	c.mu.Unlock()

	pending, held, done := c.shards.Counts()
	status := map[string]interface{}{
		"shard_count":    c.config.ShardCount,
		"pending_shards": pending,
		"held_shards":    held,
		"done_shards":    done,
		"workers":        workers,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}
