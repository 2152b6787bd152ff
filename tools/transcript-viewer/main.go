// Transcript Viewer - live view of delivered call transcripts.
// Consumes the segment and status topics and pushes them to browsers over
// WebSocket, optionally filtered to one voice call.
package main

import (
	"context"
	"embed"
	"encoding/json"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"
)

//go:embed static/*
var staticFiles embed.FS

// CallEvent is either a delivered segment or a status change.
type CallEvent struct {
	EventType   string `json:"eventType"`
	VoiceCallID string `json:"voiceCallId"`
	Direction   string `json:"direction,omitempty"`
	MessageID   string `json:"messageId,omitempty"`
	SenderType  string `json:"senderType,omitempty"`
	Text        string `json:"text,omitempty"`
	StartTime   int64  `json:"startTime,omitempty"`
	EndTime     int64  `json:"endTime,omitempty"`
	StatusCode  int    `json:"statusCode,omitempty"`
	Status      string `json:"status,omitempty"`
	Detail      string `json:"detail,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// client is one browser, optionally watching a single call.
type client struct {
	conn        *websocket.Conn
	voiceCallID string
}

func (c *client) wants(e CallEvent) bool {
	return c.voiceCallID == "" || c.voiceCallID == e.VoiceCallID
}

// Hub fans events out to connected browsers.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan CallEvent
	register   chan *client
	unregister chan *client
	mu         sync.Mutex
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan CallEvent, 100),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("Client connected (call=%q). Total: %d", c.voiceCallID, n)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.conn.Close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("Client disconnected. Total: %d", n)

		case event := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				if !c.wants(event) {
					continue
				}
				_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := c.conn.WriteJSON(event); err != nil {
					log.Printf("Write error: %v", err)
					c.conn.Close()
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local dev only
	},
}

func wsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade error: %v", err)
			return
		}
		c := &client{conn: conn, voiceCallID: r.URL.Query().Get("voiceCallId")}
		hub.register <- c

		go func() {
			defer func() { hub.unregister <- c }()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

func consumeKafka(ctx context.Context, hub *Hub, brokers []string, topic string, since time.Duration) {
	// Partition reader without a consumer group so several viewers can
	// watch the same topic.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-since)); err != nil {
		log.Printf("Seek on %s failed, reading from current offset: %v", topic, err)
	}
	log.Printf("Consuming %s partition 0 (last %v)", topic, since)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Kafka read error on %s: %v", topic, err)
			time.Sleep(time.Second)
			continue
		}

		var event CallEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Printf("JSON unmarshal error on %s: %v", topic, err)
			continue
		}
		if event.VoiceCallID == "" {
			event.VoiceCallID = string(msg.Key)
		}

		select {
		case hub.broadcast <- event:
		case <-ctx.Done():
			return
		}
	}
}

func main() {
	port := flag.String("port", "8081", "HTTP server port")
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topicSegments := flag.String("topic-segments", "voicecall.transcript.segment", "Delivered segment topic")
	topicStatus := flag.String("topic-status", "voicecall.transcript.status", "Call status topic")
	since := flag.Duration("since", time.Hour, "Replay window on start")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := newHub()
	go hub.run(ctx)

	brokerList := strings.Split(*brokers, ",")
	go consumeKafka(ctx, hub, brokerList, *topicSegments, *since)
	go consumeKafka(ctx, hub, brokerList, *topicStatus, *since)

	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("Static files: %v", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(staticFS)))
	mux.HandleFunc("/ws", wsHandler(hub))

	log.Printf("Transcript Viewer on http://localhost:%s (brokers=%s topics=%s,%s)",
		*port, *brokers, *topicSegments, *topicStatus)

	if err := http.ListenAndServe(":"+*port, mux); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
