// Package main provides a load testing tool for messaging and realtime delivery.
//
// Each client signs up a throwaway account, opens the realtime websocket and
// chats with its neighbour over REST, counting the newMessage events it receives.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// Metrics tracks the test results
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	MessagesSent         int64
	MessagesReceived     int64
	Errors               int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (m *Metrics) observe(d time.Duration) {
	m.mu.Lock()
	m.latencies = append(m.latencies, d)
	m.mu.Unlock()
}

var metrics Metrics

const password = "LoadTest123!"

type client struct {
	id     int
	userID uint
	token  string
	convID uint
}

type api struct {
	base string
	http *http.Client
}

func main() {
	host := flag.String("host", "localhost:8375", "API server host")
	clients := flag.Int("clients", 20, "Number of concurrent clients (rounded up to even)")
	duration := flag.Duration("duration", 30*time.Second, "Test duration")
	interval := flag.Duration("interval", 2*time.Second, "Delay between messages per client")
	domain := flag.String("domain", "ynetwork.edu", "Email domain for throwaway accounts")
	flag.Parse()

	n := *clients
	if n%2 == 1 {
		n++
	}

	log.Printf("Starting realtime load test against %s with %d clients for %v", *host, n, *duration)

	a := &api{base: "http://" + *host, http: &http.Client{Timeout: 5 * time.Second}}
	run := time.Now().Unix() % 1_000_000

	all := make([]*client, 0, n)
	for i := 0; i < n; i++ {
		c, err := a.signup(run, i, *domain)
		if err != nil {
			log.Fatalf("Signup %d failed: %v", i, err)
		}
		all = append(all, c)
	}

	// Clients talk in fixed pairs so every message has exactly one listener.
	for i := 0; i < n; i += 2 {
		convID, err := a.openConversation(all[i].token, all[i+1].userID)
		if err != nil {
			log.Fatalf("Creating conversation for pair %d failed: %v", i/2, err)
		}
		all[i].convID, all[i+1].convID = convID, convID
	}
	log.Printf("Signed up %d accounts and opened %d conversations", n, n/2)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stopChan := make(chan struct{})
	for _, c := range all {
		wg.Add(1)
		go runClient(a, *host, c, *interval, stopChan, &wg)
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case <-time.After(*duration):
		log.Println("Test duration reached")
	case <-interrupt:
		log.Println("Interrupted by user")
	}

	close(stopChan)
	log.Println("Waiting for clients to disconnect...")
	wg.Wait()

	printMetrics()
}

func (a *api) do(method, path, token string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(method, a.base+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		var e struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, e.Message)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (a *api) signup(run int64, i int, domain string) (*client, error) {
	username := fmt.Sprintf("load_%d_%d", run, i)
	var res struct {
		Token string `json:"token"`
		User  struct {
			ID uint `json:"id"`
		} `json:"user"`
	}
	err := a.do(http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username":         username,
		"university_email": username + "@" + domain,
		"password":         password,
		"first_name":       "Load",
		"last_name":        fmt.Sprintf("Tester%d", i),
	}, &res)
	if err != nil {
		return nil, err
	}
	return &client{id: i, userID: res.User.ID, token: res.Token}, nil
}

func (a *api) openConversation(token string, recipient uint) (uint, error) {
	var res struct {
		ID uint `json:"id"`
	}
	err := a.do(http.MethodPost, "/api/conversations", token, map[string]any{"recipient_ids": []uint{recipient}}, &res)
	return res.ID, err
}

func (a *api) ticket(token string) (string, error) {
	var res struct {
		Ticket string `json:"ticket"`
	}
	err := a.do(http.MethodPost, "/api/ws/ticket", token, nil, &res)
	return res.Ticket, err
}

func runClient(a *api, host string, c *client, interval time.Duration, stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	ticket, err := a.ticket(c.token)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}

	u := url.URL{Scheme: "ws", Host: host, Path: "/api/ws", RawQuery: "ticket=" + url.QueryEscape(ticket)}
	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	defer func() { _ = conn.Close() }()

	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var ev struct {
				Type    string `json:"type"`
				Payload struct {
					Content   string    `json:"content"`
					CreatedAt time.Time `json:"created_at"`
				} `json:"payload"`
			}
			if json.Unmarshal(data, &ev) != nil || ev.Type != "newMessage" {
				continue
			}
			atomic.AddInt64(&metrics.MessagesReceived, 1)
			if !ev.Payload.CreatedAt.IsZero() {
				metrics.observe(time.Since(ev.Payload.CreatedAt))
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	path := fmt.Sprintf("/api/conversations/%d/messages", c.convID)
	for seq := 1; ; seq++ {
		select {
		case <-stopChan:
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			body := map[string]string{"content": fmt.Sprintf("Load test message %d from client %d", seq, c.id)}
			if err := a.do(http.MethodPost, path, c.token, body, nil); err != nil {
				atomic.AddInt64(&metrics.Errors, 1)
				continue
			}
			atomic.AddInt64(&metrics.MessagesSent, 1)
		}
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

func printMetrics() {
	metrics.mu.Lock()
	lat := append([]time.Duration(nil), metrics.latencies...)
	metrics.mu.Unlock()
	sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })

	log.Println("Test Results")
	log.Println("============")
	log.Printf("Connections Attempted: %d", atomic.LoadInt64(&metrics.ConnectionsAttempted))
	log.Printf("Connections Successful: %d", atomic.LoadInt64(&metrics.ConnectionsSuccess))
	log.Printf("Connections Failed: %d", atomic.LoadInt64(&metrics.ConnectionsFailed))
	log.Printf("Messages Sent: %d", atomic.LoadInt64(&metrics.MessagesSent))
	log.Printf("Messages Delivered: %d", atomic.LoadInt64(&metrics.MessagesReceived))
	log.Printf("Delivery latency p50=%v p95=%v p99=%v", percentile(lat, 0.50), percentile(lat, 0.95), percentile(lat, 0.99))
	log.Printf("Total Errors: %d", atomic.LoadInt64(&metrics.Errors))
}
