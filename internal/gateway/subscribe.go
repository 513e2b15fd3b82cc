package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"taskboard/internal/realtime"
)

// ErrStreamClosed is the Err of a subscription whose gateway hung up cleanly.
var ErrStreamClosed = errors.New("gateway: change stream closed")

// Subscription is a live change stream for one channel.
//
// Events has a single slot. When a change arrives while one is still pending
// the new one is dropped: both mean "re-read your scope".
type Subscription struct {
	channel realtime.Channel
	events  chan realtime.Change
	cancel  context.CancelFunc
	done    chan struct{}

	mu  sync.Mutex
	err error
}

var _ realtime.Feed = (*Subscription)(nil)

func (s *Subscription) Events() <-chan realtime.Change {
	return s.events
}

// Close ends the stream and waits for the reader to stop.
func (s *Subscription) Close() error {
	s.cancel()
	<-s.done
	return nil
}

// Err reports why the stream ended on its own. It is nil while the stream is
// open and after Close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Subscribe opens the change stream for ch and returns once the gateway has
// confirmed the subscription, so no change made after Subscribe returns is missed.
// The stream ends when ctx is done or Close is called.
func (c *Client) Subscribe(ctx context.Context, ch realtime.Channel) (*Subscription, error) {
	hc, err := c.streamClient()
	if err != nil {
		return nil, err
	}

	query := url.Values{"table": {ch.Table}}
	if f := ch.Filter(); f != "" {
		query.Set("filter", f)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.endpoint("/realtime", query), nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// the handshake deadline only covers the wait for "subscribed"
	handshake := time.AfterFunc(HandshakeTimeout, cancel)

	resp, err := hc.Do(req)
	if err != nil {
		handshake.Stop()
		cancel()
		return nil, fmt.Errorf("subscribe %s: %w", ch, err)
	}
	if resp.StatusCode != http.StatusOK {
		handshake.Stop()
		defer cancel()
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	events := newEventReader(resp.Body)
	first, err := events.next()
	if !handshake.Stop() {
		err = fmt.Errorf("no confirmation within %s", HandshakeTimeout)
	}
	if err == nil && first.name != "subscribed" {
		err = fmt.Errorf("unexpected first event %q", first.name)
	}
	if err != nil {
		cancel()
		resp.Body.Close()
		return nil, fmt.Errorf("subscribe %s: %w", ch, err)
	}

	sub := &Subscription{
		channel: ch,
		events:  make(chan realtime.Change, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go sub.read(streamCtx, resp.Body, events)
	return sub, nil
}

func (s *Subscription) read(ctx context.Context, body io.ReadCloser, events *eventReader) {
	defer close(s.done)
	defer close(s.events)
	defer body.Close()

	for {
		ev, err := events.next()
		if err != nil {
			if ctx.Err() == nil {
				s.mu.Lock()
				s.err = err
				s.mu.Unlock()
			}
			return
		}
		if ev.name != "change" {
			continue
		}

		var change realtime.Change
		if err := json.Unmarshal(ev.data, &change); err != nil {
			continue
		}
		select {
		case s.events <- change:
		default:
		}
	}
}

type event struct {
	name string
	data []byte
}

// eventReader decodes a text/event-stream body one event at a time.
type eventReader struct {
	scanner *bufio.Scanner
}

func newEventReader(r io.Reader) *eventReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	return &eventReader{scanner: scanner}
}

func (r *eventReader) next() (event, error) {
	var ev event
	var data [][]byte
	seen := false

	for r.scanner.Scan() {
		line := r.scanner.Bytes()
		if len(line) == 0 {
			if !seen {
				continue
			}
			ev.data = bytes.Join(data, []byte("\n"))
			if ev.name == "" {
				ev.name = "message"
			}
			return ev, nil
		}
		if line[0] == ':' {
			continue
		}

		field, value, _ := bytes.Cut(line, []byte(":"))
		value = bytes.TrimPrefix(value, []byte(" "))
		switch string(field) {
		case "event":
			ev.name = string(value)
			seen = true
		case "data":
			data = append(data, append([]byte(nil), value...))
			seen = true
		}
	}

	if err := r.scanner.Err(); err != nil {
		return event{}, err
	}
	return event{}, ErrStreamClosed
}
