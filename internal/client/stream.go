package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Snapshot is one full list from the live stream. A snapshot with Err set is
// the last one the stream delivers.
type Snapshot struct {
	Docs []Document
	Err  error
}

// Subscribe opens GET /api/captures/stream. The returned channel is closed when
// ctx ends or the stream terminates.
func (c *Client) Subscribe(ctx context.Context, limit int) (<-chan Snapshot, error) {
	path := "/api/captures/stream"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		_ = resp.Body.Close()
		return nil, decodeAPIError(resp.StatusCode, raw)
	}

	out := make(chan Snapshot)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		send := func(s Snapshot) bool {
			select {
			case out <- s:
				return true
			case <-ctx.Done():
				return false
			}
		}

		errStreamEnd := errors.New("stream ended")
		err := readEvents(resp.Body, func(event, data string) error {
			switch event {
			case "snapshot":
				var payload struct {
					Items []Document `json:"items"`
				}
				if err := json.Unmarshal([]byte(data), &payload); err != nil {
					return fmt.Errorf("decode snapshot: %w", err)
				}
				if payload.Items == nil {
					payload.Items = []Document{}
				}
				if !send(Snapshot{Docs: payload.Items}) {
					return errStreamEnd
				}
			case "error":
				var payload struct {
					Error string `json:"error"`
				}
				_ = json.Unmarshal([]byte(data), &payload)
				if payload.Error == "" {
					payload.Error = "stream error"
				}
				send(Snapshot{Err: errors.New(payload.Error)})
				return errStreamEnd
			}
			return nil
		})
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		if errors.Is(err, errStreamEnd) || ctx.Err() != nil {
			return
		}
		c.log.Warn("captures_stream_read_error", "error", err)
		send(Snapshot{Err: err})
	}()
	return out, nil
}

// readEvents parses a text/event-stream body, calling onEvent for each
// dispatched event. Comment lines are skipped.
func readEvents(r io.Reader, onEvent func(event, data string) error) error {
	br := bufio.NewReader(r)
	var (
		eventName string
		dataLines []string
	)

	dispatch := func() error {
		if len(dataLines) == 0 {
			eventName = ""
			return nil
		}
		data := strings.Join(dataLines, "\n")
		ev := eventName
		if ev == "" {
			ev = "message"
		}
		eventName, dataLines = "", nil
		return onEvent(ev, data)
	}

	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return dispatch()
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if err := dispatch(); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
}
