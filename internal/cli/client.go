// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/jeranaias/retort/internal/config"
	"github.com/jeranaias/retort/internal/server"
)

const clientTimeout = 10 * time.Second

// apiClient talks to a running retort server.
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient(cfg config.ServerConfig) *apiClient {
	addr := cfg.Addr
	if addr == "" {
		addr = config.DefaultAddr
	}
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &apiClient{
		base:  strings.TrimRight(base, "/"),
		token: cfg.Token,
		http:  &http.Client{Timeout: clientTimeout},
	}
}

// do sends body as JSON and decodes a 2xx response into out. Non-2xx
// responses become errors carrying the server's message.
func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("is retort running? %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e server.ErrorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&e); err != nil || e.Error == "" {
			return fmt.Errorf("server returned %s", resp.Status)
		}
		return fmt.Errorf("server returned %s: %s", resp.Status, e.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// stream opens a WebSocket and hands fn a send function. Each send waits
// for the server's reply and fails if the frame was rejected.
func (c *apiClient) stream(ctx context.Context, fn func(send func(server.Frame) error) error) error {
	u, err := url.Parse(c.base + "/v1/ws")
	if err != nil {
		return err
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	opts := &websocket.DialOptions{HTTPHeader: http.Header{}}
	if c.token != "" {
		opts.HTTPHeader.Set("Authorization", "Bearer "+c.token)
	}

	conn, _, err := websocket.Dial(ctx, u.String(), opts)
	if err != nil {
		return fmt.Errorf("is retort running? %w", err)
	}
	defer conn.CloseNow()

	send := func(f server.Frame) error {
		if err := wsjson.Write(ctx, conn, f); err != nil {
			return err
		}
		var reply server.Reply
		if err := wsjson.Read(ctx, conn, &reply); err != nil {
			return err
		}
		if !reply.OK {
			return fmt.Errorf("%s: %s", f.Op, reply.Error)
		}
		return nil
	}
	if err := fn(send); err != nil {
		return err
	}
	return conn.Close(websocket.StatusNormalClosure, "")
}
