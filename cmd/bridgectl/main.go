// bridgectl drives a running simbridged endpoint through one
// open/write/read/close cycle or individual operations, over the unix
// socket or a TCP address.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrBusy mirrors the endpoint's 409 busy outcome for exit handling.
var ErrBusy = errors.New("endpoint busy")

const sessionHeader = "X-Session-Token"

type client struct {
	http *http.Client
	base string
}

func newClient(socket, addr string) *client {
	if socket != "" {
		transport := &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socket)
			},
		}
		return &client{
			http: &http.Client{Transport: transport, Timeout: 10 * time.Second},
			base: "http://simbridge",
		}
	}
	return &client{
		http: &http.Client{Timeout: 10 * time.Second},
		base: "http://" + addr,
	}
}

func (c *client) do(method, path, token string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set(sessionHeader, token)
	}
	return c.http.Do(req)
}

func (c *client) open() (string, error) {
	resp, err := c.do(http.MethodPost, "/v1/session", "", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusConflict {
		return "", ErrBusy
	}
	if resp.StatusCode != http.StatusCreated {
		return "", unexpectedStatus(resp)
	}
	var out struct {
		Session string `json:"session"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Session, nil
}

func (c *client) write(token string, payload []byte) error {
	resp, err := c.do(http.MethodPut, "/v1/message", token, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return unexpectedStatus(resp)
	}
	var out struct {
		Accepted  int  `json:"accepted"`
		Truncated bool `json:"truncated"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "accepted %d bytes", out.Accepted)
	if out.Truncated {
		fmt.Fprintf(os.Stderr, " (truncated from %d)", len(payload))
	}
	fmt.Fprintln(os.Stderr)
	return nil
}

func (c *client) read(token string) error {
	resp, err := c.do(http.MethodGet, "/v1/message", token, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return unexpectedStatus(resp)
	}
	n, err := io.Copy(os.Stdout, resp.Body)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "read %d bytes\n", n)
	return nil
}

func (c *client) close(token string) error {
	resp, err := c.do(http.MethodDelete, "/v1/session", token, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return unexpectedStatus(resp)
	}
	return nil
}

func (c *client) status() error {
	resp, err := c.do(http.MethodGet, "/v1/status", "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return unexpectedStatus(resp)
	}
	_, err = io.Copy(os.Stdout, resp.Body)
	fmt.Fprintln(os.Stdout)
	return err
}

func (c *client) release(adminToken string) error {
	req, err := http.NewRequest(http.MethodPost, c.base+"/admin/release", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return unexpectedStatus(resp)
	}
	_, err = io.Copy(os.Stdout, resp.Body)
	fmt.Fprintln(os.Stdout)
	return err
}

func unexpectedStatus(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func payloadFrom(data string) ([]byte, error) {
	if data != "" {
		return []byte(data), nil
	}
	return io.ReadAll(os.Stdin)
}

func run() error {
	socket := flag.String("socket", "", "unix socket path of the endpoint")
	addr := flag.String("addr", "127.0.0.1:9470", "tcp address of the endpoint (ignored when -socket is set)")
	op := flag.String("op", "cycle", "operation: open|write|read|close|status|release|cycle")
	token := flag.String("token", "", "session token for write/read/close")
	data := flag.String("data", "", "message payload for write/cycle (stdin when empty)")
	adminToken := flag.String("admin-token", "", "bearer token for release")
	flag.Parse()

	c := newClient(*socket, *addr)

	switch *op {
	case "open":
		session, err := c.open()
		if err != nil {
			return err
		}
		fmt.Println(session)
		return nil
	case "write":
		payload, err := payloadFrom(*data)
		if err != nil {
			return err
		}
		return c.write(*token, payload)
	case "read":
		return c.read(*token)
	case "close":
		return c.close(*token)
	case "status":
		return c.status()
	case "release":
		return c.release(*adminToken)
	case "cycle":
		payload, err := payloadFrom(*data)
		if err != nil {
			return err
		}
		session, err := c.open()
		if err != nil {
			return err
		}
		defer func() { _ = c.close(session) }()
		if err := c.write(session, payload); err != nil {
			return err
		}
		return c.read(session)
	default:
		return fmt.Errorf("unknown op %q", *op)
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bridgectl: %v\n", err)
		os.Exit(1)
	}
}
