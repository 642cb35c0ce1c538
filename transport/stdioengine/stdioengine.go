// Package stdioengine is a reference engine.Source/engine.Responder
// transport: newline-delimited JSON callbacks read from an io.Reader,
// newline-delimited JSON responses written to an io.Writer. It is one
// concrete wire encoding among many the core could sit behind (spec's own
// non-goal disclaims any mandated RPC format); this package exists so
// cmd/bridge has something to run end to end against a local engine
// subprocess piped over stdin/stdout.
package stdioengine

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/GregorStocks/commander-bench-sub000/engine"
)

// wireCallback is the newline-delimited JSON shape read from the engine.
type wireCallback struct {
	GameID  string          `json:"game_id"`
	Kind    string          `json:"kind"`
	Payload engine.Payload  `json:"payload"`
}

// wireResponse is the newline-delimited JSON shape written to the engine.
type wireResponse struct {
	GameID   string          `json:"game_id"`
	Type     string          `json:"type"`
	UUID     string          `json:"uuid,omitempty"`
	Bool     *bool           `json:"bool,omitempty"`
	String   string          `json:"string,omitempty"`
	Int      *int            `json:"int,omitempty"`
	ManaType string          `json:"mana_type,omitempty"`
	PlayerID string          `json:"player_id,omitempty"`
	Action   string          `json:"action,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// Client reads callbacks from r and writes responses to w. It implements
// both engine.Source and engine.Responder.
type Client struct {
	scanner *bufio.Scanner
	writeMu sync.Mutex
	w       io.Writer
	out     chan engine.Callback
}

// New builds a Client around the given reader/writer pair and starts the
// background read pump. Callbacks are available on Callbacks() until r is
// exhausted or ctx is done.
func New(ctx context.Context, r io.Reader, w io.Writer) *Client {
	c := &Client{
		scanner: bufio.NewScanner(r),
		w:       w,
		out:     make(chan engine.Callback, 16),
	}
	c.scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	go c.pump(ctx)
	return c
}

func (c *Client) pump(ctx context.Context) {
	defer close(c.out)
	for c.scanner.Scan() {
		line := c.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var wc wireCallback
		if err := json.Unmarshal(line, &wc); err != nil {
			continue
		}
		cb := engine.Callback{
			GameID:  wc.GameID,
			Kind:    engine.Kind(wc.Kind),
			Payload: wc.Payload,
		}
		select {
		case c.out <- cb:
		case <-ctx.Done():
			return
		}
	}
}

// Callbacks implements engine.Source.
func (c *Client) Callbacks() <-chan engine.Callback { return c.out }

func (c *Client) write(resp wireResponse) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = c.w.Write(data)
	return err
}

// SendUUID implements engine.Responder.
func (c *Client) SendUUID(_ context.Context, gameID, value string) error {
	return c.write(wireResponse{GameID: gameID, Type: "uuid", UUID: value})
}

// SendBool implements engine.Responder.
func (c *Client) SendBool(_ context.Context, gameID string, value bool) error {
	return c.write(wireResponse{GameID: gameID, Type: "boolean", Bool: &value})
}

// SendString implements engine.Responder.
func (c *Client) SendString(_ context.Context, gameID, value string) error {
	return c.write(wireResponse{GameID: gameID, Type: "string", String: value})
}

// SendInt implements engine.Responder.
func (c *Client) SendInt(_ context.Context, gameID string, value int) error {
	return c.write(wireResponse{GameID: gameID, Type: "integer", Int: &value})
}

// SendManaType implements engine.Responder.
func (c *Client) SendManaType(_ context.Context, gameID, playerID string, value engine.ManaType) error {
	return c.write(wireResponse{GameID: gameID, Type: "mana_type", ManaType: string(value), PlayerID: playerID})
}

// PlayerAction implements engine.Responder.
func (c *Client) PlayerAction(_ context.Context, gameID, action string) error {
	return c.write(wireResponse{GameID: gameID, Type: "player_action", Action: action})
}

// SendChat implements engine.Responder.
func (c *Client) SendChat(_ context.Context, gameID, message string) error {
	return c.write(wireResponse{GameID: gameID, Type: "chat", Message: message})
}

// JoinChat implements engine.Responder.
func (c *Client) JoinChat(_ context.Context, gameID string) error {
	return c.write(wireResponse{GameID: gameID, Type: "join_chat"})
}
