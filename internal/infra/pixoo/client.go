// Package pixoo speaks the Divoom Pixoo64 HTTP command protocol.
// Every command is a JSON POST to the device's /post endpoint; the
// device answers with an error_code field, zero meaning success.
package pixoo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds a single device command. The Pixoo64 answers
// on the local network or not at all.
const DefaultTimeout = 5 * time.Second

// ErrDevice indicates the device rejected a command with a non-zero
// error code.
var ErrDevice = errors.New("device returned error")

// TextAlign values accepted by the device.
const (
	AlignLeft   = 1
	AlignCenter = 2
	AlignRight  = 3
)

// Item display types understood by Draw/SendHttpItemList.
const (
	itemTypeClock       = 3  // device-rendered clock
	itemTypeDeviceTemp  = 17 // device's own temperature sensor
	itemTypeCustomText  = 22 // caller-supplied text, used for external temperature
	itemFont            = 2
	itemY               = 57
	itemXLeft           = 2
	itemXRight          = 34
)

// Client drives a single Pixoo64 device.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the device endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client for the device at the given IP.
func NewClient(ip string, opts ...Option) *Client {
	c := &Client{
		baseURL:    fmt.Sprintf("http://%s:80/post", ip),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// deviceResponse is the envelope every command returns.
type deviceResponse struct {
	ErrorCode   int `json:"error_code"`
	SelectIndex int `json:"SelectIndex"`
}

// send posts a command payload and checks the device error code.
func (c *Client) send(ctx context.Context, payload map[string]any) (*deviceResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create device request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send device command: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("device returned status %d", resp.StatusCode)
	}

	var dr deviceResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		// Some firmware versions answer with an empty body on success.
		return &deviceResponse{}, nil
	}
	if dr.ErrorCode != 0 {
		return nil, fmt.Errorf("%w: code %d for %v", ErrDevice, dr.ErrorCode, payload["Command"])
	}
	return &dr, nil
}

// PushFrame displays a base64-encoded 64x64 GIF. The animation counter
// is reset first so the device does not reject the picture ID.
func (c *Client) PushFrame(ctx context.Context, gifBase64 string, speed int) error {
	if _, err := c.send(ctx, map[string]any{"Command": "Draw/ResetHttpGifId"}); err != nil {
		log.Debug().Err(err).Msg("Resetting GIF ID failed, pushing anyway")
	}

	_, err := c.send(ctx, map[string]any{
		"Command":   "Draw/SendHttpGif",
		"PicNum":    1,
		"PicWidth":  64,
		"PicOffset": 0,
		"PicID":     1,
		"PicSpeed":  speed,
		"PicData":   gifBase64,
	})
	return err
}

// Text is a scrolling text overlay rendered by the device itself.
type Text struct {
	ID    int
	X     int
	Y     int
	Font  int
	Speed int // lower is faster
	Text  string
	Color string // hex
}

// ShowText draws device-rendered scrolling text on top of the frame.
func (c *Client) ShowText(ctx context.Context, t Text) error {
	_, err := c.send(ctx, map[string]any{
		"Command":    "Draw/SendHttpText",
		"TextId":     t.ID,
		"x":          t.X,
		"y":          t.Y,
		"dir":        0,
		"font":       t.Font,
		"TextWidth":  64,
		"speed":      t.Speed,
		"TextString": t.Text,
		"color":      t.Color,
		"align":      AlignCenter,
	})
	return err
}

// ClearText removes all device-rendered text overlays.
func (c *Client) ClearText(ctx context.Context) error {
	_, err := c.send(ctx, map[string]any{"Command": "Draw/ClearHttpText"})
	return err
}

// Items describes the device-rendered status widgets shown along the
// bottom row of the display.
type Items struct {
	Clock        bool
	ClockRight   bool   // clock on the right, temperature on the left
	Temperature  bool
	TempReading  string // external reading; empty uses the device sensor
	FontColor    string // hex, defaults to white
}

// ShowItems replaces the device item list. An empty Items clears it.
func (c *Client) ShowItems(ctx context.Context, items Items) error {
	color := items.FontColor
	if color == "" {
		color = "#FFFFFF"
	}

	var list []map[string]any
	id := 0

	if items.Clock {
		id++
		x := itemXLeft
		if items.ClockRight {
			x = itemXRight
		}
		list = append(list, map[string]any{
			"TextId": fmt.Sprintf("%d", id),
			"type":   itemTypeClock,
			"x":      x, "y": itemY,
			"font":  itemFont,
			"color": color,
		})
	}

	if items.Temperature {
		id++
		x := itemXLeft
		if items.Clock && !items.ClockRight {
			// Clock holds the left slot, temperature moves right.
			x = itemXRight
		}
		item := map[string]any{
			"TextId": fmt.Sprintf("%d", id),
			"x":      x, "y": itemY,
			"font":  itemFont,
			"color": color,
		}
		if items.TempReading != "" {
			item["type"] = itemTypeCustomText
			item["TextString"] = items.TempReading
		} else {
			item["type"] = itemTypeDeviceTemp
		}
		list = append(list, item)
	}

	if list == nil {
		list = []map[string]any{}
	}
	_, err := c.send(ctx, map[string]any{
		"Command":  "Draw/SendHttpItemList",
		"ItemList": list,
	})
	return err
}

// ClearItems removes all device-rendered widgets.
func (c *Client) ClearItems(ctx context.Context) error {
	return c.ShowItems(ctx, Items{})
}

// SetBrightness sets the panel brightness, clamped to 0-100.
func (c *Client) SetBrightness(ctx context.Context, brightness int) error {
	if brightness < 0 {
		brightness = 0
	}
	if brightness > 100 {
		brightness = 100
	}
	_, err := c.send(ctx, map[string]any{
		"Command":    "Channel/SetBrightness",
		"Brightness": brightness,
	})
	return err
}

// SetChannel switches the device to a built-in channel.
func (c *Client) SetChannel(ctx context.Context, index int) error {
	_, err := c.send(ctx, map[string]any{
		"Command":     "Channel/SetIndex",
		"SelectIndex": index,
	})
	return err
}

// Channel returns the currently selected channel index.
func (c *Client) Channel(ctx context.Context) (int, error) {
	dr, err := c.send(ctx, map[string]any{"Command": "Channel/GetIndex"})
	if err != nil {
		return 0, err
	}
	return dr.SelectIndex, nil
}
