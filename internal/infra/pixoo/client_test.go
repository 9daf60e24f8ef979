package pixoo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// deviceServer records every command payload it receives.
func deviceServer(t *testing.T, respond func(cmd string) map[string]any) (*httptest.Server, *[]map[string]any) {
	t.Helper()
	var commands []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("invalid command payload: %v", err)
		}
		commands = append(commands, payload)

		resp := map[string]any{"error_code": 0}
		if respond != nil {
			if custom := respond(payload["Command"].(string)); custom != nil {
				resp = custom
			}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	return server, &commands
}

func TestPushFrame(t *testing.T) {
	server, commands := deviceServer(t, nil)
	defer server.Close()

	client := NewClient("ignored", WithBaseURL(server.URL))
	if err := client.PushFrame(context.Background(), "R0lGODlh", 100); err != nil {
		t.Fatalf("PushFrame returned error: %v", err)
	}

	if len(*commands) != 2 {
		t.Fatalf("got %d commands, want reset + gif", len(*commands))
	}
	if (*commands)[0]["Command"] != "Draw/ResetHttpGifId" {
		t.Errorf("first command = %v, want Draw/ResetHttpGifId", (*commands)[0]["Command"])
	}

	gifCmd := (*commands)[1]
	if gifCmd["Command"] != "Draw/SendHttpGif" {
		t.Errorf("second command = %v, want Draw/SendHttpGif", gifCmd["Command"])
	}
	if gifCmd["PicWidth"].(float64) != 64 || gifCmd["PicNum"].(float64) != 1 {
		t.Errorf("unexpected frame geometry: %v", gifCmd)
	}
	if gifCmd["PicData"] != "R0lGODlh" {
		t.Errorf("PicData = %v", gifCmd["PicData"])
	}
	if gifCmd["PicSpeed"].(float64) != 100 {
		t.Errorf("PicSpeed = %v, want 100", gifCmd["PicSpeed"])
	}
}

func TestShowTextPayload(t *testing.T) {
	server, commands := deviceServer(t, nil)
	defer server.Close()

	client := NewClient("ignored", WithBaseURL(server.URL))
	err := client.ShowText(context.Background(), Text{
		ID: 1, X: 0, Y: 48, Font: 190, Speed: 80,
		Text: "This is what you'll get", Color: "#ffffff",
	})
	if err != nil {
		t.Fatalf("ShowText returned error: %v", err)
	}

	cmd := (*commands)[0]
	if cmd["Command"] != "Draw/SendHttpText" {
		t.Errorf("command = %v", cmd["Command"])
	}
	if cmd["TextWidth"].(float64) != 64 {
		t.Errorf("TextWidth = %v, want 64", cmd["TextWidth"])
	}
	if cmd["align"].(float64) != AlignCenter {
		t.Errorf("align = %v, want center", cmd["align"])
	}
	if cmd["TextString"] != "This is what you'll get" {
		t.Errorf("TextString = %v", cmd["TextString"])
	}
}

func TestShowItemsClockAndTemperature(t *testing.T) {
	server, commands := deviceServer(t, nil)
	defer server.Close()

	client := NewClient("ignored", WithBaseURL(server.URL))
	err := client.ShowItems(context.Background(), Items{
		Clock:       true,
		ClockRight:  true,
		Temperature: true,
		FontColor:   "#00ff00",
	})
	if err != nil {
		t.Fatalf("ShowItems returned error: %v", err)
	}

	cmd := (*commands)[0]
	list := cmd["ItemList"].([]any)
	if len(list) != 2 {
		t.Fatalf("got %d items, want clock + temperature", len(list))
	}

	clock := list[0].(map[string]any)
	if clock["type"].(float64) != itemTypeClock {
		t.Errorf("clock type = %v, want %d", clock["type"], itemTypeClock)
	}
	if clock["x"].(float64) != itemXRight {
		t.Errorf("right-aligned clock x = %v, want %d", clock["x"], itemXRight)
	}
	if clock["color"] != "#00ff00" {
		t.Errorf("clock color = %v", clock["color"])
	}

	temp := list[1].(map[string]any)
	if temp["type"].(float64) != itemTypeDeviceTemp {
		t.Errorf("temperature without reading should use device sensor, got type %v", temp["type"])
	}
	if temp["x"].(float64) != itemXLeft {
		t.Errorf("temperature x = %v, want %d", temp["x"], itemXLeft)
	}
}

func TestShowItemsExternalReading(t *testing.T) {
	server, commands := deviceServer(t, nil)
	defer server.Close()

	client := NewClient("ignored", WithBaseURL(server.URL))
	err := client.ShowItems(context.Background(), Items{
		Temperature: true,
		TempReading: "21°C",
	})
	if err != nil {
		t.Fatalf("ShowItems returned error: %v", err)
	}

	list := (*commands)[0]["ItemList"].([]any)
	temp := list[0].(map[string]any)
	if temp["type"].(float64) != itemTypeCustomText {
		t.Errorf("temperature with reading type = %v, want %d", temp["type"], itemTypeCustomText)
	}
	if temp["TextString"] != "21°C" {
		t.Errorf("TextString = %v", temp["TextString"])
	}
}

func TestClearItemsSendsEmptyList(t *testing.T) {
	server, commands := deviceServer(t, nil)
	defer server.Close()

	client := NewClient("ignored", WithBaseURL(server.URL))
	if err := client.ClearItems(context.Background()); err != nil {
		t.Fatalf("ClearItems returned error: %v", err)
	}

	list := (*commands)[0]["ItemList"].([]any)
	if len(list) != 0 {
		t.Errorf("expected empty item list, got %v", list)
	}
}

func TestSetBrightnessClamps(t *testing.T) {
	server, commands := deviceServer(t, nil)
	defer server.Close()

	client := NewClient("ignored", WithBaseURL(server.URL))
	if err := client.SetBrightness(context.Background(), 150); err != nil {
		t.Fatalf("SetBrightness returned error: %v", err)
	}
	if got := (*commands)[0]["Brightness"].(float64); got != 100 {
		t.Errorf("Brightness = %v, want clamped to 100", got)
	}

	if err := client.SetBrightness(context.Background(), -5); err != nil {
		t.Fatalf("SetBrightness returned error: %v", err)
	}
	if got := (*commands)[1]["Brightness"].(float64); got != 0 {
		t.Errorf("Brightness = %v, want clamped to 0", got)
	}
}

func TestChannelRoundtrip(t *testing.T) {
	server, _ := deviceServer(t, func(cmd string) map[string]any {
		if cmd == "Channel/GetIndex" {
			return map[string]any{"error_code": 0, "SelectIndex": 3}
		}
		return nil
	})
	defer server.Close()

	client := NewClient("ignored", WithBaseURL(server.URL))
	if err := client.SetChannel(context.Background(), 3); err != nil {
		t.Fatalf("SetChannel returned error: %v", err)
	}
	idx, err := client.Channel(context.Background())
	if err != nil {
		t.Fatalf("Channel returned error: %v", err)
	}
	if idx != 3 {
		t.Errorf("channel index = %d, want 3", idx)
	}
}

func TestDeviceErrorCode(t *testing.T) {
	server, _ := deviceServer(t, func(cmd string) map[string]any {
		return map[string]any{"error_code": 5}
	})
	defer server.Close()

	client := NewClient("ignored", WithBaseURL(server.URL))
	err := client.ClearText(context.Background())
	if !errors.Is(err, ErrDevice) {
		t.Errorf("expected ErrDevice, got %v", err)
	}
}

func TestNewClientBuildsDeviceURL(t *testing.T) {
	client := NewClient("192.168.1.50")
	if client.baseURL != "http://192.168.1.50:80/post" {
		t.Errorf("baseURL = %q", client.baseURL)
	}
}
