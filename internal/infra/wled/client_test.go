package wled

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func stateServer(t *testing.T, fail bool) (*httptest.Server, *[]map[string]any) {
	t.Helper()
	var states []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var s map[string]any
		if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
			t.Errorf("invalid state payload: %v", err)
		}
		states = append(states, s)
		w.Write([]byte(`{"success":true}`))
	}))
	return server, &states
}

func testSettings() Settings {
	return Settings{Brightness: 255, EffectID: 38, PaletteID: 0, Speed: 60, Intensity: 128}
}

func TestSyncColorsPayload(t *testing.T) {
	server, states := stateServer(t, false)
	defer server.Close()

	client := NewClient(nil, testSettings(), WithTargets([]string{server.URL}))
	colors := [][3]uint8{{200, 100, 50}, {10, 20, 30}}
	if err := client.SyncColors(context.Background(), colors, 180); err != nil {
		t.Fatalf("SyncColors returned error: %v", err)
	}

	s := (*states)[0]
	if s["on"] != true {
		t.Error("expected on=true")
	}
	if s["bri"].(float64) != 180 {
		t.Errorf("bri = %v, want 180", s["bri"])
	}

	seg := s["seg"].([]any)[0].(map[string]any)
	col := seg["col"].([]any)
	if len(col) != 2 {
		t.Fatalf("got %d colors, want 2", len(col))
	}
	first := col[0].([]any)
	if first[0].(float64) != 200 || first[1].(float64) != 100 || first[2].(float64) != 50 {
		t.Errorf("first color = %v", first)
	}

	// A solid artwork color freezes the effect.
	if seg["fx"].(float64) != 0 || seg["pal"].(float64) != 0 {
		t.Errorf("fx/pal = %v/%v, want 0/0 with explicit colors", seg["fx"], seg["pal"])
	}
	if seg["sx"].(float64) != 60 || seg["ix"].(float64) != 128 {
		t.Errorf("sx/ix = %v/%v, want configured 60/128", seg["sx"], seg["ix"])
	}
}

func TestSyncColorsWithoutPaletteUsesConfiguredEffect(t *testing.T) {
	server, states := stateServer(t, false)
	defer server.Close()

	client := NewClient(nil, testSettings(), WithTargets([]string{server.URL}))
	if err := client.SyncColors(context.Background(), nil, 0); err != nil {
		t.Fatalf("SyncColors returned error: %v", err)
	}

	s := (*states)[0]
	if s["bri"].(float64) != 255 {
		t.Errorf("bri = %v, want configured default 255", s["bri"])
	}
	seg := s["seg"].([]any)[0].(map[string]any)
	if seg["fx"].(float64) != 38 {
		t.Errorf("fx = %v, want configured effect 38", seg["fx"])
	}
	if _, ok := seg["col"]; ok {
		t.Error("expected no col field without artwork colors")
	}
}

func TestOffPayload(t *testing.T) {
	server, states := stateServer(t, false)
	defer server.Close()

	client := NewClient(nil, testSettings(), WithTargets([]string{server.URL}))
	if err := client.Off(context.Background()); err != nil {
		t.Fatalf("Off returned error: %v", err)
	}

	s := (*states)[0]
	if s["on"] != false {
		t.Error("expected on=false")
	}
	if _, ok := s["seg"]; ok {
		t.Error("off state should not carry segments")
	}
}

func TestMultipleTargetsEachReceiveState(t *testing.T) {
	serverA, statesA := stateServer(t, false)
	defer serverA.Close()
	serverB, statesB := stateServer(t, false)
	defer serverB.Close()

	client := NewClient(nil, testSettings(), WithTargets([]string{serverA.URL, serverB.URL}))
	if err := client.SyncColors(context.Background(), [][3]uint8{{1, 2, 3}}, 100); err != nil {
		t.Fatalf("SyncColors returned error: %v", err)
	}

	if len(*statesA) != 1 || len(*statesB) != 1 {
		t.Errorf("each controller should receive one update, got %d and %d",
			len(*statesA), len(*statesB))
	}
}

func TestFailingTargetDoesNotBlockOthers(t *testing.T) {
	failing, _ := stateServer(t, true)
	defer failing.Close()
	healthy, states := stateServer(t, false)
	defer healthy.Close()

	client := NewClient(nil, testSettings(), WithTargets([]string{failing.URL, healthy.URL}))
	err := client.SyncColors(context.Background(), [][3]uint8{{1, 2, 3}}, 100)
	if err == nil {
		t.Error("expected an error from the failing controller")
	}
	if len(*states) != 1 {
		t.Errorf("healthy controller should still receive the update, got %d", len(*states))
	}
}

func TestNewClientBuildsTargets(t *testing.T) {
	client := NewClient([]string{"192.168.1.100", "", "192.168.1.101"}, testSettings())
	if len(client.targets) != 2 {
		t.Fatalf("got %d targets, want 2", len(client.targets))
	}
	if client.targets[0] != "http://192.168.1.100/json/state" {
		t.Errorf("target = %q", client.targets[0])
	}
	if !client.Configured() {
		t.Error("expected Configured")
	}
	if NewClient(nil, testSettings()).Configured() {
		t.Error("expected not Configured with no IPs")
	}
}
