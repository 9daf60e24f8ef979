package lights

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type call struct {
	domain  string
	service string
	data    map[string]any
}

type fakeCaller struct {
	calls   []call
	failFor map[string]error
}

func (f *fakeCaller) CallService(ctx context.Context, domain, service string, data map[string]any) error {
	f.calls = append(f.calls, call{domain: domain, service: service, data: data})
	if err, ok := f.failFor[data["entity_id"].(string)]; ok {
		return err
	}
	return nil
}

func TestOnSendsColorAndBrightness(t *testing.T) {
	caller := &fakeCaller{}
	ctrl := NewController(caller, []string{"light.strip"})

	if err := ctrl.On(context.Background(), [3]uint8{200, 100, 50}, 204); err != nil {
		t.Fatalf("On returned error: %v", err)
	}

	c := caller.calls[0]
	if c.domain != "light" || c.service != "turn_on" {
		t.Errorf("called %s.%s, want light.turn_on", c.domain, c.service)
	}
	rgb := c.data["rgb_color"].([]int)
	if rgb[0] != 200 || rgb[1] != 100 || rgb[2] != 50 {
		t.Errorf("rgb_color = %v", rgb)
	}
	if c.data["brightness_pct"] != 80 {
		t.Errorf("brightness_pct = %v, want 80", c.data["brightness_pct"])
	}
}

func TestOnAddressesEveryEntity(t *testing.T) {
	caller := &fakeCaller{}
	ctrl := NewController(caller, []string{"light.a", "light.b", "light.c"})

	if err := ctrl.On(context.Background(), [3]uint8{1, 2, 3}, 128); err != nil {
		t.Fatalf("On returned error: %v", err)
	}
	if len(caller.calls) != 3 {
		t.Fatalf("got %d calls, want 3", len(caller.calls))
	}
	for i, want := range []string{"light.a", "light.b", "light.c"} {
		if got := caller.calls[i].data["entity_id"]; got != want {
			t.Errorf("call %d entity = %v, want %s", i, got, want)
		}
	}
}

func TestOnFailingEntityDoesNotBlockOthers(t *testing.T) {
	boom := fmt.Errorf("unreachable")
	caller := &fakeCaller{failFor: map[string]error{"light.a": boom}}
	ctrl := NewController(caller, []string{"light.a", "light.b"})

	err := ctrl.On(context.Background(), [3]uint8{1, 2, 3}, 128)
	if !errors.Is(err, boom) {
		t.Errorf("expected the failure to surface, got %v", err)
	}
	if len(caller.calls) != 2 {
		t.Errorf("got %d calls, want both entities addressed", len(caller.calls))
	}
}

func TestOff(t *testing.T) {
	caller := &fakeCaller{}
	ctrl := NewController(caller, []string{"light.a", "light.b"})

	if err := ctrl.Off(context.Background()); err != nil {
		t.Fatalf("Off returned error: %v", err)
	}
	if len(caller.calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(caller.calls))
	}
	for _, c := range caller.calls {
		if c.service != "turn_off" {
			t.Errorf("service = %s, want turn_off", c.service)
		}
		if _, ok := c.data["rgb_color"]; ok {
			t.Error("turn_off must not carry color data")
		}
	}
}

func TestBrightnessPct(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 10},    // clamped up
		{13, 10},   // 5% clamped up
		{128, 50},
		{255, 100},
		{300, 100}, // clamped down
	}
	for _, tt := range tests {
		if got := BrightnessPct(tt.in); got != tt.want {
			t.Errorf("BrightnessPct(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestConfigured(t *testing.T) {
	if NewController(&fakeCaller{}, nil).Configured() {
		t.Error("no entities should report unconfigured")
	}
	if NewController(&fakeCaller{}, []string{""}).Configured() {
		t.Error("blank entities should be dropped")
	}
	if !NewController(&fakeCaller{}, []string{"light.a"}).Configured() {
		t.Error("expected Configured")
	}
}
