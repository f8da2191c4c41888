package mqtt

import (
	"testing"

	"github.com/bluekiller/homemate-bridge/internal/notify"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		payload string
		want    notify.StateChange
		wantErr bool
	}{
		{payload: "on", want: notify.LightOn},
		{payload: "off", want: notify.LightOff},
		{payload: "open", want: notify.CoverUp},
		{payload: "up", want: notify.CoverUp},
		{payload: "close", want: notify.CoverDown},
		{payload: "down", want: notify.CoverDown},
		{payload: "stop", want: notify.CoverStop},
		{payload: " ON\n", want: notify.LightOn},
		{payload: "toggle", wantErr: true},
		{payload: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			got, err := parseCommand(tt.payload)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseCommand(%q) = %+v, want error", tt.payload, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseCommand(%q) error = %v", tt.payload, err)
			}
			if got != tt.want {
				t.Errorf("parseCommand(%q) = %+v, want %+v", tt.payload, got, tt.want)
			}
		})
	}
}

func TestTopics(t *testing.T) {
	p := &Publisher{}
	p.cfg.TopicPrefix = "homemate"

	if got := p.statusTopic(); got != "homemate/bridge/status" {
		t.Errorf("status topic = %q", got)
	}
	if got := p.stateTopic("uid-1"); got != "homemate/uid-1/state" {
		t.Errorf("state topic = %q", got)
	}
	if got := p.commandTopic("uid-1"); got != "homemate/uid-1/set" {
		t.Errorf("command topic = %q", got)
	}
}
