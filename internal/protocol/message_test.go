package protocol

import (
	"errors"
	"testing"
)

func TestDecodeMessage(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"cmd":32,"serial":99,"uid":"abc","motorPosition":40}`))
	if err != nil {
		t.Fatalf("DecodeMessage() error = %v", err)
	}

	if cmd, ok := msg.Cmd(); !ok || cmd != 32 {
		t.Errorf("Cmd() = %d, %v; want 32, true", cmd, ok)
	}
	if serial, ok := msg.Serial(); !ok || serial != 99 {
		t.Errorf("Serial() = %d, %v; want 99, true", serial, ok)
	}
	if uid, ok := msg.String("uid"); !ok || uid != "abc" {
		t.Errorf("String(uid) = %q, %v; want abc, true", uid, ok)
	}
	if pos, ok := msg.Int("motorPosition"); !ok || pos != 40 {
		t.Errorf("Int(motorPosition) = %d, %v; want 40, true", pos, ok)
	}
}

func TestDecodeMessageErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: "not json at all"},
		{name: "truncated object", data: `{"cmd":`},
		{name: "empty", data: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeMessage([]byte(tt.data)); !errors.Is(err, ErrMalformedPayload) {
				t.Errorf("DecodeMessage() error = %v, want ErrMalformedPayload", err)
			}
		})
	}
}

func TestMessageFieldLookups(t *testing.T) {
	msg := Message{
		"float":  float64(12),
		"int":    7,
		"int64":  int64(8),
		"string": "value",
	}

	if v, ok := msg.Int("float"); !ok || v != 12 {
		t.Errorf("Int(float) = %d, %v; want 12, true", v, ok)
	}
	if v, ok := msg.Int("int"); !ok || v != 7 {
		t.Errorf("Int(int) = %d, %v; want 7, true", v, ok)
	}
	if v, ok := msg.Int("int64"); !ok || v != 8 {
		t.Errorf("Int(int64) = %d, %v; want 8, true", v, ok)
	}
	if _, ok := msg.Int("string"); ok {
		t.Error("Int(string) should not be ok")
	}
	if _, ok := msg.Int("missing"); ok {
		t.Error("Int(missing) should not be ok")
	}
	if _, ok := msg.Cmd(); ok {
		t.Error("Cmd() should not be ok without a cmd field")
	}
	if v, ok := msg.String("string"); !ok || v != "value" {
		t.Errorf("String(string) = %q, %v; want value, true", v, ok)
	}
	if _, ok := msg.String("int"); ok {
		t.Error("String(int) should not be ok")
	}
}
