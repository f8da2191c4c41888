package protocol

import (
	"bytes"
	"crypto/aes"
	"errors"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := testKey()

	tests := []struct {
		name      string
		plaintext string
	}{
		{name: "short payload", plaintext: `{"cmd":32}`},
		{name: "exactly one block", plaintext: `{"cmd":32,"ser":0}`[:16]},
		{name: "multi block", plaintext: `{"cmd":99,"serial":12345,"lightingState":"on","motorState":"goingUp"}`},
		{name: "empty payload", plaintext: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, err := Encrypt(key, []byte(tt.plaintext))
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if len(ciphertext)%BlockSize != 0 {
				t.Errorf("ciphertext length %d is not block aligned", len(ciphertext))
			}

			plaintext, err := Decrypt(key, ciphertext)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(plaintext, []byte(tt.plaintext)) {
				t.Errorf("round trip = %q, want %q", plaintext, tt.plaintext)
			}
		})
	}
}

// Real devices append a null byte after the JSON before padding. Decrypt
// must strip exactly one.
func TestDecryptStripsOneTrailingNull(t *testing.T) {
	key := testKey()

	tests := []struct {
		name string
		sent string
		want string
	}{
		{name: "one trailing null", sent: "{\"cmd\":0}\x00", want: `{"cmd":0}`},
		{name: "no trailing null", sent: `{"cmd":0}`, want: `{"cmd":0}`},
		{name: "two trailing nulls strip one", sent: "{\"cmd\":0}\x00\x00", want: "{\"cmd\":0}\x00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, err := Encrypt(key, []byte(tt.sent))
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			plaintext, err := Decrypt(key, ciphertext)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(plaintext, []byte(tt.want)) {
				t.Errorf("Decrypt() = %q, want %q", plaintext, tt.want)
			}
		})
	}
}

func TestDecryptRejectsBadLengths(t *testing.T) {
	key := testKey()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "partial block", data: make([]byte, BlockSize-1)},
		{name: "unaligned", data: make([]byte, BlockSize+3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decrypt(key, tt.data); !errors.Is(err, ErrInvalidFrame) {
				t.Errorf("Decrypt() error = %v, want ErrInvalidFrame", err)
			}
		})
	}
}

func TestCipherRejectsBadKey(t *testing.T) {
	if _, err := Encrypt([]byte("short"), []byte("x")); !errors.Is(err, ErrMissingKey) {
		t.Errorf("Encrypt() error = %v, want ErrMissingKey", err)
	}
	if _, err := Decrypt([]byte("short"), make([]byte, BlockSize)); !errors.Is(err, ErrMissingKey) {
		t.Errorf("Decrypt() error = %v, want ErrMissingKey", err)
	}
}

func TestPKCS7Unpad(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    []byte
		wantErr bool
	}{
		{
			name: "single padding byte",
			data: append(bytes.Repeat([]byte{'a'}, 15), 0x01),
			want: bytes.Repeat([]byte{'a'}, 15),
		},
		{
			name: "full block of padding",
			data: bytes.Repeat([]byte{0x10}, 16),
			want: []byte{},
		},
		{
			name:    "zero padding byte",
			data:    append(bytes.Repeat([]byte{'a'}, 15), 0x00),
			wantErr: true,
		},
		{
			name:    "padding byte too large",
			data:    append(bytes.Repeat([]byte{'a'}, 15), 0x11),
			wantErr: true,
		},
		{
			name:    "inconsistent padding",
			data:    append(bytes.Repeat([]byte{'a'}, 14), 0x01, 0x02),
			wantErr: true,
		},
		{
			name:    "empty input",
			data:    nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pkcs7Unpad(tt.data, aes.BlockSize)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedPayload) {
					t.Errorf("pkcs7Unpad() error = %v, want ErrMalformedPayload", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("pkcs7Unpad() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("pkcs7Unpad() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultKeys(t *testing.T) {
	keys := DefaultKeys()

	key, ok := keys[FrameTypePK.KeyByte()]
	if !ok {
		t.Fatal("factory key missing for PK type")
	}
	if string(key) != "khggd54865SNJHGF" {
		t.Errorf("factory key = %q, want %q", key, "khggd54865SNJHGF")
	}
	if _, ok := keys[FrameTypeDK.KeyByte()]; ok {
		t.Error("DK key should not exist before negotiation")
	}

	// Each call returns an independent table.
	keys[FrameTypeDK.KeyByte()] = []byte("0123456789abcdef")
	if _, ok := DefaultKeys()[FrameTypeDK.KeyByte()]; ok {
		t.Error("mutating one table leaked into a fresh one")
	}
}
