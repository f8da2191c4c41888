package protocol

import (
	"crypto/aes"
	"encoding/base64"
	"fmt"
)

// BlockSize is the cipher block size. Ciphertext length is always a whole
// multiple of it.
const BlockSize = aes.BlockSize

// The factory key every device ships with, used for frame type 0x70 until
// a session key has been negotiated.
const defaultKeyPK = "a2hnZ2Q1NDg2NVNOSkhHRg=="

// DefaultKeys returns a fresh key table seeded with the well-known factory
// key for FrameTypePK. Each session owns its own copy; the table grows as
// keys are negotiated.
func DefaultKeys() map[byte][]byte {
	key, err := base64.StdEncoding.DecodeString(defaultKeyPK)
	if err != nil {
		// The constant is compiled in; this cannot happen at runtime.
		panic(fmt.Sprintf("protocol: bad built-in key: %v", err))
	}
	return map[byte][]byte{FrameTypePK.KeyByte(): key}
}

// Encrypt pads plaintext to the block size (PKCS#7) and encrypts it with
// AES-128 in ECB mode. The protocol uses no IV; blocks are independent.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingKey, err)
	}

	padded := pkcs7Pad(plaintext, BlockSize)
	ciphertext := make([]byte, len(padded))
	for i := 0; i < len(padded); i += BlockSize {
		block.Encrypt(ciphertext[i:i+BlockSize], padded[i:i+BlockSize])
	}

	return ciphertext, nil
}

// Decrypt decrypts ciphertext block by block, removes the PKCS#7 padding,
// and strips at most one trailing null byte. The trailing null is a device
// firmware quirk observed on real hardware; it is replicated here exactly,
// not corrected.
func Decrypt(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingKey, err)
	}

	if len(ciphertext) == 0 || len(ciphertext)%BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not a positive multiple of %d", ErrInvalidFrame, len(ciphertext), BlockSize)
	}

	plaintext := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += BlockSize {
		block.Decrypt(plaintext[i:i+BlockSize], ciphertext[i:i+BlockSize])
	}

	unpadded, err := pkcs7Unpad(plaintext, BlockSize)
	if err != nil {
		return nil, err
	}

	if n := len(unpadded); n > 0 && unpadded[n-1] == 0x00 {
		unpadded = unpadded[:n-1]
	}

	return unpadded, nil
}

// pkcs7Pad appends 1..blockSize bytes of padding, each equal to the padding
// length.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

// pkcs7Unpad validates and removes PKCS#7 padding. Bad padding means the
// payload was encrypted under a different key, which the caller treats as
// fatal for the connection.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("%w: unpadded length %d", ErrMalformedPayload, len(data))
	}

	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize {
		return nil, fmt.Errorf("%w: padding byte %d", ErrMalformedPayload, padLen)
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("%w: inconsistent padding", ErrMalformedPayload)
		}
	}

	return data[:len(data)-padLen], nil
}
