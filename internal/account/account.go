package account

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrAccountLength = errors.New("account id must be 3 to 16 characters")
	ErrAccountFormat = errors.New("account id must contain only uppercase letters and digits")
	ErrKeyLength     = errors.New("encryption key must be 16, 24 or 32 characters")
	ErrKeyFormat     = errors.New("encryption key must be hexadecimal characters")
	ErrSkewPolicy    = errors.New("timestamp skew must be a positive duration")
	ErrNotEncrypted  = errors.New("account has no encryption key")
)

// SkewPolicy bounds how far an event timestamp may drift from the receiver
// clock. Unbounded must be set explicitly; a zero duration is rejected.
type SkewPolicy struct {
	Past      time.Duration
	Future    time.Duration
	Unbounded bool
}

func DefaultSkew() SkewPolicy {
	return SkewPolicy{Past: 40 * time.Second, Future: 20 * time.Second}
}

type Account struct {
	ID       string
	Skew     SkewPolicy
	Location *time.Location

	block cipher.Block
}

func New(id, key string) (*Account, error) {
	return NewWithSkew(id, key, DefaultSkew(), time.UTC)
}

func NewWithSkew(id, key string, skew SkewPolicy, loc *time.Location) (*Account, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if !skew.Unbounded && (skew.Past <= 0 || skew.Future <= 0) {
		return nil, ErrSkewPolicy
	}
	if loc == nil {
		loc = time.UTC
	}
	a := &Account{ID: id, Skew: skew, Location: loc}
	key = strings.ToUpper(strings.TrimSpace(key))
	if key != "" {
		if err := ValidateKey(key); err != nil {
			return nil, err
		}
		block, err := aes.NewCipher([]byte(key))
		if err != nil {
			return nil, fmt.Errorf("build cipher: %w", err)
		}
		a.block = block
	}
	return a, nil
}

func ValidateID(id string) error {
	if len(id) < 3 || len(id) > 16 {
		return ErrAccountLength
	}
	for _, ch := range id {
		if (ch < '0' || ch > '9') && (ch < 'A' || ch > 'Z') {
			return ErrAccountFormat
		}
	}
	return nil
}

func ValidateKey(key string) error {
	switch len(key) {
	case 16, 24, 32:
	default:
		return ErrKeyLength
	}
	for _, ch := range key {
		if (ch < '0' || ch > '9') && (ch < 'A' || ch > 'F') {
			return ErrKeyFormat
		}
	}
	return nil
}

func (a *Account) Encrypted() bool {
	return a.block != nil
}

// ValidTimestamp reports whether ts falls inside the account's skew policy
// relative to now, evaluated in the account's timezone. The boundary is
// inclusive: an event stamped exactly now minus Past is still valid.
func (a *Account) ValidTimestamp(ts, now time.Time) bool {
	if a.Skew.Unbounded {
		return true
	}
	now = now.In(a.Location)
	return !ts.Before(now.Add(-a.Skew.Past)) && !ts.After(now.Add(a.Skew.Future))
}

// Decrypt decodes a hex cipher block (AES-CBC, zero IV as fixed by the
// protocol), strips zero padding and returns the content from the leading
// separator onward, so decrypted content parses like cleartext content.
func (a *Account) Decrypt(block string) (string, error) {
	if a.block == nil {
		return "", ErrNotEncrypted
	}
	data, err := hex.DecodeString(strings.TrimSpace(block))
	if err != nil {
		return "", fmt.Errorf("decode cipher block: %w", err)
	}
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return "", fmt.Errorf("cipher block length %d is not a multiple of %d", len(data), aes.BlockSize)
	}
	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(a.block, make([]byte, aes.BlockSize)).CryptBlocks(plain, data)
	plain = bytes.TrimRight(plain, "\x00")
	i := bytes.IndexByte(plain, '|')
	if i < 0 {
		return "", errors.New("decrypted content has no separator, wrong key or corrupted block")
	}
	return string(plain[i:]), nil
}

// Encrypt produces a cipher block the parser accepts: a pad block, the
// content, zero padding to the cipher block size, CBC with zero IV, hex.
func (a *Account) Encrypt(content string) (string, error) {
	if a.block == nil {
		return "", ErrNotEncrypted
	}
	plain := make([]byte, 0, aes.BlockSize+len(content)+aes.BlockSize)
	plain = append(plain, bytes.Repeat([]byte("0"), aes.BlockSize)...)
	plain = append(plain, content...)
	if rem := len(plain) % aes.BlockSize; rem != 0 {
		plain = append(plain, make([]byte, aes.BlockSize-rem)...)
	}
	out := make([]byte, len(plain))
	cipher.NewCBCEncrypter(a.block, make([]byte, aes.BlockSize)).CryptBlocks(out, plain)
	return strings.ToUpper(hex.EncodeToString(out)), nil
}
