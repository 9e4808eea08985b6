package wallet

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// HKDF info strings. Changing either invalidates every sealed secret or derived mint.
const (
	sealInfo = "solana-marketplace/wallet-seal"
	mintInfo = "solana-marketplace/mint-keypair"
)

// MasterKeyLen is the required master key length in bytes.
const MasterKeyLen = 32

// ParseMasterKey decodes a 32-byte master key given as hex or standard base64.
func ParseMasterKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if b, err := hex.DecodeString(s); err == nil && len(b) == MasterKeyLen {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) == MasterKeyLen {
		return b, nil
	}
	return nil, ErrInvalidMasterKey
}

func deriveKey(master []byte, salt, info string) ([]byte, error) {
	r := hkdf.New(sha256.New, master, []byte(salt), []byte(info))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return key, nil
}

// seal encrypts secret under a key derived for walletID. The address is bound
// as associated data. Output is nonce || ciphertext.
func seal(master []byte, walletID, address string, secret []byte) ([]byte, error) {
	key, err := deriveKey(master, walletID, sealInfo)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(secret)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, secret, []byte(address)), nil
}

func open(master []byte, walletID, address string, sealed []byte) ([]byte, error) {
	key, err := deriveKey(master, walletID, sealInfo)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrSealedCorrupt
	}

	nonce, ct := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	secret, err := aead.Open(nil, nonce, ct, []byte(address))
	if err != nil {
		return nil, ErrSealedCorrupt
	}
	return secret, nil
}
