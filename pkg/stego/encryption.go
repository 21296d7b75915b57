package stego

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	SaltSize      = 16
	IVSize        = aes.BlockSize
	KeySize       = 32 // AES-256
	KDFIterations = 100000
)

// Sealed holds everything produced by one encryption that has to travel
// inside the container.
type Sealed struct {
	Salt       []byte
	IV         []byte
	Ciphertext []byte
}

// DeriveKey runs PBKDF2-HMAC-SHA256 over the password. The result is
// reproducible bit-for-bit for a given (password, salt) pair.
func DeriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, KDFIterations, KeySize, sha256.New)
}

// Encrypt seals payload under a key derived from password with a fresh salt
// and IV, using AES-256-CBC with PKCS#7 padding.
func Encrypt(payload []byte, password string) (*Sealed, error) {
	return encryptFrom(rand.Reader, payload, password)
}

func encryptFrom(entropy io.Reader, payload []byte, password string) (*Sealed, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}

	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(entropy, salt); err != nil {
		return nil, fmt.Errorf("%w: salt: %v", ErrEncryption, err)
	}
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(entropy, iv); err != nil {
		return nil, fmt.Errorf("%w: iv: %v", ErrEncryption, err)
	}

	block, err := aes.NewCipher(DeriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryption, err)
	}

	ciphertext := pkcs7Pad(payload, aes.BlockSize)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, ciphertext)

	return &Sealed{Salt: salt, IV: iv, Ciphertext: ciphertext}, nil
}

// Decrypt reverses Encrypt. Invalid padding is reported as ErrDecryption,
// which is what a wrong password almost always produces.
func Decrypt(s *Sealed, password string) ([]byte, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	if len(s.Salt) != SaltSize || len(s.IV) != IVSize {
		return nil, fmt.Errorf("%w: bad salt or iv size", ErrDecryption)
	}
	if len(s.Ciphertext) == 0 || len(s.Ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext is not a whole number of blocks", ErrDecryption)
	}

	block, err := aes.NewCipher(DeriveKey(password, s.Salt))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	plaintext := make([]byte, len(s.Ciphertext))
	cipher.NewCBCDecrypter(block, s.IV).CryptBlocks(plaintext, s.Ciphertext)

	return pkcs7Unpad(plaintext, aes.BlockSize)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	out := make([]byte, len(data), len(data)+n)
	copy(out, data)
	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("%w: bad block length", ErrDecryption)
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, fmt.Errorf("%w: bad padding", ErrDecryption)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrDecryption)
		}
	}
	return data[:len(data)-n], nil
}
