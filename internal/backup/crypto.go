package backup

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/argon2"
)

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
	argonTime = 3
	argonMem  = 64 * 1024
	argonPar  = 4

	formatVersion = 1
)

var magic = []byte("WTBK")

var (
	ErrBadFormat     = errors.New("not a worktracker backup")
	ErrDecryptFailed = errors.New("decrypt failed: wrong passphrase or corrupted backup")
)

func headerSize() int {
	return len(magic) + 1 + saltSize + nonceSize
}

// GenerateSalt returns 16 random bytes.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey stretches a passphrase into an AES-256 key with Argon2id.
func DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMem, argonPar, keySize)
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// Encrypt reads all of src and writes
// "WTBK" | version | salt | nonce | AES-256-GCM ciphertext to dst.
// The header is bound to the ciphertext as associated data.
func Encrypt(dst io.Writer, src io.Reader, passphrase string) error {
	plaintext, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("read plaintext: %w", err)
	}
	salt, err := GenerateSalt()
	if err != nil {
		return err
	}
	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	header := make([]byte, 0, headerSize())
	header = append(header, magic...)
	header = append(header, formatVersion)
	header = append(header, salt...)
	header = append(header, nonce...)

	if _, err := dst.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := dst.Write(gcm.Seal(nil, nonce, plaintext, header)); err != nil {
		return fmt.Errorf("write ciphertext: %w", err)
	}
	return nil
}

// Decrypt reverses Encrypt.
func Decrypt(dst io.Writer, src io.Reader, passphrase string) error {
	data, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	if len(data) < headerSize() || !bytes.Equal(data[:len(magic)], magic) {
		return ErrBadFormat
	}
	if v := data[len(magic)]; v != formatVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrBadFormat, v)
	}

	header := data[:headerSize()]
	salt := header[len(magic)+1 : len(magic)+1+saltSize]
	nonce := header[len(magic)+1+saltSize:]

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return err
	}
	plaintext, err := gcm.Open(nil, nonce, data[headerSize():], header)
	if err != nil {
		return ErrDecryptFailed
	}
	if _, err := dst.Write(plaintext); err != nil {
		return fmt.Errorf("write plaintext: %w", err)
	}
	return nil
}

// EncryptFile encrypts srcPath into a new file at dstPath (mode 0600).
func EncryptFile(srcPath, dstPath, passphrase string) error {
	return transformFile(srcPath, dstPath, passphrase, Encrypt)
}

// DecryptFile decrypts srcPath into a new file at dstPath (mode 0600).
func DecryptFile(srcPath, dstPath, passphrase string) error {
	return transformFile(srcPath, dstPath, passphrase, Decrypt)
}

func transformFile(srcPath, dstPath, passphrase string, fn func(io.Writer, io.Reader, string) error) error {
	in, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	if err := fn(out, in, passphrase); err != nil {
		out.Close()
		os.Remove(dstPath)
		return err
	}
	return out.Close()
}
