package credentials

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

// FileVersion is the current version of the token file format.
const FileVersion = 1

const (
	keySize   = 32
	nonceSize = 24
	saltSize  = 16
	keyInfo   = "lobby-go session token v1"
)

// ErrSealedToken is returned when a token file cannot be opened with the
// configured secret.
var ErrSealedToken = errors.New("cannot open sealed token")

// tokenFile is the on-disk representation.
type tokenFile struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	Server  string    `json:"server,omitempty"`
	Salt    []byte    `json:"salt"`
	Nonce   []byte    `json:"nonce"`
	Sealed  []byte    `json:"sealed"`
}

// FileStore persists a token sealed with a key derived from secret.
type FileStore struct {
	mu     sync.Mutex
	path   string
	secret []byte
	server string

	// Cached after the first successful load.
	token       string
	loaded      bool
	invalidated bool
}

// NewFileStore creates a store for path. The secret is typically a
// per-machine value; server is recorded in the file for inspection.
func NewFileStore(path string, secret []byte, server string) *FileStore {
	return &FileStore{
		path:   path,
		secret: append([]byte(nil), secret...),
		server: server,
	}
}

// Path returns the token file location.
func (s *FileStore) Path() string {
	return s.path
}

// Save seals token and writes it to disk.
func (s *FileStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token == "" {
		return ErrNoCredential
	}

	f := tokenFile{
		Version: FileVersion,
		SavedAt: time.Now(),
		Server:  s.server,
		Salt:    make([]byte, saltSize),
		Nonce:   make([]byte, nonceSize),
	}
	if _, err := io.ReadFull(rand.Reader, f.Salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, f.Nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	key, err := s.deriveKey(f.Salt)
	if err != nil {
		return err
	}
	var nonce [nonceSize]byte
	copy(nonce[:], f.Nonce)
	f.Sealed = secretbox.Seal(nil, []byte(token), &nonce, key)

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return err
	}

	s.token = token
	s.loaded = true
	s.invalidated = false
	return nil
}

// Token returns the stored token, reading the file on first use.
func (s *FileStore) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.invalidated {
		return "", ErrInvalidated
	}
	if s.loaded {
		return s.token, nil
	}

	token, err := s.load()
	if err != nil {
		return "", err
	}
	s.token = token
	s.loaded = true
	return token, nil
}

// Invalidate revokes the cached token without touching the file. A later
// Save clears the invalidation.
func (s *FileStore) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = true
}

// Clear removes the token file and forgets the cached token.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.loaded = false

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *FileStore) load() (string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", err
	}

	var f tokenFile
	if err := json.Unmarshal(data, &f); err != nil {
		return "", fmt.Errorf("parse token file: %w", err)
	}
	if f.Version != FileVersion {
		return "", fmt.Errorf("unsupported token file version %d", f.Version)
	}
	if len(f.Nonce) != nonceSize {
		return "", ErrSealedToken
	}

	key, err := s.deriveKey(f.Salt)
	if err != nil {
		return "", err
	}
	var nonce [nonceSize]byte
	copy(nonce[:], f.Nonce)

	plain, ok := secretbox.Open(nil, f.Sealed, &nonce, key)
	if !ok {
		return "", ErrSealedToken
	}
	if len(plain) == 0 {
		return "", ErrNoCredential
	}
	return string(plain), nil
}

func (s *FileStore) deriveKey(salt []byte) (*[keySize]byte, error) {
	if len(s.secret) == 0 {
		return nil, errors.New("empty token secret")
	}
	var key [keySize]byte
	r := hkdf.New(sha256.New, s.secret, salt, []byte(keyInfo))
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return &key, nil
}
