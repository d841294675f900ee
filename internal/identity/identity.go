// Package identity implements Hermod's process-wide identity store: a
// mapping from identity token to a client's static X25519 public key,
// loaded once from an authorized-clients file and mutated by share-key
// enrolment.
package identity

import (
	"bufio"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/blake2s"

	"github.com/gosuda/hermod/internal/hermoderr"
)

// Identity binds an identity token to a client's static public key.
type Identity struct {
	IDToken   string
	ClientKey []byte // 32-byte X25519 public key
}

// Store is a guarded, process-wide map from id token to Identity, backed by
// a flat file on disk. The zero value is not usable; construct with New.
type Store struct {
	path string

	mu    sync.RWMutex
	byTok map[string]Identity
}

// New creates a Store backed by path. Load must be called before use.
func New(path string) *Store {
	return &Store{path: path, byTok: make(map[string]Identity)}
}

// Load reads path into memory, replacing any prior in-memory state. A
// missing file is treated as an empty store so a fresh server can start
// before its first client enrols.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byTok = make(map[string]Identity)

	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return hermoderr.Wrap(hermoderr.KindIO, "open authorized_clients", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		id, err := parseLine(line)
		if err != nil {
			return hermoderr.Wrap(hermoderr.KindEncoding, "parse authorized_clients line", err)
		}
		s.byTok[id.IDToken] = id
	}
	if err := scanner.Err(); err != nil {
		return hermoderr.Wrap(hermoderr.KindIO, "scan authorized_clients", err)
	}
	return nil
}

func parseLine(line string) (Identity, error) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return Identity{}, fmt.Errorf("identity: malformed line %q", line)
	}
	token := line[:idx]
	key, err := base64.StdEncoding.DecodeString(line[idx+1:])
	if err != nil {
		return Identity{}, fmt.Errorf("identity: bad base64 key for token %q: %w", token, err)
	}
	return Identity{IDToken: token, ClientKey: key}, nil
}

// Lookup returns the Identity for token, or hermoderr.ErrUnknownIdentity.
func (s *Store) Lookup(token string) (Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byTok[token]
	if !ok {
		return Identity{}, hermoderr.ErrUnknownIdentity
	}
	return id, nil
}

// Insert adds id to the in-memory map and appends it to the backing file,
// fsyncing before returning so the enrolment survives a crash.
func (s *Store) Insert(id Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return hermoderr.Wrap(hermoderr.KindIO, "create identity store directory", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return hermoderr.Wrap(hermoderr.KindIO, "open authorized_clients for append", err)
	}
	defer f.Close()

	line := fmt.Sprintf("%s:%s\n", id.IDToken, base64.StdEncoding.EncodeToString(id.ClientKey))
	if _, err := f.WriteString(line); err != nil {
		return hermoderr.Wrap(hermoderr.KindIO, "append identity", err)
	}
	if err := f.Sync(); err != nil {
		return hermoderr.Wrap(hermoderr.KindIO, "fsync authorized_clients", err)
	}

	s.byTok[id.IDToken] = id
	return nil
}

// Fingerprint returns a short, non-reversible hex digest of token, for log
// lines that need to distinguish identities without ever writing a raw
// identity token (a bearer credential) to disk or a log aggregator.
func Fingerprint(token string) string {
	sum := blake2s.Sum256([]byte(token))
	return hex.EncodeToString(sum[:4])
}

// Enumerate returns a snapshot of all known identities, for `server list`.
func (s *Store) Enumerate() []Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Identity, 0, len(s.byTok))
	for _, id := range s.byTok {
		out = append(out, id)
	}
	return out
}
