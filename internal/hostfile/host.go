// Package hostfile implements Hermod's per-alias host record: the client
// side's view of one reachable server, its static public key, and the
// local keypair+token used against it.
package hostfile

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gosuda/hermod/internal/hermoderr"
)

// Host is the client-side record for one remote server.
type Host struct {
	Alias      string
	Hostname   string // "host:port"
	IDToken    string
	PublicKey  []byte // local static X25519 public key
	PrivateKey []byte // local static X25519 private key
	ServerKey  []byte // remote server's static X25519 public key
}

// Path returns the on-disk location for alias under baseDir
// ("<base>/known_hosts/<alias>").
func Path(baseDir, alias string) string {
	return filepath.Join(baseDir, "known_hosts", alias)
}

// Load reads a host record from path. Recognised keys are Hostname,
// PublicKey, PrivateKey, IdToken, and ServerKey; unknown keys are ignored
// and line order does not matter.
func Load(path string) (*Host, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindIO, "open host record", err)
	}
	defer f.Close()

	h := &Host{Alias: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])

		switch key {
		case "Hostname":
			h.Hostname = value
		case "IdToken":
			h.IDToken = value
		case "PublicKey":
			h.PublicKey, err = base64.StdEncoding.DecodeString(value)
		case "PrivateKey":
			h.PrivateKey, err = base64.StdEncoding.DecodeString(value)
		case "ServerKey":
			h.ServerKey, err = base64.StdEncoding.DecodeString(value)
		default:
			// unrecognised key, ignored per spec
		}
		if err != nil {
			return nil, hermoderr.Wrap(hermoderr.KindEncoding, fmt.Sprintf("decode %s", key), err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindIO, "scan host record", err)
	}
	return h, nil
}

// Save writes h as a total overwrite of path, creating parent directories
// as needed.
func Save(path string, h *Host) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return hermoderr.Wrap(hermoderr.KindIO, "create known_hosts directory", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hostname: %s\n", h.Hostname)
	fmt.Fprintf(&b, "PublicKey: %s\n", base64.StdEncoding.EncodeToString(h.PublicKey))
	fmt.Fprintf(&b, "PrivateKey: %s\n", base64.StdEncoding.EncodeToString(h.PrivateKey))
	fmt.Fprintf(&b, "IdToken: %s\n", h.IDToken)
	fmt.Fprintf(&b, "ServerKey: %s\n", base64.StdEncoding.EncodeToString(h.ServerKey))

	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return hermoderr.Wrap(hermoderr.KindIO, "write host record", err)
	}
	return nil
}
