// Package keyfile persists a server's own static Noise keypair to disk as
// two separate base64-encoded files, matching the on-disk layout's
// "server_key" / "server_key.pub" split.
package keyfile

import (
	"encoding/base64"
	"os"
	"strings"

	"github.com/flynn/noise"

	"github.com/gosuda/hermod/internal/hermoderr"
)

// SavePair writes key as two separate base64-encoded files, privatePath and
// publicPath: the public half can be read (and shared) without ever opening
// the file holding the private half.
func SavePair(privatePath, publicPath string, key noise.DHKey) error {
	priv := []byte(base64.StdEncoding.EncodeToString(key.Private) + "\n")
	if err := os.WriteFile(privatePath, priv, 0o600); err != nil {
		return hermoderr.Wrap(hermoderr.KindIO, "write private key file", err)
	}
	pub := []byte(base64.StdEncoding.EncodeToString(key.Public) + "\n")
	if err := os.WriteFile(publicPath, pub, 0o644); err != nil {
		return hermoderr.Wrap(hermoderr.KindIO, "write public key file", err)
	}
	return nil
}

// LoadPair reads a keypair previously written by SavePair.
func LoadPair(privatePath, publicPath string) (noise.DHKey, error) {
	priv, err := readB64File(privatePath)
	if err != nil {
		return noise.DHKey{}, err
	}
	pub, err := readB64File(publicPath)
	if err != nil {
		return noise.DHKey{}, err
	}
	return noise.DHKey{Private: priv, Public: pub}, nil
}

func readB64File(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindIO, "open key file", err)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindEncoding, "decode key file", err)
	}
	return decoded, nil
}
