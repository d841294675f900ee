package keyfile

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/flynn/noise"
)

func bytesOf(fill byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = fill
	}
	return b
}

func TestSavePairLoadPairRoundTrip(t *testing.T) {
	dir := t.TempDir()
	privPath := filepath.Join(dir, "server_key")
	pubPath := filepath.Join(dir, "server_key.pub")

	want := noise.DHKey{
		Private: bytesOf(1, 32),
		Public:  bytesOf(2, 32),
	}

	if err := SavePair(privPath, pubPath, want); err != nil {
		t.Fatalf("SavePair: %v", err)
	}

	got, err := LoadPair(privPath, pubPath)
	if err != nil {
		t.Fatalf("LoadPair: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("LoadPair(SavePair(key)) = %+v, want %+v", got, want)
	}
}

func TestLoadPairMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadPair(filepath.Join(dir, "server_key"), filepath.Join(dir, "server_key.pub"))
	if err == nil {
		t.Fatal("expected an error loading a nonexistent key pair")
	}
}
