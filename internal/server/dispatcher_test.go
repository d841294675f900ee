package server

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gosuda/hermod/internal/client"
	"github.com/gosuda/hermod/internal/hostfile"
	"github.com/gosuda/hermod/internal/identity"
	"github.com/gosuda/hermod/internal/noiseproto"
	"github.com/gosuda/hermod/internal/sharekey"
	"github.com/gosuda/hermod/internal/transfer"
)

func TestEnrollThenUploadThenDownload(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()

	serverKey, err := noiseproto.GenerateStaticKeypair()
	if err != nil {
		t.Fatalf("server keypair: %v", err)
	}

	idents := identity.New(filepath.Join(t.TempDir(), "authorized_clients"))
	if err := idents.Load(); err != nil {
		t.Fatalf("load identity store: %v", err)
	}

	d := New(listener, serverKey, idents)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Serve(ctx)

	clientKey, err := noiseproto.GenerateStaticKeypair()
	if err != nil {
		t.Fatalf("client keypair: %v", err)
	}

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial for enrolment: %v", err)
	}
	host, err := sharekey.Enroll(conn, clientKey, "testserver", addr)
	conn.Close()
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "payload.txt")
	content := []byte("the quick brown fox jumps over the lazy dog")
	if err := os.WriteFile(src, content, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	// A file transfer lands at "<destination>/<source basename>" in both
	// directions.
	remoteDir := t.TempDir()
	remoteDst := filepath.Join(remoteDir, "payload.txt")
	if err := client.Upload(host, src, remoteDir, transfer.NoopReporter{}); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	got, err := os.ReadFile(remoteDst)
	if err != nil {
		t.Fatalf("read uploaded file: %v", err)
	}
	if string(got) != string(content) {
		t.Fatalf("uploaded content mismatch")
	}

	localDir := t.TempDir()
	if err := client.Download(host, remoteDst, localDir, transfer.NoopReporter{}); err != nil {
		t.Fatalf("Download: %v", err)
	}
	got, err = os.ReadFile(filepath.Join(localDir, "payload.txt"))
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(got) != string(content) {
		t.Fatalf("downloaded content mismatch")
	}
}

func TestUploadToDirectoryDestinationAppendsSourceBasename(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()

	serverKey, err := noiseproto.GenerateStaticKeypair()
	if err != nil {
		t.Fatalf("server keypair: %v", err)
	}

	idents := identity.New(filepath.Join(t.TempDir(), "authorized_clients"))
	if err := idents.Load(); err != nil {
		t.Fatalf("load identity store: %v", err)
	}

	d := New(listener, serverKey, idents)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Serve(ctx)

	clientKey, err := noiseproto.GenerateStaticKeypair()
	if err != nil {
		t.Fatalf("client keypair: %v", err)
	}

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial for enrolment: %v", err)
	}
	host, err := sharekey.Enroll(conn, clientKey, "testserver", addr)
	conn.Close()
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "payload.txt")
	content := []byte("the quick brown fox jumps over the lazy dog")
	if err := os.WriteFile(src, content, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	// remoteDstDir names a directory, not a file: the client appends the
	// source's basename to the requested destination, so the server writes
	// to remoteDstDir/payload.txt rather than to remoteDstDir itself.
	remoteDstDir := t.TempDir()
	if err := client.Upload(host, src, remoteDstDir, transfer.NoopReporter{}); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(remoteDstDir, "payload.txt"))
	if err != nil {
		t.Fatalf("read %s: %v", filepath.Join(remoteDstDir, "payload.txt"), err)
	}
	if string(got) != string(content) {
		t.Fatalf("uploaded content mismatch")
	}
}

func TestUnknownIdentityIsRejected(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()

	serverKey, err := noiseproto.GenerateStaticKeypair()
	if err != nil {
		t.Fatalf("server keypair: %v", err)
	}
	idents := identity.New(filepath.Join(t.TempDir(), "authorized_clients"))
	if err := idents.Load(); err != nil {
		t.Fatalf("load identity store: %v", err)
	}

	d := New(listener, serverKey, idents)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Serve(ctx)

	clientKey, err := noiseproto.GenerateStaticKeypair()
	if err != nil {
		t.Fatalf("client keypair: %v", err)
	}
	host := &hostfile.Host{
		Alias:      "nope",
		Hostname:   addr,
		IDToken:    "000000000000",
		PublicKey:  clientKey.Public,
		PrivateKey: clientKey.Private,
		ServerKey:  serverKey.Public,
	}

	if err := client.Upload(host, "/nonexistent", "/nonexistent", transfer.NoopReporter{}); err == nil {
		t.Fatal("expected dial/handshake to fail for an unenrolled client")
	}
}
