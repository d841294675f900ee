package noiseproto

import (
	"bytes"
	"net"
	"sync"
	"testing"

	"github.com/gosuda/hermod/internal/wire"
)

func pipeConn(t *testing.T) (clientConn, serverConn net.Conn) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	connCh := make(chan net.Conn, 1)
	go func() {
		c, err := listener.Accept()
		if err != nil {
			return
		}
		connCh <- c
	}()

	clientConn, err = net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	serverConn = <-connCh
	return clientConn, serverConn
}

func TestKKHandshakeAndTransport(t *testing.T) {
	clientKey, err := GenerateStaticKeypair()
	if err != nil {
		t.Fatalf("client keypair: %v", err)
	}
	serverKey, err := GenerateStaticKeypair()
	if err != nil {
		t.Fatalf("server keypair: %v", err)
	}

	clientConn, serverConn := pipeConn(t)
	defer clientConn.Close()
	defer serverConn.Close()

	const idToken = "abcdefghijkl"

	var (
		clientSess, serverSess *Session
		clientErr, serverErr   error
		wg                     sync.WaitGroup
	)
	wg.Add(2)

	go func() {
		defer wg.Done()
		clientSess, clientErr = DialKK(clientConn, clientKey, serverKey.Public, idToken)
	}()

	go func() {
		defer wg.Done()
		tag, err := wire.ReadTag(serverConn)
		if err != nil {
			serverErr = err
			return
		}
		if tag != wire.Init {
			t.Errorf("tag = %v, want Init", tag)
			return
		}
		body, err := wire.ReadBody(serverConn)
		if err != nil {
			serverErr = err
			return
		}
		token := string(body[:IDTokenLen])
		hsMsg1 := body[IDTokenLen:]
		if token != idToken {
			t.Errorf("token = %q, want %q", token, idToken)
		}
		serverSess, serverErr = AcceptKK(serverConn, serverKey, clientKey.Public, token, hsMsg1)
	}()

	wg.Wait()
	if clientErr != nil {
		t.Fatalf("DialKK: %v", clientErr)
	}
	if serverErr != nil {
		t.Fatalf("AcceptKK: %v", serverErr)
	}

	payload := []byte("hello over KK transport")
	if err := clientSess.Send(Message{Type: wire.Payload, Payload: payload}); err != nil {
		t.Fatalf("client Send: %v", err)
	}
	got, err := serverSess.Recv()
	if err != nil {
		t.Fatalf("server Recv: %v", err)
	}
	if got.Type != wire.Payload || !bytes.Equal(got.Payload, payload) {
		t.Fatalf("server got %+v, want Payload %q", got, payload)
	}

	if err := serverSess.SendClose(); err != nil {
		t.Fatalf("SendClose: %v", err)
	}
	closeMsg, err := clientSess.Recv()
	if err != nil {
		t.Fatalf("client Recv after close: %v", err)
	}
	if closeMsg.Type != wire.Close {
		t.Fatalf("closeMsg.Type = %v, want Close", closeMsg.Type)
	}
}

func TestKKHandshakeFailsOnWrongRemoteStatic(t *testing.T) {
	clientKey, _ := GenerateStaticKeypair()
	serverKey, _ := GenerateStaticKeypair()
	wrongKey, _ := GenerateStaticKeypair()

	clientConn, serverConn := pipeConn(t)
	defer clientConn.Close()
	defer serverConn.Close()

	const idToken = "abcdefghijkl"

	var wg sync.WaitGroup
	wg.Add(2)
	var clientErr, serverErr error

	go func() {
		defer wg.Done()
		_, clientErr = DialKK(clientConn, clientKey, serverKey.Public, idToken)
	}()
	go func() {
		defer wg.Done()
		_, err := wire.ReadTag(serverConn)
		if err != nil {
			serverErr = err
			return
		}
		body, err := wire.ReadBody(serverConn)
		if err != nil {
			serverErr = err
			return
		}
		// Use the wrong client static key: the handshake must fail.
		_, serverErr = AcceptKK(serverConn, serverKey, wrongKey.Public, idToken, body[IDTokenLen:])
		if serverErr != nil {
			// Drop the connection as the dispatcher does, so the client's
			// pending read of the Response ends instead of blocking.
			serverConn.Close()
		}
	}()
	wg.Wait()

	if clientErr == nil && serverErr == nil {
		t.Fatal("expected handshake failure with mismatched static key")
	}
}

func TestShareKeyHandshake(t *testing.T) {
	clientKey, _ := GenerateStaticKeypair()
	serverKey, _ := GenerateStaticKeypair()

	clientConn, serverConn := pipeConn(t)
	defer clientConn.Close()
	defer serverConn.Close()

	const idToken = "zyxwvutsrqpo"

	var wg sync.WaitGroup
	wg.Add(2)
	var clientErr, serverErr error
	var serverStatic []byte
	var result *ShareKeyServerResult

	go func() {
		defer wg.Done()
		serverStatic, clientErr = ShareKeyClient(clientConn, clientKey, idToken)
	}()
	go func() {
		defer wg.Done()
		tag, err := wire.ReadTag(serverConn)
		if err != nil {
			serverErr = err
			return
		}
		if tag != wire.ShareKeyInit {
			t.Errorf("tag = %v, want ShareKeyInit", tag)
			return
		}
		msg1, err := wire.ReadBody(serverConn)
		if err != nil {
			serverErr = err
			return
		}
		result, serverErr = ShareKeyServer(serverConn, serverKey, msg1)
		if serverErr == nil {
			serverErr = SendOkay(serverConn)
		}
	}()
	wg.Wait()

	if clientErr != nil {
		t.Fatalf("ShareKeyClient: %v", clientErr)
	}
	if serverErr != nil {
		t.Fatalf("ShareKeyServer: %v", serverErr)
	}
	if !bytes.Equal(serverStatic, serverKey.Public) {
		t.Fatalf("client learned wrong server static key")
	}
	if result.IDToken != idToken {
		t.Fatalf("server learned id token %q, want %q", result.IDToken, idToken)
	}
	if !bytes.Equal(result.ClientStatic, clientKey.Public) {
		t.Fatalf("server learned wrong client static key")
	}
}
