package wire

import (
	"bytes"
	"testing"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	body := []byte("ciphertext-and-tag-would-go-here")
	if err := WriteFrame(&buf, Payload, body); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	tag, err := ReadTag(&buf)
	if err != nil {
		t.Fatalf("ReadTag: %v", err)
	}
	if tag != Payload {
		t.Fatalf("tag = %v, want Payload", tag)
	}

	got, err := ReadBody(&buf)
	if err != nil {
		t.Fatalf("ReadBody: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("body = %q, want %q", got, body)
	}
}

func TestWriteFrameRejectsOversizedBody(t *testing.T) {
	var buf bytes.Buffer
	body := make([]byte, PacketMaxLength)
	if err := WriteFrame(&buf, Payload, body); err == nil {
		t.Fatal("expected error for oversized frame body")
	}
}

func TestCloseAndRekeyAreLoneBytes(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTag(&buf, Close); err != nil {
		t.Fatalf("WriteTag(Close): %v", err)
	}
	if buf.Len() != 1 {
		t.Fatalf("Close frame length = %d, want 1", buf.Len())
	}

	tag, err := ReadTag(&buf)
	if err != nil {
		t.Fatalf("ReadTag: %v", err)
	}
	if tag != Close {
		t.Fatalf("tag = %v, want Close", tag)
	}
	if HasBody(tag) {
		t.Fatal("HasBody(Close) = true, want false")
	}

	if err := WriteTag(&buf, Rekey); err != nil {
		t.Fatalf("WriteTag(Rekey): %v", err)
	}
	if buf.Len() != 1 {
		t.Fatalf("Rekey frame length = %d, want 1", buf.Len())
	}

	tag, err = ReadTag(&buf)
	if err != nil {
		t.Fatalf("ReadTag: %v", err)
	}
	if tag != Rekey {
		t.Fatalf("tag = %v, want Rekey", tag)
	}
	if HasBody(tag) {
		t.Fatal("HasBody(Rekey) = true, want false")
	}
}

func TestMessageTypeString(t *testing.T) {
	cases := map[MessageType]string{
		Init:    "Init",
		Payload: "Payload",
		Rekey:   "Rekey",
		127:     "Unknown",
	}
	for tag, want := range cases {
		if got := tag.String(); got != want {
			t.Errorf("MessageType(%d).String() = %q, want %q", tag, got, want)
		}
	}
}
