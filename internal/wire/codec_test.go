package wire

import (
	"bytes"
	"testing"

	"github.com/swimd/swimd/internal/addr"
)

func mustEndpoint(t *testing.T, hostport string) addr.Endpoint {
	t.Helper()
	e, err := addr.Parse(hostport)
	if err != nil {
		t.Fatalf("addr.Parse(%q): %v", hostport, err)
	}
	return e
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	v4 := mustEndpoint(t, "127.0.0.1:9000")
	v6 := mustEndpoint(t, "[::1]:9001")

	msgs := []Message{
		{Kind: KindPing, ID: 1, From: v4},
		{Kind: KindAck, ID: 2, From: v4},
		{Kind: KindPingReq, ID: 3, From: v4, Target: v6},
		{Kind: KindPing, ID: 0xFFFFFFFFFFFFFFFF, From: v6},
	}

	for _, m := range msgs {
		encoded, err := Encode(m)
		if err != nil {
			t.Fatalf("Encode(%+v): %v", m, err)
		}
		decoded, err := Decode(encoded)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if decoded != m {
			t.Errorf("round trip mismatch: got %+v, want %+v", decoded, m)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := [][]byte{
		nil,
		{},
		{byte(KindPing)},
		{0xFF, 0, 0, 0, 0, 0, 0, 0, 1, byte(addr.FamilyV4), 1, 2, 3, 4, 0, 80},
		append([]byte{byte(KindPing), 0, 0, 0, 0, 0, 0, 0, 1}, byte(addr.FamilyV4), 1, 2, 3),
		append([]byte{byte(KindPing), 0, 0, 0, 0, 0, 0, 0, 1}, byte(7), 1, 2, 3, 4, 0, 80),
	}
	for i, buf := range cases {
		if _, err := Decode(buf); err != ErrMalformed {
			t.Errorf("case %d: Decode = %v, want ErrMalformed", i, err)
		}
	}
}

func TestEncodeSizeIsCompact(t *testing.T) {
	v4 := mustEndpoint(t, "127.0.0.1:9000")
	buf, err := Encode(Message{Kind: KindPing, ID: 1, From: v4})
	if err != nil {
		t.Fatal(err)
	}
	// tag(1) + id(8) + family(1) + ipv4(4) + port(2) = 16
	if len(buf) != 16 {
		t.Errorf("len(buf) = %d, want 16", len(buf))
	}
	if bytes.IndexByte(buf, byte(KindPing)) != 0 {
		t.Errorf("kind tag not at offset 0")
	}
}
