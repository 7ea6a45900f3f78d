package message

import (
	"bytes"
	"testing"

	"wirecall/wire"
)

func TestCallRoundTrip(t *testing.T) {
	argc := wire.NewCursor(nil)
	if err := wire.EncodeTagged(argc, wire.Uint32, uint32(3)); err != nil {
		t.Fatal(err)
	}
	if err := wire.EncodeTagged(argc, wire.Uint32, uint32(4)); err != nil {
		t.Fatal(err)
	}

	call := &Call{
		Target:    "/service/arith",
		Interface: "Arith",
		Method:    "Add",
		Args:      argc.Bytes(),
	}

	body, err := EncodeCall(call)
	if err != nil {
		t.Fatal(err)
	}

	got, err := DecodeCall(body)
	if err != nil {
		t.Fatal(err)
	}
	if got.Target != call.Target || got.Interface != call.Interface || got.Method != call.Method {
		t.Fatalf("routing fields mismatch: %+v", got)
	}
	if !bytes.Equal(got.Args, call.Args) {
		t.Fatalf("argument stream mismatch: %x vs %x", got.Args, call.Args)
	}
	if got.ServiceMethod() != "Arith.Add" {
		t.Fatalf("expect Arith.Add, got %s", got.ServiceMethod())
	}
}

func TestCallEmptyArgs(t *testing.T) {
	body, err := EncodeCall(&Call{Target: "/x", Interface: "I", Method: "M"})
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeCall(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Args) != 0 {
		t.Fatalf("expect no args, got %d bytes", len(got.Args))
	}
}

func TestArgsDetachedFromFrame(t *testing.T) {
	body, err := EncodeCall(&Call{Target: "/x", Interface: "I", Method: "M", Args: []byte{1, 2, 3}})
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeCall(body)
	if err != nil {
		t.Fatal(err)
	}

	// Clobber the frame buffer; the call must not see it.
	for i := range body {
		body[i] = 0xFF
	}
	if !bytes.Equal(got.Args, []byte{1, 2, 3}) {
		t.Fatalf("args share storage with the frame buffer: %x", got.Args)
	}
}

func TestDecodeMalformedCall(t *testing.T) {
	if _, err := DecodeCall([]byte{0x00, 0x00}); err == nil {
		t.Fatal("expect error for truncated call body")
	}
}

func TestErrorRoundTrip(t *testing.T) {
	body, err := EncodeError("object \"/x\" has no method \"I.M\"")
	if err != nil {
		t.Fatal(err)
	}
	text, err := DecodeError(body)
	if err != nil {
		t.Fatal(err)
	}
	if text != "object \"/x\" has no method \"I.M\"" {
		t.Fatalf("error text mismatch: %q", text)
	}
}

func TestDecodeMalformedError(t *testing.T) {
	if _, err := DecodeError([]byte{0xFF}); err == nil {
		t.Fatal("expect error for truncated error body")
	}
}
