package storage

import "testing"

func TestIDListHelpers(t *testing.T) {
	ids := AddID(AddID(AddID(nil, "a"), "b"), "a")
	if len(ids) != 2 {
		t.Fatalf("expected dedupe, got %v", ids)
	}
	encoded, err := EncodeIDs(ids)
	if err != nil || encoded != `["a","b"]` {
		t.Fatalf("unexpected encoding %q %v", encoded, err)
	}
	decoded, err := DecodeIDs(encoded)
	if err != nil || len(decoded) != 2 || decoded[1] != "b" {
		t.Fatalf("unexpected decoding %v %v", decoded, err)
	}
	if got := RemoveID(decoded, "a"); len(got) != 1 || got[0] != "b" {
		t.Fatalf("unexpected removal %v", got)
	}
	if empty, _ := EncodeIDs(nil); empty != "[]" {
		t.Fatalf("expected empty array, got %q", empty)
	}
	if _, err := DecodeIDs("not json"); err == nil {
		t.Fatalf("expected decode error")
	}
}
