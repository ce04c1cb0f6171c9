package version

import (
	"bytes"
	"testing"
)

func TestEncodeMatchesRoundTrip(t *testing.T) {
	raws := [][]byte{
		{0, 0, 0, 0, 0, 0, 0, 1},
		{0xde, 0xad, 0xbe, 0xef},
		{},
		FromSequence(42),
	}
	for _, raw := range raws {
		tag := Encode(raw)
		if !Matches(tag, raw) {
			t.Errorf("Matches(Encode(%v)) = false, want true", raw)
		}
	}
}

func TestEmptyRawVersionRoundTrip(t *testing.T) {
	for _, raw := range [][]byte{nil, {}} {
		tag := Encode(raw)
		if tag != "" {
			t.Errorf("Encode(%v) = %q, want empty", raw, tag)
		}
		if !Matches(tag, raw) {
			t.Errorf("Matches(Encode(%v)) = false, want true", raw)
		}
	}
}

func TestMatchesRejectsOtherVersions(t *testing.T) {
	v1 := FromSequence(1)
	v2 := FromSequence(2)
	if Matches(Encode(v1), v2) {
		t.Errorf("tag for version 1 matched version 2")
	}
	if Matches(Encode(v2), v1) {
		t.Errorf("tag for version 2 matched version 1")
	}
}

func TestMatchesMalformedTag(t *testing.T) {
	raw := FromSequence(7)
	for _, tag := range []string{"", "not base64 !!", "AAA", `"`} {
		if Matches(tag, raw) {
			t.Errorf("malformed tag %q matched", tag)
		}
	}
}

func TestMatchesQuotedTag(t *testing.T) {
	raw := FromSequence(9)
	if !Matches(`"`+Encode(raw)+`"`, raw) {
		t.Errorf("quoted tag did not match")
	}
}

func TestFromSequenceDistinct(t *testing.T) {
	if bytes.Equal(FromSequence(1), FromSequence(2)) {
		t.Fatal("distinct versions produced equal raw bytes")
	}
}
