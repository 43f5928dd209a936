package region

import (
	"testing"

	"github.com/smallbiznis/meridian/internal/config"
)

func newMultiRegionCodec(local string) *Codec {
	return NewCodec(config.Config{Region: local, MultiRegion: true})
}

func TestExtractRoundTrip(t *testing.T) {
	token := "dGhpcy1pcy1hLXRva2Vu"
	for _, tag := range []string{"eu", "us-east-1", "ap_south", "Region 2", "[eu]", "[us-west 1]"} {
		prefixed := tag + ":" + token
		got, ok := Extract(prefixed)
		if !ok {
			t.Fatalf("expected tag in %q", prefixed)
		}
		if got != tag {
			t.Fatalf("expected tag %q, got %q", tag, got)
		}
		if rest := Strip(prefixed); rest != token {
			t.Fatalf("expected suffix %q, got %q", token, rest)
		}
	}
}

func TestExtractNoPrefix(t *testing.T) {
	for _, value := range []string{"", "plaintoken", ":leading-colon", "[]:empty-tag", "has/slash:x"} {
		if tag, ok := Extract(value); ok {
			t.Fatalf("expected no tag in %q, got %q", value, tag)
		}
	}
}

func TestExtractKeepsBrackets(t *testing.T) {
	tag, ok := Extract("[eu]:token")
	if !ok || tag != "[eu]" {
		t.Fatalf("expected [eu], got %q ok=%v", tag, ok)
	}
}

func TestApplyMultiRegion(t *testing.T) {
	codec := newMultiRegionCodec("EU")
	if got := codec.Apply("token"); got != "eu:token" {
		t.Fatalf("expected eu:token, got %q", got)
	}
}

func TestApplySingleRegionAddsNothing(t *testing.T) {
	codec := NewCodec(config.Config{Region: "eu", MultiRegion: false})
	if got := codec.Apply("token"); got != "token" {
		t.Fatalf("expected bare token, got %q", got)
	}
	if got := codec.ApplyTag("us", "token"); got != "token" {
		t.Fatalf("expected bare token, got %q", got)
	}
}

func TestApplyTagInheritsRegion(t *testing.T) {
	codec := newMultiRegionCodec("us")
	if got := codec.ApplyTag("eu", "token"); got != "eu:token" {
		t.Fatalf("expected eu:token, got %q", got)
	}
	if got := codec.ApplyTag("", "token"); got != "us:token" {
		t.Fatalf("expected local fallback us:token, got %q", got)
	}
}

func TestIsLocal(t *testing.T) {
	codec := newMultiRegionCodec("eu")
	cases := map[string]bool{
		"":     true,
		"eu":   true,
		"EU":   true,
		"[eu]": true,
		"us":   false,
	}
	for tag, want := range cases {
		if got := codec.IsLocal(tag); got != want {
			t.Fatalf("IsLocal(%q) = %v, want %v", tag, got, want)
		}
	}
}
