package referral

import (
	"strings"
	"testing"
)

const (
	refAddrLower   = "9a8f92a830a5cb89a3816e3d267cb7791c16b04d"
	refAddrChecked = "0x9A8f92a830A5cB89a3816e3D267CB7791c16b04D"
)

// baseCalldata is a selector plus six zeroed argument words, the shape of an
// unadorned deposit call.
func baseCalldata() string {
	return "0x1186ec33" + strings.Repeat("0", argWords*wordHexLen)
}

func TestExtractDelimited(t *testing.T) {
	calldata := baseCalldata() + delimiter + refAddrLower

	addr, ok := ExtractDelimited(calldata)
	if !ok {
		t.Fatal("expected delimiter extraction to succeed")
	}
	if addr != refAddrChecked {
		t.Fatalf("expected %s, got %s", refAddrChecked, addr)
	}
}

func TestExtractDelimited_UppercaseCalldata(t *testing.T) {
	calldata := strings.ToUpper(baseCalldata()+delimiter+refAddrLower)
	calldata = "0x" + strings.TrimPrefix(calldata, "0X")

	addr, ok := ExtractDelimited(calldata)
	if !ok {
		t.Fatal("expected extraction to be case-insensitive")
	}
	if addr != refAddrChecked {
		t.Fatalf("expected %s, got %s", refAddrChecked, addr)
	}
}

func TestExtractDelimited_NoMarker(t *testing.T) {
	if _, ok := ExtractDelimited(baseCalldata() + refAddrLower); ok {
		t.Fatal("expected no extraction without the marker")
	}
}

func TestExtractDelimited_TruncatedTail(t *testing.T) {
	calldata := baseCalldata() + delimiter + refAddrLower[:20]
	if _, ok := ExtractDelimited(calldata); ok {
		t.Fatal("expected no extraction for truncated address")
	}
}

func TestExtractDelimited_OverlongTail(t *testing.T) {
	calldata := baseCalldata() + delimiter + refAddrLower + "ff"
	if _, ok := ExtractDelimited(calldata); ok {
		t.Fatal("expected no extraction when extra bytes follow the address")
	}
}

func TestExtractDelimited_UsesLastMarker(t *testing.T) {
	other := "1111111111111111111111111111111111111111"
	calldata := baseCalldata() + delimiter + other + delimiter + refAddrLower

	addr, ok := ExtractDelimited(calldata)
	if !ok {
		t.Fatal("expected extraction from the last marker")
	}
	if addr != refAddrChecked {
		t.Fatalf("expected %s, got %s", refAddrChecked, addr)
	}
}

func TestExtractSuffix(t *testing.T) {
	calldata := baseCalldata() + refAddrLower

	addr, ok := ExtractSuffix(calldata)
	if !ok {
		t.Fatal("expected suffix extraction to succeed")
	}
	if addr != refAddrChecked {
		t.Fatalf("expected %s, got %s", refAddrChecked, addr)
	}
}

func TestExtractSuffix_PayloadTooShort(t *testing.T) {
	calldata := baseCalldata() + "abcdef"
	if _, ok := ExtractSuffix(calldata); ok {
		t.Fatal("expected no extraction for short payload")
	}
}

func TestExtractSuffix_NonHexTail(t *testing.T) {
	calldata := baseCalldata() + strings.Repeat("zz", 20)
	if _, ok := ExtractSuffix(calldata); ok {
		t.Fatal("expected no extraction for non-hex tail")
	}
}

func TestExtract_PrefersDelimiter(t *testing.T) {
	suffix := "2222222222222222222222222222222222222222"
	calldata := baseCalldata() + delimiter + refAddrLower + "00" + suffix

	// Delimiter tail is not exactly an address here, so the suffix wins.
	addr, ok := Extract(calldata)
	if !ok {
		t.Fatal("expected fallback extraction")
	}
	if addr != "0x2222222222222222222222222222222222222222" {
		t.Fatalf("expected suffix address, got %s", addr)
	}

	// With a clean delimiter payload the marker strategy wins.
	calldata = baseCalldata() + delimiter + refAddrLower
	addr, ok = Extract(calldata)
	if !ok || addr != refAddrChecked {
		t.Fatalf("expected delimiter address, got %s (ok=%v)", addr, ok)
	}
}

func TestExtract_CalldataShorterThanBaseCall(t *testing.T) {
	if _, ok := Extract("0x1186ec33"); ok {
		t.Fatal("expected no extraction for bare selector")
	}
}
