// Package referral implements referral attribution: extracting referral
// addresses embedded in deposit calldata and propagating sticky referrals
// forward through a depositor's history.
package referral

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Deposit calldata carries the method selector plus six ABI-encoded words;
// anything past that is referral payload appended by integrators.
const (
	selectorHexLen = 8
	argWords       = 6
	wordHexLen     = 64
	addressHexLen  = 40

	// Marker integrators insert before the referral address.
	delimiter = "d00dfeeddeadbeef"
)

// stripCalldata removes the 0x prefix, the selector and the known argument
// words, returning the trailing payload in lowercase. Returns false when the
// calldata is shorter than a plain, unadorned call.
func stripCalldata(calldata string) (string, bool) {
	data := strings.ToLower(strings.TrimPrefix(calldata, "0x"))
	base := selectorHexLen + argWords*wordHexLen
	if len(data) < base {
		return "", false
	}
	return data[base:], true
}

// ExtractDelimited returns the referral address when the payload contains the
// delimiter marker followed by exactly one address. A marker with a truncated
// or over-long tail yields nothing.
func ExtractDelimited(calldata string) (string, bool) {
	payload, ok := stripCalldata(calldata)
	if !ok {
		return "", false
	}
	idx := strings.LastIndex(payload, delimiter)
	if idx < 0 {
		return "", false
	}
	tail := payload[idx+len(delimiter):]
	if len(tail) != addressHexLen || !common.IsHexAddress("0x"+tail) {
		return "", false
	}
	return common.HexToAddress("0x" + tail).Hex(), true
}

// ExtractSuffix treats the trailing 40 payload characters as a candidate
// address. Used as a fallback for integrators that append the address with
// no marker.
func ExtractSuffix(calldata string) (string, bool) {
	payload, ok := stripCalldata(calldata)
	if !ok || len(payload) < addressHexLen {
		return "", false
	}
	tail := payload[len(payload)-addressHexLen:]
	if !common.IsHexAddress("0x" + tail) {
		return "", false
	}
	return common.HexToAddress("0x" + tail).Hex(), true
}

// Extract applies the delimiter strategy, falling back to the suffix
// strategy. Returned addresses are EIP-55 checksummed.
func Extract(calldata string) (string, bool) {
	if addr, ok := ExtractDelimited(calldata); ok {
		return addr, true
	}
	return ExtractSuffix(calldata)
}
