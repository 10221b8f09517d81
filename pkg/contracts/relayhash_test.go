package contracts

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func relayDataFixture() V3RelayData {
	return V3RelayData{
		Depositor:           common.HexToAddress("0x9A8f92a830A5cB89a3816e3D267CB7791c16b04D"),
		Recipient:           common.HexToAddress("0x9A8f92a830A5cB89a3816e3D267CB7791c16b04D"),
		InputToken:          common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		OutputToken:         common.HexToAddress("0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85"),
		InputAmount:         big.NewInt(1_000_000),
		OutputAmount:        big.NewInt(999_000),
		OriginChainID:       big.NewInt(1),
		DepositID:           42,
		FillDeadline:        1_700_000_000,
		ExclusivityDeadline: 0,
		Message:             nil,
	}
}

func TestV3RelayHashIsDeterministic(t *testing.T) {
	first, err := V3RelayHash(relayDataFixture(), 10)
	if err != nil {
		t.Fatalf("relay hash: %v", err)
	}
	second, err := V3RelayHash(relayDataFixture(), 10)
	if err != nil {
		t.Fatalf("relay hash: %v", err)
	}
	if first != second {
		t.Fatalf("hash not deterministic: %s != %s", first, second)
	}
	if first == (common.Hash{}) {
		t.Fatalf("hash is zero")
	}
}

func TestV3RelayHashSensitivity(t *testing.T) {
	base, err := V3RelayHash(relayDataFixture(), 10)
	if err != nil {
		t.Fatalf("relay hash: %v", err)
	}

	changed := relayDataFixture()
	changed.DepositID = 43
	withID, err := V3RelayHash(changed, 10)
	if err != nil {
		t.Fatalf("relay hash: %v", err)
	}
	if withID == base {
		t.Fatalf("hash ignores deposit id")
	}

	withMsg := relayDataFixture()
	withMsg.Message = []byte{0x01}
	msgHash, err := V3RelayHash(withMsg, 10)
	if err != nil {
		t.Fatalf("relay hash: %v", err)
	}
	if msgHash == base {
		t.Fatalf("hash ignores message")
	}

	otherDest, err := V3RelayHash(relayDataFixture(), 137)
	if err != nil {
		t.Fatalf("relay hash: %v", err)
	}
	if otherDest == base {
		t.Fatalf("hash ignores destination chain id")
	}
}
