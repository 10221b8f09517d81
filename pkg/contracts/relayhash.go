package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// V3RelayData carries the fields that uniquely identify a V3 relay on the
// destination spoke pool. Hashing it with the destination chain id yields the
// key for the on-chain fill status mapping.
type V3RelayData struct {
	Depositor           common.Address
	Recipient           common.Address
	ExclusiveRelayer    common.Address
	InputToken          common.Address
	OutputToken         common.Address
	InputAmount         *big.Int
	OutputAmount        *big.Int
	OriginChainID       *big.Int
	DepositID           uint32
	FillDeadline        uint32
	ExclusivityDeadline uint32
	Message             []byte
}

var relayHashArguments = mustRelayHashArguments()

func mustRelayHashArguments() abi.Arguments {
	relayDataType, err := abi.NewType("tuple", "", []abi.ArgumentMarshaling{
		{Name: "depositor", Type: "address"},
		{Name: "recipient", Type: "address"},
		{Name: "exclusiveRelayer", Type: "address"},
		{Name: "inputToken", Type: "address"},
		{Name: "outputToken", Type: "address"},
		{Name: "inputAmount", Type: "uint256"},
		{Name: "outputAmount", Type: "uint256"},
		{Name: "originChainId", Type: "uint256"},
		{Name: "depositId", Type: "uint32"},
		{Name: "fillDeadline", Type: "uint32"},
		{Name: "exclusivityDeadline", Type: "uint32"},
		{Name: "message", Type: "bytes"},
	})
	if err != nil {
		panic(err)
	}
	uint256Type, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{
		{Name: "relayData", Type: relayDataType},
		{Name: "destinationChainId", Type: uint256Type},
	}
}

// V3RelayHash computes the relay hash the destination spoke pool uses as the
// fill status key.
func V3RelayHash(data V3RelayData, destinationChainID uint64) (common.Hash, error) {
	packed, err := relayHashArguments.Pack(
		struct {
			Depositor           common.Address
			Recipient           common.Address
			ExclusiveRelayer    common.Address
			InputToken          common.Address
			OutputToken         common.Address
			InputAmount         *big.Int
			OutputAmount        *big.Int
			OriginChainId       *big.Int
			DepositId           uint32
			FillDeadline        uint32
			ExclusivityDeadline uint32
			Message             []byte
		}{
			Depositor:           data.Depositor,
			Recipient:           data.Recipient,
			ExclusiveRelayer:    data.ExclusiveRelayer,
			InputToken:          data.InputToken,
			OutputToken:         data.OutputToken,
			InputAmount:         data.InputAmount,
			OutputAmount:        data.OutputAmount,
			OriginChainId:       data.OriginChainID,
			DepositId:           data.DepositID,
			FillDeadline:        data.FillDeadline,
			ExclusivityDeadline: data.ExclusivityDeadline,
			Message:             data.Message,
		},
		new(big.Int).SetUint64(destinationChainID),
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode relay data: %w", err)
	}
	return crypto.Keccak256Hash(packed), nil
}
