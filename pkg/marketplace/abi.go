package marketplace

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sigweihq/beatmarket/pkg/types"
)

// BeatNFT contract ABI (subset used by the marketplace)
const beatNFTABI = `[
	{
		"inputs": [
			{"name": "metadataURI", "type": "string"},
			{"name": "price", "type": "uint256"},
			{"name": "audioHash", "type": "string"}
		],
		"name": "mintBeat",
		"outputs": [{"name": "tokenId", "type": "uint256"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "tokenId", "type": "uint256"}],
		"name": "purchaseBeat",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "tokenId", "type": "uint256"},
			{"name": "price", "type": "uint256"}
		],
		"name": "listBeat",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "tokenId", "type": "uint256"}],
		"name": "getBeat",
		"outputs": [
			{"name": "creator", "type": "address"},
			{"name": "owner", "type": "address"},
			{"name": "price", "type": "uint256"},
			{"name": "metadataURI", "type": "string"},
			{"name": "audioHash", "type": "string"},
			{"name": "isListed", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "tokenId", "type": "uint256"},
			{"indexed": true, "name": "creator", "type": "address"},
			{"indexed": false, "name": "price", "type": "uint256"}
		],
		"name": "BeatMinted",
		"type": "event"
	}
]`

var parsedABI = mustParseABI()

func mustParseABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(beatNFTABI))
	if err != nil {
		panic(fmt.Sprintf("invalid BeatNFT ABI: %v", err))
	}
	return parsed
}

type beatView struct {
	Creator     common.Address
	Owner       common.Address
	Price       *big.Int
	MetadataURI string
	AudioHash   string
	IsListed    bool
}

func decodeBeat(tokenID *big.Int, data []byte) (*types.BeatOnChainView, error) {
	var out beatView
	if err := parsedABI.UnpackIntoInterface(&out, "getBeat", data); err != nil {
		return nil, fmt.Errorf("failed to decode getBeat result: %w", err)
	}
	return &types.BeatOnChainView{
		TokenID:     new(big.Int).Set(tokenID),
		Creator:     out.Creator.Hex(),
		Owner:       out.Owner.Hex(),
		Price:       out.Price,
		MetadataURI: out.MetadataURI,
		AudioHash:   out.AudioHash,
		IsListed:    out.IsListed,
	}, nil
}

// mintedTokenID finds the BeatMinted event emitted by contract in receipt
func mintedTokenID(receipt *ethtypes.Receipt, contract common.Address) *big.Int {
	topic := parsedABI.Events["BeatMinted"].ID
	for _, log := range receipt.Logs {
		if log.Address != contract || len(log.Topics) < 2 || log.Topics[0] != topic {
			continue
		}
		return new(big.Int).SetBytes(log.Topics[1].Bytes())
	}
	return nil
}
