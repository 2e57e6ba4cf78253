// Package chain provides the typed binding to the GhostAgent contract:
// read calls, write-call construction and event log access.
package chain

import (
	"context"
	"math/big"
	"sort"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Minimal ABI covering only the functions and the event the oracle needs.
const ghostAgentABI = `[
	{"anonymous":false,"inputs":[{"indexed":true,"internalType":"bytes32","name":"intentHash","type":"bytes32"},{"indexed":true,"internalType":"address","name":"declarer","type":"address"}],"name":"IntentDeclared","type":"event"},
	{"inputs":[{"internalType":"bytes32","name":"_intentHash","type":"bytes32"},{"internalType":"bytes","name":"_signature","type":"bytes"}],"name":"verifyIntent","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"bytes32","name":"_intentHash","type":"bytes32"}],"name":"seizeAssets","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"bytes32","name":"","type":"bytes32"}],"name":"intents","outputs":[{"internalType":"address","name":"declarer","type":"address"},{"internalType":"bytes32","name":"intentHash","type":"bytes32"},{"internalType":"uint8","name":"status","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"CONTRACT_SALT","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"}
]`

var contractABI = mustParseABI(ghostAgentABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("invalid GhostAgent ABI: " + err.Error())
	}
	return parsed
}

// IntentStatus mirrors the contract's intent status enum.
type IntentStatus uint8

const (
	IntentStatusDeclared IntentStatus = iota
	IntentStatusVerified
	IntentStatusSeized
)

func (s IntentStatus) String() string {
	switch s {
	case IntentStatusDeclared:
		return "declared"
	case IntentStatusVerified:
		return "verified"
	case IntentStatusSeized:
		return "seized"
	default:
		return "unknown"
	}
}

// Intent is the on-chain intent record returned by the intents view.
type Intent struct {
	Declarer   common.Address
	IntentHash common.Hash
	Status     IntentStatus
}

// IntentDeclaredEvent is a decoded IntentDeclared log.
type IntentDeclaredEvent struct {
	IntentHash  common.Hash
	Declarer    common.Address
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
}

// ContractGateway is the typed binding to the deployed GhostAgent contract.
type ContractGateway struct {
	backend Backend
	address common.Address
}

// NewContractGateway creates a gateway bound to the contract at the given address.
func NewContractGateway(backend Backend, address common.Address) *ContractGateway {
	return &ContractGateway{
		backend: backend,
		address: address,
	}
}

// Address returns the bound contract address.
func (g *ContractGateway) Address() common.Address {
	return g.address
}

// LatestBlock returns the current chain head block number.
func (g *ContractGateway) LatestBlock(ctx context.Context) (uint64, error) {
	number, err := g.backend.BlockNumber(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "reading latest block number")
	}
	return number, nil
}

// FilterIntentDeclared returns all IntentDeclared events emitted by the
// contract in the inclusive block range, in ascending event order.
func (g *ContractGateway) FilterIntentDeclared(ctx context.Context, fromBlock, toBlock uint64) ([]IntentDeclaredEvent, error) {
	eventID := contractABI.Events["IntentDeclared"].ID
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{g.address},
		Topics:    [][]common.Hash{{eventID}},
	}

	logs, err := g.backend.FilterLogs(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "filtering IntentDeclared logs")
	}

	events := make([]IntentDeclaredEvent, 0, len(logs))
	for _, log := range logs {
		// Both event arguments are indexed, so the payload lives entirely
		// in the topics.
		if len(log.Topics) != 3 {
			return nil, errors.Errorf("malformed IntentDeclared log in tx %s: %d topics", log.TxHash, len(log.Topics))
		}
		events = append(events, IntentDeclaredEvent{
			IntentHash:  log.Topics[1],
			Declarer:    common.BytesToAddress(log.Topics[2].Bytes()),
			BlockNumber: log.BlockNumber,
			TxHash:      log.TxHash,
			LogIndex:    log.Index,
		})
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		return events[i].LogIndex < events[j].LogIndex
	})

	return events, nil
}

// ContractSalt reads the contract's authenticity constant.
func (g *ContractGateway) ContractSalt(ctx context.Context) (string, error) {
	output, err := g.call(ctx, "CONTRACT_SALT")
	if err != nil {
		return "", err
	}

	values, err := contractABI.Unpack("CONTRACT_SALT", output)
	if err != nil {
		return "", errors.Wrap(err, "unpacking CONTRACT_SALT result")
	}
	salt, ok := values[0].(string)
	if !ok {
		return "", errors.Errorf("unexpected CONTRACT_SALT result type %T", values[0])
	}
	return salt, nil
}

// GetIntent reads the on-chain intent record for the given identifier.
func (g *ContractGateway) GetIntent(ctx context.Context, intentHash common.Hash) (*Intent, error) {
	output, err := g.call(ctx, "intents", intentHash)
	if err != nil {
		return nil, err
	}

	values, err := contractABI.Unpack("intents", output)
	if err != nil {
		return nil, errors.Wrap(err, "unpacking intents result")
	}
	if len(values) != 3 {
		return nil, errors.Errorf("unexpected intents result arity %d", len(values))
	}

	declarer, ok := values[0].(common.Address)
	if !ok {
		return nil, errors.Errorf("unexpected declarer type %T", values[0])
	}
	hash, ok := values[1].([32]byte)
	if !ok {
		return nil, errors.Errorf("unexpected intent hash type %T", values[1])
	}
	status, ok := values[2].(uint8)
	if !ok {
		return nil, errors.Errorf("unexpected status type %T", values[2])
	}

	return &Intent{
		Declarer:   declarer,
		IntentHash: common.Hash(hash),
		Status:     IntentStatus(status),
	}, nil
}

// PackVerifyIntent builds the calldata for verifyIntent(intentHash, signature).
func (g *ContractGateway) PackVerifyIntent(intentHash common.Hash, signature []byte) ([]byte, error) {
	data, err := contractABI.Pack("verifyIntent", intentHash, signature)
	if err != nil {
		return nil, errors.Wrap(err, "packing verifyIntent call")
	}
	return data, nil
}

// PackSeizeAssets builds the calldata for seizeAssets(intentHash).
func (g *ContractGateway) PackSeizeAssets(intentHash common.Hash) ([]byte, error) {
	data, err := contractABI.Pack("seizeAssets", intentHash)
	if err != nil {
		return nil, errors.Wrap(err, "packing seizeAssets call")
	}
	return data, nil
}

func (g *ContractGateway) call(ctx context.Context, method string, args ...interface{}) ([]byte, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "packing %s call", method)
	}

	output, err := g.backend.CallContract(ctx, ethereum.CallMsg{
		To:   &g.address,
		Data: data,
	}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "calling %s", method)
	}
	return output, nil
}
