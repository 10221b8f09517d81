// Package chain provides cached read-through access to chain data. Every
// accessor consults the persistent cache first and only hits the RPC
// provider on a miss, so re-processing old ranges stays cheap.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/relaymesh/bridge-indexer/pkg/config"
	"github.com/relaymesh/bridge-indexer/pkg/contracts"
	"github.com/relaymesh/bridge-indexer/pkg/db"
	"github.com/relaymesh/bridge-indexer/pkg/db/dao"
)

// Client wraps one chain's RPC connection together with its configuration.
type Client struct {
	Eth *ethclient.Client
	Cfg config.ChainConfig
}

// Registry holds the RPC clients for every configured chain plus the shared
// chain-data cache.
type Registry struct {
	clients map[uint64]*Client
	cache   *db.CacheStore
	logger  *zap.Logger
}

// NewRegistry dials every configured chain. A chain that cannot be dialed is
// a fatal configuration error surfaced at startup.
func NewRegistry(ctx context.Context, chains []config.ChainConfig, cache *db.CacheStore, logger *zap.Logger) (*Registry, error) {
	registry := &Registry{
		clients: make(map[uint64]*Client, len(chains)),
		cache:   cache,
		logger:  logger,
	}
	for _, cfg := range chains {
		eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to chain %d RPC: %w", cfg.ChainID, err)
		}
		registry.clients[cfg.ChainID] = &Client{Eth: eth, Cfg: cfg}
		logger.Info("connected to chain",
			zap.Uint64("chain_id", cfg.ChainID),
			zap.String("name", cfg.Name))
	}
	return registry, nil
}

// Close releases every RPC connection.
func (r *Registry) Close() {
	for _, client := range r.clients {
		client.Eth.Close()
	}
}

// Client returns the RPC client for a chain. Missing chains are a
// configuration error, not a retryable condition.
func (r *Registry) Client(chainID uint64) (*Client, error) {
	client, ok := r.clients[chainID]
	if !ok {
		return nil, fmt.Errorf("no provider configured for chain %d", chainID)
	}
	return client, nil
}

// ChainIDs returns all configured chain ids.
func (r *Registry) ChainIDs() []uint64 {
	ids := make([]uint64, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids
}

// LatestBlock returns the chain head minus the configured confirmation
// depth.
func (r *Registry) LatestBlock(ctx context.Context, chainID uint64) (uint64, error) {
	client, err := r.Client(chainID)
	if err != nil {
		return 0, err
	}
	head, err := client.Eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get head of chain %d: %w", chainID, err)
	}
	if head < client.Cfg.ConfirmationBlocks {
		return 0, nil
	}
	return head - client.Cfg.ConfirmationBlocks, nil
}

// GetBlock returns a block's timestamp, reading through the cache.
func (r *Registry) GetBlock(ctx context.Context, chainID uint64, blockNumber uint64) (*dao.BlockDao, error) {
	cached, err := r.cache.GetBlock(ctx, int64(chainID), int64(blockNumber))
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	client, err := r.Client(chainID)
	if err != nil {
		return nil, err
	}
	header, err := client.Eth.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch block %d on chain %d: %w", blockNumber, chainID, err)
	}

	return r.cache.PutBlock(ctx, &dao.BlockDao{
		ChainID:     int64(chainID),
		BlockNumber: int64(blockNumber),
		Timestamp:   time.Unix(int64(header.Time), 0).UTC(),
	})
}

// GetToken returns ERC20 metadata for a token address, reading through the
// cache and calling the contract on a miss.
func (r *Registry) GetToken(ctx context.Context, chainID uint64, address string) (*dao.TokenDao, error) {
	address = common.HexToAddress(address).Hex()
	cached, err := r.cache.GetToken(ctx, int64(chainID), address)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	client, err := r.Client(chainID)
	if err != nil {
		return nil, err
	}

	name, err := r.callString(ctx, client, common.HexToAddress(address), "name")
	if err != nil {
		return nil, err
	}
	symbol, err := r.callString(ctx, client, common.HexToAddress(address), "symbol")
	if err != nil {
		return nil, err
	}
	decimals, err := r.callDecimals(ctx, client, common.HexToAddress(address))
	if err != nil {
		return nil, err
	}

	return r.cache.PutToken(ctx, &dao.TokenDao{
		Address:  address,
		ChainID:  int64(chainID),
		Name:     name,
		Symbol:   symbol,
		Decimals: decimals,
	})
}

// GetTransaction returns a transaction with its calldata, reading through
// the cache.
func (r *Registry) GetTransaction(ctx context.Context, chainID uint64, hash string) (*dao.TransactionDao, error) {
	cached, err := r.cache.GetTransaction(ctx, int64(chainID), hash)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	client, err := r.Client(chainID)
	if err != nil {
		return nil, err
	}
	tx, _, err := client.Eth.TransactionByHash(ctx, common.HexToHash(hash))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction %s on chain %d: %w", hash, chainID, err)
	}

	from, err := types.Sender(types.LatestSignerForChainID(new(big.Int).SetUint64(chainID)), tx)
	if err != nil {
		return nil, fmt.Errorf("failed to recover sender of %s: %w", hash, err)
	}

	row := &dao.TransactionDao{
		ChainID: int64(chainID),
		Hash:    hash,
		Data:    hexutil.Encode(tx.Data()),
		From:    from.Hex(),
	}
	if to := tx.To(); to != nil {
		hex := to.Hex()
		row.To = &hex
	}
	return r.cache.PutTransaction(ctx, row)
}

// GetTransactionReceipt returns a transaction receipt, reading through the
// cache. The sender is recovered from the transaction since receipts do not
// carry it.
func (r *Registry) GetTransactionReceipt(ctx context.Context, chainID uint64, hash string) (*dao.ReceiptDao, error) {
	cached, err := r.cache.GetReceipt(ctx, int64(chainID), hash)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	client, err := r.Client(chainID)
	if err != nil {
		return nil, err
	}
	receipt, err := client.Eth.TransactionReceipt(ctx, common.HexToHash(hash))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch receipt %s on chain %d: %w", hash, chainID, err)
	}

	tx, err := r.GetTransaction(ctx, chainID, hash)
	if err != nil {
		return nil, err
	}

	return r.cache.PutReceipt(ctx, &dao.ReceiptDao{
		ChainID:           int64(chainID),
		Hash:              hash,
		From:              tx.From,
		GasUsed:           int64(receipt.GasUsed),
		EffectiveGasPrice: receipt.EffectiveGasPrice.String(),
	})
}

// FillStatus reads the fillStatuses mapping of a v3 spoke pool for a relay
// hash. Used by the missed-fill sweep; never cached since the status changes
// on chain.
func (r *Registry) FillStatus(ctx context.Context, chainID uint64, spokePool common.Address, relayHash [32]byte) (*big.Int, error) {
	client, err := r.Client(chainID)
	if err != nil {
		return nil, err
	}
	data, err := contracts.PackFillStatuses(relayHash)
	if err != nil {
		return nil, err
	}
	result, err := client.Eth.CallContract(ctx, ethereum.CallMsg{To: &spokePool, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query fill status on chain %d: %w", chainID, err)
	}
	return contracts.UnpackFillStatuses(result)
}

func (r *Registry) callString(ctx context.Context, client *Client, token common.Address, method string) (string, error) {
	erc20 := contracts.ERC20ABI()
	data, err := erc20.Pack(method)
	if err != nil {
		return "", err
	}
	result, err := client.Eth.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to call %s() on token %s: %w", method, token.Hex(), err)
	}
	values, err := erc20.Unpack(method, result)
	if err != nil || len(values) != 1 {
		return "", fmt.Errorf("failed to decode %s() of token %s: %w", method, token.Hex(), err)
	}
	str, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("token %s returned non-string %s()", token.Hex(), method)
	}
	return str, nil
}

func (r *Registry) callDecimals(ctx context.Context, client *Client, token common.Address) (int32, error) {
	erc20 := contracts.ERC20ABI()
	data, err := erc20.Pack("decimals")
	if err != nil {
		return 0, err
	}
	result, err := client.Eth.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to call decimals() on token %s: %w", token.Hex(), err)
	}
	values, err := erc20.Unpack("decimals", result)
	if err != nil || len(values) != 1 {
		return 0, fmt.Errorf("failed to decode decimals() of token %s: %w", token.Hex(), err)
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("token %s returned non-uint8 decimals()", token.Hex())
	}
	return int32(decimals), nil
}
