package stub

import (
	"context"
	"errors"

	"solana-token-scout/internal/solana"
)

// ErrNotFound is returned when the stub has no record for the request.
var ErrNotFound = errors.New("not found")

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	Transactions  map[string]*solana.Transaction
	Assets        map[string]*solana.AssetInfo
	Holders       map[string][]solana.TokenBalance
	Supplies      map[string]*solana.TokenBalance
	CreatorCounts map[string]int

	// Fail makes every call return ErrNotFound, simulating a dead provider.
	Fail bool
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Transactions:  make(map[string]*solana.Transaction),
		Assets:        make(map[string]*solana.AssetInfo),
		Holders:       make(map[string][]solana.TokenBalance),
		Supplies:      make(map[string]*solana.TokenBalance),
		CreatorCounts: make(map[string]int),
	}
}

// Compile-time interface check.
var _ solana.RPCClient = (*RPCClient)(nil)

// GetTransaction retrieves a transaction by signature from the stub store.
// Unknown signatures return (nil, nil) like the real client.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	if c.Fail {
		return nil, ErrNotFound
	}
	return c.Transactions[signature], nil
}

// GetAsset retrieves asset metadata from the stub store.
func (c *RPCClient) GetAsset(_ context.Context, mint string) (*solana.AssetInfo, error) {
	if c.Fail {
		return nil, ErrNotFound
	}
	return c.Assets[mint], nil
}

// GetTokenLargestAccounts retrieves holders from the stub store.
func (c *RPCClient) GetTokenLargestAccounts(_ context.Context, mint string) ([]solana.TokenBalance, error) {
	if c.Fail {
		return nil, ErrNotFound
	}
	return c.Holders[mint], nil
}

// GetTokenSupply retrieves the supply from the stub store.
func (c *RPCClient) GetTokenSupply(_ context.Context, mint string) (*solana.TokenBalance, error) {
	if c.Fail {
		return nil, ErrNotFound
	}
	supply, ok := c.Supplies[mint]
	if !ok {
		return nil, ErrNotFound
	}
	return supply, nil
}

// GetAssetCountByCreator retrieves the creator's mint count from the stub store.
func (c *RPCClient) GetAssetCountByCreator(_ context.Context, creator string) (int, error) {
	if c.Fail {
		return 0, ErrNotFound
	}
	return c.CreatorCounts[creator], nil
}

// AddTransaction adds a transaction to the stub store.
func (c *RPCClient) AddTransaction(tx *solana.Transaction) {
	c.Transactions[tx.Signature] = tx
}
