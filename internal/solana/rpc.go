package solana

import "context"

// RPCClient defines the Solana RPC HTTP surface the pipeline depends on.
type RPCClient interface {
	// GetTransaction retrieves a transaction by signature. Returns nil when
	// the transaction is not found.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetAsset retrieves asset metadata via the DAS getAsset method.
	GetAsset(ctx context.Context, mint string) (*AssetInfo, error)

	// GetTokenLargestAccounts retrieves the largest holders of a mint.
	GetTokenLargestAccounts(ctx context.Context, mint string) ([]TokenBalance, error)

	// GetTokenSupply retrieves the total supply of a mint.
	GetTokenSupply(ctx context.Context, mint string) (*TokenBalance, error)

	// GetAssetCountByCreator retrieves how many assets a creator address
	// has minted, via the DAS getAssetsByCreator method.
	GetAssetCountByCreator(ctx context.Context, creator string) (int, error)
}

// Compile-time interface check.
var _ RPCClient = (*HTTPClient)(nil)

// Transaction represents a Solana transaction.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err         interface{}
	LogMessages []string
}

// TransactionMessage contains parsed transaction message.
type TransactionMessage struct {
	AccountKeys []string
}
