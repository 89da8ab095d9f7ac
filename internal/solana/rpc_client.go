package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request. Params is positional for
// standard RPC methods and an object for DAS methods like getAsset.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries and exponential backoff.
func (c *HTTPClient) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// GetTransaction retrieves a transaction by signature. Returns nil when the
// transaction is not found (yet).
func (c *HTTPClient) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "json",
			"maxSupportedTransactionVersion": 0,
		},
	}

	var result getTransactionResult
	if err := c.call(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}

	if result.Slot == 0 && result.BlockTime == nil {
		// Transaction not found
		return nil, nil
	}

	tx := &Transaction{
		Slot:      result.Slot,
		Signature: signature,
	}

	if result.BlockTime != nil {
		tx.BlockTime = *result.BlockTime
	}

	if result.Meta != nil {
		tx.Meta = &TransactionMeta{
			Err:         result.Meta.Err,
			LogMessages: result.Meta.LogMessages,
		}
	}

	if result.Transaction != nil && result.Transaction.Message != nil {
		tx.Message = &TransactionMessage{
			AccountKeys: result.Transaction.Message.AccountKeys,
		}
	}

	return tx, nil
}

// getTransactionResult is the raw RPC response for getTransaction.
type getTransactionResult struct {
	Slot        int64               `json:"slot"`
	BlockTime   *int64              `json:"blockTime"`
	Meta        *getTransactionMeta `json:"meta"`
	Transaction *getTransactionTx   `json:"transaction"`
}

type getTransactionMeta struct {
	Err         interface{} `json:"err"`
	LogMessages []string    `json:"logMessages"`
}

type getTransactionTx struct {
	Message *getTransactionMessage `json:"message"`
}

type getTransactionMessage struct {
	AccountKeys []string `json:"accountKeys"`
}

// GetAsset retrieves asset metadata via the DAS getAsset method. Returns nil
// when the provider does not know the asset.
func (c *HTTPClient) GetAsset(ctx context.Context, mint string) (*AssetInfo, error) {
	params := map[string]interface{}{"id": mint}

	var result getAssetResult
	if err := c.call(ctx, "getAsset", params, &result); err != nil {
		return nil, err
	}

	if result.ID == "" {
		return nil, nil
	}

	info := &AssetInfo{Mint: result.ID}

	if result.Content != nil {
		if result.Content.Metadata != nil {
			info.Symbol = result.Content.Metadata.Symbol
			info.Name = result.Content.Metadata.Name
		}
		if result.Content.Links != nil {
			for _, link := range []string{result.Content.Links.ExternalURL, result.Content.Links.Twitter} {
				if link != "" {
					info.Socials = append(info.Socials, link)
				}
			}
		}
	}

	if result.TokenInfo != nil {
		if result.TokenInfo.MintAuthority != "" {
			v := result.TokenInfo.MintAuthority
			info.MintAuthority = &v
		}
		if result.TokenInfo.FreezeAuthority != "" {
			v := result.TokenInfo.FreezeAuthority
			info.FreezeAuthority = &v
		}
		info.Supply = result.TokenInfo.Supply
		info.Decimals = result.TokenInfo.Decimals
	}

	for _, creator := range result.Creators {
		if creator.Address != "" {
			info.Creator = creator.Address
			break
		}
	}

	return info, nil
}

// AssetInfo is the normalized subset of DAS asset metadata the pipeline uses.
type AssetInfo struct {
	Mint            string
	Symbol          string
	Name            string
	MintAuthority   *string
	FreezeAuthority *string
	Creator         string
	Supply          float64
	Decimals        int
	Socials         []string
}

type getAssetResult struct {
	ID        string             `json:"id"`
	Content   *getAssetContent   `json:"content"`
	TokenInfo *getAssetTokenInfo `json:"token_info"`
	Creators  []getAssetCreator  `json:"creators"`
}

type getAssetContent struct {
	Metadata *getAssetMetadata `json:"metadata"`
	Links    *getAssetLinks    `json:"links"`
}

type getAssetMetadata struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

type getAssetLinks struct {
	ExternalURL string `json:"external_url"`
	Twitter     string `json:"twitter"`
}

type getAssetTokenInfo struct {
	Supply          float64 `json:"supply"`
	Decimals        int     `json:"decimals"`
	MintAuthority   string  `json:"mint_authority"`
	FreezeAuthority string  `json:"freeze_authority"`
}

type getAssetCreator struct {
	Address string `json:"address"`
}

// GetTokenLargestAccounts retrieves the largest holders of a mint.
func (c *HTTPClient) GetTokenLargestAccounts(ctx context.Context, mint string) ([]TokenBalance, error) {
	params := []interface{}{mint}

	var result tokenAmountListResult
	if err := c.call(ctx, "getTokenLargestAccounts", params, &result); err != nil {
		return nil, err
	}

	balances := make([]TokenBalance, 0, len(result.Value))
	for _, v := range result.Value {
		amount, err := strconv.ParseFloat(v.Amount, 64)
		if err != nil {
			continue
		}
		balances = append(balances, TokenBalance{
			Address:  v.Address,
			Amount:   amount,
			Decimals: v.Decimals,
		})
	}
	return balances, nil
}

// GetTokenSupply retrieves the total supply of a mint.
func (c *HTTPClient) GetTokenSupply(ctx context.Context, mint string) (*TokenBalance, error) {
	params := []interface{}{mint}

	var result tokenAmountResult
	if err := c.call(ctx, "getTokenSupply", params, &result); err != nil {
		return nil, err
	}

	amount, err := strconv.ParseFloat(result.Value.Amount, 64)
	if err != nil {
		return nil, fmt.Errorf("parse supply amount %q: %w", result.Value.Amount, err)
	}
	return &TokenBalance{Amount: amount, Decimals: result.Value.Decimals}, nil
}

// GetAssetCountByCreator retrieves how many assets a creator has minted.
func (c *HTTPClient) GetAssetCountByCreator(ctx context.Context, creator string) (int, error) {
	params := map[string]interface{}{
		"creatorAddress": creator,
		"page":           1,
		"limit":          1,
	}

	var result struct {
		Total int `json:"total"`
	}
	if err := c.call(ctx, "getAssetsByCreator", params, &result); err != nil {
		return 0, err
	}
	return result.Total, nil
}

// TokenBalance is a raw token amount with its decimals.
type TokenBalance struct {
	Address  string
	Amount   float64
	Decimals int
}

type tokenAmountListResult struct {
	Value []tokenAmountValue `json:"value"`
}

type tokenAmountResult struct {
	Value tokenAmountValue `json:"value"`
}

type tokenAmountValue struct {
	Address  string `json:"address"`
	Amount   string `json:"amount"`
	Decimals int    `json:"decimals"`
}
