package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"solana-token-scout/internal/ratelimit"
)

const telegramBaseURL = "https://api.telegram.org"

// Telegram-imposed delivery limits.
var (
	telegramGlobalRate = ratelimit.Rate{Capacity: 30, Refill: 30, Interval: time.Second}
	telegramChatRate   = ratelimit.Rate{Capacity: 1, Refill: 1, Interval: time.Second}
	telegramGroupRate  = ratelimit.Rate{Capacity: 20, Refill: 20, Interval: time.Minute}
)

// TelegramNotifier sends and edits messages through the Telegram bot API,
// honoring the global, per-chat and per-group delivery limits.
type TelegramNotifier struct {
	baseURL string
	token   string
	client  *http.Client

	global  *ratelimit.Bucket
	mu      sync.Mutex
	perChat map[int64]*ratelimit.Bucket
}

func NewTelegramNotifier(token string, opts ...func(*TelegramNotifier)) *TelegramNotifier {
	n := &TelegramNotifier{
		baseURL: telegramBaseURL,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		global:  ratelimit.NewBucket(telegramGlobalRate.Capacity, telegramGlobalRate.Refill, telegramGlobalRate.Interval),
		perChat: make(map[int64]*ratelimit.Bucket),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func WithTelegramBaseURL(url string) func(*TelegramNotifier) {
	return func(n *TelegramNotifier) { n.baseURL = url }
}

var _ Notifier = (*TelegramNotifier)(nil)

func (n *TelegramNotifier) Send(ctx context.Context, channelID int64, text string) (int64, error) {
	if err := n.acquire(ctx, channelID); err != nil {
		return 0, err
	}

	params := url.Values{
		"chat_id":    {strconv.FormatInt(channelID, 10)},
		"text":       {text},
		"parse_mode": {"HTML"},
	}
	resp, err := n.call(ctx, "sendMessage", params)
	if err != nil {
		return 0, err
	}
	return resp.Result.MessageID, nil
}

func (n *TelegramNotifier) Edit(ctx context.Context, channelID, messageID int64, text string) error {
	if err := n.acquire(ctx, channelID); err != nil {
		return err
	}

	params := url.Values{
		"chat_id":    {strconv.FormatInt(channelID, 10)},
		"message_id": {strconv.FormatInt(messageID, 10)},
		"text":       {text},
		"parse_mode": {"HTML"},
	}
	_, err := n.call(ctx, "editMessageText", params)
	return err
}

// acquire waits on the global bucket and the channel's own bucket.
// Negative IDs are groups/supergroups and get the tighter group rate.
func (n *TelegramNotifier) acquire(ctx context.Context, channelID int64) error {
	if err := n.global.Acquire(ctx, 1); err != nil {
		return err
	}
	return n.chatBucket(channelID).Acquire(ctx, 1)
}

func (n *TelegramNotifier) chatBucket(channelID int64) *ratelimit.Bucket {
	n.mu.Lock()
	defer n.mu.Unlock()

	bucket, ok := n.perChat[channelID]
	if !ok {
		rate := telegramChatRate
		if channelID < 0 {
			rate = telegramGroupRate
		}
		bucket = ratelimit.NewBucket(rate.Capacity, rate.Refill, rate.Interval)
		n.perChat[channelID] = bucket
	}
	return bucket
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

func (n *TelegramNotifier) call(ctx context.Context, method string, params url.Values) (*telegramResponse, error) {
	endpoint := fmt.Sprintf("%s/bot%s/%s", n.baseURL, n.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram %s: %w", method, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp telegramResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if !resp.OK {
		return nil, apiError(&resp)
	}
	return &resp, nil
}

func apiError(resp *telegramResponse) error {
	desc := strings.ToLower(resp.Description)
	switch {
	case strings.Contains(desc, "message is not modified"):
		return ErrNotModified
	case strings.Contains(desc, "message to edit not found"),
		strings.Contains(desc, "message can't be edited"):
		return ErrMessageGone
	default:
		return fmt.Errorf("telegram error %d: %s", resp.ErrorCode, resp.Description)
	}
}
