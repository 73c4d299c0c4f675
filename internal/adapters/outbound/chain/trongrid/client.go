// Package trongrid fetches TRC-20 transfers from the TronGrid HTTP API.
package trongrid

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	portsout "depositgate/internal/application/ports/out"
	"depositgate/internal/domain/entities"
	apperrors "depositgate/internal/shared_kernel/errors"
)

const (
	defaultBaseURL   = "https://api.trongrid.io"
	defaultTimeout   = 15 * time.Second
	defaultPageLimit = 50
	apiKeyHeader     = "TRON-PRO-API-KEY"

	// maxPages bounds one fetch so a single very busy address cannot stall a
	// whole monitor cycle. Later transfers surface on the next poll.
	maxPages = 10
)

type Config struct {
	BaseURL         string
	APIKey          string
	ContractAddress string
	AssetSymbol     string
	Timeout         time.Duration
	PageLimit       int
}

// Client reads confirmed TRC-20 transfers for one address. It performs no
// retries; every transport or provider failure maps to an unavailable error
// and the monitor owns the backoff.
type Client struct {
	baseURL         string
	apiKey          string
	contractAddress string
	assetSymbol     string
	pageLimit       int
	httpClient      *http.Client
}

var _ portsout.ChainClient = (*Client)(nil)

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	pageLimit := cfg.PageLimit
	if pageLimit <= 0 {
		pageLimit = defaultPageLimit
	}

	return &Client{
		baseURL:         baseURL,
		apiKey:          strings.TrimSpace(cfg.APIKey),
		contractAddress: strings.TrimSpace(cfg.ContractAddress),
		assetSymbol:     strings.TrimSpace(cfg.AssetSymbol),
		pageLimit:       pageLimit,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type trc20Response struct {
	Success *bool            `json:"success"`
	Data    []trc20Transfer  `json:"data"`
	Error   string           `json:"error"`
	Meta    *trc20PageCursor `json:"meta"`
}

type trc20PageCursor struct {
	Fingerprint string `json:"fingerprint"`
}

type trc20Transfer struct {
	TransactionID  string         `json:"transaction_id"`
	From           string         `json:"from"`
	To             string         `json:"to"`
	Value          string         `json:"value"`
	BlockNumber    int64          `json:"block"`
	BlockTimestamp int64          `json:"block_timestamp"`
	Confirmations  int            `json:"confirmations"`
	TokenInfo      trc20TokenInfo `json:"token_info"`
}

type trc20TokenInfo struct {
	Symbol  string `json:"symbol"`
	Address string `json:"address"`
}

func (c *Client) FetchTransactions(
	ctx context.Context,
	address string,
	sinceBlockHeight int64,
) ([]entities.ChainObservation, *apperrors.AppError) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, apperrors.NewValidation(
			"address_missing",
			"address is required",
			nil,
		)
	}

	observedAt := time.Now().UTC()
	observations := []entities.ChainObservation{}
	fingerprint := ""
	for page := 0; page < maxPages; page++ {
		decoded, appErr := c.fetchPage(ctx, address, fingerprint)
		if appErr != nil {
			return nil, appErr
		}

		for _, transfer := range decoded.Data {
			if !c.relevant(transfer, address, sinceBlockHeight) {
				continue
			}
			observations = append(observations, entities.ChainObservation{
				TxHash:        transfer.TransactionID,
				ToAddress:     transfer.To,
				AmountMinor:   strings.TrimSpace(transfer.Value),
				BlockHeight:   transfer.BlockNumber,
				Confirmations: transfer.Confirmations,
				ObservedAt:    observedAt,
			})
		}

		if decoded.Meta == nil || decoded.Meta.Fingerprint == "" || len(decoded.Data) == 0 {
			break
		}
		fingerprint = decoded.Meta.Fingerprint
	}

	return observations, nil
}

func (c *Client) fetchPage(
	ctx context.Context,
	address string,
	fingerprint string,
) (trc20Response, *apperrors.AppError) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(c.pageLimit))
	query.Set("only_confirmed", "true")
	query.Set("only_to", "true")
	if c.contractAddress != "" {
		query.Set("contract_address", c.contractAddress)
	}
	if fingerprint != "" {
		query.Set("fingerprint", fingerprint)
	}

	endpoint := fmt.Sprintf(
		"%s/v1/accounts/%s/transactions/trc20?%s",
		c.baseURL,
		url.PathEscape(address),
		query.Encode(),
	)

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return trc20Response{}, apperrors.NewInternal(
			"provider_request_build_failed",
			"failed to build provider request",
			map[string]any{"error": err.Error()},
		)
	}
	request.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		request.Header.Set(apiKeyHeader, c.apiKey)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return trc20Response{}, apperrors.NewUnavailable(
			"provider_unreachable",
			"failed to reach chain provider",
			map[string]any{"error": err.Error()},
		)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusTooManyRequests {
		return trc20Response{}, apperrors.NewUnavailable(
			"provider_rate_limited",
			"chain provider rate limit exceeded",
			map[string]any{"retry_after_seconds": retryAfterSeconds(response)},
		)
	}
	if response.StatusCode != http.StatusOK {
		return trc20Response{}, apperrors.NewUnavailable(
			"provider_request_failed",
			"chain provider returned non-200 status",
			map[string]any{"status_code": response.StatusCode},
		)
	}

	decoded := trc20Response{}
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return trc20Response{}, apperrors.NewUnavailable(
			"provider_response_invalid",
			"failed to decode provider response",
			map[string]any{"error": err.Error()},
		)
	}
	if decoded.Success != nil && !*decoded.Success {
		return trc20Response{}, apperrors.NewUnavailable(
			"provider_request_failed",
			"chain provider reported failure",
			map[string]any{"provider_error": decoded.Error},
		)
	}

	return decoded, nil
}

// relevant keeps inbound transfers for the watched token at or past the fetch
// window. Transfers at sinceBlockHeight are kept so still-maturing
// transactions keep reporting confirmation growth.
func (c *Client) relevant(transfer trc20Transfer, address string, sinceBlockHeight int64) bool {
	if transfer.To != address {
		return false
	}
	if strings.TrimSpace(transfer.TransactionID) == "" {
		return false
	}
	if transfer.BlockNumber < sinceBlockHeight {
		return false
	}
	if c.contractAddress != "" && transfer.TokenInfo.Address != c.contractAddress {
		return false
	}
	if c.assetSymbol != "" && !strings.EqualFold(transfer.TokenInfo.Symbol, c.assetSymbol) {
		return false
	}
	return true
}

func retryAfterSeconds(response *http.Response) int {
	seconds, err := strconv.Atoi(strings.TrimSpace(response.Header.Get("Retry-After")))
	if err != nil || seconds < 0 {
		return 0
	}
	return seconds
}
