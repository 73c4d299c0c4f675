package valueobjects

import (
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"

	apperrors "depositgate/internal/shared_kernel/errors"
)

const (
	tronAddressLength = 34
	tronAddressPrefix = "T"

	// Mainnet addresses carry version byte 0x41 over a 20 byte key hash.
	tronAddressVersion = 0x41
	tronPayloadLength  = 20
)

// NormalizeChainAddress validates a TRON Base58Check address and returns the
// canonical storage form. Base58Check is case sensitive, so no case folding.
func NormalizeChainAddress(raw string) (string, *apperrors.AppError) {
	address := strings.TrimSpace(raw)
	if len(address) != tronAddressLength || !strings.HasPrefix(address, tronAddressPrefix) {
		return "", apperrors.NewValidation(
			"address_format_invalid",
			"address must be a 34 character TRON address starting with T",
			map[string]any{"field": "address"},
		)
	}

	payload, version, err := base58.CheckDecode(address)
	if err != nil {
		return "", apperrors.NewValidation(
			"address_checksum_invalid",
			"address failed Base58Check validation",
			map[string]any{"field": "address"},
		)
	}
	if version != tronAddressVersion || len(payload) != tronPayloadLength {
		return "", apperrors.NewValidation(
			"address_version_invalid",
			"address is not a mainnet TRON address",
			map[string]any{"field": "address"},
		)
	}

	return address, nil
}
