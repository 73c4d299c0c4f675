// Package hd derives TRON deposit addresses from a BIP-39 mnemonic along the
// path m/44'/195'/0'/0/{index}. Index allocation lives in the pool store;
// this package only turns reserved indexes into addresses.
package hd

import (
	"context"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/sha3"

	portsout "depositgate/internal/application/ports/out"
	apperrors "depositgate/internal/shared_kernel/errors"
)

const (
	purposeIndex  = bip32.FirstHardenedChild + 44
	tronCoinIndex = bip32.FirstHardenedChild + 195
	accountIndex  = bip32.FirstHardenedChild + 0
	externalChain = 0

	tronAddressPrefixByte = 0x41
	maxGenerateBatch      = 10000
)

type Config struct {
	Mnemonic   string
	Passphrase string
}

type Generator struct {
	// chainKey is the external chain node m/44'/195'/0'/0; leaf keys are
	// derived per index.
	chainKey *bip32.Key
}

var _ portsout.AddressGenerator = (*Generator)(nil)

func NewGenerator(cfg Config) (*Generator, *apperrors.AppError) {
	mnemonic := strings.TrimSpace(cfg.Mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, apperrors.NewValidation(
			"wallet_mnemonic_invalid",
			"wallet mnemonic is not a valid BIP-39 phrase",
			nil,
		)
	}

	seed := bip39.NewSeed(mnemonic, cfg.Passphrase)
	masterKey, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, apperrors.NewInternal(
			"wallet_master_key_failed",
			"failed to derive wallet master key",
			map[string]any{"error": err.Error()},
		)
	}

	chainKey := masterKey
	for _, childIndex := range []uint32{purposeIndex, tronCoinIndex, accountIndex, externalChain} {
		chainKey, err = chainKey.NewChildKey(childIndex)
		if err != nil {
			return nil, apperrors.NewInternal(
				"wallet_derivation_failed",
				"failed to derive wallet chain key",
				map[string]any{"error": err.Error(), "child_index": childIndex},
			)
		}
	}

	return &Generator{chainKey: chainKey}, nil
}

func (g *Generator) GenerateBatch(
	_ context.Context,
	fromIndex uint32,
	count int,
) ([]string, *apperrors.AppError) {
	if g == nil || g.chainKey == nil {
		return nil, apperrors.NewInternal(
			"wallet_generator_not_configured",
			"address generator is not configured",
			nil,
		)
	}
	if count <= 0 || count > maxGenerateBatch {
		return nil, apperrors.NewValidation(
			"wallet_batch_size_invalid",
			"generation batch size is out of range",
			map[string]any{"count": count, "max": maxGenerateBatch},
		)
	}

	addresses := make([]string, 0, count)
	for offset := 0; offset < count; offset++ {
		index := fromIndex + uint32(offset)
		address, appErr := g.deriveAddress(index)
		if appErr != nil {
			return nil, appErr
		}
		addresses = append(addresses, address)
	}

	return addresses, nil
}

func (g *Generator) deriveAddress(index uint32) (string, *apperrors.AppError) {
	leafKey, err := g.chainKey.NewChildKey(index)
	if err != nil {
		return "", apperrors.NewInternal(
			"wallet_derivation_failed",
			"failed to derive address key",
			map[string]any{"error": err.Error(), "index": index},
		)
	}

	publicKey, err := btcec.ParsePubKey(leafKey.PublicKey().Key)
	if err != nil {
		return "", apperrors.NewInternal(
			"wallet_public_key_invalid",
			"failed to parse derived public key",
			map[string]any{"error": err.Error(), "index": index},
		)
	}

	// Keccak-256 over the uncompressed public key without the 0x04 tag;
	// the low 20 bytes form the TRON account id.
	uncompressed := publicKey.SerializeUncompressed()
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(uncompressed[1:])
	digest := hasher.Sum(nil)

	return base58.CheckEncode(digest[len(digest)-20:], tronAddressPrefixByte), nil
}
