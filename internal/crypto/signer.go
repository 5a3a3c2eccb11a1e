package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Signer signs transactions on behalf of the oracle account.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	signer  types.Signer
}

// NewSigner creates a Signer for the given chain (11155111 for Sepolia).
func NewSigner(key *ecdsa.PrivateKey, chainID int64) (*Signer, error) {
	if key == nil {
		return nil, fmt.Errorf("crypto/signer: nil private key")
	}
	if chainID <= 0 {
		return nil, fmt.Errorf("crypto/signer: invalid chain id %d", chainID)
	}
	id := big.NewInt(chainID)
	return &Signer{
		key:     key,
		address: addressOf(key),
		chainID: id,
		signer:  types.LatestSignerForChainID(id),
	}, nil
}

// Address returns the oracle account address.
func (s *Signer) Address() common.Address { return s.address }

// ChainID returns the chain the signer targets.
func (s *Signer) ChainID() *big.Int { return new(big.Int).Set(s.chainID) }

// SignTx signs tx for the configured chain.
func (s *Signer) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, s.signer, s.key)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: sign tx: %w", err)
	}
	return signed, nil
}

func addressOf(key *ecdsa.PrivateKey) common.Address {
	return ethcrypto.PubkeyToAddress(key.PublicKey)
}
