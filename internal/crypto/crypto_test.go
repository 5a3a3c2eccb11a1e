package crypto

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestSealAndOpenKey(t *testing.T) {
	key, err := ethcrypto.HexToECDSA(testKeyHex)
	if err != nil {
		t.Fatal(err)
	}

	data, err := SealKey(key, "hunter2")
	if err != nil {
		t.Fatalf("SealKey: %v", err)
	}

	path := filepath.Join(t.TempDir(), "oracle.key.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "hunter2"})
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	if addressOf(got) != addressOf(key) {
		t.Errorf("loaded key address %s, want %s", addressOf(got), addressOf(key))
	}

	if _, err := OpenKey(data, "wrong"); err == nil {
		t.Error("OpenKey with wrong password should fail")
	}
}

func TestLoadKeyRawTakesPrecedence(t *testing.T) {
	key, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex, EncryptedKeyPath: "/does/not/exist"})
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	if key == nil {
		t.Fatal("nil key")
	}

	if _, err := LoadKey(KeyConfig{}); err == nil {
		t.Error("LoadKey with no source should fail")
	}
}

func TestSignTx(t *testing.T) {
	key, _ := ethcrypto.HexToECDSA(testKeyHex)
	s, err := NewSigner(key, 11155111)
	if err != nil {
		t.Fatal(err)
	}

	to := common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.ChainID(),
		Nonce:     7,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2),
		Gas:       500_000,
		To:        &to,
	})
	signed, err := s.SignTx(tx)
	if err != nil {
		t.Fatalf("SignTx: %v", err)
	}

	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(11155111)), signed)
	if err != nil {
		t.Fatal(err)
	}
	if from != s.Address() {
		t.Errorf("recovered sender %s, want %s", from, s.Address())
	}
}
