package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/hkdf"

	"dhke/internal/domain"
	"dhke/internal/util/memzero"
)

// KeySize is the length of a derived session key.
const KeySize = 32

var kdfInfo = []byte("dhke session key")

// DeriveKey turns a raw shared secret into a KeySize-byte key with
// HKDF-SHA256. The secret is left-padded to the byte length of p so both
// sides feed identical input regardless of leading zero bytes.
func DeriveKey(secret, p *big.Int) ([]byte, error) {
	if secret == nil || p == nil || secret.Sign() <= 0 || secret.Cmp(p) >= 0 {
		return nil, fmt.Errorf("%w: shared secret out of range", domain.ErrInternal)
	}
	ikm := secret.FillBytes(make([]byte, (p.BitLen()+7)/8))
	defer memzero.Zero(ikm)

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, nil, kdfInfo), key); err != nil {
		return nil, fmt.Errorf("%w: deriving key: %v", domain.ErrInternal, err)
	}
	return key, nil
}
