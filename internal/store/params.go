package store

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"dhke/internal/domain"
)

// paramsFile is the on-disk JSON form of a group.
type paramsFile struct {
	P       string    `json:"p"`
	G       string    `json:"g"`
	Bits    int       `json:"bits"`
	Created time.Time `json:"created"`
	Source  string    `json:"source,omitempty"`
}

// SaveParams writes params to path as JSON with mode 0644. source is a free
// text note such as "generated" or "modp-14".
func SaveParams(path string, params domain.Params, source string) error {
	if params.P == nil || params.G == nil {
		return fmt.Errorf("%w: nothing to save", domain.ErrParameter)
	}
	b, err := json.MarshalIndent(paramsFile{
		P:       params.P.Text(16),
		G:       params.G.Text(16),
		Bits:    params.Bits(),
		Created: time.Now().UTC().Truncate(time.Second),
		Source:  source,
	}, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, append(b, '\n'), 0o644)
}

// LoadParams reads a group written by SaveParams. It checks the encoding
// only; callers validate the group itself.
func LoadParams(path string) (domain.Params, error) {
	b, err := readFile(path)
	if err != nil {
		return domain.Params{}, err
	}
	var f paramsFile
	if err := json.Unmarshal(b, &f); err != nil {
		return domain.Params{}, fmt.Errorf("%w: %s: %v", domain.ErrParameter, path, err)
	}
	p, ok := new(big.Int).SetString(f.P, 16)
	if !ok || p.Sign() <= 0 {
		return domain.Params{}, fmt.Errorf("%w: %s: bad modulus", domain.ErrParameter, path)
	}
	g, ok := new(big.Int).SetString(f.G, 16)
	if !ok || g.Sign() <= 0 {
		return domain.Params{}, fmt.Errorf("%w: %s: bad generator", domain.ErrParameter, path)
	}
	if f.Bits != 0 && f.Bits != p.BitLen() {
		return domain.Params{}, fmt.Errorf("%w: %s: header says %d bits, modulus has %d", domain.ErrParameter, path, f.Bits, p.BitLen())
	}
	return domain.Params{P: p, G: g}, nil
}
