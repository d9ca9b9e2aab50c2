package crypto

import (
	"fmt"
	"math/big"
	"sort"

	"dhke/internal/domain"
)

// MODP groups from RFC 2409 (ids 1, 2) and RFC 3526 (ids 5, 14). All moduli
// are safe primes and every group uses generator 2.
var modpHex = map[int]string{
	1: "" +
		"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74" +
		"020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F1437" +
		"4FE1356D6D51C245E485B576625E7EC6F44C42E9A63A3620FFFFFFFFFFFFFFFF",
	2: "" +
		"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74" +
		"020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F1437" +
		"4FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
		"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE65381FFFFFFFFFFFFFFFF",
	5: "" +
		"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74" +
		"020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F1437" +
		"4FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
		"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163BF05" +
		"98DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB" +
		"9ED529077096966D670C354E4ABC9804F1746C08CA237327FFFFFFFFFFFFFFFF",
	14: "" +
		"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74" +
		"020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F1437" +
		"4FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
		"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163BF05" +
		"98DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB" +
		"9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3B" +
		"E39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF695581718" +
		"3995497CEA956AE515D2261898FA051015728E5A8AACAA68FFFFFFFFFFFFFFFF",
}

// DefaultGroup is the group served when none is configured.
const DefaultGroup = 14

var modpGroups = func() map[int]domain.Params {
	out := make(map[int]domain.Params, len(modpHex))
	two := big.NewInt(2)
	for id, h := range modpHex {
		p, ok := new(big.Int).SetString(h, 16)
		if !ok {
			panic(fmt.Sprintf("crypto: bad modulus for group %d", id))
		}
		out[id] = domain.Params{P: p, G: two}
	}
	return out
}()

// Group returns a copy of the well-known group with the given id.
func Group(id int) (domain.Params, error) {
	g, ok := modpGroups[id]
	if !ok {
		return domain.Params{}, fmt.Errorf("%w: unknown MODP group %d", domain.ErrParameter, id)
	}
	return domain.NewParams(g.P, g.G), nil
}

// GroupIDs lists the supported group ids in ascending order.
func GroupIDs() []int {
	ids := make([]int, 0, len(modpGroups))
	for id := range modpGroups {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
