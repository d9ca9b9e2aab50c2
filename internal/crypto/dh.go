package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"dhke/internal/domain"
)

const (
	// MinGenerateBits is the smallest modulus GenerateParameters will build.
	MinGenerateBits = 16
	// DefaultMinBits is the smallest modulus an initiator accepts by default.
	DefaultMinBits = 512
	// DefaultMaxBits is the largest modulus an initiator accepts by default.
	// It keeps the primality test of a received modulus short.
	DefaultMaxBits = 8192
	// primalityRounds is the Miller-Rabin round count for received moduli.
	primalityRounds = 20
	// defaultGeneratorAttempts bounds the random generator search.
	defaultGeneratorAttempts = 64
)

var (
	one   = big.NewInt(1)
	two   = big.NewInt(2)
	three = big.NewInt(3)
)

// Engine performs the finite-field Diffie-Hellman computations for one or
// more sessions. It holds no per-session state and never mutates its
// arguments, so a single Engine may serve concurrent sessions.
type Engine struct {
	rand     io.Reader
	minBits  int
	maxBits  int
	attempts int
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the secure randomness source. Defaults to crypto/rand.Reader.
func WithRand(r io.Reader) Option {
	return func(e *Engine) {
		if r != nil {
			e.rand = r
		}
	}
}

// WithMinBits sets the smallest modulus ValidateParameters accepts.
func WithMinBits(bits int) Option {
	return func(e *Engine) { e.minBits = bits }
}

// WithMaxBits sets the largest modulus ValidateParameters accepts. Zero or
// less removes the cap.
func WithMaxBits(bits int) Option {
	return func(e *Engine) { e.maxBits = bits }
}

// WithGeneratorAttempts bounds how many candidates the generator search tries.
func WithGeneratorAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.attempts = n
		}
	}
}

// NewEngine returns an Engine with the given options applied.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		rand:     rand.Reader,
		minBits:  DefaultMinBits,
		maxBits:  DefaultMaxBits,
		attempts: defaultGeneratorAttempts,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// MinBits returns the modulus size policy enforced by ValidateParameters.
func (e *Engine) MinBits() int { return e.minBits }

// MaxBits returns the modulus size cap enforced by ValidateParameters.
func (e *Engine) MaxBits() int { return e.maxBits }

// GenerateParameters builds a fresh group with a random bits-long prime p and
// a generator g satisfying g^((p-1)/2) mod p != 1.
func (e *Engine) GenerateParameters(bits int) (domain.Params, error) {
	if bits < MinGenerateBits {
		return domain.Params{}, fmt.Errorf("%w: prime size %d below %d bits", domain.ErrParameter, bits, MinGenerateBits)
	}
	p, err := rand.Prime(e.rand, bits)
	if err != nil {
		return domain.Params{}, fmt.Errorf("%w: generating prime: %v", domain.ErrRandomness, err)
	}
	g, err := e.findGenerator(p)
	if err != nil {
		return domain.Params{}, err
	}
	return domain.Params{P: p, G: g}, nil
}

func (e *Engine) findGenerator(p *big.Int) (*big.Int, error) {
	exp := new(big.Int).Sub(p, one)
	exp.Rsh(exp, 1)
	for i := 0; i < e.attempts; i++ {
		g, err := e.randomInRange(p)
		if err != nil {
			return nil, err
		}
		if new(big.Int).Exp(g, exp, p).Cmp(one) != 0 {
			return g, nil
		}
	}
	return nil, fmt.Errorf("%w: no generator found after %d attempts", domain.ErrParameter, e.attempts)
}

// GenerateExponent returns a uniform random private exponent in [2, p-2].
func (e *Engine) GenerateExponent(p *big.Int) (*big.Int, error) {
	if p == nil || p.Cmp(big.NewInt(5)) < 0 {
		return nil, fmt.Errorf("%w: modulus too small for an exponent", domain.ErrParameter)
	}
	return e.randomInRange(p)
}

// randomInRange draws uniformly from [2, p-2].
func (e *Engine) randomInRange(p *big.Int) (*big.Int, error) {
	span := new(big.Int).Sub(p, three)
	x, err := rand.Int(e.rand, span)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRandomness, err)
	}
	return x.Add(x, two), nil
}

// ComputePublic returns g^x mod p.
func (e *Engine) ComputePublic(g, x, p *big.Int) *big.Int {
	return new(big.Int).Exp(g, x, p)
}

// ValidatePublicValue rejects any value outside [2, p-2].
func (e *Engine) ValidatePublicValue(v, p *big.Int) error {
	return ValidatePublicValue(v, p)
}

// ValidatePublicValue rejects any value outside [2, p-2]. Values 0, 1, p-1
// and anything at or above p fall in small subgroups or are not group
// elements at all.
func ValidatePublicValue(v, p *big.Int) error {
	if v == nil || p == nil {
		return domain.ErrInvalidPublicValue
	}
	if v.Cmp(one) <= 0 {
		return fmt.Errorf("%w: value <= 1", domain.ErrInvalidPublicValue)
	}
	if v.Cmp(new(big.Int).Sub(p, one)) >= 0 {
		return fmt.Errorf("%w: value >= p-1", domain.ErrInvalidPublicValue)
	}
	return nil
}

// ComputeSharedSecret validates remote and returns remote^x mod p.
func (e *Engine) ComputeSharedSecret(remote, x, p *big.Int) (*big.Int, error) {
	if err := ValidatePublicValue(remote, p); err != nil {
		return nil, err
	}
	return new(big.Int).Exp(remote, x, p), nil
}

// ValidateParameters checks a group offered by a peer: p must be a probable
// prime of at least MinBits and at most MaxBits bits, and 1 < g < p. Sizes
// are checked before the primality test.
func (e *Engine) ValidateParameters(params domain.Params) error {
	if params.P == nil || params.G == nil {
		return fmt.Errorf("%w: missing modulus or generator", domain.ErrCryptoValidation)
	}
	bits := params.P.BitLen()
	if bits < e.minBits {
		return fmt.Errorf("%w: modulus is %d bits, need at least %d", domain.ErrCryptoValidation, bits, e.minBits)
	}
	if e.maxBits > 0 && bits > e.maxBits {
		return fmt.Errorf("%w: modulus is %d bits, limit is %d", domain.ErrCryptoValidation, bits, e.maxBits)
	}
	if params.G.Cmp(one) <= 0 || params.G.Cmp(params.P) >= 0 {
		return fmt.Errorf("%w: generator out of range", domain.ErrCryptoValidation)
	}
	if !params.P.ProbablyPrime(primalityRounds) {
		return fmt.Errorf("%w: modulus is not prime", domain.ErrCryptoValidation)
	}
	return nil
}
