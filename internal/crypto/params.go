package crypto

import (
	"context"

	"dhke/internal/domain"
)

// StaticSource serves one immutable group to every session.
type StaticSource struct {
	params domain.Params
}

// NewStaticSource copies params so later changes by the caller are not seen.
func NewStaticSource(params domain.Params) *StaticSource {
	return &StaticSource{params: domain.NewParams(params.P, params.G)}
}

// Params returns a private copy of the shared group.
func (s *StaticSource) Params(context.Context) (domain.Params, error) {
	return domain.NewParams(s.params.P, s.params.G), nil
}

// GeneratingSource builds a fresh group for every session.
type GeneratingSource struct {
	engine *Engine
	bits   int
}

// NewGeneratingSource returns a source that calls engine.GenerateParameters(bits)
// on every request.
func NewGeneratingSource(engine *Engine, bits int) *GeneratingSource {
	return &GeneratingSource{engine: engine, bits: bits}
}

// Params generates a new group unless ctx is already done.
func (s *GeneratingSource) Params(ctx context.Context) (domain.Params, error) {
	if err := ctx.Err(); err != nil {
		return domain.Params{}, err
	}
	return s.engine.GenerateParameters(s.bits)
}

var (
	_ domain.ParamSource = (*StaticSource)(nil)
	_ domain.ParamSource = (*GeneratingSource)(nil)
)
