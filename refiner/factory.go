package refiner

import "go_superres/core"

// NewFromConfig returns the Refiner named by cfg.Backend, serialized with
// Exclusive and bounded by cfg.Timeout. Callers release it with Close.
func NewFromConfig(cfg *core.Config) (Refiner, error) {
	var (
		r   Refiner
		err error
	)

	switch cfg.Backend {
	case core.BackendIdentity:
		r = Identity{}
	case core.BackendLocal:
		r, err = NewLocal(cfg)
	case core.BackendOpenAI:
		r, err = NewOpenAI(cfg)
	default:
		return nil, core.ErrUnknownBackend(cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	return NewExclusive(Timeout(r, cfg.Timeout)), nil
}
