package config

import (
	"errors"
	"fmt"

	"github.com/emirbartu/terminal-helper/internal/ragerr"
)

// Validate checks that cfg is internally consistent, per spec §7's Config
// error kind: invalid weights (both zero or negative), non-positive k,
// or a dimension that can't be used to allocate a vector.
func Validate(cfg *RAGConfig) error {
	var errs []error

	if cfg.Hybrid.WeightBM25 < 0 || cfg.Hybrid.WeightVector < 0 {
		errs = append(errs, errors.New("hybrid weights must be non-negative"))
	}
	if cfg.Hybrid.WeightBM25 == 0 && cfg.Hybrid.WeightVector == 0 {
		errs = append(errs, errors.New("hybrid weights cannot both be zero"))
	}
	if cfg.Hybrid.DefaultK <= 0 {
		errs = append(errs, errors.New("hybrid default_k must be positive"))
	}
	if cfg.Embedder.Dimension <= 0 {
		errs = append(errs, errors.New("embedder dimension must be positive"))
	}
	if cfg.Walk.MaxFiles <= 0 {
		errs = append(errs, errors.New("walk max_files must be positive"))
	}
	if cfg.Walk.BatchSize <= 0 {
		errs = append(errs, errors.New("walk batch_size must be positive"))
	}

	if len(errs) == 0 {
		return nil
	}
	return ragerr.Wrap(ragerr.ErrConfig, fmt.Sprintf("%d configuration error(s)", len(errs)), errors.Join(errs...))
}
