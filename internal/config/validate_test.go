package config

import (
	"errors"
	"testing"

	"github.com/emirbartu/terminal-helper/internal/ragerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_AcceptsDefaults(t *testing.T) {
	assert.NoError(t, Validate(Default()))
}

func TestValidate_RejectsNegativeWeights(t *testing.T) {
	cfg := Default()
	cfg.Hybrid.WeightBM25 = -1

	err := Validate(cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ragerr.ErrConfig))
}

func TestValidate_RejectsBothWeightsZero(t *testing.T) {
	cfg := Default()
	cfg.Hybrid.WeightBM25 = 0
	cfg.Hybrid.WeightVector = 0

	err := Validate(cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ragerr.ErrConfig))
}

func TestValidate_RejectsNonPositiveK(t *testing.T) {
	cfg := Default()
	cfg.Hybrid.DefaultK = 0

	err := Validate(cfg)
	require.Error(t, err)
}

func TestValidate_RejectsNonPositiveDimension(t *testing.T) {
	cfg := Default()
	cfg.Embedder.Dimension = -5

	err := Validate(cfg)
	require.Error(t, err)
}

func TestValidate_AccumulatesMultipleErrors(t *testing.T) {
	cfg := Default()
	cfg.Hybrid.DefaultK = 0
	cfg.Embedder.Dimension = 0

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 configuration error(s)")
}
