// Package config loads the retrieval engine's tunables: BM25 parameters,
// tokenizer options, chunking targets, the embedder endpoint, and hybrid
// fusion weights. It follows the same precedence as project-cortex's
// config loader: defaults, then a project-local YAML file, then
// environment variables (env wins).
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// RAGConfig is the complete configuration for one project's retrieval
// engine.
type RAGConfig struct {
	BM25      BM25Config      `yaml:"bm25" mapstructure:"bm25"`
	Tokenizer TokenizerConfig `yaml:"tokenizer" mapstructure:"tokenizer"`
	Chunking  ChunkingConfig  `yaml:"chunking" mapstructure:"chunking"`
	Embedder  EmbedderConfig  `yaml:"embedder" mapstructure:"embedder"`
	Hybrid    HybridConfig    `yaml:"hybrid" mapstructure:"hybrid"`
	Walk      WalkConfig      `yaml:"walk" mapstructure:"walk"`
}

// BM25Config fixes the Okapi parameters for the life of an index (spec §4.D).
type BM25Config struct {
	K1      float64 `yaml:"k1" mapstructure:"k1"`
	B       float64 `yaml:"b" mapstructure:"b"`
	Epsilon float64 `yaml:"epsilon" mapstructure:"epsilon"`
}

// TokenizerConfig toggles the stages of the lexical pipeline (spec §4.C).
type TokenizerConfig struct {
	Lowercase      bool `yaml:"lowercase" mapstructure:"lowercase"`
	CodeSplit      bool `yaml:"code_split" mapstructure:"code_split"`
	StopwordRemove bool `yaml:"stopword_remove" mapstructure:"stopword_remove"`
	Stem           bool `yaml:"stem" mapstructure:"stem"`
}

// ChunkingConfig bounds the chunker's target region size (spec §4.B, §9
// Open Question decision: line-based budget with overlap).
type ChunkingConfig struct {
	TargetLines  int `yaml:"target_lines" mapstructure:"target_lines"`
	OverlapLines int `yaml:"overlap_lines" mapstructure:"overlap_lines"`
	MaxChars     int `yaml:"max_chars" mapstructure:"max_chars"`
}

// EmbedderConfig points at the out-of-process embedder (spec §4.E).
type EmbedderConfig struct {
	Endpoint   string `yaml:"endpoint" mapstructure:"endpoint"`
	Dimension  int    `yaml:"dimension" mapstructure:"dimension"`
	TimeoutSec int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// HybridConfig carries the fusion weights and default result size (spec §4.H).
type HybridConfig struct {
	WeightBM25   float64 `yaml:"weight_bm25" mapstructure:"weight_bm25"`
	WeightVector float64 `yaml:"weight_vector" mapstructure:"weight_vector"`
	DefaultK     int     `yaml:"default_k" mapstructure:"default_k"`
}

// WalkConfig carries indexing limits and extra exclude globs (spec §4.A, §4.I).
type WalkConfig struct {
	MaxFiles     int      `yaml:"max_files" mapstructure:"max_files"`
	BatchSize    int      `yaml:"batch_size" mapstructure:"batch_size"`
	ExcludeGlobs []string `yaml:"exclude_globs" mapstructure:"exclude_globs"`
}

// Default returns the engine's built-in defaults, the values spec.md
// names explicitly where it names any.
func Default() *RAGConfig {
	return &RAGConfig{
		BM25: BM25Config{K1: 1.2, B: 0.75, Epsilon: 0.25},
		Tokenizer: TokenizerConfig{
			Lowercase:      true,
			CodeSplit:      true,
			StopwordRemove: true,
			Stem:           true,
		},
		Chunking: ChunkingConfig{
			TargetLines:  40,
			OverlapLines: 8,
			MaxChars:     4000,
		},
		Embedder: EmbedderConfig{
			Endpoint:   "http://127.0.0.1:8787",
			Dimension:  768,
			TimeoutSec: 30,
		},
		Hybrid: HybridConfig{
			WeightBM25:   0.3,
			WeightVector: 0.7,
			DefaultK:     5,
		},
		Walk: WalkConfig{
			MaxFiles:  1000,
			BatchSize: 20,
		},
	}
}

// Loader loads configuration for a given project root.
type Loader interface {
	Load() (*RAGConfig, error)
}

type loader struct {
	projectRoot string
}

// NewLoader creates a Loader rooted at projectRoot.
func NewLoader(projectRoot string) Loader {
	return &loader{projectRoot: projectRoot}
}

// Load reads configuration with priority (highest to lowest):
//  1. TERMINAL_HELPER_* environment variables
//  2. <project_root>/.terminal_helper/rag.yml
//  3. Default()
func (l *loader) Load() (*RAGConfig, error) {
	v := viper.New()

	cfg := Default()
	v.SetConfigName("rag")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(l.projectRoot, ".terminal_helper"))

	v.SetEnvPrefix("TERMINAL_HELPER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading rag config: %w", err)
		}
	}

	out := Default()
	if err := v.Unmarshal(out); err != nil {
		return nil, fmt.Errorf("decoding rag config: %w", err)
	}
	return out, nil
}

// bindDefaults seeds viper with Go-side defaults so unset keys in both
// the file and the environment fall back to cfg's values.
func bindDefaults(v *viper.Viper, cfg *RAGConfig) {
	v.SetDefault("bm25.k1", cfg.BM25.K1)
	v.SetDefault("bm25.b", cfg.BM25.B)
	v.SetDefault("bm25.epsilon", cfg.BM25.Epsilon)

	v.SetDefault("tokenizer.lowercase", cfg.Tokenizer.Lowercase)
	v.SetDefault("tokenizer.code_split", cfg.Tokenizer.CodeSplit)
	v.SetDefault("tokenizer.stopword_remove", cfg.Tokenizer.StopwordRemove)
	v.SetDefault("tokenizer.stem", cfg.Tokenizer.Stem)

	v.SetDefault("chunking.target_lines", cfg.Chunking.TargetLines)
	v.SetDefault("chunking.overlap_lines", cfg.Chunking.OverlapLines)
	v.SetDefault("chunking.max_chars", cfg.Chunking.MaxChars)

	v.SetDefault("embedder.endpoint", cfg.Embedder.Endpoint)
	v.SetDefault("embedder.dimension", cfg.Embedder.Dimension)
	v.SetDefault("embedder.timeout_seconds", cfg.Embedder.TimeoutSec)

	v.SetDefault("hybrid.weight_bm25", cfg.Hybrid.WeightBM25)
	v.SetDefault("hybrid.weight_vector", cfg.Hybrid.WeightVector)
	v.SetDefault("hybrid.default_k", cfg.Hybrid.DefaultK)

	v.SetDefault("walk.max_files", cfg.Walk.MaxFiles)
	v.SetDefault("walk.batch_size", cfg.Walk.BatchSize)
	v.SetDefault("walk.exclude_globs", cfg.Walk.ExcludeGlobs)
}
