// Package config loads the optional diorama.hcl configuration file.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/diorama-project/diorama/internal/archive"
)

// Config holds the tool-level settings. Zero values mean "use defaults".
type Config struct {
	StagingRoot      string `hcl:"staging_root,optional"`
	CatalogPath      string `hcl:"catalog,optional"`
	CompressionLevel int    `hcl:"compression_level,optional"`
}

// Default returns the built-in settings: platform temp root for staging,
// no catalog, default deflate level.
func Default() Config {
	return Config{CompressionLevel: archive.DefaultCompressionLevel}
}

// Load reads an HCL config file. A missing file is not an error — the
// defaults apply; a present-but-invalid file is.
func Load(path string) (Config, error) {
	cfg := Default()

	src, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, path)
	if diags.HasErrors() {
		return cfg, fmt.Errorf("parse config %s: %w", path, diags)
	}
	if diags := gohcl.DecodeBody(file.Body, nil, &cfg); diags.HasErrors() {
		return cfg, fmt.Errorf("decode config %s: %w", path, diags)
	}
	if cfg.CompressionLevel == 0 {
		cfg.CompressionLevel = archive.DefaultCompressionLevel
	}
	return cfg, nil
}
