package provider

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// CatalogEntry 目录中的一个提供商
type CatalogEntry struct {
	Name        string        `yaml:"name" json:"name"`
	URL         string        `yaml:"url" json:"url"`
	Expires     time.Duration `yaml:"expires" json:"expires"`
	Description string        `yaml:"description" json:"description"`
}

// Catalog 提供商目录，由 list 命令与 /api/providers 展示
type Catalog struct {
	Providers []CatalogEntry `yaml:"providers" json:"providers"`
}

// LoadCatalog 读取目录文件，path 为空时使用内置目录
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return ParseCatalog(defaultCatalog)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog 解析 YAML 目录
func ParseCatalog(data []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for i, entry := range catalog.Providers {
		if entry.Name == "" {
			return nil, fmt.Errorf("parse catalog: provider #%d has no name", i+1)
		}
	}
	return &catalog, nil
}

// Names 返回目录中的提供商名称
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Providers))
	for _, entry := range c.Providers {
		names = append(names, entry.Name)
	}
	return names
}
