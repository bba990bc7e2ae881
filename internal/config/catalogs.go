package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/harun/taskgate/pkg/approval"
	"github.com/harun/taskgate/pkg/model"
)

// Catalog files keep their keys verbatim: tool and parameter names are case
// sensitive, so they are decoded with encoding/json rather than viper, which
// folds keys to lower case.

type toolCatalogFile struct {
	Tools map[string]approval.ToolSpec `json:"tools"`
}

type modelCatalogFile struct {
	Models map[string]model.Params `json:"models"`
}

// LoadToolCatalog reads a tool configuration file:
//
//	{"tools": {"scrape_website": {"approval_required": true, "params": {"url": "string"}, "description": "..."}}}
func LoadToolCatalog(path string) (*approval.Catalog, error) {
	var file toolCatalogFile
	if err := readJSON(path, &file); err != nil {
		return nil, fmt.Errorf("failed to load tool config: %w", err)
	}
	if file.Tools == nil {
		return nil, fmt.Errorf("failed to load tool config: %s has no \"tools\" section", path)
	}

	catalog, err := approval.NewCatalog(file.Tools)
	if err != nil {
		return nil, fmt.Errorf("failed to load tool config: %w", err)
	}
	return catalog, nil
}

// LoadModelCatalog reads a model configuration file:
//
//	{"models": {"gpt-4o-mini": {"temperature": 0.7, "max_tokens": 256, "top_p": 1}}}
func LoadModelCatalog(path string) (*model.Catalog, error) {
	var file modelCatalogFile
	if err := readJSON(path, &file); err != nil {
		return nil, fmt.Errorf("failed to load model config: %w", err)
	}
	if file.Models == nil {
		return nil, fmt.Errorf("failed to load model config: %s has no \"models\" section", path)
	}

	catalog, err := model.NewCatalog(file.Models)
	if err != nil {
		return nil, fmt.Errorf("failed to load model config: %w", err)
	}
	return catalog, nil
}

func readJSON(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid JSON in %s: %w", path, err)
	}
	return nil
}
