package main

import (
	"fmt"
	"os"

	"github.com/artpar/yasl/core/resolve"
	"github.com/artpar/yasl/core/schema"
	"github.com/artpar/yasl/core/units"
)

// loadGraph reads, builds, and resolves a schema file.
func loadGraph(path string, reg *units.Registry) (*resolve.Graph, *schema.Model, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read schema: %w", err)
	}

	model, err := schema.NewBuilder(reg).Build(src)
	if err != nil {
		return nil, nil, err
	}

	graph, err := resolve.Resolve(model)
	if err != nil {
		return nil, nil, err
	}
	return graph, model, nil
}
