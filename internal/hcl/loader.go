package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/blockorder/internal/config"
	"github.com/specialistvlad/blockorder/internal/ctxlog"
	"github.com/specialistvlad/blockorder/internal/fsutil"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

func (l *Loader) Extensions() []string { return []string{".hcl"} }

// Load parses every .hcl file under paths. Files are parsed in two passes:
// section blocks first, so that the volume block size is known when write
// expressions are evaluated.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	var files []string
	for _, p := range paths {
		found, err := fsutil.FindFilesByExtension(p, l.Extensions()...)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()
	contents := make([]*hcl.BodyContent, 0, len(files))
	model := &config.Model{}

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		content, diags := hclFile.Body.Content(rootSchema)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}
		part, err := l.translateSections(content)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		if err := model.Merge(part); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		contents = append(contents, content)
	}

	blockSize := config.DefaultBlockSize
	if model.Volume != nil && model.Volume.BlockSize > 0 {
		blockSize = model.Volume.BlockSize
	}
	evalCtx := evalContext(blockSize)

	for _, content := range contents {
		ops, err := l.translateWorkload(content, evalCtx)
		if err != nil {
			return nil, err
		}
		model.Workload = append(model.Workload, ops...)
	}

	logger.Debug("HCL loading complete.", "files", len(files), "ops", len(model.Workload))
	return model, nil
}

var _ config.Loader = (*Loader)(nil)
