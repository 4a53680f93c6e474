// Package yamlcfg provides the YAML implementation of config.Loader.
//
//	volume:
//	  driver: memory
//	  block_size: 512
//	workload:
//	  - write: {name: data, block: 10, data: payload}
//	  - anchor: {name: barrier, depends_on: [data]}
//
// Each workload item holds exactly one of write or anchor.
package yamlcfg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/specialistvlad/blockorder/internal/config"
	"github.com/specialistvlad/blockorder/internal/ctxlog"
	"github.com/specialistvlad/blockorder/internal/fsutil"
	"gopkg.in/yaml.v3"
)

type document struct {
	Scheduler *struct {
		MaxJobs  int `yaml:"max_jobs"`
		MaxLinks int `yaml:"max_links"`
	} `yaml:"scheduler"`
	Volume *struct {
		Driver    string `yaml:"driver"`
		Path      string `yaml:"path"`
		BlockSize int    `yaml:"block_size"`
	} `yaml:"volume"`
	Trace *struct {
		URL       string `yaml:"url"`
		Namespace string `yaml:"namespace"`
		Buffer    int    `yaml:"buffer"`
	} `yaml:"trace"`
	Workload []item `yaml:"workload"`
}

type item struct {
	Write  *writeOp  `yaml:"write"`
	Anchor *anchorOp `yaml:"anchor"`
	line   int
}

type writeOp struct {
	Name      string   `yaml:"name"`
	Block     uint64   `yaml:"block"`
	Data      string   `yaml:"data"`
	DependsOn []string `yaml:"depends_on"`
}

type anchorOp struct {
	Name      string   `yaml:"name"`
	DependsOn []string `yaml:"depends_on"`
}

// UnmarshalYAML records the source line of every workload item.
func (it *item) UnmarshalYAML(node *yaml.Node) error {
	type plain item
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*it = item(p)
	it.line = node.Line
	return nil
}

// Loader is the YAML-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new YAML configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

func (l *Loader) Extensions() []string { return []string{".yaml", ".yml"} }

func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	var files []string
	for _, p := range paths {
		found, err := fsutil.FindFilesByExtension(p, l.Extensions()...)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	logger.Debug("Discovered YAML files.", "count", len(files))

	model := &config.Model{}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		part, err := parse(file, data)
		if err != nil {
			return nil, err
		}
		if err := model.Merge(part); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
	}

	logger.Debug("YAML loading complete.", "files", len(files), "ops", len(model.Workload))
	return model, nil
}

func parse(file string, data []byte) (*config.Model, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode YAML file %s: %w", file, err)
	}

	m := &config.Model{}
	if doc.Scheduler != nil {
		m.Scheduler = &config.Scheduler{MaxJobs: doc.Scheduler.MaxJobs, MaxLinks: doc.Scheduler.MaxLinks}
	}
	if doc.Volume != nil {
		m.Volume = &config.Volume{Driver: doc.Volume.Driver, Path: doc.Volume.Path, BlockSize: doc.Volume.BlockSize}
	}
	if doc.Trace != nil {
		m.Trace = &config.Trace{URL: doc.Trace.URL, Namespace: doc.Trace.Namespace, Buffer: doc.Trace.Buffer}
	}

	for _, it := range doc.Workload {
		source := fmt.Sprintf("%s:%d", file, it.line)
		switch {
		case it.Write != nil && it.Anchor != nil:
			return nil, fmt.Errorf("%s: workload item holds both write and anchor", source)
		case it.Write != nil:
			m.Workload = append(m.Workload, &config.Op{
				Kind:      config.OpWrite,
				Name:      it.Write.Name,
				Block:     it.Write.Block,
				Data:      it.Write.Data,
				DependsOn: it.Write.DependsOn,
				Source:    source,
			})
		case it.Anchor != nil:
			m.Workload = append(m.Workload, &config.Op{
				Kind:      config.OpAnchor,
				Name:      it.Anchor.Name,
				DependsOn: it.Anchor.DependsOn,
				Source:    source,
			})
		default:
			return nil, fmt.Errorf("%s: workload item holds neither write nor anchor", source)
		}
	}
	return m, nil
}

var _ config.Loader = (*Loader)(nil)
