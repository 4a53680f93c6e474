package hcl

import (
	"github.com/hashicorp/hcl/v2"
)

// rootSchema lists every top-level block. Content is read through the
// low-level API so that write and anchor blocks keep their relative order.
var rootSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "scheduler"},
		{Type: "volume"},
		{Type: "trace"},
		{Type: "write", LabelNames: []string{"name"}},
		{Type: "anchor", LabelNames: []string{"name"}},
	},
}

type schedulerBlock struct {
	MaxJobs  *int `hcl:"max_jobs,optional"`
	MaxLinks *int `hcl:"max_links,optional"`
}

type volumeBlock struct {
	Driver    string `hcl:"driver,optional"`
	Path      string `hcl:"path,optional"`
	BlockSize *int   `hcl:"block_size,optional"`
}

type traceBlock struct {
	URL       string `hcl:"url"`
	Namespace string `hcl:"namespace,optional"`
	Buffer    int    `hcl:"buffer,optional"`
}

type writeBlock struct {
	Block     int64    `hcl:"block"`
	Data      string   `hcl:"data,optional"`
	DependsOn []string `hcl:"depends_on,optional"`
}

type anchorBlock struct {
	DependsOn []string `hcl:"depends_on,optional"`
}
