package hcl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/specialistvlad/blockorder/internal/config"
)

// translateSections decodes the scheduler, volume and trace blocks of one
// file. Each may appear at most once.
func (l *Loader) translateSections(content *hcl.BodyContent) (*config.Model, error) {
	m := &config.Model{}
	seen := make(map[string]hcl.Range)

	for _, block := range content.Blocks {
		switch block.Type {
		case "scheduler", "volume", "trace":
		default:
			continue
		}
		if prev, dup := seen[block.Type]; dup {
			return nil, fmt.Errorf("%s: %s block already declared at %s", block.DefRange, block.Type, prev)
		}
		seen[block.Type] = block.DefRange

		switch block.Type {
		case "scheduler":
			var s schedulerBlock
			if diags := gohcl.DecodeBody(block.Body, nil, &s); diags.HasErrors() {
				return nil, diags
			}
			m.Scheduler = &config.Scheduler{}
			if s.MaxJobs != nil {
				m.Scheduler.MaxJobs = *s.MaxJobs
			}
			if s.MaxLinks != nil {
				m.Scheduler.MaxLinks = *s.MaxLinks
			}
		case "volume":
			var v volumeBlock
			if diags := gohcl.DecodeBody(block.Body, nil, &v); diags.HasErrors() {
				return nil, diags
			}
			m.Volume = &config.Volume{Driver: v.Driver, Path: v.Path}
			if v.BlockSize != nil {
				m.Volume.BlockSize = *v.BlockSize
			}
		case "trace":
			var t traceBlock
			if diags := gohcl.DecodeBody(block.Body, nil, &t); diags.HasErrors() {
				return nil, diags
			}
			m.Trace = &config.Trace{URL: t.URL, Namespace: t.Namespace, Buffer: t.Buffer}
		}
	}
	return m, nil
}

// translateWorkload converts write and anchor blocks, in source order, into
// workload operations.
func (l *Loader) translateWorkload(content *hcl.BodyContent, evalCtx *hcl.EvalContext) ([]*config.Op, error) {
	var ops []*config.Op
	for _, block := range content.Blocks {
		switch block.Type {
		case "write":
			var w writeBlock
			if diags := gohcl.DecodeBody(block.Body, evalCtx, &w); diags.HasErrors() {
				return nil, diags
			}
			if w.Block < 0 {
				return nil, fmt.Errorf("%s: block number must not be negative, got %d", block.DefRange, w.Block)
			}
			ops = append(ops, &config.Op{
				Kind:      config.OpWrite,
				Name:      block.Labels[0],
				Block:     uint64(w.Block),
				Data:      w.Data,
				DependsOn: w.DependsOn,
				Source:    block.DefRange.String(),
			})
		case "anchor":
			var a anchorBlock
			if diags := gohcl.DecodeBody(block.Body, evalCtx, &a); diags.HasErrors() {
				return nil, diags
			}
			ops = append(ops, &config.Op{
				Kind:      config.OpAnchor,
				Name:      block.Labels[0],
				DependsOn: a.DependsOn,
				Source:    block.DefRange.String(),
			})
		}
	}
	return ops, nil
}
