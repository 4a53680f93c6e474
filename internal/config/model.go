package config

import (
	"errors"
	"fmt"
)

// Volume drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultMaxJobs   = 256
	DefaultMaxLinks  = 1024
	DefaultBlockSize = 512
)

// Model is the unified, format-agnostic representation of the entire
// application configuration.
type Model struct {
	Scheduler *Scheduler
	Volume    *Volume
	Trace     *Trace
	Workload  []*Op
}

// Scheduler sizes the ordered job scheduler.
type Scheduler struct {
	MaxJobs  int
	MaxLinks int
}

// Volume selects the block store the cache writes back to.
type Volume struct {
	Driver    string
	Path      string
	BlockSize int
}

// Trace configures the socket.io trace publisher.
type Trace struct {
	URL       string
	Namespace string
	Buffer    int
}

// OpKind is the kind of a workload operation.
type OpKind int

const (
	// OpWrite writes one block.
	OpWrite OpKind = iota
	// OpAnchor creates a placeholder other writes can be ordered after.
	OpAnchor
)

func (k OpKind) String() string {
	switch k {
	case OpWrite:
		return "write"
	case OpAnchor:
		return "anchor"
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

// Op is one declared workload operation, replayed in declaration order.
type Op struct {
	Kind      OpKind
	Name      string
	Block     uint64
	Data      string
	DependsOn []string
	// Source is where the operation was declared, for error messages.
	Source string
}

// Merge folds other into m. Section blocks may be declared once across all
// files; workload operations are appended.
func (m *Model) Merge(other *Model) error {
	if other == nil {
		return nil
	}
	if other.Scheduler != nil {
		if m.Scheduler != nil {
			return errors.New("scheduler section declared more than once")
		}
		m.Scheduler = other.Scheduler
	}
	if other.Volume != nil {
		if m.Volume != nil {
			return errors.New("volume section declared more than once")
		}
		m.Volume = other.Volume
	}
	if other.Trace != nil {
		if m.Trace != nil {
			return errors.New("trace section declared more than once")
		}
		m.Trace = other.Trace
	}
	m.Workload = append(m.Workload, other.Workload...)
	return nil
}

// ApplyDefaults fills in omitted sections and fields.
func (m *Model) ApplyDefaults() {
	if m.Scheduler == nil {
		m.Scheduler = &Scheduler{}
	}
	if m.Scheduler.MaxJobs == 0 {
		m.Scheduler.MaxJobs = DefaultMaxJobs
	}
	if m.Scheduler.MaxLinks == 0 {
		m.Scheduler.MaxLinks = DefaultMaxLinks
	}
	if m.Volume == nil {
		m.Volume = &Volume{}
	}
	if m.Volume.Driver == "" {
		m.Volume.Driver = DriverMemory
	}
	if m.Volume.BlockSize == 0 {
		m.Volume.BlockSize = DefaultBlockSize
	}
	if m.Trace != nil && m.Trace.Namespace == "" {
		m.Trace.Namespace = "/"
	}
}

// Validate checks the model after defaults were applied. Dependencies must
// name an operation declared earlier, which also rules out cycles.
func (m *Model) Validate() error {
	if m.Scheduler == nil || m.Volume == nil {
		return errors.New("model has no scheduler or volume section, call ApplyDefaults first")
	}
	if m.Scheduler.MaxJobs <= 0 {
		return fmt.Errorf("scheduler: max_jobs must be positive, got %d", m.Scheduler.MaxJobs)
	}
	if m.Scheduler.MaxLinks < 0 {
		return fmt.Errorf("scheduler: max_links must not be negative, got %d", m.Scheduler.MaxLinks)
	}
	if m.Volume.BlockSize <= 0 {
		return fmt.Errorf("volume: block_size must be positive, got %d", m.Volume.BlockSize)
	}
	switch m.Volume.Driver {
	case DriverMemory:
	case DriverSQLite:
		if m.Volume.Path == "" {
			return errors.New("volume: the sqlite driver needs a path")
		}
	default:
		return fmt.Errorf("volume: unknown driver %q", m.Volume.Driver)
	}
	if m.Trace != nil && m.Trace.URL == "" {
		return errors.New("trace: url is required")
	}

	declared := make(map[string]OpKind, len(m.Workload))
	for _, op := range m.Workload {
		if op.Name == "" {
			return fmt.Errorf("%s: %s without a name", op.Source, op.Kind)
		}
		if _, dup := declared[op.Name]; dup {
			return fmt.Errorf("%s: %q declared more than once", op.Source, op.Name)
		}
		if op.Kind == OpWrite && len(op.Data) > m.Volume.BlockSize {
			return fmt.Errorf("%s: write %q carries %d bytes, block size is %d", op.Source, op.Name, len(op.Data), m.Volume.BlockSize)
		}
		for _, dep := range op.DependsOn {
			if _, ok := declared[dep]; !ok {
				return fmt.Errorf("%s: %s %q depends on %q, which is not declared before it", op.Source, op.Kind, op.Name, dep)
			}
		}
		declared[op.Name] = op.Kind
	}
	return nil
}
