// Package config defines the format-agnostic configuration model for the
// application, along with the Loader interface for reading it from files.
//
// The `config.Model` is the single source of truth for the `app` package: it
// sizes the scheduler, selects the volume, and lists the workload to replay.
// Concrete loaders, such as for HCL and YAML, are provided in separate
// packages.
package config
