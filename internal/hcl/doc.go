// Package hcl provides the HCL implementation of config.Loader. It is
// responsible for file parsing, expression evaluation and HCL-to-model
// translation.
//
// A workload file looks like:
//
//	volume {
//	  driver     = "sqlite"
//	  path       = "blocks.db"
//	  block_size = 512
//	}
//
//	write "data" {
//	  block = 10
//	  data  = format("%s-%d", "payload", block_size)
//	}
//
//	anchor "barrier" {
//	  depends_on = ["data"]
//	}
//
// Blocks are replayed in the order they are declared. Expressions can use the
// `block_size` variable and the upper, lower, format, join and strlen
// functions.
package hcl
