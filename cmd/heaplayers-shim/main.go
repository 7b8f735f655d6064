// Command heaplayers-shim builds the process-wide interposition surface
// (spec.md §4.9) into a C shared library: `go build -buildmode=c-shared
// -o libheaplayers.so ./cmd/heaplayers-shim` produces a .so/.h pair whose
// exported heaplayers_malloc/free/calloc/realloc/... symbols (internal/shim's
// cexports.go) can be LD_PRELOADed or linked against directly. There is
// nothing to run directly; main only exists because -buildmode=c-shared
// requires a package main with a main function.
package main

import (
	_ "github.com/heaplayers-go/heaplayers/internal/shim"
)

func main() {}
