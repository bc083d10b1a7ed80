// Package main provides the entry point for rv32cache, a two-level
// memory subsystem model (I-Cache, D-Cache, bus arbiter) sitting between
// a pipelined RV32I CPU and a single-word-transfer memory bus.
//
// For the full CLI, use: go run ./cmd/rv32cache
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("rv32cache - RV32I memory subsystem model")
	fmt.Println("")
	fmt.Println("Usage: rv32cache -trace <trace.json> [-image <mem.bin>] [-config <config.json>]")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -image     Path to a flat binary memory image loaded at address 0")
	fmt.Println("  -trace     Path to a JSON trace of CPU requests to replay")
	fmt.Println("  -config    Path to a system configuration JSON file")
	fmt.Println("  -v         Verbose logging")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/rv32cache' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/rv32cache' instead.")
	}
}
