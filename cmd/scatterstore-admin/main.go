// Package main is the entry point for scatterstore-admin, the stateful
// frontend's id-index export/import tool.
package main

import (
	"flag"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/dustin/go-humanize"

	"github.com/scatterstore/scatterstore/internal/config"
	"github.com/scatterstore/scatterstore/internal/serialization"
)

func resolveIndex(configPath string) (path, table string, err error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", "", err
	}
	path = cfg.Frontend.Path
	if path == "" {
		path = "./data/index.db"
	}
	table = cfg.Frontend.Name
	if table == "" {
		table = "objects"
	}
	return path, table, nil
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: scatterstore-admin <export|import> [flags]")
		os.Exit(1)
	}

	command := os.Args[1]
	switch command {
	case "export":
		os.Exit(runExport(os.Args[2:]))
	case "import":
		os.Exit(runImport(os.Args[2:]))
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\nUsage: scatterstore-admin <export|import> [flags]\n", command)
		os.Exit(1)
	}
}

func runExport(args []string) int {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", "scatterstore.yaml", "Config file path")
	dbPath := fs.String("db", "", "Index database path (overrides config)")
	table := fs.String("table", "", "Index table name (overrides config)")
	output := fs.String("output", "-", "Output file path (- for stdout)")
	fs.Parse(args)

	db, tbl := *dbPath, *table
	if db == "" || tbl == "" {
		cfgDB, cfgTable, err := resolveIndex(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
			return 1
		}
		if db == "" {
			db = cfgDB
		}
		if tbl == "" {
			tbl = cfgTable
		}
	}

	result, err := serialization.Export(db, tbl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error exporting: %v\n", err)
		return 1
	}

	if *output == "-" {
		fmt.Println(result)
	} else {
		if err := os.WriteFile(*output, []byte(result+"\n"), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Exported %s to %s\n", humanize.Bytes(uint64(len(result))), *output)
	}
	return 0
}

func runImport(args []string) int {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", "scatterstore.yaml", "Config file path")
	dbPath := fs.String("db", "", "Index database path (overrides config)")
	table := fs.String("table", "", "Index table name (overrides config)")
	input := fs.String("input", "-", "Input file path (- for stdin)")
	replace := fs.Bool("replace", false, "Replace mode (DELETE then INSERT)")
	fs.Parse(args)

	db, tbl := *dbPath, *table
	if db == "" || tbl == "" {
		cfgDB, cfgTable, err := resolveIndex(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
			return 1
		}
		if db == "" {
			db = cfgDB
		}
		if tbl == "" {
			tbl = cfgTable
		}
	}

	var jsonData []byte
	var err error
	if *input == "-" {
		jsonData, err = os.ReadFile("/dev/stdin")
	} else {
		jsonData, err = os.ReadFile(*input)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		return 1
	}

	result, err := serialization.Import(db, tbl, string(jsonData), &serialization.ImportOptions{Replace: *replace})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error importing: %v\n", err)
		return 1
	}

	fmt.Fprintf(os.Stderr, "imported %s (%d entries, %d skipped)\n", humanize.Bytes(uint64(len(jsonData))), result.Inserted, result.Skipped)
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "  WARNING: %s\n", w)
	}
	return 0
}
