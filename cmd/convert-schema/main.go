package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/Nels2/mcp-trmm/pkg/loader"
)

func main() {
	to := flag.String("to", "json", "output format: json or yaml")
	out := flag.String("o", "", "output file (default: stdout)")
	indent := flag.Int("indent", 4, "JSON indent width")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: convert-schema [-to json|yaml] [-o file] <input>\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	doc, err := loader.Decode(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	var converted []byte
	switch strings.ToLower(*to) {
	case "json":
		converted, err = loader.ToJSON(doc, strings.Repeat(" ", *indent))
	case "yaml", "yml":
		converted, err = loader.ToYAML(doc)
	default:
		err = fmt.Errorf("unknown output format %q", *to)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *out == "" {
		os.Stdout.Write(converted)
		return
	}
	if err := os.WriteFile(*out, converted, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s (%d bytes)\n", *out, len(converted))
}
