// Command graphrepl is a thin embedding example: it reads statements
// from stdin, one per line, runs each against an in-memory graph, and
// prints the resulting record. It is a demonstration of the engine
// package's embedding surface, not part of the core contract — no
// server, no persistence, no environment variables.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/arborix/graphdb/pkg/config"
	"github.com/arborix/graphdb/pkg/engine"
	"github.com/arborix/graphdb/pkg/graph"
)

func main() {
	configPath := flag.String("config", "", "optional YAML file of engine options")
	flag.Parse()

	opts := config.Defaults()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "graphrepl: %v\n", err)
			os.Exit(1)
		}
		opts = loaded
	}
	if err := opts.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "graphrepl: invalid options: %v\n", err)
		os.Exit(1)
	}

	g := graph.New()
	se := engine.NewSerializedEngine(g, opts)
	runLoop(os.Stdin, os.Stdout, se)
}

func runLoop(in io.Reader, out io.Writer, se *engine.SerializedEngine) {
	scanner := bufio.NewScanner(in)
	enc := json.NewEncoder(out)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		res := se.Execute(line)
		if err := enc.Encode(res); err != nil {
			fmt.Fprintf(os.Stderr, "graphrepl: encode result: %v\n", err)
		}
	}
}
