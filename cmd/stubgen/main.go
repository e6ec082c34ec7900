// Command stubgen generates C marshalling stubs from a YAML bindings
// manifest, or interactively from typed-out signatures.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/podhmo/stubgen"
	"github.com/podhmo/stubgen/manifest"
	"github.com/podhmo/stubgen/synth"
)

const historyFile = ".stubgen_history"

func main() {
	var (
		manifestPath = flag.String("manifest", "", "bindings manifest (YAML)")
		outPath      = flag.String("out", "-", "output C file, or - for stdout")
		headerPath   = flag.String("header", "", "also write declaration-only prototypes to this file")
		threshold    = flag.Int("arity-threshold", synth.DefaultArityThreshold, "largest arity the fixed-arity call path accepts")
		unlocked     = flag.Bool("unlocked", false, "release the runtime lock around native calls")
		interactive  = flag.Bool("interactive", false, "read signatures from a prompt instead of a manifest")
		debug        = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(logger, *manifestPath, *outPath, *headerPath, *threshold, *unlocked, *interactive); err != nil {
		logger.Error("stubgen failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, manifestPath, outPath, headerPath string, threshold int, unlocked, interactive bool) error {
	policy := stubgen.Sequential
	if unlocked {
		policy = stubgen.Unlocked
	}

	if interactive {
		g, err := stubgen.New(
			stubgen.WithLogger(logger),
			stubgen.WithArityThreshold(threshold),
			stubgen.WithConcurrencyPolicy(policy),
		)
		if err != nil {
			return err
		}
		return repl(g)
	}

	if manifestPath == "" {
		return fmt.Errorf("-manifest is required (or use -interactive)")
	}
	f, err := os.Open(manifestPath)
	if err != nil {
		return fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	m, err := manifest.Load(f)
	if err != nil {
		return fmt.Errorf("load manifest %s: %w", manifestPath, err)
	}

	opts := []stubgen.Option{
		stubgen.WithLogger(logger),
		stubgen.WithArityThreshold(threshold),
		stubgen.WithConcurrencyPolicy(policy),
	}
	if m.ClosureTable != "" {
		opts = append(opts, stubgen.WithClosureTable(m.ClosureTable))
	}
	g, err := stubgen.New(opts...)
	if err != nil {
		return err
	}

	units, err := g.Generate(context.Background(), m)
	if err != nil {
		return err
	}

	// Buffer the whole file and commit only on success, so a failed run
	// never leaves partial output behind.
	var code bytes.Buffer
	if err := g.WriteCode(&code, units); err != nil {
		return err
	}
	if err := commit(outPath, code.Bytes()); err != nil {
		return err
	}
	if headerPath != "" {
		var decls bytes.Buffer
		if err := g.WriteDecls(&decls, units); err != nil {
			return err
		}
		if err := commit(headerPath, decls.Bytes()); err != nil {
			return err
		}
	}
	logger.Info("generated stubs", "count", len(units), "out", outPath)
	return nil
}

func commit(path string, data []byte) error {
	if path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func repl(g *stubgen.Generator) error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	histPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
	}
	defer func() {
		if histPath == "" {
			return
		}
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	fmt.Println(`type a signature like "int add(int, int)" or "callback int notify(int)"; empty line quits`)
	empty := &manifest.Manifest{}
	for {
		line, err := ln.Prompt("stubgen> ")
		if err == liner.ErrPromptAborted || err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return nil
		}
		ln.AppendHistory(line)

		unit, err := generateLine(g, empty, line)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		fmt.Println(unit.Code)
	}
}

// generateLine parses a single C-like signature and synthesizes its
// stub. The grammar is "[callback] ret name(type, type, ...)"; an empty
// parameter list may be spelled "()" or "(void)".
func generateLine(g *stubgen.Generator, m *manifest.Manifest, line string) (*stubgen.Unit, error) {
	isCallback := false
	if rest, ok := strings.CutPrefix(line, "callback "); ok {
		isCallback = true
		line = strings.TrimSpace(rest)
	}

	open := strings.Index(line, "(")
	if open == -1 || !strings.HasSuffix(line, ")") {
		return nil, fmt.Errorf("cannot parse %q: want ret name(params)", line)
	}
	head := strings.Fields(strings.TrimSpace(line[:open]))
	if len(head) < 2 {
		return nil, fmt.Errorf("cannot parse %q: missing return type or name", line)
	}
	name := head[len(head)-1]
	retStr := strings.Join(head[:len(head)-1], " ")

	var sig stubgen.Signature
	ret, err := m.ResolveType(retStr)
	if err != nil {
		return nil, err
	}
	sig.Return = ret

	inner := strings.TrimSpace(line[open+1 : len(line)-1])
	if inner != "" && inner != "void" {
		for _, p := range strings.Split(inner, ",") {
			t, err := m.ResolveType(p)
			if err != nil {
				return nil, err
			}
			sig.Params = append(sig.Params, t)
		}
	}

	if isCallback {
		return g.InverseStub(name, sig)
	}
	return g.ForwardStub(name, "stub_"+name, sig)
}
