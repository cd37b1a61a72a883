// Fixturegen writes reference database fixtures for every format variant,
// each with a JSON companion describing its exact contents.
//
// Usage:
//
//	go run ./cmd/fixturegen -out testdata -plan basic
//
// Flags:
//
//	-out    Output directory, created if missing (default: ".")
//	-plan   Fixture plan: basic or empty (default: "basic")
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jmallard/gdbm"
	"github.com/jmallard/gdbm/internal/fixture"
)

func main() {
	outDir := flag.String("out", ".", "output directory")
	planName := flag.String("plan", "basic", "fixture plan: basic or empty")
	flag.Parse()

	if err := run(*outDir, fixture.Plan(*planName)); err != nil {
		fmt.Fprintf(os.Stderr, "fixturegen: %v\n", err)
		os.Exit(1)
	}
}

func run(outDir string, plan fixture.Plan) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	for _, m := range gdbm.Magics {
		m := m
		g.Go(func() error {
			name := fmt.Sprintf("%s_%s", plan, strings.ToLower(m.String()))
			opts := []gdbm.Option{
				gdbm.WithOffsetWidth(m.Width()),
				gdbm.WithByteOrder(m.ByteOrder()),
				gdbm.WithNumsync(m.Numsync()),
			}
			err := fixture.Generate(ctx, plan,
				filepath.Join(outDir, name+".db"),
				filepath.Join(outDir, name+".json"),
				opts...)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
