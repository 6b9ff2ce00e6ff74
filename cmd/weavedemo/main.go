// Command weavedemo is a small CLI tour of the engine: it starts a
// handful of replicas, has each make local edits to a shared document,
// forks and syncs them pairwise, and prints the converged result.
//
// It plays the same role as the teacher's cmd/demo, minus the HTTP
// server and debug-dump machinery — there's no façade or transport in
// scope here (see §1), just the replica API directly.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mtkira/weavetext/hierarchy"
	"github.com/mtkira/weavetext/replica"
)

var (
	verbose = flag.Bool("verbose", false, "log replica internals at debug level")
	doc     = flag.String("doc", "scratch", "name of the shared text container")
)

func main() {
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	a := replica.New(replica.Config{})
	b := replica.New(replica.Config{})
	c := replica.New(replica.Config{})

	docA, docB, docC := a.GetText(*doc), b.GetText(*doc), c.GetText(*doc)

	docA.Subscribe(func(e hierarchy.Event) {
		fmt.Printf("A observed a %s mutation, value now %q\n", localOrRemote(e.Local), docA.GetValue())
	}, false)

	must(docA.Insert(0, "hello"))
	sync(a, b)
	must(docB.Insert(5, " world"))
	must(docC.Insert(0, "concurrent"))
	sync(b, c)
	sync(a, c)
	sync(a, b)

	fmt.Printf("A: %q\n", docA.GetValue())
	fmt.Printf("B: %q\n", docB.GetValue())
	fmt.Printf("C: %q\n", docC.GetValue())

	if docA.GetValue() != docB.GetValue() || docB.GetValue() != docC.GetValue() {
		fmt.Fprintln(os.Stderr, "replicas did not converge")
		os.Exit(1)
	}
	fmt.Println("converged.")
}

// sync performs the two-way exchange §8 calls sync(R_i, R_j): each side
// imports whatever the other has that it's missing.
func sync(x, y *replica.Replica) {
	must(importFrom(y, x))
	must(importFrom(x, y))
}

func importFrom(src, dst *replica.Replica) error {
	payload, err := src.Export(dst.VV())
	if err != nil {
		return err
	}
	return dst.Import(payload)
}

func must(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "weavedemo:", err)
		os.Exit(1)
	}
}

func localOrRemote(local bool) string {
	if local {
		return "local"
	}
	return "remote"
}
