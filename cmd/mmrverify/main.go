// mmrverify verifies an inclusion proof envelope fully offline. It needs
// no daemon and no node store: the envelope plus the candidate data are
// enough to recompute the committed root.
//
// Exit codes: 0 verified, 1 rejected, 2 usage or malformed input.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"mmrd/internal/mmr"
	"mmrd/internal/proofschema"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
	Commit    = "unknown"
)

var (
	quiet       = flag.Bool("q", false, "suppress output, exit code only")
	showVersion = flag.Bool("version", false, "show version information")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("mmrverify %s (built %s, commit %s)\n", Version, BuildTime, Commit)
		return
	}

	args := flag.Args()
	if len(args) != 2 {
		usage()
		os.Exit(2)
	}

	envelope, err := os.ReadFile(args[0])
	if err != nil {
		fail(2, "read proof: %v", err)
	}

	var data []byte
	if args[1] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[1])
	}
	if err != nil {
		fail(2, "read data: %v", err)
	}

	if err := proofschema.Validate(envelope); err != nil {
		fail(2, "%v", err)
	}

	var proof mmr.Proof
	if err := json.Unmarshal(envelope, &proof); err != nil {
		fail(2, "decode proof: %v", err)
	}

	ok, err := proof.Verify(data)
	if err != nil {
		fail(2, "%v", err)
	}
	if !ok {
		if !*quiet {
			fmt.Printf("FAIL: data is not the leaf at position %d under root %x\n", proof.Position, proof.Root)
		}
		os.Exit(1)
	}

	if !*quiet {
		fmt.Printf("OK: leaf at position %d of %d nodes, root %x (%s)\n",
			proof.Position, proof.Size, proof.Root, proof.Algorithm)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `mmrverify - offline inclusion proof verification

USAGE:
    mmrverify [flags] <proof.json> <datafile | ->

FLAGS:
    -q          suppress output, exit code only
    -version    show version information`)
}

func fail(code int, format string, args ...any) {
	if !*quiet {
		fmt.Fprintf(os.Stderr, "mmrverify: "+format+"\n", args...)
	}
	os.Exit(code)
}
