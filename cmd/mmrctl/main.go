// mmrctl is the control CLI for mmrd.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"mmrd/internal/config"
	"mmrd/internal/ipc"
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
	configPath  = flag.String("config", "", "path to config file")
	socketPath  = flag.String("socket", "", "override control socket path")
	noColor     = flag.Bool("no-color", false, "disable colored output")
	showVersion = flag.Bool("version", false, "show version information")
)

// ANSI color codes
type colors struct {
	Reset  string
	Bold   string
	Dim    string
	Red    string
	Green  string
	Yellow string
	Cyan   string
}

var c colors

func initColors() {
	if *noColor || os.Getenv("NO_COLOR") != "" || !isTerminal() {
		c = colors{}
		return
	}
	c = colors{
		Reset:  "\033[0m",
		Bold:   "\033[1m",
		Dim:    "\033[2m",
		Red:    "\033[31m",
		Green:  "\033[32m",
		Yellow: "\033[33m",
		Cyan:   "\033[36m",
	}
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func main() {
	flag.Parse()
	initColors()

	if *showVersion {
		fmt.Printf("mmrctl %s (built %s, commit %s)\n", Version, BuildTime, Commit)
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	var err error
	switch args[0] {
	case "status":
		err = cmdStatus()
	case "append":
		err = cmdAppend(args[1:])
	case "root":
		err = cmdRoot()
	case "peaks":
		err = cmdPeaks()
	case "proof":
		err = cmdProof(args[1:])
	case "verify":
		err = cmdVerify(args[1:])
	case "watch":
		err = cmdWatch()
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%smmrctl: %v%s\n", c.Red, err, c.Reset)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`mmrctl - control CLI for mmrd

USAGE:
    mmrctl [flags] <command> [args]

COMMANDS:
    status                     Show daemon and range status
    append <file>... | -       Append file contents (or stdin) as leaves
    root                       Print the current root
    peaks                      Print the current peaks
    proof <position> [out]     Fetch an inclusion proof, write JSON envelope
    verify <proof> <file>      Verify a proof envelope against file contents
    watch                      Stream range updates

FLAGS:
    -config <path>             Config file (default ~/.mmrd/config.toml)
    -socket <path>             Control socket override
    -no-color                  Disable colored output`)
}

func dial() (*ipc.Client, error) {
	socket := *socketPath
	if socket == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		socket = cfg.SocketPath
	}
	return ipc.Dial(socket, "mmrctl", Version)
}

func cmdStatus() error {
	client, err := dial()
	if err != nil {
		return err
	}
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		return err
	}

	fmt.Printf("%sDaemon%s\n", c.Bold, c.Reset)
	fmt.Printf("  version:    %s\n", status.Version)
	fmt.Printf("  uptime:     %s\n", (time.Duration(status.UptimeSeconds) * time.Second).String())
	fmt.Printf("  backend:    %s\n", status.StoreBackend)
	fmt.Printf("%sRange%s\n", c.Bold, c.Reset)
	fmt.Printf("  algorithm:  %s\n", status.Algorithm)
	fmt.Printf("  size:       %d\n", status.Size)
	fmt.Printf("  leaves:     %d\n", status.LeafCount)
	fmt.Printf("  peaks:      %d\n", status.PeakCount)
	fmt.Printf("  root:       %s%s%s\n", c.Cyan, status.Root, c.Reset)
	return nil
}

func cmdAppend(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("append: need at least one file, or - for stdin")
	}

	var leaves [][]byte
	for _, arg := range args {
		var data []byte
		var err error
		if arg == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(arg)
		}
		if err != nil {
			return err
		}
		leaves = append(leaves, data)
	}

	client, err := dial()
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := client.Append(leaves)
	if err != nil {
		return err
	}

	for i, pos := range resp.Positions {
		fmt.Printf("%s%s%s -> position %d\n", c.Dim, args[i], c.Reset, pos)
	}
	fmt.Printf("%sok%s size=%d leaves=%d root=%s\n", c.Green, c.Reset, resp.Size, resp.LeafCount, resp.Root)
	return nil
}

func cmdRoot() error {
	client, err := dial()
	if err != nil {
		return err
	}
	defer client.Close()

	root, err := client.Root()
	if err != nil {
		return err
	}
	fmt.Printf("size=%d root=%s%s%s\n", root.Size, c.Cyan, root.Root, c.Reset)
	return nil
}

func cmdPeaks() error {
	client, err := dial()
	if err != nil {
		return err
	}
	defer client.Close()

	peaks, err := client.Peaks()
	if err != nil {
		return err
	}
	fmt.Printf("size=%d peaks=%d\n", peaks.Size, len(peaks.Peaks))
	for i, p := range peaks.Peaks {
		fmt.Printf("  [%d] %s\n", i, p)
	}
	return nil
}

func cmdProof(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("proof: need a leaf position")
	}
	position, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("proof: bad position %q", args[0])
	}

	client, err := dial()
	if err != nil {
		return err
	}
	defer client.Close()

	proof, err := client.Proof(position)
	if err != nil {
		return err
	}

	envelope, err := json.MarshalIndent(proof, "", "  ")
	if err != nil {
		return err
	}
	envelope = append(envelope, '\n')

	if len(args) > 1 {
		if err := os.WriteFile(args[1], envelope, 0600); err != nil {
			return err
		}
		fmt.Printf("%sok%s proof for position %d written to %s\n", c.Green, c.Reset, position, args[1])
		return nil
	}
	os.Stdout.Write(envelope)
	return nil
}

func cmdVerify(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("verify: need a proof envelope and a data file")
	}

	envelope, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}

	if err := proofschema.Validate(envelope); err != nil {
		return err
	}

	var proof mmr.Proof
	if err := json.Unmarshal(envelope, &proof); err != nil {
		return err
	}

	ok, err := proof.Verify(data)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Printf("%sFAIL%s data does not match position %d under root %x\n", c.Red, c.Reset, proof.Position, proof.Root)
		os.Exit(1)
	}
	fmt.Printf("%sOK%s position %d committed under root %x (size %d)\n", c.Green, c.Reset, proof.Position, proof.Root, proof.Size)
	return nil
}

func cmdWatch() error {
	client, err := dial()
	if err != nil {
		return err
	}
	defer client.Close()

	fmt.Printf("%swatching for range updates (ctrl-c to stop)%s\n", c.Dim, c.Reset)
	return client.Subscribe(func(event ipc.Event) bool {
		switch event.Type {
		case ipc.EventRangeUpdated:
			if event.Range != nil {
				fmt.Printf("%s[%s]%s size=%d peaks=%d root=%s\n",
					c.Yellow, time.Now().Format(time.TimeOnly), c.Reset,
					event.Range.Size, len(event.Range.Peaks), event.Range.Root)
			}
		case ipc.EventDaemonShutdown:
			fmt.Printf("%sdaemon shut down%s\n", c.Red, c.Reset)
			return false
		}
		return true
	})
}
