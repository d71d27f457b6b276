// httpserve serves the files below a root directory over HTTP/1.1, one
// connection at a time. Directories without an index.html get a listing.
//
//	httpserve [flags] [root] [port]
package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nczempin/httpxfer/logging"
	"github.com/nczempin/httpxfer/protocol"
	"github.com/nczempin/httpxfer/server"
)

const (
	defaultRoot = "."
	defaultPort = 8080
)

type config struct {
	root       string
	port       int
	host       string
	unixSocket string
	framer     protocol.Framer
	verbose    bool
	timeout    time.Duration
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	cfg, code := parseArgs(args, stderr)
	if code != 0 {
		return code
	}

	logger := logging.New(stderr, cfg.verbose)

	srv, err := newServer(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("cannot start server")
		return 1
	}

	network, addr := "tcp", net.JoinHostPort(cfg.host, strconv.Itoa(cfg.port))
	if cfg.unixSocket != "" {
		network, addr = "unix", cfg.unixSocket
		os.Remove(cfg.unixSocket)
	}
	ln, err := net.Listen(network, addr)
	if err != nil {
		logger.Error().Err(err).Str("addr", addr).Msg("cannot listen")
		return 1
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)
	go func() {
		<-sig
		logger.Info().Msg("shutting down")
		srv.Close()
	}()

	if err := srv.Serve(ln); err != nil {
		logger.Error().Err(err).Msg("serve failed")
		return 1
	}
	return 0
}

// parseArgs applies flags and then the optional positional root and port.
// The root is only taken if it exists, the port only if it is positive.
func parseArgs(args []string, stderr io.Writer) (config, int) {
	cfg := config{root: defaultRoot, port: defaultPort}

	fs := flag.NewFlagSet("httpserve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: httpserve [flags] [root] [port]\n")
		fs.PrintDefaults()
	}
	fs.StringVar(&cfg.host, "addr", "", "host or IP to bind")
	fs.StringVar(&cfg.unixSocket, "unix", "", "listen on this Unix socket instead of TCP")
	fs.DurationVar(&cfg.timeout, "timeout", 0, "per-connection deadline, 0 for none")
	framerName := fs.String("framer", "single", "request framing: single or accumulate")
	fs.BoolVar(&cfg.verbose, "v", false, "debug logging")

	if err := fs.Parse(args); err != nil {
		return cfg, 2
	}
	if fs.NArg() > 2 {
		fs.Usage()
		return cfg, 2
	}

	if fs.NArg() >= 1 {
		if _, err := os.Stat(fs.Arg(0)); err == nil {
			cfg.root = fs.Arg(0)
		} else {
			fmt.Fprintf(stderr, "httpserve: root %q not found, using %q\n", fs.Arg(0), defaultRoot)
		}
	}
	if fs.NArg() == 2 {
		if p, err := strconv.Atoi(fs.Arg(1)); err == nil && p > 0 && p <= 65535 {
			cfg.port = p
		} else {
			fmt.Fprintf(stderr, "httpserve: invalid port %q, using %d\n", fs.Arg(1), defaultPort)
		}
	}

	framer, err := protocol.NewFramer(*framerName)
	if err != nil {
		fmt.Fprintf(stderr, "httpserve: %v\n", err)
		return cfg, 2
	}
	cfg.framer = framer

	return cfg, 0
}

func newServer(cfg config, logger zerolog.Logger) (*server.Server, error) {
	resolver, err := server.NewResolver(cfg.root)
	if err != nil {
		return nil, err
	}

	srv := server.New(resolver)
	srv.Framer = cfg.framer
	srv.Logger = logger
	srv.ReadTimeout = cfg.timeout
	return srv, nil
}
