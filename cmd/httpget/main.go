// httpget downloads a single http:// URL and saves the body in the output
// directory under the last segment of the URL path.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/nczempin/httpxfer/client"
	"github.com/nczempin/httpxfer/logging"
	"github.com/nczempin/httpxfer/protocol"
	"github.com/nczempin/httpxfer/transport"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("httpget", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: httpget [flags] http://host[:port]/path\n")
		fs.PrintDefaults()
	}

	outputDir := fs.String("o", ".", "directory to save the downloaded file in")
	kind := fs.String("transport", string(transport.KindTcp), "transport: tcp, unix, uring or uring2")
	socketPath := fs.String("unix-socket", "", "socket path for the unix transport")
	framerName := fs.String("framer", "single", "header framing: single or accumulate")
	verbose := fs.Bool("v", false, "debug logging")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	logger := logging.New(stderr, *verbose)

	framer, err := protocol.NewFramer(*framerName)
	if err != nil {
		logger.Error().Err(err).Msg("invalid -framer")
		return 2
	}

	t, err := transport.New(transport.Kind(*kind), *socketPath)
	if err != nil {
		logger.Error().Err(err).Str("transport", *kind).Msg("cannot create transport")
		return 1
	}
	defer transport.Release(t)

	d := client.NewDownloader(t)
	d.Framer = framer
	d.OutputDir = *outputDir
	d.Logger = logger

	result, err := d.Download(fs.Arg(0))
	if err != nil {
		logger.Error().Err(err).Str("url", fs.Arg(0)).Msg("download failed")
		return 1
	}

	logger.Info().Str("file", result.Filename).Int64("bytes", result.Bytes).Msg("saved")
	return 0
}
