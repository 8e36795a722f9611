// Package main provides a one-shot command line QoC check.
//
//	qoc [-d] [-dls] [-mode download|stream] [url]
//
// Without a URL argument the link is read from standard input.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/ripqoc/qoc-server/internal/config"
	"github.com/ripqoc/qoc-server/internal/di"
	"github.com/ripqoc/qoc-server/internal/domain"
	domainerrors "github.com/ripqoc/qoc-server/internal/errors"
	"github.com/ripqoc/qoc-server/internal/service"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("qoc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	debug := fs.Bool("d", false, "Enable debug logging")
	dls := fs.Bool("dls", false, "Also run the DLS clipping check")
	mode := fs.String("mode", "", "Acquisition mode: download or stream")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.LoadConfig(nil)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	cfg.Logger.Level = "warn"
	if *debug {
		fmt.Fprintln(stdout, "DEBUG MODE ENABLED")
		cfg.Logger.Level = "debug"
	}
	if *dls {
		cfg.QoC.EnableDLS = true
	}
	if *mode != "" {
		cfg.QoC.Mode = strings.ToLower(*mode)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	url := fs.Arg(0)
	if url == "" {
		fmt.Fprint(stdout, "Paste the path of the audio you want to check: ")
		url, err = readLine(stdin)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to read URL: %v\n", err)
			return 1
		}
	}

	injector := do.New()
	di.Register(injector)
	do.OverrideValue(injector, cfg)
	defer func() { _ = injector.Shutdown() }()

	svc, err := do.Invoke[*service.QoCService](injector)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to start: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v, err := svc.Check(ctx, service.CheckRequest{URL: url})
	if err != nil {
		fmt.Fprintln(stdout, formatMarkers(&domain.Verdict{Code: domain.VerdictUnevaluated}))
		fmt.Fprintln(stdout, domainerrors.UserMessage(err))
		return 1
	}

	fmt.Fprintln(stdout, formatMarkers(v))
	fmt.Fprintln(stdout, v.Message)
	return 0
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

var markerEmoji = map[string]string{
	"link":     ":link:",
	"check":    ":check:",
	"fix":      ":fix:",
	"bitrate":  ":1234:",
	"clipping": ":loud_sound:",
}

// formatMarkers renders a verdict's markers in the chat emoji scheme.
func formatMarkers(v *domain.Verdict) string {
	markers := v.Markers()
	out := make([]string, len(markers))
	for i, m := range markers {
		out[i] = markerEmoji[m]
	}
	return strings.Join(out, " ")
}
