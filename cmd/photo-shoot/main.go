// photo-shoot shows the camera feed and saves a timestamped still on space.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/teslashibe/camtools/internal/cli"
	"github.com/teslashibe/camtools/internal/config"
	"github.com/teslashibe/camtools/internal/log"
	"github.com/teslashibe/camtools/pkg/capture"
	"github.com/teslashibe/camtools/pkg/photo"
)

func main() {
	os.Exit(run())
}

func run() int {
	env := config.FromEnv()

	var common cli.CommonFlags
	common.Register(flag.CommandLine, env)
	dir := flag.String("dir", env.PhotosDir, "Directory for captured photos")
	flag.Parse()

	log.Init(common.LogLevel)

	writer, err := photo.NewWriter(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cli.ExitFailure
	}

	opts, err := common.Options("photo-shoot")
	if err != nil {
		return cli.OpenFailed(err)
	}
	app, err := cli.Open(opts)
	if err != nil {
		return cli.OpenFailed(err)
	}
	defer app.Close()

	ctx, cancel := cli.SignalContext()
	defer cancel()

	s := capture.NewSession("photo-shoot", nil, 0)
	reason := app.Loop(photo.NewHandler(writer), 10).Run(ctx, s)

	log.Info("photo shoot finished", "session", s.ID, "reason", reason.String(), "photos", len(writer.Saved))
	return cli.ExitOK
}
