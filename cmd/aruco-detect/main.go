// aruco-detect overlays the pose axes of ArUco markers on the undistorted
// camera feed.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/teslashibe/camtools/internal/cli"
	"github.com/teslashibe/camtools/internal/config"
	"github.com/teslashibe/camtools/internal/log"
	"github.com/teslashibe/camtools/pkg/aruco"
	"github.com/teslashibe/camtools/pkg/calib"
	"github.com/teslashibe/camtools/pkg/capture"
)

func main() {
	os.Exit(run())
}

func run() int {
	env := config.FromEnv()
	cfg := aruco.DefaultHandlerConfig()
	cfg.MarkerLength = env.MarkerLength

	var common cli.CommonFlags
	common.Register(flag.CommandLine, env)
	calibFile := flag.String("calib", env.CalibFile, "Camera parameter file (YAML or XML)")
	dictName := flag.String("d", aruco.DictionaryName(cfg.Dictionary), "Marker dictionary, e.g. 4x4_1000")
	flag.Float64Var(&cfg.MarkerLength, "ml", cfg.MarkerLength, "Marker side length (in meters)")
	flag.Float64Var(&cfg.AxisLength, "axis", cfg.AxisLength, "Drawn axis length (in meters)")
	flag.BoolVar(&cfg.Print, "print", false, "Print translation and rotation vectors per marker")
	flag.Parse()

	log.Init(common.LogLevel)

	dict, err := aruco.DictionaryByName(*dictName)
	if err != nil {
		return cli.OpenFailed(err)
	}
	cfg.Dictionary = dict

	in, err := calib.Load(*calibFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: Unable to open calibration parameters file")
		log.Error("load calibration", "file", *calibFile, "error", err)
		return cli.ExitFailure
	}
	fmt.Printf("Camera Matrix:\n%v\n", in.CameraMatrix)
	fmt.Printf("Distortion Coefficients:\n%v\n", in.DistCoeffs)

	handler, err := aruco.NewHandler(cfg, in)
	if err != nil {
		return cli.OpenFailed(err)
	}
	defer handler.Close()

	opts, err := common.Options("aruco-detect")
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

	s := capture.NewSession("aruco-detect", nil, 0)
	log.Info("detecting markers",
		"session", s.ID,
		"dictionary", aruco.DictionaryName(dict),
		"marker_length", cfg.MarkerLength)

	reason := app.Loop(handler, 100).Run(ctx, s)
	log.Info("marker detection finished", "session", s.ID, "reason", reason.String(), "frames", s.Frames)
	return cli.ExitOK
}
