// camera-calib captures chessboard views on space and calibrates the camera
// once enough were collected.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/teslashibe/camtools/internal/cli"
	"github.com/teslashibe/camtools/internal/config"
	"github.com/teslashibe/camtools/internal/log"
	"github.com/teslashibe/camtools/pkg/calib"
	"github.com/teslashibe/camtools/pkg/chessboard"
)

func main() {
	os.Exit(run())
}

func run() int {
	env := config.FromEnv()
	board := chessboard.DefaultConfig()

	var common cli.CommonFlags
	common.Register(flag.CommandLine, env)
	flag.IntVar(&board.Cols, "cols", board.Cols, "Inner corners per chessboard row")
	flag.IntVar(&board.Rows, "rows", board.Rows, "Inner corners per chessboard column")
	square := flag.Float64("square", float64(board.SquareSize), "Square side length in world units")
	samples := flag.Int("samples", calib.MinChessboardSamples,
		fmt.Sprintf("Views to capture before calibrating (at least %d)", calib.MinChessboardSamples))
	output := flag.String("o", env.CalibFile, "Output file with calibrated camera parameters")
	zeroTangent := flag.Bool("zt", false, "Assume zero tangential distortion")
	aspect := flag.Float64("a", 0, "Fix aspect ratio (fx/fy) to this value")
	fixCenter := flag.Bool("pc", false, "Fix the principal point at the center")
	flag.Parse()

	log.Init(common.LogLevel)

	board.SquareSize = float32(*square)
	if errs := board.Validate(); len(errs) > 0 {
		return cli.OpenFailed(fmt.Errorf("invalid board: %v", errs))
	}
	s, err := cli.NewCalibrationSession("camera-calib", calib.MinChessboardSamples, *samples)
	if err != nil {
		return cli.OpenFailed(err)
	}

	opts, err := common.Options("camera-calib")
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

	log.Info("capturing chessboard views", "session", s.ID, "board", board.String(), "samples", *samples)

	reason := app.Loop(chessboard.NewHandler(board), 10).Run(ctx, s)
	log.Debug("capture stopped", "reason", reason.String(), "samples", s.Count())

	// Release the devices before the blocking calibration.
	app.Close()

	c := &cli.Calibrator{
		Output:  *output,
		Options: calibOptions(*zeroTangent, *aspect, *fixCenter, s.ID),
	}
	err = s.Finish(c.Run)
	return cli.FinishCode(err, fmt.Sprintf(
		"Insufficient calibration images captured. At least %d images are required.", calib.MinChessboardSamples))
}

func calibOptions(zeroTangent bool, aspect float64, fixCenter bool, session string) calib.Options {
	opts := calib.Options{MinSamples: calib.MinChessboardSamples, SessionID: session}
	if zeroTangent {
		opts.Flags |= calib.ZeroTangentDist
	}
	if aspect > 0 {
		opts.Flags |= calib.FixAspectRatio
		opts.AspectRatio = aspect
	}
	if fixCenter {
		opts.Flags |= calib.FixPrincipalPoint
	}
	return opts
}
