// calib-charuco calibrates a camera from views of a ChArUco board. Press
// 'c' to add the current view, escape to finish and calibrate.
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
	"github.com/teslashibe/camtools/pkg/charuco"
	"gocv.io/x/gocv"
)

func main() {
	os.Exit(run())
}

// options holds the parsed command line.
type options struct {
	common      cli.CommonFlags
	board       charuco.BoardConfig
	dictID      int
	output      string
	refine      bool
	zeroTangent bool
	aspect      float64
	fixCenter   bool
	showCorners bool
	printBoard  string
}

func parseFlags(fs *flag.FlagSet, env config.Env, args []string) (options, error) {
	o := options{board: charuco.DefaultBoardConfig()}
	o.common.Register(fs, env)
	fs.IntVar(&o.board.SquaresX, "w", o.board.SquaresX, "Number of squares in X direction")
	fs.IntVar(&o.board.SquaresY, "h", o.board.SquaresY, "Number of squares in Y direction")
	fs.Float64Var(&o.board.SquareLength, "sl", o.board.SquareLength, "Square side length (in meters)")
	fs.Float64Var(&o.board.MarkerLength, "ml", o.board.MarkerLength, "Marker side length (in meters)")
	fs.IntVar(&o.dictID, "d", int(o.board.Dictionary), "Dictionary id: DICT_4X4_50=0 ... DICT_4X4_1000=3 ... DICT_ARUCO_ORIGINAL=16")
	fs.StringVar(&o.output, "o", env.CalibFile, "Output file with calibrated camera parameters")
	fs.BoolVar(&o.refine, "rs", false, "Apply refined strategy")
	fs.BoolVar(&o.zeroTangent, "zt", false, "Assume zero tangential distortion")
	fs.Float64Var(&o.aspect, "a", 0, "Fix aspect ratio (fx/fy) to this value")
	fs.BoolVar(&o.fixCenter, "pc", false, "Fix the principal point at the center")
	fs.BoolVar(&o.showCorners, "sc", true, "Show detected chessboard corners after calibration")
	fs.StringVar(&o.printBoard, "print", "", "Write an image of the board to this file and exit")
	err := fs.Parse(args)
	return o, err
}

func run() int {
	env := config.FromEnv()
	o, err := parseFlags(flag.CommandLine, env, os.Args[1:])
	if err != nil {
		return cli.OpenFailed(err)
	}
	common, board := o.common, o.board

	log.Init(common.LogLevel)

	dict, err := aruco.DictionaryByID(o.dictID)
	if err != nil {
		return cli.OpenFailed(err)
	}
	board.Dictionary = dict

	b, err := charuco.NewBoard(board)
	if err != nil {
		return cli.OpenFailed(err)
	}
	if o.printBoard != "" {
		return writeBoard(b, o.printBoard)
	}

	opts, err := common.Options("calib-charuco")
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

	detector := charuco.NewDetector(b)
	defer detector.Close()
	detector.Refine = o.refine

	handler := charuco.NewHandler(detector)
	defer handler.Close()
	handler.KeepFrames = o.showCorners

	// A video file waits for a key on every frame.
	waitMS := 10
	if opts.Camera.IsFile() {
		waitMS = 0
	}

	s, err := cli.NewCalibrationSession("calib-charuco", calib.MinCharucoSamples, 0)
	if err != nil {
		return cli.OpenFailed(err)
	}
	log.Info("capturing charuco views",
		"session", s.ID,
		"squares", fmt.Sprintf("%dx%d", board.SquaresX, board.SquaresY),
		"dictionary", aruco.DictionaryName(dict),
		"refine", o.refine)

	reason := app.Loop(handler, waitMS).Run(ctx, s)
	log.Debug("capture stopped", "reason", reason.String(), "samples", s.Count())

	c := &cli.Calibrator{
		Output:  o.output,
		Options: calibOptions(o.zeroTangent, o.aspect, o.fixCenter, s.ID),
	}
	err = s.Finish(c.Run)
	if code := cli.FinishCode(err, "Not enough corners for calibration"); err != nil {
		return code
	}
	fmt.Printf("Rep Error: %g\n", c.Result.RMS)

	if o.showCorners {
		handler.Review(app.Window, s.Samples.Samples())
	}
	return cli.ExitOK
}

func calibOptions(zeroTangent bool, aspect float64, fixCenter bool, session string) calib.Options {
	opts := calib.Options{MinSamples: calib.MinCharucoSamples, SessionID: session}
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

func writeBoard(b *charuco.Board, path string) int {
	img, err := b.Render(100, 20)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cli.ExitFailure
	}
	defer img.Close()
	if !gocv.IMWrite(path, img) {
		fmt.Fprintf(os.Stderr, "Error: unable to write %s\n", path)
		return cli.ExitFailure
	}
	fmt.Printf("Board written to %s\n", path)
	return cli.ExitOK
}
