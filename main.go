package main

import (
	"fmt"
	"os"
	"time"

	"dskimg/imaging"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries what every command needs once flags and environment are parsed.
type app struct {
	v      *viper.Viper
	cfg    *Config
	log    zerolog.Logger
	imager *imaging.Imager
	disc   imaging.Discoverer
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error:"), describeError(err))
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "dskimg",
		Short: "Image removable disks to files and back",
		Long: `dskimg reads USB sticks and SD cards to image files and writes images
(raw or .gz, .xz, .zst, .bz2) back to them, verifying the result.`,
		Version:       appversion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.Int("chunk-size", imaging.DefaultChunkSize, "bytes transferred per device I/O")
	flags.Int("block-size", imaging.DefaultBlockSize, "minimum device block size for aligned I/O")
	flags.String("temp-dir", "", "directory for decompressed images (default: system temp)")
	flags.String("digest", "sha256", "verification digest (sha256, xxh64)")
	flags.BoolP("yes", "y", false, "do not ask for confirmation")
	flags.Bool("force", false, "skip the removable/mounted check on write targets")

	_ = a.v.BindPFlag("log-level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("chunk-size", flags.Lookup("chunk-size"))
	_ = a.v.BindPFlag("block-size", flags.Lookup("block-size"))
	_ = a.v.BindPFlag("temp-dir", flags.Lookup("temp-dir"))
	_ = a.v.BindPFlag("digest", flags.Lookup("digest"))
	_ = a.v.BindPFlag("assume-yes", flags.Lookup("yes"))
	_ = a.v.BindPFlag("force", flags.Lookup("force"))

	rootCmd.AddCommand(
		newListCmd(a),
		newReadCmd(a),
		newWriteCmd(a),
		newVerifyCmd(a),
		newInspectCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

func (a *app) init() error {
	cfg, err := loadConfig(a.v)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	a.log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()

	a.imager = cfg.newImager(a.log)
	a.disc = imaging.NewDiscoverer(a.log)
	warnIfWSL(a.log)
	return nil
}

// run executes op with Ctrl-C wired to a fresh cancellation flag and a
// progress display on stderr.
func (a *app) run(op func(flag *imaging.Flag, progress imaging.Progress) error) error {
	flag := imaging.NewFlag()
	stopSignals := imaging.NotifyInterrupt(flag)
	defer stopSignals()

	restoreEcho := hideControlEcho(os.Stdin)
	defer restoreEcho()

	progress := newProgress(os.Stderr, a.log)
	err := op(flag, progress)
	progress.Finish()
	return err
}

// pickDevice returns path when set, otherwise asks for one of the
// discovered removable devices.
func (a *app) pickDevice(path, message string) (string, error) {
	if path != "" {
		return path, nil
	}
	devices, err := a.disc.Discover()
	if err != nil {
		return "", err
	}
	d, err := selectDevice(devices, message)
	if err != nil {
		return "", err
	}
	return d.Path, nil
}
