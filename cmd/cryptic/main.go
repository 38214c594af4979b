package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/absfs/cryptic"
)

const version = "0.1.0"

// Exit codes
const (
	exitError      = 1
	exitDecryption = 2
)

func main() {
	app := newApp(newPrompter())
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "cryptic: %v\n", err)
		if errors.Is(err, cryptic.ErrDecryption) {
			os.Exit(exitDecryption)
		}
		os.Exit(exitError)
	}
}

func newApp(p *prompter) *cli.App {
	app := cli.NewApp()
	app.Name = "cryptic"
	app.Usage = "Password-protect images in portable encrypted containers"
	app.Version = version
	app.Flags = getFlags()
	app.Commands = []cli.Command{
		{
			Name:      "encrypt",
			Aliases:   []string{"e"},
			Usage:     "encrypt images into .cryptic containers",
			ArgsUsage: "IMAGE...",
			Flags:     []cli.Flag{outFlag()},
			Action: func(c *cli.Context) error {
				return runEncrypt(c, p)
			},
		},
		{
			Name:      "decrypt",
			Aliases:   []string{"d"},
			Usage:     "recover images from .cryptic containers",
			ArgsUsage: "CONTAINER...",
			Flags:     []cli.Flag{outFlag()},
			Action: func(c *cli.Context) error {
				return runDecrypt(c, p)
			},
		},
		{
			Name:      "inspect",
			Aliases:   []string{"i"},
			Usage:     "show container headers without a password",
			ArgsUsage: "CONTAINER...",
			Action:    runInspect,
		},
		{
			Name:      "rekey",
			Usage:     "re-encrypt containers in place under a new password",
			ArgsUsage: "CONTAINER...",
			Action: func(c *cli.Context) error {
				return runRekey(c, p)
			},
		},
	}
	return app
}

func getFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "load configuration from `FILE`",
		},
		cli.StringFlag{
			Name:  "level, l",
			Usage: "logging level [debug|info|warn|error]",
			Value: "info",
		},
		cli.StringFlag{
			Name:  "kdf",
			Usage: "key derivation for new containers [argon2id|pbkdf2-sha256]",
		},
		cli.UintFlag{
			Name:  "iterations",
			Usage: "KDF iterations (Argon2 passes or PBKDF2 rounds)",
		},
		cli.StringFlag{
			Name:  "memory",
			Usage: "Argon2 memory as KiB or a size such as `64MiB`",
		},
		cli.UintFlag{
			Name:  "parallelism",
			Usage: "Argon2 parallelism",
		},
		cli.StringFlag{
			Name:  "max-size",
			Usage: "largest input file accepted, e.g. `50MB`",
		},
		cli.IntFlag{
			Name:  "workers, w",
			Usage: "number of files processed concurrently (0 uses all CPUs)",
		},
	}
}

func outFlag() cli.Flag {
	return cli.StringFlag{
		Name:  "out, o",
		Usage: "write output into `DIR`",
		Value: ".",
	}
}

// newConfig loads the config file and applies global flag overrides
func newConfig(c *cli.Context) (*cryptic.Config, error) {
	config, err := cryptic.LoadConfig(c.GlobalString("config"))
	if err != nil {
		return nil, err
	}

	if c.GlobalIsSet("level") {
		level, err := cryptic.GetLogLevel(c.GlobalString("level"))
		if err != nil {
			return nil, err
		}
		config.LogLevel = level
	}

	if c.GlobalIsSet("kdf") {
		alg, err := cryptic.ParseKDFAlgorithm(c.GlobalString("kdf"))
		if err != nil {
			return nil, err
		}
		if alg != config.KDF.Algorithm {
			if alg == cryptic.KDFPBKDF2SHA256 {
				config.KDF = cryptic.DefaultPBKDF2Params()
			} else {
				config.KDF = cryptic.DefaultArgon2idParams()
			}
		}
	}
	if c.GlobalIsSet("iterations") {
		config.KDF.Iterations = uint32(c.GlobalUint("iterations"))
	}
	if c.GlobalIsSet("memory") {
		mem, err := cryptic.ParseMemoryKiB(c.GlobalString("memory"))
		if err != nil {
			return nil, err
		}
		config.KDF.Memory = mem
	}
	if c.GlobalIsSet("parallelism") {
		config.KDF.Parallelism = uint8(c.GlobalUint("parallelism"))
	}
	if c.GlobalIsSet("max-size") {
		size, err := humanize.ParseBytes(c.GlobalString("max-size"))
		if err != nil {
			return nil, errors.Wrap(err, "invalid --max-size")
		}
		config.MaxFileSize = int64(size)
	}
	if c.GlobalIsSet("workers") {
		config.Parallel.MaxWorkers = c.GlobalInt("workers")
	}

	config.Logger = newLogger(config.LogLevel, c.App.ErrWriter)

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid settings")
	}
	return config, nil
}

func newLogger(level uint32, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	logger := log.New()
	logger.SetOutput(w)
	logger.SetLevel(log.Level(level))
	logger.Formatter = &log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	}
	return logger
}

func newFileCrypter(c *cli.Context) (*cryptic.FileCrypter, error) {
	config, err := newConfig(c)
	if err != nil {
		return nil, err
	}
	return cryptic.NewFileCrypter(config)
}

func requireArgs(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.Errorf("%s: at least one file is required", c.Command.Name)
	}
	return nil
}

func runEncrypt(c *cli.Context, p *prompter) error {
	if err := requireArgs(c); err != nil {
		return err
	}
	fc, err := newFileCrypter(c)
	if err != nil {
		return err
	}

	password, err := p.confirmedPassword(PasswordEnvVar, "Password: ", "Confirm password: ")
	if err != nil {
		return errors.Wrap(err, "failed to read password")
	}
	if err := cryptic.ValidatePassword(password); err != nil {
		return err
	}

	start := time.Now()
	results := fc.EncryptFiles(&dirFS{}, c.Args(), c.String("out"), password)
	printResults(c.App.Writer, results, start)
	return cryptic.BatchErrors(results)
}

func runDecrypt(c *cli.Context, p *prompter) error {
	if err := requireArgs(c); err != nil {
		return err
	}
	fc, err := newFileCrypter(c)
	if err != nil {
		return err
	}

	password, err := p.password(PasswordEnvVar, "Password: ")
	if err != nil {
		return errors.Wrap(err, "failed to read password")
	}

	start := time.Now()
	results := fc.DecryptFiles(&dirFS{}, c.Args(), c.String("out"), password)
	printResults(c.App.Writer, results, start)
	return cryptic.BatchErrors(results)
}

func runInspect(c *cli.Context) error {
	if err := requireArgs(c); err != nil {
		return err
	}
	fc, err := newFileCrypter(c)
	if err != nil {
		return err
	}

	fs := &dirFS{}
	var failed error
	for _, src := range c.Args() {
		info, err := fc.InspectFile(fs, src)
		if err != nil {
			failed = errors.Wrap(err, src)
			fmt.Fprintf(c.App.Writer, "%s: %v\n", src, err)
			continue
		}
		auth := "unauthenticated"
		if info.Authenticated {
			auth = "authenticated"
		}
		fmt.Fprintf(c.App.Writer, "%s: %s, %s, %s, %s ciphertext\n",
			src, info.Version, auth, info.KDF, humanize.IBytes(uint64(info.CiphertextSize)))
	}
	return failed
}

func runRekey(c *cli.Context, p *prompter) error {
	if err := requireArgs(c); err != nil {
		return err
	}
	fc, err := newFileCrypter(c)
	if err != nil {
		return err
	}

	oldPassword, err := p.password(PasswordEnvVar, "Current password: ")
	if err != nil {
		return errors.Wrap(err, "failed to read password")
	}
	newPassword, err := p.confirmedPassword(NewPasswordEnvVar, "New password: ", "Confirm new password: ")
	if err != nil {
		return errors.Wrap(err, "failed to read password")
	}

	fs := &dirFS{}
	var failed error
	for _, src := range c.Args() {
		res, err := fc.RekeyFile(fs, src, oldPassword, newPassword)
		if err != nil {
			failed = errors.Wrap(err, src)
			fmt.Fprintf(c.App.Writer, "%s: %v\n", src, err)
			continue
		}
		fmt.Fprintf(c.App.Writer, "%s: rekeyed as %s (%s)\n",
			res.Output, fc.Encrypter().Version(), humanize.IBytes(uint64(res.Size)))
	}
	return failed
}

func printResults(w io.Writer, results []cryptic.BatchResult, start time.Time) {
	var ok int
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "%s: %v\n", r.Source, r.Err)
			continue
		}
		ok++
		fmt.Fprintf(w, "%s -> %s (%s, %s)\n",
			r.Source, r.Result.Output, r.Result.ContentType, humanize.IBytes(uint64(r.Result.Size)))
	}
	fmt.Fprintf(w, "%d of %d files in %s\n", ok, len(results), durafmt.Parse(time.Since(start).Round(time.Millisecond)))
}
