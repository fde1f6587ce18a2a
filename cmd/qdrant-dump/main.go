package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Chapsvision-dev/qdrant-dump/internal/auth"
	"github.com/Chapsvision-dev/qdrant-dump/internal/config"
	"github.com/Chapsvision-dev/qdrant-dump/internal/dump"
	"github.com/Chapsvision-dev/qdrant-dump/internal/logx"
	"github.com/Chapsvision-dev/qdrant-dump/internal/progress"
	"github.com/Chapsvision-dev/qdrant-dump/internal/provider"
	"github.com/Chapsvision-dev/qdrant-dump/internal/qdrant"
	"github.com/Chapsvision-dev/qdrant-dump/internal/version"

	_ "github.com/Chapsvision-dev/qdrant-dump/internal/provider/azure"
	_ "github.com/Chapsvision-dev/qdrant-dump/internal/provider/s3"
)

// Test seams, overridden in unit tests. Keep signatures in sync with packages.
var (
	loadConfig  func(*pflag.FlagSet) (config.Config, error)                                          = config.Load
	newAPI      func(baseURL, apiKey string) dump.API                                                = newQdrantClient
	newProvider func(name string, cfg any) (provider.Provider, error)                                = provider.New
	prepareDir  func(base string, timestamp bool, now time.Time) (string, string, error)             = dump.PrepareDir
	runDump     func(context.Context, dump.API, string, string, dump.Options) ([]dump.Result, error) = dump.Run
	now         func() time.Time                                                                     = time.Now
	exit        func(int)                                                                            = os.Exit
)

const longHelp = `Back up Qdrant collections by creating a snapshot on the server and
downloading it to <out>/<collection>_<snapshot>.

Collections are processed one at a time. The first failure stops the run;
files already saved are kept.

Every flag can also be set from the environment (flag wins):
  QDRANT_URL, QDRANT_API_KEY, QDRANT_API_KEY_FILE, QDRANT_COLLECTION,
  BACKUP_OUT, BACKUP_TIMESTAMP, BACKUP_PROVIDER, BACKUP_REMOTE_PREFIX,
  LOG_LEVEL, LOG_FORMAT
A .env file in the working directory is loaded first when present.

With --provider azure|s3 each saved file is also uploaded:
  azure: AZURE_STORAGE_ACCOUNT, AZURE_STORAGE_CONTAINER and AZURE_STORAGE_SAS
         or AZURE_CLIENT_ID/AZURE_CLIENT_SECRET/AZURE_TENANT_ID (else MSI)
  s3:    S3_BUCKET, AWS_REGION, AWS_ENDPOINT_URL, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY`

const examples = `  # Back up every collection
  qdrant-dump --url http://localhost:6333

  # One collection into a timestamped folder
  qdrant-dump -u https://qdrant.example.com -a $KEY -c docs -o /var/backups/qdrant -t`

// usageError marks command-line mistakes (exit code 2).
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// main wires CLI -> config -> client -> dump.
// Exit codes: 0 success, 1 runtime error, 2 usage error.
func main() {
	_ = godotenv.Load() // best-effort
	logx.InitFromEnv()

	ctx := withSignals(context.Background())
	exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI with args and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if args == nil {
		// cobra falls back to os.Args on nil.
		args = []string{}
	}
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Str("action", "run").Msg("command failed")
		fmt.Fprintln(stderr, "Error:", err)
		var ue *usageError
		if errors.As(err, &ue) {
			fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", version.Name)
			return 2
		}
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           version.Name + " --url <url> [flags]",
		Short:         "Back up Qdrant collections as snapshot files",
		Long:          longHelp,
		Example:       examples,
		Version:       version.Info(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return &usageError{errors.Newf("unexpected arguments: %v", args)}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return backup(cmd.Context(), cmd.Flags(), stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate(version.Name + " {{.Version}}\n")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err}
	})
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// backup runs one complete backup from flags.
func backup(ctx context.Context, fs *pflag.FlagSet, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(fs)
	if err != nil {
		return errors.Wrap(err, "config")
	}
	logx.Init(cfg.LogLevel, cfg.LogFormat, stderr)

	dir, stamp, err := prepareDir(cfg.OutDir, cfg.Timestamp, now())
	if err != nil {
		return err
	}

	key, err := auth.ResolveKey(ctx, cfg)
	if err != nil {
		return err
	}

	up, err := newProvider(cfg.Provider, cfg)
	if err != nil {
		return errors.Wrapf(err, "provider %s", cfg.Provider)
	}

	api := newAPI(cfg.URL, key)
	pr := progress.NewConsole(stdout)
	pr.Header(cfg.URL, dir)

	start := time.Now()
	results, err := runDump(ctx, api, cfg.Collection, dir, dump.Options{
		Progress:     pr,
		Uploader:     up,
		RemotePrefix: dump.RemoteKey(cfg.RemotePrefix, stamp),
	})
	if err != nil {
		return err
	}
	pr.Complete(len(results))

	log.Info().
		Str("action", "backup").
		Str("collection", cfg.Collection).
		Str("dir", dir).
		Str("provider", cfg.Provider).
		Int("collections", len(results)).
		Dur("elapsed_ms", time.Since(start)).
		Msg("backup complete")
	return nil
}

func newQdrantClient(baseURL, apiKey string) dump.API {
	return qdrant.New(baseURL, apiKey)
}

func withSignals(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		<-ch
		cancel()
	}()
	return ctx
}
