// Package dump snapshots Qdrant collections and saves the archives locally.
package dump

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"

	"github.com/Chapsvision-dev/qdrant-dump/internal/provider"
	"github.com/Chapsvision-dev/qdrant-dump/internal/qdrant"
)

// SnapshotAPI is the part of the Qdrant client needed to back up one collection.
type SnapshotAPI interface {
	CreateSnapshot(ctx context.Context, collection string) (qdrant.Snapshot, error)
	DownloadSnapshot(ctx context.Context, collection, snapshot string) ([]byte, error)
}

// Progress receives human-readable progress events. Implementations must not
// fail; they are observational only.
type Progress interface {
	Found(n int)
	Collection(name string)
	Begin(step string)
	End(step string)
	Saved(path string)
}

// Options controls where a backup goes besides the local directory.
type Options struct {
	// Progress may be nil.
	Progress Progress
	// Uploader copies each saved file offsite. Nil keeps backups local only.
	Uploader provider.Provider
	// RemotePrefix is the key prefix used by Uploader.
	RemotePrefix string
}

// Result describes one completed collection backup.
type Result struct {
	Collection string
	Snapshot   string
	Path       string
	Bytes      int64
	RemoteKey  string
	Elapsed    time.Duration
}

// Steps reported through Progress.
const (
	StepCreate   = "create snapshot"
	StepDownload = "download snapshot"
	StepUpload   = "upload"
)

// ErrUnsafeFileName is returned when a collection or snapshot name would not
// yield a plain file name inside the output directory.
var ErrUnsafeFileName = errors.New("not a plain file name")

// FileName returns the local file name for a collection snapshot.
func FileName(collection, snapshot string) string {
	return collection + "_" + snapshot
}

// localFile returns dir/base, rejecting base when it has a path separator or
// would resolve outside dir.
func localFile(dir, base string) (string, error) {
	if strings.ContainsAny(base, `/\`) || !filepath.IsLocal(base) {
		return "", &FilesystemError{Op: "write", Path: base, Err: ErrUnsafeFileName}
	}
	return filepath.Join(dir, base), nil
}

// Collection creates a snapshot of name on the server, downloads it and
// writes it to dir/<name>_<snapshot>, overwriting any existing file.
// dir must already exist. The remote snapshot is left in place whatever happens.
func Collection(ctx context.Context, api SnapshotAPI, name, dir string, opts Options) (Result, error) {
	res := Result{Collection: name}
	pr := opts.progress()
	start := time.Now()

	pr.Collection(name)

	// 1) Ask the server for a fresh snapshot.
	pr.Begin(StepCreate)
	log.Info().Str("action", "create_snapshot").Str("collection", name).Msg("creating snapshot")
	snap, err := api.CreateSnapshot(ctx, name)
	if err != nil {
		log.Error().Err(err).Str("action", "create_snapshot").Str("collection", name).Msg("snapshot creation failed")
		return res, errors.Wrapf(err, "collection %q", name)
	}
	res.Snapshot = snap.Name
	pr.End(StepCreate)
	log.Info().
		Str("action", "create_snapshot").
		Str("collection", name).
		Str("snapshot", snap.Name).
		Int64("size", snap.Size).
		Str("creation_time", snap.CreationTime).
		Msg("snapshot created")

	file, err := localFile(dir, FileName(name, snap.Name))
	if err != nil {
		log.Error().Err(err).Str("action", "write_snapshot").Str("collection", name).
			Str("snapshot", snap.Name).Msg("unsafe file name")
		return res, err
	}

	// 2) Fetch the archive.
	pr.Begin(StepDownload)
	dlStart := time.Now()
	data, err := api.DownloadSnapshot(ctx, name, snap.Name)
	if err != nil {
		log.Error().Err(err).Str("action", "download_snapshot").Str("collection", name).
			Str("snapshot", snap.Name).Msg("download failed")
		return res, errors.Wrapf(err, "collection %q", name)
	}
	pr.End(StepDownload)
	log.Info().
		Str("action", "download_snapshot").
		Str("collection", name).
		Str("snapshot", snap.Name).
		Int("bytes", len(data)).
		Dur("elapsed_ms", time.Since(dlStart)).
		Msg("snapshot downloaded")

	// 3) Save it.
	if err := os.WriteFile(file, data, 0o644); err != nil {
		log.Error().Err(err).Str("action", "write_snapshot").Str("file", file).Msg("write failed")
		return res, &FilesystemError{Op: "write", Path: file, Err: err}
	}
	res.Path = file
	res.Bytes = int64(len(data))
	pr.Saved(file)

	// 4) Optional offsite copy.
	if opts.Uploader != nil {
		key := RemoteKey(opts.RemotePrefix, filepath.Base(file))
		pr.Begin(StepUpload)
		upStart := time.Now()
		meta := map[string]string{"collection": name, "snapshot": snap.Name}
		if err := opts.Uploader.Upload(ctx, file, key, meta); err != nil {
			log.Error().Err(err).Str("action", "upload").Str("provider", opts.Uploader.Name()).
				Str("remote", key).Msg("upload failed")
			return res, errors.Wrapf(err, "upload %s to %s", file, opts.Uploader.Name())
		}
		res.RemoteKey = key
		pr.End(StepUpload)
		log.Info().
			Str("action", "upload").
			Str("provider", opts.Uploader.Name()).
			Str("remote", key).
			Dur("elapsed_ms", time.Since(upStart)).
			Msg("upload OK")
	}

	res.Elapsed = time.Since(start)
	return res, nil
}

// RemoteKey joins prefix and name into a slash-separated object key.
func RemoteKey(prefix, name string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

func (o Options) progress() Progress {
	if o.Progress == nil {
		return nopProgress{}
	}
	return o.Progress
}

type nopProgress struct{}

func (nopProgress) Found(int)         {}
func (nopProgress) Collection(string) {}
func (nopProgress) Begin(string)      {}
func (nopProgress) End(string)        {}
func (nopProgress) Saved(string)      {}

// String is used in log and error output.
func (r Result) String() string {
	return fmt.Sprintf("%s -> %s (%d bytes)", r.Collection, r.Path, r.Bytes)
}
