// Package watch notices when the published table artifact is replaced.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// Stamp identifies one version of the artifact on disk.
type Stamp struct {
	Path    string
	ModTime time.Time
	Size    int64

	info os.FileInfo
}

// Differs reports whether s and o describe different files. Atomic writes
// rename a fresh file over the old one, so a new identity counts even when
// mtime and size repeat within the filesystem's timestamp granularity.
func (s Stamp) Differs(o Stamp) bool {
	if s.info == nil || o.info == nil {
		return s.info != o.info
	}
	return !s.ModTime.Equal(o.ModTime) || s.Size != o.Size || !os.SameFile(s.info, o.info)
}

func stat(path string) (Stamp, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Stamp{Path: path}, err
	}
	return Stamp{Path: path, ModTime: fi.ModTime(), Size: fi.Size(), info: fi}, nil
}

// ArtifactWatcher polls one artifact path and calls onChange with the new
// stamp whenever it is replaced or rewritten.
type ArtifactWatcher struct {
	Path     string
	Interval time.Duration

	onChange func(Stamp)
	log      *logrus.Entry
	last     Stamp
}

func NewArtifactWatcher(path string, interval time.Duration, onChange func(Stamp), log *logrus.Entry) *ArtifactWatcher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ArtifactWatcher{
		Path:     path,
		Interval: interval,
		onChange: onChange,
		log:      log.WithField("path", path),
	}
}

// Prime records the current artifact without reporting it.
func (w *ArtifactWatcher) Prime() {
	if st, err := stat(w.Path); err == nil {
		w.last = st
	}
}

// Check stats the artifact once and calls onChange if it differs from the
// last one seen. A missing artifact keeps the last stamp so that the same
// file reappearing is not reported. Not safe for concurrent use.
func (w *ArtifactWatcher) Check() bool {
	st, err := stat(w.Path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.log.WithError(err).Warn("stat artifact")
		}
		return false
	}
	if !st.Differs(w.last) {
		return false
	}
	w.last = st
	w.log.WithFields(logrus.Fields{
		"size":  humanize.IBytes(uint64(st.Size)),
		"mtime": st.ModTime.Format(time.RFC3339),
	}).Debug("artifact changed")
	if w.onChange != nil {
		w.onChange(st)
	}
	return true
}

// Run polls until ctx is done. Call Prime first so the artifact already in
// service is not reported.
func (w *ArtifactWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.Check()
		case <-ctx.Done():
			return nil
		}
	}
}
