package infra

import (
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/droidrun/droidrun-portal-sub000/internal/domain"
)

// keepUncompressed is how many recent dumps stay readable without
// gunzip; older ones get compressed in place.
const keepUncompressed = 5

// FileSink persists snapshot dumps as text files. The flows decide when
// to dump; the sink only rate-limits, writes and rotates. Dumps beyond
// the per-minute ceiling are dropped silently, never queued.
type FileSink struct {
	dir      string
	maxDumps int
	limiter  *rate.Limiter
	logger   *zap.Logger

	mu sync.Mutex // serializes rotation
}

var _ domain.DiagnosticsSink = (*FileSink)(nil)

// NewFileSink creates the dump directory and returns the sink.
func NewFileSink(dir string, maxDumps, perMinute int, logger *zap.Logger) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create dump dir: %w", err)
	}
	return &FileSink{
		dir:      dir,
		maxDumps: maxDumps,
		limiter:  rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
		logger:   logger.With(zap.String("component", "diagnostics")),
	}, nil
}

// Dump writes one rendered snapshot under the tag. A nil snapshot still
// produces a file; "the flow decided to dump and there was nothing to
// capture" is itself evidence.
func (s *FileSink) Dump(tag string, snap *domain.Snapshot) error {
	if !s.limiter.Allow() {
		s.logger.Debug("dump dropped by rate ceiling", zap.String("tag", tag))
		return nil
	}

	name := fmt.Sprintf("%s_%s_%s.txt",
		time.Now().UTC().Format("20060102T150405.000"),
		tag,
		uuid.NewString()[:8])
	path := filepath.Join(s.dir, name)

	var b strings.Builder
	fmt.Fprintf(&b, "tag: %s\n", tag)
	if snap == nil {
		b.WriteString("snapshot: none\n")
	} else {
		fmt.Fprintf(&b, "window: %d\n", snap.WindowID)
		fmt.Fprintf(&b, "screen: %dx%d\n", snap.ScreenWidth, snap.ScreenHeight)
		fmt.Fprintf(&b, "captured: %s\n\n", snap.CapturedAt.UTC().Format(time.RFC3339Nano))
		b.WriteString(domain.FormatTree(snap.Roots))
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("write dump %s: %w", name, err)
	}
	s.logger.Info("wrote diagnostics dump",
		zap.String("tag", tag),
		zap.String("file", name))

	if err := s.rotate(); err != nil {
		s.logger.Warn("dump rotation failed", zap.Error(err))
	}
	return nil
}

// rotate compresses all but the newest dumps and prunes the directory
// down to maxDumps files. Filenames start with a UTC timestamp, so name
// order is age order.
func (s *FileSink) rotate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n := e.Name()
		if strings.HasSuffix(n, ".txt") || strings.HasSuffix(n, ".txt.gz") {
			names = append(names, n)
		}
	}
	sort.Strings(names)

	// Newest last. Compress aged-out plain files.
	uncompressed := 0
	for i := len(names) - 1; i >= 0; i-- {
		if !strings.HasSuffix(names[i], ".txt") {
			continue
		}
		uncompressed++
		if uncompressed <= keepUncompressed {
			continue
		}
		if err := s.compress(names[i]); err != nil {
			return err
		}
		names[i] += ".gz"
	}

	if s.maxDumps <= 0 {
		return nil
	}
	for len(names) > s.maxDumps {
		if err := os.Remove(filepath.Join(s.dir, names[0])); err != nil {
			return err
		}
		names = names[1:]
	}
	return nil
}

func (s *FileSink) compress(name string) error {
	src := filepath.Join(s.dir, name)
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	dst, err := os.OpenFile(src+".gz", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(dst)
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		dst.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
