// Package dump snapshots the cache to versioned per-shard files and
// restores them by replaying records through the engine's store path.
// Persistence is layered on iteration: the engine itself stays unaware of
// disks, and restored entries keep their value, deadline, and flags.
package dump

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hivecache/hivecache/config"
	"github.com/hivecache/hivecache/internal/engine"
	"github.com/hivecache/hivecache/internal/shared/cachedtime"
)

var (
	errDumpNotEnabled = errors.New("persistence is not enabled")
	errCRCMismatch    = errors.New("record crc mismatch")
)

const writerBufSize = 512 * 1024

type Dumper interface {
	Dump(ctx context.Context) error
	Restore(ctx context.Context) error
	RestoreVersion(ctx context.Context, v string) error
}

type Dump struct {
	cfg   *config.PersistenceCfg
	cache *engine.Cache
}

func New(cfg *config.PersistenceCfg, cache *engine.Cache) *Dump {
	return &Dump{cfg: cfg, cache: cache}
}

// Dump writes one snapshot file per shard into a fresh version directory.
// Shards are written in parallel; each shard's lock is held only while that
// shard is walked.
func (d *Dump) Dump(ctx context.Context) error {
	start := cachedtime.Now()
	if !d.cfg.Enabled() {
		return errDumpNotEnabled
	}
	if err := os.MkdirAll(d.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create base dump dir: %w", err)
	}

	versionDir := filepath.Join(d.cfg.Dir, fmt.Sprintf("v%d", nextVersionDir(d.cfg.Dir)))
	if err := os.MkdirAll(versionDir, 0o755); err != nil {
		return fmt.Errorf("create version dir: %w", err)
	}
	timestamp := cachedtime.Now().Format("20060102T150405")

	var written atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for idx := 0; idx < d.cache.NShards(); idx++ {
		idx := idx
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			n, err := d.dumpShard(idx, versionDir, timestamp)
			if err != nil {
				return fmt.Errorf("dump shard %d: %w", idx, err)
			}
			written.Add(n)
			return nil
		})
	}
	err := g.Wait()

	if d.cfg.MaxVersions > 0 {
		rotateVersionDirs(d.cfg.Dir, d.cfg.MaxVersions)
	}

	log.Info().
		Int64("written", written.Load()).
		Str("elapsed", time.Since(start).String()).
		Str("dir", versionDir).
		Msg("dumping finished")

	return err
}

func (d *Dump) dumpShard(idx int, versionDir, timestamp string) (records int64, err error) {
	ext := ".dump"
	if d.cfg.Gzip {
		ext += ".gz"
	}
	name := filepath.Join(versionDir, fmt.Sprintf("%s-shard-%d-%s%s", d.cfg.Name, idx, timestamp, ext))
	tmp := name + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", tmp, err)
	}

	var (
		writer io.Writer = f
		gw     *gzip.Writer
	)
	if d.cfg.Gzip {
		gw = gzip.NewWriter(f)
		writer = gw
	}
	bw := bufio.NewWriterSize(writer, writerBufSize)

	var writeErr error
	d.cache.IterateShard(idx, func(v engine.EntryView) engine.IterAction {
		if writeErr = d.writeRecord(bw, v); writeErr != nil {
			return engine.IterStop
		}
		records++
		return engine.IterContinue
	})

	if err := bw.Flush(); writeErr == nil {
		writeErr = err
	}
	if gw != nil {
		if err := gw.Close(); writeErr == nil {
			writeErr = err
		}
	}
	if err := f.Close(); writeErr == nil {
		writeErr = err
	}
	if writeErr != nil {
		_ = os.Remove(tmp)
		return 0, writeErr
	}
	return records, os.Rename(tmp, name)
}

// Record layout: u32 body length, u32 crc (0 when disabled), then the body:
// u32 keylen | key | u32 vallen | value | i64 expires | u32 flags.
func (d *Dump) writeRecord(bw *bufio.Writer, v engine.EntryView) error {
	body := make([]byte, 0, 4+len(v.Key)+4+len(v.Value)+8+4)
	body = binary.LittleEndian.AppendUint32(body, uint32(len(v.Key)))
	body = append(body, v.Key...)
	body = binary.LittleEndian.AppendUint32(body, uint32(len(v.Value)))
	body = append(body, v.Value...)
	body = binary.LittleEndian.AppendUint64(body, uint64(v.Expires))
	body = binary.LittleEndian.AppendUint32(body, v.Flags)

	var crc uint32
	if d.cfg.Crc32Control {
		crc = crc32.ChecksumIEEE(body)
	}

	var meta [8]byte
	binary.LittleEndian.PutUint32(meta[0:4], uint32(len(body)))
	binary.LittleEndian.PutUint32(meta[4:8], crc)
	if _, err := bw.Write(meta[:]); err != nil {
		return err
	}
	_, err := bw.Write(body)
	return err
}

// Restore replays the most recent snapshot version.
func (d *Dump) Restore(ctx context.Context) error {
	if !d.cfg.Enabled() {
		return errDumpNotEnabled
	}
	dir := getLatestVersionDir(d.cfg.Dir)
	if dir == "" {
		return fmt.Errorf("no versioned dump dirs found in %s", d.cfg.Dir)
	}
	return d.restore(ctx, dir)
}

// RestoreVersion replays a specific snapshot version (e.g. "v3").
func (d *Dump) RestoreVersion(ctx context.Context, v string) error {
	if !d.cfg.Enabled() {
		return errDumpNotEnabled
	}
	return d.restore(ctx, filepath.Join(d.cfg.Dir, v))
}

func (d *Dump) restore(ctx context.Context, dir string) error {
	start := cachedtime.Now()

	pattern := filepath.Join(dir, fmt.Sprintf("%s-shard-*.dump*", d.cfg.Name))
	files, _ := filepath.Glob(pattern)
	if len(files) == 0 {
		return fmt.Errorf("no dump files found in %s", dir)
	}
	ts := extractLatestTimestamp(files)
	files = filterFilesByTimestamp(files, ts)

	var restored, skipped atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for _, file := range files {
		file := file
		g.Go(func() error {
			n, s, err := d.restoreFile(ctx, file)
			restored.Add(n)
			skipped.Add(s)
			if err != nil {
				return fmt.Errorf("restore %s: %w", file, err)
			}
			return nil
		})
	}
	err := g.Wait()

	log.Info().
		Int64("restored", restored.Load()).
		Int64("skipped", skipped.Load()).
		Str("elapsed", time.Since(start).String()).
		Str("dir", dir).
		Msg("restoring dump")

	return err
}

func (d *Dump) restoreFile(ctx context.Context, fn string) (restored, skipped int64, err error) {
	f, err := os.Open(fn)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(fn, ".gz") {
		gzr, err := gzip.NewReader(f)
		if err != nil {
			return 0, 0, fmt.Errorf("gzip open: %w", err)
		}
		defer gzr.Close()
		reader = gzr
	}

	now := time.Now().UnixNano()
	br := bufio.NewReaderSize(reader, writerBufSize)
	batch := d.cache.Begin()
	defer batch.End()

	var metaBuf [8]byte
	for {
		if ctx.Err() != nil {
			return restored, skipped, ctx.Err()
		}
		if _, err := io.ReadFull(br, metaBuf[:]); err == io.EOF {
			return restored, skipped, nil
		} else if err != nil {
			return restored, skipped, fmt.Errorf("read meta: %w", err)
		}

		sz := binary.LittleEndian.Uint32(metaBuf[0:4])
		expCRC := binary.LittleEndian.Uint32(metaBuf[4:8])
		body := make([]byte, sz)
		if _, err := io.ReadFull(br, body); err != nil {
			return restored, skipped, fmt.Errorf("read record: %w", err)
		}
		if d.cfg.Crc32Control && crc32.ChecksumIEEE(body) != expCRC {
			return restored, skipped, errCRCMismatch
		}

		key, value, expires, flags, err := decodeRecord(body)
		if err != nil {
			return restored, skipped, err
		}
		if expires != 0 && expires <= now {
			skipped++ // dead on arrival
			continue
		}
		batch.Store(key, value, &engine.StoreOptions{Expires: expires, Flags: flags})
		restored++
	}
}

func decodeRecord(body []byte) (key, value []byte, expires int64, flags uint32, err error) {
	malformed := fmt.Errorf("malformed record (%d bytes)", len(body))
	if len(body) < 4 {
		return nil, nil, 0, 0, malformed
	}
	klen := binary.LittleEndian.Uint32(body)
	body = body[4:]
	// Widen before adding: a near-max length must not wrap past the check.
	if uint64(klen)+4 > uint64(len(body)) {
		return nil, nil, 0, 0, malformed
	}
	key, body = body[:klen], body[klen:]
	vlen := binary.LittleEndian.Uint32(body)
	body = body[4:]
	if uint64(vlen)+12 != uint64(len(body)) {
		return nil, nil, 0, 0, malformed
	}
	value, body = body[:vlen], body[vlen:]
	expires = int64(binary.LittleEndian.Uint64(body))
	flags = binary.LittleEndian.Uint32(body[8:])
	return key, value, expires, flags, nil
}

// nextVersionDir picks the next sequential version number.
func nextVersionDir(baseDir string) int {
	entries, _ := filepath.Glob(filepath.Join(baseDir, "v*"))
	maxV := 0
	for _, dir := range entries {
		name := filepath.Base(dir)
		if !strings.HasPrefix(name, "v") {
			continue
		}
		var v int
		fmt.Sscanf(name, "v%d", &v)
		if v > maxV {
			maxV = v
		}
	}
	return maxV + 1
}

// rotateVersionDirs keeps only the newest `max` dirs, removes the rest.
func rotateVersionDirs(baseDir string, max int) {
	entries, _ := filepath.Glob(filepath.Join(baseDir, "v*"))
	if len(entries) <= max {
		return
	}
	sort.Slice(entries, func(i, j int) bool {
		fi, _ := os.Stat(entries[i])
		fj, _ := os.Stat(entries[j])
		return fi.ModTime().After(fj.ModTime())
	})
	for _, dir := range entries[max:] {
		os.RemoveAll(dir)
		log.Info().Msgf("removed old dump dir: %s", dir)
	}
}

// getLatestVersionDir returns the most recently modified version dir.
func getLatestVersionDir(baseDir string) string {
	entries, _ := filepath.Glob(filepath.Join(baseDir, "v*"))
	if len(entries) == 0 {
		return ""
	}
	sort.Slice(entries, func(i, j int) bool {
		fi, _ := os.Stat(entries[i])
		fj, _ := os.Stat(entries[j])
		return fi.ModTime().After(fj.ModTime())
	})
	return entries[0]
}

// extractLatestTimestamp picks the largest timestamp suffix among files.
func extractLatestTimestamp(files []string) string {
	var tsList []string
	for _, f := range files {
		parts := strings.Split(filepath.Base(f), "-")
		if len(parts) >= 4 {
			ts := parts[len(parts)-1]
			ts = strings.TrimSuffix(ts, ".gz")
			ts = strings.TrimSuffix(ts, ".dump")
			tsList = append(tsList, ts)
		}
	}
	sort.Strings(tsList)
	if len(tsList) == 0 {
		return ""
	}
	return tsList[len(tsList)-1]
}

// filterFilesByTimestamp returns only files containing the given ts.
func filterFilesByTimestamp(files []string, ts string) []string {
	var out []string
	for _, f := range files {
		if strings.Contains(f, ts) {
			out = append(out, f)
		}
	}
	return out
}
