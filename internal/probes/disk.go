package probes

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"github.com/jacobarthurs/syswhy/internal/module"
	"github.com/jacobarthurs/syswhy/internal/report"
)

const (
	DiskFillWarnPct = 85
	DiskFillCritPct = 95

	diskDefaultDepth = 3
	diskMaxDepth     = 5
	heavyDirBytes    = 100 << 20
	heavyDirLimit    = 10
	diskReviewBytes  = 50 << 30
)

const KeyDiskFill = "disk.fill"

type Disk struct {
	module.Base
	env Env
	now func() time.Time
}

func NewDisk(env Env) *Disk { return &Disk{env: env, now: time.Now} }

func (d *Disk) Name() string        { return "disk" }
func (d *Disk) Description() string { return "Analyze disk space usage and find large or old files" }

func (d *Disk) DefaultThresholds() map[string]report.Threshold {
	return map[string]report.Threshold{KeyDiskFill: {Warning: DiskFillWarnPct, Critical: DiskFillCritPct}}
}

type diskOptions struct {
	path    string
	depth   int
	hidden  bool
	large   uint64
	olderBy time.Duration
}

func diskOptionsFrom(cfg module.Config) (diskOptions, error) {
	opts := diskOptions{
		path:   cfg.ExtraString("path", "/"),
		depth:  cfg.ExtraInt("depth", diskDefaultDepth),
		hidden: cfg.ExtraBool("hidden"),
	}
	if !filepath.IsAbs(opts.path) {
		if abs, err := filepath.Abs(opts.path); err == nil {
			opts.path = abs
		}
	}
	if opts.depth < 0 {
		opts.depth = 0
	}
	opts.depth = min(opts.depth, diskMaxDepth)
	if s := cfg.ExtraString("large", ""); s != "" {
		n, err := humanize.ParseBytes(s)
		if err != nil {
			return opts, module.Errorf(module.KindParseError, "disk", "invalid size %q: %v", s, err)
		}
		opts.large = n
	}
	if days := cfg.ExtraInt("old", 0); days > 0 {
		opts.olderBy = time.Duration(days) * 24 * time.Hour
	}
	return opts, nil
}

type fileEntry struct {
	path string
	size uint64
	mod  time.Time
}

type walkResult struct {
	total uint64
	files []fileEntry
	dirs  map[string]uint64
}

// walk sums regular files under root without crossing into other filesystems.
func (d *Disk) walk(ctx context.Context, root string, opts diskOptions) (walkResult, error) {
	res := walkResult{dirs: map[string]uint64{}}
	var rootStat unix.Stat_t
	if err := unix.Stat(root, &rootStat); err != nil {
		return res, err
	}
	rootDepth := strings.Count(filepath.Clean(root), string(filepath.Separator))

	err := filepath.WalkDir(root, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			d.env.log().WithError(err).WithField("path", p).Debug("skipping unreadable entry")
			if e != nil && e.IsDir() && p != root {
				return fs.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if p != root && !opts.hidden && strings.HasPrefix(e.Name(), ".") {
			if e.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if e.IsDir() {
			if p == root {
				return nil
			}
			if strings.Count(p, string(filepath.Separator))-rootDepth >= opts.depth {
				return fs.SkipDir
			}
			var st unix.Stat_t
			if unix.Lstat(p, &st) == nil && st.Dev != rootStat.Dev {
				return fs.SkipDir
			}
			return nil
		}
		if !e.Type().IsRegular() {
			return nil
		}
		info, err := e.Info()
		if err != nil {
			return nil
		}
		size := uint64(info.Size())
		res.total += size
		res.dirs[filepath.Dir(p)] += size
		res.files = append(res.files, fileEntry{path: p, size: size, mod: info.ModTime()})
		return nil
	})
	return res, err
}

func (d *Disk) fill(path string) (fillPct float64, used, size uint64, err error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, 0, 0, err
	}
	bsize := uint64(st.Bsize)
	used = (st.Blocks - st.Bfree) * bsize
	avail := st.Bavail * bsize
	size = st.Blocks * bsize
	// Same formula as df: reserved blocks count as neither used nor free.
	return pct(float64(used), float64(used+avail)), used, size, nil
}

func (d *Disk) Run(ctx context.Context, cfg module.Config) (*report.Report, error) {
	opts, err := diskOptionsFrom(cfg)
	if err != nil {
		return nil, err
	}
	r := report.New(d.Name(), "Disk space analysis")
	root := d.env.Sys.Path(opts.path)

	if !d.env.Sys.Exists(opts.path) {
		r.AddFinding(report.Finding{
			Severity: report.Critical,
			Category: "disk",
			Message:  fmt.Sprintf("Path does not exist: %s", opts.path),
		})
		r.Finalize()
		return r, nil
	}

	r.AddMetric(report.Metric{Name: "Path analyzed", Value: report.Text(opts.path)})

	th := cfg.Threshold(KeyDiskFill, report.Threshold{Warning: DiskFillWarnPct, Critical: DiskFillCritPct})
	if fill, used, size, err := d.fill(root); err == nil {
		r.AddMetric(report.Metric{Name: "Filesystem usage", Value: report.Float(fill), Unit: "%", Threshold: &th})
		if sev := th.Classify(fill); sev > report.Ok {
			r.AddFinding(report.Finding{
				Severity: sev,
				Category: "filesystem",
				Message:  fmt.Sprintf("Filesystem holding %s is %.0f%% full", opts.path, fill),
				Details:  fmt.Sprintf("%s used of %s", formatBytes(used), formatBytes(size)),
			})
		}
	} else {
		d.env.log().WithError(err).Debug("statfs failed")
	}

	res, err := d.walk(ctx, root, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("walking %s: %w", opts.path, err)
	}
	r.AddMetric(report.Metric{Name: "Total size (sampled)", Value: report.Int(int64(res.total)), Unit: "bytes"})

	if opts.large > 0 {
		var large []procEntry
		for i, f := range res.files {
			if f.size >= opts.large {
				large = append(large, procEntry{pid: i, comm: d.env.Sys.Rel(f.path), val: float64(f.size)})
			}
		}
		for _, f := range topN(large, cfg.TopN) {
			r.AddFinding(report.Finding{
				Severity: report.Info,
				Category: "file",
				Message:  fmt.Sprintf("%s: %s", f.comm, formatBytes(uint64(f.val))),
				Details:  "Consider moving or compressing.",
			})
		}
	}

	if opts.olderBy > 0 {
		cutoff := d.now().Add(-opts.olderBy)
		var old []procEntry
		for i, f := range res.files {
			if f.mod.Before(cutoff) {
				old = append(old, procEntry{pid: i, comm: d.env.Sys.Rel(f.path), val: float64(f.size)})
			}
		}
		for _, f := range topN(old, cfg.TopN) {
			r.AddFinding(report.Finding{
				Severity: report.Info,
				Category: "old-file",
				Message:  fmt.Sprintf("%s: %s, not modified in %d days", f.comm, formatBytes(uint64(f.val)), int(opts.olderBy.Hours()/24)),
			})
		}
	}

	var dirs []fileEntry
	for dir, size := range res.dirs {
		if size > heavyDirBytes {
			dirs = append(dirs, fileEntry{path: d.env.Sys.Rel(dir), size: size})
		}
	}
	sort.Slice(dirs, func(i, j int) bool {
		if dirs[i].size != dirs[j].size {
			return dirs[i].size > dirs[j].size
		}
		return dirs[i].path < dirs[j].path
	})
	if len(dirs) > heavyDirLimit {
		dirs = dirs[:heavyDirLimit]
	}
	for _, dir := range dirs {
		r.AddFinding(report.Finding{
			Severity: report.Info,
			Category: "directory",
			Message:  fmt.Sprintf("%s uses %s", dir.path, formatBytes(dir.size)),
		})
	}

	if res.total > diskReviewBytes {
		r.AddRecommendation(report.Recommendation{
			Priority:    2,
			Action:      "Review large directories such as /var/log and caches and clean old data",
			Command:     []string{"du", "-xh", "--max-depth=1", opts.path},
			Explanation: "Logs and caches often consume significant space.",
		})
	}

	r.SetSummary(fmt.Sprintf("%s in %d files under %s", formatBytes(res.total), len(res.files), opts.path))
	r.Finalize()
	return r, nil
}
