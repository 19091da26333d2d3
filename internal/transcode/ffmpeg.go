package transcode

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics

// Config holds the ffmpeg cutter's configuration.
type Config struct {
	FFmpegPath   string        // path to ffmpeg binary; empty = auto-detect
	FFprobePath  string        // path to ffprobe binary; empty = auto-detect
	CutTimeout   time.Duration // timeout per cut
	ProbeTimeout time.Duration // timeout per ffprobe call
	Logger       *slog.Logger
}

// FFmpegCutter is the production implementation of Cutter.
type FFmpegCutter struct {
	cfg     Config
	ffmpeg  string // resolved ffmpeg path
	ffprobe string // resolved ffprobe path
}

// New creates an FFmpegCutter, resolving both binaries up front.
// An error here means no transcoder is available to the queue.
func New(cfg Config) (*FFmpegCutter, error) {
	ffmpeg, err := resolveBinary(cfg.FFmpegPath, "ffmpeg")
	if err != nil {
		return nil, err
	}
	ffprobe, err := resolveBinary(cfg.FFprobePath, "ffprobe")
	if err != nil {
		return nil, err
	}

	if cfg.CutTimeout <= 0 {
		cfg.CutTimeout = 15 * time.Minute
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 30 * time.Second
	}

	cfg.Logger.Info("transcoder initialised", "ffmpeg", ffmpeg, "ffprobe", ffprobe)

	return &FFmpegCutter{cfg: cfg, ffmpeg: ffmpeg, ffprobe: ffprobe}, nil
}

func (c *FFmpegCutter) Cut(ctx context.Context, sourcePath string, startSec, endSec float64, cfg OutputConfig, outPath string, progress func(float64)) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return &Error{Message: fmt.Sprintf("cannot create output dir: %v", err)}
	}

	clipLen := endSec - startSec
	args := []string{
		"-y",
		"-ss", formatSeconds(startSec),
		"-to", formatSeconds(endSec),
		"-i", sourcePath,
	}

	if vf := filterGraph(cfg, clipLen); vf != "" {
		args = append(args, "-vf", vf)
	}

	if cfg.Audio == AudioRemove {
		args = append(args, "-an")
	} else {
		args = append(args, "-c:a", "aac", "-b:a", "128k")
	}

	args = append(args,
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-crf", "23",
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		outPath,
	)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.CutTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.ffmpeg, args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &tailWriter{buf: &stderrBuf, limit: maxStderrBytes}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &Error{Message: err.Error()}
	}

	start := time.Now()
	c.cfg.Logger.Info("starting cut",
		"start_s", startSec,
		"end_s", endSec,
		"aspect", string(cfg.Aspect),
		"fade", cfg.AddFade,
		"audio", string(cfg.Audio),
	)

	if err := cmd.Start(); err != nil {
		return &Error{Message: err.Error()}
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if progress == nil {
			continue
		}
		if ratio, ok := parseProgressLine(scanner.Text(), clipLen); ok {
			progress(ratio)
		}
	}

	if err := cmd.Wait(); err != nil {
		tail := strings.TrimSpace(stderrBuf.String())
		if tail == "" {
			tail = err.Error()
		}
		c.cfg.Logger.Warn("cut failed",
			"duration_ms", time.Since(start).Milliseconds(),
			"stderr_tail", truncate(tail, 512),
		)
		os.Remove(outPath) // best effort; a failed cut leaves no partial output
		return &Error{Message: truncate(tail, 512)}
	}

	if progress != nil {
		progress(1)
	}

	c.cfg.Logger.Info("cut complete",
		"duration_ms", time.Since(start).Milliseconds(),
		"output", filepath.Base(outPath),
	)
	return nil
}

func (c *FFmpegCutter) ProbeDuration(ctx context.Context, path string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w\n%s", err, string(out))
	}

	s := strings.TrimSpace(string(out))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return sec, nil
}

// filterGraph builds the -vf argument for a cut. A fade is only applied
// when the clip is longer than one second, and never exceeds half the clip.
func filterGraph(cfg OutputConfig, clipLen float64) string {
	var filters []string

	if cfg.AddFade && clipLen > 1 {
		fade := math.Min(0.5, clipLen/2)
		filters = append(filters, fmt.Sprintf(
			"fade=t=in:st=0:d=%s,fade=t=out:st=%s:d=%s",
			formatSeconds(fade), formatSeconds(clipLen-fade), formatSeconds(fade)))
	}

	switch cfg.Aspect {
	case AspectVertical:
		filters = append(filters, "scale='if(gt(a,9/16),720,-2)':'if(gt(a,9/16),-2,1280)',crop=720:1280,setsar=1")
	case AspectSquare:
		filters = append(filters, "scale='if(gt(a,1),1080,-2)':'if(gt(a,1),-2,1080)',crop=1080:1080,setsar=1")
	case AspectHorizontal:
		filters = append(filters, "scale='if(lt(a,16/9),1280,-2)':'if(lt(a,16/9),-2,720)',crop=1280:720,setsar=1")
	case AspectOriginal:
		// passthrough
	}

	return strings.Join(filters, ",")
}

// parseProgressLine reads one key=value line of `-progress pipe:1` output
// and converts the elapsed output time into a completion ratio.
func parseProgressLine(line string, clipLen float64) (float64, bool) {
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found || key != "out_time_us" || clipLen <= 0 {
		return 0, false
	}

	us, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || us < 0 {
		return 0, false
	}

	ratio := float64(us) / 1e6 / clipLen
	if ratio > 1 {
		ratio = 1
	}
	return ratio, true
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

// resolveBinary finds a usable binary, preferring an explicit path.
func resolveBinary(preferred, fallback string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured %s %q not found", fallback, preferred)
	}
	if p, err := exec.LookPath(fallback); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("no %s binary found on PATH", fallback)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// tailWriter keeps only the last `limit` bytes written to it.
type tailWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (tw *tailWriter) Write(p []byte) (int, error) {
	n := len(p)
	tw.buf.Write(p)
	if tw.buf.Len() > tw.limit {
		b := tw.buf.Bytes()
		tail := make([]byte, tw.limit)
		copy(tail, b[len(b)-tw.limit:])
		tw.buf.Reset()
		tw.buf.Write(tail)
	}
	return n, nil
}
