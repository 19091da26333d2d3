// Package insights computes posting-performance statistics from the
// durable clip records. Everything here is a pure function of its
// input; reports are recomputed on demand and never stored.
package insights

import (
	"fmt"
	"math"

	"github.com/clipstudio/clipper-agent/internal/studio"
)

// bucketDef is one fixed duration range. Upper bounds are inclusive;
// the last bucket is open-ended.
type bucketDef struct {
	Label string
	Lo    float64
	Hi    float64 // math.Inf(1) for the open bucket
}

// Fixed bucket order. Ties on best average views resolve to the
// earliest bucket in this order.
var bucketDefs = []bucketDef{
	{"0-15s", 0, 15},
	{"16-30s", 15, 30},
	{"31-45s", 30, 45},
	{"46-60s", 45, 60},
	{">60s", 60, math.Inf(1)},
}

// Totals are summed counts across a set of records.
type Totals struct {
	Views    int `json:"views"`
	Likes    int `json:"likes"`
	Comments int `json:"comments"`
}

// PlatformStat aggregates the records tagged with one platform.
type PlatformStat struct {
	Platform   string  `json:"platform"`
	ClipCount  int     `json:"clip_count"`
	Totals     Totals  `json:"totals"`
	AvgViews   int     `json:"avg_views"`
	Engagement float64 `json:"engagement"`
}

// BucketStat aggregates the records falling into one duration range.
type BucketStat struct {
	Label       string  `json:"label"`
	ClipCount   int     `json:"clip_count"`
	Totals      Totals  `json:"totals"`
	AvgViews    float64 `json:"avg_views"`
	AvgDuration float64 `json:"avg_duration"`
	Engagement  float64 `json:"engagement"`
}

// Report is the full analysis of a record collection.
type Report struct {
	TotalClips        int            `json:"total_clips"`
	Totals            Totals         `json:"totals"`
	OverallEngagement float64        `json:"overall_engagement"`
	Platforms         []PlatformStat `json:"platforms"`
	Buckets           []BucketStat   `json:"buckets"`
	BestBucket        string         `json:"best_bucket,omitempty"`
	Lines             []string       `json:"lines"`
	NoData            bool           `json:"no_data"`
}

// EngagementRate is (likes+comments)/views as a percentage, 0 when
// there are no views.
func EngagementRate(views, likes, comments int) float64 {
	if views == 0 {
		return 0
	}
	return float64(likes+comments) / float64(views) * 100
}

// Analyze builds a Report from the given records. It is deterministic
// and keeps no state between calls.
func Analyze(records []studio.PersistedClip) Report {
	if len(records) == 0 {
		return Report{
			Platforms: []PlatformStat{},
			Buckets:   []BucketStat{},
			Lines:     []string{"No clip data yet. Cut some clips and record their metrics."},
			NoData:    true,
		}
	}

	report := Report{
		TotalClips: len(records),
		Platforms:  []PlatformStat{},
		Buckets:    []BucketStat{},
	}

	// platform grouping preserves first-seen order
	platformIdx := map[string]int{}
	bucketAgg := make([]BucketStat, len(bucketDefs))
	bucketDur := make([]float64, len(bucketDefs))
	for i, def := range bucketDefs {
		bucketAgg[i].Label = def.Label
	}

	for _, r := range records {
		report.Totals.Views += r.Metrics.Views
		report.Totals.Likes += r.Metrics.Likes
		report.Totals.Comments += r.Metrics.Comments

		for _, platform := range r.PlatformsPosted {
			i, seen := platformIdx[platform]
			if !seen {
				i = len(report.Platforms)
				platformIdx[platform] = i
				report.Platforms = append(report.Platforms, PlatformStat{Platform: platform})
			}
			p := &report.Platforms[i]
			p.ClipCount++
			p.Totals.Views += r.Metrics.Views
			p.Totals.Likes += r.Metrics.Likes
			p.Totals.Comments += r.Metrics.Comments
		}

		// unknown durations stay out of the buckets
		if r.StartSeconds == nil || r.EndSeconds == nil {
			continue
		}
		dur := *r.EndSeconds - *r.StartSeconds
		if dur < 0 {
			continue
		}
		if i, ok := bucketFor(dur); ok {
			bucketAgg[i].ClipCount++
			bucketAgg[i].Totals.Views += r.Metrics.Views
			bucketAgg[i].Totals.Likes += r.Metrics.Likes
			bucketAgg[i].Totals.Comments += r.Metrics.Comments
			bucketDur[i] += dur
		}
	}

	report.OverallEngagement = EngagementRate(report.Totals.Views, report.Totals.Likes, report.Totals.Comments)
	if report.Totals.Views > 0 {
		report.Lines = append(report.Lines, fmt.Sprintf(
			"Overall: %d views across %d clips, %.1f%% engagement",
			report.Totals.Views, report.TotalClips, report.OverallEngagement))
	}

	for i := range report.Platforms {
		p := &report.Platforms[i]
		p.AvgViews = int(math.Round(float64(p.Totals.Views) / float64(p.ClipCount)))
		p.Engagement = EngagementRate(p.Totals.Views, p.Totals.Likes, p.Totals.Comments)
		if p.Totals.Views > 0 {
			report.Lines = append(report.Lines, fmt.Sprintf(
				"%s: %d clips, avg %d views, %.1f%% engagement",
				p.Platform, p.ClipCount, p.AvgViews, p.Engagement))
		}
	}

	bestIdx := -1
	for i := range bucketAgg {
		b := &bucketAgg[i]
		if b.ClipCount == 0 {
			continue
		}
		b.AvgViews = float64(b.Totals.Views) / float64(b.ClipCount)
		b.AvgDuration = bucketDur[i] / float64(b.ClipCount)
		b.Engagement = EngagementRate(b.Totals.Views, b.Totals.Likes, b.Totals.Comments)
		report.Buckets = append(report.Buckets, *b)
		report.Lines = append(report.Lines, fmt.Sprintf(
			"%s clips: %d cut, avg %.0f views, %.1f%% engagement",
			b.Label, b.ClipCount, b.AvgViews, b.Engagement))

		// strictly-greater keeps the first bucket on ties
		if bestIdx == -1 || b.AvgViews > bucketAgg[bestIdx].AvgViews {
			bestIdx = i
		}
	}
	if bestIdx >= 0 {
		report.BestBucket = bucketAgg[bestIdx].Label
		report.Lines = append(report.Lines, fmt.Sprintf(
			"Best performing length: %s (avg %.0f views)",
			bucketAgg[bestIdx].Label, bucketAgg[bestIdx].AvgViews))
	}

	if len(report.Lines) == 0 {
		report.Lines = []string{"Insufficient data for insights. Add views and platform tags to your clips."}
	}
	return report
}

// bucketFor places a duration into the fixed ranges. Upper bounds are
// inclusive, so a 15.0s clip lands in 0-15s and 15.1s in 16-30s.
func bucketFor(dur float64) (int, bool) {
	for i, def := range bucketDefs {
		if dur > def.Lo && dur <= def.Hi {
			return i, true
		}
		if i == 0 && dur == 0 {
			return 0, true
		}
	}
	return 0, false
}
