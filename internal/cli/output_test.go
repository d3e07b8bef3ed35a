package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pfrederiksen/camp-watch/internal/availability"
	"github.com/pfrederiksen/camp-watch/internal/filter"
	"github.com/pfrederiksen/camp-watch/internal/monitor"
)

func mustRecord(t *testing.T, month, day int, status, facility string) availability.Record {
	t.Helper()
	r, err := availability.NewRecord(2026, month, day, status, availability.LevelAvailable, "ラM2", facility)
	if err != nil {
		t.Fatalf("NewRecord() error: %v", err)
	}
	return r
}

func testRun(t *testing.T) *monitor.RunResult {
	fumoto := filter.Aggregate([]availability.Record{
		mustRecord(t, 3, 7, "〇", "キャンプ宿泊"),
		mustRecord(t, 2, 14, "〇", "キャンプ宿泊"),
	}, nil, nil)
	tenku := filter.Aggregate([]availability.Record{
		mustRecord(t, 2, 21, "〇", ""),
	}, nil, nil)

	return &monitor.RunResult{
		StartedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Sites: []monitor.SiteResult{
			{Site: "fumotoppara", DisplayName: "ふもとっぱら", Pages: 1, Extracted: 9, Qualifying: 2, Result: fumoto, Notified: true},
			{Site: "tenku", DisplayName: "TENKU", Pages: 1, Extracted: 3, Qualifying: 1, Result: tenku, Duplicate: true},
			{Site: "hillbilly", DisplayName: "ヒルビリー", Pages: 4, FailedPages: 4, Errors: []string{"connection refused"}},
		},
	}
}

func TestNewOutputResult(t *testing.T) {
	result := NewOutputResult(testRun(t))
	if result.QualifyingCount != 3 {
		t.Errorf("QualifyingCount = %d, want 3", result.QualifyingCount)
	}
	if result.Notified != 1 {
		t.Errorf("Notified = %d, want 1", result.Notified)
	}
	if result.AllFailed {
		t.Error("AllFailed = true, want false")
	}
}

func TestWriteText(t *testing.T) {
	tests := []struct {
		name     string
		order    SortOrder
		verbose  bool
		contains []string
		ordered  []string
	}{
		{
			name:  "by site",
			order: SortBySite,
			contains: []string{
				"fumotoppara (ふもとっぱら): 2 open target dates, notified",
				"tenku (TENKU): 1 open target dates, unchanged since last notification",
				"hillbilly (ヒルビリー): FAILED (4/4 pages)",
				"Total: 3 open target dates across 3 sites",
			},
			ordered: []string{"2026-03-07", "2026-02-14", "2026-02-21"},
		},
		{
			name:     "by date",
			order:    SortByDate,
			contains: []string{"2026-02-21 (土) 〇  tenku"},
			ordered:  []string{"2026-02-14", "2026-02-21", "2026-03-07"},
		},
		{
			name:     "verbose",
			order:    SortBySite,
			verbose:  true,
			contains: []string{"Detail: ラM2", "Error: connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteOutput(&buf, NewOutputResult(testRun(t)), FormatText, tt.order, tt.verbose); err != nil {
				t.Fatalf("WriteOutput() error: %v", err)
			}
			out := buf.String()

			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}

			last := -1
			for _, want := range tt.ordered {
				idx := strings.Index(out, want)
				if idx < 0 {
					t.Fatalf("output missing %q:\n%s", want, out)
				}
				if idx < last {
					t.Errorf("%q out of order:\n%s", want, out)
				}
				last = idx
			}
		})
	}
}

func TestWriteOutput_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteOutput(&buf, &OutputResult{}, "xml", SortBySite, false); err == nil {
		t.Error("WriteOutput() with unknown format should fail")
	}
}
