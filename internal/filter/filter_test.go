package filter

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/pfrederiksen/camp-watch/internal/availability"
	"github.com/pfrederiksen/camp-watch/internal/calendar"
	"github.com/pfrederiksen/camp-watch/internal/site"
)

func rec(t *testing.T, month, day int, status string, level availability.Level, facility string) availability.Record {
	t.Helper()
	r, err := availability.NewRecord(2026, month, day, status, level, "", facility)
	if err != nil {
		t.Fatalf("NewRecord(%d/%d) error: %v", month, day, err)
	}
	return r
}

func holidays2026(t *testing.T, dates ...string) *calendar.Holidays {
	t.Helper()
	h := calendar.NewHolidays()
	if err := h.AddList(2026, dates); err != nil {
		t.Fatalf("AddList() error: %v", err)
	}
	return h
}

func dates(records []availability.Record) []string {
	var out []string
	for _, r := range records {
		out = append(out, r.Date.String())
	}
	return out
}

var cottageRules = &site.FacilityRules{
	Always:       []string{"キャンプ宿泊"},
	Seasonal:     []string{"コテージ柏", "翠山荘"},
	SeasonMonths: []int{12, 1, 2, 3},
}

func TestAggregate_Scenarios(t *testing.T) {
	tests := []struct {
		name      string
		records   func(t *testing.T) []availability.Record
		holidays  []string
		rules     *site.FacilityRules
		wantDates []string
	}{
		{
			name: "sunday before a monday holiday is included",
			records: func(t *testing.T) []availability.Record {
				return []availability.Record{rec(t, 1, 11, "残室あり", availability.LevelAvailable, "")}
			},
			holidays:  []string{"1/12"},
			wantDates: []string{"1/11"},
		},
		{
			name: "ordinary sunday is excluded",
			records: func(t *testing.T) []availability.Record {
				return []availability.Record{rec(t, 1, 18, "残室あり", availability.LevelAvailable, "")}
			},
			holidays:  []string{"1/12"},
			wantDates: nil,
		},
		{
			name: "saturday is included without holidays",
			records: func(t *testing.T) []availability.Record {
				return []availability.Record{rec(t, 3, 14, "残りわずか", availability.LevelFewLeft, "")}
			},
			wantDates: []string{"3/14"},
		},
		{
			name: "seasonal facility outside its season is excluded",
			records: func(t *testing.T) []availability.Record {
				return []availability.Record{rec(t, 7, 11, "〇", availability.LevelAvailable, "コテージ柏")}
			},
			rules:     cottageRules,
			wantDates: nil,
		},
		{
			name: "seasonal facility in season is included",
			records: func(t *testing.T) []availability.Record {
				return []availability.Record{rec(t, 2, 14, "〇", availability.LevelAvailable, "コテージ柏")}
			},
			rules:     cottageRules,
			wantDates: []string{"2/14"},
		},
		{
			name: "unlisted facility is excluded when rules exist",
			records: func(t *testing.T) []availability.Record {
				return []availability.Record{rec(t, 2, 14, "〇", availability.LevelAvailable, "バンガロー")}
			},
			rules:     cottageRules,
			wantDates: nil,
		},
		{
			name: "full and weekday records are dropped",
			records: func(t *testing.T) []availability.Record {
				return []availability.Record{
					rec(t, 2, 13, "〇", availability.LevelAvailable, ""),
					rec(t, 2, 14, "満室", availability.LevelFull, ""),
					rec(t, 2, 21, "残1", availability.LevelFewLeft, ""),
				}
			},
			wantDates: []string{"2/21"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.records(t), holidays2026(t, tt.holidays...), tt.rules)
			if tt.wantDates == nil {
				if got != nil {
					t.Fatalf("Aggregate() = %+v, want nil", got)
				}
				return
			}
			if diff := cmp.Diff(tt.wantDates, dates(got.Records())); diff != "" {
				t.Errorf("Aggregate() dates mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAggregate_EmptyInput(t *testing.T) {
	if got := Aggregate(nil, nil, nil); got != nil {
		t.Errorf("Aggregate(nil) = %+v, want nil", got)
	}
	if got := Aggregate(nil, nil, nil); got.Len() != 0 {
		t.Errorf("Len() of nil result = %d, want 0", got.Len())
	}
}

func TestAggregate_Grouping(t *testing.T) {
	h := holidays2026(t, "2/23", "3/20")
	records := []availability.Record{
		rec(t, 2, 14, "〇", availability.LevelAvailable, "キャンプ宿泊"),
		rec(t, 3, 7, "〇", availability.LevelAvailable, "キャンプ宿泊"),
		rec(t, 2, 22, "△", availability.LevelFewLeft, "コテージ柏"),
		rec(t, 2, 21, "〇", availability.LevelAvailable, "キャンプ宿泊"),
	}

	got := Aggregate(records, h, cottageRules)
	if got == nil {
		t.Fatal("Aggregate() = nil")
	}

	type shape struct {
		Label      string
		Facilities []string
		Counts     []int
	}
	var gotShape []shape
	for _, m := range got.Months {
		s := shape{Label: m.Label}
		for _, f := range m.Facilities {
			s.Facilities = append(s.Facilities, f.Facility)
			s.Counts = append(s.Counts, len(f.Records))
		}
		gotShape = append(gotShape, s)
	}

	want := []shape{
		{Label: "2月", Facilities: []string{"キャンプ宿泊", "コテージ柏"}, Counts: []int{2, 1}},
		{Label: "3月", Facilities: []string{"キャンプ宿泊"}, Counts: []int{1}},
	}
	if diff := cmp.Diff(want, gotShape); diff != "" {
		t.Errorf("grouping mismatch (-want +got):\n%s", diff)
	}
	if !got.HasFacilities() {
		t.Error("HasFacilities() = false, want true")
	}
	if got.Len() != 4 {
		t.Errorf("Len() = %d, want 4", got.Len())
	}
}

func TestQualifying_Dedup(t *testing.T) {
	records := []availability.Record{
		rec(t, 2, 14, "残3", availability.LevelFewLeft, ""),
		rec(t, 2, 21, "〇", availability.LevelAvailable, ""),
		rec(t, 2, 14, "残1", availability.LevelFewLeft, ""),
	}

	got := Qualifying(records, nil, nil)
	if diff := cmp.Diff([]string{"2/14", "2/21"}, dates(got)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if got[0].Status != "残1" {
		t.Errorf("duplicate content = %q, want last write %q", got[0].Status, "残1")
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	h := holidays2026(t, "1/12", "2/23")
	records := []availability.Record{
		rec(t, 1, 10, "〇", availability.LevelAvailable, ""),
		rec(t, 1, 11, "残2", availability.LevelFewLeft, ""),
		rec(t, 2, 22, "〇", availability.LevelAvailable, ""),
		rec(t, 1, 10, "残1", availability.LevelFewLeft, ""),
	}
	before := append([]availability.Record(nil), records...)

	first := Aggregate(records, h, nil)
	second := Aggregate(records, h, nil)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Aggregate() not idempotent (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(before, records); diff != "" {
		t.Errorf("Aggregate() modified its input (-before +after):\n%s", diff)
	}
}

func TestMonthLabel(t *testing.T) {
	if got := MonthLabel(time.December); got != "12月" {
		t.Errorf("MonthLabel(December) = %q, want 12月", got)
	}
}
