package units

import "testing"

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"14:30", TimeOfDay{14, 30, 0}, false},
		{"14:30:15", TimeOfDay{14, 30, 15}, false},
		{"00:00", TimeOfDay{0, 0, 0}, false},
		{"23:59:59", TimeOfDay{23, 59, 59}, false},
		{"25:00", TimeOfDay{}, true},
		{"noon", TimeOfDay{}, true},
		{"", TimeOfDay{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTimeOfDay(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseTimeOfDay(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTimeOfDayCompare(t *testing.T) {
	morning := TimeOfDay{9, 0, 0}
	evening := TimeOfDay{21, 30, 0}

	if morning.Compare(evening) != -1 {
		t.Error("09:00 should sort before 21:30")
	}
	if evening.Compare(morning) != 1 {
		t.Error("21:30 should sort after 09:00")
	}
	if morning.Compare(morning) != 0 {
		t.Error("equal times should compare 0")
	}
}

func TestParseDate(t *testing.T) {
	if _, err := ParseDate("2025-03-14"); err != nil {
		t.Errorf("ParseDate(2025-03-14) error: %v", err)
	}
	if _, err := ParseDate("14/03/2025"); err == nil {
		t.Error("ParseDate(14/03/2025) expected error")
	}
}

func TestParseDateTime(t *testing.T) {
	for _, in := range []string{"2025-03-14T09:26:53Z", "2025-03-14T09:26:53+02:00", "2025-03-14T09:26:53"} {
		if _, err := ParseDateTime(in); err != nil {
			t.Errorf("ParseDateTime(%q) error: %v", in, err)
		}
	}
	if _, err := ParseDateTime("yesterday"); err == nil {
		t.Error("ParseDateTime(yesterday) expected error")
	}
}
