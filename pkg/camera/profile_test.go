package camera

import (
	"testing"
	"time"
)

func TestResolve(t *testing.T) {
	s := DefaultProfileSettings()
	tests := []struct {
		name        string
		profile     Profile
		aux         bool
		wantProfile Profile
		want        Targets
	}{
		{"high with aux", ProfileHigh, true, ProfileHigh, s.High},
		{"balanced with aux", ProfileBalanced, true, ProfileBalanced, s.Balanced},
		{"resilient with aux", ProfileResilient, true, ProfileResilient, s.Resilient},
		{"high without aux", ProfileHigh, false, ProfileBalanced, Targets{FPS: 6, FrameSize: FrameSizeQVGA, Quality: 20}},
		{"balanced without aux", ProfileBalanced, false, ProfileBalanced, Targets{FPS: 6, FrameSize: FrameSizeQVGA, Quality: 20}},
		{"resilient without aux", ProfileResilient, false, ProfileResilient, s.Resilient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, got := s.Resolve(tt.profile, tt.aux)
			if p != tt.wantProfile {
				t.Errorf("profile = %v, want %v", p, tt.wantProfile)
			}
			if got != tt.want {
				t.Errorf("targets = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFrameInterval(t *testing.T) {
	tests := []struct {
		fps  int
		want time.Duration
	}{
		{8, 125 * time.Millisecond},
		{4, 250 * time.Millisecond},
		{0, 250 * time.Millisecond},
		{-3, 250 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := FrameInterval(tt.fps); got != tt.want {
			t.Errorf("FrameInterval(%d) = %v, want %v", tt.fps, got, tt.want)
		}
	}
}

func TestJPEGQuality(t *testing.T) {
	tests := []struct {
		level, want int
	}{
		{0, 100},
		{63, 1},
		{100, 1},
		{-5, 100},
		{15, 77},
	}
	for _, tt := range tests {
		if got := JPEGQuality(tt.level); got != tt.want {
			t.Errorf("JPEGQuality(%d) = %d, want %d", tt.level, got, tt.want)
		}
	}
}

func TestParseFrameSize(t *testing.T) {
	fs, err := ParseFrameSize("CIF")
	if err != nil || fs != FrameSizeCIF {
		t.Fatalf("ParseFrameSize(CIF) = %v, %v", fs, err)
	}
	if _, err := ParseFrameSize("8K"); err == nil {
		t.Error("expected error for unknown frame size")
	}
}

func TestProfileString(t *testing.T) {
	if ProfileHigh.String() != "HIGH" || ProfileBalanced.String() != "BALANCED" || ProfileResilient.String() != "RESILIENT" {
		t.Error("unexpected profile names")
	}
	if Profile(42).String() != "UNKNOWN" {
		t.Error("unknown profile should render as UNKNOWN")
	}
}
