package slurm

import "testing"

func TestParseJobID(t *testing.T) {
	cases := []struct {
		out     string
		want    string
		wantErr bool
	}{
		{out: "Submitted batch job 123456\n", want: "123456"},
		{out: "submitted batch job 1\n", want: "1"},
		{out: "sbatch: error: invalid partition\n", wantErr: true},
	}
	for _, c := range cases {
		got, err := parseJobID(c.out)
		if c.wantErr {
			if err == nil {
				t.Errorf("parseJobID(%q): want error, got %q", c.out, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseJobID(%q): unexpected error %v", c.out, err)
			continue
		}
		if got != c.want {
			t.Errorf("parseJobID(%q) = %q, want %q", c.out, got, c.want)
		}
	}
}

func TestFormatWalltime(t *testing.T) {
	cases := []struct {
		seconds int64
		want    string
	}{
		{seconds: 30, want: "00:01:00"},
		{seconds: 3600, want: "01:00:00"},
		{seconds: 3661, want: "01:02:00"},
		{seconds: 0, want: "00:01:00"},
	}
	for _, c := range cases {
		got := formatWalltime(c.seconds)
		if got != c.want {
			t.Errorf("formatWalltime(%d) = %q, want %q", c.seconds, got, c.want)
		}
	}
}
