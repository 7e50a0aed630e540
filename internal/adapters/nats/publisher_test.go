package natsadapter

import "testing"

func TestLocationSubject(t *testing.T) {
	tests := map[string]string{
		"Location":      "geo.location.changed.Location",
		"Physical.Site": "geo.location.changed.Physical_Site",
		"a b*>":         "geo.location.changed.a_b__",
	}
	for class, want := range tests {
		if got := LocationSubject(class); got != want {
			t.Errorf("LocationSubject(%q) = %q, want %q", class, got, want)
		}
	}
}

func TestSubmissionSubject(t *testing.T) {
	if got := SubmissionSubject("Physical.Site"); got != "geo.location.submit.Physical_Site" {
		t.Errorf("SubmissionSubject = %q", got)
	}
}
