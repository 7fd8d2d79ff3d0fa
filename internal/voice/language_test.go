package voice

import "testing"

func TestDetectLanguage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		text string
		want string
	}{
		{"I have a headache", English},
		{"", English},
		{"Tengo dolor de cabeza, mañana", Spanish},
		{"AÑO", Spanish},
		{"J'ai mal à la tête", French},
		{"Ça va", French},
		{"Ich heiße Anna", German},
		{"Però", Italian},
		{"città", French},
		{"café", Spanish},
	}
	for _, tc := range cases {
		if got := DetectLanguage(tc.text); got != tc.want {
			t.Errorf("DetectLanguage(%q) = %s, want %s", tc.text, got, tc.want)
		}
	}
}

func TestNewTranscript(t *testing.T) {
	t.Parallel()

	tr := NewTranscript("Grüß dich")
	if tr.Text != "Grüß dich" || tr.Language != Spanish {
		t.Fatalf("unexpected transcript %+v", tr)
	}
}

func TestLanguageName(t *testing.T) {
	t.Parallel()

	if got := LanguageName(German); got != "German" {
		t.Fatalf("LanguageName(de) = %q", got)
	}
	if got := LanguageName("xx"); got != "" {
		t.Fatalf("unknown code should have no name, got %q", got)
	}
}
