package xmlanchor

import "testing"

func TestEscapeEntities(t *testing.T) {
	got := Escape(`a & b < c > d "e" 'f'`)
	want := `a &amp; b &lt; c &gt; d &quot;e&quot; &apos;f&apos;`
	if got != want {
		t.Errorf("Escape() = %q, want %q", got, want)
	}
}

func TestEscapeDropsControlCharsExceptTabLFCR(t *testing.T) {
	in := "a\x00b\tc\nd\re\x1f"
	got := Escape(in)
	want := "ab\tc\nd\re"
	if got != want {
		t.Errorf("Escape(%q) = %q, want %q", in, got, want)
	}
}

func TestEscapeIdentityOnPlainText(t *testing.T) {
	in := "plain text 123"
	if got := Escape(in); got != in {
		t.Errorf("Escape(%q) = %q, want unchanged", in, got)
	}
}
