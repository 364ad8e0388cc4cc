package emotion

import "testing"

func TestClassifyKnownCategories(t *testing.T) {
	cases := []struct {
		text string
		want Tag
	}{
		{"Let me tell you a soothing story to help you relax.", Calm},
		{"That's fantastic news!", Excited},
		{"I'm sorry to hear that.", Sad},
		{"People get frustrated when expectations break.", Angry},
		{"What a cheerful morning.", Happy},
		{"The meeting is at noon.", Neutral},
		{"", Neutral},
	}
	for _, tc := range cases {
		if got := Classify(tc.text); got != tc.want {
			t.Fatalf("Classify(%q) = %s, want %s", tc.text, got, tc.want)
		}
	}
}

func TestClassifyCaseInsensitive(t *testing.T) {
	if got := Classify("AMAZING"); got != Excited {
		t.Fatalf("expected excited, got %s", got)
	}
}

func TestClassifyPriorityOrder(t *testing.T) {
	// sad precedes happy, so mixed text resolves to sad.
	if got := Classify("I'm sad about the happy ending."); got != Sad {
		t.Fatalf("expected sad for mixed sad/happy text, got %s", got)
	}
	// calm is checked first of all.
	if got := Classify("a gentle but frustrated sigh"); got != Calm {
		t.Fatalf("expected calm for mixed calm/angry text, got %s", got)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	text := "Wow, what an awesome surprise!"
	first := Classify(text)
	for i := 0; i < 100; i++ {
		if got := Classify(text); got != first {
			t.Fatalf("classification changed between calls: %s vs %s", first, got)
		}
	}
}
