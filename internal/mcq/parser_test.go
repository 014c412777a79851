package mcq

import "testing"

const sampleText = `
1. What is 2 + 2?
A) 3
B) 4
C) 5

2) Which city is the capital of France?
a. Berlin
b. Paris
c. Madrid
d. Rome

3- Largest planet in the solar
system?
A: Jupiter
B: Mars
`

func TestParseSample(t *testing.T) {
	questions := Parse(sampleText)
	if len(questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(questions))
	}

	if questions[0].Ordinal != 1 || questions[0].Text != "What is 2 + 2?" {
		t.Fatalf("unexpected first question: %+v", questions[0])
	}
	if len(questions[0].Options) != 3 || questions[0].Options[1] != "4" {
		t.Fatalf("unexpected options for q1: %v", questions[0].Options)
	}

	if len(questions[1].Options) != 4 || questions[1].Options[1] != "Paris" {
		t.Fatalf("unexpected options for q2: %v", questions[1].Options)
	}

	// Prompt wrapped across lines should be folded back together.
	if questions[2].Text != "Largest planet in the solar system?" {
		t.Fatalf("expected folded prompt, got %q", questions[2].Text)
	}
	if questions[2].CorrectIndex != nil {
		t.Fatalf("parser must not guess the correct option")
	}
}

func TestParseEmptyInput(t *testing.T) {
	if got := Parse(""); len(got) != 0 {
		t.Fatalf("expected no questions for empty text, got %d", len(got))
	}
	if got := Parse("   \n\t  "); len(got) != 0 {
		t.Fatalf("expected no questions for blank text, got %d", len(got))
	}
}

func TestParseDropsBlocksWithoutOptions(t *testing.T) {
	text := "1. A question with no options at all\nJust prose below it.\n2. Real one?\nA) yes\nB) no\n"
	questions := Parse(text)
	if len(questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(questions))
	}
	if questions[0].Text != "Real one?" {
		t.Fatalf("unexpected question kept: %q", questions[0].Text)
	}
	if questions[0].Ordinal != 1 {
		t.Fatalf("ordinals must be positional, got %d", questions[0].Ordinal)
	}
}

func TestParseRequiresTwoOptions(t *testing.T) {
	text := "1. Single option?\nA) only\n"
	if got := Parse(text); len(got) != 0 {
		t.Fatalf("expected single-option block to be dropped, got %d", len(got))
	}
}
