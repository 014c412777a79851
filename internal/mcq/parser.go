// Package mcq turns free-form document text into multiple-choice questions.
// The heuristics tolerate `1.`/`1)`/`1-` question numbering and `A)`/`a.`
// option lettering, which covers the exam PDFs the bot is fed in practice.
package mcq

import (
	"regexp"
	"strings"

	"quizbot/internal/domain"
)

var (
	questionHead = regexp.MustCompile(`(?m)^[ \t]*\d{1,3}[.)\-][ \t]+`)
	optionHead   = regexp.MustCompile(`(?m)^[ \t]*[A-Ea-e][.)\-:][ \t]*`)
)

// maxOptions matches the poll option limit of the messaging platform.
const maxOptions = 10

// Parse extracts ordered questions from raw text. Ordinals are assigned by
// position, starting at 1. Empty or unparsable input yields an empty slice,
// never an error; blocks with fewer than two options are dropped.
func Parse(text string) []domain.Question {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	heads := questionHead.FindAllStringIndex(text, -1)
	var questions []domain.Question
	for i, head := range heads {
		end := len(text)
		if i+1 < len(heads) {
			end = heads[i+1][0]
		}
		body := text[head[1]:end]

		prompt, options := splitOptions(body)
		if prompt == "" || len(options) < 2 {
			continue
		}
		if len(options) > maxOptions {
			options = options[:maxOptions]
		}
		questions = append(questions, domain.Question{
			Ordinal: len(questions) + 1,
			Text:    prompt,
			Options: options,
		})
	}
	return questions
}

// splitOptions separates a question block into the prompt and its options.
func splitOptions(body string) (string, []string) {
	marks := optionHead.FindAllStringIndex(body, -1)
	if len(marks) == 0 {
		return "", nil
	}

	prompt := collapse(body[:marks[0][0]])
	options := make([]string, 0, len(marks))
	for i, mark := range marks {
		end := len(body)
		if i+1 < len(marks) {
			end = marks[i+1][0]
		}
		if opt := collapse(body[mark[1]:end]); opt != "" {
			options = append(options, opt)
		}
	}
	return prompt, options
}

// collapse trims a fragment and folds internal line breaks into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
