package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no quiz session exists for a chat.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrPollNotFound is returned when a poll ID has no recorded mapping.
	ErrPollNotFound = errors.New("poll mapping not found")
	// ErrNotPDF is returned when an uploaded document is not a PDF.
	ErrNotPDF = errors.New("document is not a PDF")
	// ErrNoQuestions is returned when a document yields zero parsed questions.
	ErrNoQuestions = errors.New("no questions detected in document")
	// ErrBadDuration is returned for durations outside the 1-1440 minute range.
	ErrBadDuration = errors.New("duration must be between 1 and 1440 minutes")
	// ErrWrongPhase is returned when an operation is invalid for the session's phase.
	ErrWrongPhase = errors.New("operation not valid in current session phase")
	// ErrQuestionNotFound indicates an out-of-range question number.
	ErrQuestionNotFound = errors.New("question number out of range")
	// ErrNoAnswers is returned when a user queries results before answering anything.
	ErrNoAnswers = errors.New("no answers recorded yet")
)
