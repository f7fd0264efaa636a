package spaced_repetition

import "fmt"

// Grade is the user's self-assessment of recall for a word.
type Grade int

const (
	// GradeForget means the word could not be recalled; it is requeued
	// within the session and no scheduling state is written.
	GradeForget Grade = iota + 1
	// GradeHard means the word was recalled with significant effort.
	GradeHard
	// GradeNormal means the word was recalled with some hesitation.
	GradeNormal
	// GradeEasy means the word was recalled effortlessly.
	GradeEasy
)

var gradeNames = [...]string{GradeForget: "Forget", GradeHard: "Hard", GradeNormal: "Normal", GradeEasy: "Easy"}

// IsValid reports whether g is one of the four defined grades.
func (g Grade) IsValid() bool {
	return g >= GradeForget && g <= GradeEasy
}

// String returns the grade name, or "Grade(n)" for invalid values.
func (g Grade) String() string {
	if g.IsValid() {
		return gradeNames[g]
	}
	return fmt.Sprintf("Grade(%d)", int(g))
}
