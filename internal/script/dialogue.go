package script

import (
	"regexp"
	"strings"
)

// dialogueThreshold is the fraction of non-blank lines that must carry a
// registered "Speaker:" prefix before a segment is treated as dialogue.
// Fixed rather than configurable so classification stays deterministic.
const dialogueThreshold = 0.3

var (
	speakerLine = regexp.MustCompile(`^([^:\n]{1,64}):\s*(.*)$`)
	// turnStart finds speaker labels at the start of a line or right
	// after a sentence boundary, so "Chloe: Hi. David: Hello." splits
	// into two turns.
	turnStart = regexp.MustCompile(`(?:^|[.!?]\s+)([^:.!?\n]{1,64}):\s*`)
)

// Line is one speaker turn inside a dialogue segment, in source order.
type Line struct {
	Speaker string
	Text    string
}

// Parsed is the classification result for one segment body: either
// Monologue or Dialogue.
type Parsed interface {
	isParsed()
}

// Monologue is a single-voice segment body.
type Monologue struct {
	Text string
}

// Dialogue is a multi-speaker segment body split into speaker turns.
type Dialogue struct {
	Lines []Line
}

func (Monologue) isParsed() {}
func (Dialogue) isParsed()  {}

// IsDialogue reports whether a body classifies as dialogue: more than
// dialogueThreshold of its non-blank lines start with a registered
// "Speaker:" prefix. A body with no non-blank lines is never dialogue.
func IsDialogue(text string, known func(label string) bool) bool {
	var nonBlank, labeled int
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		nonBlank++
		if m := speakerLine.FindStringSubmatch(strings.TrimSpace(line)); m != nil && known(strings.TrimSpace(m[1])) {
			labeled++
		}
	}
	if nonBlank == 0 {
		return false
	}
	return float64(labeled)/float64(nonBlank) > dialogueThreshold
}

// Parse classifies a segment body and, for dialogue, splits it into
// ordered speaker turns. Consecutive text belonging to one speaker is
// merged into a single turn; continuation lines without a label stay
// with the current speaker (the narrator before the first label).
func Parse(text string, known func(label string) bool) Parsed {
	if !IsDialogue(text, known) {
		return Monologue{Text: text}
	}

	var turns []Line
	appendTurn := func(speaker, t string) {
		t = strings.TrimSpace(t)
		if t == "" {
			return
		}
		if n := len(turns); n > 0 && turns[n-1].Speaker == speaker {
			turns[n-1].Text += " " + t
			return
		}
		turns = append(turns, Line{Speaker: speaker, Text: t})
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := splitTurns(line, known)
		if len(parts) == 0 {
			current := "narrator"
			if n := len(turns); n > 0 {
				current = turns[n-1].Speaker
			}
			appendTurn(current, line)
			continue
		}
		// Text before the first label (if any) stays with the current
		// speaker.
		for _, p := range parts {
			appendTurn(p.Speaker, p.Text)
		}
	}
	return Dialogue{Lines: turns}
}

// splitTurns cuts one line into speaker turns at registered labels.
// Returns nil when the line carries no registered label.
func splitTurns(line string, known func(string) bool) []Line {
	matches := turnStart.FindAllStringSubmatchIndex(line, -1)
	type mark struct {
		label      string
		labelStart int
		restStart  int
	}
	var marks []mark
	for _, m := range matches {
		label := strings.TrimSpace(line[m[2]:m[3]])
		if known(label) {
			marks = append(marks, mark{label: label, labelStart: m[2], restStart: m[1]})
		}
	}
	if len(marks) == 0 {
		return nil
	}
	var turns []Line
	if lead := strings.TrimSpace(line[:marks[0].labelStart]); lead != "" {
		turns = append(turns, Line{Speaker: "narrator", Text: lead})
	}
	for i, mk := range marks {
		end := len(line)
		if i+1 < len(marks) {
			end = marks[i+1].labelStart
		}
		turns = append(turns, Line{Speaker: mk.label, Text: strings.TrimSpace(line[mk.restStart:end])})
	}
	return turns
}
