package stubserver

import (
	"fmt"
	"strings"

	"audiobrief/jobapi"
)

const filler = "The speakers reviewed the quarterly roadmap, agreed to move the launch " +
	"to Friday, assigned follow-up tasks for the design review, and scheduled " +
	"a retrospective for the end of the month."

// transcriptFor fabricates a deterministic transcript for an upload
func transcriptFor(name string, size int64, trimSeconds int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transcript of %s (%s). ", name, jobapi.FormatSize(size))
	if trimSeconds > 0 {
		fmt.Fprintf(&b, "Only the first %d minutes were processed. ", trimSeconds/60)
	}
	b.WriteString(filler)
	return b.String()
}

// summarize keeps the first words of transcript, labelled with style
func summarize(transcript string, words int, style string) string {
	fields := strings.Fields(transcript)
	if len(fields) > words {
		fields = fields[:words]
	}
	return fmt.Sprintf("[%s] %s", style, strings.Join(fields, " "))
}

func answerFor(transcript, question string) string {
	return fmt.Sprintf("Based on a transcript of %d words, the answer to %q is: %s",
		len(strings.Fields(transcript)), strings.TrimSpace(question), filler)
}
