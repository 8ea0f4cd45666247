package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/kozaktomas/picscreenr/internal/client"
	"github.com/kozaktomas/picscreenr/internal/constants"
)

// fileReport is the outcome of ingesting or uploading one file.
type fileReport struct {
	Name    string
	ImageID int64
	Caption string
	Tags    []string
	Persons []client.PersonLink
	Err     error
}

// formatPersons renders links as "2 (0.75, face)" or "None". A face first seen against an
// empty registry has no distance and is shown as "2 (new, face)".
func formatPersons(persons []client.PersonLink) string {
	if len(persons) == 0 {
		return "None"
	}
	parts := make([]string, 0, len(persons))
	for _, p := range persons {
		conf := fmt.Sprintf("%.2f", p.Confidence)
		if p.Confidence == constants.MinFaceConfidence {
			conf = "new"
		}
		parts = append(parts, fmt.Sprintf("%d (%s, %s)", p.PersonID, conf, p.Source))
	}
	return strings.Join(parts, ", ")
}

// printReports writes one block per file in input order and returns the number of failures.
func printReports(w io.Writer, reports []fileReport) int {
	failed := 0
	for _, r := range reports {
		if r.Err != nil {
			fmt.Fprintf(w, "Failed: %s: %v\n\n", r.Name, r.Err)
			failed++
			continue
		}
		fmt.Fprintf(w, "%s (image %d)\n", r.Name, r.ImageID)
		fmt.Fprintf(w, "Caption: %s\n", r.Caption)
		fmt.Fprintf(w, "Tags: %s\n", strings.Join(r.Tags, ", "))
		fmt.Fprintf(w, "Persons: %s\n\n", formatPersons(r.Persons))
	}
	return failed
}
