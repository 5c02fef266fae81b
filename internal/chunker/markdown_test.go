package chunker

import (
	"strings"
	"testing"
)

// TestSections_BasicHeaders tests sectioning with an H1 and multiple H2s.
func TestSections_BasicHeaders(t *testing.T) {
	input := `# Getting Started

Introduction text here.

## Installation

Install steps here.

## Configuration

Config details here.
`

	m := NewMarkdown()
	sections, err := m.Sections([]byte(input))
	if err != nil {
		t.Fatalf("Sections failed: %v", err)
	}

	if len(sections) != 3 {
		t.Fatalf("Expected 3 sections, got %d", len(sections))
	}

	if sections[0].Title != "Getting Started" {
		t.Errorf("Section 0 title: expected 'Getting Started', got %q", sections[0].Title)
	}
	if !strings.Contains(input[sections[0].Start:sections[0].End], "Introduction text here") {
		t.Errorf("Section 0 missing expected content")
	}

	if sections[1].Title != "Getting Started > Installation" {
		t.Errorf("Section 1 title: expected 'Getting Started > Installation', got %q", sections[1].Title)
	}
	if !strings.Contains(input[sections[1].Start:sections[1].End], "Install steps here") {
		t.Errorf("Section 1 missing expected content")
	}

	if sections[2].Title != "Getting Started > Configuration" {
		t.Errorf("Section 2 title: expected 'Getting Started > Configuration', got %q", sections[2].Title)
	}
	if !strings.Contains(input[sections[2].Start:sections[2].End], "Config details here") {
		t.Errorf("Section 2 missing expected content")
	}
}

// TestSections_Coverage tests that sections partition the document with no
// gaps and include the header lines themselves.
func TestSections_Coverage(t *testing.T) {
	input := `# One

Alpha.

## Two

Beta.
`

	m := NewMarkdown()
	sections, err := m.Sections([]byte(input))
	if err != nil {
		t.Fatalf("Sections failed: %v", err)
	}

	if sections[0].Start != 0 {
		t.Errorf("First section should start at 0, got %d", sections[0].Start)
	}
	if sections[len(sections)-1].End != len(input) {
		t.Errorf("Last section should end at %d, got %d", len(input), sections[len(sections)-1].End)
	}
	for i := 1; i < len(sections); i++ {
		if sections[i].Start != sections[i-1].End {
			t.Errorf("Gap between section %d and %d: %d != %d",
				i-1, i, sections[i-1].End, sections[i].Start)
		}
	}

	// The "#" marker belongs to the section it opens.
	if !strings.HasPrefix(input[sections[0].Start:], "# One") {
		t.Errorf("Section 0 should start at its header line")
	}
	if !strings.HasPrefix(input[sections[1].Start:], "## Two") {
		t.Errorf("Section 1 should start at its header line")
	}
}

// TestSections_Prologue tests that content before the first header becomes
// an untitled section.
func TestSections_Prologue(t *testing.T) {
	input := `Some intro prose before any header.

# First Header

Body.
`

	m := NewMarkdown()
	sections, err := m.Sections([]byte(input))
	if err != nil {
		t.Fatalf("Sections failed: %v", err)
	}

	if len(sections) != 2 {
		t.Fatalf("Expected 2 sections, got %d", len(sections))
	}
	if sections[0].Title != "" {
		t.Errorf("Prologue should be untitled, got %q", sections[0].Title)
	}
	if !strings.Contains(input[sections[0].Start:sections[0].End], "intro prose") {
		t.Errorf("Prologue missing expected content")
	}
	if sections[1].Title != "First Header" {
		t.Errorf("Section 1 title: expected 'First Header', got %q", sections[1].Title)
	}
}

// TestSections_NoHeaders tests that a plain document becomes one untitled
// section.
func TestSections_NoHeaders(t *testing.T) {
	input := "Just some plain text.\n\nNo headers anywhere.\n"

	m := NewMarkdown()
	sections, err := m.Sections([]byte(input))
	if err != nil {
		t.Fatalf("Sections failed: %v", err)
	}

	if len(sections) != 1 {
		t.Fatalf("Expected 1 section, got %d", len(sections))
	}
	if sections[0].Title != "" || sections[0].Start != 0 || sections[0].End != len(input) {
		t.Errorf("Expected one untitled section covering the document, got %+v", sections[0])
	}
}

// TestSections_Empty tests that empty input yields no sections.
func TestSections_Empty(t *testing.T) {
	m := NewMarkdown()
	sections, err := m.Sections(nil)
	if err != nil {
		t.Fatalf("Sections failed: %v", err)
	}
	if sections != nil {
		t.Errorf("Expected nil sections for empty input, got %v", sections)
	}
}

// TestSections_DeepHeadersStayInside tests that H3 and below do not open new
// sections.
func TestSections_DeepHeadersStayInside(t *testing.T) {
	input := `# Guide

## Usage

Some usage text.

### Advanced

Advanced details stay in the Usage section.
`

	m := NewMarkdown()
	sections, err := m.Sections([]byte(input))
	if err != nil {
		t.Fatalf("Sections failed: %v", err)
	}

	if len(sections) != 2 {
		t.Fatalf("Expected 2 sections, got %d", len(sections))
	}
	last := input[sections[1].Start:sections[1].End]
	if !strings.Contains(last, "### Advanced") || !strings.Contains(last, "Advanced details") {
		t.Errorf("H3 content should stay inside the enclosing H2 section")
	}
}
