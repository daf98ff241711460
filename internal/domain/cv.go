package domain

import "strings"

// CVRef identifies a CV in the HR system.
type CVRef struct {
	OwnerID string
	CVID    string
}

// CV is a consultant CV fetched from the HR system, reduced to its
// textual sections.
type CV struct {
	OwnerID  string
	CVID     string
	Sections Sections
}

// Sections holds the free-text content of a CV grouped by section.
type Sections struct {
	Qualifications    []string
	ProjectExperience []string
	Roles             []string
	Skills            []string
	WorkHistory       []string
	Education         []string
	Certifications    []string
	Courses           []string
	Languages         []string
}

// Flatten joins all non-blank section entries into newline-separated text.
// Section order is fixed so the same CV always flattens identically.
func (s Sections) Flatten() string {
	groups := [][]string{
		s.Qualifications,
		s.ProjectExperience,
		s.Roles,
		s.Skills,
		s.WorkHistory,
		s.Education,
		s.Certifications,
		s.Courses,
		s.Languages,
	}

	var b strings.Builder
	for _, group := range groups {
		for _, entry := range group {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(entry)
		}
	}
	return b.String()
}

// Text flattens the CV's sections.
func (c CV) Text() string { return c.Sections.Flatten() }

// Ref returns the CV's identifier pair.
func (c CV) Ref() CVRef { return CVRef{OwnerID: c.OwnerID, CVID: c.CVID} }
