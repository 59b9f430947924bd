package genealogy

import (
	"strings"
	"unicode"
)

// cleanText strips control characters other than newline, carriage
// return and tab, then trims whitespace.
func cleanText(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s))
}

func cleanOptional(s *string) *string {
	if s == nil {
		return nil
	}
	c := cleanText(*s)
	return &c
}

func (in *PersonInput) normalize() {
	in.FirstName = cleanText(in.FirstName)
	in.LastName = cleanText(in.LastName)
	in.MaidenName = cleanOptional(in.MaidenName)
	in.BirthPlace = cleanOptional(in.BirthPlace)
	in.DeathPlace = cleanOptional(in.DeathPlace)
	in.Occupation = cleanOptional(in.Occupation)
	in.Biography = cleanOptional(in.Biography)
	in.Notes = cleanOptional(in.Notes)
}

func (p *PersonPatch) normalize() {
	p.FirstName = cleanOptional(p.FirstName)
	p.LastName = cleanOptional(p.LastName)
	p.MaidenName = cleanOptional(p.MaidenName)
	p.BirthPlace = cleanOptional(p.BirthPlace)
	p.DeathPlace = cleanOptional(p.DeathPlace)
	p.Occupation = cleanOptional(p.Occupation)
	p.Biography = cleanOptional(p.Biography)
	p.Notes = cleanOptional(p.Notes)
}

// normalizeEmail lowercases and trims an address. Blank becomes nil.
func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	e := strings.ToLower(strings.TrimSpace(*email))
	if e == "" {
		return nil
	}
	return &e
}

func (in *IssueInviteInput) normalize() {
	in.Email = normalizeEmail(in.Email)
	in.Message = cleanOptional(in.Message)
}
