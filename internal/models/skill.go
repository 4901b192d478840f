package models

import (
	"strings"

	"github.com/gosimple/slug"
	"github.com/samber/lo"
)

type Skill struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"type:varchar(100);not null" json:"name"`
	Slug string `gorm:"type:varchar(100);uniqueIndex;not null" json:"slug"`
}

// ParseSkills splits a comma separated tag input into skills, dropping
// blanks and duplicates (by slug). The first spelling of a tag wins.
func ParseSkills(raw string) []Skill {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '\n' })

	skills := lo.FilterMap(parts, func(p string, _ int) (Skill, bool) {
		name := strings.Join(strings.Fields(p), " ")
		s := slug.Make(name)
		if name == "" || s == "" {
			return Skill{}, false
		}
		if len(name) > 100 {
			name = name[:100]
		}
		return Skill{Name: name, Slug: s}, true
	})

	return lo.UniqBy(skills, func(s Skill) string { return s.Slug })
}

// JoinSkills is the inverse of ParseSkills, used to pre-fill the edit form.
func JoinSkills(skills []Skill) string {
	return strings.Join(lo.Map(skills, func(s Skill, _ int) string { return s.Name }), ", ")
}
