// Package snowflake parses Discord identifiers out of user input.
package snowflake

import (
	"regexp"
	"strings"
)

var (
	bareRe    = regexp.MustCompile(`^\d{17,20}$`)
	channelRe = regexp.MustCompile(`^<#(\d{17,20})>$`)
	roleRe    = regexp.MustCompile(`^<@&(\d{17,20})>$`)
	userRe    = regexp.MustCompile(`^<@!?(\d{17,20})>$`)
	anyRoleRe = regexp.MustCompile(`<@&(\d{17,20})>|(\d{17,20})`)
)

// Valid reports whether id is a bare snowflake.
func Valid(id string) bool {
	return bareRe.MatchString(id)
}

// Parse accepts a bare id or a channel, role or user mention and returns the id.
func Parse(input string) (string, bool) {
	input = strings.TrimSpace(input)
	if bareRe.MatchString(input) {
		return input, true
	}
	for _, re := range []*regexp.Regexp{channelRe, roleRe, userRe} {
		if match := re.FindStringSubmatch(input); match != nil {
			return match[1], true
		}
	}
	return "", false
}

// ParseRoleIDs extracts every role mention or bare id from free text, in order of appearance.
func ParseRoleIDs(input string) []string {
	matches := anyRoleRe.FindAllStringSubmatch(input, -1)
	ids := make([]string, 0, len(matches))
	for _, match := range matches {
		if match[1] != "" {
			ids = append(ids, match[1])
		} else {
			ids = append(ids, match[2])
		}
	}
	return ids
}
