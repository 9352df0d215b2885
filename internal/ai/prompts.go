package ai

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

func questionsPrompt(description string) string {
	return fmt.Sprintf(`As a professional product manager and systems architect, generate 3-5 focused questions that would help refine the requirements of the following project.

Project description:
%s

Cover the target users and usage scenarios, core features and their priority, technical constraints, performance and scalability expectations, and user-experience goals. Return the questions as a numbered list, one concise question per line.`, description)
}

func basePrompt(description, requirements string) string {
	return fmt.Sprintf(`Project description:
%s

Detailed requirements:
%s

Based on the above, `, description, requirements)
}

func userJourneyPrompt(description, requirements string) string {
	return basePrompt(description, requirements) + `produce a detailed user journey map covering user personas, key scenarios, behavior flows, touchpoints, and pain points with opportunities. Use well-structured Markdown.`
}

func prdPrompt(description, requirements string) string {
	return basePrompt(description, requirements) + `produce a complete product requirements document (PRD) covering product overview and goals, user needs analysis, prioritized feature list, non-functional requirements, acceptance criteria, and milestones. Use well-structured Markdown.`
}

func frontendPrompt(description, requirements string) string {
	return basePrompt(description, requirements) + `produce a frontend design document covering architecture choices, component conventions, page structure, interaction design, responsive considerations, and performance strategy. Use well-structured Markdown.`
}

func backendPrompt(description, requirements string) string {
	return basePrompt(description, requirements) + `produce a backend design document covering system architecture, API design, data flow, security, performance and scalability, and deployment. Use well-structured Markdown.`
}

func databasePrompt(description, requirements string) string {
	return basePrompt(description, requirements) + `produce a database design document covering the data model, table definitions, indexes, entity relationships, integrity constraints, and performance recommendations. Use well-structured Markdown.`
}

var (
	listItemRe = regexp.MustCompile(`^(\d+[.)、]|[-*•])\s*`)
	quotedRe   = regexp.MustCompile(`^"(.*)"$`)
)

// ParseQuestions extracts up to five question strings from free-form model
// output. Primary pass takes numbered or bulleted lines; if nothing matches,
// any line ending in a question mark is taken as a fallback.
func ParseQuestions(text string) []string {
	var questions []string
	var fallback []string

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if listItemRe.MatchString(line) {
			q := strings.TrimSpace(listItemRe.ReplaceAllString(line, ""))
			if m := quotedRe.FindStringSubmatch(q); m != nil {
				q = m[1]
			}
			if utf8.RuneCountInString(q) >= 5 {
				questions = append(questions, q)
			}
			continue
		}

		if strings.HasSuffix(line, "?") || strings.HasSuffix(line, "？") {
			fallback = append(fallback, line)
		}
	}

	if len(questions) == 0 {
		questions = fallback
	}
	if len(questions) > 5 {
		questions = questions[:5]
	}
	return questions
}
