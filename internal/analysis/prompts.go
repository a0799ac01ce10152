package analysis

import "strings"

// Section headings the model is asked to use. The analyzer parses them back.
const (
	HeadingSummary         = "## Summary"
	HeadingFindings        = "## Findings"
	HeadingRecommendations = "## Recommendations"
)

const preamble = `You are a senior engineer analyzing a GitHub repository.
The conversation contains the repository metadata, its file listing and the
contents of selected files, possibly preceded by a summary of earlier material.
`

const summaryTasks = `Produce a comprehensive overview:
1. General summary of the project
2. Technologies and languages used
3. Project structure and main files
4. Key features and functionality
5. Installation and usage
6. Code and documentation quality`

const securityTasks = `Produce a security review:
1. Potential vulnerabilities
2. Dependency and library management
3. Security practices in the code
4. Security and encryption configuration
5. Access permissions and authentication
6. Overall risk level with suggested fixes`

const codeReviewTasks = `Produce a code review:
1. Architecture and module boundaries
2. Readability and naming
3. Error handling and edge cases
4. Test coverage and testability
5. Performance concerns
6. Concrete refactoring suggestions`

const dependencyTasks = `Produce a dependency report:
1. Declared dependencies per ecosystem
2. Pinned versus floating versions
3. Outdated or unmaintained packages
4. Packages with known security issues
5. Licensing concerns
6. Suggested upgrades or removals`

const outputFormat = `
Reply in Markdown with exactly these sections:
` + HeadingSummary + `
A few paragraphs.
` + HeadingFindings + `
One bullet per finding.
` + HeadingRecommendations + `
One bullet per recommendation.`

func instructions(tasks string) string {
	var sb strings.Builder
	sb.WriteString(preamble)
	sb.WriteString("\n")
	sb.WriteString(tasks)
	sb.WriteString("\n")
	sb.WriteString(outputFormat)
	return sb.String()
}
