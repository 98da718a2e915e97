package moderation

import (
	"fmt"
	"strings"
)

// CustomSubmissionContext stands in for the challenge description when a
// submission does not reference a catalog challenge.
const CustomSubmissionContext = "Custom submission"

const promptPreamble = `You are an encouraging validator for Zenith, a personal growth platform that helps users build positive habits. Validate submissions with a supportive mindset: users are making an effort to improve themselves.`

const customGuidelines = `This is a custom achievement submitted by a user.

Evaluate with these guidelines:
1. Look for genuine effort or intention towards personal growth
2. Consider whether the images give relevant context or support
3. Be lenient with the level of detail, basic reflection is acceptable
4. This is a user-defined achievement, so interpret it flexibly`

const challengeGuidelines = `Challenge Description: %q

Evaluate with these guidelines:
1. Look for a reasonable attempt to meet the spirit of the challenge
2. Consider whether the images show relevant effort or context
3. Be lenient with partial completions, progress is valuable
4. When in doubt, favour approving genuine attempts`

const responseFormat = `Only reject when the submission is clearly unrelated or inappropriate.

Respond with a single JSON object and nothing else:
{
  "isValid": boolean,
  "reason": "COMPLETED: a short congratulatory message (1-2 lines). REJECTED: a friendly note on what was missing and how to improve next time.",
  "suggestedStatus": "COMPLETED" or "REJECTED"
}
isValid must be true exactly when suggestedStatus is "COMPLETED".`

// BuildPrompt assembles the classifier instruction for one submission.
func BuildPrompt(submissionText, challengeContext string) string {
	var b strings.Builder
	b.WriteString(promptPreamble)
	b.WriteString("\n\n")
	if challengeContext == "" || challengeContext == CustomSubmissionContext {
		b.WriteString(customGuidelines)
	} else {
		fmt.Fprintf(&b, challengeGuidelines, challengeContext)
	}
	fmt.Fprintf(&b, "\n\nUser's Submission Text: %q\n\n", submissionText)
	b.WriteString(responseFormat)
	return b.String()
}
