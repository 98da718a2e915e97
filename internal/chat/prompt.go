package chat

import (
	"fmt"
	"strings"
)

const platformFacts = `Zenith facts:
- Users complete daily challenges grouped into categories and earn points for each approved submission.
- A submission carries a text note and up to 5 images or 2 videos. It starts PENDING and is settled once as COMPLETED or REJECTED, either by a reviewer or by automatic moderation.
- Catalog challenges are worth their listed points. Custom submissions earn a fixed award.
- Difficulty levels are Beginner, Intermediate and Advanced.
- A streak grows with every day the user submits and resets when a day is missed.
- Points are redeemed in fixed blocks for a UPI payout. A failed payout returns the points.
- New users pick at least 4 interest categories.`

const classifierPrompt = `You route questions for the assistant of Zenith, a habit-building platform.

` + platformFacts + `

Classify the user's question into exactly one label:
PLATFORM_INFO: how Zenith works (points, challenges, submissions, rewards, streaks).
USER_INFO: the asker's own progress, points, streaks or submissions.
GENERAL: advice on motivation, habits, consistency or personal growth.
IRRELEVANT: anything else, including technical support, off-topic chat and inappropriate content.

Answer with the label only.

Question: %q`

const platformPrompt = `You answer questions about Zenith, a habit-building platform. Be accurate and encouraging.

` + platformFacts + `

Only state facts listed above. If the answer is not covered, say so briefly.

Question: %q`

const userPrompt = `You are Zenith's progress coach. Use the user's data below to answer their question. Quote numbers exactly, point out what is going well and suggest one concrete next step.

%s

Question: %q`

const generalPrompt = `You are Zenith's growth coach. Give practical, encouraging advice in a few short paragraphs. Prefer small daily actions the user can start today.

Question: %q`

// ClassifierPrompt asks the model to label a question.
func ClassifierPrompt(query string) string {
	return fmt.Sprintf(classifierPrompt, query)
}

// AnswerPrompt builds the answering prompt for a classified question.
// userContext is only used for USER_INFO.
func AnswerPrompt(kind QueryType, query, userContext string) string {
	switch kind {
	case QueryPlatformInfo:
		return fmt.Sprintf(platformPrompt, query)
	case QueryUserInfo:
		return fmt.Sprintf(userPrompt, strings.TrimSpace(userContext), query)
	default:
		return fmt.Sprintf(generalPrompt, query)
	}
}
