// Package chat holds the assistant's conversation records, the query
// classifier vocabulary and the prompts sent to the language model.
package chat

import (
	"context"
	"strings"
	"time"
)

const (
	MaxQueryLength = 1000
	// RecentSubmissionLimit caps how much history goes into a user context.
	RecentSubmissionLimit = 30
	IrrelevantReply       = "I'm sorry, I can't answer that question."
)

type QueryType string

const (
	QueryPlatformInfo QueryType = "PLATFORM_INFO"
	QueryUserInfo     QueryType = "USER_INFO"
	QueryGeneral      QueryType = "GENERAL"
	QueryIrrelevant   QueryType = "IRRELEVANT"
)

// ParseQueryType reads a classifier answer. Anything it does not recognise
// is treated as irrelevant so the assistant never answers off-topic.
func ParseQueryType(raw string) QueryType {
	word := strings.ToUpper(strings.TrimSpace(raw))
	word = strings.Trim(word, "`\"'.* \n")
	if i := strings.IndexAny(word, " \n\t"); i >= 0 {
		word = word[:i]
	}
	switch QueryType(word) {
	case QueryPlatformInfo, QueryUserInfo, QueryGeneral:
		return QueryType(word)
	default:
		return QueryIrrelevant
	}
}

type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	QueryType QueryType `json:"queryType"`
	CreatedAt time.Time `json:"createdAt"`
}

type QueryRequest struct {
	Query string `json:"query"`
}

// Generator turns a prompt into model text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// CleanResponse drops markdown bold markers the model likes to add.
func CleanResponse(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "**", ""))
}
