package policy

import "strings"

// ScopeDecision is the result of the pre-query topic filter. A rejected
// query never reaches the remote assistant; Reply carries the canned
// refusal to speak instead.
type ScopeDecision struct {
	Rejected bool
	Reason   string
	Reply    string
}

// OffTopicReply is the fixed refusal spoken when a query is clearly outside
// aquaculture scope. The remote assistant uses the same wording for queries
// that slip past the keyword filter, so users hear one consistent refusal.
const OffTopicReply = "I can only help with aquaculture and tank management questions. Please ask about your tanks, water quality, fish care, diseases, or products."

// High-confidence off-topic markers. The filter only rejects obvious cases
// and defers everything else to the assistant's own scope enforcement, so a
// farming question mentioning none of these always goes through.
var offTopicKeywords = []string{
	"movie", "music", "sport", "game", "celebrity", "politics", "election",
	"news", "weather", "recipe", "cooking", "restaurant", "president",
	"football", "basketball", "soccer", "actor", "song", "album", "concert",
	"tv show", "netflix", "youtube", "instagram", "twitter", "facebook",
	"stock market", "cryptocurrency", "bitcoin", "travel", "vacation",
}

// CheckScope screens a pivot-language query before it is sent upstream.
func CheckScope(text string) ScopeDecision {
	lower := strings.ToLower(text)
	for _, kw := range offTopicKeywords {
		if strings.Contains(lower, kw) {
			return ScopeDecision{
				Rejected: true,
				Reason:   "off-topic keyword: " + kw,
				Reply:    OffTopicReply,
			}
		}
	}
	return ScopeDecision{}
}
