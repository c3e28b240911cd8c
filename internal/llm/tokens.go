package llm

const charsPerToken = 3

// RoughEstimateTokens approximates the token count of text. It never
// returns less than one so an empty answer still counts as a turn.
func RoughEstimateTokens(text string) int {
	return max(len([]rune(text))/charsPerToken, 1)
}

// RoughEstimateMessagesTokens sums the estimate over a conversation.
func RoughEstimateMessagesTokens(messages []Message) int {
	total := 0
	for _, msg := range messages {
		total += RoughEstimateTokens(msg.Content)
	}
	return total
}
