package conversation

import (
	"fmt"
	"strings"

	"feedback-engine/internal/storage"
)

const initialPrompt = `You are a conversational customer feedback analyst. Your job is to analyze
customer feedback and decide the correct response.

The user gave a score of: %d/10

Instructions:
1.  Use the user's feedback text exactly as provided.
2.  Provide a single-word sentiment (e.g., "Positive", "Negative", "Frustrated", "Confused").
3.  Extract the key feedback points or action items as a list of strings.

4.  Decide the Next Step:
    -   IF score is 0-6 (Detractor): The user is unhappy. Generate an empathetic response that asks a follow-up question to get more detail. Set requiresFollowUp to true.
    -   IF score is 7-8 (Passive) AND feedback is vague: Ask a clarifying question. Set requiresFollowUp to true.
    -   IF score is 9-10 (Promoter) OR score is 7-8 and feedback is clear: The user is happy or satisfied. Just say thank you. Do not ask a question. Set requiresFollowUp to false.

5.  Respond ONLY with a valid JSON object in this exact format:
    {
      "transcription": "...",
      "sentiment": "...",
      "feedback": ["..."],
      "conversationalResponse": "...",
      "requiresFollowUp": true
    }`

const followupPrompt = `You are continuing a customer feedback conversation. Here is the full conversation history:

Initial Feedback:
- Rating: %d/10
- User said: "%s"

Conversation History:
%s

This is follow-up turn %d of the conversation. The user is now responding with new feedback.

Instructions:
1. Use the user's response text exactly as provided.
2. Understand the context of their response in relation to the ENTIRE conversation history above.
3. Generate an appropriate conversational response:
   - If they provided helpful details and you have enough information: Acknowledge their response and thank them. Set conversationComplete to true and requiresFollowUp to false.
   - If you need ONE more specific detail to help them better: Ask exactly ONE more targeted follow-up question. Set conversationComplete to false and requiresFollowUp to true.
   - If the response is unclear: Politely ask them to clarify. Set conversationComplete to false and requiresFollowUp to true.
   - Important: from turn 3 onward, actively close the conversation gracefully even if some details are missing.

4. Respond ONLY with a valid JSON object in this exact format:
    {
      "transcription": "...",
      "conversationalResponse": "...",
      "requiresFollowUp": false,
      "conversationComplete": true
    }`

// toneTemplates is a closed lookup table of domain-specific voice guidance.
// Unknown categories are not an error, they get the generic tone.
var toneTemplates = map[string]string{
	"restaurant": "Adopt a warm, hospitable tone, as if speaking with a valued dinner guest. Reference dining, food quality, and service naturally.",
	"retail":     "Adopt a friendly, helpful retail tone. Reference products, shopping experience, and checkout naturally.",
	"saas":       "Adopt a professional, product-minded tone. Reference features, reliability, and workflows naturally.",
	"healthcare": "Adopt a calm, compassionate, and reassuring tone appropriate for patient feedback. Never give medical advice.",
	"fitness":    "Adopt an encouraging, energetic tone appropriate for gym and wellness members.",
}

const genericTone = "Adopt a polite, professional, and empathetic customer-service tone."

func toneFor(category string) string {
	if tone, ok := toneTemplates[strings.ToLower(strings.TrimSpace(category))]; ok {
		return tone
	}
	return genericTone
}

func buildInitialPrompt(score int) string {
	return fmt.Sprintf(initialPrompt, score)
}

func buildFollowupPrompt(score int, initialTranscription string, turns []storage.Turn, turnCount int) string {
	return fmt.Sprintf(followupPrompt, score, initialTranscription, renderHistory(turns), turnCount)
}

func renderHistory(turns []storage.Turn) string {
	if len(turns) == 0 {
		return "No previous follow-ups yet."
	}
	var b strings.Builder
	for i, t := range turns {
		fmt.Fprintf(&b, "\nTurn %d:\n AI: %s\n User: %s\n", i+1, t.AI, t.User)
	}
	return b.String()
}
