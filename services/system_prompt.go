package services

import (
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// InfoAgentPersona is the system prompt of the information agent.
const InfoAgentPersona = `You are the Information Specialist of an engineering school's admissions office. You answer questions from prospective students and their parents about programs, admissions, tuition and student life.

Rules:
1.  Answer only from the context supplied with each question and from earlier turns of this conversation. Do not invent programs, dates, or amounts.
2.  If the context does not contain the answer, say honestly that you don't know and suggest visiting the school's official website or contacting the admissions office.
3.  Be clear, polite and concise. Answer in the language of the question.`

// EnrollmentAgentPersona is added to the system prompt when the user shows
// interest in applying and the model can save leads itself.
const EnrollmentAgentPersona = `You also act as the Enrollment Coordinator. The user seems interested in applying. After answering, politely ask whether they would like to leave their name and email so an admissions counselor can follow up. When the user gives both a name and an email address, call the 'saveLead' function with them and a short topic describing what they are interested in.`

// EnrollmentCallToAction is appended to answers for users interested in
// applying who have not left their contact details yet.
const EnrollmentCallToAction = "If you would like an admissions counselor to follow up with you, just reply with your full name and email address."

const noContextInstruction = `No relevant information was found in the knowledge base for this question. Tell the user honestly that you don't know and suggest they visit the school's official website or contact the admissions office.`

// GetSystemPrompt wraps a persona as a Gemini system instruction.
func GetSystemPrompt(persona string) *genai.Content {
	if strings.TrimSpace(persona) == "" {
		return nil
	}
	contents := genai.Text(persona)
	if len(contents) == 0 {
		return nil
	}
	return contents[0]
}

// BuildPrompt places the retrieved context before the question. An empty
// context produces the explicit no-information instruction instead.
func BuildPrompt(retrievedContext, question string) string {
	if strings.TrimSpace(retrievedContext) == "" {
		return fmt.Sprintf("%s\n\nQuestion: %s", noContextInstruction, question)
	}
	return fmt.Sprintf("Use the following context to answer the question.\n\nContext:\n%s\n\nQuestion: %s", retrievedContext, question)
}

// leadConfirmation thanks a user whose contact details were recorded.
func leadConfirmation(lead Lead) string {
	return fmt.Sprintf("Thank you, %s! An admissions counselor will contact you at %s about %s.", lead.Name, lead.Email, lead.Topic)
}
