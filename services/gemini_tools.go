package services

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const saveLeadTool = "saveLead"

// saveLeadDeclaration lets the model record a prospective student's contact
// details.
func saveLeadDeclaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        saveLeadTool,
		Description: "Save the contact details of a prospective student so an admissions counselor can follow up. Only call this once the user has given both a name and an email address.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"name": {
					Type:        genai.TypeString,
					Description: "The full name the user gave.",
				},
				"email": {
					Type:        genai.TypeString,
					Description: "The email address the user gave.",
				},
				"topic": {
					Type:        genai.TypeString,
					Description: "A short description of what the user is interested in, e.g. 'Master in Data Science'.",
				},
			},
			Required: []string{"name", "email"},
		},
	}
}

// newSaveLeadTool returns the tool and reports the saved lead through onSaved.
func newSaveLeadTool(store LeadStore, onSaved func(Lead)) Tool {
	return Tool{
		Declaration: saveLeadDeclaration(),
		Handle: func(ctx context.Context, args map[string]any) (string, error) {
			name, _ := args["name"].(string)
			email, _ := args["email"].(string)
			topic, _ := args["topic"].(string)

			lead, err := store.SaveLead(ctx, Lead{Name: name, Email: email, Topic: topic})
			if err != nil {
				return "", err
			}
			onSaved(lead)
			return fmt.Sprintf("Lead saved successfully for %s.", lead.Email), nil
		},
	}
}
