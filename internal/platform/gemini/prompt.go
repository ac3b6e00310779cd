package gemini

// extractionPromptTemplate instructs the model to return the meeting data
// as a single JSON object. The field names and the "Unassigned" / null
// conventions here are load-bearing: the normalizer downstream keys off
// exactly these.
const extractionPromptTemplate = `
You are an AI assistant that extracts meeting information from emails. Parse the following meeting summary email and extract structured data.

Email Subject: "{{.Subject}}"
Email Content: "{{.Body}}"

Please extract the following information and return it as a JSON object:

1. A concise meeting summary (2-3 sentences)
2. Action items with assignees and due dates
3. Meeting participants
4. Meeting date/time if mentioned

Return the data in this exact JSON format:
{
  "summary": "Brief summary of the meeting",
  "action_items": [
    {
      "id": "unique_id",
      "task": "Description of the task",
      "assignee": "Person assigned (use 'Unassigned' if not specified)",
      "due_date": "YYYY-MM-DD or null if not specified",
      "priority": "low|medium|high (infer from context)",
      "completed": false
    }
  ],
  "participants": ["Name 1", "Name 2"],
  "meeting_date": "YYYY-MM-DD HH:mm or null if not found"
}

Important notes:
- Extract actual names from the content, don't make them up
- Use first names only for assignees (e.g. "Sarah", not "Sarah Chen")
- Never use a company or organization name as an assignee or participant
- For action items without clear assignees, use "Unassigned"
- Infer priority based on urgency words or context
- Be conservative with due dates - only extract if clearly mentioned
- Generate unique IDs for action items using format: "ai_" + random string
`

// connectionCheckPrompt is the minimal-cost request used by the health
// probe. The content is irrelevant, any text response counts as healthy.
const connectionCheckPrompt = "Say 'OK' if you can read this."

// promptData carries the template inputs for a single extraction call.
type promptData struct {
	Subject string
	Body    string
}
