package consult

import (
	"fmt"
	"strings"
)

const persona = "You are Dr. MedGemma, an expert Clinical Nutritionist specializing in Indian diets."

const responseStrategy = `**RESPONSE STRATEGY (ADAPT TO USER):**
First mention which information you are using to respond, naming the guidelines you rely on.
Do not show your thinking process; respond to the request with relevant information only.

1. **IF USER ASKS ABOUT A SPECIFIC FOOD (e.g., "Can I eat X?"):**
   - **Verdict**: Start with a clear "Yes", "No", or "Limit".
   - **Science**: Explain the specific impact on their %[1]s (e.g., blood sugar spike, sodium load).
   - **Swap**: Suggest a specific, tasty Indian alternative.

2. **IF USER ASKS FOR A PLAN/ROUTINE/DIET:**
   - **Structure**: Create a detailed daily schedule (Breakfast, Lunch, Evening Snack, Dinner).
   - **Foods**: Suggest specific Indian dishes (e.g., Moong Dal Chilla, Ragi Roti, Curd).
   - **Details**: Mention portion sizes and why this helps their goals.

3. **IF USER ASKS A GENERAL QUESTION:**
   - Provide a comprehensive, detailed explanation using bullet points.
   - Be educational and encouraging.

**CRITICAL RULES:**
- Always address the patient by name.
- Do NOT be vague. Do NOT just say "Eat healthy." Give examples.
- Use the provided Clinical Guidelines as the primary source of truth.`

// Prompt holds what goes into a nutrition prompt.
type Prompt struct {
	// Condition is named in the food-impact instructions.
	Condition string
	// Context is the combined patient and guideline context.
	Context string
	Query   string
}

// Render returns the prompt wrapped in the model's chat turn markers.
func (p Prompt) Render() string {
	condition := p.Condition
	if condition == "" {
		condition = "health"
	}
	body := strings.TrimSpace(p.Context)
	if body == "" {
		body = "CLINICAL GUIDELINES:\nUse standard medical knowledge."
	}

	var b strings.Builder
	b.WriteString("<start_of_turn>user\n")
	b.WriteString(persona)
	b.WriteString("\n\n")
	b.WriteString(body)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, responseStrategy, condition)
	fmt.Fprintf(&b, "\n\nPATIENT REQUEST: %q\n\nANSWER:<end_of_turn>\n<start_of_turn>model", p.Query)
	return b.String()
}

// CombineContext joins the patient context with the retrieved guideline context.
func CombineContext(patient, guidelines string) string {
	return patient + "\n\nRELEVANT CLINICAL GUIDELINES:\n" + guidelines
}
