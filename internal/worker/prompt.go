package worker

import "fmt"

// DiarySystemPrompt frames the note-generation model call.
const DiarySystemPrompt = "You are a thoughtful assistant that helps people create meaningful " +
	"personal diary entries from their spoken thoughts or experiences. Focus on emotional depth, " +
	"personal reflection, and authentic expression."

// DiaryPrompt builds the note-generation prompt for a transcription.
func DiaryPrompt(transcription string) string {
	return fmt.Sprintf(`Convert the following transcription into a well-structured personal diary entry.

Create a thoughtful, reflective diary note with the following sections:

📅 **Date & Time**: Today's date and approximate time
😊 **Mood/Feelings**: Emotional state and general feelings expressed
🌟 **Key Events**: Main activities, experiences, or topics discussed
💭 **Thoughts & Reflections**: Personal insights, learnings, or deeper thoughts
🎯 **Takeaways**: Important points or actions to remember

Guidelines:
- Write in first person as if the person is writing their own diary
- Maintain a personal, authentic tone
- Focus on the emotional and experiential aspects
- Keep it concise but meaningful
- If multiple topics are discussed, organize them logically

Transcription:
%s

Please create a personal diary entry based on this content:`, transcription)
}
