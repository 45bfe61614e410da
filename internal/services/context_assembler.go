package services

import (
	"context"
	"fmt"
	"strings"

	"docchat_go_backend/internal/models"

	"github.com/google/uuid"
)

const DefaultHistoryWindow = 10

type PromptMessage struct {
	Role    models.MessageRole
	Content string
}

// ContextAssembler builds the message list sent to the language model.
type ContextAssembler struct {
	files         FileStore
	conversations ConversationStore
	window        int
}

func NewContextAssembler(files FileStore, conversations ConversationStore, window int) *ContextAssembler {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	return &ContextAssembler{
		files:         files,
		conversations: conversations,
		window:        window,
	}
}

// BuildPrompt returns the system instruction, the stored window and the new
// user message, in that order, together with the files placed in scope.
// An explicit selection narrows scope to those files; processed status is
// always required.
func (a *ContextAssembler) BuildPrompt(ctx context.Context, chat *models.ChatSession, displayName, newUserMessage string, selection []uuid.UUID) ([]PromptMessage, []models.UploadedFile, error) {
	var files []models.UploadedFile
	var err error
	if len(selection) > 0 {
		files, err = a.files.ListProcessedByIDs(ctx, chat.ID, selection)
	} else {
		files, err = a.files.ListProcessed(ctx, chat.ID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve file context: %w", err)
	}

	recent, err := a.conversations.RecentMessages(ctx, chat.ID, a.window)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load recent messages: %w", err)
	}

	prompt := make([]PromptMessage, 0, len(recent)+2)
	prompt = append(prompt, PromptMessage{
		Role:    models.RoleSystem,
		Content: SystemInstruction(displayName, FileContextBlock(files)),
	})
	for _, msg := range recent {
		prompt = append(prompt, PromptMessage{Role: msg.Role, Content: msg.Content})
	}
	prompt = append(prompt, PromptMessage{Role: models.RoleUser, Content: newUserMessage})

	return prompt, files, nil
}

// FileContextBlock renders each file as "File: <name>\nContent: <text>",
// blank-line separated.
func FileContextBlock(files []models.UploadedFile) string {
	blocks := make([]string, 0, len(files))
	for _, f := range files {
		text := ""
		if f.ProcessingResult.ExtractedText != nil {
			text = *f.ProcessingResult.ExtractedText
		}
		blocks = append(blocks, fmt.Sprintf("File: %s\nContent: %s", f.OriginalName, text))
	}
	return strings.Join(blocks, "\n\n")
}

func SystemInstruction(displayName, fileContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a helpful AI assistant. The user you are talking to is %s.", displayName)
	if fileContext != "" {
		b.WriteString(`

CRITICAL INSTRUCTIONS FOR FILE-BASED QUESTIONS:
1. ALWAYS search the provided file content FIRST for answers
2. If the answer is found in the file, provide it with a reference like "According to the PDF..."
3. If the answer is NOT found in the file, clearly state "This information is not found in the uploaded PDF" before giving a general answer
4. When referencing file content, quote the relevant parts
5. Be specific about what information comes from the file vs. general knowledge

File content available: `)
		b.WriteString(fileContext)
	} else {
		b.WriteString("\n\nNote: No files are currently uploaded in this chat.")
	}
	return b.String()
}
