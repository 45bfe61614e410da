package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"docchat_go_backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	MaxTitleLength   = 100
	MaxMessageLength = 5000
	MinMaxTokens     = 100
	MaxMaxTokens     = 4000
	MaxTemperature   = 2.0

	DefaultHistoryLimit = 50
	MaxPageLimit        = 100
	DefaultChatsLimit   = 20
	DefaultMaxFileSize  = 10 * 1024 * 1024

	previewLength = 100
)

const (
	apologyMessage       = "Sorry, I encountered an error processing your request. Please try again."
	uploadSuccessMessage = "File processed successfully! You can now ask questions about it."
	uploadFailureMessage = "File uploaded but processing failed. Please try again."
)

const (
	EventMessageAppended = "message_appended"
	EventFileStatus      = "file_status"
)

// ChatEvent is pushed to the owner's topic whenever a chat changes.
type ChatEvent struct {
	Type    string               `json:"type"`
	ChatID  uuid.UUID            `json:"chatId"`
	Message *models.Message      `json:"message,omitempty"`
	File    *models.UploadedFile `json:"file,omitempty"`
}

func UserTopic(userID uuid.UUID) string {
	return "user:" + userID.String()
}

type ChatServiceConfig struct {
	ModelTimeout      time.Duration
	ProcessingTimeout time.Duration
	MaxFileSize       int64
}

// ChatService ties the stores, the processor, the intent router and the
// language model together for the chat API.
type ChatService struct {
	conversations ConversationStore
	files         FileStore
	processor     DocumentProcessor
	assembler     *ContextAssembler
	router        *IntentRouter
	llm           LanguageModel
	users         UserDirectory
	blobs         CloudStorageManager
	events        EventPublisher
	cfg           ChatServiceConfig
}

func NewChatService(
	conversations ConversationStore,
	files FileStore,
	processor DocumentProcessor,
	assembler *ContextAssembler,
	router *IntentRouter,
	llm LanguageModel,
	users UserDirectory,
	blobs CloudStorageManager,
	events EventPublisher,
	cfg ChatServiceConfig,
) *ChatService {
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = 60 * time.Second
	}
	if cfg.ProcessingTimeout <= 0 {
		cfg.ProcessingTimeout = 60 * time.Second
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	return &ChatService{
		conversations: conversations,
		files:         files,
		processor:     processor,
		assembler:     assembler,
		router:        router,
		llm:           llm,
		users:         users,
		blobs:         blobs,
		events:        events,
		cfg:           cfg,
	}
}

func (s *ChatService) CreateChat(ctx context.Context, owner uuid.UUID, title string) (*models.ChatSession, error) {
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, newValidationError("title", "Chat title cannot exceed 100 characters")
	}
	if title == "" {
		title = models.DefaultChatTitle
	}

	user, err := s.lookupUser(ctx, owner)
	if err != nil {
		return nil, err
	}

	welcome := fmt.Sprintf("Hello %s! 👋 I'm your AI assistant. How can I help you today? You can ask me questions, upload files (PDF/CSV) for analysis, or just chat with me!", DisplayName(user, "there"))

	chat, err := s.conversations.CreateSession(ctx, owner, title, models.DefaultChatSettings(), welcome)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	zerolog.Ctx(ctx).Info().Str("chat_id", chat.ID.String()).Msg("chat created")
	return chat, nil
}

// SendResult is the outcome of one user turn. UserMessage is nil when an
// intent was answered without the model.
type SendResult struct {
	Chat        *models.ChatSession `json:"chat"`
	UserMessage *models.Message     `json:"userMessage,omitempty"`
	Reply       *models.Message     `json:"reply"`
	Intent      string              `json:"intent"`
}

func (s *ChatService) SendMessage(ctx context.Context, sessionID, owner uuid.UUID, text string, selection []uuid.UUID) (*SendResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, newValidationError("message", "Message content is required")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, newValidationError("message", "Message cannot exceed 5000 characters")
	}

	chat, err := s.conversations.FindActive(ctx, sessionID, owner)
	if err != nil {
		return nil, err
	}
	user, err := s.lookupUser(ctx, owner)
	if err != nil {
		return nil, err
	}

	logger := zerolog.Ctx(ctx).With().Str("chat_id", chat.ID.String()).Logger()

	if intent := s.router.Classify(text); intent != IntentNone {
		fileCount, err := s.files.CountByChat(ctx, chat.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count files: %w", err)
		}
		reply := s.router.Reply(intent, IntentContext{
			User:      user,
			UserID:    owner.String(),
			Chat:      chat,
			FileCount: fileCount,
		})
		updated, message, err := s.conversations.AppendMessage(ctx, chat.ID, models.RoleAssistant, reply, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to save reply: %w", err)
		}
		s.publishMessage(owner, message)
		logger.Debug().Str("intent", intent.String()).Msg("answered without model")
		return &SendResult{Chat: updated, Reply: message, Intent: intent.String()}, nil
	}

	// The window is read before the new message is stored so it is not
	// sent to the model twice.
	prompt, inScope, err := s.assembler.BuildPrompt(ctx, chat, DisplayName(user, "User"), text, selection)
	if err != nil {
		return nil, err
	}

	var attachments []models.Attachment
	if len(selection) > 0 {
		for _, f := range inScope {
			attachments = append(attachments, models.Attachment{
				FileID:       f.ID,
				OriginalName: f.OriginalName,
				MimeType:     f.MimeType,
				Size:         f.Size,
				FileType:     f.FileType,
			})
		}
	}

	_, userMessage, err := s.conversations.AppendMessage(ctx, chat.ID, models.RoleUser, text, attachments)
	if err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	s.publishMessage(owner, userMessage)

	completion, err := s.complete(ctx, chat.Settings, prompt)

	// The user turn is stored, so an assistant turn has to follow even if
	// the request context is already done.
	persistCtx := context.WithoutCancel(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("language model call failed")
		_, apology, aerr := s.conversations.AppendMessage(persistCtx, chat.ID, models.RoleAssistant, apologyMessage, nil)
		if aerr != nil {
			logger.Error().Err(aerr).Msg("failed to save apology")
		} else {
			s.publishMessage(owner, apology)
		}
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	updated, reply, err := s.conversations.AppendMessage(persistCtx, chat.ID, models.RoleAssistant, completion, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to save reply: %w", err)
	}
	s.publishMessage(owner, reply)

	return &SendResult{
		Chat:        updated,
		UserMessage: userMessage,
		Reply:       reply,
		Intent:      IntentNone.String(),
	}, nil
}

func (s *ChatService) complete(ctx context.Context, settings models.ChatSettings, prompt []PromptMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ModelTimeout)
	defer cancel()

	text, err := s.llm.Complete(ctx, CompletionRequest{
		Model:       settings.Model,
		Temperature: settings.Temperature,
		MaxTokens:   settings.MaxTokens,
		Messages:    prompt,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty completion")
	}
	return text, nil
}

type UploadResult struct {
	File    *models.UploadedFile `json:"file"`
	Message string               `json:"message"`
}

// ClassifyFileType decides the declared type from the MIME type, falling
// back to the file extension.
func ClassifyFileType(mimeType, originalName string) models.FileType {
	switch strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0])) {
	case "application/pdf":
		return models.FileTypePDF
	case "text/csv":
		return models.FileTypeCSV
	}
	switch strings.ToLower(filepath.Ext(originalName)) {
	case ".pdf":
		return models.FileTypePDF
	case ".csv":
		return models.FileTypeCSV
	}
	return models.FileTypeOther
}

// UploadFile stores the raw bytes, records the file and processes it inline.
// A processing failure leaves the file in error status and is reported in
// the result, not as an error.
func (s *ChatService) UploadFile(ctx context.Context, sessionID, owner uuid.UUID, raw []byte, originalName, mimeType string) (*UploadResult, error) {
	if len(raw) == 0 {
		return nil, newValidationError("file", "No file uploaded")
	}
	if int64(len(raw)) > s.cfg.MaxFileSize {
		return nil, newValidationError("file", fmt.Sprintf("File too large. Maximum size is %s", models.FormatSize(s.cfg.MaxFileSize)))
	}
	fileType := ClassifyFileType(mimeType, originalName)
	if fileType == models.FileTypeOther {
		return nil, newValidationError("file", "Only PDF and CSV files are allowed")
	}

	chat, err := s.conversations.FindActive(ctx, sessionID, owner)
	if err != nil {
		return nil, err
	}

	logger := zerolog.Ctx(ctx).With().Str("chat_id", chat.ID.String()).Logger()

	storedName := uuid.New().String() + strings.ToLower(filepath.Ext(originalName))
	storagePath := path.Join(owner.String(), chat.ID.String(), storedName)
	if err := s.blobs.UploadFile(ctx, storagePath, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	file, err := s.files.Create(ctx, &models.UploadedFile{
		UserID:       owner,
		ChatID:       chat.ID,
		StoredName:   storedName,
		OriginalName: originalName,
		MimeType:     mimeType,
		Size:         int64(len(raw)),
		StoragePath:  storagePath,
		FileType:     fileType,
	})
	// Cleanup and terminal status are written even if the caller gave up
	// meanwhile.
	persistCtx := context.WithoutCancel(ctx)
	if err != nil {
		s.discardBlob(persistCtx, logger, storagePath)
		return nil, fmt.Errorf("failed to record upload: %w", err)
	}
	if _, err := s.files.MarkProcessing(ctx, file.ID); err != nil {
		if _, merr := s.files.MarkError(persistCtx, file.ID, "Processing could not be started"); merr != nil {
			logger.Error().Err(merr).Str("file_id", file.ID.String()).Msg("failed to mark upload as failed")
		}
		s.discardBlob(persistCtx, logger, storagePath)
		return nil, fmt.Errorf("failed to start processing: %w", err)
	}

	result, perr := s.process(ctx, raw, fileType)

	message := uploadSuccessMessage
	if perr != nil {
		logger.Warn().Err(perr).Str("file_id", file.ID.String()).Msg("file processing failed")
		file, err = s.files.MarkError(persistCtx, file.ID, perr.Error())
		message = uploadFailureMessage
	} else {
		file, err = s.files.MarkProcessed(persistCtx, file.ID, result.Text, result.Metadata)
		if err == nil {
			err = s.conversations.RecordFile(persistCtx, chat.ID, fileType)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record processing outcome: %w", err)
	}

	s.publish(owner, ChatEvent{Type: EventFileStatus, ChatID: chat.ID, File: file})
	logger.Info().Str("file_id", file.ID.String()).Str("status", string(file.Status)).Msg("file uploaded")

	return &UploadResult{File: file, Message: message}, nil
}

func (s *ChatService) discardBlob(ctx context.Context, logger zerolog.Logger, storagePath string) {
	if err := s.blobs.DeleteFile(ctx, storagePath); err != nil {
		logger.Error().Err(err).Str("path", storagePath).Msg("failed to remove orphaned upload")
	}
}

func (s *ChatService) process(ctx context.Context, raw []byte, fileType models.FileType) (*ProcessResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProcessingTimeout)
	defer cancel()
	return s.processor.Process(ctx, raw, fileType)
}

type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	HasNext     bool `json:"hasNext"`
	HasPrev     bool `json:"hasPrev"`
}

func newPagination(page, limit int, total int64) Pagination {
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		HasNext:     int64(page*limit) < total,
		HasPrev:     page > 1,
	}
}

func normalizePage(page, limit, defaultLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

type HistoryPagination struct {
	Pagination
	TotalMessages int64 `json:"totalMessages"`
}

type HistoryPage struct {
	ChatID     uuid.UUID             `json:"chatId"`
	Title      string                `json:"title"`
	Messages   []models.Message      `json:"messages"`
	Files      []models.UploadedFile `json:"files"`
	Pagination HistoryPagination     `json:"pagination"`
}

func (s *ChatService) GetHistory(ctx context.Context, sessionID, owner uuid.UUID, page, limit int) (*HistoryPage, error) {
	page, limit = normalizePage(page, limit, DefaultHistoryLimit)

	chat, err := s.conversations.FindActive(ctx, sessionID, owner)
	if err != nil {
		return nil, err
	}
	messages, err := s.conversations.LoadMessages(ctx, chat.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	files, err := s.files.ListProcessed(ctx, chat.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load files: %w", err)
	}

	total := len(messages)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &HistoryPage{
		ChatID:   chat.ID,
		Title:    chat.Title,
		Messages: messages[start:end],
		Files:    files,
		Pagination: HistoryPagination{
			Pagination:    newPagination(page, limit, int64(total)),
			TotalMessages: int64(total),
		},
	}, nil
}

type MessagePreview struct {
	Content   string             `json:"content"`
	Role      models.MessageRole `json:"role"`
	Timestamp time.Time          `json:"timestamp"`
}

type ChatSummary struct {
	ID          uuid.UUID           `json:"id"`
	Title       string              `json:"title"`
	Settings    models.ChatSettings `json:"settings"`
	Metadata    models.ChatMetadata `json:"metadata"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
	LastMessage *MessagePreview     `json:"lastMessage"`
}

type ChatListPagination struct {
	Pagination
	TotalChats int64 `json:"totalChats"`
}

type ChatListPage struct {
	Chats      []ChatSummary      `json:"chats"`
	Pagination ChatListPagination `json:"pagination"`
}

func (s *ChatService) ListChats(ctx context.Context, owner uuid.UUID, query ChatListQuery) (*ChatListPage, error) {
	query.Page, query.Limit = normalizePage(query.Page, query.Limit, DefaultChatsLimit)
	if utf8.RuneCountInString(strings.TrimSpace(query.Search)) > MaxTitleLength {
		return nil, newValidationError("search", "Search term must be less than 100 characters")
	}

	chats, total, err := s.conversations.ListActive(ctx, owner, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}

	summaries := make([]ChatSummary, 0, len(chats))
	for _, chat := range chats {
		last, err := s.conversations.LastMessage(ctx, chat.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load last message: %w", err)
		}
		summary := ChatSummary{
			ID:        chat.ID,
			Title:     chat.Title,
			Settings:  chat.Settings,
			Metadata:  chat.Metadata,
			CreatedAt: chat.CreatedAt,
			UpdatedAt: chat.UpdatedAt,
		}
		if last != nil {
			summary.LastMessage = &MessagePreview{
				Content:   Preview(last.Content, previewLength),
				Role:      last.Role,
				Timestamp: last.Timestamp,
			}
		}
		summaries = append(summaries, summary)
	}

	return &ChatListPage{
		Chats: summaries,
		Pagination: ChatListPagination{
			Pagination: newPagination(query.Page, query.Limit, total),
			TotalChats: total,
		},
	}, nil
}

// Preview cuts content to n runes and marks the cut with "...".
func Preview(content string, n int) string {
	if utf8.RuneCountInString(content) <= n {
		return content
	}
	runes := []rune(content)
	return string(runes[:n]) + "..."
}

type ChatDetail struct {
	Chat  *models.ChatSession   `json:"chat"`
	Files []models.UploadedFile `json:"files"`
}

func (s *ChatService) GetChat(ctx context.Context, sessionID, owner uuid.UUID) (*ChatDetail, error) {
	chat, err := s.conversations.FindActive(ctx, sessionID, owner)
	if err != nil {
		return nil, err
	}
	messages, err := s.conversations.LoadMessages(ctx, chat.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	files, err := s.files.ListProcessed(ctx, chat.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load files: %w", err)
	}
	chat.Messages = messages
	return &ChatDetail{Chat: chat, Files: files}, nil
}

func ValidateSettings(patch SettingsPatch) error {
	if patch.Model != nil {
		supported := false
		for _, m := range models.SupportedModels {
			if m == *patch.Model {
				supported = true
				break
			}
		}
		if !supported {
			return newValidationError("model", "Invalid model selection")
		}
	}
	if patch.Temperature != nil && (*patch.Temperature < 0 || *patch.Temperature > MaxTemperature) {
		return newValidationError("temperature", "Temperature must be between 0 and 2")
	}
	if patch.MaxTokens != nil && (*patch.MaxTokens < MinMaxTokens || *patch.MaxTokens > MaxMaxTokens) {
		return newValidationError("maxTokens", "Max tokens must be between 100 and 4000")
	}
	return nil
}

func (s *ChatService) UpdateSettings(ctx context.Context, sessionID, owner uuid.UUID, patch SettingsPatch) (*models.ChatSession, error) {
	if err := ValidateSettings(patch); err != nil {
		return nil, err
	}
	return s.conversations.UpdateSettings(ctx, sessionID, owner, patch)
}

func (s *ChatService) DeleteChat(ctx context.Context, sessionID, owner uuid.UUID) error {
	return s.conversations.SoftDelete(ctx, sessionID, owner)
}

func (s *ChatService) ClearMessages(ctx context.Context, sessionID, owner uuid.UUID) error {
	return s.conversations.ClearMessages(ctx, sessionID, owner)
}

// ListFiles returns every active file of the chat regardless of status.
func (s *ChatService) ListFiles(ctx context.Context, sessionID, owner uuid.UUID) ([]models.UploadedFile, error) {
	chat, err := s.conversations.FindActive(ctx, sessionID, owner)
	if err != nil {
		return nil, err
	}
	return s.files.ListByChat(ctx, chat.ID)
}

// DeleteFile soft-deletes a file of the chat. The stored blob is kept.
func (s *ChatService) DeleteFile(ctx context.Context, sessionID, fileID, owner uuid.UUID) error {
	file, err := s.chatFile(ctx, sessionID, fileID, owner)
	if err != nil {
		return err
	}
	return s.files.SoftDelete(ctx, file.ID)
}

// DownloadFile returns an active file of the chat with its original bytes.
func (s *ChatService) DownloadFile(ctx context.Context, sessionID, fileID, owner uuid.UUID) (*models.UploadedFile, []byte, error) {
	file, err := s.chatFile(ctx, sessionID, fileID, owner)
	if err != nil {
		return nil, nil, err
	}
	raw, err := s.blobs.DownloadFile(ctx, file.StoragePath)
	if err != nil {
		return nil, nil, err
	}
	return file, raw, nil
}

func (s *ChatService) chatFile(ctx context.Context, sessionID, fileID, owner uuid.UUID) (*models.UploadedFile, error) {
	chat, err := s.conversations.FindActive(ctx, sessionID, owner)
	if err != nil {
		return nil, err
	}
	file, err := s.files.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.ChatID != chat.ID || !file.IsActive {
		return nil, ErrFileNotFound
	}
	return file, nil
}

func (s *ChatService) lookupUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

func (s *ChatService) publishMessage(owner uuid.UUID, message *models.Message) {
	s.publish(owner, ChatEvent{Type: EventMessageAppended, ChatID: message.ChatID, Message: message})
}

func (s *ChatService) publish(owner uuid.UUID, event ChatEvent) {
	if s.events == nil {
		return
	}
	s.events.Publish(UserTopic(owner), event)
}
