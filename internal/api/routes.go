package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"docchat_go_backend/internal/auth"
	apperrors "docchat_go_backend/internal/errors"
	"docchat_go_backend/internal/models"
	"docchat_go_backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// multipartOverhead is the slack allowed on top of the file size limit for
// form boundaries and headers.
const multipartOverhead = 1 << 20

type RouteConfig struct {
	MaxFileSize int64
	CacheTTL    time.Duration
}

// SetupRoutes mounts the chat API. cache may be nil to disable response
// caching.
func SetupRoutes(r *gin.Engine, chatService *services.ChatService, authMiddleware gin.HandlerFunc, cache ResponseStore, cfg RouteConfig) {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = services.DefaultMaxFileSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	cached := CacheResponses(cache, cfg.CacheTTL)

	chats := r.Group("/api/chats", authMiddleware, InvalidateOnWrite(cache))
	{
		chats.POST("", createChatHandler(chatService))
		chats.GET("", cached, listChatsHandler(chatService))
		chats.GET("/:chatId", cached, getChatHandler(chatService))
		chats.GET("/:chatId/history", cached, getHistoryHandler(chatService))
		chats.POST("/:chatId/messages", sendMessageHandler(chatService))
		chats.DELETE("/:chatId/messages", clearMessagesHandler(chatService))
		chats.PUT("/:chatId/settings", updateSettingsHandler(chatService))
		chats.DELETE("/:chatId", deleteChatHandler(chatService))
		chats.POST("/:chatId/files", uploadFileHandler(chatService, cfg.MaxFileSize))
		chats.GET("/:chatId/files", cached, listFilesHandler(chatService))
		chats.GET("/:chatId/files/:fileId/download", downloadFileHandler(chatService))
		chats.DELETE("/:chatId/files/:fileId", deleteFileHandler(chatService))
	}
}

// toHTTPError maps service errors onto API errors.
func toHTTPError(err error) error {
	var validationErr *services.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return apperrors.NewValidationError(apperrors.FieldError{
			Field:   validationErr.Field,
			Message: validationErr.Message,
		})
	case errors.Is(err, services.ErrChatNotFound):
		return apperrors.New404Error("Chat not found")
	case errors.Is(err, services.ErrFileNotFound):
		return apperrors.New404Error("File not found")
	case errors.Is(err, services.ErrInvalidTransition):
		return apperrors.New409Error("File is already in a terminal state")
	case errors.Is(err, services.ErrModelUnavailable):
		return apperrors.New503Error(services.ErrModelUnavailable.Error(), err)
	default:
		return apperrors.New500Error(err)
	}
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	body := gin.H{"success": true, "data": data}
	if message != "" {
		body["message"] = message
	}
	c.JSON(status, body)
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		apperrors.HandleError(c, apperrors.New401Error("User not found in context"))
		return uuid.Nil, false
	}
	return user.ID, true
}

func pathUUID(c *gin.Context, name, field string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		apperrors.HandleError(c, apperrors.NewValidationError(apperrors.FieldError{
			Field:   field,
			Message: "Invalid " + field + " format",
		}))
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		apperrors.HandleError(c, apperrors.NewValidationError(apperrors.FieldError{
			Field:   name,
			Message: name + " must be a positive integer",
		}))
		return 0, false
	}
	return v, true
}

func createChatHandler(chatService *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}

		var request struct {
			Title string `json:"title"`
		}
		if err := c.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
			apperrors.HandleError(c, apperrors.New400Error("Invalid request body"))
			return
		}

		chat, err := chatService.CreateChat(c.Request.Context(), userID, request.Title)
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		respond(c, http.StatusCreated, "Chat created successfully", gin.H{"chat": chat})
	}
}

func listChatsHandler(chatService *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		page, ok := queryInt(c, "page")
		if !ok {
			return
		}
		limit, ok := queryInt(c, "limit")
		if !ok {
			return
		}

		result, err := chatService.ListChats(c.Request.Context(), userID, services.ChatListQuery{
			Page:   page,
			Limit:  limit,
			Search: c.Query("search"),
		})
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		respond(c, http.StatusOK, "", result)
	}
}

func getChatHandler(chatService *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		chatID, ok := pathUUID(c, "chatId", "chatId")
		if !ok {
			return
		}

		detail, err := chatService.GetChat(c.Request.Context(), chatID, userID)
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		respond(c, http.StatusOK, "", detail)
	}
}

func getHistoryHandler(chatService *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		chatID, ok := pathUUID(c, "chatId", "chatId")
		if !ok {
			return
		}
		page, ok := queryInt(c, "page")
		if !ok {
			return
		}
		limit, ok := queryInt(c, "limit")
		if !ok {
			return
		}

		history, err := chatService.GetHistory(c.Request.Context(), chatID, userID, page, limit)
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		respond(c, http.StatusOK, "", history)
	}
}

type fileRef struct {
	FileID string `json:"fileId"`
}

func sendMessageHandler(chatService *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		chatID, ok := pathUUID(c, "chatId", "chatId")
		if !ok {
			return
		}

		var request struct {
			Message string    `json:"message"`
			Files   []fileRef `json:"files"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error("Invalid request body"))
			return
		}

		selection := make([]uuid.UUID, 0, len(request.Files))
		for _, ref := range request.Files {
			id, err := uuid.Parse(ref.FileID)
			if err != nil {
				apperrors.HandleError(c, apperrors.NewValidationError(apperrors.FieldError{
					Field:   "files",
					Message: "Invalid file ID format",
				}))
				return
			}
			selection = append(selection, id)
		}

		result, err := chatService.SendMessage(c.Request.Context(), chatID, userID, request.Message, selection)
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		respond(c, http.StatusOK, "", result)
	}
}

func uploadFileHandler(chatService *services.ChatService, maxFileSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		chatID, ok := pathUUID(c, "chatId", "chatId")
		if !ok {
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFileSize+multipartOverhead)
		fileHeader, err := c.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				apperrors.HandleError(c, apperrors.New413Error("File too large. Maximum size is "+models.FormatSize(maxFileSize)))
				return
			}
			apperrors.HandleError(c, apperrors.NewValidationError(apperrors.FieldError{
				Field:   "file",
				Message: "No file uploaded",
			}))
			return
		}

		f, err := fileHeader.Open()
		if err != nil {
			apperrors.HandleError(c, apperrors.New500Error(err))
			return
		}
		defer f.Close()
		raw, err := io.ReadAll(f)
		if err != nil {
			apperrors.HandleError(c, apperrors.New500Error(err))
			return
		}

		result, err := chatService.UploadFile(c.Request.Context(), chatID, userID, raw, fileHeader.Filename, fileHeader.Header.Get("Content-Type"))
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		respond(c, http.StatusCreated, result.Message, gin.H{"file": fileResponse(result.File)})
	}
}

// fileResponse adds the derived size label to a file.
func fileResponse(f *models.UploadedFile) gin.H {
	return gin.H{
		"id":               f.ID,
		"chatId":           f.ChatID,
		"filename":         f.StoredName,
		"originalName":     f.OriginalName,
		"mimetype":         f.MimeType,
		"size":             f.Size,
		"sizeFormatted":    f.SizeFormatted(),
		"fileType":         f.FileType,
		"status":           f.Status,
		"processingResult": f.ProcessingResult,
		"metadata":         f.Metadata,
		"createdAt":        f.CreatedAt,
	}
}

func listFilesHandler(chatService *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		chatID, ok := pathUUID(c, "chatId", "chatId")
		if !ok {
			return
		}

		files, err := chatService.ListFiles(c.Request.Context(), chatID, userID)
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		out := make([]gin.H, 0, len(files))
		for i := range files {
			out = append(out, fileResponse(&files[i]))
		}
		respond(c, http.StatusOK, "", gin.H{"files": out})
	}
}

func downloadFileHandler(chatService *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		chatID, ok := pathUUID(c, "chatId", "chatId")
		if !ok {
			return
		}
		fileID, ok := pathUUID(c, "fileId", "fileId")
		if !ok {
			return
		}

		file, raw, err := chatService.DownloadFile(c.Request.Context(), chatID, fileID, userID)
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		contentType := file.MimeType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.OriginalName}))
		c.Data(http.StatusOK, contentType, raw)
	}
}

func deleteFileHandler(chatService *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		chatID, ok := pathUUID(c, "chatId", "chatId")
		if !ok {
			return
		}
		fileID, ok := pathUUID(c, "fileId", "fileId")
		if !ok {
			return
		}

		if err := chatService.DeleteFile(c.Request.Context(), chatID, fileID, userID); err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		respond(c, http.StatusOK, "File deleted successfully", nil)
	}
}

func updateSettingsHandler(chatService *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		chatID, ok := pathUUID(c, "chatId", "chatId")
		if !ok {
			return
		}

		var request struct {
			Model       *string  `json:"model"`
			Temperature *float64 `json:"temperature"`
			MaxTokens   *int     `json:"maxTokens"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error("Invalid request body"))
			return
		}

		chat, err := chatService.UpdateSettings(c.Request.Context(), chatID, userID, services.SettingsPatch{
			Model:       request.Model,
			Temperature: request.Temperature,
			MaxTokens:   request.MaxTokens,
		})
		if err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		respond(c, http.StatusOK, "Chat settings updated successfully", gin.H{"chat": chat})
	}
}

func deleteChatHandler(chatService *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		chatID, ok := pathUUID(c, "chatId", "chatId")
		if !ok {
			return
		}

		if err := chatService.DeleteChat(c.Request.Context(), chatID, userID); err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		respond(c, http.StatusOK, "Chat deleted successfully", nil)
	}
}

func clearMessagesHandler(chatService *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		chatID, ok := pathUUID(c, "chatId", "chatId")
		if !ok {
			return
		}

		if err := chatService.ClearMessages(c.Request.Context(), chatID, userID); err != nil {
			apperrors.HandleError(c, toHTTPError(err))
			return
		}
		respond(c, http.StatusOK, "Messages cleared successfully", nil)
	}
}
