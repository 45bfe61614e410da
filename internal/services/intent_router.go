package services

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"docchat_go_backend/internal/models"
)

type Intent int

const (
	IntentNone Intent = iota
	IntentIdentity
	IntentProfile
	IntentHelp
	IntentChatInfo
)

func (i Intent) String() string {
	switch i {
	case IntentIdentity:
		return "identity"
	case IntentProfile:
		return "profile"
	case IntentHelp:
		return "help"
	case IntentChatInfo:
		return "chat_info"
	default:
		return "none"
	}
}

type intentClassifier struct {
	intent   Intent
	patterns []*regexp.Regexp
}

// IntentRouter answers a few fixed questions without calling the model.
// Classifiers are checked in order and the first match wins. Matching is a
// pattern search, so "help me analyze this" is a help request.
type IntentRouter struct {
	classifiers []intentClassifier
	now         func() time.Time
}

func NewIntentRouter() *IntentRouter {
	return &IntentRouter{
		classifiers: []intentClassifier{
			{IntentIdentity, compilePatterns(
				`what\s+is\s+my\s+name\??`,
				`what's\s+my\s+name\??`,
				`who\s+am\s+i\??`,
				`tell\s+me\s+my\s+name`,
				`my\s+name\s+is\s+what\??`,
				`what\s+do\s+you\s+call\s+me\??`,
			)},
			{IntentProfile, compilePatterns(
				`show\s+my\s+profile`,
				`my\s+profile`,
				`tell\s+me\s+about\s+myself`,
				`what\s+do\s+you\s+know\s+about\s+me`,
			)},
			{IntentHelp, compilePatterns(
				`help`,
				`what\s+can\s+you\s+do`,
				`commands`,
				`features`,
				`show\s+help`,
			)},
			{IntentChatInfo, compilePatterns(
				`chat\s+info`,
				`session\s+info`,
				`current\s+chat`,
				`what\s+chat\s+is\s+this`,
			)},
		},
		now: time.Now,
	}
}

func compilePatterns(exprs ...string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		patterns[i] = regexp.MustCompile(`(?i)` + expr)
	}
	return patterns
}

func (r *IntentRouter) Classify(text string) Intent {
	for _, classifier := range r.classifiers {
		for _, pattern := range classifier.patterns {
			if pattern.MatchString(text) {
				return classifier.intent
			}
		}
	}
	return IntentNone
}

// IntentContext is what a canned reply may draw on.
type IntentContext struct {
	User      *models.User
	UserID    string
	Chat      *models.ChatSession
	FileCount int64
}

const (
	dateLayout     = "1/2/2006"
	dateTimeLayout = "1/2/2006, 3:04:05 PM"
)

// Reply renders the canned answer for a matched intent.
func (r *IntentRouter) Reply(intent Intent, ic IntentContext) string {
	switch intent {
	case IntentIdentity:
		return fmt.Sprintf("Your name is %s! 😊", DisplayName(ic.User, "User"))
	case IntentProfile:
		return profileReply(ic.User)
	case IntentHelp:
		return helpReply
	case IntentChatInfo:
		return r.chatInfoReply(ic)
	default:
		return ""
	}
}

func profileReply(user *models.User) string {
	var b strings.Builder
	b.WriteString("User Profile:\n")
	if user == nil {
		return b.String()
	}
	if user.FirstName != "" && user.LastName != "" {
		fmt.Fprintf(&b, "👤 **Name:** %s %s\n", user.FirstName, user.LastName)
	} else if user.FirstName != "" {
		fmt.Fprintf(&b, "👤 **Name:** %s\n", user.FirstName)
	}
	if user.Username != "" {
		fmt.Fprintf(&b, "🏷️ **Username:** %s\n", user.Username)
	}
	if user.Email != "" {
		fmt.Fprintf(&b, "📧 **Email:** %s\n", user.Email)
	}
	if !user.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "📅 **Member since:** %s\n", user.CreatedAt.Format(dateLayout))
	}
	if user.LastLogin != nil {
		fmt.Fprintf(&b, "🕒 **Last login:** %s\n", user.LastLogin.Format(dateTimeLayout))
	}
	return b.String()
}

func (r *IntentRouter) chatInfoReply(ic IntentContext) string {
	var title, created, lastActivity string
	var total int
	if ic.Chat != nil {
		title = ic.Chat.Title
		created = ic.Chat.CreatedAt.Format(dateTimeLayout)
		lastActivity = ic.Chat.Metadata.LastActivity.Format(dateTimeLayout)
		total = ic.Chat.Metadata.TotalMessages
	}

	return fmt.Sprintf(`💬 **Current Chat Session**

**Chat Details:**
• **Title:** %s
• **Created:** %s
• **Last Activity:** %s
• **Total Messages:** %d
• **Files Uploaded:** %d

**Your Information:**
• **User ID:** %s
• **Session Started:** %s

This is a new conversation where I can help you with questions, file analysis, and more! 🚀`,
		title, created, lastActivity, total, ic.FileCount, ic.UserID, r.now().Format(dateTimeLayout))
}

const helpReply = `🤖 **AI Chat System - Help & Commands**

**Basic Commands:**
• Ask "What is my name?" - I'll tell you your name
• Ask "Show my profile" - I'll show your profile information
• Type "help" - Show this help message
• Ask "Chat info" - Show current chat session info

**Chat Features:**
• Ask me anything - I'm here to help with questions
• Upload files (PDF/CSV) - I can analyze and answer questions about them
• I remember our conversation context
• I know your name and can personalize responses

**File Support:**
• PDF files - I can read and analyze text content
• CSV files - I can process data and answer questions
• Maximum file size: 10MB
• Supported formats: .pdf, .csv

**Examples:**
• "What is my name?"
• "Show my profile"
• "Chat info"
• "Help me analyze this PDF"
• "What can you do?"
• "Tell me about myself"

Feel free to ask me anything or upload files for analysis! 🚀`
