package app

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"documind/internal/ai"
	"documind/internal/model"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrMessageEmpty    = errors.New("message content is empty")
)

const (
	defaultMaxTokens = 500
	titleMaxLen      = 60

	systemPrompt = "You are DocuMind, an intelligent AI tutor and assistant.\n\n" +
		"Answer style rules (VERY IMPORTANT):\n" +
		"- If the topic is broad or tutorial-style, give a concise, complete SUMMARY instead of full detail.\n" +
		"- Never start a code example unless it can be finished.\n" +
		"- Prefer overview + small examples over long tutorials.\n" +
		"- Never cut a sentence or code block mid-way.\n" +
		"- Be concise but thorough.\n" +
		"- Prefer clear structure: headings, bullet points, short paragraphs.\n" +
		"- Avoid unnecessary verbosity.\n" +
		"- End answers naturally (no abrupt stops).\n\n" +
		"When DOCUMENT CONTEXT is provided:\n" +
		"- Use it ONLY if it is clearly relevant to the question.\n" +
		"- If the answer is found in the document, use it.\n" +
		"- If the document does not contain the answer, ignore it and answer normally.\n" +
		"- Never fabricate or assume facts from the document.\n"
)

type SessionStore interface {
	Create(session *model.Session) error
	GetByIDAndUserID(sessionID, userID uint) (*model.Session, error)
	ListByUserID(userID uint) ([]model.Session, error)
	UpdateTitle(sessionID uint, title string) error
}

type MessageStore interface {
	Create(message *model.Message) error
	ListBySessionID(sessionID uint, limit int) ([]model.Message, error)
}

// AsyncReplyPublisher hands the finished assistant reply to the persist
// queue after streaming ends.
type AsyncReplyPublisher interface {
	Publish(ctx context.Context, msg model.Message) error
}

type HistoryCache interface {
	GetHistory(ctx context.Context, sessionID uint) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, sessionID uint, messages []model.Message) error
	DeleteHistory(ctx context.Context, sessionID uint) error
	MarkDirty(ctx context.Context, sessionID uint) error
	IsDirty(ctx context.Context, sessionID uint) (bool, error)
}

// ContextRetriever assembles document context for a user's question; an
// empty string means no relevant documents.
type ContextRetriever interface {
	Retrieve(ctx context.Context, userID uint, query string) (string, error)
}

// TokenSource streams generation output fragment by fragment.
type TokenSource interface {
	Stream(ctx context.Context, cfg ai.ChatConfig, messages []ai.Message, maxTokens int, onFragment func(string) error) error
}

// ChatService orchestrates one chat turn: resolve the identity's session,
// persist the inbound message, retrieve document context, build the
// prompt, stream the reply, and persist it. Guests skip every persistence
// and retrieval step.
type ChatService struct {
	sessionRepo  SessionStore
	messageRepo  MessageStore
	publisher    AsyncReplyPublisher
	historyCache HistoryCache
	retriever    ContextRetriever
	tokenSource  TokenSource
	chatCfg      ai.ChatConfig
	maxTokensCap int
	log          *zap.Logger
}

func NewChatService(
	sessionRepo SessionStore,
	messageRepo MessageStore,
	publisher AsyncReplyPublisher,
	historyCache HistoryCache,
	retriever ContextRetriever,
	tokenSource TokenSource,
	chatCfg ai.ChatConfig,
	maxTokensCap int,
	log *zap.Logger,
) *ChatService {
	if maxTokensCap <= 0 {
		maxTokensCap = 1600
	}
	return &ChatService{
		sessionRepo:  sessionRepo,
		messageRepo:  messageRepo,
		publisher:    publisher,
		historyCache: historyCache,
		retriever:    retriever,
		tokenSource:  tokenSource,
		chatCfg:      chatCfg,
		maxTokensCap: maxTokensCap,
		log:          log,
	}
}

type ChatInput struct {
	Identity  Identity
	SessionID uint // 0 = start a new session (ignored for guests)
	Question  string
	MaxTokens int
}

// Turn is a prepared chat turn, ready to stream. SessionID is 0 for guest
// turns.
type Turn struct {
	Identity  Identity
	SessionID uint
	Context   string
	Messages  []ai.Message
	MaxTokens int
}

// PrepareTurn runs everything that must happen before the first token:
// session resolution and the synchronous user-message write (both fatal on
// failure, a lost user message would corrupt history), title assignment,
// context retrieval, and prompt construction. Guests get no session, no
// writes, and no retrieval.
func (s *ChatService) PrepareTurn(ctx context.Context, input ChatInput) (*Turn, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, ErrMessageEmpty
	}

	turn := &Turn{Identity: input.Identity}

	if input.Identity.Known() {
		session, err := s.resolveSession(input.Identity.UserID(), input.SessionID)
		if err != nil {
			return nil, err
		}
		turn.SessionID = session.ID

		userMessage := &model.Message{
			SessionID: session.ID,
			UserID:    input.Identity.UserID(),
			Role:      model.RoleUser,
			Content:   question,
			CreatedAt: time.Now(),
		}
		if err := s.messageRepo.Create(userMessage); err != nil {
			return nil, err
		}
		s.invalidateHistory(ctx, session.ID)

		if strings.TrimSpace(session.Title) == "" {
			if title := deriveTitle(question); title != "" {
				if err := s.sessionRepo.UpdateTitle(session.ID, title); err != nil {
					s.log.Warn("set session title failed",
						zap.Uint("session_id", session.ID),
						zap.Error(err))
				}
			}
		}

		turn.Context = s.buildContext(ctx, input.Identity.UserID(), question)
	}

	turn.Messages = buildPrompt(turn.Context, question)
	turn.MaxTokens = clampMaxTokens(input.MaxTokens, s.maxTokensCap)
	return turn, nil
}

// resolveSession reuses the supplied session when it belongs to the user,
// otherwise creates a fresh one with an empty title.
func (s *ChatService) resolveSession(userID, sessionID uint) (*model.Session, error) {
	if sessionID != 0 {
		session, err := s.sessionRepo.GetByIDAndUserID(sessionID, userID)
		if err != nil {
			return nil, err
		}
		if session != nil {
			return session, nil
		}
	}

	session := &model.Session{UserID: userID}
	if err := s.sessionRepo.Create(session); err != nil {
		return nil, err
	}
	return session, nil
}

// buildContext degrades every retrieval failure to "no context": a missing
// or broken index must never block getting a reply.
func (s *ChatService) buildContext(ctx context.Context, userID uint, question string) string {
	docContext, err := s.retriever.Retrieve(ctx, userID, question)
	if err != nil {
		s.log.Warn("retrieval failed, answering without context",
			zap.Uint("user_id", userID),
			zap.Error(err))
		return ""
	}
	return docContext
}

// StreamTurn streams the reply, forwarding each fragment as produced, and
// returns the concatenated text. For known identities the full reply is
// enqueued for persistence afterwards; if the stream was cut short the
// accumulated partial is still enqueued best-effort so history is not
// silently lost.
func (s *ChatService) StreamTurn(ctx context.Context, turn *Turn, onFragment func(string) error) (string, error) {
	var reply strings.Builder
	streamErr := s.tokenSource.Stream(ctx, s.chatCfg, turn.Messages, turn.MaxTokens, func(fragment string) error {
		reply.WriteString(fragment)
		return onFragment(fragment)
	})

	full := reply.String()
	if turn.Identity.Known() && (streamErr == nil || full != "") {
		s.persistReply(turn, full)
	}
	return full, streamErr
}

// persistReply enqueues the assistant message on a fresh background
// context: by now the request's own context may already be gone. A
// failure here is logged, not surfaced; the client already has the reply.
func (s *ChatService) persistReply(turn *Turn, content string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := model.Message{
		SessionID: turn.SessionID,
		UserID:    turn.Identity.UserID(),
		Role:      model.RoleAssistant,
		Content:   content,
		CreatedAt: time.Now(),
	}
	s.invalidateHistory(ctx, turn.SessionID)
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.log.Error("enqueue assistant reply failed",
			zap.Uint("session_id", turn.SessionID),
			zap.Error(err))
	}
}

func (s *ChatService) invalidateHistory(ctx context.Context, sessionID uint) {
	if s.historyCache == nil {
		return
	}
	_ = s.historyCache.MarkDirty(ctx, sessionID)
	_ = s.historyCache.DeleteHistory(ctx, sessionID)
}

func (s *ChatService) ListSessions(userID uint) ([]model.Session, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.sessionRepo.ListByUserID(userID)
}

// GetHistory returns the session's messages in timestamp order, reading
// through the cache when it is clean.
func (s *ChatService) GetHistory(ctx context.Context, userID, sessionID uint, limit int) ([]model.Message, error) {
	if userID == 0 || sessionID == 0 {
		return nil, ErrInvalidInput
	}

	session, err := s.sessionRepo.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, sessionID); dirtyErr == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, sessionID); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	messages, err := s.messageRepo.ListBySessionID(sessionID, limit)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, sessionID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, sessionID, messages)
		}
	}
	return messages, nil
}

func clampMaxTokens(requested, limit int) int {
	if requested <= 0 {
		requested = defaultMaxTokens
	}
	if requested > limit {
		return limit
	}
	return requested
}

// buildPrompt is the fixed system instruction plus one user turn. With
// context the user turn is a structured block; without it, the bare
// question.
func buildPrompt(docContext, question string) []ai.Message {
	messages := []ai.Message{
		{Role: "system", Content: systemPrompt},
	}

	if strings.TrimSpace(docContext) != "" {
		messages = append(messages, ai.Message{
			Role: "user",
			Content: "DOCUMENT CONTEXT:\n" + docContext + "\n\n" +
				"QUESTION:\n" + question + "\n\n" +
				"If the document context is relevant, answer using it.",
		})
	} else {
		messages = append(messages, ai.Message{
			Role:    "user",
			Content: question,
		})
	}
	return messages
}

var (
	codeFenceRe  = regexp.MustCompile("```[\\s\\S]*?```")
	markupRe     = regexp.MustCompile("[`*_>#~-]+")
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// deriveTitle builds a session title from the first non-empty line of the
// first message: code fences and markdown emphasis stripped, whitespace
// collapsed, capped at 60 characters.
func deriveTitle(question string) string {
	var firstLine string
	for _, line := range strings.Split(question, "\n") {
		if strings.TrimSpace(line) != "" {
			firstLine = strings.TrimSpace(line)
			break
		}
	}
	if firstLine == "" {
		return ""
	}

	firstLine = codeFenceRe.ReplaceAllString(firstLine, "")
	firstLine = markupRe.ReplaceAllString(firstLine, "")
	title := strings.TrimSpace(whitespaceRe.ReplaceAllString(firstLine, " "))

	if runes := []rune(title); len(runes) > titleMaxLen {
		title = string(runes[:titleMaxLen])
	}
	return title
}
