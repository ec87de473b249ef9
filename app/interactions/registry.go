// Package interactions dispatches Discord interactions to registered handlers.
package interactions

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/observability/attr"
	"github.com/bwmarrin/discordgo"
)

// HandlerTimeout bounds the context handed to a single interaction handler.
// Interaction tokens stay valid for 15 minutes, so follow-up edits made
// within this window still land.
const HandlerTimeout = 5 * time.Minute

// Handler handles one interaction.
type Handler func(ctx context.Context, i *discordgo.InteractionCreate)

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
	timeout  time.Duration
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		handlers: make(map[string]Handler),
		logger:   logger,
		timeout:  HandlerTimeout,
	}
}

// RegisterHandler binds a handler to a command name or custom id. Ids that
// are not matched exactly are resolved by longest registered prefix.
func (r *Registry) RegisterHandler(id string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[id] = handler
}

// HandleInteraction has the signature discordgo expects from AddHandler.
func (r *Registry) HandleInteraction(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	if i == nil || i.Interaction == nil {
		return
	}
	id := interactionID(i)
	if id == "" {
		r.logger.Warn("Ignoring interaction without an id", attr.Int("type", int(i.Type)))
		return
	}

	handler, ok := r.lookup(id)
	if !ok {
		r.logger.Debug("No handler registered for interaction", attr.String("interaction_id", id))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Interaction handler panicked",
				attr.String("interaction_id", id),
				attr.Any("panic", rec),
				attr.String("stack", string(debug.Stack())),
			)
		}
	}()
	handler(ctx, i)
}

func interactionID(i *discordgo.InteractionCreate) string {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		return i.ApplicationCommandData().Name
	case discordgo.InteractionMessageComponent:
		return i.MessageComponentData().CustomID
	case discordgo.InteractionModalSubmit:
		return i.ModalSubmitData().CustomID
	}
	return ""
}

func (r *Registry) lookup(id string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if handler, ok := r.handlers[id]; ok {
		return handler, true
	}

	var (
		best    Handler
		bestLen int
	)
	for key, handler := range r.handlers {
		if len(key) > bestLen && strings.HasPrefix(id, key) {
			best, bestLen = handler, len(key)
		}
	}
	return best, best != nil
}
