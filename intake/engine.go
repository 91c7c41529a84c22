package intake

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sesampe/preaplus/extract"
	"github.com/sesampe/preaplus/ficha"
	"github.com/sesampe/preaplus/session"
)

const defaultRemoteTimeout = 20 * time.Second

// RecordSink receives the finished record once the dialogue completes.
type RecordSink interface {
	DeliverRecord(ctx context.Context, subjectID string, f ficha.Ficha) error
}

// Engine runs one dialogue turn per inbound message: extract, merge, decide,
// reply. All per-subject state lives in the Store; the engine itself is
// stateless and safe for concurrent use.
type Engine struct {
	registry      *Registry
	store         session.Store
	remote        *extract.Remote
	sink          RecordSink
	logger        *slog.Logger
	remoteTimeout time.Duration
}

type EngineOptions struct {
	Registry      *Registry
	Store         session.Store
	Remote        *extract.Remote // nil runs rule-based extraction only
	Sink          RecordSink      // nil skips record hand-off
	Logger        *slog.Logger
	RemoteTimeout time.Duration
}

func NewEngine(opts EngineOptions) *Engine {
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry()
	}
	if opts.Store == nil {
		opts.Store = session.NewMemoryStore(0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = defaultRemoteTimeout
	}
	return &Engine{
		registry:      opts.Registry,
		store:         opts.Store,
		remote:        opts.Remote,
		sink:          opts.Sink,
		logger:        opts.Logger,
		remoteTimeout: opts.RemoteTimeout,
	}
}

// Turn is the outcome of one inbound message. Replies are sent in order by
// the caller; send failures must not roll back state.
type Turn struct {
	Replies   []string
	Completed bool
	Duplicate bool
	Ignored   bool
}

// HandleInbound processes one subject message. messageID deduplicates
// at-least-once transport deliveries; pass "" when the transport has none.
func (e *Engine) HandleInbound(ctx context.Context, subjectID, messageID, rawText string) (Turn, error) {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return Turn{Ignored: true}, nil
	}
	if messageID == "" {
		messageID = uuid.NewString()
	}

	var turn Turn
	err := e.store.Mutate(subjectID, func(st *session.State) error {
		turn = e.handleTurn(ctx, st, messageID, text)
		return nil
	})
	return turn, err
}

func (e *Engine) handleTurn(ctx context.Context, st *session.State, messageID, text string) Turn {
	log := e.logger.With("subject", st.SubjectID, "msg_id", messageID)

	if !st.MarkProcessed(messageID) {
		log.Debug("inbound_duplicate")
		return Turn{Duplicate: true}
	}

	if turn, handled := e.handleCommand(st, text); handled {
		return turn
	}

	if st.Completed {
		return Turn{Replies: []string{
			"Tu ficha ya está completa. Escribí \"reiniciar\" si necesitás cargarla de nuevo.",
		}}
	}

	module, ok := e.registry.Module(st.ModuleIdx)
	if !ok {
		// Index out of range means corrupted state; restart cleanly.
		log.Warn("module_index_invalid", "module", st.ModuleIdx)
		st.Reset(time.Now())
		module, _ = e.registry.Module(0)
	}

	// Same text failing the same module again gets one answer, not a loop.
	if text == st.LastText && st.LastFailedIdx == module.Index {
		log.Debug("inbound_repeated_failure", "module", module.Index)
		return Turn{Ignored: true}
	}

	firstContact := !dialogueStarted(st)

	combined := e.extractTurn(ctx, module, text, st.Ficha)
	log.Debug("turn_extracted", "module", module.Index, "has_data", combined.HasData(), "start", combined.Start)

	st.LastText = text

	// A greeting, or any cold first contact without data, opens the
	// dialogue instead of counting as a failed attempt.
	if combined.Start || (firstContact && !combined.HasData()) {
		st.LastFailedIdx = session.NoFailedModule
		return Turn{Replies: []string{Greeting, module.Prompt}}
	}

	missingBefore := Missing(module, st.Ficha)
	if combined.HasData() {
		ficha.Merge(&st.Ficha, combined.Ficha)
	}
	progressed := len(Missing(module, st.Ficha)) < len(missingBefore)

	dec := e.registry.Decide(module.Index, st.Ficha, progressed, st.Retries)
	st.ModuleIdx = dec.NextIndex
	if combined.HasData() || dec.Advanced {
		st.LastFailedIdx = session.NoFailedModule
	} else {
		st.LastFailedIdx = module.Index
	}

	var replies []string
	if confirm := Summarize(combined, module); confirm != "" {
		replies = append(replies, confirm)
	}

	switch {
	case dec.Completed:
		st.Completed = true
		replies = append(replies, CompletionMessage)
		log.Info("intake_completed")
		e.deliverRecord(ctx, st, log)
		return Turn{Replies: replies, Completed: true}
	case dec.Advanced:
		next, _ := e.registry.Module(dec.NextIndex)
		if dec.Forced {
			log.Info("module_force_advanced", "from", module.Index, "to", next.Index)
			replies = append(replies, "Sigamos con lo siguiente, eso lo completamos después.")
		} else {
			log.Info("module_advanced", "from", module.Index, "to", next.Index)
		}
		replies = append(replies, next.Prompt)
		return Turn{Replies: replies}
	default:
		if !combined.HasData() {
			replies = append(replies, "No pude leer datos en ese mensaje.")
		}
		replies = append(replies, MissingPrompt(module, dec.Missing))
		return Turn{Replies: replies}
	}
}

// dialogueStarted reports whether the subject has already been greeted or has
// produced any data: only a cold first contact gets the greeting fallback.
func dialogueStarted(st *session.State) bool {
	return st.LastText != "" || !st.Ficha.IsEmpty() || len(st.Retries) > 0 || st.ModuleIdx > 0
}

func (e *Engine) handleCommand(st *session.State, text string) (Turn, bool) {
	switch strings.ToLower(strings.Trim(text, " .!¡")) {
	case "reset", "reiniciar":
		st.Reset(time.Now())
		module, _ := e.registry.Module(0)
		e.logger.Info("session_reset", "subject", st.SubjectID)
		return Turn{Replies: []string{Greeting, module.Prompt}}, true
	case "json", "ficha":
		data, err := json.MarshalIndent(st.Ficha, "", "  ")
		if err != nil {
			return Turn{Replies: []string{"No pude generar la ficha."}}, true
		}
		replies := []string{string(data)}
		if module, ok := e.registry.Module(st.ModuleIdx); ok {
			if missing := Missing(module, st.Ficha); len(missing) > 0 {
				labels := make([]string, 0, len(missing))
				for _, path := range missing {
					labels = append(labels, FieldLabel(path))
				}
				replies = append(replies, "Todavía faltan: "+strings.Join(labels, ", "))
			}
		}
		return Turn{Replies: replies}, true
	}
	return Turn{}, false
}

// extractTurn runs the rule-based pass and, when configured, the model pass,
// overlaying rule results on top so deterministic parses always win. The
// model call runs in its own goroutine to contain provider panics; any
// failure degrades to the rule-only patch.
func (e *Engine) extractTurn(ctx context.Context, m Module, text string, current ficha.Ficha) extract.Patch {
	if !m.UsesRemote || e.remote == nil {
		return extract.Local(m.Index, text, current)
	}

	rctx, cancel := context.WithTimeout(ctx, e.remoteTimeout)
	defer cancel()

	ch := make(chan extract.Patch, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("remote_extract_panic", "module", m.Index, "panic", r)
				ch <- extract.Patch{}
			}
		}()
		patch, err := e.remote.Extract(rctx, m.Index, text, current)
		if err != nil {
			e.logger.Warn("remote_extract_failed", "module", m.Index, "error", err)
			ch <- extract.Patch{}
			return
		}
		ch <- patch
	}()

	local := extract.Local(m.Index, text, current)
	remote := <-ch

	return extract.Overlay(local, remote)
}

func (e *Engine) deliverRecord(ctx context.Context, st *session.State, log *slog.Logger) {
	if e.sink == nil {
		return
	}
	if err := e.sink.DeliverRecord(ctx, st.SubjectID, st.Ficha); err != nil {
		log.Error("record_delivery_failed", "error", err)
		return
	}
	st.RecordDelivered = true
	log.Info("record_delivered")
}
