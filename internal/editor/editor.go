// Package editor maintains the ordered block sequence of the open document
// and mediates the single inline edit session. Up/down buttons and drag
// reordering converge on the same MoveBlock operation, so both paths produce
// identical order and identical persisted state.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"blockforge/api/internal/notify"
	"blockforge/api/internal/sanitize"
	"blockforge/api/internal/store"
)

var (
	ErrNoOpenDocument = errors.New("no open document")
	ErrNoEditSession  = errors.New("no active edit session")
	ErrBlockNotFound  = errors.New("block not found")
)

// session is the one active inline edit. The block is tracked by id, not
// index, so reordering during an edit cannot retarget the flush.
type session struct {
	docID   string
	blockID string
	content string
	dirty   bool
}

// Engine owns at most one edit session system-wide. Entering an edit on
// another block first cleanly exits the previous session (flushing any
// pending content), never by locking.
type Engine struct {
	state     *store.State
	sanitizer sanitize.Sanitizer
	notifier  notify.Notifier
	log       *zap.Logger
	debounce  *Debouncer

	mu     sync.Mutex
	active *session
}

func NewEngine(state *store.State, sanitizer sanitize.Sanitizer, notifier notify.Notifier, log *zap.Logger, debounceInterval time.Duration) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if debounceInterval <= 0 {
		debounceInterval = 600 * time.Millisecond
	}
	return &Engine{
		state:     state,
		sanitizer: sanitizer,
		notifier:  notifier,
		log:       log,
		debounce:  NewDebouncer(debounceInterval),
	}
}

// ---- edit session ----

// Begin opens an edit session on one block of the open document.
// Re-activating the block already being edited is a no-op; activating a
// different block flushes and exits the previous session first.
func (e *Engine) Begin(ctx context.Context, index int) error {
	doc, ok := e.state.ActiveDocument()
	if !ok {
		e.notifier.Notify(notify.LevelWarning, "Open a document first.")
		return ErrNoOpenDocument
	}
	if index < 0 || index >= len(doc.Blocks) {
		return fmt.Errorf("block index %d: %w", index, ErrBlockNotFound)
	}
	block := doc.Blocks[index]

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != nil && e.active.docID == doc.ID && e.active.blockID == block.ID {
		return nil
	}
	if e.active != nil {
		e.exitLocked(ctx)
	}
	e.active = &session{docID: doc.ID, blockID: block.ID, content: block.Content}
	return nil
}

// Input records new content for the block under edit and schedules a
// debounced persist. Repeated inputs collapse into one write reflecting
// only the latest content.
func (e *Engine) Input(ctx context.Context, content string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return ErrNoEditSession
	}
	e.active.content = content
	e.active.dirty = true
	sess := e.active
	e.debounce.Schedule(func() {
		e.flushScheduled(sess)
	})
	return nil
}

// flushScheduled is the debounce timer callback. It re-acquires the engine
// lock and verifies the session is still the active one; the edit may have
// been exited or discarded since the timer was armed.
func (e *Engine) flushScheduled(sess *session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != sess {
		return
	}
	e.flushLocked(context.Background(), sess)
}

// Exit closes the edit session, flushing any pending content synchronously
// first so no edit is lost.
func (e *Engine) Exit(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exitLocked(ctx)
}

func (e *Engine) exitLocked(ctx context.Context) {
	if e.active == nil {
		return
	}
	sess := e.active
	e.debounce.Cancel()
	e.flushLocked(ctx, sess)
	e.active = nil
}

// Discard closes the edit session without a final save. Used when the block
// under edit is deleted out from under the session.
func (e *Engine) Discard() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.discardLocked()
}

func (e *Engine) discardLocked() {
	e.debounce.Cancel()
	e.active = nil
}

// Editing reports the block id under edit, or "".
func (e *Engine) Editing() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return ""
	}
	return e.active.blockID
}

// flushLocked persists the session's pending content. Callers must hold
// e.mu; the session fields are only ever touched under that lock.
func (e *Engine) flushLocked(ctx context.Context, sess *session) {
	if !sess.dirty {
		return
	}
	sess.dirty = false
	content := e.sanitizer.HTML(sess.content)
	ok := e.state.UpdateDocument(ctx, sess.docID, func(d *store.Document) {
		for i := range d.Blocks {
			if d.Blocks[i].ID == sess.blockID {
				d.Blocks[i].Content = content
				return
			}
		}
	})
	if !ok {
		e.log.Warn("flush for deleted document dropped", zap.String("document", sess.docID))
	}
}

// ---- block operations ----

// AppendFromTemplate copies a block template's name and content into a new
// block at the end of the open document. The template is copied by value;
// later template edits never reach existing blocks.
func (e *Engine) AppendFromTemplate(ctx context.Context, groupID, templateID string) (store.Block, error) {
	doc, ok := e.state.ActiveDocument()
	if !ok {
		e.notifier.Notify(notify.LevelWarning, "Open a document first.")
		return store.Block{}, ErrNoOpenDocument
	}
	group, ok := e.state.Group(groupID)
	if !ok {
		return store.Block{}, fmt.Errorf("group %s: %w", groupID, store.ErrNotFound)
	}
	tpl, ok := group.Blocks[templateID]
	if !ok {
		return store.Block{}, fmt.Errorf("block template %s: %w", templateID, store.ErrNotFound)
	}

	block := store.Block{
		ID:      e.state.NextBlockID(ctx),
		Name:    tpl.Name,
		Content: e.sanitizer.HTML(tpl.Content),
	}
	e.state.UpdateDocument(ctx, doc.ID, func(d *store.Document) {
		d.Blocks = append(d.Blocks, block)
	})
	return block, nil
}

// MoveBlock reorders the open document's sequence by extracting one element
// and reinserting it. Boundary and same-position moves are no-ops that do
// not touch UpdatedAt.
func (e *Engine) MoveBlock(ctx context.Context, from, to int) error {
	doc, ok := e.state.ActiveDocument()
	if !ok {
		e.notifier.Notify(notify.LevelWarning, "Open a document first.")
		return ErrNoOpenDocument
	}
	n := len(doc.Blocks)
	if from < 0 || from >= n {
		return fmt.Errorf("block index %d: %w", from, ErrBlockNotFound)
	}
	if to < 0 || to >= n || from == to {
		return nil
	}
	e.state.UpdateDocument(ctx, doc.ID, func(d *store.Document) {
		block := d.Blocks[from]
		d.Blocks = append(d.Blocks[:from], d.Blocks[from+1:]...)
		rest := append([]store.Block{block}, d.Blocks[to:]...)
		d.Blocks = append(d.Blocks[:to], rest...)
	})
	return nil
}

// MoveUp moves a block one position toward the front.
func (e *Engine) MoveUp(ctx context.Context, index int) error {
	return e.MoveBlock(ctx, index, index-1)
}

// MoveDown moves a block one position toward the back.
func (e *Engine) MoveDown(ctx context.Context, index int) error {
	return e.MoveBlock(ctx, index, index+1)
}

// DeleteBlock removes the block at index. If that block is under active
// edit the session is discarded without a final save.
func (e *Engine) DeleteBlock(ctx context.Context, index int) error {
	doc, ok := e.state.ActiveDocument()
	if !ok {
		e.notifier.Notify(notify.LevelWarning, "Open a document first.")
		return ErrNoOpenDocument
	}
	if index < 0 || index >= len(doc.Blocks) {
		return fmt.Errorf("block index %d: %w", index, ErrBlockNotFound)
	}
	e.mu.Lock()
	if e.active != nil && e.active.docID == doc.ID && e.active.blockID == doc.Blocks[index].ID {
		e.discardLocked()
	}
	e.mu.Unlock()
	e.state.UpdateDocument(ctx, doc.ID, func(d *store.Document) {
		d.Blocks = append(d.Blocks[:index], d.Blocks[index+1:]...)
	})
	return nil
}

// SetBlockContent overwrites one block's content directly, outside the
// debounced session path.
func (e *Engine) SetBlockContent(ctx context.Context, index int, content string) error {
	return e.mutateBlock(ctx, index, func(b *store.Block) {
		b.Content = e.sanitizer.HTML(content)
	})
}

// RenameBlock changes one block's display name.
func (e *Engine) RenameBlock(ctx context.Context, index int, name string) error {
	return e.mutateBlock(ctx, index, func(b *store.Block) {
		b.Name = name
	})
}

func (e *Engine) mutateBlock(ctx context.Context, index int, mutate func(*store.Block)) error {
	doc, ok := e.state.ActiveDocument()
	if !ok {
		e.notifier.Notify(notify.LevelWarning, "Open a document first.")
		return ErrNoOpenDocument
	}
	if index < 0 || index >= len(doc.Blocks) {
		return fmt.Errorf("block index %d: %w", index, ErrBlockNotFound)
	}
	e.state.UpdateDocument(ctx, doc.ID, func(d *store.Document) {
		if index < len(d.Blocks) {
			mutate(&d.Blocks[index])
		}
	})
	return nil
}

// ApplyTemplate replaces the open document's entire block sequence with a
// deep copy of the template's blocks. Destructive, not a merge.
func (e *Engine) ApplyTemplate(ctx context.Context, templateID string) error {
	doc, ok := e.state.ActiveDocument()
	if !ok {
		e.notifier.Notify(notify.LevelWarning, "Open a document first.")
		return ErrNoOpenDocument
	}
	tpl, ok := e.state.Template(templateID)
	if !ok {
		return fmt.Errorf("template %s: %w", templateID, store.ErrNotFound)
	}
	e.mu.Lock()
	if e.active != nil && e.active.docID == doc.ID {
		e.discardLocked()
	}
	e.mu.Unlock()
	e.state.UpdateDocument(ctx, doc.ID, func(d *store.Document) {
		d.Blocks = store.CloneBlocks(tpl.Blocks)
	})
	return nil
}
