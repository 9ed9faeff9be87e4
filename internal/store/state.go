package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"blockforge/api/internal/kvstore"
	"blockforge/api/internal/util"
)

// Storage keys. Collections persist as one record each; documents get one
// record per document so a single edit never rewrites the whole set.
const (
	keyGroups       = "groups"
	keyClients      = "clients"
	keyTemplates    = "templates"
	keyGroupCounter = "groupCounter"
	keyBlockCounter = "blockCounter"
	docKeyPrefix    = "document_"
)

// CopySuffix is appended to the title of a duplicated document.
const CopySuffix = " (copy)"

var (
	ErrNotFound     = errors.New("not found")
	ErrDefaultGroup = errors.New("the default block group cannot be deleted")
)

// State owns every domain collection in memory and writes each change
// through to the persistence adapter. All access goes through the mutex;
// accessors hand out copies, never internal pointers.
type State struct {
	mu  sync.Mutex
	kv  kvstore.Adapter
	log *zap.Logger

	documents map[string]*Document
	clients   map[string]*Client
	templates map[string]*Template
	groups    map[string]BlockGroup

	groupCounter int
	blockCounter int

	activeDocumentID string

	onDocumentSaved   []func(Document)
	onDocumentDeleted []func(id string)
}

func New(kv kvstore.Adapter, log *zap.Logger) *State {
	if log == nil {
		log = zap.NewNop()
	}
	return &State{
		kv:        kv,
		log:       log,
		documents: map[string]*Document{},
		clients:   map[string]*Client{},
		templates: map[string]*Template{},
		groups:    FactoryGroups(),
	}
}

// OnDocumentSaved registers a hook fired after a document record is
// persisted. Used for search indexing and revision history; hooks must not
// call back into State.
func (s *State) OnDocumentSaved(fn func(Document)) {
	s.onDocumentSaved = append(s.onDocumentSaved, fn)
}

// OnDocumentDeleted registers a hook fired after a document record is
// removed.
func (s *State) OnDocumentDeleted(fn func(id string)) {
	s.onDocumentDeleted = append(s.onDocumentDeleted, fn)
}

// LoadAll hydrates state from storage. Every key may be absent on a first
// run; absent groups are seeded from the factory defaults and persisted.
func (s *State) LoadAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups := map[string]BlockGroup{}
	if s.kv.Load(ctx, keyGroups, &groups) && len(groups) > 0 {
		s.groups = groups
	} else {
		s.groups = FactoryGroups()
		s.kv.Save(ctx, keyGroups, s.groups)
	}

	clients := map[string]*Client{}
	if s.kv.Load(ctx, keyClients, &clients) {
		s.clients = clients
	}

	templates := map[string]*Template{}
	if s.kv.Load(ctx, keyTemplates, &templates) {
		s.templates = templates
	}

	s.kv.Load(ctx, keyGroupCounter, &s.groupCounter)
	s.kv.Load(ctx, keyBlockCounter, &s.blockCounter)

	for _, key := range s.kv.ListKeys(ctx) {
		if !strings.HasPrefix(key, docKeyPrefix) {
			continue
		}
		var doc Document
		if !s.kv.Load(ctx, key, &doc) {
			continue
		}
		if doc.ID == "" {
			s.log.Warn("skipping document record without id", zap.String("key", key))
			continue
		}
		s.documents[doc.ID] = &doc
	}

	s.log.Info("state loaded",
		zap.Int("documents", len(s.documents)),
		zap.Int("clients", len(s.clients)),
		zap.Int("templates", len(s.templates)),
		zap.Int("groups", len(s.groups)))
}

func (s *State) persistDocument(ctx context.Context, doc *Document) {
	s.kv.Save(ctx, docKeyPrefix+doc.ID, doc)
	snapshot := s.copyDocument(doc)
	for _, fn := range s.onDocumentSaved {
		fn(snapshot)
	}
}

func (s *State) copyDocument(doc *Document) Document {
	out := *doc
	out.Blocks = CloneBlocks(doc.Blocks)
	return out
}

// ---- documents ----

// CreateDocument allocates a new empty document, persists it and makes it
// the active document.
func (s *State) CreateDocument(ctx context.Context, title string) Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	if title == "" {
		title = "Untitled document"
	}
	now := time.Now()
	doc := &Document{
		ID:        util.NewID("doc"),
		Title:     title,
		Blocks:    []Block{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.documents[doc.ID] = doc
	s.activeDocumentID = doc.ID
	s.persistDocument(ctx, doc)
	return s.copyDocument(doc)
}

// Document returns a copy of the document, reporting whether it exists.
func (s *State) Document(id string) (Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return Document{}, false
	}
	return s.copyDocument(doc), true
}

// Documents returns copies of every document, in no particular order.
func (s *State) Documents() []Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Document, 0, len(s.documents))
	for _, doc := range s.documents {
		out = append(out, s.copyDocument(doc))
	}
	return out
}

// ActiveDocumentID returns the id of the open document, or "".
func (s *State) ActiveDocumentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeDocumentID
}

// ActiveDocument returns a copy of the open document.
func (s *State) ActiveDocument() (Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[s.activeDocumentID]
	if !ok {
		return Document{}, false
	}
	return s.copyDocument(doc), true
}

// OpenDocument makes the document active.
func (s *State) OpenDocument(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	s.activeDocumentID = id
	return nil
}

// CloseDocument clears the active-document reference.
func (s *State) CloseDocument() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeDocumentID = ""
}

// UpdateDocument applies the mutator to the document, refreshes UpdatedAt
// and persists the single changed record. A missing id is a silent no-op
// reported through the return value; callers surface the notice.
func (s *State) UpdateDocument(ctx context.Context, id string, mutate func(*Document)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return false
	}
	mutate(doc)
	doc.UpdatedAt = time.Now()
	s.persistDocument(ctx, doc)
	return true
}

// DeleteDocument removes the document from memory and storage. Deleting the
// active document clears the active reference.
func (s *State) DeleteDocument(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return false
	}
	delete(s.documents, id)
	s.kv.Remove(ctx, docKeyPrefix+id)
	if s.activeDocumentID == id {
		s.activeDocumentID = ""
	}
	for _, fn := range s.onDocumentDeleted {
		fn(id)
	}
	return true
}

// DuplicateDocument deep-copies the document under a new id with fresh
// timestamps and the copy suffix on the title. The original is untouched.
func (s *State) DuplicateDocument(ctx context.Context, id string) (Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.documents[id]
	if !ok {
		return Document{}, false
	}
	now := time.Now()
	dup := &Document{
		ID:        util.NewID("doc"),
		Title:     src.Title + CopySuffix,
		ClientID:  src.ClientID,
		Blocks:    CloneBlocks(src.Blocks),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.documents[dup.ID] = dup
	s.persistDocument(ctx, dup)
	return s.copyDocument(dup), true
}

// NextBlockID allocates the next block id from the monotonic counter and
// persists the counter. Ids are never reused after deletion.
func (s *State) NextBlockID(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blockCounter++
	s.kv.Save(ctx, keyBlockCounter, s.blockCounter)
	return fmt.Sprintf("block_%d", s.blockCounter)
}

// ---- clients ----

// Clients returns copies of every client.
func (s *State) Clients() []Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c.Clone())
	}
	return out
}

// Client returns a copy of the client, reporting whether it exists.
func (s *State) Client(id string) (Client, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return Client{}, false
	}
	return c.Clone(), true
}

// CreateClient stores a new client and persists the collection.
func (s *State) CreateClient(ctx context.Context, client Client) Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	client.ID = util.NewID("client")
	client.CreatedAt = now
	client.UpdatedAt = now
	// Detach from the caller's assessment pointer before storing, and hand
	// back a copy detached from the stored record.
	stored := client.Clone()
	s.clients[stored.ID] = &stored
	s.kv.Save(ctx, keyClients, s.clients)
	return stored.Clone()
}

// UpdateClient applies the mutator and persists the collection as one unit.
func (s *State) UpdateClient(ctx context.Context, id string, mutate func(*Client)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return false
	}
	mutate(c)
	c.UpdatedAt = time.Now()
	s.kv.Save(ctx, keyClients, s.clients)
	return true
}

// DeleteClient removes the client. Documents referencing it keep their
// dangling ClientID; readers render that as "no client".
func (s *State) DeleteClient(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[id]; !ok {
		return false
	}
	delete(s.clients, id)
	s.kv.Save(ctx, keyClients, s.clients)
	return true
}

// ---- document templates ----

// Templates returns copies of every document template.
func (s *State) Templates() []Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Template, 0, len(s.templates))
	for _, t := range s.templates {
		cp := *t
		cp.Blocks = CloneBlocks(t.Blocks)
		out = append(out, cp)
	}
	return out
}

// Template returns a copy of the template, reporting whether it exists.
func (s *State) Template(id string) (Template, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok {
		return Template{}, false
	}
	cp := *t
	cp.Blocks = CloneBlocks(t.Blocks)
	return cp, true
}

// SaveTemplate freezes a copy of the given blocks under a new template.
func (s *State) SaveTemplate(ctx context.Context, name string, blocks []Block) Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	tpl := &Template{
		ID:        util.NewID("template"),
		Name:      name,
		Blocks:    CloneBlocks(blocks),
		CreatedAt: time.Now(),
	}
	s.templates[tpl.ID] = tpl
	s.kv.Save(ctx, keyTemplates, s.templates)
	cp := *tpl
	cp.Blocks = CloneBlocks(tpl.Blocks)
	return cp
}

// DeleteTemplate removes the template and persists the collection.
func (s *State) DeleteTemplate(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[id]; !ok {
		return false
	}
	delete(s.templates, id)
	s.kv.Save(ctx, keyTemplates, s.templates)
	return true
}

// ---- block groups ----

// Groups returns a copy of the block-group mapping.
func (s *State) Groups() map[string]BlockGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyGroups(s.groups)
}

// Group returns a copy of one group, reporting whether it exists.
func (s *State) Group(id string) (BlockGroup, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return BlockGroup{}, false
	}
	return copyGroup(g), true
}

// CreateGroup allocates a group id from the monotonic counter and persists
// both the counter and the group collection.
func (s *State) CreateGroup(ctx context.Context, name string) (string, BlockGroup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groupCounter++
	id := fmt.Sprintf("group-%d", s.groupCounter)
	group := BlockGroup{Name: name, Blocks: map[string]BlockTemplate{}}
	s.groups[id] = group
	s.kv.Save(ctx, keyGroupCounter, s.groupCounter)
	s.kv.Save(ctx, keyGroups, s.groups)
	return id, copyGroup(group)
}

// RenameGroup changes a group's display name.
func (s *State) RenameGroup(ctx context.Context, id, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return false
	}
	g.Name = name
	s.groups[id] = g
	s.kv.Save(ctx, keyGroups, s.groups)
	return true
}

// DeleteGroup removes a group. The default group is protected by its
// sentinel id.
func (s *State) DeleteGroup(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == DefaultGroupID {
		return ErrDefaultGroup
	}
	if _, ok := s.groups[id]; !ok {
		return fmt.Errorf("group %s: %w", id, ErrNotFound)
	}
	delete(s.groups, id)
	s.kv.Save(ctx, keyGroups, s.groups)
	return nil
}

// PutBlockTemplate adds or replaces a block template in a group. An empty
// templateID allocates a new time-based one.
func (s *State) PutBlockTemplate(ctx context.Context, groupID, templateID string, tpl BlockTemplate) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return "", fmt.Errorf("group %s: %w", groupID, ErrNotFound)
	}
	if templateID == "" {
		templateID = util.NewID("custom_block")
	}
	if g.Blocks == nil {
		g.Blocks = map[string]BlockTemplate{}
	}
	g.Blocks[templateID] = tpl
	s.groups[groupID] = g
	s.kv.Save(ctx, keyGroups, s.groups)
	return templateID, nil
}

// DeleteBlockTemplate removes one block template from a group.
func (s *State) DeleteBlockTemplate(ctx context.Context, groupID, templateID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return fmt.Errorf("group %s: %w", groupID, ErrNotFound)
	}
	if _, ok := g.Blocks[templateID]; !ok {
		return fmt.Errorf("block template %s: %w", templateID, ErrNotFound)
	}
	delete(g.Blocks, templateID)
	s.groups[groupID] = g
	s.kv.Save(ctx, keyGroups, s.groups)
	return nil
}

// ---- whole-state operations ----

// Snapshot is a copy of every collection plus the counters, used by the
// backup exporter.
type Snapshot struct {
	Documents    map[string]Document
	Clients      map[string]Client
	Templates    map[string]Template
	Groups       map[string]BlockGroup
	GroupCounter int
	BlockCounter int
}

// Export returns a deep copy of the current state.
func (s *State) Export() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Documents:    make(map[string]Document, len(s.documents)),
		Clients:      make(map[string]Client, len(s.clients)),
		Templates:    make(map[string]Template, len(s.templates)),
		Groups:       copyGroups(s.groups),
		GroupCounter: s.groupCounter,
		BlockCounter: s.blockCounter,
	}
	for id, doc := range s.documents {
		snap.Documents[id] = s.copyDocument(doc)
	}
	for id, c := range s.clients {
		snap.Clients[id] = c.Clone()
	}
	for id, t := range s.templates {
		cp := *t
		cp.Blocks = CloneBlocks(t.Blocks)
		snap.Templates[id] = cp
	}
	return snap
}

// Replace swaps in an already-validated snapshot, re-persists every record
// and clears the active document. The restore path validates first so this
// never partially applies.
func (s *State) Replace(ctx context.Context, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.kv.ClearAll(ctx)

	s.documents = make(map[string]*Document, len(snap.Documents))
	for id, doc := range snap.Documents {
		d := doc
		d.Blocks = CloneBlocks(doc.Blocks)
		s.documents[id] = &d
		s.kv.Save(ctx, docKeyPrefix+id, &d)
	}
	s.clients = make(map[string]*Client, len(snap.Clients))
	for id, c := range snap.Clients {
		cc := c.Clone()
		s.clients[id] = &cc
	}
	s.templates = make(map[string]*Template, len(snap.Templates))
	for id, t := range snap.Templates {
		tt := t
		tt.Blocks = CloneBlocks(t.Blocks)
		s.templates[id] = &tt
	}
	s.groups = copyGroups(snap.Groups)
	s.groupCounter = snap.GroupCounter
	s.blockCounter = snap.BlockCounter
	s.activeDocumentID = ""

	s.kv.Save(ctx, keyClients, s.clients)
	s.kv.Save(ctx, keyTemplates, s.templates)
	s.kv.Save(ctx, keyGroups, s.groups)
	s.kv.Save(ctx, keyGroupCounter, s.groupCounter)
	s.kv.Save(ctx, keyBlockCounter, s.blockCounter)
}

// ResetAll wipes storage and reinitializes to factory defaults. Destructive
// and irreversible; the command surface gates it behind double confirmation.
func (s *State) ResetAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.kv.ClearAll(ctx)
	s.documents = map[string]*Document{}
	s.clients = map[string]*Client{}
	s.templates = map[string]*Template{}
	s.groups = FactoryGroups()
	s.groupCounter = 0
	s.blockCounter = 0
	s.activeDocumentID = ""
	s.kv.Save(ctx, keyGroups, s.groups)
	s.kv.Save(ctx, keyGroupCounter, s.groupCounter)
	s.kv.Save(ctx, keyBlockCounter, s.blockCounter)
}

func copyGroup(g BlockGroup) BlockGroup {
	blocks := make(map[string]BlockTemplate, len(g.Blocks))
	for id, b := range g.Blocks {
		blocks[id] = b
	}
	return BlockGroup{Name: g.Name, Blocks: blocks}
}

func copyGroups(groups map[string]BlockGroup) map[string]BlockGroup {
	out := make(map[string]BlockGroup, len(groups))
	for id, g := range groups {
		out[id] = copyGroup(g)
	}
	return out
}
