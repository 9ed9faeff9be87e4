package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"blockforge/api/internal/editor"
	"blockforge/api/internal/export"
	"blockforge/api/internal/history"
	"blockforge/api/internal/kvstore"
	"blockforge/api/internal/notify"
	"blockforge/api/internal/sanitize"
	"blockforge/api/internal/search"
	"blockforge/api/internal/snapshot"
	"blockforge/api/internal/store"
	"blockforge/api/internal/view"
)

// Service is the application facade: every command the HTTP surface exposes
// goes through here, gets validated, and is converted to state mutations.
// All failures come back as errors; nothing escapes as a panic.
type Service struct {
	kv        kvstore.Adapter
	state     *store.State
	editor    *editor.Engine
	sanitizer sanitize.Sanitizer
	search    *search.Service
	snapshots *snapshot.Service
	exporter  *export.Service
	history   *history.Service  // optional
	archive   *snapshot.Archive // optional
	notices   *notify.Recorder
	log       *zap.Logger
}

// Options carries the optional collaborators.
type Options struct {
	History *history.Service
	Archive *snapshot.Archive
}

func NewService(
	kv kvstore.Adapter,
	state *store.State,
	engine *editor.Engine,
	sanitizer sanitize.Sanitizer,
	searchSvc *search.Service,
	snapshots *snapshot.Service,
	exporter *export.Service,
	notices *notify.Recorder,
	log *zap.Logger,
	opts Options,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		kv:        kv,
		state:     state,
		editor:    engine,
		sanitizer: sanitizer,
		search:    searchSvc,
		snapshots: snapshots,
		exporter:  exporter,
		history:   opts.History,
		archive:   opts.Archive,
		notices:   notices,
		log:       log,
	}
}

// Bootstrap hydrates state from storage, wires the document hooks and
// builds the initial search index.
func (s *Service) Bootstrap(ctx context.Context) {
	s.state.LoadAll(ctx)

	// Hooks fire while the state lock is held; the work moves to a
	// goroutine so it may read state again.
	s.state.OnDocumentSaved(func(doc store.Document) {
		go func() {
			s.search.IndexDocument(s.searchRecord(doc))
			if s.history != nil {
				s.history.Record(doc)
			}
		}()
	})
	s.state.OnDocumentDeleted(func(id string) {
		go func() {
			s.search.DeleteDocument(id)
			if s.history != nil {
				s.history.Remove(id)
			}
		}()
	})

	s.reindex()
	s.log.Info("service bootstrapped")
}

func (s *Service) reindex() {
	docs := s.state.Documents()
	records := make([]search.DocumentRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, s.searchRecord(doc))
	}
	s.search.ReindexAll(records)
}

func (s *Service) searchRecord(doc store.Document) search.DocumentRecord {
	record := search.DocumentRecord{ID: doc.ID, Title: doc.Title}
	if doc.ClientID != nil {
		if client, ok := s.state.Client(*doc.ClientID); ok {
			record.ClientName = client.DisplayName()
		}
	}
	var text strings.Builder
	for _, block := range doc.Blocks {
		if t := sanitize.StripHTML(block.Content); t != "" {
			text.WriteString(t)
			text.WriteString(" ")
		}
	}
	record.Text = strings.TrimSpace(text.String())
	return record
}

// Ping reports storage connectivity for the readiness probe.
func (s *Service) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}

// Notices returns the most recent user-facing notices.
func (s *Service) Notices(limit int) []notify.Notice {
	if s.notices == nil {
		return []notify.Notice{}
	}
	return s.notices.Recent(limit)
}

// ---- documents ----

// DocumentList projects the sidebar list, optionally filtered.
func (s *Service) DocumentList(query string) []view.DocumentItem {
	items := view.DocumentList(s.state.Documents(), s.state.Clients(), s.state.ActiveDocumentID())
	return view.FilterDocuments(items, query)
}

func (s *Service) GetDocument(id string) (store.Document, error) {
	doc, ok := s.state.Document(id)
	if !ok {
		return store.Document{}, errNotFound("document", id)
	}
	return doc, nil
}

func (s *Service) ActiveDocument() (store.Document, error) {
	doc, ok := s.state.ActiveDocument()
	if !ok {
		return store.Document{}, errNoOpenDocument()
	}
	return doc, nil
}

func (s *Service) CreateDocument(ctx context.Context, title string) store.Document {
	doc := s.state.CreateDocument(ctx, title)
	s.notify(notify.LevelSuccess, "Document created.")
	return doc
}

func (s *Service) OpenDocument(ctx context.Context, id string) (store.Document, error) {
	// Switching documents counts as navigating away: the edit session is
	// flushed, never dropped.
	s.editor.Exit(ctx)
	if err := s.state.OpenDocument(id); err != nil {
		return store.Document{}, errNotFound("document", id)
	}
	doc, _ := s.state.Document(id)
	return doc, nil
}

func (s *Service) CloseDocument(ctx context.Context) {
	s.editor.Exit(ctx)
	s.state.CloseDocument()
}

func (s *Service) RenameDocument(ctx context.Context, id, title string) error {
	if strings.TrimSpace(title) == "" {
		return errValidation("title is required")
	}
	if !s.state.UpdateDocument(ctx, id, func(d *store.Document) { d.Title = title }) {
		return errNotFound("document", id)
	}
	return nil
}

// AssignClient links or unlinks (nil) a client. Linking an unknown client
// is rejected; unlinking always succeeds.
func (s *Service) AssignClient(ctx context.Context, id string, clientID *string) error {
	if clientID != nil {
		if _, ok := s.state.Client(*clientID); !ok {
			return errNotFound("client", *clientID)
		}
	}
	if !s.state.UpdateDocument(ctx, id, func(d *store.Document) { d.ClientID = clientID }) {
		return errNotFound("document", id)
	}
	return nil
}

func (s *Service) DeleteDocument(ctx context.Context, id string, confirm bool) error {
	if !confirm {
		return errConfirmRequired()
	}
	if active := s.state.ActiveDocumentID(); active == id {
		s.editor.Discard()
	}
	if !s.state.DeleteDocument(ctx, id) {
		return errNotFound("document", id)
	}
	s.notify(notify.LevelInfo, "Document deleted.")
	return nil
}

func (s *Service) DuplicateDocument(ctx context.Context, id string) (store.Document, error) {
	dup, ok := s.state.DuplicateDocument(ctx, id)
	if !ok {
		return store.Document{}, errNotFound("document", id)
	}
	s.notify(notify.LevelSuccess, "Document duplicated.")
	return dup, nil
}

// ---- blocks on the open document ----

func (s *Service) AppendBlock(ctx context.Context, groupID, templateID string) (store.Block, error) {
	block, err := s.editor.AppendFromTemplate(ctx, groupID, templateID)
	if err != nil {
		return store.Block{}, s.mapEditorErr(err)
	}
	return block, nil
}

func (s *Service) MoveBlock(ctx context.Context, from, to int) error {
	return s.mapEditorErr(s.editor.MoveBlock(ctx, from, to))
}

func (s *Service) MoveBlockUp(ctx context.Context, index int) error {
	return s.mapEditorErr(s.editor.MoveUp(ctx, index))
}

func (s *Service) MoveBlockDown(ctx context.Context, index int) error {
	return s.mapEditorErr(s.editor.MoveDown(ctx, index))
}

func (s *Service) DeleteBlock(ctx context.Context, index int, confirm bool) error {
	if !confirm {
		return errConfirmRequired()
	}
	return s.mapEditorErr(s.editor.DeleteBlock(ctx, index))
}

func (s *Service) SetBlockContent(ctx context.Context, index int, content string) error {
	return s.mapEditorErr(s.editor.SetBlockContent(ctx, index, content))
}

func (s *Service) RenameBlock(ctx context.Context, index int, name string) error {
	if strings.TrimSpace(name) == "" {
		return errValidation("name is required")
	}
	return s.mapEditorErr(s.editor.RenameBlock(ctx, index, name))
}

// ---- edit session ----

func (s *Service) BeginEdit(ctx context.Context, index int) error {
	return s.mapEditorErr(s.editor.Begin(ctx, index))
}

func (s *Service) EditInput(ctx context.Context, content string) error {
	return s.mapEditorErr(s.editor.Input(ctx, content))
}

func (s *Service) ExitEdit(ctx context.Context) {
	s.editor.Exit(ctx)
}

// EditingBlock reports the id of the block under edit, empty if none.
func (s *Service) EditingBlock() string {
	return s.editor.Editing()
}

func (s *Service) mapEditorErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, editor.ErrNoOpenDocument):
		return errNoOpenDocument()
	case errors.Is(err, editor.ErrNoEditSession):
		return domainError(409, "NO_EDIT_SESSION", "No block is being edited", nil)
	case errors.Is(err, editor.ErrBlockNotFound), errors.Is(err, store.ErrNotFound):
		return domainError(404, "NOT_FOUND", err.Error(), nil)
	default:
		return err
	}
}

// ---- clients ----

func (s *Service) ClientList() []view.ClientItem {
	return view.ClientList(s.state.Clients())
}

func (s *Service) ClientOptions() []view.Option {
	return view.ClientOptions(s.state.Clients())
}

func (s *Service) GetClient(id string) (store.Client, error) {
	client, ok := s.state.Client(id)
	if !ok {
		return store.Client{}, errNotFound("client", id)
	}
	return client, nil
}

func (s *Service) CreateClient(ctx context.Context, client store.Client) (store.Client, error) {
	if strings.TrimSpace(client.CompanyName) == "" && client.DisplayName() == "" {
		return store.Client{}, errValidation("companyName is required")
	}
	created := s.state.CreateClient(ctx, client)
	s.notify(notify.LevelSuccess, "Client saved.")
	return created, nil
}

func (s *Service) UpdateClient(ctx context.Context, id string, update store.Client) (store.Client, error) {
	if strings.TrimSpace(update.CompanyName) == "" {
		return store.Client{}, errValidation("companyName is required")
	}
	ok := s.state.UpdateClient(ctx, id, func(c *store.Client) {
		c.CompanyName = update.CompanyName
		c.ContactPerson = update.ContactPerson
		c.Email = update.Email
		c.Phone = update.Phone
		c.Address = update.Address
		c.City = update.City
		c.Country = update.Country
		c.PostalCode = update.PostalCode
		c.TaxID = update.TaxID
		c.Industry = update.Industry
		c.Website = update.Website
		c.Notes = update.Notes
	})
	if !ok {
		return store.Client{}, errNotFound("client", id)
	}
	client, _ := s.state.Client(id)
	return client, nil
}

func (s *Service) UpdateRiskAssessment(ctx context.Context, id string, assessment *store.RiskAssessment) (store.Client, error) {
	if assessment == nil {
		return store.Client{}, errValidation("risk assessment body is required")
	}
	ok := s.state.UpdateClient(ctx, id, func(c *store.Client) {
		c.RiskAssessment = assessment
	})
	if !ok {
		return store.Client{}, errNotFound("client", id)
	}
	client, _ := s.state.Client(id)
	return client, nil
}

// DeleteClient removes the client only. Documents keep their reference and
// render it as "no client" afterwards.
func (s *Service) DeleteClient(ctx context.Context, id string, confirm bool) error {
	if !confirm {
		return errConfirmRequired()
	}
	if !s.state.DeleteClient(ctx, id) {
		return errNotFound("client", id)
	}
	s.notify(notify.LevelInfo, "Client deleted.")
	return nil
}

// ---- document templates ----

func (s *Service) TemplateList() []view.TemplateItem {
	return view.TemplateList(s.state.Templates())
}

// SaveTemplateFromDocument freezes the open document's blocks under a new
// template.
func (s *Service) SaveTemplateFromDocument(ctx context.Context, name string) (store.Template, error) {
	if strings.TrimSpace(name) == "" {
		return store.Template{}, errValidation("name is required")
	}
	doc, ok := s.state.ActiveDocument()
	if !ok {
		return store.Template{}, errNoOpenDocument()
	}
	if len(doc.Blocks) == 0 {
		return store.Template{}, errValidation("document has no blocks to save")
	}
	tpl := s.state.SaveTemplate(ctx, name, doc.Blocks)
	s.notify(notify.LevelSuccess, "Template saved.")
	return tpl, nil
}

// ApplyTemplate replaces the open document's blocks with the template's.
func (s *Service) ApplyTemplate(ctx context.Context, id string, confirm bool) error {
	if !confirm {
		return errConfirmRequired()
	}
	return s.mapEditorErr(s.editor.ApplyTemplate(ctx, id))
}

func (s *Service) DeleteTemplate(ctx context.Context, id string, confirm bool) error {
	if !confirm {
		return errConfirmRequired()
	}
	if !s.state.DeleteTemplate(ctx, id) {
		return errNotFound("template", id)
	}
	return nil
}

// ---- block groups ----

func (s *Service) GroupPalette() []view.PaletteGroup {
	return view.GroupPalette(s.state.Groups())
}

func (s *Service) CreateGroup(ctx context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errValidation("name is required")
	}
	id, _ := s.state.CreateGroup(ctx, name)
	return id, nil
}

func (s *Service) RenameGroup(ctx context.Context, id, name string) error {
	if strings.TrimSpace(name) == "" {
		return errValidation("name is required")
	}
	if !s.state.RenameGroup(ctx, id, name) {
		return errNotFound("group", id)
	}
	return nil
}

func (s *Service) DeleteGroup(ctx context.Context, id string, confirm bool) error {
	if !confirm {
		return errConfirmRequired()
	}
	err := s.state.DeleteGroup(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrDefaultGroup):
		return domainError(403, "DEFAULT_GROUP_PROTECTED", "The default block group cannot be deleted", nil)
	case errors.Is(err, store.ErrNotFound):
		return errNotFound("group", id)
	default:
		return err
	}
}

func (s *Service) PutBlockTemplate(ctx context.Context, groupID, templateID, name, content string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errValidation("name is required")
	}
	// User-authored template HTML is sanitized before it ever reaches
	// storage, not just when a block is stamped from it.
	id, err := s.state.PutBlockTemplate(ctx, groupID, templateID, store.BlockTemplate{
		Name:    name,
		Content: s.sanitizer.HTML(content),
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", errNotFound("group", groupID)
		}
		return "", err
	}
	return id, nil
}

func (s *Service) DeleteBlockTemplate(ctx context.Context, groupID, templateID string, confirm bool) error {
	if !confirm {
		return errConfirmRequired()
	}
	if err := s.state.DeleteBlockTemplate(ctx, groupID, templateID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainError(404, "NOT_FOUND", err.Error(), nil)
		}
		return err
	}
	return nil
}

// ---- search ----

func (s *Service) Search(query string, limit, offset int) search.Response {
	return s.search.Search(search.Query{Text: query, Limit: limit, Offset: offset})
}

// ---- backup / restore / reset ----

func (s *Service) ExportBackup() (snapshot.Bundle, string) {
	bundle := s.snapshots.Export()
	return bundle, snapshot.Filename(bundle.Timestamp)
}

// ImportBackup restores state from a bundle. Destructive; the whole import
// is rejected on a malformed bundle, leaving current state untouched.
func (s *Service) ImportBackup(ctx context.Context, raw []byte, confirm bool) error {
	if !confirm {
		return errConfirmRequired()
	}
	s.editor.Discard()
	if err := s.snapshots.Import(ctx, raw); err != nil {
		if errors.Is(err, snapshot.ErrMalformed) {
			return domainError(422, "INVALID_BUNDLE", err.Error(), nil)
		}
		return err
	}
	s.reindex()
	s.notify(notify.LevelSuccess, "Data restored from backup.")
	return nil
}

// ArchiveBackup uploads the current state to the backup bucket.
func (s *Service) ArchiveBackup(ctx context.Context) (string, error) {
	if s.archive == nil {
		return "", domainError(503, "ARCHIVE_UNAVAILABLE", "Backup archive is not configured", nil)
	}
	bundle := s.snapshots.Export()
	raw, err := marshalBundle(bundle)
	if err != nil {
		return "", err
	}
	name := snapshot.Filename(bundle.Timestamp)
	if err := s.archive.Upload(ctx, name, raw); err != nil {
		return "", err
	}
	return name, nil
}

func (s *Service) ListArchivedBackups(ctx context.Context) ([]snapshot.ArchiveEntry, error) {
	if s.archive == nil {
		return nil, domainError(503, "ARCHIVE_UNAVAILABLE", "Backup archive is not configured", nil)
	}
	return s.archive.List(ctx)
}

func (s *Service) RestoreFromArchive(ctx context.Context, name string, confirm bool) error {
	if s.archive == nil {
		return domainError(503, "ARCHIVE_UNAVAILABLE", "Backup archive is not configured", nil)
	}
	if !confirm {
		return errConfirmRequired()
	}
	raw, err := s.archive.Fetch(ctx, name)
	if err != nil {
		return errNotFound("backup", name)
	}
	return s.ImportBackup(ctx, raw, true)
}

// ResetAll wipes everything back to factory defaults. It asks twice, in
// line with how irreversible it is.
func (s *Service) ResetAll(ctx context.Context, confirm, confirmAgain bool) error {
	if !confirm {
		return errConfirmRequired()
	}
	if !confirmAgain {
		return domainError(409, "CONFIRM_AGAIN_REQUIRED", "This cannot be undone; confirm a second time", nil)
	}
	s.editor.Discard()
	s.state.ResetAll(ctx)
	s.reindex()
	s.notify(notify.LevelWarning, "All data deleted.")
	return nil
}

// ---- export ----

func (s *Service) ExportDocument(id string, format export.Format) (*export.Result, error) {
	doc, ok := s.state.Document(id)
	if !ok {
		return nil, errNotFound("document", id)
	}
	var client *store.Client
	if doc.ClientID != nil {
		if c, found := s.state.Client(*doc.ClientID); found {
			client = &c
		}
	}
	result, err := s.exporter.Export(doc, client, format)
	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, export.ErrEmptyDocument):
		return nil, errValidation("document has no blocks to export")
	case errors.Is(err, export.ErrDOCXDependencyMissing), errors.Is(err, export.ErrPDFDependencyMissing):
		return nil, domainError(503, "EXPORT_UNAVAILABLE", err.Error(), nil)
	default:
		return nil, fmt.Errorf("export document %s: %w", id, err)
	}
}

// ---- revision history ----

func (s *Service) History(docID string, limit int) ([]history.CommitInfo, error) {
	if s.history == nil {
		return nil, domainError(503, "HISTORY_UNAVAILABLE", "Revision history is not configured", nil)
	}
	if _, ok := s.state.Document(docID); !ok {
		return nil, errNotFound("document", docID)
	}
	revisions, err := s.history.History(docID, limit)
	if err != nil {
		return nil, errNotFound("history for document", docID)
	}
	return revisions, nil
}

func (s *Service) HistoryContent(docID, hash string) (history.Content, error) {
	if s.history == nil {
		return history.Content{}, domainError(503, "HISTORY_UNAVAILABLE", "Revision history is not configured", nil)
	}
	content, err := s.history.ContentAt(docID, hash)
	if err != nil {
		return history.Content{}, errNotFound("revision", hash)
	}
	return content, nil
}

func (s *Service) notify(level notify.Level, message string) {
	if s.notices != nil {
		s.notices.Notify(level, message)
	}
}

func marshalBundle(bundle snapshot.Bundle) ([]byte, error) {
	raw, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal bundle: %w", err)
	}
	return raw, nil
}
