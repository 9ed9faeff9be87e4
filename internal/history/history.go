// Package history keeps a per-document revision trail: every persisted
// content change is committed to a plain git repository under the history
// directory, one repository per document. History never blocks a save;
// failures are logged and the save proceeds.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"blockforge/api/internal/store"
)

const (
	branchMain  = "main"
	authorName  = "Blockforge"
	authorEmail = "blockforge@localhost"
)

// Content is the revisioned slice of a document: title, client link and
// blocks. Timestamps stay out so a pure metadata touch does not commit.
type Content struct {
	Title    string        `json:"title"`
	ClientID *string       `json:"clientId,omitempty"`
	Blocks   []store.Block `json:"blocks"`
}

// CommitInfo describes one revision.
type CommitInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Service manages the per-document repositories. A per-document mutex
// serializes commits; different documents commit independently.
type Service struct {
	baseDir string
	log     *zap.Logger
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		baseDir: baseDir,
		log:     log,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Record commits the document's current content, initializing the
// repository on first sight. Intended to be called from the document-saved
// hook; errors are logged here and never returned to the save path.
func (s *Service) Record(doc store.Document) {
	content := Content{Title: doc.Title, ClientID: doc.ClientID, Blocks: doc.Blocks}
	if err := s.commitContent(doc.ID, content); err != nil {
		s.log.Warn("revision commit failed", zap.String("document", doc.ID), zap.Error(err))
	}
}

// Remove drops a deleted document's repository.
func (s *Service) Remove(docID string) {
	lock := s.documentLock(docID)
	lock.Lock()
	defer lock.Unlock()
	if err := os.RemoveAll(s.repoPath(docID)); err != nil {
		s.log.Warn("remove revision repo failed", zap.String("document", docID), zap.Error(err))
	}
}

// History lists the document's revisions, newest first.
func (s *Service) History(docID string, limit int) ([]CommitInfo, error) {
	lock := s.documentLock(docID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(docID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branchMain), true)
	if err != nil {
		return nil, fmt.Errorf("resolve branch %s: %w", branchMain, err)
	}
	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]CommitInfo, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// ContentAt reads the document content at a past revision.
func (s *Service) ContentAt(docID, hash string) (Content, error) {
	lock := s.documentLock(docID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(docID))
	if err != nil {
		return Content{}, fmt.Errorf("open repo: %w", err)
	}
	resolvedHash, err := resolveHash(repo, hash)
	if err != nil {
		return Content{}, err
	}
	commitObj, err := repo.CommitObject(resolvedHash)
	if err != nil {
		return Content{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	return readContentFromCommit(commitObj)
}

func (s *Service) commitContent(docID string, content Content) error {
	lock := s.documentLock(docID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(docID)
	repo, err := git.PlainOpen(path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = s.initRepo(path)
	}
	if err != nil {
		return fmt.Errorf("open repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, "content.json"), append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("write content.json: %w", err)
	}
	if _, err := worktree.Add("content.json"); err != nil {
		return fmt.Errorf("git add content: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return fmt.Errorf("worktree status: %w", err)
	}
	if status.IsClean() {
		return nil
	}

	hash, err := worktree.Commit("Update document content", &git.CommitOptions{
		Author: &object.Signature{
			Name:  authorName,
			Email: authorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("commit content: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName(branchMain), hash)); err != nil {
		return fmt.Errorf("set main branch ref: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branchMain))); err != nil {
		return fmt.Errorf("set HEAD to main: %w", err)
	}
	return nil
}

func (s *Service) initRepo(path string) (*git.Repository, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err := git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

func (s *Service) repoPath(docID string) string {
	return filepath.Join(s.baseDir, docID)
}

func (s *Service) documentLock(docID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[docID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[docID] = lock
	return lock
}

func toCommitInfo(commitObj *object.Commit) CommitInfo {
	return CommitInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		CreatedAt: commitObj.Author.When,
	}
}

func readContentFromCommit(commitObj *object.Commit) (Content, error) {
	file, err := commitObj.File("content.json")
	if err != nil {
		return Content{}, fmt.Errorf("load content.json from commit: %w", err)
	}
	reader, err := file.Reader()
	if err != nil {
		return Content{}, fmt.Errorf("open content reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return Content{}, fmt.Errorf("read content bytes: %w", err)
	}

	var content Content
	if err := json.Unmarshal(raw, &content); err != nil {
		return Content{}, fmt.Errorf("decode commit content: %w", err)
	}
	return content, nil
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
