package folders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"notarium/internal/config"
	"notarium/internal/domain"
	"notarium/internal/domain/models"
	"notarium/internal/domain/repositories"
	"notarium/internal/opqueue"
)

// ErrNotLoaded is returned by mutating methods before Load has succeeded.
var ErrNotLoaded = errors.New("folder collection not loaded")

var folderNamePattern = regexp.MustCompile(`^[^/]+$`)

// State is the snapshot published to subscribers.
type State struct {
	Loading         bool
	Folders         []models.Folder
	CurrentFolderID *string // nil = root
}

// Manager owns the authoritative in-memory folder collection plus a
// current-folder cursor, and orchestrates conflict detection, operations
// and the queue against it. Lifecycle is explicit: construct with the tree
// store injected, then Load, then mutate.
//
// All mutations run through the operation queue, so state-swap blocks on
// the success path execute one at a time. The mutex exists for readers and
// subscribers, which may arrive from any goroutine.
type Manager struct {
	mu        sync.Mutex
	store     repositories.TreeStore
	ops       *Operations
	queue     *opqueue.Queue
	logger    *slog.Logger
	loaded    bool
	folders   []models.Folder
	currentID *string
	subs      map[int]func(State)
	nextSub   int
}

// ManagerOption customizes a Manager.
type ManagerOption func(*managerConfig)

type managerConfig struct {
	opsOpts   []Option
	queueOpts []opqueue.QueueOption
}

// WithOperationOptions forwards options to the underlying Operations,
// letting tests pin the clock and id generator.
func WithOperationOptions(opts ...Option) ManagerOption {
	return func(c *managerConfig) { c.opsOpts = append(c.opsOpts, opts...) }
}

// WithQueueOptions forwards options to the underlying operation queue.
func WithQueueOptions(opts ...opqueue.QueueOption) ManagerOption {
	return func(c *managerConfig) { c.queueOpts = append(c.queueOpts, opts...) }
}

// NewManager creates a manager bound to the given tree store. Call Load
// before mutating; until then the published state reports Loading.
func NewManager(store repositories.TreeStore, logger *slog.Logger, opts ...ManagerOption) *Manager {
	cfg := &managerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	m := &Manager{
		store:  store,
		logger: logger,
		subs:   make(map[int]func(State)),
	}
	m.ops = NewOperations(store, logger, cfg.opsOpts...)

	queueOpts := append([]opqueue.QueueOption{
		opqueue.WithTimeout(30 * time.Second),
		opqueue.WithTransitionHook(func(t opqueue.Transition) {
			logger.Debug("operation transition", "op_id", t.ID, "kind", t.Kind, "status", t.Status)
		}),
	}, cfg.queueOpts...)
	m.queue = opqueue.New(logger, queueOpts...)
	return m
}

// Load reads the full collection from the tree store. A corrupt or
// unreadable store surfaces as an error and the manager stays unloaded.
func (m *Manager) Load(ctx context.Context) error {
	collection, err := m.store.LoadFolders(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidData) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}

	m.mu.Lock()
	m.folders = collection
	m.loaded = true
	m.mu.Unlock()

	m.logger.Info("folder collection loaded", "count", len(collection))
	m.publish()
	return nil
}

// CreateFolder validates and enqueues a create, returning the new folder.
func (m *Manager) CreateFolder(ctx context.Context, req models.CreateFolderRequest) (*models.Folder, error) {
	if err := m.validateName(req.Name); err != nil {
		return nil, err
	}
	if err := m.requireLoaded(); err != nil {
		return nil, err
	}

	var created *models.Folder
	outcome := <-m.queue.Enqueue(opqueue.Operation{
		Kind: opqueue.KindCreate,
		Execute: func(ctx context.Context) error {
			updated, folder, err := m.ops.Create(ctx, m.snapshotFolders(), req.Name, req.ParentID)
			if err != nil {
				return err
			}
			m.swap(updated)
			created = folder
			return nil
		},
	})
	if outcome.Err != nil {
		return nil, outcome.Err
	}
	m.logger.Info("folder created", "id", created.ID, "name", created.Name, "parent_id", req.ParentID)
	return created, nil
}

// MoveFolder reparents a folder. The move-conflict check runs synchronously
// against current local state first: it is cheap and side-effect-free, so a
// conflicting move is rejected without a queue round-trip, leaving the
// caller free to resolve via rename or replace.
func (m *Manager) MoveFolder(ctx context.Context, sourceID string, targetID *string) (*models.Folder, error) {
	if err := m.requireLoaded(); err != nil {
		return nil, err
	}
	if err := DetectMoveConflict(sourceID, targetID, m.snapshotFolders()); err != nil {
		return nil, err
	}

	var moved *models.Folder
	outcome := <-m.queue.Enqueue(opqueue.Operation{
		Kind: opqueue.KindMove,
		Execute: func(ctx context.Context) error {
			updated, folder, err := m.ops.Move(ctx, m.snapshotFolders(), sourceID, targetID)
			if err != nil {
				return err
			}
			m.swap(updated)
			moved = folder
			return nil
		},
	})
	if outcome.Err != nil {
		return nil, outcome.Err
	}
	m.logger.Info("folder moved", "id", sourceID, "target_id", targetID)
	return moved, nil
}

// RenameFolder renames a folder in place.
func (m *Manager) RenameFolder(ctx context.Context, id, newName string) (*models.Folder, error) {
	if err := m.validateName(newName); err != nil {
		return nil, err
	}
	if err := m.requireLoaded(); err != nil {
		return nil, err
	}

	var renamed *models.Folder
	outcome := <-m.queue.Enqueue(opqueue.Operation{
		Kind: opqueue.KindRename,
		Execute: func(ctx context.Context) error {
			updated, folder, err := m.ops.Rename(ctx, m.snapshotFolders(), id, newName)
			if err != nil {
				return err
			}
			m.swap(updated)
			renamed = folder
			return nil
		},
	})
	if outcome.Err != nil {
		return nil, outcome.Err
	}
	m.logger.Info("folder renamed", "id", id, "name", newName)
	return renamed, nil
}

// RenameAndMoveFolder resolves a move conflict by renaming: the new name is
// validated against the target's siblings and both fields update together.
func (m *Manager) RenameAndMoveFolder(ctx context.Context, id, newName string, targetID *string) (*models.Folder, error) {
	if err := m.validateName(newName); err != nil {
		return nil, err
	}
	if err := m.requireLoaded(); err != nil {
		return nil, err
	}

	var moved *models.Folder
	outcome := <-m.queue.Enqueue(opqueue.Operation{
		Kind: opqueue.KindMove,
		Execute: func(ctx context.Context) error {
			updated, folder, err := m.ops.RenameAndMove(ctx, m.snapshotFolders(), id, newName, targetID)
			if err != nil {
				return err
			}
			m.swap(updated)
			moved = folder
			return nil
		},
	})
	if outcome.Err != nil {
		return nil, outcome.Err
	}
	m.logger.Info("folder renamed and moved", "id", id, "name", newName, "target_id", targetID)
	return moved, nil
}

// DeleteFolder removes a folder and its subtree. A cursor pointing into the
// deleted subtree relocates to the deleted folder's former parent.
func (m *Manager) DeleteFolder(ctx context.Context, id string) error {
	if err := m.requireLoaded(); err != nil {
		return err
	}

	outcome := <-m.queue.Enqueue(opqueue.Operation{
		Kind: opqueue.KindDelete,
		Execute: func(ctx context.Context) error {
			collection := m.snapshotFolders()
			var formerParent *string
			if idx := indexOf(collection, id); idx >= 0 {
				formerParent = collection[idx].ParentID
			}

			updated, removed, err := m.ops.Delete(ctx, collection, id)
			if err != nil {
				return err
			}

			m.mu.Lock()
			m.folders = updated
			if m.currentID != nil {
				if _, gone := removed[*m.currentID]; gone {
					m.currentID = formerParent
				}
			}
			m.mu.Unlock()
			m.publish()
			return nil
		},
	})
	if outcome.Err != nil {
		return outcome.Err
	}
	m.logger.Info("folder deleted", "id", id)
	return nil
}

// ReplaceFolder overwrites the conflicting destination subtree with the
// source folder. A cursor pointing at any removed folder relocates to the
// target so the UI never points at a folder that no longer exists.
func (m *Manager) ReplaceFolder(ctx context.Context, sourceID string, targetID *string) error {
	if err := m.requireLoaded(); err != nil {
		return err
	}

	outcome := <-m.queue.Enqueue(opqueue.Operation{
		Kind: opqueue.KindReplace,
		Execute: func(ctx context.Context) error {
			updated, removed, err := m.ops.Replace(ctx, m.snapshotFolders(), sourceID, targetID)
			if err != nil {
				return err
			}

			m.mu.Lock()
			m.folders = updated
			if m.currentID != nil {
				if _, gone := removed[*m.currentID]; gone {
					m.currentID = targetID
				}
			}
			m.mu.Unlock()
			m.publish()
			return nil
		},
	})
	if outcome.Err != nil {
		return outcome.Err
	}
	m.logger.Info("folder replaced into target", "id", sourceID, "target_id", targetID)
	return nil
}

// SetCurrentFolder is a direct, non-queued state write: navigation is not a
// tree mutation and carries no conflict risk.
func (m *Manager) SetCurrentFolder(id *string) {
	m.mu.Lock()
	m.currentID = id
	m.mu.Unlock()
	m.publish()
}

// Subscribe registers a listener invoked synchronously on every state
// change, and once immediately with current state so late subscribers are
// not left behind. The returned function unsubscribes.
func (m *Manager) Subscribe(listener func(State)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = listener
	snapshot := m.stateLocked()
	m.mu.Unlock()

	listener(snapshot)
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// State returns the current snapshot.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// ResumeOperationQueue discards a conflicted head operation and resumes
// draining. Valid only while the queue is paused on a conflict.
func (m *Manager) ResumeOperationQueue() {
	m.queue.Resume()
}

// ClearOperationQueue abandons all pending operations and the current item.
func (m *Manager) ClearOperationQueue() {
	m.queue.Clear()
}

// QueueLength returns the number of operations still queued.
func (m *Manager) QueueLength() int {
	return m.queue.Len()
}

func (m *Manager) validateName(name string) error {
	err := validation.Validate(name,
		validation.Required,
		validation.Length(1, config.MaxFolderNameLength),
		validation.Match(folderNamePattern).Error("folder name cannot contain slashes"),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

func (m *Manager) requireLoaded() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		return ErrNotLoaded
	}
	return nil
}

func (m *Manager) snapshotFolders() []models.Folder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.folders)
}

func (m *Manager) swap(collection []models.Folder) {
	m.mu.Lock()
	m.folders = collection
	m.mu.Unlock()
	m.publish()
}

func (m *Manager) stateLocked() State {
	return State{
		Loading:         !m.loaded,
		Folders:         clone(m.folders),
		CurrentFolderID: m.currentID,
	}
}

func (m *Manager) publish() {
	m.mu.Lock()
	snapshot := m.stateLocked()
	listeners := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}
