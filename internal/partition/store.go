// Package partition implements the store coordinator of spec §4.4/§4.5:
// the master table plus the full set of system indices (normalized and
// user-provided DN, parent/child hierarchy, attribute presence, and the
// three alias indices), wired together behind Add/Delete/Modify/Rename/
// Move operations that keep every index consistent with the master table
// and enforce the alias invariants (no cycles, no chains, no self- or
// external targets).
//
// It is grounded on the original_source JdbmStore coordinator, expressed
// the way the teacher structures its own storage/manager.go: one exported
// type wrapping a page-level record.Manager, opened once via Open (which
// also creates a missing file) and closed via Close, with every mutating operation taking the store's
// single write lock.
package partition

import (
	"sync"

	"github.com/google/uuid"
	"tlog.app/go/errors"

	"github.com/oba-ldap/partition/internal/bptree"
	"github.com/oba-ldap/partition/internal/dn"
	"github.com/oba-ldap/partition/internal/pindex"
	"github.com/oba-ldap/partition/internal/plog"
	"github.com/oba-ldap/partition/internal/record"
	"github.com/oba-ldap/partition/internal/schema"
)

// Config configures a Store. internal/config.StoreConfig is the separate
// on-disk/YAML-facing configuration (working directory, indexed attribute
// names, etc.); nothing in internal/config converts it into this struct,
// so callers of Open fill in Config themselves.
type Config struct {
	Path           string // path to the partition's record file
	CacheSize      int
	SyncOnWrite    bool
	ReadOnly       bool
	Suffix         dn.DN
	DuplicateLimit int
	IndexedAttrs   []string // attribute names/OIDs to build user indices for
}

// Store is the directory partition storage engine: one record file, one
// master table, and the system plus configured user indices layered on
// top of it.
type Store struct {
	mu sync.RWMutex // spec §5: single-writer, multiple-reader

	cfg    Config
	pages  *record.Manager
	rm     *record.RecordManager
	log    *plog.Logger
	schema schema.Resolver

	master *bptree.Table // id bytes -> recID (single-valued)

	ndn       *pindex.Index    // normalized DN string -> id
	updn      *pindex.Index    // user-provided DN string -> id
	hierarchy *pindex.Relation // parent id -> {child id}
	presence  *pindex.Index    // attribute OID -> {id}
	alias     *pindex.Relation // alias id -> target id
	oneAlias  *pindex.Relation // ancestor id -> {target id}, one-level alias scope
	subAlias  *pindex.Relation // ancestor id -> {target id}, subtree alias scope

	userIndices map[string]*pindex.Index // attribute name/OID -> index

	// dnPrefix and aliasPrefix are adaptive-radix-tree accelerators over
	// ndn and alias, keyed on dn.DN.ReversedNormString so that an
	// ancestor's key is a literal prefix of every descendant's. Neither
	// is persisted; both are rebuilt from their source index on load.
	dnPrefix    *pindex.PrefixTree // reversed normalized DN -> id, mirrors ndn
	aliasPrefix *pindex.PrefixTree // reversed normalized alias DN -> alias id

	// instanceID identifies this particular open of the store for
	// diagnostics (surfaced via InstanceID and the CLI's count command).
	// It is not persisted: a fresh id is minted on every Open.
	instanceID string

	initialized bool
}

// InstanceID returns the diagnostic identifier minted for this open of
// the store.
func (s *Store) InstanceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.instanceID
}

// Open opens an existing partition file, or creates a new one if absent.
// If schemaResolver is nil, attribute presence and normalization fall
// back to the unadorned string form (see dn.DefaultNormalizer).
func Open(cfg Config, schemaResolver schema.Resolver, log *plog.Logger) (*Store, error) {
	if cfg.DuplicateLimit <= 0 {
		cfg.DuplicateLimit = bptree.DefaultDuplicateLimit
	}
	if log == nil {
		log = plog.Nop()
	}

	pages, err := record.Open(cfg.Path, record.Options{
		CacheSize:   cfg.CacheSize,
		SyncOnWrite: cfg.SyncOnWrite,
		ReadOnly:    cfg.ReadOnly,
	})
	if err != nil {
		return nil, errors.Wrap(err, "partition: open %s", cfg.Path)
	}
	rm := record.NewRecordManager(pages)

	s := &Store{
		cfg:         cfg,
		pages:       pages,
		rm:          rm,
		log:         log,
		schema:      schemaResolver,
		userIndices: make(map[string]*pindex.Index),
		instanceID:  uuid.New().String(),
	}

	if root := pages.RootManifest(); root != 0 {
		if err := s.load(root); err != nil {
			pages.Close()
			return nil, err
		}
		s.initialized = true
		return s, nil
	}

	if cfg.ReadOnly {
		pages.Close()
		return nil, errors.Wrap(ErrNotInitialized, "%s", cfg.Path)
	}
	s.initFresh()
	s.initialized = true
	if err := s.syncLocked(); err != nil {
		pages.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initFresh() {
	s.master = bptree.NewTable(bptree.CompareBytes, 1)
	s.ndn = pindex.New(bptree.CompareBytes, s.cfg.DuplicateLimit)
	s.updn = pindex.New(bptree.CompareBytes, s.cfg.DuplicateLimit)
	s.hierarchy = pindex.NewRelation(s.cfg.DuplicateLimit)
	s.presence = pindex.New(bptree.CompareBytes, s.cfg.DuplicateLimit)
	s.alias = pindex.NewRelation(s.cfg.DuplicateLimit)
	s.oneAlias = pindex.NewRelation(s.cfg.DuplicateLimit)
	s.subAlias = pindex.NewRelation(s.cfg.DuplicateLimit)
	s.dnPrefix = pindex.NewPrefixTree()
	s.aliasPrefix = pindex.NewPrefixTree()
	for _, name := range s.cfg.IndexedAttrs {
		s.userIndices[s.attrKey(name)] = pindex.New(bptree.CompareBytes, s.cfg.DuplicateLimit)
	}
}

func (s *Store) load(root record.RecID) error {
	blob, err := s.rm.Fetch(root)
	if err != nil {
		return errors.Wrap(err, "partition: fetch root manifest")
	}
	m, err := decodeRootManifest(blob)
	if err != nil {
		return err
	}

	master, err := bptree.LoadFrom(s.rm, m.Master, bptree.CompareBytes, 1)
	if err != nil {
		return err
	}
	s.master = master

	if s.ndn, err = pindex.Load(s.rm, m.NDN, bptree.CompareBytes, s.cfg.DuplicateLimit); err != nil {
		return err
	}
	if s.updn, err = pindex.Load(s.rm, m.UPDN, bptree.CompareBytes, s.cfg.DuplicateLimit); err != nil {
		return err
	}
	if s.hierarchy, err = pindex.LoadRelation(s.rm, m.Hierarchy, s.cfg.DuplicateLimit); err != nil {
		return err
	}
	if s.presence, err = pindex.Load(s.rm, m.Presence, bptree.CompareBytes, s.cfg.DuplicateLimit); err != nil {
		return err
	}
	if s.alias, err = pindex.LoadRelation(s.rm, m.Alias, s.cfg.DuplicateLimit); err != nil {
		return err
	}
	if s.oneAlias, err = pindex.LoadRelation(s.rm, m.OneAlias, s.cfg.DuplicateLimit); err != nil {
		return err
	}
	if s.subAlias, err = pindex.LoadRelation(s.rm, m.SubAlias, s.cfg.DuplicateLimit); err != nil {
		return err
	}

	s.userIndices = make(map[string]*pindex.Index, len(m.UserIndices))
	for name, im := range m.UserIndices {
		idx, err := pindex.Load(s.rm, im, bptree.CompareBytes, s.cfg.DuplicateLimit)
		if err != nil {
			return err
		}
		s.userIndices[name] = idx
	}
	for _, name := range s.cfg.IndexedAttrs {
		key := s.attrKey(name)
		if _, ok := s.userIndices[key]; !ok {
			s.userIndices[key] = pindex.New(bptree.CompareBytes, s.cfg.DuplicateLimit)
		}
	}

	s.dnPrefix = s.rebuildDNPrefixLocked()
	s.aliasPrefix = s.rebuildAliasPrefixLocked()
	return nil
}

// rebuildDNPrefixLocked reconstructs the ndn-mirroring PrefixTree from
// ndn itself, since the tree is never persisted.
func (s *Store) rebuildDNPrefixLocked() *pindex.PrefixTree {
	tree := pindex.NewPrefixTree()
	c := s.ndn.Cursor()
	for ok := c.First(); ok; ok = c.Next() {
		tree.Insert([]byte(dn.ReverseComponents(string(c.Key()))), c.ID())
	}
	return tree
}

// rebuildAliasPrefixLocked reconstructs the alias-mirroring PrefixTree
// from the alias relation's forward keys plus the ndn index, since the
// alias relation itself is only id<->id and doesn't carry DN strings.
func (s *Store) rebuildAliasPrefixLocked() *pindex.PrefixTree {
	tree := pindex.NewPrefixTree()
	for _, aliasID := range s.alias.ForwardKeys() {
		normDN, ok := s.normDnOf(aliasID)
		if !ok {
			continue
		}
		parsed, err := s.ParseDN(normDN)
		if err != nil {
			continue
		}
		tree.Insert([]byte(parsed.ReversedNormString()), aliasID)
	}
	return tree
}

// Sync flushes every table to disk and updates the root manifest pointer,
// matching spec §4.1's explicit commit() contract (transactions disabled,
// durability is sync-on-write or explicit sync only).
func (s *Store) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncLocked()
}

func (s *Store) syncLocked() error {
	if !s.initialized {
		return ErrNotInitialized
	}

	prev, err := s.currentManifestLocked()
	if err != nil {
		return err
	}

	masterID, err := bptree.SaveTo(s.master, s.rm, prev.Master)
	if err != nil {
		return errors.Wrap(ErrIOFailure, "master: %v", err)
	}

	next := rootManifest{Master: masterID, NextEntryID: s.pages.CurrentRecordID()}

	if next.NDN, err = s.ndn.Sync(s.rm, prev.NDN); err != nil {
		return errors.Wrap(ErrIOFailure, "ndn: %v", err)
	}
	if next.UPDN, err = s.updn.Sync(s.rm, prev.UPDN); err != nil {
		return errors.Wrap(ErrIOFailure, "updn: %v", err)
	}
	if next.Hierarchy, err = s.hierarchy.Sync(s.rm, prev.Hierarchy); err != nil {
		return errors.Wrap(ErrIOFailure, "hierarchy: %v", err)
	}
	if next.Presence, err = s.presence.Sync(s.rm, prev.Presence); err != nil {
		return errors.Wrap(ErrIOFailure, "presence: %v", err)
	}
	if next.Alias, err = s.alias.Sync(s.rm, prev.Alias); err != nil {
		return errors.Wrap(ErrIOFailure, "alias: %v", err)
	}
	if next.OneAlias, err = s.oneAlias.Sync(s.rm, prev.OneAlias); err != nil {
		return errors.Wrap(ErrIOFailure, "oneAlias: %v", err)
	}
	if next.SubAlias, err = s.subAlias.Sync(s.rm, prev.SubAlias); err != nil {
		return errors.Wrap(ErrIOFailure, "subAlias: %v", err)
	}

	next.UserIndices = make(map[string]pindex.Manifest, len(s.userIndices))
	for name, idx := range s.userIndices {
		im, err := idx.Sync(s.rm, prev.UserIndices[name])
		if err != nil {
			return errors.Wrap(ErrIOFailure, "index %s: %v", name, err)
		}
		next.UserIndices[name] = im
	}

	blob := next.encode()
	rootID := s.pages.RootManifest()
	if rootID == 0 {
		rootID, err = s.rm.Insert(blob)
	} else {
		err = s.rm.Update(rootID, blob)
	}
	if err != nil {
		return errors.Wrap(ErrIOFailure, "root manifest: %v", err)
	}
	s.pages.SetRootManifest(rootID)

	if err := s.rm.Commit(); err != nil {
		return errors.Wrap(ErrIOFailure, "%v", err)
	}
	s.log.Debug("sync complete", "entries", s.master.Count())
	return nil
}

func (s *Store) currentManifestLocked() (rootManifest, error) {
	root := s.pages.RootManifest()
	if root == 0 {
		return rootManifest{UserIndices: map[string]pindex.Manifest{}}, nil
	}
	blob, err := s.rm.Fetch(root)
	if err != nil {
		return rootManifest{}, errors.Wrap(ErrIOFailure, "%v", err)
	}
	m, err := decodeRootManifest(blob)
	if err != nil {
		return rootManifest{}, err
	}
	return *m, nil
}

// Close syncs and releases the underlying record file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.ReadOnly {
		if err := s.syncLocked(); err != nil {
			s.pages.Close()
			return err
		}
	}
	return s.pages.Close()
}

// Count returns the number of entries currently in the master table.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.master.Count()
}

func normalizeAttrName(name string) string {
	return dnNormalizer()("", name)
}

// dnNormalizer returns the type-normalizing half of dn.DefaultNormalizer,
// used wherever only an attribute name (not a value) needs folding.
func dnNormalizer() func(string, string) string {
	return func(_, name string) string {
		t, _ := dn.DefaultNormalizer(name, "")
		return t
	}
}

func (s *Store) getEntryLocked(id uint64) (*Entry, error) {
	recID, ok := s.master.Least(pindex.IDKey(id))
	if !ok {
		return nil, ErrNoSuchObject
	}
	blob, err := s.rm.Fetch(record.RecID(recID))
	if err != nil {
		return nil, errors.Wrap(ErrIOFailure, "%v", err)
	}
	return decodeEntry(blob)
}

func (s *Store) putEntryLocked(id uint64, e *Entry) error {
	blob := encodeEntry(e)
	if recID, ok := s.master.Least(pindex.IDKey(id)); ok {
		return s.rm.Update(record.RecID(recID), blob)
	}
	recID, err := s.rm.Insert(blob)
	if err != nil {
		return err
	}
	_, err = s.master.Add(pindex.IDKey(id), uint64(recID))
	return err
}

func (s *Store) deleteEntryLocked(id uint64) error {
	recID, ok := s.master.Least(pindex.IDKey(id))
	if !ok {
		return ErrNoSuchObject
	}
	if err := s.rm.Delete(record.RecID(recID)); err != nil {
		return err
	}
	_, err := s.master.RemoveKey(pindex.IDKey(id))
	return err
}
