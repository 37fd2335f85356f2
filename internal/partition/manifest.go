package partition

import (
	"sort"

	"tlog.app/go/errors"

	"github.com/oba-ldap/partition/internal/pindex"
	"github.com/oba-ldap/partition/internal/record"
)

// rootManifest is the single blob that ties every table's RecID together,
// so that reopening a store only needs the fileHeader's RootManifest
// pointer to find everything else (spec §4.2's master table plus every
// system and user index, all made durable together on Sync).
type rootManifest struct {
	Master      record.RecID
	NextEntryID uint64
	NDN         pindex.Manifest
	UPDN        pindex.Manifest
	Hierarchy   pindex.RelationManifest
	Presence    pindex.Manifest
	Alias       pindex.RelationManifest
	OneAlias    pindex.RelationManifest
	SubAlias    pindex.RelationManifest
	UserIndices map[string]pindex.Manifest
}

var ErrCorruptManifest = errors.New("partition: corrupt root manifest")

func (rm *rootManifest) encode() []byte {
	buf := make([]byte, 0, 512)
	buf = appendU64(buf, uint64(rm.Master))
	buf = appendU64(buf, rm.NextEntryID)
	buf = appendIndexManifest(buf, rm.NDN)
	buf = appendIndexManifest(buf, rm.UPDN)
	buf = appendRelationManifest(buf, rm.Hierarchy)
	buf = appendIndexManifest(buf, rm.Presence)
	buf = appendRelationManifest(buf, rm.Alias)
	buf = appendRelationManifest(buf, rm.OneAlias)
	buf = appendRelationManifest(buf, rm.SubAlias)

	names := make([]string, 0, len(rm.UserIndices))
	for name := range rm.UserIndices {
		names = append(names, name)
	}
	sort.Strings(names)
	buf = appendU32(buf, uint32(len(names)))
	for _, name := range names {
		buf = appendString(buf, name)
		buf = appendIndexManifest(buf, rm.UserIndices[name])
	}
	return buf
}

func decodeRootManifest(data []byte) (*rootManifest, error) {
	rest := data
	master, ok := takeU64(&rest)
	if !ok {
		return nil, errors.Wrap(ErrCorruptManifest, "master")
	}
	nextID, ok := takeU64(&rest)
	if !ok {
		return nil, errors.Wrap(ErrCorruptManifest, "next id")
	}
	ndn, err := takeIndexManifest(&rest)
	if err != nil {
		return nil, err
	}
	updn, err := takeIndexManifest(&rest)
	if err != nil {
		return nil, err
	}
	hierarchy, err := takeRelationManifest(&rest)
	if err != nil {
		return nil, err
	}
	presence, err := takeIndexManifest(&rest)
	if err != nil {
		return nil, err
	}
	alias, err := takeRelationManifest(&rest)
	if err != nil {
		return nil, err
	}
	oneAlias, err := takeRelationManifest(&rest)
	if err != nil {
		return nil, err
	}
	subAlias, err := takeRelationManifest(&rest)
	if err != nil {
		return nil, err
	}
	count, ok := takeU32(&rest)
	if !ok {
		return nil, errors.Wrap(ErrCorruptManifest, "user index count")
	}
	userIndices := make(map[string]pindex.Manifest, count)
	for i := uint32(0); i < count; i++ {
		name, ok := takeString(&rest)
		if !ok {
			return nil, errors.Wrap(ErrCorruptManifest, "user index name")
		}
		m, err := takeIndexManifest(&rest)
		if err != nil {
			return nil, err
		}
		userIndices[name] = m
	}

	return &rootManifest{
		Master:      record.RecID(master),
		NextEntryID: nextID,
		NDN:         ndn,
		UPDN:        updn,
		Hierarchy:   hierarchy,
		Presence:    presence,
		Alias:       alias,
		OneAlias:    oneAlias,
		SubAlias:    subAlias,
		UserIndices: userIndices,
	}, nil
}

func appendIndexManifest(buf []byte, m pindex.Manifest) []byte {
	buf = appendU64(buf, uint64(m.Forward))
	buf = appendU64(buf, uint64(m.Reverse))
	return buf
}

func takeIndexManifest(rest *[]byte) (pindex.Manifest, error) {
	fwd, ok := takeU64(rest)
	if !ok {
		return pindex.Manifest{}, errors.Wrap(ErrCorruptManifest, "index forward")
	}
	rev, ok := takeU64(rest)
	if !ok {
		return pindex.Manifest{}, errors.Wrap(ErrCorruptManifest, "index reverse")
	}
	return pindex.Manifest{Forward: record.RecID(fwd), Reverse: record.RecID(rev)}, nil
}

func appendRelationManifest(buf []byte, m pindex.RelationManifest) []byte {
	buf = appendU64(buf, uint64(m.Forward))
	buf = appendU64(buf, uint64(m.Reverse))
	return buf
}

func takeRelationManifest(rest *[]byte) (pindex.RelationManifest, error) {
	fwd, ok := takeU64(rest)
	if !ok {
		return pindex.RelationManifest{}, errors.Wrap(ErrCorruptManifest, "relation forward")
	}
	rev, ok := takeU64(rest)
	if !ok {
		return pindex.RelationManifest{}, errors.Wrap(ErrCorruptManifest, "relation reverse")
	}
	return pindex.RelationManifest{Forward: record.RecID(fwd), Reverse: record.RecID(rev)}, nil
}

func appendU64(buf []byte, v uint64) []byte {
	for i := 0; i < 8; i++ {
		buf = append(buf, byte(v))
		v >>= 8
	}
	return buf
}

func takeU64(rest *[]byte) (uint64, bool) {
	if len(*rest) < 8 {
		return 0, false
	}
	b := (*rest)[:8]
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	*rest = (*rest)[8:]
	return v, true
}
