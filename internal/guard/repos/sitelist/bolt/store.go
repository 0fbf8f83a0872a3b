package bolt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/navguard/internal/guard/domain"
	"github.com/haukened/navguard/internal/guard/repos/sitelist"
)

var (
	bucketLegitExact  = []byte("legitimate_exact")
	bucketLegitSuffix = []byte("legitimate_suffix")
	bucketSuspExact   = []byte("suspicious_exact")
	bucketSuspSuffix  = []byte("suspicious_suffix")
	bucketMeta        = []byte("meta")

	keyVersion = []byte("version")
	keyUpdated = []byte("updated")
)

// matchOrder is the lookup precedence: legitimate before suspicious, exact
// before suffix within a list.
var matchOrder = []struct {
	category domain.Category
	kind     domain.RuleKind
}{
	{domain.CategoryLegitimate, domain.RuleExact},
	{domain.CategoryLegitimate, domain.RuleSuffix},
	{domain.CategorySuspicious, domain.RuleExact},
	{domain.CategorySuspicious, domain.RuleSuffix},
}

// boltStore implements sitelist.Store using bbolt. Suffix rules are keyed
// by their reversed name.
type boltStore struct {
	db  *bbolt.DB
	now func() time.Time
}

// New opens (or creates) a Bolt database at path and ensures buckets exist.
func New(path string) (sitelist.Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketLegitExact, bucketLegitSuffix, bucketSuspExact, bucketSuspSuffix, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &boltStore{db: db, now: time.Now}, nil
}

func (s *boltStore) Close() error { return s.db.Close() }

func bucketFor(category domain.Category, kind domain.RuleKind) ([]byte, error) {
	switch {
	case category == domain.CategoryLegitimate && kind == domain.RuleExact:
		return bucketLegitExact, nil
	case category == domain.CategoryLegitimate && kind == domain.RuleSuffix:
		return bucketLegitSuffix, nil
	case category == domain.CategorySuspicious && kind == domain.RuleExact:
		return bucketSuspExact, nil
	case category == domain.CategorySuspicious && kind == domain.RuleSuffix:
		return bucketSuspSuffix, nil
	default:
		return nil, fmt.Errorf("no bucket for %s/%s", category, kind)
	}
}

func ruleKey(rule domain.SiteRule) []byte {
	if rule.IsSuffix() {
		return []byte(sitelist.ReverseString(rule.Name))
	}
	return []byte(rule.Name)
}

// encodeValue stores the rule's added time (big-endian unix seconds)
// followed by its source.
func encodeValue(rule domain.SiteRule) []byte {
	v := make([]byte, 8+len(rule.Source))
	binary.BigEndian.PutUint64(v, uint64(rule.AddedAt.Unix()))
	copy(v[8:], rule.Source)
	return v
}

func decodeRule(key, value []byte, category domain.Category, kind domain.RuleKind) (domain.SiteRule, error) {
	if len(value) < 8 {
		return domain.SiteRule{}, errors.New("corrupt rule value")
	}
	name := string(key)
	if kind == domain.RuleSuffix {
		name = sitelist.ReverseString(name)
	}
	return domain.SiteRule{
		Name:     name,
		Kind:     kind,
		Category: category,
		Source:   string(value[8:]),
		AddedAt:  time.Unix(int64(binary.BigEndian.Uint64(value[:8])), 0).UTC(),
	}, nil
}

// put inserts rule inside tx unless its key already exists.
func put(tx *bbolt.Tx, rule domain.SiteRule) (bool, error) {
	if err := rule.Validate(); err != nil {
		return false, err
	}
	name, err := bucketFor(rule.Category, rule.Kind)
	if err != nil {
		return false, err
	}
	b := tx.Bucket(name)
	key := ruleKey(rule)
	if b.Get(key) != nil {
		return false, nil
	}
	return true, b.Put(key, encodeValue(rule))
}

// Put inserts one rule; an existing rule with the same name, kind and
// category is kept unchanged.
func (s *boltStore) Put(rule domain.SiteRule) (bool, error) {
	n, err := s.PutAll([]domain.SiteRule{rule})
	return n == 1, err
}

// PutAll inserts rules in one transaction and returns how many were new.
func (s *boltStore) PutAll(rules []domain.SiteRule) (int, error) {
	inserted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, rule := range rules {
			ok, err := put(tx, rule)
			if err != nil {
				return fmt.Errorf("put %q: %w", rule.Name, err)
			}
			if ok {
				inserted++
			}
		}
		if inserted > 0 {
			return bumpMeta(tx, s.now().Unix())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// Match finds the rule deciding name. Suffix rules are tried for name and
// each parent up to its registrable domain, most specific first.
func (s *boltStore) Match(name string) (domain.SiteRule, bool, error) {
	var (
		found domain.SiteRule
		ok    bool
	)
	anchors := sitelist.SuffixAnchors(name)
	err := s.db.View(func(tx *bbolt.Tx) error {
		for _, m := range matchOrder {
			bname, _ := bucketFor(m.category, m.kind)
			b := tx.Bucket(bname)
			if b == nil {
				continue
			}
			keys := []string{name}
			if m.kind == domain.RuleSuffix {
				keys = keys[:0]
				for _, a := range anchors {
					keys = append(keys, sitelist.ReverseString(a))
				}
			}
			for _, k := range keys {
				v := b.Get([]byte(k))
				if v == nil {
					continue
				}
				rule, err := decodeRule([]byte(k), v, m.category, m.kind)
				if err != nil {
					return err
				}
				found, ok = rule, true
				return nil
			}
		}
		return nil
	})
	return found, ok, err
}

// ForEach visits every rule in match order. A visit error stops iteration.
func (s *boltStore) ForEach(visit func(rule domain.SiteRule) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		for _, m := range matchOrder {
			bname, _ := bucketFor(m.category, m.kind)
			b := tx.Bucket(bname)
			if b == nil {
				continue
			}
			if err := b.ForEach(func(k, v []byte) error {
				rule, err := decodeRule(k, v, m.category, m.kind)
				if err != nil {
					return err
				}
				return visit(rule)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// Examples returns up to limit names from one list, exact rules first.
func (s *boltStore) Examples(category domain.Category, limit int) ([]string, error) {
	out := make([]string, 0, limit)
	if limit <= 0 {
		return out, nil
	}
	err := s.db.View(func(tx *bbolt.Tx) error {
		for _, kind := range []domain.RuleKind{domain.RuleExact, domain.RuleSuffix} {
			bname, err := bucketFor(category, kind)
			if err != nil {
				return err
			}
			c := tx.Bucket(bname).Cursor()
			for k, _ := c.First(); k != nil && len(out) < limit; k, _ = c.Next() {
				name := string(k)
				if kind == domain.RuleSuffix {
					name = sitelist.ReverseString(name)
				}
				out = append(out, name)
			}
		}
		return nil
	})
	return out, err
}

func (s *boltStore) Stats() sitelist.StoreStats {
	st := sitelist.StoreStats{}
	_ = s.db.View(func(tx *bbolt.Tx) error {
		count := func(name []byte) uint64 {
			if b := tx.Bucket(name); b != nil {
				return uint64(b.Stats().KeyN)
			}
			return 0
		}
		st.LegitimateExact = count(bucketLegitExact)
		st.LegitimateSuffix = count(bucketLegitSuffix)
		st.SuspiciousExact = count(bucketSuspExact)
		st.SuspiciousSuffix = count(bucketSuspSuffix)
		if b := tx.Bucket(bucketMeta); b != nil {
			if v := b.Get(keyVersion); len(v) == 8 {
				st.Version = binary.BigEndian.Uint64(v)
			}
			if v := b.Get(keyUpdated); len(v) == 8 {
				st.UpdatedUnix = int64(binary.BigEndian.Uint64(v))
			}
		}
		return nil
	})
	return st
}

// bumpMeta increments the version and records the update time.
func bumpMeta(tx *bbolt.Tx, updatedUnix int64) error {
	b := tx.Bucket(bucketMeta)
	var version uint64
	if v := b.Get(keyVersion); len(v) == 8 {
		version = binary.BigEndian.Uint64(v)
	}
	vbuf := make([]byte, 8)
	ubuf := make([]byte, 8)
	binary.BigEndian.PutUint64(vbuf, version+1)
	binary.BigEndian.PutUint64(ubuf, uint64(updatedUnix))
	if err := b.Put(keyVersion, vbuf); err != nil {
		return err
	}
	return b.Put(keyUpdated, ubuf)
}
