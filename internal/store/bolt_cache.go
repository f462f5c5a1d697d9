package store

import (
	"encoding/json"
	"time"

	"github.com/google/tink/go/kwp/subtle"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"konnect/internal/crypto"
	"konnect/internal/domain"
)

// ErrCacheLocked is returned when the cache key does not open a record.
var ErrCacheLocked = errors.New("message cache record does not open under this cache key")

// BoltCache is a MessageCache in a bbolt file. Each local user has a top
// level bucket named after their storage name, holding one nested bucket per
// conversation. Keys are UUIDv7 so cursor order is arrival order.
//
// Every record gets its own data key. The data key is wrapped with AES-KWP
// under the cache key and stored in front of the sealed message:
//
//	envelope(wrapped data key | iv | tag | ciphertext)
//
// The associated data is the owner, the conversation and the record key, so
// records cannot be moved between users, buckets or positions.
type BoltCache struct {
	db *bolt.DB
}

// OpenBoltCache opens or creates the cache database at path.
func OpenBoltCache(path string) (*BoltCache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open message cache %s", path)
	}
	return &BoltCache{db: db}, nil
}

// Put seals msg under cacheKey and appends it to its receiver's copy of the
// conversation.
func (c *BoltCache) Put(cacheKey []byte, msg domain.DecryptedMessage) error {
	owner := msg.To.StorageName()
	conv := msg.Conversation()
	id, err := uuid.NewV7()
	if err != nil {
		return errors.Wrap(err, "record id")
	}
	key := id[:]

	raw, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encode message")
	}
	rec, err := sealRecord(cacheKey, raw, recordAAD(owner, conv, key))
	crypto.Wipe(raw)
	if err != nil {
		return err
	}

	return c.db.Update(func(tx *bolt.Tx) error {
		ub, err := tx.CreateBucketIfNotExists([]byte(owner))
		if err != nil {
			return err
		}
		b, err := ub.CreateBucketIfNotExists([]byte(conv))
		if err != nil {
			return err
		}
		return b.Put(key, rec)
	})
}

// List returns up to limit of the newest messages owner has in
// conversation, oldest first. limit <= 0 returns all of them.
func (c *BoltCache) List(
	cacheKey []byte,
	owner domain.Identity,
	conversation string,
	limit int,
) ([]domain.DecryptedMessage, error) {
	name := owner.StorageName()
	var out []domain.DecryptedMessage
	err := c.db.View(func(tx *bolt.Tx) error {
		ub := tx.Bucket([]byte(name))
		if ub == nil {
			return nil
		}
		b := ub.Bucket([]byte(conversation))
		if b == nil {
			return nil
		}
		cur := b.Cursor()
		for k, v := cur.Last(); k != nil; k, v = cur.Prev() {
			if limit > 0 && len(out) == limit {
				break
			}
			raw, err := openRecord(cacheKey, v, recordAAD(name, conversation, k))
			if err != nil {
				return err
			}
			var m domain.DecryptedMessage
			err = json.Unmarshal(raw, &m)
			crypto.Wipe(raw)
			if err != nil {
				return errors.Wrap(err, "decode cached message")
			}
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Close closes the database file.
func (c *BoltCache) Close() error { return c.db.Close() }

func recordAAD(owner, conversation string, key []byte) []byte {
	aad := make([]byte, 0, len(owner)+len(conversation)+2+len(key))
	aad = append(aad, owner...)
	aad = append(aad, 0)
	aad = append(aad, conversation...)
	aad = append(aad, 0)
	return append(aad, key...)
}

func sealRecord(cacheKey, plaintext, aad []byte) ([]byte, error) {
	kwp, err := subtle.NewKWP(cacheKey)
	if err != nil {
		return nil, errors.Wrap(crypto.ErrInvalidKey, err.Error())
	}
	dek, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(dek)

	wrapped, err := kwp.Wrap(dek)
	if err != nil {
		return nil, errors.Wrap(err, "wrap data key")
	}
	body, err := crypto.Encrypt(dek, plaintext, aad)
	if err != nil {
		return nil, err
	}
	tok, err := crypto.EncodeEnvelope(crypto.Envelope{WrappedKey: wrapped, Body: body})
	if err != nil {
		return nil, err
	}
	return []byte(tok), nil
}

func openRecord(cacheKey, rec, aad []byte) ([]byte, error) {
	kwp, err := subtle.NewKWP(cacheKey)
	if err != nil {
		return nil, errors.Wrap(crypto.ErrInvalidKey, err.Error())
	}
	env, err := crypto.DecodeEnvelope(string(rec))
	if err != nil {
		return nil, err
	}
	dek, err := kwp.Unwrap(env.WrappedKey)
	if err != nil {
		return nil, ErrCacheLocked
	}
	defer crypto.Wipe(dek)
	return crypto.Decrypt(env.Body, dek, aad)
}

var _ domain.MessageCache = (*BoltCache)(nil)
