package lockgate

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	codeKeyPrefix       = "otc"
	codeRecordVersionV1 = 1
)

var (
	errCodeNotFound         = errors.New("login code not found")
	errCodeMismatch         = errors.New("login code mismatch")
	errCodeAttemptsExceeded = errors.New("login code attempts exceeded")
	errCodeRedisUnavailable = errors.New("login code redis unavailable")
)

type loginCodeRecord struct {
	CodeHash  [32]byte
	ExpiresAt int64
	CreatedAt int64
	Attempts  uint16
}

// loginCodeStore keeps at most one live code per identity hash: Save uses a
// plain SET so a new request supersedes the old code instead of multiplying
// live secrets.
type loginCodeStore struct {
	redis  *redis.Client
	prefix string
}

func newLoginCodeStore(redisClient *redis.Client, keyPrefix string) *loginCodeStore {
	return &loginCodeStore{
		redis:  redisClient,
		prefix: keyPrefix + ":" + codeKeyPrefix,
	}
}

func (s *loginCodeStore) key(identityHash string) string {
	return s.prefix + ":" + identityHash
}

// Save describes the save operation and its observable behavior.
//
// Save may return an error when input validation, dependency calls, or security checks fail.
// Save does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *loginCodeStore) Save(ctx context.Context, identityHash string, record *loginCodeRecord, ttl time.Duration) error {
	encoded, err := encodeLoginCodeRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(identityHash), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errCodeRedisUnavailable, err)
	}

	return nil
}

// Consume atomically validates and deletes the code for identityHash. The
// WATCH/MULTI retry loop guarantees a code validates at most once even under
// concurrent verification attempts. Expired records never match, whether or
// not Redis has evicted them yet.
func (s *loginCodeStore) Consume(ctx context.Context, identityHash string, providedHash [32]byte, maxAttempts int) error {
	const maxRetries = 4
	key := s.key(identityHash)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeLoginCodeRecord(data)
			if err != nil {
				return err
			}

			if time.Now().Unix() > record.ExpiresAt {
				if err := txDelete(ctx, tx, key); err != nil {
					return err
				}
				return errCodeNotFound
			}

			if subtle.ConstantTimeCompare(record.CodeHash[:], providedHash[:]) != 1 {
				record.Attempts++
				if int(record.Attempts) >= maxAttempts {
					if err := txDelete(ctx, tx, key); err != nil {
						return err
					}
					return errCodeAttemptsExceeded
				}

				ttl := time.Until(time.Unix(record.ExpiresAt, 0))
				if ttl <= 0 {
					if err := txDelete(ctx, tx, key); err != nil {
						return err
					}
					return errCodeNotFound
				}

				updated, err := encodeLoginCodeRecord(record)
				if err != nil {
					return err
				}
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, updated, ttl)
					return nil
				})
				if err != nil {
					return err
				}
				return errCodeMismatch
			}

			// Single use: delete inside the same transaction that matched.
			return txDelete(ctx, tx, key)
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return errCodeNotFound
			case errors.Is(err, errCodeNotFound), errors.Is(err, errCodeMismatch), errors.Is(err, errCodeAttemptsExceeded):
				return err
			default:
				return fmt.Errorf("%w: %v", errCodeRedisUnavailable, err)
			}
		}

		return nil
	}

	return errCodeNotFound
}

func txDelete(ctx context.Context, tx *redis.Tx, key string) error {
	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		return nil
	})
	return err
}

func encodeLoginCodeRecord(record *loginCodeRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(codeRecordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt); err != nil {
		return nil, err
	}
	buf.Write(record.CodeHash[:])

	return buf.Bytes(), nil
}

func decodeLoginCodeRecord(data []byte) (*loginCodeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != codeRecordVersionV1 {
		return nil, errors.New("invalid login code record version")
	}

	record := &loginCodeRecord{}

	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.CreatedAt); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, record.CodeHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
