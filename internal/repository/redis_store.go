package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"spellingbee/internal/domain"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

var _ DocumentStore = (*RedisStore)(nil)

// RedisStore keeps each document as a JSON string under "<collection>/<id>"
// and tracks ids of a collection in the set "<prefix>index:<collection>".
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(collection, id string) string {
	return s.prefix + docKey(collection, id)
}

func (s *RedisStore) indexKey(collection string) string {
	return s.prefix + "index:" + collection
}

func (s *RedisStore) put(ctx context.Context, collection, id string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	// document and index land atomically
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(collection, id), b, 0)
		pipe.SAdd(ctx, s.indexKey(collection), id)
		return nil
	})
	return err
}

func (s *RedisStore) get(ctx context.Context, collection, id string, v any) error {
	b, err := s.client.Get(ctx, s.key(collection, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%s: %w", docKey(collection, id), domain.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// list loads every document of a collection with one MGET.
func (s *RedisStore) list(ctx context.Context, collection string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey(collection)).Result()
	if err != nil || len(ids) == 0 {
		return nil, err
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(collection, id)
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	docs := make([]string, 0, len(vals))
	for _, v := range vals {
		if str, ok := v.(string); ok {
			docs = append(docs, str)
		}
	}
	return docs, nil
}

func (s *RedisStore) ListSessions(ctx context.Context) ([]domain.Session, error) {
	docs, err := s.list(ctx, GamesCollection)
	if err != nil {
		return nil, err
	}
	res := make([]domain.Session, 0, len(docs))
	for _, d := range docs {
		var sess domain.Session
		if err := json.Unmarshal([]byte(d), &sess); err != nil {
			continue
		}
		res = append(res, sess)
	}
	return res, nil
}

func (s *RedisStore) GetSession(ctx context.Context, id uuid.UUID) (domain.Session, error) {
	var sess domain.Session
	if err := s.get(ctx, GamesCollection, id.String(), &sess); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

func (s *RedisStore) PutSession(ctx context.Context, sess domain.Session) error {
	return s.put(ctx, GamesCollection, sess.ID.String(), sess)
}

func (s *RedisStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	docs, err := s.list(ctx, UsersCollection)
	if err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(docs))
	for _, d := range docs {
		var u domain.User
		if err := json.Unmarshal([]byte(d), &u); err != nil {
			continue
		}
		res = append(res, u)
	}
	return res, nil
}

func (s *RedisStore) GetUser(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	if err := s.get(ctx, UsersCollection, id, &u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (s *RedisStore) PutUser(ctx context.Context, u domain.User) error {
	return s.put(ctx, UsersCollection, u.ID, u)
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
