package redisdb

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/RogueTeam/ilpgateway/sessions"
	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "sessions:"

// Shortest expiration given to a record. Lazy expiry at read time decides
// visibility, the Redis TTL only reclaims memory
const minExpiration = time.Second

// Store persists sessions in Redis. Updates are optimistic WATCH/MULTI
// transactions retried while other clients modify the same key
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ sessions.Store = (*Store)(nil)

type Config struct {
	Client *redis.Client
	// Prefix of every key. Defaults to DefaultPrefix
	Prefix string
	// Session TTL. Records expire at their session deadline. Zero keeps
	// records until deleted
	TTL time.Duration
}

func New(config Config) *Store {
	s := &Store{
		client: config.Client,
		prefix: config.Prefix,
		ttl:    config.TTL,
	}
	if s.prefix == "" {
		s.prefix = DefaultPrefix
	}
	return s
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

func (s *Store) expiration(session *sessions.Session) time.Duration {
	deadline := session.Deadline(s.ttl)
	if deadline.IsZero() {
		return 0
	}
	return max(time.Until(deadline), minExpiration)
}

func (s *Store) Create(ctx context.Context, session sessions.Session) (err error) {
	created, err := s.client.SetNX(ctx, s.key(session.Id), session.Bytes(), s.expiration(&session)).Result()
	if err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}
	if !created {
		return fmt.Errorf("%w: %s", sessions.ErrExists, session.Id)
	}
	return nil
}

// Implemented by both clients and transactions
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func get(ctx context.Context, c getter, key, id string) (session sessions.Session, err error) {
	contents, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return session, fmt.Errorf("%w: %s", sessions.ErrNotFound, id)
		}
		return session, fmt.Errorf("failed to query existing session: %w", err)
	}

	err = session.FromBytes(contents)
	if err != nil {
		return session, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return session, nil
}

func (s *Store) Get(ctx context.Context, id string) (session sessions.Session, err error) {
	return get(ctx, s.client, s.key(id), id)
}

func (s *Store) Update(ctx context.Context, id string, fn sessions.Mutator) (session sessions.Session, err error) {
	key := s.key(id)
	for {
		err = s.client.Watch(ctx, func(tx *redis.Tx) (err error) {
			session, err = get(ctx, tx, key, id)
			if err != nil {
				return err
			}

			err = fn(&session)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) (err error) {
				return pipe.Set(ctx, key, session.Bytes(), s.expiration(&session)).Err()
			})
			return err
		}, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return session, err
		}
		if ctx.Err() != nil {
			return session, fmt.Errorf("failed to commit transaction: %w", ctx.Err())
		}
	}
}

func (s *Store) Delete(ctx context.Context, id string) (err error) {
	deleted, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if deleted == 0 {
		return fmt.Errorf("%w: %s", sessions.ErrNotFound, id)
	}
	return nil
}

func (s *Store) Stream(ctx context.Context) (<-chan sessions.Session, <-chan error) {
	stream := make(chan sessions.Session, 1_000)
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		defer close(stream)

		iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			key := iter.Val()
			session, err := get(ctx, s.client, key, key)
			if err != nil {
				// Deleted between SCAN and GET
				if !errors.Is(err, sessions.ErrNotFound) {
					log.Println("ERROR|DECODING|SESSION", key, err)
				}
				continue
			}

			select {
			case stream <- session:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}
		}

		err := iter.Err()
		if err != nil {
			err = fmt.Errorf("failed to scan sessions: %w", err)
		}
		errChan <- err
	}()
	return stream, errChan
}
