package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/RogueTeam/ilpgateway/sessions"
	badger "github.com/dgraph-io/badger/v4"
)

var sessionsPrefix = []byte("/sessions/")

func SessionKey(id string) (key []byte) {
	return []byte(fmt.Sprintf("/sessions/%s", id))
}

// Store persists sessions in a badger database. Conflicting transactions are
// retried until they commit or the context is done
type Store struct {
	db *badger.DB
}

var _ sessions.Store = (*Store)(nil)

type Config struct {
	// Badger database to use
	DB *badger.DB
}

func New(config Config) *Store {
	return &Store{db: config.DB}
}

func getSession(txn *badger.Txn, id string) (session sessions.Session, err error) {
	entry, err := txn.Get(SessionKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return session, fmt.Errorf("%w: %s", sessions.ErrNotFound, id)
		}
		return session, fmt.Errorf("failed to query existing session: %w", err)
	}

	err = entry.Value(func(val []byte) (err error) {
		err = session.FromBytes(val)
		if err != nil {
			return fmt.Errorf("failed to unmarshal session: %w", err)
		}
		return nil
	})
	if err != nil {
		return session, fmt.Errorf("failed to retrieve value: %w", err)
	}
	return session, nil
}

// update runs fn in a read-write transaction retrying on conflicts
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) (err error) {
	for {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("failed to commit transaction: %w", ctx.Err())
		}
	}
}

func (s *Store) Create(ctx context.Context, session sessions.Session) (err error) {
	return s.update(ctx, func(txn *badger.Txn) (err error) {
		_, err = txn.Get(SessionKey(session.Id))
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s", sessions.ErrExists, session.Id)
		case !errors.Is(err, badger.ErrKeyNotFound):
			return fmt.Errorf("failed to query existing session: %w", err)
		}

		err = txn.Set(SessionKey(session.Id), session.Bytes())
		if err != nil {
			return fmt.Errorf("failed to set session: %w", err)
		}
		return nil
	})
}

func (s *Store) Get(ctx context.Context, id string) (session sessions.Session, err error) {
	err = s.db.View(func(txn *badger.Txn) (err error) {
		session, err = getSession(txn, id)
		return err
	})
	return session, err
}

func (s *Store) Update(ctx context.Context, id string, fn sessions.Mutator) (session sessions.Session, err error) {
	err = s.update(ctx, func(txn *badger.Txn) (err error) {
		session, err = getSession(txn, id)
		if err != nil {
			return err
		}

		err = fn(&session)
		if err != nil {
			return err
		}

		err = txn.Set(SessionKey(id), session.Bytes())
		if err != nil {
			return fmt.Errorf("failed to set session: %w", err)
		}
		return nil
	})
	return session, err
}

func (s *Store) Delete(ctx context.Context, id string) (err error) {
	return s.update(ctx, func(txn *badger.Txn) (err error) {
		_, err = getSession(txn, id)
		if err != nil {
			return err
		}

		err = txn.Delete(SessionKey(id))
		if err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		return nil
	})
}

func (s *Store) Stream(ctx context.Context) (<-chan sessions.Session, <-chan error) {
	stream := make(chan sessions.Session, 1_000)
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		defer close(stream)

		errChan <- s.db.View(func(txn *badger.Txn) (err error) {
			options := badger.DefaultIteratorOptions
			options.Prefix = sessionsPrefix
			it := txn.NewIterator(options)
			defer it.Close()

			for it.Rewind(); it.ValidForPrefix(sessionsPrefix); it.Next() {
				var session sessions.Session

				err = it.Item().Value(func(val []byte) (err error) {
					return session.FromBytes(val)
				})
				if err != nil {
					// Keep streaming the rest
					log.Println("ERROR|DECODING|SESSION", string(it.Item().Key()), err)
					continue
				}

				select {
				case stream <- session:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}()
	return stream, errChan
}
