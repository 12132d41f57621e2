package badgerdb_test

import (
	"testing"

	"github.com/RogueTeam/ilpgateway/sessions/badgerdb"
	"github.com/RogueTeam/ilpgateway/sessions/testsuite"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
)

func Test_Store(t *testing.T) {
	assertions := assert.New(t)

	options := badger.
		DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)
	db, err := badger.Open(options)
	if !assertions.Nil(err, "failed to open database") {
		return
	}
	defer db.Close()

	testsuite.Test(t, badgerdb.New(badgerdb.Config{DB: db}))
}
