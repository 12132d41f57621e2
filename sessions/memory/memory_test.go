package memory_test

import (
	"testing"

	"github.com/RogueTeam/ilpgateway/sessions/memory"
	"github.com/RogueTeam/ilpgateway/sessions/testsuite"
)

func Test_Store(t *testing.T) {
	testsuite.Test(t, memory.New())
}
