package explain

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Velocidex/ordereddict"
	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type testCommand struct {
	Field   string
	Buckets int
}

func TestExplain(t *testing.T) {
	buf := &bytes.Buffer{}
	explainer := NewLoggingExplainer(log.NewLogfmtLogger(buf))

	command := &testCommand{Field: "country", Buckets: 2}
	explainer.ParseArgs("explode_random", ordereddict.NewDict(), command, nil)
	explainer.StartCommand("explode_random", command)
	explainer.EndCommand("explode_random", 4, 2, nil)
	explainer.EndCommand("explode_random", 0, 0, errors.New("boom"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 4)

	assert.Contains(t, lines[0], `msg="arg parsing"`)
	assert.Contains(t, lines[0], "country")
	assert.Contains(t, lines[1], `msg="start command"`)
	assert.Contains(t, lines[1], "command=explode_random")
	assert.Contains(t, lines[2], "groups=4 depth=2")
	assert.Contains(t, lines[3], "err=boom")
	for _, line := range lines {
		assert.Contains(t, line, "level=debug")
		assert.Contains(t, line, "component=explain")
	}
}

func TestNilLogger(t *testing.T) {
	explainer := NewLoggingExplainer(nil)
	explainer.StartCommand("get_num_groups", nil)
}
