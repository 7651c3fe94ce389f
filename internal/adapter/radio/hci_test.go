package radio

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluehood/internal/domain"
)

func TestInquiryLineParsing(t *testing.T) {
	out := "Inquiring ...\n" +
		"\tAA:BB:CC:DD:EE:FF\tclock offset: 0x1234\tclass: 0x5a020c\n" +
		"\t00:1a:2b:3c:4d:5e\tclock offset: 0x0000\tclass: 0x000000\n" +
		"garbage line\n"

	var addrs []string
	for _, line := range strings.Split(out, "\n") {
		if m := inquiryLine.FindStringSubmatch(line); m != nil {
			addrs = append(addrs, m[1])
		}
	}
	require.Len(t, addrs, 2)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", addrs[0])
	assert.Equal(t, "00:1a:2b:3c:4d:5e", addrs[1])
}

func TestDescribeExecErr(t *testing.T) {
	assert.Contains(t, describeExecErr(exec.ErrNotFound), "hcitool not found")
	assert.Contains(t,
		describeExecErr(&exec.ExitError{Stderr: []byte("Device is not available: No such device\n")}),
		"No such device")
	assert.Equal(t, "boom", describeExecErr(errors.New("boom")))
}

func TestHCIArgsWithAdapter(t *testing.T) {
	r := NewHCIRadio("hci1", nil)
	assert.Equal(t, []string{"-i", "hci1", "inq", "--length", "4"}, r.args("inq", "--length", "4"))

	def := NewHCIRadio("", nil)
	assert.Equal(t, []string{"name", "AA:BB:CC:DD:EE:FF"}, def.args("name", "AA:BB:CC:DD:EE:FF"))
}

func TestMockRadio(t *testing.T) {
	m := NewMock()
	m.AddDevice("AA:BB:CC:DD:EE:FF", "Pixel 9", -60)

	events, err := m.Scan(context.Background(), time.Second)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", events[0].Address)
	assert.False(t, events[0].Timestamp.IsZero(), "mock stamps scan time")

	m.SetError(domain.ErrRadioUnavailable)
	_, err = m.Scan(context.Background(), time.Second)
	assert.ErrorIs(t, err, domain.ErrRadioUnavailable)

	m.SetError(nil)
	m.Clear()
	events, err = m.Scan(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, 3, m.Scans())
}
